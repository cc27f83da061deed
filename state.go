// File: state.go
// Package dbus is the connection core: the long-lived state machine
// that owns file descriptors, maintains transmit/receive queues,
// correlates method calls with replies, runs authentication, fires
// timeouts, and routes inbound messages through filters, matches, and
// object dispatch (§2-§5).
//
// Grounded on api.SessionStatus's enum-with-String()-method pattern,
// generalized from a 5-state websocket session to the connection's
// 6-state machine (§3).
//
// Author: momentics <momentics@gmail.com>
package dbus

// State enumerates the connection's lifecycle states (§3).
type State int

const (
	StateUnset State = iota
	StateOpening
	StateAuthenticating
	StateHello
	StateRunning
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateAuthenticating:
		return "authenticating"
	case StateHello:
		return "hello"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	default:
		return "unset"
	}
}

// IsOpen reports whether the state is one of the "open" states in
// which the connection is doing productive work (§3).
func (s State) IsOpen() bool {
	switch s {
	case StateOpening, StateAuthenticating, StateHello, StateRunning:
		return true
	default:
		return false
	}
}
