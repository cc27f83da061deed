// File: builtin.go
// Author: momentics <momentics@gmail.com>
//
// The built-in org.freedesktop.DBus.Peer interface and the
// UnknownObject fallback (§4.5 step 8-9), plus the public filter and
// match registration wrapping internal/dispatch.List.
package dbus

import (
	"github.com/momentics/go-sd-bus/internal/dispatch"
	"github.com/momentics/go-sd-bus/wire"
)

// FilterToken identifies a registered filter or match for removal.
type FilterToken = dispatch.Token

// AddFilter registers h to see every inbound message before dispatch
// reaches matches, built-ins, or object dispatch (§3, §4.5 step 6).
func (c *Connection) AddFilter(h func(msg wire.Message) bool) (FilterToken, error) {
	if err := c.checkNotForked(); err != nil {
		return nil, err
	}
	return c.filters.Add(func(v any) bool { return h(v.(wire.Message)) }), nil
}

// RemoveFilter unregisters a filter added via AddFilter. Safe to call
// from within the filter's own callback.
func (c *Connection) RemoveFilter(t FilterToken) error {
	if err := c.checkNotForked(); err != nil {
		return err
	}
	c.filters.Remove(t)
	return nil
}

// AddMatch registers h against the match list, run after filters and
// before built-ins (§3, §4.5 step 7). Match-rule string parsing is the
// caller's responsibility; h decides whether a given message matches.
func (c *Connection) AddMatch(h func(msg wire.Message) bool) (FilterToken, error) {
	if err := c.checkNotForked(); err != nil {
		return nil, err
	}
	return c.matches.Add(func(v any) bool { return h(v.(wire.Message)) }), nil
}

// RemoveMatch unregisters a match added via AddMatch.
func (c *Connection) RemoveMatch(t FilterToken) error {
	if err := c.checkNotForked(); err != nil {
		return err
	}
	c.matches.Remove(t)
	return nil
}

// handleBuiltinPeer answers org.freedesktop.DBus.Peer calls directly
// (Ping, GetMachineId), replying UnknownMethod to any other member on
// that interface. Reports false for calls on any other interface so
// the pipeline proceeds to object dispatch (§4.5 step 8).
func (c *Connection) handleBuiltinPeer(msg wire.Message) bool {
	if msg.Interface() != ifacePeer {
		return false
	}
	switch msg.Member() {
	case memberPing:
		c.replyEmpty(msg)
	case memberGetMID:
		c.replyMachineID(msg)
	default:
		c.replyError(msg, wire.ErrorUnknownMethod, "No such method on org.freedesktop.DBus.Peer")
	}
	return true
}

func (c *Connection) replyEmpty(call wire.Message) {
	if call.Flags()&wire.FlagNoReplyExpected != 0 || c.factory == nil {
		return
	}
	reply, err := c.factory.NewMethodReturn(call)
	if err != nil {
		return
	}
	_, _ = c.sendLocked(reply, false)
}

func (c *Connection) replyMachineID(call wire.Message) {
	if call.Flags()&wire.FlagNoReplyExpected != 0 || c.factory == nil {
		return
	}
	reply, err := c.factory.NewMethodReturn(call)
	if err != nil {
		return
	}
	if bs, ok := reply.(wire.BodyStringer); ok {
		id, err := c.machineID()
		if err != nil {
			c.replyError(call, wire.ErrorUnknownMethod, "machine id unavailable: "+err.Error())
			return
		}
		_ = bs.SetBodyString(id)
	}
	_, _ = c.sendLocked(reply, false)
}

// replyUnknownObject answers a method call that neither the built-in
// peer interface nor the external object dispatcher claimed (§4.5
// step 9).
func (c *Connection) replyUnknownObject(msg wire.Message) {
	c.replyError(msg, wire.ErrorUnknownObject, "No such object at path "+msg.Path())
}

func (c *Connection) replyError(call wire.Message, name, message string) {
	if call.Flags()&wire.FlagNoReplyExpected != 0 || c.factory == nil {
		return
	}
	reply, err := c.factory.NewError(call, name, message)
	if err != nil {
		return
	}
	_, _ = c.sendLocked(reply, false)
}
