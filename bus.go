// File: bus.go
// Author: momentics <momentics@gmail.com>
//
// Address-based connection factories (§2 item 8, §6). Grounded on
// sd-bus.c's sd_bus_open_system/_user/_system_remote/_system_container:
// build an address string, parse it, mark bus-client, open.
package dbus

import (
	"os"
	"strings"

	"github.com/momentics/go-sd-bus/dbusaddr"
	"github.com/momentics/go-sd-bus/dbuserr"
)

const (
	envSystemBusAddress  = "DBUS_SYSTEM_BUS_ADDRESS"
	envSessionBusAddress = "DBUS_SESSION_BUS_ADDRESS"
	envRuntimeDir        = "XDG_RUNTIME_DIR"

	defaultSystemBusAddress = "unix:path=/run/dbus/system_bus_socket"
)

// SystemBus opens a bus-client connection to the system bus, honoring
// DBUS_SYSTEM_BUS_ADDRESS if set.
func SystemBus(opts ...Option) (*Connection, error) {
	addrStr := os.Getenv(envSystemBusAddress)
	if addrStr == "" {
		addrStr = defaultSystemBusAddress
	}
	return dialBusAddress(addrStr, opts...)
}

// SessionBus opens a bus-client connection to the caller's session
// bus, honoring DBUS_SESSION_BUS_ADDRESS or else deriving the default
// socket from XDG_RUNTIME_DIR.
func SessionBus(opts ...Option) (*Connection, error) {
	addrStr := os.Getenv(envSessionBusAddress)
	if addrStr == "" {
		dir := os.Getenv(envRuntimeDir)
		if dir == "" {
			return nil, dbuserr.New(dbuserr.CodeConfiguration, "SessionBus: neither "+envSessionBusAddress+" nor "+envRuntimeDir+" is set")
		}
		addrStr = "unix:path=" + escapeAddressValue(dir+"/bus")
	}
	return dialBusAddress(addrStr, opts...)
}

// SystemBusRemote opens a bus-client connection to the system bus of a
// remote host, tunneled over `ssh host systemd-stdio-bridge`.
func SystemBusRemote(host string, opts ...Option) (*Connection, error) {
	addrStr := "unixexec:path=ssh,argv1=-xT,argv2=" + escapeAddressValue(host) + ",argv3=systemd-stdio-bridge"
	return dialBusAddress(addrStr, opts...)
}

// SystemBusContainer opens a bus-client connection to the system bus
// of a local container identified by machine name.
func SystemBusContainer(machine string, opts ...Option) (*Connection, error) {
	addrStr := "x-container:machine=" + escapeAddressValue(machine)
	return dialBusAddress(addrStr, opts...)
}

func dialBusAddress(addrStr string, opts ...Option) (*Connection, error) {
	addrs, err := dbusaddr.ParseAll(addrStr)
	if err != nil {
		return nil, dbuserr.Wrap(dbuserr.CodeConfiguration, "dialBusAddress: invalid address", err)
	}
	if len(addrs) == 0 {
		return nil, dbuserr.New(dbuserr.CodeConfiguration, "dialBusAddress: no usable transport in "+addrStr)
	}

	full := make([]Option, 0, len(opts)+2)
	full = append(full, WithAddress(addrs[0]), WithBusClient())
	full = append(full, opts...)

	c, err := New(full...)
	if err != nil {
		return nil, err
	}
	if err := c.Open(); err != nil {
		return nil, err
	}
	return c, nil
}

// escapeAddressValue percent-encodes characters the address grammar
// treats as delimiters (§4.1), mirroring bus_address_escape.
func escapeAddressValue(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-', c == '/', c == '.':
			b.WriteByte(c)
		default:
			b.WriteString("%")
			b.WriteString(strings.ToUpper(hexByte(c)))
		}
	}
	return b.String()
}

const hexDigits = "0123456789abcdef"

func hexByte(c byte) string {
	return string([]byte{hexDigits[c>>4], hexDigits[c&0xf]})
}
