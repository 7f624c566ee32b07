package parser

import (
	"net"
	"strings"

	"inet.af/netaddr"
)

// ParseInterfaceAddresses parses "show interface addr" into prefixes keyed
// by interface name.
//
//	GigabitEthernet0/8/0 (up):
//	  L3 10.0.0.1/24
//	  L3 2001:db8::1/64
//	local0 (dn):
func ParseInterfaceAddresses(text string) map[string][]netaddr.IPPrefix {
	out := make(map[string][]netaddr.IPPrefix)
	current := ""

	for _, line := range splitLines(text) {
		if line == "" {
			continue
		}
		if !isBlank(line[0]) {
			current = ""
			trimmed := strings.TrimSpace(line)
			if !strings.HasSuffix(trimmed, ":") {
				continue
			}
			if f := strings.Fields(trimmed); len(f) > 0 {
				current = strings.TrimSuffix(f[0], ":")
				out[current] = nil
			}
			continue
		}
		if current == "" {
			continue
		}

		f := strings.Fields(line)
		if len(f) < 2 || f[0] != "L3" {
			continue
		}
		p, err := netaddr.ParseIPPrefix(f[1])
		if err != nil {
			continue
		}
		out[current] = append(out[current], p)
	}
	return out
}

// ParseHardwareAddresses parses "show hardware-interfaces" and returns the
// Ethernet address of every interface that reports one.
func ParseHardwareAddresses(text string) map[string]net.HardwareAddr {
	out := make(map[string]net.HardwareAddr)
	current := ""

	for _, line := range splitLines(text) {
		if line == "" {
			continue
		}
		if !isBlank(line[0]) {
			f := strings.Fields(line)
			current = ""
			if len(f) > 0 && f[0] != "Name" {
				current = f[0]
			}
			continue
		}
		if current == "" {
			continue
		}

		mac := scanToken(line, "Ethernet address")
		if mac == "" {
			continue
		}
		if hw, err := net.ParseMAC(mac); err == nil {
			out[current] = hw
		}
	}
	return out
}
