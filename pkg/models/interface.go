package models

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"inet.af/netaddr"
)

var (
	ErrInvalidInterfaceType = errors.New("invalid interface type")
	ErrInvalidBondMode      = errors.New("invalid bond mode")
	ErrInvalidLoadBalance   = errors.New("invalid bond load-balance")
	ErrInvalidBondName      = errors.New("invalid bond name")
)

type InterfaceType string

const (
	InterfaceTypeEthernet     InterfaceType = "ethernet"
	InterfaceTypeLoopback     InterfaceType = "loopback"
	InterfaceTypeBond         InterfaceType = "bond"
	InterfaceTypeSubInterface InterfaceType = "sub-interface"
	InterfaceTypeTap          InterfaceType = "tap"
	InterfaceTypeAfPacket     InterfaceType = "af-packet"
	InterfaceTypeVxlan        InterfaceType = "vxlan"
	InterfaceTypeMemif        InterfaceType = "memif"
	InterfaceTypeLocal        InterfaceType = "local"
)

var interfaceTypes = []InterfaceType{
	InterfaceTypeEthernet,
	InterfaceTypeLoopback,
	InterfaceTypeBond,
	InterfaceTypeSubInterface,
	InterfaceTypeTap,
	InterfaceTypeAfPacket,
	InterfaceTypeVxlan,
	InterfaceTypeMemif,
	InterfaceTypeLocal,
}

func (t InterfaceType) Valid() bool {
	for _, v := range interfaceTypes {
		if t == v {
			return true
		}
	}
	return false
}

func ParseInterfaceType(s string) (InterfaceType, error) {
	t := InterfaceType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidInterfaceType, s)
	}
	return t, nil
}

var typePrefixes = []struct {
	prefix string
	typ    InterfaceType
}{
	{"local", InterfaceTypeLocal},
	{"loop", InterfaceTypeLoopback},
	{"tap", InterfaceTypeTap},
	{"vxlan", InterfaceTypeVxlan},
	{"memif", InterfaceTypeMemif},
	{"host-", InterfaceTypeAfPacket},
	{BondNamePrefix, InterfaceTypeBond},
}

// InterfaceTypeFromName guesses the interface type from its name. The CLI
// does not expose the device type, so this is a heuristic: the prefixes are
// checked in order, then a dot means sub-interface, and everything else is
// assumed to be ethernet.
func InterfaceTypeFromName(name string) InterfaceType {
	for _, p := range typePrefixes {
		if strings.HasPrefix(name, p.prefix) {
			return p.typ
		}
	}
	if strings.Contains(name, ".") {
		return InterfaceTypeSubInterface
	}
	return InterfaceTypeEthernet
}

// Interface is the observed or intended state of one VPP interface. Index is
// assigned by the device and may change across restarts; Name is the key.
type Interface struct {
	Name        string             `json:"name"`
	Index       uint32             `json:"index"`
	AdminUp     bool               `json:"admin_up"`
	LinkUp      bool               `json:"link_up"`
	MTU         uint16             `json:"mtu,omitempty"`
	Type        InterfaceType      `json:"type,omitempty"`
	MAC         net.HardwareAddr   `json:"mac,omitempty"`
	Description string             `json:"description,omitempty"`
	IPv4        []netaddr.IPPrefix `json:"ipv4,omitempty"`
	IPv6        []netaddr.IPPrefix `json:"ipv6,omitempty"`
}

// Addresses returns IPv4 then IPv6 prefixes.
func (i *Interface) Addresses() []netaddr.IPPrefix {
	out := make([]netaddr.IPPrefix, 0, len(i.IPv4)+len(i.IPv6))
	out = append(out, i.IPv4...)
	return append(out, i.IPv6...)
}

func (i *Interface) HasAddress(p netaddr.IPPrefix) bool {
	for _, a := range i.Addresses() {
		if a == p {
			return true
		}
	}
	return false
}

// AddAddress appends p to the matching family unless already present.
func (i *Interface) AddAddress(p netaddr.IPPrefix) {
	if i.HasAddress(p) {
		return
	}
	if p.IP().Is4() {
		i.IPv4 = append(i.IPv4, p)
	} else {
		i.IPv6 = append(i.IPv6, p)
	}
}

func (i *Interface) RemoveAddress(p netaddr.IPPrefix) {
	i.IPv4 = removePrefix(i.IPv4, p)
	i.IPv6 = removePrefix(i.IPv6, p)
}

func removePrefix(list []netaddr.IPPrefix, p netaddr.IPPrefix) []netaddr.IPPrefix {
	out := list[:0]
	for _, a := range list {
		if a != p {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (i *Interface) IsSubInterface() bool {
	return i.Type == InterfaceTypeSubInterface
}

// Clone returns a deep copy so callers cannot alias store-owned slices.
func (i Interface) Clone() Interface {
	if i.MAC != nil {
		i.MAC = append(net.HardwareAddr(nil), i.MAC...)
	}
	if i.IPv4 != nil {
		i.IPv4 = append([]netaddr.IPPrefix(nil), i.IPv4...)
	}
	if i.IPv6 != nil {
		i.IPv6 = append([]netaddr.IPPrefix(nil), i.IPv6...)
	}
	return i
}

// SanitizeName strips everything from the first line break and any trailing
// blanks. Device replies usually end with a line terminator.
func SanitizeName(name string) string {
	if idx := strings.IndexAny(name, "\r\n"); idx >= 0 {
		name = name[:idx]
	}
	return strings.TrimRight(name, " \t")
}
