package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"inet.af/netaddr"
)

func TestInterfaceTypeFromName(t *testing.T) {
	tests := []struct {
		name string
		want InterfaceType
	}{
		{"local0", InterfaceTypeLocal},
		{"loop0", InterfaceTypeLoopback},
		{"tap1", InterfaceTypeTap},
		{"vxlan_tunnel0", InterfaceTypeVxlan},
		{"memif0/0", InterfaceTypeMemif},
		{"host-eth0", InterfaceTypeAfPacket},
		{"BondEthernet0", InterfaceTypeBond},
		{"BondEthernet0.100", InterfaceTypeBond},
		{"GigabitEthernet0/8/0.200", InterfaceTypeSubInterface},
		{"HundredGigE1/0/0", InterfaceTypeEthernet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InterfaceTypeFromName(tt.name))
		})
	}
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "loop0", SanitizeName("loop0\n"))
	assert.Equal(t, "loop0", SanitizeName("loop0 \t\r\ntrailing"))
	assert.Equal(t, "BondEthernet1", SanitizeName("BondEthernet1"))
	assert.Equal(t, "", SanitizeName("\n"))
}

func TestBondIDFromName(t *testing.T) {
	id, err := BondIDFromName("BondEthernet12")
	require.NoError(t, err)
	assert.Equal(t, uint32(12), id)

	for _, bad := range []string{"BondEthernet", "BondEthernetX", "bond0", "GigabitEthernet0/8/0"} {
		_, err := BondIDFromName(bad)
		assert.ErrorIs(t, err, ErrInvalidBondName, bad)
	}
}

func TestParseEnums(t *testing.T) {
	m, err := ParseBondMode("LACP")
	require.NoError(t, err)
	assert.Equal(t, BondModeLACP, m)

	_, err = ParseBondMode("mesh")
	assert.ErrorIs(t, err, ErrInvalidBondMode)

	lb, err := ParseLoadBalance("l34")
	require.NoError(t, err)
	assert.True(t, lb.Configurable())

	lb, err = ParseLoadBalance("ab")
	require.NoError(t, err)
	assert.False(t, lb.Configurable())

	_, err = ParseLoadBalance("l4")
	assert.ErrorIs(t, err, ErrInvalidLoadBalance)
}

func TestInterfaceAddresses(t *testing.T) {
	iface := Interface{Name: "loop0"}
	v4 := netaddr.MustParseIPPrefix("10.0.0.1/24")
	v6 := netaddr.MustParseIPPrefix("2001:db8::1/64")

	iface.AddAddress(v4)
	iface.AddAddress(v6)
	iface.AddAddress(v4)

	assert.Equal(t, []netaddr.IPPrefix{v4}, iface.IPv4)
	assert.Equal(t, []netaddr.IPPrefix{v6}, iface.IPv6)

	clone := iface.Clone()
	iface.RemoveAddress(v4)
	assert.Nil(t, iface.IPv4)
	assert.True(t, clone.HasAddress(v4))
}

func TestSplitSubInterfaceName(t *testing.T) {
	parent, id, err := SplitSubInterfaceName("GigabitEthernet0/8/0.100")
	require.NoError(t, err)
	assert.Equal(t, "GigabitEthernet0/8/0", parent)
	assert.Equal(t, uint32(100), id)

	_, _, err = SplitSubInterfaceName("GigabitEthernet0/8/0")
	assert.ErrorIs(t, err, ErrInvalidSubInterfaceName)
}
