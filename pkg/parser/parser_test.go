package parser

import (
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"inet.af/netaddr"

	"github.com/veesix-networks/vppifd/pkg/models"
)

const showInterface = `              Name               Idx    State  MTU (L3/IP4/IP6/MPLS)     Counter          Count
BondEthernet0                     3      up          9000/0/0/0     rx packets                  120
                                                                    rx bytes                  10240
BondEthernet0.100                 4      up          1500/0/0/0
GigabitEthernet0/8/0              1      up          9000/0/0/0     tx packets                   12
GigabitEthernet0/9/0              2     down         9000/0/0/0
local0                            0     down          0/0/0/0
loop0                             5      up          1500/0/0/0
tap1                              6      up          1500/0/0/0
`

func TestParseInterfaceTable(t *testing.T) {
	ifaces := ParseInterfaceTable(showInterface)
	require.Len(t, ifaces, 7)

	names := make([]string, 0, len(ifaces))
	for _, i := range ifaces {
		names = append(names, i.Name)
	}
	assert.Equal(t, []string{
		"BondEthernet0", "BondEthernet0.100", "GigabitEthernet0/8/0",
		"GigabitEthernet0/9/0", "local0", "loop0", "tap1",
	}, names)

	assert.Equal(t, models.Interface{
		Name:    "BondEthernet0",
		Index:   3,
		AdminUp: true,
		LinkUp:  true,
		MTU:     9000,
		Type:    models.InterfaceTypeBond,
	}, ifaces[0])
	assert.False(t, ifaces[3].AdminUp)
	assert.Equal(t, models.InterfaceTypeLocal, ifaces[4].Type)
	assert.Equal(t, uint16(0), ifaces[4].MTU)
	assert.Equal(t, models.InterfaceTypeTap, ifaces[6].Type)
}

func TestParseInterfaceTableSingleRow(t *testing.T) {
	ifaces := ParseInterfaceTable("HundredGigE1/0/0      1     down         9000/0/0/0")
	require.Len(t, ifaces, 1)
	assert.Equal(t, models.Interface{
		Name:  "HundredGigE1/0/0",
		Index: 1,
		MTU:   9000,
		Type:  models.InterfaceTypeEthernet,
	}, ifaces[0])
}

func TestParseInterfaceTableShortRowDropped(t *testing.T) {
	full := ParseInterfaceTable(showInterface)

	lines := strings.Split(showInterface, "\n")
	for i, l := range lines {
		if strings.HasPrefix(l, "loop0") {
			lines[i] = "loop0  5  up"
		}
	}
	mutated := ParseInterfaceTable(strings.Join(lines, "\n"))

	require.Len(t, mutated, len(full)-1)
	for _, i := range mutated {
		assert.NotEqual(t, "loop0", i.Name)
	}
	assert.Equal(t, full[:5], mutated[:5])
	assert.Equal(t, full[6], mutated[5])
}

func TestParseInterfaceTableGarbage(t *testing.T) {
	inputs := []string{
		"",
		"\n\n\n",
		"              Name               Idx    State  MTU",
		"GigabitEthernet0/8/0              x      up          9000/0/0/0",
		"GigabitEthernet0/8/0              1      up          jumbo/0/0/0",
		"GigabitEthernet0/8/0              1      up          99999/0/0/0",
		"GigabitEthernet0/8/0              1",
		"1234567890123456789012345",
	}
	for _, in := range inputs {
		assert.Empty(t, ParseInterfaceTable(in), "%q", in)
	}
}

const showBondDetails = `BondEthernet0
  mode: lacp
  load balance: l34
  number of active members: 2
    GigabitEthernet0/8/0
    GigabitEthernet0/9/0
  number of members: 2
    GigabitEthernet0/8/0
    GigabitEthernet0/9/0
  device instance: 0
  interface id: 0
  sw_if_index: 3
  hw_if_index: 3
BondEthernet7
  mode: active-backup
  load balance: ab
  number of active members: 0
  number of members: 0
  sw_if_index: 8
`

func TestParseBondDetails(t *testing.T) {
	bonds := ParseBondDetails(showBondDetails)
	require.Len(t, bonds, 2)

	assert.Equal(t, models.Bond{
		Name:              "BondEthernet0",
		ID:                0,
		Index:             3,
		Mode:              models.BondModeLACP,
		LoadBalance:       models.LoadBalanceL34,
		MemberCount:       2,
		ActiveMemberCount: 2,
		Members:           []string{"GigabitEthernet0/8/0", "GigabitEthernet0/9/0"},
	}, bonds[0])

	assert.Equal(t, uint32(7), bonds[1].ID)
	assert.Equal(t, models.BondModeActiveBackup, bonds[1].Mode)
	assert.Equal(t, models.LoadBalanceAB, bonds[1].LoadBalance)
	assert.Empty(t, bonds[1].Members)
}

func TestParseBondDetailsScenario(t *testing.T) {
	in := "BondEthernet0\n  mode: lacp\n  load balance: l34\n  number of members: 2\n  number of active members: 2\n"
	bonds := ParseBondDetails(in)
	require.Len(t, bonds, 1)
	b := bonds[0]
	assert.Equal(t, "BondEthernet0", b.Name)
	assert.Equal(t, uint32(0), b.ID)
	assert.Equal(t, models.BondModeLACP, b.Mode)
	assert.Equal(t, models.LoadBalanceL34, b.LoadBalance)
	assert.Equal(t, uint32(2), b.MemberCount)
	assert.Equal(t, uint32(2), b.ActiveMemberCount)
}

func TestParseBondDetailsDefaults(t *testing.T) {
	in := strings.Join([]string{
		"BondEthernet1",
		"  mode: bogus",
		"  load balance: nope",
		"  something unexpected",
		"BondEthernet2",
		"random trailer",
		"BondEthernet3",
	}, "\n")

	bonds := ParseBondDetails(in)
	require.Len(t, bonds, 3)
	for _, b := range bonds {
		assert.Equal(t, models.BondModeLACP, b.Mode, b.Name)
		assert.Equal(t, models.LoadBalanceL2, b.LoadBalance, b.Name)
	}
}

func TestParseBondDetailsHeaderCount(t *testing.T) {
	inputs := []string{
		"",
		"  mode: lacp\n",
		"BondEthernet0\n",
		"xBondEthernet0\n BondEthernet1\nBondEthernet2 extra\n",
		showBondDetails + showBondDetails,
	}
	for _, in := range inputs {
		want := 0
		for _, l := range strings.Split(in, "\n") {
			if strings.HasPrefix(l, "BondEthernet") {
				want++
			}
		}
		assert.Len(t, ParseBondDetails(in), want, "%q", in)
	}
}

const showLcp = `lcp default netns dataplane
lcp lcp-auto-subint on
lcp lcp-sync on
itf-pair: [0] GigabitEthernet0/8/0 tap1 ge0 7 type tap netns dataplane
itf-pair: [1] BondEthernet0 tap2 be0 8 type tun netns -
itf-pair: [2] loop0 tap3 lo0 9 type tap
itf-pair: [x] broken tap4 br0 10 type tap
itf-pair: [3] short tap5
`

func TestParseLcpPairs(t *testing.T) {
	pairs := ParseLcpPairs(showLcp)
	require.Len(t, pairs, 3)

	assert.Equal(t, models.LcpPair{
		VppInterface:  "GigabitEthernet0/8/0",
		HostInterface: "ge0",
		Namespace:     "dataplane",
		PhyIndex:      0,
		HostIndex:     7,
	}, pairs[0])
	assert.True(t, pairs[1].Tun)
	assert.Empty(t, pairs[1].Namespace)
	assert.Equal(t, "lo0", pairs[2].HostInterface)
	assert.Empty(t, pairs[2].Namespace)
}

func TestParseInterfaceAddresses(t *testing.T) {
	in := `BondEthernet0 (up):
  L3 192.0.2.1/24
  L3 2001:db8::1/64
GigabitEthernet0/8/0 (up):
local0 (dn):
  L3 not-an-address
`
	addrs := ParseInterfaceAddresses(in)
	assert.Equal(t, []netaddr.IPPrefix{
		netaddr.MustParseIPPrefix("192.0.2.1/24"),
		netaddr.MustParseIPPrefix("2001:db8::1/64"),
	}, addrs["BondEthernet0"])
	assert.Contains(t, addrs, "GigabitEthernet0/8/0")
	assert.Empty(t, addrs["local0"])
}

func TestParseHardwareAddresses(t *testing.T) {
	in := `              Name                Idx   Link  Hardware
GigabitEthernet0/8/0               1     up   GigabitEthernet0/8/0
  Link speed: 10 Gbps
  Ethernet address 02:fe:3c:11:22:33
  VMware VMXNET3
local0                             0    down  local0
  Link speed: unknown
  local
`
	macs := ParseHardwareAddresses(in)
	require.Len(t, macs, 1)
	want, _ := net.ParseMAC("02:fe:3c:11:22:33")
	assert.Equal(t, want, macs["GigabitEthernet0/8/0"])
}
