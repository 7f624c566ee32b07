package vpp

import (
	"context"
	"fmt"
	"net"
	"strings"

	"go.fd.io/govpp/api"
	"go.fd.io/govpp/binapi/bond"
	interfaces "go.fd.io/govpp/binapi/interface"
	"go.fd.io/govpp/binapi/interface_types"
	"go.fd.io/govpp/binapi/ip"
	"go.fd.io/govpp/binapi/ip_types"
	"go.fd.io/govpp/binapi/lcp"
	"inet.af/netaddr"

	"github.com/veesix-networks/vppifd/pkg/models"
)

var bondModes = map[bond.BondMode]models.BondMode{
	bond.BOND_API_MODE_ROUND_ROBIN:   models.BondModeRoundRobin,
	bond.BOND_API_MODE_ACTIVE_BACKUP: models.BondModeActiveBackup,
	bond.BOND_API_MODE_XOR:           models.BondModeXOR,
	bond.BOND_API_MODE_BROADCAST:     models.BondModeBroadcast,
	bond.BOND_API_MODE_LACP:          models.BondModeLACP,
}

var loadBalances = map[bond.BondLbAlgo]models.LoadBalance{
	bond.BOND_API_LB_ALGO_L2:  models.LoadBalanceL2,
	bond.BOND_API_LB_ALGO_L34: models.LoadBalanceL34,
	bond.BOND_API_LB_ALGO_L23: models.LoadBalanceL23,
	bond.BOND_API_LB_ALGO_RR:  models.LoadBalanceRR,
	bond.BOND_API_LB_ALGO_BC:  models.LoadBalanceBC,
	bond.BOND_API_LB_ALGO_AB:  models.LoadBalanceAB,
}

func trimName(s string) string {
	return strings.TrimRight(s, "\x00")
}

func (c *Client) Interfaces(ctx context.Context) ([]models.Interface, error) {
	ch, err := c.channel(ctx)
	if err != nil {
		return nil, err
	}
	defer ch.Close()

	req := &interfaces.SwInterfaceDump{
		SwIfIndex: interface_types.InterfaceIndex(^uint32(0)),
	}
	stream := ch.SendMultiRequest(req)

	var result []models.Interface
	for {
		reply := &interfaces.SwInterfaceDetails{}
		stop, err := stream.ReceiveReply(reply)
		if stop {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dump interfaces: %w", err)
		}

		name := trimName(reply.InterfaceName)
		iface := models.Interface{
			Name:    name,
			Index:   uint32(reply.SwIfIndex),
			AdminUp: reply.Flags&interface_types.IF_STATUS_API_FLAG_ADMIN_UP != 0,
			LinkUp:  reply.Flags&interface_types.IF_STATUS_API_FLAG_LINK_UP != 0,
			MTU:     clampMTU(reply.Mtu[0]),
			Type:    models.InterfaceTypeFromName(name),
		}
		if mac := net.HardwareAddr(reply.L2Address[:]); !isZeroMAC(mac) {
			iface.MAC = append(net.HardwareAddr(nil), mac...)
		}
		result = append(result, iface)
	}

	for i := range result {
		for _, isIPv6 := range []bool{false, true} {
			prefixes, err := dumpAddresses(ch, result[i].Index, isIPv6)
			if err != nil {
				return nil, err
			}
			for _, p := range prefixes {
				result[i].AddAddress(p)
			}
		}
	}

	c.logger.Debug("Dumped interfaces", "count", len(result))
	return result, nil
}

func dumpAddresses(ch api.Channel, swIfIndex uint32, isIPv6 bool) ([]netaddr.IPPrefix, error) {
	stream := ch.SendMultiRequest(&ip.IPAddressDump{
		SwIfIndex: interface_types.InterfaceIndex(swIfIndex),
		IsIPv6:    isIPv6,
	})

	var out []netaddr.IPPrefix
	for {
		reply := &ip.IPAddressDetails{}
		stop, err := stream.ReceiveReply(reply)
		if stop {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dump addresses for %d: %w", swIfIndex, err)
		}

		var addr netaddr.IP
		if reply.Prefix.Address.Af == ip_types.ADDRESS_IP6 {
			addr = netaddr.IPFrom16(reply.Prefix.Address.Un.GetIP6())
		} else {
			addr = netaddr.IPFrom4(reply.Prefix.Address.Un.GetIP4())
		}
		out = append(out, netaddr.IPPrefixFrom(addr, reply.Prefix.Len))
	}
	return out, nil
}

func (c *Client) Bonds(ctx context.Context) ([]models.Bond, error) {
	ch, err := c.channel(ctx)
	if err != nil {
		return nil, err
	}
	defer ch.Close()

	stream := ch.SendMultiRequest(&bond.SwBondInterfaceDump{
		SwIfIndex: interface_types.InterfaceIndex(^uint32(0)),
	})

	var result []models.Bond
	for {
		reply := &bond.SwBondInterfaceDetails{}
		stop, err := stream.ReceiveReply(reply)
		if stop {
			break
		}
		if err != nil {
			c.logger.Warn("Bond dump failed, falling back to CLI", "error", err)
			return c.cli.Bonds(ctx)
		}

		b := models.Bond{
			Name:              trimName(reply.InterfaceName),
			ID:                reply.ID,
			Index:             uint32(reply.SwIfIndex),
			Mode:              models.BondModeLACP,
			LoadBalance:       models.LoadBalanceL2,
			MemberCount:       reply.Members,
			ActiveMemberCount: reply.ActiveMembers,
		}
		if m, ok := bondModes[reply.Mode]; ok {
			b.Mode = m
		}
		if lb, ok := loadBalances[reply.Lb]; ok {
			b.LoadBalance = lb
		}
		result = append(result, b)
	}

	for i := range result {
		members, err := dumpMembers(ch, result[i].Index)
		if err != nil {
			return nil, err
		}
		result[i].Members = members
	}

	c.logger.Debug("Dumped bonds", "count", len(result))
	return result, nil
}

func dumpMembers(ch api.Channel, bondIndex uint32) ([]string, error) {
	stream := ch.SendMultiRequest(&bond.SwMemberInterfaceDump{
		SwIfIndex: interface_types.InterfaceIndex(bondIndex),
	})

	var out []string
	for {
		reply := &bond.SwMemberInterfaceDetails{}
		stop, err := stream.ReceiveReply(reply)
		if stop {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dump members of %d: %w", bondIndex, err)
		}
		out = append(out, trimName(reply.InterfaceName))
	}
	return out, nil
}

// LcpPairs dumps pairs with lcp_itf_pair_get. The reply only carries
// indexes, so VPP names are resolved from an interface dump. Older LCP
// plugins lack the call; the CLI is used then.
func (c *Client) LcpPairs(ctx context.Context) ([]models.LcpPair, error) {
	ch, err := c.channel(ctx)
	if err != nil {
		return nil, err
	}
	defer ch.Close()

	stream := ch.SendMultiRequest(&lcp.LcpItfPairGet{Cursor: ^uint32(0)})

	var details []lcp.LcpItfPairDetails
	for {
		reply := &lcp.LcpItfPairDetails{}
		stop, err := stream.ReceiveReply(reply)
		if stop {
			break
		}
		if err != nil {
			if endOfCursorDump(err, &lcp.LcpItfPairGetReply{}) {
				break
			}
			c.logger.Warn("LCP dump failed, falling back to CLI", "error", err)
			return c.cli.LcpPairs(ctx)
		}
		details = append(details, *reply)
	}

	if len(details) == 0 {
		return nil, nil
	}

	names, err := c.interfaceNames(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]models.LcpPair, 0, len(details))
	for _, d := range details {
		phy := uint32(d.PhySwIfIndex)
		result = append(result, models.LcpPair{
			VppInterface:  names[phy],
			HostInterface: trimName(d.HostIfName),
			Namespace:     trimName(d.Netns),
			Tun:           d.HostIfType == lcp.LCP_API_ITF_HOST_TUN,
			PhyIndex:      phy,
			HostIndex:     uint32(d.HostSwIfIndex),
		})
	}

	c.logger.Debug("Dumped LCP pairs", "count", len(result))
	return result, nil
}

// endOfCursorDump reports whether err is the end of a cursor-based "get"
// dump read through SendMultiRequest. govpp's multi-request stream only
// expects details messages followed by its control ping reply, so the
// closing <name>_get_reply that carries the cursor surfaces as an
// unexpected-message error naming that reply.
func endOfCursorDump(err error, reply api.Message) bool {
	return err != nil && strings.Contains(err.Error(), reply.GetMessageName())
}

func (c *Client) interfaceNames(ctx context.Context) (map[uint32]string, error) {
	ch, err := c.channel(ctx)
	if err != nil {
		return nil, err
	}
	defer ch.Close()

	stream := ch.SendMultiRequest(&interfaces.SwInterfaceDump{
		SwIfIndex: interface_types.InterfaceIndex(^uint32(0)),
	})

	names := make(map[uint32]string)
	for {
		reply := &interfaces.SwInterfaceDetails{}
		stop, err := stream.ReceiveReply(reply)
		if stop {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dump interfaces: %w", err)
		}
		names[uint32(reply.SwIfIndex)] = trimName(reply.InterfaceName)
	}
	return names, nil
}

func clampMTU(v uint32) uint16 {
	if v > 0xffff {
		return 0xffff
	}
	return uint16(v)
}

func isZeroMAC(mac net.HardwareAddr) bool {
	for _, b := range mac {
		if b != 0 {
			return false
		}
	}
	return true
}
