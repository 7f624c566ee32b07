package store

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"inet.af/netaddr"

	"github.com/veesix-networks/vppifd/pkg/models"
)

// Namespaces of the on-disk format. They are kept so files written by the
// legacy plugin still load.
const (
	nsInterfaces = "http://example.com/vpp/interfaces"
	nsBonds      = "http://example.com/vpp/bonds"
	nsLcp        = "http://example.com/vpp/lcp"
)

// Serialize renders the store. Zero-valued optional fields are omitted and
// read back as zero.
func (s *Store) Serialize() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return serialize(s.snapshotLocked())
}

func serialize(snap Snapshot) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("config")

	ifs := root.CreateElement("interfaces")
	ifs.CreateAttr("xmlns", nsInterfaces)
	for _, i := range snap.Interfaces {
		writeInterface(ifs.CreateElement("interface"), i)
	}

	bonds := root.CreateElement("bonds")
	bonds.CreateAttr("xmlns", nsBonds)
	for _, b := range snap.Bonds {
		writeBond(bonds.CreateElement("bond"), b)
	}

	lcps := root.CreateElement("lcps")
	lcps.CreateAttr("xmlns", nsLcp)
	for _, p := range snap.LcpPairs {
		writeLcp(lcps.CreateElement("lcp"), p)
	}

	subs := root.CreateElement("subinterfaces")
	subs.CreateAttr("xmlns", nsInterfaces)
	for _, sub := range snap.SubInterfaces {
		writeSubInterface(subs.CreateElement("subinterface"), sub)
	}

	doc.Indent(2)
	return doc.WriteToBytes()
}

func leaf(parent *etree.Element, tag, value string) {
	if value == "" {
		return
	}
	parent.CreateElement(tag).SetText(value)
}

func leafUint(parent *etree.Element, tag string, v uint64) {
	if v == 0 {
		return
	}
	leaf(parent, tag, strconv.FormatUint(v, 10))
}

func leafBool(parent *etree.Element, tag string, v bool) {
	if v {
		leaf(parent, tag, "true")
	}
}

func writeInterface(e *etree.Element, i models.Interface) {
	leaf(e, "name", i.Name)
	leafUint(e, "if-index", uint64(i.Index))
	leaf(e, "type", string(i.Type))
	leafBool(e, "enabled", i.AdminUp)
	leafBool(e, "link-up", i.LinkUp)
	leafUint(e, "mtu", uint64(i.MTU))
	if len(i.MAC) > 0 {
		leaf(e, "mac-address", i.MAC.String())
	}
	leaf(e, "description", i.Description)
	for _, p := range i.IPv4 {
		writeAddress(e.CreateElement("ipv4-address"), p)
	}
	for _, p := range i.IPv6 {
		writeAddress(e.CreateElement("ipv6-address"), p)
	}
}

func writeAddress(e *etree.Element, p netaddr.IPPrefix) {
	leaf(e, "address", p.IP().String())
	leaf(e, "prefix-length", strconv.Itoa(int(p.Bits())))
}

func writeBond(e *etree.Element, b models.Bond) {
	leaf(e, "name", b.Name)
	// id 0 is meaningful (BondEthernet0), so it is always written.
	leaf(e, "id", strconv.FormatUint(uint64(b.ID), 10))
	leafUint(e, "if-index", uint64(b.Index))
	leaf(e, "mode", string(b.Mode))
	leaf(e, "load-balance", string(b.LoadBalance))
	leafUint(e, "member-count", uint64(b.MemberCount))
	leafUint(e, "active-member-count", uint64(b.ActiveMemberCount))
	leaf(e, "members", strings.Join(b.Members, ","))
}

func writeLcp(e *etree.Element, p models.LcpPair) {
	leaf(e, "vpp-interface", p.VppInterface)
	leaf(e, "host-interface", p.HostInterface)
	leaf(e, "netns", p.Namespace)
	leafBool(e, "tun", p.Tun)
	leafUint(e, "phy-index", uint64(p.PhyIndex))
	leafUint(e, "host-index", uint64(p.HostIndex))
}

func writeSubInterface(e *etree.Element, sub models.SubInterface) {
	leaf(e, "name", sub.Name)
	leaf(e, "parent", sub.Parent)
	leafUint(e, "vlan-id", uint64(sub.VlanID))
	leafUint(e, "inner-vlan-id", uint64(sub.InnerVlanID))
}

// Deserialize replaces the store content with data. Malformed fields are
// skipped; only an unreadable document is an error.
func (s *Store) Deserialize(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deserializeLocked(data)
}

func (s *Store) deserializeLocked(data []byte) error {
	snap, err := deserialize(data)
	if err != nil {
		return err
	}

	s.clearLocked()
	for _, i := range snap.Interfaces {
		if _, err := s.upsertInterfaceLocked(i.Name, InterfaceFields(i)); err != nil {
			s.logger.Warn("Skipping persisted interface", "name", i.Name, "error", err)
		}
	}
	for _, b := range snap.Bonds {
		if _, err := s.upsertBondLocked(b.Name, s.validBondLocked(b)); err != nil {
			s.logger.Warn("Skipping persisted bond", "name", b.Name, "error", err)
		}
	}
	for _, sub := range snap.SubInterfaces {
		if _, err := s.upsertSubInterfaceLocked(sub.Name, SubInterfaceFields(sub)); err != nil {
			s.logger.Warn("Skipping persisted sub-interface", "name", sub.Name, "error", err)
		}
	}
	for _, p := range snap.LcpPairs {
		if _, err := s.upsertLcpLocked(p.VppInterface, LcpFields(p)); err != nil {
			s.logger.Warn("Skipping persisted LCP pair", "name", p.VppInterface, "error", err)
		}
	}
	return nil
}

func deserialize(data []byte) (Snapshot, error) {
	var snap Snapshot

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return snap, fmt.Errorf("read xml: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return snap, nil
	}
	if root.Tag != "config" {
		return snap, fmt.Errorf("unexpected root element %q", root.Tag)
	}

	for _, e := range root.FindElements("./interfaces/interface") {
		if i, ok := readInterface(e); ok {
			snap.Interfaces = append(snap.Interfaces, i)
		}
	}
	for _, e := range root.FindElements("./bonds/bond") {
		if b, ok := readBond(e); ok {
			snap.Bonds = append(snap.Bonds, b)
		}
	}
	for _, e := range root.FindElements("./lcps/lcp") {
		if p, ok := readLcp(e); ok {
			snap.LcpPairs = append(snap.LcpPairs, p)
		}
	}
	for _, e := range root.FindElements("./subinterfaces/subinterface") {
		if sub, ok := readSubInterface(e); ok {
			snap.SubInterfaces = append(snap.SubInterfaces, sub)
		}
	}
	return snap, nil
}

func text(e *etree.Element, tag string) string {
	c := e.SelectElement(tag)
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Text())
}

func uintText(e *etree.Element, tag string, bits int) uint64 {
	v, err := strconv.ParseUint(text(e, tag), 10, bits)
	if err != nil {
		return 0
	}
	return v
}

func readInterface(e *etree.Element) (models.Interface, bool) {
	name := models.SanitizeName(text(e, "name"))
	if name == "" {
		return models.Interface{}, false
	}

	i := models.Interface{
		Name:        name,
		Index:       uint32(uintText(e, "if-index", 32)),
		AdminUp:     text(e, "enabled") == "true",
		LinkUp:      text(e, "link-up") == "true",
		MTU:         uint16(uintText(e, "mtu", 16)),
		Description: text(e, "description"),
	}
	if t, err := models.ParseInterfaceType(text(e, "type")); err == nil {
		i.Type = t
	}
	if mac, err := net.ParseMAC(text(e, "mac-address")); err == nil {
		i.MAC = mac
	}
	for _, a := range e.SelectElements("ipv4-address") {
		if p, ok := readAddress(a); ok {
			i.AddAddress(p)
		}
	}
	for _, a := range e.SelectElements("ipv6-address") {
		if p, ok := readAddress(a); ok {
			i.AddAddress(p)
		}
	}
	return i, true
}

// readAddress drops entries without a prefix length.
func readAddress(e *etree.Element) (netaddr.IPPrefix, bool) {
	ip, err := netaddr.ParseIP(text(e, "address"))
	if err != nil {
		return netaddr.IPPrefix{}, false
	}
	bits, err := strconv.ParseUint(text(e, "prefix-length"), 10, 8)
	if err != nil {
		return netaddr.IPPrefix{}, false
	}
	p := netaddr.IPPrefixFrom(ip, uint8(bits))
	if !p.IsValid() {
		return netaddr.IPPrefix{}, false
	}
	return p, true
}

func readBond(e *etree.Element) (models.Bond, bool) {
	name := models.SanitizeName(text(e, "name"))
	if name == "" {
		return models.Bond{}, false
	}

	b := models.Bond{
		Name:              name,
		ID:                uint32(uintText(e, "id", 32)),
		Index:             uint32(uintText(e, "if-index", 32)),
		MemberCount:       uint32(uintText(e, "member-count", 32)),
		ActiveMemberCount: uint32(uintText(e, "active-member-count", 32)),
	}
	if m, err := models.ParseBondMode(text(e, "mode")); err == nil {
		b.Mode = m
	}
	if lb, err := models.ParseLoadBalance(text(e, "load-balance")); err == nil {
		b.LoadBalance = lb
	}
	if members := text(e, "members"); members != "" {
		for _, m := range strings.Split(members, ",") {
			if m = strings.TrimSpace(m); m != "" {
				b.Members = append(b.Members, m)
			}
		}
	}
	return b, true
}

func readLcp(e *etree.Element) (models.LcpPair, bool) {
	name := models.SanitizeName(text(e, "vpp-interface"))
	if name == "" {
		return models.LcpPair{}, false
	}
	return models.LcpPair{
		VppInterface:  name,
		HostInterface: text(e, "host-interface"),
		Namespace:     text(e, "netns"),
		Tun:           text(e, "tun") == "true",
		PhyIndex:      uint32(uintText(e, "phy-index", 32)),
		HostIndex:     uint32(uintText(e, "host-index", 32)),
	}, true
}

func readSubInterface(e *etree.Element) (models.SubInterface, bool) {
	name := models.SanitizeName(text(e, "name"))
	if name == "" {
		return models.SubInterface{}, false
	}
	return models.SubInterface{
		Name:        name,
		Parent:      text(e, "parent"),
		VlanID:      uint16(uintText(e, "vlan-id", 16)),
		InnerVlanID: uint16(uintText(e, "inner-vlan-id", 16)),
	}, true
}
