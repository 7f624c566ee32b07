// Package store holds the last-known-applied interface configuration and
// persists it as XML.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/samber/lo"
	"inet.af/netaddr"

	"github.com/veesix-networks/vppifd/pkg/logger"
	"github.com/veesix-networks/vppifd/pkg/models"
)

const DefaultPath = "/var/lib/vppifd/vpp_config.xml"

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidName   = errors.New("invalid name")
	ErrInvalidMember = errors.New("invalid bond member")
	ErrInvalidRecord = errors.New("invalid record")
)

// Store owns one table per entity kind. It is safe for concurrent use;
// lists return copies.
type Store struct {
	mu     sync.RWMutex
	path   string
	loaded bool
	logger *slog.Logger

	interfaces    *table[models.Interface]
	bonds         *table[models.Bond]
	subInterfaces *table[models.SubInterface]
	lcps          *table[models.LcpPair]
}

func New(path string) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{
		path:          path,
		logger:        logger.Get(logger.Store),
		interfaces:    newTable[models.Interface](),
		bonds:         newTable[models.Bond](),
		subInterfaces: newTable[models.SubInterface](),
		lcps:          newTable[models.LcpPair](),
	}
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Load reads the persisted file once. Later calls are no-ops, and a missing
// file leaves the store empty.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.loaded = true
		s.logger.Debug("No persisted configuration", "path", s.path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", s.path, err)
	}

	if err := s.deserializeLocked(data); err != nil {
		return fmt.Errorf("parse %s: %w", s.path, err)
	}
	s.loaded = true

	s.logger.Info("Loaded configuration", "path", s.path,
		"interfaces", s.interfaces.len(),
		"bonds", s.bonds.len(),
		"subinterfaces", s.subInterfaces.len(),
		"lcps", s.lcps.len())
	return nil
}

func (s *Store) clearLocked() {
	s.interfaces = newTable[models.Interface]()
	s.bonds = newTable[models.Bond]()
	s.subInterfaces = newTable[models.SubInterface]()
	s.lcps = newTable[models.LcpPair]()
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

type Snapshot struct {
	Interfaces    []models.Interface
	Bonds         []models.Bond
	SubInterfaces []models.SubInterface
	LcpPairs      []models.LcpPair
}

// Replace discards the current content and installs snap. Records that fail
// validation are skipped and logged. The store counts as loaded afterwards,
// so a later Load does not overwrite it with the file.
func (s *Store) Replace(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loaded = true
	s.clearLocked()
	for _, i := range snap.Interfaces {
		if _, err := s.upsertInterfaceLocked(i.Name, InterfaceFields(i)); err != nil {
			s.logger.Warn("Skipping interface", "name", i.Name, "error", err)
		}
	}
	for _, b := range snap.Bonds {
		if _, err := s.upsertBondLocked(b.Name, s.validBondLocked(b)); err != nil {
			s.logger.Warn("Skipping bond", "name", b.Name, "error", err)
		}
	}
	for _, sub := range snap.SubInterfaces {
		if _, err := s.upsertSubInterfaceLocked(sub.Name, SubInterfaceFields(sub)); err != nil {
			s.logger.Warn("Skipping sub-interface", "name", sub.Name, "error", err)
		}
	}
	for _, p := range snap.LcpPairs {
		if _, err := s.upsertLcpLocked(p.VppInterface, LcpFields(p)); err != nil {
			s.logger.Warn("Skipping LCP pair", "name", p.VppInterface, "error", err)
		}
	}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Interfaces:    s.interfaces.list(models.Interface.Clone),
		Bonds:         s.bonds.list(models.Bond.Clone),
		SubInterfaces: s.subInterfaces.list(identity[models.SubInterface]),
		LcpPairs:      s.lcps.list(identity[models.LcpPair]),
	}
}

func identity[T any](v T) T { return v }

func (s *Store) Interfaces() []models.Interface {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.interfaces.list(models.Interface.Clone)
}

func (s *Store) Bonds() []models.Bond {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bonds.list(models.Bond.Clone)
}

func (s *Store) SubInterfaces() []models.SubInterface {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subInterfaces.list(identity[models.SubInterface])
}

func (s *Store) LcpPairs() []models.LcpPair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lcps.list(identity[models.LcpPair])
}

func (s *Store) Interface(name string) (models.Interface, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.interfaces.get(models.SanitizeName(name))
	if !ok {
		return models.Interface{}, false
	}
	return i.Clone(), true
}

func (s *Store) Bond(name string) (models.Bond, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bonds.get(models.SanitizeName(name))
	if !ok {
		return models.Bond{}, false
	}
	return b.Clone(), true
}

// Counts reports the number of records per entity kind.
func (s *Store) Counts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]int{
		"interface":    s.interfaces.len(),
		"bond":         s.bonds.len(),
		"subinterface": s.subInterfaces.len(),
		"lcp":          s.lcps.len(),
	}
}

func sanitize(name string) (string, error) {
	n := models.SanitizeName(name)
	if n == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return n, nil
}

// InterfaceUpdate carries the fields to overwrite. Nil fields are left
// untouched; address slices replace the whole family when non-nil.
type InterfaceUpdate struct {
	Index       *uint32
	AdminUp     *bool
	LinkUp      *bool
	MTU         *uint16
	Type        *models.InterfaceType
	MAC         net.HardwareAddr
	Description *string
	IPv4        []netaddr.IPPrefix
	IPv6        []netaddr.IPPrefix
}

// InterfaceFields builds an update that sets every field of i.
func InterfaceFields(i models.Interface) InterfaceUpdate {
	u := InterfaceUpdate{
		Index:       &i.Index,
		AdminUp:     &i.AdminUp,
		LinkUp:      &i.LinkUp,
		MTU:         &i.MTU,
		MAC:         i.MAC,
		Description: &i.Description,
		IPv4:        i.IPv4,
		IPv6:        i.IPv6,
	}
	if i.Type != "" {
		u.Type = &i.Type
	}
	return u
}

func (s *Store) UpsertInterface(name string, u InterfaceUpdate) (models.Interface, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertInterfaceLocked(name, u)
}

func (s *Store) upsertInterfaceLocked(name string, u InterfaceUpdate) (models.Interface, error) {
	name, err := sanitize(name)
	if err != nil {
		return models.Interface{}, err
	}

	rec, created := s.interfaces.getOrCreate(name)
	if created {
		rec.Name = name
		rec.Type = models.InterfaceTypeFromName(name)
	}
	if u.Index != nil {
		rec.Index = *u.Index
	}
	if u.AdminUp != nil {
		rec.AdminUp = *u.AdminUp
	}
	if u.LinkUp != nil {
		rec.LinkUp = *u.LinkUp
	}
	if u.MTU != nil {
		rec.MTU = *u.MTU
	}
	if u.Type != nil {
		rec.Type = *u.Type
	}
	if u.MAC != nil {
		rec.MAC = append(net.HardwareAddr(nil), u.MAC...)
	}
	if u.Description != nil {
		rec.Description = *u.Description
	}
	if u.IPv4 != nil {
		rec.IPv4 = nil
		for _, p := range u.IPv4 {
			rec.AddAddress(p)
		}
	}
	if u.IPv6 != nil {
		rec.IPv6 = nil
		for _, p := range u.IPv6 {
			rec.AddAddress(p)
		}
	}
	return rec.Clone(), nil
}

// AddInterfaceAddress records p on an existing interface.
func (s *Store) AddInterfaceAddress(name string, p netaddr.IPPrefix) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.interfaces.get(models.SanitizeName(name))
	if !ok {
		return fmt.Errorf("interface %s: %w", name, ErrNotFound)
	}
	rec.AddAddress(p)
	return nil
}

func (s *Store) RemoveInterfaceAddress(name string, p netaddr.IPPrefix) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.interfaces.get(models.SanitizeName(name))
	if !ok {
		return fmt.Errorf("interface %s: %w", name, ErrNotFound)
	}
	rec.RemoveAddress(p)
	return nil
}

func (s *Store) DeleteInterface(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interfaces.delete(models.SanitizeName(name))
}

type BondUpdate struct {
	ID                *uint32
	Index             *uint32
	Mode              *models.BondMode
	LoadBalance       *models.LoadBalance
	MemberCount       *uint32
	ActiveMemberCount *uint32
	// Members replaces the member set when non-nil.
	Members []string
}

func BondFields(b models.Bond) BondUpdate {
	u := BondUpdate{
		ID:                &b.ID,
		Index:             &b.Index,
		MemberCount:       &b.MemberCount,
		ActiveMemberCount: &b.ActiveMemberCount,
		Members:           b.Members,
	}
	if b.Mode != "" {
		u.Mode = &b.Mode
	}
	if b.LoadBalance != "" {
		u.LoadBalance = &b.LoadBalance
	}
	return u
}

func (s *Store) UpsertBond(name string, u BondUpdate) (models.Bond, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertBondLocked(name, u)
}

func (s *Store) upsertBondLocked(name string, u BondUpdate) (models.Bond, error) {
	name, err := sanitize(name)
	if err != nil {
		return models.Bond{}, err
	}
	id, err := models.BondIDFromName(name)
	if err != nil {
		return models.Bond{}, fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	if u.Mode != nil && !u.Mode.Valid() {
		return models.Bond{}, fmt.Errorf("%w: %s", models.ErrInvalidBondMode, *u.Mode)
	}
	if u.LoadBalance != nil && !u.LoadBalance.Valid() {
		return models.Bond{}, fmt.Errorf("%w: %s", models.ErrInvalidLoadBalance, *u.LoadBalance)
	}

	var members []string
	if u.Members != nil {
		members = make([]string, 0, len(u.Members))
		for _, m := range u.Members {
			m = models.SanitizeName(m)
			if lo.Contains(members, m) {
				continue
			}
			if err := s.checkMemberLocked(name, m); err != nil {
				return models.Bond{}, err
			}
			members = append(members, m)
		}
	}

	rec, created := s.bonds.getOrCreate(name)
	if created {
		rec.Name = name
		rec.ID = id
		rec.Mode = models.BondModeLACP
		rec.LoadBalance = models.LoadBalanceL2
	}
	if u.ID != nil {
		rec.ID = *u.ID
	}
	if u.Index != nil {
		rec.Index = *u.Index
	}
	if u.Mode != nil {
		rec.Mode = *u.Mode
	}
	if u.LoadBalance != nil {
		rec.LoadBalance = *u.LoadBalance
	}
	if u.MemberCount != nil {
		rec.MemberCount = *u.MemberCount
	}
	if u.ActiveMemberCount != nil {
		rec.ActiveMemberCount = *u.ActiveMemberCount
	}
	if u.Members != nil {
		rec.Members = members
		rec.MemberCount = uint32(len(members))
	}
	return rec.Clone(), nil
}

// checkMemberLocked enforces the membership rules: a member is a non-empty
// name, never a bond, and belongs to at most one bond.
func (s *Store) checkMemberLocked(bondName, member string) error {
	if member == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidMember)
	}
	if member == bondName || models.IsBondName(member) {
		return fmt.Errorf("%w: %s is a bond", ErrInvalidMember, member)
	}
	if _, isBond := s.bonds.get(member); isBond {
		return fmt.Errorf("%w: %s is a bond", ErrInvalidMember, member)
	}

	var owner string
	s.bonds.each(func(name string, b *models.Bond) {
		if name != bondName && b.HasMember(member) {
			owner = name
		}
	})
	if owner != "" {
		return fmt.Errorf("%w: %s already belongs to %s", ErrInvalidMember, member, owner)
	}
	return nil
}

// validBondLocked drops the members of b that break the membership rules,
// logging each one, so that a bulk load keeps the rest of the bond.
func (s *Store) validBondLocked(b models.Bond) BondUpdate {
	u := BondFields(b)
	if u.Members == nil {
		return u
	}
	name := models.SanitizeName(b.Name)
	members := make([]string, 0, len(u.Members))
	for _, m := range u.Members {
		m = models.SanitizeName(m)
		if lo.Contains(members, m) {
			continue
		}
		if err := s.checkMemberLocked(name, m); err != nil {
			s.logger.Warn("Skipping bond member", "bond", name, "member", m, "error", err)
			continue
		}
		members = append(members, m)
	}
	u.Members = members
	return u
}

// AddBondMember appends member to an existing bond. Adding a member twice is
// a no-op. A bond cannot be a member, and an interface can belong to only
// one bond.
func (s *Store) AddBondMember(bondName, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bondName = models.SanitizeName(bondName)
	member = models.SanitizeName(member)

	rec, ok := s.bonds.get(bondName)
	if !ok {
		return fmt.Errorf("bond %s: %w", bondName, ErrNotFound)
	}
	if err := s.checkMemberLocked(bondName, member); err != nil {
		return err
	}

	if rec.HasMember(member) {
		return nil
	}
	rec.Members = append(rec.Members, member)
	rec.MemberCount = uint32(len(rec.Members))
	return nil
}

func (s *Store) RemoveBondMember(bondName, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.bonds.get(models.SanitizeName(bondName))
	if !ok {
		return fmt.Errorf("bond %s: %w", bondName, ErrNotFound)
	}
	member = models.SanitizeName(member)
	out := rec.Members[:0]
	for _, m := range rec.Members {
		if m != member {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		out = nil
	}
	rec.Members = out
	rec.MemberCount = uint32(len(rec.Members))
	return nil
}

func (s *Store) DeleteBond(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bonds.delete(models.SanitizeName(name))
}

type SubInterfaceUpdate struct {
	Parent      *string
	VlanID      *uint16
	InnerVlanID *uint16
}

func SubInterfaceFields(sub models.SubInterface) SubInterfaceUpdate {
	return SubInterfaceUpdate{
		Parent:      &sub.Parent,
		VlanID:      &sub.VlanID,
		InnerVlanID: &sub.InnerVlanID,
	}
}

func (s *Store) UpsertSubInterface(name string, u SubInterfaceUpdate) (models.SubInterface, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertSubInterfaceLocked(name, u)
}

func (s *Store) upsertSubInterfaceLocked(name string, u SubInterfaceUpdate) (models.SubInterface, error) {
	name, err := sanitize(name)
	if err != nil {
		return models.SubInterface{}, err
	}

	var next models.SubInterface
	if rec, ok := s.subInterfaces.get(name); ok {
		next = *rec
	} else {
		next.Name = name
	}
	if u.Parent != nil {
		next.Parent = models.SanitizeName(*u.Parent)
	}
	if u.VlanID != nil {
		next.VlanID = *u.VlanID
	}
	if u.InnerVlanID != nil {
		next.InnerVlanID = *u.InnerVlanID
	}

	if next.Parent == "" {
		return models.SubInterface{}, fmt.Errorf("%w: sub-interface %s has no parent", ErrInvalidRecord, name)
	}
	if next.Parent == name {
		return models.SubInterface{}, fmt.Errorf("%w: sub-interface %s is its own parent", ErrInvalidRecord, name)
	}
	if !models.ValidVlanID(uint32(next.VlanID)) {
		return models.SubInterface{}, fmt.Errorf("%w: sub-interface %s vlan %d", ErrInvalidRecord, name, next.VlanID)
	}
	if next.InnerVlanID != 0 && !models.ValidVlanID(uint32(next.InnerVlanID)) {
		return models.SubInterface{}, fmt.Errorf("%w: sub-interface %s inner vlan %d", ErrInvalidRecord, name, next.InnerVlanID)
	}

	rec, _ := s.subInterfaces.getOrCreate(name)
	*rec = next
	return next, nil
}

func (s *Store) DeleteSubInterface(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subInterfaces.delete(models.SanitizeName(name))
}

type LcpUpdate struct {
	HostInterface *string
	Namespace     *string
	Tun           *bool
	PhyIndex      *uint32
	HostIndex     *uint32
}

func LcpFields(p models.LcpPair) LcpUpdate {
	return LcpUpdate{
		HostInterface: &p.HostInterface,
		Namespace:     &p.Namespace,
		Tun:           &p.Tun,
		PhyIndex:      &p.PhyIndex,
		HostIndex:     &p.HostIndex,
	}
}

func (s *Store) UpsertLcp(vppInterface string, u LcpUpdate) (models.LcpPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertLcpLocked(vppInterface, u)
}

func (s *Store) upsertLcpLocked(vppInterface string, u LcpUpdate) (models.LcpPair, error) {
	name, err := sanitize(vppInterface)
	if err != nil {
		return models.LcpPair{}, err
	}

	rec, created := s.lcps.getOrCreate(name)
	if created {
		rec.VppInterface = name
	}
	if u.HostInterface != nil {
		rec.HostInterface = models.SanitizeName(*u.HostInterface)
	}
	if u.Namespace != nil {
		rec.Namespace = *u.Namespace
	}
	if u.Tun != nil {
		rec.Tun = *u.Tun
	}
	if u.PhyIndex != nil {
		rec.PhyIndex = *u.PhyIndex
	}
	if u.HostIndex != nil {
		rec.HostIndex = *u.HostIndex
	}
	return *rec, nil
}

func (s *Store) DeleteLcp(vppInterface string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lcps.delete(models.SanitizeName(vppInterface))
}
