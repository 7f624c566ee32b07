package models

import (
	"fmt"
	"strconv"
	"strings"
)

const BondNamePrefix = "BondEthernet"

type BondMode string

const (
	BondModeRoundRobin   BondMode = "round-robin"
	BondModeActiveBackup BondMode = "active-backup"
	BondModeXOR          BondMode = "xor"
	BondModeBroadcast    BondMode = "broadcast"
	BondModeLACP         BondMode = "lacp"
)

var bondModes = []BondMode{
	BondModeRoundRobin,
	BondModeActiveBackup,
	BondModeXOR,
	BondModeBroadcast,
	BondModeLACP,
}

func (m BondMode) Valid() bool {
	for _, v := range bondModes {
		if m == v {
			return true
		}
	}
	return false
}

// SupportsLoadBalance reports whether VPP accepts a load-balance argument
// for the mode.
func (m BondMode) SupportsLoadBalance() bool {
	return m == BondModeLACP || m == BondModeXOR
}

func ParseBondMode(s string) (BondMode, error) {
	m := BondMode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidBondMode, s)
	}
	return m, nil
}

type LoadBalance string

const (
	LoadBalanceL2  LoadBalance = "l2"
	LoadBalanceL34 LoadBalance = "l34"
	LoadBalanceL23 LoadBalance = "l23"
	LoadBalanceRR  LoadBalance = "rr"
	LoadBalanceBC  LoadBalance = "bc"
	LoadBalanceAB  LoadBalance = "ab"
)

var loadBalances = []LoadBalance{
	LoadBalanceL2,
	LoadBalanceL34,
	LoadBalanceL23,
	LoadBalanceRR,
	LoadBalanceBC,
	LoadBalanceAB,
}

func (l LoadBalance) Valid() bool {
	for _, v := range loadBalances {
		if l == v {
			return true
		}
	}
	return false
}

// Configurable reports whether the algorithm can be requested at creation.
// rr, bc and ab are implied by the bond mode and only ever reported back.
func (l LoadBalance) Configurable() bool {
	return l == LoadBalanceL2 || l == LoadBalanceL23 || l == LoadBalanceL34
}

func ParseLoadBalance(s string) (LoadBalance, error) {
	l := LoadBalance(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidLoadBalance, s)
	}
	return l, nil
}

type Bond struct {
	Name              string      `json:"name"`
	ID                uint32      `json:"id"`
	Index             uint32      `json:"index,omitempty"`
	Mode              BondMode    `json:"mode"`
	LoadBalance       LoadBalance `json:"load_balance"`
	MemberCount       uint32      `json:"member_count"`
	ActiveMemberCount uint32      `json:"active_member_count"`
	Members           []string    `json:"members,omitempty"`
}

func (b *Bond) HasMember(name string) bool {
	for _, m := range b.Members {
		if m == name {
			return true
		}
	}
	return false
}

func (b Bond) Clone() Bond {
	if b.Members != nil {
		b.Members = append([]string(nil), b.Members...)
	}
	return b
}

func BondName(id uint32) string {
	return fmt.Sprintf("%s%d", BondNamePrefix, id)
}

// BondIDFromName extracts N from BondEthernetN.
func BondIDFromName(name string) (uint32, error) {
	if !strings.HasPrefix(name, BondNamePrefix) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidBondName, name)
	}
	id, err := strconv.ParseUint(name[len(BondNamePrefix):], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidBondName, name)
	}
	return uint32(id), nil
}

func IsBondName(name string) bool {
	_, err := BondIDFromName(name)
	return err == nil
}
