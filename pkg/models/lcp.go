package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidSubInterfaceName = errors.New("invalid sub-interface name")

const (
	MinVlanID = 1
	MaxVlanID = 4094
)

type SubInterface struct {
	Name        string `json:"name"`
	Parent      string `json:"parent"`
	VlanID      uint16 `json:"vlan_id"`
	InnerVlanID uint16 `json:"inner_vlan_id,omitempty"`
}

func (s *SubInterface) IsQinQ() bool {
	return s.InnerVlanID != 0
}

func SubInterfaceName(parent string, subID uint32) string {
	return fmt.Sprintf("%s.%d", parent, subID)
}

// SplitSubInterfaceName splits "<parent>.<subid>" on the last dot.
func SplitSubInterfaceName(name string) (string, uint32, error) {
	idx := strings.LastIndex(name, ".")
	if idx <= 0 || idx == len(name)-1 {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidSubInterfaceName, name)
	}
	id, err := strconv.ParseUint(name[idx+1:], 10, 32)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidSubInterfaceName, name)
	}
	return name[:idx], uint32(id), nil
}

func ValidVlanID(id uint32) bool {
	return id >= MinVlanID && id <= MaxVlanID
}

// LcpPair mirrors a VPP interface into Linux. An empty Namespace means the
// default namespace; Tun false means a TAP host interface.
type LcpPair struct {
	VppInterface  string `json:"vpp_interface"`
	HostInterface string `json:"host_interface"`
	Namespace     string `json:"netns,omitempty"`
	Tun           bool   `json:"tun,omitempty"`
	PhyIndex      uint32 `json:"phy_index,omitempty"`
	HostIndex     uint32 `json:"host_index,omitempty"`
}

func (p *LcpPair) HostType() string {
	if p.Tun {
		return "tun"
	}
	return "tap"
}
