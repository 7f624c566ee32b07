package command

import (
	"net"
	"strings"

	"inet.af/netaddr"

	"github.com/veesix-networks/vppifd/pkg/models"
)

const (
	MinMTU = 64
	MaxMTU = 65535
)

func SetAdminState(name string, up bool) (Command, error) {
	if err := validateName("interface", name); err != nil {
		return Command{}, err
	}
	state := "down"
	if up {
		state = "up"
	}
	return write("set interface state %s %s", name, state), nil
}

func SetMTU(name string, mtu uint32) (Command, error) {
	if err := validateName("interface", name); err != nil {
		return Command{}, err
	}
	if mtu < MinMTU || mtu > MaxMTU {
		return Command{}, invalid("mtu %d out of range %d-%d", mtu, MinMTU, MaxMTU)
	}
	return write("set interface mtu %d %s", mtu, name), nil
}

func SetDescription(name, description string) (Command, error) {
	if err := validateName("interface", name); err != nil {
		return Command{}, err
	}
	description = strings.NewReplacer(`"`, "", "\r", " ", "\n", " ").Replace(description)
	return write(`set interface description %s "%s"`, name, description), nil
}

func ParsePrefix(prefix string) (netaddr.IPPrefix, error) {
	p, err := netaddr.ParseIPPrefix(strings.TrimSpace(prefix))
	if err != nil {
		return netaddr.IPPrefix{}, invalid("address %q: %v", prefix, err)
	}
	return p, nil
}

func AddAddress(name string, prefix netaddr.IPPrefix) (Command, error) {
	if err := validateName("interface", name); err != nil {
		return Command{}, err
	}
	if !prefix.IsValid() {
		return Command{}, invalid("address is not a valid prefix")
	}
	return write("set interface ip address %s %s", name, prefix), nil
}

func DeleteAddress(name string, prefix netaddr.IPPrefix) (Command, error) {
	if err := validateName("interface", name); err != nil {
		return Command{}, err
	}
	if !prefix.IsValid() {
		return Command{}, invalid("address is not a valid prefix")
	}
	return write("set interface ip address del %s %s", name, prefix), nil
}

func validVlan(kind string, id uint32) error {
	if !models.ValidVlanID(id) {
		return invalid("%s %d out of range %d-%d", kind, id, models.MinVlanID, models.MaxVlanID)
	}
	return nil
}

// CreateSubInterface builds an exact-match dot1q sub-interface whose sub-id
// equals the VLAN, so the result is named <parent>.<vlan>.
func CreateSubInterface(parent string, vlan uint32) (Command, error) {
	if err := validateName("parent", parent); err != nil {
		return Command{}, err
	}
	if err := validVlan("vlan", vlan); err != nil {
		return Command{}, err
	}
	return write("create sub-interfaces %s %d dot1q %d exact-match", parent, vlan, vlan), nil
}

func CreateQinQSubInterface(parent string, subID, outer, inner uint32) (Command, error) {
	if err := validateName("parent", parent); err != nil {
		return Command{}, err
	}
	if subID == 0 {
		return Command{}, invalid("sub-interface id must be non-zero")
	}
	if err := validVlan("outer vlan", outer); err != nil {
		return Command{}, err
	}
	if err := validVlan("inner vlan", inner); err != nil {
		return Command{}, err
	}
	return write("create sub-interfaces %s %d dot1ad %d inner-dot1q %d exact-match",
		parent, subID, outer, inner), nil
}

func DeleteSubInterface(name string) (Command, error) {
	if err := validateName("sub-interface", name); err != nil {
		return Command{}, err
	}
	if _, _, err := models.SplitSubInterfaceName(name); err != nil {
		return Command{}, invalid("%v", err)
	}
	return write("delete sub-interface %s", name), nil
}

// CreateLoopback prints the new interface name on success, so the reply must
// be non-empty.
func CreateLoopback(mac net.HardwareAddr) Command {
	if len(mac) > 0 {
		return Command{Line: "create loopback interface mac " + mac.String(), Check: CheckNonEmpty}
	}
	return Command{Line: "create loopback interface", Check: CheckNonEmpty}
}

func ParseMAC(s string) (net.HardwareAddr, error) {
	if s == "" {
		return nil, nil
	}
	mac, err := net.ParseMAC(s)
	if err != nil || len(mac) != 6 {
		return nil, invalid("mac address %q", s)
	}
	return mac, nil
}

func DeleteLoopback(name string) (Command, error) {
	if err := validateName("loopback", name); err != nil {
		return Command{}, err
	}
	if models.InterfaceTypeFromName(name) != models.InterfaceTypeLoopback {
		return Command{}, invalid("%q is not a loopback interface", name)
	}
	return write("delete loopback interface intfc %s", name), nil
}
