package command

import (
	"fmt"
	"net"
	"strings"

	"github.com/veesix-networks/vppifd/pkg/models"
)

type CreateBondArgs struct {
	Mode        models.BondMode
	LoadBalance models.LoadBalance
	MAC         net.HardwareAddr
	// ID is the N in BondEthernetN. Nil lets VPP pick one.
	ID *uint32
}

func CreateBond(args CreateBondArgs) (Command, error) {
	if !args.Mode.Valid() {
		return Command{}, invalid("bond mode %q", args.Mode)
	}
	if args.LoadBalance != "" && !args.LoadBalance.Valid() {
		return Command{}, invalid("load-balance %q", args.LoadBalance)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "create bond mode %s", args.Mode)

	if args.LoadBalance != "" && args.LoadBalance != models.LoadBalanceL2 {
		if !args.Mode.SupportsLoadBalance() {
			return Command{}, invalid("load-balance %s not allowed with mode %s", args.LoadBalance, args.Mode)
		}
		if !args.LoadBalance.Configurable() {
			return Command{}, invalid("load-balance %s cannot be requested", args.LoadBalance)
		}
		fmt.Fprintf(&b, " load-balance %s", args.LoadBalance)
	}
	if len(args.MAC) > 0 {
		fmt.Fprintf(&b, " hw-addr %s", args.MAC)
	}
	if args.ID != nil {
		fmt.Fprintf(&b, " id %d", *args.ID)
	}

	return Command{Line: b.String(), Check: CheckMarkers}, nil
}

func DeleteBond(name string) (Command, error) {
	if !models.IsBondName(name) {
		return Command{}, invalid("bond name %q", name)
	}
	return write("delete bond %s", name), nil
}

func AddBondMember(bond, member string) (Command, error) {
	if !models.IsBondName(bond) {
		return Command{}, invalid("bond name %q", bond)
	}
	if err := validateMember(bond, member); err != nil {
		return Command{}, err
	}
	return write("bond add %s %s", bond, member), nil
}

// RemoveBondMember detaches member from whichever bond holds it; VPP does not
// take the bond name.
func RemoveBondMember(bond, member string) (Command, error) {
	if !models.IsBondName(bond) {
		return Command{}, invalid("bond name %q", bond)
	}
	if err := validateName("member", member); err != nil {
		return Command{}, err
	}
	return write("bond del %s", member), nil
}

func validateMember(bond, member string) error {
	if err := validateName("member", member); err != nil {
		return err
	}
	if member == bond {
		return invalid("bond %s cannot be a member of itself", bond)
	}
	switch models.InterfaceTypeFromName(member) {
	case models.InterfaceTypeBond:
		return invalid("bond %s cannot be a bond member", member)
	case models.InterfaceTypeSubInterface, models.InterfaceTypeLocal:
		return invalid("%s cannot be a bond member", member)
	}
	return nil
}
