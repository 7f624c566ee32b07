package reconciler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/samber/lo"
	"inet.af/netaddr"

	"github.com/veesix-networks/vppifd/pkg/command"
	"github.com/veesix-networks/vppifd/pkg/lcphost"
	"github.com/veesix-networks/vppifd/pkg/models"
	"github.com/veesix-networks/vppifd/pkg/store"
)

// mutate runs fn under the commit lock against a connected device and
// persists the store when fn succeeds.
func (r *Reconciler) mutate(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := r.begin(StateApplyInProgress); err != nil {
		return err
	}
	defer r.end()

	if err := r.load(); err != nil {
		return err
	}
	if err := r.ensureConnected(ctx); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		return err
	}
	r.setState(StateApplied)
	return r.persist()
}

// device runs a command that only changes device-global settings.
func (r *Reconciler) device(ctx context.Context, cmd command.Command) error {
	if err := r.begin(StateApplyInProgress); err != nil {
		return err
	}
	defer r.end()

	if err := r.ensureConnected(ctx); err != nil {
		return err
	}
	_, err := r.run(ctx, cmd)
	return err
}

// CreateBond creates a bond and returns its name.
func (r *Reconciler) CreateBond(ctx context.Context, args command.CreateBondArgs) (string, error) {
	cmd, err := command.CreateBond(args)
	if err != nil {
		return "", err
	}

	var name string
	err = r.mutate(ctx, func(ctx context.Context) error {
		out, err := r.run(ctx, cmd)
		if err != nil {
			return err
		}
		name, err = r.createdBondName(ctx, out, args.ID)
		if err != nil {
			return err
		}

		lb := args.LoadBalance
		if lb == "" {
			lb = models.LoadBalanceL2
		}
		update := store.BondUpdate{Mode: &args.Mode, LoadBalance: &lb}
		if id, err := models.BondIDFromName(name); err == nil {
			update.ID = &id
		}
		if _, err := r.store.UpsertBond(name, update); err != nil {
			return err
		}
		_, err = r.store.UpsertInterface(name, store.InterfaceUpdate{MAC: args.MAC})
		return err
	})
	if err != nil {
		return "", err
	}
	r.logger.Info("Created bond", "name", name, "mode", args.Mode)
	return name, nil
}

// createdBondName takes the name VPP printed, then the requested id, then
// the first bond the device reports that the store does not know.
func (r *Reconciler) createdBondName(ctx context.Context, out string, id *uint32) (string, error) {
	if name := strings.TrimSpace(out); models.IsBondName(name) {
		return name, nil
	}
	if id != nil {
		return models.BondName(*id), nil
	}

	bonds, err := r.readBonds(ctx)
	if err != nil {
		return "", err
	}
	known := lo.Map(r.store.Bonds(), func(b models.Bond, _ int) string { return b.Name })
	for _, b := range bonds {
		if !lo.Contains(known, b.Name) {
			return b.Name, nil
		}
	}
	return "", fmt.Errorf("bond created but not reported by device: %q", out)
}

// DeleteBond removes a bond together with its sub-interfaces and LCP pairs
// from the store.
func (r *Reconciler) DeleteBond(ctx context.Context, name string) error {
	name = models.SanitizeName(name)
	cmd, err := command.DeleteBond(name)
	if err != nil {
		return err
	}
	return r.mutate(ctx, func(ctx context.Context) error {
		if _, err := r.run(ctx, cmd); err != nil {
			return err
		}
		r.store.DeleteBond(name)
		r.forgetInterface(name)
		for _, sub := range r.store.SubInterfaces() {
			if sub.Parent == name {
				r.store.DeleteSubInterface(sub.Name)
				r.forgetInterface(sub.Name)
			}
		}
		r.logger.Info("Deleted bond", "name", name)
		return nil
	})
}

func (r *Reconciler) forgetInterface(name string) {
	r.store.DeleteInterface(name)
	r.store.DeleteLcp(name)
	r.ifaces.Remove(name)
}

// checkMember rejects members that belong to another bond in the store.
func (r *Reconciler) checkMember(bond, member string) error {
	for _, b := range r.store.Bonds() {
		if b.Name != bond && b.HasMember(member) {
			return fmt.Errorf("%w: %s already belongs to %s", store.ErrInvalidMember, member, b.Name)
		}
		if b.Name == member {
			return fmt.Errorf("%w: %s is a bond", store.ErrInvalidMember, member)
		}
	}
	return nil
}

func (r *Reconciler) AddBondMember(ctx context.Context, bond, member string) error {
	bond, member = models.SanitizeName(bond), models.SanitizeName(member)
	cmd, err := command.AddBondMember(bond, member)
	if err != nil {
		return err
	}
	return r.mutate(ctx, func(ctx context.Context) error {
		if err := r.checkMember(bond, member); err != nil {
			return err
		}
		if _, err := r.resolve(ctx, member); err != nil {
			return err
		}
		if _, err := r.run(ctx, cmd); err != nil {
			return err
		}
		err := r.store.AddBondMember(bond, member)
		if errors.Is(err, store.ErrNotFound) {
			if _, err := r.store.UpsertBond(bond, store.BondUpdate{}); err != nil {
				return err
			}
			err = r.store.AddBondMember(bond, member)
		}
		return err
	})
}

func (r *Reconciler) RemoveBondMember(ctx context.Context, bond, member string) error {
	bond, member = models.SanitizeName(bond), models.SanitizeName(member)
	cmd, err := command.RemoveBondMember(bond, member)
	if err != nil {
		return err
	}
	return r.mutate(ctx, func(ctx context.Context) error {
		if _, err := r.run(ctx, cmd); err != nil {
			return err
		}
		if err := r.store.RemoveBondMember(bond, member); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		return nil
	})
}

// CreateSubInterface creates a dot1q sub-interface with exact match on vlan
// and returns its name. The parent must exist on the device.
func (r *Reconciler) CreateSubInterface(ctx context.Context, parent string, vlan uint32) (string, error) {
	parent = models.SanitizeName(parent)
	cmd, err := command.CreateSubInterface(parent, vlan)
	if err != nil {
		return "", err
	}
	name := models.SubInterfaceName(parent, vlan)
	err = r.createSubInterface(ctx, cmd, models.SubInterface{
		Name:   name,
		Parent: parent,
		VlanID: uint16(vlan),
	})
	if err != nil {
		return "", err
	}
	return name, nil
}

// CreateQinQSubInterface creates a dot1ad/dot1q sub-interface named
// parent.subID.
func (r *Reconciler) CreateQinQSubInterface(ctx context.Context, parent string, subID, outer, inner uint32) (string, error) {
	parent = models.SanitizeName(parent)
	cmd, err := command.CreateQinQSubInterface(parent, subID, outer, inner)
	if err != nil {
		return "", err
	}
	name := models.SubInterfaceName(parent, subID)
	err = r.createSubInterface(ctx, cmd, models.SubInterface{
		Name:        name,
		Parent:      parent,
		VlanID:      uint16(outer),
		InnerVlanID: uint16(inner),
	})
	if err != nil {
		return "", err
	}
	return name, nil
}

func (r *Reconciler) createSubInterface(ctx context.Context, cmd command.Command, sub models.SubInterface) error {
	return r.mutate(ctx, func(ctx context.Context) error {
		if _, err := r.resolve(ctx, sub.Parent); err != nil {
			return err
		}
		if _, err := r.run(ctx, cmd); err != nil {
			return err
		}
		if _, err := r.store.UpsertSubInterface(sub.Name, store.SubInterfaceFields(sub)); err != nil {
			return err
		}
		if _, err := r.store.UpsertInterface(sub.Name, store.InterfaceUpdate{}); err != nil {
			return err
		}
		r.logger.Info("Created sub-interface", "name", sub.Name, "vlan", sub.VlanID, "inner_vlan", sub.InnerVlanID)
		return nil
	})
}

func (r *Reconciler) DeleteSubInterface(ctx context.Context, name string) error {
	name = models.SanitizeName(name)
	cmd, err := command.DeleteSubInterface(name)
	if err != nil {
		return err
	}
	return r.mutate(ctx, func(ctx context.Context) error {
		if _, err := r.run(ctx, cmd); err != nil {
			return err
		}
		r.store.DeleteSubInterface(name)
		r.forgetInterface(name)
		return nil
	})
}

// CreateLoopback returns the name VPP assigned to the new loopback.
func (r *Reconciler) CreateLoopback(ctx context.Context, mac net.HardwareAddr) (string, error) {
	cmd := command.CreateLoopback(mac)

	var name string
	err := r.mutate(ctx, func(ctx context.Context) error {
		out, err := r.run(ctx, cmd)
		if err != nil {
			return err
		}
		name = models.SanitizeName(strings.TrimSpace(out))
		_, err = r.store.UpsertInterface(name, store.InterfaceUpdate{MAC: mac})
		return err
	})
	if err != nil {
		return "", err
	}
	r.logger.Info("Created loopback", "name", name)
	return name, nil
}

func (r *Reconciler) DeleteLoopback(ctx context.Context, name string) error {
	name = models.SanitizeName(name)
	cmd, err := command.DeleteLoopback(name)
	if err != nil {
		return err
	}
	return r.mutate(ctx, func(ctx context.Context) error {
		if _, err := r.run(ctx, cmd); err != nil {
			return err
		}
		r.forgetInterface(name)
		return nil
	})
}

// CreateLcp mirrors a VPP interface into Linux. With a host checker
// configured, the call waits for the Linux link to appear; the pair is
// recorded even when that wait fails.
func (r *Reconciler) CreateLcp(ctx context.Context, args command.CreateLcpArgs) error {
	args.VppInterface = models.SanitizeName(args.VppInterface)
	cmd, err := command.CreateLcp(args)
	if err != nil {
		return err
	}

	err = r.mutate(ctx, func(ctx context.Context) error {
		if _, err := r.resolve(ctx, args.VppInterface); err != nil {
			return err
		}
		if _, err := r.run(ctx, cmd); err != nil {
			return err
		}
		_, err := r.store.UpsertLcp(args.VppInterface, store.LcpUpdate{
			HostInterface: &args.HostInterface,
			Namespace:     &args.Namespace,
			Tun:           &args.Tun,
		})
		return err
	})
	if err != nil || r.hosts == nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, r.hostWait)
	defer cancel()
	if err := lcphost.Wait(waitCtx, r.hosts, args.Namespace, args.HostInterface, 0); err != nil {
		r.logger.Warn("LCP host link not found", "vpp_interface", args.VppInterface,
			"host_interface", args.HostInterface, "netns", args.Namespace, "error", err)
		return err
	}
	return nil
}

func (r *Reconciler) DeleteLcp(ctx context.Context, vppInterface string) error {
	vppInterface = models.SanitizeName(vppInterface)
	cmd, err := command.DeleteLcp(vppInterface)
	if err != nil {
		return err
	}
	return r.mutate(ctx, func(ctx context.Context) error {
		if _, err := r.run(ctx, cmd); err != nil {
			return err
		}
		r.store.DeleteLcp(vppInterface)
		return nil
	})
}

// setInterface runs cmd against a resolved interface and applies update to
// its store record.
func (r *Reconciler) setInterface(ctx context.Context, name string, cmd command.Command, update store.InterfaceUpdate) error {
	return r.mutate(ctx, func(ctx context.Context) error {
		idx, err := r.resolve(ctx, name)
		if err != nil {
			return err
		}
		if _, err := r.run(ctx, cmd); err != nil {
			return err
		}
		update.Index = &idx
		_, err = r.store.UpsertInterface(name, update)
		return err
	})
}

func (r *Reconciler) SetInterfaceState(ctx context.Context, name string, up bool) error {
	name = models.SanitizeName(name)
	cmd, err := command.SetAdminState(name, up)
	if err != nil {
		return err
	}
	return r.setInterface(ctx, name, cmd, store.InterfaceUpdate{AdminUp: &up})
}

func (r *Reconciler) SetInterfaceMTU(ctx context.Context, name string, mtu uint32) error {
	name = models.SanitizeName(name)
	cmd, err := command.SetMTU(name, mtu)
	if err != nil {
		return err
	}
	return r.setInterface(ctx, name, cmd, store.InterfaceUpdate{MTU: lo.ToPtr(uint16(mtu))})
}

func (r *Reconciler) SetInterfaceDescription(ctx context.Context, name, description string) error {
	name = models.SanitizeName(name)
	cmd, err := command.SetDescription(name, description)
	if err != nil {
		return err
	}
	return r.setInterface(ctx, name, cmd, store.InterfaceUpdate{Description: &description})
}

func (r *Reconciler) AddAddress(ctx context.Context, name string, prefix netaddr.IPPrefix) error {
	name = models.SanitizeName(name)
	cmd, err := command.AddAddress(name, prefix)
	if err != nil {
		return err
	}
	return r.mutate(ctx, func(ctx context.Context) error {
		idx, err := r.resolve(ctx, name)
		if err != nil {
			return err
		}
		if _, err := r.run(ctx, cmd); err != nil {
			return err
		}
		if _, err := r.store.UpsertInterface(name, store.InterfaceUpdate{Index: &idx}); err != nil {
			return err
		}
		return r.store.AddInterfaceAddress(name, prefix)
	})
}

func (r *Reconciler) DeleteAddress(ctx context.Context, name string, prefix netaddr.IPPrefix) error {
	name = models.SanitizeName(name)
	cmd, err := command.DeleteAddress(name, prefix)
	if err != nil {
		return err
	}
	return r.mutate(ctx, func(ctx context.Context) error {
		if _, err := r.run(ctx, cmd); err != nil {
			return err
		}
		if err := r.store.RemoveInterfaceAddress(name, prefix); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		return nil
	})
}

func (r *Reconciler) SetLcpDefaultNetns(ctx context.Context, namespace string) error {
	cmd, err := command.SetLcpDefaultNetns(namespace)
	if err != nil {
		return err
	}
	return r.device(ctx, cmd)
}

func (r *Reconciler) SetLcpSync(ctx context.Context, enabled bool) error {
	return r.device(ctx, command.SetLcpSync(enabled))
}

func (r *Reconciler) SetLcpAutoSubint(ctx context.Context, enabled bool) error {
	return r.device(ctx, command.SetLcpAutoSubint(enabled))
}

func (r *Reconciler) ListInterfaces() ([]models.Interface, error) {
	if err := r.load(); err != nil {
		return nil, err
	}
	return r.store.Interfaces(), nil
}

func (r *Reconciler) ListBonds() ([]models.Bond, error) {
	if err := r.load(); err != nil {
		return nil, err
	}
	return r.store.Bonds(), nil
}

func (r *Reconciler) ListSubInterfaces() ([]models.SubInterface, error) {
	if err := r.load(); err != nil {
		return nil, err
	}
	return r.store.SubInterfaces(), nil
}

func (r *Reconciler) ListLcpPairs() ([]models.LcpPair, error) {
	if err := r.load(); err != nil {
		return nil, err
	}
	return r.store.LcpPairs(), nil
}

// Exec passes line to the device unchanged and returns its output. It does
// not take the commit lock or touch the store.
func (r *Reconciler) Exec(ctx context.Context, line string) (string, error) {
	cmd, err := command.Raw(line)
	if err != nil {
		return "", err
	}
	if err := r.ensureConnected(ctx); err != nil {
		return "", err
	}
	return r.run(ctx, cmd)
}
