package main

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/veesix-networks/vppifd/pkg/command"
	"github.com/veesix-networks/vppifd/pkg/models"
)

func parseUint32(name, s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a number", command.ErrValidation, name, s)
	}
	return uint32(v), nil
}

func bondArgs(mode, lb, mac, id string) (command.CreateBondArgs, error) {
	bm, err := models.ParseBondMode(mode)
	if err != nil {
		return command.CreateBondArgs{}, fmt.Errorf("%w: %v", command.ErrValidation, err)
	}
	args := command.CreateBondArgs{Mode: bm}
	if lb != "" {
		if args.LoadBalance, err = models.ParseLoadBalance(lb); err != nil {
			return command.CreateBondArgs{}, fmt.Errorf("%w: %v", command.ErrValidation, err)
		}
	}
	if mac != "" {
		if args.MAC, err = command.ParseMAC(mac); err != nil {
			return command.CreateBondArgs{}, err
		}
	}
	if id != "" {
		n, err := parseUint32("id", id)
		if err != nil {
			return command.CreateBondArgs{}, err
		}
		args.ID = lo.ToPtr(n)
	}
	return args, nil
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "enable", "true":
		return true, nil
	case "off", "disable", "false":
		return false, nil
	}
	return false, fmt.Errorf("%w: expected on or off, got %q", command.ErrValidation, s)
}

func parseUpDown(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "up":
		return true, nil
	case "down":
		return false, nil
	}
	return false, fmt.Errorf("%w: expected up or down, got %q", command.ErrValidation, s)
}

func done(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format+"\n", args...)
}

func bondCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bond",
		Short: "Manage bond interfaces",
	}

	var mode, lb, mac, id string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a bond",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bargs, err := bondArgs(mode, lb, mac, id)
			if err != nil {
				return err
			}
			name, err := a.rec.CreateBond(cmd.Context(), bargs)
			if err != nil {
				return err
			}
			done(cmd, "Created %s", name)
			return nil
		},
	}
	create.Flags().StringVar(&mode, "mode", string(models.BondModeLACP), "Bond mode: round-robin, active-backup, xor, broadcast, lacp")
	create.Flags().StringVar(&lb, "load-balance", "", "Hash policy for lacp and xor: l2, l23, l34")
	create.Flags().StringVar(&mac, "mac", "", "Hardware address")
	create.Flags().StringVar(&id, "id", "", "Bond instance N in BondEthernetN")

	del := &cobra.Command{
		Use:   "delete <bond>",
		Short: "Delete a bond",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.rec.DeleteBond(cmd.Context(), args[0]); err != nil {
				return err
			}
			done(cmd, "Deleted %s", args[0])
			return nil
		},
	}

	add := &cobra.Command{
		Use:   "add-member <bond> <interface>",
		Short: "Add a member to a bond",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.rec.AddBondMember(cmd.Context(), args[0], args[1])
		},
	}

	remove := &cobra.Command{
		Use:   "remove-member <bond> <interface>",
		Short: "Remove a member from a bond",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.rec.RemoveBondMember(cmd.Context(), args[0], args[1])
		},
	}

	cmd.AddCommand(create, del, add, remove)
	return cmd
}

func subifCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "subif",
		Aliases: []string{"sub-interface"},
		Short:   "Manage VLAN sub-interfaces",
	}

	var outer, inner uint32
	create := &cobra.Command{
		Use:   "create <parent> <vlan|sub-id>",
		Short: "Create a dot1q sub-interface, or a QinQ one with --inner",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUint32("vlan", args[1])
			if err != nil {
				return err
			}
			var name string
			if inner != 0 {
				if outer == 0 {
					outer = id
				}
				name, err = a.rec.CreateQinQSubInterface(cmd.Context(), args[0], id, outer, inner)
			} else {
				name, err = a.rec.CreateSubInterface(cmd.Context(), args[0], id)
			}
			if err != nil {
				return err
			}
			done(cmd, "Created %s", name)
			return nil
		},
	}
	create.Flags().Uint32Var(&outer, "outer", 0, "Outer dot1ad tag, defaults to the sub-id")
	create.Flags().Uint32Var(&inner, "inner", 0, "Inner dot1q tag")

	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a sub-interface",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.rec.DeleteSubInterface(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(create, del)
	return cmd
}

func loopbackCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loopback",
		Short: "Manage loopback interfaces",
	}

	var mac string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a loopback interface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var hw net.HardwareAddr
			if mac != "" {
				var err error
				if hw, err = command.ParseMAC(mac); err != nil {
					return err
				}
			}
			name, err := a.rec.CreateLoopback(cmd.Context(), hw)
			if err != nil {
				return err
			}
			done(cmd, "Created %s", name)
			return nil
		},
	}
	create.Flags().StringVar(&mac, "mac", "", "Hardware address")

	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a loopback interface",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.rec.DeleteLoopback(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(create, del)
	return cmd
}

func lcpCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lcp",
		Short: "Manage Linux control plane pairs",
	}

	var (
		netns string
		tun   bool
	)
	create := &cobra.Command{
		Use:   "create <vpp-interface> <host-interface>",
		Short: "Mirror a VPP interface into Linux",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.rec.CreateLcp(cmd.Context(), command.CreateLcpArgs{
				VppInterface:  args[0],
				HostInterface: args[1],
				Namespace:     netns,
				Tun:           tun,
			})
		},
	}
	create.Flags().StringVar(&netns, "netns", "", "Network namespace for the host interface")
	create.Flags().BoolVar(&tun, "tun", false, "Create a tun instead of a tap")

	del := &cobra.Command{
		Use:   "delete <vpp-interface>",
		Short: "Remove an LCP pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.rec.DeleteLcp(cmd.Context(), args[0])
		},
	}

	defaultNetns := &cobra.Command{
		Use:   "default-netns <namespace>",
		Short: "Set the namespace new pairs are created in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.rec.SetLcpDefaultNetns(cmd.Context(), args[0])
		},
	}

	toggle := func(use, short string, set func(cmd *cobra.Command, on bool) error) *cobra.Command {
		return &cobra.Command{
			Use:       use + " on|off",
			Short:     short,
			Args:      cobra.ExactArgs(1),
			ValidArgs: []string{"on", "off"},
			RunE: func(cmd *cobra.Command, args []string) error {
				on, err := parseOnOff(args[0])
				if err != nil {
					return err
				}
				return set(cmd, on)
			},
		}
	}

	cmd.AddCommand(create, del, defaultNetns,
		toggle("sync", "Mirror VPP interface state changes into Linux", func(cmd *cobra.Command, on bool) error {
			return a.rec.SetLcpSync(cmd.Context(), on)
		}),
		toggle("auto-subint", "Create Linux sub-interfaces for new VPP sub-interfaces", func(cmd *cobra.Command, on bool) error {
			return a.rec.SetLcpAutoSubint(cmd.Context(), on)
		}),
	)
	return cmd
}

func interfaceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "interface",
		Aliases: []string{"int"},
		Short:   "Configure interfaces",
	}

	state := &cobra.Command{
		Use:       "state <name> up|down",
		Short:     "Set admin state",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			up, err := parseUpDown(args[1])
			if err != nil {
				return err
			}
			return a.rec.SetInterfaceState(cmd.Context(), args[0], up)
		},
	}

	mtu := &cobra.Command{
		Use:   "mtu <name> <mtu>",
		Short: "Set MTU",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseUint32("mtu", args[1])
			if err != nil {
				return err
			}
			return a.rec.SetInterfaceMTU(cmd.Context(), args[0], v)
		},
	}

	description := &cobra.Command{
		Use:   "description <name> <text>...",
		Short: "Set description",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.rec.SetInterfaceDescription(cmd.Context(), args[0], strings.Join(args[1:], " "))
		},
	}

	address := &cobra.Command{
		Use:   "address",
		Short: "Add or remove IP addresses",
	}
	addressOp := func(use, short string, op func(cmd *cobra.Command, name, prefix string) error) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <name> <prefix>",
			Short: short,
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return op(cmd, args[0], args[1])
			},
		}
	}
	address.AddCommand(
		addressOp("add", "Add an address", func(cmd *cobra.Command, name, prefix string) error {
			p, err := command.ParsePrefix(prefix)
			if err != nil {
				return err
			}
			return a.rec.AddAddress(cmd.Context(), name, p)
		}),
		addressOp("del", "Remove an address", func(cmd *cobra.Command, name, prefix string) error {
			p, err := command.ParsePrefix(prefix)
			if err != nil {
				return err
			}
			return a.rec.DeleteAddress(cmd.Context(), name, p)
		}),
	)

	cmd.AddCommand(state, mtu, description, address)
	return cmd
}

func execCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:                "vppctl <command>...",
		Aliases:            []string{"exec"},
		Short:              "Run a raw command on the device",
		Args:               cobra.MinimumNArgs(1),
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := a.rec.Exec(cmd.Context(), strings.Join(args, " "))
			fmt.Fprint(cmd.OutOrStdout(), out)
			if out != "" && !strings.HasSuffix(out, "\n") {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return err
		},
	}
}

func serveMetricsCmd(a *app) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve-metrics",
		Short: "Serve Prometheus metrics until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen == "" {
				listen = a.cfg.Metrics.Listen
			}
			if listen == "" {
				return fmt.Errorf("no listen address: set metrics.listen or --listen")
			}
			if a.stopMetrics != nil {
				<-cmd.Context().Done()
				return nil
			}
			return a.metrics.Serve(cmd.Context(), listen)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Address to listen on, e.g. :9108")
	return cmd
}
