package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veesix-networks/vppifd/pkg/intent"
)

func syncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Rebuild the store from live device state without saving it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.rec.SyncFromDevice(cmd.Context()); err != nil {
				return err
			}
			counts := a.store.Counts()
			fmt.Fprintf(cmd.OutOrStdout(), "Synced %d interfaces, %d bonds, %d sub-interfaces, %d LCP pairs\n",
				counts["interface"], counts["bond"], counts["subinterface"], counts["lcp"])
			return nil
		},
	}
}

func commitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "commit",
		Short: "Sync from the device and persist the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := a.rec.Commit(cmd.Context())
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), a.output, run)
		},
	}
}

func applyCmd(a *app) *cobra.Command {
	var deleted string

	cmd := &cobra.Command{
		Use:   "apply <target.xml>",
		Short: "Push declared interface state to the device",
		Long: "Apply reads an interfaces tree (name, description, enabled, mtu, ipv4/ipv6 addresses)\n" +
			"and configures each interface. Addresses listed in --deleted are removed first.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := intent.LoadFiles(args[0], deleted)
			if err != nil {
				return err
			}
			rep, err := a.rec.ApplyIntent(cmd.Context(), in)
			if err != nil {
				return err
			}
			if err := render(cmd.OutOrStdout(), a.output, rep); err != nil {
				return err
			}
			if rep.Failed > 0 {
				return fmt.Errorf("%d of %d operations failed", rep.Failed, rep.Failed+rep.Succeeded)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&deleted, "deleted", "", "XML file with address nodes to remove")
	return cmd
}

func showCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show records held in the store",
	}

	list := func(use string, aliases []string, short string, fetch func() (any, error)) *cobra.Command {
		return &cobra.Command{
			Use:     use,
			Aliases: aliases,
			Short:   short,
			Args:    cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := fetch()
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), a.output, v)
			},
		}
	}

	cmd.AddCommand(list("interfaces", []string{"interface", "int"}, "Show interfaces", func() (any, error) {
		return a.rec.ListInterfaces()
	}))
	cmd.AddCommand(list("bonds", []string{"bond"}, "Show bonds", func() (any, error) {
		return a.rec.ListBonds()
	}))
	cmd.AddCommand(list("subinterfaces", []string{"subif", "sub-interfaces"}, "Show sub-interfaces", func() (any, error) {
		return a.rec.ListSubInterfaces()
	}))
	cmd.AddCommand(list("lcp", []string{"lcps"}, "Show LCP pairs", func() (any, error) {
		return a.rec.ListLcpPairs()
	}))
	return cmd
}

func historyCmd(a *app) *cobra.Command {
	var (
		syncs bool
		limit int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent apply reports, or commits with --sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.journal == nil {
				return fmt.Errorf("journal is disabled")
			}
			if syncs {
				runs, err := a.rec.SyncHistory(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), a.output, runs)
			}
			reps, err := a.rec.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), a.output, reps)
		},
	}
	cmd.Flags().BoolVar(&syncs, "sync", false, "Show commits instead of apply reports")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show")
	return cmd
}
