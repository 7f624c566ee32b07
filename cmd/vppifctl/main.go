package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/veesix-networks/vppifd/pkg/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	defer a.close()

	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		a.close()
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "vppifctl",
		Short:         "Manage VPP interface configuration",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch a.output {
			case formatTable, formatJSON, formatYAML:
			default:
				return fmt.Errorf("unsupported output format %q", a.output)
			}
			return a.init(cmd.Context())
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", config.DefaultPath, "Path to configuration file")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", formatTable, "Output format: table, json or yaml")

	root.AddCommand(syncCmd(a))
	root.AddCommand(commitCmd(a))
	root.AddCommand(applyCmd(a))
	root.AddCommand(showCmd(a))
	root.AddCommand(historyCmd(a))
	root.AddCommand(bondCmd(a))
	root.AddCommand(subifCmd(a))
	root.AddCommand(loopbackCmd(a))
	root.AddCommand(lcpCmd(a))
	root.AddCommand(interfaceCmd(a))
	root.AddCommand(execCmd(a))
	root.AddCommand(shellCmd(a))
	root.AddCommand(serveMetricsCmd(a))
	return root
}
