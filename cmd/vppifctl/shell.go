package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

func shellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive shell",
		Long: "Shell runs vppifctl commands line by line over one device connection.\n" +
			"Lines starting with 'vppctl' are passed to the device unchanged.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd, a)
		},
	}
}

func runShell(cmd *cobra.Command, a *app) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "vppifctl> ",
		HistoryFile:     os.ExpandEnv("$HOME/.vppifctl_history"),
		AutoComplete:    completer(newRootCmd(a)),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(rl.Stdout(), "Connected via %s. Type 'help' for commands, 'exit' to leave.\n", a.client.Transport())

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(line) == 0 {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		if err := shellLine(cmd, a, rl.Stdout(), line); err != nil {
			fmt.Fprintf(rl.Stderr(), "Error: %v\n", err)
		}
		if cmd.Context().Err() != nil {
			return nil
		}
	}
}

// shellLine runs one line through a fresh command tree so flag values do not
// leak between lines. The app is already initialised and is shared.
func shellLine(cmd *cobra.Command, a *app, out io.Writer, line string) error {
	args := strings.Fields(line)
	if args[0] == "shell" {
		return fmt.Errorf("already in a shell")
	}

	root := newRootCmd(a)
	root.PersistentPreRunE = nil
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(out)
	return root.ExecuteContext(cmd.Context())
}

func completer(root *cobra.Command) *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(completionItems(root)...)
}

func completionItems(cmd *cobra.Command) []readline.PrefixCompleterInterface {
	var items []readline.PrefixCompleterInterface
	for _, sub := range cmd.Commands() {
		if sub.Hidden || sub.Name() == "shell" || sub.Name() == "completion" {
			continue
		}
		children := completionItems(sub)
		for _, v := range sub.ValidArgs {
			children = append(children, readline.PcItem(v))
		}
		items = append(items, readline.PcItem(sub.Name(), children...))
	}
	return items
}
