package southbound

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/veesix-networks/vppifd/pkg/command"
	"github.com/veesix-networks/vppifd/pkg/logger"
	"github.com/veesix-networks/vppifd/pkg/models"
	"github.com/veesix-networks/vppifd/pkg/parser"
)

// CLIState implements StateReader by scraping show commands. It is the only
// place the text parsers are used.
type CLIState struct {
	exec   Executor
	logger *slog.Logger
}

func NewCLIState(e Executor) *CLIState {
	return &CLIState{
		exec:   e,
		logger: logger.Get(logger.Southbound),
	}
}

func (c *CLIState) show(ctx context.Context, cmd command.Command) (string, error) {
	out, err := c.exec.Exec(ctx, cmd.Line)
	if err != nil {
		return "", fmt.Errorf("%s: %w", cmd.Line, err)
	}
	return out, nil
}

func (c *CLIState) Interfaces(ctx context.Context) ([]models.Interface, error) {
	out, err := c.show(ctx, command.ShowInterfaces())
	if err != nil {
		return nil, err
	}
	ifaces := parser.ParseInterfaceTable(out)

	out, err = c.show(ctx, command.ShowInterfaceAddresses())
	if err != nil {
		return nil, err
	}
	addrs := parser.ParseInterfaceAddresses(out)

	// MAC addresses are informational; a failure here does not invalidate
	// the rest of the read.
	var macs map[string]net.HardwareAddr
	if out, err := c.show(ctx, command.ShowHardware()); err != nil {
		c.logger.Warn("Failed to read hardware addresses", "error", err)
	} else {
		macs = parser.ParseHardwareAddresses(out)
	}

	for i := range ifaces {
		for _, p := range addrs[ifaces[i].Name] {
			ifaces[i].AddAddress(p)
		}
		if hw, ok := macs[ifaces[i].Name]; ok {
			ifaces[i].MAC = hw
		}
	}

	c.logger.Debug("Read interfaces", "count", len(ifaces))
	return ifaces, nil
}

func (c *CLIState) Bonds(ctx context.Context) ([]models.Bond, error) {
	out, err := c.show(ctx, command.ShowBondDetails())
	if err != nil {
		return nil, err
	}
	if _, ok := command.HasErrorMarker(out); ok {
		c.logger.Debug("Bond plugin not available", "output", out)
		return nil, nil
	}
	bonds := parser.ParseBondDetails(out)
	c.logger.Debug("Read bonds", "count", len(bonds))
	return bonds, nil
}

func (c *CLIState) LcpPairs(ctx context.Context) ([]models.LcpPair, error) {
	out, err := c.show(ctx, command.ShowLcp())
	if err != nil {
		return nil, err
	}
	if _, ok := command.HasErrorMarker(out); ok {
		c.logger.Debug("LCP plugin not available", "output", out)
		return nil, nil
	}
	pairs := parser.ParseLcpPairs(out)
	c.logger.Debug("Read LCP pairs", "count", len(pairs))
	return pairs, nil
}
