// Package vpp talks to VPP over the binary API socket with govpp. Commands
// go through cli_inband; state is read with structured dumps, falling back to
// CLI scraping where the API has no coverage.
package vpp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.fd.io/govpp"
	"go.fd.io/govpp/api"
	"go.fd.io/govpp/binapi/vlib"
	"go.fd.io/govpp/binapi/vpe"
	"go.fd.io/govpp/core"

	"github.com/veesix-networks/vppifd/pkg/logger"
	"github.com/veesix-networks/vppifd/pkg/southbound"
)

const (
	DefaultSocket  = "/run/vpp/api.sock"
	DefaultTimeout = 10 * time.Second
)

type Config struct {
	Socket  string
	Timeout time.Duration
}

type Client struct {
	cfg    Config
	mu     sync.RWMutex
	conn   *core.Connection
	cli    *southbound.CLIState
	logger *slog.Logger
}

var _ southbound.Client = (*Client)(nil)

func New(cfg Config) *Client {
	if cfg.Socket == "" {
		cfg.Socket = DefaultSocket
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &Client{
		cfg: cfg,
		logger: logger.WithDevice(logger.Get(logger.SouthboundVPP), logger.DeviceAttrs{
			Transport: "vpp",
			Target:    cfg.Socket,
		}),
	}
	c.cli = southbound.NewCLIState(c)
	return c
}

func (c *Client) Transport() string {
	return "vpp"
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	conn, err := govpp.Connect(c.cfg.Socket)
	if err != nil {
		return fmt.Errorf("%w: connect to %s: %w", southbound.ErrUnavailable, c.cfg.Socket, err)
	}

	ch, err := conn.NewAPIChannel()
	if err != nil {
		conn.Disconnect()
		return fmt.Errorf("%w: create API channel: %w", southbound.ErrUnavailable, err)
	}
	defer ch.Close()
	ch.SetReplyTimeout(c.cfg.Timeout)

	reply := &vpe.ShowVersionReply{}
	if err := ch.SendRequest(&vpe.ShowVersion{}).ReceiveReply(reply); err != nil {
		conn.Disconnect()
		return fmt.Errorf("%w: show version: %w", southbound.ErrUnavailable, err)
	}

	c.conn = conn
	c.logger.Info("Connected to VPP", "version", strings.TrimRight(reply.Version, "\x00"))
	return nil
}

func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Disconnect()
		c.conn = nil
	}
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

func (c *Client) Reconnect(ctx context.Context) error {
	if c.IsConnected() {
		return nil
	}
	return c.Connect(ctx)
}

// channel opens an API channel whose reply timeout honours both the
// configured timeout and the context deadline.
func (c *Client) channel(ctx context.Context) (api.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return nil, southbound.ErrNotConnected
	}

	ch, err := conn.NewAPIChannel()
	if err != nil {
		return nil, fmt.Errorf("%w: create API channel: %w", southbound.ErrUnavailable, err)
	}

	timeout := c.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	ch.SetReplyTimeout(timeout)
	return ch, nil
}

// Exec runs a CLI line through cli_inband.
func (c *Client) Exec(ctx context.Context, line string) (string, error) {
	ch, err := c.channel(ctx)
	if err != nil {
		return "", err
	}
	defer ch.Close()

	c.logger.Debug("Executing", "command", line)

	reply := &vlib.CliInbandReply{}
	if err := ch.SendRequest(&vlib.CliInband{Cmd: line}).ReceiveReply(reply); err != nil {
		return "", &southbound.CommandError{Command: line, Err: err}
	}
	if reply.Retval != 0 {
		return reply.Reply, &southbound.CommandError{
			Command: line,
			Output:  reply.Reply,
			Err:     fmt.Errorf("retval %d", reply.Retval),
		}
	}
	return reply.Reply, nil
}
