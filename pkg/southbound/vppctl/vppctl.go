// Package vppctl drives VPP through the vppctl binary and its CLI socket.
package vppctl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/veesix-networks/vppifd/pkg/command"
	"github.com/veesix-networks/vppifd/pkg/logger"
	"github.com/veesix-networks/vppifd/pkg/southbound"
)

const (
	DefaultBinary  = "/usr/bin/vppctl"
	DefaultSocket  = "/run/vpp/cli.sock"
	DefaultTimeout = 10 * time.Second
)

type Config struct {
	Binary  string
	Socket  string
	Timeout time.Duration
}

// RunFunc runs the vppctl binary and returns its combined output.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

type Client struct {
	*southbound.CLIState

	cfg       Config
	run       RunFunc
	mu        sync.RWMutex
	connected bool
	logger    *slog.Logger
}

var _ southbound.Client = (*Client)(nil)

func New(cfg Config) *Client {
	return NewWithRunner(cfg, execRun)
}

func NewWithRunner(cfg Config, run RunFunc) *Client {
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}
	if cfg.Socket == "" {
		cfg.Socket = DefaultSocket
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &Client{
		cfg: cfg,
		run: run,
		logger: logger.WithDevice(logger.Get(logger.SouthboundVppctl), logger.DeviceAttrs{
			Transport: "vppctl",
			Target:    cfg.Socket,
		}),
	}
	c.CLIState = southbound.NewCLIState(c)
	return c
}

func (c *Client) Transport() string {
	return "vppctl"
}

// Exec passes the whole line as one argument; vppctl joins its arguments,
// and no shell is involved so the line cannot be reinterpreted.
func (c *Client) Exec(ctx context.Context, line string) (string, error) {
	if !c.IsConnected() {
		return "", southbound.ErrNotConnected
	}
	return c.exec(ctx, line)
}

func (c *Client) exec(ctx context.Context, line string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	c.logger.Debug("Executing", "command", line)

	raw, err := c.run(ctx, c.cfg.Binary, "-s", c.cfg.Socket, line)
	out := string(raw)
	if err == nil {
		return out, nil
	}

	// The line may have reached VPP before the deadline hit.
	if ctxErr := ctx.Err(); ctxErr != nil {
		c.markDisconnected()
		return out, &southbound.CommandError{Command: line, Output: out, Err: ctxErr}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if isSocketError(out) {
			c.markDisconnected()
			return out, fmt.Errorf("%w: %s", southbound.ErrUnavailable, strings.TrimSpace(out))
		}
		return out, &southbound.CommandError{Command: line, Output: out, Err: err}
	}

	c.markDisconnected()
	return out, fmt.Errorf("%w: run %s: %w", southbound.ErrUnavailable, c.cfg.Binary, err)
}

func isSocketError(out string) bool {
	lower := strings.ToLower(out)
	return strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "no such file or directory") ||
		strings.Contains(lower, "connect to vpp")
}

func (c *Client) markDisconnected() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

// Connect probes the CLI socket with "show version".
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	out, err := c.exec(ctx, command.ShowVersion().Line)
	if err != nil {
		return fmt.Errorf("connect to vpp cli: %w", err)
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	c.logger.Info("Connected to VPP", "version", strings.TrimSpace(out))
	return nil
}

func (c *Client) Disconnect() error {
	c.markDisconnected()
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *Client) Reconnect(ctx context.Context) error {
	if c.IsConnected() {
		return nil
	}
	return c.Connect(ctx)
}
