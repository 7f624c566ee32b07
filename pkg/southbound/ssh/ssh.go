// Package ssh runs vppctl on a remote host over an SSH session opened with
// scrapligo.
package ssh

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/scrapli/scrapligo/driver/generic"
	"github.com/scrapli/scrapligo/driver/options"
	"github.com/scrapli/scrapligo/util"

	"github.com/veesix-networks/vppifd/pkg/command"
	"github.com/veesix-networks/vppifd/pkg/logger"
	"github.com/veesix-networks/vppifd/pkg/southbound"
)

const (
	DefaultPort    = 22
	DefaultVppctl  = "vppctl"
	DefaultTimeout = 10 * time.Second
)

type Config struct {
	Address    string
	Port       int
	Username   string
	Password   string
	PrivateKey string
	// Vppctl is the remote command prefix, e.g. "sudo vppctl -s /run/vpp/cli.sock".
	Vppctl  string
	Timeout time.Duration
}

type Client struct {
	*southbound.CLIState

	cfg    Config
	mu     sync.Mutex
	driver *generic.Driver
	logger *slog.Logger
}

var _ southbound.Client = (*Client)(nil)

func New(cfg Config) *Client {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Vppctl == "" {
		cfg.Vppctl = DefaultVppctl
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &Client{
		cfg: cfg,
		logger: logger.WithDevice(logger.Get(logger.SouthboundSSH), logger.DeviceAttrs{
			Transport: "ssh",
			Target:    net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.Port)),
		}),
	}
	c.CLIState = southbound.NewCLIState(c)
	return c
}

func (c *Client) Transport() string {
	return "ssh"
}

func (c *Client) driverOptions() []util.Option {
	opts := []util.Option{
		options.WithAuthNoStrictKey(),
		options.WithTransportType("standard"),
		options.WithPort(c.cfg.Port),
		options.WithTimeoutOps(c.cfg.Timeout),
	}
	if c.cfg.Username != "" {
		opts = append(opts, options.WithAuthUsername(c.cfg.Username))
	}
	if c.cfg.Password != "" {
		opts = append(opts, options.WithAuthPassword(c.cfg.Password))
	}
	if c.cfg.PrivateKey != "" {
		opts = append(opts, options.WithAuthPrivateKey(c.cfg.PrivateKey, ""))
	}
	return opts
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.driver != nil {
		return nil
	}

	d, err := generic.NewDriver(c.cfg.Address, c.driverOptions()...)
	if err != nil {
		return fmt.Errorf("%w: create ssh driver: %w", southbound.ErrUnavailable, err)
	}
	if err := d.Open(); err != nil {
		return fmt.Errorf("%w: open ssh session: %w", southbound.ErrUnavailable, err)
	}

	out, err := c.send(d, command.ShowVersion().Line)
	if err != nil {
		d.Close()
		return fmt.Errorf("%w: probe vppctl: %w", southbound.ErrUnavailable, err)
	}

	c.driver = d
	c.logger.Info("Connected to VPP", "version", strings.TrimSpace(out))
	return nil
}

func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.driver == nil {
		return nil
	}
	err := c.driver.Close()
	c.driver = nil
	return err
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.driver != nil
}

func (c *Client) Reconnect(ctx context.Context) error {
	if c.IsConnected() {
		return nil
	}
	return c.Connect(ctx)
}

// Exec serialises commands on the single session.
func (c *Client) Exec(ctx context.Context, line string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.driver == nil {
		return "", southbound.ErrNotConnected
	}

	c.logger.Debug("Executing", "command", line)

	out, err := c.send(c.driver, line)
	if err != nil {
		c.driver.Close()
		c.driver = nil
		return out, &southbound.CommandError{
			Command: line,
			Output:  out,
			Err:     fmt.Errorf("%w: %w", southbound.ErrUnavailable, err),
		}
	}
	return out, nil
}

func (c *Client) send(d *generic.Driver, line string) (string, error) {
	resp, err := d.SendCommand(RemoteCommand(c.cfg.Vppctl, line))
	if err != nil {
		return "", err
	}
	if resp.Failed != nil {
		return resp.Result, resp.Failed
	}
	return resp.Result, nil
}

// RemoteCommand quotes line for a POSIX shell on the remote side.
func RemoteCommand(vppctl, line string) string {
	return vppctl + " '" + strings.ReplaceAll(line, "'", `'\''`) + "'"
}
