package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/veesix-networks/vppifd/pkg/config"
	"github.com/veesix-networks/vppifd/pkg/lcphost"
	"github.com/veesix-networks/vppifd/pkg/logger"
	"github.com/veesix-networks/vppifd/pkg/metrics"
	"github.com/veesix-networks/vppifd/pkg/opdb"
	"github.com/veesix-networks/vppifd/pkg/opdb/sqlite"
	"github.com/veesix-networks/vppifd/pkg/reconciler"
	"github.com/veesix-networks/vppifd/pkg/southbound"
	"github.com/veesix-networks/vppifd/pkg/southbound/ssh"
	"github.com/veesix-networks/vppifd/pkg/southbound/vpp"
	"github.com/veesix-networks/vppifd/pkg/southbound/vppctl"
	"github.com/veesix-networks/vppifd/pkg/store"
)

// app holds everything a command needs. It is built once per process, so
// the shell reuses one device connection across lines.
type app struct {
	configPath string
	debug      bool
	output     string

	cfg     *config.Config
	client  southbound.Client
	store   *store.Store
	journal *opdb.Journal
	metrics *metrics.Metrics
	rec     *reconciler.Reconciler
	logger  *slog.Logger

	stopMetrics context.CancelFunc
}

func (a *app) init(ctx context.Context) error {
	if a.rec != nil {
		return nil
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a.cfg = cfg

	level := logger.LogLevel(cfg.Logging.Level)
	if a.debug {
		level = logger.LogLevelDebug
	}
	logger.Configure(cfg.Logging.Format, level, cfg.Logging.LogComponents())
	a.logger = logger.Get(logger.CLI)

	a.client, err = newClient(cfg.Device)
	if err != nil {
		return err
	}
	a.store = store.New(cfg.Store.Path)
	a.metrics = metrics.New()
	if err := a.metrics.Register(metrics.NewStoreCollector(a.store)); err != nil {
		return fmt.Errorf("register store collector: %w", err)
	}

	if cfg.Journal.Enabled {
		db, err := sqlite.Open(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		a.journal = opdb.NewJournal(db, cfg.Journal.Keep)
	}

	opts := reconciler.Options{
		Timeout: cfg.Device.Timeout,
		Journal: a.journal,
		Metrics: a.metrics,
	}
	if cfg.LCP.VerifyHost {
		opts.HostChecker = lcphost.New()
		opts.HostWait = cfg.LCP.VerifyTimeout
	}
	a.rec = reconciler.New(a.client, a.store, opts)

	if cfg.Metrics.Listen != "" {
		a.serveMetrics(ctx, cfg.Metrics.Listen)
	}

	a.logger.Debug("Initialised", "transport", a.client.Transport(), "store", cfg.Store.Path,
		"journal", cfg.Journal.Enabled)
	return nil
}

func (a *app) serveMetrics(ctx context.Context, addr string) {
	if a.stopMetrics != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	a.stopMetrics = cancel
	go func() {
		if err := a.metrics.Serve(ctx, addr); err != nil {
			a.logger.Warn("Metrics listener stopped", "addr", addr, "error", err)
		}
	}()
}

func (a *app) close() {
	if a.stopMetrics != nil {
		a.stopMetrics()
	}
	if a.client != nil {
		if err := a.client.Disconnect(); err != nil {
			a.logger.Debug("Disconnect failed", "error", err)
		}
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Warn("Failed to close journal", "error", err)
		}
	}
}

func newClient(dev config.Device) (southbound.Client, error) {
	switch dev.Transport {
	case config.TransportVppctl:
		return vppctl.New(vppctl.Config{
			Binary:  dev.Vppctl.Binary,
			Socket:  dev.Vppctl.Socket,
			Timeout: dev.Timeout,
		}), nil
	case config.TransportVPP:
		return vpp.New(vpp.Config{
			Socket:  dev.APISocket,
			Timeout: dev.Timeout,
		}), nil
	case config.TransportSSH:
		if dev.SSH == nil {
			return nil, fmt.Errorf("device.ssh is required for transport %s", dev.Transport)
		}
		return ssh.New(ssh.Config{
			Address:    dev.SSH.Address,
			Port:       dev.SSH.Port,
			Username:   dev.SSH.Username,
			Password:   dev.SSH.Password,
			PrivateKey: dev.SSH.PrivateKey,
			Vppctl:     dev.SSH.Vppctl,
			Timeout:    dev.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", dev.Transport)
	}
}
