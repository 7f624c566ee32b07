// Package reconciler keeps the device, the persisted configuration store and
// declared intent consistent. It is the only writer of the store.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/veesix-networks/vppifd/pkg/command"
	"github.com/veesix-networks/vppifd/pkg/ifmgr"
	"github.com/veesix-networks/vppifd/pkg/lcphost"
	"github.com/veesix-networks/vppifd/pkg/logger"
	"github.com/veesix-networks/vppifd/pkg/metrics"
	"github.com/veesix-networks/vppifd/pkg/models"
	"github.com/veesix-networks/vppifd/pkg/opdb"
	"github.com/veesix-networks/vppifd/pkg/southbound"
	"github.com/veesix-networks/vppifd/pkg/store"
)

const DefaultTimeout = 10 * time.Second

var (
	// ErrCommitInProgress is returned when another mutation holds the
	// commit lock.
	ErrCommitInProgress = errors.New("commit in progress")
	// ErrUnresolved means a name does not match any interface on the device.
	ErrUnresolved = errors.New("interface not found on device")
)

type State int32

const (
	StateIdle State = iota
	StateSyncInProgress
	StatePersisted
	StateApplyInProgress
	StateApplied
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSyncInProgress:
		return "sync-in-progress"
	case StatePersisted:
		return "persisted"
	case StateApplyInProgress:
		return "apply-in-progress"
	case StateApplied:
		return "applied"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type Options struct {
	// Timeout bounds every device call. Defaults to DefaultTimeout.
	Timeout time.Duration
	Journal *opdb.Journal
	Metrics *metrics.Metrics
	// HostChecker, when set, makes CreateLcp wait for the Linux side of the
	// pair to appear, for at most HostWait.
	HostChecker lcphost.Checker
	HostWait    time.Duration
}

type Reconciler struct {
	client  southbound.Client
	store   *store.Store
	ifaces  *ifmgr.Manager
	journal *opdb.Journal
	metrics *metrics.Metrics
	hosts   lcphost.Checker

	timeout  time.Duration
	hostWait time.Duration

	commitMu sync.Mutex
	state    atomic.Int32
	logger   *slog.Logger
	now      func() time.Time
}

func New(client southbound.Client, st *store.Store, opts Options) *Reconciler {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HostWait <= 0 {
		opts.HostWait = 2 * time.Second
	}
	return &Reconciler{
		client:   client,
		store:    st,
		ifaces:   ifmgr.New(),
		journal:  opts.Journal,
		metrics:  opts.Metrics,
		hosts:    opts.HostChecker,
		timeout:  opts.Timeout,
		hostWait: opts.HostWait,
		logger:   logger.Get(logger.Reconciler),
		now:      time.Now,
	}
}

func (r *Reconciler) State() State {
	return State(r.state.Load())
}

func (r *Reconciler) setState(s State) {
	r.state.Store(int32(s))
	r.logger.Debug("State changed", "state", s)
}

// begin takes the commit lock without waiting.
func (r *Reconciler) begin(s State) error {
	if !r.commitMu.TryLock() {
		return ErrCommitInProgress
	}
	r.setState(s)
	return nil
}

func (r *Reconciler) end() {
	r.setState(StateIdle)
	r.commitMu.Unlock()
}

func (r *Reconciler) load() error {
	if err := r.store.Load(); err != nil {
		return fmt.Errorf("load store: %w", err)
	}
	return nil
}

func (r *Reconciler) persist() error {
	if err := r.store.Save(); err != nil {
		return fmt.Errorf("save store: %w", err)
	}
	return nil
}

// ensureConnected makes at most one reconnect attempt.
func (r *Reconciler) ensureConnected(ctx context.Context) error {
	if r.client.IsConnected() {
		return nil
	}
	return r.reconnect(ctx)
}

func (r *Reconciler) reconnect(ctx context.Context) error {
	r.metrics.ObserveReconnect()
	r.logger.Info("Reconnecting to device", "transport", r.client.Transport())

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.client.Reconnect(ctx); err != nil {
		r.logger.Error("Reconnect failed", "transport", r.client.Transport(), "error", err)
		return fmt.Errorf("%w: %v", southbound.ErrNotConnected, err)
	}
	return nil
}

// run executes cmd under the device timeout. A command that never reached
// the device gets one reconnect and one retry; a timeout is a plain failure.
func (r *Reconciler) run(ctx context.Context, cmd command.Command) (string, error) {
	start := time.Now()
	out, err := r.runOnce(ctx, cmd)
	if southbound.IsRetryable(err) {
		if rerr := r.reconnect(ctx); rerr == nil {
			out, err = r.runOnce(ctx, cmd)
		}
	}
	r.metrics.ObserveCommand(r.client.Transport(), time.Since(start), err)

	if err != nil {
		r.logger.Warn("Command failed", "command", cmd.Line, "error", err)
	} else {
		r.logger.Debug("Command succeeded", "command", cmd.Line)
	}
	return out, err
}

func (r *Reconciler) runOnce(ctx context.Context, cmd command.Command) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return southbound.Run(ctx, r.client, cmd)
}

func (r *Reconciler) readInterfaces(ctx context.Context) ([]models.Interface, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	ifaces, err := r.client.Interfaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("read interfaces: %w", err)
	}
	return ifaces, nil
}

func (r *Reconciler) readBonds(ctx context.Context) ([]models.Bond, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	bonds, err := r.client.Bonds(ctx)
	if err != nil {
		return nil, fmt.Errorf("read bonds: %w", err)
	}
	return bonds, nil
}

func (r *Reconciler) readLcpPairs(ctx context.Context) ([]models.LcpPair, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	pairs, err := r.client.LcpPairs(ctx)
	if err != nil {
		return nil, fmt.Errorf("read lcp pairs: %w", err)
	}
	return pairs, nil
}

// refreshIndex rebuilds the name/index cache from one device read.
func (r *Reconciler) refreshIndex(ctx context.Context) error {
	ifaces, err := r.readInterfaces(ctx)
	if err != nil {
		return err
	}
	r.ifaces.Rebuild(ifaces)
	return nil
}

// resolve checks that name exists on the device using a fresh read.
func (r *Reconciler) resolve(ctx context.Context, name string) (uint32, error) {
	if err := r.refreshIndex(ctx); err != nil {
		return 0, err
	}
	idx, ok := r.ifaces.GetIfIndex(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnresolved, name)
	}
	return idx, nil
}

func (r *Reconciler) record(ctx context.Context, namespace, id string, at time.Time, v any) {
	if r.journal == nil {
		return
	}
	if err := r.journal.Record(ctx, namespace, id, at, v); err != nil {
		r.logger.Warn("Failed to record journal entry", "namespace", namespace, "error", err)
	}
}
