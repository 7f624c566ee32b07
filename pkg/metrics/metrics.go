// Package metrics exposes Prometheus counters for device commands, syncs and
// applies, plus a collector over the configuration store.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/veesix-networks/vppifd/pkg/logger"
)

const namespace = "vppifd"

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
)

// Metrics owns a private registry. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry
	logger   *slog.Logger

	commands        *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	syncs           *prometheus.CounterVec
	syncDuration    prometheus.Histogram
	applyOps        *prometheus.CounterVec
	reconnects      prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		logger:   logger.Get(logger.Metrics),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_commands_total",
			Help:      "Commands sent to the device, by transport and result.",
		}, []string{"transport", "result"}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "device_command_duration_seconds",
			Help:      "Time spent waiting for device command output.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"transport"}),
		syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "syncs_total",
			Help:      "Store rebuilds from live device state, by result.",
		}, []string{"result"}),
		syncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of store rebuilds from live device state.",
			Buckets:   prometheus.DefBuckets,
		}),
		applyOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "apply_operations_total",
			Help:      "Intent sub-operations, by result.",
		}, []string{"result"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_reconnects_total",
			Help:      "Reconnect attempts after a lost device connection.",
		}),
	}
	m.registry.MustRegister(m.commands, m.commandDuration, m.syncs, m.syncDuration, m.applyOps, m.reconnects)
	return m
}

func result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}

func (m *Metrics) ObserveCommand(transport string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(transport, result(err)).Inc()
	m.commandDuration.WithLabelValues(transport).Observe(d.Seconds())
}

func (m *Metrics) ObserveSync(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.syncs.WithLabelValues(result(err)).Inc()
	m.syncDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveApply(succeeded, failed, skipped int) {
	if m == nil {
		return
	}
	m.applyOps.WithLabelValues(ResultSuccess).Add(float64(succeeded))
	m.applyOps.WithLabelValues(ResultFailure).Add(float64(failed))
	m.applyOps.WithLabelValues(ResultSkipped).Add(float64(skipped))
}

func (m *Metrics) ObserveReconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

// Register adds an extra collector, such as a StoreCollector.
func (m *Metrics) Register(c prometheus.Collector) error {
	if m == nil {
		return nil
	}
	return m.registry.Register(c)
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	m.logger.Info("Prometheus HTTP server listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		m.logger.Error("Prometheus HTTP server error", "error", err)
		return err
	}
	return nil
}
