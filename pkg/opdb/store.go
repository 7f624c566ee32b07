// Package opdb is a small key/value store for operational history that must
// survive restarts.
package opdb

import "context"

type Store interface {
	Put(ctx context.Context, namespace, key string, value []byte) error
	Delete(ctx context.Context, namespace, key string) error
	Load(ctx context.Context, namespace string, fn LoadFunc) error
	Clear(ctx context.Context, namespace string) error
	Close() error
}

// LoadFunc is called once per entry, in key order.
type LoadFunc func(key string, value []byte) error

const (
	NamespaceApplyReports = "apply_reports"
	NamespaceSyncRuns     = "sync_runs"
)
