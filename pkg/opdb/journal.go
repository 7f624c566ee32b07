package opdb

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/veesix-networks/vppifd/pkg/logger"
)

const keyTimeFormat = "20060102T150405.000000000Z"

// Journal keeps a bounded, time-ordered history per namespace.
type Journal struct {
	store  Store
	keep   int
	logger *slog.Logger
}

type Entry struct {
	Key   string
	Value []byte
}

// Decode unmarshals the entry value into v.
func (e Entry) Decode(v any) error {
	return json.Unmarshal(e.Value, v)
}

// NewJournal wraps store. keep bounds the entries retained per namespace;
// zero keeps everything.
func NewJournal(store Store, keep int) *Journal {
	return &Journal{
		store:  store,
		keep:   keep,
		logger: logger.Get(logger.Journal),
	}
}

// Key builds a key that sorts by time.
func Key(at time.Time, id string) string {
	return at.UTC().Format(keyTimeFormat) + "-" + id
}

// Record stores v as JSON under a time-ordered key and prunes the namespace.
func (j *Journal) Record(ctx context.Context, namespace, id string, at time.Time, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s entry: %w", namespace, err)
	}
	key := Key(at, id)
	if err := j.store.Put(ctx, namespace, key, data); err != nil {
		return fmt.Errorf("put %s/%s: %w", namespace, key, err)
	}
	j.logger.Debug("Recorded entry", "namespace", namespace, "key", key)

	if j.keep > 0 {
		if err := j.prune(ctx, namespace); err != nil {
			j.logger.Warn("Failed to prune journal", "namespace", namespace, "error", err)
		}
	}
	return nil
}

// List returns up to limit entries, newest first. A limit of zero returns
// every entry.
func (j *Journal) List(ctx context.Context, namespace string, limit int) ([]Entry, error) {
	entries, err := j.all(ctx, namespace)
	if err != nil {
		return nil, err
	}
	for i, k := 0, len(entries)-1; i < k; i, k = i+1, k-1 {
		entries[i], entries[k] = entries[k], entries[i]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (j *Journal) all(ctx context.Context, namespace string) ([]Entry, error) {
	var entries []Entry
	err := j.store.Load(ctx, namespace, func(key string, value []byte) error {
		entries = append(entries, Entry{Key: key, Value: value})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", namespace, err)
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].Key < entries[b].Key })
	return entries, nil
}

func (j *Journal) prune(ctx context.Context, namespace string) error {
	entries, err := j.all(ctx, namespace)
	if err != nil {
		return err
	}
	for len(entries) > j.keep {
		if err := j.store.Delete(ctx, namespace, entries[0].Key); err != nil {
			return err
		}
		entries = entries[1:]
	}
	return nil
}

func (j *Journal) Clear(ctx context.Context, namespace string) error {
	return j.store.Clear(ctx, namespace)
}

func (j *Journal) Close() error {
	return j.store.Close()
}
