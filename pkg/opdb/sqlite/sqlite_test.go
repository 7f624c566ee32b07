package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veesix-networks/vppifd/pkg/opdb"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutLoadDelete(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	require.NoError(t, s.Put(ctx, opdb.NamespaceSyncRuns, "b", []byte("2")))
	require.NoError(t, s.Put(ctx, opdb.NamespaceSyncRuns, "a", []byte("1")))
	require.NoError(t, s.Put(ctx, opdb.NamespaceSyncRuns, "a", []byte("1bis")))
	require.NoError(t, s.Put(ctx, opdb.NamespaceApplyReports, "a", []byte("other")))

	var keys, values []string
	err := s.Load(ctx, opdb.NamespaceSyncRuns, func(key string, value []byte) error {
		keys = append(keys, key)
		values = append(values, string(value))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)
	assert.Equal(t, []string{"1bis", "2"}, values)

	require.NoError(t, s.Delete(ctx, opdb.NamespaceSyncRuns, "a"))
	require.NoError(t, s.Clear(ctx, opdb.NamespaceApplyReports))

	count := 0
	require.NoError(t, s.Load(ctx, opdb.NamespaceApplyReports, func(string, []byte) error {
		count++
		return nil
	}))
	assert.Zero(t, count)
}

type run struct {
	ID        string `json:"id"`
	Succeeded int    `json:"succeeded"`
}

func TestJournal(t *testing.T) {
	ctx := context.Background()
	j := opdb.NewJournal(openTemp(t), 2)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"first", "second", "third"} {
		at := base.Add(time.Duration(i) * time.Second)
		require.NoError(t, j.Record(ctx, opdb.NamespaceApplyReports, id, at, run{ID: id, Succeeded: i}))
	}

	entries, err := j.List(ctx, opdb.NamespaceApplyReports, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var newest run
	require.NoError(t, entries[0].Decode(&newest))
	assert.Equal(t, run{ID: "third", Succeeded: 2}, newest)
	assert.Equal(t, opdb.Key(base.Add(time.Second), "second"), entries[1].Key)

	entries, err = j.List(ctx, opdb.NamespaceApplyReports, 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	entries, err = j.List(ctx, opdb.NamespaceSyncRuns, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
