package reconciler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/veesix-networks/vppifd/pkg/models"
	"github.com/veesix-networks/vppifd/pkg/opdb"
	"github.com/veesix-networks/vppifd/pkg/store"
)

// SyncRun is the journal entry written for each commit.
type SyncRun struct {
	ID            uuid.UUID `json:"id"`
	Started       time.Time `json:"started"`
	Finished      time.Time `json:"finished"`
	Interfaces    int       `json:"interfaces"`
	Bonds         int       `json:"bonds"`
	SubInterfaces int       `json:"subinterfaces"`
	LcpPairs      int       `json:"lcp_pairs"`
	Persisted     bool      `json:"persisted"`
	Error         string    `json:"error,omitempty"`
}

// SyncFromDevice rebuilds the store from live device state. If any read
// fails the store is left untouched.
func (r *Reconciler) SyncFromDevice(ctx context.Context) error {
	if err := r.begin(StateSyncInProgress); err != nil {
		return err
	}
	defer r.end()

	_, err := r.sync(ctx)
	return err
}

// Commit syncs from the device and persists the result. The device is
// authoritative: anything in the store that the device does not report is
// dropped.
func (r *Reconciler) Commit(ctx context.Context) (*SyncRun, error) {
	if err := r.begin(StateSyncInProgress); err != nil {
		return nil, err
	}
	defer r.end()

	run := &SyncRun{ID: uuid.New(), Started: r.now()}
	snap, err := r.sync(ctx)
	if err == nil {
		r.setState(StatePersisted)
		run.Interfaces = len(snap.Interfaces)
		run.Bonds = len(snap.Bonds)
		run.SubInterfaces = len(snap.SubInterfaces)
		run.LcpPairs = len(snap.LcpPairs)
		err = r.persist()
		run.Persisted = err == nil
	}
	run.Finished = r.now()
	if err != nil {
		run.Error = err.Error()
	}
	r.record(ctx, opdb.NamespaceSyncRuns, run.ID.String(), run.Started, run)

	if err != nil {
		return run, err
	}
	r.logger.Info("Committed device state", "id", run.ID,
		"interfaces", run.Interfaces, "bonds", run.Bonds,
		"subinterfaces", run.SubInterfaces, "lcps", run.LcpPairs)
	return run, nil
}

func (r *Reconciler) sync(ctx context.Context) (store.Snapshot, error) {
	start := time.Now()
	snap, err := r.readDevice(ctx)
	r.metrics.ObserveSync(time.Since(start), err)
	if err != nil {
		r.logger.Error("Sync aborted", "error", err)
		return store.Snapshot{}, err
	}

	if err := r.load(); err != nil {
		// the device is authoritative, so a broken file does not block the sync
		r.logger.Warn("Ignoring unreadable store file", "path", r.store.Path(), "error", err)
	}
	snap.SubInterfaces = deriveSubInterfaces(snap.Interfaces, r.store.SubInterfaces())

	r.store.Replace(snap)
	r.ifaces.Rebuild(snap.Interfaces)

	r.logger.Info("Synced from device",
		"interfaces", len(snap.Interfaces),
		"bonds", len(snap.Bonds),
		"subinterfaces", len(snap.SubInterfaces),
		"lcps", len(snap.LcpPairs),
		"duration", time.Since(start))
	return snap, nil
}

func (r *Reconciler) readDevice(ctx context.Context) (store.Snapshot, error) {
	var snap store.Snapshot
	if err := r.ensureConnected(ctx); err != nil {
		return snap, err
	}

	ifaces, err := r.readInterfaces(ctx)
	if err != nil {
		return snap, err
	}
	bonds, err := r.readBonds(ctx)
	if err != nil {
		return snap, err
	}
	pairs, err := r.readLcpPairs(ctx)
	if err != nil {
		return snap, err
	}

	snap.Interfaces = ifaces
	snap.Bonds = bonds
	snap.LcpPairs = pairs
	return snap, nil
}

// deriveSubInterfaces builds sub-interface records from interface names of
// the form parent.subid. The interface table does not carry the VLAN tags,
// so the sub-id is taken as the VLAN unless a previous record with the same
// parent knows better.
func deriveSubInterfaces(ifaces []models.Interface, previous []models.SubInterface) []models.SubInterface {
	known := make(map[string]models.SubInterface, len(previous))
	for _, sub := range previous {
		known[sub.Name] = sub
	}

	var out []models.SubInterface
	for _, i := range ifaces {
		if !strings.Contains(i.Name, ".") {
			continue
		}
		parent, subID, err := models.SplitSubInterfaceName(i.Name)
		if err != nil {
			continue
		}
		if prev, ok := known[i.Name]; ok && prev.Parent == parent && models.ValidVlanID(uint32(prev.VlanID)) {
			out = append(out, prev)
			continue
		}
		if !models.ValidVlanID(subID) {
			continue
		}
		out = append(out, models.SubInterface{
			Name:   i.Name,
			Parent: parent,
			VlanID: uint16(subID),
		})
	}
	return out
}

// SyncHistory returns recent commits, newest first.
func (r *Reconciler) SyncHistory(ctx context.Context, limit int) ([]SyncRun, error) {
	if r.journal == nil {
		return nil, nil
	}
	entries, err := r.journal.List(ctx, opdb.NamespaceSyncRuns, limit)
	if err != nil {
		return nil, err
	}
	out := make([]SyncRun, 0, len(entries))
	for _, e := range entries {
		var run SyncRun
		if err := e.Decode(&run); err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.Key, err)
		}
		out = append(out, run)
	}
	return out, nil
}
