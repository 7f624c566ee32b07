package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"inet.af/netaddr"

	"github.com/veesix-networks/vppifd/pkg/command"
	"github.com/veesix-networks/vppifd/pkg/intent"
	"github.com/veesix-networks/vppifd/pkg/opdb"
	"github.com/veesix-networks/vppifd/pkg/southbound"
	"github.com/veesix-networks/vppifd/pkg/store"
)

type OperationStatus string

const (
	StatusSucceeded OperationStatus = "succeeded"
	StatusFailed    OperationStatus = "failed"
	StatusSkipped   OperationStatus = "skipped"
	// StatusIgnored is a best-effort operation that failed without counting
	// against the batch.
	StatusIgnored OperationStatus = "ignored"
)

const (
	OpResolve       = "resolve"
	OpDeleteAddress = "delete-address"
	OpDescription   = "description"
	OpAdminState    = "admin-state"
	OpMTU           = "mtu"
	OpAddAddress    = "add-address"
)

type OperationResult struct {
	Interface string          `json:"interface"`
	Operation string          `json:"operation"`
	Command   string          `json:"command,omitempty"`
	Detail    string          `json:"detail,omitempty"`
	Status    OperationStatus `json:"status"`
	Error     string          `json:"error,omitempty"`

	Err error `json:"-"`
}

// ApplyReport summarises one ApplyIntent call. There is no rollback, so a
// partially failed batch leaves the device with the succeeded operations.
type ApplyReport struct {
	ID           uuid.UUID         `json:"id"`
	Started      time.Time         `json:"started"`
	Finished     time.Time         `json:"finished"`
	Succeeded    int               `json:"succeeded"`
	Failed       int               `json:"failed"`
	Skipped      int               `json:"skipped"`
	Operations   []OperationResult `json:"operations"`
	PersistError string            `json:"persist_error,omitempty"`
}

func (rep *ApplyReport) add(res OperationResult) {
	if res.Err != nil && res.Error == "" {
		res.Error = res.Err.Error()
	}
	switch res.Status {
	case StatusSucceeded:
		rep.Succeeded++
	case StatusFailed:
		rep.Failed++
	case StatusSkipped:
		rep.Skipped++
	}
	rep.Operations = append(rep.Operations, res)
}

// Errors returns the error of every failed operation.
func (rep *ApplyReport) Errors() []error {
	var out []error
	for _, op := range rep.Operations {
		if op.Status == StatusFailed && op.Err != nil {
			out = append(out, op.Err)
		}
	}
	return out
}

// ApplyIntent pushes declared interface state to the device. Address
// deletions run first so an address moving between interfaces is freed
// before it is re-added. Interfaces the device does not know are counted as
// failed without any device call, and the batch continues.
//
// Declared addresses that the interface table already shows are not sent.
// They land in Skipped rather than Succeeded, so re-applying an unchanged
// intent reports zero succeeded add-address operations and no failures,
// where sending them would have produced one failed command each.
//
// The returned error is only set for a lost connection or a concurrent
// mutation.
func (r *Reconciler) ApplyIntent(ctx context.Context, in intent.Intent) (*ApplyReport, error) {
	if err := r.begin(StateApplyInProgress); err != nil {
		return nil, err
	}
	defer r.end()

	rep := &ApplyReport{ID: uuid.New(), Started: r.now()}
	if err := r.load(); err != nil {
		r.logger.Warn("Applying without persisted store", "error", err)
	}
	if err := r.ensureConnected(ctx); err != nil {
		return nil, err
	}

	err := r.apply(ctx, in, rep)
	rep.Finished = r.now()
	if err != nil {
		r.logger.Error("Apply aborted", "id", rep.ID, "error", err)
		return rep, err
	}

	r.setState(StateApplied)
	if perr := r.persist(); perr != nil {
		r.logger.Error("Failed to persist applied state", "id", rep.ID, "error", perr)
		rep.PersistError = perr.Error()
	}

	r.metrics.ObserveApply(rep.Succeeded, rep.Failed, rep.Skipped)
	r.record(ctx, opdb.NamespaceApplyReports, rep.ID.String(), rep.Started, rep)
	r.logger.Info("Applied intent", "id", rep.ID,
		"succeeded", rep.Succeeded, "failed", rep.Failed, "skipped", rep.Skipped)
	return rep, nil
}

func (r *Reconciler) apply(ctx context.Context, in intent.Intent, rep *ApplyReport) error {
	for _, d := range in.Deletions {
		if err := r.applyDeletion(ctx, d, rep); err != nil {
			return err
		}
	}

	if len(in.Interfaces) == 0 {
		return nil
	}
	if err := r.refreshIndex(ctx); err != nil {
		if southbound.IsConnectionError(err) {
			return err
		}
		r.logger.Warn("Cannot read interface table, no target resolves", "error", err)
		r.ifaces.Clear()
	}

	for _, ii := range in.Interfaces {
		if err := r.applyInterface(ctx, ii, rep); err != nil {
			return err
		}
	}
	return nil
}

// exec runs cmd and records the outcome. It only returns an error when the
// connection is gone.
func (r *Reconciler) exec(ctx context.Context, rep *ApplyReport, ifname, op string, cmd command.Command, bestEffort bool) (bool, error) {
	_, err := r.run(ctx, cmd)
	if southbound.IsConnectionError(err) {
		rep.add(OperationResult{Interface: ifname, Operation: op, Command: cmd.Line, Status: StatusFailed, Err: err})
		return false, err
	}
	if err != nil {
		status := StatusFailed
		if bestEffort {
			status = StatusIgnored
		}
		rep.add(OperationResult{Interface: ifname, Operation: op, Command: cmd.Line, Status: status, Err: err})
		return false, nil
	}
	rep.add(OperationResult{Interface: ifname, Operation: op, Command: cmd.Line, Status: StatusSucceeded})
	return true, nil
}

func (r *Reconciler) applyDeletion(ctx context.Context, d intent.AddressDeletion, rep *ApplyReport) error {
	cmd, err := command.DeleteAddress(d.Interface, d.Prefix)
	if err != nil {
		rep.add(OperationResult{Interface: d.Interface, Operation: OpDeleteAddress, Status: StatusFailed, Err: err})
		return nil
	}
	ok, err := r.exec(ctx, rep, d.Interface, OpDeleteAddress, cmd, false)
	if err != nil {
		return err
	}
	if ok {
		if err := r.store.RemoveInterfaceAddress(d.Interface, d.Prefix); err != nil {
			r.logger.Debug("Deleted address not in store", "interface", d.Interface, "prefix", d.Prefix)
		}
	}
	return nil
}

func (r *Reconciler) applyInterface(ctx context.Context, ii intent.InterfaceIntent, rep *ApplyReport) error {
	idx, ok := r.ifaces.GetIfIndex(ii.Name)
	if !ok {
		r.logger.Warn("Interface not found on device", "interface", ii.Name)
		rep.add(OperationResult{
			Interface: ii.Name,
			Operation: OpResolve,
			Status:    StatusFailed,
			Err:       fmt.Errorf("%w: %s", ErrUnresolved, ii.Name),
		})
		return nil
	}

	update := store.InterfaceUpdate{Index: &idx}

	if ii.Description != nil {
		cmd, err := command.SetDescription(ii.Name, *ii.Description)
		if err != nil {
			rep.add(OperationResult{Interface: ii.Name, Operation: OpDescription, Status: StatusIgnored, Err: err})
		} else {
			done, err := r.exec(ctx, rep, ii.Name, OpDescription, cmd, true)
			if err != nil {
				return err
			}
			if done {
				update.Description = ii.Description
			}
		}
	}

	if ii.Enabled != nil {
		cmd, err := command.SetAdminState(ii.Name, *ii.Enabled)
		if err != nil {
			rep.add(OperationResult{Interface: ii.Name, Operation: OpAdminState, Status: StatusFailed, Err: err})
		} else {
			done, err := r.exec(ctx, rep, ii.Name, OpAdminState, cmd, false)
			if err != nil {
				return err
			}
			if done {
				update.AdminUp = ii.Enabled
			}
		}
	}

	if ii.MTU != nil {
		cmd, err := command.SetMTU(ii.Name, *ii.MTU)
		if err != nil {
			rep.add(OperationResult{Interface: ii.Name, Operation: OpMTU, Status: StatusFailed, Err: err})
		} else {
			done, err := r.exec(ctx, rep, ii.Name, OpMTU, cmd, false)
			if err != nil {
				return err
			}
			if done {
				mtu := uint16(*ii.MTU)
				update.MTU = &mtu
			}
		}
	}

	var added []netaddr.IPPrefix
	for _, p := range ii.Addresses {
		if r.ifaces.HasAddress(ii.Name, p) {
			rep.add(OperationResult{Interface: ii.Name, Operation: OpAddAddress, Status: StatusSkipped, Detail: p.String() + " already present"})
			continue
		}
		cmd, err := command.AddAddress(ii.Name, p)
		if err != nil {
			rep.add(OperationResult{Interface: ii.Name, Operation: OpAddAddress, Status: StatusFailed, Err: err})
			continue
		}
		done, err := r.exec(ctx, rep, ii.Name, OpAddAddress, cmd, false)
		if err != nil {
			return err
		}
		if done {
			r.ifaces.AddAddress(ii.Name, p)
			added = append(added, p)
		}
	}

	if _, err := r.store.UpsertInterface(ii.Name, update); err != nil {
		r.logger.Warn("Failed to record interface", "interface", ii.Name, "error", err)
		return nil
	}
	for _, p := range added {
		if err := r.store.AddInterfaceAddress(ii.Name, p); err != nil {
			r.logger.Warn("Failed to record address", "interface", ii.Name, "prefix", p, "error", err)
		}
	}
	return nil
}

// History returns recent apply reports, newest first.
func (r *Reconciler) History(ctx context.Context, limit int) ([]ApplyReport, error) {
	if r.journal == nil {
		return nil, nil
	}
	entries, err := r.journal.List(ctx, opdb.NamespaceApplyReports, limit)
	if err != nil {
		return nil, err
	}
	out := make([]ApplyReport, 0, len(entries))
	for _, e := range entries {
		var rep ApplyReport
		if err := e.Decode(&rep); err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.Key, err)
		}
		out = append(out, rep)
	}
	return out, nil
}
