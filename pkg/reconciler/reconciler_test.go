package reconciler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"inet.af/netaddr"

	"github.com/veesix-networks/vppifd/pkg/command"
	"github.com/veesix-networks/vppifd/pkg/intent"
	"github.com/veesix-networks/vppifd/pkg/models"
	"github.com/veesix-networks/vppifd/pkg/opdb"
	"github.com/veesix-networks/vppifd/pkg/opdb/sqlite"
	"github.com/veesix-networks/vppifd/pkg/southbound"
	"github.com/veesix-networks/vppifd/pkg/southbound/vppctl"
	"github.com/veesix-networks/vppifd/pkg/store"
)

func deviceInterfaces() []models.Interface {
	return []models.Interface{
		{Name: "local0", Index: 0, Type: models.InterfaceTypeLocal},
		{Name: "HundredGigE1/0/0", Index: 1, MTU: 9000, Type: models.InterfaceTypeEthernet},
		{Name: "HundredGigE1/0/1", Index: 2, MTU: 9000, Type: models.InterfaceTypeEthernet,
			IPv4: []netaddr.IPPrefix{netaddr.MustParseIPPrefix("192.0.2.1/24")}},
		{Name: "BondEthernet0", Index: 3, AdminUp: true, Type: models.InterfaceTypeBond},
		{Name: "BondEthernet0.100", Index: 4, Type: models.InterfaceTypeSubInterface},
	}
}

type fixture struct {
	r      *Reconciler
	client *southbound.MockClient
	store  *store.Store
	path   string
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	client := southbound.NewMockClient()
	client.InterfaceList = deviceInterfaces()
	client.BondList = []models.Bond{{
		Name:        "BondEthernet0",
		Index:       3,
		Mode:        models.BondModeLACP,
		LoadBalance: models.LoadBalanceL34,
		Members:     []string{"HundredGigE1/0/0"},
	}}
	client.LcpList = []models.LcpPair{{VppInterface: "BondEthernet0", HostInterface: "be0", Namespace: "dataplane"}}

	path := filepath.Join(t.TempDir(), "vpp_config.xml")
	st := store.New(path)
	if opts.Timeout == 0 {
		opts.Timeout = time.Second
	}
	return &fixture{r: New(client, st, opts), client: client, store: st, path: path}
}

func reload(t *testing.T, path string) *store.Store {
	t.Helper()
	st := store.New(path)
	require.NoError(t, st.Load())
	return st
}

func newJournal(t *testing.T) *opdb.Journal {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	j := opdb.NewJournal(db, 10)
	t.Cleanup(func() { j.Close() })
	return j
}

func names[T any](items []T, name func(T) string) []string {
	return lo.Map(items, func(v T, _ int) string { return name(v) })
}

func TestSyncFromDeviceReplacesStore(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.store.UpsertInterface("stale0", store.InterfaceUpdate{AdminUp: lo.ToPtr(true)})
	require.NoError(t, err)
	_, err = f.store.UpsertSubInterface("BondEthernet0.100", store.SubInterfaceUpdate{
		Parent:      lo.ToPtr("BondEthernet0"),
		VlanID:      lo.ToPtr(uint16(200)),
		InnerVlanID: lo.ToPtr(uint16(300)),
	})
	require.NoError(t, err)

	require.NoError(t, f.r.SyncFromDevice(context.Background()))

	ifaces := f.store.Interfaces()
	assert.Equal(t, names(deviceInterfaces(), func(i models.Interface) string { return i.Name }),
		names(ifaces, func(i models.Interface) string { return i.Name }))

	bond, ok := f.store.Bond("BondEthernet0")
	require.True(t, ok)
	assert.Equal(t, models.LoadBalanceL34, bond.LoadBalance)
	assert.Equal(t, []string{"HundredGigE1/0/0"}, bond.Members)

	assert.Equal(t, []models.SubInterface{{
		Name: "BondEthernet0.100", Parent: "BondEthernet0", VlanID: 200, InnerVlanID: 300,
	}}, f.store.SubInterfaces())
	assert.Len(t, f.store.LcpPairs(), 1)
	assert.Equal(t, StateIdle, f.r.State())
	assert.NoFileExists(t, f.path)
}

func TestSyncAbortLeavesStoreUntouched(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.store.UpsertInterface("eth9", store.InterfaceUpdate{MTU: lo.ToPtr(uint16(1500))})
	require.NoError(t, err)
	before := f.store.Snapshot()

	f.client.StateErr = errors.New("show interface: garbled")
	err = f.r.SyncFromDevice(context.Background())
	require.Error(t, err)
	assert.Equal(t, before, f.store.Snapshot())
}

func TestDeriveSubInterfaces(t *testing.T) {
	ifaces := []models.Interface{
		{Name: "eth0"},
		{Name: "eth0.10"},
		{Name: "eth0.0"},
		{Name: "eth0.x"},
		{Name: "eth1.20"},
	}
	previous := []models.SubInterface{
		{Name: "eth1.20", Parent: "eth9", VlanID: 7},
	}
	got := deriveSubInterfaces(ifaces, previous)
	assert.Equal(t, []models.SubInterface{
		{Name: "eth0.10", Parent: "eth0", VlanID: 10},
		{Name: "eth1.20", Parent: "eth1", VlanID: 20},
	}, got)
}

func TestCommitPersistsAndJournals(t *testing.T) {
	f := newFixture(t, Options{Journal: newJournal(t)})
	ctx := context.Background()

	run, err := f.r.Commit(ctx)
	require.NoError(t, err)
	assert.True(t, run.Persisted)
	assert.Equal(t, 5, run.Interfaces)
	assert.Equal(t, 1, run.Bonds)
	assert.Equal(t, 1, run.SubInterfaces)
	assert.Equal(t, 1, run.LcpPairs)

	persisted := reload(t, f.path)
	assert.Equal(t, f.store.Counts(), persisted.Counts())

	history, err := f.r.SyncHistory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, run.ID, history[0].ID)
	assert.True(t, history[0].Persisted)
}

func TestCommitFailureIsJournaled(t *testing.T) {
	f := newFixture(t, Options{Journal: newJournal(t)})
	f.client.StateErr = errors.New("boom")

	run, err := f.r.Commit(context.Background())
	require.Error(t, err)
	assert.False(t, run.Persisted)
	assert.NoFileExists(t, f.path)

	history, err := f.r.SyncHistory(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Contains(t, history[0].Error, "boom")
}

func TestApplyIntentUnresolvedInterfaces(t *testing.T) {
	f := newFixture(t, Options{})
	in := intent.Intent{Interfaces: []intent.InterfaceIntent{
		{Name: "HundredGigE1/0/0", Enabled: lo.ToPtr(true)},
		{Name: "ghost0", Enabled: lo.ToPtr(true), MTU: lo.ToPtr(uint32(1500))},
		{Name: "BondEthernet0", MTU: lo.ToPtr(uint32(9000))},
		{Name: "ghost1", Addresses: []netaddr.IPPrefix{netaddr.MustParseIPPrefix("10.0.0.1/24")}},
	}}

	rep, err := f.r.ApplyIntent(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Failed)
	assert.Equal(t, 2, rep.Succeeded)
	for _, e := range rep.Errors() {
		assert.ErrorIs(t, e, ErrUnresolved)
	}

	assert.Equal(t, []string{
		"set interface state HundredGigE1/0/0 up",
		"set interface mtu 9000 BondEthernet0",
	}, f.client.Executed())
	assert.Equal(t, StateIdle, f.r.State())
}

func TestApplyIntentDeletesBeforeAdds(t *testing.T) {
	f := newFixture(t, Options{})
	moved := netaddr.MustParseIPPrefix("192.0.2.1/24")
	in := intent.Intent{
		Interfaces: []intent.InterfaceIntent{
			{Name: "HundredGigE1/0/0", Addresses: []netaddr.IPPrefix{moved}},
		},
		Deletions: []intent.AddressDeletion{
			{Interface: "HundredGigE1/0/1", Prefix: moved},
		},
	}

	rep, err := f.r.ApplyIntent(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Succeeded)
	assert.Zero(t, rep.Failed)
	assert.Equal(t, []string{
		"set interface ip address del HundredGigE1/0/1 192.0.2.1/24",
		"set interface ip address HundredGigE1/0/0 192.0.2.1/24",
	}, f.client.Executed())

	persisted := reload(t, f.path)
	iface, ok := persisted.Interface("HundredGigE1/0/0")
	require.True(t, ok)
	assert.Equal(t, []netaddr.IPPrefix{moved}, iface.IPv4)
}

func TestApplyIntentSkipsPresentAddresses(t *testing.T) {
	f := newFixture(t, Options{})
	in := intent.Intent{Interfaces: []intent.InterfaceIntent{{
		Name: "HundredGigE1/0/1",
		Addresses: []netaddr.IPPrefix{
			netaddr.MustParseIPPrefix("192.0.2.1/24"),
			netaddr.MustParseIPPrefix("2001:db8::1/64"),
			netaddr.MustParseIPPrefix("2001:db8::1/64"),
		},
	}}}

	rep, err := f.r.ApplyIntent(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Succeeded)
	assert.Equal(t, 2, rep.Skipped)
	assert.Equal(t, []string{"set interface ip address HundredGigE1/0/1 2001:db8::1/64"}, f.client.Executed())
}

func TestApplyIntentDescriptionIsBestEffort(t *testing.T) {
	f := newFixture(t, Options{})
	f.client.Failures["set interface description"] = errors.New("unknown input")
	f.client.Failures["set interface mtu"] = errors.New("mtu not supported")

	in := intent.Intent{Interfaces: []intent.InterfaceIntent{{
		Name:        "HundredGigE1/0/0",
		Description: lo.ToPtr("uplink"),
		Enabled:     lo.ToPtr(false),
		MTU:         lo.ToPtr(uint32(1500)),
	}}}

	rep, err := f.r.ApplyIntent(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Succeeded)
	assert.Equal(t, 1, rep.Failed)
	require.Len(t, rep.Operations, 3)
	assert.Equal(t, StatusIgnored, rep.Operations[0].Status)
	assert.Equal(t, StatusFailed, rep.Operations[2].Status)
	assert.ErrorIs(t, rep.Errors()[0], command.ErrCommandFailed)

	iface, ok := f.store.Interface("HundredGigE1/0/0")
	require.True(t, ok)
	assert.Empty(t, iface.Description)
	assert.Zero(t, iface.MTU)
	assert.False(t, iface.AdminUp)
}

func TestApplyIntentInvalidValues(t *testing.T) {
	f := newFixture(t, Options{})
	in := intent.Intent{Interfaces: []intent.InterfaceIntent{{
		Name: "HundredGigE1/0/0",
		MTU:  lo.ToPtr(uint32(10)),
	}}}

	rep, err := f.r.ApplyIntent(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failed)
	assert.ErrorIs(t, rep.Errors()[0], command.ErrValidation)
	assert.Empty(t, f.client.Executed())
}

func TestApplyIntentConnectionFailure(t *testing.T) {
	f := newFixture(t, Options{})
	f.client.Connected = false
	f.client.ConnectErr = errors.New("socket missing")

	_, err := f.r.ApplyIntent(context.Background(), intent.Intent{})
	require.ErrorIs(t, err, southbound.ErrNotConnected)
	assert.Equal(t, 1, f.client.ConnectCalls)
	assert.Equal(t, StateIdle, f.r.State())
}

func TestApplyIntentJournal(t *testing.T) {
	f := newFixture(t, Options{Journal: newJournal(t)})
	ctx := context.Background()
	in := intent.Intent{Interfaces: []intent.InterfaceIntent{
		{Name: "HundredGigE1/0/0", Enabled: lo.ToPtr(true)},
		{Name: "ghost0", Enabled: lo.ToPtr(true)},
	}}

	rep, err := f.r.ApplyIntent(ctx, in)
	require.NoError(t, err)

	history, err := f.r.History(ctx, 5)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, rep.ID, history[0].ID)
	assert.Equal(t, 1, history[0].Failed)
	assert.Equal(t, 1, history[0].Succeeded)
	assert.Equal(t, OpResolve, history[0].Operations[1].Operation)
	assert.NotEmpty(t, history[0].Operations[1].Error)
}

func TestConcurrentCommitRejected(t *testing.T) {
	f := newFixture(t, Options{Timeout: 5 * time.Second})
	block := make(chan struct{})
	f.client.Block = block

	done := make(chan error, 1)
	go func() {
		done <- f.r.SetInterfaceState(context.Background(), "HundredGigE1/0/0", true)
	}()

	require.Eventually(t, func() bool { return len(f.client.Executed()) > 0 }, time.Second, time.Millisecond)
	assert.Equal(t, StateApplyInProgress, f.r.State())

	assert.ErrorIs(t, f.r.SyncFromDevice(context.Background()), ErrCommitInProgress)
	_, err := f.r.ApplyIntent(context.Background(), intent.Intent{})
	assert.ErrorIs(t, err, ErrCommitInProgress)

	close(block)
	require.NoError(t, <-done)
	assert.Equal(t, StateIdle, f.r.State())
	require.NoError(t, f.r.SyncFromDevice(context.Background()))
}

func TestCommandTimeout(t *testing.T) {
	f := newFixture(t, Options{Timeout: 20 * time.Millisecond})
	f.client.Block = make(chan struct{})

	err := f.r.SetInterfaceState(context.Background(), "HundredGigE1/0/0", true)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NoFileExists(t, f.path)
}

// hangingVppctl answers like vppctl but holds the first create until the
// caller gives up, as a VPP that is slow to reply would.
type hangingVppctl struct {
	mu      sync.Mutex
	creates int
}

func (h *hangingVppctl) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	line := args[len(args)-1]
	if line != "create loopback interface" {
		return []byte("vpp v24.10-release\n"), nil
	}

	h.mu.Lock()
	h.creates++
	first := h.creates == 1
	h.mu.Unlock()

	if first {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return []byte(fmt.Sprintf("loop%d\n", h.creates-1)), nil
}

func (h *hangingVppctl) sent() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.creates
}

func TestTimedOutWriteNotResent(t *testing.T) {
	h := &hangingVppctl{}
	client := vppctl.NewWithRunner(vppctl.Config{}, h.run)
	require.NoError(t, client.Connect(context.Background()))

	st := store.New(filepath.Join(t.TempDir(), "vpp_config.xml"))
	r := New(client, st, Options{Timeout: 20 * time.Millisecond})

	name, err := r.CreateLoopback(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, name)
	assert.Equal(t, 1, h.sent())
	assert.Empty(t, st.Interfaces())

	name, err = r.CreateLoopback(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "loop1", name)
	assert.Equal(t, 2, h.sent())
	assert.True(t, client.IsConnected())
}
