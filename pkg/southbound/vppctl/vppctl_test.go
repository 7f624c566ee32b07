package vppctl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veesix-networks/vppifd/pkg/command"
	"github.com/veesix-networks/vppifd/pkg/models"
	"github.com/veesix-networks/vppifd/pkg/southbound"
)

type fakeRunner struct {
	calls   [][]string
	outputs map[string]string
	err     error
	wait    bool
}

func (f *fakeRunner) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.wait {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.outputs[args[len(args)-1]]), nil
}

func TestConnectAndExec(t *testing.T) {
	f := &fakeRunner{outputs: map[string]string{
		"show version": "vpp v24.10-release built by root\n",
		"show interface": "              Name               Idx    State  MTU (L3/IP4/IP6/MPLS)     Counter          Count\n" +
			"GigabitEthernet0/8/0              1      up          9000/0/0/0\n",
		"show interface addr": "GigabitEthernet0/8/0 (up):\n  L3 192.0.2.1/24\n",
	}}
	c := NewWithRunner(Config{Socket: "/tmp/cli.sock"}, f.run)

	_, err := c.Exec(context.Background(), "show interface")
	require.ErrorIs(t, err, southbound.ErrNotConnected)

	require.NoError(t, c.Connect(context.Background()))
	assert.True(t, c.IsConnected())
	assert.Equal(t, []string{DefaultBinary, "-s", "/tmp/cli.sock", "show version"}, f.calls[0])

	ifaces, err := c.Interfaces(context.Background())
	require.NoError(t, err)
	require.Len(t, ifaces, 1)
	assert.Equal(t, "GigabitEthernet0/8/0", ifaces[0].Name)
	assert.Equal(t, models.InterfaceTypeEthernet, ifaces[0].Type)
	require.Len(t, ifaces[0].IPv4, 1)
	assert.Equal(t, "192.0.2.1/24", ifaces[0].IPv4[0].String())
}

func TestExecTimeoutDisconnects(t *testing.T) {
	f := &fakeRunner{outputs: map[string]string{"show version": "vpp"}}
	c := NewWithRunner(Config{Timeout: 20 * time.Millisecond}, f.run)
	require.NoError(t, c.Connect(context.Background()))

	f.wait = true
	_, err := c.Exec(context.Background(), "show bond details")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, southbound.ErrCommandFailed)
	assert.False(t, southbound.IsRetryable(err))
	assert.False(t, c.IsConnected())

	f.wait = false
	require.NoError(t, c.Reconnect(context.Background()))
	assert.True(t, c.IsConnected())
}

func TestMissingBinary(t *testing.T) {
	f := &fakeRunner{err: errors.New("exec: \"vppctl\": executable file not found in $PATH")}
	c := NewWithRunner(Config{}, f.run)

	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, southbound.ErrUnavailable)
	assert.True(t, southbound.IsRetryable(err))
	assert.False(t, c.IsConnected())
}

func TestRunAppliesCheck(t *testing.T) {
	f := &fakeRunner{outputs: map[string]string{"show version": "vpp"}}
	f.outputs["set interface state bogus0 up"] = "set interface state: unknown input `bogus0 up'"
	c := NewWithRunner(Config{}, f.run)
	require.NoError(t, c.Connect(context.Background()))

	out, err := c.Exec(context.Background(), "set interface state bogus0 up")
	require.NoError(t, err)
	assert.Contains(t, out, "unknown input")

	var cerr *southbound.CommandError
	_, err = southbound.Run(context.Background(), c, mustState(t, "bogus0"))
	require.ErrorAs(t, err, &cerr)
	assert.ErrorIs(t, err, southbound.ErrCommandFailed)
	assert.Contains(t, cerr.Output, "unknown input")

	_, err = southbound.Run(context.Background(), c, mustState(t, "GigabitEthernet0/8/0"))
	assert.NoError(t, err)
}

func mustState(t *testing.T, name string) command.Command {
	t.Helper()
	cmd, err := command.SetAdminState(name, true)
	require.NoError(t, err)
	return cmd
}
