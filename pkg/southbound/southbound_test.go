package southbound

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veesix-networks/vppifd/pkg/command"
	"github.com/veesix-networks/vppifd/pkg/models"
)

type scriptExec map[string]string

func (s scriptExec) Exec(ctx context.Context, line string) (string, error) {
	out, ok := s[line]
	if !ok {
		return "", errors.New("unexpected command " + line)
	}
	return out, nil
}

func TestCLIStateReads(t *testing.T) {
	exec := scriptExec{
		"show interface": "              Name               Idx    State  MTU (L3/IP4/IP6/MPLS)     Counter          Count\n" +
			"BondEthernet0                     3      up          9000/0/0/0\n" +
			"GigabitEthernet0/8/0              1      up          9000/0/0/0\n",
		"show interface addr":      "BondEthernet0 (up):\n  L3 192.0.2.1/24\n",
		"show hardware-interfaces": "BondEthernet0   3  up  BondEthernet0\n  Ethernet address 02:fe:00:00:00:03\n",
		"show bond details":        "BondEthernet0\n  mode: xor\n  load balance: l23\n  number of members: 1\n    GigabitEthernet0/8/0\n",
		"show lcp":                 "itf-pair: [0] BondEthernet0 tap1 be0 4 type tap netns dataplane\n",
	}
	state := NewCLIState(exec)

	ifaces, err := state.Interfaces(context.Background())
	require.NoError(t, err)
	require.Len(t, ifaces, 2)
	assert.Equal(t, "02:fe:00:00:00:03", ifaces[0].MAC.String())
	assert.Equal(t, "192.0.2.1/24", ifaces[0].IPv4[0].String())
	assert.Nil(t, ifaces[1].MAC)

	bonds, err := state.Bonds(context.Background())
	require.NoError(t, err)
	require.Len(t, bonds, 1)
	assert.Equal(t, models.BondModeXOR, bonds[0].Mode)
	assert.Equal(t, []string{"GigabitEthernet0/8/0"}, bonds[0].Members)

	pairs, err := state.LcpPairs(context.Background())
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "dataplane", pairs[0].Namespace)
}

func TestCLIStateMissingPlugin(t *testing.T) {
	state := NewCLIState(scriptExec{"show lcp": "show: unknown input `lcp'"})
	pairs, err := state.LcpPairs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestCLIStateHardwareFailureTolerated(t *testing.T) {
	state := NewCLIState(scriptExec{
		"show interface":      "loop0                             5      up          1500/0/0/0\n",
		"show interface addr": "loop0 (up):\n",
	})
	ifaces, err := state.Interfaces(context.Background())
	require.NoError(t, err)
	require.Len(t, ifaces, 1)
	assert.Equal(t, "loop0", ifaces[0].Name)
}

func TestRun(t *testing.T) {
	m := NewMockClient()
	m.Outputs["set interface mtu 9000 loop0"] = "set interface mtu: failed to set mtu"

	cmd, err := command.SetMTU("loop0", 9000)
	require.NoError(t, err)

	out, err := Run(context.Background(), m, cmd)
	assert.Contains(t, out, "failed")
	var cerr *CommandError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "set interface mtu 9000 loop0", cerr.Command)
	assert.ErrorIs(t, err, ErrCommandFailed)
	assert.False(t, IsConnectionError(err))

	require.NoError(t, m.Disconnect())
	_, err = Run(context.Background(), m, cmd)
	assert.True(t, IsConnectionError(err))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"not connected", ErrNotConnected, true},
		{"socket refused", fmt.Errorf("%w: connection refused", ErrUnavailable), true},
		{"deadline after send", &CommandError{Command: "create loopback interface", Err: context.DeadlineExceeded}, false},
		{"session lost after send", &CommandError{Command: "create loopback interface", Err: fmt.Errorf("%w: eof", ErrUnavailable)}, false},
		{"unavailable with deadline", fmt.Errorf("%w: %w", ErrUnavailable, context.DeadlineExceeded), false},
		{"rejected", &CommandError{Command: "show lcp", Err: errors.New("unknown input")}, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}

	lost := &CommandError{Command: "show version", Err: fmt.Errorf("%w: eof", ErrUnavailable)}
	assert.True(t, IsConnectionError(lost))
}
