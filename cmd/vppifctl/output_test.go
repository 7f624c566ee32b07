package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"inet.af/netaddr"

	"github.com/veesix-networks/vppifd/pkg/command"
	"github.com/veesix-networks/vppifd/pkg/models"
	"github.com/veesix-networks/vppifd/pkg/reconciler"
)

func TestRenderInterfaceTable(t *testing.T) {
	var buf bytes.Buffer
	err := render(&buf, formatTable, []models.Interface{{
		Name:    "HundredGigE1/0/0",
		Index:   1,
		AdminUp: true,
		MTU:     9000,
		Type:    models.InterfaceTypeEthernet,
		IPv4:    []netaddr.IPPrefix{netaddr.MustParseIPPrefix("192.0.2.1/24")},
	}})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"NAME", "INDEX", "ADMIN", "MTU", "TYPE", "ADDRESSES", "DESCRIPTION"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"HundredGigE1/0/0", "1", "up", "9000", "ethernet", "192.0.2.1/24", "-"}, strings.Fields(lines[1]))
}

func TestRenderEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, formatTable, []models.Bond{}))
	assert.Equal(t, "No data\n", buf.String())
}

func TestRenderStructured(t *testing.T) {
	subs := []models.SubInterface{{Name: "BondEthernet0.100", Parent: "BondEthernet0", VlanID: 100}}

	var js bytes.Buffer
	require.NoError(t, render(&js, formatJSON, subs))
	assert.Contains(t, js.String(), `"vlan_id": 100`)

	var y bytes.Buffer
	require.NoError(t, render(&y, formatYAML, subs))
	assert.Contains(t, y.String(), "parent: BondEthernet0")
	assert.Contains(t, y.String(), "vlan_id: 100")
}

func TestRenderReport(t *testing.T) {
	rep := &reconciler.ApplyReport{Succeeded: 1, Failed: 1}
	rep.Operations = []reconciler.OperationResult{
		{Interface: "eth0", Operation: reconciler.OpAdminState, Status: reconciler.StatusSucceeded},
		{Interface: "ghost0", Operation: reconciler.OpResolve, Status: reconciler.StatusFailed, Error: "interface not found on device: ghost0"},
	}

	var buf bytes.Buffer
	require.NoError(t, render(&buf, formatTable, rep))
	out := buf.String()
	assert.Contains(t, out, "1 succeeded, 1 failed, 0 skipped")
	assert.Contains(t, out, "interface not found on device: ghost0")
}

func TestCommandTree(t *testing.T) {
	root := newRootCmd(&app{})
	for _, path := range [][]string{
		{"sync"},
		{"commit"},
		{"apply"},
		{"show", "interfaces"},
		{"show", "lcp"},
		{"bond", "add-member"},
		{"subif", "create"},
		{"loopback", "delete"},
		{"lcp", "auto-subint"},
		{"interface", "address", "del"},
		{"vppctl"},
		{"history"},
		{"shell"},
		{"serve-metrics"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestParseHelpers(t *testing.T) {
	on, err := parseOnOff("ON")
	require.NoError(t, err)
	assert.True(t, on)

	_, err = parseOnOff("maybe")
	assert.Error(t, err)

	up, err := parseUpDown("down")
	require.NoError(t, err)
	assert.False(t, up)

	_, err = parseUint32("vlan", "-1")
	assert.Error(t, err)
}

func TestBondArgs(t *testing.T) {
	args, err := bondArgs("xor", "l34", "", "4294967295")
	require.NoError(t, err)
	assert.Equal(t, models.BondModeXOR, args.Mode)
	assert.Equal(t, models.LoadBalanceL34, args.LoadBalance)
	require.NotNil(t, args.ID)
	assert.Equal(t, uint32(4294967295), *args.ID)

	args, err = bondArgs("lacp", "", "", "")
	require.NoError(t, err)
	assert.Nil(t, args.ID)

	for _, id := range []string{"4294967296", "-1", "two"} {
		_, err := bondArgs("lacp", "", "", id)
		assert.ErrorIs(t, err, command.ErrValidation, id)
	}
}
