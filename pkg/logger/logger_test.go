package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponentLevelInheritance(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	Configure("text", LogLevelWarn, map[string]LogLevel{Southbound: LogLevelDebug})
	SetOutput(&buf)
	t.Cleanup(func() { Configure("text", LogLevelInfo, nil) })

	Get(SouthboundVppctl).Debug("Executing", "command", "show version")
	Get(Store).Info("Saved")

	out := buf.String()
	assert.Contains(t, out, "[southbound.vppctl] Executing")
	assert.Contains(t, out, `command="show version"`)
	assert.NotContains(t, out, "Saved")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Configure("json", LogLevelInfo, nil)
	SetOutput(&buf)
	t.Cleanup(func() { Configure("text", LogLevelInfo, nil) })

	Get(Reconciler).Info("Sync complete", "interfaces", 4)

	line := strings.TrimSpace(buf.String())
	require.NotEmpty(t, line)
	assert.Contains(t, line, `"component":"reconciler"`)
	assert.Contains(t, line, `"interfaces":4`)
}

func TestWithDevice(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { Configure("text", LogLevelInfo, nil) })

	l := WithDevice(Get(Southbound), DeviceAttrs{Transport: "ssh", Target: "10.0.0.1:22"})
	l.Warn("Connect failed")

	assert.Contains(t, buf.String(), "transport=ssh target=10.0.0.1:22")
}
