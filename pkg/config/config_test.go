package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, TransportVppctl, cfg.Device.Transport)
	assert.Equal(t, 10*time.Second, cfg.Device.Timeout)
	assert.Equal(t, "/run/vpp/cli.sock", cfg.Device.Vppctl.Socket)
	assert.Equal(t, "/run/vpp/api.sock", cfg.Device.APISocket)
	assert.Equal(t, "/var/lib/vppifd/vpp_config.xml", cfg.Store.Path)
	assert.False(t, cfg.Journal.Enabled)
	assert.Nil(t, cfg.Device.SSH)
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
logging:
  format: json
  level: debug
  components:
    southbound.vppctl: warn
device:
  transport: ssh
  timeout: 3s
  ssh:
    address: 192.0.2.10
    username: vpp
    vppctl: sudo vppctl
journal:
  enabled: true
  path: /tmp/journal.db
metrics:
  listen: 127.0.0.1:9101
`))
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.Device.Timeout)
	require.NotNil(t, cfg.Device.SSH)
	assert.Equal(t, 22, cfg.Device.SSH.Port)
	assert.Equal(t, "sudo vppctl", cfg.Device.SSH.Vppctl)
	assert.Equal(t, "127.0.0.1:9101", cfg.Metrics.Listen)
	assert.Equal(t, "warn", string(cfg.Logging.LogComponents()["southbound.vppctl"]))
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"bad transport", "device:\n  transport: telnet\n", "device.transport"},
		{"ssh without block", "device:\n  transport: ssh\n", "device.ssh"},
		{"ssh without user", "device:\n  transport: ssh\n  ssh:\n    address: h\n", "device.ssh.username"},
		{"bad level", "logging:\n  level: loud\n", "logging.level"},
		{"bad component level", "logging:\n  components:\n    store: loud\n", "logging.components[store]"},
		{"bad listen", "metrics:\n  listen: nowhere\n", "metrics.listen"},
		{"negative timeout", "device:\n  timeout: -1s\n", "device.timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)

			var ve ValidationErrors
			require.True(t, errors.As(err, &ve), err.Error())
			paths := make([]string, 0, len(ve))
			for _, e := range ve {
				paths = append(paths, e.FieldPath)
			}
			assert.Contains(t, paths, tt.field)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, Save(path, Default()))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("device: [\n"), 0644))
	_, err = Load(path)
	assert.Error(t, err)
}
