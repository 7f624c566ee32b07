// Package config loads the vppifd YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/veesix-networks/vppifd/pkg/logger"
	"github.com/veesix-networks/vppifd/pkg/opdb/sqlite"
	"github.com/veesix-networks/vppifd/pkg/southbound/ssh"
	"github.com/veesix-networks/vppifd/pkg/southbound/vpp"
	"github.com/veesix-networks/vppifd/pkg/southbound/vppctl"
	"github.com/veesix-networks/vppifd/pkg/store"
)

const DefaultPath = "/etc/vppifd/config.yaml"

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads path. A missing file at the default location yields the
// defaults; any other missing file is an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && path == DefaultPath {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = string(logger.LogLevelInfo)
	}

	if c.Device.Transport == "" {
		c.Device.Transport = TransportVppctl
	}
	if c.Device.Timeout == 0 {
		c.Device.Timeout = vppctl.DefaultTimeout
	}
	if c.Device.Vppctl.Binary == "" {
		c.Device.Vppctl.Binary = vppctl.DefaultBinary
	}
	if c.Device.Vppctl.Socket == "" {
		c.Device.Vppctl.Socket = vppctl.DefaultSocket
	}
	if c.Device.APISocket == "" {
		c.Device.APISocket = vpp.DefaultSocket
	}
	if s := c.Device.SSH; s != nil {
		if s.Port == 0 {
			s.Port = ssh.DefaultPort
		}
		if s.Vppctl == "" {
			s.Vppctl = ssh.DefaultVppctl
		}
	}

	if c.Store.Path == "" {
		c.Store.Path = store.DefaultPath
	}
	if c.Journal.Path == "" {
		c.Journal.Path = sqlite.DefaultPath
	}
	if c.Journal.Keep == 0 {
		c.Journal.Keep = 500
	}
	if c.LCP.VerifyTimeout == 0 {
		c.LCP.VerifyTimeout = 2 * time.Second
	}
}

func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	var out ValidationErrors
	for _, e := range fieldErrs {
		out = append(out, ValidationError{
			FieldPath: strings.TrimPrefix(e.Namespace(), "Config."),
			Message:   validationMessage(e),
		})
	}
	return out
}

// LogComponents converts the logging overrides for logger.Configure.
func (l Logging) LogComponents() map[string]logger.LogLevel {
	out := make(map[string]logger.LogLevel, len(l.Components))
	for name, lvl := range l.Components {
		out[name] = logger.LogLevel(lvl)
	}
	return out
}
