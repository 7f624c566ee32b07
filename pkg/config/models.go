package config

import "time"

const (
	TransportVppctl = "vppctl"
	TransportVPP    = "vpp"
	TransportSSH    = "ssh"
)

type Config struct {
	Logging Logging `yaml:"logging"`
	Device  Device  `yaml:"device"`
	Store   Store   `yaml:"store"`
	Journal Journal `yaml:"journal"`
	LCP     LCP     `yaml:"lcp"`
	Metrics Metrics `yaml:"metrics"`
}

type Logging struct {
	Format     string            `yaml:"format" validate:"oneof=text json"`
	Level      string            `yaml:"level" validate:"oneof=debug info warn error"`
	Components map[string]string `yaml:"components,omitempty" validate:"dive,oneof=debug info warn error"`
}

type Device struct {
	Transport string        `yaml:"transport" validate:"oneof=vppctl vpp ssh"`
	Timeout   time.Duration `yaml:"timeout" validate:"gt=0"`
	Vppctl    Vppctl        `yaml:"vppctl"`
	APISocket string        `yaml:"api_socket" validate:"required_if=Transport vpp"`
	SSH       *SSH          `yaml:"ssh,omitempty" validate:"required_if=Transport ssh"`
}

type Vppctl struct {
	Binary string `yaml:"binary" validate:"required"`
	Socket string `yaml:"socket" validate:"required"`
}

type SSH struct {
	Address    string `yaml:"address" validate:"required"`
	Port       int    `yaml:"port" validate:"min=1,max=65535"`
	Username   string `yaml:"username" validate:"required"`
	Password   string `yaml:"password,omitempty"`
	PrivateKey string `yaml:"private_key,omitempty" validate:"omitempty,file"`
	// Vppctl is the remote command, e.g. "sudo vppctl -s /run/vpp/cli.sock".
	Vppctl string `yaml:"vppctl"`
}

type Store struct {
	Path string `yaml:"path" validate:"required"`
}

type Journal struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required_if=Enabled true"`
	// Keep bounds the entries retained per history; zero keeps everything.
	Keep int `yaml:"keep" validate:"min=0"`
}

type LCP struct {
	VerifyHost    bool          `yaml:"verify_host"`
	VerifyTimeout time.Duration `yaml:"verify_timeout" validate:"min=0"`
}

type Metrics struct {
	Listen string `yaml:"listen,omitempty" validate:"omitempty,hostname_port"`
}
