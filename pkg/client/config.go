package client

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wcfb/reactor/pkg/reconnect"
	"github.com/wcfb/reactor/pkg/transport"
)

// TLSFiles points at PEM material on disk.
type TLSFiles struct {
	// CertFile and KeyFile hold the client certificate. Both empty
	// means no client certificate.
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// CAFile holds trusted CA certificates for server verification.
	// Empty uses the system pool.
	CAFile string `yaml:"ca_file"`

	// ServerName overrides the expected server name (SNI).
	ServerName string `yaml:"server_name"`

	// InsecureSkipVerify disables certificate verification.
	// Only for testing - never use in production!
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// ReconnectConfig configures the default session retry policy.
type ReconnectConfig struct {
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Multiplier   float64       `yaml:"multiplier"`
	Jitter       float64       `yaml:"jitter"`

	// MaxAttempts caps the session's cumulative attempt count.
	// Zero means retry forever.
	MaxAttempts int `yaml:"max_attempts"`
}

// Config is the file-loadable client configuration.
type Config struct {
	// Endpoint is the connect target as "host:port".
	Endpoint string `yaml:"endpoint"`

	Socket transport.SocketOptions `yaml:"socket"`

	// TLS enables TLS when present.
	TLS *TLSFiles `yaml:"tls"`

	MaxMessageSize uint32 `yaml:"max_message_size"`

	KeepAlive KeepAliveConfig `yaml:"keep_alive"`

	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// DefaultConfig returns a plaintext configuration with default socket
// options and keep-alive disabled.
func DefaultConfig() Config {
	return Config{
		Socket:         transport.DefaultSocketOptions(),
		MaxMessageSize: transport.DefaultMaxMessageSize,
	}
}

// LoadConfig reads a YAML config file. Fields absent from the file keep
// their DefaultConfig values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// ClientConfig translates the file configuration into a ClientConfig.
// Codec, dispatcher, logger and callbacks can be filled in afterwards.
func (cfg *Config) ClientConfig() (ClientConfig, error) {
	var out ClientConfig

	if cfg.Endpoint != "" {
		ep, err := transport.ParseEndpoint(cfg.Endpoint)
		if err != nil {
			return out, fmt.Errorf("invalid endpoint: %w", err)
		}
		out.Endpoint = ep
	}

	if cfg.TLS != nil {
		tlsCfg, err := transport.LoadTLSFiles(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.CAFile)
		if err != nil {
			return out, err
		}
		tlsCfg.ServerName = cfg.TLS.ServerName
		tlsCfg.InsecureSkipVerify = cfg.TLS.InsecureSkipVerify

		dialer, err := transport.NewTLSDialer(cfg.Socket, tlsCfg)
		if err != nil {
			return out, err
		}
		out.Dialer = dialer
	} else {
		out.Dialer = transport.NewNetDialer(cfg.Socket)
	}

	out.MaxMessageSize = cfg.MaxMessageSize
	out.KeepAlive = cfg.KeepAlive
	return out, nil
}

// Build creates a client from the file configuration.
func (cfg *Config) Build() (*Client, error) {
	cc, err := cfg.ClientConfig()
	if err != nil {
		return nil, err
	}
	return New(cc), nil
}

// Policy builds the session retry policy described by the Reconnect
// section: capped exponential backoff, optionally limited to
// MaxAttempts.
func (cfg *Config) Policy() reconnect.Policy {
	policy := reconnect.WithBackoff(reconnect.BackoffConfig{
		Initial:    cfg.Reconnect.InitialDelay,
		Max:        cfg.Reconnect.MaxDelay,
		Multiplier: cfg.Reconnect.Multiplier,
		Jitter:     cfg.Reconnect.Jitter,
	})
	if cfg.Reconnect.MaxAttempts > 0 {
		policy = reconnect.Limit(cfg.Reconnect.MaxAttempts, policy)
	}
	return policy
}
