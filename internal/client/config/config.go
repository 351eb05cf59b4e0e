package config

import (
	"net"
	"strconv"
	"time"

	"linechat/internal/config"
	"linechat/internal/port"
)

// DefaultPath is used when no --config flag is given.
const DefaultPath = "client.yaml"

var requiredKeys = []string{"host", "port", "truststore", "truststore-password"}

// Config represents client.yaml.
type Config struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	Truststore         string `yaml:"truststore"`
	TruststorePassword string `yaml:"truststore-password"`

	SessionDir string    `yaml:"session-dir"`
	Multiplex  bool      `yaml:"multiplex"`
	LogFile    string    `yaml:"log-file"`
	Reconnect  Reconnect `yaml:"reconnect"`
}

// Reconnect tunes the backoff used when the server goes away.
type Reconnect struct {
	MaxAttempts  int           `yaml:"max-attempts"`
	InitialDelay time.Duration `yaml:"initial-delay"`
	MaxDelay     time.Duration `yaml:"max-delay"`
}

func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	cfg := defaults()
	if err := config.Load(path, cfg, requiredKeys...); err != nil {
		return nil, err
	}
	return cfg, cfg.validate()
}

func ParseConfig(data []byte) (*Config, error) {
	cfg := defaults()
	if err := config.Decode(data, cfg, requiredKeys...); err != nil {
		return nil, err
	}
	return cfg, cfg.validate()
}

func defaults() *Config {
	d := port.DefaultReconnectConfig()
	return &Config{
		SessionDir: ".",
		Reconnect: Reconnect{
			MaxAttempts:  d.MaxAttempts,
			InitialDelay: d.InitialDelay,
			MaxDelay:     d.MaxDelay,
		},
	}
}

func (c *Config) validate() error {
	return config.CheckPort(c.Port)
}

// Addr returns the server address as host:port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ReconnectConfig converts the reconnect section for the port.
func (c *Config) ReconnectConfig() *port.ReconnectConfig {
	rc := port.DefaultReconnectConfig()
	if c.Reconnect.MaxAttempts > 0 {
		rc.MaxAttempts = c.Reconnect.MaxAttempts
	}
	if c.Reconnect.InitialDelay > 0 {
		rc.InitialDelay = c.Reconnect.InitialDelay
	}
	if c.Reconnect.MaxDelay > 0 {
		rc.MaxDelay = c.Reconnect.MaxDelay
	}
	return rc
}
