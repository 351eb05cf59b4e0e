package config

import (
	"fmt"
	"time"

	"linechat/internal/config"
	"linechat/internal/server"
	"linechat/internal/server/ai"
	"linechat/internal/server/room"
)

// DefaultPath is used when no --config flag is given.
const DefaultPath = "server.yaml"

var requiredKeys = []string{"port", "keystore", "keystore-password"}

// Config represents server.yaml.
type Config struct {
	Port             int    `yaml:"port"`
	Keystore         string `yaml:"keystore"`
	KeystorePassword string `yaml:"keystore-password"`

	UsersDB         string        `yaml:"users-db"`
	CredentialStore string        `yaml:"credential-store"`
	RoomPolicy      room.Policy   `yaml:"room-policy"`
	History         int           `yaml:"history"`
	RateLimit       float64       `yaml:"rate-limit"`
	RateBurst       int           `yaml:"rate-burst"`
	StatusAddr      string        `yaml:"status-addr"`
	TokenTTL        time.Duration `yaml:"token-ttl"`
	Multiplex       bool          `yaml:"multiplex"`
	Env             string        `yaml:"env"`
	AI              AI            `yaml:"ai"`
}

type AI struct {
	Model string   `yaml:"model"`
	Rooms []string `yaml:"rooms"`
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
	opts := server.DefaultOptions()
	return &Config{
		UsersDB:         "users.db",
		CredentialStore: "file",
		RoomPolicy:      room.PolicyReject,
		History:         20,
		RateLimit:       opts.RateLimit,
		RateBurst:       opts.RateBurst,
		TokenTTL:        720 * time.Hour,
		Env:             "prod",
		AI: AI{
			Model: ai.DefaultModel,
			Rooms: ai.DefaultRooms,
		},
	}
}

func (c *Config) validate() error {
	if err := config.CheckPort(c.Port); err != nil {
		return err
	}
	switch c.RoomPolicy {
	case room.PolicyReject, room.PolicyCreate:
	default:
		return fmt.Errorf("config: unknown room-policy %q", c.RoomPolicy)
	}
	switch c.CredentialStore {
	case "file", "sqlite":
	default:
		return fmt.Errorf("config: unknown credential-store %q", c.CredentialStore)
	}
	if c.History < 0 {
		return fmt.Errorf("config: history must not be negative")
	}
	return nil
}

// ServerOptions converts the connection settings.
func (c *Config) ServerOptions() server.Options {
	opts := server.DefaultOptions()
	opts.RateLimit = c.RateLimit
	opts.RateBurst = c.RateBurst
	opts.Multiplex = c.Multiplex
	return opts
}
