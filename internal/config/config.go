// Package config holds the YAML decoding and validation shared by the client
// and server configuration files.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	MinPort = 1024
	MaxPort = 65535
)

var (
	ErrMissingKeys = errors.New("config: missing required keys")
	ErrPortRange   = fmt.Errorf("config: port must be between %d and %d", MinPort, MaxPort)
)

// Load reads path and decodes it into out after checking that every
// required top-level key is present.
func Load(path string, out any, required ...string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := Decode(data, out, required...); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Decode is Load for in-memory YAML.
func Decode(data []byte, out any, required ...string) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}

	var missing []string
	for _, key := range required {
		if _, ok := raw[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: %s", ErrMissingKeys, strings.Join(missing, ", "))
	}

	return yaml.Unmarshal(data, out)
}

// CheckPort rejects ports outside the unprivileged range.
func CheckPort(port int) error {
	if port < MinPort || port > MaxPort {
		return fmt.Errorf("%w, got %d", ErrPortRange, port)
	}
	return nil
}
