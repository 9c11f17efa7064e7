// Package config loads the node daemon's TOML configuration, grounded on
// the teacher's config/config.go load-or-create-default shape (same
// os.Stat/createDefault split, same toml.DecodeFile/toml.NewEncoder calls),
// adapted from a single validator key to the effect-mode and device-key
// settings aurad needs.
package config

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/hxrts/aura/crypto"
)

// EffectMode selects which effects.Bundle constructor aurad wires up.
type EffectMode string

const (
	ModeProduction EffectMode = "production"
	ModeTesting    EffectMode = "testing"
	ModeSimulation EffectMode = "simulation"
)

// Config is the on-disk shape of an aurad node's configuration file.
type Config struct {
	ListenAddress  string   `toml:"ListenAddress"`
	DataDir        string   `toml:"DataDir"`
	DeviceKey      string   `toml:"DeviceKey"` // hex-encoded ed25519 seed
	BootstrapPeers []string `toml:"BootstrapPeers"`

	EffectMode    EffectMode `toml:"EffectMode"`
	SimulationSeed int64     `toml:"SimulationSeed"`

	LogFile  string `toml:"LogFile"`
	LogLevel string `toml:"LogLevel"`

	OTelEndpoint string `toml:"OTelEndpoint"`
	OTelInsecure bool   `toml:"OTelInsecure"`

	MetricsAddress string `toml:"MetricsAddress"`
}

// Load reads path, creating a default configuration file there if it does
// not yet exist. A config with no DeviceKey is given a freshly generated
// one and rewritten to disk, matching the teacher's "fill in and persist
// the missing validator key" behavior.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if cfg.DeviceKey == "" {
		kp, err := crypto.GenerateKeyPair()
		if err != nil {
			return nil, fmt.Errorf("config: generate device key: %w", err)
		}
		cfg.DeviceKey = hex.EncodeToString(kp.Private.Seed())

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return nil, fmt.Errorf("config: rewrite %s: %w", path, err)
		}
		defer f.Close()
		if err := toml.NewEncoder(f).Encode(cfg); err != nil {
			return nil, fmt.Errorf("config: encode %s: %w", path, err)
		}
	}

	if cfg.EffectMode == "" {
		cfg.EffectMode = ModeProduction
	}
	return cfg, nil
}

func createDefault(path string) (*Config, error) {
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("config: generate device key: %w", err)
	}

	cfg := &Config{
		ListenAddress:  ":7420",
		DataDir:        "./aura-data",
		DeviceKey:      hex.EncodeToString(kp.Private.Seed()),
		BootstrapPeers: []string{},
		EffectMode:     ModeProduction,
		LogLevel:       "info",
		MetricsAddress: ":9420",
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("config: create %s: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, fmt.Errorf("config: encode %s: %w", path, err)
	}
	return cfg, nil
}
