// Package config loads the entry daemon configuration.
//
// Configuration is read from a single YAML file named by the --config flag
// or the ENTRY_CONFIG environment variable. Fields missing from the file
// keep their defaults.
package config

import (
	"bytes"
	"encoding/hex"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable holding the config path.
const EnvVar = "ENTRY_CONFIG"

type Config struct {
	// LogLevel is a logrus level name.
	LogLevel string `yaml:"log_level"`

	Store     StoreConfig     `yaml:"store"`
	API       APIConfig       `yaml:"api"`
	BLE       BLEConfig       `yaml:"ble"`
	Handshake HandshakeConfig `yaml:"handshake"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Unlock    UnlockConfig    `yaml:"unlock"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// StoreConfig locates the encrypted store and the identity sealing it.
type StoreConfig struct {
	Path     string `yaml:"path"`
	Identity string `yaml:"identity"`
}

// APIConfig configures the remote token service.
type APIConfig struct {
	// Endpoint is the base URL; tokens are posted to Endpoint/qrcode/check.
	Endpoint string `yaml:"endpoint"`

	Timeout       time.Duration `yaml:"timeout"`
	ProbeInterval time.Duration `yaml:"probe_interval"`
}

type BLEConfig struct {
	// Device is the hci device index.
	Device            int           `yaml:"device"`
	ScanWindow        time.Duration `yaml:"scan_window"`
	Settle            time.Duration `yaml:"settle"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
}

// HandshakeConfig holds the actuator secret. Key and IV are hex encoded.
type HandshakeConfig struct {
	Key             string `yaml:"key"`
	IV              string `yaml:"iv"`
	Mode            string `yaml:"mode"`
	ResponseLength  int    `yaml:"response_length"`
	DerivePerDevice bool   `yaml:"derive_per_device"`
}

type PipelineConfig struct {
	TokenPrefix  string        `yaml:"token_prefix"`
	DisplayDelay time.Duration `yaml:"display_delay"`
}

type UnlockConfig struct {
	Pulse time.Duration `yaml:"pulse"`
}

// HTTPConfig configures the local status endpoint. An empty Listen
// disables it.
type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

// Default returns the configuration used for fields absent from the file.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Store: StoreConfig{
			Path:     "/var/lib/entry/store.age",
			Identity: "/var/lib/entry/identity.txt",
		},
		API: APIConfig{
			Timeout:       1000 * time.Millisecond,
			ProbeInterval: 5 * time.Second,
		},
		BLE: BLEConfig{
			ScanWindow:        30 * time.Second,
			Settle:            1000 * time.Millisecond,
			ReconnectInterval: 5000 * time.Millisecond,
		},
		Handshake: HandshakeConfig{
			Mode:           "cbc",
			ResponseLength: 16,
		},
		Pipeline: PipelineConfig{
			TokenPrefix:  "#BE",
			DisplayDelay: 5000 * time.Millisecond,
		},
		Unlock: UnlockConfig{
			Pulse: 5000 * time.Millisecond,
		},
	}
}

// Path returns flag if set, else the ENTRY_CONFIG environment variable.
func Path(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(EnvVar)
}

// Load reads the file at path over the defaults. An empty path yields
// the defaults. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "can't read config")
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "can't parse %s", path)
	}
	return cfg, nil
}

// Validate checks everything the daemon needs.
func (c *Config) Validate() error {
	if c.Store.Path == "" || c.Store.Identity == "" {
		return errors.New("store.path and store.identity are required")
	}

	u, err := url.Parse(c.API.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.Errorf("api.endpoint %q is not an absolute url", c.API.Endpoint)
	}

	if _, _, err := c.Handshake.Decode(); err != nil {
		return err
	}
	if c.Pipeline.TokenPrefix == "" {
		return errors.New("pipeline.token_prefix is required")
	}

	durations := map[string]time.Duration{
		"api.timeout":            c.API.Timeout,
		"api.probe_interval":     c.API.ProbeInterval,
		"ble.scan_window":        c.BLE.ScanWindow,
		"ble.reconnect_interval": c.BLE.ReconnectInterval,
		"pipeline.display_delay": c.Pipeline.DisplayDelay,
		"unlock.pulse":           c.Unlock.Pulse,
	}
	for name, d := range durations {
		if d <= 0 {
			return errors.Errorf("%s must be positive", name)
		}
	}
	if c.BLE.Settle < 0 {
		return errors.New("ble.settle must not be negative")
	}
	return nil
}

// Decode returns the binary key and IV.
func (h HandshakeConfig) Decode() (key, iv []byte, err error) {
	if key, err = hex.DecodeString(h.Key); err != nil {
		return nil, nil, errors.Wrap(err, "handshake.key")
	}
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, nil, errors.Errorf("handshake.key must be 16, 24 or 32 bytes, got %d", len(key))
	}

	switch h.Mode {
	case "cbc":
		if iv, err = hex.DecodeString(h.IV); err != nil {
			return nil, nil, errors.Wrap(err, "handshake.iv")
		}
		if len(iv) != 16 {
			return nil, nil, errors.Errorf("handshake.iv must be 16 bytes, got %d", len(iv))
		}
	case "cmac":
	default:
		return nil, nil, errors.Errorf("handshake.mode %q is not cbc or cmac", h.Mode)
	}

	if h.ResponseLength < 1 || h.ResponseLength > 16 {
		return nil, nil, errors.Errorf("handshake.response_length must be 1..16, got %d", h.ResponseLength)
	}
	return key, iv, nil
}
