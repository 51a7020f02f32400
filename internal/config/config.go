// Package config manages xailyser server and client configuration using
// koanf/v2.
//
// Supports YAML files and environment variables layered over defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"golang.org/x/crypto/bcrypt"
)

// -------------------------------------------------------------------------
// Configuration structures
// -------------------------------------------------------------------------

// ServerConfig holds the complete capture-server configuration.
type ServerConfig struct {
	Capture CaptureConfig `koanf:"capture"`
	Listen  ListenConfig  `koanf:"listen"`
	Metrics MetricsConfig `koanf:"metrics"`
	Log     LogConfig     `koanf:"log"`
	Lookup  LookupConfig  `koanf:"lookup"`
	Sampler SamplerConfig `koanf:"sampler"`

	// Password is the bcrypt hash of the admin password, for at-rest
	// storage and local ChangePassword/CLI verification only.
	Password string `koanf:"password_hash"`
	// PasswordDigest is transport.DigestPassword's sha256 hex digest of
	// the same plaintext, persisted alongside Password because it cannot
	// be re-derived from the bcrypt hash: the wire AUTH-KEY check is a
	// direct equality comparison against this value, not a
	// bcrypt.CompareHashAndPassword call.
	PasswordDigest string `koanf:"password_digest"`
}

// CaptureConfig selects and tunes the capture interface.
type CaptureConfig struct {
	// Interface is the NIC name to capture from (e.g. "eth0").
	Interface string `koanf:"interface"`
	// RawFramesRetained controls whether undecodable frames keep their
	// raw bytes (spec.md §4.3's rawNeeded flag).
	RawFramesRetained bool `koanf:"raw_frames_retained"`
	// AcceptTimeout bounds each non-blocking capture-loop poll.
	AcceptTimeout time.Duration `koanf:"accept_timeout"`
}

// ListenConfig is the control-channel listen address and default
// compression setting.
type ListenConfig struct {
	Addr              string `koanf:"addr"`
	CompressionActive bool   `koanf:"compression_active"`
}

// MetricsConfig is the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
	Path string `koanf:"path"`
}

// LogConfig is the logging configuration, consumed by logp.Init.
type LogConfig struct {
	Level   string `koanf:"level"`
	Verbose bool   `koanf:"verbose"`
}

// LookupConfig names the OUI/port database files loaded at startup.
type LookupConfig struct {
	OuiPath  string `koanf:"oui_path"`
	PortPath string `koanf:"port_path"`
}

// SamplerConfig controls the throughput sampler's display window and unit.
type SamplerConfig struct {
	// DisplayWindowSeconds is spec.md §4.6's W.
	DisplayWindowSeconds int    `koanf:"display_window_seconds"`
	SpeedUnit            string `koanf:"speed_unit"`
}

// Profile is one saved connection a client can dial without re-entering
// host/port/password, grounded on original_source/client/src/profiles.rs.
type Profile struct {
	Name        string `koanf:"name"`
	Host        string `koanf:"host"`
	Port        int    `koanf:"port"`
	AuthKeyHash string `koanf:"auth_key_hash"`
}

// ClientConfig holds the inspection client's saved connection profiles.
type ClientConfig struct {
	Profiles []Profile `koanf:"profiles"`
	Log      LogConfig `koanf:"log"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultServerConfig returns a ServerConfig populated with sensible
// defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Capture: CaptureConfig{
			Interface:         "any",
			RawFramesRetained: false,
			AcceptTimeout:     100 * time.Millisecond,
		},
		Listen: ListenConfig{
			Addr:              ":8765",
			CompressionActive: false,
		},
		Metrics: MetricsConfig{
			Addr: ":9216",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:   "info",
			Verbose: false,
		},
		Lookup: LookupConfig{
			OuiPath:  "oui.txt",
			PortPath: "ports.csv",
		},
		Sampler: SamplerConfig{
			DisplayWindowSeconds: 60,
			SpeedUnit:            "bits_per_second",
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for server configuration.
// Variables are named XAILYSER_<section>_<key>, e.g. XAILYSER_LISTEN_ADDR.
const envPrefix = "XAILYSER_"

// LoadServer reads configuration from a YAML file at path, overlays
// environment variable overrides (XAILYSER_ prefix), and merges on top of
// DefaultServerConfig(). Missing fields inherit defaults. A missing file
// at path is not an error: defaults and env overrides alone are valid.
func LoadServer(path string) (*ServerConfig, error) {
	k := koanf.New(".")

	defaults := DefaultServerConfig()
	if err := loadDefaults(k, serverDefaultMap(defaults)); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config from %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &ServerConfig{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := ValidateServer(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// LoadClient reads a client's saved connection profiles from path. A
// missing file means no saved profiles yet, not an error.
func LoadClient(path string) (*ClientConfig, error) {
	k := koanf.New(".")
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load client config from %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat client config %s: %w", path, err)
		}
	}
	cfg := &ClientConfig{Log: LogConfig{Level: "info"}}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal client config: %w", err)
	}
	return cfg, nil
}

// SaveServer persists cfg as YAML at path, for the control channel's
// SaveConfig request (spec.md §6): a client can push a SetInterface or
// SetCompression change and ask the server to make it durable.
func SaveServer(cfg *ServerConfig, path string) error {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(cfg, "koanf"), nil); err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	b, err := k.Marshal(yaml.Parser())
	if err != nil {
		return fmt.Errorf("encode config yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "_", ".")
}

func loadDefaults(k *koanf.Koanf, values map[string]any) error {
	for key, val := range values {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}
	return nil
}

func serverDefaultMap(d *ServerConfig) map[string]any {
	return map[string]any{
		"capture.interface":           d.Capture.Interface,
		"capture.raw_frames_retained": d.Capture.RawFramesRetained,
		"capture.accept_timeout":      d.Capture.AcceptTimeout.String(),
		"listen.addr":                 d.Listen.Addr,
		"listen.compression_active":   d.Listen.CompressionActive,
		"metrics.addr":                d.Metrics.Addr,
		"metrics.path":                d.Metrics.Path,
		"log.level":                   d.Log.Level,
		"log.verbose":                 d.Log.Verbose,
		"lookup.oui_path":             d.Lookup.OuiPath,
		"lookup.port_path":            d.Lookup.PortPath,
		"sampler.display_window_seconds": d.Sampler.DisplayWindowSeconds,
		"sampler.speed_unit":          d.Sampler.SpeedUnit,
	}
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

var (
	// ErrEmptyListenAddr indicates the control-channel listen address is
	// empty.
	ErrEmptyListenAddr = errors.New("listen.addr must not be empty")
	// ErrEmptyInterface indicates no capture interface was named.
	ErrEmptyInterface = errors.New("capture.interface must not be empty")
	// ErrInvalidDisplayWindow indicates the sampler window is not
	// positive.
	ErrInvalidDisplayWindow = errors.New("sampler.display_window_seconds must be > 0")
)

// ValidateServer checks a ServerConfig for obviously invalid values.
func ValidateServer(cfg *ServerConfig) error {
	if cfg.Listen.Addr == "" {
		return ErrEmptyListenAddr
	}
	if cfg.Capture.Interface == "" {
		return ErrEmptyInterface
	}
	if cfg.Sampler.DisplayWindowSeconds <= 0 {
		return ErrInvalidDisplayWindow
	}
	return nil
}

// -------------------------------------------------------------------------
// Admin password
// -------------------------------------------------------------------------

// HashPassword hashes a plaintext admin password for at-rest storage in
// ServerConfig.Password. Uses bcrypt, not the deterministic digest
// transport.DigestPassword computes for the wire AUTH-KEY header: here a
// genuine plaintext candidate is always available to compare against the
// stored hash, the case bcrypt.CompareHashAndPassword is built for.
func HashPassword(plaintext string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether candidate matches the stored bcrypt
// hash.
func VerifyPassword(hash, candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) == nil
}
