// Package config loads clearflow settings from .clearflow/config.yaml with
// CFL_* environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/clearstack/clearflow/internal/authz"
)

// DefaultEscalationDays is how long a request may sit pending before the
// sweep escalates it.
const DefaultEscalationDays = 3

// Config is the full runtime configuration.
type Config struct {
	// DB is the storage connection string (path, ":memory:", mysql://..., memory://).
	DB string `yaml:"db"`

	// Actor and Role are the default identity for CLI operations.
	Actor string `yaml:"actor"`
	Role  string `yaml:"role"`

	// EscalationDays is the staleness threshold for the sweep.
	EscalationDays int `yaml:"escalation_days"`

	// SweepWorkers bounds how many requests one sweep escalates concurrently.
	SweepWorkers int `yaml:"sweep_workers"`

	// NotifyWebhook, when set, receives lifecycle events as JSON POSTs.
	NotifyWebhook string `yaml:"notify_webhook"`

	// CertificateWebhook, when set, receives generation requests for
	// completed clearances.
	CertificateWebhook string `yaml:"certificate_webhook"`

	// Roles is the explicit role → capability table. Empty means DefaultRoles.
	Roles map[string]authz.Capability `yaml:"roles"`
}

// DefaultRoles is the capability table used when config.yaml defines none:
// one role per standard clearance stage plus a super admin.
func DefaultRoles() map[string]authz.Capability {
	return map[string]authz.Capability{
		"library_officer": {Stages: []string{"library"}},
		"cashier":         {Stages: []string{"cashier"}},
		"registrar":       {Stages: []string{"registrar"}},
		"admin":           {Super: true},
	}
}

// Dir returns the .clearflow directory under root ("" means cwd).
func Dir(root string) string {
	if root == "" {
		root = "."
	}
	return filepath.Join(root, ".clearflow")
}

// Path returns the config file path under root.
func Path(root string) string {
	return filepath.Join(Dir(root), "config.yaml")
}

// Load reads config.yaml under root, applies environment overrides, and
// fills defaults. A missing file is not an error; defaults apply.
func Load(root string) (*Config, error) {
	cfg, err := LoadFile(root)
	if err != nil {
		return nil, err
	}
	applyEnv(cfg)
	applyDefaults(cfg, root)
	return cfg, nil
}

// LoadFile reads config.yaml under root as written, with no environment
// overlay and no defaults. Used when editing the file so ambient CFL_*
// variables are not baked into it.
func LoadFile(root string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(Path(root))
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", Path(root), err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", Path(root), err)
	}
	return cfg, nil
}

// applyEnv overlays CFL_* environment variables onto the file config.
func applyEnv(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix("CFL")
	v.AutomaticEnv()

	for _, key := range []string{"db", "actor", "role", "escalation_days", "sweep_workers", "notify_webhook", "certificate_webhook"} {
		_ = v.BindEnv(key)
	}

	if s := v.GetString("db"); s != "" {
		cfg.DB = s
	}
	if s := v.GetString("actor"); s != "" {
		cfg.Actor = s
	}
	if s := v.GetString("role"); s != "" {
		cfg.Role = s
	}
	if n := v.GetInt("escalation_days"); n > 0 {
		cfg.EscalationDays = n
	}
	if n := v.GetInt("sweep_workers"); n > 0 {
		cfg.SweepWorkers = n
	}
	if s := v.GetString("notify_webhook"); s != "" {
		cfg.NotifyWebhook = s
	}
	if s := v.GetString("certificate_webhook"); s != "" {
		cfg.CertificateWebhook = s
	}
}

func applyDefaults(cfg *Config, root string) {
	if cfg.DB == "" {
		cfg.DB = filepath.Join(Dir(root), "clearflow.db")
	}
	if cfg.EscalationDays <= 0 {
		cfg.EscalationDays = DefaultEscalationDays
	}
	if len(cfg.Roles) == 0 {
		cfg.Roles = DefaultRoles()
	}
}

// Save writes the config back to config.yaml under root, creating the
// .clearflow directory if needed.
func Save(root string, cfg *Config) error {
	if err := os.MkdirAll(Dir(root), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(Path(root), data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
