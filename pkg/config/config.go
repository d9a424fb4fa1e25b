// Package config loads gitgood settings from defaults, an optional YAML file,
// the environment and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/gitgood-project/gitgood/pkg/fsutil"
	"github.com/gitgood-project/gitgood/pkg/webhook"
)

// EnvPrefix prefixes every environment variable gitgood reads.
const EnvPrefix = "GITGOOD"

// LegacyProjectIDEnv is the unprefixed credential variable, still honoured.
const LegacyProjectIDEnv = "PROJECT_ID"

// Config represents the gitgood configuration.
type Config struct {
	Project    ProjectConfig        `mapstructure:"project" yaml:"project"`
	Network    string               `mapstructure:"network" yaml:"network"`
	SigningKey string               `mapstructure:"signing_key" yaml:"signing_key"`
	Blockfrost BlockfrostConfig     `mapstructure:"blockfrost" yaml:"blockfrost"`
	Store      StoreConfig          `mapstructure:"store" yaml:"store"`
	Anchor     AnchorConfig         `mapstructure:"anchor" yaml:"anchor"`
	Logging    LoggingConfig        `mapstructure:"logging" yaml:"logging"`
	Metrics    MetricsConfig        `mapstructure:"metrics" yaml:"metrics"`
	Webhooks   []webhook.HookConfig `mapstructure:"webhooks" yaml:"webhooks,omitempty" validate:"dive"`
}

// ProjectConfig names the project and locates its repository.
type ProjectConfig struct {
	Name     string `mapstructure:"name" yaml:"name"`
	RepoPath string `mapstructure:"repo_path" yaml:"repo_path"`
}

// BlockfrostConfig holds the chain API credential.
type BlockfrostConfig struct {
	ProjectID string `mapstructure:"project_id" yaml:"project_id,omitempty"`
}

// StoreConfig locates the commit store.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// AnchorConfig tunes the anchor transaction and its verification.
type AnchorConfig struct {
	AmountLovelace uint64        `mapstructure:"amount_lovelace" yaml:"amount_lovelace" validate:"gte=1000000"`
	TTLSlots       uint64        `mapstructure:"ttl_slots" yaml:"ttl_slots" validate:"gte=1"`
	Verify         bool          `mapstructure:"verify" yaml:"verify"`
	VerifyDelay    time.Duration `mapstructure:"verify_delay" yaml:"verify_delay" validate:"gte=0s"`
}

// MarshalYAML writes the verify delay in its string form.
func (a AnchorConfig) MarshalYAML() (any, error) {
	return struct {
		AmountLovelace uint64 `yaml:"amount_lovelace"`
		TTLSlots       uint64 `yaml:"ttl_slots"`
		Verify         bool   `yaml:"verify"`
		VerifyDelay    string `yaml:"verify_delay"`
	}{a.AmountLovelace, a.TTLSlots, a.Verify, a.VerifyDelay.String()}, nil
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	File  string `mapstructure:"file" yaml:"file,omitempty"` // empty logs to stderr
}

// MetricsConfig configures the Prometheus textfile export.
type MetricsConfig struct {
	File string `mapstructure:"file" yaml:"file,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Project: ProjectConfig{
			RepoPath: ".",
		},
		Network: "preprod",
		Store: StoreConfig{
			Path: "commits.db",
		},
		Anchor: AnchorConfig{
			AmountLovelace: 2_000_000,
			TTLSlots:       7200,
			Verify:         true,
			VerifyDelay:    80 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns ~/.gitgood/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".gitgood", "config.yaml")
	}
	return filepath.Join(home, ".gitgood", "config.yaml")
}

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"project-name":             "project.name",
	"git-repo-path":            "project.repo_path",
	"network":                  "network",
	"payment-signing-key-path": "signing_key",
	"store":                    "store.path",
	"amount":                   "anchor.amount_lovelace",
	"verify-delay":             "anchor.verify_delay",
	"log-level":                "logging.level",
	"log-file":                 "logging.file",
	"metrics-file":             "metrics.file",
}

// LoadOption adjusts Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	allowMissing bool
}

// AllowMissing tolerates an explicit path that does not exist yet.
func AllowMissing() LoadOption {
	return func(o *loadOptions) { o.allowMissing = true }
}

// Load builds the configuration. path names the YAML file; an empty path
// tries DefaultPath and tolerates its absence. flags may be nil.
func Load(path string, flags *pflag.FlagSet, opts ...LoadOption) (*Config, error) {
	var lo loadOptions
	for _, opt := range opts {
		opt(&lo)
	}

	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("blockfrost.project_id", EnvPrefix+"_BLOCKFROST_PROJECT_ID", LegacyProjectIDEnv); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound), errors.Is(err, os.ErrNotExist):
			if explicit && !lo.allowMissing {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		default:
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks value ranges. Project name, network and key are checked
// by the commands that need them.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s fails %q (got %v)", fe.Namespace(), fe.ActualTag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("project.name", d.Project.Name)
	v.SetDefault("project.repo_path", d.Project.RepoPath)
	v.SetDefault("network", d.Network)
	v.SetDefault("signing_key", d.SigningKey)
	v.SetDefault("blockfrost.project_id", "")
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("anchor.amount_lovelace", d.Anchor.AmountLovelace)
	v.SetDefault("anchor.ttl_slots", d.Anchor.TTLSlots)
	v.SetDefault("anchor.verify", d.Anchor.Verify)
	v.SetDefault("anchor.verify_delay", d.Anchor.VerifyDelay)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("metrics.file", d.Metrics.File)
}

// Save writes cfg to path as YAML. The chain API credential is never written.
func Save(path string, cfg *Config) error {
	out := *cfg
	out.Blockfrost.ProjectID = ""
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := fsutil.AtomicWrite(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Redacted returns a copy of cfg safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Blockfrost.ProjectID != "" {
		out.Blockfrost.ProjectID = "****"
	}
	if len(c.Webhooks) > 0 {
		out.Webhooks = make([]webhook.HookConfig, len(c.Webhooks))
		for i, h := range c.Webhooks {
			if h.Secret != "" {
				h.Secret = "****"
			}
			out.Webhooks[i] = h
		}
	}
	return &out
}
