// Package config loads branchsmith settings from defaults, an optional YAML
// file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/vilaca/branchsmith/internal/domain"
)

const (
	defaultPort = 8080

	// EnvPrefix prefixes every environment override, e.g. BRANCHSMITH_STORE_DRIVER.
	EnvPrefix = "BRANCHSMITH"

	// FileName is the config file base name searched in . and ~/.branchsmith.
	FileName = "branchsmith"

	StoreDriverFile   = "file"
	StoreDriverSQLite = "sqlite"
)

// GitHubConfig is one set of GitHub credentials. Several may be configured
// (e.g. github.com plus an Enterprise host); requests pick one by ID.
type GitHubConfig struct {
	ID      string `mapstructure:"id" yaml:"id"`
	Name    string `mapstructure:"name" yaml:"name,omitempty"`
	Domain  string `mapstructure:"domain" yaml:"domain,omitempty"`
	Owner   string `mapstructure:"owner" yaml:"owner"`
	Token   string `mapstructure:"token" yaml:"token,omitempty"`
	Default bool   `mapstructure:"default" yaml:"default,omitempty"`
	// APIURL overrides the URL derived from Domain.
	APIURL string `mapstructure:"api_url" yaml:"api_url,omitempty"`
}

// GitHubSettings holds GitHub client configuration.
type GitHubSettings struct {
	Configs           []GitHubConfig `mapstructure:"configs" yaml:"configs"`
	CacheDuration     time.Duration  `mapstructure:"cache_duration" yaml:"cache_duration"`
	RequestsPerSecond float64        `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	MaxConcurrent     int            `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	Timeout           time.Duration  `mapstructure:"timeout" yaml:"timeout"`
}

// StoreConfig selects where service-branch records are kept.
type StoreConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	Path   string `mapstructure:"path" yaml:"path"`
}

// PollerConfig controls background pull request status polling.
type PollerConfig struct {
	// Interval between polls; zero disables the poller.
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// BranchConfig tunes branch name generation.
type BranchConfig struct {
	SeparatorReserve     int    `mapstructure:"separator_reserve" yaml:"separator_reserve"`
	EmptySlugPlaceholder string `mapstructure:"empty_slug_placeholder" yaml:"empty_slug_placeholder"`
}

// Config holds application configuration.
type Config struct {
	Port     int              `mapstructure:"port" yaml:"port"`
	GitHub   GitHubSettings   `mapstructure:"github" yaml:"github"`
	Services []domain.Service `mapstructure:"services" yaml:"services"`
	Store    StoreConfig      `mapstructure:"store" yaml:"store"`
	Poller   PollerConfig     `mapstructure:"poller" yaml:"poller"`
	Branch   BranchConfig     `mapstructure:"branch" yaml:"branch"`

	// Fallback credentials from GITHUB_TOKEN / GITHUB_OWNER / GITHUB_URL.
	EnvToken string `mapstructure:"github_token" yaml:"-"`
	EnvOwner string `mapstructure:"github_owner" yaml:"-"`
	EnvURL   string `mapstructure:"github_url" yaml:"-"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-" yaml:"-"`
}

// MarshalYAML writes durations in their readable form.
func (g GitHubSettings) MarshalYAML() (interface{}, error) {
	return struct {
		Configs           []GitHubConfig `yaml:"configs"`
		CacheDuration     string         `yaml:"cache_duration"`
		RequestsPerSecond float64        `yaml:"requests_per_second"`
		MaxConcurrent     int            `yaml:"max_concurrent"`
		Timeout           string         `yaml:"timeout"`
	}{g.Configs, g.CacheDuration.String(), g.RequestsPerSecond, g.MaxConcurrent, g.Timeout.String()}, nil
}

// MarshalYAML writes the interval in its readable form.
func (p PollerConfig) MarshalYAML() (interface{}, error) {
	return struct {
		Interval string `yaml:"interval"`
	}{p.Interval.String()}, nil
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Port: defaultPort,
		GitHub: GitHubSettings{
			CacheDuration:     30 * time.Second,
			RequestsPerSecond: 10,
			MaxConcurrent:     5,
			Timeout:           30 * time.Second,
		},
		Store: StoreConfig{
			Driver: StoreDriverFile,
			Path:   filepath.Join(Dir(), "records.json"),
		},
		Poller: PollerConfig{Interval: 5 * time.Minute},
		Branch: BranchConfig{
			SeparatorReserve:     10,
			EmptySlugPlaceholder: "item",
		},
	}
}

// Dir returns the per-user branchsmith directory.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".branchsmith"
	}
	return filepath.Join(home, ".branchsmith")
}

// Load reads configuration. An explicit path must exist; otherwise
// branchsmith.yaml is looked up in the working directory and Dir().
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindUnprefixed(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(Dir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// An unparsable port falls back to the default rather than failing.
	if _, err := strconv.Atoi(v.GetString("port")); err != nil {
		v.Set("port", defaultPort)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("port", d.Port)
	v.SetDefault("github.configs", []GitHubConfig{})
	v.SetDefault("github.cache_duration", d.GitHub.CacheDuration)
	v.SetDefault("github.requests_per_second", d.GitHub.RequestsPerSecond)
	v.SetDefault("github.max_concurrent", d.GitHub.MaxConcurrent)
	v.SetDefault("github.timeout", d.GitHub.Timeout)
	v.SetDefault("services", []domain.Service{})
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("poller.interval", d.Poller.Interval)
	v.SetDefault("branch.separator_reserve", d.Branch.SeparatorReserve)
	v.SetDefault("branch.empty_slug_placeholder", d.Branch.EmptySlugPlaceholder)
	v.SetDefault("github_token", "")
	v.SetDefault("github_owner", "")
	v.SetDefault("github_url", "")
}

// bindUnprefixed keeps the conventional variable names working.
func bindUnprefixed(v *viper.Viper) {
	_ = v.BindEnv("port", EnvPrefix+"_PORT", "PORT")
	_ = v.BindEnv("github_token", EnvPrefix+"_GITHUB_TOKEN", "GITHUB_TOKEN")
	_ = v.BindEnv("github_owner", EnvPrefix+"_GITHUB_OWNER", "GITHUB_OWNER")
	_ = v.BindEnv("github_url", EnvPrefix+"_GITHUB_URL", "GITHUB_URL")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	seen := make(map[string]bool, len(c.GitHub.Configs))
	for i, gh := range c.GitHub.Configs {
		if gh.ID == "" {
			return fmt.Errorf("github config %d: id is required", i)
		}
		if seen[gh.ID] {
			return fmt.Errorf("github config %d: duplicate id %q", i, gh.ID)
		}
		seen[gh.ID] = true
	}
	for i, svc := range c.Services {
		if strings.TrimSpace(svc.Name) == "" {
			return fmt.Errorf("service %d: name is required", i)
		}
	}
	switch c.Store.Driver {
	case StoreDriverFile, StoreDriverSQLite:
	default:
		return fmt.Errorf("unknown store driver %q (want %s or %s)", c.Store.Driver, StoreDriverFile, StoreDriverSQLite)
	}
	if c.Branch.SeparatorReserve < 0 {
		return fmt.Errorf("branch.separator_reserve must not be negative")
	}
	if c.Poller.Interval < 0 {
		return fmt.Errorf("poller.interval must not be negative")
	}
	return nil
}

// HasGitHubConfig returns true if any GitHub credentials are available.
func (c *Config) HasGitHubConfig() bool {
	_, err := c.SelectGitHub("")
	return err == nil
}

// SelectGitHub picks the GitHub config with the given id; with no id, the
// default one or else the first. When nothing matches, credentials from
// GITHUB_TOKEN and GITHUB_OWNER are used.
func (c *Config) SelectGitHub(id string) (GitHubConfig, error) {
	var selected *GitHubConfig
	if id != "" {
		for i := range c.GitHub.Configs {
			if c.GitHub.Configs[i].ID == id {
				selected = &c.GitHub.Configs[i]
				break
			}
		}
	} else {
		for i := range c.GitHub.Configs {
			if c.GitHub.Configs[i].Default {
				selected = &c.GitHub.Configs[i]
				break
			}
		}
		if selected == nil && len(c.GitHub.Configs) > 0 {
			selected = &c.GitHub.Configs[0]
		}
	}

	if selected == nil && c.EnvToken != "" && c.EnvOwner != "" {
		selected = &GitHubConfig{
			ID:      "env",
			Name:    "Environment",
			Domain:  domain.GitHubDomain,
			Owner:   c.EnvOwner,
			Token:   c.EnvToken,
			Default: true,
			APIURL:  c.EnvURL,
		}
	}

	if selected == nil || selected.Token == "" {
		return GitHubConfig{}, domain.ErrNoGitHubConfig
	}
	return *selected, nil
}

// Service returns the configured service with the given name, or a service
// with default settings when none is configured.
func (c *Config) Service(name string) domain.Service {
	for _, svc := range c.Services {
		if strings.EqualFold(svc.Name, name) {
			return svc
		}
	}
	return domain.Service{Name: name}
}

// Write saves cfg as YAML, creating parent directories. Existing files are
// not overwritten.
func Write(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
