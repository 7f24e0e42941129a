// Package config holds the typed run configuration and the viper wiring that
// fills it from defaults, config file, .env, environment and flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ModeIncremental = "incremental"
	ModeFull        = "full"

	HeadSourceGit = "git"
	HeadSourceAPI = "api"

	EnvPrefix      = "SKILLCATALOG"
	ConfigName     = "skillcatalog"
	DefaultAPIBase = "https://api.github.com"
)

// RateLimitConfig bounds the shared request budget.
type RateLimitConfig struct {
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	Reserve           int           `mapstructure:"reserve"`
	MaxWait           time.Duration `mapstructure:"max_wait"`
}

// ToonConfig controls the secondary TOON output.
type ToonConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Native  bool     `mapstructure:"native"`
	Command []string `mapstructure:"command"`
}

// SimilarityConfig holds the tunable similarity heuristics.
type SimilarityConfig struct {
	CategoryWeight float64 `mapstructure:"category_weight"`
	TagWeight      float64 `mapstructure:"tag_weight"`
	KeywordWeight  float64 `mapstructure:"keyword_weight"`
	Threshold      float64 `mapstructure:"threshold"`
	MaxResults     int     `mapstructure:"max_results"`
}

// Config is the effective configuration of one process.
type Config struct {
	GitHubToken      string           `mapstructure:"github_token"`
	Mode             string           `mapstructure:"mode"`
	OutputDir        string           `mapstructure:"output_dir"`
	StateFile        string           `mapstructure:"state_file"`
	ChangelogFile    string           `mapstructure:"changelog_file"`
	ProvidersFile    string           `mapstructure:"providers_file"`
	OverlayFile      string           `mapstructure:"overlay_file"`
	Workers          int              `mapstructure:"workers"`
	RequestTimeout   time.Duration    `mapstructure:"request_timeout"`
	APIBaseURL       string           `mapstructure:"api_base_url"`
	HeadSource       string           `mapstructure:"head_source"`
	FetchLastUpdated bool             `mapstructure:"fetch_last_updated"`
	FetchRepoInfo    bool             `mapstructure:"fetch_repo_info"`
	SchemaURL        string           `mapstructure:"schema_url"`
	RateLimit        RateLimitConfig  `mapstructure:"rate_limit"`
	Toon             ToonConfig       `mapstructure:"toon"`
	Similarity       SimilarityConfig `mapstructure:"similarity"`
	LogLevel         string           `mapstructure:"log_level"`
	LogFormat        string           `mapstructure:"log_format"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("github_token", "")
	v.SetDefault("mode", ModeIncremental)
	v.SetDefault("output_dir", ".")
	v.SetDefault("state_file", "")
	v.SetDefault("changelog_file", "CHANGELOG.md")
	v.SetDefault("providers_file", "")
	v.SetDefault("overlay_file", "")
	v.SetDefault("workers", 4)
	v.SetDefault("request_timeout", "30s")
	v.SetDefault("api_base_url", DefaultAPIBase)
	v.SetDefault("head_source", HeadSourceGit)
	v.SetDefault("fetch_last_updated", true)
	v.SetDefault("fetch_repo_info", true)
	v.SetDefault("schema_url", "")
	v.SetDefault("rate_limit.requests_per_second", 10.0)
	v.SetDefault("rate_limit.burst", 10)
	v.SetDefault("rate_limit.reserve", 5)
	v.SetDefault("rate_limit.max_wait", "15m")
	v.SetDefault("toon.enabled", true)
	v.SetDefault("toon.native", true)
	v.SetDefault("toon.command", []string{"npx", "@toon-format/cli"})
	v.SetDefault("similarity.category_weight", 0.3)
	v.SetDefault("similarity.tag_weight", 0.4)
	v.SetDefault("similarity.keyword_weight", 0.3)
	v.SetDefault("similarity.threshold", 0.35)
	v.SetDefault("similarity.max_results", 5)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "fmt")
}

// Init wires config file lookup, .env and environment variables into v.
// An explicit configFile wins over the search path.
func Init(v *viper.Viper, configFile string) error {
	SetDefaults(v)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("github_token", EnvPrefix+"_GITHUB_TOKEN", "GITHUB_TOKEN"); err != nil {
		return err
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".skillcatalog"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.StateFile == "" {
		cfg.StateFile = filepath.Join(cfg.OutputDir, ".aggregation-state.json")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeIncremental, ModeFull:
	default:
		return fmt.Errorf("invalid mode %q (want %s or %s)", c.Mode, ModeIncremental, ModeFull)
	}
	switch c.HeadSource {
	case HeadSourceGit, HeadSourceAPI:
	default:
		return fmt.Errorf("invalid head_source %q (want %s or %s)", c.HeadSource, HeadSourceGit, HeadSourceAPI)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst < 1 {
		return fmt.Errorf("rate_limit requires positive requests_per_second and burst")
	}
	s := c.Similarity
	if s.CategoryWeight < 0 || s.TagWeight < 0 || s.KeywordWeight < 0 {
		return fmt.Errorf("similarity weights must be non-negative")
	}
	if sum := s.CategoryWeight + s.TagWeight + s.KeywordWeight; sum <= 0 || sum > 1.0000001 {
		return fmt.Errorf("similarity weights must sum to a value in (0, 1], got %.3f", sum)
	}
	if s.Threshold <= 0 || s.Threshold > 1 {
		return fmt.Errorf("similarity threshold must be in (0, 1]")
	}
	if s.MaxResults < 1 {
		return fmt.Errorf("similarity max_results must be at least 1")
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.GitHubToken != "" {
		c.GitHubToken = "****"
	}
	return c
}
