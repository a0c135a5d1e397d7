// Package config loads docsync configuration from defaults, config files,
// DOCSYNC_* environment variables and command line flags through viper,
// and decodes it into a typed Config with optional named profiles.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables read by docsync.
const EnvPrefix = "DOCSYNC"

// LocalConfigFile is the per-project config file merged over the global one.
const LocalConfigFile = "docsync.yaml"

// Config is the decoded docsync configuration.
type Config struct {
	LogLevel  string          `mapstructure:"log_level"`
	LogFormat string          `mapstructure:"log_format"`
	Profile   string          `mapstructure:"profile"`
	Detection DetectionConfig `mapstructure:"detection"`
	Matching  MatchingConfig  `mapstructure:"matching"`
	Promotion PromotionConfig `mapstructure:"promotion"`
	Skills    SkillsConfig    `mapstructure:"skills"`
	Ecosystem EcosystemConfig `mapstructure:"ecosystem"`
	Docs      DocsConfig      `mapstructure:"docs"`
	History   HistoryConfig   `mapstructure:"history"`
	Tracing   TracingConfig   `mapstructure:"tracing"`

	Profiles map[string]map[string]any `mapstructure:"profiles"`
}

// DetectionConfig tunes technology detection.
type DetectionConfig struct {
	MinConfidence float64  `mapstructure:"min_confidence"`
	SkipDirs      []string `mapstructure:"skip_dirs"`
	Ignore        []string `mapstructure:"ignore"`
	CatalogFile   string   `mapstructure:"catalog_file"`
}

// MatchingConfig tunes skill matching.
type MatchingConfig struct {
	MaxSkills     int                 `mapstructure:"max_skills"`
	DirMaxSkills  int                 `mapstructure:"dir_max_skills"`
	MinRelevance  float64             `mapstructure:"min_relevance"`
	ProjectSkills []string            `mapstructure:"project_skills"`
	Compound      map[string][]string `mapstructure:"compound"`
}

// PromotionConfig tunes root promotion.
type PromotionConfig struct {
	Threshold float64 `mapstructure:"threshold"`
}

// SkillsConfig locates local skills.
type SkillsConfig struct {
	ProjectDirs []string `mapstructure:"project_dirs"`
	GlobalDir   string   `mapstructure:"global_dir"`
	Allowed     []string `mapstructure:"allowed"`
}

// EcosystemConfig controls the skills.sh registry query.
type EcosystemConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Command  []string      `mapstructure:"command"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Limit    int           `mapstructure:"limit"`
	Terms    int           `mapstructure:"terms"`
	Attempts int           `mapstructure:"attempts"`
	Cache    bool          `mapstructure:"cache"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// DocsConfig names the agent documentation files.
type DocsConfig struct {
	PrimaryFile string `mapstructure:"primary_file"`
	AliasFile   string `mapstructure:"alias_file"`
}

// HistoryConfig controls sync history recording.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	Sampler string  `mapstructure:"sampler"`
	Ratio   float64 `mapstructure:"ratio"`
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "fmt")
	v.SetDefault("profile", "")

	v.SetDefault("detection.min_confidence", 0.3)
	v.SetDefault("detection.skip_dirs", []string{
		".git", "node_modules", "__pycache__", ".venv", "venv",
		"target", "dist", "build", "vendor", ".idea", ".vscode",
	})
	v.SetDefault("detection.ignore", []string{})
	v.SetDefault("detection.catalog_file", "")

	v.SetDefault("matching.max_skills", 15)
	v.SetDefault("matching.dir_max_skills", 10)
	v.SetDefault("matching.min_relevance", 0.4)
	v.SetDefault("matching.project_skills", []string{})
	v.SetDefault("matching.compound", map[string][]string{})

	v.SetDefault("promotion.threshold", 0.8)

	v.SetDefault("skills.project_dirs", []string{".claude/skills"})
	v.SetDefault("skills.global_dir", "")
	v.SetDefault("skills.allowed", []string{})

	v.SetDefault("ecosystem.enabled", true)
	v.SetDefault("ecosystem.command", []string{"npx", "--yes", "skills", "find"})
	v.SetDefault("ecosystem.timeout", 30*time.Second)
	v.SetDefault("ecosystem.limit", 5)
	v.SetDefault("ecosystem.terms", 5)
	v.SetDefault("ecosystem.attempts", 2)
	v.SetDefault("ecosystem.cache", true)
	v.SetDefault("ecosystem.cache_ttl", 24*time.Hour)

	v.SetDefault("docs.primary_file", "CLAUDE.md")
	v.SetDefault("docs.alias_file", "AGENTS.md")

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.db_path", "")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.sampler", "always")
	v.SetDefault("tracing.ratio", 1.0)
}

// Default returns the configuration made of the built-in defaults only.
func Default() Config {
	v := viper.New()
	SetDefaults(v)
	cfg, _ := Load(v)
	return cfg
}

// Init prepares v for docsync: defaults, DOCSYNC_* environment variables,
// the global config file (~/.docsync/config.yaml) and the project config
// file (./docsync.yaml) merged on top. Missing files are not an error.
func Init(v *viper.Viper) error {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.docsync")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errors.Wrap(err, "failed to read global config")
		}
	}

	return MergeFile(v, LocalConfigFile)
}

// MergeFile merges a YAML config file into v when it exists.
func MergeFile(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open config %s", path)
	}
	defer f.Close()

	v.SetConfigType("yaml")
	if err := v.MergeConfig(f); err != nil {
		return errors.Wrapf(err, "failed to merge config %s", path)
	}
	return nil
}

// Load decodes v into a Config, applying the active profile.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, errors.Wrap(err, "failed to unmarshal configuration")
	}

	if cfg.Profiles != nil {
		delete(cfg.Profiles, "default")
	}

	if name := activeProfile(cfg.Profile); name != "" {
		profile, ok := cfg.Profiles[name]
		if !ok {
			return cfg, errors.Errorf("profile '%s' not found", name)
		}
		if err := applyProfile(&cfg, profile); err != nil {
			return cfg, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func activeProfile(profile string) string {
	if profile == "default" {
		return ""
	}
	return profile
}

func applyProfile(cfg *Config, profile map[string]any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ZeroFields:       false,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return errors.Wrap(err, "failed to create profile decoder")
	}

	if err := decoder.Decode(profile); err != nil {
		return errors.Wrap(err, "failed to apply profile configuration")
	}
	return nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	for name, v := range map[string]float64{
		"detection.min_confidence": c.Detection.MinConfidence,
		"matching.min_relevance":   c.Matching.MinRelevance,
		"promotion.threshold":      c.Promotion.Threshold,
	} {
		if v < 0 || v > 1 {
			return errors.Errorf("%s must be between 0 and 1, got %v", name, v)
		}
	}
	if c.Matching.MaxSkills <= 0 {
		return errors.Errorf("matching.max_skills must be positive, got %d", c.Matching.MaxSkills)
	}
	if c.Matching.DirMaxSkills <= 0 {
		return errors.Errorf("matching.dir_max_skills must be positive, got %d", c.Matching.DirMaxSkills)
	}
	if c.Ecosystem.Enabled && len(c.Ecosystem.Command) == 0 {
		return errors.New("ecosystem.command must not be empty")
	}
	return nil
}

// GlobalSkillsDir returns the configured global skills directory,
// defaulting to ~/.claude/skills.
func (c Config) GlobalSkillsDir() (string, error) {
	if c.Skills.GlobalDir != "" {
		return expandHome(c.Skills.GlobalDir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get user home directory")
	}
	return filepath.Join(home, ".claude", "skills"), nil
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get user home directory")
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}
