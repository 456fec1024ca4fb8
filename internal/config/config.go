// Package config resolves Meridian's configuration. Layering, lowest to
// highest precedence: built-in defaults, the user settings file
// (~/.config/meridian/config.yaml), a project-local .meridian.yaml, then
// MERIDIAN_* environment variables. Every resolved flag records which layer
// supplied it so the manifest can reproduce the run's configuration, and
// numeric flags are clamped to sane ranges.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"meridian/pkg/models"
)

// Source identifies the layer a flag was resolved from.
const (
	SourceDefault = "default"
	SourceFile    = "file"
	SourceEnv     = "env"
)

// Config holds every resolved flag.
type Config struct {
	// Enabled gates all operations; when false everything returns DISABLED.
	Enabled bool `mapstructure:"enabled"`
	// DefaultMode is the mode used when run creation does not specify one.
	DefaultMode string `mapstructure:"default_mode"`
	// MaxWave1Perspectives caps the first wave (1-12).
	MaxWave1Perspectives int `mapstructure:"max_wave1_perspectives"`
	// MaxWave2Perspectives caps the second wave (0-8).
	MaxWave2Perspectives int `mapstructure:"max_wave2_perspectives"`
	// SummaryFileKB caps one summary file (1-64).
	SummaryFileKB int `mapstructure:"summary_file_kb"`
	// SummaryTotalKB caps the summary pack (4-512).
	SummaryTotalKB int `mapstructure:"summary_total_kb"`
	// MaxReviewIterations bounds the review loop (1-10).
	MaxReviewIterations int `mapstructure:"max_review_iterations"`
	// CitationTier selects the online validation scheme.
	CitationTier string `mapstructure:"citation_tier"`
	// Offline selects fixture-backed citation validation.
	Offline bool `mapstructure:"offline"`
}

// Provenance maps flag name to its resolved value and source layer.
type Provenance map[string]models.ConfigValue

// envVars maps config keys to their environment overrides.
var envVars = map[string]string{
	"enabled":                "MERIDIAN_ENABLED",
	"default_mode":           "MERIDIAN_MODE",
	"max_wave1_perspectives": "MERIDIAN_MAX_WAVE1",
	"max_wave2_perspectives": "MERIDIAN_MAX_WAVE2",
	"summary_file_kb":        "MERIDIAN_SUMMARY_FILE_KB",
	"summary_total_kb":       "MERIDIAN_SUMMARY_TOTAL_KB",
	"max_review_iterations":  "MERIDIAN_MAX_REVIEW_ITERATIONS",
	"citation_tier":          "MERIDIAN_CITATION_TIER",
	"offline":                "MERIDIAN_OFFLINE",
}

// bounds is the clamp range for one numeric flag.
type bounds struct{ min, max int }

var clampTable = map[string]bounds{
	"max_wave1_perspectives": {1, 12},
	"max_wave2_perspectives": {0, 8},
	"summary_file_kb":        {1, 64},
	"summary_total_kb":       {4, 512},
	"max_review_iterations":  {1, 10},
}

// Load resolves configuration using the standard search paths.
func Load() (*Config, Provenance, error) {
	return Resolve(userConfigPath(), findProjectConfig())
}

// Resolve resolves configuration from explicit settings paths. Either path
// may be empty or missing; the layer is simply skipped.
func Resolve(userPath, projectPath string) (*Config, Provenance, error) {
	v := viper.New()
	setDefaults(v)

	fileKeys := map[string]bool{}
	for _, path := range []string{userPath, projectPath} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		layer := viper.New()
		layer.SetConfigFile(path)
		if err := layer.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("reading settings %s: %w", path, err)
		}
		settings := layer.AllSettings()
		if err := v.MergeConfigMap(settings); err != nil {
			return nil, nil, fmt.Errorf("merging settings %s: %w", path, err)
		}
		for key := range settings {
			fileKeys[strings.ToLower(key)] = true
		}
	}

	envKeys := map[string]bool{}
	for key, envVar := range envVars {
		if raw, ok := os.LookupEnv(envVar); ok && raw != "" {
			v.Set(key, raw)
			envKeys[key] = true
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.clamp()
	if !models.RunMode(cfg.DefaultMode).Valid() {
		cfg.DefaultMode = string(models.ModeStandard)
	}
	if !validTier(cfg.CitationTier) {
		cfg.CitationTier = "fetch"
	}

	prov := Provenance{}
	record := func(key, value string) {
		source := SourceDefault
		switch {
		case envKeys[key]:
			source = SourceEnv
		case fileKeys[key]:
			source = SourceFile
		}
		prov[key] = models.ConfigValue{Value: value, Source: source}
	}
	record("enabled", strconv.FormatBool(cfg.Enabled))
	record("default_mode", cfg.DefaultMode)
	record("max_wave1_perspectives", strconv.Itoa(cfg.MaxWave1Perspectives))
	record("max_wave2_perspectives", strconv.Itoa(cfg.MaxWave2Perspectives))
	record("summary_file_kb", strconv.Itoa(cfg.SummaryFileKB))
	record("summary_total_kb", strconv.Itoa(cfg.SummaryTotalKB))
	record("max_review_iterations", strconv.Itoa(cfg.MaxReviewIterations))
	record("citation_tier", cfg.CitationTier)
	record("offline", strconv.FormatBool(cfg.Offline))

	return cfg, prov, nil
}

// clamp bounds every numeric flag to its sane range.
func (c *Config) clamp() {
	clampInt := func(key string, val *int) {
		b := clampTable[key]
		if *val < b.min {
			*val = b.min
		}
		if *val > b.max {
			*val = b.max
		}
	}
	clampInt("max_wave1_perspectives", &c.MaxWave1Perspectives)
	clampInt("max_wave2_perspectives", &c.MaxWave2Perspectives)
	clampInt("summary_file_kb", &c.SummaryFileKB)
	clampInt("summary_total_kb", &c.SummaryTotalKB)
	clampInt("max_review_iterations", &c.MaxReviewIterations)
}

// Limits derives the manifest limits block for a mode. Deep mode doubles
// the wave fan-out within the clamp ranges.
func (c *Config) Limits(mode models.RunMode) models.Limits {
	l := models.Limits{
		MaxWave1Perspectives: c.MaxWave1Perspectives,
		MaxWave2Perspectives: c.MaxWave2Perspectives,
		SummaryFileKB:        c.SummaryFileKB,
		SummaryTotalKB:       c.SummaryTotalKB,
		MaxReviewIterations:  c.MaxReviewIterations,
	}
	if mode == models.ModeDeep {
		l.MaxWave1Perspectives = min(l.MaxWave1Perspectives*2, clampTable["max_wave1_perspectives"].max)
		l.MaxWave2Perspectives = min(l.MaxWave2Perspectives*2, clampTable["max_wave2_perspectives"].max)
	}
	return l
}

func validTier(t string) bool {
	switch t {
	case "fetch", "progressive", "browser":
		return true
	default:
		return false
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("enabled", true)
	v.SetDefault("default_mode", "standard")
	v.SetDefault("max_wave1_perspectives", 5)
	v.SetDefault("max_wave2_perspectives", 3)
	v.SetDefault("summary_file_kb", 8)
	v.SetDefault("summary_total_kb", 64)
	v.SetDefault("max_review_iterations", 3)
	v.SetDefault("citation_tier", "fetch")
	v.SetDefault("offline", false)
}

// userConfigPath returns the XDG settings file path.
func userConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "meridian", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "meridian", "config.yaml")
	}
	return filepath.Join(home, ".config", "meridian", "config.yaml")
}

// findProjectConfig searches the working directory and parents for
// .meridian.yaml.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		path := filepath.Join(cwd, ".meridian.yaml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}
	return ""
}
