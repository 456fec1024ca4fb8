package config

import (
	"os"
	"path/filepath"
	"testing"

	"meridian/pkg/models"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing settings: %v", err)
	}
	return path
}

func TestResolve_Defaults(t *testing.T) {
	cfg, prov, err := Resolve("", "")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if !cfg.Enabled {
		t.Error("Enabled should default to true")
	}
	if cfg.DefaultMode != "standard" {
		t.Errorf("DefaultMode = %q, want standard", cfg.DefaultMode)
	}
	if cfg.MaxWave1Perspectives != 5 || cfg.MaxWave2Perspectives != 3 {
		t.Errorf("wave caps = %d/%d, want 5/3", cfg.MaxWave1Perspectives, cfg.MaxWave2Perspectives)
	}
	if cfg.SummaryFileKB != 8 || cfg.SummaryTotalKB != 64 {
		t.Errorf("summary caps = %d/%d, want 8/64", cfg.SummaryFileKB, cfg.SummaryTotalKB)
	}
	if cfg.CitationTier != "fetch" {
		t.Errorf("CitationTier = %q, want fetch", cfg.CitationTier)
	}
	for key, cv := range prov {
		if cv.Source != SourceDefault {
			t.Errorf("%s source = %q, want default", key, cv.Source)
		}
	}
}

func TestResolve_FileLayer(t *testing.T) {
	path := writeSettings(t, "max_wave1_perspectives: 8\ndefault_mode: deep\n")
	cfg, prov, err := Resolve(path, "")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if cfg.MaxWave1Perspectives != 8 {
		t.Errorf("MaxWave1Perspectives = %d, want 8", cfg.MaxWave1Perspectives)
	}
	if cfg.DefaultMode != "deep" {
		t.Errorf("DefaultMode = %q, want deep", cfg.DefaultMode)
	}
	if prov["max_wave1_perspectives"].Source != SourceFile {
		t.Errorf("source = %q, want file", prov["max_wave1_perspectives"].Source)
	}
	if prov["offline"].Source != SourceDefault {
		t.Errorf("untouched flag source = %q, want default", prov["offline"].Source)
	}
}

func TestResolve_ProjectOverridesUser(t *testing.T) {
	user := writeSettings(t, "summary_file_kb: 4\n")
	project := writeSettings(t, "summary_file_kb: 16\n")
	cfg, _, err := Resolve(user, project)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if cfg.SummaryFileKB != 16 {
		t.Errorf("SummaryFileKB = %d, want project value 16", cfg.SummaryFileKB)
	}
}

func TestResolve_EnvOverridesFile(t *testing.T) {
	path := writeSettings(t, "max_wave2_perspectives: 2\n")
	t.Setenv("MERIDIAN_MAX_WAVE2", "6")
	cfg, prov, err := Resolve(path, "")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if cfg.MaxWave2Perspectives != 6 {
		t.Errorf("MaxWave2Perspectives = %d, want 6", cfg.MaxWave2Perspectives)
	}
	if prov["max_wave2_perspectives"].Source != SourceEnv {
		t.Errorf("source = %q, want env", prov["max_wave2_perspectives"].Source)
	}
}

func TestResolve_Clamping(t *testing.T) {
	t.Setenv("MERIDIAN_MAX_WAVE1", "40")
	t.Setenv("MERIDIAN_SUMMARY_FILE_KB", "0")
	t.Setenv("MERIDIAN_MAX_REVIEW_ITERATIONS", "99")
	cfg, _, err := Resolve("", "")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if cfg.MaxWave1Perspectives != 12 {
		t.Errorf("MaxWave1Perspectives = %d, want clamp to 12", cfg.MaxWave1Perspectives)
	}
	if cfg.SummaryFileKB != 1 {
		t.Errorf("SummaryFileKB = %d, want clamp to 1", cfg.SummaryFileKB)
	}
	if cfg.MaxReviewIterations != 10 {
		t.Errorf("MaxReviewIterations = %d, want clamp to 10", cfg.MaxReviewIterations)
	}
}

func TestResolve_InvalidEnumFallsBack(t *testing.T) {
	t.Setenv("MERIDIAN_MODE", "turbo")
	t.Setenv("MERIDIAN_CITATION_TIER", "psychic")
	cfg, _, err := Resolve("", "")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if cfg.DefaultMode != "standard" {
		t.Errorf("DefaultMode = %q, want fallback to standard", cfg.DefaultMode)
	}
	if cfg.CitationTier != "fetch" {
		t.Errorf("CitationTier = %q, want fallback to fetch", cfg.CitationTier)
	}
}

func TestLimits_DeepDoublesWaves(t *testing.T) {
	cfg := &Config{
		MaxWave1Perspectives: 5,
		MaxWave2Perspectives: 3,
		SummaryFileKB:        8,
		SummaryTotalKB:       64,
		MaxReviewIterations:  3,
	}
	std := cfg.Limits(models.ModeStandard)
	if std.MaxWave1Perspectives != 5 || std.MaxWave2Perspectives != 3 {
		t.Errorf("standard limits = %d/%d, want 5/3", std.MaxWave1Perspectives, std.MaxWave2Perspectives)
	}
	deep := cfg.Limits(models.ModeDeep)
	if deep.MaxWave1Perspectives != 10 || deep.MaxWave2Perspectives != 6 {
		t.Errorf("deep limits = %d/%d, want 10/6", deep.MaxWave1Perspectives, deep.MaxWave2Perspectives)
	}
	if deep.SummaryFileKB != 8 || deep.MaxReviewIterations != 3 {
		t.Error("deep mode must not touch non-wave limits")
	}
}

func TestLimits_DeepStaysWithinClamp(t *testing.T) {
	cfg := &Config{MaxWave1Perspectives: 9, MaxWave2Perspectives: 7}
	deep := cfg.Limits(models.ModeDeep)
	if deep.MaxWave1Perspectives != 12 {
		t.Errorf("MaxWave1Perspectives = %d, want ceiling 12", deep.MaxWave1Perspectives)
	}
	if deep.MaxWave2Perspectives != 8 {
		t.Errorf("MaxWave2Perspectives = %d, want ceiling 8", deep.MaxWave2Perspectives)
	}
}
