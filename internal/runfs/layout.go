// Package runfs maps the fixed artifact layout under a run root to
// absolute paths. Every other package resolves artifact locations through
// here so the layout is defined exactly once.
package runfs

import (
	"fmt"
	"path/filepath"

	"meridian/pkg/models"
)

// Layout resolves artifact paths for one run root.
type Layout struct {
	// Root is the absolute run root directory.
	Root string
}

// New returns a layout rooted at dir.
func New(dir string) Layout {
	return Layout{Root: dir}
}

// Join resolves a run-root-relative path.
func (l Layout) Join(rel string) string {
	return filepath.Join(l.Root, filepath.FromSlash(rel))
}

func (l Layout) Manifest() string     { return filepath.Join(l.Root, "manifest.json") }
func (l Layout) Gates() string        { return filepath.Join(l.Root, "gates.json") }
func (l Layout) Retries() string      { return filepath.Join(l.Root, "retries.json") }
func (l Layout) Perspectives() string { return filepath.Join(l.Root, "perspectives.json") }
func (l Layout) Pivot() string        { return filepath.Join(l.Root, "pivot.json") }

// WaveDir returns the output directory for wave 1 or 2.
func (l Layout) WaveDir(wave int) string {
	return filepath.Join(l.Root, fmt.Sprintf("wave-%d", wave))
}

// WaveOutput returns a perspective's output path within a wave.
func (l Layout) WaveOutput(wave int, perspectiveID string) string {
	return filepath.Join(l.WaveDir(wave), perspectiveID+".md")
}

func (l Layout) CitationsDir() string   { return filepath.Join(l.Root, "citations") }
func (l Layout) ExtractedURLs() string  { return filepath.Join(l.CitationsDir(), "extracted-urls.txt") }
func (l Layout) NormalizedURLs() string { return filepath.Join(l.CitationsDir(), "normalized-urls.txt") }
func (l Layout) URLMap() string         { return filepath.Join(l.CitationsDir(), "url-map.json") }
func (l Layout) FoundBy() string        { return filepath.Join(l.CitationsDir(), "found-by.json") }
func (l Layout) Citations() string      { return filepath.Join(l.CitationsDir(), "citations.jsonl") }
func (l Layout) CitationReport() string {
	return filepath.Join(l.CitationsDir(), "validated-citations.md")
}

func (l Layout) SummariesDir() string { return filepath.Join(l.Root, "summaries") }
func (l Layout) SummaryPack() string  { return filepath.Join(l.SummariesDir(), "summary-pack.json") }

// Summary returns a perspective's summary path.
func (l Layout) Summary(perspectiveID string) string {
	return filepath.Join(l.SummariesDir(), perspectiveID+".md")
}

func (l Layout) SynthesisDir() string   { return filepath.Join(l.Root, "synthesis") }
func (l Layout) DraftSynthesis() string { return filepath.Join(l.SynthesisDir(), "draft-synthesis.md") }
func (l Layout) FinalSynthesis() string { return filepath.Join(l.SynthesisDir(), "final-synthesis.md") }

func (l Layout) ReviewDir() string    { return filepath.Join(l.Root, "review") }
func (l Layout) ReviewBundle() string { return filepath.Join(l.ReviewDir(), "review-bundle.json") }
func (l Layout) Directives() string {
	return filepath.Join(l.ReviewDir(), "revision-directives.json")
}

func (l Layout) LogsDir() string    { return filepath.Join(l.Root, "logs") }
func (l Layout) AuditLog() string   { return filepath.Join(l.LogsDir(), "audit.jsonl") }
func (l Layout) DebugLog() string   { return filepath.Join(l.LogsDir(), "debug.log") }
func (l Layout) Checkpoint() string { return filepath.Join(l.Root, "CHECKPOINT.md") }

// Dirs lists every directory the initializer must create.
func (l Layout) Dirs() []string {
	return []string{
		l.Root,
		l.WaveDir(1),
		l.WaveDir(2),
		l.CitationsDir(),
		l.SummariesDir(),
		l.SynthesisDir(),
		l.ReviewDir(),
		l.LogsDir(),
	}
}

// Artifacts builds the manifest's immutable path table, relative to root.
func (l Layout) Artifacts() models.ArtifactPaths {
	return models.ArtifactPaths{
		Root:         l.Root,
		Manifest:     "manifest.json",
		Gates:        "gates.json",
		Retries:      "retries.json",
		Perspectives: "perspectives.json",
		Pivot:        "pivot.json",
		Wave1Dir:     "wave-1",
		Wave2Dir:     "wave-2",
		CitationsDir: "citations",
		SummariesDir: "summaries",
		SynthesisDir: "synthesis",
		ReviewDir:    "review",
		AuditLog:     "logs/audit.jsonl",
	}
}
