// Package wave plans research waves and validates their outputs. The
// planner turns a perspectives document into deterministic per-perspective
// prompts and output paths; the validator enforces each perspective's
// prompt contract on the produced markdown. The actual research happens
// outside this core.
package wave

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"meridian/internal/docstore"
	"meridian/internal/runfs"
	"meridian/internal/schema"
	"meridian/pkg/models"
	"meridian/pkg/reserr"
)

// Assignment is one perspective's planned prompt and output location.
type Assignment struct {
	// PerspectiveID identifies the perspective.
	PerspectiveID string `json:"perspective_id"`
	// Wave is 1 or 2.
	Wave int `json:"wave"`
	// Prompt is the deterministic prompt text for the external worker.
	Prompt string `json:"prompt"`
	// OutputPath is the absolute path the worker must write.
	OutputPath string `json:"output_path"`
}

// specFile is the yaml shape accepted by LoadSpec.
type specFile struct {
	Perspectives []models.Perspective `yaml:"perspectives"`
}

// LoadSpec parses a perspectives specification from yaml and persists it as
// the run's perspectives.json. Writing over an existing perspectives
// document is refused: perspectives are read-only once written.
func LoadSpec(layout runfs.Layout, runID string, yamlPath string, maxPerspectives int) (*models.PerspectivesDoc, *reserr.Error) {
	if _, err := os.Stat(layout.Perspectives()); err == nil {
		return nil, reserr.New(reserr.CodeAlreadyExistsConflict,
			"perspectives document already exists").
			With("path", layout.Perspectives())
	}
	data, err := os.ReadFile(yamlPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, reserr.Newf(reserr.CodeNotFound, "perspectives spec not found: %s", yamlPath)
		}
		return nil, reserr.Wrap(reserr.CodeWriteFailed, "read perspectives spec", err)
	}
	var spec specFile
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, reserr.Wrap(reserr.CodeInvalidArgs, "parse perspectives spec", err)
	}
	if len(spec.Perspectives) == 0 {
		return nil, reserr.New(reserr.CodeInvalidArgs, "perspectives spec is empty")
	}
	if len(spec.Perspectives) > maxPerspectives {
		return nil, reserr.Newf(reserr.CodeWaveCapExceeded,
			"%d perspectives exceed the wave cap of %d", len(spec.Perspectives), maxPerspectives).
			With("count", len(spec.Perspectives)).
			With("cap", maxPerspectives)
	}

	doc := models.PerspectivesDoc{
		SchemaVersion: models.PerspectivesSchemaVersion,
		RunID:         runID,
		Perspectives:  spec.Perspectives,
	}
	raw, derr := docstore.ToDocument(doc)
	if derr != nil {
		return nil, derr
	}
	raw["revision"] = float64(0)
	if verr := schema.Perspectives(raw); verr != nil {
		return nil, verr
	}
	if werr := docstore.WriteJSON(layout.Perspectives(), raw); werr != nil {
		return nil, werr
	}
	return &doc, nil
}

// ReadPerspectives loads and validates the run's perspectives document.
func ReadPerspectives(layout runfs.Layout) (*models.PerspectivesDoc, *reserr.Error) {
	raw, rerr := docstore.ReadDocument(layout.Perspectives())
	if rerr != nil {
		return nil, rerr
	}
	if verr := schema.Perspectives(raw); verr != nil {
		return nil, verr
	}
	var doc models.PerspectivesDoc
	if ferr := docstore.FromDocument(raw, &doc); ferr != nil {
		return nil, ferr
	}
	return &doc, nil
}

// Plan builds the deterministic assignments for a wave. For wave 2 only the
// selected perspective ids are planned; ids that do not exist in the
// perspectives document are an error. Assignments are ordered by id so the
// plan is reproducible.
func Plan(layout runfs.Layout, doc *models.PerspectivesDoc, waveNum int, selected []string) ([]Assignment, *reserr.Error) {
	if waveNum != 1 && waveNum != 2 {
		return nil, reserr.Newf(reserr.CodeInvalidArgs, "wave must be 1 or 2, got %d", waveNum)
	}
	var perspectives []models.Perspective
	if waveNum == 1 {
		perspectives = doc.Perspectives
	} else {
		for _, id := range selected {
			p := doc.Find(id)
			if p == nil {
				return nil, reserr.Newf(reserr.CodePerspectiveNotFound,
					"perspective %q not found", id).With("perspective_id", id)
			}
			perspectives = append(perspectives, *p)
		}
	}
	sort.Slice(perspectives, func(i, j int) bool {
		return perspectives[i].ID < perspectives[j].ID
	})

	assignments := make([]Assignment, 0, len(perspectives))
	for _, p := range perspectives {
		assignments = append(assignments, Assignment{
			PerspectiveID: p.ID,
			Wave:          waveNum,
			Prompt:        buildPrompt(p, waveNum),
			OutputPath:    layout.WaveOutput(waveNum, p.ID),
		})
	}
	return assignments, nil
}

// buildPrompt renders a perspective's prompt. The text is a pure function
// of the perspective fields so replanning yields identical prompts.
func buildPrompt(p models.Perspective, waveNum int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research perspective %s (track: %s, wave %d).\n\n", p.ID, p.Track, waveNum)
	fmt.Fprintf(&b, "Focus: %s\n\n", p.Focus)
	fmt.Fprintf(&b, "Produce a markdown report with these sections, each as an H2 heading:\n")
	for _, s := range p.Contract.RequiredSections {
		fmt.Fprintf(&b, "  ## %s\n", s)
	}
	fmt.Fprintf(&b, "\nConstraints:\n")
	fmt.Fprintf(&b, "  - at most %d words\n", p.Contract.MaxWords)
	fmt.Fprintf(&b, "  - at most %d sources, each a '- <url>' bullet in the Sources section\n", p.Contract.MaxSources)
	fmt.Fprintf(&b, "  - every gap a '- (P0..P3) <text> #tag' bullet in the Gaps section\n")
	return b.String()
}
