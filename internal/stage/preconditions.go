package stage

import (
	"fmt"
	"os"

	"meridian/internal/gatekeeper"
	"meridian/internal/runfs"
	"meridian/pkg/models"
	"meridian/pkg/reserr"
)

// Check is one evaluated precondition. Every check runs even after a
// failure so the trace always shows the complete picture.
type Check struct {
	// Kind is "artifact", "dir" or "gate".
	Kind string `json:"kind"`
	// Target is the run-root-relative path or gate id.
	Target string `json:"target"`
	// OK is whether the check held.
	OK bool `json:"ok"`
	// Detail explains a failed check.
	Detail string `json:"detail,omitempty"`
}

type transition struct {
	from, to models.Stage
}

type precondition struct {
	kind   string
	target string
}

// preconditions maps each legal transition to its checks. Artifact targets
// are run-root relative; dir targets must contain at least one regular file.
var preconditions = map[transition][]precondition{
	{models.StageInit, models.StageWave1}: {
		{"artifact", "perspectives.json"},
		{"gate", string(models.GateA)},
	},
	{models.StageWave1, models.StagePivot}: {
		{"dir", "wave-1"},
		{"gate", string(models.GateB)},
	},
	{models.StagePivot, models.StageWave2}: {
		{"artifact", "pivot.json"},
	},
	{models.StagePivot, models.StageCitations}: {
		{"artifact", "pivot.json"},
	},
	{models.StageWave2, models.StageCitations}: {
		{"dir", "wave-2"},
	},
	{models.StageCitations, models.StageSummaries}: {
		{"artifact", "citations/citations.jsonl"},
		{"gate", string(models.GateC)},
	},
	{models.StageSummaries, models.StageSynthesis}: {
		{"artifact", "summaries/summary-pack.json"},
		{"gate", string(models.GateD)},
	},
	{models.StageSynthesis, models.StageReview}: {
		{"artifact", "synthesis/final-synthesis.md"},
		{"gate", string(models.GateE)},
	},
	{models.StageReview, models.StageSynthesis}: {
		{"artifact", "review/review-bundle.json"},
	},
	{models.StageReview, models.StageFinalize}: {
		{"artifact", "review/review-bundle.json"},
		{"gate", string(models.GateE)},
		{"gate", string(models.GateF)},
	},
}

// evaluate runs every precondition for a transition and returns the full
// trace plus the error for the first failed check, if any.
func evaluate(layout runfs.Layout, gates *gatekeeper.Engine, from, to models.Stage) ([]Check, *reserr.Error) {
	var trace []Check
	var firstErr *reserr.Error

	for _, p := range preconditions[transition{from, to}] {
		check := Check{Kind: p.kind, Target: p.target}
		switch p.kind {
		case "artifact":
			if _, err := os.Stat(layout.Join(p.target)); err != nil {
				check.Detail = "artifact not found"
			} else {
				check.OK = true
			}
			if !check.OK && firstErr == nil {
				firstErr = reserr.Newf(reserr.CodeMissingArtifact,
					"required artifact %s is missing", p.target)
			}
		case "dir":
			if hasFiles(layout.Join(p.target)) {
				check.OK = true
			} else {
				check.Detail = "directory is empty or missing"
			}
			if !check.OK && firstErr == nil {
				firstErr = reserr.Newf(reserr.CodeMissingArtifact,
					"no artifacts under %s/", p.target)
			}
		case "gate":
			id := models.GateID(p.target)
			status, gerr := gates.Status(id)
			switch {
			case gerr != nil:
				check.Detail = gerr.Message
			case status.Satisfies():
				check.OK = true
			default:
				check.Detail = fmt.Sprintf("gate %s is %s", id, status)
			}
			if !check.OK && firstErr == nil {
				firstErr = reserr.Newf(reserr.CodeGateBlocked,
					"gate %s does not permit %s -> %s", id, from, to).
					With("gate", string(id)).
					With("status", string(status))
			}
		}
		trace = append(trace, check)
	}

	if firstErr != nil {
		firstErr = firstErr.With("trace", traceDetails(trace))
	}
	return trace, firstErr
}

func hasFiles(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() {
			return true
		}
	}
	return false
}

func traceDetails(trace []Check) []map[string]any {
	out := make([]map[string]any, 0, len(trace))
	for _, c := range trace {
		m := map[string]any{"kind": c.Kind, "target": c.Target, "ok": c.OK}
		if c.Detail != "" {
			m["detail"] = c.Detail
		}
		out = append(out, m)
	}
	return out
}
