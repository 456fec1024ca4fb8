package review

import (
	"fmt"
	"time"

	"meridian/internal/docstore"
	"meridian/internal/runfs"
	"meridian/pkg/models"
	"meridian/pkg/reserr"
)

// Outcome is the single action revision control chose, with the inputs that
// forced it.
type Outcome struct {
	Action    models.RevisionAction `json:"action"`
	Iteration int                   `json:"iteration"`
	Decision  models.ReviewDecision `json:"decision"`
	GateE     models.GateStatus     `json:"gate_e"`
	Reason    string                `json:"reason"`
}

// Decide maps the review bundle and gate E status to exactly one action.
// PASS with a satisfied gate E advances; hitting the iteration cap escalates
// no matter what the reviewer said; everything else revises.
func Decide(bundle *models.ReviewBundle, gateE models.GateStatus, maxIterations int) Outcome {
	out := Outcome{
		Iteration: bundle.Iteration,
		Decision:  bundle.Decision,
		GateE:     gateE,
	}
	switch {
	case bundle.Decision == models.ReviewPass && gateE.Satisfies():
		out.Action = models.ActionAdvance
		out.Reason = "reviewer passed and the synthesis gate is satisfied"
	case bundle.Iteration >= maxIterations:
		out.Action = models.ActionEscalate
		out.Reason = fmt.Sprintf("iteration cap of %d reached", maxIterations)
	default:
		out.Action = models.ActionRevise
		out.Reason = "reviewer requires changes"
	}
	return out
}

// Commit persists the outcome as revision-directives.json and audits it.
func Commit(layout runfs.Layout, runID string, out Outcome, directives []models.Directive) *reserr.Error {
	doc := map[string]any{
		"schema_version": models.ReviewSchemaVersion,
		"run_id":         runID,
		"action":         string(out.Action),
		"iteration":      out.Iteration,
		"reason":         out.Reason,
		"directives":     directives,
	}
	if werr := docstore.WriteJSON(layout.Directives(), doc); werr != nil {
		return werr
	}
	return docstore.AppendAudit(layout.AuditLog(), docstore.AuditEvent{
		Kind:   "review.decide",
		RunID:  runID,
		Path:   layout.Directives(),
		Reason: fmt.Sprintf("iteration %d: %s", out.Iteration, out.Action),
		At:     time.Now().UTC(),
	})
}
