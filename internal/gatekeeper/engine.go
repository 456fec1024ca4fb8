// Package gatekeeper owns the gates document lifecycle and the per-gate
// retry ledger. Gate computation itself lives with the pipelines that own
// the artifacts (citations, summary, synthesis, wave); this package is the
// single write path that persists their verdicts under the lifecycle rules.
package gatekeeper

import (
	"time"

	"meridian/internal/docstore"
	"meridian/internal/runfs"
	"meridian/internal/schema"
	"meridian/pkg/models"
	"meridian/pkg/reserr"
)

// Engine persists gate updates for one run.
type Engine struct {
	layout runfs.Layout
	runID  string
}

// New creates an engine for the given run root and id.
func New(layout runfs.Layout, runID string) *Engine {
	return &Engine{layout: layout, runID: runID}
}

// Result is a pipeline's computed verdict for one gate.
type Result struct {
	// Status is the computed status.
	Status models.GateStatus
	// Metrics are the numbers that justify the status.
	Metrics map[string]float64
	// EvaluatedArtifacts lists the artifacts the computation read.
	EvaluatedArtifacts []string
	// Warnings are non-blocking findings.
	Warnings []string
	// Notes is free text for operators.
	Notes string
	// FailureCode carries the specific error code behind a fail status.
	FailureCode reserr.Code
}

// Update persists a gate result. Lifecycle rules: the gate id must be
// known, a hard gate can never be set to warn, and any status other than
// not_run stamps updated_at.
func (e *Engine) Update(id models.GateID, res Result, inputsDigest string, expectedRevision *int) (*models.GatesDoc, *reserr.Error) {
	if !id.Valid() {
		return nil, reserr.Newf(reserr.CodeInvalidArgs, "unknown gate %q", id)
	}
	if !res.Status.Valid() {
		return nil, reserr.Newf(reserr.CodeInvalidArgs, "unknown gate status %q", res.Status)
	}
	if res.Status == models.GateWarn && models.KindOf(id) == models.GateHard {
		return nil, reserr.Newf(reserr.CodeLifecycleRuleViolation,
			"hard gate %s cannot be set to warn", id).With("gate", string(id))
	}

	gatePatch := map[string]any{
		"status": string(res.Status),
	}
	if res.Status != models.GateNotRun {
		gatePatch["updated_at"] = time.Now().UTC().Format(time.RFC3339)
	}
	if res.Metrics != nil {
		gatePatch["metrics"] = toAnyMap(res.Metrics)
	}
	if res.EvaluatedArtifacts != nil {
		gatePatch["evaluated_artifacts"] = toAnySlice(res.EvaluatedArtifacts)
	}
	if res.Warnings != nil {
		gatePatch["warnings"] = toAnySlice(res.Warnings)
	}
	if res.Notes != "" {
		gatePatch["notes"] = res.Notes
	}

	patch := docstore.Document{
		"gates": map[string]any{string(id): gatePatch},
	}
	if inputsDigest != "" {
		patch["inputs_digest"] = inputsDigest
	}

	vdoc := e.document()
	merged, perr := vdoc.Patch(docstore.PatchRequest{
		Patch:            patch,
		ExpectedRevision: expectedRevision,
		Reason:           "gate " + string(id) + " -> " + string(res.Status),
		InputsDigest:     inputsDigest,
	})
	if perr != nil {
		return nil, perr
	}
	var doc models.GatesDoc
	if ferr := docstore.FromDocument(merged, &doc); ferr != nil {
		return nil, ferr
	}
	return &doc, nil
}

// Read loads and validates the gates document.
func (e *Engine) Read() (*models.GatesDoc, *reserr.Error) {
	raw, rerr := e.document().ReadValidated()
	if rerr != nil {
		return nil, rerr
	}
	var doc models.GatesDoc
	if ferr := docstore.FromDocument(raw, &doc); ferr != nil {
		return nil, ferr
	}
	return &doc, nil
}

// Status returns one gate's current status.
func (e *Engine) Status(id models.GateID) (models.GateStatus, *reserr.Error) {
	doc, rerr := e.Read()
	if rerr != nil {
		return "", rerr
	}
	g, ok := doc.Gates[id]
	if !ok {
		return "", reserr.Newf(reserr.CodeInvalidArgs, "unknown gate %q", id)
	}
	return g.Status, nil
}

func (e *Engine) document() *docstore.VersionedDocument {
	return &docstore.VersionedDocument{
		Path:      e.layout.Gates(),
		Kind:      "gates",
		RunID:     e.runID,
		AuditLog:  e.layout.AuditLog(),
		Immutable: models.GatesImmutableFields(),
		Validate:  schema.Gates,
	}
}

func toAnyMap(m map[string]float64) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func toAnySlice(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
