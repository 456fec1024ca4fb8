// Package stage drives the run pipeline through its fixed state machine.
// Every transition is precondition-checked, digest-stamped and committed
// through a single optimistic manifest patch.
package stage

import (
	"fmt"
	"time"

	"meridian/internal/docstore"
	"meridian/internal/gatekeeper"
	"meridian/internal/pivot"
	"meridian/internal/runfs"
	"meridian/internal/schema"
	"meridian/pkg/models"
	"meridian/pkg/reserr"
)

// allowedNext is the fixed transition table. finalize has no successors.
var allowedNext = map[models.Stage][]models.Stage{
	models.StageInit:      {models.StageWave1},
	models.StageWave1:     {models.StagePivot},
	models.StagePivot:     {models.StageWave2, models.StageCitations},
	models.StageWave2:     {models.StageCitations},
	models.StageCitations: {models.StageSummaries},
	models.StageSummaries: {models.StageSynthesis},
	models.StageSynthesis: {models.StageReview},
	models.StageReview:    {models.StageSynthesis, models.StageFinalize},
}

// AllowedNext returns the legal successor stages, in table order.
func AllowedNext(s models.Stage) []models.Stage {
	return allowedNext[s]
}

// Machine advances one run.
type Machine struct {
	layout runfs.Layout
	runID  string
	gates  *gatekeeper.Engine
}

// New returns a machine over the run rooted at layout.
func New(layout runfs.Layout, runID string) *Machine {
	return &Machine{layout: layout, runID: runID, gates: gatekeeper.New(layout, runID)}
}

// AdvanceRequest parameterizes one transition attempt.
type AdvanceRequest struct {
	// RequestedNext picks the branch when the current stage allows more
	// than one successor and no artifact decides it (only review).
	RequestedNext models.Stage
	// ExpectedRevision enables the optimistic lock on the manifest.
	ExpectedRevision *int
}

// AdvanceResult reports a committed transition.
type AdvanceResult struct {
	From         models.Stage     `json:"from"`
	To           models.Stage     `json:"to"`
	Trace        []Check          `json:"trace"`
	InputsDigest string           `json:"inputs_digest"`
	Revision     int              `json:"revision"`
	RunStatus    models.RunStatus `json:"run_status"`
}

// Advance computes the next stage, evaluates its preconditions and commits
// the transition. The manifest patch carries the new stage, the history
// entry and, on finalize, the completed run status.
func (m *Machine) Advance(req AdvanceRequest) (*AdvanceResult, *reserr.Error) {
	manifest := m.manifestDoc()
	doc, rerr := manifest.ReadValidated()
	if rerr != nil {
		return nil, rerr
	}

	status := models.RunStatus(stringField(doc, "status"))
	if status != models.RunRunning {
		return nil, reserr.Newf(reserr.CodeLifecycleRuleViolation,
			"run is %s, only running runs advance", status)
	}
	from := models.Stage(stringField(doc, "stage"))
	if from.Terminal() {
		return nil, reserr.New(reserr.CodeLifecycleRuleViolation,
			"finalize is terminal")
	}

	to, terr := m.chooseNext(from, req.RequestedNext)
	if terr != nil {
		return nil, terr
	}

	trace, perr := evaluate(m.layout, m.gates, from, to)
	if perr != nil {
		return nil, perr
	}

	now := time.Now().UTC()
	digest := docstore.Digest(string(from), string(to), trace)
	record := models.StageRecord{
		From:         from,
		To:           to,
		At:           now,
		InputsDigest: digest,
	}
	if from == models.StageReview {
		record.RequestedNext = req.RequestedNext
	}

	history := appendHistory(doc, record)
	patch := docstore.Document{
		"stage":            string(to),
		"stage_started_at": now.Format(time.RFC3339Nano),
		"stage_history":    history,
	}
	runStatus := models.RunRunning
	if to.Terminal() {
		runStatus = models.RunCompleted
		patch["status"] = string(models.RunCompleted)
	}

	merged, perr2 := manifest.Patch(docstore.PatchRequest{
		Patch:            patch,
		ExpectedRevision: req.ExpectedRevision,
		Reason:           fmt.Sprintf("stage %s -> %s", from, to),
		InputsDigest:     digest,
	})
	if perr2 != nil {
		return nil, perr2
	}
	rev, _ := docstore.Revision(merged)

	return &AdvanceResult{
		From:         from,
		To:           to,
		Trace:        trace,
		InputsDigest: digest,
		Revision:     rev,
		RunStatus:    runStatus,
	}, nil
}

// chooseNext resolves the successor stage. pivot branches on the persisted
// decision; review requires the caller to pick.
func (m *Machine) chooseNext(from, requested models.Stage) (models.Stage, *reserr.Error) {
	next := allowedNext[from]
	switch {
	case len(next) == 1:
		if requested != "" && requested != next[0] {
			return "", reserr.Newf(reserr.CodeInvalidArgs,
				"%s can only advance to %s", from, next[0])
		}
		return next[0], nil
	case from == models.StagePivot:
		decision, rerr := pivot.Read(m.layout)
		if rerr != nil {
			if rerr.Code == reserr.CodeNotFound {
				return "", reserr.New(reserr.CodeMissingArtifact,
					"pivot decision has not been committed")
			}
			return "", rerr
		}
		if decision.Wave2Required {
			return models.StageWave2, nil
		}
		return models.StageCitations, nil
	case from == models.StageReview:
		if requested == "" {
			return "", reserr.New(reserr.CodeInvalidArgs,
				"review requires requested_next of synthesis or finalize")
		}
		for _, s := range next {
			if requested == s {
				return requested, nil
			}
		}
		return "", reserr.Newf(reserr.CodeInvalidArgs,
			"%s is not a legal successor of review", requested)
	default:
		return "", reserr.Newf(reserr.CodeLifecycleRuleViolation,
			"%s has no successor", from)
	}
}

// ForceFail marks the run failed with an accumulated failure entry. Used by
// the watchdog; never called on an already-terminal run status.
func (m *Machine) ForceFail(kind, message string) (*models.Manifest, *reserr.Error) {
	manifest := m.manifestDoc()
	doc, rerr := manifest.ReadValidated()
	if rerr != nil {
		return nil, rerr
	}
	if s := models.RunStatus(stringField(doc, "status")); s != models.RunRunning {
		return nil, reserr.Newf(reserr.CodeLifecycleRuleViolation,
			"run is already %s", s)
	}

	failure := map[string]any{
		"kind":    kind,
		"stage":   stringField(doc, "stage"),
		"message": message,
		"at":      time.Now().UTC().Format(time.RFC3339Nano),
	}
	failures := []any{}
	if existing, ok := doc["failures"].([]any); ok {
		failures = append(failures, existing...)
	}
	failures = append(failures, failure)

	merged, perr := manifest.Patch(docstore.PatchRequest{
		Patch: docstore.Document{
			"status":   string(models.RunFailed),
			"failures": failures,
		},
		Reason: fmt.Sprintf("force fail: %s", kind),
	})
	if perr != nil {
		return nil, perr
	}
	var out models.Manifest
	if derr := docstore.FromDocument(merged, &out); derr != nil {
		return nil, derr
	}
	return &out, nil
}

// ReadManifest loads and validates the manifest.
func (m *Machine) ReadManifest() (*models.Manifest, *reserr.Error) {
	doc, rerr := m.manifestDoc().ReadValidated()
	if rerr != nil {
		return nil, rerr
	}
	var out models.Manifest
	if derr := docstore.FromDocument(doc, &out); derr != nil {
		return nil, derr
	}
	return &out, nil
}

func (m *Machine) manifestDoc() *docstore.VersionedDocument {
	return &docstore.VersionedDocument{
		Path:      m.layout.Manifest(),
		Kind:      "manifest",
		RunID:     m.runID,
		AuditLog:  m.layout.AuditLog(),
		Immutable: models.ManifestImmutableFields(),
		Validate:  schema.Manifest,
	}
}

func stringField(doc docstore.Document, key string) string {
	s, _ := doc[key].(string)
	return s
}

// appendHistory merges the existing raw history with the new record, since
// a merge patch replaces arrays wholesale.
func appendHistory(doc docstore.Document, record models.StageRecord) []any {
	history := []any{}
	if existing, ok := doc["stage_history"].([]any); ok {
		history = append(history, existing...)
	}
	entry := map[string]any{
		"from":          string(record.From),
		"to":            string(record.To),
		"at":            record.At.Format(time.RFC3339Nano),
		"inputs_digest": record.InputsDigest,
	}
	if record.RequestedNext != "" {
		entry["requested_next"] = string(record.RequestedNext)
	}
	return append(history, entry)
}
