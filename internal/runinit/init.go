// Package runinit creates the on-disk skeleton for a new run: the
// directory tree, the seeded manifest and gates documents, the retry
// ledger, and the entry in the shared runs ledger. Initialization is
// idempotent; a second call for the same run id changes nothing.
package runinit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"meridian/internal/config"
	"meridian/internal/docstore"
	"meridian/internal/runfs"
	"meridian/internal/schema"
	"meridian/pkg/models"
	"meridian/pkg/reserr"
)

// Options configures run creation.
type Options struct {
	// RunID names the run; generated when empty.
	RunID string
	// RunsDir is the directory run roots are created under.
	RunsDir string
	// Mode is the run mode; config default when empty.
	Mode models.RunMode
	// Sensitivity is the redaction profile; normal when empty.
	Sensitivity models.Sensitivity
	// Config is the resolved configuration.
	Config *config.Config
	// Provenance records where each config flag came from.
	Provenance config.Provenance
	// Now overrides the clock in tests.
	Now time.Time
}

// Result reports the outcome of Init.
type Result struct {
	// RunID is the created or existing run id.
	RunID string `json:"run_id"`
	// Root is the absolute run root.
	Root string `json:"root"`
	// Created is false when the run already existed.
	Created bool `json:"created"`
}

// LedgerEntry is one line of the shared runs-ledger.jsonl.
type LedgerEntry struct {
	RunID     string         `json:"run_id"`
	Root      string         `json:"root"`
	Mode      models.RunMode `json:"mode"`
	CreatedAt time.Time      `json:"created_at"`
}

// LedgerPath returns the shared runs ledger path for a runs directory.
func LedgerPath(runsDir string) string {
	return filepath.Join(runsDir, "runs-ledger.jsonl")
}

// Init creates the run skeleton and seeds its documents. Calling Init twice
// with the same run id returns Created=false and does not overwrite the
// existing manifest or gates.
func Init(opts Options) (*Result, *reserr.Error) {
	if opts.Config == nil {
		return nil, reserr.New(reserr.CodeInvalidArgs, "config is required")
	}
	if opts.RunsDir == "" {
		return nil, reserr.New(reserr.CodeInvalidArgs, "runs directory is required")
	}
	runID := opts.RunID
	if runID == "" {
		runID = "run_" + uuid.NewString()[:8]
	}
	if strings.ContainsAny(runID, "/\\ ") {
		return nil, reserr.Newf(reserr.CodeInvalidArgs, "run id %q contains illegal characters", runID).
			With("run_id", runID)
	}
	mode := opts.Mode
	if mode == "" {
		mode = models.RunMode(opts.Config.DefaultMode)
	}
	if !mode.Valid() {
		return nil, reserr.Newf(reserr.CodeInvalidArgs, "unknown mode %q", mode)
	}
	sensitivity := opts.Sensitivity
	if sensitivity == "" {
		sensitivity = models.SensitivityNormal
	}
	if !sensitivity.Valid() {
		return nil, reserr.Newf(reserr.CodeInvalidArgs, "unknown sensitivity %q", sensitivity)
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	layout := runfs.New(filepath.Join(opts.RunsDir, runID))
	if _, err := os.Stat(layout.Manifest()); err == nil {
		return &Result{RunID: runID, Root: layout.Root, Created: false}, nil
	}

	for _, dir := range layout.Dirs() {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, reserr.Wrap(reserr.CodeWriteFailed, "create run directory", err)
		}
	}

	manifest := models.Manifest{
		SchemaVersion:  models.ManifestSchemaVersion,
		RunID:          runID,
		CreatedAt:      now,
		Mode:           mode,
		Sensitivity:    sensitivity,
		Status:         models.RunRunning,
		Stage:          models.StageInit,
		StageStartedAt: now,
		StageHistory:   []models.StageRecord{},
		Limits:         opts.Config.Limits(mode),
		Config:         map[string]models.ConfigValue(opts.Provenance),
		Artifacts:      layout.Artifacts(),
	}
	if err := writeValidated(layout.Manifest(), manifest, schema.Manifest); err != nil {
		return nil, err
	}

	gates := models.GatesDoc{
		SchemaVersion: models.GatesSchemaVersion,
		RunID:         runID,
		Gates:         map[models.GateID]models.Gate{},
	}
	for _, id := range models.AllGates() {
		gates.Gates[id] = models.Gate{Kind: models.KindOf(id), Status: models.GateNotRun}
	}
	if err := writeValidated(layout.Gates(), gates, schema.Gates); err != nil {
		return nil, err
	}

	retries := map[string]any{
		"run_id":   runID,
		"gates":    map[string]any{},
		"revision": float64(0),
	}
	if verr := schema.RetryLedger(retries); verr != nil {
		return nil, verr
	}
	if werr := docstore.WriteJSON(layout.Retries(), retries); werr != nil {
		return nil, werr
	}

	if aerr := docstore.AppendAudit(layout.AuditLog(), docstore.AuditEvent{
		Kind:           "run.create",
		RunID:          runID,
		Path:           layout.Manifest(),
		Reason:         "run initialized",
		RevisionBefore: -1,
		RevisionAfter:  0,
		At:             now,
	}); aerr != nil {
		return nil, aerr
	}

	if lerr := appendLedger(LedgerPath(opts.RunsDir), LedgerEntry{
		RunID:     runID,
		Root:      layout.Root,
		Mode:      mode,
		CreatedAt: now,
	}); lerr != nil {
		return nil, lerr
	}

	return &Result{RunID: runID, Root: layout.Root, Created: true}, nil
}

// writeValidated marshals a typed document, validates its shape, then
// writes it atomically.
func writeValidated(path string, v any, validate docstore.ValidateFunc) *reserr.Error {
	doc, derr := docstore.ToDocument(v)
	if derr != nil {
		return derr
	}
	if _, ok := doc["revision"]; !ok {
		doc["revision"] = float64(0)
	}
	if verr := validate(doc); verr != nil {
		return verr
	}
	return docstore.WriteJSON(path, doc)
}

// appendLedger appends one JSON line to the shared runs ledger.
func appendLedger(path string, entry LedgerEntry) *reserr.Error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return reserr.Wrap(reserr.CodeWriteFailed, "create runs directory", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return reserr.Wrap(reserr.CodeWriteFailed, "open runs ledger", err)
	}
	defer f.Close()
	line, err := json.Marshal(entry)
	if err != nil {
		return reserr.Wrap(reserr.CodeWriteFailed, "marshal ledger entry", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return reserr.Wrap(reserr.CodeWriteFailed, "append ledger entry", err)
	}
	return nil
}
