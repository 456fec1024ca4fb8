// Package models defines the document types persisted under a run root.
// Every document carries a schema_version checked on read and a revision
// bumped by exactly one on every successful mutation.
package models

import "time"

// ManifestSchemaVersion is the current manifest document schema.
const ManifestSchemaVersion = "1"

// RunStatus represents the overall state of a run.
type RunStatus string

const (
	// RunRunning indicates the run is in flight.
	RunRunning RunStatus = "running"
	// RunCompleted indicates the run reached finalize.
	RunCompleted RunStatus = "completed"
	// RunFailed indicates a terminal failure (watchdog timeout or operator).
	RunFailed RunStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s RunStatus) Valid() bool {
	switch s {
	case RunRunning, RunCompleted, RunFailed:
		return true
	default:
		return false
	}
}

// RunMode selects the depth profile for a run.
type RunMode string

const (
	// ModeStandard is the default single-pivot research profile.
	ModeStandard RunMode = "standard"
	// ModeDeep raises wave and summary budgets.
	ModeDeep RunMode = "deep"
)

// Valid returns true if the mode is a known value.
func (m RunMode) Valid() bool {
	return m == ModeStandard || m == ModeDeep
}

// Sensitivity marks runs whose citation URLs need aggressive redaction.
type Sensitivity string

const (
	// SensitivityNormal applies the default redaction rules.
	SensitivityNormal Sensitivity = "normal"
	// SensitivityRestricted additionally strips all query parameters from
	// persisted URLs.
	SensitivityRestricted Sensitivity = "restricted"
)

// Valid returns true if the sensitivity is a known value.
func (s Sensitivity) Valid() bool {
	return s == SensitivityNormal || s == SensitivityRestricted
}

// Limits holds the resource caps resolved at run creation.
type Limits struct {
	// MaxWave1Perspectives caps the first wave fan-out.
	MaxWave1Perspectives int `json:"max_wave1_perspectives"`
	// MaxWave2Perspectives caps the second wave fan-out.
	MaxWave2Perspectives int `json:"max_wave2_perspectives"`
	// SummaryFileKB caps each per-perspective summary.
	SummaryFileKB int `json:"summary_file_kb"`
	// SummaryTotalKB caps the whole summary pack.
	SummaryTotalKB int `json:"summary_total_kb"`
	// MaxReviewIterations bounds the synthesis/review loop.
	MaxReviewIterations int `json:"max_review_iterations"`
}

// ArtifactPaths is the manifest's path table, relative to the run root.
// Immutable after creation.
type ArtifactPaths struct {
	Root         string `json:"root"`
	Manifest     string `json:"manifest"`
	Gates        string `json:"gates"`
	Retries      string `json:"retries"`
	Perspectives string `json:"perspectives"`
	Pivot        string `json:"pivot"`
	Wave1Dir     string `json:"wave1_dir"`
	Wave2Dir     string `json:"wave2_dir"`
	CitationsDir string `json:"citations_dir"`
	SummariesDir string `json:"summaries_dir"`
	SynthesisDir string `json:"synthesis_dir"`
	ReviewDir    string `json:"review_dir"`
	AuditLog     string `json:"audit_log"`
}

// StageRecord is one entry in the manifest's stage history.
type StageRecord struct {
	// From is the stage transitioned out of.
	From Stage `json:"from"`
	// To is the stage transitioned into.
	To Stage `json:"to"`
	// At is when the transition committed.
	At time.Time `json:"at"`
	// InputsDigest hashes every input that produced the transition decision.
	InputsDigest string `json:"inputs_digest"`
	// RequestedNext records a caller-supplied branch choice, if any.
	RequestedNext Stage `json:"requested_next,omitempty"`
}

// Failure is one accumulated failure entry on the manifest.
type Failure struct {
	// Kind classifies the failure (e.g. "timeout").
	Kind string `json:"kind"`
	// Stage is the stage the failure occurred in.
	Stage Stage `json:"stage"`
	// Message is a human-readable description.
	Message string `json:"message"`
	// At is when the failure was recorded.
	At time.Time `json:"at"`
}

// ConfigValue records one resolved configuration flag and its provenance.
type ConfigValue struct {
	// Value is the resolved value, rendered as a string.
	Value string `json:"value"`
	// Source is the layer that supplied it: default, file or env.
	Source string `json:"source"`
}

// Manifest is the authoritative run record. schema_version, run_id,
// created_at and artifacts can never be patched.
type Manifest struct {
	SchemaVersion string      `json:"schema_version"`
	RunID         string      `json:"run_id"`
	CreatedAt     time.Time   `json:"created_at"`
	Mode          RunMode     `json:"mode"`
	Sensitivity   Sensitivity `json:"sensitivity"`
	Status        RunStatus   `json:"status"`

	Stage          Stage         `json:"stage"`
	StageStartedAt time.Time     `json:"stage_started_at"`
	StageHistory   []StageRecord `json:"stage_history"`

	Limits    Limits                 `json:"limits"`
	Config    map[string]ConfigValue `json:"config"`
	Artifacts ArtifactPaths          `json:"artifacts"`

	Metrics  map[string]float64 `json:"metrics,omitempty"`
	Failures []Failure          `json:"failures,omitempty"`

	Revision int `json:"revision"`
}

// ManifestImmutableFields lists top-level manifest keys the document store
// must reject in any merge patch.
func ManifestImmutableFields() []string {
	return []string{"schema_version", "run_id", "created_at", "artifacts"}
}
