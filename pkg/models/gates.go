package models

import "time"

// GatesSchemaVersion is the current gates document schema.
const GatesSchemaVersion = "1"

// GateID names one of the six quality gates.
type GateID string

const (
	// GateA checks the perspectives plan.
	GateA GateID = "A"
	// GateB checks wave output quality.
	GateB GateID = "B"
	// GateC checks citation validation rates.
	GateC GateID = "C"
	// GateD checks summary pack coverage and caps.
	GateD GateID = "D"
	// GateE checks the final synthesis.
	GateE GateID = "E"
	// GateF checks the review bundle.
	GateF GateID = "F"
)

// Valid returns true if the gate id is one of A-F.
func (g GateID) Valid() bool {
	switch g {
	case GateA, GateB, GateC, GateD, GateE, GateF:
		return true
	default:
		return false
	}
}

// AllGates lists the six gates in order.
func AllGates() []GateID {
	return []GateID{GateA, GateB, GateC, GateD, GateE, GateF}
}

// GateKind distinguishes hard gates from soft gates.
type GateKind string

const (
	// GateHard gates may only be not_run, pass or fail.
	GateHard GateKind = "hard"
	// GateSoft gates additionally allow warn.
	GateSoft GateKind = "soft"
)

// KindOf returns the fixed kind of a gate. B and E are soft; the rest hard.
func KindOf(id GateID) GateKind {
	if id == GateB || id == GateE {
		return GateSoft
	}
	return GateHard
}

// GateStatus is the lifecycle status of a gate.
type GateStatus string

const (
	// GateNotRun means the gate has never been evaluated.
	GateNotRun GateStatus = "not_run"
	// GatePass means the gate's conditions held.
	GatePass GateStatus = "pass"
	// GateFail means the gate's conditions did not hold.
	GateFail GateStatus = "fail"
	// GateWarn means a soft gate passed with reservations.
	GateWarn GateStatus = "warn"
)

// Valid returns true if the status is a known value.
func (s GateStatus) Valid() bool {
	switch s {
	case GateNotRun, GatePass, GateFail, GateWarn:
		return true
	default:
		return false
	}
}

// Satisfies reports whether the status satisfies a "gate must pass"
// precondition. Warn counts: a soft gate passing with reservations does not
// block the pipeline.
func (s GateStatus) Satisfies() bool {
	return s == GatePass || s == GateWarn
}

// Gate is one gate's persisted state.
type Gate struct {
	// Kind is hard or soft, fixed at run creation.
	Kind GateKind `json:"kind"`
	// Status is the lifecycle status.
	Status GateStatus `json:"status"`
	// UpdatedAt is required whenever Status is anything but not_run.
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	// Metrics are the numbers that justified the last status.
	Metrics map[string]float64 `json:"metrics,omitempty"`
	// EvaluatedArtifacts lists run-root-relative paths the gate read.
	EvaluatedArtifacts []string `json:"evaluated_artifacts,omitempty"`
	// Warnings are non-blocking findings.
	Warnings []string `json:"warnings,omitempty"`
	// Notes is free text for operators.
	Notes string `json:"notes,omitempty"`
}

// GatesDoc is the gates document: exactly six named gates plus its own
// revision and the digest of the inputs behind the last update.
type GatesDoc struct {
	SchemaVersion string          `json:"schema_version"`
	RunID         string          `json:"run_id"`
	Gates         map[GateID]Gate `json:"gates"`
	InputsDigest  string          `json:"inputs_digest,omitempty"`
	Revision      int             `json:"revision"`
}

// GatesImmutableFields lists gates document keys no patch may touch.
func GatesImmutableFields() []string {
	return []string{"schema_version", "run_id"}
}

// RetryCap returns the fixed retry cap for a gate.
func RetryCap(id GateID) int {
	switch id {
	case GateB:
		return 2
	case GateC, GateD:
		return 1
	case GateE:
		return 3
	default: // A and F are single-shot.
		return 0
	}
}
