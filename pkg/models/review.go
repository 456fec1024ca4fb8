package models

import "time"

// ReviewSchemaVersion is the current review-bundle document schema.
const ReviewSchemaVersion = "1"

// MaxReviewEntries bounds findings and directives lists.
const MaxReviewEntries = 100

// ReviewDecision is the reviewer's verdict.
type ReviewDecision string

const (
	// ReviewPass accepts the synthesis as-is.
	ReviewPass ReviewDecision = "PASS"
	// ReviewChangesRequired sends the synthesis back for revision.
	ReviewChangesRequired ReviewDecision = "CHANGES_REQUIRED"
)

// Valid returns true if the decision is a known value.
func (d ReviewDecision) Valid() bool {
	return d == ReviewPass || d == ReviewChangesRequired
}

// Finding is one reviewer observation.
type Finding struct {
	// Severity is blocker, major or minor.
	Severity string `json:"severity"`
	// Section names the synthesis section concerned, if any.
	Section string `json:"section,omitempty"`
	// Text is the observation.
	Text string `json:"text"`
}

// Directive is one concrete revision instruction.
type Directive struct {
	// ID orders directives for the revising agent.
	ID string `json:"id"`
	// Text is the instruction.
	Text string `json:"text"`
}

// ReviewBundle aggregates reviewer output into a single decision.
type ReviewBundle struct {
	SchemaVersion string         `json:"schema_version"`
	RunID         string         `json:"run_id"`
	Decision      ReviewDecision `json:"decision"`
	Findings      []Finding      `json:"findings"`
	Directives    []Directive    `json:"directives"`
	Iteration     int            `json:"iteration"`
	CreatedAt     time.Time      `json:"created_at"`
}

// RevisionAction is the single action revision control chooses.
type RevisionAction string

const (
	// ActionAdvance moves the run to finalize.
	ActionAdvance RevisionAction = "advance"
	// ActionRevise sends the run back to synthesis.
	ActionRevise RevisionAction = "revise"
	// ActionEscalate halts the loop for operator attention.
	ActionEscalate RevisionAction = "escalate"
)
