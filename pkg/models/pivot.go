package models

import "time"

// PivotSchemaVersion is the current pivot document schema.
const PivotSchemaVersion = "1"

// GapPriority ranks a gap P0 (most urgent) through P3.
type GapPriority string

const (
	GapP0 GapPriority = "P0"
	GapP1 GapPriority = "P1"
	GapP2 GapPriority = "P2"
	GapP3 GapPriority = "P3"
)

// Valid returns true if the priority is P0..P3.
func (p GapPriority) Valid() bool {
	switch p {
	case GapP0, GapP1, GapP2, GapP3:
		return true
	default:
		return false
	}
}

// Rank returns 0 for P0 through 3 for P3, and 4 for unknown values.
func (p GapPriority) Rank() int {
	switch p {
	case GapP0:
		return 0
	case GapP1:
		return 1
	case GapP2:
		return 2
	case GapP3:
		return 3
	default:
		return 4
	}
}

// Gap is one prioritized deficiency discovered after wave 1.
type Gap struct {
	// ID is unique within the run (explicit id or derived from source).
	ID string `json:"id"`
	// Priority is P0..P3.
	Priority GapPriority `json:"priority"`
	// Text describes the deficiency.
	Text string `json:"text"`
	// Tags are free-form labels parsed from #tag markers.
	Tags []string `json:"tags,omitempty"`
	// Perspective attributes the gap to the wave-1 perspective it came from.
	Perspective string `json:"perspective,omitempty"`
}

// PivotDoc is the one-per-run pivot decision document.
type PivotDoc struct {
	SchemaVersion string    `json:"schema_version"`
	RunID         string    `json:"run_id"`
	DecidedAt     time.Time `json:"decided_at"`

	// Gaps is the full ranked gap list the decision was made from.
	Gaps []Gap `json:"gaps"`
	// Wave2Required is the decision.
	Wave2Required bool `json:"wave2_required"`
	// RuleHit names the ladder rule that fired.
	RuleHit string `json:"rule_hit"`
	// Explanation is one sentence justifying the decision.
	Explanation string `json:"explanation"`
	// SelectedGapIDs are the gaps wave 2 must address, when required.
	SelectedGapIDs []string `json:"selected_gap_ids,omitempty"`
	// InputsDigest hashes the wave-1 outputs and validator reports used.
	InputsDigest string `json:"inputs_digest"`

	Revision int `json:"revision"`
}
