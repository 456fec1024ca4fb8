package models

import "time"

// SummaryPackSchemaVersion is the current summary-pack document schema.
const SummaryPackSchemaVersion = "1"

// SummaryEntry describes one committed per-perspective summary.
type SummaryEntry struct {
	// PerspectiveID is the perspective the summary condenses.
	PerspectiveID string `json:"perspective_id"`
	// Path is the run-root-relative markdown path.
	Path string `json:"path"`
	// SizeBytes is the committed file size.
	SizeBytes int `json:"size_bytes"`
	// CIDs lists every citation id the summary references.
	CIDs []string `json:"cids"`
}

// SummaryPackDoc is the persisted summary pack.
type SummaryPackDoc struct {
	SchemaVersion string         `json:"schema_version"`
	RunID         string         `json:"run_id"`
	BuiltAt       time.Time      `json:"built_at"`
	Entries       []SummaryEntry `json:"entries"`
	TotalBytes    int            `json:"total_bytes"`
	Revision      int            `json:"revision"`
}
