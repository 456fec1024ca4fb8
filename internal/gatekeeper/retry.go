package gatekeeper

import (
	"strings"
	"time"

	"meridian/internal/docstore"
	"meridian/internal/schema"
	"meridian/pkg/models"
	"meridian/pkg/reserr"
)

// Attempt is one recorded retry of a gate.
type Attempt struct {
	// At is when the retry was recorded.
	At time.Time `json:"at"`
	// Note is the required "what changed" explanation.
	Note string `json:"note"`
}

// RetryState is one gate's ledger entry.
type RetryState struct {
	Attempts []Attempt `json:"attempts"`
}

// RecordRetry records one retry attempt against a gate's fixed cap. The
// caps are A:0 B:2 C:1 D:1 E:3 F:0; exceeding the cap returns
// RETRY_EXHAUSTED and never increments the counter further. The note must
// be non-empty: it is the audit record of what changed before retrying.
func (e *Engine) RecordRetry(id models.GateID, note string) (int, *reserr.Error) {
	if !id.Valid() {
		return 0, reserr.Newf(reserr.CodeInvalidArgs, "unknown gate %q", id)
	}
	if strings.TrimSpace(note) == "" {
		return 0, reserr.New(reserr.CodeInvalidArgs, "retry note is required: describe what changed")
	}

	vdoc := &docstore.VersionedDocument{
		Path:      e.layout.Retries(),
		Kind:      "retries",
		RunID:     e.runID,
		AuditLog:  e.layout.AuditLog(),
		Immutable: []string{"run_id"},
		Validate:  schema.RetryLedger,
	}
	doc, rerr := vdoc.Read()
	if rerr != nil {
		return 0, rerr
	}

	used := attemptCount(doc, id)
	limit := models.RetryCap(id)
	if used >= limit {
		return used, reserr.Newf(reserr.CodeRetryExhausted,
			"gate %s has no retries left (cap %d, used %d)", id, limit, used).
			With("gate", string(id)).
			With("cap", limit).
			With("used", used)
	}

	attempts := existingAttempts(doc, id)
	attempts = append(attempts, map[string]any{
		"at":   time.Now().UTC().Format(time.RFC3339),
		"note": note,
	})
	patch := docstore.Document{
		"gates": map[string]any{
			string(id): map[string]any{"attempts": attempts},
		},
	}
	if _, perr := vdoc.Patch(docstore.PatchRequest{
		Patch:  patch,
		Reason: "retry gate " + string(id) + ": " + note,
	}); perr != nil {
		return used, perr
	}
	return used + 1, nil
}

// RetriesUsed returns how many retries a gate has consumed.
func (e *Engine) RetriesUsed(id models.GateID) (int, *reserr.Error) {
	doc, rerr := docstore.ReadDocument(e.layout.Retries())
	if rerr != nil {
		return 0, rerr
	}
	return attemptCount(doc, id), nil
}

func existingAttempts(doc docstore.Document, id models.GateID) []any {
	gates, _ := doc["gates"].(map[string]any)
	entry, _ := gates[string(id)].(map[string]any)
	attempts, _ := entry["attempts"].([]any)
	return attempts
}

func attemptCount(doc docstore.Document, id models.GateID) int {
	return len(existingAttempts(doc, id))
}
