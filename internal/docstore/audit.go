package docstore

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"meridian/pkg/reserr"
)

// AuditEvent is one append-only record of a mutating operation.
type AuditEvent struct {
	// Kind names the operation (e.g. "manifest.patch", "gate.update").
	Kind string `json:"kind"`
	// RunID is the run the mutation belongs to.
	RunID string `json:"run_id"`
	// Path is the mutated document, relative to the run root when possible.
	Path string `json:"path"`
	// Reason is the caller-supplied explanation.
	Reason string `json:"reason"`
	// RevisionBefore and RevisionAfter bracket the mutation.
	RevisionBefore int `json:"revision_before"`
	RevisionAfter  int `json:"revision_after"`
	// InputsDigest hashes the inputs that produced the mutation.
	InputsDigest string `json:"inputs_digest,omitempty"`
	// At is when the event was recorded.
	At time.Time `json:"at"`
}

// AppendAudit appends one JSON line to the audit log. Events are never
// rewritten; the file is opened append-only.
func AppendAudit(logPath string, ev AuditEvent) *reserr.Error {
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return reserr.Wrap(reserr.CodeWriteFailed, "create log directory", err)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return reserr.Wrap(reserr.CodeWriteFailed, "open audit log", err)
	}
	defer f.Close()
	line, err := json.Marshal(ev)
	if err != nil {
		return reserr.Wrap(reserr.CodeWriteFailed, "marshal audit event", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return reserr.Wrap(reserr.CodeWriteFailed, "append audit event", err)
	}
	return nil
}

// ReadAudit parses every event in an audit log. A malformed line fails the
// whole read: the audit trail is either intact or the run is suspect.
func ReadAudit(logPath string) ([]AuditEvent, *reserr.Error) {
	f, err := os.Open(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, reserr.Newf(reserr.CodeNotFound, "audit log not found: %s", logPath)
		}
		return nil, reserr.Wrap(reserr.CodeWriteFailed, "open audit log", err)
	}
	defer f.Close()

	var events []AuditEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev AuditEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, reserr.Wrap(reserr.CodeInvalidJSONL, "parse audit event", err).
				With("line", lineNo)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, reserr.Wrap(reserr.CodeWriteFailed, "scan audit log", err)
	}
	return events, nil
}
