package docstore

import (
	"path/filepath"
	"testing"

	"meridian/pkg/reserr"
)

func setupVersioned(t *testing.T) *VersionedDocument {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")
	if err := WriteJSON(path, Document{
		"run_id":   "run_1",
		"value":    "initial",
		"revision": float64(0),
	}); err != nil {
		t.Fatalf("seed document: %v", err)
	}
	return &VersionedDocument{
		Path:      path,
		Kind:      "doc",
		RunID:     "run_1",
		AuditLog:  filepath.Join(dir, "audit.jsonl"),
		Immutable: []string{"run_id"},
	}
}

func TestPatch_BumpsRevisionByOne(t *testing.T) {
	doc := setupVersioned(t)

	for want := 1; want <= 3; want++ {
		merged, rerr := doc.Patch(PatchRequest{
			Patch:  Document{"value": "updated"},
			Reason: "test update",
		})
		if rerr != nil {
			t.Fatalf("Patch failed: %v", rerr)
		}
		rev, _ := Revision(merged)
		if rev != want {
			t.Errorf("revision = %d, want %d", rev, want)
		}
	}
}

func TestPatch_StaleRevisionRejected(t *testing.T) {
	doc := setupVersioned(t)

	if _, rerr := doc.Patch(PatchRequest{Patch: Document{"value": "v1"}, Reason: "first"}); rerr != nil {
		t.Fatalf("first patch failed: %v", rerr)
	}

	stale := 0
	_, rerr := doc.Patch(PatchRequest{
		Patch:            Document{"value": "v2"},
		ExpectedRevision: &stale,
		Reason:           "stale write",
	})
	if rerr == nil {
		t.Fatal("expected REVISION_MISMATCH")
	}
	if rerr.Code != reserr.CodeRevisionMismatch {
		t.Errorf("code = %s, want REVISION_MISMATCH", rerr.Code)
	}
	if rerr.Details["expected_revision"] != 0 || rerr.Details["actual_revision"] != 1 {
		t.Errorf("details = %v, want expected 0 actual 1", rerr.Details)
	}

	current, _ := doc.Read()
	if current["value"] != "v1" {
		t.Errorf("stale patch overwrote document: value = %v", current["value"])
	}
}

func TestPatch_ImmutableField(t *testing.T) {
	doc := setupVersioned(t)

	_, rerr := doc.Patch(PatchRequest{
		Patch:  Document{"run_id": "run_2"},
		Reason: "rename run",
	})
	if rerr == nil || rerr.Code != reserr.CodeImmutableField {
		t.Fatalf("expected IMMUTABLE_FIELD, got %v", rerr)
	}
}

func TestPatch_RevisionFieldItselfImmutable(t *testing.T) {
	doc := setupVersioned(t)

	_, rerr := doc.Patch(PatchRequest{
		Patch:  Document{"revision": float64(99)},
		Reason: "forge revision",
	})
	if rerr == nil || rerr.Code != reserr.CodeImmutableField {
		t.Fatalf("expected IMMUTABLE_FIELD, got %v", rerr)
	}
}

func TestPatch_ReasonRequired(t *testing.T) {
	doc := setupVersioned(t)

	_, rerr := doc.Patch(PatchRequest{Patch: Document{"value": "x"}})
	if rerr == nil || rerr.Code != reserr.CodeInvalidArgs {
		t.Fatalf("expected INVALID_ARGS, got %v", rerr)
	}
}

func TestPatch_ValidateRejectsBadMerge(t *testing.T) {
	doc := setupVersioned(t)
	doc.Validate = func(d Document) *reserr.Error {
		if d["value"] == "forbidden" {
			return reserr.New(reserr.CodeSchemaValidationFailed, "forbidden value")
		}
		return nil
	}

	_, rerr := doc.Patch(PatchRequest{Patch: Document{"value": "forbidden"}, Reason: "bad"})
	if rerr == nil || rerr.Code != reserr.CodeSchemaValidationFailed {
		t.Fatalf("expected SCHEMA_VALIDATION_FAILED, got %v", rerr)
	}

	current, _ := doc.Read()
	if current["value"] != "initial" {
		t.Errorf("rejected patch was persisted: value = %v", current["value"])
	}
}

func TestPatch_AppendsAuditEvent(t *testing.T) {
	doc := setupVersioned(t)

	if _, rerr := doc.Patch(PatchRequest{
		Patch:        Document{"value": "audited"},
		Reason:       "audit check",
		InputsDigest: "sha256:abc",
	}); rerr != nil {
		t.Fatalf("Patch failed: %v", rerr)
	}

	events, rerr := ReadAudit(doc.AuditLog)
	if rerr != nil {
		t.Fatalf("ReadAudit failed: %v", rerr)
	}
	if len(events) != 1 {
		t.Fatalf("got %d audit events, want 1", len(events))
	}
	ev := events[0]
	if ev.Kind != "doc.patch" || ev.Reason != "audit check" {
		t.Errorf("event = %+v", ev)
	}
	if ev.RevisionBefore != 0 || ev.RevisionAfter != 1 {
		t.Errorf("revisions = %d -> %d, want 0 -> 1", ev.RevisionBefore, ev.RevisionAfter)
	}
}

func TestReadAudit_MalformedLine(t *testing.T) {
	path := tempDoc(t, "audit.jsonl", `{"kind":"a.patch","run_id":"r"}`+"\nnot json\n")

	_, rerr := ReadAudit(path)
	if rerr == nil || rerr.Code != reserr.CodeInvalidJSONL {
		t.Fatalf("expected INVALID_JSONL, got %v", rerr)
	}
	if rerr.Details["line"] != 2 {
		t.Errorf("line = %v, want 2", rerr.Details["line"])
	}
}
