package docstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"meridian/pkg/reserr"
)

func tempDoc(t *testing.T, name string, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestWriteJSON_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "doc.json")

	if err := WriteJSON(path, Document{"run_id": "run_1", "revision": float64(0)}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	doc, rerr := ReadDocument(path)
	if rerr != nil {
		t.Fatalf("ReadDocument failed: %v", rerr)
	}
	if doc["run_id"] != "run_1" {
		t.Errorf("run_id = %v, want run_1", doc["run_id"])
	}
}

func TestWriteJSON_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")
	if err := WriteJSON(path, Document{"revision": float64(0)}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestReadDocument_NotFound(t *testing.T) {
	_, rerr := ReadDocument(filepath.Join(t.TempDir(), "missing.json"))
	if rerr == nil {
		t.Fatal("expected error for missing document")
	}
	if rerr.Code != reserr.CodeNotFound {
		t.Errorf("code = %s, want NOT_FOUND", rerr.Code)
	}
}

func TestReadDocument_InvalidJSON(t *testing.T) {
	path := tempDoc(t, "bad.json", "{not json")
	_, rerr := ReadDocument(path)
	if rerr == nil {
		t.Fatal("expected error for malformed document")
	}
	if rerr.Code != reserr.CodeInvalidJSON {
		t.Errorf("code = %s, want INVALID_JSON", rerr.Code)
	}
}

func TestRevision(t *testing.T) {
	tests := []struct {
		name    string
		doc     Document
		want    int
		wantErr bool
	}{
		{"present", Document{"revision": float64(3)}, 3, false},
		{"zero", Document{"revision": float64(0)}, 0, false},
		{"missing", Document{}, 0, true},
		{"wrong type", Document{"revision": "3"}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rerr := Revision(tt.doc)
			if tt.wantErr {
				if rerr == nil {
					t.Fatal("expected error")
				}
				return
			}
			if rerr != nil {
				t.Fatalf("Revision failed: %v", rerr)
			}
			if got != tt.want {
				t.Errorf("Revision = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDigest_DeterministicAndOrderSensitive(t *testing.T) {
	a := Digest("wave1", "pivot", []string{"x"})
	b := Digest("wave1", "pivot", []string{"x"})
	c := Digest("pivot", "wave1", []string{"x"})

	if a != b {
		t.Errorf("same inputs produced different digests: %s vs %s", a, b)
	}
	if a == c {
		t.Error("reordered inputs produced the same digest")
	}
	if !strings.HasPrefix(a, "sha256:") {
		t.Errorf("digest %q lacks sha256: prefix", a)
	}
}
