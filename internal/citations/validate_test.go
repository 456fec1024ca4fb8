package citations

import (
	"os"
	"path/filepath"
	"testing"

	"meridian/internal/runfs"
	"meridian/pkg/models"
)

func citationsLayout(t *testing.T) runfs.Layout {
	t.Helper()
	layout := runfs.New(filepath.Join(t.TempDir(), "run-c"))
	for _, dir := range layout.Dirs() {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	return layout
}

func candidate(raw, perspective string) Candidate {
	return Candidate{URL: raw, FoundBy: models.FoundBy{Wave: 1, Perspective: perspective, Line: 10}}
}

func TestRun_CollapsesVariants(t *testing.T) {
	p := &Pipeline{Layout: citationsLayout(t), RunID: "run-c", Offline: true,
		Fixtures: map[string]Fixture{
			"https://ex.com/a": {Status: models.CitationValid, HTTPStatus: 200, Title: "A"},
		},
	}
	outcome, err := p.Run([]Candidate{
		candidate("https://EX.com/a/?utm_source=x", "p-1"),
		candidate("https://ex.com/a", "p-2"),
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if outcome.Extracted != 2 || outcome.Distinct != 1 {
		t.Fatalf("extracted/distinct = %d/%d, want 2/1", outcome.Extracted, outcome.Distinct)
	}
	rec := outcome.Records[0]
	if rec.Status != models.CitationValid {
		t.Errorf("status = %s, want valid", rec.Status)
	}
	if len(rec.FoundBy) != 2 {
		t.Errorf("found_by has %d entries, want both variants", len(rec.FoundBy))
	}
	if len(outcome.Items) != 2 {
		t.Errorf("url map has %d items, want one per original", len(outcome.Items))
	}
	if outcome.Items[0].CID != outcome.Items[1].CID {
		t.Error("variants of one URL must share a cid")
	}
}

func TestRun_CredentialURLNeverValid(t *testing.T) {
	p := &Pipeline{Layout: citationsLayout(t), RunID: "run-c", Offline: true,
		Fixtures: map[string]Fixture{
			"https://ex.com/a": {Status: models.CitationValid},
		},
	}
	outcome, err := p.Run([]Candidate{candidate("https://user:pw@ex.com/a", "p-1")})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	rec := outcome.Records[0]
	if rec.Status != models.CitationInvalid {
		t.Errorf("status = %s, want invalid regardless of fixture", rec.Status)
	}
	if !rec.Redacted {
		t.Error("credential URL not marked redacted")
	}
	if rec.URL != "https://ex.com/a" {
		t.Errorf("persisted url %q still carries credentials", rec.URL)
	}
}

func TestRun_CleanVariantOutranksTaintedSibling(t *testing.T) {
	p := &Pipeline{Layout: citationsLayout(t), RunID: "run-c", Offline: true,
		Fixtures: map[string]Fixture{
			"https://ex.com/a": {Status: models.CitationValid, HTTPStatus: 200},
		},
	}
	outcome, err := p.Run([]Candidate{
		candidate("https://user:pw@ex.com/a", "p-1"),
		candidate("https://ex.com/a", "p-2"),
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if outcome.Distinct != 1 {
		t.Fatalf("distinct = %d, want the variants collapsed", outcome.Distinct)
	}
	rec := outcome.Records[0]
	if rec.Status != models.CitationValid {
		t.Errorf("status = %s, want valid via the clean variant", rec.Status)
	}
	if !rec.Redacted {
		t.Error("record not marked redacted despite the credential variant")
	}
	if len(rec.FoundBy) != 2 {
		t.Errorf("found_by has %d entries, want both variants", len(rec.FoundBy))
	}
}

func TestRun_UnparsableIsInvalid(t *testing.T) {
	p := &Pipeline{Layout: citationsLayout(t), RunID: "run-c", Offline: true}
	outcome, err := p.Run([]Candidate{candidate("ftp://ex.com/a", "p-1")})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if outcome.Records[0].Status != models.CitationInvalid {
		t.Errorf("status = %s, want invalid", outcome.Records[0].Status)
	}
}

func TestRun_OfflineWithoutFixtureIsInvalid(t *testing.T) {
	p := &Pipeline{Layout: citationsLayout(t), RunID: "run-c", Offline: true}
	outcome, err := p.Run([]Candidate{candidate("https://ex.com/a", "p-1")})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if outcome.Records[0].Status != models.CitationInvalid {
		t.Errorf("status = %s, want invalid with no fixture", outcome.Records[0].Status)
	}
}

func TestRun_OnlinePrivateHostInvalid(t *testing.T) {
	p := &Pipeline{Layout: citationsLayout(t), RunID: "run-c", Tier: "fetch"}
	outcome, err := p.Run([]Candidate{
		candidate("https://192.168.1.1/admin", "p-1"),
		candidate("https://ex.com/a", "p-1"),
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	byURL := map[string]models.CitationRecord{}
	for _, rec := range outcome.Records {
		byURL[rec.URL] = rec
	}
	if byURL["https://192.168.1.1/admin"].Status != models.CitationInvalid {
		t.Error("private host not invalid")
	}
	if byURL["https://ex.com/a"].Status != models.CitationBlocked {
		t.Error("public host should be blocked pending a real fetch")
	}
}

func TestRun_RestrictedStripsAllParams(t *testing.T) {
	p := &Pipeline{Layout: citationsLayout(t), RunID: "run-c", Offline: true, StripAllParams: true}
	outcome, err := p.Run([]Candidate{candidate("https://ex.com/a?q=secret+search", "p-1")})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if outcome.Items[0].Original != "https://ex.com/a" {
		t.Errorf("persisted original = %q, want params stripped", outcome.Items[0].Original)
	}
	if !outcome.Records[0].Redacted {
		t.Error("record not marked redacted")
	}
}

func TestLoadFixtures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	content := `https://ex.com/a:
  status: valid
  http_status: 200
  title: Example A
https://ex.com/b:
  status: paywalled
  http_status: 402
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixtures: %v", err)
	}
	fixtures, ferr := LoadFixtures(path)
	if ferr != nil {
		t.Fatalf("LoadFixtures() error: %v", ferr)
	}
	if fixtures["https://ex.com/a"].Title != "Example A" {
		t.Errorf("fixture a = %+v", fixtures["https://ex.com/a"])
	}
	if fixtures["https://ex.com/b"].Status != models.CitationPaywalled {
		t.Errorf("fixture b status = %s", fixtures["https://ex.com/b"].Status)
	}
}

func TestWriteArtifacts(t *testing.T) {
	layout := citationsLayout(t)
	p := &Pipeline{Layout: layout, RunID: "run-c", Offline: true,
		Fixtures: map[string]Fixture{
			"https://ex.com/a": {Status: models.CitationValid, HTTPStatus: 200},
		},
	}
	outcome, err := p.Run([]Candidate{
		candidate("https://EX.com/a/", "p-1"),
		candidate("https://ex.com/missing", "p-1"),
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if werr := p.WriteArtifacts(outcome); werr != nil {
		t.Fatalf("WriteArtifacts() error: %v", werr)
	}

	for _, path := range []string{
		layout.ExtractedURLs(), layout.NormalizedURLs(), layout.URLMap(),
		layout.FoundBy(), layout.Citations(), layout.CitationReport(),
	} {
		if _, serr := os.Stat(path); serr != nil {
			t.Errorf("missing artifact %s", path)
		}
	}

	records, rerr := ReadRecords(layout.Citations())
	if rerr != nil {
		t.Fatalf("ReadRecords() error: %v", rerr)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	valid := ValidatedCIDs(records)
	if len(valid) != 1 {
		t.Errorf("ValidatedCIDs = %v, want only the valid record", valid)
	}
}
