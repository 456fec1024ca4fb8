package runinit

import (
	"bufio"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"meridian/internal/config"
	"meridian/internal/docstore"
	"meridian/internal/runfs"
	"meridian/pkg/models"
	"meridian/pkg/reserr"
)

func testConfig() *config.Config {
	return &config.Config{
		Enabled:              true,
		DefaultMode:          "standard",
		MaxWave1Perspectives: 5,
		MaxWave2Perspectives: 3,
		SummaryFileKB:        8,
		SummaryTotalKB:       64,
		MaxReviewIterations:  3,
		CitationTier:         "fetch",
	}
}

func initRun(t *testing.T, runsDir, id string) *Result {
	t.Helper()
	res, err := Init(Options{
		RunID:   id,
		RunsDir: runsDir,
		Config:  testConfig(),
		Now:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	return res
}

func TestInit_CreatesSkeleton(t *testing.T) {
	runsDir := t.TempDir()
	res := initRun(t, runsDir, "run-a")
	if !res.Created {
		t.Fatal("Created = false on first init")
	}

	layout := runfs.New(res.Root)
	for _, dir := range layout.Dirs() {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("missing run directory %s", dir)
		}
	}

	manifest, err := docstore.ReadDocument(layout.Manifest())
	if err != nil {
		t.Fatalf("reading manifest: %v", err)
	}
	if manifest["stage"] != "init" {
		t.Errorf("stage = %v, want init", manifest["stage"])
	}
	if manifest["status"] != "running" {
		t.Errorf("status = %v, want running", manifest["status"])
	}
	if manifest["revision"] != float64(0) {
		t.Errorf("revision = %v, want 0", manifest["revision"])
	}

	gates, err := docstore.ReadDocument(layout.Gates())
	if err != nil {
		t.Fatalf("reading gates: %v", err)
	}
	for _, id := range models.AllGates() {
		g := gates["gates"].(map[string]any)[string(id)].(map[string]any)
		if g["status"] != "not_run" {
			t.Errorf("gate %s status = %v, want not_run", id, g["status"])
		}
	}
}

func TestInit_Idempotent(t *testing.T) {
	runsDir := t.TempDir()
	first := initRun(t, runsDir, "run-a")
	layout := runfs.New(first.Root)
	before, rerr := docstore.ReadDocument(layout.Manifest())
	if rerr != nil {
		t.Fatalf("reading manifest: %v", rerr)
	}

	second := initRun(t, runsDir, "run-a")
	if second.Created {
		t.Fatal("Created = true on second init")
	}
	after, rerr := docstore.ReadDocument(layout.Manifest())
	if rerr != nil {
		t.Fatalf("re-reading manifest: %v", rerr)
	}
	if after["created_at"] != before["created_at"] {
		t.Error("second init must not rewrite the manifest")
	}
}

func TestInit_GeneratesRunID(t *testing.T) {
	res := initRun(t, t.TempDir(), "")
	if !strings.HasPrefix(res.RunID, "run_") {
		t.Errorf("generated id %q lacks run_ prefix", res.RunID)
	}
}

func TestInit_RejectsIllegalRunID(t *testing.T) {
	for _, id := range []string{"a/b", `a\b`, "a b"} {
		_, err := Init(Options{RunID: id, RunsDir: t.TempDir(), Config: testConfig()})
		if err == nil || err.Code != reserr.CodeInvalidArgs {
			t.Errorf("Init(%q) error = %v, want INVALID_ARGS", id, err)
		}
	}
}

func TestInit_AppendsLedger(t *testing.T) {
	runsDir := t.TempDir()
	initRun(t, runsDir, "run-a")
	initRun(t, runsDir, "run-b")
	initRun(t, runsDir, "run-a") // no-op, must not re-append

	f, err := os.Open(LedgerPath(runsDir))
	if err != nil {
		t.Fatalf("opening ledger: %v", err)
	}
	defer f.Close()

	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var entry LedgerEntry
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			t.Fatalf("malformed ledger line: %v", err)
		}
		ids = append(ids, entry.RunID)
	}
	if len(ids) != 2 || ids[0] != "run-a" || ids[1] != "run-b" {
		t.Errorf("ledger ids = %v, want [run-a run-b]", ids)
	}
}

func TestInit_WritesAuditEvent(t *testing.T) {
	res := initRun(t, t.TempDir(), "run-a")
	layout := runfs.New(res.Root)
	events, err := docstore.ReadAudit(layout.AuditLog())
	if err != nil {
		t.Fatalf("reading audit log: %v", err)
	}
	if len(events) != 1 || events[0].Kind != "run.create" {
		t.Fatalf("audit events = %+v, want single run.create", events)
	}
}

func TestInit_DeepModeDoublesWaves(t *testing.T) {
	res, err := Init(Options{
		RunID:   "run-deep",
		RunsDir: t.TempDir(),
		Mode:    models.ModeDeep,
		Config:  testConfig(),
	})
	if err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	manifest, rerr := docstore.ReadDocument(runfs.New(res.Root).Manifest())
	if rerr != nil {
		t.Fatalf("reading manifest: %v", rerr)
	}
	limits := manifest["limits"].(map[string]any)
	if limits["max_wave1_perspectives"] != float64(10) {
		t.Errorf("max_wave1_perspectives = %v, want 10", limits["max_wave1_perspectives"])
	}
}
