package main

import (
	"os"
	"path/filepath"
	"testing"

	"meridian/internal/config"
	"meridian/internal/runindex"
	"meridian/internal/runinit"
)

func withGlobals(t *testing.T, dir string) {
	t.Helper()
	oldRunsDir, oldCfg := runsDir, cfg
	runsDir = dir
	cfg = &config.Config{DefaultMode: "standard"}
	t.Cleanup(func() {
		runsDir = oldRunsDir
		cfg = oldCfg
	})
}

func TestIndexRun_RecordsRun(t *testing.T) {
	dir := t.TempDir()
	withGlobals(t, dir)

	indexRun(&runinit.Result{
		RunID:   "run-x",
		Root:    filepath.Join(dir, "run-x"),
		Created: true,
	})

	db, err := runindex.Open(runindex.DefaultPath(dir))
	if err != nil {
		t.Fatalf("opening index: %v", err)
	}
	defer db.Close()
	run, err := db.Get("run-x")
	if err != nil {
		t.Fatalf("Get(run-x) error: %v", err)
	}
	if run.Mode != "standard" {
		t.Errorf("mode = %s, want the config default", run.Mode)
	}
}

func TestIndexRun_IndexFailureIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	// A regular file where the runs directory should be makes the index
	// unopenable; init still succeeds and reindex recovers the row later.
	blocked := filepath.Join(dir, "runs")
	if err := os.WriteFile(blocked, []byte("x"), 0o644); err != nil {
		t.Fatalf("writing blocker: %v", err)
	}
	withGlobals(t, filepath.Join(blocked, "nested"))

	indexRun(&runinit.Result{
		RunID:   "run-x",
		Root:    filepath.Join(dir, "run-x"),
		Created: true,
	})
}
