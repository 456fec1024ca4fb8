package watchdog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"meridian/internal/config"
	"meridian/internal/runfs"
	"meridian/internal/runinit"
	"meridian/internal/stage"
	"meridian/pkg/models"
)

var runStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seedRun(t *testing.T) runfs.Layout {
	t.Helper()
	runsDir := t.TempDir()
	res, err := runinit.Init(runinit.Options{
		RunID:   "run-wd",
		RunsDir: runsDir,
		Config: &config.Config{
			Enabled:              true,
			DefaultMode:          "standard",
			MaxWave1Perspectives: 5,
			MaxWave2Perspectives: 3,
			SummaryFileKB:        8,
			SummaryTotalKB:       64,
			MaxReviewIterations:  3,
			CitationTier:         "fetch",
		},
		Now: runStart,
	})
	if err != nil {
		t.Fatalf("seeding run: %v", err)
	}
	return runfs.New(filepath.Join(runsDir, res.RunID))
}

func TestTimeout(t *testing.T) {
	budget, ok := Timeout(models.StageInit)
	if !ok || budget != 10*time.Minute {
		t.Errorf("init budget = %v, %v", budget, ok)
	}
	if _, ok := Timeout(models.StageFinalize); ok {
		t.Error("finalize should have no budget")
	}
}

func TestCheck_WithinBudget(t *testing.T) {
	layout := seedRun(t)
	report, err := Check(layout, "run-wd", runStart.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if report.TimedOut {
		t.Error("timed out within budget")
	}
	if report.RunStatus != models.RunRunning {
		t.Errorf("run status = %s, want running", report.RunStatus)
	}
	if _, serr := os.Stat(layout.Checkpoint()); !os.IsNotExist(serr) {
		t.Error("checkpoint written without a timeout")
	}
}

func TestCheck_TimeoutForceFails(t *testing.T) {
	layout := seedRun(t)
	report, err := Check(layout, "run-wd", runStart.Add(11*time.Minute))
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if !report.TimedOut {
		t.Fatal("expected a timeout past the init budget")
	}
	if report.RunStatus != models.RunFailed {
		t.Errorf("run status = %s, want failed", report.RunStatus)
	}

	manifest, rerr := stage.New(layout, "run-wd").ReadManifest()
	if rerr != nil {
		t.Fatalf("ReadManifest() error: %v", rerr)
	}
	if manifest.Status != models.RunFailed {
		t.Errorf("manifest status = %s", manifest.Status)
	}
	if len(manifest.Failures) != 1 || manifest.Failures[0].Kind != "timeout" {
		t.Errorf("failures = %+v", manifest.Failures)
	}

	data, ferr := os.ReadFile(layout.Checkpoint())
	if ferr != nil {
		t.Fatalf("reading checkpoint: %v", ferr)
	}
	if !strings.Contains(string(data), "stage: init") {
		t.Errorf("checkpoint does not name the stage:\n%s", data)
	}
}

func TestCheck_TerminalRunIsNoOp(t *testing.T) {
	layout := seedRun(t)
	if _, err := stage.New(layout, "run-wd").ForceFail("operator", "stopped manually"); err != nil {
		t.Fatalf("ForceFail() error: %v", err)
	}
	report, err := Check(layout, "run-wd", runStart.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if report.TimedOut {
		t.Error("terminal run must not time out")
	}
	if report.RunStatus != models.RunFailed {
		t.Errorf("run status = %s", report.RunStatus)
	}
}
