// Package watchdog force-fails runs whose current stage has exceeded its
// wall-clock budget. It is polled by an operator or cron, never scheduled
// from inside the core.
package watchdog

import (
	"fmt"
	"time"

	"meridian/internal/docstore"
	"meridian/internal/runfs"
	"meridian/internal/stage"
	"meridian/pkg/models"
	"meridian/pkg/reserr"
)

// stageTimeouts is the per-stage budget in seconds.
var stageTimeouts = map[models.Stage]int{
	models.StageInit:      600,
	models.StageWave1:     3600,
	models.StagePivot:     900,
	models.StageWave2:     3600,
	models.StageCitations: 1800,
	models.StageSummaries: 1800,
	models.StageSynthesis: 3600,
	models.StageReview:    1800,
}

// Timeout returns a stage's budget. finalize has none.
func Timeout(s models.Stage) (time.Duration, bool) {
	secs, ok := stageTimeouts[s]
	return time.Duration(secs) * time.Second, ok
}

// Report is the result of one watchdog check.
type Report struct {
	Stage     models.Stage     `json:"stage"`
	Elapsed   time.Duration    `json:"elapsed"`
	Budget    time.Duration    `json:"budget"`
	TimedOut  bool             `json:"timed_out"`
	RunStatus models.RunStatus `json:"run_status"`
}

// Check compares the manifest's stage clock against the budget. On timeout
// the run is force-failed and CHECKPOINT.md written; the failure is terminal
// for the run.
func Check(layout runfs.Layout, runID string, now time.Time) (*Report, *reserr.Error) {
	machine := stage.New(layout, runID)
	manifest, rerr := machine.ReadManifest()
	if rerr != nil {
		return nil, rerr
	}

	report := &Report{Stage: manifest.Stage, RunStatus: manifest.Status}
	if manifest.Status != models.RunRunning {
		return report, nil
	}
	budget, ok := Timeout(manifest.Stage)
	if !ok {
		return report, nil
	}
	report.Budget = budget
	report.Elapsed = now.Sub(manifest.StageStartedAt)
	if report.Elapsed <= budget {
		return report, nil
	}

	report.TimedOut = true
	message := fmt.Sprintf("stage %s ran %s, budget %s",
		manifest.Stage, report.Elapsed.Round(time.Second), budget)
	failed, ferr := machine.ForceFail("timeout", message)
	if ferr != nil {
		return nil, ferr
	}
	report.RunStatus = failed.Status

	if werr := writeCheckpoint(layout, failed, report, now); werr != nil {
		return nil, werr
	}
	return report, nil
}

// writeCheckpoint leaves a human-readable note describing where the run
// died and what an operator can do next.
func writeCheckpoint(layout runfs.Layout, manifest *models.Manifest, report *Report, now time.Time) *reserr.Error {
	body := fmt.Sprintf(`# Run checkpoint: %s

The watchdog force-failed this run at %s.

- stage: %s
- stage started: %s
- elapsed: %s
- budget: %s

The run status is now %q and will not resume automatically. Inspect
logs/audit.jsonl for the last committed operations. Completed artifacts
under this run root remain valid; a new run can reuse them as inputs.
`,
		manifest.RunID,
		now.UTC().Format(time.RFC3339),
		manifest.Stage,
		manifest.StageStartedAt.UTC().Format(time.RFC3339),
		report.Elapsed.Round(time.Second),
		report.Budget,
		manifest.Status,
	)
	return docstore.WriteBytes(layout.Checkpoint(), []byte(body))
}
