package runindex

import (
	"path/filepath"
	"testing"
	"time"

	"meridian/pkg/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(DefaultPath(t.TempDir()))
	if err != nil {
		t.Fatalf("opening index: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrating index: %v", err)
	}
	return db
}

func testRun(id string, createdAt time.Time) Run {
	return Run{
		ID:        id,
		Root:      filepath.Join("/runs", id),
		Mode:      models.ModeStandard,
		Status:    models.RunRunning,
		Stage:     models.StageInit,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := testDB(t)
	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate() error: %v", err)
	}
}

func TestRecordAndGet(t *testing.T) {
	db := testDB(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := db.Record(testRun("run-a", created)); err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	got, err := db.Get("run-a")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Stage != models.StageInit || got.Status != models.RunRunning {
		t.Errorf("got %+v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, created)
	}

	if _, err := db.Get("run-missing"); err == nil {
		t.Error("Get() for an unknown run should fail")
	}
}

func TestRecord_UpsertRefreshes(t *testing.T) {
	db := testDB(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run := testRun("run-a", created)
	if err := db.Record(run); err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	run.Status = models.RunCompleted
	run.Stage = models.StageFinalize
	run.UpdatedAt = created.Add(time.Hour)
	if err := db.Record(run); err != nil {
		t.Fatalf("re-Record() error: %v", err)
	}

	got, err := db.Get("run-a")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Status != models.RunCompleted || got.Stage != models.StageFinalize {
		t.Errorf("got %+v, want refreshed row", got)
	}
}

func TestTouch(t *testing.T) {
	db := testDB(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := db.Record(testRun("run-a", created)); err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if err := db.Touch("run-a", models.RunRunning, models.StageWave1, created.Add(time.Minute)); err != nil {
		t.Fatalf("Touch() error: %v", err)
	}
	got, _ := db.Get("run-a")
	if got.Stage != models.StageWave1 {
		t.Errorf("stage = %s, want wave1", got.Stage)
	}

	if err := db.Touch("run-missing", models.RunRunning, models.StageWave1, created); err == nil {
		t.Error("Touch() on an unindexed run should fail")
	}
}

func TestList(t *testing.T) {
	db := testDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-old", "run-mid", "run-new"} {
		if err := db.Record(testRun(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("Record(%s) error: %v", id, err)
		}
	}
	done := testRun("run-done", base.Add(3*time.Hour))
	done.Status = models.RunCompleted
	if err := db.Record(done); err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	all, err := db.List("", 0)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(all) != 4 || all[0].ID != "run-done" {
		t.Errorf("List() = %d rows, first %s; want newest first", len(all), all[0].ID)
	}

	running, err := db.List(models.RunRunning, 2)
	if err != nil {
		t.Fatalf("List(running) error: %v", err)
	}
	if len(running) != 2 || running[0].ID != "run-new" {
		t.Errorf("filtered list = %+v", running)
	}
}

func TestPurgeOlderThan(t *testing.T) {
	db := testDB(t)
	old := time.Now().Add(-48 * time.Hour)

	stale := testRun("run-stale", old)
	stale.Status = models.RunCompleted
	if err := db.Record(stale); err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	// Running runs are never purged, however old.
	if err := db.Record(testRun("run-live", old)); err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	n, err := db.PurgeOlderThan(24 * time.Hour)
	if err != nil {
		t.Fatalf("PurgeOlderThan() error: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d rows, want 1", n)
	}
	if _, err := db.Get("run-live"); err != nil {
		t.Error("running run was purged")
	}
}
