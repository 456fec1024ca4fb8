package runindex

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"meridian/internal/runfs"
	"meridian/pkg/models"
)

// ledgerLine mirrors one runs-ledger.jsonl entry.
type ledgerLine struct {
	RunID     string         `json:"run_id"`
	Root      string         `json:"root"`
	Mode      models.RunMode `json:"mode"`
	CreatedAt time.Time      `json:"created_at"`
}

// Rebuild drops every indexed row and reloads the index from the runs
// ledger, reading current status and stage from each run's manifest.
// Runs whose root no longer exists are skipped. Returns the number of
// runs indexed.
func (db *DB) Rebuild(ledgerPath string) (int, error) {
	entries, err := readLedger(ledgerPath)
	if err != nil {
		return 0, err
	}

	db.mu.Lock()
	_, err = db.conn.Exec("DELETE FROM runs")
	db.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("clear run index: %w", err)
	}

	indexed := 0
	for _, entry := range entries {
		run := Run{
			ID:        entry.RunID,
			Root:      entry.Root,
			Mode:      entry.Mode,
			Status:    models.RunRunning,
			Stage:     models.StageInit,
			CreatedAt: entry.CreatedAt,
			UpdatedAt: entry.CreatedAt,
		}
		manifest, merr := readManifest(entry.Root)
		if merr != nil {
			if os.IsNotExist(merr) {
				continue
			}
			return indexed, fmt.Errorf("read manifest for %s: %w", entry.RunID, merr)
		}
		run.Status = manifest.Status
		run.Stage = manifest.Stage
		run.UpdatedAt = manifest.StageStartedAt

		if err := db.Record(run); err != nil {
			return indexed, err
		}
		indexed++
	}
	return indexed, nil
}

// readLedger parses runs-ledger.jsonl. A missing ledger is an empty one.
func readLedger(path string) ([]ledgerLine, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open runs ledger: %w", err)
	}
	defer f.Close()

	var entries []ledgerLine
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var entry ledgerLine
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, fmt.Errorf("runs ledger line %d: %w", line, err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan runs ledger: %w", err)
	}
	return entries, nil
}

func readManifest(root string) (*models.Manifest, error) {
	data, err := os.ReadFile(runfs.New(root).Manifest())
	if err != nil {
		return nil, err
	}
	var manifest models.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, err
	}
	return &manifest, nil
}
