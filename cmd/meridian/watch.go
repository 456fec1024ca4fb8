package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"meridian/internal/docstore"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the run's audit log live",
	Long: `Print existing audit events, then follow logs/audit.jsonl and print
each new event as external workers and commands append to it. Stop
with Ctrl-C.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	layout, err := runLayout()
	if err != nil {
		return err
	}
	path := layout.AuditLog()

	f, ferr := os.Open(path)
	if ferr != nil {
		return fmt.Errorf("open audit log: %w", ferr)
	}
	defer f.Close()

	offset, perr := printFrom(f, 0)
	if perr != nil {
		return perr
	}

	watcher, werr := fsnotify.NewWatcher()
	if werr != nil {
		return fmt.Errorf("create watcher: %w", werr)
	}
	defer watcher.Close()
	if err := watcher.Add(layout.LogsDir()); err != nil {
		return fmt.Errorf("watch logs directory: %w", err)
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != path || !event.Has(fsnotify.Write) {
				continue
			}
			offset, perr = printFrom(f, offset)
			if perr != nil {
				return perr
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch error: %v\n", werr)
		}
	}
}

// printFrom prints complete audit lines starting at offset and returns the
// new offset. A partial trailing line is left for the next write event.
func printFrom(f *os.File, offset int64) (int64, error) {
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return offset, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return offset, err
	}

	consumed := int64(0)
	start := 0
	for i, b := range data {
		if b != '\n' {
			continue
		}
		line := data[start : i+1]
		printAuditLine(line)
		start = i + 1
		consumed = int64(start)
	}
	return offset + consumed, nil
}

func printAuditLine(line []byte) {
	var ev docstore.AuditEvent
	if err := json.Unmarshal(line, &ev); err != nil {
		fmt.Printf("  (malformed) %s", line)
		return
	}
	fmt.Printf("%s  %-18s %s", ev.At.Local().Format(time.TimeOnly), ev.Kind, ev.Reason)
	if ev.RevisionAfter > 0 {
		fmt.Printf(" (rev %d -> %d)", ev.RevisionBefore, ev.RevisionAfter)
	}
	fmt.Println()
}
