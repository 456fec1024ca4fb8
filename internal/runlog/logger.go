// Package runlog provides the per-run debug logger. It wraps file-based
// logging with thread-safe access; a logger with no path is a no-op.
package runlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger writes timestamped debug lines to a run's logs/debug.log.
type Logger struct {
	mu   sync.Mutex
	file *os.File
}

// New creates a logger writing to the specified path. If the path is empty,
// returns a no-op logger. Creates parent directories if they don't exist.
func New(logPath string) (*Logger, error) {
	if logPath == "" {
		return &Logger{}, nil
	}
	dir := filepath.Dir(logPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &Logger{file: f}, nil
}

// Log writes a formatted message with a timestamp prefix.
func (l *Logger) Log(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return
	}
	ts := time.Now().UTC().Format(time.RFC3339)
	fmt.Fprintf(l.file, "[%s] %s\n", ts, fmt.Sprintf(format, args...))
}

// Close closes the underlying file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
