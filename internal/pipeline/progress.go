package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ProgressTimestampFormat renders Year-MonthName-Day-Hour:Minute:Second
const ProgressTimestampFormat = "2006-Jan-02-15:04:05"

// ProgressLog is an append-only record of stage transitions
type ProgressLog interface {
	Append(message string) error
}

// FormatProgressLine renders one progress entry including the trailing newline
func FormatProgressLine(ts time.Time, message string) string {
	return ts.Format(ProgressTimestampFormat) + " : " + message + "\n"
}

// FileProgressLog appends timestamped lines to a text file.
// Every line goes out in a single write on an O_APPEND descriptor.
type FileProgressLog struct {
	mu   sync.Mutex
	file *os.File
	now  func() time.Time
}

// OpenFileProgressLog opens (or creates) the log file for appending
func OpenFileProgressLog(path string) (*FileProgressLog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create progress log directory %s: %w", dir, err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open progress log %s: %w", path, err)
	}

	return &FileProgressLog{file: file, now: time.Now}, nil
}

// SetClock replaces the timestamp source
func (l *FileProgressLog) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Append writes one entry
func (l *FileProgressLog) Append(message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return fmt.Errorf("progress log is closed")
	}
	if _, err := l.file.WriteString(FormatProgressLine(l.now(), message)); err != nil {
		return fmt.Errorf("failed to append progress entry: %w", err)
	}
	return nil
}

// Close closes the underlying file
func (l *FileProgressLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// MemoryProgressLog keeps entries in memory
type MemoryProgressLog struct {
	mu      sync.Mutex
	entries []string
}

// NewMemoryProgressLog creates an empty in-memory log
func NewMemoryProgressLog() *MemoryProgressLog {
	return &MemoryProgressLog{}
}

// Append records one message
func (l *MemoryProgressLog) Append(message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, message)
	return nil
}

// Entries returns a copy of the recorded messages
func (l *MemoryProgressLog) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}
