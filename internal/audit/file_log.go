// internal/audit/file_log.go
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/canva-seat-ledger/internal/models"
)

const maxLogLine = 1 << 20

// FileLog is an append-only JSON-lines file, one audit entry per line.
type FileLog struct {
	mu   sync.Mutex
	path string
	file *os.File
}

func OpenFileLog(path string) (*FileLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log %s: %w", path, err)
	}

	l := &FileLog{path: path, file: file}
	if err := l.terminateLastLine(); err != nil {
		file.Close()
		return nil, err
	}
	return l, nil
}

// terminateLastLine makes sure a torn write from an earlier crash cannot
// merge with the next entry.
func (l *FileLog) terminateLastLine() error {
	info, err := l.file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat audit log: %w", err)
	}
	if info.Size() == 0 {
		return nil
	}

	last := make([]byte, 1)
	if _, err := l.file.ReadAt(last, info.Size()-1); err != nil {
		return fmt.Errorf("failed to read audit log tail: %w", err)
	}
	if last[0] == '\n' {
		return nil
	}
	if _, err := l.file.Write([]byte{'\n'}); err != nil {
		return fmt.Errorf("failed to terminate audit log: %w", err)
	}
	return nil
}

// ReadAll returns every readable entry in file order. Lines that do not
// decode are logged and skipped.
func (l *FileLog) ReadAll() ([]models.AuditEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind audit log: %w", err)
	}

	var entries []models.AuditEntry
	scanner := bufio.NewScanner(l.file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLogLine)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var e models.AuditEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"path": l.path,
				"line": line,
			}).Warn("Skipping unreadable audit log line")
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}

	return entries, nil
}

// Append writes one entry and syncs it to disk before returning.
func (l *FileLog) Append(e models.AuditEntry) error {
	e.RevertedByID = ""
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode audit entry: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync audit log: %w", err)
	}
	return nil
}

func (l *FileLog) Path() string {
	return l.path
}

func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
