// Package runlog keeps the shared alignment log: one JSON object whose keys
// are tool names. Each tool replaces only its own section.
package runlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wsmith-bit/itstitanium/models"
)

// Section keys used by the commands.
const (
	Enforce    = "enforce"
	HeadAssets = "head-assets"
	Inject     = "inject"
)

// ErrUnreadable marks a log file that exists but could not be read or parsed.
// Such a log is never overwritten.
var ErrUnreadable = errors.New("run log unreadable")

// Log is the in-memory copy of the log file. It is loaded once before a batch
// and flushed once after.
type Log struct {
	path     string
	mu       sync.Mutex
	sections map[string]json.RawMessage
	broken   bool
}

// Load reads the log at path. A missing log starts empty. An unreadable or
// unparsable one also starts empty but Load returns an ErrUnreadable error
// and Save refuses to replace the file.
func Load(path string) (*Log, error) {
	l := &Log{path: path, sections: map[string]json.RawMessage{}}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return l, nil
	}
	if err == nil {
		var sections map[string]json.RawMessage
		if err = json.Unmarshal(data, &sections); err == nil {
			if sections != nil {
				l.sections = sections
			}
			return l, nil
		}
	}
	l.broken = true
	return l, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
}

// Put replaces the named section.
func (l *Log) Put(name string, rec models.RunRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode %s record: %w", name, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sections[name] = raw
	return nil
}

// Get decodes the named section.
func (l *Log) Get(name string) (models.RunRecord, bool) {
	l.mu.Lock()
	raw, ok := l.sections[name]
	l.mu.Unlock()
	if !ok {
		return models.RunRecord{}, false
	}
	var rec models.RunRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return models.RunRecord{}, false
	}
	return rec, true
}

// Save writes every section back with two-space indentation.
func (l *Log) Save() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.broken {
		return fmt.Errorf("%w: refusing to overwrite %s", ErrUnreadable, l.path)
	}
	data, err := json.MarshalIndent(l.sections, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run log: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	if err := os.WriteFile(l.path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write run log: %w", err)
	}
	return nil
}

// FormatDuration renders milliseconds as "123ms" or "1.23s".
func FormatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.2fs", float64(ms)/1000)
}
