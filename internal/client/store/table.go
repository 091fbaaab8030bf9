package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Table is the durable local key-value table underneath the Store.
// Each key holds one independently encoded JSON value.
type Table interface {
	// Load returns the raw bytes stored under key, and whether a record exists.
	Load(key string) ([]byte, bool)
	// Store persists raw under key, overwriting any previous record.
	Store(key string, raw []byte) error
}

// FileTable keeps one file per key inside a data directory. Writes go
// through a temp file and rename so a crash never leaves a half-written
// record behind.
type FileTable struct {
	dir string
	mu  sync.Mutex
}

// NewFileTable creates the data directory if needed and returns a FileTable
// rooted at it.
func NewFileTable(dir string) (*FileTable, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileTable{dir: dir}, nil
}

func (t *FileTable) path(key string) string {
	return filepath.Join(t.dir, key+".json")
}

// Load reads the record file for key. A missing or unreadable file reports
// no record.
func (t *FileTable) Load(key string) ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	raw, err := os.ReadFile(t.path(key))
	if err != nil {
		return nil, false
	}
	return raw, true
}

// Store writes raw to a temp file and renames it over the record file.
func (t *FileTable) Store(key string, raw []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	tmp := t.path(key) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write record %s: %w", key, err)
	}
	if err := os.Rename(tmp, t.path(key)); err != nil {
		return fmt.Errorf("rename record %s: %w", key, err)
	}
	return nil
}

// MemTable is an in-memory Table for tests.
type MemTable struct {
	mu      sync.Mutex
	records map[string][]byte
}

// NewMemTable returns an empty MemTable.
func NewMemTable() *MemTable {
	return &MemTable{records: make(map[string][]byte)}
}

// Load returns a copy of the record stored under key, if any, so callers
// can never corrupt the table through the returned slice.
func (t *MemTable) Load(key string) ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	raw, ok := t.records[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), raw...), true
}

// Store overwrites the record under key.
func (t *MemTable) Store(key string, raw []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records[key] = append([]byte(nil), raw...)
	return nil
}
