// Package snapshot persists the last reported canonical snapshot and the
// conditional-GET ETag for one course. The load side never fails: a missing
// or unreadable snapshot reads as empty, which makes the first successful
// cycle report everything as newly added.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/canvaswatch/canvaswatch/pkg/overrides"
)

type Store struct {
	dir      string
	courseID string
}

func NewStore(dir, courseID string) *Store {
	return &Store{dir: dir, courseID: courseID}
}

func (s *Store) SnapshotPath() string {
	return filepath.Join(s.dir, fmt.Sprintf("quiz_assignment_overrides_%s.json", s.courseID))
}

func (s *Store) etagPath() string {
	return filepath.Join(s.dir, fmt.Sprintf("quiz_assignment_overrides_%s.etag", s.courseID))
}

// Load returns the stored snapshot, or an empty one when the file is
// missing or corrupt. It never reports an error to the caller.
func (s *Store) Load() overrides.Snapshot {
	data, err := os.ReadFile(s.SnapshotPath())
	if err != nil {
		return overrides.Snapshot{}
	}
	var snap overrides.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return overrides.Snapshot{}
	}
	if snap == nil {
		snap = overrides.Snapshot{}
	}
	return snap
}

// Save overwrites the stored snapshot. The JSON is indented and map keys
// marshal in sorted order, so the persisted artifact itself diffs cleanly.
// Write goes through a temp file plus rename so a crash mid-write cannot
// leave a half-written snapshot behind.
func (s *Store) Save(snap overrides.Snapshot) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(s.SnapshotPath(), append(data, '\n'))
}

// LoadETag returns the stored ETag, or "" when none exists.
func (s *Store) LoadETag() string {
	data, err := os.ReadFile(s.etagPath())
	if err != nil {
		return ""
	}
	return string(data)
}

// SaveETag persists the ETag for the next conditional GET. An empty ETag is
// a no-op so a response without one does not clobber the stored value.
func (s *Store) SaveETag(etag string) error {
	if etag == "" {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	return writeAtomic(s.etagPath(), []byte(etag))
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
