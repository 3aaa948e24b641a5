package snapshot

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/canvaswatch/canvaswatch/pkg/overrides"
)

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	s := NewStore(t.TempDir(), "1431941")
	snap := s.Load()
	if snap == nil || len(snap) != 0 {
		t.Fatalf("expected empty snapshot, got %#v", snap)
	}
}

func TestLoadCorruptFileReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, "1431941")
	if err := os.WriteFile(s.SnapshotPath(), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if snap := s.Load(); len(snap) != 0 {
		t.Fatalf("corrupt snapshot should read as empty, got %#v", snap)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "state"), "1431941")
	snap := overrides.Snapshot{
		"10": {overrides.Entry{"due_at": "2025-01-01", "unlock_at": nil, "lock_at": nil, "title": "", "base": true}},
		"20": {},
	}
	if err := s.Save(snap); err != nil {
		t.Fatal(err)
	}
	got := s.Load()
	if !reflect.DeepEqual(got, snap) {
		t.Fatalf("round trip mismatch:\nsaved %#v\ngot   %#v", snap, got)
	}
}

func TestSaveDeterministicBytes(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, "1")
	snap := overrides.Snapshot{
		"20": {overrides.Entry{"due_at": nil, "unlock_at": nil, "lock_at": nil, "title": "b", "base": false}},
		"10": {overrides.Entry{"due_at": "x", "unlock_at": nil, "lock_at": nil, "title": "a", "base": true}},
	}
	if err := s.Save(snap); err != nil {
		t.Fatal(err)
	}
	first, err := os.ReadFile(s.SnapshotPath())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(snap); err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(s.SnapshotPath())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("persisted snapshot bytes are not deterministic")
	}
}

func TestETagRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir(), "1")
	if got := s.LoadETag(); got != "" {
		t.Fatalf("expected empty etag, got %q", got)
	}
	if err := s.SaveETag(`W/"abc123"`); err != nil {
		t.Fatal(err)
	}
	if got := s.LoadETag(); got != `W/"abc123"` {
		t.Fatalf("etag round trip failed: %q", got)
	}
	// Empty etag must not clobber the stored one.
	if err := s.SaveETag(""); err != nil {
		t.Fatal(err)
	}
	if got := s.LoadETag(); got != `W/"abc123"` {
		t.Fatalf("empty etag clobbered store: %q", got)
	}
}
