// Package watch runs one poll cycle end to end: fetch, index, diff against
// the stored snapshot, render, notify, and only then commit the new
// snapshot. The cycle is synchronous; the caller serializes cycles (the
// snapshot store has no guard against concurrent writers).
package watch

import (
	"context"
	"fmt"

	"github.com/canvaswatch/canvaswatch/pkg/canvas"
	"github.com/canvaswatch/canvaswatch/pkg/notify"
	"github.com/canvaswatch/canvaswatch/pkg/overrides"
	"github.com/canvaswatch/canvaswatch/pkg/storage"
)

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// nopLogger silently discards all messages.
type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Fetcher is the fetch collaborator (canvas.Client in production).
type Fetcher interface {
	FetchOverrides(ctx context.Context, etag string) (*canvas.FetchResult, error)
}

// StateStore is the snapshot store contract: Load never fails (empty on
// absence), Save overwrites.
type StateStore interface {
	Load() overrides.Snapshot
	Save(overrides.Snapshot) error
	LoadETag() string
	SaveETag(string) error
}

// Config holds everything a Watcher needs for a cycle.
type Config struct {
	Fetcher  Fetcher
	Store    StateStore
	History  *storage.DB     // optional
	Notifier notify.Notifier // optional; use notify.Multi for several transports
	CourseID string
	Log      Logger // optional; nil = no logging
}

type Watcher struct {
	cfg Config
	log Logger
}

func New(cfg Config) *Watcher {
	log := cfg.Log
	if log == nil {
		log = nopLogger{}
	}
	return &Watcher{cfg: cfg, log: log}
}

// CycleResult holds the outcome of a single poll cycle.
type CycleResult struct {
	NotModified bool
	Skipped     int // payload items without a quiz id
	ChangeSet   overrides.ChangeSet
	Report      string
}

// RunCycle executes one poll cycle. The stored snapshot is replaced only
// after a non-empty report has been rendered and handed to the transports,
// so a crash anywhere earlier never loses the previous state. A snapshot
// save failure is returned, but by then the notification is already out.
func (w *Watcher) RunCycle(ctx context.Context) (*CycleResult, error) {
	res, err := w.cfg.Fetcher.FetchOverrides(ctx, w.cfg.Store.LoadETag())
	if err != nil {
		return nil, fmt.Errorf("fetching overrides: %w", err)
	}
	if res.NotModified {
		w.log.Debugf("course %s: not modified since last poll", w.cfg.CourseID)
		return &CycleResult{NotModified: true}, nil
	}

	newSnap, skipped := overrides.Index(res.Records)
	if skipped > 0 {
		w.log.Warnf("course %s: skipped %d override sets without a quiz id", w.cfg.CourseID, skipped)
	}

	oldSnap := w.cfg.Store.Load()
	cs, err := overrides.Diff(oldSnap, newSnap)
	if err != nil {
		return nil, fmt.Errorf("diffing snapshots: %w", err)
	}

	report := overrides.Render(cs, w.cfg.CourseID)
	result := &CycleResult{Skipped: skipped, ChangeSet: cs, Report: report}

	var saveErr error
	if report != "" {
		w.log.Infof("course %s: changes detected (added=%d removed=%d changed=%d)",
			w.cfg.CourseID, len(cs.Added), len(cs.Removed), len(cs.Changed))

		if w.cfg.Notifier != nil {
			if err := w.cfg.Notifier.Send(ctx, report); err != nil {
				w.log.Warnf("notification via %s failed: %v", w.cfg.Notifier.Name(), err)
			}
		}

		if w.cfg.History != nil {
			if err := w.cfg.History.LogChangeSet(ctx, w.cfg.CourseID, cs); err != nil {
				w.log.Warnf("could not log change-set to history: %v", err)
			}
		}

		if err := w.cfg.Store.Save(newSnap); err != nil {
			saveErr = fmt.Errorf("saving snapshot: %w", err)
		}
	} else {
		w.log.Debugf("course %s: no changes", w.cfg.CourseID)
	}

	// The etag advances only when the snapshot did. Holding it back after a
	// failed save makes the next poll refetch and rebuild the store instead
	// of getting a 304 against state that was never written.
	if saveErr == nil {
		if err := w.cfg.Store.SaveETag(res.ETag); err != nil {
			w.log.Warnf("could not save etag: %v", err)
		}
	}

	return result, saveErr
}
