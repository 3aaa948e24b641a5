package watch

import (
	"context"
	"errors"
	"testing"

	"github.com/canvaswatch/canvaswatch/pkg/canvas"
	"github.com/canvaswatch/canvaswatch/pkg/notify"
	"github.com/canvaswatch/canvaswatch/pkg/overrides"
)

type fakeFetcher struct {
	result  *canvas.FetchResult
	err     error
	gotETag string
}

func (f *fakeFetcher) FetchOverrides(_ context.Context, etag string) (*canvas.FetchResult, error) {
	f.gotETag = etag
	return f.result, f.err
}

type fakeStore struct {
	snap    overrides.Snapshot
	etag    string
	saved   int
	saveErr error
}

func (s *fakeStore) Load() overrides.Snapshot {
	if s.snap == nil {
		return overrides.Snapshot{}
	}
	return s.snap
}

func (s *fakeStore) Save(snap overrides.Snapshot) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved++
	s.snap = snap
	return nil
}

func (s *fakeStore) LoadETag() string { return s.etag }

func (s *fakeStore) SaveETag(etag string) error {
	if etag != "" {
		s.etag = etag
	}
	return nil
}

type fakeNotifier struct {
	sent []string
	err  error
}

func (f *fakeNotifier) Name() string { return "fake" }
func (f *fakeNotifier) Send(_ context.Context, text string) error {
	f.sent = append(f.sent, text)
	return f.err
}

func payload() []overrides.ParentRecord {
	return []overrides.ParentRecord{{
		ID:       "10",
		Children: []map[string]any{{"due_at": "2025-01-01T00:00:00Z", "base": true}},
	}}
}

func newWatcher(f *fakeFetcher, s *fakeStore, n *fakeNotifier) *Watcher {
	return New(Config{
		Fetcher:  f,
		Store:    s,
		Notifier: notify.Multi{n},
		CourseID: "1431941",
	})
}

func TestRunCycleFirstPollReportsEverythingAdded(t *testing.T) {
	fetcher := &fakeFetcher{result: &canvas.FetchResult{Records: payload(), ETag: `"e1"`}}
	store := &fakeStore{}
	n := &fakeNotifier{}

	res, err := newWatcher(fetcher, store, n).RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.ChangeSet.Added) != 1 || res.ChangeSet.Added[0] != "10" {
		t.Fatalf("change set = %#v", res.ChangeSet)
	}
	if len(n.sent) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(n.sent))
	}
	if store.saved != 1 {
		t.Fatalf("snapshot should be saved after report, saves=%d", store.saved)
	}
	if store.etag != `"e1"` {
		t.Fatalf("etag not saved: %q", store.etag)
	}
}

func TestRunCycleNoChangesWritesNothing(t *testing.T) {
	fetcher := &fakeFetcher{result: &canvas.FetchResult{Records: payload()}}
	store := &fakeStore{}
	n := &fakeNotifier{}
	w := newWatcher(fetcher, store, n)

	if _, err := w.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	// Second cycle sees identical state: no report, no snapshot write.
	res, err := w.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Report != "" {
		t.Fatalf("expected empty report, got %q", res.Report)
	}
	if store.saved != 1 {
		t.Fatalf("no-op cycle must not overwrite the snapshot, saves=%d", store.saved)
	}
	if len(n.sent) != 1 {
		t.Fatalf("no-op cycle must not notify, sent=%d", len(n.sent))
	}
}

func TestRunCycleNotModifiedShortCircuits(t *testing.T) {
	fetcher := &fakeFetcher{result: &canvas.FetchResult{NotModified: true}}
	store := &fakeStore{etag: `"e0"`}
	n := &fakeNotifier{}

	res, err := newWatcher(fetcher, store, n).RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !res.NotModified {
		t.Fatal("expected NotModified result")
	}
	if fetcher.gotETag != `"e0"` {
		t.Fatalf("stored etag not sent: %q", fetcher.gotETag)
	}
	if store.saved != 0 || len(n.sent) != 0 {
		t.Fatal("304 cycle must not write or notify")
	}
}

func TestRunCycleFetchErrorLeavesStateUntouched(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("connection refused")}
	store := &fakeStore{snap: overrides.Snapshot{"10": {}}}
	n := &fakeNotifier{}

	_, err := newWatcher(fetcher, store, n).RunCycle(context.Background())
	if err == nil {
		t.Fatal("expected fetch error")
	}
	if store.saved != 0 || len(n.sent) != 0 {
		t.Fatal("failed fetch must not write or notify")
	}
}

func TestRunCycleSaveFailureStillNotifies(t *testing.T) {
	fetcher := &fakeFetcher{result: &canvas.FetchResult{Records: payload()}}
	store := &fakeStore{saveErr: errors.New("disk full")}
	n := &fakeNotifier{}

	res, err := newWatcher(fetcher, store, n).RunCycle(context.Background())
	if err == nil {
		t.Fatal("save failure must be reported upward")
	}
	if res == nil || res.Report == "" {
		t.Fatal("report should still be produced")
	}
	if len(n.sent) != 1 {
		t.Fatalf("notification must go out before the failing save, sent=%d", len(n.sent))
	}
}

func TestRunCycleSaveFailureDoesNotAdvanceETag(t *testing.T) {
	fetcher := &fakeFetcher{result: &canvas.FetchResult{Records: payload(), ETag: `"e2"`}}
	store := &fakeStore{etag: `"e1"`, saveErr: errors.New("disk full")}
	n := &fakeNotifier{}
	w := newWatcher(fetcher, store, n)

	if _, err := w.RunCycle(context.Background()); err == nil {
		t.Fatal("save failure must be reported upward")
	}
	if store.etag != `"e1"` {
		t.Fatalf("etag must not advance past an unsaved snapshot, got %q", store.etag)
	}

	// The next poll resends the old etag, refetches the full payload, and
	// commits the state the failed cycle could not.
	store.saveErr = nil
	if _, err := w.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if fetcher.gotETag != `"e1"` {
		t.Fatalf("second poll sent etag %q, want the pre-failure one", fetcher.gotETag)
	}
	if store.saved != 1 || store.etag != `"e2"` {
		t.Fatalf("store not repaired on retry: saves=%d etag=%q", store.saved, store.etag)
	}
}

func TestRunCycleFansOutToAllTransports(t *testing.T) {
	fetcher := &fakeFetcher{result: &canvas.FetchResult{Records: payload()}}
	store := &fakeStore{}
	broken := &fakeNotifier{err: errors.New("webhook 500")}
	healthy := &fakeNotifier{}
	w := New(Config{
		Fetcher:  fetcher,
		Store:    store,
		Notifier: notify.Multi{broken, healthy},
		CourseID: "1431941",
	})

	if _, err := w.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(broken.sent) != 1 || len(healthy.sent) != 1 {
		t.Fatalf("both transports must be attempted: broken=%d healthy=%d", len(broken.sent), len(healthy.sent))
	}
	if store.saved != 1 {
		t.Fatal("a failing transport must not block the snapshot commit")
	}
}

func TestRunCycleNotifierFailureDoesNotBlockSave(t *testing.T) {
	fetcher := &fakeFetcher{result: &canvas.FetchResult{Records: payload()}}
	store := &fakeStore{}
	n := &fakeNotifier{err: errors.New("webhook 500")}

	if _, err := newWatcher(fetcher, store, n).RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if store.saved != 1 {
		t.Fatal("delivery failure is reported, not retried; snapshot still commits")
	}
}

func TestRunCycleUnsortableIDSurfaced(t *testing.T) {
	fetcher := &fakeFetcher{result: &canvas.FetchResult{Records: []overrides.ParentRecord{{ID: "abc"}}}}
	store := &fakeStore{}
	n := &fakeNotifier{}

	_, err := newWatcher(fetcher, store, n).RunCycle(context.Background())
	if !errors.Is(err, overrides.ErrUnsortableID) {
		t.Fatalf("expected ErrUnsortableID, got %v", err)
	}
	if store.saved != 0 || len(n.sent) != 0 {
		t.Fatal("failed diff must not write or notify")
	}
}

func TestRunCycleCountsSkippedRecords(t *testing.T) {
	records := append(payload(), overrides.ParentRecord{ID: "", Children: []map[string]any{{"base": true}}})
	fetcher := &fakeFetcher{result: &canvas.FetchResult{Records: records}}
	store := &fakeStore{}
	n := &fakeNotifier{}

	res, err := newWatcher(fetcher, store, n).RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Skipped != 1 {
		t.Fatalf("skipped = %d", res.Skipped)
	}
}
