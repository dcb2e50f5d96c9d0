package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/issmimic/iss-telemetry/pkg/catalog"
	"github.com/issmimic/iss-telemetry/pkg/feed"
	"github.com/issmimic/iss-telemetry/pkg/storage"
)

// fakeStore records inserts and satisfies storage.Store.
type fakeStore struct {
	mu      sync.Mutex
	samples []storage.Sample
	fail    bool
}

func (f *fakeStore) Insert(_ context.Context, s storage.Sample) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return false, errors.New("storage unavailable")
	}
	f.samples = append(f.samples, s)
	return true, nil
}

func (f *fakeStore) GetAll(context.Context) ([]storage.KeySeries, error) { return nil, nil }
func (f *fakeStore) GetByKey(context.Context, string) (storage.KeySeries, error) {
	return storage.KeySeries{}, storage.ErrNotFound
}
func (f *fakeStore) GetLatest(context.Context) (map[string]storage.LatestValue, error) {
	return nil, nil
}
func (f *fakeStore) ListKeys(context.Context) ([]storage.KeyInfo, error) { return nil, nil }
func (f *fakeStore) Close() error                                        { return nil }

func (f *fakeStore) inserted() []storage.Sample {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]storage.Sample, len(f.samples))
	copy(out, f.samples)
	return out
}

// fakeFeed captures the subscription request.
type fakeFeed struct {
	items []string
	fn    feed.UpdateFunc
}

type fakeSub struct{ unsubscribed bool }

func (s *fakeSub) Unsubscribe() error { s.unsubscribed = true; return nil }

func (f *fakeFeed) Subscribe(items []string, fn feed.UpdateFunc) (feed.Subscription, error) {
	f.items = items
	f.fn = fn
	return &fakeSub{}, nil
}

func testAdapter(store storage.Store, cat *catalog.Catalog, now time.Time) *Adapter {
	a := New(store, cat)
	a.now = func() time.Time { return now }
	return a
}

func TestHandleUpdateStampsReceiptTime(t *testing.T) {
	store := &fakeStore{}
	now := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
	a := testAdapter(store, catalog.Default(), now)

	a.HandleUpdate("USLAB000058", map[string]string{"Value": "742.1", "Status": "S"})

	samples := store.inserted()
	if len(samples) != 1 {
		t.Fatalf("inserts = %d, want 1", len(samples))
	}
	s := samples[0]
	if s.Key != "USLAB000058" || s.Value != "742.1" {
		t.Fatalf("sample = %+v", s)
	}
	if s.Timestamp != now.UnixMilli() {
		t.Fatalf("timestamp = %d, want receipt time %d", s.Timestamp, now.UnixMilli())
	}
	if s.Descriptor.OpsNom != "LAB Cabin Pressure" {
		t.Fatalf("descriptor = %+v, want catalog metadata attached", s.Descriptor)
	}
}

func TestHandleUpdateUnknownKeyGetsEmptyDescriptor(t *testing.T) {
	store := &fakeStore{}
	a := testAdapter(store, catalog.Default(), time.Now())

	a.HandleUpdate("NOT_IN_CATALOG", map[string]string{"Value": "1"})

	samples := store.inserted()
	if len(samples) != 1 {
		t.Fatalf("inserts = %d, want 1", len(samples))
	}
	if samples[0].Descriptor != (catalog.Descriptor{}) {
		t.Fatalf("descriptor = %+v, want empty", samples[0].Descriptor)
	}
}

func TestHandleUpdateSkipsMalformedUpdates(t *testing.T) {
	store := &fakeStore{}
	a := testAdapter(store, catalog.Default(), time.Now())

	a.HandleUpdate("", map[string]string{"Value": "1"})
	a.HandleUpdate("USLAB000058", map[string]string{"Status": "S"})

	if got := len(store.inserted()); got != 0 {
		t.Fatalf("inserts = %d, want 0", got)
	}
}

func TestHandleUpdateSurvivesStorageErrors(t *testing.T) {
	store := &fakeStore{fail: true}
	a := testAdapter(store, catalog.Default(), time.Now())

	// Must not panic or abort; the next update should still be attempted.
	a.HandleUpdate("USLAB000058", map[string]string{"Value": "742.1"})
	store.fail = false
	a.HandleUpdate("USLAB000058", map[string]string{"Value": "742.2"})

	if got := len(store.inserted()); got != 1 {
		t.Fatalf("inserts = %d, want 1", got)
	}
}

func TestStartSubscribesCatalogKeys(t *testing.T) {
	store := &fakeStore{}
	cat := catalog.Default()
	a := testAdapter(store, cat, time.Now())

	f := &fakeFeed{}
	sub, err := a.Start(f)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sub.Unsubscribe()

	if len(f.items) != cat.Len() {
		t.Fatalf("subscribed items = %d, want %d", len(f.items), cat.Len())
	}

	// The registered handler writes through to the store.
	f.fn("USLAB000058", map[string]string{"Value": "740.0"})
	if got := len(store.inserted()); got != 1 {
		t.Fatalf("inserts = %d, want 1", got)
	}
}
