// Package ingest bridges feed updates into the retention store.
package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/issmimic/iss-telemetry/pkg/catalog"
	"github.com/issmimic/iss-telemetry/pkg/feed"
	"github.com/issmimic/iss-telemetry/pkg/storage"
)

// valueField is the feed field carrying the parameter value. The feed's own
// staleness and quality fields are not trusted and not stored.
const valueField = "Value"

// Adapter turns one feed update into one retention store write. It holds
// explicit store and catalog handles so tests can substitute fakes.
type Adapter struct {
	store   storage.Store
	catalog *catalog.Catalog
	now     func() time.Time
}

// New creates an ingest adapter.
func New(store storage.Store, cat *catalog.Catalog) *Adapter {
	return &Adapter{
		store:   store,
		catalog: cat,
		now:     time.Now,
	}
}

// Start subscribes the adapter to the feed using the catalog's key list.
func (a *Adapter) Start(f feed.Feed) (feed.Subscription, error) {
	keys := a.catalog.Keys()
	sub, err := f.Subscribe(keys, a.HandleUpdate)
	if err != nil {
		return nil, fmt.Errorf("subscribe to feed: %w", err)
	}
	log.Printf("📡 Ingest subscribed to %d telemetry parameters", len(keys))
	return sub, nil
}

// HandleUpdate stores one feed update. The sample timestamp is the receipt
// time, not the feed-asserted time. A failed write is logged and skipped so
// the subscription keeps running.
func (a *Adapter) HandleUpdate(item string, fields map[string]string) {
	if item == "" {
		log.Printf("Ingest dropped update with empty item name")
		return
	}
	value, ok := fields[valueField]
	if !ok {
		log.Printf("Ingest dropped update for %s without a Value field", item)
		return
	}

	s := storage.Sample{
		Key:        item,
		Value:      value,
		Timestamp:  a.now().UnixMilli(),
		Descriptor: a.catalog.Lookup(item),
	}
	if _, err := a.store.Insert(context.Background(), s); err != nil {
		log.Printf("Ingest insert for %s failed: %v", item, err)
	}
}
