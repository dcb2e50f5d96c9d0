package storage

import (
	"context"
	"errors"

	"github.com/issmimic/iss-telemetry/pkg/catalog"
)

// ErrNotFound is returned by single-key reads when no samples exist for the key.
var ErrNotFound = errors.New("no samples found for key")

// Sample is one observation handed to the store by the ingest path. Timestamp
// is epoch milliseconds assigned at receipt time. The descriptor is a full
// copy of the key's catalog metadata and is denormalized onto the stored row.
type Sample struct {
	Key        string
	Value      string
	Timestamp  int64
	Descriptor catalog.Descriptor
}

// Value is one retained observation as returned by reads. ID is the
// store-assigned monotonically increasing row identifier.
type Value struct {
	Value     string `json:"value"`
	Timestamp int64  `json:"timestamp"`
	ID        int64  `json:"id"`
}

// KeySeries is one key's descriptor plus its retained history, newest first.
// The descriptor is taken from the key's most recent row.
type KeySeries struct {
	Key        string
	Descriptor catalog.Descriptor
	Values     []Value
}

// LatestValue is the single most-recent observation for a key.
type LatestValue struct {
	Value      string
	Timestamp  int64
	Descriptor catalog.Descriptor
}

// KeyInfo pairs a distinct key with its descriptor.
type KeyInfo struct {
	Key        string
	Descriptor catalog.Descriptor
}

// Store is the bounded per-key retention store for telemetry samples.
// Implementations: sqlite (default, durable file), badger (embedded LSM tree).
//
// A store must support arbitrarily many concurrent readers overlapping the
// single writer stream; locking is a property of the underlying engine, never
// a global mutex serializing keys.
type Store interface {
	// Insert persists one sample and then prunes the key back down to the
	// retention cap. Inserting a duplicate (key, timestamp) is a successful
	// no-op reporting inserted=false. A prune failure is logged, never
	// propagated, and never rolls back the insert it followed.
	Insert(ctx context.Context, s Sample) (inserted bool, err error)

	// GetAll returns every key's retained history, keys ascending,
	// values newest first. An empty store yields an empty slice.
	GetAll(ctx context.Context) ([]KeySeries, error)

	// GetByKey returns one key's retained history, newest first.
	// Returns ErrNotFound when the key has no samples.
	GetByKey(ctx context.Context, key string) (KeySeries, error)

	// GetLatest returns the most recent observation per key.
	GetLatest(ctx context.Context) (map[string]LatestValue, error)

	// ListKeys returns one entry per distinct key, keys ascending.
	ListKeys(ctx context.Context) ([]KeyInfo, error)

	// Close cleanly shuts down the storage.
	Close() error
}
