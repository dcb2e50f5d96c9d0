// Package badger implements the retention store on BadgerDB (LSM tree).
package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/issmimic/iss-telemetry/pkg/catalog"
	"github.com/issmimic/iss-telemetry/pkg/config"
	"github.com/issmimic/iss-telemetry/pkg/storage"
)

// sample keys are [key_hash (8 bytes)][timestamp (8 bytes)], both big-endian,
// so one telemetry key's rows are a contiguous, time-ordered prefix range.
const sampleKeyLen = 16

// seqKey holds the monotonic row id sequence; it is not a sample key.
var seqKey = []byte("!seq/samples")

// Store implements storage.Store using BadgerDB.
type Store struct {
	db  *badger.DB
	seq *badger.Sequence
}

// Config holds BadgerDB configuration.
type Config struct {
	// Path to the database directory.
	Path string

	// InMemory mode (for testing).
	InMemory bool
}

// New creates a BadgerDB retention store.
func New(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	// Tens of keys at feed rates: tune well below the badger defaults.
	opts = opts.
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(16 * 1024 * 1024).
		WithNumMemtables(3).
		WithValueLogFileSize(64 << 20).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	seq, err := db.GetSequence(seqKey, 128)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open id sequence: %w", err)
	}

	return &Store{db: db, seq: seq}, nil
}

// Close releases the id sequence and shuts down BadgerDB cleanly.
func (s *Store) Close() error {
	if s.seq != nil {
		if err := s.seq.Release(); err != nil {
			log.Printf("Release badger sequence: %v", err)
		}
	}
	return s.db.Close()
}

// record is the stored row, descriptor denormalized as on the sqlite backend.
type record struct {
	ID         int64              `json:"id"`
	Key        string             `json:"key"`
	Value      string             `json:"value"`
	Timestamp  int64              `json:"timestamp"`
	Descriptor catalog.Descriptor `json:"descriptor"`
}

// Insert persists one sample, then prunes the key back to the retention cap.
// A duplicate (key, timestamp) is a successful no-op.
func (s *Store) Insert(ctx context.Context, smp storage.Sample) (bool, error) {
	if smp.Key == "" {
		return false, fmt.Errorf("sample key is required")
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	kb := makeKey(smp.Key, smp.Timestamp)
	inserted := false
	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(kb)
		if err == nil {
			return nil
		}
		if err != badger.ErrKeyNotFound {
			return fmt.Errorf("check duplicate: %w", err)
		}

		n, err := s.seq.Next()
		if err != nil {
			return fmt.Errorf("next row id: %w", err)
		}
		rec := record{
			ID:         int64(n) + 1,
			Key:        smp.Key,
			Value:      smp.Value,
			Timestamp:  smp.Timestamp,
			Descriptor: smp.Descriptor,
		}
		val, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode sample: %w", err)
		}
		if err := txn.Set(kb, val); err != nil {
			return fmt.Errorf("write sample: %w", err)
		}
		inserted = true
		return nil
	})
	if err != nil || !inserted {
		return false, err
	}

	// A failed prune must never fail or roll back the insert it followed.
	if err := s.prune(smp.Key); err != nil {
		log.Printf("Prune failed for %s: %v", smp.Key, err)
	}
	return true, nil
}

// prune deletes the oldest excess rows for key so at most the retention cap
// remains. Kept rows are the first cap ordered by timestamp desc, id desc.
func (s *Store) prune(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		recs, err := readPrefix(txn, key)
		if err != nil {
			return err
		}
		if len(recs) <= config.RetentionCap {
			return nil
		}
		sortNewestFirst(recs)
		for _, rec := range recs[config.RetentionCap:] {
			if err := txn.Delete(makeKey(rec.Key, rec.Timestamp)); err != nil {
				return fmt.Errorf("delete excess row: %w", err)
			}
		}
		return nil
	})
}

// GetAll returns every key's retained history, keys ascending, newest first.
func (s *Store) GetAll(ctx context.Context) ([]storage.KeySeries, error) {
	byKey, err := s.scanAll(ctx)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	series := make([]storage.KeySeries, 0, len(keys))
	for _, k := range keys {
		recs := byKey[k]
		sortNewestFirst(recs)
		ks := storage.KeySeries{
			Key:        k,
			Descriptor: recs[0].Descriptor,
			Values:     make([]storage.Value, 0, len(recs)),
		}
		for _, rec := range recs {
			ks.Values = append(ks.Values, storage.Value{
				Value:     rec.Value,
				Timestamp: rec.Timestamp,
				ID:        rec.ID,
			})
		}
		series = append(series, ks)
	}
	return series, nil
}

// GetByKey returns one key's retained history, newest first.
func (s *Store) GetByKey(ctx context.Context, key string) (storage.KeySeries, error) {
	if err := ctx.Err(); err != nil {
		return storage.KeySeries{}, err
	}

	var recs []record
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		recs, err = readPrefix(txn, key)
		return err
	})
	if err != nil {
		return storage.KeySeries{}, err
	}
	if len(recs) == 0 {
		return storage.KeySeries{}, storage.ErrNotFound
	}

	sortNewestFirst(recs)
	ks := storage.KeySeries{
		Key:        key,
		Descriptor: recs[0].Descriptor,
		Values:     make([]storage.Value, 0, len(recs)),
	}
	for _, rec := range recs {
		ks.Values = append(ks.Values, storage.Value{
			Value:     rec.Value,
			Timestamp: rec.Timestamp,
			ID:        rec.ID,
		})
	}
	return ks, nil
}

// GetLatest returns the most recent observation per key.
func (s *Store) GetLatest(ctx context.Context) (map[string]storage.LatestValue, error) {
	byKey, err := s.scanAll(ctx)
	if err != nil {
		return nil, err
	}

	latest := make(map[string]storage.LatestValue, len(byKey))
	for k, recs := range byKey {
		sortNewestFirst(recs)
		latest[k] = storage.LatestValue{
			Value:      recs[0].Value,
			Timestamp:  recs[0].Timestamp,
			Descriptor: recs[0].Descriptor,
		}
	}
	return latest, nil
}

// ListKeys returns one entry per distinct key, keys ascending. The descriptor
// is taken from the key's most recent row.
func (s *Store) ListKeys(ctx context.Context) ([]storage.KeyInfo, error) {
	byKey, err := s.scanAll(ctx)
	if err != nil {
		return nil, err
	}

	keys := make([]storage.KeyInfo, 0, len(byKey))
	for k, recs := range byKey {
		sortNewestFirst(recs)
		keys = append(keys, storage.KeyInfo{Key: k, Descriptor: recs[0].Descriptor})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Key < keys[j].Key })
	return keys, nil
}

// scanAll groups every stored record by telemetry key.
func (s *Store) scanAll(ctx context.Context) (map[string][]record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	byKey := make(map[string][]record)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 100

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			if len(item.Key()) != sampleKeyLen {
				continue
			}
			var rec record
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode sample: %w", err)
			}
			byKey[rec.Key] = append(byKey[rec.Key], rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return byKey, nil
}

// readPrefix collects one telemetry key's records via its hash prefix.
func readPrefix(txn *badger.Txn, key string) ([]record, error) {
	prefix := make([]byte, 8)
	binary.BigEndian.PutUint64(prefix, xxhash.Sum64String(key))

	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	var recs []record
	for it.Rewind(); it.Valid(); it.Next() {
		if len(it.Item().Key()) != sampleKeyLen {
			continue
		}
		var rec record
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		}); err != nil {
			return nil, fmt.Errorf("decode sample: %w", err)
		}
		// Guard against a hash prefix collision between two keys.
		if rec.Key != key {
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func sortNewestFirst(recs []record) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Timestamp != recs[j].Timestamp {
			return recs[i].Timestamp > recs[j].Timestamp
		}
		return recs[i].ID > recs[j].ID
	})
}

// makeKey builds the sortable sample key: [key_hash (8B)][timestamp (8B)].
func makeKey(key string, ts int64) []byte {
	kb := make([]byte, sampleKeyLen)
	binary.BigEndian.PutUint64(kb[0:8], xxhash.Sum64String(key))
	binary.BigEndian.PutUint64(kb[8:16], uint64(ts))
	return kb
}

var _ storage.Store = (*Store)(nil)
