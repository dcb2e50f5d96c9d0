package badger

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/issmimic/iss-telemetry/pkg/catalog"
	"github.com/issmimic/iss-telemetry/pkg/config"
	"github.com/issmimic/iss-telemetry/pkg/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{InMemory: true})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustInsert(t *testing.T, s *Store, key, value string, ts int64, desc catalog.Descriptor) bool {
	t.Helper()
	inserted, err := s.Insert(context.Background(), storage.Sample{
		Key:        key,
		Value:      value,
		Timestamp:  ts,
		Descriptor: desc,
	})
	if err != nil {
		t.Fatalf("insert %s@%d: %v", key, ts, err)
	}
	return inserted
}

func TestInsertAndGetByKey(t *testing.T) {
	s := openTestStore(t)
	desc := catalog.Descriptor{Description: "Lab temperature", Units: "degC"}

	if !mustInsert(t, s, "TEMP_1", "20.5", 1000, desc) {
		t.Fatal("first insert reported inserted=false")
	}
	if !mustInsert(t, s, "TEMP_1", "21.0", 2000, desc) {
		t.Fatal("second insert reported inserted=false")
	}

	ks, err := s.GetByKey(context.Background(), "TEMP_1")
	if err != nil {
		t.Fatalf("get by key: %v", err)
	}
	if len(ks.Values) != 2 {
		t.Fatalf("values = %d, want 2", len(ks.Values))
	}
	if ks.Values[0].Timestamp != 2000 || ks.Values[1].Timestamp != 1000 {
		t.Fatalf("timestamps = [%d, %d], want [2000, 1000]", ks.Values[0].Timestamp, ks.Values[1].Timestamp)
	}
	if ks.Values[0].ID <= ks.Values[1].ID {
		t.Fatalf("row ids not increasing: %d then %d", ks.Values[1].ID, ks.Values[0].ID)
	}

	latest, err := s.GetLatest(context.Background())
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if latest["TEMP_1"].Value != "21.0" {
		t.Fatalf("latest value = %q, want 21.0", latest["TEMP_1"].Value)
	}
}

func TestInsertDuplicateTimestampIsNoOp(t *testing.T) {
	s := openTestStore(t)

	if !mustInsert(t, s, "TEMP_1", "20.5", 1000, catalog.Descriptor{}) {
		t.Fatal("first insert reported inserted=false")
	}
	if mustInsert(t, s, "TEMP_1", "99.9", 1000, catalog.Descriptor{}) {
		t.Fatal("duplicate insert reported inserted=true")
	}

	ks, err := s.GetByKey(context.Background(), "TEMP_1")
	if err != nil {
		t.Fatalf("get by key: %v", err)
	}
	if len(ks.Values) != 1 || ks.Values[0].Value != "20.5" {
		t.Fatalf("values = %+v, want single 20.5", ks.Values)
	}
}

func TestRetentionCap(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < config.RetentionCap+5; i++ {
		mustInsert(t, s, "TEMP_1", fmt.Sprintf("%d", i), int64(1000+i), catalog.Descriptor{})
	}

	ks, err := s.GetByKey(context.Background(), "TEMP_1")
	if err != nil {
		t.Fatalf("get by key: %v", err)
	}
	if len(ks.Values) != config.RetentionCap {
		t.Fatalf("retained = %d, want %d", len(ks.Values), config.RetentionCap)
	}
	if ks.Values[0].Timestamp != 1104 {
		t.Fatalf("newest = %d, want 1104", ks.Values[0].Timestamp)
	}
	if ks.Values[len(ks.Values)-1].Timestamp != 1005 {
		t.Fatalf("oldest = %d, want 1005", ks.Values[len(ks.Values)-1].Timestamp)
	}
}

func TestGetAllOrdering(t *testing.T) {
	s := openTestStore(t)
	mustInsert(t, s, "B_KEY", "1", 100, catalog.Descriptor{})
	mustInsert(t, s, "A_KEY", "2", 300, catalog.Descriptor{})
	mustInsert(t, s, "B_KEY", "3", 200, catalog.Descriptor{})

	series, err := s.GetAll(context.Background())
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("series = %d, want 2", len(series))
	}
	if series[0].Key != "A_KEY" || series[1].Key != "B_KEY" {
		t.Fatalf("key order = [%s, %s], want [A_KEY, B_KEY]", series[0].Key, series[1].Key)
	}
	if series[1].Values[0].Timestamp != 200 {
		t.Fatalf("B_KEY newest = %d, want 200", series[1].Values[0].Timestamp)
	}
}

func TestGetByKeyNotFound(t *testing.T) {
	s := openTestStore(t)
	mustInsert(t, s, "KNOWN", "1", 100, catalog.Descriptor{})

	if _, err := s.GetByKey(context.Background(), "UNKNOWN"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	keys, err := s.ListKeys(context.Background())
	if err != nil {
		t.Fatalf("list keys: %v", err)
	}
	if len(keys) != 1 || keys[0].Key != "KNOWN" {
		t.Fatalf("keys = %+v, want [KNOWN]", keys)
	}
}

func TestDescriptorDenormalized(t *testing.T) {
	s := openTestStore(t)
	desc := catalog.Descriptor{OpsNom: "SAW 1A Voltage", Units: "V"}
	mustInsert(t, s, "S4000007", "151.4", 1000, desc)
	mustInsert(t, s, "MYSTERY", "1", 1000, catalog.Descriptor{})

	keys, err := s.ListKeys(context.Background())
	if err != nil {
		t.Fatalf("list keys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("keys = %d, want 2", len(keys))
	}
	if keys[0].Key != "MYSTERY" || keys[0].Descriptor != (catalog.Descriptor{}) {
		t.Fatalf("unknown key descriptor not empty: %+v", keys[0])
	}
	if keys[1].Descriptor != desc {
		t.Fatalf("descriptor = %+v, want %+v", keys[1].Descriptor, desc)
	}
}
