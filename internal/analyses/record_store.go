package analyses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"resumind-backend/internal/shared/storage/kv"
)

const recordKeyPrefix = "record:"

// RecordKey is the kv key a record is stored under.
func RecordKey(id string) string {
	return recordKeyPrefix + id
}

// RecordStore persists records as JSON in a kv store.
type RecordStore struct {
	KV kv.Store
}

// NewRecordStore wraps store.
func NewRecordStore(store kv.Store) *RecordStore {
	return &RecordStore{KV: store}
}

// Save writes rec, replacing any previous version.
func (s *RecordStore) Save(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return errors.New("record id is required")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := s.KV.Put(ctx, RecordKey(rec.ID), payload); err != nil {
		return fmt.Errorf("put record: %w", err)
	}
	return nil
}

// Load returns the record stored for id.
func (s *RecordStore) Load(ctx context.Context, id string) (Record, error) {
	payload, err := s.KV.Get(ctx, RecordKey(id))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("get record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}
