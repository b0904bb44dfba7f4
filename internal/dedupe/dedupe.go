// Package dedupe makes payment dispatch idempotent per client
// correlationId: the outcome of the first dispatch is recorded in a Bolt
// bucket and replayed for any repeat of the same id.
package dedupe

import (
	"encoding/json"
	"fmt"
	"time"

	goBolt "go.etcd.io/bbolt"
)

const dispatchesBucket = "dispatches"

// Record is the stored outcome of one dispatch: the HTTP status and the
// exact response body returned to the client.
type Record struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// Store is a durable correlationId -> Record map backed by BoltDB.
type Store struct {
	db *goBolt.DB
}

// Open opens (or creates) the dedup database at path.
func Open(path string) (*Store, error) {
	db, err := goBolt.Open(path, 0600, &goBolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("erro ao abrir banco BoltDB: %w", err)
	}
	err = db.Update(func(tx *goBolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(dispatchesBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("erro ao criar bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Lookup returns the recorded outcome for correlationID, or nil when the id
// has never been dispatched.
func (s *Store) Lookup(correlationID string) (*Record, error) {
	var rec *Record
	err := s.db.View(func(tx *goBolt.Tx) error {
		bucket := tx.Bucket([]byte(dispatchesBucket))
		if bucket == nil {
			return fmt.Errorf("bucket %s não existe", dispatchesBucket)
		}
		data := bucket.Get([]byte(correlationID))
		if data == nil {
			return nil
		}
		var r Record
		if err := json.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("erro ao decodificar registro: %w", err)
		}
		rec = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Remember stores the outcome for correlationID, overwriting any prior one.
func (s *Store) Remember(correlationID string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("erro ao serializar registro: %w", err)
	}
	err = s.db.Update(func(tx *goBolt.Tx) error {
		bucket := tx.Bucket([]byte(dispatchesBucket))
		if bucket == nil {
			return fmt.Errorf("bucket %s não existe", dispatchesBucket)
		}
		return bucket.Put([]byte(correlationID), data)
	})
	if err != nil {
		return fmt.Errorf("erro ao gravar registro: %w", err)
	}
	return nil
}

// PurgeAll drops every recorded dispatch.
func (s *Store) PurgeAll() error {
	return s.db.Update(func(tx *goBolt.Tx) error {
		if err := tx.DeleteBucket([]byte(dispatchesBucket)); err != nil && err != goBolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket([]byte(dispatchesBucket))
		return err
	})
}
