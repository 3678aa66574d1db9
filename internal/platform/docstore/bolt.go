// Package docstore provides BoltDB-backed document collections.
//
// Each collection is a bucket of JSON documents keyed by id. Writes that
// replace a document go through CompareAndSwap, which checks the stored
// version inside the same bolt write transaction.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "github.com/boltdb/bolt"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrExists          = errors.New("document already exists")
	ErrVersionConflict = errors.New("document version conflict")
)

type DB struct {
	db *bolt.DB
}

// Open opens (or creates) the database file and ensures every named bucket exists.
func Open(path string, collections ...string) (*DB, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range collections {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Collection is a typed view over one bucket. version extracts the optimistic
// concurrency token from a document.
type Collection[T any] struct {
	db      *DB
	name    string
	version func(T) int64
}

func NewCollection[T any](db *DB, name string, version func(T) int64) *Collection[T] {
	return &Collection[T]{db: db, name: name, version: version}
}

func (c *Collection[T]) Name() string {
	return c.name
}

func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var doc T
	if err := ctx.Err(); err != nil {
		return doc, err
	}
	err := c.db.db.View(func(tx *bolt.Tx) error {
		raw := c.bucket(tx).Get([]byte(id))
		if raw == nil {
			return ErrNotFound
		}
		return json.Unmarshal(raw, &doc)
	})
	return doc, err
}

// Create inserts doc under id and fails with ErrExists if the id is taken.
func (c *Collection[T]) Create(ctx context.Context, id string, doc T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return c.db.db.Update(func(tx *bolt.Tx) error {
		b := c.bucket(tx)
		if b.Get([]byte(id)) != nil {
			return ErrExists
		}
		return b.Put([]byte(id), payload)
	})
}

// CompareAndSwap replaces the document only if the stored version equals expected.
func (c *Collection[T]) CompareAndSwap(ctx context.Context, id string, expected int64, doc T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return c.db.db.Update(func(tx *bolt.Tx) error {
		b := c.bucket(tx)
		raw := b.Get([]byte(id))
		if raw == nil {
			return ErrNotFound
		}
		var stored T
		if err := json.Unmarshal(raw, &stored); err != nil {
			return err
		}
		if c.version(stored) != expected {
			return ErrVersionConflict
		}
		return b.Put([]byte(id), payload)
	})
}

// Find returns every document matching keep, in key order. A nil keep matches all.
func (c *Collection[T]) Find(ctx context.Context, keep func(T) bool) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := []T{}
	err := c.db.db.View(func(tx *bolt.Tx) error {
		return c.bucket(tx).ForEach(func(k, v []byte) error {
			var doc T
			if err := json.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("decode %s/%s: %w", c.name, k, err)
			}
			if keep == nil || keep(doc) {
				out = append(out, doc)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// IDs returns every key in the collection without decoding documents.
func (c *Collection[T]) IDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids := []string{}
	err := c.db.db.View(func(tx *bolt.Tx) error {
		return c.bucket(tx).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	return ids, err
}

func (c *Collection[T]) bucket(tx *bolt.Tx) *bolt.Bucket {
	return tx.Bucket([]byte(c.name))
}
