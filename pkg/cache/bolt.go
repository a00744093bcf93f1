/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: bolt.go
Description: Persistent query cache backed by bbolt (embedded B+ tree). One bucket
holds all answered membership queries, key = encoded input word, value =
JSON-serialized output. Writes are transactional, so a crash mid-write cannot
corrupt previously committed answers and interrupted runs resume cheaply.
*/

package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kleascm/sflearn/pkg/interfaces"
	bolt "go.etcd.io/bbolt"
)

var bucketQueries = []byte("queries")

// boltKey prefixes the encoded word with a sentinel byte. bbolt rejects empty
// keys, and the empty word encodes to zero bytes, so the prefix keeps the
// epsilon query persistable like any other.
func boltKey(input interfaces.Word) []byte {
	return append([]byte{'w'}, input.Key()...)
}

// BoltCache persists answered membership queries in a bbolt database.
type BoltCache struct {
	db *bolt.DB
}

// OpenBoltCache opens (or creates) a bbolt database at the given path.
func OpenBoltCache(path string) (*BoltCache, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketQueries)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bbolt create bucket: %w", err)
	}
	return &BoltCache{db: db}, nil
}

// Close closes the underlying bbolt database.
func (b *BoltCache) Close() error {
	return b.db.Close()
}

// Get returns the persisted output for the input, if present.
func (b *BoltCache) Get(input interfaces.Word) (interfaces.Word, bool, error) {
	var out interfaces.Word
	found := false
	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketQueries).Get(boltKey(input))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &out); err != nil {
			return fmt.Errorf("unmarshal cached output: %w", err)
		}
		found = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, found, nil
}

// Put persists an answered query.
func (b *BoltCache) Put(input, output interfaces.Word) error {
	data, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketQueries).Put(boltKey(input), data)
	})
}

// Len returns the number of persisted queries.
func (b *BoltCache) Len() (int, error) {
	n := 0
	err := b.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketQueries).Stats().KeyN
		return nil
	})
	return n, err
}
