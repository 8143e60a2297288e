// Package probecache persists probe results keyed by interpreter digest, so
// repeated version queries do not have to boot the interpreter.
package probecache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

const keyPrefix = "probe/"

func dbKey(key string) []byte {
	return []byte(keyPrefix + key)
}

// Store is a badger-backed probe result cache.
type Store struct {
	db *badger.DB
}

// Open opens (creating if needed) the cache in dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open probe cache: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory returns a cache that is discarded on Close.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open probe cache: %w", err)
	}
	return &Store{db: db}, nil
}

// Key identifies the result of probe against a specific interpreter module.
func Key(module []byte, probe string) string {
	sum := sha256.Sum256(module)
	return hex.EncodeToString(sum[:]) + "/" + probe
}

// Get returns the cached value for key.
func (s *Store) Get(key string) (string, bool, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(dbKey(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return string(value), true, nil
}

// Put stores value under key.
func (s *Store) Put(key, value string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(dbKey(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Clear removes every cached result.
func (s *Store) Clear() error {
	return s.db.DropPrefix([]byte(keyPrefix))
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
