// Package kvdb adapts CometBFT's embedded key-value engine into a plain
// KV interface, used by the content-addressed store as a digest-prefix
// index cache independent of any CometBFT consensus engine.
package kvdb

import (
	dbm "github.com/cometbft/cometbft-db"
)

// KVAdapter wraps a CometBFT dbm.DB and exposes a plain byte-keyed KV
// interface so callers never depend on dbm directly.
type KVAdapter struct {
	db dbm.DB
}

// NewKVAdapter wraps db, an already-opened CometBFT-DB instance.
func NewKVAdapter(db dbm.DB) *KVAdapter {
	return &KVAdapter{db: db}
}

// NewMemIndex returns a KVAdapter over an in-process MemDB, suitable as
// the content-addressed store's digest-prefix index cache: it never
// touches disk and starts empty, being filled as the store writes
// artifacts and scans its directories.
func NewMemIndex() *KVAdapter {
	return &KVAdapter{db: dbm.NewMemDB()}
}

// Get returns the value for key, or nil if absent.
func (a *KVAdapter) Get(key []byte) ([]byte, error) {
	if a.db == nil {
		return nil, nil
	}
	v, err := a.db.Get(key)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Set durably stores value under key.
func (a *KVAdapter) Set(key, value []byte) error {
	if a.db == nil {
		return nil
	}
	return a.db.SetSync(key, value)
}

// Delete removes key, a no-op if absent.
func (a *KVAdapter) Delete(key []byte) error {
	if a.db == nil {
		return nil
	}
	return a.db.Delete(key)
}
