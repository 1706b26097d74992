// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cache stores datasets by name, so that an expensive fetch happens
// only once.
//
// A cache entry, once written, is assumed to be valid forever: there is no
// TTL, no checksum and no eviction. To force a refresh, remove the entry
// outside of this package (e.g. delete the CSV file from the cache directory).
package cache

import (
	"bytes"
	"context"
	"strings"
	"sync"

	"github.com/stockparfait/acquire/table"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
)

// Store is a key-value storage of datasets. The key is the dataset name.
type Store interface {
	// Exists checks whether the dataset is in the store.
	Exists(ctx context.Context, key string) (bool, error)
	// Read the dataset. It is an error to read a missing dataset.
	Read(ctx context.Context, key string) (*table.Table, error)
	// Write the dataset, overwriting any existing entry.
	Write(ctx context.Context, key string, t *table.Table) error
}

// FetchFunc retrieves a dataset from its original source.
type FetchFunc func(ctx context.Context) (*table.Table, error)

// CheckKey verifies that the key is usable as a dataset name, and in
// particular as a file name.
func CheckKey(key string) error {
	if key == "" {
		return errors.Reason("empty key")
	}
	if strings.HasPrefix(key, ".") || strings.ContainsAny(key, `/\`) {
		return errors.Reason("invalid key: '%s'", key)
	}
	return nil
}

// GetOrFetch returns the dataset from the store when it exists, unmodified.
// Otherwise it calls fetch, writes the result to the store and returns
// it. Nothing is written when fetch fails.
func GetOrFetch(ctx context.Context, s Store, key string, fetch FetchFunc) (*table.Table, error) {
	ok, err := s.Exists(ctx, key)
	if err != nil {
		return nil, errors.Annotate(err, "failed to check cache for '%s'", key)
	}
	if ok {
		logging.Infof(ctx, "reading %s from cache...", key)
		t, err := s.Read(ctx, key)
		if err != nil {
			return nil, errors.Annotate(err, "failed to read '%s' from cache", key)
		}
		return t, nil
	}
	logging.Infof(ctx, "getting a fresh copy of %s...", key)
	t, err := fetch(ctx)
	if err != nil {
		return nil, errors.Annotate(err, "failed to fetch '%s'", key)
	}
	logging.Infof(ctx, "caching %s: %d rows, %d columns",
		key, len(t.Rows), len(t.Header))
	if err := s.Write(ctx, key, t); err != nil {
		return nil, errors.Annotate(err, "failed to cache '%s'", key)
	}
	return t, nil
}

// encode serializes the table in the cache entry format.
func encode(t *table.Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.WriteCSV(&buf, table.Params{}); err != nil {
		return nil, errors.Annotate(err, "failed to encode CSV")
	}
	return buf.Bytes(), nil
}

// MemStore keeps the serialized datasets in memory. The zero value is not
// usable; use NewMemStore.
type MemStore struct {
	mu      sync.Mutex
	entries map[string][]byte
	Writes  int // number of successful writes, for tests and diagnostics
}

var _ Store = &MemStore{}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[string][]byte)}
}

// Exists implements Store.
func (s *MemStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := CheckKey(key); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok, nil
}

// Read implements Store.
func (s *MemStore) Read(ctx context.Context, key string) (*table.Table, error) {
	if err := CheckKey(key); err != nil {
		return nil, err
	}
	s.mu.Lock()
	data, ok := s.entries[key]
	s.mu.Unlock()
	if !ok {
		return nil, errors.Reason("no entry for '%s'", key)
	}
	return table.ReadCSV(bytes.NewReader(data))
}

// Write implements Store.
func (s *MemStore) Write(ctx context.Context, key string, t *table.Table) error {
	if err := CheckKey(key); err != nil {
		return err
	}
	data, err := encode(t)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = data
	s.Writes++
	return nil
}
