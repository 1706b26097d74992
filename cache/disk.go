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

package cache

import (
	"context"
	"os"
	"path/filepath"

	"github.com/stockparfait/acquire/table"
	"github.com/stockparfait/errors"
)

// DiskStore keeps each dataset as a CSV file <Dir>/<key>.csv.
type DiskStore struct {
	Dir string
}

var _ Store = &DiskStore{}

// NewDiskStore creates a store in the given directory. The directory is
// created on the first write.
func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{Dir: dir}
}

// Path to the cache file for the key.
func (s *DiskStore) Path(key string) string {
	return filepath.Join(s.Dir, key+".csv")
}

// Exists implements Store.
func (s *DiskStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := CheckKey(key); err != nil {
		return false, err
	}
	_, err := os.Stat(s.Path(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, errors.Annotate(err, "cannot check cache file for existence: '%s'",
		s.Path(key))
}

// Read implements Store.
func (s *DiskStore) Read(ctx context.Context, key string) (*table.Table, error) {
	if err := CheckKey(key); err != nil {
		return nil, err
	}
	fileName := s.Path(key)
	f, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Annotate(err, "failed to open file for reading: '%s'", fileName)
	}
	defer f.Close()
	t, err := table.ReadCSV(f)
	if err != nil {
		return nil, errors.Annotate(err, "failed to read from '%s'", fileName)
	}
	return t, nil
}

// Write implements Store. The data is first written to a temporary file which
// is then renamed, so the cache file is either complete or absent.
func (s *DiskStore) Write(ctx context.Context, key string, t *table.Table) error {
	if err := CheckKey(key); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return errors.Annotate(err, "failed to create cache directory '%s'", s.Dir)
	}
	fileName := s.Path(key)
	f, err := os.CreateTemp(s.Dir, "."+key+".*.tmp")
	if err != nil {
		return errors.Annotate(err, "failed to create a temporary file for '%s'", fileName)
	}
	tmpName := f.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := t.WriteCSV(f, table.Params{}); err != nil {
		f.Close()
		return errors.Annotate(err, "failed to write to '%s'", tmpName)
	}
	if err := f.Close(); err != nil {
		return errors.Annotate(err, "failed to close '%s'", tmpName)
	}
	if err := os.Rename(tmpName, fileName); err != nil {
		return errors.Annotate(err, "failed to rename '%s' to '%s'", tmpName, fileName)
	}
	return nil
}
