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
	"bytes"
	"context"
	"database/sql"
	"time"

	"github.com/stockparfait/acquire/table"
	"github.com/stockparfait/errors"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS datasets (
	name       TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	rows       INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL
)`

// SQLiteStore keeps all the datasets in a single SQLite database file, one
// CSV blob per dataset.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Store = &SQLiteStore{}

// NewSQLiteStore opens (and creates, if necessary) the database at path. Call
// Close when done.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Annotate(err, "failed to open cache database '%s'", path)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, errors.Annotate(err, "failed to create cache table in '%s'", path)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Close the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Exists implements Store.
func (s *SQLiteStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := CheckKey(key); err != nil {
		return false, err
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM datasets WHERE name = ?", key).Scan(&n)
	if err != nil {
		return false, errors.Annotate(err, "failed to query '%s'", s.path)
	}
	return n > 0, nil
}

// Read implements Store.
func (s *SQLiteStore) Read(ctx context.Context, key string) (*table.Table, error) {
	if err := CheckKey(key); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM datasets WHERE name = ?", key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Reason("no entry for '%s' in '%s'", key, s.path)
	}
	if err != nil {
		return nil, errors.Annotate(err, "failed to read '%s' from '%s'", key, s.path)
	}
	return table.ReadCSV(bytes.NewReader(data))
}

// Write implements Store.
func (s *SQLiteStore) Write(ctx context.Context, key string, t *table.Table) error {
	if err := CheckKey(key); err != nil {
		return err
	}
	data, err := encode(t)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO datasets (name, data, rows, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   data = excluded.data, rows = excluded.rows, created_at = excluded.created_at`,
		key, data, len(t.Rows), time.Now().UTC())
	if err != nil {
		return errors.Annotate(err, "failed to write '%s' to '%s'", key, s.path)
	}
	return nil
}
