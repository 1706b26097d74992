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

// Package sqldb runs SQL queries against a relational database and
// materializes their results as tables.
//
// Supported drivers are MySQL (the default), PostgreSQL and SQLite. The
// latter keeps each database as a file <Dir>/<database>.db, and is mostly
// useful for local copies of the data and for tests.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stockparfait/acquire/table"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Values of Config.Driver.
const (
	MySQL    = "mysql"
	Postgres = "postgres"
	SQLite   = "sqlite"
)

// Config holds the database credentials and location.
type Config struct {
	Driver   string `toml:"driver"` // default: mysql
	User     string `toml:"user"`
	Password string `toml:"password"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`    // 0 = driver's default port
	SSLMode  string `toml:"sslmode"` // postgres only
	Dir      string `toml:"dir"`     // sqlite only: the directory with database files
}

func (c *Config) driver() string {
	if c.Driver == "" {
		return MySQL
	}
	return c.Driver
}

func (c *Config) addr(defaultPort int) string {
	port := c.Port
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// DSN returns the driver name and the data source name for connecting to the
// given database.
func (c *Config) DSN(database string) (driver, dsn string, err error) {
	switch c.driver() {
	case MySQL:
		mc := mysql.NewConfig()
		mc.User = c.User
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = c.addr(3306)
		mc.DBName = database
		return "mysql", mc.FormatDSN(), nil
	case Postgres:
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(c.User, c.Password),
			Host:   c.addr(5432),
			Path:   "/" + database,
		}
		if c.SSLMode != "" {
			u.RawQuery = url.Values{"sslmode": []string{c.SSLMode}}.Encode()
		}
		return "postgres", u.String(), nil
	case SQLite:
		if database == "" || strings.ContainsAny(database, `/\`) {
			return "", "", errors.Reason("invalid sqlite database name: '%s'", database)
		}
		return "sqlite", filepath.Join(c.Dir, database+".db"), nil
	}
	return "", "", errors.Reason("unsupported driver: '%s'", c.Driver)
}

// Open a connection pool to the database. The caller is responsible for
// closing it.
func (c *Config) Open(database string) (*sql.DB, error) {
	driver, dsn, err := c.DSN(database)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Annotate(err, "failed to open %s database '%s'", driver, database)
	}
	return db, nil
}

// cell converts a scanned SQL value to a table cell. Text is parsed the same
// way as a CSV field and keeps its exact form, since MySQL returns most values
// as text.
func cell(v interface{}) table.Cell {
	switch x := v.(type) {
	case nil:
		return table.Null()
	case int64:
		return table.Number(float64(x))
	case int32:
		return table.Number(float64(x))
	case float64:
		return table.Number(x)
	case float32:
		return table.Number(float64(x))
	case bool:
		return table.Bool(x)
	case []byte:
		return table.ParseCell(string(x))
	case string:
		return table.ParseCell(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return table.String(x.Format("2006-01-02"))
		}
		return table.String(x.Format(time.RFC3339))
	}
	return table.ParseCell(fmt.Sprint(v))
}

// ReadRows materializes all the remaining rows into a table.
func ReadRows(rows *sql.Rows) (*table.Table, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.Annotate(err, "failed to read column names")
	}
	t := table.NewTable(cols...)
	values := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Annotate(err, "failed to scan row %d", len(t.Rows)+1)
		}
		row := make(table.Row, len(cols))
		for i, v := range values {
			row[i] = cell(v)
		}
		t.AddRow(row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Annotate(err, "failed to read rows")
	}
	return t, nil
}

// Query runs a single statement against the database and returns the entire
// result.
func Query(ctx context.Context, c *Config, database, query string, args ...interface{}) (*table.Table, error) {
	db, err := c.Open(database)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	logging.Debugf(ctx, "querying %s database '%s'", c.driver(), database)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Annotate(err, "query failed")
	}
	defer rows.Close()

	t, err := ReadRows(rows)
	if err != nil {
		return nil, err
	}
	logging.Debugf(ctx, "query returned %d rows with %d columns",
		len(t.Rows), len(t.Header))
	return t, nil
}

// Databases lists the databases visible with the given credentials. The
// database argument is the one to connect to, since some servers require
// one.
func Databases(ctx context.Context, c *Config, database string) (*table.Table, error) {
	switch c.driver() {
	case MySQL:
		return Query(ctx, c, database, "SHOW DATABASES")
	case Postgres:
		return Query(ctx, c, database,
			`SELECT datname AS "Database" FROM pg_database WHERE NOT datistemplate ORDER BY datname`)
	case SQLite:
		files, err := filepath.Glob(filepath.Join(c.Dir, "*.db"))
		if err != nil {
			return nil, errors.Annotate(err, "failed to list databases in '%s'", c.Dir)
		}
		sort.Strings(files)
		t := table.NewTable("Database")
		for _, f := range files {
			t.AddRow(table.Row{table.String(strings.TrimSuffix(filepath.Base(f), ".db"))})
		}
		return t, nil
	}
	return nil, errors.Reason("unsupported driver: '%s'", c.Driver)
}
