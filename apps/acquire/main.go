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

package main

import (
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"

	"github.com/stockparfait/acquire/api"
	"github.com/stockparfait/acquire/cache"
	"github.com/stockparfait/acquire/dataset"
	"github.com/stockparfait/acquire/sqldb"
	"github.com/stockparfait/acquire/table"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"

	toml "github.com/pelletier/go-toml/v2"
)

type Flags struct {
	CacheDir string // default: ~/.stockparfait/acquire
	Config   string // default: <CacheDir>/config.toml
	Store    string // disk or sqlite
	LogLevel logging.Level
	// Exactly one of dataset, list or databases must be present.
	Dataset   string
	List      bool
	Databases bool
	CSV       bool // dump CSV format; default: text.
	Rows      int  // max. rows to print; 0 = all
	Summary   bool // print numeric column statistics instead of the data
}

func parseFlags(args []string) (*Flags, error) {
	var flags Flags
	fs := flag.NewFlagSet("acquire", flag.ExitOnError)
	fs.StringVar(&flags.CacheDir, "cache",
		filepath.Join(os.Getenv("HOME"), ".stockparfait", "acquire"),
		"path to the dataset cache")
	fs.StringVar(&flags.Config, "config", "",
		"configuration file; default: config.toml in the cache directory")
	fs.StringVar(&flags.Store, "store", "disk",
		"cache storage: disk (one CSV file per dataset) or sqlite (cache.db)")
	flags.LogLevel = logging.Info
	fs.Var(&flags.LogLevel, "log-level", "Log level: debug, info, warning, error")
	fs.StringVar(&flags.Dataset, "dataset", "", "dataset to fetch and print")
	fs.BoolVar(&flags.List, "list", false, "list available datasets")
	fs.BoolVar(&flags.Databases, "databases", false, "list databases on the SQL server")
	fs.BoolVar(&flags.CSV, "csv", false, "print table in CSV format; default: text")
	fs.IntVar(&flags.Rows, "rows", 0, "max. number of rows to print; 0 = all")
	fs.BoolVar(&flags.Summary, "summary", false, "print statistics of numeric columns")

	err := fs.Parse(args)
	if err != nil {
		return nil, err
	}
	if flags.Config == "" {
		flags.Config = filepath.Join(flags.CacheDir, "config.toml")
	}
	if flags.Store != "disk" && flags.Store != "sqlite" {
		return nil, errors.Reason("-store must be disk or sqlite, got '%s'", flags.Store)
	}
	if flags.Rows < 0 {
		return nil, errors.Reason("-rows must be >= 0")
	}
	kinds := 0
	if flags.Dataset != "" {
		kinds++
	}
	if flags.List {
		kinds++
	}
	if flags.Databases {
		kinds++
	}
	if kinds != 1 {
		return nil, errors.Reason(
			"expected exactly one of -dataset, -list or -databases")
	}
	return &flags, nil
}

type APIConfig struct {
	URL      string `toml:"url"`       // default: api.URL
	MaxPages int    `toml:"max_pages"` // 0 = unlimited
}

type RemoteConfig struct {
	OPSD string `toml:"opsd"` // default: dataset.OPSDURL
}

type Config struct {
	Database *sqldb.Config `toml:"database"` // optional; required for SQL datasets
	API      APIConfig     `toml:"api"`
	Remote   RemoteConfig  `toml:"remote"`
}

const sampleConfig = `[database]
driver = "mysql"
user = "YourUserName"
password = "YourPassword"
host = "your.db.host"

[api]
url = "https://api.data.codeup.com"
`

// parseConfig reads the TOML config file. A missing file is an error, since
// at least the database credentials are expected there.
func parseConfig(filePath string) (*Config, error) {
	if _, err := os.Stat(filePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = errors.Annotate(err,
				"config file '%s' does not exist.\nPlease create config file containing:\n%s",
				filePath, sampleConfig)
			return nil, err
		} else {
			return nil, errors.Annotate(err,
				"cannot check config file for existence: '%s'", filePath)
		}
	}
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Annotate(err, "failed to open config file %s", filePath)
	}
	defer f.Close()

	d := toml.NewDecoder(f)
	var c Config
	if err := d.Decode(&c); err != nil {
		return nil, errors.Annotate(err, "failed to read config file %s", filePath)
	}
	if c.API.URL == "" {
		c.API.URL = api.URL
	}
	if c.API.MaxPages < 0 {
		return nil, errors.Reason("api.max_pages must be >= 0")
	}
	if c.Remote.OPSD == "" {
		c.Remote.OPSD = dataset.OPSDURL
	}
	return &c, nil
}

// openStore creates the cache store and a function to release it.
func openStore(ctx context.Context, flags *Flags) (cache.Store, func(), error) {
	if flags.Store == "sqlite" {
		if err := os.MkdirAll(flags.CacheDir, 0755); err != nil {
			return nil, nil, errors.Annotate(err,
				"failed to create cache directory '%s'", flags.CacheDir)
		}
		s, err := cache.NewSQLiteStore(ctx, filepath.Join(flags.CacheDir, "cache.db"))
		if err != nil {
			return nil, nil, errors.Annotate(err, "failed to open cache")
		}
		return s, func() { s.Close() }, nil
	}
	return cache.NewDiskStore(flags.CacheDir), func() {}, nil
}

func newFetcher(store cache.Store, config *Config) *dataset.Fetcher {
	client := api.NewClient(config.API.URL)
	client.MaxPages = config.API.MaxPages
	f := dataset.NewFetcher(store, config.Database, client)
	f.OPSDURL = config.Remote.OPSD
	return f
}

func listTable() *table.Table {
	tbl := table.NewTable("Dataset")
	for _, n := range dataset.Names() {
		tbl.AddRow(table.Row{table.String(n)})
	}
	return tbl
}

func printData(ctx context.Context, flags *Flags, w io.Writer) error {
	var tbl *table.Table
	if flags.List {
		tbl = listTable()
	} else {
		config, err := parseConfig(flags.Config)
		if err != nil {
			return errors.Annotate(err, "failed to parse config")
		}
		store, release, err := openStore(ctx, flags)
		if err != nil {
			return err
		}
		defer release()
		f := newFetcher(store, config)

		if flags.Databases {
			if tbl, err = f.Databases(ctx); err != nil {
				return errors.Annotate(err, "failed to list databases")
			}
		}
		if flags.Dataset != "" {
			if tbl, err = f.Get(ctx, flags.Dataset); err != nil {
				return errors.Annotate(err, "failed to get dataset %s", flags.Dataset)
			}
			if flags.Summary {
				tbl = table.Summarize(tbl)
			}
		}
	}
	if tbl == nil {
		return errors.Reason("no data")
	}
	p := table.Params{Rows: flags.Rows}
	if flags.CSV {
		if err := tbl.WriteCSV(w, p); err != nil {
			return errors.Annotate(err, "failed to print CSV")
		}
		return nil
	}
	if err := tbl.WriteText(w, p); err != nil {
		return errors.Annotate(err, "failed to print text")
	}
	return nil
}

func main() {
	ctx := context.Background()
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		ctx = logging.Use(ctx, logging.DefaultGoLogger(logging.Info))
		logging.Errorf(ctx, "failed to parse flags: %s", err.Error())
		os.Exit(1)
	}
	ctx = logging.Use(ctx, logging.DefaultGoLogger(flags.LogLevel))

	if err := printData(ctx, flags, os.Stdout); err != nil {
		logging.Errorf(ctx, "%s", err.Error())
		os.Exit(1)
	}
}
