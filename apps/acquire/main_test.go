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
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stockparfait/acquire/api"
	"github.com/stockparfait/acquire/cache"
	"github.com/stockparfait/acquire/dataset"
	"github.com/stockparfait/acquire/sqldb"
	"github.com/stockparfait/acquire/table"
	"github.com/stockparfait/logging"
	"github.com/stockparfait/testutil"

	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(t *testing.T) {
	t.Parallel()

	tmpdir, tmpdirErr := os.MkdirTemp("", "test_acquire_app")
	defer os.RemoveAll(tmpdir)

	Convey("Setup succeeded", t, func() {
		So(tmpdirErr, ShouldBeNil)
	})

	Convey("parseFlags", t, func() {
		Convey("all flags", func() {
			flags, err := parseFlags([]string{
				"-cache", "path/to/cache", "-store", "sqlite",
				"-log-level", "warning", "-dataset", "items",
				"-csv", "-rows", "5", "-summary"})
			So(err, ShouldBeNil)
			So(flags.CacheDir, ShouldEqual, "path/to/cache")
			So(flags.Config, ShouldEqual, filepath.Join("path/to/cache", "config.toml"))
			So(flags.Store, ShouldEqual, "sqlite")
			So(flags.LogLevel, ShouldEqual, logging.Warning)
			So(flags.Dataset, ShouldEqual, "items")
			So(flags.CSV, ShouldBeTrue)
			So(flags.Rows, ShouldEqual, 5)
			So(flags.Summary, ShouldBeTrue)
		})

		Convey("defaults", func() {
			flags, err := parseFlags([]string{"-config", "my.toml", "-list"})
			So(err, ShouldBeNil)
			So(flags.Config, ShouldEqual, "my.toml")
			So(flags.Store, ShouldEqual, "disk")
			So(flags.LogLevel, ShouldEqual, logging.Info)
			So(flags.List, ShouldBeTrue)
		})

		Convey("exactly one action is required", func() {
			_, err := parseFlags([]string{"-cache", tmpdir})
			So(err, ShouldNotBeNil)
			_, err = parseFlags([]string{"-list", "-databases"})
			So(err, ShouldNotBeNil)
		})

		Convey("invalid values", func() {
			_, err := parseFlags([]string{"-store", "s3", "-list"})
			So(err, ShouldNotBeNil)
			_, err = parseFlags([]string{"-rows", "-1", "-list"})
			So(err, ShouldNotBeNil)
		})
	})

	Convey("parseConfig", t, func() {
		Convey("missing file prints a sample", func() {
			_, err := parseConfig(filepath.Join(tmpdir, "missing.toml"))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "Please create config file")
			So(err.Error(), ShouldContainSubstring, "[database]")
		})

		Convey("full config", func() {
			path := filepath.Join(tmpdir, "full.toml")
			So(testutil.WriteFile(path, `
[database]
driver = "postgres"
user = "me"
password = "secret"
host = "db.example.com"
port = 5433
sslmode = "disable"

[api]
url = "http://localhost:8080"
max_pages = 10

[remote]
opsd = "http://localhost:8080/opsd.csv"
`), ShouldBeNil)
			c, err := parseConfig(path)
			So(err, ShouldBeNil)
			So(c, ShouldResemble, &Config{
				Database: &sqldb.Config{
					Driver:   sqldb.Postgres,
					User:     "me",
					Password: "secret",
					Host:     "db.example.com",
					Port:     5433,
					SSLMode:  "disable",
				},
				API:    APIConfig{URL: "http://localhost:8080", MaxPages: 10},
				Remote: RemoteConfig{OPSD: "http://localhost:8080/opsd.csv"},
			})
		})

		Convey("defaults", func() {
			path := filepath.Join(tmpdir, "empty.toml")
			So(testutil.WriteFile(path, ""), ShouldBeNil)
			c, err := parseConfig(path)
			So(err, ShouldBeNil)
			So(c.Database, ShouldBeNil)
			So(c.API.URL, ShouldEqual, api.URL)
			So(c.API.MaxPages, ShouldEqual, 0)
			So(c.Remote.OPSD, ShouldEqual, dataset.OPSDURL)
		})

		Convey("invalid config", func() {
			path := filepath.Join(tmpdir, "bad.toml")
			So(testutil.WriteFile(path, "[api]\nmax_pages = -1\n"), ShouldBeNil)
			_, err := parseConfig(path)
			So(err, ShouldNotBeNil)

			So(testutil.WriteFile(path, "[api\n"), ShouldBeNil)
			_, err = parseConfig(path)
			So(err, ShouldNotBeNil)
		})
	})

	Convey("printData works", t, func() {
		ctx := context.Background()
		cacheDir := filepath.Join(tmpdir, "cache")
		So(os.MkdirAll(cacheDir, 0755), ShouldBeNil)
		So(testutil.WriteFile(filepath.Join(cacheDir, "config.toml"),
			"[api]\nurl = \"http://localhost:1\"\n"), ShouldBeNil)

		items := table.NewTable("item_id", "item_name", "item_price")
		items.AddRow(
			table.Row{table.Number(1), table.String("soap"), table.Number(2)},
			table.Row{table.Number(2), table.String("milk"), table.Null()},
			table.Row{table.Number(3), table.String("bread"), table.Number(4)},
		)

		Convey("list", func() {
			flags, err := parseFlags([]string{"-cache", cacheDir, "-list", "-csv"})
			So(err, ShouldBeNil)
			var buf bytes.Buffer
			So(printData(ctx, flags, &buf), ShouldBeNil)
			So(buf.String(), ShouldEqual,
				"Dataset\n"+strings.Join(dataset.Names(), "\n")+"\n")
		})

		Convey("cached dataset from disk", func() {
			So(cache.NewDiskStore(cacheDir).Write(ctx, dataset.Items, items), ShouldBeNil)

			Convey("all rows", func() {
				flags, err := parseFlags([]string{
					"-cache", cacheDir, "-dataset", "items", "-csv"})
				So(err, ShouldBeNil)
				var buf bytes.Buffer
				So(printData(ctx, flags, &buf), ShouldBeNil)
				So(buf.String(), ShouldEqual, `item_id,item_name,item_price
1,soap,2
2,milk,
3,bread,4
`)
			})

			Convey("limited rows as text", func() {
				flags, err := parseFlags([]string{
					"-cache", cacheDir, "-dataset", "items", "-rows", "1"})
				So(err, ShouldBeNil)
				var buf bytes.Buffer
				So(printData(ctx, flags, &buf), ShouldBeNil)
				So(buf.String(), ShouldContainSubstring, "item_name")
				So(buf.String(), ShouldContainSubstring, "soap")
				So(buf.String(), ShouldNotContainSubstring, "milk")
			})

			Convey("summary", func() {
				flags, err := parseFlags([]string{
					"-cache", cacheDir, "-dataset", "items", "-summary", "-csv"})
				So(err, ShouldBeNil)
				var buf bytes.Buffer
				So(printData(ctx, flags, &buf), ShouldBeNil)
				So(buf.String(), ShouldEqual, `Column,Count,Nulls,Mean,Std,Min,Max
item_id,3,0,2,1,1,3
item_price,2,1,3,1.4142135623730951,2,4
`)
			})
		})

		Convey("cached dataset from sqlite", func() {
			s, err := cache.NewSQLiteStore(ctx, filepath.Join(cacheDir, "cache.db"))
			So(err, ShouldBeNil)
			So(s.Write(ctx, dataset.Items, items), ShouldBeNil)
			So(s.Close(), ShouldBeNil)

			flags, err := parseFlags([]string{
				"-cache", cacheDir, "-store", "sqlite", "-dataset", "items",
				"-rows", "2", "-csv"})
			So(err, ShouldBeNil)
			var buf bytes.Buffer
			So(printData(ctx, flags, &buf), ShouldBeNil)
			So(buf.String(), ShouldEqual, `item_id,item_name,item_price
1,soap,2
2,milk,
`)
		})

		Convey("unknown dataset", func() {
			flags, err := parseFlags([]string{
				"-cache", cacheDir, "-dataset", "no_such_thing"})
			So(err, ShouldBeNil)
			var buf bytes.Buffer
			So(printData(ctx, flags, &buf), ShouldNotBeNil)
		})

		Convey("databases require a database config", func() {
			flags, err := parseFlags([]string{"-cache", cacheDir, "-databases"})
			So(err, ShouldBeNil)
			var buf bytes.Buffer
			So(printData(ctx, flags, &buf), ShouldNotBeNil)
		})
	})
}
