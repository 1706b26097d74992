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

// Package dataset implements the named datasets: where each of them comes
// from and how it is cached.
//
// Every dataset follows the same pattern: if the cache has an entry for the
// dataset's name, return it; otherwise retrieve the data from its source (a
// SQL database, a paginated REST API, a remote CSV file, or a join of other
// cached datasets), cache it and return it.
package dataset

import (
	"context"

	"github.com/stockparfait/acquire/api"
	"github.com/stockparfait/acquire/cache"
	"github.com/stockparfait/acquire/sqldb"
	"github.com/stockparfait/acquire/table"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
)

// Dataset names, which are also their cache keys.
const (
	Props2017        = "props_2017"
	ZillowClusterF   = "zillow_cluster_f"
	ZillowClustering = "zillow_clustering"
	Items            = "items"
	Stores           = "stores"
	Sales            = "sales"
	SalesItemsStores = "sales_items_stores"
	OPSD             = "opsd"
)

// REST endpoints, relative to the API's base URL.
const (
	ItemsEndpoint  = "/api/v1/items"
	StoresEndpoint = "/api/v1/stores"
	SalesEndpoint  = "/api/v1/sales"
)

// OPSDURL is the default location of the Open Power System Data daily totals
// for Germany.
const OPSDURL = "https://raw.githubusercontent.com/jenfly/opsd/master/opsd_germany_daily.csv"

// InfoDB is the database to connect to when listing databases.
const InfoDB = "employees"

// Names of all the datasets, in the order they are usually fetched.
func Names() []string {
	return []string{
		Props2017,
		ZillowClusterF,
		ZillowClustering,
		Items,
		Stores,
		Sales,
		SalesItemsStores,
		OPSD,
	}
}

// Fetcher retrieves and caches the datasets. The collaborators needed only by
// some datasets may be nil, in which case those datasets fail to fetch (but
// can still be read from the cache).
type Fetcher struct {
	Store   cache.Store
	DB      *sqldb.Config // for the SQL datasets
	API     *api.Client   // for the REST datasets
	OPSDURL string        // default: OPSDURL
}

// NewFetcher creates a Fetcher with the default remote file URL.
func NewFetcher(store cache.Store, db *sqldb.Config, client *api.Client) *Fetcher {
	return &Fetcher{Store: store, DB: db, API: client, OPSDURL: OPSDURL}
}

// Get the named dataset.
func (f *Fetcher) Get(ctx context.Context, name string) (*table.Table, error) {
	routines := map[string]func(context.Context) (*table.Table, error){
		Props2017:        f.Props2017,
		ZillowClusterF:   f.ZillowClusterF,
		ZillowClustering: f.ZillowClustering,
		Items:            f.Items,
		Stores:           f.Stores,
		Sales:            f.Sales,
		SalesItemsStores: f.SalesItemsStores,
		OPSD:             f.OPSD,
	}
	get, ok := routines[name]
	if !ok {
		return nil, errors.Reason("unknown dataset '%s'", name)
	}
	return get(ctx)
}

func (f *Fetcher) query(ctx context.Context, key, database, query string) (*table.Table, error) {
	return cache.GetOrFetch(ctx, f.Store, key, func(ctx context.Context) (*table.Table, error) {
		if f.DB == nil {
			return nil, errors.Reason("no database configured")
		}
		return sqldb.Query(ctx, f.DB, database, query)
	})
}

func (f *Fetcher) rest(ctx context.Context, key, endpoint, resource string) (*table.Table, error) {
	return cache.GetOrFetch(ctx, f.Store, key, func(ctx context.Context) (*table.Table, error) {
		if f.API == nil {
			return nil, errors.Reason("no API client configured")
		}
		return f.API.FetchTable(ctx, endpoint, resource)
	})
}

// Props2017 returns the main features of the properties sold in 2017.
func (f *Fetcher) Props2017(ctx context.Context) (*table.Table, error) {
	return f.query(ctx, Props2017, ZillowDB, props2017Query)
}

// ZillowClusterF returns all the property data with the lookup tables joined,
// for properties with a transaction in 2017.
func (f *Fetcher) ZillowClusterF(ctx context.Context) (*table.Table, error) {
	return f.query(ctx, ZillowClusterF, ZillowDB, zillowClusterFQuery)
}

// ZillowClustering returns the property data with the latest transaction per
// property and the lookup descriptions.
func (f *Fetcher) ZillowClustering(ctx context.Context) (*table.Table, error) {
	return f.query(ctx, ZillowClustering, ZillowDB, zillowClusteringQuery)
}

// Items returns all the store items.
func (f *Fetcher) Items(ctx context.Context) (*table.Table, error) {
	return f.rest(ctx, Items, ItemsEndpoint, "items")
}

// Stores returns all the stores.
func (f *Fetcher) Stores(ctx context.Context) (*table.Table, error) {
	return f.rest(ctx, Stores, StoresEndpoint, "stores")
}

// Sales returns all the sales records.
func (f *Fetcher) Sales(ctx context.Context) (*table.Table, error) {
	return f.rest(ctx, Sales, SalesEndpoint, "sales")
}

// readCached reads a dataset which must already be in the cache.
func (f *Fetcher) readCached(ctx context.Context, key string) (*table.Table, error) {
	ok, err := f.Store.Exists(ctx, key)
	if err != nil {
		return nil, errors.Annotate(err, "failed to check cache for '%s'", key)
	}
	if !ok {
		return nil, errors.Reason("dataset '%s' is not cached, fetch it first", key)
	}
	return f.Store.Read(ctx, key)
}

// SalesItemsStores returns the sales joined with their items and stores. The
// sales, items and stores datasets must already be cached.
func (f *Fetcher) SalesItemsStores(ctx context.Context) (*table.Table, error) {
	return cache.GetOrFetch(ctx, f.Store, SalesItemsStores, func(ctx context.Context) (*table.Table, error) {
		sales, err := f.readCached(ctx, Sales)
		if err != nil {
			return nil, err
		}
		items, err := f.readCached(ctx, Items)
		if err != nil {
			return nil, err
		}
		stores, err := f.readCached(ctx, Stores)
		if err != nil {
			return nil, err
		}
		sales = sales.Rename(map[string]string{"item": "item_id", "store": "store_id"})
		stores = stores.Rename(map[string]string{"store": "store_id"})

		logging.Infof(ctx, "joining %d sales with %d items and %d stores",
			len(sales.Rows), len(items.Rows), len(stores.Rows))
		res, err := table.LeftJoin(sales, items, "item_id")
		if err != nil {
			return nil, errors.Annotate(err, "failed to join sales with items")
		}
		res, err = table.LeftJoin(res, stores, "store_id")
		if err != nil {
			return nil, errors.Annotate(err, "failed to join sales with stores")
		}
		return res, nil
	})
}

// OPSD returns the daily electricity consumption and production in Germany.
func (f *Fetcher) OPSD(ctx context.Context) (*table.Table, error) {
	return cache.GetOrFetch(ctx, f.Store, OPSD, func(ctx context.Context) (*table.Table, error) {
		uri := f.OPSDURL
		if uri == "" {
			uri = OPSDURL
		}
		return api.FetchCSV(ctx, uri)
	})
}

// Databases lists the databases available with the configured credentials.
// The list is not cached.
func (f *Fetcher) Databases(ctx context.Context) (*table.Table, error) {
	if f.DB == nil {
		return nil, errors.Reason("no database configured")
	}
	return sqldb.Databases(ctx, f.DB, InfoDB)
}
