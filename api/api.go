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

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/stockparfait/acquire/table"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/fetch"
	"github.com/stockparfait/logging"
)

// URL is the default base URL of the server.
const URL = "https://api.data.codeup.com"

// Client for querying paginated resources.
type Client struct {
	baseURL  string // the base URL of the server, without a trailing slash
	MaxPages int    // max. number of pages to follow; 0 = unlimited
}

// NewClient creates a new client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/")}
}

// BaseURL of the server.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Value is an arbitrary JSON value of a record field.
type Value interface{}

// Record is a single JSON object from the response, with its keys in the
// original order.
type Record struct {
	Keys   []string
	Values map[string]Value
}

var _ json.Unmarshaler = &Record{}

// NewRecord creates a record from alternating keys and values, for use in
// tests.
func NewRecord(kv ...Value) Record {
	r := Record{Values: make(map[string]Value)}
	for i := 0; i+1 < len(kv); i += 2 {
		k := kv[i].(string)
		r.Keys = append(r.Keys, k)
		r.Values[k] = kv[i+1]
	}
	return r
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return errors.Annotate(err, "failed to read record")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.Reason("record is not a JSON object: %s", string(data))
	}
	r.Keys = nil
	r.Values = make(map[string]Value)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return errors.Annotate(err, "failed to read record key")
		}
		k, ok := tok.(string)
		if !ok {
			return errors.Reason("unexpected record key: %v", tok)
		}
		var v Value
		if err := dec.Decode(&v); err != nil {
			return errors.Annotate(err, "failed to read value of '%s'", k)
		}
		if _, ok := r.Values[k]; !ok {
			r.Keys = append(r.Keys, k)
		}
		r.Values[k] = v
	}
	return nil
}

// MarshalJSON implements json.Marshaler, preserving the order of the keys.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(r.Values[k])
		if err != nil {
			return nil, errors.Annotate(err, "failed to marshal value of '%s'", k)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Page is a single decoded response of a paginated resource.
type Page struct {
	URL      string // the URL the page was fetched from
	Number   int
	MaxPage  int
	NextPage string // empty on the last page
	Records  []Record
}

// envelope is the raw format of a response.
type envelope struct {
	Payload map[string]json.RawMessage `json:"payload"`
}

// TestPage generates the JSON string in a format as returned by the API. For
// use in tests.
func TestPage(resource string, page, maxPage int, next string, records []Record) (string, error) {
	payload := map[string]interface{}{
		"page":      page,
		"max_page":  maxPage,
		"next_page": nil,
		resource:    records,
	}
	if next != "" {
		payload["next_page"] = next
	}
	b, err := json.Marshal(map[string]interface{}{"payload": payload})
	return string(b), err
}

func (e *envelope) decode(resource string) (*Page, error) {
	if e.Payload == nil {
		return nil, errors.Reason("malformed response: no payload")
	}
	var p Page
	field := func(name string, v interface{}) error {
		raw, ok := e.Payload[name]
		if !ok {
			return nil
		}
		if err := json.Unmarshal(raw, v); err != nil {
			return errors.Annotate(err, "malformed response: bad '%s'", name)
		}
		return nil
	}
	if err := field("page", &p.Number); err != nil {
		return nil, err
	}
	if err := field("max_page", &p.MaxPage); err != nil {
		return nil, err
	}
	var next *string
	if err := field("next_page", &next); err != nil {
		return nil, err
	}
	if next != nil {
		p.NextPage = *next
	}
	raw, ok := e.Payload[resource]
	if !ok {
		return nil, errors.Reason("malformed response: no '%s' in payload", resource)
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, errors.Reason("malformed response: '%s' is null", resource)
	}
	if err := field(resource, &p.Records); err != nil {
		return nil, err
	}
	return &p, nil
}

// resolve splits an endpoint such as "/api/v1/items?page=2" into the full URL
// without the query, and the query values.
func (c *Client) resolve(endpoint string) (string, url.Values, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", nil, errors.Annotate(err, "invalid endpoint '%s'", endpoint)
	}
	query := u.Query()
	u.RawQuery = ""
	u.Fragment = ""
	if u.IsAbs() {
		return u.String(), query, nil
	}
	path := u.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path, query, nil
}

// FetchPage fetches and decodes a single page of the resource at endpoint.
func (c *Client) FetchPage(ctx context.Context, endpoint, resource string) (*Page, error) {
	uri, query, err := c.resolve(endpoint)
	if err != nil {
		return nil, err
	}
	if len(query) == 0 {
		query = nil
	}
	var e envelope
	if err := fetch.FetchJSON(ctx, uri, &e, query, nil); err != nil {
		return nil, errors.Annotate(err, "failed to fetch URL")
	}
	p, err := e.decode(resource)
	if err != nil {
		return nil, errors.Annotate(err, "failed to decode %s", endpoint)
	}
	p.URL = uri
	if len(query) > 0 {
		p.URL += "?" + query.Encode()
	}
	return p, nil
}

// PageIterator follows the next_page links of a resource, one page at a time.
type PageIterator struct {
	client    *Client
	resource  string
	endpoint  string // the next page to fetch; empty when done
	pageCount int    // pages fetched so far
}

// Pages creates an iterator over the pages of the resource starting at
// endpoint.
func (c *Client) Pages(endpoint, resource string) *PageIterator {
	return &PageIterator{client: c, resource: resource, endpoint: endpoint}
}

// Next fetches the next page. It returns nil page and nil error when there
// are no more pages.
func (it *PageIterator) Next(ctx context.Context) (*Page, error) {
	if it.endpoint == "" {
		return nil, nil
	}
	if limit := it.client.MaxPages; limit > 0 && it.pageCount >= limit {
		return nil, errors.Reason("exceeded the limit of %d pages at %s",
			limit, it.endpoint)
	}
	p, err := it.client.FetchPage(ctx, it.endpoint, it.resource)
	if err != nil {
		return nil, errors.Annotate(err, "failed to fetch page %d", it.pageCount+1)
	}
	it.pageCount++
	it.endpoint = p.NextPage
	logging.Infof(ctx, "got page %d of %d: %s", p.Number, p.MaxPage, p.URL)
	return p, nil
}

// FetchAll fetches all the pages of the resource starting at endpoint and
// returns all of their records in order.
func (c *Client) FetchAll(ctx context.Context, endpoint, resource string) ([]Record, error) {
	var records []Record
	it := c.Pages(endpoint, resource)
	for {
		p, err := it.Next(ctx)
		if err != nil {
			return nil, errors.Annotate(err, "failed to fetch %s", resource)
		}
		if p == nil {
			break
		}
		records = append(records, p.Records...)
	}
	logging.Debugf(ctx, "fetched %d %s in %d pages", len(records), resource, it.pageCount)
	return records, nil
}

// FetchTable fetches all the pages of the resource and converts the records
// into a table.
func (c *Client) FetchTable(ctx context.Context, endpoint, resource string) (*table.Table, error) {
	records, err := c.FetchAll(ctx, endpoint, resource)
	if err != nil {
		return nil, err
	}
	return RecordsTable(records)
}

// cell converts a JSON value to a table cell. Numbers and strings are parsed
// the same way as CSV fields, keeping their text, so that a fetched table
// equals its cached copy. Objects and arrays are kept as their compact JSON
// text.
func cell(v Value) (table.Cell, error) {
	switch x := v.(type) {
	case nil:
		return table.Null(), nil
	case json.Number:
		return table.ParseCell(string(x)), nil
	case float64:
		return table.Number(x), nil
	case string:
		return table.ParseCell(x), nil
	case bool:
		return table.Bool(x), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return table.Null(), errors.Annotate(err, "failed to marshal %v", v)
	}
	return table.String(string(b)), nil
}

// RecordsTable converts records to a table. The columns are the union of all
// the record keys in the order of their first appearance; missing fields are
// null.
func RecordsTable(records []Record) (*table.Table, error) {
	var header []string
	seen := make(map[string]struct{})
	for _, r := range records {
		for _, k := range r.Keys {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				header = append(header, k)
			}
		}
	}
	t := table.NewTable(header...)
	for i, r := range records {
		row := make(table.Row, len(header))
		for j, k := range header {
			v, ok := r.Values[k]
			if !ok {
				continue
			}
			c, err := cell(v)
			if err != nil {
				return nil, errors.Annotate(err, "record %d, field '%s'", i, k)
			}
			row[j] = c
		}
		t.AddRow(row)
	}
	return t, nil
}

// FetchCSV downloads a CSV file with a header line and parses it into a
// table.
func FetchCSV(ctx context.Context, uri string) (*table.Table, error) {
	resp, err := fetch.GetRetry(ctx, uri, nil, nil)
	if err != nil {
		return nil, errors.Annotate(err, "failed to initiate download")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Reason("download of %s failed with status %s", uri, resp.Status)
	}
	t, err := table.ReadCSV(resp.Body)
	if err != nil {
		return nil, errors.Annotate(err, "failed to parse CSV from %s", uri)
	}
	logging.Infof(ctx, "downloaded %d rows from %s", len(t.Rows), uri)
	return t, nil
}
