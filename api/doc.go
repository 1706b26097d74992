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

// Package api implements a client for paginated REST resources, such as the
// items, stores and sales endpoints of the Codeup data API.
//
// Every response is a JSON envelope of the form:
//
//   {"payload": {
//      "page": 1,
//      "max_page": 3,
//      "next_page": "/api/v1/items?page=2",
//      "items": [{...}, {...}]
//   }}
//
// where the name of the record list ("items" above) depends on the resource.
// The next_page field is a path relative to the server's base URL, and is null
// on the last page. Clients follow next_page until it is null; there is no
// bound on the number of pages unless Client.MaxPages is set.
//
// Records are JSON objects which are converted into table rows, one column per
// object key in the order the keys first appear in the response.
//
// The package also supports a single-shot download of a remote CSV file
// (FetchCSV) for datasets published as plain files.
package api
