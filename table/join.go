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

package table

import (
	"github.com/stockparfait/errors"
	"github.com/stockparfait/iterator"
	"golang.org/x/exp/slices"
)

// Suffixes appended to the non-key columns present in both tables of a join.
const (
	LeftSuffix  = "_x"
	RightSuffix = "_y"
)

// cellAt returns the i'th cell of the row, or null if the row is too short.
func cellAt(r Row, i int) Cell {
	if i < len(r) {
		return r[i]
	}
	return Null()
}

// joinKey identifies the cell's value regardless of its text, so that e.g.
// "7" and "7.0" match.
func joinKey(c Cell) Cell {
	if x, ok := c.Float(); ok {
		return Number(x)
	}
	return c
}

// LeftJoin merges two tables on the key column, keeping every row of the left
// table in its original order. A left row matching several right rows appears
// once per match; a row with no match gets null values for all the right
// columns. Null keys never match.
//
// The result has all the left columns followed by the right columns except
// the key. Non-key columns present in both tables are suffixed with
// LeftSuffix and RightSuffix respectively.
func LeftJoin(left, right *Table, key string) (*Table, error) {
	lk := left.ColumnIndex(key)
	if lk < 0 {
		return nil, errors.Reason("left table has no key column '%s'", key)
	}
	rk := right.ColumnIndex(key)
	if rk < 0 {
		return nil, errors.Reason("right table has no key column '%s'", key)
	}
	var header []string
	for _, h := range left.Header {
		if h != key && slices.Contains(right.Header, h) {
			h += LeftSuffix
		}
		header = append(header, h)
	}
	rightCols := []int{}
	for i, h := range right.Header {
		if i == rk {
			continue
		}
		if slices.Contains(left.Header, h) {
			h += RightSuffix
		}
		header = append(header, h)
		rightCols = append(rightCols, i)
	}

	index := iterator.Reduce[Row, map[Cell][]Row](
		iterator.FromSlice(right.Rows), map[Cell][]Row{},
		func(r Row, m map[Cell][]Row) map[Cell][]Row {
			if k := cellAt(r, rk); !k.IsNull() {
				m[joinKey(k)] = append(m[joinKey(k)], r)
			}
			return m
		})

	res := NewTable(header...)
	for _, l := range left.Rows {
		base := make(Row, len(left.Header))
		for i := range base {
			base[i] = cellAt(l, i)
		}
		k := cellAt(l, lk)
		matches := index[joinKey(k)]
		if k.IsNull() || len(matches) == 0 {
			row := append(base, make(Row, len(rightCols))...)
			res.AddRow(row)
			continue
		}
		for _, r := range matches {
			row := make(Row, 0, len(header))
			row = append(row, base...)
			for _, i := range rightCols {
				row = append(row, cellAt(r, i))
			}
			res.AddRow(row)
		}
	}
	return res, nil
}
