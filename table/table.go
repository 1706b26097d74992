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

// Package table implements a schema-less tabular dataset: named columns and
// rows of cells, with CSV import / export and a few relational helpers.
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/stockparfait/errors"
	"golang.org/x/exp/slices"
)

// CellKind is the enum for the type of value stored in a Cell.
type CellKind int

// Values of CellKind.
const (
	NullCell CellKind = iota
	StringCell
	NumberCell
)

// Cell of a table Row which is a union of null, string or number (float64).
// A number keeps the text it was parsed from, which is what String returns,
// so that a value read from a source is written out unchanged. The zero value
// is a null cell.
type Cell struct {
	Kind   CellKind
	number float64
	text   string
}

// Null creates a null (missing value) cell.
func Null() Cell {
	return Cell{}
}

// String creates a string cell.
func String(s string) Cell {
	return Cell{Kind: StringCell, text: s}
}

// Number creates a numeric cell printed in the shortest form that parses
// back to n.
func Number(n float64) Cell {
	return Cell{Kind: NumberCell, number: n, text: strconv.FormatFloat(n, 'f', -1, 64)}
}

// Bool creates a string cell "true" or "false".
func Bool(b bool) Cell {
	return String(strconv.FormatBool(b))
}

// ParseCell converts a CSV field to a Cell: an empty field is null, a field
// that parses as a float is a number, and anything else is a string. The
// field's text is preserved either way, e.g. "007" is the number 7 printed as
// "007".
func ParseCell(s string) Cell {
	if s == "" {
		return Null()
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return Cell{Kind: NumberCell, number: n, text: s}
	}
	return String(s)
}

// IsNull checks if the cell holds no value.
func (c Cell) IsNull() bool {
	return c.Kind == NullCell
}

// Float returns the numeric value of the cell, if it is a number.
func (c Cell) Float() (float64, bool) {
	if c.Kind != NumberCell {
		return 0, false
	}
	return c.number, true
}

// String representation of the cell, as written to CSV. Null is an empty
// string.
func (c Cell) String() string {
	return c.text
}

// Row of cells.
type Row []Cell

// CSV returns an encoding/csv compatible row representation.
func (r Row) CSV() []string {
	res := make([]string, len(r))
	for i, c := range r {
		res[i] = c.String()
	}
	return res
}

// Table container.
//
// A typical use:
//   t := NewTable("Name", "Age")
//   t.AddRow(Row{String("John"), Number(25)}, Row{String("Jane"), Number(24)})
type Table struct {
	Header []string // optional, may be nil
	Rows   []Row
}

// NewTable creates a new Table instance with optional column headers.  It is
// expected that, when present, the number of column headers is the same as the
// number of elements in each Row.
func NewTable(header ...string) *Table {
	return &Table{Header: header}
}

// AddRow adds one or more rows to the table.
func (t *Table) AddRow(rows ...Row) {
	t.Rows = append(t.Rows, rows...)
}

// ColumnIndex returns the index of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	return slices.Index(t.Header, name)
}

// Rename returns a shallow copy of the table with the columns renamed
// according to the map {old name -> new name}. Columns not in the map keep
// their names. The rows are shared with the original table.
func (t *Table) Rename(names map[string]string) *Table {
	header := make([]string, len(t.Header))
	for i, h := range t.Header {
		if n, ok := names[h]; ok {
			header[i] = n
		} else {
			header[i] = h
		}
	}
	return &Table{Header: header, Rows: t.Rows}
}

// Params are parameters for pretty-printing or CSV export of Table data.
type Params struct {
	Rows        int  // max. number of rows to write; 0 = unlimited (default)
	NoHeader    bool // whether to print the header, default - yes
	MaxColWidth int  // for WriteText only; 0 = unlimited, otherwise must be >= 4
}

// WriteCSV writes the entire table to w in CSV format.
func (t *Table) WriteCSV(w io.Writer, p Params) error {
	cw := csv.NewWriter(w)
	if !p.NoHeader && len(t.Header) > 0 {
		if err := cw.Write(t.Header); err != nil {
			return errors.Annotate(err, "failed to write header")
		}
	}
	for i, r := range t.Rows {
		if p.Rows > 0 && i >= p.Rows {
			break
		}
		rec := r.CSV()
		if len(rec) == 1 && rec[0] == "" {
			// encoding/csv writes an empty line which the reader skips.
			cw.Flush()
			if err := cw.Error(); err != nil {
				return errors.Annotate(err, "failed to flush written rows")
			}
			if _, err := io.WriteString(w, "\"\"\n"); err != nil {
				return errors.Annotate(err, "failed to write row")
			}
			continue
		}
		if err := cw.Write(rec); err != nil {
			return errors.Annotate(err, "failed to write row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Annotate(err, "failed to flush written rows")
	}
	return nil
}

// ReadCSV reads a table in CSV format with a header line, as written by
// WriteCSV. Every row must have as many fields as the header.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return NewTable(), nil
	}
	if err != nil {
		return nil, errors.Annotate(err, "failed to read CSV header")
	}
	t := NewTable(header...)
	for line := 2; ; line++ {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Annotate(err, "failed to read CSV row %d", line)
		}
		row := make(Row, len(fields))
		for i, f := range fields {
			row[i] = ParseCell(f)
		}
		t.AddRow(row)
	}
	return t, nil
}

// WriteText writes the table as a text formatted for ease of reading.
func (t *Table) WriteText(w io.Writer, p Params) error {
	if p.MaxColWidth != 0 && p.MaxColWidth < 4 {
		return errors.Reason("MaxColWidth [%d] must be 0 or >= 4", p.MaxColWidth)
	}
	var widths []int
	update := func(row []string) error {
		if len(row) == 0 {
			return errors.Reason("row size = 0")
		}
		if len(widths) == 0 {
			widths = make([]int, len(row))
		}
		if len(row) != len(widths) {
			return errors.Reason("row size [%d] != expected size [%d]",
				len(row), len(widths))
		}
		for i := range widths {
			if l := len([]rune(row[i])); widths[i] < l {
				widths[i] = l
				if p.MaxColWidth > 0 && widths[i] > p.MaxColWidth {
					widths[i] = p.MaxColWidth
				}
			}
		}
		return nil
	}

	write := func(row []string) error {
		trimmed := make([]string, len(row))
		for i, s := range row {
			trimmed[i] = s
			if len([]rune(s)) > widths[i] {
				r := []rune(s)[:widths[i]-2]
				trimmed[i] = string(r) + ".."
			}
			trimmed[i] = fmt.Sprintf("%[2]*[1]s", trimmed[i], widths[i])
		}
		_, err := fmt.Fprintf(w, "%s\n", strings.Join(trimmed, " | "))
		return err
	}

	dashedRow := func() []string {
		row := make([]string, len(widths))
		for i, w := range widths {
			row[i] = strings.Repeat("-", w)
		}
		return row
	}

	if !p.NoHeader && len(t.Header) > 0 {
		if err := update(t.Header); err != nil {
			return errors.Annotate(err, "failed to update header widths")
		}
	}
	for i, r := range t.Rows {
		if p.Rows > 0 && i >= p.Rows {
			break
		}
		if err := update(r.CSV()); err != nil {
			return errors.Annotate(err, "failed to update row widths")
		}
	}

	if !p.NoHeader && len(t.Header) > 0 {
		if err := write(t.Header); err != nil {
			return errors.Annotate(err, "failed to write header")
		}
		if err := write(dashedRow()); err != nil {
			return errors.Annotate(err, "failed to write header separator")
		}
	}
	for i, r := range t.Rows {
		if p.Rows > 0 && i >= p.Rows {
			break
		}
		if err := write(r.CSV()); err != nil {
			return errors.Annotate(err, "failed to write row")
		}
	}
	return nil
}
