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
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SummaryHeader is the header of the table created by Summarize.
func SummaryHeader() []string {
	return []string{"Column", "Count", "Nulls", "Mean", "Std", "Min", "Max"}
}

// Summarize computes basic statistics of every numeric column of t. A column
// is numeric when it has at least one number and no strings. Std is the
// unbiased sample standard deviation, NaN for a single sample.
func Summarize(t *Table) *Table {
	res := NewTable(SummaryHeader()...)
	for i, name := range t.Header {
		var xs []float64
		nulls := 0
		numeric := true
		for _, r := range t.Rows {
			c := cellAt(r, i)
			if c.IsNull() {
				nulls++
				continue
			}
			x, ok := c.Float()
			if !ok {
				numeric = false
				break
			}
			xs = append(xs, x)
		}
		if !numeric || len(xs) == 0 {
			continue
		}
		mean, std := stat.MeanStdDev(xs, nil)
		res.AddRow(Row{
			String(name),
			Number(float64(len(xs))),
			Number(float64(nulls)),
			Number(mean),
			Number(std),
			Number(floats.Min(xs)),
			Number(floats.Max(xs)),
		})
	}
	return res
}
