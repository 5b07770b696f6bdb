/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package pipeline

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/GoogleCloudPlatform/tabular-insights/internal/dataset"
	"gonum.org/v1/gonum/stat"
)

// DefaultGarbageTokens are the literal values treated as missing data.
// Whitespace-only strings are always treated as garbage.
var DefaultGarbageTokens = []string{"", "N/A", "n/a", "NULL", "null", "-", "--"}

// GarbageValueTreatment drops all-null and constant columns, then turns
// garbage tokens into missing values. String columns left holding only
// numbers or booleans are re-typed.
type GarbageValueTreatment struct {
	Tokens []string
}

func NewGarbageValueTreatment() GarbageValueTreatment {
	return GarbageValueTreatment{Tokens: DefaultGarbageTokens}
}

func (GarbageValueTreatment) Name() string { return "GarbageValueTreatment" }

func (g GarbageValueTreatment) Treat(t *dataset.Table) (*dataset.Table, error) {
	var drop []string
	for _, c := range t.Columns() {
		if c.AllNull() || c.Distinct() == 1 {
			drop = append(drop, c.Name)
		}
	}
	out := t.DropColumns(drop...)

	tokens := make(map[string]struct{}, len(g.Tokens))
	for _, tok := range g.Tokens {
		tokens[tok] = struct{}{}
	}
	for _, c := range out.Columns() {
		if c.Kind != dataset.KindString {
			continue
		}
		var cleaned *dataset.Column
		for i, v := range c.Values {
			s, ok := v.(string)
			if !ok || !isGarbage(s, tokens) {
				continue
			}
			if cleaned == nil {
				cleaned = c.Clone()
			}
			cleaned.Values[i] = nil
		}
		if cleaned != nil {
			out = out.WithColumn(dataset.Retype(cleaned))
		}
	}
	return out, nil
}

func isGarbage(s string, tokens map[string]struct{}) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return true
	}
	_, ok := tokens[trimmed]
	return ok
}

// MissingValueTreatment fills numeric columns with their mean and every other
// column with its most frequent value. Ties go to the value seen first.
type MissingValueTreatment struct{}

func (MissingValueTreatment) Name() string { return "MissingValueTreatment" }

func (MissingValueTreatment) Treat(t *dataset.Table) (*dataset.Table, error) {
	out := t
	for _, c := range t.Columns() {
		nulls := c.NullCount()
		if nulls == 0 || nulls == c.Len() {
			continue
		}
		var fill any
		kind := c.Kind
		if c.Kind.IsNumeric() {
			values := c.Floats()
			if len(values) != c.Len()-nulls {
				return nil, &TreatmentError{Column: c.Name, Err: fmt.Errorf("numeric column holds non-numeric values")}
			}
			mean := stat.Mean(values, nil)
			if kind == dataset.KindInteger && mean != math.Trunc(mean) {
				kind = dataset.KindFloat
			}
			fill = mean
		} else {
			fill = mode(c)
		}

		filled := c.Clone()
		filled.Kind = kind
		for i, v := range filled.Values {
			if v == nil {
				filled.Values[i] = fill
			}
		}
		out = out.WithColumn(filled)
	}
	return out, nil
}

// mode returns the most frequent non-null value, preferring the earliest on ties.
func mode(c *dataset.Column) any {
	counts := make(map[string]int)
	var order []string
	first := make(map[string]any)
	for _, v := range c.Values {
		if v == nil {
			continue
		}
		k := dataset.CellKey(v)
		if _, seen := counts[k]; !seen {
			order = append(order, k)
			first[k] = v
		}
		counts[k]++
	}
	best := ""
	for _, k := range order {
		if best == "" || counts[k] > counts[best] {
			best = k
		}
	}
	return first[best]
}

// OutlierMode selects how per-column IQR filters combine.
type OutlierMode string

const (
	// OutlierCascading filters column by column; each column's quartiles are
	// computed on the rows kept by the columns before it.
	OutlierCascading OutlierMode = "cascading"
	// OutlierIndependent computes every column's bounds on the input table and
	// keeps the rows that satisfy all of them.
	OutlierIndependent OutlierMode = "independent"
)

// DefaultIQRMultiplier is the Tukey fence factor.
const DefaultIQRMultiplier = 1.5

// OutlierTreatment removes rows whose numeric values fall outside
// [Q1-k*IQR, Q3+k*IQR]. Missing values never cause a row to be removed.
type OutlierTreatment struct {
	Multiplier float64
	Mode       OutlierMode
}

func NewOutlierTreatment() OutlierTreatment {
	return OutlierTreatment{Multiplier: DefaultIQRMultiplier, Mode: OutlierCascading}
}

func (OutlierTreatment) Name() string { return "OutlierTreatment" }

func (o OutlierTreatment) Treat(t *dataset.Table) (*dataset.Table, error) {
	k := o.Multiplier
	if k <= 0 {
		k = DefaultIQRMultiplier
	}
	switch o.Mode {
	case OutlierCascading, "":
		out := t
		for _, name := range numericColumns(t) {
			col, _ := out.Column(name)
			lo, hi, ok := IQRBounds(col.Floats(), k)
			if !ok {
				continue
			}
			out = out.SelectRows(keepWithin(col, lo, hi, nil))
		}
		return out, nil
	case OutlierIndependent:
		keep := make([]bool, t.NumRows())
		for i := range keep {
			keep[i] = true
		}
		for _, name := range numericColumns(t) {
			col, _ := t.Column(name)
			lo, hi, ok := IQRBounds(col.Floats(), k)
			if !ok {
				continue
			}
			keepWithin(col, lo, hi, keep)
		}
		var rows []int
		for i, ok := range keep {
			if ok {
				rows = append(rows, i)
			}
		}
		return t.SelectRows(rows), nil
	default:
		return nil, fmt.Errorf("unknown outlier mode %q", o.Mode)
	}
}

// keepWithin returns the rows of col inside [lo, hi] or missing. When mask is
// non-nil, rows outside the bounds are also cleared in it.
func keepWithin(col *dataset.Column, lo, hi float64, mask []bool) []int {
	rows := make([]int, 0, col.Len())
	for i, v := range col.Values {
		f, ok := v.(float64)
		if ok && (f < lo || f > hi) {
			if mask != nil {
				mask[i] = false
			}
			continue
		}
		rows = append(rows, i)
	}
	return rows
}

func numericColumns(t *dataset.Table) []string {
	var names []string
	for _, c := range t.Columns() {
		if c.Kind.IsNumeric() {
			names = append(names, c.Name)
		}
	}
	return names
}

// IQRBounds returns the fences Q1-k*IQR and Q3+k*IQR for values.
func IQRBounds(values []float64, k float64) (lo, hi float64, ok bool) {
	if len(values) == 0 {
		return 0, 0, false
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	q1 := Quantile(sorted, 0.25)
	q3 := Quantile(sorted, 0.75)
	iqr := q3 - q1
	return q1 - k*iqr, q3 + k*iqr, true
}

// Quantile returns the p-quantile of sorted data with linear interpolation
// between closest ranks (Hyndman and Fan definition 7).
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	h := float64(n-1) * p
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// DuplicateTreatment drops exact duplicate rows, keeping the first occurrence.
type DuplicateTreatment struct{}

func (DuplicateTreatment) Name() string { return "DuplicateTreatment" }

func (DuplicateTreatment) Treat(t *dataset.Table) (*dataset.Table, error) {
	seen := make(map[string]struct{}, t.NumRows())
	rows := make([]int, 0, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		key := t.RowKey(i)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		rows = append(rows, i)
	}
	if len(rows) == t.NumRows() {
		return t, nil
	}
	return t.SelectRows(rows), nil
}
