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

// Package profiler computes per-column statistics, roles and the correlation
// structure of a table.
package profiler

import (
	"math"
	"runtime"

	"github.com/GoogleCloudPlatform/tabular-insights/internal/classifier"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/dataset"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	DefaultCorrelationThreshold = 0.5
	DefaultSampleSize           = 5
	identifierUniqueness        = 0.9
)

// Profiler builds DataProfiles. It holds configuration only.
type Profiler struct {
	types       classifier.TypeMap
	threshold   float64
	sampleSize  int
	parallelism int
	logger      *zap.Logger
}

type Option func(*Profiler)

// WithTypes attaches semantic types to the column profiles.
func WithTypes(m classifier.TypeMap) Option {
	return func(p *Profiler) {
		p.types = m
	}
}

// WithCorrelationThreshold reports pairs whose absolute coefficient exceeds t.
func WithCorrelationThreshold(t float64) Option {
	return func(p *Profiler) {
		p.threshold = t
	}
}

func WithSampleSize(n int) Option {
	return func(p *Profiler) {
		p.sampleSize = n
	}
}

func WithParallelism(n int) Option {
	return func(p *Profiler) {
		if n > 0 {
			p.parallelism = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Profiler) {
		p.logger = l
	}
}

func New(opts ...Option) *Profiler {
	p := &Profiler{
		threshold:   DefaultCorrelationThreshold,
		sampleSize:  DefaultSampleSize,
		parallelism: runtime.GOMAXPROCS(0),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Profile computes a fresh profile of t. A nil table yields an empty profile.
func (p *Profiler) Profile(t *dataset.Table) *DataProfile {
	out := &DataProfile{
		RowCount:          t.NumRows(),
		ColumnCount:       t.NumCols(),
		ColumnProfiles:    []ColumnProfile{},
		TypeDistribution:  []TypeCount{},
		BinaryColumns:     []string{},
		TimeSeriesColumns: []string{},
		CorrelatedPairs:   []CorrelatedPair{},
		SampleRows:        [][]any{},
	}
	if t == nil {
		return out
	}

	cols := t.Columns()
	profiles := make([]ColumnProfile, len(cols))
	var g errgroup.Group
	g.SetLimit(p.parallelism)
	for i, col := range cols {
		g.Go(func() error {
			profiles[i] = p.profileColumn(col, out.RowCount)
			return nil
		})
	}
	_ = g.Wait()
	out.ColumnProfiles = profiles

	for _, cp := range profiles {
		if cp.IsBinary {
			out.BinaryColumns = append(out.BinaryColumns, cp.Name)
		}
		if cp.IsTimeSeries {
			out.TimeSeriesColumns = append(out.TimeSeriesColumns, cp.Name)
		}
	}
	out.TypeDistribution = typeDistribution(cols)
	out.CorrelatedPairs = p.correlations(cols)
	out.SampleRows = t.Head(p.sampleSize)

	p.logger.Debug("profiled table",
		zap.Int("rows", out.RowCount),
		zap.Int("columns", out.ColumnCount),
		zap.Int("correlatedPairs", len(out.CorrelatedPairs)),
	)
	return out
}

func (p *Profiler) profileColumn(col *dataset.Column, rows int) ColumnProfile {
	cp := ColumnProfile{
		Name:         col.Name,
		DeclaredType: col.Kind,
		Cardinality:  col.Distinct(),
		MissingCount: col.NullCount(),
		IsTimeSeries: col.Kind == dataset.KindDatetime,
	}
	if st, ok := p.types.Get(col.Name); ok {
		cp.SemanticType = st
	}
	if rows > 0 {
		cp.UniquenessRatio = float64(cp.Cardinality) / float64(rows)
		cp.MissingPercentage = float64(cp.MissingCount) / float64(rows) * 100
	}
	cp.IsBinary = cp.Cardinality == 2
	cp.InferredRoles = []Role{inferRole(cp, col.Kind)}
	if col.Kind.IsNumeric() {
		cp.Statistics = describe(col.Floats())
	}
	return cp
}

// inferRole picks the single role with the highest priority.
func inferRole(cp ColumnProfile, kind dataset.Kind) Role {
	switch {
	case cp.IsTimeSeries:
		return RoleTimestamp
	case cp.IsBinary:
		return RoleBinaryClass
	case cp.UniquenessRatio > identifierUniqueness:
		return RoleIdentifier
	case kind.IsNumeric():
		return RoleMeasure
	default:
		return RoleDimension
	}
}

// describe uses the sample standard deviation and the bias-corrected
// skewness and excess kurtosis estimators.
func describe(values []float64) Statistics {
	zeros := 0
	for _, v := range values {
		if v == 0 {
			zeros++
		}
	}
	st := Statistics{ZeroCount: &zeros}
	n := len(values)
	if n == 0 {
		return st
	}
	st.Mean = finite(stat.Mean(values, nil))
	st.Min = finite(floats.Min(values))
	st.Max = finite(floats.Max(values))
	if n < 2 {
		return st
	}
	std := stat.StdDev(values, nil)
	st.Std = finite(std)
	if std == 0 {
		return st
	}
	if n >= 3 {
		st.Skewness = finite(stat.Skew(values, nil))
	}
	if n >= 4 {
		st.Kurtosis = finite(stat.ExKurtosis(values, nil))
	}
	return st
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func typeDistribution(cols []*dataset.Column) []TypeCount {
	counts := make(map[dataset.Kind]int)
	var order []dataset.Kind
	for _, c := range cols {
		if _, ok := counts[c.Kind]; !ok {
			order = append(order, c.Kind)
		}
		counts[c.Kind]++
	}
	out := make([]TypeCount, 0, len(order))
	for _, k := range order {
		out = append(out, TypeCount{
			Type:       k,
			Count:      counts[k],
			Percentage: round(float64(counts[k])/float64(len(cols))*100, 2),
		})
	}
	return out
}

// correlations computes Pearson coefficients over rows where both columns
// are present and keeps pairs whose magnitude exceeds the threshold.
func (p *Profiler) correlations(cols []*dataset.Column) []CorrelatedPair {
	var numeric []*dataset.Column
	for _, c := range cols {
		if c.Kind.IsNumeric() {
			numeric = append(numeric, c)
		}
	}
	pairs := []CorrelatedPair{}
	for i := 0; i < len(numeric); i++ {
		for j := i + 1; j < len(numeric); j++ {
			r, ok := pearson(numeric[i], numeric[j])
			if !ok || math.Abs(r) <= p.threshold {
				continue
			}
			pairs = append(pairs, CorrelatedPair{
				ColumnA:     numeric[i].Name,
				ColumnB:     numeric[j].Name,
				Coefficient: round(r, 3),
			})
		}
	}
	return pairs
}

func pearson(a, b *dataset.Column) (float64, bool) {
	var xs, ys []float64
	for i := range a.Values {
		x, okx := a.Float(i)
		y, oky := b.Float(i)
		if okx && oky {
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}
	if len(xs) < 2 {
		return 0, false
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	return r, true
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
