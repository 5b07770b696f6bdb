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

// Package recommender suggests chart types from the semantic column types of
// a table.
package recommender

import (
	"math"

	"github.com/GoogleCloudPlatform/tabular-insights/internal/classifier"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/dataset"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// ChartKind names a chart.
type ChartKind string

const (
	BarChart     ChartKind = "Bar Chart"
	PieChart     ChartKind = "Pie Chart"
	LineGraph    ChartKind = "Line Graph"
	Histogram    ChartKind = "Histogram"
	ScatterPlot  ChartKind = "Scatter Plot"
	BoxPlot      ChartKind = "Box Plot"
	Heatmap      ChartKind = "Heatmap"
	AreaChart    ChartKind = "Area Chart"
	BubbleChart  ChartKind = "Bubble Chart"
	TableDisplay ChartKind = "Table"
)

// Category is the chart family.
type Category string

const (
	Comparison   Category = "comparison"
	Composition  Category = "composition"
	Trend        Category = "trend"
	Distribution Category = "distribution"
	Relationship Category = "relationship"
	Correlation  Category = "correlation"
	Fallback     Category = "fallback"
)

// FallbackRationale explains the tabular recommendation emitted when no
// chart fits.
const FallbackRationale = "No suitable chart type could be determined."

// Recommendation is one suggested chart. Priority is 1 for the first
// recommendation of a run.
type Recommendation struct {
	ChartKind      ChartKind           `json:"chartKind" yaml:"chartKind"`
	Category       Category            `json:"category" yaml:"category"`
	Rationale      string              `json:"rationale" yaml:"rationale"`
	ColumnBindings map[string][]string `json:"columnBindings" yaml:"columnBindings"`
	// Correlation is the Pearson coefficient of the plotted pair, when there is one.
	Correlation *float64 `json:"correlation,omitempty" yaml:"correlation,omitempty"`
	Priority    int      `json:"priority" yaml:"priority"`
}

// shape groups columns by semantic type, in table order.
type shape struct {
	numerical   []string
	categorical []string
	datetime    []string
	// cardinality of categorical[0]; -1 when the table does not hold it
	cardinality int
}

func (s shape) cardinalityBelow(n int) bool {
	return s.cardinality >= 0 && s.cardinality < n
}

type rule struct {
	kind      ChartKind
	category  Category
	rationale string
	matches   func(s shape) bool
	bind      func(s shape) map[string][]string
}

// rules are evaluated in order; every matching rule contributes one
// recommendation.
var rules = []rule{
	{
		kind:      BarChart,
		category:  Comparison,
		rationale: "Bar charts are ideal for comparing a numerical value across categories.",
		matches: func(s shape) bool {
			return len(s.categorical) == 1 && len(s.numerical) == 1 && s.cardinalityBelow(30)
		},
		bind: func(s shape) map[string][]string {
			return map[string][]string{"x": s.categorical[:1], "y": s.numerical[:1]}
		},
	},
	{
		kind:      PieChart,
		category:  Composition,
		rationale: "Pie charts are useful for showing proportions of categories.",
		matches: func(s shape) bool {
			return len(s.categorical) == 1 && len(s.numerical) == 1 && s.cardinalityBelow(10)
		},
		bind: func(s shape) map[string][]string {
			return map[string][]string{"labels": s.categorical[:1], "values": s.numerical[:1]}
		},
	},
	{
		kind:      LineGraph,
		category:  Trend,
		rationale: "Line graphs are great for showing trends over time.",
		matches: func(s shape) bool {
			return len(s.datetime) == 1 && len(s.numerical) == 1
		},
		bind: func(s shape) map[string][]string {
			return map[string][]string{"x": s.datetime[:1], "y": s.numerical[:1]}
		},
	},
	{
		kind:      Histogram,
		category:  Distribution,
		rationale: "Histograms are useful for showing the distribution of numerical data.",
		matches: func(s shape) bool {
			return len(s.numerical) == 1 && len(s.categorical) == 0 && len(s.datetime) == 0
		},
		bind: func(s shape) map[string][]string {
			return map[string][]string{"x": s.numerical[:1]}
		},
	},
	{
		kind:      ScatterPlot,
		category:  Relationship,
		rationale: "Scatter plots are ideal for showing relationships between two numerical variables.",
		matches: func(s shape) bool {
			return len(s.numerical) >= 2 && len(s.categorical) == 0 && len(s.datetime) == 0
		},
		bind: func(s shape) map[string][]string {
			return map[string][]string{"x": s.numerical[:1], "y": s.numerical[1:2]}
		},
	},
	{
		kind:      BoxPlot,
		category:  Distribution,
		rationale: "Box plots are useful for showing the distribution of numerical data across categories.",
		matches: func(s shape) bool {
			return len(s.numerical) == 1 && len(s.categorical) == 1
		},
		bind: func(s shape) map[string][]string {
			return map[string][]string{"x": s.categorical[:1], "y": s.numerical[:1]}
		},
	},
	{
		kind:      Heatmap,
		category:  Correlation,
		rationale: "Heatmaps are useful for showing correlations between multiple numerical variables.",
		matches: func(s shape) bool {
			return len(s.numerical) >= 2 && len(s.categorical) == 0 && len(s.datetime) == 0
		},
		bind: func(s shape) map[string][]string {
			return map[string][]string{"columns": s.numerical}
		},
	},
	{
		kind:      AreaChart,
		category:  Trend,
		rationale: "Area charts are useful for showing cumulative totals over time.",
		matches: func(s shape) bool {
			return len(s.datetime) == 1 && len(s.numerical) >= 1
		},
		bind: func(s shape) map[string][]string {
			return map[string][]string{"x": s.datetime[:1], "y": s.numerical}
		},
	},
	{
		kind:      BubbleChart,
		category:  Relationship,
		rationale: "Bubble charts are useful for showing relationships between three numerical variables.",
		matches: func(s shape) bool {
			return len(s.numerical) >= 3
		},
		bind: func(s shape) map[string][]string {
			return map[string][]string{"x": s.numerical[:1], "y": s.numerical[1:2], "size": s.numerical[2:3]}
		},
	},
}

// Recommender maps a type map to chart recommendations.
type Recommender struct {
	logger *zap.Logger
}

type Option func(*Recommender)

func WithLogger(l *zap.Logger) Option {
	return func(r *Recommender) {
		r.logger = l
	}
}

func New(opts ...Option) *Recommender {
	r := &Recommender{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Recommend evaluates every rule against types and returns the matches in
// rule order. The table supplies categorical cardinality and the correlation
// of scatter pairs; it may be nil, in which case the cardinality-gated bar and
// pie rules do not fire. When nothing matches, a single tabular
// recommendation listing every column is returned.
func (r *Recommender) Recommend(types classifier.TypeMap, t *dataset.Table) []Recommendation {
	s := shape{
		numerical:   types.Columns(classifier.Numerical),
		categorical: types.Columns(classifier.Categorical),
		datetime:    types.Columns(classifier.Datetime),
	}
	if len(s.categorical) > 0 {
		s.cardinality = -1
		if col, ok := t.Column(s.categorical[0]); ok {
			s.cardinality = col.Distinct()
		}
	}

	var recs []Recommendation
	for _, rl := range rules {
		if !rl.matches(s) {
			continue
		}
		rec := Recommendation{
			ChartKind:      rl.kind,
			Category:       rl.category,
			Rationale:      rl.rationale,
			ColumnBindings: rl.bind(s),
			Priority:       len(recs) + 1,
		}
		if rl.kind == ScatterPlot {
			rec.Correlation = correlation(t, s.numerical[0], s.numerical[1])
		}
		recs = append(recs, rec)
	}

	if len(recs) == 0 {
		columns := t.Names()
		if t == nil {
			for _, a := range types {
				columns = append(columns, a.Column)
			}
		}
		if columns == nil {
			columns = []string{}
		}
		recs = []Recommendation{{
			ChartKind:      TableDisplay,
			Category:       Fallback,
			Rationale:      FallbackRationale,
			ColumnBindings: map[string][]string{"columns": columns},
			Priority:       1,
		}}
	}

	r.logger.Debug("recommended charts",
		zap.Int("numerical", len(s.numerical)),
		zap.Int("categorical", len(s.categorical)),
		zap.Int("datetime", len(s.datetime)),
		zap.Int("recommendations", len(recs)),
	)
	return recs
}

func correlation(t *dataset.Table, a, b string) *float64 {
	ca, okA := t.Column(a)
	cb, okB := t.Column(b)
	if !okA || !okB {
		return nil
	}
	var xs, ys []float64
	for i := range ca.Values {
		x, okx := ca.Float(i)
		y, oky := cb.Float(i)
		if okx && oky {
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}
	if len(xs) < 2 {
		return nil
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return nil
	}
	r = math.Round(r*1000) / 1000
	return &r
}
