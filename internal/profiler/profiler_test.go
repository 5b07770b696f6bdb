package profiler

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/GoogleCloudPlatform/tabular-insights/internal/classifier"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatsOf(vs ...float64) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}

func TestCorrelatedPairs(t *testing.T) {
	tbl := dataset.MustNew(
		dataset.NewColumn("y", dataset.KindInteger, floatsOf(1, 2, 3, 6, 5, 4, 7, 8, 9, 10)),
		dataset.NewColumn("z", dataset.KindInteger, floatsOf(1, 0, 1, 0, 1, 0, 1, 0, 1, 0)),
		dataset.NewColumn("label", dataset.KindString, []any{"a", "b", "a", "b", "a", "b", "a", "b", "a", "b"}),
		dataset.NewColumn("x", dataset.KindInteger, floatsOf(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)),
	)

	p := New().Profile(tbl)

	// r = 78.5 / 82.5
	require.Len(t, p.CorrelatedPairs, 1)
	assert.Equal(t, CorrelatedPair{ColumnA: "y", ColumnB: "x", Coefficient: 0.952}, p.CorrelatedPairs[0])
}

func TestCorrelationUsesPairwiseCompleteRows(t *testing.T) {
	tbl := dataset.MustNew(
		dataset.NewColumn("a", dataset.KindFloat, []any{1.0, 2.0, nil, 4.0, 5.0}),
		dataset.NewColumn("b", dataset.KindFloat, []any{2.0, 4.0, 100.0, nil, 10.0}),
	)
	p := New().Profile(tbl)

	require.Len(t, p.CorrelatedPairs, 1)
	assert.Equal(t, 1.0, p.CorrelatedPairs[0].Coefficient)
}

func TestCorrelationSkipsConstantColumns(t *testing.T) {
	tbl := dataset.MustNew(
		dataset.NewColumn("a", dataset.KindFloat, floatsOf(1, 2, 3)),
		dataset.NewColumn("b", dataset.KindFloat, floatsOf(4, 4, 4)),
	)
	assert.Empty(t, New().Profile(tbl).CorrelatedPairs)
}

func TestStatistics(t *testing.T) {
	tests := []struct {
		name       string
		values     []float64
		wantMean   *float64
		wantStd    bool
		wantShape  bool
		wantZeroes int
	}{
		{"Spread", []float64{2, 4, 4, 4, 5, 5, 7, 9}, ptr(5), true, true, 0},
		{"Single value", []float64{0}, ptr(0), false, false, 1},
		{"Constant", []float64{3, 3, 3, 3}, ptr(3), true, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := describe(tt.values)
			assert.Equal(t, tt.wantMean, st.Mean)
			assert.Equal(t, tt.wantStd, st.Std != nil)
			assert.Equal(t, tt.wantShape, st.Skewness != nil)
			assert.Equal(t, tt.wantShape, st.Kurtosis != nil)
			require.NotNil(t, st.ZeroCount)
			assert.Equal(t, tt.wantZeroes, *st.ZeroCount)
		})
	}

	st := describe([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, math.Sqrt(32.0/7.0), *st.Std, 1e-12)
	assert.Equal(t, 2.0, *st.Min)
	assert.Equal(t, 9.0, *st.Max)
	assert.InDelta(t, 0.818488, *st.Skewness, 1e-5)
	assert.InDelta(t, 0.940625, *st.Kurtosis, 1e-5)
}

func ptr(v float64) *float64 { return &v }

func TestColumnProfilesAndRoles(t *testing.T) {
	ts := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }
	tbl := dataset.MustNew(
		dataset.NewColumn("when", dataset.KindDatetime, []any{ts(1), ts(2), ts(3), ts(4)}),
		dataset.NewColumn("flag", dataset.KindBoolean, []any{true, false, true, nil}),
		dataset.NewColumn("code", dataset.KindString, []any{"a", "b", "c", "d"}),
		dataset.NewColumn("amount", dataset.KindFloat, []any{1.0, 1.0, 3.0, 5.0}),
		dataset.NewColumn("region", dataset.KindString, []any{"n", "s", "e", "n"}),
	)

	p := New().Profile(tbl)

	wantRoles := map[string]Role{
		"when":   RoleTimestamp,
		"flag":   RoleBinaryClass,
		"code":   RoleIdentifier,
		"amount": RoleMeasure,
		"region": RoleDimension,
	}
	for name, role := range wantRoles {
		cp, ok := p.Column(name)
		require.True(t, ok, name)
		assert.Equal(t, []Role{role}, cp.InferredRoles, name)
	}

	flag, _ := p.Column("flag")
	assert.Equal(t, 2, flag.Cardinality)
	assert.Equal(t, 1, flag.MissingCount)
	assert.Equal(t, 25.0, flag.MissingPercentage)
	assert.Equal(t, 0.5, flag.UniquenessRatio)
	assert.Equal(t, Statistics{}, flag.Statistics)

	assert.Equal(t, []string{"flag"}, p.BinaryColumns)
	assert.Equal(t, []string{"when"}, p.TimeSeriesColumns)
	assert.Equal(t, 4, p.RowCount)
	assert.Equal(t, 5, p.ColumnCount)
}

func TestTypeDistributionFollowsFirstAppearance(t *testing.T) {
	tbl := dataset.MustNew(
		dataset.NewColumn("a", dataset.KindInteger, floatsOf(1)),
		dataset.NewColumn("b", dataset.KindString, []any{"x"}),
		dataset.NewColumn("c", dataset.KindInteger, floatsOf(2)),
		dataset.NewColumn("d", dataset.KindDatetime, []any{time.Now()}),
	)
	assert.Equal(t, []TypeCount{
		{Type: dataset.KindInteger, Count: 2, Percentage: 50},
		{Type: dataset.KindString, Count: 1, Percentage: 25},
		{Type: dataset.KindDatetime, Count: 1, Percentage: 25},
	}, New().Profile(tbl).TypeDistribution)
}

func TestSampleRowsAndTypes(t *testing.T) {
	values := make([]float64, 12)
	for i := range values {
		values[i] = float64(i)
	}
	tbl := dataset.MustNew(dataset.NewColumn("n", dataset.KindInteger, floatsOf(values...)))
	types := classifier.TypeMap{{Column: "n", Type: classifier.Numerical}}

	p := New(WithTypes(types)).Profile(tbl)

	require.Len(t, p.SampleRows, 5)
	assert.Equal(t, []any{int64(4)}, p.SampleRows[4])
	cp, _ := p.Column("n")
	assert.Equal(t, classifier.Numerical, cp.SemanticType)
}

func TestNilTable(t *testing.T) {
	p := New().Profile(nil)
	assert.Zero(t, p.RowCount)
	assert.Empty(t, p.ColumnProfiles)
}

func TestProfileJSONHasNoNaN(t *testing.T) {
	tbl := dataset.MustNew(
		dataset.NewColumn("one", dataset.KindFloat, floatsOf(7)),
		dataset.NewColumn("s", dataset.KindString, []any{"x"}),
	)
	b, err := json.Marshal(New().Profile(tbl))
	require.NoError(t, err)
	assert.NotContains(t, string(b), "NaN")
	assert.Contains(t, string(b), `"statistics":{}`)
	assert.Contains(t, string(b), `"correlatedPairs":[]`)
}
