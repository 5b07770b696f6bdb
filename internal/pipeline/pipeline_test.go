package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/GoogleCloudPlatform/tabular-insights/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingTreatment struct {
	calls *int
}

func (recordingTreatment) Name() string { return "Recording" }

func (r recordingTreatment) Treat(t *dataset.Table) (*dataset.Table, error) {
	*r.calls++
	return t, nil
}

type panickingTreatment struct{}

func (panickingTreatment) Name() string { return "Panicking" }

func (panickingTreatment) Treat(*dataset.Table) (*dataset.Table, error) {
	panic("boom")
}

type failingTreatment struct{ err error }

func (failingTreatment) Name() string { return "Failing" }

func (f failingTreatment) Treat(*dataset.Table) (*dataset.Table, error) { return nil, f.err }

type rejectAll struct{ name string }

func (r rejectAll) Name() string { return r.name }

func (rejectAll) Check(*dataset.Table) error { return errors.New("rejected") }

func TestValidationGateRunsBeforeTreatments(t *testing.T) {
	tests := []struct {
		name   string
		table  *dataset.Table
		reason string
	}{
		{"Nil table", nil, "table is nil"},
		{"No columns", dataset.MustNew(), "table has no columns"},
		{"Zero rows", dataset.MustNew(dataset.NewColumn("a", dataset.KindInteger, []any{})), "table is empty"},
		{"All null", dataset.MustNew(
			dataset.NewColumn("a", dataset.KindString, []any{nil, nil}),
			dataset.NewColumn("b", dataset.KindFloat, []any{nil, nil}),
		), "all columns are entirely null"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			h := NewHandler(
				WithChecks(DataSanityCheck{}),
				WithTreatments(recordingTreatment{calls: &calls}),
			)

			out, err := h.Preprocess(context.Background(), tt.table)

			assert.Nil(t, out)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "want ValidationError, got %v", err)
			require.Len(t, ve.Failures, 1)
			assert.Equal(t, "DataSanityCheck", ve.Failures[0].Check)
			assert.Equal(t, tt.reason, ve.Failures[0].Reason)
			assert.Zero(t, calls)
		})
	}
}

func TestValidationCollectsEveryFailure(t *testing.T) {
	h := NewHandler(WithChecks(rejectAll{"first"}, DataSanityCheck{}, rejectAll{"second"}))
	tbl := dataset.MustNew(dataset.NewColumn("a", dataset.KindInteger, []any{1.0}))

	_, err := h.Preprocess(context.Background(), tbl)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []CheckFailure{
		{Check: "first", Reason: "rejected"},
		{Check: "second", Reason: "rejected"},
	}, ve.Failures)
	assert.Contains(t, err.Error(), "first: rejected; second: rejected")
}

func TestPreprocessCancelledContext(t *testing.T) {
	calls := 0
	h := NewHandler(WithTreatments(recordingTreatment{calls: &calls}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Preprocess(ctx, dataset.MustNew(dataset.NewColumn("a", dataset.KindInteger, []any{1.0})))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestTreatmentFailures(t *testing.T) {
	tbl := dataset.MustNew(dataset.NewColumn("a", dataset.KindInteger, []any{1.0, nil}))
	cause := errors.New("bad shape")

	tests := []struct {
		name       string
		treatment  Treatment
		wantStage  string
		wantColumn string
	}{
		{"Returned error", failingTreatment{err: cause}, "Failing", ""},
		{"Panic", panickingTreatment{}, "Panicking", ""},
		{"Column error", failingTreatment{err: &TreatmentError{Column: "a", Err: cause}}, "Failing", "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			h := NewHandler(WithTreatments(tt.treatment, recordingTreatment{calls: &calls}))

			out, err := h.Preprocess(context.Background(), tbl)

			assert.Nil(t, out)
			var te *TreatmentError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, tt.wantStage, te.Stage)
			assert.Equal(t, tt.wantColumn, te.Column)
			assert.Zero(t, calls, "later treatments must not run")
		})
	}
}

func TestMissingValueTreatmentRejectsMalformedNumericColumn(t *testing.T) {
	tbl := dataset.MustNew(dataset.NewColumn("n", dataset.KindFloat, []any{1.0, "oops", nil}))
	h := NewHandler(WithTreatments(MissingValueTreatment{}))

	_, err := h.Preprocess(context.Background(), tbl)

	var te *TreatmentError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "MissingValueTreatment", te.Stage)
	assert.Equal(t, "n", te.Column)
}

func TestPreprocessLeavesInputUntouched(t *testing.T) {
	tbl := dataset.MustNew(
		dataset.NewColumn("score", dataset.KindString, []any{"1", "N/A", "3", "3"}),
		dataset.NewColumn("city", dataset.KindString, []any{"x", "y", "x", "x"}),
	)

	_, err := NewDefaultHandler().Preprocess(context.Background(), tbl)
	require.NoError(t, err)

	score, _ := tbl.Column("score")
	assert.Equal(t, dataset.KindString, score.Kind)
	assert.Equal(t, []any{"1", "N/A", "3", "3"}, score.Values)
}

func TestGarbageThenMissingLeavesNoTokens(t *testing.T) {
	tbl := dataset.MustNew(
		dataset.NewColumn("score", dataset.KindString, []any{"1", "N/A", "3", " ", "5"}),
		dataset.NewColumn("city", dataset.KindString, []any{"x", "--", "y", "null", "x"}),
		dataset.NewColumn("const", dataset.KindString, []any{"k", "k", "k", "k", "k"}),
		dataset.NewColumn("empty", dataset.KindString, []any{nil, nil, nil, nil, nil}),
	)
	h := NewHandler(
		WithChecks(DataSanityCheck{}),
		WithTreatments(NewGarbageValueTreatment(), MissingValueTreatment{}),
	)

	out, err := h.Preprocess(context.Background(), tbl)
	require.NoError(t, err)

	assert.Equal(t, []string{"score", "city"}, out.Names())

	score, _ := out.Column("score")
	assert.Equal(t, dataset.KindInteger, score.Kind)
	assert.Equal(t, []any{1.0, 3.0, 3.0, 3.0, 5.0}, score.Values)

	city, _ := out.Column("city")
	assert.Equal(t, []any{"x", "x", "y", "x", "x"}, city.Values)

	for _, c := range out.Columns() {
		for _, v := range c.Values {
			require.NotNil(t, v)
			if s, ok := v.(string); ok {
				assert.NotContains(t, DefaultGarbageTokens, s)
			}
		}
	}
}

func TestMissingValueTreatment(t *testing.T) {
	tbl := dataset.MustNew(
		dataset.NewColumn("i", dataset.KindInteger, []any{1.0, nil, 2.0}),
		dataset.NewColumn("s", dataset.KindString, []any{"b", "a", nil}),
	)
	out, err := MissingValueTreatment{}.Treat(tbl)
	require.NoError(t, err)

	i, _ := out.Column("i")
	assert.Equal(t, dataset.KindFloat, i.Kind)
	assert.Equal(t, []any{1.0, 1.5, 2.0}, i.Values)

	s, _ := out.Column("s")
	assert.Equal(t, []any{"b", "a", "b"}, s.Values, "ties go to the first value seen")

	orig, _ := tbl.Column("i")
	assert.Nil(t, orig.Values[1])
}

func TestOutlierBounds(t *testing.T) {
	var values []any
	for i := 0; i < 10; i++ {
		values = append(values, 10.0)
	}
	for i := 0; i < 10; i++ {
		values = append(values, 20.0)
	}
	values = append(values, -5.0, 35.0, -6.0, 36.0, nil)
	tbl := dataset.MustNew(dataset.NewColumn("v", dataset.KindFloat, values))

	col, _ := tbl.Column("v")
	lo, hi, ok := IQRBounds(col.Floats(), DefaultIQRMultiplier)
	require.True(t, ok)
	assert.Equal(t, -5.0, lo)
	assert.Equal(t, 35.0, hi)

	out, err := NewOutlierTreatment().Treat(tbl)
	require.NoError(t, err)

	kept, _ := out.Column("v")
	assert.Equal(t, 23, kept.Len())
	assert.Contains(t, kept.Values, -5.0)
	assert.Contains(t, kept.Values, 35.0)
	assert.NotContains(t, kept.Values, -6.0)
	assert.NotContains(t, kept.Values, 36.0)
	assert.Contains(t, kept.Values, nil, "missing values are kept")
}

func TestOutlierModes(t *testing.T) {
	tbl := dataset.MustNew(
		dataset.NewColumn("a", dataset.KindInteger, []any{1.0, 2.0, 3.0, 4.0, 100.0}),
		dataset.NewColumn("b", dataset.KindInteger, []any{10.0, 10.0, 10.0, 12.0, 50.0}),
	)

	cascading, err := OutlierTreatment{Mode: OutlierCascading}.Treat(tbl)
	require.NoError(t, err)
	assert.Equal(t, 3, cascading.NumRows())

	independent, err := OutlierTreatment{Mode: OutlierIndependent}.Treat(tbl)
	require.NoError(t, err)
	assert.Equal(t, 4, independent.NumRows())

	_, err = OutlierTreatment{Mode: "sideways"}.Treat(tbl)
	assert.Error(t, err)
}

func TestQuantile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{0.25, 1.75},
		{0.5, 2.5},
		{0.75, 3.25},
		{1, 4},
	}
	for _, tt := range tests {
		if got := Quantile(sorted, tt.p); got != tt.want {
			t.Errorf("Quantile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
	assert.Equal(t, 7.0, Quantile([]float64{7}, 0.25))
}

func TestDuplicateTreatmentIsIdempotent(t *testing.T) {
	tbl := dataset.MustNew(
		dataset.NewColumn("a", dataset.KindInteger, []any{1.0, 1.0, 2.0, 1.0, nil, nil}),
		dataset.NewColumn("b", dataset.KindString, []any{"x", "x", "x", "y", nil, nil}),
	)
	once, err := DuplicateTreatment{}.Treat(tbl)
	require.NoError(t, err)
	twice, err := DuplicateTreatment{}.Treat(once)
	require.NoError(t, err)

	assert.Equal(t, 4, once.NumRows())
	assert.Equal(t, once.NumRows(), twice.NumRows())
	assert.Equal(t, []any{int64(1), "x"}, once.Row(0))
	assert.Equal(t, []any{int64(1), "y"}, once.Row(2))
}

func TestDuplicateTreatmentKeepsRowsWithSeparatorBytes(t *testing.T) {
	tbl := dataset.MustNew(
		dataset.NewColumn("a", dataset.KindString, []any{"x\x1fs:y", "x", "x\x1fs:y"}),
		dataset.NewColumn("b", dataset.KindString, []any{"z", "y\x1fs:z", "z"}),
	)
	out, err := DuplicateTreatment{}.Treat(tbl)
	require.NoError(t, err)

	require.Equal(t, 2, out.NumRows())
	assert.Equal(t, []any{"x\x1fs:y", "z"}, out.Row(0))
	assert.Equal(t, []any{"x", "y\x1fs:z"}, out.Row(1))
}

func TestMinMaxNormalizer(t *testing.T) {
	tbl := dataset.MustNew(
		dataset.NewColumn("v", dataset.KindInteger, []any{2.0, 4.0, nil, 6.0}),
		dataset.NewColumn("c", dataset.KindFloat, []any{3.0, 3.0, 3.0, 3.0}),
		dataset.NewColumn("s", dataset.KindString, []any{"a", "b", "c", "d"}),
	)
	out, err := MinMaxNormalizer{}.Normalize(tbl)
	require.NoError(t, err)

	v, _ := out.Column("v")
	assert.Equal(t, dataset.KindFloat, v.Kind)
	assert.Equal(t, []any{0.0, 0.5, nil, 1.0}, v.Values)

	c, _ := out.Column("c")
	assert.Equal(t, []any{0.0, 0.0, 0.0, 0.0}, c.Values)

	s, _ := out.Column("s")
	assert.Equal(t, []any{"a", "b", "c", "d"}, s.Values)
}

func TestLabelEncoder(t *testing.T) {
	tbl := dataset.MustNew(
		dataset.NewColumn("s", dataset.KindString, []any{"pear", "apple", nil, "pear"}),
		dataset.NewColumn("b", dataset.KindBoolean, []any{true, false, true, true}),
		dataset.NewColumn("n", dataset.KindFloat, []any{1.5, 2.5, 3.5, 4.5}),
	)
	out, err := LabelEncoder{}.Encode(tbl)
	require.NoError(t, err)

	s, _ := out.Column("s")
	assert.Equal(t, dataset.KindInteger, s.Kind)
	assert.Equal(t, []any{1.0, 0.0, nil, 1.0}, s.Values)

	b, _ := out.Column("b")
	assert.Equal(t, []any{1.0, 0.0, 1.0, 1.0}, b.Values)

	n, _ := out.Column("n")
	assert.Equal(t, dataset.KindFloat, n.Kind)
}

func TestHandlerStatesAreLogged(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := NewHandler(
		WithLogger(zap.New(core)),
		WithChecks(DataSanityCheck{}),
		WithTreatments(DuplicateTreatment{}),
		WithNormalizer(MinMaxNormalizer{}),
		WithEncoder(LabelEncoder{}),
	)
	tbl := dataset.MustNew(dataset.NewColumn("a", dataset.KindInteger, []any{1.0, 2.0}))

	_, err := h.Preprocess(context.Background(), tbl)
	require.NoError(t, err)

	var states []string
	for _, e := range logs.FilterMessage("preprocessing state").All() {
		states = append(states, e.ContextMap()["state"].(string))
	}
	assert.Equal(t, []string{"validating", "treating", "normalizing", "encoding", "done"}, states)
}

func TestRejectedStateIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := NewHandler(WithLogger(zap.New(core)), WithChecks(DataSanityCheck{}))

	_, err := h.Preprocess(context.Background(), nil)
	require.Error(t, err)

	entries := logs.FilterMessage("preprocessing state").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "rejected", entries[1].ContextMap()["state"])
}

func TestBuild(t *testing.T) {
	s := DefaultSettings()
	s.Normalizer = "minmax"
	s.Encoder = "label"
	s.OutlierMode = OutlierIndependent

	h, err := Build(s, nil)
	require.NoError(t, err)
	require.Len(t, h.treatments, 4)
	assert.Equal(t, "GarbageValueTreatment", h.treatments[0].Name())
	assert.Equal(t, OutlierTreatment{Multiplier: 1.5, Mode: OutlierIndependent}, h.treatments[2])
	assert.NotNil(t, h.normalizer)
	assert.NotNil(t, h.encoder)

	for _, bad := range []Settings{
		{Treatments: []string{"nope"}},
		{Normalizer: "zscore"},
		{Encoder: "onehot"},
		{OutlierMode: "sideways"},
	} {
		_, err := Build(bad, nil)
		assert.Error(t, err)
	}
	assert.Equal(t, []string{"duplicate", "garbage", "missing", "outlier"}, TreatmentNames())
}
