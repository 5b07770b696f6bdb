package analysis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/GoogleCloudPlatform/tabular-insights/internal/classifier"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/config"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/database"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/dataset"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/genai"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/pipeline"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/recommender"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeLLM struct {
	errs  []error
	text  string
	calls int
	last  genai.InsightRequest
}

func (f *fakeLLM) GenerateInsights(ctx context.Context, req genai.InsightRequest) (string, error) {
	f.calls++
	f.last = req
	if f.calls <= len(f.errs) {
		return "", f.errs[f.calls-1]
	}
	return f.text, nil
}

func (f *fakeLLM) IsAPIKeyValid(ctx context.Context) error { return nil }
func (f *fakeLLM) Close() error                            { return nil }

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Retry = RetryOptions{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffMultiplier: 2}
	return cfg
}

func newService(t *testing.T, llm genai.LLMClient) *Service {
	t.Helper()
	s, err := NewService(llm, fastConfig(), zap.NewNop())
	require.NoError(t, err)
	return s
}

func orders() *dataset.Table {
	n := 12
	ids := make([]any, n)
	emails := make([]any, n)
	dates := make([]any, n)
	for i := 0; i < n; i++ {
		ids[i] = float64(i + 1)
		emails[i] = fmt.Sprintf("user%d@example.com", i)
		dates[i] = fmt.Sprintf("2024-01-%02d", i+1)
	}
	return dataset.MustNew(
		dataset.NewColumn("order_id", dataset.KindInteger, ids),
		dataset.NewColumn("email", dataset.KindString, emails),
		dataset.NewColumn("region", dataset.KindString, []any{"n", "s", "e", "n", "s", "e", "n", "s", "e", "n", "s", "e"}),
		dataset.NewColumn("amount", dataset.KindFloat, []any{10.0, 12.0, 11.0, 13.0, 12.0, nil, 14.0, 11.0, 1000.0, 12.0, 13.0, 10.0}),
		dataset.NewColumn("placed", dataset.KindString, dates),
	)
}

func TestAnalyze(t *testing.T) {
	s := newService(t, nil)
	in := orders()

	report, err := s.Analyze(context.Background(), in, AnalyzeOptions{})
	require.NoError(t, err)

	assert.Equal(t, classifier.TypeMap{
		{Column: "order_id", Type: classifier.Identifier},
		{Column: "email", Type: classifier.PII},
		{Column: "region", Type: classifier.Categorical},
		{Column: "amount", Type: classifier.Numerical},
		{Column: "placed", Type: classifier.Datetime},
	}, report.Types)

	var kinds []recommender.ChartKind
	for _, r := range report.Recommendations {
		kinds = append(kinds, r.ChartKind)
	}
	assert.Equal(t, []recommender.ChartKind{
		recommender.BarChart, recommender.PieChart, recommender.LineGraph, recommender.BoxPlot, recommender.AreaChart,
	}, kinds)

	// The filled mean and the 1000 both fall outside [7.625, 16.625].
	assert.Equal(t, 10, report.Cleaned.RowCount)
	assert.Len(t, report.Cleaned.Rows, 10)
	assert.Equal(t, 10, report.Profile.RowCount)
	assert.Equal(t, []string{"placed"}, report.Profile.TimeSeriesColumns)

	amount, ok := report.Profile.Column("amount")
	require.True(t, ok)
	assert.Equal(t, classifier.Numerical, amount.SemanticType)
	assert.Zero(t, amount.MissingCount)
	assert.Empty(t, report.Insights)

	assert.Equal(t, 12, in.NumRows(), "input is not modified")
	placed, _ := in.Column("placed")
	assert.Equal(t, dataset.KindString, placed.Kind)
}

func TestAnalyzeRejectsEmptyTable(t *testing.T) {
	s := newService(t, nil)
	empty := dataset.MustNew(dataset.NewColumn("a", dataset.KindInteger, []any{}))

	_, err := s.Analyze(context.Background(), empty, AnalyzeOptions{})

	var verr *pipeline.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestAnalyzeInsights(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		want      string
	}{
		{"First attempt", nil, 1, "Orders are stable."},
		{"Transient failure is retried", []error{status.Error(codes.Unavailable, "busy")}, 2, "Orders are stable."},
		{"Rejected request is not retried", []error{status.Error(codes.InvalidArgument, "bad prompt")}, 1, ""},
		{"Attempts exhausted", []error{
			status.Error(codes.ResourceExhausted, "quota"),
			status.Error(codes.ResourceExhausted, "quota"),
			status.Error(codes.ResourceExhausted, "quota"),
		}, 3, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &fakeLLM{errs: tt.errs, text: "Orders are stable."}
			s := newService(t, llm)

			report, err := s.Analyze(context.Background(), orders(), AnalyzeOptions{Insights: true, Context: "retail"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, report.Insights)
			assert.Equal(t, tt.wantCalls, llm.calls)
			assert.Equal(t, "retail", llm.last.Context)
			assert.Same(t, report.Profile, llm.last.Profile)
		})
	}
}

func TestAnalyzeInsightsWithoutClient(t *testing.T) {
	report, err := newService(t, nil).Analyze(context.Background(), orders(), AnalyzeOptions{Insights: true})
	require.NoError(t, err)
	assert.Empty(t, report.Insights)
}

func TestSingleStageEntryPoints(t *testing.T) {
	s := newService(t, nil)
	in := orders()

	res := s.Classify(in)
	assert.Equal(t, classifier.Datetime, mustType(t, res.Types, "placed"))

	cleaned, err := s.Preprocess(context.Background(), in)
	require.NoError(t, err)
	placed, _ := cleaned.Column("placed")
	assert.Equal(t, dataset.KindDatetime, placed.Kind)

	p := s.Profile(in)
	assert.Equal(t, 12, p.RowCount)

	recs := s.Recommend(in)
	require.NotEmpty(t, recs)
	assert.Equal(t, recommender.BarChart, recs[0].ChartKind)
}

func mustType(t *testing.T, m classifier.TypeMap, col string) classifier.SemanticType {
	t.Helper()
	st, ok := m.Get(col)
	require.True(t, ok, col)
	return st
}

func TestNewServiceRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline.Treatments = []string{"vacuum"}
	_, err := NewService(nil, cfg, nil)
	var inv *ErrInvalidInput
	assert.ErrorAs(t, err, &inv)

	cfg = DefaultConfig()
	cfg.Classifier.IdentifierPatterns = []string{"("}
	_, err = NewService(nil, cfg, nil)
	assert.ErrorAs(t, err, &inv)
}

type fakeDB struct {
	pingErrs []error
	readErr  error
	pings    int
	reads    int
	table    *dataset.Table
}

var _ database.DBAdapter = (*fakeDB)(nil)

func (f *fakeDB) ListTables(ctx context.Context) ([]string, error) { return []string{"orders"}, nil }
func (f *fakeDB) ListColumns(ctx context.Context, table string) ([]database.ColumnInfo, error) {
	return nil, nil
}
func (f *fakeDB) ReadTable(ctx context.Context, table string, limit int) (*dataset.Table, error) {
	f.reads++
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.table, nil
}
func (f *fakeDB) Ping(ctx context.Context) error {
	f.pings++
	if f.pings <= len(f.pingErrs) {
		return f.pingErrs[f.pings-1]
	}
	return nil
}
func (f *fakeDB) Close() error                     { return nil }
func (f *fakeDB) GetConfig() config.DatabaseConfig { return config.DatabaseConfig{Dialect: "fake"} }

func TestLoadTable(t *testing.T) {
	s := newService(t, nil)
	ctx := context.Background()

	t.Run("Transient ping failure", func(t *testing.T) {
		db := &fakeDB{pingErrs: []error{errors.New("connection reset")}, table: orders()}
		tbl, err := s.LoadTable(ctx, db, "orders", 0)
		require.NoError(t, err)
		assert.Equal(t, 12, tbl.NumRows())
		assert.Equal(t, 2, db.pings)
	})

	t.Run("Query failure exhausts retries", func(t *testing.T) {
		db := &fakeDB{readErr: errors.New("relation does not exist")}
		_, err := s.LoadTable(ctx, db, "missing", 0)
		var qerr *ErrQueryExecution
		require.ErrorAs(t, err, &qerr)
		assert.Equal(t, 3, db.reads)
	})

	t.Run("Invalid input", func(t *testing.T) {
		db := &fakeDB{}
		_, err := s.LoadTable(ctx, db, " ", 0)
		var inv *ErrInvalidInput
		require.ErrorAs(t, err, &inv)
		_, err = s.LoadTable(ctx, db, "orders", -1)
		require.ErrorAs(t, err, &inv)
		assert.Zero(t, db.pings)
	})

	t.Run("Deadline maps to timeout", func(t *testing.T) {
		db := &fakeDB{readErr: context.DeadlineExceeded}
		_, err := s.LoadTable(ctx, db, "orders", 0)
		var terr *ErrTimeout
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, 3, db.reads, "timeouts are retryable")
	})
}

func TestSelectColumns(t *testing.T) {
	tbl := orders()

	got, err := SelectColumns(tbl, []string{"amount", "order_id"})
	require.NoError(t, err)
	assert.Equal(t, []string{"order_id", "amount"}, got.Names())

	same, err := SelectColumns(tbl, nil)
	require.NoError(t, err)
	assert.Same(t, tbl, same)

	_, err = SelectColumns(tbl, []string{"nope"})
	var inv *ErrInvalidInput
	assert.ErrorAs(t, err, &inv)
}
