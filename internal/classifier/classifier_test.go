package classifier

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/GoogleCloudPlatform/tabular-insights/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func newClassifier(t *testing.T, mutate ...func(*Config)) *Classifier {
	t.Helper()
	cfg := DefaultConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func sequence(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = float64(i + 1)
	}
	return out
}

func repeat(values []any, n int) []any {
	out := make([]any, 0, n)
	for len(out) < n {
		out = append(out, values[len(out)%len(values)])
	}
	return out
}

func TestClassifyColumnTypes(t *testing.T) {
	const rows = 40
	long := "this sentence is comfortably longer than thirty characters"
	tbl := dataset.MustNew(
		dataset.NewColumn("user_id", dataset.KindInteger, sequence(rows)),
		dataset.NewColumn("email", dataset.KindString, repeat([]any{"a@x.io", "b@x.io"}, rows)),
		dataset.NewColumn("client_ip_address", dataset.KindString, repeat([]any{"10.0.0.1"}, rows)),
		dataset.NewColumn("Surname", dataset.KindString, repeat([]any{"Doe"}, rows)),
		dataset.NewColumn("amount", dataset.KindFloat, repeat([]any{1.5, 2.5}, rows)),
		dataset.NewColumn("created", dataset.KindString, repeat([]any{"2024-01-02", "2023-12-25"}, rows)),
		dataset.NewColumn("region", dataset.KindString, repeat([]any{"north", "south", nil}, rows)),
		dataset.NewColumn("active", dataset.KindBoolean, repeat([]any{true, false}, rows)),
		dataset.NewColumn("notes", dataset.KindString, func() []any {
			out := make([]any, rows)
			for i := range out {
				if i%3 == 2 {
					out[i] = fmt.Sprintf("short %d", i)
				} else {
					out[i] = fmt.Sprintf("%s %d", long, i)
				}
			}
			return out
		}()),
		dataset.NewColumn("code", dataset.KindString, func() []any {
			out := make([]any, rows)
			for i := range out {
				out[i] = fmt.Sprintf("c%d", i)
			}
			return out
		}()),
	)

	res := newClassifier(t).Classify(tbl)

	want := TypeMap{
		{"user_id", Identifier},
		{"email", PII},
		{"client_ip_address", PII},
		{"Surname", PII},
		{"amount", Numerical},
		{"created", Datetime},
		{"region", Categorical},
		{"active", Categorical},
		{"notes", Text},
		{"code", Other},
	}
	assert.Equal(t, want, res.Types)
}

func TestClassifyIdentifierRequiresUniqueness(t *testing.T) {
	tests := []struct {
		name   string
		column string
		values []any
		want   SemanticType
	}{
		{"Unique user_id", "user_id", sequence(10), Identifier},
		{"Unique id", "ID", sequence(10), Identifier},
		{"Standalone token", "order id", sequence(10), Identifier},
		{"Repeated user_id", "user_id", repeat([]any{1.0, 2.0}, 10), Numerical},
		{"Unique but not id-like", "valid", sequence(10), Numerical},
		{"Embedded id is not a token", "identity", sequence(10), Numerical},
	}
	c := newClassifier(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := dataset.MustNew(dataset.NewColumn(tt.column, dataset.KindInteger, tt.values))
			got, _ := c.Classify(tbl).Types.Get(tt.column)
			if got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.column, got, tt.want)
			}
		})
	}
}

func TestClassifyEmailIgnoresUniqueness(t *testing.T) {
	c := newClassifier(t)
	for _, values := range [][]any{
		repeat([]any{"a@x.io"}, 10),
		{"a@x.io", "b@x.io", "c@x.io"},
	} {
		tbl := dataset.MustNew(dataset.NewColumn("email", dataset.KindString, values))
		got, _ := c.Classify(tbl).Types.Get("email")
		assert.Equal(t, PII, got)
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	tbl := dataset.MustNew(
		dataset.NewColumn("id", dataset.KindInteger, sequence(30)),
		dataset.NewColumn("city", dataset.KindString, repeat([]any{"a", "b", "c"}, 30)),
		dataset.NewColumn("when", dataset.KindString, repeat([]any{"2024-03-01"}, 30)),
		dataset.NewColumn("value", dataset.KindFloat, repeat([]any{1.0, 7.0}, 30)),
	)
	c := newClassifier(t, func(cfg *Config) { cfg.Parallelism = 4 })

	first := c.Classify(tbl).Types
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, c.Classify(tbl).Types)
	}
}

func TestClassifyDatetimeUpgradeDoesNotMutateInput(t *testing.T) {
	tbl := dataset.MustNew(dataset.NewColumn("when", dataset.KindString, []any{"02/01/2024", nil, "03/04/2024"}))

	res := newClassifier(t).Classify(tbl)

	orig, _ := tbl.Column("when")
	assert.Equal(t, dataset.KindString, orig.Kind)
	assert.Equal(t, "02/01/2024", orig.Values[0])

	upgraded, _ := res.Table.Column("when")
	require.Equal(t, dataset.KindDatetime, upgraded.Kind)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), upgraded.Values[0])
	assert.Nil(t, upgraded.Values[1])
	// Day-first.
	assert.Equal(t, time.Date(2024, 4, 3, 0, 0, 0, 0, time.UTC), upgraded.Values[2])
}

func TestClassifyDatesUseOneLayoutPerColumn(t *testing.T) {
	tests := []struct {
		name   string
		values []any
		want   []time.Time
	}{
		{
			name:   "Month-first when day-first cannot parse every value",
			values: []any{"01/02/2024", "12/31/2024"},
			want: []time.Time{
				time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			name:   "Day-first when it fits",
			values: []any{"01/02/2024", "31/12/2024"},
			want: []time.Time{
				time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := dataset.MustNew(dataset.NewColumn("when", dataset.KindString, tt.values))
			res := newClassifier(t).Classify(tbl)

			got, _ := res.Types.Get("when")
			require.Equal(t, Datetime, got)
			col, _ := res.Table.Column("when")
			for i, w := range tt.want {
				assert.Equal(t, w, col.Values[i])
			}
		})
	}
}

func TestClassifyMixedDateLayoutsStayStrings(t *testing.T) {
	tbl := dataset.MustNew(dataset.NewColumn("when", dataset.KindString, []any{"2024-01-02", "25/12/2023"}))
	res := newClassifier(t).Classify(tbl)

	got, _ := res.Types.Get("when")
	assert.Equal(t, Categorical, got)
	assert.Same(t, tbl, res.Table)
}

func TestClassifyPartialDatesStayStrings(t *testing.T) {
	tbl := dataset.MustNew(dataset.NewColumn("when", dataset.KindString, []any{"2024-01-02", "soon"}))
	res := newClassifier(t).Classify(tbl)

	got, _ := res.Types.Get("when")
	assert.Equal(t, Categorical, got)
	assert.Same(t, tbl, res.Table)
}

func TestClassifyAllNullStringIsNotDatetime(t *testing.T) {
	tbl := dataset.MustNew(dataset.NewColumn("when", dataset.KindString, []any{nil, nil}))
	got, _ := newClassifier(t).Classify(tbl).Types.Get("when")
	assert.NotEqual(t, Datetime, got)
}

func TestCategoricalThreshold(t *testing.T) {
	values := func(distinct int) []any {
		out := make([]any, 100)
		for i := range out {
			out[i] = fmt.Sprintf("v%d", i%distinct)
		}
		return out
	}
	tests := []struct {
		name     string
		distinct int
		mutate   func(*Config)
		want     SemanticType
	}{
		{"Below default", 19, nil, Categorical},
		{"At default", 20, nil, Other},
		{"Wide variant accepts 50", 50, func(c *Config) {
			c.CategoricalThreshold = 51
			c.CategoricalMaxLength = 25
		}, Categorical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mutators []func(*Config)
			if tt.mutate != nil {
				mutators = append(mutators, tt.mutate)
			}
			c := newClassifier(t, mutators...)
			tbl := dataset.MustNew(dataset.NewColumn("label", dataset.KindString, values(tt.distinct)))
			got, _ := c.Classify(tbl).Types.Get("label")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCategoricalLengthGate(t *testing.T) {
	long := "a value that is definitely longer than twenty five characters"
	tbl := dataset.MustNew(dataset.NewColumn("label", dataset.KindString, repeat([]any{long, "ok"}, 10)))
	c := newClassifier(t, func(cfg *Config) {
		cfg.CategoricalThreshold = 51
		cfg.CategoricalMaxLength = 25
	})
	got, _ := c.Classify(tbl).Types.Get("label")
	assert.Equal(t, Other, got)
}

func TestInjectedVocabulary(t *testing.T) {
	c := newClassifier(t, func(cfg *Config) {
		cfg.EmailNames = []string{"mail"}
		cfg.NameSubstrings = nil
		cfg.NameExact = nil
	})
	tbl := dataset.MustNew(
		dataset.NewColumn("mail", dataset.KindString, []any{"x"}),
		dataset.NewColumn("email", dataset.KindString, []any{"x"}),
		dataset.NewColumn("name", dataset.KindString, []any{"x"}),
	)
	types := c.Classify(tbl).Types
	assert.Equal(t, []string{"mail"}, types.Columns(PII))
}

func TestNewRejectsInvalidPattern(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IdentifierPatterns = []string{"("}
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestEmptyTable(t *testing.T) {
	res := newClassifier(t).Classify(dataset.MustNew())
	assert.Empty(t, res.Types)
}

func TestTypeMapMarshalKeepsOrder(t *testing.T) {
	m := TypeMap{{"z", Numerical}, {"a", Categorical}}

	b, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"z":"numerical","a":"categorical"}`, string(b))

	y, err := yaml.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, "z: numerical\na: categorical\n", string(y))
}
