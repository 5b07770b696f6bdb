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

// Package classifier assigns a semantic type to every column of a table
// using name, storage kind and cardinality heuristics.
package classifier

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/GoogleCloudPlatform/tabular-insights/internal/dataset"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config holds the vocabularies and thresholds used by the classifier.
type Config struct {
	UniquenessThreshold float64  `mapstructure:"uniqueness_threshold"`
	IdentifierPatterns  []string `mapstructure:"identifier_patterns"`
	EmailNames          []string `mapstructure:"email_names"`
	// AddressTokenSets matches a column whose name contains every token of
	// any one set, e.g. {"ip", "address"}.
	AddressTokenSets [][]string `mapstructure:"address_token_sets"`
	NameSubstrings   []string   `mapstructure:"name_substrings"`
	NameExact        []string   `mapstructure:"name_exact"`
	DateLayouts      []string   `mapstructure:"date_layouts"`

	// CategoricalThreshold is the exclusive upper bound on distinct values.
	CategoricalThreshold int `mapstructure:"categorical_threshold"`
	// When CategoricalMaxLength is positive, a column is categorical only if
	// more than CategoricalShortRatio of its values are shorter than it.
	CategoricalMaxLength  int     `mapstructure:"categorical_max_length"`
	CategoricalShortRatio float64 `mapstructure:"categorical_short_ratio"`

	TextRatio     float64 `mapstructure:"text_ratio"`
	TextMinLength int     `mapstructure:"text_min_length"`

	Parallelism int `mapstructure:"parallelism"`
}

// DefaultDateLayouts are tried in order against a whole column; day-first
// layouts precede month-first ones.
var DefaultDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006/01/02",
	"2006/01/02 15:04:05",
	"02/01/2006",
	"02/01/2006 15:04",
	"02/01/2006 15:04:05",
	"02-01-2006",
	"02.01.2006",
	"01/02/2006",
	"01/02/2006 15:04:05",
	"2 Jan 2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 January 2006",
}

// DefaultConfig returns the stock heuristics.
func DefaultConfig() Config {
	return Config{
		UniquenessThreshold: 0.9,
		IdentifierPatterns:  []string{`\bid\b`, `_id$`, `^id$`},
		EmailNames:          []string{"email", "email_address"},
		AddressTokenSets:    [][]string{{"ip", "address"}},
		NameSubstrings:      []string{"name"},
		NameExact: []string{
			"first_name", "last_name", "firstname", "lastname",
			"first", "last", "family_name", "surname",
		},
		DateLayouts:           DefaultDateLayouts,
		CategoricalThreshold:  20,
		CategoricalShortRatio: 0.8,
		TextRatio:             0.5,
		TextMinLength:         30,
		Parallelism:           runtime.GOMAXPROCS(0),
	}
}

// Classifier is stateless apart from its configuration and may be shared.
type Classifier struct {
	cfg        Config
	idPatterns []*regexp.Regexp
	logger     *zap.Logger
}

// Option customises a Classifier.
type Option func(*Classifier)

// WithLogger sets the logger used for per-column debug output.
func WithLogger(l *zap.Logger) Option {
	return func(c *Classifier) {
		c.logger = l
	}
}

// New validates cfg and builds a Classifier. Identifier patterns are matched
// case-insensitively.
func New(cfg Config, opts ...Option) (*Classifier, error) {
	c := &Classifier{cfg: cfg, logger: zap.NewNop()}
	for _, p := range cfg.IdentifierPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid identifier pattern %q: %w", p, err)
		}
		c.idPatterns = append(c.idPatterns, re)
	}
	if c.cfg.Parallelism <= 0 {
		c.cfg.Parallelism = 1
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Result is the outcome of a classification run. Table is the input table
// with every column recognised as a date string replaced by a datetime column.
type Result struct {
	Types TypeMap
	Table *dataset.Table
}

type columnResult struct {
	semantic SemanticType
	upgraded *dataset.Column
}

// Classify assigns a type to every column. It never fails and never modifies
// t; datetime upgrades are visible only through Result.Table.
func (c *Classifier) Classify(t *dataset.Table) Result {
	cols := t.Columns()
	rows := t.NumRows()
	results := make([]columnResult, len(cols))

	var g errgroup.Group
	g.SetLimit(c.cfg.Parallelism)
	for i, col := range cols {
		g.Go(func() error {
			results[i] = c.classifyColumn(col, rows)
			return nil
		})
	}
	_ = g.Wait()

	out := Result{Types: make(TypeMap, len(cols)), Table: t}
	for i, col := range cols {
		out.Types[i] = Assignment{Column: col.Name, Type: results[i].semantic}
		if results[i].upgraded != nil {
			out.Table = out.Table.WithColumn(results[i].upgraded)
		}
		c.logger.Debug("classified column",
			zap.String("column", col.Name),
			zap.String("kind", string(col.Kind)),
			zap.String("type", string(results[i].semantic)),
		)
	}
	return out
}

func (c *Classifier) classifyColumn(col *dataset.Column, rows int) columnResult {
	name := strings.ToLower(col.Name)

	if c.isIdentifier(name, col, rows) {
		return columnResult{semantic: Identifier}
	}
	if c.isPII(name) {
		return columnResult{semantic: PII}
	}
	if col.Kind.IsNumeric() {
		return columnResult{semantic: Numerical}
	}
	if col.Kind == dataset.KindDatetime {
		return columnResult{semantic: Datetime}
	}
	if col.Kind == dataset.KindString {
		if parsed, ok := c.parseDates(col); ok {
			return columnResult{semantic: Datetime, upgraded: parsed}
		}
	}
	if (col.Kind == dataset.KindString || col.Kind == dataset.KindBoolean) && c.isCategorical(col) {
		return columnResult{semantic: Categorical}
	}
	if col.Kind == dataset.KindString && c.isText(col) {
		return columnResult{semantic: Text}
	}
	return columnResult{semantic: Other}
}

func (c *Classifier) isIdentifier(name string, col *dataset.Column, rows int) bool {
	if rows == 0 {
		return false
	}
	ratio := float64(col.Distinct()) / float64(rows)
	if ratio <= c.cfg.UniquenessThreshold {
		return false
	}
	for _, re := range c.idPatterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

func (c *Classifier) isPII(name string) bool {
	for _, e := range c.cfg.EmailNames {
		if name == strings.ToLower(e) {
			return true
		}
	}
	for _, set := range c.cfg.AddressTokenSets {
		if len(set) > 0 && containsAll(name, set) {
			return true
		}
	}
	for _, s := range c.cfg.NameSubstrings {
		if s != "" && strings.Contains(name, strings.ToLower(s)) {
			return true
		}
	}
	for _, n := range c.cfg.NameExact {
		if name == strings.ToLower(n) {
			return true
		}
	}
	return false
}

func containsAll(name string, tokens []string) bool {
	for _, tok := range tokens {
		if !strings.Contains(name, strings.ToLower(tok)) {
			return false
		}
	}
	return true
}

// parseDates converts a string column into a datetime column when it has at
// least one value and a single configured layout parses every value. Layouts
// are tried in order and the first one that fits the whole column wins, so a
// column is never read day-first in one row and month-first in another.
func (c *Classifier) parseDates(col *dataset.Column) (*dataset.Column, bool) {
	var (
		idx []int
		raw []string
	)
	for i, v := range col.Values {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		idx = append(idx, i)
		raw = append(raw, strings.TrimSpace(s))
	}
	if len(raw) == 0 {
		return nil, false
	}
	for _, layout := range c.cfg.DateLayouts {
		if parsed, ok := parseAll(layout, raw); ok {
			values := make([]any, len(col.Values))
			for j, i := range idx {
				values[i] = parsed[j]
			}
			return dataset.NewColumn(col.Name, dataset.KindDatetime, values), true
		}
	}
	return nil, false
}

func parseAll(layout string, raw []string) ([]time.Time, bool) {
	out := make([]time.Time, len(raw))
	for i, s := range raw {
		ts, err := time.Parse(layout, s)
		if err != nil {
			return nil, false
		}
		out[i] = ts
	}
	return out, true
}

func (c *Classifier) isCategorical(col *dataset.Column) bool {
	if col.Distinct() >= c.cfg.CategoricalThreshold {
		return false
	}
	if c.cfg.CategoricalMaxLength <= 0 {
		return true
	}
	values := col.Strings()
	if len(values) == 0 {
		return false
	}
	short := 0
	for _, s := range values {
		if len([]rune(s)) < c.cfg.CategoricalMaxLength {
			short++
		}
	}
	return float64(short)/float64(len(values)) > c.cfg.CategoricalShortRatio
}

func (c *Classifier) isText(col *dataset.Column) bool {
	values := col.Strings()
	if len(values) == 0 {
		return false
	}
	long := 0
	for _, s := range values {
		if len([]rune(s)) > c.cfg.TextMinLength {
			long++
		}
	}
	return float64(long)/float64(len(values)) > c.cfg.TextRatio
}
