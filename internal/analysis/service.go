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
// Package analysis runs classification, cleaning, profiling and chart
// recommendation over a table and assembles the results into a report.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/GoogleCloudPlatform/tabular-insights/internal/classifier"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/database"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/dataset"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/genai"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/pipeline"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/profiler"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/recommender"
	"go.uber.org/zap"
)

type Config struct {
	Classifier           classifier.Config
	Pipeline             pipeline.Settings
	CorrelationThreshold float64
	SampleSize           int
	// PreviewRows is the number of cleaned rows included in a report.
	PreviewRows int
	Retry       RetryOptions
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		Classifier:           classifier.DefaultConfig(),
		Pipeline:             pipeline.DefaultSettings(),
		CorrelationThreshold: profiler.DefaultCorrelationThreshold,
		SampleSize:           profiler.DefaultSampleSize,
		PreviewRows:          10,
		Retry:                DefaultRetryOptions,
	}
}

type Service struct {
	classifier  *classifier.Classifier
	pipeline    *pipeline.Handler
	recommender *recommender.Recommender
	llmClient   genai.LLMClient
	cfg         Config
	logger      *zap.Logger
}

// NewService builds the stage components from cfg. llm may be nil, in which
// case insights are never produced.
func NewService(llm genai.LLMClient, cfg Config, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c, err := classifier.New(cfg.Classifier, classifier.WithLogger(logger.Named("classifier")))
	if err != nil {
		return nil, &ErrInvalidInput{Msg: "classifier configuration", Err: err}
	}
	h, err := pipeline.Build(cfg.Pipeline, logger.Named("pipeline"))
	if err != nil {
		return nil, &ErrInvalidInput{Msg: "pipeline configuration", Err: err}
	}
	return &Service{
		classifier:  c,
		pipeline:    h,
		recommender: recommender.New(recommender.WithLogger(logger.Named("recommender"))),
		llmClient:   llm,
		cfg:         cfg,
		logger:      logger,
	}, nil
}

// Report is the combined result of an analysis run.
type Report struct {
	// Types are the semantic types of the columns as received.
	Types           classifier.TypeMap           `json:"types" yaml:"types"`
	Recommendations []recommender.Recommendation `json:"recommendations" yaml:"recommendations"`
	Cleaned         dataset.Preview              `json:"cleaned" yaml:"cleaned"`
	// Profile describes the cleaned table.
	Profile  *profiler.DataProfile `json:"profile" yaml:"profile"`
	Insights string                `json:"insights,omitempty" yaml:"insights,omitempty"`

	CleanedTable *dataset.Table `json:"-" yaml:"-"`
}

type AnalyzeOptions struct {
	Insights bool
	// Context is passed to the model along with the profile.
	Context string
}

// Classify assigns a semantic type to every column. Datetime columns held as
// strings come back parsed in the result table.
func (s *Service) Classify(t *dataset.Table) classifier.Result {
	return s.classifier.Classify(t)
}

// Preprocess cleans t after upgrading its datetime columns.
func (s *Service) Preprocess(ctx context.Context, t *dataset.Table) (*dataset.Table, error) {
	res := s.classifier.Classify(t)
	return s.pipeline.Preprocess(ctx, res.Table)
}

// Profile profiles t as given, annotated with its semantic types.
func (s *Service) Profile(t *dataset.Table) *profiler.DataProfile {
	res := s.classifier.Classify(t)
	return s.profiler(res.Types).Profile(res.Table)
}

// Recommend suggests charts for t.
func (s *Service) Recommend(t *dataset.Table) []recommender.Recommendation {
	res := s.classifier.Classify(t)
	return s.recommender.Recommend(res.Types, res.Table)
}

// Analyze classifies t, recommends charts from those types, cleans the table
// and profiles the cleaned result. Insights are attached when requested and
// available; failing to produce them never fails the analysis.
func (s *Service) Analyze(ctx context.Context, t *dataset.Table, opts AnalyzeOptions) (*Report, error) {
	raw := s.classifier.Classify(t)
	recs := s.recommender.Recommend(raw.Types, raw.Table)

	cleaned, err := s.pipeline.Preprocess(ctx, raw.Table)
	if err != nil {
		return nil, err
	}

	final := s.classifier.Classify(cleaned)
	profile := s.profiler(final.Types).Profile(final.Table)

	report := &Report{
		Types:           raw.Types,
		Recommendations: recs,
		Cleaned:         final.Table.Preview(s.cfg.PreviewRows),
		Profile:         profile,
		CleanedTable:    final.Table,
	}

	if opts.Insights {
		report.Insights = s.insights(ctx, genai.InsightRequest{
			Profile:         profile,
			Recommendations: recs,
			Context:         opts.Context,
		})
	}

	s.logger.Info("analysis complete",
		zap.Int("rows", t.NumRows()),
		zap.Int("cleanedRows", final.Table.NumRows()),
		zap.Int("recommendations", len(recs)),
		zap.Bool("insights", report.Insights != ""),
	)
	return report, nil
}

func (s *Service) profiler(types classifier.TypeMap) *profiler.Profiler {
	return profiler.New(
		profiler.WithTypes(types),
		profiler.WithCorrelationThreshold(s.cfg.CorrelationThreshold),
		profiler.WithSampleSize(s.cfg.SampleSize),
		profiler.WithParallelism(s.cfg.Classifier.Parallelism),
		profiler.WithLogger(s.logger.Named("profiler")),
	)
}

func (s *Service) insights(ctx context.Context, req genai.InsightRequest) string {
	if s.llmClient == nil {
		s.logger.Warn("insights requested but no Gemini client is configured")
		return ""
	}
	text, err := withRetry(ctx, s.cfg.Retry, s.logger, func(ctx context.Context) (string, error) {
		out, err := s.llmClient.GenerateInsights(ctx, req)
		return out, classifyModelError(err)
	})
	if err != nil {
		s.logger.Warn("failed to generate insights", zap.Error(err))
		return ""
	}
	return text
}

// LoadTable reads a table from db, retrying transient connection and query
// failures.
func (s *Service) LoadTable(ctx context.Context, db database.DBAdapter, table string, limit int) (*dataset.Table, error) {
	if strings.TrimSpace(table) == "" {
		return nil, &ErrInvalidInput{Msg: "table name is required"}
	}
	if limit < 0 {
		return nil, &ErrInvalidInput{Msg: fmt.Sprintf("invalid row limit %d", limit)}
	}
	return withRetry(ctx, s.cfg.Retry, s.logger, func(ctx context.Context) (*dataset.Table, error) {
		if err := db.Ping(ctx); err != nil {
			return nil, contextError(err, &ErrDatabaseConnection{Msg: "ping failed", Err: err})
		}
		t, err := db.ReadTable(ctx, table, limit)
		if err != nil {
			return nil, contextError(err, &ErrQueryExecution{Msg: fmt.Sprintf("reading table %s", table), Err: err})
		}
		return t, nil
	})
}

// contextError prefers the context-derived error types over fallback.
func contextError(err, fallback error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return &ErrCancelled{Msg: "operation cancelled", Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &ErrTimeout{Msg: "operation timed out", Err: err}
	}
	return fallback
}

// SelectColumns restricts t to the named columns, keeping table order. An
// empty selection returns t unchanged.
func SelectColumns(t *dataset.Table, columns []string) (*dataset.Table, error) {
	if len(columns) == 0 {
		return t, nil
	}
	allowed := make(map[string]bool, len(columns))
	for _, c := range columns {
		if _, ok := t.Column(c); !ok {
			return nil, &ErrInvalidInput{Msg: fmt.Sprintf("unknown column %q", c)}
		}
		allowed[c] = true
	}
	var drop []string
	for _, name := range t.Names() {
		if !allowed[name] {
			drop = append(drop, name)
		}
	}
	return t.DropColumns(drop...), nil
}
