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

// Package pipeline cleans a table by running validation checks followed by an
// ordered chain of treatments and an optional normalizer and encoder.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/GoogleCloudPlatform/tabular-insights/internal/dataset"
	"go.uber.org/zap"
)

// Check validates a table without changing it.
type Check interface {
	Name() string
	Check(t *dataset.Table) error
}

// Treatment returns a cleaned copy of its input.
type Treatment interface {
	Name() string
	Treat(t *dataset.Table) (*dataset.Table, error)
}

// Normalizer rescales numeric columns.
type Normalizer interface {
	Name() string
	Normalize(t *dataset.Table) (*dataset.Table, error)
}

// Encoder converts categorical columns into numeric codes.
type Encoder interface {
	Name() string
	Encode(t *dataset.Table) (*dataset.Table, error)
}

// State is a step of a preprocessing run.
type State string

const (
	StateValidating  State = "validating"
	StateTreating    State = "treating"
	StateNormalizing State = "normalizing"
	StateEncoding    State = "encoding"
	StateDone        State = "done"
	StateRejected    State = "rejected"
)

// Handler owns the configured stages. It keeps no state between runs and is
// safe for concurrent use as long as its stages are.
type Handler struct {
	checks     []Check
	treatments []Treatment
	normalizer Normalizer
	encoder    Encoder
	logger     *zap.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithChecks appends validation checks.
func WithChecks(checks ...Check) Option {
	return func(h *Handler) {
		h.checks = append(h.checks, checks...)
	}
}

// WithTreatments appends treatments, which run in the order given.
func WithTreatments(treatments ...Treatment) Option {
	return func(h *Handler) {
		h.treatments = append(h.treatments, treatments...)
	}
}

func WithNormalizer(n Normalizer) Option {
	return func(h *Handler) {
		h.normalizer = n
	}
}

func WithEncoder(e Encoder) Option {
	return func(h *Handler) {
		h.encoder = e
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(h *Handler) {
		h.logger = l
	}
}

// NewHandler builds a Handler from options. Without options it validates
// nothing and returns its input unchanged.
func NewHandler(opts ...Option) *Handler {
	h := &Handler{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewDefaultHandler returns the stock pipeline: the sanity check followed by
// garbage, missing value, outlier and duplicate treatments.
func NewDefaultHandler(opts ...Option) *Handler {
	base := []Option{
		WithChecks(DataSanityCheck{}),
		WithTreatments(
			NewGarbageValueTreatment(),
			MissingValueTreatment{},
			NewOutlierTreatment(),
			DuplicateTreatment{},
		),
	}
	return NewHandler(append(base, opts...)...)
}

// Preprocess validates t and runs the treatment chain over a copy of it.
//
// The context is only consulted before the treatment chain starts; a run
// that has begun treating always completes or fails on its own.
func (h *Handler) Preprocess(ctx context.Context, t *dataset.Table) (*dataset.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.enter(StateValidating)
	if err := h.validate(t); err != nil {
		h.enter(StateRejected, zap.Error(err))
		return nil, err
	}

	h.enter(StateTreating, zap.Int("rows", t.NumRows()), zap.Int("columns", t.NumCols()))
	cur := t.Clone()
	for _, tr := range h.treatments {
		next, err := runStage(tr.Name(), cur, tr.Treat)
		if err != nil {
			h.logger.Error("treatment failed", zap.String("stage", tr.Name()), zap.Error(err))
			return nil, err
		}
		h.logger.Debug("treatment applied",
			zap.String("stage", tr.Name()),
			zap.Int("rows", next.NumRows()),
			zap.Int("columns", next.NumCols()),
		)
		cur = next
	}

	if h.normalizer != nil {
		h.enter(StateNormalizing, zap.String("stage", h.normalizer.Name()))
		next, err := runStage(h.normalizer.Name(), cur, h.normalizer.Normalize)
		if err != nil {
			return nil, err
		}
		cur = next
	}

	if h.encoder != nil {
		h.enter(StateEncoding, zap.String("stage", h.encoder.Name()))
		next, err := runStage(h.encoder.Name(), cur, h.encoder.Encode)
		if err != nil {
			return nil, err
		}
		cur = next
	}

	h.enter(StateDone, zap.Int("rows", cur.NumRows()), zap.Int("columns", cur.NumCols()))
	return cur, nil
}

func (h *Handler) enter(s State, fields ...zap.Field) {
	h.logger.Info("preprocessing state", append([]zap.Field{zap.String("state", string(s))}, fields...)...)
}

// validate runs every check and collects all failures.
func (h *Handler) validate(t *dataset.Table) error {
	var failures []CheckFailure
	for _, c := range h.checks {
		if err := c.Check(t); err != nil {
			failures = append(failures, CheckFailure{Check: c.Name(), Reason: err.Error()})
		}
	}
	if t == nil && len(failures) == 0 {
		failures = append(failures, CheckFailure{Check: "input", Reason: errNilTable.Error()})
	}
	if len(failures) > 0 {
		return &ValidationError{Failures: failures}
	}
	return nil
}

// runStage invokes one stage, converting returned errors and panics into a
// *TreatmentError tagged with the stage name.
func runStage(name string, in *dataset.Table, fn func(*dataset.Table) (*dataset.Table, error)) (out *dataset.Table, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &TreatmentError{Stage: name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	out, err = fn(in)
	if err != nil {
		var te *TreatmentError
		if errors.As(err, &te) {
			if te.Stage == "" {
				te.Stage = name
			}
			return nil, te
		}
		return nil, &TreatmentError{Stage: name, Err: err}
	}
	if out == nil {
		return nil, &TreatmentError{Stage: name, Err: errors.New("stage returned no table")}
	}
	return out, nil
}
