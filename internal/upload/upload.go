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
// Package upload accepts an uploaded spreadsheet, stores it briefly and loads
// it into a table.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/GoogleCloudPlatform/tabular-insights/internal/dataset"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/loader"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AllowedExtensions are matched case-insensitively.
var AllowedExtensions = []string{"csv", "xls", "xlsx"}

const (
	ReasonNoFile        = "No file part in the request!"
	ReasonNoFilename    = "No file selected!"
	ReasonInvalidFormat = "Invalid file format"
	ReasonNoData        = "no data"
)

// Error is a rejected upload. Reason is safe to show to the client.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "upload rejected: " + e.Reason
	}
	return fmt.Sprintf("upload rejected: %s: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// AllowedFile reports whether name has an allowed extension.
func AllowedFile(name string) bool {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return false
	}
	ext := strings.ToLower(name[i+1:])
	for _, a := range AllowedExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SecureFilename reduces name to a flat ASCII file name without path
// components. It may return an empty string.
func SecureFilename(name string) string {
	name = strings.NewReplacer("/", " ", `\`, " ").Replace(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}

// Intake writes uploads under a directory before loading them.
type Intake struct {
	dir    string
	logger *zap.Logger
}

// NewIntake stores uploads in dir, or in the system temp directory when dir
// is empty.
func NewIntake(dir string, logger *zap.Logger) *Intake {
	if dir == "" {
		dir = os.TempDir()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Intake{dir: dir, logger: logger}
}

// Result is a loaded upload.
type Result struct {
	Filename string
	Table    *dataset.Table
}

// Receive validates filename, copies r to a uniquely named file, loads it and
// removes the file again.
func (in *Intake) Receive(ctx context.Context, filename string, r io.Reader) (*Result, error) {
	if strings.TrimSpace(filename) == "" {
		in.logger.Warn("upload rejected", zap.String("reason", ReasonNoFilename))
		return nil, &Error{Reason: ReasonNoFilename}
	}
	if !AllowedFile(filename) {
		in.logger.Warn("upload rejected", zap.String("reason", ReasonInvalidFormat), zap.String("filename", filename))
		return nil, &Error{Reason: ReasonInvalidFormat}
	}
	safe := SecureFilename(filename)

	if err := os.MkdirAll(in.dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	path := filepath.Join(in.dir, uuid.NewString()+"."+loader.Extension(filename))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("creating upload file: %w", err)
	}
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			in.logger.Warn("failed to remove upload", zap.String("path", path), zap.Error(rmErr))
		}
	}()

	_, err = io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("storing upload: %w", err)
	}

	t, err := loader.Load(ctx, path)
	if err != nil {
		in.logger.Warn("upload could not be loaded", zap.String("filename", safe), zap.Error(err))
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &Error{Reason: ReasonNoData, Err: err}
	}

	in.logger.Info("upload processed",
		zap.String("filename", safe),
		zap.Int("rows", t.NumRows()),
		zap.Int("columns", t.NumCols()),
	)
	return &Result{Filename: safe, Table: t}, nil
}
