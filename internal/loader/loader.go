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

// Package loader parses tabular files into dataset tables. Each supported
// format registers itself by file extension.
package loader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/GoogleCloudPlatform/tabular-insights/internal/dataset"
)

var (
	// ErrUnsupportedFormat is returned for extensions outside the allow-list.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrNoData is returned when a file parses but holds no header row.
	ErrNoData = errors.New("no data")
)

// LoadError describes a failure to turn a file into a table.
type LoadError struct {
	Path   string
	Format string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("failed to load %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("failed to load %s file %s: %v", e.Format, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Loader reads one file format.
type Loader interface {
	Load(ctx context.Context, path string) (*dataset.Table, error)
}

// NullTokens are the raw cell values treated as missing at load time. Other
// garbage tokens are left to the cleaning pipeline.
var NullTokens = []string{""}

var (
	loadersMu sync.RWMutex
	loaders   = make(map[string]Loader)
)

// RegisterLoader registers a loader for a file extension, without the dot.
func RegisterLoader(ext string, l Loader) {
	loadersMu.Lock()
	defer loadersMu.Unlock()
	loaders[strings.ToLower(ext)] = l
}

// SupportedFormats returns the registered extensions in sorted order.
func SupportedFormats() []string {
	loadersMu.RLock()
	defer loadersMu.RUnlock()
	exts := make([]string, 0, len(loaders))
	for ext := range loaders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Extension returns the lower-cased extension of path without the dot.
func Extension(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// ForPath returns the loader registered for the extension of path.
func ForPath(path string) (Loader, error) {
	ext := Extension(path)
	loadersMu.RLock()
	l, ok := loaders[ext]
	loadersMu.RUnlock()
	if !ok {
		return nil, &LoadError{
			Path: path,
			Err:  fmt.Errorf("%w %q, supported formats: %s", ErrUnsupportedFormat, ext, strings.Join(SupportedFormats(), ", ")),
		}
	}
	return l, nil
}

// Load picks a loader by extension and reads path.
func Load(ctx context.Context, path string) (*dataset.Table, error) {
	l, err := ForPath(path)
	if err != nil {
		return nil, err
	}
	return l.Load(ctx, path)
}

// buildTable turns a header row plus data rows into a typed table. Header
// names are trimmed; blank names become "Unnamed: i" and repeated names get a
// ".n" suffix. Short rows are padded with missing cells.
func buildTable(header []string, rows [][]string) (*dataset.Table, error) {
	if len(header) == 0 {
		return nil, ErrNoData
	}
	names := headerNames(header)

	columns := make([]*dataset.Column, len(names))
	raw := make([]string, len(rows))
	for j, name := range names {
		for i, row := range rows {
			if j < len(row) {
				raw[i] = row[j]
			} else {
				raw[i] = ""
			}
		}
		columns[j] = dataset.ParseColumn(name, raw, NullTokens...)
	}
	return dataset.New(columns...)
}

func headerNames(header []string) []string {
	names := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		} else {
			seen[name] = 0
		}
		names[i] = name
	}
	return names
}

// widest returns the longest row length, used to size headers of ragged sheets.
func widest(header []string, rows [][]string) []string {
	width := len(header)
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	if width == len(header) {
		return header
	}
	padded := make([]string, width)
	copy(padded, header)
	return padded
}
