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

package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/GoogleCloudPlatform/tabular-insights/internal/dataset"
)

type csvLoader struct{}

func init() {
	RegisterLoader("csv", csvLoader{})
}

// Load reads a comma separated file whose first record is the header.
func (csvLoader) Load(ctx context.Context, path string) (*dataset.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Format: "csv", Err: err}
	}
	defer f.Close()

	t, err := ReadCSV(ctx, f)
	if err != nil {
		return nil, &LoadError{Path: path, Format: "csv", Err: err}
	}
	return t, nil
}

// ReadCSV parses CSV content from r.
func ReadCSV(ctx context.Context, r io.Reader) (*dataset.Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoData
	}
	if err != nil {
		return nil, err
	}
	// Strip a UTF-8 byte order mark left by spreadsheet exports.
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var rows [][]string
	for {
		if len(rows)%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	return buildTable(widest(header, rows), rows)
}
