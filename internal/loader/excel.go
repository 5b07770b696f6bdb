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
	"fmt"

	"github.com/GoogleCloudPlatform/tabular-insights/internal/dataset"
	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

type xlsxLoader struct{}

type xlsLoader struct{}

func init() {
	RegisterLoader("xlsx", xlsxLoader{})
	RegisterLoader("xls", xlsLoader{})
}

// Load reads the first sheet of an Office Open XML workbook.
func (xlsxLoader) Load(ctx context.Context, path string) (*dataset.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Format: "xlsx", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &LoadError{Path: path, Format: "xlsx", Err: ErrNoData}
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &LoadError{Path: path, Format: "xlsx", Err: fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)}
	}
	t, err := tableFromSheet(rows)
	if err != nil {
		return nil, &LoadError{Path: path, Format: "xlsx", Err: err}
	}
	return t, nil
}

// Load reads the first sheet of a legacy BIFF workbook.
func (xlsLoader) Load(ctx context.Context, path string) (*dataset.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, &LoadError{Path: path, Format: "xls", Err: err}
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, &LoadError{Path: path, Format: "xls", Err: ErrNoData}
	}

	var rows [][]string
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for j := range cells {
			cells[j] = row.Col(j)
		}
		rows = append(rows, cells)
	}
	t, err := tableFromSheet(rows)
	if err != nil {
		return nil, &LoadError{Path: path, Format: "xls", Err: err}
	}
	return t, nil
}

// tableFromSheet treats the first non-empty row as the header.
func tableFromSheet(rows [][]string) (*dataset.Table, error) {
	for len(rows) > 0 && len(rows[0]) == 0 {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return nil, ErrNoData
	}
	header, data := rows[0], rows[1:]
	return buildTable(widest(header, data), data)
}
