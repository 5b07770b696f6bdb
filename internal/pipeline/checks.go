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
package pipeline

import (
	"errors"

	"github.com/GoogleCloudPlatform/tabular-insights/internal/dataset"
)

var (
	errNilTable     = errors.New("table is nil")
	errNoColumns    = errors.New("table has no columns")
	errNoRows       = errors.New("table is empty")
	errAllNullTable = errors.New("all columns are entirely null")
)

// DataSanityCheck rejects tables that cannot be cleaned meaningfully.
type DataSanityCheck struct{}

func (DataSanityCheck) Name() string { return "DataSanityCheck" }

func (DataSanityCheck) Check(t *dataset.Table) error {
	switch {
	case t == nil:
		return errNilTable
	case t.NumCols() == 0:
		return errNoColumns
	case t.NumRows() == 0:
		return errNoRows
	}
	for _, c := range t.Columns() {
		if !c.AllNull() {
			return nil
		}
	}
	return errAllNullTable
}
