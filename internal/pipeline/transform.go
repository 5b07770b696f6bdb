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
	"sort"

	"github.com/GoogleCloudPlatform/tabular-insights/internal/dataset"
	"gonum.org/v1/gonum/floats"
)

// MinMaxNormalizer scales every numeric column to [0, 1]. Constant columns
// become 0; missing values stay missing.
type MinMaxNormalizer struct{}

func (MinMaxNormalizer) Name() string { return "MinMaxNormalizer" }

func (MinMaxNormalizer) Normalize(t *dataset.Table) (*dataset.Table, error) {
	out := t
	for _, c := range t.Columns() {
		if !c.Kind.IsNumeric() {
			continue
		}
		values := c.Floats()
		if len(values) == 0 {
			continue
		}
		lo, hi := floats.Min(values), floats.Max(values)
		span := hi - lo

		scaled := make([]any, c.Len())
		for i, v := range c.Values {
			f, ok := v.(float64)
			if !ok {
				continue
			}
			if span == 0 {
				scaled[i] = 0.0
			} else {
				scaled[i] = (f - lo) / span
			}
		}
		out = out.WithColumn(dataset.NewColumn(c.Name, dataset.KindFloat, scaled))
	}
	return out, nil
}

// LabelEncoder replaces string and boolean values with integer codes assigned
// in sorted order of the distinct values.
type LabelEncoder struct{}

func (LabelEncoder) Name() string { return "LabelEncoder" }

func (LabelEncoder) Encode(t *dataset.Table) (*dataset.Table, error) {
	out := t
	for _, c := range t.Columns() {
		if c.Kind != dataset.KindString && c.Kind != dataset.KindBoolean {
			continue
		}
		labels := make(map[string]struct{})
		for _, s := range c.Strings() {
			labels[s] = struct{}{}
		}
		sorted := make([]string, 0, len(labels))
		for s := range labels {
			sorted = append(sorted, s)
		}
		sort.Strings(sorted)
		codes := make(map[string]float64, len(sorted))
		for i, s := range sorted {
			codes[s] = float64(i)
		}

		encoded := make([]any, c.Len())
		for i, v := range c.Values {
			if v == nil {
				continue
			}
			encoded[i] = codes[dataset.FormatCell(v)]
		}
		out = out.WithColumn(dataset.NewColumn(c.Name, dataset.KindInteger, encoded))
	}
	return out, nil
}
