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
package profiler

import (
	"github.com/GoogleCloudPlatform/tabular-insights/internal/classifier"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/dataset"
)

// Role is the statistical function of a column.
type Role string

const (
	RoleTimestamp   Role = "timestamp"
	RoleBinaryClass Role = "binary_class"
	RoleIdentifier  Role = "identifier"
	RoleMeasure     Role = "measure"
	RoleDimension   Role = "dimension"
)

// Statistics holds the descriptive statistics of a numeric column. Fields
// that are undefined for the data, such as the deviation of a single value,
// are nil. Non-numeric columns have no statistics at all.
type Statistics struct {
	Mean      *float64 `json:"mean,omitempty" yaml:"mean,omitempty"`
	Std       *float64 `json:"std,omitempty" yaml:"std,omitempty"`
	Min       *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max       *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Skewness  *float64 `json:"skewness,omitempty" yaml:"skewness,omitempty"`
	Kurtosis  *float64 `json:"kurtosis,omitempty" yaml:"kurtosis,omitempty"`
	ZeroCount *int     `json:"zeroCount,omitempty" yaml:"zeroCount,omitempty"`
}

// ColumnProfile summarises one column.
type ColumnProfile struct {
	Name              string                  `json:"name" yaml:"name"`
	DeclaredType      dataset.Kind            `json:"declaredType" yaml:"declaredType"`
	SemanticType      classifier.SemanticType `json:"semanticType,omitempty" yaml:"semanticType,omitempty"`
	Cardinality       int                     `json:"cardinality" yaml:"cardinality"`
	UniquenessRatio   float64                 `json:"uniquenessRatio" yaml:"uniquenessRatio"`
	MissingCount      int                     `json:"missingCount" yaml:"missingCount"`
	MissingPercentage float64                 `json:"missingPercentage" yaml:"missingPercentage"`
	IsBinary          bool                    `json:"isBinary" yaml:"isBinary"`
	IsTimeSeries      bool                    `json:"isTimeSeries" yaml:"isTimeSeries"`
	InferredRoles     []Role                  `json:"inferredRoles" yaml:"inferredRoles"`
	Statistics        Statistics              `json:"statistics" yaml:"statistics"`
}

// TypeCount is one entry of the storage type distribution.
type TypeCount struct {
	Type       dataset.Kind `json:"type" yaml:"type"`
	Count      int          `json:"count" yaml:"count"`
	Percentage float64      `json:"percentage" yaml:"percentage"`
}

// CorrelatedPair is a pair of numeric columns with a strong linear relation.
// ColumnA precedes ColumnB in table order.
type CorrelatedPair struct {
	ColumnA     string  `json:"columnA" yaml:"columnA"`
	ColumnB     string  `json:"columnB" yaml:"columnB"`
	Coefficient float64 `json:"coefficient" yaml:"coefficient"`
}

// DataProfile is the profile of a whole table.
type DataProfile struct {
	RowCount          int              `json:"rowCount" yaml:"rowCount"`
	ColumnCount       int              `json:"columnCount" yaml:"columnCount"`
	ColumnProfiles    []ColumnProfile  `json:"columnProfiles" yaml:"columnProfiles"`
	TypeDistribution  []TypeCount      `json:"typeDistribution" yaml:"typeDistribution"`
	BinaryColumns     []string         `json:"binaryColumns" yaml:"binaryColumns"`
	TimeSeriesColumns []string         `json:"timeSeriesColumns" yaml:"timeSeriesColumns"`
	CorrelatedPairs   []CorrelatedPair `json:"correlatedPairs" yaml:"correlatedPairs"`
	SampleRows        [][]any          `json:"sampleRows" yaml:"sampleRows"`
}

// Column returns the profile of the named column.
func (p *DataProfile) Column(name string) (ColumnProfile, bool) {
	for _, c := range p.ColumnProfiles {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnProfile{}, false
}
