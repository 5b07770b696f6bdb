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
package classifier

import (
	"bytes"
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// SemanticType is the inferred meaning of a column.
type SemanticType string

const (
	Identifier  SemanticType = "identifier"
	PII         SemanticType = "pii"
	Numerical   SemanticType = "numerical"
	Categorical SemanticType = "categorical"
	Datetime    SemanticType = "datetime"
	Text        SemanticType = "text"
	Other       SemanticType = "other"
)

// Assignment binds one column to its semantic type.
type Assignment struct {
	Column string       `json:"column" yaml:"column"`
	Type   SemanticType `json:"type" yaml:"type"`
}

// TypeMap lists the assignment of every column in table order.
type TypeMap []Assignment

// Get returns the type assigned to column.
func (m TypeMap) Get(column string) (SemanticType, bool) {
	for _, a := range m {
		if a.Column == column {
			return a.Type, true
		}
	}
	return "", false
}

// Columns returns, in table order, the columns assigned type t.
func (m TypeMap) Columns(t SemanticType) []string {
	var cols []string
	for _, a := range m {
		if a.Type == t {
			cols = append(cols, a.Column)
		}
	}
	return cols
}

// MarshalJSON renders the map as a JSON object whose keys keep table order.
func (m TypeMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, a := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(a.Column)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(string(a.Type))
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML renders the map as an ordered YAML mapping.
func (m TypeMap) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, a := range m {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: a.Column},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: string(a.Type)},
		)
	}
	return node, nil
}
