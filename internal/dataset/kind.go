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

package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is the storage type of a column.
type Kind string

const (
	KindInteger  Kind = "integer"
	KindFloat    Kind = "float"
	KindBoolean  Kind = "boolean"
	KindDatetime Kind = "datetime"
	KindString   Kind = "string"
)

// IsNumeric reports whether cells of this kind are float64 numbers.
func (k Kind) IsNumeric() bool {
	return k == KindInteger || k == KindFloat
}

// InferKind picks the narrowest kind able to hold every non-empty value:
// integer, then float, then boolean, falling back to string. A column with no
// values at all is a string column.
func InferKind(values []string) Kind {
	isInt, isFloat, isBool := true, true, true
	seen := false
	for _, v := range values {
		if v == "" {
			continue
		}
		seen = true
		if isInt {
			if _, ok := parseInt(v); !ok {
				isInt = false
			}
		}
		if isFloat {
			if _, ok := parseFloat(v); !ok {
				isFloat = false
			}
		}
		if isBool {
			if _, ok := parseBool(v); !ok {
				isBool = false
			}
		}
		if !isInt && !isFloat && !isBool {
			break
		}
	}
	switch {
	case !seen:
		return KindString
	case isInt:
		return KindInteger
	case isFloat:
		return KindFloat
	case isBool:
		return KindBoolean
	default:
		return KindString
	}
}

// ParseColumn converts raw strings into a typed column. Values equal to one of
// nullTokens become missing before inference.
func ParseColumn(name string, raw []string, nullTokens ...string) *Column {
	nulls := make(map[string]struct{}, len(nullTokens))
	for _, t := range nullTokens {
		nulls[t] = struct{}{}
	}
	cleaned := make([]string, len(raw))
	for i, v := range raw {
		if _, ok := nulls[v]; ok {
			continue
		}
		cleaned[i] = v
	}

	kind := InferKind(cleaned)
	values := make([]any, len(cleaned))
	for i, v := range cleaned {
		if v == "" {
			continue
		}
		values[i] = parseCell(kind, v)
	}
	return NewColumn(name, kind, values)
}

// Retype re-infers the kind of a string column. Columns of any other kind, and
// string columns whose values are not uniformly integer, float or boolean, are
// returned unchanged.
func Retype(col *Column) *Column {
	if col.Kind != KindString {
		return col
	}
	raw := make([]string, len(col.Values))
	for i, v := range col.Values {
		if s, ok := v.(string); ok {
			raw[i] = s
		}
	}
	kind := InferKind(raw)
	if kind == KindString {
		return col
	}
	values := make([]any, len(raw))
	for i, v := range raw {
		if v == "" {
			continue
		}
		values[i] = parseCell(kind, v)
	}
	return NewColumn(col.Name, kind, values)
}

// FromValues builds a column from values returned by a database driver.
// Supported cell types are the integer and float families, []byte, string,
// time.Time and bool; anything else is rendered with fmt.
func FromValues(name string, raw []any) *Column {
	var ints, floats, bools, times, others int
	for _, v := range raw {
		switch v.(type) {
		case nil:
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			ints++
		case float32, float64:
			floats++
		case bool:
			bools++
		case time.Time:
			times++
		default:
			others++
		}
	}

	values := make([]any, len(raw))
	var kind Kind
	switch {
	case others == 0 && bools == 0 && times == 0 && floats == 0 && ints > 0:
		kind = KindInteger
	case others == 0 && bools == 0 && times == 0 && floats > 0:
		kind = KindFloat
	case others == 0 && ints == 0 && floats == 0 && times == 0 && bools > 0:
		kind = KindBoolean
	case others == 0 && ints == 0 && floats == 0 && bools == 0 && times > 0:
		kind = KindDatetime
	default:
		kind = KindString
	}

	for i, v := range raw {
		if v == nil {
			continue
		}
		switch kind {
		case KindInteger, KindFloat:
			values[i] = toFloat(v)
		case KindBoolean, KindDatetime:
			values[i] = v
		default:
			values[i] = toString(v)
		}
	}
	return Retype(NewColumn(name, kind, values))
}

func parseCell(kind Kind, s string) any {
	switch kind {
	case KindInteger:
		n, _ := parseInt(s)
		return float64(n)
	case KindFloat:
		f, _ := parseFloat(s)
		return f
	case KindBoolean:
		b, _ := parseBool(s)
		return b
	default:
		return s
	}
}

func parseInt(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n, err == nil
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseBool(s string) (bool, bool) {
	switch s {
	case "true", "True", "TRUE":
		return true, true
	case "false", "False", "FALSE":
		return false, true
	}
	return false, false
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int8:
		return float64(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint8:
		return float64(x)
	case uint16:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case float32:
		return float64(x)
	case float64:
		return x
	}
	return math.NaN()
}

func toString(v any) string {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case string:
		return x
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", x)
	}
}
