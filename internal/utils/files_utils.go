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
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ReadContextFiles reads the content of the specified context files and combines them into a single string.
func ReadContextFiles(filePaths string) (string, error) {
	if filePaths == "" {
		return "", nil // No context files provided
	}

	var combinedContext strings.Builder
	for _, path := range ParseList(filePaths) {
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read context file '%s': %w", path, err)
		}
		combinedContext.WriteString("\n-- Context from file: " + path + " --\n")
		combinedContext.Write(content)
	}
	return combinedContext.String(), nil
}

// DefaultOutputFilePath names the output of a command run against source,
// e.g. "sales_profile.json" for a profile of sales.csv.
func DefaultOutputFilePath(source, commandName, format string) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "output"
	}
	ext := format
	switch format {
	case "", "text":
		ext = "txt"
	case "yml":
		ext = "yaml"
	}
	return fmt.Sprintf("%s_%s.%s", base, commandName, ext)
}

// ParseList splits a comma separated flag value, trimming whitespace and
// dropping empty entries.
func ParseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// TableSelection is one table of a --tables flag and, optionally, the
// columns to keep from it.
type TableSelection struct {
	Table   string
	Columns []string
}

// ParseTablesFlag parses "table1[col1,col2],table2" into selections, in
// flag order.
func ParseTablesFlag(tablesFlag string) ([]TableSelection, error) {
	var selections []TableSelection
	if strings.TrimSpace(tablesFlag) == "" {
		return selections, nil
	}

	// Split by comma, but only if the comma is not within square brackets
	for _, part := range SplitOutsideBrackets(tablesFlag) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		bracketStart := strings.Index(part, "[")
		if bracketStart == -1 {
			if strings.Contains(part, "]") {
				return nil, fmt.Errorf("missing opening bracket in: %s", part)
			}
			selections = append(selections, TableSelection{Table: part})
			continue
		}
		bracketEnd := strings.Index(part, "]")
		if bracketEnd == -1 {
			return nil, fmt.Errorf("missing closing bracket in: %s", part)
		}
		if bracketEnd != len(part)-1 {
			return nil, fmt.Errorf("unexpected text after closing bracket in: %s", part)
		}

		tableName := strings.TrimSpace(part[:bracketStart])
		if tableName == "" {
			return nil, fmt.Errorf("missing table name in: %s", part)
		}
		selections = append(selections, TableSelection{
			Table:   tableName,
			Columns: ParseList(part[bracketStart+1 : bracketEnd]),
		})
	}

	return selections, nil
}

// SplitOutsideBrackets Helper function to split string by commas that are not within brackets
func SplitOutsideBrackets(s string) []string {
	var result []string
	var current strings.Builder
	inBrackets := false

	for _, char := range s {
		switch char {
		case '[':
			inBrackets = true
			current.WriteRune(char)
		case ']':
			inBrackets = false
			current.WriteRune(char)
		case ',':
			if inBrackets {
				current.WriteRune(char)
			} else {
				result = append(result, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(char)
		}
	}

	// Add the last part
	if current.Len() > 0 {
		result = append(result, current.String())
	}

	return result
}
