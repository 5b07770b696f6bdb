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
// Package report renders analysis results for the terminal or as JSON or
// YAML documents.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/GoogleCloudPlatform/tabular-insights/internal/analysis"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/classifier"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/database"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/dataset"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/profiler"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/recommender"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	Text Format = "text"
	JSON Format = "json"
	YAML Format = "yaml"
)

// Formats lists the accepted output formats.
var Formats = []Format{Text, JSON, YAML}

// ParseFormat accepts a format name case-insensitively. "yml" is an alias
// for YAML and the empty string selects Text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "table":
		return Text, nil
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	}
	return "", fmt.Errorf("unsupported output format %q (expected text, json or yaml)", s)
}

// Renderer writes results to w in one format.
type Renderer struct {
	w      io.Writer
	format Format
}

func New(w io.Writer, format Format) *Renderer {
	return &Renderer{w: w, format: format}
}

// Types renders a type map.
func (r *Renderer) Types(types classifier.TypeMap) error {
	if r.format != Text {
		return r.encode(types)
	}
	r.writeTypes(types)
	return nil
}

// Preview renders the first rows of a table.
func (r *Renderer) Preview(p dataset.Preview) error {
	if r.format != Text {
		return r.encode(p)
	}
	r.writePreview(p)
	return nil
}

// Profile renders a data profile.
func (r *Renderer) Profile(p *profiler.DataProfile) error {
	if r.format != Text {
		return r.encode(p)
	}
	r.writeProfile(p)
	return nil
}

// Recommendations renders chart recommendations in priority order.
func (r *Renderer) Recommendations(recs []recommender.Recommendation) error {
	if r.format != Text {
		return r.encode(recs)
	}
	r.writeRecommendations(recs)
	return nil
}

// Report renders a full analysis report.
func (r *Renderer) Report(rep *analysis.Report) error {
	if r.format != Text {
		return r.encode(rep)
	}
	r.heading("Column types")
	r.writeTypes(rep.Types)
	r.heading("Recommended charts")
	r.writeRecommendations(rep.Recommendations)
	r.heading("Cleaned data")
	r.writePreview(rep.Cleaned)
	r.heading("Profile")
	r.writeProfile(rep.Profile)
	if rep.Insights != "" {
		r.heading("Insights")
		fmt.Fprintln(r.w, strings.TrimSpace(rep.Insights))
	}
	return nil
}

// Names renders a plain list, such as the tables of a database.
func (r *Renderer) Names(header string, names []string) error {
	if names == nil {
		names = []string{}
	}
	if r.format != Text {
		return r.encode(names)
	}
	t := r.newTable()
	t.AppendHeader(table.Row{header})
	for _, n := range names {
		t.AppendRow(table.Row{n})
	}
	t.Render()
	return nil
}

// Columns renders the columns of a database table.
func (r *Renderer) Columns(cols []database.ColumnInfo) error {
	if cols == nil {
		cols = []database.ColumnInfo{}
	}
	if r.format != Text {
		return r.encode(cols)
	}
	t := r.newTable()
	t.AppendHeader(table.Row{"Column", "Data Type"})
	for _, c := range cols {
		t.AppendRow(table.Row{c.Name, c.DataType})
	}
	t.Render()
	return nil
}

func (r *Renderer) encode(v any) error {
	switch r.format {
	case JSON:
		enc := json.NewEncoder(r.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case YAML:
		enc := yaml.NewEncoder(r.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unsupported output format %q", r.format)
}

func (r *Renderer) newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.w)
	t.SetStyle(table.StyleLight)
	return t
}

func (r *Renderer) heading(title string) {
	fmt.Fprintf(r.w, "\n== %s ==\n", title)
}

func (r *Renderer) writeTypes(types classifier.TypeMap) {
	t := r.newTable()
	t.AppendHeader(table.Row{"Column", "Semantic Type"})
	for _, a := range types {
		t.AppendRow(table.Row{a.Column, string(a.Type)})
	}
	t.Render()
}

func (r *Renderer) writePreview(p dataset.Preview) {
	if len(p.Columns) == 0 {
		fmt.Fprintln(r.w, "(0 columns)")
		return
	}
	t := r.newTable()
	header := make(table.Row, len(p.Columns))
	for i, c := range p.Columns {
		header[i] = c
	}
	t.AppendHeader(header)
	for _, row := range p.Rows {
		out := make(table.Row, len(row))
		for i, v := range row {
			out[i] = dataset.FormatCell(v)
		}
		t.AppendRow(out)
	}
	t.Render()
	fmt.Fprintf(r.w, "(%d of %d rows)\n", len(p.Rows), p.RowCount)
}

func (r *Renderer) writeProfile(p *profiler.DataProfile) {
	if p == nil {
		fmt.Fprintln(r.w, "(no profile)")
		return
	}
	fmt.Fprintf(r.w, "Rows: %d  Columns: %d\n", p.RowCount, p.ColumnCount)

	t := r.newTable()
	t.AppendHeader(table.Row{"Column", "Storage", "Semantic", "Distinct", "Missing %", "Role", "Mean", "Std", "Min", "Max"})
	for _, c := range p.ColumnProfiles {
		roles := make([]string, len(c.InferredRoles))
		for i, role := range c.InferredRoles {
			roles[i] = string(role)
		}
		st := c.Statistics
		t.AppendRow(table.Row{
			c.Name,
			string(c.DeclaredType),
			string(c.SemanticType),
			c.Cardinality,
			fmt.Sprintf("%.2f", c.MissingPercentage),
			strings.Join(roles, ","),
			stat(st.Mean), stat(st.Std), stat(st.Min), stat(st.Max),
		})
	}
	t.Render()

	if len(p.CorrelatedPairs) > 0 {
		ct := r.newTable()
		ct.AppendHeader(table.Row{"Column A", "Column B", "Pearson r"})
		for _, pair := range p.CorrelatedPairs {
			ct.AppendRow(table.Row{pair.ColumnA, pair.ColumnB, fmt.Sprintf("%.3f", pair.Coefficient)})
		}
		ct.Render()
	}
}

func stat(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.4g", *v)
}

func (r *Renderer) writeRecommendations(recs []recommender.Recommendation) {
	t := r.newTable()
	t.AppendHeader(table.Row{"#", "Chart", "Category", "Columns", "Rationale"})
	for _, rec := range recs {
		t.AppendRow(table.Row{rec.Priority, string(rec.ChartKind), string(rec.Category), bindings(rec.ColumnBindings), rec.Rationale})
	}
	t.Render()
}

// bindings renders column bindings as "role=a,b" pairs sorted by role.
func bindings(b map[string][]string) string {
	roles := make([]string, 0, len(b))
	for role := range b {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	parts := make([]string, len(roles))
	for i, role := range roles {
		parts[i] = role + "=" + strings.Join(b[role], ",")
	}
	return strings.Join(parts, " ")
}
