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
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/GoogleCloudPlatform/tabular-insights/internal/analysis"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/dataset"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/loader"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/report"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// autoOutputFile is the value of a bare --out-file.
const autoOutputFile = "auto"

// sourceFlags select the table a data command works on. Only one data
// command runs per process, so they share storage.
var sourceFlags struct {
	file    string
	table   string
	columns string
	limit   int
	outFile string
}

func addSourceFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&sourceFlags.file, "file", "f", "", "CSV, XLS or XLSX file to read")
	f.StringVar(&sourceFlags.table, "table", "", "Database table to read, optionally with columns (e.g., 'orders[id,amount]')")
	f.StringVar(&sourceFlags.columns, "columns", "", "Comma-separated list of columns to keep")
	f.IntVar(&sourceFlags.limit, "limit", 0, "Maximum rows read from a database table (0 uses the configured read limit)")
	f.StringVar(&sourceFlags.outFile, "out-file", "", "File to write the result to instead of stdout (a bare --out-file picks <source>_<command>.<format>)")
	f.Lookup("out-file").NoOptDefVal = autoOutputFile
	cmd.MarkFlagsMutuallyExclusive("file", "table")
	cmd.MarkFlagsOneRequired("file", "table")
}

// loadSource reads the selected file or table and applies the column
// selection. The returned name identifies the source in logs and file names.
func loadSource(ctx context.Context, svc *analysis.Service) (*dataset.Table, string, error) {
	columns := utils.ParseList(sourceFlags.columns)

	var (
		t    *dataset.Table
		name string
		err  error
	)
	if sourceFlags.file != "" {
		name = sourceFlags.file
		logger.Info("loading file", zap.String("path", name))
		t, err = loader.Load(ctx, name)
		if err != nil {
			return nil, "", err
		}
	} else {
		selections, err := utils.ParseTablesFlag(sourceFlags.table)
		if err != nil {
			return nil, "", err
		}
		if len(selections) != 1 {
			return nil, "", fmt.Errorf("--table takes exactly one table, got %d", len(selections))
		}
		sel := selections[0]
		name = sel.Table
		columns = append(sel.Columns, columns...)

		t, err = readTable(ctx, svc, sel.Table)
		if err != nil {
			return nil, "", err
		}
	}

	t, err = analysis.SelectColumns(t, columns)
	if err != nil {
		return nil, "", err
	}
	logger.Info("loaded source",
		zap.String("source", name),
		zap.Int("rows", t.NumRows()),
		zap.Int("columns", t.NumCols()),
	)
	return t, name, nil
}

func readTable(ctx context.Context, svc *analysis.Service, table string) (*dataset.Table, error) {
	db, err := setupDatabase(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	limit := sourceFlags.limit
	if limit == 0 {
		limit = cfg.Analysis.ReadLimit
	}
	logger.Info("reading table",
		zap.String("dialect", cfg.Database.Dialect),
		zap.String("database", cfg.Database.DBName),
		zap.String("table", table),
		zap.Int("limit", limit),
	)
	return svc.LoadTable(ctx, db, table, limit)
}

// newRenderer opens the command output. The returned function closes it and
// must be called once rendering is done.
func newRenderer(cmd *cobra.Command, source, command string) (*report.Renderer, func() error, error) {
	format, err := report.ParseFormat(cfg.Output)
	if err != nil {
		return nil, nil, err
	}

	outputFile := sourceFlags.outFile
	if outputFile == "" {
		return report.New(cmd.OutOrStdout(), format), func() error { return nil }, nil
	}
	if outputFile == autoOutputFile {
		outputFile = utils.DefaultOutputFilePath(source, command, string(format))
	}

	file, err := os.Create(outputFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	closeFn := func() error {
		if err := file.Close(); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		logger.Info("output written", zap.String("path", outputFile))
		fmt.Fprintf(cmd.ErrOrStderr(), "Output written to: %s\n", outputFile)
		return nil
	}
	return report.New(file, format), closeFn, nil
}

// render runs fn against the command output and closes it.
func render(cmd *cobra.Command, source, command string, fn func(r *report.Renderer) error) error {
	r, closeFn, err := newRenderer(cmd, source, command)
	if err != nil {
		return err
	}
	if err := fn(r); err != nil {
		_ = closeFn()
		return err
	}
	return closeFn()
}
