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
	"fmt"

	"github.com/GoogleCloudPlatform/tabular-insights/internal/report"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var listTablesFlags struct {
	table string
}

var listTablesCmd = &cobra.Command{
	Use:   "list-tables",
	Short: "List the tables of a database, or the columns of one table",
	Long:  `Connects to the database and outputs its tables. With --table the columns of that table and their data types are listed instead.`,
	Example: `./tabular-insights list-tables --dialect cloudsqlpostgres --username user --password pass --database mydb --cloudsql-instance-connection-name my-project:my-region:my-instance
./tabular-insights list-tables --dialect sqlite --database ./shop.db --table orders`,
	Args: cobra.NoArgs,
	RunE: runListTables,
}

func runListTables(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger.Info("starting list-tables operation",
		zap.String("dialect", cfg.Database.Dialect),
		zap.String("database", cfg.Database.DBName),
	)

	db, err := setupDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	format, err := report.ParseFormat(cfg.Output)
	if err != nil {
		return err
	}
	r := report.New(cmd.OutOrStdout(), format)

	if listTablesFlags.table != "" {
		cols, err := db.ListColumns(ctx, listTablesFlags.table)
		if err != nil {
			return fmt.Errorf("failed to list columns of %s: %w", listTablesFlags.table, err)
		}
		return r.Columns(cols)
	}

	tables, err := db.ListTables(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	return r.Names("Table", tables)
}

func init() {
	listTablesCmd.Flags().StringVar(&listTablesFlags.table, "table", "", "List the columns of this table")
}
