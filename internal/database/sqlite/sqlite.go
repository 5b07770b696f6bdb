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
// Package sqlite registers a dialect handler for SQLite database files.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/GoogleCloudPlatform/tabular-insights/internal/config"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/database"
	_ "modernc.org/sqlite"
)

type sqliteHandler struct{}

var _ database.DialectHandler = (*sqliteHandler)(nil)

func (h sqliteHandler) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	return nil, fmt.Errorf("sqlite has no Cloud SQL variant")
}

// CreateStandardPool opens the database file named by cfg.DBName.
func (h sqliteHandler) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.DBName == "" {
		return nil, fmt.Errorf("sqlite requires a database file path")
	}
	dbPool, err := sql.Open("sqlite", cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("sql.Open (sqlite): %w", err)
	}
	// Every connection to :memory: is a separate database.
	dbPool.SetMaxOpenConns(1)
	return dbPool, nil
}

func (h sqliteHandler) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (h sqliteHandler) SelectQuery(quotedTable string, limit int) string {
	return database.LimitClause("SELECT * FROM "+quotedTable, limit)
}

func (h sqliteHandler) ListTables(ctx context.Context, db *database.DB) ([]string, error) {
	query := "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
	rows, err := db.Pool.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, fmt.Errorf("error scanning table name: %w", err)
		}
		tables = append(tables, tableName)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table rows: %w", err)
	}
	return tables, nil
}

func (h sqliteHandler) ListColumns(ctx context.Context, db *database.DB, tableName string) ([]database.ColumnInfo, error) {
	rows, err := db.Pool.QueryContext(ctx, "SELECT name, type FROM pragma_table_info(?) ORDER BY cid", tableName)
	if err != nil {
		return nil, fmt.Errorf("error querying columns for table %s: %w", tableName, err)
	}
	defer rows.Close()

	var columns []database.ColumnInfo
	for rows.Next() {
		var colInfo database.ColumnInfo
		if err := rows.Scan(&colInfo.Name, &colInfo.DataType); err != nil {
			return nil, fmt.Errorf("error scanning column details: %w", err)
		}
		columns = append(columns, colInfo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column rows: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found", tableName)
	}
	return columns, nil
}

func init() {
	database.RegisterDialectHandler("sqlite", sqliteHandler{})
}
