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
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/GoogleCloudPlatform/tabular-insights/internal/config"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/dataset"
	"go.uber.org/zap"
)

// DBAdapter defines the database operations needed to read a table for analysis.
type DBAdapter interface {
	ListTables(ctx context.Context) ([]string, error)
	ListColumns(ctx context.Context, tableName string) ([]ColumnInfo, error)
	ReadTable(ctx context.Context, tableName string, limit int) (*dataset.Table, error)
	Ping(ctx context.Context) error
	Close() error
	GetConfig() config.DatabaseConfig
}

var _ DBAdapter = (*DB)(nil)

// DB holds the database connection pool and dialect handler.
type DB struct {
	Pool    *sql.DB
	Handler DialectHandler
	Config  config.DatabaseConfig
}

// ColumnInfo holds basic information about a database column.
type ColumnInfo struct {
	Name     string `json:"name" yaml:"name"`
	DataType string `json:"dataType" yaml:"dataType"`
}

// DialectHandler implements the dialect-specific parts of DB.
type DialectHandler interface {
	CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error)
	CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error)
	QuoteIdentifier(name string) string
	ListTables(ctx context.Context, db *DB) ([]string, error)
	ListColumns(ctx context.Context, db *DB, tableName string) ([]ColumnInfo, error)
	// SelectQuery returns a query reading every column of the already quoted
	// table. A limit of zero or less reads all rows.
	SelectQuery(quotedTable string, limit int) string
}

var (
	dialectHandlers = make(map[string]DialectHandler)
	mu              sync.RWMutex
)

func RegisterDialectHandler(dialect string, handler DialectHandler) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := dialectHandlers[dialect]; exists {
		zap.L().Warn("dialect handler is being overwritten", zap.String("dialect", dialect))
	}
	dialectHandlers[dialect] = handler
}

func GetDialectHandler(dialect string) (DialectHandler, error) {
	mu.RLock()
	defer mu.RUnlock()
	handler, ok := dialectHandlers[dialect]
	if !ok {
		return nil, fmt.Errorf("unsupported database dialect: %s", dialect)
	}
	return handler, nil
}

// Dialects lists the registered dialect names.
func Dialects() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(dialectHandlers))
	for name := range dialectHandlers {
		names = append(names, name)
	}
	return names
}

func New(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	handler, err := GetDialectHandler(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	var pool *sql.DB
	if strings.HasPrefix(cfg.Dialect, "cloudsql") {
		pool, err = handler.CreateCloudSQLPool(cfg)
	} else {
		pool, err = handler.CreateStandardPool(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool for dialect %s: %w", cfg.Dialect, err)
	}

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database (ping failed) for dialect %s: %w", cfg.Dialect, err)
	}

	return &DB{
		Pool:    pool,
		Handler: handler,
		Config:  cfg,
	}, nil
}

func (db *DB) GetConfig() config.DatabaseConfig {
	return db.Config
}

func (db *DB) Ping(ctx context.Context) error {
	if db.Pool == nil {
		return fmt.Errorf("database connection pool is not initialized")
	}
	return db.Pool.PingContext(ctx)
}

func (db *DB) Close() error {
	if db.Pool != nil {
		return db.Pool.Close()
	}
	zap.L().Warn("attempted to close a nil database connection pool")
	return nil
}

func (db *DB) ListTables(ctx context.Context) ([]string, error) {
	if db.Handler == nil {
		return nil, fmt.Errorf("dialect handler not initialized")
	}
	return db.Handler.ListTables(ctx, db)
}

func (db *DB) ListColumns(ctx context.Context, tableName string) ([]ColumnInfo, error) {
	if db.Handler == nil {
		return nil, fmt.Errorf("dialect handler not initialized")
	}
	return db.Handler.ListColumns(ctx, db, tableName)
}

// ReadTable reads up to limit rows of tableName into a typed table. Column
// kinds are derived from the driver values of each column.
func (db *DB) ReadTable(ctx context.Context, tableName string, limit int) (*dataset.Table, error) {
	if db.Handler == nil {
		return nil, fmt.Errorf("dialect handler not initialized")
	}
	if db.Pool == nil {
		return nil, fmt.Errorf("database connection pool is not initialized")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, fmt.Errorf("table name is required")
	}

	query := db.Handler.SelectQuery(db.Handler.QuoteIdentifier(tableName), limit)
	rows, err := db.Pool.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error reading table %s: %w", tableName, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("error reading columns of table %s: %w", tableName, err)
	}

	values := make([][]any, len(names))
	dest := make([]any, len(names))
	for rows.Next() {
		cells := make([]any, len(names))
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("error scanning row of table %s: %w", tableName, err)
		}
		for i, v := range cells {
			values[i] = append(values[i], v)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows of table %s: %w", tableName, err)
	}

	cols := make([]*dataset.Column, len(names))
	for i, name := range names {
		cols[i] = dataset.FromValues(name, values[i])
	}
	return dataset.New(cols...)
}

// LimitClause appends a trailing LIMIT for dialects that support it.
func LimitClause(query string, limit int) string {
	if limit <= 0 {
		return query
	}
	return fmt.Sprintf("%s LIMIT %d", query, limit)
}
