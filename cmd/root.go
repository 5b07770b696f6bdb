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
	"slices"
	"strings"

	"github.com/GoogleCloudPlatform/tabular-insights/internal/analysis"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/config"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/database"
	_ "github.com/GoogleCloudPlatform/tabular-insights/internal/database/mysql"
	_ "github.com/GoogleCloudPlatform/tabular-insights/internal/database/postgres"
	_ "github.com/GoogleCloudPlatform/tabular-insights/internal/database/sqlite"
	_ "github.com/GoogleCloudPlatform/tabular-insights/internal/database/sqlserver"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/genai"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
	v       = viper.New()

	// Resolved by initFlagsAndConfig before any command runs.
	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "tabular-insights",
	Short: "Classify, clean, profile and chart tabular data",
	Long: `tabular-insights reads a CSV or Excel file, or a table from a SQL database,
assigns a semantic type to every column, cleans the data, profiles it and
recommends charts that suit it. It can also serve the same analysis over HTTP.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initFlagsAndConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// initFlagsAndConfig resolves the configuration from flags, environment and
// the optional config file, and sets up logging.
func initFlagsAndConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	l, err := logging.New(loaded.Log.Level, loaded.Log.Format)
	if err != nil {
		return err
	}
	cfg = loaded
	logger = l
	zap.ReplaceGlobals(l)
	return nil
}

func validateDialect(dialect string) error {
	supportedDialects := database.Dialects()
	if !slices.Contains(supportedDialects, dialect) {
		return fmt.Errorf("unsupported dialect: %s (only %s are supported)", dialect, strings.Join(supportedDialects, ", "))
	}
	return nil
}

func setupDatabase(ctx context.Context) (*database.DB, error) {
	if err := validateDialect(cfg.Database.Dialect); err != nil {
		return nil, err
	}
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", zap.String("dialect", cfg.Database.Dialect), zap.Error(err))
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func serviceConfig() analysis.Config {
	ac := analysis.DefaultConfig()
	ac.Classifier = cfg.Classifier
	ac.Pipeline = cfg.Pipeline
	ac.CorrelationThreshold = cfg.Profiler.CorrelationThreshold
	ac.SampleSize = cfg.Profiler.SampleSize
	ac.PreviewRows = cfg.Analysis.PreviewRows
	return ac
}

// newService builds the analysis service. A Gemini client is attached only
// when withModel is set; the returned cleanup closes it.
func newService(ctx context.Context, withModel bool, model string) (*analysis.Service, func(), error) {
	cleanup := func() {}
	var llm genai.LLMClient
	if withModel {
		if cfg.GeminiAPIKey == "" {
			return nil, cleanup, fmt.Errorf("insights require a Gemini API key. Please set the GEMINI_API_KEY environment variable or --gemini-api-key")
		}
		client, err := genai.NewClient(ctx, genai.Config{APIKey: cfg.GeminiAPIKey, Model: model}, logger.Named("genai"))
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		if err := client.IsAPIKeyValid(ctx); err != nil {
			_ = client.Close()
			return nil, cleanup, fmt.Errorf("gemini API key is invalid: %w", err)
		}
		llm = client
		cleanup = func() {
			if err := client.Close(); err != nil {
				logger.Warn("failed to close Gemini client", zap.Error(err))
			}
		}
	}
	svc, err := analysis.NewService(llm, serviceConfig(), logger)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	return svc, cleanup, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func bindFlag(key string, cmd *cobra.Command, name string) {
	f := cmd.Flags().Lookup(name)
	if f == nil {
		f = cmd.PersistentFlags().Lookup(name)
	}
	if err := v.BindPFlag(key, f); err != nil {
		panic(fmt.Sprintf("binding flag %s: %v", name, err))
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Path to a YAML config file")
	pf.String("log-level", "", "Log level (debug, info, warn, error)")
	pf.String("log-format", "", "Log format (console or json)")
	pf.StringP("output", "o", "", "Output format (text, json or yaml)")

	// Database connection flags
	pf.String("dialect", "", "Database dialect (postgres, mysql, sqlserver, sqlite, cloudsqlpostgres, cloudsqlmysql, cloudsqlsqlserver)")
	pf.String("host", "", "Database host")
	pf.Int("port", 0, "Database port")
	pf.String("username", "", "Database username")
	pf.String("password", "", "Database password")
	pf.String("database", "", "Database name, or the file path for sqlite")
	pf.String("cloudsql-instance-connection-name", "", "Cloud SQL instance connection name (for Cloud SQL dialects)")
	pf.Bool("cloudsql-use-private-ip", false, "Use private IP for Cloud SQL connection (Cloud SQL)")

	// Gemini API Key flag
	pf.String("gemini-api-key", "", "Gemini API key (can also be set via GEMINI_API_KEY environment variable)")

	// Analysis tuning
	pf.String("outlier-mode", "", "Outlier removal across columns (cascading or independent)")
	pf.Int("categorical-threshold", 0, "Distinct values below which a text column is categorical")
	pf.Float64("correlation-threshold", 0, "Minimum absolute Pearson coefficient reported by the profiler")

	bindFlag("log.level", rootCmd, "log-level")
	bindFlag("log.format", rootCmd, "log-format")
	bindFlag("output", rootCmd, "output")
	bindFlag("database.dialect", rootCmd, "dialect")
	bindFlag("database.host", rootCmd, "host")
	bindFlag("database.port", rootCmd, "port")
	bindFlag("database.user", rootCmd, "username")
	bindFlag("database.password", rootCmd, "password")
	bindFlag("database.name", rootCmd, "database")
	bindFlag("database.cloudsql_instance_connection_name", rootCmd, "cloudsql-instance-connection-name")
	bindFlag("database.cloudsql_use_private_ip", rootCmd, "cloudsql-use-private-ip")
	bindFlag("gemini_api_key", rootCmd, "gemini-api-key")
	bindFlag("pipeline.outlier_mode", rootCmd, "outlier-mode")
	bindFlag("classifier.categorical_threshold", rootCmd, "categorical-threshold")
	bindFlag("profiler.correlation_threshold", rootCmd, "correlation-threshold")
	_ = v.BindEnv("gemini_api_key", config.EnvPrefix+"_GEMINI_API_KEY", "GEMINI_API_KEY")

	// Add subcommands
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(preprocessCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(recommendCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(listTablesCmd)
	rootCmd.AddCommand(serveCmd)
}
