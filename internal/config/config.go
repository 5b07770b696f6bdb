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
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/GoogleCloudPlatform/tabular-insights/internal/classifier"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/pipeline"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load, e.g.
// TABULAR_DATABASE_HOST or TABULAR_PIPELINE_OUTLIER_MODE.
const EnvPrefix = "TABULAR"

// Config holds all configuration for the application
type Config struct {
	Database     DatabaseConfig    `mapstructure:"database"`
	GeminiAPIKey string            `mapstructure:"gemini_api_key"`
	Classifier   classifier.Config `mapstructure:"classifier"`
	Pipeline     pipeline.Settings `mapstructure:"pipeline"`
	Profiler     ProfilerConfig    `mapstructure:"profiler"`
	Analysis     AnalysisConfig    `mapstructure:"analysis"`
	Server       ServerConfig      `mapstructure:"server"`
	Log          LogConfig         `mapstructure:"log"`
	// UploadDir holds uploaded files while they are parsed. Empty means the
	// system temp directory.
	UploadDir string `mapstructure:"upload_dir"`
	// Output is the CLI rendering: text, json or yaml.
	Output string `mapstructure:"output"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Dialect                        string `mapstructure:"dialect"`
	Host                           string `mapstructure:"host"`
	Port                           int    `mapstructure:"port"`
	User                           string `mapstructure:"user"`
	Password                       string `mapstructure:"password"`
	DBName                         string `mapstructure:"name"`
	SSLMode                        string `mapstructure:"sslmode"`
	CloudSQLInstanceConnectionName string `mapstructure:"cloudsql_instance_connection_name"`
	UsePrivateIP                   bool   `mapstructure:"cloudsql_use_private_ip"`
}

type ProfilerConfig struct {
	CorrelationThreshold float64 `mapstructure:"correlation_threshold"`
	SampleSize           int     `mapstructure:"sample_size"`
}

// AnalysisConfig controls the combined analysis run.
type AnalysisConfig struct {
	PreviewRows int  `mapstructure:"preview_rows"`
	Insights    bool `mapstructure:"insights"`
	// ReadLimit caps the rows read from a database table; zero reads all.
	ReadLimit int `mapstructure:"read_limit"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// MaxUploadBytes bounds the multipart body of an upload request.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GetConfig returns the default configuration.
func GetConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Dialect: "postgres",
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
		},
		Classifier: classifier.DefaultConfig(),
		Pipeline:   pipeline.DefaultSettings(),
		Profiler: ProfilerConfig{
			CorrelationThreshold: 0.5,
			SampleSize:           5,
		},
		Analysis: AnalysisConfig{
			PreviewRows: 10,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			MaxUploadBytes: 32 << 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Output: "text",
	}
}

// defaults registers every scalar key with viper so that environment
// variables are honoured when unmarshalling.
func defaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("database.dialect", cfg.Database.Dialect)
	v.SetDefault("database.host", cfg.Database.Host)
	v.SetDefault("database.port", cfg.Database.Port)
	v.SetDefault("database.user", cfg.Database.User)
	v.SetDefault("database.password", cfg.Database.Password)
	v.SetDefault("database.name", cfg.Database.DBName)
	v.SetDefault("database.sslmode", cfg.Database.SSLMode)
	v.SetDefault("database.cloudsql_instance_connection_name", cfg.Database.CloudSQLInstanceConnectionName)
	v.SetDefault("database.cloudsql_use_private_ip", cfg.Database.UsePrivateIP)
	v.SetDefault("gemini_api_key", cfg.GeminiAPIKey)

	v.SetDefault("classifier.uniqueness_threshold", cfg.Classifier.UniquenessThreshold)
	v.SetDefault("classifier.identifier_patterns", cfg.Classifier.IdentifierPatterns)
	v.SetDefault("classifier.categorical_threshold", cfg.Classifier.CategoricalThreshold)
	v.SetDefault("classifier.categorical_max_length", cfg.Classifier.CategoricalMaxLength)
	v.SetDefault("classifier.categorical_short_ratio", cfg.Classifier.CategoricalShortRatio)
	v.SetDefault("classifier.text_ratio", cfg.Classifier.TextRatio)
	v.SetDefault("classifier.text_min_length", cfg.Classifier.TextMinLength)
	v.SetDefault("classifier.parallelism", cfg.Classifier.Parallelism)

	v.SetDefault("pipeline.treatments", cfg.Pipeline.Treatments)
	v.SetDefault("pipeline.normalizer", cfg.Pipeline.Normalizer)
	v.SetDefault("pipeline.encoder", cfg.Pipeline.Encoder)
	v.SetDefault("pipeline.garbage_tokens", cfg.Pipeline.GarbageTokens)
	v.SetDefault("pipeline.outlier_multiplier", cfg.Pipeline.OutlierMultiplier)
	v.SetDefault("pipeline.outlier_mode", string(cfg.Pipeline.OutlierMode))

	v.SetDefault("profiler.correlation_threshold", cfg.Profiler.CorrelationThreshold)
	v.SetDefault("profiler.sample_size", cfg.Profiler.SampleSize)
	v.SetDefault("analysis.preview_rows", cfg.Analysis.PreviewRows)
	v.SetDefault("analysis.insights", cfg.Analysis.Insights)
	v.SetDefault("analysis.read_limit", cfg.Analysis.ReadLimit)
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.max_upload_bytes", cfg.Server.MaxUploadBytes)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("upload_dir", cfg.UploadDir)
	v.SetDefault("output", cfg.Output)
}

// Load resolves the configuration from, in decreasing precedence, flags bound
// to v, TABULAR_* environment variables, the optional YAML file and the
// defaults of GetConfig.
func Load(v *viper.Viper, file string) (*Config, error) {
	cfg := GetConfig()
	defaults(v, cfg)
	// Slices with a registered default are decoded afresh rather than merged
	// element by element into the defaults.
	cfg.Classifier.IdentifierPatterns = nil
	cfg.Pipeline.Treatments = nil
	cfg.Pipeline.GarbageTokens = nil

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", file, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.Output {
	case "text", "json", "yaml":
	default:
		errs = append(errs, fmt.Errorf("output must be text, json or yaml, got %q", c.Output))
	}
	switch c.Pipeline.OutlierMode {
	case "", pipeline.OutlierCascading, pipeline.OutlierIndependent:
	default:
		errs = append(errs, fmt.Errorf("unknown outlier mode %q", c.Pipeline.OutlierMode))
	}
	if c.Classifier.CategoricalThreshold < 1 {
		errs = append(errs, fmt.Errorf("classifier categorical threshold must be positive"))
	}
	if c.Profiler.CorrelationThreshold < 0 || c.Profiler.CorrelationThreshold > 1 {
		errs = append(errs, fmt.Errorf("profiler correlation threshold must be within [0, 1]"))
	}
	if c.Analysis.PreviewRows < 0 {
		errs = append(errs, fmt.Errorf("analysis preview rows must not be negative"))
	}
	return errors.Join(errs...)
}
