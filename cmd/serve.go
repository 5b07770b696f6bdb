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
	"os"
	"os/signal"
	"syscall"

	"github.com/GoogleCloudPlatform/tabular-insights/internal/server"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/upload"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveFlags struct {
	model string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis over HTTP",
	Long: `Starts an HTTP server that accepts multipart uploads in the "file" field on
/api/v1/upload, /api/v1/preprocess, /api/v1/profile, /api/v1/recommend and
/api/v1/analyze. The server stops gracefully on SIGINT or SIGTERM.`,
	Example: `./tabular-insights serve --addr :9090 --upload-dir /tmp/uploads`,
	Args:    cobra.NoArgs,
	RunE:    runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Insights over HTTP are available only when a key is configured.
	withModel := cfg.GeminiAPIKey != ""
	if !withModel {
		logger.Warn("no Gemini API key configured. Insights will be skipped.")
	}
	svc, cleanup, err := newService(ctx, withModel, serveFlags.model)
	if err != nil {
		return err
	}
	defer cleanup()

	intake := upload.NewIntake(cfg.UploadDir, logger.Named("upload"))
	srv := server.New(svc, intake, server.Config{
		Addr:           cfg.Server.Addr,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	}, logger.Named("server"))

	logger.Info("serving", zap.String("addr", cfg.Server.Addr), zap.String("uploadDir", cfg.UploadDir))
	return srv.Serve(ctx)
}

func init() {
	f := serveCmd.Flags()
	f.String("addr", "", "Address to listen on (default :8080)")
	f.String("upload-dir", "", "Directory for uploads while they are parsed (default: system temp dir)")
	f.Int64("max-upload-bytes", 0, "Maximum size of an upload request in bytes")
	f.StringVar(&serveFlags.model, "model", "", "Model used for insights")
	bindFlag("server.addr", serveCmd, "addr")
	bindFlag("upload_dir", serveCmd, "upload-dir")
	bindFlag("server.max_upload_bytes", serveCmd, "max-upload-bytes")
}
