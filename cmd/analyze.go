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
	"github.com/GoogleCloudPlatform/tabular-insights/internal/analysis"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/genai"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/report"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var analyzeFlags struct {
	contextFiles string
	model        string
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the full analysis: types, charts, cleaning and profile",
	Long: `Classifies the source, recommends charts for it, cleans it and profiles the cleaned
table. With --insights the profile and recommendations are summarised by Gemini;
context files add domain knowledge to that summary.`,
	Example: `./tabular-insights analyze --file ./sales.csv --insights --context-files ./glossary.md,./notes.txt`,
	Args:    cobra.NoArgs,
	RunE:    runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	additionalContext, err := utils.ReadContextFiles(analyzeFlags.contextFiles)
	if err != nil {
		return err
	}
	insights := cfg.Analysis.Insights
	if additionalContext != "" && !insights {
		logger.Warn("context files are only used with --insights")
	}

	svc, cleanup, err := newService(ctx, insights, analyzeFlags.model)
	if err != nil {
		return err
	}
	defer cleanup()

	t, source, err := loadSource(ctx, svc)
	if err != nil {
		return err
	}
	rep, err := svc.Analyze(ctx, t, analysis.AnalyzeOptions{
		Insights: insights,
		Context:  additionalContext,
	})
	if err != nil {
		return err
	}
	logger.Info("analyze operation completed", zap.String("source", source))
	return render(cmd, source, "analyze", func(r *report.Renderer) error {
		return r.Report(rep)
	})
}

func init() {
	addSourceFlags(analyzeCmd)
	f := analyzeCmd.Flags()
	f.Bool("insights", false, "Summarise the analysis with Gemini (requires a Gemini API key)")
	f.StringVar(&analyzeFlags.contextFiles, "context-files", "", "Comma-separated list of context files to provide additional information for the insights.")
	f.StringVar(&analyzeFlags.model, "model", genai.DefaultModel, "Model used for insights")
	bindFlag("analysis.insights", analyzeCmd, "insights")
}
