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

var classifyCmd = &cobra.Command{
	Use:     "classify",
	Short:   "Assign a semantic type to every column",
	Long:    `Reads the source and prints the semantic type of each column: identifier, pii, numerical, categorical, datetime, text or other.`,
	Example: `./tabular-insights classify --file ./sales.csv --output json`,
	Args:    cobra.NoArgs,
	RunE:    runClassify,
}

var preprocessCmd = &cobra.Command{
	Use:   "preprocess",
	Short: "Clean the data and preview the result",
	Long: `Validates the source, removes garbage values, fills missing values, drops outliers
and duplicates, then normalizes and encodes the table. The first rows of the cleaned
table are printed.`,
	Example: `./tabular-insights preprocess --file ./sales.csv --outlier-mode independent`,
	Args:    cobra.NoArgs,
	RunE:    runPreprocess,
}

var profileCmd = &cobra.Command{
	Use:     "profile",
	Short:   "Compute per-column statistics, roles and correlations",
	Example: `./tabular-insights profile --dialect sqlite --database ./shop.db --table "orders[region,amount]"`,
	Args:    cobra.NoArgs,
	RunE:    runProfile,
}

var recommendCmd = &cobra.Command{
	Use:     "recommend",
	Short:   "Recommend charts that suit the data",
	Example: `./tabular-insights recommend --file ./sales.xlsx`,
	Args:    cobra.NoArgs,
	RunE:    runRecommend,
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	svc, cleanup, err := newService(ctx, false, "")
	if err != nil {
		return err
	}
	defer cleanup()

	t, source, err := loadSource(ctx, svc)
	if err != nil {
		return err
	}
	res := svc.Classify(t)
	return render(cmd, source, "classify", func(r *report.Renderer) error {
		return r.Types(res.Types)
	})
}

func runPreprocess(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	svc, cleanup, err := newService(ctx, false, "")
	if err != nil {
		return err
	}
	defer cleanup()

	t, source, err := loadSource(ctx, svc)
	if err != nil {
		return err
	}
	cleaned, err := svc.Preprocess(ctx, t)
	if err != nil {
		return fmt.Errorf("preprocessing %s: %w", source, err)
	}
	logger.Info("preprocessing completed",
		zap.Int("rowsBefore", t.NumRows()),
		zap.Int("rowsAfter", cleaned.NumRows()),
	)
	return render(cmd, source, "preprocess", func(r *report.Renderer) error {
		return r.Preview(cleaned.Preview(cfg.Analysis.PreviewRows))
	})
}

func runProfile(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	svc, cleanup, err := newService(ctx, false, "")
	if err != nil {
		return err
	}
	defer cleanup()

	t, source, err := loadSource(ctx, svc)
	if err != nil {
		return err
	}
	p := svc.Profile(t)
	return render(cmd, source, "profile", func(r *report.Renderer) error {
		return r.Profile(p)
	})
}

func runRecommend(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	svc, cleanup, err := newService(ctx, false, "")
	if err != nil {
		return err
	}
	defer cleanup()

	t, source, err := loadSource(ctx, svc)
	if err != nil {
		return err
	}
	recs := svc.Recommend(t)
	return render(cmd, source, "recommend", func(r *report.Renderer) error {
		return r.Recommendations(recs)
	})
}

func init() {
	for _, c := range []*cobra.Command{classifyCmd, preprocessCmd, profileCmd, recommendCmd} {
		addSourceFlags(c)
	}
}
