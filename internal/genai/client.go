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
// Package genai produces narrative insights about a profiled table with the
// Gemini API.
package genai

import (
	"context"
	"fmt"
	"strings"

	"github.com/GoogleCloudPlatform/tabular-insights/internal/profiler"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/recommender"
	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const DefaultModel = "gemini-1.5-flash-latest"

// LLMClient defines the interface for interacting with a generative AI model.
type LLMClient interface {
	// GenerateInsights summarises a profile and its chart recommendations.
	GenerateInsights(ctx context.Context, req InsightRequest) (string, error)

	// IsAPIKeyValid checks if the configured API key is functional.
	IsAPIKeyValid(ctx context.Context) error

	// Close cleans up any resources used by the client.
	Close() error
}

// InsightRequest carries what is sent to the model. Sample rows of the
// profile are never included in the prompt.
type InsightRequest struct {
	Profile         *profiler.DataProfile
	Recommendations []recommender.Recommendation
	// Context is optional domain knowledge, e.g. the contents of context files.
	Context string
}

// Config holds configuration for the GenAI client.
type Config struct {
	APIKey string
	Model  string
}

// geminiClient implements the LLMClient interface using the Google Gemini API.
type geminiClient struct {
	client *genai.Client
	cfg    Config
	logger *zap.Logger
}

// NewClient creates a new Gemini client.
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (LLMClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("cannot create Gemini client: API key is missing")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	if cfg.Model == "" {
		cfg.Model = DefaultModel
		logger.Info("gemini model not specified, using default", zap.String("model", cfg.Model))
	}

	return &geminiClient{
		client: client,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Close cleans up the underlying Gemini client.
func (c *geminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAPIKeyValid checks if the Gemini API key is valid by listing models.
func (c *geminiClient) IsAPIKeyValid(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("gemini client not initialized (likely missing API key)")
	}

	modelIterator := c.client.ListModels(ctx)
	_, err := modelIterator.Next()
	if err != nil {
		if st, ok := status.FromError(err); ok {
			if st.Code() == codes.Unauthenticated || st.Code() == codes.PermissionDenied {
				return fmt.Errorf("invalid Gemini API key or insufficient permissions: %w", err)
			}
		}
		return fmt.Errorf("failed to verify Gemini API key by listing models: %w", err)
	}
	return nil
}

// GenerateInsights asks the model for a short narrative about the data.
func (c *geminiClient) GenerateInsights(ctx context.Context, req InsightRequest) (string, error) {
	if c.client == nil {
		return "", fmt.Errorf("gemini client not initialized")
	}
	if req.Profile == nil {
		return "", fmt.Errorf("insights require a data profile")
	}

	model := c.client.GenerativeModel(c.cfg.Model)
	model.SetTemperature(0.3)
	model.SetMaxOutputTokens(800)
	model.SetTopP(0.9)
	model.SetTopK(40)

	resp, err := model.GenerateContent(ctx, genai.Text(BuildPrompt(req)))
	if err != nil {
		return "", fmt.Errorf("Gemini API call failed: %w", err)
	}

	insights, err := extractTextBetweenTags(resp, "<result>", "</result>")
	if err != nil {
		c.logger.Warn("could not extract insights from Gemini response", zap.Error(err))
		return "", nil
	}
	c.logger.Info("generated insights",
		zap.String("model", c.cfg.Model),
		zap.Int("columns", req.Profile.ColumnCount),
	)
	return insights, nil
}

// BuildPrompt renders the insight prompt. Only column names, types and
// aggregate statistics appear in it.
func BuildPrompt(req InsightRequest) string {
	var b strings.Builder
	p := req.Profile

	b.WriteString(`
	You are a data analyst. Write a short narrative of the most important findings about the dataset described below.

	**Dataset Summary:**
	`)
	fmt.Fprintf(&b, "- Rows: %d\n\t- Columns: %d\n", p.RowCount, p.ColumnCount)

	b.WriteString("\n\t**Columns:**\n")
	for _, cp := range p.ColumnProfiles {
		fmt.Fprintf(&b, "\t- %s: storage=%s", cp.Name, cp.DeclaredType)
		if cp.SemanticType != "" {
			fmt.Fprintf(&b, " semantic=%s", cp.SemanticType)
		}
		fmt.Fprintf(&b, " distinct=%d missing=%.2f%%", cp.Cardinality, cp.MissingPercentage)
		if len(cp.InferredRoles) > 0 {
			fmt.Fprintf(&b, " role=%s", cp.InferredRoles[0])
		}
		writeStat(&b, "mean", cp.Statistics.Mean)
		writeStat(&b, "std", cp.Statistics.Std)
		writeStat(&b, "min", cp.Statistics.Min)
		writeStat(&b, "max", cp.Statistics.Max)
		writeStat(&b, "skew", cp.Statistics.Skewness)
		b.WriteString("\n")
	}

	if len(p.CorrelatedPairs) > 0 {
		b.WriteString("\n\t**Correlated Pairs:**\n")
		for _, cp := range p.CorrelatedPairs {
			fmt.Fprintf(&b, "\t- %s ~ %s: r=%.3f\n", cp.ColumnA, cp.ColumnB, cp.Coefficient)
		}
	}

	if len(req.Recommendations) > 0 {
		b.WriteString("\n\t**Recommended Charts:**\n")
		for _, r := range req.Recommendations {
			fmt.Fprintf(&b, "\t%d. %s (%s)\n", r.Priority, r.ChartKind, r.Category)
		}
	}

	if req.Context != "" {
		fmt.Fprintf(&b, `
	********** Knowledge Context **********
	%s
	********** End Knowledge Context **********
`, req.Context)
	}

	b.WriteString(`
	**Instructions:**
	1. Mention notable distributions, missing data and relationships between columns.
	2. Use at most 150 words and do not invent values that are not in the summary.
	3. Output ONLY the narrative within <result></result> tags.
	`)
	return b.String()
}

func writeStat(b *strings.Builder, name string, v *float64) {
	if v != nil {
		fmt.Fprintf(b, " %s=%.4g", name, *v)
	}
}

// getFirstTextPart extracts the first text part from a Gemini response.
func getFirstTextPart(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		safetyRatings := "none"
		if resp != nil && len(resp.Candidates) > 0 {
			finishReason = resp.Candidates[0].FinishReason.String()
			if resp.Candidates[0].SafetyRatings != nil {
				safetyRatings = fmt.Sprintf("%v", resp.Candidates[0].SafetyRatings)
			}
		}
		return "", fmt.Errorf("empty or incomplete response from Gemini API. FinishReason: %s, SafetyRatings: %s", finishReason, safetyRatings)
	}
	part := resp.Candidates[0].Content.Parts[0]
	text, ok := part.(genai.Text)
	if !ok {
		return "", fmt.Errorf("unexpected response part type: %T", part)
	}
	return string(text), nil
}

// extractTextBetweenTags extracts text between the first occurrence of startTag and endTag.
func extractTextBetweenTags(resp *genai.GenerateContentResponse, startTag, endTag string) (string, error) {
	fullText, err := getFirstTextPart(resp)
	if err != nil {
		return "", fmt.Errorf("failed to get text part: %w", err)
	}

	content, found := extractContentBetween(fullText, startTag, endTag)
	if !found {
		return "", fmt.Errorf("tags '%s' and '%s' not found in response", startTag, endTag)
	}
	return content, nil
}

// extractContentBetween extracts content between start and end tags from a string.
func extractContentBetween(text, startTag, endTag string) (string, bool) {
	startIndex := strings.Index(text, startTag)
	if startIndex == -1 {
		return "", false
	}
	startIndex += len(startTag)
	endIndex := strings.Index(text[startIndex:], endTag)
	if endIndex == -1 {
		return "", false
	}
	return strings.TrimSpace(text[startIndex : startIndex+endIndex]), true
}
