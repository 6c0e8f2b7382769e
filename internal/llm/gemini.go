package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// Gemini pricing (USD per million tokens)
type modelPricing struct {
	input  float64
	output float64 // Includes thinking tokens
}

var geminiPricing = map[string]modelPricing{
	"gemini-3-pro-preview":   {input: 2.00, output: 12.00},
	"gemini-3-flash-preview": {input: 0.50, output: 3.00},
	"gemini-2.5-pro":         {input: 1.25, output: 10.00},
	"gemini-2.5-flash":       {input: 0.30, output: 2.50},
	"gemini-2.5-flash-lite":  {input: 0.10, output: 0.40},
}

// GeminiConfig configures a GeminiClient.
type GeminiConfig struct {
	APIKey string
	// BaseURL overrides the API endpoint. Empty uses the SDK default.
	BaseURL string
}

// GeminiClient sends analysis requests to Google's Gemini API.
type GeminiClient struct {
	client *genai.Client
}

var _ Generator = (*GeminiClient)(nil)

// NewGeminiClient creates a new Gemini-backed Generator.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

// Generate implements the Generator interface.
// The image part, if any, precedes the text prompt.
func (g *GeminiClient) Generate(ctx context.Context, req *AnalysisRequest) (*Response, error) {
	if req == nil || req.Prompt == "" {
		return nil, Permanent(fmt.Errorf("empty prompt"))
	}

	var parts []*genai.Part
	if req.Image != nil {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{Data: req.Image.Data, MIMEType: req.Image.MIMEType},
		})
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))

	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	result, err := g.client.Models.GenerateContent(ctx, req.Model, contents, buildConfig(req))
	if err != nil {
		return nil, classifyError(fmt.Errorf("failed to generate content: %w", err))
	}

	resp := &Response{
		Text:      result.Text(),
		Citations: groundingSources(result),
	}

	if result.UsageMetadata != nil {
		resp.Usage.InputTokens = int64(result.UsageMetadata.PromptTokenCount)
		resp.Usage.OutputTokens = int64(result.UsageMetadata.CandidatesTokenCount + result.UsageMetadata.ThoughtsTokenCount)
		resp.Usage.TotalTokens = int64(result.UsageMetadata.TotalTokenCount)
		resp.Usage.CostUSD = calculateGeminiCost(req.Model, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	}

	log.Info().
		Str("feature", req.Feature).
		Str("model", req.Model).
		Bool("image", req.Image != nil).
		Bool("search", req.Search).
		Int("citations", len(resp.Citations)).
		Int64("inputTokens", resp.Usage.InputTokens).
		Int64("outputTokens", resp.Usage.OutputTokens).
		Float64("costUSD", resp.Usage.CostUSD).
		Msg("gemini llm call")

	return resp, nil
}

func buildConfig(req *AnalysisRequest) *genai.GenerateContentConfig {
	if req.Schema == nil && !req.Search && req.ThinkingBudget <= 0 {
		return nil
	}

	config := &genai.GenerateContentConfig{}
	if req.Schema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = req.Schema
	}
	if req.Search {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	if req.ThinkingBudget > 0 {
		config.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(req.ThinkingBudget)}
	}
	return config
}

// groundingSources returns the web citations of the first candidate as-is.
func groundingSources(result *genai.GenerateContentResponse) []Source {
	if len(result.Candidates) == 0 || result.Candidates[0].GroundingMetadata == nil {
		return nil
	}

	var sources []Source
	for _, chunk := range result.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		sources = append(sources, Source{Title: chunk.Web.Title, URI: chunk.Web.URI})
	}
	return sources
}

// classifyError marks client errors that will fail the same way on every
// attempt as permanent. Timeouts and rate limits stay retryable.
func classifyError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	code := apiErr.Code
	if code >= 400 && code < 500 && code != http.StatusRequestTimeout && code != http.StatusTooManyRequests {
		return Permanent(err)
	}
	return err
}

func calculateGeminiCost(model string, inputTokens, outputTokens int64) float64 {
	pricing, ok := geminiPricing[model]
	if !ok {
		return 0
	}
	inputCost := float64(inputTokens) / 1_000_000 * pricing.input
	outputCost := float64(outputTokens) / 1_000_000 * pricing.output
	return inputCost + outputCost
}
