package insights

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/raine/seller-insights/internal/llm"
	"github.com/raine/seller-insights/internal/prompts"
	"github.com/raine/seller-insights/internal/render"
	"github.com/raine/seller-insights/internal/storage"
	"github.com/rs/zerolog/log"
)

var (
	ErrEmptyInput       = errors.New("input is empty")
	ErrUnsupportedImage = errors.New("unsupported image type")
)

// Text substituted when the model returns no text.
const (
	FallbackStrategy       = "Unable to generate strategy."
	FallbackReviews        = "Unable to analyze reviews."
	FallbackAdvice         = "Could not generate advice."
	FallbackMarketResearch = "No insights found."
	FallbackCompetitors    = "No competitor data found."
)

// AnalysisResult is the outcome of a text analysis.
type AnalysisResult struct {
	ID        string       `json:"id"`
	Markdown  string       `json:"markdown"`
	HTML      string       `json:"html"`
	Sources   []llm.Source `json:"sources,omitempty"`
	Timestamp int64        `json:"timestamp"` // Unix milliseconds
}

// ScreenshotResult is the outcome of a dashboard screenshot analysis.
// Data is nil when no metrics could be extracted.
type ScreenshotResult struct {
	ID         string                  `json:"id"`
	Data       *llm.ExtractedSalesData `json:"data"`
	Advice     string                  `json:"advice"`
	AdviceHTML string                  `json:"adviceHtml"`
	Cards      []StatCard              `json:"cards"`
	Timestamp  int64                   `json:"timestamp"`
}

// UsageRecorder persists token usage of outbound calls.
type UsageRecorder interface {
	RecordUsage(rec *storage.UsageRecord) error
}

// Service runs the dashboard's analyses against a Generator.
type Service struct {
	gen      llm.Generator
	builder  *prompts.Builder
	retry    llm.RetryPolicy
	usage    UsageRecorder
	markdown *render.Markdown
	now      func() time.Time
}

// NewService creates a Service with the default retry policy and no usage recording.
func NewService(gen llm.Generator, builder *prompts.Builder) *Service {
	return &Service{
		gen:      gen,
		builder:  builder,
		retry:    llm.DefaultRetryPolicy,
		markdown: render.NewMarkdown(),
		now:      time.Now,
	}
}

// WithRetryPolicy sets a custom retry policy.
func (s *Service) WithRetryPolicy(policy llm.RetryPolicy) *Service {
	s.retry = policy
	return s
}

// WithUsageRecorder enables usage recording.
func (s *Service) WithUsageRecorder(usage UsageRecorder) *Service {
	s.usage = usage
	return s
}

// GenerateStrategy produces a step-by-step action plan for the seller's situation.
func (s *Service) GenerateStrategy(ctx context.Context, userContext string) (*AnalysisResult, error) {
	if strings.TrimSpace(userContext) == "" {
		return nil, ErrEmptyInput
	}
	return s.analyzeText(ctx, s.builder.Strategy(userContext), FallbackStrategy)
}

// AnalyzeReviews categorizes review sentiment and extracts recurring themes.
func (s *Service) AnalyzeReviews(ctx context.Context, reviews string) (*AnalysisResult, error) {
	if strings.TrimSpace(reviews) == "" {
		return nil, ErrEmptyInput
	}
	return s.analyzeText(ctx, s.builder.Reviews(reviews), FallbackReviews)
}

// ConductMarketResearch runs search-grounded market research on a query.
func (s *Service) ConductMarketResearch(ctx context.Context, query string) (*AnalysisResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyInput
	}
	return s.analyzeText(ctx, s.builder.MarketResearch(query), FallbackMarketResearch)
}

// AnalyzeCompetitors identifies the top competitors for a product using search grounding.
func (s *Service) AnalyzeCompetitors(ctx context.Context, product string) (*AnalysisResult, error) {
	if strings.TrimSpace(product) == "" {
		return nil, ErrEmptyInput
	}
	return s.analyzeText(ctx, s.builder.Competitors(product), FallbackCompetitors)
}

// AnalyzeScreenshot extracts sales metrics from a dashboard screenshot and
// generates advice for it. Both calls are retried together. A failed
// extraction leaves Data nil without failing the analysis.
func (s *Service) AnalyzeScreenshot(ctx context.Context, img *llm.InlineImage) (*ScreenshotResult, error) {
	if img == nil || len(img.Data) == 0 {
		return nil, ErrEmptyInput
	}
	if !strings.HasPrefix(img.MIMEType, "image/") {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedImage, img.MIMEType)
	}

	type outcome struct {
		data   *llm.ExtractedSalesData
		advice string
	}

	digest := storage.ImageDigest(img.Data)
	out, err := llm.Retry(ctx, s.retry, func(ctx context.Context) (*outcome, error) {
		extraction, err := s.generate(ctx, s.builder.ScreenshotExtraction(img), digest)
		if err != nil {
			return nil, err
		}

		advice, err := s.generate(ctx, s.builder.ScreenshotAdvice(img), digest)
		if err != nil {
			return nil, err
		}

		return &outcome{
			data:   llm.ParseSalesData(extraction.Text),
			advice: advice.Text,
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot analysis failed: %w", err)
	}

	advice := valueOr(out.advice, FallbackAdvice)
	return &ScreenshotResult{
		ID:         uuid.NewString(),
		Data:       out.data,
		Advice:     advice,
		AdviceHTML: s.renderHTML(advice),
		Cards:      SummaryCards(out.data),
		Timestamp:  s.now().UnixMilli(),
	}, nil
}

func (s *Service) analyzeText(ctx context.Context, req *llm.AnalysisRequest, fallback string) (*AnalysisResult, error) {
	resp, err := llm.Retry(ctx, s.retry, func(ctx context.Context) (*llm.Response, error) {
		return s.generate(ctx, req, "")
	})
	if err != nil {
		return nil, fmt.Errorf("%s analysis failed: %w", req.Feature, err)
	}

	markdown := valueOr(resp.Text, fallback)
	result := &AnalysisResult{
		ID:        uuid.NewString(),
		Markdown:  markdown,
		HTML:      s.renderHTML(markdown),
		Timestamp: s.now().UnixMilli(),
	}
	if req.Search {
		result.Sources = llm.DedupSources(resp.Citations)
	}
	return result, nil
}

// generate performs one outbound call and records its usage.
func (s *Service) generate(ctx context.Context, req *llm.AnalysisRequest, imageDigest string) (*llm.Response, error) {
	resp, err := s.gen.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	if s.usage != nil {
		rec := &storage.UsageRecord{
			Feature:      req.Feature,
			Model:        req.Model,
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			CostUSD:      resp.Usage.CostUSD,
			ImageDigest:  imageDigest,
		}
		if err := s.usage.RecordUsage(rec); err != nil {
			log.Warn().Err(err).Str("feature", req.Feature).Msg("failed to record llm usage")
		}
	}

	return resp, nil
}

func (s *Service) renderHTML(markdown string) string {
	html, err := s.markdown.Render(markdown)
	if err != nil {
		log.Warn().Err(err).Msg("failed to render markdown")
		return ""
	}
	return html
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
