package prompts

import (
	"fmt"

	"github.com/raine/seller-insights/internal/llm"
)

// Feature identifies one of the dashboard's analysis tabs.
type Feature string

const (
	FeatureStrategy       Feature = "strategy"
	FeatureReviews        Feature = "reviews"
	FeatureScreenshot     Feature = "screenshot"
	FeatureMarketResearch Feature = "market-research"
	FeatureCompetitors    Feature = "competitors"
)

// Features lists every feature in dashboard order.
var Features = []Feature{
	FeatureStrategy,
	FeatureScreenshot,
	FeatureMarketResearch,
	FeatureCompetitors,
	FeatureReviews,
}

// Valid reports whether f names a known feature.
func (f Feature) Valid() bool {
	_, ok := DefaultProfiles[f]
	return ok
}

// Profile selects the model and generation options used for a feature.
type Profile struct {
	Model          string `yaml:"model"`
	ThinkingBudget int32  `yaml:"thinking_budget"`
	Search         bool   `yaml:"search"`
}

// DefaultProfiles are used for any feature without an override.
var DefaultProfiles = map[Feature]Profile{
	FeatureStrategy:       {Model: "gemini-3-pro-preview", ThinkingBudget: 1024},
	FeatureReviews:        {Model: "gemini-3-pro-preview", ThinkingBudget: 1024},
	FeatureScreenshot:     {Model: "gemini-3-pro-preview"},
	FeatureMarketResearch: {Model: "gemini-2.5-flash", Search: true},
	FeatureCompetitors:    {Model: "gemini-2.5-flash", Search: true},
}

// Builder turns user input into analysis requests.
type Builder struct {
	profiles map[Feature]Profile
}

// NewBuilder creates a Builder. Overrides replace the default profile of
// their feature; fields left empty in an override keep the default value.
func NewBuilder(overrides map[Feature]Profile) (*Builder, error) {
	profiles := make(map[Feature]Profile, len(DefaultProfiles))
	for f, p := range DefaultProfiles {
		profiles[f] = p
	}

	for f, o := range overrides {
		p, ok := profiles[f]
		if !ok {
			return nil, fmt.Errorf("unknown feature in profile overrides: %q", f)
		}
		if o.Model != "" {
			p.Model = o.Model
		}
		if o.ThinkingBudget != 0 {
			p.ThinkingBudget = o.ThinkingBudget
		}
		p.Search = p.Search || o.Search
		profiles[f] = p
	}

	return &Builder{profiles: profiles}, nil
}

// Profile returns the effective profile of a feature.
func (b *Builder) Profile(f Feature) Profile {
	return b.profiles[f]
}

func (b *Builder) request(f Feature, prompt string) *llm.AnalysisRequest {
	p := b.profiles[f]
	return &llm.AnalysisRequest{
		Feature:        string(f),
		Model:          p.Model,
		Prompt:         prompt,
		Search:         p.Search,
		ThinkingBudget: p.ThinkingBudget,
	}
}

// Strategy builds the request for a step-by-step action plan.
func (b *Builder) Strategy(userContext string) *llm.AnalysisRequest {
	return b.request(FeatureStrategy, format(strategyPrompt, userContext))
}

// Reviews builds the request for a review sentiment analysis.
func (b *Builder) Reviews(reviews string) *llm.AnalysisRequest {
	return b.request(FeatureReviews, format(reviewsPrompt, reviews))
}

// MarketResearch builds a search-grounded market research request.
func (b *Builder) MarketResearch(query string) *llm.AnalysisRequest {
	return b.request(FeatureMarketResearch, format(marketResearchPrompt, query))
}

// Competitors builds a search-grounded competitor analysis request.
func (b *Builder) Competitors(product string) *llm.AnalysisRequest {
	return b.request(FeatureCompetitors, format(competitorsPrompt, product))
}

// ScreenshotExtraction builds the structured metrics extraction request.
func (b *Builder) ScreenshotExtraction(img *llm.InlineImage) *llm.AnalysisRequest {
	req := b.request(FeatureScreenshot, format(screenshotExtractionPrompt))
	req.Image = img
	req.Schema = llm.SalesDataSchema
	return req
}

// ScreenshotAdvice builds the free-text advice request for the same image.
func (b *Builder) ScreenshotAdvice(img *llm.InlineImage) *llm.AnalysisRequest {
	req := b.request(FeatureScreenshot, format(screenshotAdvicePrompt))
	req.Image = img
	return req
}
