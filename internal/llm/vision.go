package llm

import (
	"context"

	"google.golang.org/genai"
)

// InlineImage is binary image data sent inline with a request.
type InlineImage struct {
	Data     []byte
	MIMEType string
}

// AnalysisRequest describes a single generate-content call.
type AnalysisRequest struct {
	Feature string // Used for logging and usage accounting
	Model   string
	Prompt  string
	Image   *InlineImage

	// Schema enables structured JSON output when set.
	Schema *genai.Schema
	// Search enables the search grounding tool.
	Search bool
	// ThinkingBudget is left unset when zero.
	ThinkingBudget int32
}

// Source is a citation attached to a grounded response.
type Source struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// Usage contains token usage and cost information.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	CostUSD      float64
}

// Response is the raw output of a generate-content call.
type Response struct {
	Text string
	// Citations are the grounding chunks as returned, possibly duplicated.
	Citations []Source
	Usage     Usage
}

// Generator sends analysis requests to a generative-language API.
type Generator interface {
	Generate(ctx context.Context, req *AnalysisRequest) (*Response, error)
}
