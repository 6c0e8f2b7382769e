package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/raine/seller-insights/internal/imagefetch"
	"github.com/raine/seller-insights/internal/insights"
	"github.com/raine/seller-insights/internal/llm"
	"github.com/raine/seller-insights/internal/prompts"
	"github.com/raine/seller-insights/internal/storage"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// Analyzer runs the dashboard analyses.
type Analyzer interface {
	GenerateStrategy(ctx context.Context, userContext string) (*insights.AnalysisResult, error)
	AnalyzeReviews(ctx context.Context, reviews string) (*insights.AnalysisResult, error)
	ConductMarketResearch(ctx context.Context, query string) (*insights.AnalysisResult, error)
	AnalyzeCompetitors(ctx context.Context, product string) (*insights.AnalysisResult, error)
	AnalyzeScreenshot(ctx context.Context, img *llm.InlineImage) (*insights.ScreenshotResult, error)
}

// ImageFetcher downloads screenshots referenced by URL.
type ImageFetcher interface {
	Fetch(ctx context.Context, imageURL string) (*imagefetch.Image, error)
}

// UsageReporter reads the usage ledger.
type UsageReporter interface {
	UsageByFeature() ([]storage.FeatureUsage, error)
	RecentUsage(limit int) ([]storage.UsageRecord, error)
}

// Options configures the router. Fetcher and Usage are optional.
type Options struct {
	Analyzer       Analyzer
	Fetcher        ImageFetcher
	Usage          UsageReporter
	AllowedOrigins []string
	// BaseContext bounds every analysis. Cancelling it aborts requests in
	// flight; client disconnects do not.
	BaseContext context.Context
}

// Messages shown to the user when an analysis fails. Transport details are
// only logged.
var failureMessages = map[prompts.Feature]string{
	prompts.FeatureStrategy:       "Sorry, I encountered an error generating your strategy.",
	prompts.FeatureReviews:        "Sorry, I encountered an error analyzing the reviews.",
	prompts.FeatureScreenshot:     "Failed to analyze image. Please ensure it is a clear screenshot.",
	prompts.FeatureMarketResearch: "Failed to fetch market insights. Please try again.",
	prompts.FeatureCompetitors:    "Failed to analyze competitors. Please try again.",
}

const (
	maxTextBody = 1 << 20
	// Base64 payloads are a third larger than the image they carry.
	maxImageBody = imagefetch.DefaultMaxSize*4/3 + 1<<16
)

type Router struct {
	analyzer Analyzer
	fetcher  ImageFetcher
	usage    UsageReporter
	baseCtx  context.Context
	inFlight *inFlightGuard
}

// NewRouter builds the HTTP API.
func NewRouter(opts Options) http.Handler {
	baseCtx := opts.BaseContext
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	r := &Router{
		analyzer: opts.Analyzer,
		fetcher:  opts.Fetcher,
		usage:    opts.Usage,
		baseCtx:  baseCtx,
		inFlight: newInFlightGuard(prompts.Features),
	}

	mux := chi.NewRouter()
	mux.Use(hlog.NewHandler(log.Logger))
	mux.Use(hlog.RequestIDHandler("reqID", "Request-Id"))
	mux.Use(hlog.AccessHandler(func(req *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(req).Info().
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("http request")
	}))
	mux.Use(middleware.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Request-Id"},
		MaxAge:         300,
	}))

	mux.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("ok"))
	})

	mux.Route("/api", func(rt chi.Router) {
		rt.Post("/strategy", r.wrap(prompts.FeatureStrategy, r.handleStrategy))
		rt.Post("/reviews", r.wrap(prompts.FeatureReviews, r.handleReviews))
		rt.Post("/market-research", r.wrap(prompts.FeatureMarketResearch, r.handleMarketResearch))
		rt.Post("/competitors", r.wrap(prompts.FeatureCompetitors, r.handleCompetitors))
		rt.Post("/screenshot", r.wrap(prompts.FeatureScreenshot, r.handleScreenshot))
		rt.Get("/usage", r.handleUsage)
		rt.Get("/usage/recent", r.handleRecentUsage)
	})

	return mux
}

type handlerFunc func(ctx context.Context, w http.ResponseWriter, req *http.Request) error

// wrap guards a feature handler against concurrent submissions, detaches
// the analysis from the client connection and maps errors to responses.
func (r *Router) wrap(feature prompts.Feature, h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		release, ok := r.inFlight.tryAcquire(feature)
		if !ok {
			writeError(w, http.StatusConflict, "request already in progress")
			return
		}
		defer release()

		ctx, cancel := r.detachedContext(req)
		defer cancel()

		if err := h(ctx, w, req); err != nil {
			r.writeFailure(w, req, feature, err)
		}
	}
}

func (r *Router) detachedContext(req *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(req.Context()))
	stop := context.AfterFunc(r.baseCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// badRequest is a client error whose message is safe to show.
type badRequest struct {
	msg string
}

func (e *badRequest) Error() string { return e.msg }

func (r *Router) writeFailure(w http.ResponseWriter, req *http.Request, feature prompts.Feature, err error) {
	var br *badRequest
	switch {
	case errors.As(err, &br):
		writeError(w, http.StatusBadRequest, br.msg)
	case errors.Is(err, insights.ErrEmptyInput):
		writeError(w, http.StatusBadRequest, "input is required")
	case errors.Is(err, insights.ErrUnsupportedImage), errors.Is(err, imagefetch.ErrNotAnImage):
		writeError(w, http.StatusBadRequest, "unsupported image type")
	case errors.Is(err, imagefetch.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "image too large")
	case errors.Is(err, imagefetch.ErrUnsupported):
		writeError(w, http.StatusBadRequest, "imageUrl must be an http or https url")
	default:
		hlog.FromRequest(req).Error().Err(err).Str("feature", string(feature)).Msg("analysis failed")
		writeError(w, http.StatusBadGateway, failureMessages[feature])
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	_ = writeJSON(w, status, map[string]string{"error": msg})
}
