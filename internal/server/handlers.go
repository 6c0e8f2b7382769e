package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/raine/seller-insights/internal/imagefetch"
	"github.com/raine/seller-insights/internal/insights"
	"github.com/raine/seller-insights/internal/llm"
	"github.com/raine/seller-insights/internal/storage"
	"github.com/rs/zerolog/hlog"
)

type strategyRequest struct {
	Context string `json:"context"`
}

type reviewsRequest struct {
	Reviews string `json:"reviews"`
}

type marketResearchRequest struct {
	Query string `json:"query"`
}

type competitorsRequest struct {
	Product string `json:"product"`
}

// screenshotRequest is the JSON form of a screenshot upload. Image holds
// base64 data or a data URL; ImageURL is downloaded when Image is empty.
type screenshotRequest struct {
	Image    string `json:"image"`
	MIMEType string `json:"mimeType"`
	ImageURL string `json:"imageUrl"`
}

func (r *Router) handleStrategy(ctx context.Context, w http.ResponseWriter, req *http.Request) error {
	var body strategyRequest
	if err := decodeJSON(w, req, maxTextBody, &body); err != nil {
		return err
	}
	return respond(w)(r.analyzer.GenerateStrategy(ctx, body.Context))
}

func (r *Router) handleReviews(ctx context.Context, w http.ResponseWriter, req *http.Request) error {
	var body reviewsRequest
	if err := decodeJSON(w, req, maxTextBody, &body); err != nil {
		return err
	}
	return respond(w)(r.analyzer.AnalyzeReviews(ctx, body.Reviews))
}

func (r *Router) handleMarketResearch(ctx context.Context, w http.ResponseWriter, req *http.Request) error {
	var body marketResearchRequest
	if err := decodeJSON(w, req, maxTextBody, &body); err != nil {
		return err
	}
	return respond(w)(r.analyzer.ConductMarketResearch(ctx, body.Query))
}

func (r *Router) handleCompetitors(ctx context.Context, w http.ResponseWriter, req *http.Request) error {
	var body competitorsRequest
	if err := decodeJSON(w, req, maxTextBody, &body); err != nil {
		return err
	}
	return respond(w)(r.analyzer.AnalyzeCompetitors(ctx, body.Product))
}

func (r *Router) handleScreenshot(ctx context.Context, w http.ResponseWriter, req *http.Request) error {
	img, err := r.readImage(ctx, w, req)
	if err != nil {
		return err
	}
	result, err := r.analyzer.AnalyzeScreenshot(ctx, img)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, result)
}

func (r *Router) handleUsage(w http.ResponseWriter, req *http.Request) {
	if r.usage == nil {
		_ = writeJSON(w, http.StatusOK, map[string]any{"enabled": false, "features": []storage.FeatureUsage{}})
		return
	}

	usage, err := r.usage.UsageByFeature()
	if err != nil {
		hlog.FromRequest(req).Error().Err(err).Msg("failed to read usage ledger")
		writeError(w, http.StatusInternalServerError, "failed to read usage")
		return
	}
	if usage == nil {
		usage = []storage.FeatureUsage{}
	}
	_ = writeJSON(w, http.StatusOK, map[string]any{"enabled": true, "features": usage})
}

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500
)

func (r *Router) handleRecentUsage(w http.ResponseWriter, req *http.Request) {
	if r.usage == nil {
		writeError(w, http.StatusNotFound, "usage ledger is disabled")
		return
	}

	limit := defaultRecentLimit
	if v := req.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRecentLimit)
	}

	records, err := r.usage.RecentUsage(limit)
	if err != nil {
		hlog.FromRequest(req).Error().Err(err).Msg("failed to read usage ledger")
		writeError(w, http.StatusInternalServerError, "failed to read usage")
		return
	}
	if records == nil {
		records = []storage.UsageRecord{}
	}
	_ = writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func respond(w http.ResponseWriter) func(*insights.AnalysisResult, error) error {
	return func(result *insights.AnalysisResult, err error) error {
		if err != nil {
			return err
		}
		return writeJSON(w, http.StatusOK, result)
	}
}

func decodeJSON(w http.ResponseWriter, req *http.Request, limit int64, v any) error {
	req.Body = http.MaxBytesReader(w, req.Body, limit)
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return &badRequest{msg: "request body too large"}
		}
		return &badRequest{msg: "invalid JSON body"}
	}
	return nil
}

// readImage accepts a multipart upload in the "image" field, a base64
// string or data URL, or a URL to download.
func (r *Router) readImage(ctx context.Context, w http.ResponseWriter, req *http.Request) (*llm.InlineImage, error) {
	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return readMultipartImage(w, req)
	}

	var body screenshotRequest
	if err := decodeJSON(w, req, maxImageBody, &body); err != nil {
		return nil, err
	}

	switch {
	case body.Image != "":
		data, declared, err := decodeImageString(body.Image)
		if err != nil {
			return nil, err
		}
		if body.MIMEType != "" {
			declared = body.MIMEType
		}
		return newInlineImage(declared, data)
	case body.ImageURL != "":
		if r.fetcher == nil {
			return nil, &badRequest{msg: "imageUrl is not supported"}
		}
		fetched, err := r.fetcher.Fetch(ctx, body.ImageURL)
		if err != nil {
			if errors.Is(err, imagefetch.ErrTooLarge) || errors.Is(err, imagefetch.ErrNotAnImage) || errors.Is(err, imagefetch.ErrUnsupported) {
				return nil, err
			}
			return nil, &badRequest{msg: "failed to download image"}
		}
		return &llm.InlineImage{Data: fetched.Data, MIMEType: fetched.MIMEType}, nil
	default:
		return nil, &badRequest{msg: "image is required"}
	}
}

func readMultipartImage(w http.ResponseWriter, req *http.Request) (*llm.InlineImage, error) {
	req.Body = http.MaxBytesReader(w, req.Body, maxImageBody)
	if err := req.ParseMultipartForm(maxImageBody); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, imagefetch.ErrTooLarge
		}
		return nil, &badRequest{msg: "invalid multipart body"}
	}
	defer req.MultipartForm.RemoveAll()

	file, header, err := req.FormFile("image")
	if err != nil {
		return nil, &badRequest{msg: "image is required"}
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return newInlineImage(header.Header.Get("Content-Type"), data)
}

// decodeImageString decodes raw base64 or a "data:<mime>;base64,<data>" URL.
func decodeImageString(s string) (data []byte, declared string, err error) {
	payload := s
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		meta, encoded, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(meta, ";base64") {
			return nil, "", &badRequest{msg: "image data URL must be base64 encoded"}
		}
		declared = strings.TrimSuffix(meta, ";base64")
		payload = encoded
	}

	data, err = base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, "", &badRequest{msg: "image is not valid base64"}
	}
	return data, declared, nil
}

func newInlineImage(declared string, data []byte) (*llm.InlineImage, error) {
	if len(data) == 0 {
		return nil, &badRequest{msg: "image is empty"}
	}
	mimeType, err := imagefetch.DetectMIMEType(declared, data)
	if err != nil {
		return nil, err
	}
	return &llm.InlineImage{Data: data, MIMEType: mimeType}, nil
}
