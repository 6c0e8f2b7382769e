package insights

import (
	"context"
	"errors"
	"sync"

	"github.com/raine/seller-insights/internal/llm"
	"github.com/raine/seller-insights/internal/storage"
)

// fakeGenerator is a test double for llm.Generator.
// GenerateFunc is called for every request; Requests records them in order.
type fakeGenerator struct {
	GenerateFunc func(ctx context.Context, req *llm.AnalysisRequest) (*llm.Response, error)

	mu       sync.Mutex
	Requests []*llm.AnalysisRequest
}

var _ llm.Generator = (*fakeGenerator)(nil)

func (f *fakeGenerator) Generate(ctx context.Context, req *llm.AnalysisRequest) (*llm.Response, error) {
	f.mu.Lock()
	f.Requests = append(f.Requests, req)
	fn := f.GenerateFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return &llm.Response{Text: "ok"}, nil
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Requests)
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []storage.UsageRecord
	err     error
}

func (f *fakeRecorder) RecordUsage(rec *storage.UsageRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, *rec)
	return nil
}

var errUpstream = errors.New("upstream unavailable")
