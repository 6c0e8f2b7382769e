package server

import (
	"github.com/raine/seller-insights/internal/prompts"
	"golang.org/x/sync/semaphore"
)

// inFlightGuard allows one outstanding request per feature. A second
// submission while the first is running is rejected, not queued.
type inFlightGuard struct {
	sems map[prompts.Feature]*semaphore.Weighted
}

func newInFlightGuard(features []prompts.Feature) *inFlightGuard {
	g := &inFlightGuard{sems: make(map[prompts.Feature]*semaphore.Weighted, len(features))}
	for _, f := range features {
		g.sems[f] = semaphore.NewWeighted(1)
	}
	return g
}

func (g *inFlightGuard) tryAcquire(f prompts.Feature) (release func(), ok bool) {
	sem, found := g.sems[f]
	if !found || !sem.TryAcquire(1) {
		return nil, false
	}
	return func() { sem.Release(1) }, true
}
