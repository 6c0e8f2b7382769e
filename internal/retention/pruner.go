package retention

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultInterval is how often the ledger is pruned.
	DefaultInterval = 24 * time.Hour

	// DefaultMaxAge is how long usage records are kept.
	DefaultMaxAge = 90 * 24 * time.Hour // 90 days
)

// UsagePruner deletes ledger records older than a given age.
type UsagePruner interface {
	PruneUsage(olderThan time.Duration) (int64, error)
}

// Service periodically prunes the usage ledger.
type Service struct {
	store    UsagePruner
	maxAge   time.Duration
	interval time.Duration
}

// NewService creates a pruning service keeping records for maxAge.
func NewService(store UsagePruner, maxAge time.Duration) *Service {
	return &Service{
		store:    store,
		maxAge:   maxAge,
		interval: DefaultInterval,
	}
}

// WithInterval sets the time between pruning cycles.
func (s *Service) WithInterval(interval time.Duration) *Service {
	s.interval = interval
	return s
}

// Run prunes once at startup and then on every interval. It blocks until
// the context is cancelled.
func (s *Service) Run(ctx context.Context) {
	log.Info().Dur("interval", s.interval).Dur("maxAge", s.maxAge).Msg("starting usage retention")

	s.prune()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("usage retention stopped")
			return
		case <-ticker.C:
			s.prune()
		}
	}
}

func (s *Service) prune() {
	count, err := s.store.PruneUsage(s.maxAge)
	if err != nil {
		log.Error().Err(err).Msg("failed to prune usage ledger")
		return
	}
	if count > 0 {
		log.Info().Int64("pruned", count).Msg("pruned old usage records")
	}
}
