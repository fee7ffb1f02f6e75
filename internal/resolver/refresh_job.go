package resolver

import (
	"github.com/rs/zerolog"
)

// RefreshJob refreshes the ticker index wholesale so new listings and
// delistings are picked up without waiting for the cache TTL to lapse.
type RefreshJob struct {
	resolver *Resolver
	log      zerolog.Logger
}

// NewRefreshJob creates a new index refresh job.
func NewRefreshJob(r *Resolver, log zerolog.Logger) *RefreshJob {
	return &RefreshJob{
		resolver: r,
		log:      log.With().Str("job", "ticker_index_refresh").Logger(),
	}
}

// Run fetches a fresh index snapshot.
func (j *RefreshJob) Run() error {
	if err := j.resolver.ForceRefresh(); err != nil {
		j.log.Error().Err(err).Msg("Failed to refresh ticker index")
		return err
	}

	stats := j.resolver.GetStats()
	j.log.Info().
		Int("tickers", stats.TotalTickers).
		Int("companies", stats.TotalCompanies).
		Msg("Ticker index refreshed")

	return nil
}

// Name returns the job name for scheduling and logging.
func (j *RefreshJob) Name() string {
	return "ticker_index_refresh"
}
