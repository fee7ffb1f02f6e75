// Package enrich runs batch enrichments: many identifiers, a bounded
// worker pool, per-item independent outcomes. One item failing never
// aborts the batch.
package enrich

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mscan/enrich/internal/edgar"
	"github.com/mscan/enrich/internal/scanner"
	"github.com/mscan/enrich/internal/scoring"
)

// DefaultWorkers bounds batch concurrency. The rate limiter is the real
// throughput ceiling; more workers would only queue on it.
const DefaultWorkers = 4

// Request is one batch item: an identifier plus optional externally
// supplied technology scan signals for scoring.
type Request struct {
	Identifier string               `json:"identifier"`
	Signals    []scanner.TechSignal `json:"signals,omitempty"`
}

// ItemResult is the outcome for one batch item.
type ItemResult struct {
	Identifier string                  `json:"identifier"`
	Result     *edgar.EnrichmentResult `json:"result"`
	Scored     *scoring.ScoredProfile  `json:"scored,omitempty"`
}

// BatchResult aggregates a whole batch run.
type BatchResult struct {
	JobID          string        `json:"job_id"`
	Items          []ItemResult  `json:"items"`
	Succeeded      int           `json:"succeeded"`
	Failed         int           `json:"failed"`
	TotalRequests  int           `json:"total_requests"`
	TotalCacheHits int           `json:"total_cache_hits"`
	Duration       time.Duration `json:"duration"`
}

// Runner executes enrichment batches.
type Runner struct {
	client  *edgar.Client
	scorer  *scoring.Scorer
	workers int
	log     zerolog.Logger
}

// NewRunner creates a batch runner. workers <= 0 selects DefaultWorkers.
func NewRunner(client *edgar.Client, scorer *scoring.Scorer, workers int, log zerolog.Logger) *Runner {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Runner{
		client:  client,
		scorer:  scorer,
		workers: workers,
		log:     log.With().Str("component", "batch").Logger(),
	}
}

// Enrich processes a single identifier: enrichment plus scoring when the
// enrichment succeeds.
func (r *Runner) Enrich(identifier string, signals []scanner.TechSignal) ItemResult {
	result := r.dispatch(identifier)

	item := ItemResult{Identifier: identifier, Result: result}
	if result.Success {
		scored := r.scorer.Score(result.Profile, signals)
		item.Scored = &scored
	}
	return item
}

// Run processes the batch with a bounded worker pool. Results come back in
// input order regardless of completion order.
func (r *Runner) Run(requests []Request) *BatchResult {
	start := time.Now()

	batch := &BatchResult{
		JobID: uuid.New().String(),
		Items: make([]ItemResult, len(requests)),
	}

	r.log.Info().
		Str("job_id", batch.JobID).
		Int("items", len(requests)).
		Int("workers", r.workers).
		Msg("Starting batch enrichment")

	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				// Each slot is written by exactly one worker
				batch.Items[i] = r.Enrich(requests[i].Identifier, requests[i].Signals)
			}
		}()
	}

	for i := range requests {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, item := range batch.Items {
		if item.Result.Success {
			batch.Succeeded++
		} else {
			batch.Failed++
		}
		batch.TotalRequests += item.Result.RequestsMade
		batch.TotalCacheHits += item.Result.CacheHits
	}
	batch.Duration = time.Since(start)

	r.log.Info().
		Str("job_id", batch.JobID).
		Int("succeeded", batch.Succeeded).
		Int("failed", batch.Failed).
		Int("requests", batch.TotalRequests).
		Dur("duration", batch.Duration).
		Msg("Batch enrichment completed")

	return batch
}

// dispatch routes an identifier to the right enrichment entry point:
// all-digit identifiers are CIKs, everything else goes through resolution
// (exact ticker first, fuzzy name second).
func (r *Runner) dispatch(identifier string) *edgar.EnrichmentResult {
	trimmed := strings.TrimSpace(identifier)
	if trimmed != "" && isDigits(trimmed) {
		return r.client.EnrichByCIK(trimmed)
	}
	return r.client.EnrichByName(trimmed)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
