package enrich

import (
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mscan/enrich/internal/cache"
	"github.com/mscan/enrich/internal/edgar"
	"github.com/mscan/enrich/internal/resolver"
	"github.com/mscan/enrich/internal/scoring"
)

const batchIndexJSON = `{
	"0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."},
	"1": {"cik_str": 789019, "ticker": "MSFT", "title": "Microsoft Corporation"}
}`

const batchSubmissionsJSON = `{
	"name": "Apple Inc.",
	"tickers": ["AAPL"],
	"exchanges": ["Nasdaq"],
	"sicDescription": "Electronic Computers",
	"fiscalYearEnd": "0927",
	"filings": {"recent": {"accessionNumber": [], "filingDate": [], "form": [], "primaryDocument": []}}
}`

const batchFactsJSON = `{"facts": {"us-gaap": {"Revenues": {"units": {"USD": [
	{"val": 391035000000, "fy": 2024, "fp": "FY", "end": "2024-09-28"}
]}}}}}`

type passLimiter struct{}

func (passLimiter) Acquire(blocking bool) bool { return true }

func newTestRunner(t *testing.T, workers int) *Runner {
	t.Helper()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/submissions/"):
			fmt.Fprint(w, batchSubmissionsJSON)
		case strings.HasPrefix(r.URL.Path, "/api/xbrl/companyfacts/"):
			fmt.Fprint(w, batchFactsJSON)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(api.Close)

	index := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, batchIndexJSON)
	}))
	t.Cleanup(index.Close)

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := cache.NewStore(db, zerolog.Nop())
	require.NoError(t, err)

	res := resolver.New(store, passLimiter{}, "test suite test@example.com", zerolog.Nop())
	res.SetIndexURL(index.URL)

	client, err := edgar.NewClient(store, passLimiter{}, res, "test suite test@example.com", zerolog.Nop())
	require.NoError(t, err)
	client.SetBaseURL(api.URL)

	return NewRunner(client, scoring.NewScorer(), workers, zerolog.Nop())
}

func TestBatchIndependentOutcomes(t *testing.T) {
	runner := newTestRunner(t, 2)

	batch := runner.Run([]Request{
		{Identifier: "AAPL"},
		{Identifier: "zzqqxxy"}, // unresolvable
		{Identifier: "MSFT"},
	})

	require.Len(t, batch.Items, 3)
	assert.NotEmpty(t, batch.JobID)
	assert.Equal(t, 2, batch.Succeeded)
	assert.Equal(t, 1, batch.Failed)

	// Input order preserved
	assert.Equal(t, "AAPL", batch.Items[0].Identifier)
	assert.True(t, batch.Items[0].Result.Success)
	assert.False(t, batch.Items[1].Result.Success, "one bad item must not abort the batch")
	assert.True(t, batch.Items[2].Result.Success)
}

func TestBatchScoresSuccessfulItems(t *testing.T) {
	runner := newTestRunner(t, 1)

	batch := runner.Run([]Request{{Identifier: "AAPL"}})
	require.True(t, batch.Items[0].Result.Success)

	scored := batch.Items[0].Scored
	require.NotNil(t, scored)
	assert.Greater(t, scored.Score, 0)
	assert.NotEmpty(t, scored.Insights)
}

func TestBatchAggregatesTelemetry(t *testing.T) {
	runner := newTestRunner(t, 1)

	first := runner.Run([]Request{{Identifier: "AAPL"}})
	assert.Equal(t, 2, first.TotalRequests)
	assert.Equal(t, 0, first.TotalCacheHits)

	second := runner.Run([]Request{{Identifier: "AAPL"}})
	assert.Equal(t, 0, second.TotalRequests)
	assert.Equal(t, 2, second.TotalCacheHits)
}

func TestDispatchCIK(t *testing.T) {
	runner := newTestRunner(t, 1)

	item := runner.Enrich("320193", nil)
	require.True(t, item.Result.Success)
	assert.Equal(t, "0000320193", item.Result.Profile.CIK)
}

func TestEmptyBatch(t *testing.T) {
	runner := newTestRunner(t, 4)

	batch := runner.Run(nil)
	assert.Empty(t, batch.Items)
	assert.Equal(t, 0, batch.Succeeded)
	assert.Equal(t, 0, batch.Failed)
}
