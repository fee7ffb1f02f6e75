package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mscan/enrich/internal/edgar"
	"github.com/mscan/enrich/internal/enrich"
	"github.com/mscan/enrich/internal/resolver"
)

// maxBatchSize bounds one batch request. Larger batches should be split by
// the caller; the rate limiter makes huge batches slow anyway.
const maxBatchSize = 100

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// resultStatus maps an enrichment failure onto an HTTP status.
func resultStatus(result *edgar.EnrichmentResult) int {
	if result.Success {
		return http.StatusOK
	}
	switch result.ErrorKind {
	case "not_found":
		return http.StatusNotFound
	case "ambiguous":
		return http.StatusUnprocessableEntity
	case "configuration":
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

// handleEnrich enriches and scores a single identifier.
// GET /api/enrich/{identifier}
func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")

	item := s.runner.Enrich(identifier, nil)
	writeJSON(w, resultStatus(item.Result), item)
}

// handleBatchEnrich runs a batch of enrichments.
// POST /api/enrich {"items": [{"identifier": "AAPL", "signals": [...]}]}
func (s *Server) handleBatchEnrich(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []enrich.Request `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "items is required")
		return
	}
	if len(req.Items) > maxBatchSize {
		writeError(w, http.StatusBadRequest, "too many items (max "+strconv.Itoa(maxBatchSize)+")")
		return
	}

	writeJSON(w, http.StatusOK, s.runner.Run(req.Items))
}

// handleResolve resolves an identifier to a CIK without enriching.
// GET /api/resolve/{identifier}
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")

	match, err := s.resolver.Resolve(identifier)
	if err != nil {
		var ambiguous *resolver.AmbiguousError
		switch {
		case errors.As(err, &ambiguous):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":      "ambiguous identifier",
				"candidates": ambiguous.Candidates,
			})
		case errors.Is(err, resolver.ErrNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, resolver.ErrEmptyIdentifier):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, match)
}

// handleSearch finds companies by fuzzy name or prefix.
// GET /api/search?q=apple&limit=5&prefix=false
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	limit := 5
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 50 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 50")
			return
		}
		limit = parsed
	}

	var matches []resolver.Match
	var err error
	if r.URL.Query().Get("prefix") == "true" {
		matches, err = s.resolver.PrefixSearch(query, limit)
	} else {
		matches, err = s.resolver.ByName(query, limit)
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"matches": matches,
	})
}

// handleStats aggregates engine telemetry.
// GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"rate_limiter": map[string]any{
			"stats":                   s.limiter.GetStats(),
			"rate":                    s.limiter.Rate(),
			"rate_limit_hits":         s.limiter.RateLimitHits(),
			"time_until_next_slot_ms": s.limiter.TimeUntilNextSlot().Milliseconds(),
		},
		"cache":    s.store.GetStats(),
		"resolver": s.resolver.GetStats(),
	})
}
