package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/kiranshivaraju/errwatch/internal/api/response"
	"github.com/kiranshivaraju/errwatch/internal/cache"
	"github.com/kiranshivaraju/errwatch/internal/store"
	"github.com/kiranshivaraju/errwatch/pkg/models"
)

const (
	defaultStatsWindow = 7 * 24 * time.Hour
	maxStatsWindow     = 90 * 24 * time.Hour
	statsCacheTTL      = 60 * time.Second
)

// NewStatsHandler returns an http.HandlerFunc for GET /api/v1/errors/stats.
// The window query param is a Go duration (e.g. "72h"); results are cached in
// Redis for a minute since the aggregate scans the whole table.
func NewStatsHandler(st store.Store, ca cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		window := defaultStatsWindow
		if v := r.URL.Query().Get("window"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"window must be a positive duration such as 24h or 168h", nil)
				return
			}
			window = d
		}
		if window > maxStatsWindow {
			window = maxStatsWindow
		}

		key := cache.StatsKey(window)
		if cached, ok, err := ca.Get(r.Context(), key); err == nil && ok {
			var stats models.ErrorStats
			if json.Unmarshal(cached, &stats) == nil {
				response.JSON(w, &stats)
				return
			}
		}

		stats, err := st.AggregateStats(r.Context(), time.Now().UTC().Add(-window))
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to aggregate stats", nil)
			return
		}

		if payload, err := json.Marshal(stats); err == nil {
			if err := ca.Set(r.Context(), key, payload, statsCacheTTL); err != nil {
				slog.Debug("stats cache write failed", "error", err)
			}
		}

		response.JSON(w, stats)
	}
}
