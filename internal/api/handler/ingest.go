package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/errwatch/internal/api/response"
	"github.com/kiranshivaraju/errwatch/pkg/models"
)

const maxIngestBodyBytes = 64 << 10

// Capturer is the piece of the capture queue the ingestion endpoint needs.
type Capturer interface {
	Enqueue(event models.ErrorEvent) bool
}

// NewIngestHandler returns an http.HandlerFunc for POST /api/v1/events.
// The response carries a generated receipt ID and returns immediately;
// deduplication and alerting run detached on the capture queue.
func NewIngestHandler(q Capturer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var event models.ErrorEvent
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxIngestBodyBytes))
		if err := dec.Decode(&event); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if event.Source == "" {
			event.Source = models.SourceFrontend
		}
		if !models.ValidSource(event.Source) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"source must be frontend or backend", nil)
			return
		}
		if event.Message == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "message is required", nil)
			return
		}
		if !models.ValidLevel(event.Level) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"level must be one of error, warn, info, debug", nil)
			return
		}
		if event.Level != models.LevelError {
			// Only error-level events enter the dedup/alert path.
			response.Error(w, http.StatusUnprocessableEntity, "LEVEL_NOT_CAPTURED",
				"only error-level events are captured", nil)
			return
		}

		accepted := q.Enqueue(event)

		response.Accepted(w, ingestResponse{
			EventID:  uuid.New(),
			Accepted: accepted,
		})
	}
}

type ingestResponse struct {
	EventID  uuid.UUID `json:"event_id"`
	Accepted bool      `json:"accepted"`
}
