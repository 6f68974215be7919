package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/errwatch/internal/api/response"
	"github.com/kiranshivaraju/errwatch/internal/store"
	"github.com/kiranshivaraju/errwatch/pkg/models"
)

// NewListErrorsHandler returns an http.HandlerFunc for GET /api/v1/errors.
// Filters: source, status, since, until (RFC3339); pagination: page, limit.
func NewListErrorsHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		filter := store.RecordFilter{
			Source: q.Get("source"),
			Status: q.Get("status"),
		}

		if filter.Source != "" && !models.ValidSource(filter.Source) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"source must be frontend or backend", nil)
			return
		}
		if filter.Status != "" && !models.ValidStatus(filter.Status) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"status must be one of new, investigating, resolved, ignored", nil)
			return
		}

		var err error
		if filter.Since, err = parseTimeParam(q.Get("since")); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"since must be a valid RFC3339 timestamp", nil)
			return
		}
		if filter.Until, err = parseTimeParam(q.Get("until")); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"until must be a valid RFC3339 timestamp", nil)
			return
		}

		filter.Page, _ = strconv.Atoi(q.Get("page"))
		filter.Limit, _ = strconv.Atoi(q.Get("limit"))
		if filter.Page <= 0 {
			filter.Page = 1
		}
		if filter.Limit <= 0 {
			filter.Limit = 20
		}
		if filter.Limit > 100 {
			filter.Limit = 100
		}

		records, total, err := st.ListErrorRecords(r.Context(), filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to list error records", nil)
			return
		}
		if records == nil {
			records = []*models.ErrorRecord{}
		}

		response.Collection(w, records, response.PaginationMeta{
			Page:    filter.Page,
			Limit:   filter.Limit,
			Total:   total,
			HasNext: filter.Page*filter.Limit < total,
		})
	}
}

// NewGetErrorHandler returns an http.HandlerFunc for GET /api/v1/errors/{recordID}.
func NewGetErrorHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := recordIDParam(w, r)
		if !ok {
			return
		}

		rec, err := st.GetErrorRecord(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Error record not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to get error record", nil)
			return
		}

		response.JSON(w, rec)
	}
}

// NewUpdateStatusHandler returns an http.HandlerFunc for
// PATCH /api/v1/errors/{recordID}/status. Status changes are operator-driven;
// this is the only mutation the API performs on records.
func NewUpdateStatusHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := recordIDParam(w, r)
		if !ok {
			return
		}

		var req struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if !models.ValidStatus(req.Status) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"status must be one of new, investigating, resolved, ignored", nil)
			return
		}

		rec, err := st.SetErrorRecordStatus(r.Context(), id, req.Status)
		switch {
		case errors.Is(err, store.ErrNotFound):
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Error record not found", nil)
			return
		case errors.Is(err, store.ErrDuplicateKey):
			response.Error(w, http.StatusConflict, "CONFLICT",
				"An unresolved record with this fingerprint already exists", nil)
			return
		case err != nil:
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to update error record", nil)
			return
		}

		response.JSON(w, rec)
	}
}

// NewDeleteErrorHandler returns an http.HandlerFunc for DELETE /api/v1/errors/{recordID}.
func NewDeleteErrorHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := recordIDParam(w, r)
		if !ok {
			return
		}

		err := st.DeleteErrorRecord(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Error record not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to delete error record", nil)
			return
		}

		response.NoContent(w)
	}
}

func recordIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "recordID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "recordID must be a UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}

func parseTimeParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}
