package models

import (
	"time"

	"github.com/google/uuid"
)

// ErrorRecord statuses. Lifecycle is operator-driven via the admin API.
// A resolved record is excluded from dedup matching: the next event with the
// same fingerprint starts a fresh record (the bug recurred after being fixed).
const (
	StatusNew           = "new"
	StatusInvestigating = "investigating"
	StatusResolved      = "resolved"
	StatusIgnored       = "ignored"
)

// ErrorRecord represents one distinct error condition, deduplicated across
// repeated occurrences by fingerprint. At most one unresolved record exists
// per fingerprint at any time.
type ErrorRecord struct {
	ID                uuid.UUID      `db:"id"                  json:"id"`
	Fingerprint       string         `db:"fingerprint"         json:"fingerprint"`
	Source            string         `db:"source"              json:"source"`
	Module            string         `db:"module"              json:"module"`
	Status            string         `db:"status"              json:"status"`
	OccurrenceCount   int            `db:"occurrence_count"    json:"occurrence_count"`
	FirstSeenAt       time.Time      `db:"first_seen_at"       json:"first_seen_at"`
	LastSeenAt        time.Time      `db:"last_seen_at"        json:"last_seen_at"`
	AlertDispatchedAt *time.Time     `db:"alert_dispatched_at" json:"alert_dispatched_at,omitempty"`
	SampleMessage     string         `db:"sample_message"      json:"sample_message"`
	SampleStackTrace  string         `db:"sample_stack_trace"  json:"sample_stack_trace,omitempty"`
	SampleContext     map[string]any `db:"sample_context"      json:"sample_context,omitempty"`
	CreatedAt         time.Time      `db:"created_at"          json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"          json:"updated_at"`
}

// ValidStatus reports whether s is a known record status.
func ValidStatus(s string) bool {
	switch s {
	case StatusNew, StatusInvestigating, StatusResolved, StatusIgnored:
		return true
	}
	return false
}
