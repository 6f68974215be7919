package capture

import (
	"time"

	"github.com/kiranshivaraju/errwatch/pkg/models"
)

// Default alert policy: notify on the first occurrence and every 10th repeat,
// but never twice within an hour for the same record.
const (
	DefaultAlertEvery        = 10
	DefaultSuppressionWindow = 60 * time.Minute
)

// Gate decides whether a record's current state warrants an alert.
// Pure: no I/O, no side effects.
type Gate struct {
	alertEvery  int
	suppression time.Duration
}

// NewGate creates a Gate. Non-positive arguments fall back to the defaults.
func NewGate(alertEvery int, suppression time.Duration) *Gate {
	if alertEvery <= 0 {
		alertEvery = DefaultAlertEvery
	}
	if suppression <= 0 {
		suppression = DefaultSuppressionWindow
	}
	return &Gate{alertEvery: alertEvery, suppression: suppression}
}

// ShouldAlert reports whether an alert should be dispatched for rec as of now.
// A record is a candidate on its first occurrence or on every alertEvery-th
// repeat; a candidate is still suppressed if an alert already went out within
// the suppression window.
func (g *Gate) ShouldAlert(rec *models.ErrorRecord, now time.Time) bool {
	candidate := rec.OccurrenceCount == 1 || rec.OccurrenceCount%g.alertEvery == 0
	if !candidate {
		return false
	}
	if rec.AlertDispatchedAt != nil && now.Sub(*rec.AlertDispatchedAt) < g.suppression {
		return false
	}
	return true
}
