// Package capture ingests error events: it fingerprints them, folds them into
// deduplicated error records and dispatches throttled alerts. Nothing in this
// package ever raises into the code that reported the error; observing
// failures must not become a new source of failure.
package capture

import (
	"context"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/errwatch/internal/alert"
	"github.com/kiranshivaraju/errwatch/internal/fingerprint"
	"github.com/kiranshivaraju/errwatch/pkg/models"
)

// RecordStore is the slice of the data layer the pipeline writes through.
// The pipeline is the sole owner of occurrence and alert-stamp mutations.
type RecordStore interface {
	UpsertOccurrence(ctx context.Context, fp string, event models.ErrorEvent, now time.Time) (*models.ErrorRecord, error)
	MarkAlertSent(ctx context.Context, fp string, at time.Time) (bool, error)
}

// Pipeline orchestrates fingerprint -> upsert -> gate -> dispatch -> mark.
//
// The logger must be a plain sink without the capture handler attached,
// otherwise pipeline failures would feed back into the pipeline.
type Pipeline struct {
	store      RecordStore
	gate       *Gate
	dispatcher alert.Dispatcher
	logger     *slog.Logger
	now        func() time.Time
}

// NewPipeline creates a Pipeline.
func NewPipeline(st RecordStore, gate *Gate, d alert.Dispatcher, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		store:      st,
		gate:       gate,
		dispatcher: d,
		logger:     logger,
		now:        time.Now,
	}
}

// Process folds one event into its error record and dispatches an alert when
// the gate approves. It never returns an error and never panics: every step is
// failure-isolated, and a failed step only costs this occurrence its alert.
// The next occurrence re-evaluates from the stored record.
func (p *Pipeline) Process(ctx context.Context, event models.ErrorEvent) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic in capture pipeline", "panic", r, "module", event.Module)
		}
	}()

	// Non-error events are logged by the caller's usual sink; only error-level
	// events participate in dedup and alerting.
	if event.Level != models.LevelError {
		return
	}

	fp := fingerprint.Compute(event)

	rec, err := p.store.UpsertOccurrence(ctx, fp, event, p.now().UTC())
	if err != nil {
		p.logger.Error("capture: upsert occurrence failed", "error", err, "fingerprint", fp)
		return
	}

	if !p.gate.ShouldAlert(rec, p.now()) {
		return
	}

	if err := p.dispatcher.Dispatch(ctx, rec); err != nil {
		// No retry here; the next qualifying occurrence re-attempts. The
		// record keeps its old alert stamp so the gate stays open.
		p.logger.Warn("capture: alert dispatch failed", "error", err,
			"fingerprint", fp, "occurrence_count", rec.OccurrenceCount)
		return
	}

	claimed, err := p.store.MarkAlertSent(ctx, fp, p.now().UTC())
	if err != nil {
		p.logger.Error("capture: mark alert sent failed", "error", err, "fingerprint", fp)
		return
	}
	if !claimed {
		// A concurrent occurrence already stamped this window.
		p.logger.Debug("capture: alert stamp already advanced", "fingerprint", fp)
	}
}
