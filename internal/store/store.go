package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/errwatch/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
// The capture pipeline is the only writer of error record occurrences; the
// admin API only changes status and deletes rows.
type Store interface {
	Ping(ctx context.Context) error

	// UpsertOccurrence folds one error event into its record. If an unresolved
	// record with this fingerprint exists it atomically increments the
	// occurrence count, bumps last_seen_at and replaces the sample; otherwise
	// it creates a fresh record with count 1 and status "new". Safe under
	// concurrent callers reporting the same fingerprint.
	UpsertOccurrence(ctx context.Context, fp string, event models.ErrorEvent, now time.Time) (*models.ErrorRecord, error)

	// MarkAlertSent stamps alert_dispatched_at on the unresolved record for fp.
	// The update is conditional (only moves the stamp forward); it returns
	// false when another writer already stamped an equal or later time.
	MarkAlertSent(ctx context.Context, fp string, at time.Time) (bool, error)

	GetErrorRecord(ctx context.Context, id uuid.UUID) (*models.ErrorRecord, error)
	ListErrorRecords(ctx context.Context, filter RecordFilter) ([]*models.ErrorRecord, int, error)
	SetErrorRecordStatus(ctx context.Context, id uuid.UUID, status string) (*models.ErrorRecord, error)
	DeleteErrorRecord(ctx context.Context, id uuid.UUID) error
	AggregateStats(ctx context.Context, since time.Time) (*models.ErrorStats, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID) error
}

// RecordFilter narrows and paginates error record listings.
type RecordFilter struct {
	Source string
	Status string
	Since  time.Time
	Until  time.Time
	Page   int
	Limit  int
}
