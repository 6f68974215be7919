package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/errwatch/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const errorRecordColumns = `id, fingerprint, source, module, status, occurrence_count,
	first_seen_at, last_seen_at, alert_dispatched_at, sample_message, sample_stack_trace,
	sample_context, created_at, updated_at`

func scanErrorRecord(row pgx.Row) (*models.ErrorRecord, error) {
	var rec models.ErrorRecord
	err := row.Scan(&rec.ID, &rec.Fingerprint, &rec.Source, &rec.Module, &rec.Status,
		&rec.OccurrenceCount, &rec.FirstSeenAt, &rec.LastSeenAt, &rec.AlertDispatchedAt,
		&rec.SampleMessage, &rec.SampleStackTrace, &rec.SampleContext,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// --- Error Records ---

// UpsertOccurrence relies on the partial unique index over fingerprint
// (status <> 'resolved'): the increment and the unresolved match happen in one
// conditional statement, so concurrent reporters of the same fingerprint never
// lose occurrences. A resolved record does not conflict, so a recurrence after
// resolution starts a fresh row.
func (s *PostgresStore) UpsertOccurrence(ctx context.Context, fp string, event models.ErrorEvent, now time.Time) (*models.ErrorRecord, error) {
	sampleCtx := event.Context
	if sampleCtx == nil {
		sampleCtx = map[string]any{}
	}

	rec, err := scanErrorRecord(s.pool.QueryRow(ctx,
		`INSERT INTO error_records (id, fingerprint, source, module, status, occurrence_count,
		   first_seen_at, last_seen_at, sample_message, sample_stack_trace, sample_context,
		   created_at, updated_at)
		 VALUES ($1, $2, $3, $4, 'new', 1, $5, $5, $6, $7, $8, $5, $5)
		 ON CONFLICT (fingerprint) WHERE status <> 'resolved' DO UPDATE SET
		   occurrence_count = error_records.occurrence_count + 1,
		   last_seen_at = GREATEST(error_records.last_seen_at, EXCLUDED.last_seen_at),
		   sample_message = EXCLUDED.sample_message,
		   sample_stack_trace = EXCLUDED.sample_stack_trace,
		   sample_context = EXCLUDED.sample_context,
		   updated_at = NOW()
		 RETURNING `+errorRecordColumns,
		uuid.New(), fp, event.Source, event.Module, now,
		event.Message, event.StackTrace, sampleCtx))
	if err != nil {
		return nil, fmt.Errorf("upsert occurrence: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) MarkAlertSent(ctx context.Context, fp string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE error_records SET alert_dispatched_at = $2, updated_at = NOW()
		 WHERE fingerprint = $1 AND status <> 'resolved'
		   AND (alert_dispatched_at IS NULL OR alert_dispatched_at < $2)`, fp, at)
	if err != nil {
		return false, fmt.Errorf("mark alert sent: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) GetErrorRecord(ctx context.Context, id uuid.UUID) (*models.ErrorRecord, error) {
	rec, err := scanErrorRecord(s.pool.QueryRow(ctx,
		`SELECT `+errorRecordColumns+` FROM error_records WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get error record: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) ListErrorRecords(ctx context.Context, filter RecordFilter) ([]*models.ErrorRecord, int, error) {
	conditions := []string{"TRUE"}
	args := []any{}
	argIdx := 1

	if filter.Source != "" {
		conditions = append(conditions, fmt.Sprintf("source = $%d", argIdx))
		args = append(args, filter.Source)
		argIdx++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, fmt.Sprintf("last_seen_at >= $%d", argIdx))
		args = append(args, filter.Since)
		argIdx++
	}
	if !filter.Until.IsZero() {
		conditions = append(conditions, fmt.Sprintf("last_seen_at <= $%d", argIdx))
		args = append(args, filter.Until)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM error_records WHERE " + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count error records: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	dataQuery := fmt.Sprintf(
		`SELECT %s FROM error_records WHERE %s ORDER BY last_seen_at DESC LIMIT $%d OFFSET $%d`,
		errorRecordColumns, where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list error records: %w", err)
	}
	defer rows.Close()

	var records []*models.ErrorRecord
	for rows.Next() {
		rec, err := scanErrorRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan error record: %w", err)
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}

func (s *PostgresStore) SetErrorRecordStatus(ctx context.Context, id uuid.UUID, status string) (*models.ErrorRecord, error) {
	rec, err := scanErrorRecord(s.pool.QueryRow(
		ctx,
		`UPDATE error_records SET status = $2, updated_at = NOW() WHERE id = $1
		 RETURNING `+errorRecordColumns, id, status))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		if isDuplicateKeyError(err) {
			// An unresolved row for this fingerprint already exists, so the
			// resolved one cannot be reopened in place.
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("set error record status: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) DeleteErrorRecord(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM error_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete error record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AggregateStats buckets records by their last-seen day, so a record's whole
// occurrence_count lands on that one day. Records spanning several days
// overstate their final day; the daily series is a trend view, not an exact
// per-day occurrence count.
func (s *PostgresStore) AggregateStats(ctx context.Context, since time.Time) (*models.ErrorStats, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT source, module, date_trunc('day', last_seen_at)::date AS day,
		        COUNT(*) AS records, COALESCE(SUM(occurrence_count), 0) AS occurrences
		 FROM error_records
		 WHERE last_seen_at >= $1
		 GROUP BY source, module, day`, since)
	if err != nil {
		return nil, fmt.Errorf("aggregate stats: %w", err)
	}
	defer rows.Close()

	stats := &models.ErrorStats{
		WindowStart: since,
		WindowEnd:   time.Now().UTC(),
		BySource:    map[string]int{},
		ByModule:    map[string]int{},
	}
	byDay := map[string]*models.DayCount{}

	for rows.Next() {
		var source, module string
		var day time.Time
		var records, occurrences int
		if err := rows.Scan(&source, &module, &day, &records, &occurrences); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}

		stats.TotalRecords += records
		stats.TotalOccurrences += occurrences
		stats.BySource[source] += occurrences
		if module != "" {
			stats.ByModule[module] += occurrences
		}

		key := day.Format("2006-01-02")
		dc, ok := byDay[key]
		if !ok {
			dc = &models.DayCount{Day: key}
			byDay[key] = dc
		}
		dc.Records += records
		dc.Occurrences += occurrences
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, dc := range byDay {
		stats.ByDay = append(stats.ByDay, *dc)
	}
	sort.Slice(stats.ByDay, func(i, j int) bool { return stats.ByDay[i].Day < stats.ByDay[j].Day })

	return stats, nil
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()
	return collectAPIKeys(rows)
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		key.ID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE deleted_at IS NULL ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()
	return collectAPIKeys(rows)
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collectAPIKeys(rows pgx.Rows) ([]*models.APIKey, error) {
	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
