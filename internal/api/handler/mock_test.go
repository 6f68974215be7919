package handler_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/errwatch/internal/store"
	"github.com/kiranshivaraju/errwatch/pkg/models"
)

// mockStore implements store.Store with overridable function fields so each
// test only stubs what it exercises.
type mockStore struct {
	upsertOccurrenceFunc     func(ctx context.Context, fp string, event models.ErrorEvent, now time.Time) (*models.ErrorRecord, error)
	markAlertSentFunc        func(ctx context.Context, fp string, at time.Time) (bool, error)
	getErrorRecordFunc       func(ctx context.Context, id uuid.UUID) (*models.ErrorRecord, error)
	listErrorRecordsFunc     func(ctx context.Context, filter store.RecordFilter) ([]*models.ErrorRecord, int, error)
	setErrorRecordStatusFunc func(ctx context.Context, id uuid.UUID, status string) (*models.ErrorRecord, error)
	deleteErrorRecordFunc    func(ctx context.Context, id uuid.UUID) error
	aggregateStatsFunc       func(ctx context.Context, since time.Time) (*models.ErrorStats, error)
	getAPIKeyByPrefixFunc    func(ctx context.Context, prefix string) ([]*models.APIKey, error)
	createAPIKeyFunc         func(ctx context.Context, key *models.APIKey) error
	listAPIKeysFunc          func(ctx context.Context) ([]*models.APIKey, error)
	revokeAPIKeyFunc         func(ctx context.Context, id uuid.UUID) error
}

func (m *mockStore) Ping(ctx context.Context) error { return nil }

func (m *mockStore) UpsertOccurrence(ctx context.Context, fp string, event models.ErrorEvent, now time.Time) (*models.ErrorRecord, error) {
	return m.upsertOccurrenceFunc(ctx, fp, event, now)
}

func (m *mockStore) MarkAlertSent(ctx context.Context, fp string, at time.Time) (bool, error) {
	return m.markAlertSentFunc(ctx, fp, at)
}

func (m *mockStore) GetErrorRecord(ctx context.Context, id uuid.UUID) (*models.ErrorRecord, error) {
	return m.getErrorRecordFunc(ctx, id)
}

func (m *mockStore) ListErrorRecords(ctx context.Context, filter store.RecordFilter) ([]*models.ErrorRecord, int, error) {
	return m.listErrorRecordsFunc(ctx, filter)
}

func (m *mockStore) SetErrorRecordStatus(ctx context.Context, id uuid.UUID, status string) (*models.ErrorRecord, error) {
	return m.setErrorRecordStatusFunc(ctx, id, status)
}

func (m *mockStore) DeleteErrorRecord(ctx context.Context, id uuid.UUID) error {
	return m.deleteErrorRecordFunc(ctx, id)
}

func (m *mockStore) AggregateStats(ctx context.Context, since time.Time) (*models.ErrorStats, error) {
	return m.aggregateStatsFunc(ctx, since)
}

func (m *mockStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	return m.getAPIKeyByPrefixFunc(ctx, prefix)
}

func (m *mockStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error { return nil }

func (m *mockStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	return m.createAPIKeyFunc(ctx, key)
}

func (m *mockStore) ListAPIKeys(ctx context.Context) ([]*models.APIKey, error) {
	return m.listAPIKeysFunc(ctx)
}

func (m *mockStore) RevokeAPIKey(ctx context.Context, id uuid.UUID) error {
	return m.revokeAPIKeyFunc(ctx, id)
}

// memCache is an in-memory cache.Cache for handler tests.
type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	sets    int
	gets    int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]byte)}
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	c.sets++
	return nil
}

func (c *memCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *memCache) Ping(ctx context.Context) error { return nil }

func (c *memCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	return 1, nil
}

func sampleRecord(id uuid.UUID) *models.ErrorRecord {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return &models.ErrorRecord{
		ID:              id,
		Fingerprint:     "a3f9c2d1",
		Source:          models.SourceBackend,
		Module:          "Billing",
		Status:          models.StatusNew,
		OccurrenceCount: 4,
		FirstSeenAt:     now.Add(-2 * time.Hour),
		LastSeenAt:      now,
		SampleMessage:   "invoice generation failed",
		CreatedAt:       now.Add(-2 * time.Hour),
		UpdatedAt:       now,
	}
}
