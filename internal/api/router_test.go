package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kiranshivaraju/errwatch/internal/api"
	"github.com/kiranshivaraju/errwatch/internal/api/handler"
	mw "github.com/kiranshivaraju/errwatch/internal/api/middleware"
	"github.com/kiranshivaraju/errwatch/internal/store"
	"github.com/kiranshivaraju/errwatch/pkg/models"
)

const (
	ingestKey = "ew_ingest_0123456789abcdef0123456789abcdef"
	readKey   = "ew_reader_0123456789abcdef0123456789abcdef"
	adminKey  = "ew_admins_0123456789abcdef0123456789abcdef"
)

// keyStore serves the three fixture keys above and stubs the record methods
// the contract tests touch.
type keyStore struct {
	keys map[string]*models.APIKey
}

func newKeyStore(t *testing.T) *keyStore {
	t.Helper()
	ks := &keyStore{keys: make(map[string]*models.APIKey)}
	for raw, scopes := range map[string][]string{
		ingestKey: {"ingest"},
		readKey:   {"read"},
		adminKey:  {"admin"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.MinCost)
		require.NoError(t, err)
		ks.keys[raw[:8]] = &models.APIKey{
			ID:        uuid.New(),
			Name:      raw[:9],
			KeyHash:   string(hash),
			KeyPrefix: raw[:8],
			Scopes:    scopes,
		}
	}
	return ks
}

func (s *keyStore) Ping(ctx context.Context) error { return nil }

func (s *keyStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	if k, ok := s.keys[prefix]; ok {
		return []*models.APIKey{k}, nil
	}
	return nil, nil
}

func (s *keyStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error { return nil }

func (s *keyStore) UpsertOccurrence(ctx context.Context, fp string, event models.ErrorEvent, now time.Time) (*models.ErrorRecord, error) {
	return nil, nil
}

func (s *keyStore) MarkAlertSent(ctx context.Context, fp string, at time.Time) (bool, error) {
	return false, nil
}

func (s *keyStore) GetErrorRecord(ctx context.Context, id uuid.UUID) (*models.ErrorRecord, error) {
	return nil, store.ErrNotFound
}

func (s *keyStore) ListErrorRecords(ctx context.Context, filter store.RecordFilter) ([]*models.ErrorRecord, int, error) {
	return nil, 0, nil
}

func (s *keyStore) SetErrorRecordStatus(ctx context.Context, id uuid.UUID, status string) (*models.ErrorRecord, error) {
	return nil, store.ErrNotFound
}

func (s *keyStore) DeleteErrorRecord(ctx context.Context, id uuid.UUID) error {
	return store.ErrNotFound
}

func (s *keyStore) AggregateStats(ctx context.Context, since time.Time) (*models.ErrorStats, error) {
	return &models.ErrorStats{}, nil
}

func (s *keyStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error { return nil }

func (s *keyStore) ListAPIKeys(ctx context.Context) ([]*models.APIKey, error) { return nil, nil }

func (s *keyStore) RevokeAPIKey(ctx context.Context, id uuid.UUID) error { return nil }

// countingCache backs the rate limiter with a real per-key counter.
type countingCache struct {
	counts map[string]*atomic.Int64
}

func newCountingCache() *countingCache {
	return &countingCache{counts: make(map[string]*atomic.Int64)}
}

func (c *countingCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}

func (c *countingCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}

func (c *countingCache) Delete(ctx context.Context, key string) error { return nil }

func (c *countingCache) Ping(ctx context.Context) error { return nil }

func (c *countingCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	counter, ok := c.counts[key]
	if !ok {
		counter = &atomic.Int64{}
		c.counts[key] = counter
	}
	return counter.Add(1), nil
}

type acceptAll struct{}

func (acceptAll) Enqueue(event models.ErrorEvent) bool { return true }

func newTestRouter(t *testing.T, rpm int) http.Handler {
	t.Helper()
	st := newKeyStore(t)
	return api.NewRouter(api.Dependencies{
		Auth:      mw.NewAuth(st),
		RateLimit: mw.NewRateLimit(newCountingCache(), rpm),
		HealthHandler: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
		IngestHandler:     handler.NewIngestHandler(acceptAll{}),
		ListErrorsHandler: handler.NewListErrorsHandler(st),
	})
}

func request(r http.Handler, method, target, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestRouter_HealthIsPublic(t *testing.T) {
	rr := request(newTestRouter(t, 0), http.MethodGet, "/api/v1/health", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_RequiresAuthentication(t *testing.T) {
	r := newTestRouter(t, 0)

	rr := request(r, http.MethodPost, "/api/v1/events", "", `{"level":"error","message":"boom"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "INVALID_TOKEN")

	rr = request(r, http.MethodPost, "/api/v1/events", "ew_nosuch_key_material", `{"level":"error","message":"boom"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRouter_EnforcesScopes(t *testing.T) {
	r := newTestRouter(t, 0)

	// Ingest key can post events but not read them.
	rr := request(r, http.MethodPost, "/api/v1/events", ingestKey, `{"level":"error","message":"boom"}`)
	assert.Equal(t, http.StatusAccepted, rr.Code)

	rr = request(r, http.MethodGet, "/api/v1/errors", ingestKey, "")
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "FORBIDDEN")

	// Read key can list but not ingest or administer.
	rr = request(r, http.MethodGet, "/api/v1/errors", readKey, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = request(r, http.MethodPost, "/api/v1/events", readKey, `{"level":"error","message":"boom"}`)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = request(r, http.MethodGet, "/api/v1/admin/keys", readKey, "")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	// Admin key reaches admin routes; unwired handlers answer 501.
	rr = request(r, http.MethodGet, "/api/v1/admin/keys", adminKey, "")
	assert.Equal(t, http.StatusNotImplemented, rr.Code)
}

func TestRouter_RateLimitsPerKey(t *testing.T) {
	r := newTestRouter(t, 3)

	for i := 0; i < 3; i++ {
		rr := request(r, http.MethodGet, "/api/v1/errors", readKey, "")
		require.Equal(t, http.StatusOK, rr.Code, "request %d", i+1)
	}

	rr := request(r, http.MethodGet, "/api/v1/errors", readKey, "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Contains(t, rr.Body.String(), "RATE_LIMIT_EXCEEDED")
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))

	// A different key has its own budget.
	rr = request(r, http.MethodPost, "/api/v1/events", ingestKey, `{"level":"error","message":"boom"}`)
	assert.Equal(t, http.StatusAccepted, rr.Code)
}
