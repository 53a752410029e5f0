package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ashara-studio/ashara-core/internal/audit"
	"github.com/ashara-studio/ashara-core/internal/auth"
	"github.com/ashara-studio/ashara-core/internal/infrastructure/config"
	"github.com/ashara-studio/ashara-core/internal/infrastructure/database"
	"github.com/ashara-studio/ashara-core/internal/infrastructure/logging"
	_ "github.com/ashara-studio/ashara-core/migrations"
)

const (
	testOrigin   = "https://app.ashara.test"
	testPassword = "s3cret-pass"
)

// clock is a settable time source shared by the issuer and the service.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// testEnv is a server wired to a real SQLite store and audit repository.
type testEnv struct {
	srv     *Server
	handler http.Handler
	db      *sql.DB
	store   *auth.SQLiteStore
	audit   *audit.SQLiteRepository
	clock   *clock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, config.DatabaseConfig{
		Driver:      config.DriverSQLite,
		Path:        filepath.Join(t.TempDir(), "api.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	require.NoError(t, db.Migrate(ctx))

	clk := &clock{t: time.Now().UTC().Truncate(time.Second)}
	issuer, err := auth.NewTokenIssuer(
		"api-test-access-secret-0123456789abcdef",
		"api-test-refresh-secret-0123456789abcdef",
		auth.WithClock(clk.Now),
	)
	require.NoError(t, err)

	store := auth.NewSQLiteStore(db.DB)
	log := logging.Discard()
	svc, err := auth.NewService(store, issuer, log.Logger, auth.WithNow(clk.Now))
	require.NoError(t, err)

	auditRepo := audit.NewSQLiteRepository(db.DB)
	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
			CORS:     config.CORSConfig{AllowedOrigins: []string{testOrigin}},
		},
		Logger:    log,
		Sessions:  svc,
		AuditRepo: auditRepo,
		HealthCheckers: map[string]HealthChecker{
			"database": db,
		},
		Version: "test",
	})
	require.NoError(t, err)

	return &testEnv{
		srv:     srv,
		handler: srv.buildRouter(),
		db:      db.DB,
		store:   store,
		audit:   auditRepo,
		clock:   clk,
	}
}

// do sends a request through the router. body is JSON-encoded unless it
// is already a string.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

// register creates a client account through the API.
func (e *testEnv) register(t *testing.T, email string) {
	t.Helper()

	w := e.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name":     "Lina Haddad",
		"email":    email,
		"password": testPassword,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

// login returns the token pair for an existing account.
func (e *testEnv) login(t *testing.T, email, password string) loginResponse {
	t.Helper()

	w := e.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[loginResponse](t, w)
}

// client registers and logs in a client account.
func (e *testEnv) client(t *testing.T, email string) loginResponse {
	t.Helper()
	e.register(t, email)
	return e.login(t, email, testPassword)
}

// admin seeds the admin account and logs in with the generated password.
func (e *testEnv) admin(t *testing.T) loginResponse {
	t.Helper()

	password, err := auth.SeedAdmin(context.Background(), e.store, "admin@ashara.test", "Admin", logging.Discard().Logger)
	require.NoError(t, err)
	require.NotEmpty(t, password, "admin must be seeded before any other account")
	return e.login(t, "admin@ashara.test", password)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) Error {
	t.Helper()
	return decode[Error](t, w)
}

func newRequest(t *testing.T, method, path, token string) *http.Request {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}
