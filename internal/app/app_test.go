package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/khata-app/khata/internal/auth"
	"github.com/khata-app/khata/internal/khata"
	"github.com/khata-app/khata/internal/observability"
	"github.com/khata-app/khata/internal/shared"
	"github.com/khata-app/khata/internal/store/memory"
)

func TestConfigValidate(t *testing.T) {
	base := func() Config {
		return Config{JWTSecret: "secret", StoreDriver: "Memory", TokenTTL: time.Hour}
	}

	cfg := base()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DriverMemory, cfg.StoreDriver)

	cases := map[string]func(*Config){
		"missing secret":       func(c *Config) { c.JWTSecret = " " },
		"unknown driver":       func(c *Config) { c.StoreDriver = "cassandra" },
		"short prod secret":    func(c *Config) { c.AppEnv = "production"; c.StoreDriver = DriverPostgres },
		"memory in production": func(c *Config) { c.AppEnv = "production"; c.JWTSecret = strings.Repeat("x", 32) },
		"zero ttl":             func(c *Config) { c.TokenTTL = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base()
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("DOTENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 168*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "Taimoor Akram & Brothers", cfg.StoreName)
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.False(t, cfg.IsProduction())
}

func TestLoadDotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "khata.env")
	require.NoError(t, os.WriteFile(path, []byte("STORE_NAME=Dotenv Store\nJWT_SECRET=from-file\n"), 0o600))
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("STORE_NAME", "")
	require.NoError(t, os.Unsetenv("STORE_NAME"))
	t.Setenv("DOTENV_FILE", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "Dotenv Store", cfg.StoreName)
	assert.Equal(t, "from-env", cfg.JWTSecret)

	require.NoError(t, LoadDotenv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, &Config{LogFormat: "json", LogLevel: "warn"}).Info("hidden")
	assert.Empty(t, buf.String())

	newLogger(&buf, &Config{LogFormat: "json"}).Info("shown", "session_id", "abc")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "abc", entry["session_id"])

	buf.Reset()
	newLogger(&buf, &Config{LogFormat: "pretty"}).Info("pretty")
	assert.Contains(t, buf.String(), "pretty")
}

func TestCORS(t *testing.T) {
	h := CORS("http://localhost:5173/")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)

	req = httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/sessions/1/receipt", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "Content-Disposition", rec.Header().Get("Access-Control-Expose-Headers"))

	rec = httptest.NewRecorder()
	CORS("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})).ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

type testServer struct {
	handler http.Handler
	store   *memory.Store
}

func newTestServer(t *testing.T, checks map[string]HealthCheck) *testServer {
	t.Helper()
	store := memory.New()
	cfg := &Config{AppEnv: "test", JWTSecret: "secret", TokenTTL: time.Hour, CORSOrigin: "http://localhost:5173"}
	authService := auth.NewService(store, auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL), auth.WithBcryptCost(bcrypt.MinCost))
	metrics := observability.NewMetrics()
	ledger := khata.NewService(store, shared.NewLocalLocker(time.Second), metrics, nil)
	handler := NewRouter(RouterParams{
		Config:         cfg,
		AuthService:    authService,
		AuthHandler:    auth.NewHandler(nil, authService, false),
		SessionHandler: khata.NewHandler(nil, ledger, nil),
		Metrics:        metrics,
		HealthChecks:   checks,
	})
	return &testServer{handler: handler, store: store}
}

func (s *testServer) do(t *testing.T, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func TestRouterEndToEnd(t *testing.T) {
	srv := newTestServer(t, nil)

	res := srv.do(t, http.MethodPost, "/api/auth/register", `{"name":"Taimoor","email":"t@example.com","password":"password1"}`)
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	assert.Equal(t, "nosniff", res.Header().Get("X-Content-Type-Options"))

	res = srv.do(t, http.MethodPost, "/api/auth/login", `{"email":"t@example.com","password":"password1"}`)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	var token *http.Cookie
	for _, c := range res.Result().Cookies() {
		if c.Name == auth.CookieName {
			token = c
		}
	}
	require.NotNil(t, token)

	res = srv.do(t, http.MethodGet, "/api/sessions", "")
	require.Equal(t, http.StatusUnauthorized, res.Code)

	res = srv.do(t, http.MethodPost, "/api/sessions/create",
		`{"customerName":"Ali","contactNumber":"0300","items":[{"item":"Sugar","quantity":2,"price":50},{"item":"Tea","quantity":1,"price":30}]}`, token)
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var created struct {
		Session khata.Session `json:"session"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &created))
	assert.Equal(t, "130", created.Session.GrandTotal.String())

	res = srv.do(t, http.MethodPatch, "/api/sessions/"+created.Session.ID+"/pay", `{"amount":50}`, token)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Contains(t, res.Body.String(), `"remaining":80`)

	res = srv.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `khata_ledger_operations_total{op="pay",result="ok"} 1`)
	assert.Contains(t, res.Body.String(), `route="/api/sessions/{id}/pay"`)

	res = srv.do(t, http.MethodPost, "/api/auth/logout", "", token)
	require.Equal(t, http.StatusOK, res.Code)
}

func TestCredentialRateLimit(t *testing.T) {
	srv := newTestServer(t, nil)
	var last int
	for i := 0; i < 11; i++ {
		last = srv.do(t, http.MethodPost, "/api/auth/login", `{"email":"nobody@example.com","password":"password1"}`).Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)

	res := srv.do(t, http.MethodPost, "/api/auth/logout", "")
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, map[string]HealthCheck{
		"store": func(context.Context) error { return nil },
	})
	res := srv.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"status":"ok","store":"ok"}`, res.Body.String())

	srv = newTestServer(t, map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	res = srv.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusServiceUnavailable, res.Code)
	assert.JSONEq(t, `{"status":"degraded","redis":"down"}`, res.Body.String())
}

func TestOpenStoreMemoryAndSQLite(t *testing.T) {
	ctx := context.Background()
	opened, err := OpenStore(ctx, &Config{StoreDriver: DriverMemory}, nil)
	require.NoError(t, err)
	require.NotNil(t, opened.Store)
	require.NoError(t, opened.Close(ctx))

	opened, err = OpenStore(ctx, &Config{StoreDriver: DriverSQLite, SQLitePath: t.TempDir() + "/khata.db"}, nil)
	require.NoError(t, err)
	require.NoError(t, opened.Ping(ctx))
	require.NoError(t, opened.Close(ctx))

	_, err = OpenStore(ctx, &Config{StoreDriver: "cassandra"}, nil)
	require.Error(t, err)
}

func TestInTestMode(t *testing.T) {
	cases := map[string]bool{
		"1":      true,
		"true":   true,
		" TRUE ": true,
		"0":      false,
		"false":  false,
		"":       false,
		"yes":    false,
	}
	for value, want := range cases {
		t.Setenv(TestModeEnv, value)
		assert.Equal(t, want, InTestMode(), "KHATA_TEST_MODE=%q", value)
	}
}
