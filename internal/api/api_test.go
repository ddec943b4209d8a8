package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/citymind/urbanlink/internal/model"
	"github.com/citymind/urbanlink/internal/service"
	"github.com/citymind/urbanlink/internal/store"
	"github.com/citymind/urbanlink/internal/web/auth"
	"github.com/citymind/urbanlink/internal/web/middleware"
	"github.com/citymind/urbanlink/internal/web/ratelimit"
	"github.com/citymind/urbanlink/internal/web/response"
	"github.com/citymind/urbanlink/internal/web/websocket"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type fixture struct {
	server *httptest.Server
	mock   sqlmock.Sqlmock
	tokens *auth.TokenService
	reg    *prometheus.Registry
}

type option func(*Config, *Deps)

func newFixture(t *testing.T, opts ...option) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("test-secret-that-is-at-least-32-bytes", time.Hour)
	require.NoError(t, err)

	now := func() time.Time { return testNow }
	reg := prometheus.NewRegistry()
	cfg := Config{RequestTimeout: 5 * time.Second}
	deps := Deps{
		Services: service.New(service.Deps{Store: store.New(db), Tokens: tokens, Now: now}),
		Tokens:   tokens,
		Health:   pinger{},
		Metrics:  middleware.NewHTTPMetrics(reg),
		Gatherer: reg,
		Logger:   zap.NewNop(),
		Now:      now,
	}
	for _, o := range opts {
		o(&cfg, &deps)
	}

	server := httptest.NewServer(NewRouter(cfg, deps))
	t.Cleanup(server.Close)
	return &fixture{server: server, mock: mock, tokens: tokens, reg: reg}
}

func (f *fixture) token(t *testing.T, role model.Role) (uuid.UUID, string) {
	t.Helper()
	id := uuid.New()
	tok, _, err := f.tokens.GenerateToken(id, string(role)+"@example.com", []string{string(role)})
	require.NoError(t, err)
	return id, tok
}

func (f *fixture) do(t *testing.T, method, path, token, body string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.server.URL+DefaultPrefix+path, rd)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeError(t *testing.T, resp *http.Response) response.ErrorResponse {
	t.Helper()
	var body response.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	down := newFixture(t, func(_ *Config, d *Deps) { d.Health = pinger{err: errors.New("refused")} })
	resp = down.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/dashboard", "", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthorized", decodeError(t, resp).Code)

	resp = f.do(t, http.MethodGet, "/dashboard", "not-a-token", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/nowhere", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStrictDecoding(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/auth/login", "", `{"email":"a@b.c","password":"x","extra":1}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decodeError(t, resp).Message, "unknown field")

	small := newFixture(t, func(c *Config, _ *Deps) { c.MaxBodyBytes = 16 })
	resp = small.do(t, http.MethodPost, "/auth/login", "", `{"email":"someone@example.com","password":"long enough"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPost, "/auth/register", "",
		`{"email":"ana@lisbon.example","password":"short","full_name":"Ana","role":"municipality"}`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decodeError(t, resp)
	assert.Equal(t, "validation_error", body.Code)
	assert.Equal(t, []string{"must be at least 8 characters"}, body.Fields["password"])
}

func TestInvalidPathID(t *testing.T) {
	f := newFixture(t)
	_, tok := f.token(t, model.RoleMunicipality)
	resp := f.do(t, http.MethodGet, "/rfps/not-a-uuid", tok, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMissingRFPIsNotFound(t *testing.T) {
	f := newFixture(t)
	_, tok := f.token(t, model.RoleDeveloper)
	f.mock.ExpectQuery(`FROM rfps WHERE id = \$1`).WillReturnRows(sqlmock.NewRows([]string{"id"}))

	resp := f.do(t, http.MethodGet, "/rfps/"+uuid.NewString(), tok, "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", decodeError(t, resp).Code)
}

func TestInternalErrorsAreHidden(t *testing.T) {
	f := newFixture(t)
	_, tok := f.token(t, model.RoleDeveloper)
	f.mock.ExpectQuery(`FROM rfps WHERE id = \$1`).WillReturnError(errors.New("connection reset by peer"))

	resp := f.do(t, http.MethodGet, "/rfps/"+uuid.NewString(), tok, "")
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := decodeError(t, resp)
	assert.Equal(t, "internal server error", body.Message)
	assert.NotContains(t, body.Message, "reset")
}

func TestCalculateROI(t *testing.T) {
	f := newFixture(t)
	_, tok := f.token(t, model.RoleMunicipality)
	in := `{"initial_investment":100000,"annual_operating_cost":5000,"annual_benefits":[{"category":"energy","amount":40000}],"years":5}`

	resp := f.do(t, http.MethodPost, "/roi/calculate", tok, in)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Data struct {
			TotalCost     float64  `json:"total_cost"`
			PaybackMonths *float64 `json:"payback_months"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.InDelta(t, 125000, body.Data.TotalCost, 0.001)
	require.NotNil(t, body.Data.PaybackMonths)

	resp = f.do(t, http.MethodPost, "/roi/calculate?format=text", tok, in)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="roi-2026-03-10.txt"`, resp.Header.Get("Content-Disposition"))
	text, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(text), "ROI PROJECTION")
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	_, tok := f.token(t, model.RoleMunicipality)
	f.mock.MatchExpectationsInOrder(false)
	count := func(n int) *sqlmock.Rows { return sqlmock.NewRows([]string{"count"}).AddRow(n) }
	f.mock.ExpectQuery(`FROM projects`).WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("active", 1))
	f.mock.ExpectQuery(`FROM tasks`).WillReturnRows(count(2))
	f.mock.ExpectQuery(`FROM connections`).WillReturnRows(count(0))
	f.mock.ExpectQuery(`FROM notifications`).WillReturnRows(count(4))
	f.mock.ExpectQuery(`FROM rfps`).WillReturnRows(count(6))

	resp := f.do(t, http.MethodGet, "/dashboard", tok, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Data map[string]json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.JSONEq(t, "6", string(body.Data["open_rfps"]))
	assert.NotContains(t, body.Data, "active_bids")
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCategoriesRevalidate(t *testing.T) {
	f := newFixture(t)
	_, tok := f.token(t, model.RoleMunicipality)
	f.mock.ExpectQuery("SELECT category, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"category", "count"}).AddRow("energy", 3))

	resp := f.do(t, http.MethodGet, "/solutions/categories", tok, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag)

	req, err := http.NewRequest(http.MethodGet, f.server.URL+DefaultPrefix+"/solutions/categories", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("If-None-Match", etag)
	again, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer again.Body.Close()
	assert.Equal(t, http.StatusNotModified, again.StatusCode)
	assert.Equal(t, etag, again.Header.Get("ETag"))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.NewTokenBucketWithConfig(ratelimit.TokenBucketConfig{Capacity: 1, RefillRate: time.Hour})
	t.Cleanup(func() { limiter.Close() })
	f := newFixture(t, func(_ *Config, d *Deps) { d.Limiter = limiter })

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/nowhere", "", "").StatusCode)
	resp := f.do(t, http.MethodGet, "/nowhere", "", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	// health checks are never limited
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", "", "").StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/health", "", "")

	resp := f.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	text, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(text), "citymind_http_requests_total")
}

func TestNotificationStream(t *testing.T) {
	hub := websocket.NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.Done()
	})
	f := newFixture(t, func(_ *Config, d *Deps) { d.Hub = hub })

	resp := f.do(t, http.MethodGet, "/notifications/stream", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	id, tok := f.token(t, model.RoleDeveloper)
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + DefaultPrefix + "/notifications/stream?token=" + tok
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var welcome websocket.Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&welcome))
	assert.Equal(t, websocket.TypeWelcome, welcome.Type)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	require.True(t, hub.Notify(id, map[string]string{"kind": "bid.accepted"}))
	var msg websocket.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, websocket.TypeNotification, msg.Type)
	assert.JSONEq(t, `{"kind":"bid.accepted"}`, string(msg.Data))
}

func TestOpportunityWritesNeedFundingManage(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
	}{
		{"create", http.MethodPost, "/funding/opportunities"},
		{"update", http.MethodPut, "/funding/opportunities/" + uuid.NewString()},
		{"delete", http.MethodDelete, "/funding/opportunities/" + uuid.NewString()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, tok := f.token(t, model.RoleMunicipality)

			resp := f.do(t, tt.method, tt.path, tok, `{}`)
			require.Equal(t, http.StatusForbidden, resp.StatusCode)
			assert.Equal(t, "forbidden", decodeError(t, resp).Code)
			assert.NoError(t, f.mock.ExpectationsWereMet())
		})
	}
}
