package handler_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/enrollment-lottery/internal/engine"
	"github.com/iliyamo/enrollment-lottery/internal/handler"
	"github.com/iliyamo/enrollment-lottery/internal/middleware"
	"github.com/iliyamo/enrollment-lottery/internal/repository"
	"github.com/iliyamo/enrollment-lottery/internal/repository/memstore"
	"github.com/iliyamo/enrollment-lottery/internal/router"
	"github.com/iliyamo/enrollment-lottery/internal/utils"
)

const secret = "test-secret"

type api struct {
	t   *testing.T
	e   *echo.Echo
	mu  sync.Mutex
	now time.Time
}

func newAPI(t *testing.T) *api {
	t.Helper()
	a := &api{t: t, e: echo.New(), now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	store := memstore.New(repository.DefaultRetryPolicy()).WithClock(a.clock)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := engine.New(store, nil, engine.WithLogger(log), engine.WithRand(engine.NewSeededRand(3)))

	entrant := handler.NewEntrantHandler(eng, log)
	router.RegisterRoutes(a.e, nil)
	router.RegisterShared(a.e, entrant, secret)
	router.RegisterEntrant(a.e, entrant, secret, nil)
	router.RegisterOrganizer(a.e, handler.NewOrganizerHandler(eng, log), secret)
	return a
}

func (a *api) clock() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.now
}

func (a *api) advance(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.now = a.now.Add(d)
}

func (a *api) token(sub, role string) string {
	tok, err := utils.NewAccessToken(secret, sub, role, time.Hour)
	require.NoError(a.t, err)
	return tok.Token
}

func (a *api) do(method, path, token, body string) (*httptest.ResponseRecorder, map[string]any) {
	a.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	out := map[string]any{}
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func (a *api) createEvent(org string, capacity int) string {
	a.t.Helper()
	now := a.clock()
	body := `{"title":"Pottery","capacity":` + itoa(capacity) +
		`,"registration_opens_at":"` + now.Add(-time.Hour).Format(time.RFC3339) +
		`","registration_closes_at":"` + now.Add(time.Hour).Format(time.RFC3339) + `"}`
	rec, out := a.do(http.MethodPost, "/v1/events", a.token(org, middleware.RoleOrganizer), body)
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return out["id"].(string)
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	rec, out := a.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", out["status"])
}

func TestLotteryFlowOverHTTP(t *testing.T) {
	a := newAPI(t)
	org := a.token("org-1", middleware.RoleOrganizer)
	alice := a.token("alice", middleware.RoleEntrant)
	id := a.createEvent("org-1", 1)

	rec, out := a.do(http.MethodGet, "/v1/events/"+id, alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PUBLISHED", out["status"])

	rec, out = a.do(http.MethodPost, "/v1/events/"+id+"/waitlist", alice, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "WAITING", out["status"])
	assert.Equal(t, "alice", out["entrant_id"])

	rec, out = a.do(http.MethodPost, "/v1/events/"+id+"/waitlist", alice, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", out["error"])

	rec, out = a.do(http.MethodPost, "/v1/events/"+id+"/draw", org, `{"count":1}`)
	assert.Equal(t, http.StatusConflict, rec.Code, "registration is still open")
	assert.Equal(t, "invalid_state", out["error"])

	a.advance(2 * time.Hour)
	rec, out = a.do(http.MethodPost, "/v1/events/"+id+"/draw", org, `{"count":1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	invs := out["invitations"].([]any)
	require.Len(t, invs, 1)
	invID := invs[0].(map[string]any)["id"].(string)

	rec, out = a.do(http.MethodGet, "/v1/my-invitations", alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, out["invitations"], 1)

	rec, _ = a.do(http.MethodPost, "/v1/invitations/"+invID+"/respond", alice, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, out = a.do(http.MethodPost, "/v1/invitations/"+invID+"/respond", alice, `{"accept":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "ACCEPTED", out["outcome"])

	rec, out = a.do(http.MethodPost, "/v1/invitations/"+invID+"/respond", alice, `{"accept":true}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state", out["error"])

	rec, out = a.do(http.MethodGet, "/v1/events/"+id+"/registrations?status=active", org, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, out["registrations"], 1)

	rec, out = a.do(http.MethodDelete, "/v1/events/"+id+"/registrations/alice", org, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "CANCELLED_BY_ORGANIZER", out["registration"].(map[string]any)["status"])

	rec, out = a.do(http.MethodDelete, "/v1/events/"+id+"/registration", alice, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state", out["error"])
}

func TestOrganizerOwnership(t *testing.T) {
	a := newAPI(t)
	id := a.createEvent("org-1", 2)

	rec, out := a.do(http.MethodGet, "/v1/events/"+id+"/waitlist", a.token("org-2", middleware.RoleOrganizer), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", out["error"])

	rec, _ = a.do(http.MethodGet, "/v1/events/"+id+"/waitlist", a.token("root", middleware.RoleAdmin), "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = a.do(http.MethodGet, "/v1/events/"+id+"/waitlist", a.token("alice", middleware.RoleEntrant), "")
	assert.Equal(t, http.StatusForbidden, rec.Code, "entrants can't list the waitlist")

	rec, _ = a.do(http.MethodPost, "/v1/events/"+id+"/waitlist", a.token("org-1", middleware.RoleOrganizer), "")
	assert.Equal(t, http.StatusForbidden, rec.Code, "organizers can't join")
}

func TestErrorMapping(t *testing.T) {
	a := newAPI(t)
	org := a.token("org-1", middleware.RoleOrganizer)
	id := a.createEvent("org-1", 2)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   string
		code   int
		errKey string
	}{
		{name: "no token", method: http.MethodGet, path: "/v1/events/" + id, code: http.StatusUnauthorized},
		{name: "unknown event", method: http.MethodGet, path: "/v1/events/nope", token: org, code: http.StatusNotFound, errKey: "not_found"},
		{name: "negative draw", method: http.MethodPost, path: "/v1/events/" + id + "/draw", token: org, body: `{"count":-1}`, code: http.StatusBadRequest, errKey: "validation_failed"},
		{name: "missing count", method: http.MethodPost, path: "/v1/events/" + id + "/draw", token: org, body: `{}`, code: http.StatusBadRequest, errKey: "validation_failed"},
		{name: "bad status filter", method: http.MethodGet, path: "/v1/events/" + id + "/registrations?status=maybe", token: org, code: http.StatusBadRequest, errKey: "validation_failed"},
		{name: "invalid event", method: http.MethodPost, path: "/v1/events", token: org, body: `{"title":"","capacity":1}`, code: http.StatusBadRequest, errKey: "validation_failed"},
		{name: "cancel without registration", method: http.MethodDelete, path: "/v1/events/" + id + "/registrations/bob", token: org, code: http.StatusNotFound, errKey: "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, out := a.do(tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			if tt.errKey != "" {
				assert.Equal(t, tt.errKey, out["error"])
			}
		})
	}
}
