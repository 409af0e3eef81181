package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unfoldindia/unfold/internal/auth"
	"github.com/unfoldindia/unfold/internal/engine"
	"github.com/unfoldindia/unfold/internal/insight"
	"github.com/unfoldindia/unfold/internal/llm"
	"github.com/unfoldindia/unfold/internal/metrics"
	"github.com/unfoldindia/unfold/internal/store"
)

const testSecret = "test-secret"

type testEnv struct {
	srv  *Server
	db   *store.DB
	llm  *llm.MockClient
	auth *auth.Verifier
}

func newTestEnv(t *testing.T, reply string) *testEnv {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	verifier, err := auth.NewVerifier(testSecret, "unfold")
	require.NoError(t, err)
	mock := &llm.MockClient{Response: &llm.Response{Content: reply, Provider: "mock"}}
	m := metrics.New()

	srv := New(Options{
		DB:       db,
		Engine:   engine.New(db, mock, nil, nil, m),
		Insights: insight.NewService(db, mock, nil, m),
		Verifier: verifier,
		Metrics:  m,
		Version:  "test-version",
	})
	return &testEnv{srv: srv, db: db, llm: mock, auth: verifier}
}

// do sends a request as ownerID. An empty ownerID sends no token.
func (e *testEnv) do(t *testing.T, method, path, ownerID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if ownerID != "" {
		token, err := e.auth.Issue(ownerID, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.srv.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, "ok")

	w := env.do(t, "GET", "/api/health", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test-version", body["version"])
	assert.Equal(t, true, body["db"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, "ok")
	env.do(t, "POST", "/api/chat", "u1", `{"message":"hi"}`)

	w := env.do(t, "GET", "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "unfold_chat_requests_total")
}

func TestProtectedRoutesRequireIdentity(t *testing.T) {
	env := newTestEnv(t, "ok")

	routes := []struct {
		method string
		path   string
		body   string
	}{
		{"POST", "/api/chat", `{"message":"hi"}`},
		{"GET", "/api/messages", ""},
		{"GET", "/api/retention", ""},
		{"PUT", "/api/retention", `{"period":"1_month"}`},
		{"POST", "/api/insights/progress", `{}`},
		{"POST", "/api/route", `{"origin":"Delhi","destination":"Agra"}`},
	}

	for _, rt := range routes {
		w := env.do(t, rt.method, rt.path, "", rt.body)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", rt.method, rt.path)
	}
}

func TestInvalidTokenRejected(t *testing.T) {
	env := newTestEnv(t, "ok")

	other, _ := auth.NewVerifier("another-secret", "unfold")
	token, _ := other.Issue("u1", time.Hour)

	req := httptest.NewRequest("GET", "/api/retention", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	env.srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNoVerifierRejects(t *testing.T) {
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	srv := New(Options{DB: db})

	req := httptest.NewRequest("GET", "/api/messages", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
