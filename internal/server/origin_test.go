package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestOriginPolicyAllowAll(t *testing.T) {
	p := NewOriginPolicy([]string{"*"}, nil)

	assert.True(t, p.AllowAll())
	assert.True(t, p.Allowed("https://anything.example"))
	assert.True(t, p.Allowed(""))
}

func TestOriginPolicyAllowList(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	p := NewOriginPolicy([]string{"HTTP://Localhost:3000", "not a url", ""}, zap.New(core))

	assert.False(t, p.AllowAll())
	assert.True(t, p.Allowed("http://localhost:3000"))
	assert.False(t, p.Allowed("http://localhost:3001"))
	assert.False(t, p.Allowed(""))
	assert.False(t, p.Allowed("://bad"))
	assert.Equal(t, 1, logs.FilterMessage("ignoring invalid origin in configuration").Len())
}

func TestOriginPolicyCheckOrigin(t *testing.T) {
	p := NewOriginPolicy([]string{"https://party.example"}, nil)

	allowed := httptest.NewRequest(http.MethodGet, "/ws", nil)
	allowed.Header.Set("Origin", "https://party.example")
	assert.True(t, p.CheckOrigin(allowed))

	blocked := httptest.NewRequest(http.MethodGet, "/ws", nil)
	blocked.Header.Set("Origin", "https://evil.example")
	assert.False(t, p.CheckOrigin(blocked))
}

func TestCORSPreflightAllowsEverything(t *testing.T) {
	h := CORS(NewOriginPolicy([]string{"*"}, nil))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("preflight must not reach the handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/healthz", nil)
	req.Header.Set("Origin", "https://game.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	req.Header.Set("Access-Control-Request-Headers", "X-Custom-Header, Content-Type")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPut)
	assert.Equal(t, "X-Custom-Header, Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestCORSSimpleRequest(t *testing.T) {
	h := CORS(NewOriginPolicy([]string{"https://game.example"}, nil))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://game.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "https://game.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.Header.Set("Origin", "https://elsewhere.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
