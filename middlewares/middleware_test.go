package middlewares

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/psr_backend/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthEngine() *gin.Engine {
	r := gin.New()
	r.Use(CorrelationMiddleware(), AuthMiddleware())
	r.GET("/whoami", func(c *gin.Context) {
		name, _ := utils.GetUsernameFromContext(c.Request.Context())
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"username": name, "correlation_id": cid})
	})
	r.PATCH("/guarded", RequireUser(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	t.Setenv("API_SECRET", "middleware-secret")
	token, err := utils.JwtGenerate(3, "controller@psr.local", "editor")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	r := newAuthEngine()

	cases := []struct {
		name   string
		method string
		path   string
		auth   string
		status int
	}{
		{"anonymous read", http.MethodGet, "/whoami", "", http.StatusOK},
		{"anonymous write", http.MethodPatch, "/guarded", "", http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/whoami", "Bearer not-a-token", http.StatusUnauthorized},
		{"not bearer", http.MethodGet, "/whoami", "Basic abc", http.StatusUnauthorized},
		{"valid write", http.MethodPatch, "/guarded", "Bearer " + token, http.StatusNoContent},
	}
	for _, c := range cases {
		req := httptest.NewRequest(c.method, c.path, nil)
		if c.auth != "" {
			req.Header.Set("Authorization", c.auth)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != c.status {
			t.Errorf("%s: status = %d, want %d", c.name, w.Code, c.status)
		}
	}
}

func TestAuthMiddlewareSetsActor(t *testing.T) {
	t.Setenv("API_SECRET", "middleware-secret")
	token, err := utils.JwtGenerate(3, "controller@psr.local", "editor")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	newAuthEngine().ServeHTTP(w, req)

	var body struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Username != "controller@psr.local" {
		t.Fatalf("username = %q, want controller@psr.local", body.Username)
	}
}

func TestCorrelationMiddleware(t *testing.T) {
	r := newAuthEngine()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(CorrelationHeader, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(CorrelationHeader); got != "abc-123" {
		t.Fatalf("correlation header = %q, want abc-123", got)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	if got := w.Header().Get(CorrelationHeader); len(got) != 36 {
		t.Fatalf("generated correlation id = %q", got)
	}
}

func TestReadinessMiddleware(t *testing.T) {
	ready := false
	r := gin.New()
	r.Use(ReadinessMiddleware(func() bool { return ready }))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/landing-data", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, step := range []struct {
		ready  bool
		path   string
		status int
	}{
		{false, "/healthz", http.StatusNoContent},
		{false, "/landing-data", http.StatusServiceUnavailable},
		{true, "/landing-data", http.StatusOK},
	} {
		ready = step.ready
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, step.path, nil))
		if w.Code != step.status {
			t.Errorf("ready=%t %s: status = %d, want %d", step.ready, step.path, w.Code, step.status)
		}
	}
}
