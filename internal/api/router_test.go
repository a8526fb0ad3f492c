package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/KeremAR/Microservice/internal/reconcile"
	"github.com/KeremAR/Microservice/internal/testutil"
)

func newRouter(t *testing.T, checks ...ReadinessCheck) http.Handler {
	t.Helper()
	idp := testutil.NewIdP()
	svc := reconcile.New(idp, testutil.NewStore(), &testutil.Publisher{}, &testutil.Invalidator{}, discardLogger())
	router, err := NewRouter(NewUserHandler(svc, nil, discardLogger()), idp, checks...)
	if err != nil {
		t.Fatalf("failed to build router: %v", err)
	}

	routes := router.Routes()
	expectedRoutes := map[string]string{
		"GET /health":       "health",
		"GET /ready":        "readiness",
		"GET /metrics":      "metrics",
		"POST /auth/signup": "signup",
		"POST /auth/login":  "login",
		"GET /users/me":     "profile",
		"POST /users/sync":  "sync",
	}

	found := make(map[string]bool)
	for _, r := range routes {
		key := r.Method + " " + r.Path
		if _, ok := expectedRoutes[key]; ok {
			found[key] = true
		}
	}
	for key, desc := range expectedRoutes {
		if !found[key] {
			t.Errorf("missing route %s (%s)", key, desc)
		}
	}
	return router
}

func TestNewRouter_RoutesExist(t *testing.T) {
	newRouter(t)
}

func TestSwaggerRouteRegistered(t *testing.T) {
	router := newRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 for swagger UI, got %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	router := newRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if w.Header().Get("X-Correlation-ID") == "" {
		t.Error("expected a correlation id header")
	}
}

func TestReady(t *testing.T) {
	ok := ReadinessCheck{Name: "cache", Probe: func(context.Context) error { return nil }}
	down := ReadinessCheck{Name: "broker", Probe: func(context.Context) error { return errors.New("connection closed") }}

	tests := []struct {
		name   string
		checks []ReadinessCheck
		want   int
	}{
		{"all ok", []ReadinessCheck{ok}, http.StatusOK},
		{"one down", []ReadinessCheck{ok, down}, http.StatusServiceUnavailable},
		{"no checks", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(t, tt.checks...)

			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, "/ready", nil)
			router.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Fatalf("expected status %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
			var body struct {
				Checks map[string]string `json:"checks"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("failed to unmarshal: %v", err)
			}
			if len(body.Checks) != len(tt.checks) {
				t.Errorf("expected %d check results, got %d", len(tt.checks), len(body.Checks))
			}
		})
	}
}
