package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubManagers struct {
	managers map[string]bool
}

func (s stubManagers) IsManager(_ context.Context, staffID string) (bool, error) {
	return s.managers[staffID], nil
}

func requestWithStaff(staffID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := context.WithValue(req.Context(), staffIDKey, staffID)
	return req.WithContext(ctx)
}

func TestRequireManagerForbidsNonManager(t *testing.T) {
	handler := RequireManager(stubManagers{})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler must not run")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithStaff("staff-1"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRequireManagerRejectsAnonymous(t *testing.T) {
	handler := RequireManager(stubManagers{})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler must not run")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireManagerAllowsManager(t *testing.T) {
	called := false
	handler := RequireManager(stubManagers{managers: map[string]bool{"manager-1": true}})(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithStaff("manager-1"))
	if rec.Code != http.StatusOK || !called {
		t.Fatalf("expected manager to pass, got %d (called=%v)", rec.Code, called)
	}
}
