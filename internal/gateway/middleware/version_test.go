package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestVersionMiddleware_CurrentVersion(t *testing.T) {
	config := VersionConfig{
		CurrentVersion:     "1",
		DeprecatedVersions: make(map[string]time.Time),
		DefaultVersion:     "1",
	}

	handler := Version(config)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Accept-Version", "1")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Header().Get("API-Version") != "1" {
		t.Errorf("Expected API-Version 1, got %s", rr.Header().Get("API-Version"))
	}

	if rr.Header().Get("Deprecation") != "" {
		t.Error("Current version should not have Deprecation header")
	}
}

func TestVersionMiddleware_DefaultVersion(t *testing.T) {
	config := VersionConfig{
		CurrentVersion:     "2",
		DeprecatedVersions: make(map[string]time.Time),
		DefaultVersion:     "1",
	}

	handler := Version(config)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	// No Accept-Version header
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Header().Get("API-Version") != "1" {
		t.Errorf("Expected default API-Version 1, got %s", rr.Header().Get("API-Version"))
	}
}

func TestVersionMiddleware_DeprecatedVersion(t *testing.T) {
	sunsetDate := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	config := VersionConfig{
		CurrentVersion: "2",
		DeprecatedVersions: map[string]time.Time{
			"1": sunsetDate,
		},
		DefaultVersion: "2",
	}

	handler := Version(config)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Accept-Version", "1")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Header().Get("Deprecation") != "true" {
		t.Errorf("Expected Deprecation true, got %s", rr.Header().Get("Deprecation"))
	}

	if rr.Header().Get("Sunset") == "" {
		t.Error("Expected Sunset header for deprecated version")
	}
}
