// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-credstore.
//
// go-credstore is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHTTPMiddleware(t *testing.T) {
	Enable()
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/users/1/state", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Errorf("Expected status %d, got %d", http.StatusTeapot, rec.Code)
	}

	got := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "418"))
	if got != 1 {
		t.Errorf("Expected 1 request recorded, got %v", got)
	}
}

func TestHTTPMiddlewareDefaultStatus(t *testing.T) {
	Enable()
	HTTPRequestsTotal.Reset()

	// Handler writes a body without an explicit WriteHeader; middleware
	// must record 200.
	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/users/1/unlock", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	got := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodPost, "200"))
	if got != 1 {
		t.Errorf("Expected 1 request recorded with status 200, got %v", got)
	}
}

func TestHTTPMiddlewareDisabled(t *testing.T) {
	Disable()
	defer Enable()
	HTTPRequestsTotal.Reset()

	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if testutil.CollectAndCount(HTTPRequestsTotal) != 0 {
		t.Error("Expected no samples while disabled")
	}
}
