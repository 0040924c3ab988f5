package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/eaur/qbsync/internal/api/v1"
)

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(context.Context) error { return f.err }

func newServer(t *testing.T, db Pinger) http.Handler {
	t.Helper()
	routes := v1.NewRoutes(nil, nil, v1.Defaults{})
	return NewServer(routes, db, WithMiddlewares(middleware.RequestID, LoggingMiddleware))
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	srv := newServer(t, &fakePinger{})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestReadinessEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		pingErr  error
		expected int
	}{
		{name: "database reachable", pingErr: nil, expected: http.StatusOK},
		{name: "database down", pingErr: errors.New("connection refused"), expected: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := newServer(t, &fakePinger{err: tt.pingErr})
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readiness", nil))
			assert.Equal(t, tt.expected, rec.Code)
		})
	}
}

func TestAPIRoutesMounted(t *testing.T) {
	t.Parallel()

	srv := newServer(t, &fakePinger{})
	rec := httptest.NewRecorder()
	// Unknown kind proves the v1 router answered, not a 404 from the mux.
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sync/vendor/analyze", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
