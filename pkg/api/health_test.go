package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(ctx context.Context) error { return f.err }

// TestHealthHandler tests the /health endpoint
func TestHealthHandler(t *testing.T) {
	hs := NewHealthServer(nil, "test") // nil store is OK for liveness

	tests := []struct {
		name           string
		method         string
		expectedStatus int
	}{
		{
			name:           "GET request succeeds",
			method:         http.MethodGet,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "POST request fails",
			method:         http.MethodPost,
			expectedStatus: http.StatusMethodNotAllowed,
		},
		{
			name:           "PUT request fails",
			method:         http.MethodPut,
			expectedStatus: http.StatusMethodNotAllowed,
		},
		{
			name:           "DELETE request fails",
			method:         http.MethodDelete,
			expectedStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/health", nil)
			w := httptest.NewRecorder()

			hs.healthHandler(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.expectedStatus == http.StatusOK {
				var response HealthResponse
				err := json.NewDecoder(w.Body).Decode(&response)
				assert.NoError(t, err)
				assert.Equal(t, "healthy", response.Status)
				assert.Equal(t, "test", response.Version)
				assert.NotZero(t, response.Timestamp)
			}
		})
	}
}

// TestHealthHandlerJSONFormat tests the health endpoint JSON response format
func TestHealthHandlerJSONFormat(t *testing.T) {
	hs := NewHealthServer(nil, "1.2.3")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	hs.healthHandler(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response HealthResponse
	err := json.NewDecoder(w.Body).Decode(&response)
	assert.NoError(t, err)
	assert.Equal(t, "1.2.3", response.Version)
}

// TestReadyHandler tests the /ready endpoint
func TestReadyHandler(t *testing.T) {
	tests := []struct {
		name           string
		store          Pinger
		method         string
		expectedStatus int
		expectedCheck  string
	}{
		{
			name:           "ready when store reachable",
			store:          &fakePinger{},
			method:         http.MethodGet,
			expectedStatus: http.StatusOK,
			expectedCheck:  "ok",
		},
		{
			name:           "not ready when store unreachable",
			store:          &fakePinger{err: errors.New("connection refused")},
			method:         http.MethodGet,
			expectedStatus: http.StatusServiceUnavailable,
			expectedCheck:  "error: connection refused",
		},
		{
			name:           "not ready without store",
			store:          nil,
			method:         http.MethodGet,
			expectedStatus: http.StatusServiceUnavailable,
			expectedCheck:  "not initialized",
		},
		{
			name:           "POST request fails",
			store:          &fakePinger{},
			method:         http.MethodPost,
			expectedStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs := NewHealthServer(tt.store, "test")

			req := httptest.NewRequest(tt.method, "/ready", nil)
			w := httptest.NewRecorder()

			hs.readyHandler(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.method == http.MethodGet {
				var response ReadyResponse
				err := json.NewDecoder(w.Body).Decode(&response)
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedCheck, response.Checks["store"])
			}
		})
	}
}

// TestMetricsEndpointRegistered verifies /metrics is served by the mux
func TestMetricsEndpointRegistered(t *testing.T) {
	hs := NewHealthServer(&fakePinger{}, "test")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	hs.GetHandler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "quarry_")
}

// TestShutdownWithoutStart verifies Shutdown is safe before Start
func TestShutdownWithoutStart(t *testing.T) {
	hs := NewHealthServer(&fakePinger{}, "test")

	assert.NoError(t, hs.Shutdown(context.Background()))
}
