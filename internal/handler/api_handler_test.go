package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAPIRouter(h *APIHandler) http.Handler {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func fixedAPIHandler(random float64) *APIHandler {
	return &APIHandler{
		random: func() float64 { return random },
		now:    func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) },
	}
}

func TestAPIData(t *testing.T) {
	rec := httptest.NewRecorder()
	newAPIRouter(fixedAPIHandler(0)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/data", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"message": "Hello from API",
		"timestamp": "2024-05-01T10:00:00.000Z",
		"data": {"items": ["item1", "item2", "item3"], "status": "success"}
	}`, rec.Body.String())
}

func TestAPIUnreliable(t *testing.T) {
	tests := []struct {
		name   string
		random float64
		status int
		body   string
	}{
		{"fails", 0.49, http.StatusInternalServerError, `{"error":"Internal Server Error","message":"This endpoint randomly fails"}`},
		{"succeeds", 0.5, http.StatusOK, `{"message":"Request succeeded","timestamp":"2024-05-01T10:00:00.000Z"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newAPIRouter(fixedAPIHandler(tt.random)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/unreliable", nil))
			assert.Equal(t, tt.status, rec.Code)
			assert.JSONEq(t, tt.body, rec.Body.String())
		})
	}
}

func TestAPISlow(t *testing.T) {
	rec := httptest.NewRecorder()
	start := time.Now()
	newAPIRouter(fixedAPIHandler(0)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slow", nil))

	assert.GreaterOrEqual(t, time.Since(start), slowMinDelay)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Slow response completed", body["message"])
	assert.Equal(t, "100ms", body["delay"])
}

func TestAPISlowHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/slow", nil).WithContext(ctx)
	start := time.Now()
	newAPIRouter(fixedAPIHandler(0.99)).ServeHTTP(rec, req)

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Empty(t, rec.Body.String())
}
