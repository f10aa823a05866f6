package handler

import (
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	slowMinDelay   = 100 * time.Millisecond
	slowDelayRange = time.Second
)

// APIHandler serves the sample JSON endpoints used by API and load tests.
type APIHandler struct {
	random func() float64
	now    func() time.Time
}

func NewAPIHandler() *APIHandler {
	return &APIHandler{random: rand.Float64, now: time.Now}
}

func (h *APIHandler) RegisterRoutes(r chi.Router) {
	r.Get("/data", h.Data)
	r.Get("/unreliable", h.Unreliable)
	r.Get("/slow", h.Slow)
}

func (h *APIHandler) timestamp() string {
	return h.now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

func (h *APIHandler) Data(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]any{
		"message":   "Hello from API",
		"timestamp": h.timestamp(),
		"data": map[string]any{
			"items":  []string{"item1", "item2", "item3"},
			"status": "success",
		},
	})
}

// Unreliable fails half of the time.
func (h *APIHandler) Unreliable(w http.ResponseWriter, r *http.Request) {
	if h.random() < 0.5 {
		respondWithJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Internal Server Error",
			"message": "This endpoint randomly fails",
		})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{
		"message":   "Request succeeded",
		"timestamp": h.timestamp(),
	})
}

// Slow answers after a random delay between 100ms and 1.1s. A cancelled request gets nothing.
func (h *APIHandler) Slow(w http.ResponseWriter, r *http.Request) {
	delay := slowMinDelay + time.Duration(h.random()*float64(slowDelayRange))

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-r.Context().Done():
		return
	case <-timer.C:
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"message":   "Slow response completed",
		"delay":     fmt.Sprintf("%dms", delay.Round(time.Millisecond).Milliseconds()),
		"timestamp": h.timestamp(),
	})
}
