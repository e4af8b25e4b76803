package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dancetime/booking/internal/http/respond"
)

// Pinger is the slice of the store the probe needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthStatus is the probe payload.
type HealthStatus struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
	Store  string `json:"store"`
}

// HealthHandler reports uptime and whether the store answers.
type HealthHandler struct {
	startedAt time.Time
	store     Pinger
}

// NewHealthHandler creates a health endpoint handler.
func NewHealthHandler(startedAt time.Time, store Pinger) *HealthHandler {
	return &HealthHandler{startedAt: startedAt, store: store}
}

// Register wires the handler into the router.
func (h *HealthHandler) Register(r chi.Router) {
	r.Get("/health", h.handle)
}

func (h *HealthHandler) handle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := HealthStatus{Status: "ok", Store: "up", Uptime: time.Since(h.startedAt).Truncate(time.Second).String()}
	if err := h.store.Ping(ctx); err != nil {
		status.Status, status.Store = "degraded", "down"
		respond.Error(w, r, http.StatusServiceUnavailable, err, status)
		return
	}
	respond.JSON(w, r, http.StatusOK, status)
}
