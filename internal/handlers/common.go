package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/siae-sistema/cardlink/internal/capture"
	"github.com/siae-sistema/cardlink/internal/models"
	"github.com/siae-sistema/cardlink/internal/storage"
	"github.com/siae-sistema/cardlink/internal/wedge"
)

// Linker persists a captured card for a student.
type Linker interface {
	LinkCard(ctx context.Context, studentID, uid string) error
}

// Handler serves the web enrollment station. It owns one capture controller,
// so one enrollment runs at a time.
type Handler struct {
	enrollments *storage.EnrollmentStore
	linker      Linker
	ctrl        *capture.Controller
	field       *wedge.Field
	hub         *hub

	ctx context.Context

	// mu orders starting and ending enrollments with the controller's
	// Open and Close. Controller hooks never take it.
	mu sync.Mutex
}

func New(cfg capture.Config, linker Linker, reg prometheus.Registerer) *Handler {
	h := &Handler{
		enrollments: storage.New(),
		linker:      linker,
		field:       wedge.NewField(),
		hub:         newHub(),
		ctx:         context.Background(),
	}
	h.ctrl = capture.NewController(cfg, h.field, capture.Hooks{
		OnAccepted: h.onAccepted,
		OnClose:    h.onDismiss,
		OnChange:   h.onChange,
	}, capture.NewMetrics(reg))

	h.field.OnChange(h.ctrl.Input)
	h.field.SetFocusFunc(func() error {
		h.hub.broadcast(message{Type: msgFocus})
		return nil
	})
	return h
}

// Run drives the station's capture controller until ctx is cancelled.
func (h *Handler) Run(ctx context.Context) error {
	h.ctx = ctx
	return h.ctrl.Run(ctx)
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, data interface{}, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message)
	http.Error(w, message, code)
}

// Enrollment helpers
func (h *Handler) getEnrollmentOrError(w http.ResponseWriter, id string) (models.Enrollment, bool) {
	e, exists := h.enrollments.Get(id)
	if !exists {
		h.writeError(w, "Enrollment not found", http.StatusNotFound)
		return models.Enrollment{}, false
	}
	return e, true
}

// activeID returns the enrollment holding the station, or "".
func (h *Handler) activeID() string {
	e, ok := h.enrollments.Active()
	if !ok {
		return ""
	}
	return e.ID
}
