package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/siae-sistema/cardlink/internal/capture"
	"github.com/siae-sistema/cardlink/internal/models"
	"github.com/siae-sistema/cardlink/internal/storage"
)

type createEnrollmentRequest struct {
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
}

type inputRequest struct {
	Value string `json:"value"`
}

type enrollmentView struct {
	models.Enrollment
	Snapshot *capture.Snapshot `json:"snapshot,omitempty"`
}

func (h *Handler) HandleCreateEnrollment(w http.ResponseWriter, r *http.Request) {
	var req createEnrollmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	req.StudentID = strings.TrimSpace(req.StudentID)
	if req.StudentID == "" {
		h.writeError(w, "student_id is required", http.StatusBadRequest)
		return
	}

	target := req.StudentName
	if target == "" {
		target = req.StudentID
	}

	h.mu.Lock()
	if _, busy := h.enrollments.Active(); busy {
		h.mu.Unlock()
		h.writeError(w, "Another enrollment is in progress", http.StatusConflict)
		return
	}
	e := h.enrollments.Create(req.StudentID, req.StudentName)
	h.ctrl.Open(target)
	h.mu.Unlock()

	slog.Info("Enrollment started", "id", e.ID, "student_id", e.StudentID)
	h.publish(e)

	h.writeJSONStatus(w, e, http.StatusCreated)
}

func (h *Handler) HandleListEnrollments(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.enrollments.GetAll())
}

func (h *Handler) HandleGetEnrollment(w http.ResponseWriter, r *http.Request) {
	e, ok := h.getEnrollmentOrError(w, mux.Vars(r)["id"])
	if !ok {
		return
	}
	view := enrollmentView{Enrollment: e}
	if h.activeID() == e.ID {
		snap := h.ctrl.Snapshot()
		view.Snapshot = &snap
	}
	h.writeJSON(w, view)
}

func (h *Handler) HandleDeleteEnrollment(w http.ResponseWriter, r *http.Request) {
	e, ok := h.getEnrollmentOrError(w, mux.Vars(r)["id"])
	if !ok {
		return
	}
	if closed, ok := h.end(e.ID, models.EnrollmentCapturing, models.EnrollmentClosed, nil); ok {
		h.writeJSON(w, closed)
		return
	}
	e, _ = h.enrollments.Get(e.ID)
	if e.Status == models.EnrollmentSaving {
		h.writeError(w, "Enrollment is saving", http.StatusConflict)
		return
	}
	h.writeJSON(w, e)
}

func (h *Handler) HandleInput(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := h.getEnrollmentOrError(w, id); !ok {
		return
	}
	if h.activeID() != id {
		h.writeError(w, "Enrollment is not capturing", http.StatusConflict)
		return
	}

	var req inputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	h.field.Set(req.Value)
	w.WriteHeader(http.StatusNoContent)
}

// onAccepted runs on the controller loop, so the link happens elsewhere.
func (h *Handler) onAccepted(uid capture.UID) {
	id := h.activeID()
	if id == "" {
		return
	}
	go h.link(id, uid)
}

func (h *Handler) onDismiss() {
	id := h.activeID()
	if id == "" {
		return
	}
	go h.end(id, models.EnrollmentCapturing, models.EnrollmentClosed, nil)
}

func (h *Handler) onChange(snap capture.Snapshot) {
	h.hub.broadcast(message{Type: msgSnapshot, Snapshot: &snap})
}

// link persists uid for enrollment id. It does nothing once the enrollment
// has left the capturing state, so a closed dialog never links a card.
func (h *Handler) link(id string, uid capture.UID) {
	started := false
	e, ok := h.enrollments.Update(id, func(e *models.Enrollment) {
		if e.Status != models.EnrollmentCapturing {
			return
		}
		e.Status = models.EnrollmentSaving
		e.UID = string(uid)
		started = true
	})
	if !ok || !started {
		slog.Info("Dropping card for an enrollment that already ended", "id", id, "uid", uid)
		return
	}
	h.ctrl.SetSaving(true)
	h.publish(e)

	err := h.linker.LinkCard(h.ctx, e.StudentID, string(uid))
	h.ctrl.SetSaving(false)
	if err != nil {
		slog.Error("Failed to link card", "id", id, "student_id", e.StudentID, "uid", uid, "err", err)
		h.end(id, models.EnrollmentSaving, models.EnrollmentFailed, err)
		return
	}
	slog.Info("Card linked", "id", id, "student_id", e.StudentID, "uid", uid)
	h.end(id, models.EnrollmentSaving, models.EnrollmentLinked, nil)
}

// end moves enrollment id from one status to its final one, closes the
// capture dialog and frees the station. It reports false, changing nothing,
// when the enrollment is not in the from status.
func (h *Handler) end(id string, from, to models.EnrollmentStatus, cause error) (models.Enrollment, bool) {
	h.mu.Lock()
	moved := false
	e, ok := h.enrollments.Update(id, func(e *models.Enrollment) {
		if e.Status != from {
			return
		}
		e.Status = to
		if cause != nil {
			e.Error = linkErrorMessage(cause)
		}
		moved = true
	})
	if ok && moved {
		h.ctrl.Close()
	}
	h.mu.Unlock()

	if !ok || !moved {
		return e, false
	}
	h.publish(e)
	return e, true
}

func (h *Handler) publish(e models.Enrollment) {
	h.hub.broadcast(message{Type: msgEnrollment, Enrollment: &e})
}

func linkErrorMessage(err error) string {
	switch {
	case errors.Is(err, storage.ErrStudentNotFound):
		return "Student not found"
	case errors.Is(err, storage.ErrCardTaken):
		return "Card is already linked to another student"
	case errors.Is(err, storage.ErrStudentHasCard):
		return "Student already has a linked card"
	default:
		return err.Error()
	}
}
