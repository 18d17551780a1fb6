package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/iconic-app/iconic/internal/model"
)

// Join handles POST /event-participations
// Takes a seat for the caller; concurrent joins never exceed capacity.
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	var req model.JoinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badBody(w, err)
		return
	}
	if strings.TrimSpace(req.EventID) == "" {
		writeErrorBody(w, http.StatusBadRequest, "invalid_input", "event_id is required")
		return
	}

	p, err := h.participation.Join(r.Context(), actorFrom(r), req.EventID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GetParticipation handles GET /event-participations/{id}
func (h *Handler) GetParticipation(w http.ResponseWriter, r *http.Request) {
	p, err := h.participation.Get(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdateParticipation handles PATCH /event-participations/{id}
// status "cancelled" releases the seat; "confirmed" takes it again.
func (h *Handler) UpdateParticipation(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateParticipationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badBody(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	switch req.Status {
	case model.ParticipationCancelled:
		if _, err := h.participation.Cancel(r.Context(), actorFrom(r), id); err != nil {
			writeError(w, r, h.log, err)
			return
		}
		writeJSON(w, http.StatusOK, model.Ack{Message: "participation cancelled"})
	case model.ParticipationConfirmed:
		p, err := h.participation.Rejoin(r.Context(), actorFrom(r), id)
		if err != nil {
			writeError(w, r, h.log, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	default:
		writeErrorBody(w, http.StatusBadRequest, "invalid_input", `status must be "cancelled" or "confirmed"`)
	}
}

// RemoveParticipation handles DELETE /event-participations/{id}
func (h *Handler) RemoveParticipation(w http.ResponseWriter, r *http.Request) {
	if err := h.participation.Remove(r.Context(), actorFrom(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, model.Ack{Message: "participation removed"})
}

// ConfirmedUsers handles GET /event-participations/event/{eventId}/confirmed-users
func (h *Handler) ConfirmedUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.participation.ConfirmedUsers(r.Context(), actorFrom(r), chi.URLParam(r, "eventId"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, list(users))
}
