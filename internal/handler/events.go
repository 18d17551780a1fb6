package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iconic-app/iconic/internal/model"
)

// CreateEvent handles POST /events
// The caller becomes the owner.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badBody(w, err)
		return
	}

	event, err := h.events.Create(r.Context(), actorFrom(r), req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /events
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.List(r.Context(), actorFrom(r))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, list(events))
}

// OwnedEvents handles GET /events/owned
func (h *Handler) OwnedEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.Owned(r.Context(), actorFrom(r))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, list(events))
}

// ParticipatingEvents handles GET /events/participating
func (h *Handler) ParticipatingEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.Participating(r.Context(), actorFrom(r))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, list(events))
}

// GetEvent handles GET /events/{id}
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.Get(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// UpdateEvent handles PATCH /events/{id}
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badBody(w, err)
		return
	}

	event, err := h.events.Update(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// DeleteEvent handles DELETE /events/{id}
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.events.Delete(r.Context(), actorFrom(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, model.Ack{Message: "event deleted"})
}

// CreateLiveEvent handles POST /events/{id}/live-events
func (h *Handler) CreateLiveEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateLiveEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badBody(w, err)
		return
	}

	l, err := h.live.Create(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

// ListLiveEvents handles GET /events/{id}/live-events
func (h *Handler) ListLiveEvents(w http.ResponseWriter, r *http.Request) {
	ls, err := h.live.List(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, list(ls))
}
