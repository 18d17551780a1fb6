package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iconic-app/iconic/internal/model"
)

// GenerateCheckin handles POST /event-checkins/generate
func (h *Handler) GenerateCheckin(w http.ResponseWriter, r *http.Request) {
	var req model.GenerateCheckinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badBody(w, err)
		return
	}

	c, err := h.checkins.Generate(r.Context(), actorFrom(r), req.EventID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// ScanCheckin handles POST /event-checkins/scan
// Redeems a token; the attendee comes back through the visibility filter.
func (h *Handler) ScanCheckin(w http.ResponseWriter, r *http.Request) {
	var req model.ScanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badBody(w, err)
		return
	}

	res, err := h.checkins.Redeem(r.Context(), actorFrom(r), req.Token)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ManualCheckin handles POST /event-checkins/manual
func (h *Handler) ManualCheckin(w http.ResponseWriter, r *http.Request) {
	var req model.ManualCheckinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badBody(w, err)
		return
	}

	c, err := h.checkins.Manual(r.Context(), actorFrom(r), req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// IsCheckedIn handles GET /event-checkins/event/{eventId}/user/{userId}/checked
func (h *Handler) IsCheckedIn(w http.ResponseWriter, r *http.Request) {
	ok, err := h.checkins.IsCheckedIn(r.Context(), chi.URLParam(r, "userId"), chi.URLParam(r, "eventId"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, model.CheckedIn{CheckedIn: ok})
}

// CheckedInUsers handles GET /event-checkins/event/{eventId}/checked-in-users
func (h *Handler) CheckedInUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.checkins.CheckedInUsers(r.Context(), actorFrom(r), chi.URLParam(r, "eventId"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, list(users))
}

// EventCheckins handles GET /event-checkins/event/{eventId}
func (h *Handler) EventCheckins(w http.ResponseWriter, r *http.Request) {
	cs, err := h.checkins.ListForEvent(r.Context(), actorFrom(r), chi.URLParam(r, "eventId"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, list(cs))
}

// ScannedCheckins handles GET /event-checkins/event/{eventId}/with-scanner
func (h *Handler) ScannedCheckins(w http.ResponseWriter, r *http.Request) {
	cs, err := h.checkins.Scanned(r.Context(), actorFrom(r), chi.URLParam(r, "eventId"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, list(cs))
}

// DeleteCheckin handles DELETE /event-checkins/{id}
func (h *Handler) DeleteCheckin(w http.ResponseWriter, r *http.Request) {
	if err := h.checkins.Delete(r.Context(), actorFrom(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, model.Ack{Message: "check-in deleted"})
}
