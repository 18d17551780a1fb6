package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iconic-app/iconic/internal/model"
)

// GetLiveEvent handles GET /live-events/{id}
func (h *Handler) GetLiveEvent(w http.ResponseWriter, r *http.Request) {
	l, err := h.live.Get(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// StartLiveEvent handles POST /live-events/{id}/start
func (h *Handler) StartLiveEvent(w http.ResponseWriter, r *http.Request) {
	l, err := h.live.Start(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// EndLiveEvent handles POST /live-events/{id}/end
func (h *Handler) EndLiveEvent(w http.ResponseWriter, r *http.Request) {
	l, err := h.live.End(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// StartMatch handles POST /live-events/{id}/match
func (h *Handler) StartMatch(w http.ResponseWriter, r *http.Request) {
	var req model.StartMatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badBody(w, err)
		return
	}

	res, err := h.match.StartMatch(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req.GroupSize)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// MyMatch handles GET /live-events/{id}/match/me
func (h *Handler) MyMatch(w http.ResponseWriter, r *http.Request) {
	partners, err := h.match.MyMatch(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, list(partners))
}

// MatchGroups handles GET /live-events/{id}/match/groups
func (h *Handler) MatchGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.match.Groups(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, list(groups))
}

// CreatePoll handles POST /live-events/{id}/polls
func (h *Handler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	var req model.CreatePollRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badBody(w, err)
		return
	}

	p, err := h.polls.Create(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GetPoll handles GET /polls/{id}
func (h *Handler) GetPoll(w http.ResponseWriter, r *http.Request) {
	p, err := h.polls.Get(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Vote handles POST /polls/{id}/vote
func (h *Handler) Vote(w http.ResponseWriter, r *http.Request) {
	var req model.VoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badBody(w, err)
		return
	}

	if err := h.polls.Vote(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, model.Ack{Message: "vote recorded"})
}

// PollResults handles GET /polls/{id}/results
func (h *Handler) PollResults(w http.ResponseWriter, r *http.Request) {
	res, err := h.polls.Results(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
