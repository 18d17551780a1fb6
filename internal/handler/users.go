package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iconic-app/iconic/internal/model"
)

// Me handles GET /users/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Me(r.Context(), actorFrom(r))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// UpdateMe handles PATCH /users/me
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badBody(w, err)
		return
	}

	u, err := h.users.UpdateMe(r.Context(), actorFrom(r), req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// GetUser handles GET /users/{id}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	p, err := h.users.Get(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// PromoteScanner handles POST /users/{id}/scanner
func (h *Handler) PromoteScanner(w http.ResponseWriter, r *http.Request) {
	h.setScanner(w, r, true)
}

// DemoteScanner handles DELETE /users/{id}/scanner
func (h *Handler) DemoteScanner(w http.ResponseWriter, r *http.Request) {
	h.setScanner(w, r, false)
}

func (h *Handler) setScanner(w http.ResponseWriter, r *http.Request, on bool) {
	u, err := h.users.SetScanner(r.Context(), actorFrom(r), chi.URLParam(r, "id"), on)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// GrantIconic handles POST /users/{id}/iconic
func (h *Handler) GrantIconic(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.GrantIconic(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// ConfirmPayment handles POST /payment/confirm
// Verifies the membership purchase on chain and upgrades the caller.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req model.ConfirmPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badBody(w, err)
		return
	}

	u, err := h.users.ConfirmPayment(r.Context(), actorFrom(r), req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// CheckStatus handles POST /payment/check-status
func (h *Handler) CheckStatus(w http.ResponseWriter, r *http.Request) {
	var req model.WalletStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badBody(w, err)
		return
	}

	st, err := h.users.CheckStatus(r.Context(), req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// IconicMembers handles GET /iconic/members
func (h *Handler) IconicMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.chat.Members(r.Context(), actorFrom(r))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, list(members))
}

// ListChat handles GET /iconic/chat
func (h *Handler) ListChat(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.chat.List(r.Context(), actorFrom(r))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, list(msgs))
}

// PostChat handles POST /iconic/chat
func (h *Handler) PostChat(w http.ResponseWriter, r *http.Request) {
	var req model.ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badBody(w, err)
		return
	}

	m, err := h.chat.Post(r.Context(), actorFrom(r), req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}
