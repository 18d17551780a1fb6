package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iconic-app/iconic/internal/model"
)

// MyPhotos handles GET /user-photos
func (h *Handler) MyPhotos(w http.ResponseWriter, r *http.Request) {
	h.listPhotos(w, r, "")
}

// UserPhotos handles GET /user-photos/user/{userId}
func (h *Handler) UserPhotos(w http.ResponseWriter, r *http.Request) {
	h.listPhotos(w, r, chi.URLParam(r, "userId"))
}

func (h *Handler) listPhotos(w http.ResponseWriter, r *http.Request, userID string) {
	ps, err := h.photos.List(r.Context(), actorFrom(r), userID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, list(ps))
}

// AddPhoto handles POST /user-photos
func (h *Handler) AddPhoto(w http.ResponseWriter, r *http.Request) {
	var req model.PhotoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badBody(w, err)
		return
	}

	p, err := h.photos.Add(r.Context(), actorFrom(r), req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// UpdatePhoto handles PATCH /user-photos/{id}
func (h *Handler) UpdatePhoto(w http.ResponseWriter, r *http.Request) {
	var req model.UpdatePhotoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badBody(w, err)
		return
	}

	p, err := h.photos.Update(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeletePhoto handles DELETE /user-photos/{id}
func (h *Handler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	if err := h.photos.Delete(r.Context(), actorFrom(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, model.Ack{Message: "photo deleted"})
}
