package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"quick-notes/middleware"
	"quick-notes/models"
	"quick-notes/store"
)

type createNoteRequest struct {
	Text string `json:"text"`
}

func currentUser(w http.ResponseWriter, r *http.Request) (int, bool) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		errorJSON(w, http.StatusUnauthorized, "unauthorized")
	}
	return userID, ok
}

// noteID parses the {id} URL parameter. A malformed id can never name a
// note, so it is reported as not found.
func noteID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		return 0, store.ErrNotFound
	}
	return id, nil
}

func (h *Handler) GetNotes(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.notes.List(userID))
}

func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req createNoteRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	note, err := h.notes.Create(userID, req.Text)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := noteID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var patch models.NotePatch
	if err := decodeJSON(r, &patch); err != nil {
		h.writeError(w, r, err)
		return
	}

	note, err := h.notes.Update(id, userID, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := noteID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	removed, err := h.notes.Delete(id, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, removed)
}
