package handlers

import (
	"net/http"
	"strings"

	"quick-notes/models"
)

type authRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}

func toUserResponse(u models.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.users.Register(req.Username, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.sessions.Create(w, user.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.log.WithField("user_id", user.ID).Info("user registered")
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		errorJSON(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := h.users.Authenticate(req.Username, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.sessions.Create(w, user.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Destroy(w, r)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Me answers with the session's user, or JSON null when there is none.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := h.sessions.UserID(r)
	if err != nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	user, err := h.users.Get(userID)
	if err != nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}
