package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"quick-notes/models"
	"quick-notes/store"
)

type NoteStore interface {
	List(userID int) []models.Note
	Create(userID int, text string) (models.Note, error)
	Update(id, userID int, patch models.NotePatch) (models.Note, error)
	Delete(id, userID int) (models.Note, error)
}

type UserStore interface {
	Register(username, password string) (models.User, error)
	Authenticate(username, password string) (models.User, error)
	Get(id int) (models.User, error)
}

type Sessions interface {
	Create(w http.ResponseWriter, userID int) error
	UserID(r *http.Request) (int, error)
	Destroy(w http.ResponseWriter, r *http.Request)
}

// Handler serves the JSON API.
type Handler struct {
	notes    NoteStore
	users    UserStore
	sessions Sessions
	log      logrus.FieldLogger
}

func New(notes NoteStore, users UserStore, sessions Sessions, log logrus.FieldLogger) *Handler {
	return &Handler{
		notes:    notes,
		users:    users,
		sessions: sessions,
		log:      log.WithField("component", "http"),
	}
}

var errBadBody = errors.New("invalid request body")

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errBadBody
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func errorJSON(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps store errors onto HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errBadBody),
		errors.Is(err, store.ErrValidation),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, store.ErrInvalidCredentials):
		errorJSON(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrForbidden):
		errorJSON(w, http.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrNotFound):
		errorJSON(w, http.StatusNotFound, err.Error())
	default:
		h.log.WithError(err).
			WithField("request_id", chimw.GetReqID(r.Context())).
			Errorf("%s %s failed", r.Method, r.URL.Path)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
	}
}
