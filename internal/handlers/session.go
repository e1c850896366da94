package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"study-companion/internal/middleware"
	"study-companion/internal/models"
	"study-companion/internal/services"
	"study-companion/internal/session"
)

type SessionHandler struct {
	auth *middleware.SessionAuth
}

func NewSessionHandler(auth *middleware.SessionAuth) *SessionHandler {
	return &SessionHandler{auth: auth}
}

// Create starts a session for API clients and returns its bearer token.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess, err := h.auth.StartSession(w)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to start session", r))
		return
	}

	token, err := h.auth.TokenFor(sess)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to issue session token", r))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"session_id": sess.ID,
		"token":      token,
	})
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (h *SessionHandler) ListAidTypes(w http.ResponseWriter, r *http.Request) {
	types := make([]models.AidTypeInfo, len(models.AidTypes))
	for i, t := range models.AidTypes {
		types[i] = models.AidTypeInfo{ID: t, Slug: t.Slug(), Name: string(t)}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"aid_types": types})
}

func (h *SessionHandler) SelectAidType(w http.ResponseWriter, r *http.Request) {
	raw, ok := readAidType(w, r)
	if !ok {
		return
	}

	t, ok := models.ParseAidType(raw)
	if !ok {
		handleActionError(w, r, services.ErrInvalidAidType)
		return
	}

	sess := middleware.GetSession(r.Context())
	if err := sess.SelectAidType(t); err != nil {
		handleActionError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, sess.Snapshot())
}

// Flashcard handles POST .../flashcards/{action}.
func (h *SessionHandler) Flashcard(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())

	var err error
	switch chi.URLParam(r, "action") {
	case "flip":
		err = sess.FlipCard()
	case "next":
		err = sess.NextCard()
	case "prev":
		err = sess.PrevCard()
	default:
		fail(w, r, http.StatusNotFound, "NOT_FOUND", "Unknown flashcard action")
		return
	}
	h.finish(w, r, sess, err)
}

// Quiz handles POST .../quiz/{action}.
func (h *SessionHandler) Quiz(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())

	var err error
	switch chi.URLParam(r, "action") {
	case "answer":
		var req models.QuizAnswerRequest
		if fromForm(r) {
			req.Option = r.FormValue("option")
		} else if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
			return
		}
		err = sess.AnswerQuestion(req.Option)
	case "next":
		err = sess.NextQuestion()
	case "reset":
		err = sess.ResetQuiz()
	default:
		fail(w, r, http.StatusNotFound, "NOT_FOUND", "Unknown quiz action")
		return
	}
	h.finish(w, r, sess, err)
}

func (h *SessionHandler) finish(w http.ResponseWriter, r *http.Request, sess *session.Session, err error) {
	if err != nil {
		handleActionError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, sess.Snapshot())
}

// readAidType pulls the aid type from a form field or a JSON body. An empty
// JSON body yields "".
func readAidType(w http.ResponseWriter, r *http.Request) (string, bool) {
	if fromForm(r) {
		return r.FormValue("type"), true
	}
	if r.ContentLength == 0 {
		return "", true
	}

	var req models.SelectAidTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return "", false
	}
	return req.Type, true
}
