package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"study-companion/internal/middleware"
	"study-companion/internal/models"
	"study-companion/internal/services"
	"study-companion/internal/session"
	"study-companion/internal/views"
	"study-companion/internal/worker"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}

// fromForm reports whether r is a browser form submission. Those are
// answered with a redirect back to the page instead of JSON.
func fromForm(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	isForm := strings.HasPrefix(ct, "application/x-www-form-urlencoded") || strings.HasPrefix(ct, "multipart/form-data")
	return isForm && strings.Contains(r.Header.Get("Accept"), "text/html")
}

// respond finishes a successful action.
func respond(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if fromForm(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	writeJSON(w, status, data)
}

// fail finishes a failed action. Form posts see the message on the page.
func fail(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	if fromForm(r) {
		if sess := middleware.GetSession(r.Context()); sess != nil {
			sess.SetError(message)
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	writeJSON(w, status, errorResp(code, message, r))
}

// handleActionError maps domain errors to HTTP responses.
func handleActionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrNoImage):
		fail(w, r, http.StatusBadRequest, "NO_IMAGE", session.NoImageMessage)
	case errors.Is(err, session.ErrGenerationInProgress):
		fail(w, r, http.StatusConflict, "IN_PROGRESS", "Study materials are already being generated.")
	case errors.Is(err, session.ErrReplyInProgress):
		fail(w, r, http.StatusConflict, "IN_PROGRESS", "Still waiting for the previous answer.")
	case errors.Is(err, session.ErrNotConversation):
		fail(w, r, http.StatusConflict, "NO_CONVERSATION", "Generate a Q&A session before asking questions.")
	case errors.Is(err, session.ErrWrongAidType):
		fail(w, r, http.StatusConflict, "WRONG_AID_TYPE", "The current study materials do not support this action.")
	case errors.Is(err, services.ErrInvalidAidType):
		fail(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown study aid type")
	case errors.Is(err, services.ErrQuestionMissing):
		fail(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Question cannot be empty")
	case errors.Is(err, views.ErrInvalidOption), errors.Is(err, views.ErrNoSelection):
		fail(w, r, http.StatusBadRequest, "VALIDATION_ERROR", capitalize(err.Error()))
	case errors.Is(err, views.ErrQuizFinished):
		fail(w, r, http.StatusConflict, "QUIZ_FINISHED", "The quiz is finished. Reset it to try again.")
	case errors.Is(err, worker.ErrQueueFull):
		fail(w, r, http.StatusServiceUnavailable, "BUSY", "The server is busy. Please try again in a moment.")
	default:
		fail(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred.")
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
