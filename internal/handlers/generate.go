package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"study-companion/internal/metrics"
	"study-companion/internal/middleware"
	"study-companion/internal/models"
	"study-companion/internal/services"
	"study-companion/internal/session"
)

// JobQueue hands work to the worker pool.
type JobQueue interface {
	SubmitGeneration(sess *session.Session, gen *session.GenerationJob) (*models.JobInfo, error)
	SubmitReply(sess *session.Session, reply *session.ReplyJob) (*models.JobInfo, error)
}

type GenerateHandler struct {
	jobs    JobQueue
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewGenerateHandler(jobs JobQueue, m *metrics.Metrics, logger zerolog.Logger) *GenerateHandler {
	return &GenerateHandler{jobs: jobs, metrics: m, logger: logger}
}

// Generate queues a study aid for the session's image. The result arrives
// over the websocket and in the next snapshot.
func (h *GenerateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())

	raw, ok := readAidType(w, r)
	if !ok {
		return
	}

	var gen *session.GenerationJob
	var err error
	if raw == "" {
		gen, err = sess.BeginGeneration()
	} else if t, valid := models.ParseAidType(raw); valid {
		gen, err = sess.BeginGenerationFor(t)
	} else {
		err = services.ErrInvalidAidType
	}
	if err != nil {
		if errors.Is(err, session.ErrGenerationInProgress) {
			h.metrics.InFlightRejected.WithLabelValues(string(models.JobAidGeneration)).Inc()
		}
		handleActionError(w, r, err)
		return
	}

	info, err := h.jobs.SubmitGeneration(sess, gen)
	if err != nil {
		sess.AbortGeneration(gen.Ticket)
		h.logger.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("Failed to enqueue generation")
		handleActionError(w, r, err)
		return
	}

	respond(w, r, http.StatusAccepted, map[string]interface{}{"job": info})
}

// Ask queues a follow-up question in a Q&A conversation.
func (h *GenerateHandler) Ask(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())

	var req models.ChatRequest
	if fromForm(r) {
		req.Question = r.FormValue("question")
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	reply, err := sess.BeginReply(req.Question)
	if err != nil {
		if errors.Is(err, session.ErrReplyInProgress) {
			h.metrics.InFlightRejected.WithLabelValues(string(models.JobQnAReply)).Inc()
		}
		handleActionError(w, r, err)
		return
	}

	info, err := h.jobs.SubmitReply(sess, reply)
	if err != nil {
		// The question is already in the transcript; answer it with the apology.
		sess.FailReply(reply.Ticket)
		h.logger.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("Failed to enqueue reply")
		handleActionError(w, r, err)
		return
	}

	respond(w, r, http.StatusAccepted, map[string]interface{}{"job": info})
}
