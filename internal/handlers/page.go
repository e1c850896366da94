package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"study-companion/internal/middleware"
	"study-companion/internal/models"
	"study-companion/internal/session"
	"study-companion/internal/web"
)

type PageHandler struct {
	auth       *middleware.SessionAuth
	store      *session.Store
	renderer   *web.Renderer
	maxImageMB int64
	logger     zerolog.Logger
}

func NewPageHandler(auth *middleware.SessionAuth, store *session.Store, renderer *web.Renderer, maxImageBytes int64, logger zerolog.Logger) *PageHandler {
	return &PageHandler{
		auth:       auth,
		store:      store,
		renderer:   renderer,
		maxImageMB: maxImageBytes / (1024 * 1024),
		logger:     logger,
	}
}

func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())

	token, err := h.auth.TokenFor(sess)
	if err != nil {
		http.Error(w, "Failed to start session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	err = h.renderer.Render(w, web.PageData{
		Snapshot:   sess.Snapshot(),
		Token:      token,
		AidTypes:   models.AidTypes,
		MaxImageMB: h.maxImageMB,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to render page")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

func (h *PageHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sessions": h.store.Len(),
	})
}
