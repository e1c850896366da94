package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"study-companion/internal/handlers"
	"study-companion/internal/middleware"
	"study-companion/internal/websocket"
)

type Deps struct {
	SessionAuth     *middleware.SessionAuth
	Limiter         middleware.Limiter
	PageHandler     *handlers.PageHandler
	SessionHandler  *handlers.SessionHandler
	ImageHandler    *handlers.ImageHandler
	GenerateHandler *handlers.GenerateHandler
	WSHub           *websocket.Hub
	Gatherer        prometheus.Gatherer
	FrontendURL     string
	Logger          zerolog.Logger
}

func New(d Deps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(d.FrontendURL))

	// Health check
	r.Get("/health", d.PageHandler.Health)
	r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(d.SessionAuth.Middleware)
		r.Get("/", d.PageHandler.Index)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/aid-types", d.SessionHandler.ListAidTypes)
		r.Post("/sessions", d.SessionHandler.Create)
		r.Get("/ws", d.WSHub.HandleWebSocket)

		// ──── Session Routes ────
		r.Route("/session", func(r chi.Router) {
			r.Use(d.SessionAuth.Middleware)
			r.Get("/", d.SessionHandler.Get)

			r.Get("/image", d.ImageHandler.Get)
			r.Put("/image", d.ImageHandler.Upload)
			r.Post("/image", d.ImageHandler.Upload)
			r.Delete("/image", d.ImageHandler.Remove)
			r.Post("/image/remove", d.ImageHandler.Remove)

			r.Put("/aid-type", d.SessionHandler.SelectAidType)
			r.Post("/aid-type", d.SessionHandler.SelectAidType)

			r.Post("/flashcards/{action}", d.SessionHandler.Flashcard)
			r.Post("/quiz/{action}", d.SessionHandler.Quiz)

			// Gemini-backed actions are rate limited per session
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimit(d.Limiter, d.Logger))
				r.Post("/generate", d.GenerateHandler.Generate)
				r.Post("/messages", d.GenerateHandler.Ask)
			})
		})
	})

	return r
}
