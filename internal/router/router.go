package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"qroll/internal/handlers"
	"qroll/internal/middleware"
	"qroll/internal/websocket"
)

// SignIn serves the Google sign-in page on the loopback interface.
func SignIn(signInHandler *handlers.SignInHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.LoopbackOnly)
	r.Use(chimiddleware.NoCache)

	// Credential posts (10 req/min per client)
	callbackLimiter := middleware.NewRateLimiter(10, time.Minute)

	r.Get("/health", health)
	r.Get("/", signInHandler.Page)
	r.With(callbackLimiter.Middleware).Post("/callback", signInHandler.Callback)

	return r
}

// Projector serves the live session display. Everything except /health needs
// a view token.
func Projector(views *middleware.ViewTokens, projectorHandler *handlers.ProjectorHandler, wsHub *websocket.Hub) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.NoCache)

	r.Get("/health", health)

	r.Group(func(r chi.Router) {
		r.Use(views.Middleware)
		r.Get("/", projectorHandler.Page)
		r.Get("/qr.png", projectorHandler.QR)
		r.Get("/state", projectorHandler.State)
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}

func health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
