// Package projector serves the classroom display for a live session: the
// rotating join QR code and the attendance list, pushed over a websocket.
package projector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"qroll/internal/handlers"
	"qroll/internal/middleware"
	"qroll/internal/models"
	"qroll/internal/router"
	"qroll/internal/websocket"
)

// Sessions is the part of the session controller the projector watches.
type Sessions interface {
	handlers.SessionSource
	Subscribe(fn func(models.SessionSnapshot))
}

type Server struct {
	addr    string
	views   *middleware.ViewTokens
	hub     *websocket.Hub
	handler http.Handler

	mu   sync.Mutex
	srv  *http.Server
	base string
}

func New(addr string, views *middleware.ViewTokens, sessions Sessions) *Server {
	hub := websocket.NewHub()
	sessions.Subscribe(hub.Publish)

	return &Server{
		addr:    addr,
		views:   views,
		hub:     hub,
		handler: router.Projector(views, handlers.NewProjectorHandler(sessions), hub),
	}
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address. Calling it again is a no-op.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("projector: %w", err)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.srv = srv
	s.base = "http://" + ln.Addr().String() + "/"

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("✗ projector stopped: %v", err)
		}
	}()

	log.Printf("✓ Projector listening on %s", s.base)
	return nil
}

// ViewURL returns the page address for sessionID with a fresh view token.
func (s *Server) ViewURL(sessionID string) (string, error) {
	s.mu.Lock()
	base := s.base
	s.mu.Unlock()
	if base == "" {
		return "", errors.New("projector is not running")
	}

	token, err := s.views.Issue(sessionID)
	if err != nil {
		return "", err
	}
	return base + "?token=" + url.QueryEscape(token), nil
}

func (s *Server) Close(ctx context.Context) error {
	s.hub.Close()

	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.base = ""
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
