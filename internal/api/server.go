// Package api is the HTTP surface of the daemon: ingestion, liveness,
// chart frames and metrics.
package api

import (
	"net/http"

	"codeberg.org/mutker/vitalsd/internal/archive"
	"codeberg.org/mutker/vitalsd/internal/metrics"
	"codeberg.org/mutker/vitalsd/internal/render"
	"codeberg.org/mutker/vitalsd/internal/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxBodyBytes bounds ingestion payloads.
const maxBodyBytes = 1 << 20

// FrameSource returns the last rendered chart frame, or nil before the first.
type FrameSource interface {
	Latest() *render.Frame
}

// Deps are the collaborators the handlers need. Archive and Verifier are
// optional.
type Deps struct {
	Store    telemetry.Appender
	Frames   FrameSource
	Metrics  *metrics.Metrics
	Archive  archive.Recorder
	Verifier *Verifier
}

// Server exposes the HTTP transport.
type Server struct {
	router chi.Router
}

func NewServer(deps Deps) *Server {
	if deps.Archive == nil {
		deps.Archive, _ = archive.New(archive.Config{})
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(deps.Metrics))
	router.Use(middleware.Recoverer)
	router.Use(fatalOnPoison)

	registerRoutes(router, newHandler(deps), deps)

	return &Server{router: router}
}

// Router returns the configured router for tests or an external http.Server.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
