// Package web serves a read-only view of the button daemon's state.
package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/sweeney/soundbox-buttons/internal/status"
)

// shutdownGrace bounds how long in-flight requests may run once Run's
// context is cancelled.
const shutdownGrace = 2 * time.Second

// Server renders tracker snapshots as an HTML page and a JSON document.
type Server struct {
	addr    string
	tracker *status.Tracker
}

// New returns a Server for addr. Nothing listens until Run.
func New(addr string, tracker *status.Tracker) *Server {
	return &Server{addr: addr, tracker: tracker}
}

// Handler returns the server's routes.
//
//	/, /index.html  HTML status page
//	/index.json     status document
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.serve)
}

// Run listens on the server's address and serves until ctx is cancelled.
// A listen failure is returned straight away; a cancelled context returns
// nil after in-flight requests finish or the grace period ends.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-done; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Button state is live; never let a browser show a stale page.
	w.Header().Set("Cache-Control", "no-store")

	snap := s.tracker.Snapshot()
	switch r.URL.Path {
	case "/", "/index.html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		renderHTML(w, snap)
	case "/index.json":
		w.Header().Set("Content-Type", "application/json")
		w.Write(status.FormatJSON(snap))
	default:
		http.NotFound(w, r)
	}
}
