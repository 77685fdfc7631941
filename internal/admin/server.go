// Read-only HTTP status surface over the shared state
package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"sentinelx/internal/state"
)

// SnapshotSource supplies point-in-time state copies. The server never holds
// a live reference and never writes.
type SnapshotSource interface {
	Snapshot() state.Snapshot
}

// Server exposes the sentinel snapshot as JSON for external tooling.
type Server struct {
	src SnapshotSource
	srv *http.Server
}

// NewServer builds a server over src.
func NewServer(src SnapshotSource) *Server {
	return &Server{src: src}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/healthz", s.handleHealthz)
	return mux
}

// Start serves on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.srv = &http.Server{Addr: addr, Handler: s.routes()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
	}()
	return s.srv.ListenAndServe()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.src.Snapshot())
}

// handleHealthz reports 200 while monitoring and 503 once the session has
// isolated the controller, so orchestrators notice the terminal state.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	snap := s.src.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	if snap.Lockdown {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"lockdown":    snap.Lockdown,
		"link_status": snap.LinkStatus,
	})
}
