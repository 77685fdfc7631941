// Headless snapshot writer for non-TTY environments
package sentinel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"sentinelx/internal/state"
)

// StatusWriter periodically prints the shared-state snapshot as JSON lines.
// It is a pure reader, usable in containers and CI where the dashboard is not.
type StatusWriter struct {
	st       *state.State
	out      io.Writer
	interval time.Duration
}

// NewStatusWriter creates a StatusWriter printing to os.Stdout.
func NewStatusWriter(st *state.State, interval time.Duration) *StatusWriter {
	return &StatusWriter{st: st, out: os.Stdout, interval: interval}
}

// Run prints one snapshot per interval until ctx ends. The register stream is
// elided to its newest line; full history is visible on the dashboard and the
// admin endpoint.
func (w *StatusWriter) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			snap := w.st.Snapshot()
			if len(snap.Logs) > 1 {
				snap.Logs = snap.Logs[len(snap.Logs)-1:]
			}
			data, _ := json.Marshal(snap)
			fmt.Fprintln(w.out, string(data))
		case <-ctx.Done():
			return
		}
	}
}
