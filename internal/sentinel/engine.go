// Engine orchestrating the sentinel monitor loops
package sentinel

import (
	"context"
	"log"
	"sync"
	"time"

	"sentinelx/internal/capture"
	"sentinelx/internal/config"
	"sentinelx/internal/plc"
	"sentinelx/internal/state"
	"sentinelx/internal/vision"
)

// Reaper resolves and terminates the controller process for the kill-switch.
type Reaper interface {
	Find(match string) (int32, bool)
	Kill(pid int32) error
}

// Sampler reads host utilization over a sampling window.
type Sampler interface {
	Sample(ctx context.Context, window time.Duration) (cpu, ram float64, err error)
}

// Deps carries the engine's collaborators. Classifier may be nil when no
// credential is configured and Frames may be nil when the sensing device is
// unavailable; the inference loop degrades to a permanent SECURE report in
// either case.
type Deps struct {
	Link       plc.Link
	Classifier vision.Classifier
	Frames     capture.Source
	Reaper     Reaper
	Sampler    Sampler
}

// Engine owns the shared state and runs the three monitor loops. The loops
// communicate only through the state; no loop signals another directly.
type Engine struct {
	cfg   *config.Config
	state *state.State
	deps  Deps

	// Controller PID, cached once resolved so the kill-switch never scans twice.
	mu     sync.Mutex
	plcPID int32
}

// New wires an engine around st.
func New(cfg *config.Config, st *state.State, deps Deps) *Engine {
	return &Engine{cfg: cfg, state: st, deps: deps}
}

// State exposes the shared state for read-only consumers (TUI, admin server).
func (e *Engine) State() *state.State { return e.state }

// Snapshot implements the admin server's snapshot source.
func (e *Engine) Snapshot() state.Snapshot { return e.state.Snapshot() }

// SetControllerPID pre-seeds the kill-switch target, used when the supervisor
// launched the controller itself and already knows its PID.
func (e *Engine) SetControllerPID(pid int32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.plcPID = pid
}

// Run starts the monitor loops and blocks until all of them exit. The link
// loop exits on lockdown after executing the kill-switch; the others exit on
// lockdown or ctx cancellation.
func (e *Engine) Run(ctx context.Context) {
	log.Printf("[Engine] starting monitor loops (controller %s:%d)", e.cfg.PLC.Address, e.cfg.PLC.Port)
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		e.linkLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		e.hostLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		e.visionLoop(ctx)
	}()
	wg.Wait()
	log.Println("[Engine] all monitor loops stopped")
}

// waitCycle sleeps for d but wakes early on lockdown or cancellation, so
// shutdown latency is bounded by the loop body, not the sleep.
func (e *Engine) waitCycle(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-e.state.LockdownSignal():
	case <-ctx.Done():
	}
}

// truncate bounds err text destined for the shared log.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
