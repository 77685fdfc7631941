package sentinel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"sentinelx/internal/config"
	"sentinelx/internal/plc"
	"sentinelx/internal/state"
)

// fakeLink scripts the control link for loop tests.
type fakeLink struct {
	mu        sync.Mutex
	connectFn func() error
	readFn    func() (plc.Reading, error)
	closes    int
}

func (f *fakeLink) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectFn != nil {
		return f.connectFn()
	}
	return nil
}

func (f *fakeLink) Read() (plc.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readFn != nil {
		return f.readFn()
	}
	return plc.Reading{Temperature: 22.00, Pressure: 45.0}, nil
}

func (f *fakeLink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeLink) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

// fakeReaper records kill-switch activity.
type fakeReaper struct {
	mu     sync.Mutex
	pid    int32
	found  bool
	killed []int32
	finds  int
}

func (f *fakeReaper) Find(match string) (int32, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finds++
	return f.pid, f.found
}

func (f *fakeReaper) Kill(pid int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = append(f.killed, pid)
	return nil
}

type fakeSampler struct{}

func (fakeSampler) Sample(ctx context.Context, window time.Duration) (float64, float64, error) {
	return 10, 20, nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.PLC.PollInterval = config.Duration(time.Millisecond)
	cfg.PLC.ReconnectBackoff = config.Duration(time.Millisecond)
	cfg.Vision.CaptureInterval = config.Duration(time.Millisecond)
	cfg.Vision.CaptureRetry = config.Duration(time.Millisecond)
	cfg.Vision.RateLimitBackoff = config.Duration(time.Millisecond)
	cfg.Host.SampleInterval = config.Duration(time.Millisecond)
	return cfg
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func hasLogContaining(snap state.Snapshot, substr string) bool {
	for _, l := range snap.Logs {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

func TestLinkLoop_OnlineReadAppendsLog(t *testing.T) {
	st := state.New()
	link := &fakeLink{}
	eng := New(testConfig(), st, Deps{Link: link, Reaper: &fakeReaper{}, Sampler: fakeSampler{}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		eng.linkLoop(ctx)
		close(done)
	}()

	waitFor(t, func() bool {
		snap := st.Snapshot()
		return snap.LinkStatus == state.LinkOnline && hasLogContaining(snap, "TEMP: 22.00C | PRES: 45.0 PSI | STATUS: OK")
	}, "ONLINE status and an OK telemetry line")

	cancel()
	<-done
}

func TestLinkLoop_ProtocolErrorKeepsStatus(t *testing.T) {
	st := state.New()
	link := &fakeLink{readFn: func() (plc.Reading, error) {
		return plc.Reading{}, fmt.Errorf("%w: exception 2", plc.ErrProtocol)
	}}
	eng := New(testConfig(), st, Deps{Link: link, Reaper: &fakeReaper{}, Sampler: fakeSampler{}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		eng.linkLoop(ctx)
		close(done)
	}()

	waitFor(t, func() bool {
		snap := st.Snapshot()
		return snap.LinkStatus == state.LinkOnline && hasLogContaining(snap, "[MODBUS] COMMS ERROR")
	}, "COMMS ERROR log with status still ONLINE")

	snap := st.Snapshot()
	if hasLogContaining(snap, "STATUS: OK") {
		t.Error("no OK line should appear while reads fail")
	}

	cancel()
	<-done
}

func TestLinkLoop_UnreachableStaysOffline(t *testing.T) {
	st := state.New()
	link := &fakeLink{connectFn: func() error { return errors.New("connection refused") }}
	eng := New(testConfig(), st, Deps{Link: link, Reaper: &fakeReaper{}, Sampler: fakeSampler{}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		eng.linkLoop(ctx)
		close(done)
	}()

	waitFor(t, func() bool {
		return st.Snapshot().LinkStatus == state.LinkOffline
	}, "OFFLINE status")

	// Let several backoff cycles pass; status must hold and no OK lines appear.
	time.Sleep(20 * time.Millisecond)
	snap := st.Snapshot()
	if snap.LinkStatus != state.LinkOffline {
		t.Errorf("status = %s, want OFFLINE", snap.LinkStatus)
	}
	if hasLogContaining(snap, "STATUS: OK") {
		t.Error("unexpected OK line while unreachable")
	}

	cancel()
	<-done
}

func TestLinkLoop_TransportErrorTruncatedAndReconnects(t *testing.T) {
	st := state.New()
	long := strings.Repeat("x", 100)
	link := &fakeLink{readFn: func() (plc.Reading, error) {
		return plc.Reading{}, errors.New(long)
	}}
	eng := New(testConfig(), st, Deps{Link: link, Reaper: &fakeReaper{}, Sampler: fakeSampler{}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		eng.linkLoop(ctx)
		close(done)
	}()

	waitFor(t, func() bool {
		return hasLogContaining(st.Snapshot(), "[MODBUS EXCEPTION] "+long[:40])
	}, "truncated transport error log")

	for _, l := range st.Snapshot().Logs {
		if strings.HasPrefix(l, "[MODBUS EXCEPTION] ") && len(l) > len("[MODBUS EXCEPTION] ")+40 {
			t.Errorf("transport error not truncated to 40 chars: %q", l)
		}
	}

	cancel()
	<-done
}

func TestLinkLoop_LockdownExecutesKillSwitch(t *testing.T) {
	st := state.New()
	link := &fakeLink{}
	reaper := &fakeReaper{pid: 4242, found: true}
	eng := New(testConfig(), st, Deps{Link: link, Reaper: reaper, Sampler: fakeSampler{}})

	// Latch lockdown before the loop starts; the first cycle must isolate.
	st.SetAnalysis("Reasoning: smoke detected. VERDICT: ATTACK", state.VerdictAttack)

	done := make(chan struct{})
	go func() {
		eng.linkLoop(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("link loop did not exit after lockdown")
	}

	snap := st.Snapshot()
	if snap.LinkStatus != state.LinkIsolated {
		t.Errorf("status = %s, want ISOLATED", snap.LinkStatus)
	}
	if !hasLogContaining(snap, "PHYSICAL ISOLATION: PID 4242 Terminated.") {
		t.Error("missing isolation log line")
	}
	if !hasLogContaining(snap, "NETWORK CONNECTION SEVERED.") {
		t.Error("missing severed log line")
	}
	if snap.IncidentID == "" {
		t.Error("incident ID not recorded")
	}
	reaper.mu.Lock()
	killed := append([]int32(nil), reaper.killed...)
	reaper.mu.Unlock()
	if len(killed) != 1 || killed[0] != 4242 {
		t.Errorf("killed = %v, want [4242]", killed)
	}
	if link.closeCount() == 0 {
		t.Error("link not closed by kill-switch")
	}
}

func TestKillSwitch_UsesPreseededPID(t *testing.T) {
	st := state.New()
	link := &fakeLink{}
	reaper := &fakeReaper{pid: 1, found: true}
	eng := New(testConfig(), st, Deps{Link: link, Reaper: reaper, Sampler: fakeSampler{}})
	eng.SetControllerPID(777)

	eng.killSwitch()

	reaper.mu.Lock()
	defer reaper.mu.Unlock()
	if reaper.finds != 0 {
		t.Error("kill-switch scanned despite a pre-seeded PID")
	}
	if len(reaper.killed) != 1 || reaper.killed[0] != 777 {
		t.Errorf("killed = %v, want [777]", reaper.killed)
	}
}

func TestKillSwitch_ProceedsWhenProcessNotFound(t *testing.T) {
	st := state.New()
	link := &fakeLink{}
	eng := New(testConfig(), st, Deps{Link: link, Reaper: &fakeReaper{}, Sampler: fakeSampler{}})

	eng.killSwitch()

	snap := st.Snapshot()
	if snap.LinkStatus != state.LinkIsolated {
		t.Errorf("status = %s, want ISOLATED even without a target process", snap.LinkStatus)
	}
	if !hasLogContaining(snap, "NETWORK CONNECTION SEVERED.") {
		t.Error("missing severed log line")
	}
	if link.closeCount() == 0 {
		t.Error("link must be closed regardless of process resolution")
	}
}
