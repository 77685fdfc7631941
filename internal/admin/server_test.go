package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"sentinelx/internal/state"
)

type staticSource struct{ snap state.Snapshot }

func (s staticSource) Snapshot() state.Snapshot { return s.snap }

func TestHandleStatus(t *testing.T) {
	src := staticSource{snap: state.Snapshot{
		Logs:       []string{"[12:00:00] TEMP: 22.00C | PRES: 45.0 PSI | STATUS: OK"},
		LinkStatus: state.LinkOnline,
		Host:       state.HostStats{CPUPercent: 12.5, RAMPercent: 40.0},
		Analysis:   state.Analysis{Text: "VERDICT: SECURE", Verdict: state.VerdictSecure},
	}}
	server := NewServer(src)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	server.handleStatus(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var got state.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.LinkStatus != state.LinkOnline || len(got.Logs) != 1 {
		t.Errorf("unexpected snapshot: %+v", got)
	}
	if got.Host.CPUPercent != 12.5 {
		t.Errorf("cpu = %v, want 12.5", got.Host.CPUPercent)
	}
}

func TestHandleHealthz_Lockdown(t *testing.T) {
	server := NewServer(staticSource{snap: state.Snapshot{
		LinkStatus: state.LinkIsolated,
		Lockdown:   true,
	}})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	server.handleHealthz(w, req)

	if w.Result().StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 during lockdown", w.Result().StatusCode)
	}
}

func TestHandleHealthz_Nominal(t *testing.T) {
	server := NewServer(staticSource{snap: state.Snapshot{LinkStatus: state.LinkOnline}})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	server.handleHealthz(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Result().StatusCode)
	}
}
