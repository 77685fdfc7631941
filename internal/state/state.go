// Mutex-guarded shared state for the sentinel monitor loops
package state

import (
	"sync"
	"time"
)

// LinkStatus is the connectivity state machine for the controller link.
// CONNECTING -> ONLINE <-> OFFLINE; ISOLATED is terminal and no transition
// leaves it.
type LinkStatus string

const (
	LinkConnecting LinkStatus = "CONNECTING"
	LinkOffline    LinkStatus = "OFFLINE"
	LinkOnline     LinkStatus = "ONLINE"
	LinkIsolated   LinkStatus = "ISOLATED"
)

// Verdict is the binary classification produced by the inference loop.
type Verdict string

const (
	VerdictSecure Verdict = "SECURE"
	VerdictAttack Verdict = "ATTACK"
)

// LogCapacity bounds the register stream ring; the oldest line is evicted first.
const LogCapacity = 50

// HostStats holds the latest host utilization sample. Overwritten, no history.
type HostStats struct {
	CPUPercent float64 `json:"cpu_percent"`
	RAMPercent float64 `json:"ram_percent"`
}

// Analysis holds the latest inference rationale and verdict.
type Analysis struct {
	Text    string    `json:"text"`
	Verdict Verdict   `json:"verdict"`
	At      time.Time `json:"at"`
}

// Snapshot is a point-in-time copy of every field. Readers may retain it
// freely; it shares no memory with the live state.
type Snapshot struct {
	Logs       []string   `json:"logs"`
	LinkStatus LinkStatus `json:"link_status"`
	Host       HostStats  `json:"host"`
	Analysis   Analysis   `json:"analysis"`
	Lockdown   bool       `json:"lockdown"`
	IncidentID string     `json:"incident_id,omitempty"`
}

// State aggregates the telemetry log, link status, host stats, analysis
// verdict, and lockdown flag behind one lock. Each mutator runs in a single
// critical section, so no reader ever observes a partial update. Callers
// never touch fields directly.
type State struct {
	mu         sync.RWMutex
	logs       []string
	linkStatus LinkStatus
	host       HostStats
	analysis   Analysis
	lockdown   bool
	incidentID string
	lockdownCh chan struct{}
}

// New returns a State with startup defaults: CONNECTING link, secure verdict,
// empty log, lockdown unset.
func New() *State {
	return &State{
		linkStatus: LinkConnecting,
		analysis:   Analysis{Text: "Initializing industrial defense...", Verdict: VerdictSecure},
		lockdownCh: make(chan struct{}),
	}
}

// AppendLog pushes a line onto the register stream ring.
func (s *State) AppendLog(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, line)
	if len(s.logs) > LogCapacity {
		s.logs = s.logs[1:]
	}
}

// SetLinkStatus overwrites the link status. ISOLATED is monotonic: once
// reached, later writes are ignored.
func (s *State) SetLinkStatus(status LinkStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.linkStatus == LinkIsolated {
		return
	}
	s.linkStatus = status
}

// SetHostStats overwrites the host utilization sample.
func (s *State) SetHostStats(cpu, ram float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.host = HostStats{CPUPercent: cpu, RAMPercent: ram}
}

// SetAnalysis overwrites the inference result. An ATTACK verdict latches the
// lockdown flag and closes the lockdown signal channel; the latch is
// idempotent and never resets within a run.
func (s *State) SetAnalysis(text string, verdict Verdict) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analysis = Analysis{Text: text, Verdict: verdict, At: time.Now().UTC()}
	if verdict == VerdictAttack && !s.lockdown {
		s.lockdown = true
		close(s.lockdownCh)
	}
}

// SetIncidentID records the identifier minted by the kill-switch.
func (s *State) SetIncidentID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidentID = id
}

// Lockdown reports whether the lockdown flag has latched.
func (s *State) Lockdown() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lockdown
}

// LockdownSignal returns a channel that is closed when lockdown latches.
// Loops select on it instead of re-polling the flag every iteration.
func (s *State) LockdownSignal() <-chan struct{} {
	return s.lockdownCh
}

// Snapshot returns a deep copy of all fields under one read lock.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	logs := make([]string, len(s.logs))
	copy(logs, s.logs)
	return Snapshot{
		Logs:       logs,
		LinkStatus: s.linkStatus,
		Host:       s.host,
		Analysis:   s.analysis,
		Lockdown:   s.lockdown,
		IncidentID: s.incidentID,
	}
}
