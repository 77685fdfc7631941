// Host process discovery and termination for the kill-switch
package proc

import (
	"os"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// Reaper implements the engine's process interface on top of gopsutil.
type Reaper struct{}

// Find returns the PID of the first process whose launch command contains
// match, skipping the current process. Scan failures count as not found;
// discovery is best-effort.
func (Reaper) Find(match string) (int32, bool) {
	return find(match)
}

// Kill forcibly terminates pid. The caller treats failure (process already
// gone, insufficient privilege) as best-effort and proceeds with isolation.
func (Reaper) Kill(pid int32) error {
	p, err := process.NewProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}

func find(match string) (int32, bool) {
	procs, err := process.Processes()
	if err != nil {
		return 0, false
	}
	self := int32(os.Getpid())
	for _, p := range procs {
		if p.Pid == self {
			continue
		}
		cmdline, err := p.Cmdline()
		if err != nil || cmdline == "" {
			continue
		}
		if strings.Contains(cmdline, match) {
			return p.Pid, true
		}
	}
	return 0, false
}

// Scavenge kills every process matching match except the current one and
// returns how many were terminated. Run at startup so orphaned controller
// instances from a previous session cannot hold the Modbus port.
func Scavenge(match string) int {
	procs, err := process.Processes()
	if err != nil {
		return 0
	}
	self := int32(os.Getpid())
	killed := 0
	for _, p := range procs {
		if p.Pid == self {
			continue
		}
		cmdline, err := p.Cmdline()
		if err != nil || !strings.Contains(cmdline, match) {
			continue
		}
		if err := p.Kill(); err == nil {
			killed++
		}
	}
	return killed
}
