// Control-link monitor and lockdown responder
package sentinel

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"sentinelx/internal/plc"
	"sentinelx/internal/state"
)

// linkLoop polls the controller registers on a fixed cadence and executes the
// kill-switch the first time it observes lockdown. State machine:
// CONNECTING -> ONLINE <-> OFFLINE, terminal ISOLATED.
func (e *Engine) linkLoop(ctx context.Context) {
	connected := false
	for {
		snap := e.state.Snapshot()
		if snap.Lockdown && snap.LinkStatus != state.LinkIsolated {
			e.killSwitch()
			return
		}
		if ctx.Err() != nil {
			if connected {
				_ = e.deps.Link.Close()
			}
			return
		}

		if !connected {
			if err := e.deps.Link.Connect(); err != nil {
				e.state.SetLinkStatus(state.LinkOffline)
				e.waitCycle(ctx, e.cfg.PLC.ReconnectBackoff.Std())
				continue
			}
			connected = true
		}
		e.state.SetLinkStatus(state.LinkOnline)

		reading, err := e.deps.Link.Read()
		switch {
		case err == nil:
			e.state.AppendLog(fmt.Sprintf("[%s] TEMP: %.2fC | PRES: %.1f PSI | STATUS: OK",
				time.Now().Format("15:04:05"), reading.Temperature, reading.Pressure))
		case errors.Is(err, plc.ErrProtocol):
			// Link is up, the controller answered with an exception. Status
			// stays ONLINE.
			e.state.AppendLog("[MODBUS] COMMS ERROR")
		default:
			e.state.AppendLog("[MODBUS EXCEPTION] " + truncate(err.Error(), 40))
			_ = e.deps.Link.Close()
			connected = false
		}

		e.waitCycle(ctx, e.cfg.PLC.PollInterval.Std())
	}
}

// killSwitch executes the isolation procedure exactly once per run:
// terminate the controller process (best-effort), sever the network link,
// and pin the link status at ISOLATED.
func (e *Engine) killSwitch() {
	e.mu.Lock()
	pid := e.plcPID
	e.mu.Unlock()

	if pid == 0 {
		if found, ok := e.deps.Reaper.Find(e.cfg.PLC.ProcessMatch); ok {
			pid = found
			e.SetControllerPID(found)
		}
	}
	if pid != 0 {
		if err := e.deps.Reaper.Kill(pid); err == nil {
			e.state.AppendLog(fmt.Sprintf("[SENTINEL] PHYSICAL ISOLATION: PID %d Terminated.", pid))
		}
	}

	_ = e.deps.Link.Close()

	incident := uuid.New().String()
	e.state.SetIncidentID(incident)
	e.state.SetLinkStatus(state.LinkIsolated)
	e.state.AppendLog("[SENTINEL] NETWORK CONNECTION SEVERED.")
	log.Printf("[Sentinel] lockdown executed, incident %s", incident)
}
