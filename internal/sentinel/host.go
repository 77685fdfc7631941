// Host resource monitor
package sentinel

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// GopsutilSampler samples CPU and memory utilization via gopsutil.
type GopsutilSampler struct{}

// Sample blocks for the window while measuring CPU, then reads current
// memory utilization.
func (GopsutilSampler) Sample(ctx context.Context, window time.Duration) (float64, float64, error) {
	pcts, err := cpu.PercentWithContext(ctx, window, false)
	if err != nil {
		return 0, 0, err
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, 0, err
	}
	var cpuPct float64
	if len(pcts) > 0 {
		cpuPct = pcts[0]
	}
	return cpuPct, vm.UsedPercent, nil
}

// hostLoop writes host utilization into the shared state until lockdown or
// cancellation. Sampling errors are swallowed; this telemetry is best-effort
// and never fatal.
func (e *Engine) hostLoop(ctx context.Context) {
	window := e.cfg.Host.SampleInterval.Std()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.state.LockdownSignal():
			return
		default:
		}
		cpuPct, ramPct, err := e.deps.Sampler.Sample(ctx, window)
		if err != nil {
			// The blocking CPU window normally paces this loop; keep the
			// cadence when a sample fails fast.
			e.waitCycle(ctx, window)
			continue
		}
		e.state.SetHostStats(cpuPct, ramPct)
	}
}
