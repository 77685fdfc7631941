// Anomaly inference loop
package sentinel

import (
	"context"
	"log"

	"sentinelx/internal/state"
	"sentinelx/internal/vision"
)

// Fixed degraded-mode analyses. Each pins the verdict at SECURE: inference
// availability problems never escalate to lockdown.
const (
	noCredentialAnalysis = "CRITICAL: NO API CREDENTIAL CONFIGURED"
	accessErrorAnalysis  = "API ACCESS ERROR: CHECK MODEL AVAILABILITY"
	noDeviceAnalysis     = "SENSING DEVICE UNAVAILABLE"
)

// visionLoop cross-references the physical environment against the digital
// readings. It captures a frame, submits it to the inference service, parses
// the verdict, and publishes the analysis; an ATTACK verdict latches lockdown
// through the state's side effect.
func (e *Engine) visionLoop(ctx context.Context) {
	if e.deps.Classifier == nil {
		e.state.SetAnalysis(noCredentialAnalysis, state.VerdictSecure)
		return
	}

	if p, ok := e.deps.Classifier.(vision.Prober); ok {
		probeCtx, cancel := context.WithTimeout(ctx, e.cfg.Vision.RequestTimeout.Std())
		model, err := p.Probe(probeCtx, e.cfg.Vision.Models)
		cancel()
		if err != nil {
			e.state.SetAnalysis(accessErrorAnalysis, state.VerdictSecure)
			return
		}
		e.state.AppendLog("[VISION] Connected to " + model)
	}

	if e.deps.Frames == nil {
		e.state.SetAnalysis(noDeviceAnalysis, state.VerdictSecure)
		return
	}
	defer e.deps.Frames.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.state.LockdownSignal():
			log.Println("[Vision] lockdown observed, inference loop stopping")
			return
		default:
		}

		frame, err := e.deps.Frames.Grab(ctx)
		if err != nil {
			// Capture misses are retryable indefinitely.
			e.waitCycle(ctx, e.cfg.Vision.CaptureRetry.Std())
			continue
		}

		analysis, err := e.classifyWithRetry(ctx, frame)
		if err != nil {
			e.state.SetAnalysis("REASONING DELAY: "+truncate(err.Error(), 30), state.VerdictSecure)
		} else {
			e.state.SetAnalysis(analysis.Rationale, analysis.Verdict)
		}

		e.waitCycle(ctx, e.cfg.Vision.CaptureInterval.Std())
	}
}

// classifyWithRetry submits the frame once, and once more after a backoff if
// the service rate-limited the first attempt. Any other failure is handed
// back to the caller's delay reporting.
func (e *Engine) classifyWithRetry(ctx context.Context, frame []byte) (vision.Analysis, error) {
	analysis, err := e.classify(ctx, frame)
	if err != nil && vision.Kind(err) == vision.FailRateLimited {
		e.waitCycle(ctx, e.cfg.Vision.RateLimitBackoff.Std())
		analysis, err = e.classify(ctx, frame)
	}
	return analysis, err
}

func (e *Engine) classify(ctx context.Context, frame []byte) (vision.Analysis, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.cfg.Vision.RequestTimeout.Std())
	defer cancel()
	return e.deps.Classifier.Classify(reqCtx, frame)
}
