// Physical-anomaly classification against the control-plane reading
package vision

import (
	"context"
	"strings"

	"sentinelx/internal/state"
)

// attackToken is the literal marker the model is instructed to emit. Verdict
// parsing is a plain case-insensitive substring match on this token; nothing
// else in the response influences the verdict.
const attackToken = "VERDICT: ATTACK"

// Prompt is submitted with every frame. The digital reading is asserted as
// normal, so any visual evidence of fire, smoke, mist, or liquid is a
// physical-digital discrepancy.
const Prompt = "Role: Industrial Safety Agent. " +
	"Analyze environment for Physical-Digital Discrepancies. " +
	"Current Data: Normal operation. " +
	"If you see: Fire, Smoke, Mist, or Liquid when data says 'Normal', flag as ATTACK. " +
	"Format: Reasoning: <1 sentence> Verdict: <VERDICT: SECURE or VERDICT: ATTACK>"

// Analysis carries the model's free-text rationale with the parsed verdict.
type Analysis struct {
	Rationale string
	Verdict   state.Verdict
}

// Classifier turns one frame into an analysis. Implementations own the
// transport; the verdict rule lives in ParseVerdict so it stays independently
// testable.
type Classifier interface {
	Classify(ctx context.Context, frame []byte) (Analysis, error)
}

// Prober is implemented by classifiers that must bind a model before use.
// The first candidate that answers becomes the session's model.
type Prober interface {
	Probe(ctx context.Context, candidates []string) (string, error)
}

// ParseVerdict scans a model response for the literal attack token. Absence
// of the token, including garbled or empty responses, is SECURE: inference
// problems never escalate.
func ParseVerdict(text string) state.Verdict {
	if strings.Contains(strings.ToUpper(text), attackToken) {
		return state.VerdictAttack
	}
	return state.VerdictSecure
}
