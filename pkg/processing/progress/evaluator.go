package progress

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/mpapenbr/trackprogress/log"
	"github.com/mpapenbr/trackprogress/pkg/track"
)

// CaptureFunc is called for every checkpoint captured during an evaluation.
// The argument is the index of the captured checkpoint.
type CaptureFunc func(checkpoint int)

// Evaluator computes the completion reward of cars on one track.
type Evaluator struct {
	ledger *track.Ledger
	l      *log.Logger
}

type Option func(e *Evaluator)

func WithLogger(l *log.Logger) Option {
	return func(e *Evaluator) {
		e.l = l
	}
}

func NewEvaluator(ledger *track.Ledger, opts ...Option) *Evaluator {
	ret := &Evaluator{
		ledger: ledger,
		l:      log.Default().Named("progress"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Evaluate returns the completion reward for a car at pos whose next
// checkpoint to capture is idx, together with the updated index.
// All checkpoints within reach are captured in one call, each one reported
// via onCapture (may be nil). Once every checkpoint is captured the reward
// is 1 and the index stays at the ledger length.
func (e *Evaluator) Evaluate(pos r2.Vec, idx int, onCapture CaptureFunc) (reward float64, newIdx int) {
	if idx < 1 {
		e.violation(fmt.Sprintf("checkpoint index %d below 1", idx))
		idx = 1
	}
	n := e.ledger.Len()
	if idx > n {
		e.violation(fmt.Sprintf("checkpoint index %d beyond ledger length %d", idx, n))
		idx = n
	}

	// each iteration either returns or advances idx, so at most n-1 rounds
	for idx < n {
		cp := e.ledger.Checkpoint(idx)
		d := r2.Norm(r2.Sub(pos, cp.Position))
		// also true for NaN distances, those never capture
		if !(d <= cp.CaptureRadius) {
			prev := e.ledger.Checkpoint(idx - 1)
			return prev.AccumulatedReward + e.ledger.RewardForOvershoot(idx, d), idx
		}
		idx++
		if onCapture != nil {
			onCapture(cp.Index)
		}
	}
	return 1, idx
}

func (e *Evaluator) violation(msg string) {
	if strictInvariants {
		panic(msg)
	}
	e.l.Warn("invariant violation, value clamped", log.String("detail", msg))
}
