package track

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/mpapenbr/trackprogress/pkg/model"
)

var (
	ErrDegenerateTrack = errors.New("degenerate track")
	ErrInvalidWaypoint = errors.New("invalid waypoint")
)

// Checkpoint is a waypoint with its precomputed distance and reward data.
type Checkpoint struct {
	Index               int
	Position            r2.Vec
	CaptureRadius       float64
	DistanceToPrevious  float64
	AccumulatedDistance float64
	// fraction of the track length this checkpoint alone contributes
	RewardValue       float64
	AccumulatedReward float64
}

// Ledger holds the checkpoints of a track.
// Apart from the visibility flags it is immutable and may be shared
// between sessions.
type Ledger struct {
	checkpoints []Checkpoint
	visible     []atomic.Bool
	length      float64
}

// BuildLedger computes distances and reward weights for the given waypoints.
func BuildLedger(waypoints []model.Waypoint) (*Ledger, error) {
	if len(waypoints) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 checkpoints, got %d",
			ErrDegenerateTrack, len(waypoints))
	}
	for i, w := range waypoints {
		if !isFinite(w.Position.X) || !isFinite(w.Position.Y) {
			return nil, fmt.Errorf("%w: checkpoint %d has non-finite position",
				ErrInvalidWaypoint, i)
		}
		if !(w.CaptureRadius > 0) || math.IsInf(w.CaptureRadius, 0) {
			return nil, fmt.Errorf("%w: checkpoint %d has capture radius %v",
				ErrInvalidWaypoint, i, w.CaptureRadius)
		}
	}

	cps := make([]Checkpoint, len(waypoints))
	for i, w := range waypoints {
		cps[i] = Checkpoint{Index: i, Position: w.Position, CaptureRadius: w.CaptureRadius}
	}
	// first checkpoint is the start line
	for i := 1; i < len(cps); i++ {
		cps[i].DistanceToPrevious = r2.Norm(r2.Sub(cps[i].Position, cps[i-1].Position))
		cps[i].AccumulatedDistance = cps[i-1].AccumulatedDistance + cps[i].DistanceToPrevious
	}

	length := cps[len(cps)-1].AccumulatedDistance
	if !(length > 0) || math.IsInf(length, 0) {
		return nil, fmt.Errorf("%w: track length is %v", ErrDegenerateTrack, length)
	}

	for i := 1; i < len(cps); i++ {
		rv := cps[i].AccumulatedDistance/length - cps[i-1].AccumulatedReward
		// rounding on zero length segments may produce tiny negative values
		if rv < 0 {
			rv = 0
		}
		cps[i].RewardValue = rv
		cps[i].AccumulatedReward = cps[i-1].AccumulatedReward + cps[i].RewardValue
	}

	ret := &Ledger{
		checkpoints: cps,
		visible:     make([]atomic.Bool, len(cps)),
		length:      length,
	}
	for i := range ret.visible {
		ret.visible[i].Store(true)
	}
	return ret, nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Len returns the number of checkpoints
func (l *Ledger) Len() int { return len(l.checkpoints) }

// Length returns the track length (accumulated distance of the last checkpoint)
func (l *Ledger) Length() float64 { return l.length }

func (l *Ledger) Checkpoint(i int) Checkpoint { return l.checkpoints[i] }

// Checkpoints returns a copy of all checkpoints
func (l *Ledger) Checkpoints() []Checkpoint {
	ret := make([]Checkpoint, len(l.checkpoints))
	copy(ret, l.checkpoints)
	return ret
}

// RewardForOvershoot returns the partial reward of checkpoint i for a car at
// distance d from it. The reward scales linearly from 0 (car is as far away
// as the previous checkpoint) to RewardValue (car at the checkpoint).
// Zero length segments yield 0.
func (l *Ledger) RewardForOvershoot(i int, d float64) float64 {
	cp := l.checkpoints[i]
	if cp.DistanceToPrevious <= 0 || cp.RewardValue <= 0 {
		return 0
	}
	completePerc := (cp.DistanceToPrevious - d) / cp.DistanceToPrevious
	switch {
	case math.IsNaN(completePerc), completePerc <= 0:
		return 0
	case completePerc >= 1:
		return cp.RewardValue
	default:
		return completePerc * cp.RewardValue
	}
}

// SetVisible toggles the presentation flag of checkpoint i.
func (l *Ledger) SetVisible(i int, visible bool) { l.visible[i].Store(visible) }

func (l *Ledger) Visible(i int) bool { return l.visible[i].Load() }

func (l *Ledger) HideAll() {
	for i := range l.visible {
		l.visible[i].Store(false)
	}
}
