//nolint:funlen // ok for tests
package sim

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/mpapenbr/trackprogress/pkg/model"
	"github.com/mpapenbr/trackprogress/pkg/session"
	"github.com/mpapenbr/trackprogress/testsupport/basedata"
)

func newRunner(t *testing.T, cars int, tracks []model.Track, opts ...PrototypeOption) *Runner {
	t.Helper()
	sessions := []*session.Session{}
	for _, tr := range tracks {
		s, err := session.NewFromTrack(tr, NewDriverPrototype(tr, opts...))
		require.NoError(t, err)
		sessions = append(sessions, s)
	}
	m, err := session.NewManager(sessions)
	require.NoError(t, err)
	require.NoError(t, m.SetCarCount(cars))
	return NewRunner(m, WithRunID("test-run"))
}

func drivers(s *session.Session) []*Driver {
	ret := []*Driver{}
	for rc := range s.Cars() {
		ret = append(ret, rc.Car.(*Driver))
	}
	return ret
}

func TestDriver_Step(t *testing.T) {
	tr := basedata.TriangleTrack()
	p := NewDriverPrototype(tr, WithSpeed(4, 4))
	car, err := p.Clone(tr.Start)
	require.NoError(t, err)
	d := car.(*Driver)

	assert.True(t, d.Enabled())
	d.Step()
	assert.Equal(t, r2.Vec{X: 4, Y: 0}, d.Position())
	assert.InDelta(t, 0, d.Rotation(), 1e-9)
	d.Step()
	d.Step()
	assert.Equal(t, r2.Vec{X: 10, Y: 0}, d.Position(), "driver must not overshoot its target")
	d.Step()
	assert.Equal(t, r2.Vec{X: 10, Y: 0}, d.Position(), "driver waits until the target is captured")

	d.CheckpointCaptured()
	d.Step()
	assert.Equal(t, r2.Vec{X: 10, Y: 4}, d.Position())
	assert.InDelta(t, math.Pi/2, d.Rotation(), 1e-9)

	d.CheckpointCaptured()
	assert.True(t, d.Finished())
	assert.False(t, d.Enabled())

	d.Restart(model.Pose{Position: r2.Vec{X: 1, Y: 1}, Rotation: 0.5})
	assert.True(t, d.Enabled())
	assert.False(t, d.Finished())
	assert.Equal(t, r2.Vec{X: 1, Y: 1}, d.Position())
	assert.Equal(t, 0, d.Steps())

	d.Destroy()
	d.Restart(tr.Start)
	assert.False(t, d.Enabled(), "destroyed drivers stay disabled")
}

func TestDriverPrototype_Deterministic(t *testing.T) {
	tr := basedata.SquareTrack()
	speeds := func(seed uint64) []float64 {
		p := NewDriverPrototype(tr, WithSeed(seed), WithSpeed(2, 1))
		ret := []float64{}
		for range 5 {
			car, err := p.Clone(tr.Start)
			require.NoError(t, err)
			ret = append(ret, car.(*Driver).Speed())
		}
		return ret
	}
	first := speeds(42)
	assert.Equal(t, first, speeds(42))
	assert.NotEqual(t, first, speeds(43))
	for _, v := range first {
		assert.GreaterOrEqual(t, v, 1.0)
		assert.LessOrEqual(t, v, 2.0)
	}
}

func TestRunner_RunToFinish(t *testing.T) {
	r := newRunner(t, 2, []model.Track{basedata.StraightTrack()}, WithSpeed(10, 10))

	done, err := r.Run(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 10, done)
	assert.False(t, r.Active())

	snaps := r.Snapshots()
	require.Len(t, snaps, 1)
	assert.Equal(t, "test-run", snaps[0].RunID)
	assert.Equal(t, "straight", snaps[0].TrackName)
	assert.Equal(t, uint64(10), snaps[0].Tick)
	for _, st := range snaps[0].Standings {
		assert.InDelta(t, 1.0, st.Reward, 1e-9)
		assert.Equal(t, 3, st.CheckpointIndex)
		assert.False(t, st.Enabled)
	}
}

func TestRunner_MaxSteps(t *testing.T) {
	r := newRunner(t, 1,
		[]model.Track{basedata.StraightTrack(), basedata.TriangleTrack()},
		WithSpeed(10, 10), WithMaxSteps(3))

	done, err := r.Run(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 3, done)

	straight, ok := r.Manager().Session("straight")
	require.True(t, ok)
	best, ok := straight.Best()
	require.True(t, ok)
	assert.InDelta(t, 0.3, best.CompletionReward(), 1e-9)

	triangle, ok := r.Manager().Session("triangle")
	require.True(t, ok)
	best, ok = triangle.Best()
	require.True(t, ok)
	assert.InDelta(t, 1.0, best.CompletionReward(), 1e-9, "triangle is done after 2 steps")
}

func TestRunner_RankingFollowsSpeed(t *testing.T) {
	r := newRunner(t, 4, []model.Track{basedata.SquareTrack()}, WithSpeed(0.5, 2), WithSeed(7))
	_, err := r.Run(context.Background(), 8)
	require.NoError(t, err)

	s := r.Manager().Sessions()[0]
	best, ok := s.Best()
	require.True(t, ok)
	var fastest *session.RaceCar
	for rc := range s.Cars() {
		if fastest == nil || rc.Car.(*Driver).Speed() > fastest.Car.(*Driver).Speed() {
			fastest = rc
		}
		assert.GreaterOrEqual(t, best.CompletionReward(), rc.CompletionReward())
	}
	// faster drivers never fall behind, they may only tie at a checkpoint
	assert.InDelta(t, best.CompletionReward(), fastest.CompletionReward(), 1e-9)

	require.NoError(t, r.Manager().Restart())
	_, ok = s.Best()
	assert.False(t, ok)
	for _, d := range drivers(s) {
		assert.Equal(t, r2.Vec{}, d.Position())
	}
}

func TestRunner_Cancelled(t *testing.T) {
	r := newRunner(t, 1, []model.Track{basedata.StraightTrack()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done, err := r.Run(ctx, 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, done)
}
