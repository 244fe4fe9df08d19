//nolint:funlen // ok for tests
package session

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/mpapenbr/trackprogress/pkg/model"
	"github.com/mpapenbr/trackprogress/testsupport/basedata"
)

type fakeCar struct {
	id        int
	pos       r2.Vec
	disabled  bool
	captured  int
	restarts  int
	destroyed bool
}

func (c *fakeCar) Position() r2.Vec { return c.pos }
func (c *fakeCar) Enabled() bool    { return !c.disabled }
func (c *fakeCar) CheckpointCaptured() {
	c.captured++
}

func (c *fakeCar) Restart(start model.Pose) {
	c.pos = start.Position
	c.restarts++
}
func (c *fakeCar) Destroy() { c.destroyed = true }

type fakePrototype struct {
	created   []*fakeCar
	destroyed []int
	failAfter int // fail when this many cars exist, 0 disables
}

func (p *fakePrototype) Clone(start model.Pose) (Car, error) {
	if p.failAfter > 0 && len(p.created) >= p.failAfter {
		return nil, errors.New("out of cars")
	}
	c := &fakeCar{id: len(p.created), pos: start.Position}
	p.created = append(p.created, c)
	return &destroyRecorder{fakeCar: c, proto: p}, nil
}

// records destruction order at the prototype
type destroyRecorder struct {
	*fakeCar
	proto *fakePrototype
}

func (d *destroyRecorder) Destroy() {
	d.fakeCar.Destroy()
	d.proto.destroyed = append(d.proto.destroyed, d.id)
}

func fake(rc *RaceCar) *fakeCar {
	return rc.Car.(*destroyRecorder).fakeCar
}

func newTestSession(t *testing.T, tr model.Track, opts ...Option) (*Session, *fakePrototype) {
	t.Helper()
	proto := &fakePrototype{}
	s, err := NewFromTrack(tr, proto, opts...)
	require.NoError(t, err)
	return s, proto
}

func rosterIDs(s *Session) []int {
	ret := []int{}
	for rc := range s.Cars() {
		ret = append(ret, fake(rc).id)
	}
	return ret
}

func TestNew_Errors(t *testing.T) {
	_, err := New("x", nil, model.Pose{}, &fakePrototype{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewFromTrack(model.Track{Name: "empty"}, &fakePrototype{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")

	s, _ := newTestSession(t, basedata.TriangleTrack())
	_, err = New("x", s.Ledger(), model.Pose{}, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSession_SetCarCount(t *testing.T) {
	s, proto := newTestSession(t, basedata.TriangleTrack())

	require.NoError(t, s.SetCarCount(5))
	assert.Equal(t, 5, s.CarCount())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, rosterIDs(s))
	for rc := range s.Cars() {
		assert.Equal(t, 1, rc.CheckpointIndex)
		assert.Equal(t, s.Start().Position, rc.Car.Position())
	}

	require.NoError(t, s.SetCarCount(2))
	assert.Equal(t, []int{0, 1}, rosterIDs(s))
	assert.Equal(t, []int{4, 3, 2}, proto.destroyed)

	// no-op
	require.NoError(t, s.SetCarCount(2))
	assert.Len(t, proto.created, 5)
	assert.Len(t, proto.destroyed, 3)

	require.NoError(t, s.SetCarCount(0))
	assert.Zero(t, s.CarCount())
}

func TestSession_SetCarCount_Negative(t *testing.T) {
	s, _ := newTestSession(t, basedata.TriangleTrack())
	require.NoError(t, s.SetCarCount(3))
	err := s.SetCarCount(-1)
	assert.ErrorIs(t, err, ErrNegativeCarCount)
	assert.Equal(t, 3, s.CarCount())
}

func TestSession_SetCarCount_CloneFailure(t *testing.T) {
	s, proto := newTestSession(t, basedata.TriangleTrack())
	require.NoError(t, s.SetCarCount(2))
	proto.failAfter = 3

	err := s.SetCarCount(5)
	require.Error(t, err)
	assert.Equal(t, 2, s.CarCount())
	assert.Equal(t, []int{2}, proto.destroyed)
}

func TestSession_Tick(t *testing.T) {
	s, _ := newTestSession(t, basedata.StraightTrack())
	require.NoError(t, s.SetCarCount(3))
	cars := slices.Collect(s.Cars())
	fake(cars[0]).pos = r2.Vec{X: 50, Y: 0}
	fake(cars[1]).pos = r2.Vec{X: 90, Y: 0}
	fake(cars[2]).pos = r2.Vec{X: 30, Y: 0}

	s.Tick()

	assert.InDelta(t, 0.5, cars[0].CompletionReward(), 1e-9)
	assert.InDelta(t, 0.9, cars[1].CompletionReward(), 1e-9)
	assert.InDelta(t, 0.3, cars[2].CompletionReward(), 1e-9)
	assert.Equal(t, []int{2, 2, 1}, []int{
		cars[0].CheckpointIndex, cars[1].CheckpointIndex, cars[2].CheckpointIndex,
	})
	assert.Equal(t, 1, fake(cars[0]).captured)
	assert.Equal(t, 1, fake(cars[1]).captured)
	assert.Equal(t, 0, fake(cars[2]).captured)

	best, _ := s.Best()
	second, _ := s.SecondBest()
	assert.Same(t, cars[1], best)
	assert.Same(t, cars[0], second)
	assert.Equal(t, uint64(1), s.TickCount())
}

func TestSession_Tick_Finish(t *testing.T) {
	s, _ := newTestSession(t, basedata.StraightTrack())
	require.NoError(t, s.SetCarCount(1))
	rc := slices.Collect(s.Cars())[0]

	// captures checkpoint 1 and 2 in consecutive ticks
	fake(rc).pos = r2.Vec{X: 50, Y: 1}
	s.Tick()
	fake(rc).pos = r2.Vec{X: 100, Y: 1}
	s.Tick()
	assert.Equal(t, 3, rc.CheckpointIndex)
	assert.Equal(t, 1.0, rc.CompletionReward())

	// terminal, no further captures
	s.Tick()
	assert.Equal(t, 2, fake(rc).captured)
	assert.Equal(t, 1.0, rc.CompletionReward())
}

func TestSession_Tick_SkipsDisabled(t *testing.T) {
	s, _ := newTestSession(t, basedata.StraightTrack())
	require.NoError(t, s.SetCarCount(2))
	cars := slices.Collect(s.Cars())
	fake(cars[0]).pos = r2.Vec{X: 90, Y: 0}
	fake(cars[0]).disabled = true
	fake(cars[1]).pos = r2.Vec{X: 10, Y: 0}

	s.Tick()
	assert.Zero(t, cars[0].CompletionReward())
	assert.Equal(t, 1, cars[0].CheckpointIndex)
	best, _ := s.Best()
	assert.Same(t, cars[1], best)
	_, ok := s.SecondBest()
	assert.False(t, ok)
}

func TestSession_Restart(t *testing.T) {
	s, _ := newTestSession(t, basedata.StraightTrack())
	require.NoError(t, s.SetCarCount(3))
	bestEvents := []*RaceCar{}
	secondEvents := []*RaceCar{}
	s.OnBestChanged(func(rc *RaceCar) { bestEvents = append(bestEvents, rc) })
	s.OnSecondBestChanged(func(rc *RaceCar) { secondEvents = append(secondEvents, rc) })

	for i, rc := range slices.Collect(s.Cars()) {
		fake(rc).pos = r2.Vec{X: 40 + float64(i)*20, Y: 0}
	}
	s.Tick()
	nBest, nSecond := len(bestEvents), len(secondEvents)

	require.NoError(t, s.Restart())
	_, okBest := s.Best()
	_, okSecond := s.SecondBest()
	assert.False(t, okBest)
	assert.False(t, okSecond)
	for rc := range s.Cars() {
		assert.Equal(t, 1, rc.CheckpointIndex)
		assert.Zero(t, rc.CompletionReward())
		assert.Equal(t, 1, fake(rc).restarts)
		assert.Equal(t, s.Start().Position, rc.Car.Position())
	}
	// exactly one clearing notification per slot
	assert.Equal(t, []*RaceCar{nil}, bestEvents[nBest:])
	assert.Equal(t, []*RaceCar{nil}, secondEvents[nSecond:])
}

func TestSession_MidTickMutation(t *testing.T) {
	s, _ := newTestSession(t, basedata.StraightTrack())
	require.NoError(t, s.SetCarCount(2))
	var errs []error
	s.OnBestChanged(func(*RaceCar) {
		errs = append(errs, s.SetCarCount(0), s.Restart())
	})
	s.Tick()
	require.NotEmpty(t, errs)
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrMidTick)
	}
	assert.Equal(t, 2, s.CarCount())
	// allowed again after the tick
	assert.NoError(t, s.SetCarCount(1))
}

func TestSession_ShrinkRemovesRankedCar(t *testing.T) {
	s, _ := newTestSession(t, basedata.StraightTrack())
	require.NoError(t, s.SetCarCount(3))
	cars := slices.Collect(s.Cars())
	fake(cars[0]).pos = r2.Vec{X: 20, Y: 0}
	fake(cars[1]).pos = r2.Vec{X: 30, Y: 0}
	fake(cars[2]).pos = r2.Vec{X: 60, Y: 0}
	s.Tick()
	best, _ := s.Best()
	require.Same(t, cars[2], best)

	require.NoError(t, s.SetCarCount(2))
	best, _ = s.Best()
	assert.Same(t, cars[1], best)
	_, ok := s.SecondBest()
	assert.False(t, ok)
}

func TestSession_Standings(t *testing.T) {
	s, _ := newTestSession(t, basedata.StraightTrack())
	require.NoError(t, s.SetCarCount(3))
	cars := slices.Collect(s.Cars())
	fake(cars[0]).pos = r2.Vec{X: 20, Y: 0}
	fake(cars[1]).pos = r2.Vec{X: 70, Y: 0}
	fake(cars[2]).pos = r2.Vec{X: 20, Y: 0}
	s.Tick()

	got := s.Standings()
	require.Len(t, got, 3)
	assert.Equal(t, cars[1].ID.String(), got[0].CarID)
	assert.Equal(t, cars[0].ID.String(), got[1].CarID)
	assert.Equal(t, cars[2].ID.String(), got[2].CarID)
	assert.Equal(t, []int{1, 2, 3}, []int{got[0].Rank, got[1].Rank, got[2].Rank})
	assert.Equal(t, 2, got[0].CheckpointIndex)
}

func TestSession_Metrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	s, _ := newTestSession(t, basedata.StraightTrack(), WithMeterProvider(mp))
	require.NoError(t, s.SetCarCount(1))
	fake(slices.Collect(s.Cars())[0]).pos = r2.Vec{X: 60, Y: 0}
	s.Tick()
	s.Tick()

	rm := metricdata.ResourceMetrics{}
	require.NoError(t, reader.Collect(context.Background(), &rm))
	got := map[string]any{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				got[m.Name] = data.DataPoints[0].Value
			case metricdata.Gauge[int64]:
				got[m.Name] = data.DataPoints[0].Value
			case metricdata.Gauge[float64]:
				got[m.Name] = data.DataPoints[0].Value
			}
		}
	}
	assert.Equal(t, int64(2), got["tps.session.ticks"])
	assert.Equal(t, int64(1), got["tps.session.captures"])
	assert.Equal(t, int64(1), got["tps.session.cars"])
	assert.InDelta(t, 0.6, got["tps.session.best_reward"], 1e-9)
}
