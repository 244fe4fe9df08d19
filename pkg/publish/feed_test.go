//nolint:funlen // ok for tests
package publish

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/mpapenbr/trackprogress/pkg/model"
	"github.com/mpapenbr/trackprogress/pkg/session"
	"github.com/mpapenbr/trackprogress/testsupport/basedata"
)

type parkedCar struct {
	pos r2.Vec
}

func (c *parkedCar) Position() r2.Vec         { return c.pos }
func (c *parkedCar) Enabled() bool            { return true }
func (c *parkedCar) CheckpointCaptured()      {}
func (c *parkedCar) Restart(start model.Pose) { c.pos = start.Position }
func (c *parkedCar) Destroy()                 {}

func newSession(t *testing.T, positions ...float64) (*session.Session, []*session.RaceCar) {
	t.Helper()
	cars := []*parkedCar{}
	proto := session.PrototypeFunc(func(start model.Pose) (session.Car, error) {
		c := &parkedCar{pos: start.Position}
		cars = append(cars, c)
		return c, nil
	})
	s, err := session.NewFromTrack(basedata.StraightTrack(), proto)
	require.NoError(t, err)
	require.NoError(t, s.SetCarCount(len(positions)))
	for i, x := range positions {
		cars[i].pos = r2.Vec{X: x}
	}
	ret := []*session.RaceCar{}
	for rc := range s.Cars() {
		ret = append(ret, rc)
	}
	return s, ret
}

func receive(t *testing.T, ch <-chan model.RankingEvent) model.RankingEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed unexpectedly")
		return ev
	case <-time.After(2 * time.Second):
		require.FailNow(t, "timeout waiting for ranking event")
	}
	return model.RankingEvent{}
}

func TestRankingFeed(t *testing.T) {
	s, cars := newSession(t, 30, 45)
	feed := NewRankingFeed(
		WithClock(basedata.TestTime),
		WithSendTimeout(time.Second))
	defer feed.Close()
	feed.Attach(s)
	sub := feed.Subscribe()

	s.Tick()
	got := []model.RankingEvent{receive(t, sub), receive(t, sub), receive(t, sub)}
	want := []model.RankingEvent{
		{
			TrackName: "straight", Slot: model.SlotBest, CarID: cars[0].ID.String(),
			Reward: 0.3, Tick: 1, Timestamp: basedata.TestTime(),
		},
		{
			TrackName: "straight", Slot: model.SlotBest, CarID: cars[1].ID.String(),
			Reward: 0.45, Tick: 1, Timestamp: basedata.TestTime(),
		},
		{
			TrackName: "straight", Slot: model.SlotSecondBest, CarID: cars[0].ID.String(),
			Reward: 0.3, Tick: 1, Timestamp: basedata.TestTime(),
		},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("ranking events mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, s.Restart())
	cleared := []model.RankingEvent{receive(t, sub), receive(t, sub)}
	for _, ev := range cleared {
		assert.Empty(t, ev.CarID)
		assert.Zero(t, ev.Reward)
	}
	assert.ElementsMatch(t,
		[]model.RankingSlot{model.SlotBest, model.SlotSecondBest},
		[]model.RankingSlot{cleared[0].Slot, cleared[1].Slot})
	assert.Zero(t, feed.Dropped())
}

func TestRankingFeed_Closed(t *testing.T) {
	s, _ := newSession(t, 30, 40, 45)
	feed := NewRankingFeed()
	feed.Attach(s)
	feed.Close()
	feed.Close()

	// events after Close are discarded without counting
	s.Tick()
	assert.Zero(t, feed.Dropped())

	_, ok := <-feed.Subscribe()
	assert.False(t, ok)
}
