package publish

import (
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/mpapenbr/trackprogress/log"
	"github.com/mpapenbr/trackprogress/pkg/model"
	"github.com/mpapenbr/trackprogress/pkg/session"
	"github.com/mpapenbr/trackprogress/pkg/utils/broadcast"
)

// RankingFeed turns ranking changes of sessions into RankingEvents and fans
// them out to subscribers. Events are produced on the tick goroutine and
// dropped if the internal buffer is full.
type RankingFeed struct {
	source chan model.RankingEvent
	bs     broadcast.BroadcastServer[model.RankingEvent]
	now    func() time.Time
	l      *log.Logger
	mp     metric.MeterProvider
	buffer int
	// per subscriber, 0 keeps the broadcast default
	sendTimeout time.Duration

	mu      sync.Mutex
	closed  bool
	dropped int
}

type FeedOption func(f *RankingFeed)

func WithLogger(l *log.Logger) FeedOption {
	return func(f *RankingFeed) {
		f.l = l
	}
}

func WithClock(now func() time.Time) FeedOption {
	return func(f *RankingFeed) {
		f.now = now
	}
}

func WithBufferSize(n int) FeedOption {
	return func(f *RankingFeed) {
		f.buffer = n
	}
}

func WithSendTimeout(d time.Duration) FeedOption {
	return func(f *RankingFeed) {
		f.sendTimeout = d
	}
}

func WithMeterProvider(mp metric.MeterProvider) FeedOption {
	return func(f *RankingFeed) {
		f.mp = mp
	}
}

func NewRankingFeed(opts ...FeedOption) *RankingFeed {
	ret := &RankingFeed{
		now:    time.Now,
		l:      log.Default().Named("feed"),
		buffer: 64,
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.source = make(chan model.RankingEvent, ret.buffer)
	bsOpts := []broadcast.Option[model.RankingEvent]{
		broadcast.WithLogger[model.RankingEvent](ret.l.Named("broadcast")),
	}
	if ret.mp != nil {
		bsOpts = append(bsOpts, broadcast.WithMeterProvider[model.RankingEvent](ret.mp))
	}
	if ret.sendTimeout > 0 {
		bsOpts = append(bsOpts,
			broadcast.WithSendTimeout[model.RankingEvent](ret.sendTimeout))
	}
	ret.bs = broadcast.NewBroadcastServer("ranking", ret.source, bsOpts...)
	return ret
}

// Attach registers the feed as listener for both ranking slots of s
func (f *RankingFeed) Attach(s *session.Session) {
	s.OnBestChanged(func(rc *session.RaceCar) {
		f.emit(s, model.SlotBest, rc)
	})
	s.OnSecondBestChanged(func(rc *session.RaceCar) {
		f.emit(s, model.SlotSecondBest, rc)
	})
}

func (f *RankingFeed) Subscribe() <-chan model.RankingEvent {
	return f.bs.Subscribe()
}

func (f *RankingFeed) CancelSubscription(ch <-chan model.RankingEvent) {
	f.bs.CancelSubscription(ch)
}

// Dropped returns the number of events lost because the buffer was full
func (f *RankingFeed) Dropped() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

// Close stops the feed and closes all subscriber channels. Events still
// buffered may be lost, events emitted afterwards are discarded.
func (f *RankingFeed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	close(f.source)
	f.mu.Unlock()
	f.bs.Close()
}

func (f *RankingFeed) emit(s *session.Session, slot model.RankingSlot, rc *session.RaceCar) {
	ev := model.RankingEvent{
		TrackName: s.Name(),
		Slot:      slot,
		Tick:      s.TickCount(),
		Timestamp: f.now(),
	}
	if rc != nil {
		ev.CarID = rc.ID.String()
		ev.Reward = rc.CompletionReward()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.source <- ev:
	default:
		f.dropped++
		f.l.Warn("ranking event dropped",
			log.String("track", ev.TrackName),
			log.String("slot", slot.String()))
	}
}
