package session

import (
	"errors"
	"fmt"
	"iter"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/mpapenbr/trackprogress/log"
	"github.com/mpapenbr/trackprogress/pkg/model"
	"github.com/mpapenbr/trackprogress/pkg/processing/progress"
	"github.com/mpapenbr/trackprogress/pkg/processing/ranking"
	"github.com/mpapenbr/trackprogress/pkg/track"
)

var (
	ErrNegativeCarCount = errors.New("car count may not be less than zero")
	ErrMidTick          = errors.New("operation not allowed during a tick")
	ErrInvalidArgument  = errors.New("invalid argument")
)

// Session evaluates all cars racing on a single track.
// It is not safe for concurrent use; one goroutine owns the tick.
type Session struct {
	name      string
	ledger    *track.Ledger
	start     model.Pose
	prototype Prototype
	evaluator *progress.Evaluator
	ranking   *ranking.Tracker[*RaceCar]
	cars      []*RaceCar
	tickCount uint64
	ticking   bool
	l         *log.Logger
	mp        metric.MeterProvider
	metrics   *sessionMetrics
}

type Option func(s *Session)

func WithLogger(l *log.Logger) Option {
	return func(s *Session) {
		s.l = l
	}
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Session) {
		s.mp = mp
	}
}

//nolint:whitespace // editor/linter issue
func New(
	name string,
	ledger *track.Ledger,
	start model.Pose,
	prototype Prototype,
	opts ...Option,
) (*Session, error) {
	if ledger == nil {
		return nil, fmt.Errorf("%w: ledger is nil", ErrInvalidArgument)
	}
	if prototype == nil {
		return nil, fmt.Errorf("%w: prototype is nil", ErrInvalidArgument)
	}
	ret := &Session{
		name:      name,
		ledger:    ledger,
		start:     start,
		prototype: prototype,
		ranking:   ranking.NewTracker[*RaceCar](),
		cars:      make([]*RaceCar, 0),
		l:         log.Default().Named("session"),
		mp:        otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.l = ret.l.With(log.String("track", name))
	ret.evaluator = progress.NewEvaluator(ledger, progress.WithLogger(ret.l))
	ret.metrics = newSessionMetrics(ret.mp, name, ret.l)
	return ret, nil
}

// NewFromTrack builds the ledger for t and creates a session for it.
func NewFromTrack(t model.Track, prototype Prototype, opts ...Option) (*Session, error) {
	ledger, err := track.BuildLedger(t.Waypoints)
	if err != nil {
		return nil, fmt.Errorf("track %s: %w", t.Name, err)
	}
	return New(t.Name, ledger, t.Start, prototype, opts...)
}

func (s *Session) Name() string          { return s.name }
func (s *Session) Ledger() *track.Ledger { return s.ledger }
func (s *Session) Start() model.Pose     { return s.start }
func (s *Session) TrackLength() float64  { return s.ledger.Length() }
func (s *Session) CarCount() int         { return len(s.cars) }
func (s *Session) TickCount() uint64     { return s.tickCount }

// Cars iterates over the roster in roster order
func (s *Session) Cars() iter.Seq[*RaceCar] {
	return func(yield func(*RaceCar) bool) {
		for _, rc := range s.cars {
			if !yield(rc) {
				return
			}
		}
	}
}

func (s *Session) Best() (*RaceCar, bool)       { return s.ranking.Best() }
func (s *Session) SecondBest() (*RaceCar, bool) { return s.ranking.SecondBest() }

// OnBestChanged registers fn for best car changes. fn receives nil if the
// slot was cleared.
func (s *Session) OnBestChanged(fn func(*RaceCar)) {
	s.ranking.OnBestChanged(fn)
}

// OnSecondBestChanged registers fn for second best car changes. fn receives
// nil if the slot was cleared.
func (s *Session) OnSecondBestChanged(fn func(*RaceCar)) {
	s.ranking.OnSecondBestChanged(fn)
}

// SetCarCount grows or shrinks the roster to n cars.
// New cars are cloned from the prototype at the start pose, removal starts
// at the end of the roster.
func (s *Session) SetCarCount(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeCarCount, n)
	}
	if s.ticking {
		return ErrMidTick
	}
	current := len(s.cars)
	switch {
	case n > current:
		added := make([]*RaceCar, 0, n-current)
		for range n - current {
			car, err := s.prototype.Clone(s.start)
			if err != nil {
				for _, rc := range added {
					rc.Car.Destroy()
				}
				return fmt.Errorf("clone car: %w", err)
			}
			added = append(added, newRaceCar(car))
		}
		s.cars = append(s.cars, added...)
	case n < current:
		for len(s.cars) > n {
			last := s.cars[len(s.cars)-1]
			s.cars[len(s.cars)-1] = nil
			s.cars = s.cars[:len(s.cars)-1]
			s.ranking.Forget(last)
			last.Car.Destroy()
		}
	default:
		return nil
	}
	s.l.Debug("car count changed", log.Int("from", current), log.Int("to", n))
	s.metrics.recordCars(n)
	return nil
}

// Tick evaluates every enabled car and updates the ranking.
// A car's reward is stored before it is ranked.
func (s *Session) Tick() {
	s.ticking = true
	defer func() { s.ticking = false }()

	s.tickCount++
	captures := 0
	for _, rc := range s.cars {
		if !rc.Car.Enabled() {
			continue
		}
		reward, idx := s.evaluator.Evaluate(rc.Car.Position(), rc.CheckpointIndex,
			func(int) {
				captures++
				rc.Car.CheckpointCaptured()
			})
		rc.CheckpointIndex = idx
		rc.reward = reward
		s.ranking.Update(rc)
	}

	best := 0.0
	if rc, ok := s.ranking.Best(); ok {
		best = rc.CompletionReward()
	}
	s.metrics.recordTick(captures, best)
}

// Restart puts every car back to the start and clears the ranking.
// Rewards are stale (0) until the next tick.
func (s *Session) Restart() error {
	if s.ticking {
		return ErrMidTick
	}
	for _, rc := range s.cars {
		rc.Car.Restart(s.start)
		rc.CheckpointIndex = 1
		rc.reward = 0
	}
	s.ranking.Reset()
	s.l.Debug("session restarted", log.Int("cars", len(s.cars)))
	return nil
}

// Standings returns the cars ordered by completion reward (descending).
// Cars with equal rewards keep their roster order.
func (s *Session) Standings() []model.CarStanding {
	ordered := slices.Clone(s.cars)
	slices.SortStableFunc(ordered, func(a, b *RaceCar) int {
		switch {
		case a.reward > b.reward:
			return -1
		case a.reward < b.reward:
			return 1
		default:
			return 0
		}
	})
	ret := make([]model.CarStanding, len(ordered))
	for i, rc := range ordered {
		ret[i] = rc.standing()
		ret[i].Rank = i + 1
	}
	return ret
}
