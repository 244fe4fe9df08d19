package sim

import (
	"context"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mpapenbr/trackprogress/log"
	"github.com/mpapenbr/trackprogress/pkg/model"
	"github.com/mpapenbr/trackprogress/pkg/session"
)

// Stepper is implemented by cars that move on their own
type Stepper interface {
	Step()
}

// Runner advances the cars of all sessions of a manager and ticks the
// manager afterwards, so rewards reflect the positions of the same step.
type Runner struct {
	manager *session.Manager
	runID   string
	tracer  trace.Tracer
	l       *log.Logger
}

type RunnerOption func(r *Runner)

func WithRunID(id string) RunnerOption {
	return func(r *Runner) {
		r.runID = id
	}
}

func WithTracer(tracer trace.Tracer) RunnerOption {
	return func(r *Runner) {
		r.tracer = tracer
	}
}

func WithLogger(l *log.Logger) RunnerOption {
	return func(r *Runner) {
		r.l = l
	}
}

func NewRunner(manager *session.Manager, opts ...RunnerOption) *Runner {
	ret := &Runner{
		manager: manager,
		runID:   uuid.NewString(),
		l:       log.Default().Named("sim"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.tracer == nil {
		ret.tracer = otel.Tracer("tps")
	}
	return ret
}

func (r *Runner) RunID() string              { return r.runID }
func (r *Runner) Manager() *session.Manager { return r.manager }

// Step moves every car once and ticks all sessions
func (r *Runner) Step() {
	for _, s := range r.manager.Sessions() {
		for rc := range s.Cars() {
			if st, ok := rc.Car.(Stepper); ok {
				st.Step()
			}
		}
	}
	r.manager.Tick()
}

// Active reports whether any car of any session is still enabled
func (r *Runner) Active() bool {
	return lo.SomeBy(r.manager.Sessions(), func(s *session.Session) bool {
		for rc := range s.Cars() {
			if rc.Car.Enabled() {
				return true
			}
		}
		return false
	})
}

// Run steps up to ticks times. It stops early when no car is enabled
// anymore or ctx is done and returns the number of steps taken.
func (r *Runner) Run(ctx context.Context, ticks int) (int, error) {
	ctx, span := r.tracer.Start(ctx, "sim.Run",
		trace.WithAttributes(
			attribute.String("run.id", r.runID),
			attribute.Int("run.ticks", ticks),
			attribute.Int("run.tracks", len(r.manager.Sessions()))))
	defer span.End()

	done := 0
	for done < ticks {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			return done, err
		}
		if !r.Active() {
			r.l.Debug("no active cars left", log.Int("tick", done))
			break
		}
		r.Step()
		done++
	}
	span.SetAttributes(attribute.Int("run.done", done))
	r.l.Info("run finished", log.String("runId", r.runID), log.Int("ticks", done))
	return done, nil
}

// Snapshots returns the fitness of every car, one snapshot per track
func (r *Runner) Snapshots() []model.FitnessSnapshot {
	return lo.Map(r.manager.Sessions(), func(s *session.Session, _ int) model.FitnessSnapshot {
		return model.FitnessSnapshot{
			RunID:     r.runID,
			TrackName: s.Name(),
			Tick:      s.TickCount(),
			Standings: s.Standings(),
		}
	})
}
