package session

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mpapenbr/trackprogress/log"
)

type sessionMetrics struct {
	attrs      metric.MeasurementOption
	ticks      metric.Int64Counter
	captures   metric.Int64Counter
	cars       metric.Int64Gauge
	bestReward metric.Float64Gauge
}

//nolint:whitespace // editor/linter issue
func newSessionMetrics(
	mp metric.MeterProvider,
	trackName string,
	l *log.Logger,
) *sessionMetrics {
	meter := mp.Meter("tps.session")
	ret := &sessionMetrics{
		attrs: metric.WithAttributes(attribute.String("track", trackName)),
	}
	var err error
	if ret.ticks, err = meter.Int64Counter("tps.session.ticks",
		metric.WithDescription("Number of simulation ticks"),
		metric.WithUnit("{tick}")); err != nil {
		l.Error("failed to register metric", log.String("metric", "ticks"), log.ErrorField(err))
	}
	if ret.captures, err = meter.Int64Counter("tps.session.captures",
		metric.WithDescription("Number of captured checkpoints"),
		metric.WithUnit("{checkpoint}")); err != nil {
		l.Error("failed to register metric", log.String("metric", "captures"), log.ErrorField(err))
	}
	if ret.cars, err = meter.Int64Gauge("tps.session.cars",
		metric.WithDescription("Number of cars on the track"),
		metric.WithUnit("{car}")); err != nil {
		l.Error("failed to register metric", log.String("metric", "cars"), log.ErrorField(err))
	}
	if ret.bestReward, err = meter.Float64Gauge("tps.session.best_reward",
		metric.WithDescription("Completion reward of the best car"),
		metric.WithUnit("1")); err != nil {
		l.Error("failed to register metric", log.String("metric", "best_reward"), log.ErrorField(err))
	}
	return ret
}

func (m *sessionMetrics) recordTick(captures int, best float64) {
	ctx := context.Background()
	if m.ticks != nil {
		m.ticks.Add(ctx, 1, m.attrs)
	}
	if m.captures != nil && captures > 0 {
		m.captures.Add(ctx, int64(captures), m.attrs)
	}
	if m.bestReward != nil {
		m.bestReward.Record(ctx, best, m.attrs)
	}
}

func (m *sessionMetrics) recordCars(n int) {
	if m.cars != nil {
		m.cars.Record(context.Background(), int64(n), m.attrs)
	}
}
