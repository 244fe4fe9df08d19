package broadcast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mpapenbr/trackprogress/log"
)

//nolint:lll // by design
// see https://betterprogramming.pub/how-to-broadcast-messages-in-go-using-channels-b68f42bdf32e

// BroadcastServer fans out every message of a source channel to all
// subscribers. Slow subscribers miss messages instead of blocking the source.
type BroadcastServer[T any] interface {
	Subscribe() <-chan T
	CancelSubscription(<-chan T)
	Close()
}

type broadcastServer[T any] struct {
	name           string
	source         <-chan T
	listeners      []chan T
	addListener    chan chan T
	removeListener chan (<-chan T)
	ctx            context.Context
	cancel         context.CancelFunc
	done           chan struct{}
	sendTimeout    time.Duration
	l              *log.Logger
	mp             metric.MeterProvider

	mu      sync.Mutex // guards the counters, read by metric callbacks
	numRcv  int
	numSnd  int
	numSkip int
}

type Option[T any] func(*broadcastServer[T])

func WithLogger[T any](l *log.Logger) Option[T] {
	return func(b *broadcastServer[T]) {
		b.l = l
	}
}

func WithSendTimeout[T any](d time.Duration) Option[T] {
	return func(b *broadcastServer[T]) {
		b.sendTimeout = d
	}
}

func WithMeterProvider[T any](mp metric.MeterProvider) Option[T] {
	return func(b *broadcastServer[T]) {
		b.mp = mp
	}
}

// NewBroadcastServer starts serving source. The server stops when Close is
// called or source is closed; all subscriber channels are closed then.
//
//nolint:whitespace // editor/linter issue
func NewBroadcastServer[T any](
	name string,
	source <-chan T,
	opts ...Option[T],
) BroadcastServer[T] {
	ctx, cancel := context.WithCancel(context.Background())
	b := &broadcastServer[T]{
		name:           name,
		source:         source,
		addListener:    make(chan chan T),
		removeListener: make(chan (<-chan T)),
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
		sendTimeout:    50 * time.Millisecond,
		l:              log.Default().Named("broadcast"),
		mp:             otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.setupMetrics()
	go b.serve()
	return b
}

// Subscribe returns a channel receiving all future messages.
// After the server stopped the returned channel is already closed.
func (b *broadcastServer[T]) Subscribe() <-chan T {
	ch := make(chan T)
	select {
	case b.addListener <- ch:
	case <-b.done:
		close(ch)
	}
	return ch
}

func (b *broadcastServer[T]) CancelSubscription(ch <-chan T) {
	select {
	case b.removeListener <- ch:
	case <-b.done:
	}
}

func (b *broadcastServer[T]) Close() {
	b.mu.Lock()
	b.l.Info("Closing broadcast server",
		log.String("name", b.name),
		log.Int("rcv", b.numRcv), log.Int("snd", b.numSnd), log.Int("skip", b.numSkip))
	b.mu.Unlock()
	b.cancel()
	<-b.done
}

func (b *broadcastServer[T]) counters() (rcv, snd, skip, listeners int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.numRcv, b.numSnd, b.numSkip, len(b.listeners)
}

//nolint:funlen // readability
func (b *broadcastServer[T]) setupMetrics() {
	meter := b.mp.Meter(fmt.Sprintf("tps.broadcast.%s", b.name))
	register := func(metricName, desc, unit string, valueProvider func() int64) {
		if _, err := meter.Int64ObservableGauge(
			metricName,
			metric.WithDescription(desc),
			metric.WithUnit(unit),

			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(valueProvider(),
					metric.WithAttributes(
						attribute.String("name", b.name),
					),
				)
				return nil
			})); err != nil {
			b.l.Error("failed to register metric",
				log.String("metric", metricName),
				log.ErrorField(err))
		}
	}
	type data struct {
		name  string
		desc  string
		unit  string
		value func() int64
	}
	for _, d := range []*data{
		{
			"tps.broadcast.rcv", "Number of received messages", "{count}",
			func() int64 { v, _, _, _ := b.counters(); return int64(v) },
		},
		{
			"tps.broadcast.snd", "Number of sent messages", "{count}",
			func() int64 { _, v, _, _ := b.counters(); return int64(v) },
		},
		{
			"tps.broadcast.skip", "Number of skipped messages", "{count}",
			func() int64 { _, _, v, _ := b.counters(); return int64(v) },
		},
		{
			"tps.broadcast.listener", "Number of listeners", "{count}",
			func() int64 { _, _, _, v := b.counters(); return int64(v) },
		},
	} {
		register(d.name, d.desc, d.unit, d.value)
	}
}

//nolint:funlen,cyclop // by design
func (b *broadcastServer[T]) serve() {
	defer func() {
		b.l.Debug("Closing listeners", log.String("name", b.name))
		b.mu.Lock()
		for _, listener := range b.listeners {
			close(listener)
		}
		b.listeners = nil
		b.mu.Unlock()
		close(b.done)
	}()
	for {
		select {
		case <-b.ctx.Done():
			b.l.Debug("broadcast server about to be closed", log.String("name", b.name))
			return
		case ch := <-b.addListener:
			b.mu.Lock()
			b.listeners = append(b.listeners, ch)
			b.mu.Unlock()
		case ch := <-b.removeListener:
			b.mu.Lock()
			for i, listener := range b.listeners {
				if listener == ch {
					b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
					close(listener)
					b.l.Debug("removed listener",
						log.String("name", b.name), log.Int("len", len(b.listeners)))
					break
				}
			}
			b.mu.Unlock()
		case msg, ok := <-b.source:
			if !ok {
				b.l.Debug("source closed", log.String("name", b.name))
				return
			}
			b.mu.Lock()
			b.numRcv++
			listeners := b.listeners
			b.mu.Unlock()

			snd, skip := 0, 0
			for _, listener := range listeners {
				select {
				case listener <- msg:
					snd++
				// don't wait too long, the source must not be blocked
				case <-time.After(b.sendTimeout):
					skip++
				}
			}

			b.mu.Lock()
			b.numSnd += snd
			b.numSkip += skip
			b.mu.Unlock()
		}
	}
}
