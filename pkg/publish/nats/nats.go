package nats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"

	"github.com/mpapenbr/trackprogress/log"
	"github.com/mpapenbr/trackprogress/pkg/model"
)

// Conn is the part of *nats.Conn used by the Publisher
type Conn interface {
	Publish(subj string, data []byte) error
}

type (
	Publisher struct {
		conn   Conn
		prefix string
		l      *log.Logger
	}
	Option func(*Publisher)
)

func WithSubjectPrefix(prefix string) Option {
	return func(p *Publisher) {
		p.prefix = prefix
	}
}

func WithLogger(l *log.Logger) Option {
	return func(p *Publisher) {
		p.l = l
	}
}

// Connect opens a NATS connection that keeps reconnecting
func Connect(url, name string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", log.ErrorField(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", log.String("url", c.ConnectedUrl()))
		}),
	)
}

func NewPublisher(conn Conn, opts ...Option) *Publisher {
	ret := &Publisher{
		conn:   conn,
		prefix: "tps",
		l:      log.Default().Named("nats"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// RankingSubject returns the subject for ranking events of a track
func (p *Publisher) RankingSubject(trackName string) string {
	return p.subject(trackName, "ranking")
}

// FitnessSubject returns the subject for fitness snapshots of a track
func (p *Publisher) FitnessSubject(trackName string) string {
	return p.subject(trackName, "fitness")
}

func (p *Publisher) PublishRanking(ev *model.RankingEvent) error {
	return p.publish(p.RankingSubject(ev.TrackName), ev.ToMap())
}

func (p *Publisher) PublishFitness(snap *model.FitnessSnapshot) error {
	return p.publish(p.FitnessSubject(snap.TrackName), snap.ToMap())
}

// Source is a stream of ranking events, e.g. publish.RankingFeed
type Source interface {
	Subscribe() <-chan model.RankingEvent
	CancelSubscription(<-chan model.RankingEvent)
}

// Forward subscribes to src and publishes every event in the background
// until src stops or ctx is done. Publish errors are logged, they don't stop
// forwarding. The returned channel is closed when forwarding ended.
func (p *Publisher) Forward(ctx context.Context, src Source) <-chan struct{} {
	ch := src.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		if p.forward(ctx, ch) {
			src.CancelSubscription(ch)
		}
	}()
	return done
}

// forward reports whether it stopped because ctx is done
func (p *Publisher) forward(ctx context.Context, ch <-chan model.RankingEvent) bool {
	for {
		select {
		case <-ctx.Done():
			return true
		case ev, ok := <-ch:
			if !ok {
				p.l.Debug("ranking channel closed")
				return false
			}
			if err := p.PublishRanking(&ev); err != nil {
				p.l.Error("could not publish ranking event",
					log.String("track", ev.TrackName),
					log.ErrorField(err))
			}
		}
	}
}

func (p *Publisher) publish(subj string, payload map[string]any) error {
	data := oj.JSON(payload, &ojg.Options{Sort: true})
	if err := p.conn.Publish(subj, []byte(data)); err != nil {
		return fmt.Errorf("publish %s: %w", subj, err)
	}
	p.l.Debug("published", log.String("subject", subj), log.Int("size", len(data)))
	return nil
}

var tokenReplacer = strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_")

func (p *Publisher) subject(trackName, kind string) string {
	return fmt.Sprintf("%s.%s.%s", p.prefix, tokenReplacer.Replace(trackName), kind)
}
