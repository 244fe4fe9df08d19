package util

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/mpapenbr/trackprogress/log"
	"github.com/mpapenbr/trackprogress/pkg/config"
	"github.com/mpapenbr/trackprogress/pkg/publish/nats"
	"github.com/mpapenbr/trackprogress/pkg/session"
	"github.com/mpapenbr/trackprogress/pkg/sim"
	"github.com/mpapenbr/trackprogress/pkg/track/trackfile"
	"github.com/mpapenbr/trackprogress/pkg/utils"
)

// LoadEntries returns the tracks of the file at path. If names is not
// empty only these tracks are returned, in the given order.
//
//nolint:whitespace // editor/linter issue
func LoadEntries(
	ctx context.Context,
	store *trackfile.Store,
	path string,
	names []string,
) ([]*trackfile.Entry, error) {
	if len(names) == 0 {
		return store.All(ctx, path)
	}
	ret := make([]*trackfile.Entry, 0, len(names))
	for _, name := range lo.Uniq(names) {
		e, err := store.Get(ctx, path, name)
		if err != nil {
			return nil, err
		}
		ret = append(ret, e)
	}
	return ret, nil
}

// PrototypeOptions returns the driver settings of the CLI values
func PrototypeOptions() []sim.PrototypeOption {
	return []sim.PrototypeOption{
		sim.WithSeed(config.Seed),
		sim.WithSpeed(config.MinSpeed, config.MaxSpeed),
		sim.WithMaxSteps(config.MaxSteps),
	}
}

// BuildManager creates one session per entry with cars scripted drivers each
//
//nolint:whitespace // editor/linter issue
func BuildManager(
	entries []*trackfile.Entry,
	cars int,
	protoOpts []sim.PrototypeOption,
	sessionOpts ...session.Option,
) (*session.Manager, error) {
	sessions := make([]*session.Session, 0, len(entries))
	for _, e := range entries {
		s, err := session.New(e.Track.Name, e.Ledger, e.Track.Start,
			sim.NewDriverPrototype(e.Track, protoOpts...),
			sessionOpts...)
		if err != nil {
			return nil, fmt.Errorf("track %s: %w", e.Track.Name, err)
		}
		sessions = append(sessions, s)
	}
	m, err := session.NewManager(sessions)
	if err != nil {
		return nil, err
	}
	if err := m.SetCarCount(cars); err != nil {
		return nil, err
	}
	return m, nil
}

// ConnectNats waits for the server of config.NatsURL and creates a publisher.
// The returned close function flushes and closes the connection.
func ConnectNats(name string) (*nats.Publisher, func(), error) {
	timeout, err := time.ParseDuration(config.WaitForServices)
	if err != nil {
		log.Warn("Invalid duration value. Setting default 60s", log.ErrorField(err))
		timeout = 60 * time.Second
	}
	if err := utils.WaitForTCP(utils.ExtractFromNatsURL(config.NatsURL), timeout); err != nil {
		return nil, nil, fmt.Errorf("nats not ready: %w", err)
	}
	conn, err := nats.Connect(config.NatsURL, name)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		if err := conn.Flush(); err != nil {
			log.Warn("nats flush", log.ErrorField(err))
		}
		conn.Close()
	}
	return nats.NewPublisher(conn, nats.WithSubjectPrefix(config.NatsSubject)), closer, nil
}
