package trackfile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mpapenbr/trackprogress/log"
	"github.com/mpapenbr/trackprogress/pkg/model"
	"github.com/mpapenbr/trackprogress/pkg/track"
	"github.com/mpapenbr/trackprogress/pkg/utils/cache"
	"github.com/mpapenbr/trackprogress/pkg/utils/cache/loadercache"
)

// Entry is a track together with its ledger
type Entry struct {
	Track  model.Track
	Ledger *track.Ledger
}

// Store hands out ledgers built from track files. Ledgers of the same
// track are shared until the file is invalidated.
type Store struct {
	cache      cache.Cache[entryKey, Entry]
	mu         sync.Mutex
	keys       map[string]map[entryKey]struct{} // path -> cache keys
	expiration time.Duration
	l          *log.Logger
}

type (
	StoreOption func(s *Store)
	entryKey    struct {
		path string
		name string
	}
)

func WithExpiration(d time.Duration) StoreOption {
	return func(s *Store) {
		s.expiration = d
	}
}

func WithLogger(l *log.Logger) StoreOption {
	return func(s *Store) {
		s.l = l
	}
}

func NewStore(opts ...StoreOption) *Store {
	ret := &Store{
		keys: make(map[string]map[entryKey]struct{}),
		l:    log.Default().Named("trackstore"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.cache = loadercache.New(
		loadercache.WithLoader[entryKey, Entry](ret.load),
		loadercache.WithExpiration[entryKey, Entry](ret.expiration),
		loadercache.WithLogger[entryKey, Entry](ret.l.Named("cache")),
	)
	return ret
}

// Get returns the track name of the file at path with its ledger.
func (s *Store) Get(ctx context.Context, path, name string) (*Entry, error) {
	key := entryKey{path: path, name: name}
	s.mu.Lock()
	if _, ok := s.keys[path]; !ok {
		s.keys[path] = make(map[entryKey]struct{})
	}
	s.keys[path][key] = struct{}{}
	s.mu.Unlock()
	return s.cache.Get(ctx, key)
}

// All returns every track of the file at path
func (s *Store) All(ctx context.Context, path string) ([]*Entry, error) {
	tracks, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	ret := make([]*Entry, 0, len(tracks))
	for _, t := range tracks {
		e, err := s.Get(ctx, path, t.Name)
		if err != nil {
			return nil, err
		}
		ret = append(ret, e)
	}
	return ret, nil
}

// InvalidateFile drops all cached ledgers of the file at path
func (s *Store) InvalidateFile(ctx context.Context, path string) {
	s.mu.Lock()
	keys := s.keys[path]
	delete(s.keys, path)
	s.mu.Unlock()
	for key := range keys {
		s.cache.Invalidate(ctx, key)
	}
	s.l.Debug("invalidated track file", log.String("path", path), log.Int("tracks", len(keys)))
}

func (s *Store) load(_ context.Context, key entryKey) (*Entry, error) {
	name := key.name
	tracks, err := LoadFile(key.path)
	if err != nil {
		return nil, err
	}
	t, err := Find(tracks, name)
	if err != nil {
		return nil, err
	}
	ledger, err := track.BuildLedger(t.Waypoints)
	if err != nil {
		return nil, fmt.Errorf("track %s: %w", name, err)
	}
	s.l.Info("ledger built",
		log.String("track", name),
		log.Int("checkpoints", ledger.Len()),
		log.Float("length", ledger.Length()))
	return &Entry{Track: t, Ledger: ledger}, nil
}
