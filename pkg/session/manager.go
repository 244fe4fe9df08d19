package session

import (
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/mpapenbr/trackprogress/log"
)

var ErrDuplicateTrack = errors.New("duplicate track name")

// Manager drives the sessions of several tracks in lockstep.
type Manager struct {
	sessions []*Session
	l        *log.Logger
}

type ManagerOption func(m *Manager)

func WithManagerLogger(l *log.Logger) ManagerOption {
	return func(m *Manager) {
		m.l = l
	}
}

func NewManager(sessions []*Session, opts ...ManagerOption) (*Manager, error) {
	dups := lo.FindDuplicatesBy(sessions, func(s *Session) string { return s.Name() })
	if len(dups) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateTrack, dups[0].Name())
	}
	ret := &Manager{
		sessions: sessions,
		l:        log.Default().Named("manager"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret, nil
}

func (m *Manager) Sessions() []*Session { return m.sessions }

func (m *Manager) Session(name string) (*Session, bool) {
	return lo.Find(m.sessions, func(s *Session) bool { return s.Name() == name })
}

// SetCarCount applies n to every track. A negative n is rejected before any
// session is touched.
func (m *Manager) SetCarCount(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeCarCount, n)
	}
	for _, s := range m.sessions {
		if err := s.SetCarCount(n); err != nil {
			return fmt.Errorf("track %s: %w", s.Name(), err)
		}
	}
	m.l.Debug("car count set", log.Int("cars", n), log.Int("tracks", len(m.sessions)))
	return nil
}

func (m *Manager) Tick() {
	for _, s := range m.sessions {
		s.Tick()
	}
}

func (m *Manager) Restart() error {
	for _, s := range m.sessions {
		if err := s.Restart(); err != nil {
			return fmt.Errorf("track %s: %w", s.Name(), err)
		}
	}
	return nil
}
