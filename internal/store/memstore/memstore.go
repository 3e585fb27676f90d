// Package memstore is an in-memory Store used for development and tests.
package memstore

import (
	"context"
	"sync"

	"github.com/park285/tictac-server/internal/domain"
	"github.com/park285/tictac-server/internal/store"
)

type user struct {
	hash string
	rec  domain.Record
}

// Store keeps everything in process memory.
type Store struct {
	mu sync.RWMutex

	users   map[string]*user
	events  []domain.RoomEvent
	matches []domain.Match // append order, oldest first
	chats   map[string][]domain.ChatMessage

	version int
}

type Option func(*Store)

// WithLeaderboardVersion makes the store report the given format version.
// Version 1 emulates a legacy store that lists wins only.
func WithLeaderboardVersion(v int) Option {
	return func(s *Store) { s.version = v }
}

func New(opts ...Option) *Store {
	s := &Store{
		users:   make(map[string]*user),
		chats:   make(map[string][]domain.ChatMessage),
		version: store.LeaderboardV2,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

var _ store.Store = (*Store)(nil)

func (s *Store) UserExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[name]
	return ok, nil
}

func (s *Store) AddUser(_ context.Context, name, passHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[name]; ok {
		return store.ErrUserExists
	}
	s.users[name] = &user{hash: passHash}
	return nil
}

func (s *Store) PasswordHash(_ context.Context, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[name]
	if !ok {
		return "", store.ErrUserNotFound
	}
	return u.hash, nil
}

func (s *Store) Record(_ context.Context, name string) (domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[name]
	if !ok {
		return domain.Record{}, nil
	}
	return u.rec, nil
}

func (s *Store) UpdateResult(_ context.Context, name string, o domain.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[name]
	if !ok {
		return store.ErrUserNotFound
	}
	u.rec = u.rec.Apply(o)
	return nil
}

func (s *Store) AppendRoomEvent(_ context.Context, ev domain.RoomEvent) error {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	return nil
}

func (s *Store) AppendMatch(_ context.Context, m domain.Match) error {
	m.Moves = append([]int(nil), m.Moves...)
	s.mu.Lock()
	s.matches = append(s.matches, m)
	s.mu.Unlock()
	return nil
}

func (s *Store) AppendChat(_ context.Context, msg domain.ChatMessage) error {
	s.mu.Lock()
	s.chats[msg.Room] = append(s.chats[msg.Room], msg)
	s.mu.Unlock()
	return nil
}

func (s *Store) LastWinnerForRoom(_ context.Context, room string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.matches) - 1; i >= 0; i-- {
		if s.matches[i].Room == room {
			return s.matches[i].Winner, true, nil
		}
	}
	return "", false, nil
}

func (s *Store) HistoryCompact(_ context.Context, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return store.FormatHistory(name, s.matches), nil
}

func (s *Store) ChatCompact(_ context.Context, room string, limit int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return store.FormatChat(s.chats[room], limit), nil
}

func (s *Store) LeaderboardCompact(_ context.Context, limit int) (string, error) {
	s.mu.RLock()
	rows := make([]domain.Standing, 0, len(s.users))
	for name, u := range s.users {
		rows = append(rows, domain.Standing{User: name, Record: u.rec})
	}
	s.mu.RUnlock()
	store.SortStandings(rows)
	return store.FormatLeaderboard(rows, limit, s.version), nil
}

func (s *Store) LeaderboardVersion() int { return s.version }

// RoomEvents returns a copy of the event log.
func (s *Store) RoomEvents() []domain.RoomEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.RoomEvent(nil), s.events...)
}

// Matches returns a copy of the match log.
func (s *Store) Matches() []domain.Match {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Match(nil), s.matches...)
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }
