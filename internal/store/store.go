// Package store defines the persistence boundary of the server: user
// accounts with their counters, and the append-only room/match/chat log
// from which history, chat and leaderboard views are derived.
package store

import (
	"context"
	"errors"

	"github.com/park285/tictac-server/internal/domain"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
)

// Leaderboard output formats. Version 1 lists only wins.
const (
	LeaderboardV1 = 1
	LeaderboardV2 = 2
)

// Store is safe for concurrent use by every connection goroutine.
type Store interface {
	UserExists(ctx context.Context, name string) (bool, error)
	// AddUser returns ErrUserExists when name is taken.
	AddUser(ctx context.Context, name, passHash string) error
	// PasswordHash returns ErrUserNotFound for unknown users.
	PasswordHash(ctx context.Context, name string) (string, error)
	Record(ctx context.Context, name string) (domain.Record, error)
	UpdateResult(ctx context.Context, name string, o domain.Outcome) error

	AppendRoomEvent(ctx context.Context, ev domain.RoomEvent) error
	AppendMatch(ctx context.Context, m domain.Match) error
	AppendChat(ctx context.Context, msg domain.ChatMessage) error

	// LastWinnerForRoom returns the winner of the room's latest match; ""
	// with found=true is a draw.
	LastWinnerForRoom(ctx context.Context, room string) (winner string, found bool, err error)
	HistoryCompact(ctx context.Context, user string) (string, error)
	ChatCompact(ctx context.Context, room string, limit int) (string, error)
	LeaderboardCompact(ctx context.Context, limit int) (string, error)
	// LeaderboardVersion tells which format LeaderboardCompact produces.
	LeaderboardVersion() int

	Ping(ctx context.Context) error
	Close() error
}
