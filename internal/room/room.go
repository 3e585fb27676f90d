// Package room owns room lifecycle, seating, quick matching, moves and the
// rematch handshake. Every read-modify-write on a room happens under that
// room's own mutex.
package room

import (
	"errors"
	"sync"

	"github.com/park285/tictac-server/internal/replay"
	"github.com/park285/tictac-server/internal/tictactoe"
)

type Status string

const (
	StatusWaiting Status = "waiting"
	StatusReady   Status = "ready"
	StatusPlaying Status = "playing"
	StatusClosed  Status = "closed"
	StatusRemoved Status = "removed"
)

// Listed reports whether LIST shows rooms in this status.
func (s Status) Listed() bool {
	return s == StatusWaiting || s == StatusReady || s == StatusPlaying
}

var (
	ErrNoRoom            = errors.New("no such room")
	ErrRoomUnavailable   = errors.New("room unavailable")
	ErrCannotJoinOwnRoom = errors.New("cannot join own room")
	ErrNotPlaying        = errors.New("room is not playing")
	ErrNoOffer           = replay.ErrNoOffer
)

// Room is one match table. Host plays X and moves first.
type Room struct {
	mu sync.Mutex

	id         string
	host       string
	guest      string
	status     Status
	hostReady  bool
	guestReady bool
	game       *tictactoe.Game
	replay     replay.Mailbox
}

func newRoom(id, host string) *Room {
	return &Room{id: id, host: host, status: StatusWaiting, game: tictactoe.NewGame()}
}

func (r *Room) seated(user string) bool {
	return user != "" && (user == r.host || user == r.guest)
}

func (r *Room) markOf(user string) tictactoe.Mark {
	switch {
	case user == "":
		return tictactoe.Empty
	case user == r.host:
		return tictactoe.X
	case user == r.guest:
		return tictactoe.O
	default:
		return tictactoe.Empty
	}
}

func (r *Room) playerOf(m tictactoe.Mark) string {
	switch m {
	case tictactoe.X:
		return r.host
	case tictactoe.O:
		return r.guest
	default:
		return ""
	}
}

// start begins a fresh game. The replay mailbox is left to the caller.
func (r *Room) start() {
	r.hostReady, r.guestReady = true, true
	r.status = StatusPlaying
	r.game.Reset()
}

// close ends play. Ready flags drop so that a later double READY is a
// deliberate rematch.
func (r *Room) close() {
	r.status = StatusClosed
	r.hostReady, r.guestReady = false, false
	r.replay.Clear()
}

// vacate removes user from their seat, promoting the guest when the host
// leaves.
func (r *Room) vacate(user string) {
	switch user {
	case r.host:
		r.host, r.guest = r.guest, ""
	case r.guest:
		r.guest = ""
	}
	r.hostReady, r.guestReady = false, false
	r.replay.Clear()
}

func (r *Room) empty() bool { return r.host == "" && r.guest == "" }

// Snapshot is a copy of a room's public state.
type Snapshot struct {
	ID         string
	Host       string
	Guest      string
	Status     Status
	HostReady  bool
	GuestReady bool
	Board      string
	Turn       tictactoe.Mark
	Moves      []int

	// Set for closed rooms with a recorded match. Winner "" is a draw.
	HasResult bool
	Winner    string

	Notice replay.Notice
}

func (r *Room) snapshot() Snapshot {
	return Snapshot{
		ID:         r.id,
		Host:       r.host,
		Guest:      r.guest,
		Status:     r.status,
		HostReady:  r.hostReady,
		GuestReady: r.guestReady,
		Board:      r.game.Board.String(),
		Turn:       r.game.Turn,
		Moves:      r.game.MovesCopy(),
	}
}
