package domain

import "time"

// Outcome is a per-player match result as stored in the user counters.
type Outcome string

const (
	OutcomeWin  Outcome = "W"
	OutcomeLoss Outcome = "L"
	OutcomeDraw Outcome = "D"
)

// Label is the form used in history listings.
func (o Outcome) Label() string {
	switch o {
	case OutcomeWin:
		return "Win"
	case OutcomeLoss:
		return "Loss"
	case OutcomeDraw:
		return "Draw"
	default:
		return ""
	}
}

// Record holds a user's win/loss/draw counters.
type Record struct {
	Wins   int
	Losses int
	Draws  int
}

// Apply returns the record with o counted.
func (r Record) Apply(o Outcome) Record {
	switch o {
	case OutcomeWin:
		r.Wins++
	case OutcomeLoss:
		r.Losses++
	case OutcomeDraw:
		r.Draws++
	}
	return r
}

// Standing is one leaderboard row.
type Standing struct {
	User string
	Record
}

// Match is a finished game. Winner is empty for a draw.
type Match struct {
	ID     string
	Room   string
	X      string
	O      string
	Winner string
	Moves  []int
	At     time.Time
}

// OutcomeFor reports the match result from user's point of view.
func (m Match) OutcomeFor(user string) Outcome {
	switch m.Winner {
	case "":
		return OutcomeDraw
	case user:
		return OutcomeWin
	default:
		return OutcomeLoss
	}
}

// Opponent returns the other seat, or "" when user did not play.
func (m Match) Opponent(user string) string {
	switch user {
	case m.X:
		return m.O
	case m.O:
		return m.X
	default:
		return ""
	}
}

// RoomEvent is an append-only lifecycle record.
type RoomEvent struct {
	Room   string
	Host   string
	Guest  string
	Status string
	At     time.Time
}

// ChatMessage is one line of room chat.
type ChatMessage struct {
	Room string
	From string
	Text string
	At   time.Time
}
