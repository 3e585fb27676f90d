package tictactoe

// Outcome classifies the board after a move.
type Outcome int

const (
	Continue Outcome = iota
	Win
	Draw
)

func (o Outcome) String() string {
	switch o {
	case Win:
		return "win"
	case Draw:
		return "draw"
	default:
		return "continue"
	}
}

// Result is returned by Game.Play.
type Result struct {
	Outcome Outcome
	Winner  Mark
}

// Game is one round: board, side to move and the cell indices played.
type Game struct {
	Board Board
	Turn  Mark
	Moves []int
}

// NewGame returns an empty board with X to move.
func NewGame() *Game {
	return &Game{Board: NewBoard(), Turn: X}
}

// Reset clears the game for a rematch.
func (g *Game) Reset() {
	g.Board = NewBoard()
	g.Turn = X
	g.Moves = nil
}

// Play places mark at idx. The cell is validated before the turn, and the
// game is left untouched on error.
func (g *Game) Play(idx int, mark Mark) (Result, error) {
	if idx < 0 || idx >= len(g.Board) || g.Board[idx] != Empty {
		return Result{}, ErrBadMove
	}
	if mark == Empty || mark != g.Turn {
		return Result{}, ErrNotYourTurn
	}
	g.Board[idx] = mark
	g.Moves = append(g.Moves, idx)
	g.Turn = mark.Opponent()

	if w := g.Board.Winner(); w != Empty {
		return Result{Outcome: Win, Winner: w}, nil
	}
	if g.Board.Full() {
		return Result{Outcome: Draw, Winner: Empty}, nil
	}
	return Result{Outcome: Continue, Winner: Empty}, nil
}

// MovesCopy returns the move history detached from the game.
func (g *Game) MovesCopy() []int {
	return append([]int(nil), g.Moves...)
}
