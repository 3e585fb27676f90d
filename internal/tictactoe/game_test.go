package tictactoe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func play(t *testing.T, g *Game, cells ...int) Result {
	t.Helper()
	var res Result
	for _, c := range cells {
		var err error
		res, err = g.Play(c, g.Turn)
		require.NoError(t, err, "cell %d", c)
	}
	return res
}

func TestWinnerEachLine(t *testing.T) {
	for _, l := range Lines {
		b := NewBoard()
		for _, c := range l {
			b[c] = O
		}
		assert.Equal(t, O, b.Winner(), "line %v", l)
	}
	assert.Equal(t, Empty, NewBoard().Winner())
}

func TestPlayRowWin(t *testing.T) {
	g := NewGame()
	res := play(t, g, 0, 3, 1, 4, 2)
	assert.Equal(t, Win, res.Outcome)
	assert.Equal(t, X, res.Winner)
	assert.Equal(t, "XXXOO    ", g.Board.String())
	assert.Equal(t, []int{0, 3, 1, 4, 2}, g.MovesCopy())
}

func TestPlayDraw(t *testing.T) {
	g := NewGame()
	// X O X / X O O / O X X
	res := play(t, g, 0, 1, 2, 4, 3, 5, 7, 6, 8)
	assert.Equal(t, Draw, res.Outcome)
	assert.Equal(t, Empty, res.Winner)
	assert.True(t, g.Board.Full())
}

func TestPlayContinueHasNoWinner(t *testing.T) {
	g := NewGame()
	res := play(t, g, 4)
	assert.Equal(t, Continue, res.Outcome)
	assert.Equal(t, Empty, res.Winner)
	assert.Equal(t, " ", res.Winner.String())
}

func TestPlayRejections(t *testing.T) {
	g := NewGame()
	_, err := g.Play(9, X)
	assert.ErrorIs(t, err, ErrBadMove)
	_, err = g.Play(-1, X)
	assert.ErrorIs(t, err, ErrBadMove)
	_, err = g.Play(4, O)
	assert.ErrorIs(t, err, ErrNotYourTurn)
	_, err = g.Play(4, Empty)
	assert.ErrorIs(t, err, ErrNotYourTurn)

	play(t, g, 4)
	// occupied cell is reported before the turn check
	_, err = g.Play(4, X)
	assert.ErrorIs(t, err, ErrBadMove)
	assert.Equal(t, O, g.Turn)
	assert.Equal(t, 1, g.Board.Filled())
}

func TestEveryMoveSequenceResolves(t *testing.T) {
	var walk func(g *Game)
	walk = func(g *Game) {
		for c := 0; c < 9; c++ {
			if g.Board[c] != Empty {
				continue
			}
			next := &Game{Board: g.Board, Turn: g.Turn, Moves: g.MovesCopy()}
			res, err := next.Play(c, next.Turn)
			require.NoError(t, err)
			require.Equal(t, len(next.Moves), next.Board.Filled())
			if res.Outcome == Continue {
				require.False(t, next.Board.Full())
				walk(next)
			}
		}
	}
	walk(NewGame())
}

func TestReset(t *testing.T) {
	g := NewGame()
	play(t, g, 0, 1)
	g.Reset()
	assert.Equal(t, NewBoard(), g.Board)
	assert.Equal(t, X, g.Turn)
	assert.Empty(t, g.Moves)
}
