// Package tictactoe holds the board rules: move application and win/draw detection.
package tictactoe

import "errors"

// Mark is a cell value; Empty renders as a space.
type Mark byte

const (
	Empty Mark = ' '
	X     Mark = 'X'
	O     Mark = 'O'
)

func (m Mark) String() string { return string(m) }

// Opponent returns the other playing mark, or Empty.
func (m Mark) Opponent() Mark {
	switch m {
	case X:
		return O
	case O:
		return X
	default:
		return Empty
	}
}

var (
	ErrBadMove     = errors.New("bad move")
	ErrNotYourTurn = errors.New("not your turn")
)

// Lines are checked in this order; the first complete one decides the winner.
var Lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// Board is the 3x3 grid, row-major.
type Board [9]Mark

// NewBoard returns an all-empty board.
func NewBoard() Board {
	var b Board
	for i := range b {
		b[i] = Empty
	}
	return b
}

// Winner returns the mark owning the first complete line, or Empty.
func (b Board) Winner() Mark {
	for _, l := range Lines {
		m := b[l[0]]
		if m != Empty && b[l[1]] == m && b[l[2]] == m {
			return m
		}
	}
	return Empty
}

// Full reports whether no empty cell remains.
func (b Board) Full() bool {
	for _, m := range b {
		if m == Empty {
			return false
		}
	}
	return true
}

// Filled counts the non-empty cells.
func (b Board) Filled() int {
	n := 0
	for _, m := range b {
		if m != Empty {
			n++
		}
	}
	return n
}

// String renders the board as 9 characters, empty cells as spaces.
func (b Board) String() string {
	out := make([]byte, len(b))
	for i, m := range b {
		if m == 0 {
			m = Empty
		}
		out[i] = byte(m)
	}
	return string(out)
}
