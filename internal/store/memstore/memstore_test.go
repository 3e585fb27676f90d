package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/tictac-server/internal/domain"
	"github.com/park285/tictac-server/internal/store"
	"github.com/park285/tictac-server/internal/store/storetest"
)

func TestStoreBehaviour(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}

func TestLegacyLeaderboard(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New(WithLeaderboardVersion(store.LeaderboardV1)) })
}

func TestMatchMovesAreCopied(t *testing.T) {
	s := New()
	moves := []int{0, 1}
	require.NoError(t, s.AppendMatch(context.Background(), domain.Match{ID: "M1", Room: "R-1", Moves: moves}))
	moves[0] = 8
	assert.Equal(t, []int{0, 1}, s.Matches()[0].Moves)
}
