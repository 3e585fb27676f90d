// Package storetest is a behaviour suite every store.Store backend must pass.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/tictac-server/internal/domain"
	"github.com/park285/tictac-server/internal/store"
)

// Run exercises a fresh store from newStore in each subtest.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("Results", func(t *testing.T) { testResults(t, newStore(t)) })
	t.Run("Matches", func(t *testing.T) { testMatches(t, newStore(t)) })
	t.Run("Chat", func(t *testing.T) { testChat(t, newStore(t)) })
	t.Run("Leaderboard", func(t *testing.T) { testLeaderboard(t, newStore(t)) })
	t.Run("ConcurrentAppends", func(t *testing.T) { testConcurrentAppends(t, newStore(t)) })
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))

	ok, err := s.UserExists(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.AddUser(ctx, "alice", "hash-1"))
	assert.ErrorIs(t, s.AddUser(ctx, "alice", "hash-2"), store.ErrUserExists)

	ok, err = s.UserExists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	h, err := s.PasswordHash(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "hash-1", h)

	_, err = s.PasswordHash(ctx, "nobody")
	assert.ErrorIs(t, err, store.ErrUserNotFound)

	rec, err := s.Record(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.Record{}, rec)
}

func testResults(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.AddUser(ctx, "alice", "h"))
	for _, o := range []domain.Outcome{domain.OutcomeWin, domain.OutcomeWin, domain.OutcomeLoss, domain.OutcomeDraw} {
		require.NoError(t, s.UpdateResult(ctx, "alice", o))
	}
	rec, err := s.Record(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.Record{Wins: 2, Losses: 1, Draws: 1}, rec)

	assert.ErrorIs(t, s.UpdateResult(ctx, "ghost", domain.OutcomeWin), store.ErrUserNotFound)
}

func testMatches(t *testing.T, s store.Store) {
	ctx := context.Background()
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	_, found, err := s.LastWinnerForRoom(ctx, "R-AAAAAA")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.AppendRoomEvent(ctx, domain.RoomEvent{Room: "R-AAAAAA", Host: "alice", Status: "waiting", At: at}))
	require.NoError(t, s.AppendMatch(ctx, domain.Match{ID: "M1", Room: "R-AAAAAA", X: "alice", O: "bob", Winner: "alice", Moves: []int{0, 3, 1, 4, 2}, At: at}))
	require.NoError(t, s.AppendMatch(ctx, domain.Match{ID: "M2", Room: "R-AAAAAA", X: "alice", O: "bob", Winner: "", Moves: []int{4}, At: at.Add(time.Minute)}))
	require.NoError(t, s.AppendMatch(ctx, domain.Match{ID: "M3", Room: "R-BBBBBB", X: "carol", O: "alice", Winner: "carol", At: at.Add(2 * time.Minute)}))

	w, found, err := s.LastWinnerForRoom(ctx, "R-AAAAAA")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "", w)

	w, found, err = s.LastWinnerForRoom(ctx, "R-BBBBBB")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "carol", w)

	h, err := s.HistoryCompact(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "M1:bob:Win:2024-05-06T07:08:09Z|M2:bob:Draw:2024-05-06T07:09:09Z|M3:carol:Loss:2024-05-06T07:10:09Z|", h)

	h, err = s.HistoryCompact(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, "", h)
}

func testChat(t *testing.T, s store.Store) {
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		require.NoError(t, s.AppendChat(ctx, domain.ChatMessage{Room: "R-CHAT01", From: "alice", Text: fmt.Sprintf("line %d", i), At: time.Now()}))
	}
	require.NoError(t, s.AppendChat(ctx, domain.ChatMessage{Room: "R-OTHER1", From: "bob", Text: "elsewhere", At: time.Now()}))

	c, err := s.ChatCompact(ctx, "R-CHAT01", 2)
	require.NoError(t, err)
	assert.Equal(t, "alice: line 4|alice: line 5|", c)

	c, err = s.ChatCompact(ctx, "R-EMPTY1", 20)
	require.NoError(t, err)
	assert.Equal(t, "", c)
}

func testLeaderboard(t *testing.T, s store.Store) {
	ctx := context.Background()
	wins := map[string]int{"amy": 3, "bob": 1, "cat": 1, "dan": 0}
	for name, n := range wins {
		require.NoError(t, s.AddUser(ctx, name, "h"))
		for i := 0; i < n; i++ {
			require.NoError(t, s.UpdateResult(ctx, name, domain.OutcomeWin))
		}
	}
	require.NoError(t, s.UpdateResult(ctx, "bob", domain.OutcomeLoss))
	require.NoError(t, s.UpdateResult(ctx, "cat", domain.OutcomeDraw))

	lb, err := s.LeaderboardCompact(ctx, 3)
	require.NoError(t, err)
	switch s.LeaderboardVersion() {
	case store.LeaderboardV1:
		assert.Equal(t, "amy:3|bob:1|cat:1|", lb)
	default:
		assert.Equal(t, "amy:3:0:0|bob:1:1:0|cat:1:0:1|", lb)
	}
}

func testConcurrentAppends(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.AddUser(ctx, "alice", "h"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.UpdateResult(ctx, "alice", domain.OutcomeWin))
			assert.NoError(t, s.AppendChat(ctx, domain.ChatMessage{Room: "R-BUSY01", From: "alice", Text: fmt.Sprint(i), At: time.Now()}))
		}(i)
	}
	wg.Wait()

	rec, err := s.Record(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 20, rec.Wins)
}
