package redisstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/tictac-server/internal/domain"
	"github.com/park285/tictac-server/internal/store"
	"github.com/park285/tictac-server/internal/store/storetest"
)

func newTestStore(t *testing.T) *Store {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb)
}

func TestRedisBehaviour(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return newTestStore(t) })
}

func TestRoomEventsGoToStream(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.AppendRoomEvent(ctx, domain.RoomEvent{Room: "R-1", Host: "alice", Status: "waiting"}))
	require.NoError(t, s.AppendRoomEvent(ctx, domain.RoomEvent{Room: "R-1", Host: "alice", Guest: "bob", Status: "playing"}))
	n, err := s.RoomEventCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestOpenUsesURL(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	s, err := Open(context.Background(), "redis://"+mr.Addr()+"/0", WithPrefix("test:"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.AddUser(context.Background(), "alice", "h"))
	assert.True(t, mr.Exists("test:user:alice"))
}

func TestParseRedisURL(t *testing.T) {
	o, err := parseRedisURL("redis://:secret@localhost:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6380", o.Addr)
	assert.Equal(t, "secret", o.Password)
	assert.Equal(t, 2, o.DB)

	_, err = parseRedisURL("http://localhost")
	assert.Error(t, err)
	_, err = parseRedisURL("redis://localhost/x")
	assert.Error(t, err)
}
