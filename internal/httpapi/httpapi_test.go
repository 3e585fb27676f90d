package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/park285/tictac-server/internal/domain"
	"github.com/park285/tictac-server/internal/httpapi"
	"github.com/park285/tictac-server/internal/room"
	"github.com/park285/tictac-server/internal/session"
	"github.com/park285/tictac-server/internal/store"
	"github.com/park285/tictac-server/internal/store/memstore"
)

type fixture struct {
	base     string
	st       *memstore.Store
	rooms    *room.Manager
	sessions *session.Manager
}

func start(t *testing.T, backend func(*memstore.Store) httpapi.Backend, opts ...memstore.Option) *fixture {
	t.Helper()
	st := memstore.New(opts...)
	f := &fixture{st: st, rooms: room.NewManager(st), sessions: session.NewManager(st, session.WithBcryptCost(bcrypt.MinCost))}
	var b httpapi.Backend = st
	if backend != nil {
		b = backend(st)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- httpapi.New(f.rooms, f.sessions, b, 10).Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("http server did not stop")
		}
	})
	f.base = "http://" + ln.Addr().String()
	return f
}

func get(t *testing.T, url string, out any) int {
	t.Helper()
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)
	req.SetRequestURI(url)
	require.NoError(t, fasthttp.DoTimeout(req, resp, 5*time.Second))
	if out != nil && (resp.StatusCode() < 400 || resp.StatusCode() == fasthttp.StatusServiceUnavailable) {
		require.NoError(t, json.Unmarshal(resp.Body(), out), string(resp.Body()))
	}
	return resp.StatusCode()
}

func TestHealthz(t *testing.T) {
	f := start(t, nil)
	ctx := context.Background()
	require.NoError(t, f.sessions.Register(ctx, "alice", "secret"))
	_, _, err := f.sessions.Login(ctx, "alice", "secret")
	require.NoError(t, err)
	f.rooms.Create(ctx, "alice")

	var h httpapi.Health
	assert.Equal(t, fasthttp.StatusOK, get(t, f.base+"/healthz", &h))
	assert.Equal(t, httpapi.Health{Status: "ok", Rooms: 1, Sessions: 1}, h)
}

type downStore struct{ *memstore.Store }

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthzReportsBackendDown(t *testing.T) {
	f := start(t, func(st *memstore.Store) httpapi.Backend { return downStore{st} })
	var h httpapi.Health
	assert.Equal(t, fasthttp.StatusServiceUnavailable, get(t, f.base+"/healthz", &h))
	assert.Equal(t, "down", h.Status)
	assert.Equal(t, "connection refused", h.Error)
}

func TestRoomsListsOpenRooms(t *testing.T) {
	f := start(t, nil)
	ctx := context.Background()
	a := f.rooms.Create(ctx, "alice")
	b := f.rooms.Create(ctx, "carol")
	_, err := f.rooms.Join(ctx, b.ID, "dave")
	require.NoError(t, err)

	var rooms []httpapi.RoomView
	assert.Equal(t, fasthttp.StatusOK, get(t, f.base+"/rooms", &rooms))
	want := []httpapi.RoomView{
		{ID: a.ID, Host: "alice", Status: "waiting"},
		{ID: b.ID, Host: "carol", Guest: "dave", Status: "playing"},
	}
	if a.ID > b.ID {
		want[0], want[1] = want[1], want[0]
	}
	assert.Equal(t, want, rooms)
}

func TestRank(t *testing.T) {
	f := start(t, nil)
	ctx := context.Background()
	for _, u := range []string{"alice", "bob", "carol"} {
		require.NoError(t, f.sessions.Register(ctx, u, "secret"))
	}
	require.NoError(t, f.st.UpdateResult(ctx, "bob", domain.OutcomeWin))
	require.NoError(t, f.st.UpdateResult(ctx, "alice", domain.OutcomeDraw))

	var rank []httpapi.RankEntry
	assert.Equal(t, fasthttp.StatusOK, get(t, f.base+"/rank?limit=2", &rank))
	assert.Equal(t, []httpapi.RankEntry{
		{User: "bob", Wins: 1},
		{User: "alice", Draws: 1},
	}, rank)

	assert.Equal(t, fasthttp.StatusBadRequest, get(t, f.base+"/rank?limit=zero", nil))
	assert.Equal(t, fasthttp.StatusNotFound, get(t, f.base+"/nope", nil))
}

func TestRankUpgradesLegacyFormat(t *testing.T) {
	f := start(t, nil, memstore.WithLeaderboardVersion(store.LeaderboardV1))
	ctx := context.Background()
	require.NoError(t, f.sessions.Register(ctx, "alice", "secret"))
	require.NoError(t, f.st.UpdateResult(ctx, "alice", domain.OutcomeWin))

	var rank []httpapi.RankEntry
	assert.Equal(t, fasthttp.StatusOK, get(t, f.base+"/rank", &rank))
	assert.Equal(t, []httpapi.RankEntry{{User: "alice", Wins: 1}}, rank)
}

func TestParseRank(t *testing.T) {
	got, err := httpapi.ParseRank("a:3:1:0|b:0:0:2|")
	require.NoError(t, err)
	assert.Equal(t, []httpapi.RankEntry{{User: "a", Wins: 3, Losses: 1}, {User: "b", Draws: 2}}, got)

	got, err = httpapi.ParseRank("")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = httpapi.ParseRank("a:3|")
	assert.Error(t, err)
}
