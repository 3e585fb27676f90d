package lineclient_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/park285/tictac-server/internal/dispatch"
	"github.com/park285/tictac-server/internal/httpapi"
	"github.com/park285/tictac-server/internal/lineclient"
	"github.com/park285/tictac-server/internal/room"
	"github.com/park285/tictac-server/internal/session"
	"github.com/park285/tictac-server/internal/store/memstore"
	"github.com/park285/tictac-server/internal/transport"
	"github.com/park285/tictac-server/pkg/lineproto"
)

type server struct {
	tcpAddr string
	wsURL   string
	httpURL string
}

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return ln
}

func startServer(t *testing.T) server {
	t.Helper()
	st := memstore.New()
	sessions := session.NewManager(st, session.WithBcryptCost(bcrypt.MinCost))
	rooms := room.NewManager(st)
	d := dispatch.New(sessions, rooms, st, dispatch.Options{})

	tcpLn, wsLn, httpLn := listen(t), listen(t), listen(t)
	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 3)
	go func() { errs <- transport.NewTCPServer(d).Serve(ctx, tcpLn) }()
	go func() { errs <- transport.NewWSServer(d).Serve(ctx, wsLn) }()
	go func() { errs <- httpapi.New(rooms, sessions, st, 10).Serve(ctx, httpLn) }()
	t.Cleanup(func() {
		cancel()
		for i := 0; i < 3; i++ {
			select {
			case err := <-errs:
				assert.NoError(t, err)
			case <-time.After(10 * time.Second):
				t.Error("server did not stop")
				return
			}
		}
	})
	return server{
		tcpAddr: tcpLn.Addr().String(),
		wsURL:   "ws://" + wsLn.Addr().String() + "/",
		httpURL: "http://" + httpLn.Addr().String(),
	}
}

func timeout(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestGameAcrossTCPAndWebSocket(t *testing.T) {
	srv := startServer(t)
	ctx := timeout(t)

	alice, err := lineclient.DialTCP(ctx, srv.tcpAddr)
	require.NoError(t, err)
	defer alice.Close()
	bob, err := lineclient.DialWS(ctx, srv.wsURL)
	require.NoError(t, err)
	defer bob.Close()

	require.NoError(t, alice.Register(ctx, "alice", "secret"))
	require.NoError(t, bob.Register(ctx, "bob", "secret"))
	rec, err := alice.Login(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.Zero(t, rec)
	_, err = bob.Login(ctx, "bob", "secret")
	require.NoError(t, err)
	assert.NotEqual(t, alice.Token(), bob.Token())

	created, err := alice.Do(ctx, "CREATE")
	require.NoError(t, err)
	id := created.Get("room")
	joined, err := bob.Do(ctx, "JOIN", "room", id)
	require.NoError(t, err)
	assert.Equal(t, "true", joined.Get("start"))

	_, err = bob.Do(ctx, "MOVE", "room", id, "idx", "4")
	var perr *lineproto.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, lineproto.CodeNotYourTurn, perr.Code)

	for i, idx := range []string{"0", "3", "1", "4", "2"} {
		c := alice
		if i%2 == 1 {
			c = bob
		}
		_, err := c.Do(ctx, "MOVE", "room", id, "idx", idx)
		require.NoError(t, err)
	}
	st, err := bob.Do(ctx, "STATE", "room", id)
	require.NoError(t, err)
	assert.Equal(t, "closed", st.Get("status"))
	assert.Equal(t, "alice", st.Get("winner"))

	_, err = bob.Do(ctx, "CHAT", "room", id, "text", "gg; well played")
	require.NoError(t, err)
	log, err := alice.Do(ctx, "CHATLOG", "room", id)
	require.NoError(t, err)
	assert.Equal(t, "bob: gg; well played|", log.Get("log"))

	rank, err := lineclient.NewStatusClient(srv.httpURL).Rank(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []httpapi.RankEntry{{User: "alice", Wins: 1}, {User: "bob", Losses: 1}}, rank)
}

func TestDisconnectForfeitsOverTCP(t *testing.T) {
	srv := startServer(t)
	ctx := timeout(t)

	alice, err := lineclient.DialTCP(ctx, srv.tcpAddr)
	require.NoError(t, err)
	defer alice.Close()
	bob, err := lineclient.DialTCP(ctx, srv.tcpAddr)
	require.NoError(t, err)

	for _, c := range []struct {
		cl   *lineclient.Client
		name string
	}{{alice, "alice"}, {bob, "bob"}} {
		require.NoError(t, c.cl.Register(ctx, c.name, "secret"))
		_, err := c.cl.Login(ctx, c.name, "secret")
		require.NoError(t, err)
	}
	created, err := alice.Do(ctx, "CREATE")
	require.NoError(t, err)
	id := created.Get("room")
	_, err = bob.Do(ctx, "JOIN", "room", id)
	require.NoError(t, err)

	require.NoError(t, bob.Close())

	status := lineclient.NewStatusClient(srv.httpURL)
	require.Eventually(t, func() bool {
		rank, err := status.Rank(ctx, 0)
		return err == nil && len(rank) == 2 && rank[0] == httpapi.RankEntry{User: "alice", Wins: 1}
	}, 5*time.Second, 20*time.Millisecond)

	info, err := alice.Do(ctx, "ROOMINFO", "room", id)
	require.NoError(t, err)
	assert.Equal(t, "waiting", info.Get("status"))
	assert.Equal(t, "", info.Get("guest"))
}

func TestStatusClient(t *testing.T) {
	srv := startServer(t)
	ctx := timeout(t)
	status := lineclient.NewStatusClient(srv.httpURL, lineclient.WithTimeout(2*time.Second), lineclient.WithRetry(1))

	h, err := status.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Status)

	rooms, err := status.Rooms(ctx)
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestStatusClientRetriesThenFails(t *testing.T) {
	ln := listen(t)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	status := lineclient.NewStatusClient("http://"+addr, lineclient.WithTimeout(time.Second), lineclient.WithRetry(2))
	_, err := status.Health(timeout(t))
	assert.Error(t, err)
}

func TestUnauthorizedWithoutLogin(t *testing.T) {
	srv := startServer(t)
	ctx := timeout(t)
	c, err := lineclient.DialTCP(ctx, srv.tcpAddr)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Do(ctx, "CREATE")
	var perr *lineproto.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, lineproto.CodeUnauthorized, perr.Code)

	resp, err := c.Do(ctx, "LIST")
	require.NoError(t, err)
	assert.Equal(t, "", resp.Get("rooms"))
}
