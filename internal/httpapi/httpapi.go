// Package httpapi exposes read-only JSON status endpoints over fasthttp.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/tictac-server/internal/obslog"
	"github.com/park285/tictac-server/internal/room"
	"github.com/park285/tictac-server/internal/store"
)

type Rooms interface {
	List() []room.Snapshot
	Count() int
}

type Sessions interface {
	Count() int64
}

// Backend is the slice of store.Store the endpoints read.
type Backend interface {
	Ping(ctx context.Context) error
	LeaderboardCompact(ctx context.Context, limit int) (string, error)
	LeaderboardVersion() int
}

type Health struct {
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Rooms    int    `json:"rooms"`
	Sessions int64  `json:"sessions"`
}

type RoomView struct {
	ID     string `json:"id"`
	Host   string `json:"host"`
	Guest  string `json:"guest,omitempty"`
	Status string `json:"status"`
}

type RankEntry struct {
	User   string `json:"user"`
	Wins   int    `json:"wins"`
	Losses int    `json:"losses"`
	Draws  int    `json:"draws"`
}

type Server struct {
	rooms    Rooms
	sessions Sessions
	backend  Backend
	limit    int

	srv *fasthttp.Server
}

// New builds the status server. limit is the default /rank size.
func New(rooms Rooms, sessions Sessions, backend Backend, limit int) *Server {
	if limit <= 0 {
		limit = 10
	}
	s := &Server{rooms: rooms, sessions: sessions, backend: backend, limit: limit}
	s.srv = &fasthttp.Server{
		Handler:      s.route,
		Name:         "tictac-server",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve blocks until ctx is cancelled or ln fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	obslog.L().Info("http_listen", zap.String("addr", ln.Addr().String()))
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.srv.ShutdownWithContext(shutdownCtx); err != nil {
			obslog.L().Warn("http_shutdown_failed", zap.Error(err))
		}
	})
	defer stop()

	err := s.srv.Serve(ln)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Server) route(ctx *fasthttp.RequestCtx) {
	if !ctx.IsGet() && !ctx.IsHead() {
		ctx.Error("method not allowed", fasthttp.StatusMethodNotAllowed)
		return
	}
	switch string(ctx.Path()) {
	case "/healthz":
		s.health(ctx)
	case "/rooms":
		s.listRooms(ctx)
	case "/rank":
		s.rank(ctx)
	default:
		ctx.Error("not found", fasthttp.StatusNotFound)
	}
}

func (s *Server) health(ctx *fasthttp.RequestCtx) {
	h := Health{Status: "ok", Rooms: s.rooms.Count(), Sessions: s.sessions.Count()}
	status := fasthttp.StatusOK
	if err := s.backend.Ping(ctx); err != nil {
		h.Status, h.Error = "down", err.Error()
		status = fasthttp.StatusServiceUnavailable
		obslog.L().Warn("health_ping_failed", zap.Error(err))
	}
	writeJSON(ctx, status, h)
}

func (s *Server) listRooms(ctx *fasthttp.RequestCtx) {
	snaps := s.rooms.List()
	out := make([]RoomView, 0, len(snaps))
	for _, r := range snaps {
		out = append(out, RoomView{ID: r.ID, Host: r.Host, Guest: r.Guest, Status: string(r.Status)})
	}
	writeJSON(ctx, fasthttp.StatusOK, out)
}

func (s *Server) rank(ctx *fasthttp.RequestCtx) {
	limit := s.limit
	if raw := ctx.QueryArgs().Peek("limit"); len(raw) > 0 {
		n, err := strconv.Atoi(string(raw))
		if err != nil || n <= 0 {
			ctx.Error("invalid limit", fasthttp.StatusBadRequest)
			return
		}
		limit = n
	}
	compact, err := s.backend.LeaderboardCompact(ctx, limit)
	if err != nil {
		obslog.L().Error("http_rank_failed", zap.Error(err))
		ctx.Error("internal error", fasthttp.StatusInternalServerError)
		return
	}
	if s.backend.LeaderboardVersion() < store.LeaderboardV2 {
		compact = store.UpgradeLeaderboard(compact)
	}
	entries, err := ParseRank(compact)
	if err != nil {
		obslog.L().Error("http_rank_parse_failed", zap.Error(err))
		ctx.Error("internal error", fasthttp.StatusInternalServerError)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, entries)
}

var errBadRank = errors.New("malformed leaderboard entry")

// ParseRank reads the `user:w:l:d|` compact form.
func ParseRank(compact string) ([]RankEntry, error) {
	out := []RankEntry{}
	for _, e := range strings.Split(compact, "|") {
		if e == "" {
			continue
		}
		parts := strings.Split(e, ":")
		if len(parts) != 4 {
			return nil, errBadRank
		}
		var nums [3]int
		for i, p := range parts[1:] {
			n, err := strconv.Atoi(p)
			if err != nil {
				return nil, errBadRank
			}
			nums[i] = n
		}
		out = append(out, RankEntry{User: parts[0], Wins: nums[0], Losses: nums[1], Draws: nums[2]})
	}
	return out, nil
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		ctx.Error("internal error", fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}
