package dispatch

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/tictac-server/internal/domain"
	"github.com/park285/tictac-server/internal/obslog"
	"github.com/park285/tictac-server/internal/replay"
	"github.com/park285/tictac-server/internal/room"
	"github.com/park285/tictac-server/internal/store"
	"github.com/park285/tictac-server/internal/tictactoe"
)

func (d *Dispatcher) register(ctx context.Context, c *call) error {
	if err := d.sessions.Register(ctx, c.req.Get("user"), c.req.Get("pass")); err != nil {
		return err
	}
	c.resp.Set("msg", "registered")
	return nil
}

func (d *Dispatcher) login(ctx context.Context, c *call) error {
	token, rec, err := d.sessions.Login(ctx, c.req.Get("user"), c.req.Get("pass"))
	if err != nil {
		return err
	}
	c.resp.Set("token", token).
		Set("wins", strconv.Itoa(rec.Wins)).
		Set("losses", strconv.Itoa(rec.Losses)).
		Set("draws", strconv.Itoa(rec.Draws)).
		Set("_token", token)
	return nil
}

func (d *Dispatcher) list(_ context.Context, c *call) error {
	var b strings.Builder
	for _, s := range d.rooms.List() {
		b.WriteString(s.ID)
		b.WriteByte(',')
		b.WriteString(s.Host)
		b.WriteByte(',')
		b.WriteString(s.Guest)
		b.WriteByte(',')
		b.WriteString(string(s.Status))
		b.WriteByte('|')
	}
	c.resp.Set("rooms", b.String())
	return nil
}

func (d *Dispatcher) create(ctx context.Context, c *call) error {
	snap := d.rooms.Create(ctx, c.user)
	c.resp.Set("room", snap.ID)
	return nil
}

func setStart(c *call, s room.Snapshot) {
	c.resp.Set("room", s.ID).
		Set("start", "true").
		Set("turn", s.Turn.String()).
		Set("state", s.Board)
}

func (d *Dispatcher) join(ctx context.Context, c *call) error {
	snap, err := d.rooms.Join(ctx, c.req.Get("room"), c.user)
	if err != nil {
		return err
	}
	setStart(c, snap)
	return nil
}

func (d *Dispatcher) quick(ctx context.Context, c *call) error {
	res := d.rooms.Quick(ctx, c.user)
	if res.Queued {
		c.resp.Set("msg", "queued")
		return nil
	}
	setStart(c, res.Room)
	return nil
}

func (d *Dispatcher) ready(ready bool) handlerFunc {
	return func(ctx context.Context, c *call) error {
		res, err := d.rooms.SetReady(ctx, c.req.Get("room"), c.user, ready)
		if err != nil {
			return err
		}
		if res.Started {
			c.resp.Set("start", "true").
				Set("turn", res.Room.Turn.String()).
				Set("state", res.Room.Board)
			return nil
		}
		c.resp.Set("ready", "ok")
		return nil
	}
}

func (d *Dispatcher) leave(ctx context.Context, c *call) error {
	status, err := d.rooms.Leave(ctx, c.req.Get("room"), c.user)
	if err != nil {
		return err
	}
	c.resp.Set("left", "true").Set("status", string(status))
	return nil
}

func (d *Dispatcher) move(ctx context.Context, c *call) error {
	idx, err := strconv.Atoi(strings.TrimSpace(c.req.Get("idx")))
	if err != nil {
		idx = -1
	}
	res, err := d.rooms.Move(ctx, c.req.Get("room"), c.user, idx)
	if err != nil {
		return err
	}
	c.resp.Set("state", res.Room.Board)
	switch res.Outcome {
	case tictactoe.Win:
		c.resp.Set("status", string(room.StatusClosed)).Set("end", "win").Set("winner", res.Winner)
	case tictactoe.Draw:
		c.resp.Set("status", string(room.StatusClosed)).Set("end", "draw")
	default:
		c.resp.Set("turn", res.Room.Turn.String())
	}
	return nil
}

func setResult(c *call, s room.Snapshot) {
	if s.Status != room.StatusClosed || !s.HasResult {
		return
	}
	if s.Winner == "" {
		c.resp.Set("end", "draw")
		return
	}
	c.resp.Set("end", "win").Set("winner", s.Winner)
}

func (d *Dispatcher) state(ctx context.Context, c *call) error {
	s, err := d.rooms.State(ctx, c.req.Get("room"), c.user)
	if err != nil {
		return err
	}
	c.resp.Set("status", string(s.Status)).
		Set("state", s.Board).
		Set("turn", s.Turn.String())
	setResult(c, s)
	switch s.Notice.Kind {
	case replay.NoticeOffer:
		c.resp.Set("offerReplay", "true").Set("from", s.Notice.From)
	case replay.NoticeDeclined:
		c.resp.Set("replayDeclined", "true")
	case replay.NoticeStart:
		c.resp.Set("replayStart", "true")
	}
	return nil
}

func (d *Dispatcher) roomInfo(ctx context.Context, c *call) error {
	s, err := d.rooms.Info(ctx, c.req.Get("room"))
	if err != nil {
		return err
	}
	c.resp.Set("host", s.Host).
		Set("guest", s.Guest).
		Set("status", string(s.Status)).
		Set("hostReady", strconv.FormatBool(s.HostReady)).
		Set("guestReady", strconv.FormatBool(s.GuestReady))
	switch s.Status {
	case room.StatusPlaying:
		c.resp.Set("turn", s.Turn.String()).Set("state", s.Board)
	case room.StatusClosed:
		if s.HasResult {
			c.resp.Set("winner", s.Winner)
		}
	}
	return nil
}

func (d *Dispatcher) chat(ctx context.Context, c *call) error {
	id := strings.TrimSpace(c.req.Get("room"))
	if id == "" {
		return errInvalidInput
	}
	msg := domain.ChatMessage{Room: id, From: c.user, Text: c.req.Get("text"), At: time.Now()}
	if err := d.store.AppendChat(ctx, msg); err != nil {
		obslog.L().Error("append_chat_failed", zap.String("room", id), zap.Error(err))
	}
	c.resp.Set("sent", "true")
	return nil
}

func (d *Dispatcher) chatLog(ctx context.Context, c *call) error {
	id := strings.TrimSpace(c.req.Get("room"))
	if id == "" {
		return errInvalidInput
	}
	limit := d.opts.ChatLogLimit
	if v := strings.TrimSpace(c.req.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return errInvalidInput
		}
		limit = min(n, d.opts.ChatLogMax)
	}
	log, err := d.store.ChatCompact(ctx, id, limit)
	if err != nil {
		return err
	}
	c.resp.Set("log", log)
	return nil
}

func (d *Dispatcher) history(ctx context.Context, c *call) error {
	h, err := d.store.HistoryCompact(ctx, c.user)
	if err != nil {
		return err
	}
	c.resp.Set("history", h)
	return nil
}

func (d *Dispatcher) rank(ctx context.Context, c *call) error {
	s, err := d.store.LeaderboardCompact(ctx, d.opts.LeaderboardLimit)
	if err != nil {
		return err
	}
	if d.rankNeedsUpgrade {
		s = store.UpgradeLeaderboard(s)
	}
	c.resp.Set("rank", s)
	return nil
}

func (d *Dispatcher) offerReplay(ctx context.Context, c *call) error {
	if err := d.rooms.OfferReplay(ctx, c.req.Get("room"), c.user); err != nil {
		return err
	}
	c.resp.Set("offerReplay", "ok")
	return nil
}

func (d *Dispatcher) acceptReplay(ctx context.Context, c *call) error {
	s, err := d.rooms.AcceptReplay(ctx, c.req.Get("room"), c.user)
	if err != nil {
		return err
	}
	c.resp.Set("replayStart", "true").
		Set("turn", s.Turn.String()).
		Set("state", s.Board)
	return nil
}

func (d *Dispatcher) declineReplay(ctx context.Context, c *call) error {
	if err := d.rooms.DeclineReplay(ctx, c.req.Get("room"), c.user); err != nil {
		return err
	}
	c.resp.Set("replayDeclined", "true")
	return nil
}
