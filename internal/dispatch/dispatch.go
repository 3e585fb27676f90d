// Package dispatch turns one request line into one response line.
package dispatch

import (
	"context"
	"errors"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/park285/tictac-server/internal/obslog"
	"github.com/park285/tictac-server/internal/room"
	"github.com/park285/tictac-server/internal/session"
	"github.com/park285/tictac-server/internal/store"
	"github.com/park285/tictac-server/internal/tictactoe"
	"github.com/park285/tictac-server/pkg/lineproto"
)

// Reply is the encoded response plus the session token the connection
// should remember for disconnect handling ("" keeps the previous one).
type Reply struct {
	Line  string
	Token string
}

type Options struct {
	ChatLogLimit     int
	ChatLogMax       int
	LeaderboardLimit int
}

type call struct {
	req  *lineproto.Message
	resp *lineproto.Message
	user string
}

type handlerFunc func(ctx context.Context, c *call) error

type command struct {
	fn     handlerFunc
	public bool
}

type Dispatcher struct {
	sessions *session.Manager
	rooms    *room.Manager
	store    store.Store
	opts     Options

	// fixed at construction from store.LeaderboardVersion
	rankNeedsUpgrade bool

	commands map[string]command
}

func New(sessions *session.Manager, rooms *room.Manager, st store.Store, opts Options) *Dispatcher {
	if opts.ChatLogLimit <= 0 {
		opts.ChatLogLimit = 20
	}
	if opts.ChatLogMax < opts.ChatLogLimit {
		opts.ChatLogMax = opts.ChatLogLimit
	}
	if opts.LeaderboardLimit <= 0 {
		opts.LeaderboardLimit = 10
	}
	d := &Dispatcher{
		sessions:         sessions,
		rooms:            rooms,
		store:            st,
		opts:             opts,
		rankNeedsUpgrade: st.LeaderboardVersion() < store.LeaderboardV2,
	}
	d.commands = map[string]command{
		"REGISTER":       {fn: d.register, public: true},
		"LOGIN":          {fn: d.login, public: true},
		"LIST":           {fn: d.list, public: true},
		"RANK":           {fn: d.rank, public: true},
		"CREATE":         {fn: d.create},
		"JOIN":           {fn: d.join},
		"QUICK":          {fn: d.quick},
		"READY":          {fn: d.ready(true)},
		"UNREADY":        {fn: d.ready(false)},
		"LEAVE":          {fn: d.leave},
		"MOVE":           {fn: d.move},
		"STATE":          {fn: d.state},
		"ROOMINFO":       {fn: d.roomInfo},
		"CHAT":           {fn: d.chat},
		"CHATLOG":        {fn: d.chatLog},
		"HISTORY":        {fn: d.history},
		"OFFER_REPLAY":   {fn: d.offerReplay},
		"ACCEPT_REPLAY":  {fn: d.acceptReplay},
		"DECLINE_REPLAY": {fn: d.declineReplay},
	}
	return d
}

// Handle processes one request line. It never panics.
func (d *Dispatcher) Handle(ctx context.Context, line string) (reply Reply) {
	req, decodeErr := lineproto.Decode(line)
	reqID := req.Get("id")
	cmd := req.Get("cmd")

	defer func() {
		if p := recover(); p != nil {
			obslog.L().Error("request_panic",
				zap.String("cmd", cmd),
				zap.Any("panic", p),
				zap.ByteString("stack", debug.Stack()))
			reply.Line = lineproto.NewResponse(reqID).Fail(lineproto.CodeException).Encode()
		}
	}()

	if decodeErr != nil || req.Verb != lineproto.VerbRequest {
		return Reply{Line: lineproto.NewResponse(reqID).Fail(lineproto.CodeBadVerb).Encode()}
	}
	reply.Token = req.Get("token")

	c, ok := d.commands[cmd]
	if !ok {
		reply.Line = lineproto.NewResponse(reqID).Fail(lineproto.CodeUnknownCmd).Encode()
		return reply
	}

	cl := &call{req: req, resp: lineproto.NewResponse(reqID)}
	if !c.public {
		user, err := d.sessions.Resolve(reply.Token)
		if err != nil {
			reply.Line = lineproto.NewResponse(reqID).Fail(lineproto.CodeUnauthorized).Encode()
			return reply
		}
		cl.user = user
	}

	if err := c.fn(ctx, cl); err != nil {
		code := codeFor(err)
		if code == lineproto.CodeException {
			obslog.L().Error("request_failed", zap.String("cmd", cmd), zap.String("user", cl.user), zap.Error(err))
		} else {
			obslog.L().Debug("request_rejected", zap.String("cmd", cmd), zap.String("user", cl.user), zap.String("code", string(code)))
		}
		reply.Line = lineproto.NewResponse(reqID).Fail(code).Encode()
		return reply
	}
	if tok, ok := cl.resp.Lookup("_token"); ok {
		reply.Token = tok
	}
	reply.Line = cl.resp.Encode()
	return reply
}

// Disconnect runs the forfeit pass for the user behind token.
func (d *Dispatcher) Disconnect(ctx context.Context, token string) {
	user, err := d.sessions.Resolve(token)
	if err != nil {
		return
	}
	d.rooms.Disconnect(ctx, user)
}

var errInvalidInput = &lineproto.Error{Code: lineproto.CodeInvalidInput}

var codes = []struct {
	err  error
	code lineproto.Code
}{
	{session.ErrInvalidInput, lineproto.CodeInvalidInput},
	{session.ErrUserExists, lineproto.CodeUserExists},
	{session.ErrBadCredentials, lineproto.CodeBadCredentials},
	{session.ErrUnauthorized, lineproto.CodeUnauthorized},
	{room.ErrNoRoom, lineproto.CodeNoRoom},
	{room.ErrRoomUnavailable, lineproto.CodeRoomUnavailable},
	{room.ErrCannotJoinOwnRoom, lineproto.CodeCannotJoinOwnRoom},
	{room.ErrNotPlaying, lineproto.CodeNotPlaying},
	{room.ErrNoOffer, lineproto.CodeNoOffer},
	{tictactoe.ErrBadMove, lineproto.CodeBadMove},
	{tictactoe.ErrNotYourTurn, lineproto.CodeNotYourTurn},
}

func codeFor(err error) lineproto.Code {
	var perr *lineproto.Error
	if errors.As(err, &perr) && perr.Code != "" {
		return perr.Code
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return lineproto.CodeException
}
