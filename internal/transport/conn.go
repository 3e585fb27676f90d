// Package transport carries request lines between clients and a Handler.
package transport

import (
	"context"
	"strings"

	"github.com/park285/tictac-server/internal/dispatch"
)

// Handler answers request lines and runs the disconnect pass for a token.
type Handler interface {
	Handle(ctx context.Context, line string) dispatch.Reply
	Disconnect(ctx context.Context, token string)
}

const defaultMaxLine = 64 * 1024

type Option func(*options)

type options struct {
	maxLine int
}

// WithMaxLineBytes bounds a single request line. Longer lines end the connection.
func WithMaxLineBytes(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxLine = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{maxLine: defaultMaxLine}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// session is the per-connection state: the last token seen and the teardown
// guard.
type session struct {
	h     Handler
	token string
	done  bool
}

// handle returns the reply line, or false for blank input.
func (s *session) handle(ctx context.Context, raw string) (string, bool) {
	line := strings.TrimSpace(raw)
	if line == "" {
		return "", false
	}
	reply := s.h.Handle(ctx, line)
	if reply.Token != "" {
		s.token = reply.Token
	}
	return reply.Line, true
}

// close runs the disconnect pass once. ctx may already be cancelled, so the
// pass runs detached from it.
func (s *session) close(ctx context.Context) {
	if s.done {
		return
	}
	s.done = true
	if s.token != "" {
		s.h.Disconnect(context.WithoutCancel(ctx), s.token)
	}
}
