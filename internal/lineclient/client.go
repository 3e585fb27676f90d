// Package lineclient talks to a tictac-server over TCP or WebSocket and reads
// its HTTP status endpoints.
package lineclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/park285/tictac-server/internal/domain"
	"github.com/park285/tictac-server/pkg/lineproto"
)

// Transport exchanges one request line for one reply line.
type Transport interface {
	RoundTrip(ctx context.Context, line string) (string, error)
	Close() error
}

var ErrReplyMismatch = errors.New("reply does not match request id")

// Client numbers requests and remembers the token from the last LOGIN.
type Client struct {
	t   Transport
	seq atomic.Uint64

	mu    sync.Mutex
	token string
}

func New(t Transport) *Client { return &Client{t: t} }

// Do sends cmd with key/value pairs and returns the OK response. An ERR
// response is returned as a *lineproto.Error.
func (c *Client) Do(ctx context.Context, cmd string, kv ...string) (*lineproto.Message, error) {
	if len(kv)%2 != 0 {
		return nil, fmt.Errorf("odd key/value count for %s", cmd)
	}
	id := strconv.FormatUint(c.seq.Add(1), 10)
	req := lineproto.NewRequest(id, cmd)
	if tok := c.Token(); tok != "" {
		req.Set("token", tok)
	}
	for i := 0; i < len(kv); i += 2 {
		req.Set(kv[i], kv[i+1])
	}

	line, err := c.t.RoundTrip(ctx, req.Encode())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd, err)
	}
	resp, err := lineproto.DecodeResponse(line)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd, err)
	}
	if got := resp.Get("req"); got != id {
		return nil, fmt.Errorf("%s: %w: sent %s, got %q", cmd, ErrReplyMismatch, id, got)
	}
	if err := lineproto.ResponseError(resp); err != nil {
		return resp, err
	}
	return resp, nil
}

func (c *Client) Register(ctx context.Context, user, pass string) error {
	_, err := c.Do(ctx, "REGISTER", "user", user, "pass", pass)
	return err
}

// Login authenticates and keeps the token for later requests.
func (c *Client) Login(ctx context.Context, user, pass string) (domain.Record, error) {
	resp, err := c.Do(ctx, "LOGIN", "user", user, "pass", pass)
	if err != nil {
		return domain.Record{}, err
	}
	var rec domain.Record
	for _, f := range []struct {
		key string
		dst *int
	}{{"wins", &rec.Wins}, {"losses", &rec.Losses}, {"draws", &rec.Draws}} {
		n, err := strconv.Atoi(resp.Get(f.key))
		if err != nil {
			return domain.Record{}, fmt.Errorf("login: bad %s: %w", f.key, err)
		}
		*f.dst = n
	}
	c.mu.Lock()
	c.token = resp.Get("token")
	c.mu.Unlock()
	return rec, nil
}

func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) Close() error { return c.t.Close() }
