package lineclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/tictac-server/internal/httpapi"
)

// StatusClient reads the HTTP status endpoints.
type StatusClient struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
}

type StatusOption func(*StatusClient)

func WithTimeout(d time.Duration) StatusOption {
	return func(c *StatusClient) { c.defaultTimeout = d }
}

func WithRetry(max int) StatusOption {
	return func(c *StatusClient) { c.retryMax = max }
}

func NewStatusClient(baseURL string, opts ...StatusOption) *StatusClient {
	c := &StatusClient{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 8},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health returns the decoded /healthz body. A 503 still decodes; its Status
// is "down".
func (c *StatusClient) Health(ctx context.Context) (httpapi.Health, error) {
	var h httpapi.Health
	err := c.getJSON(ctx, "/healthz", &h, fasthttp.StatusServiceUnavailable)
	return h, err
}

func (c *StatusClient) Rooms(ctx context.Context) ([]httpapi.RoomView, error) {
	var out []httpapi.RoomView
	if err := c.getJSON(ctx, "/rooms", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *StatusClient) Rank(ctx context.Context, limit int) ([]httpapi.RankEntry, error) {
	path := "/rank"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []httpapi.RankEntry
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *StatusClient) getJSON(ctx context.Context, path string, out any, accept ...int) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()
	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(c.baseURL + path)

	attempts := max(c.retryMax, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
		} else if status := resp.StatusCode(); (status < 200 || status >= 300) && !slices.Contains(accept, status) {
			lastErr = fmt.Errorf("status api error: status=%d body=%s", status, truncate(string(resp.Body()), 512))
			if !shouldRetryStatus(status) {
				return lastErr
			}
		} else {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return nil
		}
		if attempt == attempts {
			break
		}
		if err := sleepWithContext(ctx, backoffDuration(attempt)); err != nil {
			return lastErr
		}
	}
	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func (c *StatusClient) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	attempt = min(max(attempt, 1), 6)
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
