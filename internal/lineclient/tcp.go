package lineclient

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync"
	"time"
)

type tcpTransport struct {
	mu   sync.Mutex
	conn net.Conn
	r    *bufio.Reader
}

// DialTCP connects to the line server at addr.
func DialTCP(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return New(&tcpTransport{conn: conn, r: bufio.NewReader(conn)}), nil
}

func (t *tcpTransport) RoundTrip(ctx context.Context, line string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	dl, _ := ctx.Deadline()
	if err := t.conn.SetDeadline(dl); err != nil {
		return "", err
	}
	stop := context.AfterFunc(ctx, func() { _ = t.conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()

	if _, err := t.conn.Write([]byte(line + "\n")); err != nil {
		return "", err
	}
	reply, err := t.r.ReadString('\n')
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	return strings.TrimRight(reply, "\r\n"), nil
}

func (t *tcpTransport) Close() error { return t.conn.Close() }
