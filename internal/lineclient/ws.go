package lineclient

import (
	"context"
	"errors"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

var errBinaryFrame = errors.New("unexpected binary frame")

type wsTransport struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// DialWS connects to the WebSocket endpoint at url (ws:// or wss://).
func DialWS(ctx context.Context, url string) (*Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		return nil, err
	}
	return New(&wsTransport{conn: conn}), nil
}

func (t *wsTransport) RoundTrip(ctx context.Context, line string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.conn.Write(ctx, websocket.MessageText, []byte(line)); err != nil {
		return "", err
	}
	typ, data, err := t.conn.Read(ctx)
	if err != nil {
		return "", err
	}
	if typ != websocket.MessageText {
		return "", errBinaryFrame
	}
	return string(data), nil
}

func (t *wsTransport) Close() error {
	return t.conn.Close(websocket.StatusNormalClosure, "close")
}
