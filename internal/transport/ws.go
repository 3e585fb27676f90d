package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/park285/tictac-server/internal/obslog"
)

// WSServer speaks the line protocol over WebSocket text messages. A message
// may carry several newline-separated requests; each reply is its own message.
type WSServer struct {
	h    Handler
	opts options
	wg   sync.WaitGroup
}

func NewWSServer(h Handler, opts ...Option) *WSServer {
	return &WSServer{h: h, opts: buildOptions(opts)}
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *WSServer) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs an HTTP server on ln that upgrades every request. Request
// contexts derive from ctx, so cancelling it ends open sockets too.
func (s *WSServer) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	obslog.L().Info("ws_listen", zap.String("addr", ln.Addr().String()))

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	defer stop()

	err := srv.Serve(ln)
	s.wg.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *WSServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Debug("ws_accept_failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	s.wg.Add(1)
	defer s.wg.Done()
	c.SetReadLimit(int64(s.opts.maxLine))

	ctx := r.Context()
	remote := r.RemoteAddr
	obslog.L().Debug("conn_open", zap.String("remote", remote), zap.String("transport", "ws"))

	sess := &session{h: s.h}
	defer func() {
		_ = c.Close(websocket.StatusNormalClosure, "bye")
		sess.close(ctx)
		obslog.L().Debug("conn_close", zap.String("remote", remote), zap.String("transport", "ws"))
	}()

	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				obslog.L().Debug("conn_read_failed", zap.String("remote", remote), zap.Error(err))
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		for _, raw := range strings.Split(string(data), "\n") {
			out, ok := sess.handle(ctx, raw)
			if !ok {
				continue
			}
			if err := c.Write(ctx, websocket.MessageText, []byte(out)); err != nil {
				obslog.L().Debug("conn_write_failed", zap.String("remote", remote), zap.Error(err))
				return
			}
		}
	}
}
