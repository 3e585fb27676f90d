package transport

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/tictac-server/internal/obslog"
)

// TCPServer serves newline-delimited requests, one goroutine per connection.
type TCPServer struct {
	h    Handler
	opts options

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

func NewTCPServer(h Handler, opts ...Option) *TCPServer {
	return &TCPServer{h: h, opts: buildOptions(opts), conns: make(map[net.Conn]struct{})}
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *TCPServer) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is cancelled, then closes every open
// connection and waits for their goroutines. It returns nil on shutdown.
func (s *TCPServer) Serve(ctx context.Context, ln net.Listener) error {
	obslog.L().Info("tcp_listen", zap.String("addr", ln.Addr().String()))
	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
		s.closeAll()
	})
	defer stop()
	defer s.wg.Wait()

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				delay = min(max(2*delay, 5*time.Millisecond), time.Second)
				obslog.L().Warn("tcp_accept_retry", zap.Error(err), zap.Duration("delay", delay))
				time.Sleep(delay)
				continue
			}
			s.closeAll()
			return err
		}
		delay = 0
		if !s.track(conn) {
			_ = conn.Close()
			return nil
		}
		s.wg.Add(1)
		go s.serveConn(ctx, conn)
	}
}

func (s *TCPServer) serveConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)

	remote := conn.RemoteAddr().String()
	obslog.L().Debug("conn_open", zap.String("remote", remote), zap.String("transport", "tcp"))

	sess := &session{h: s.h}
	defer func() {
		_ = conn.Close()
		sess.close(ctx)
		obslog.L().Debug("conn_close", zap.String("remote", remote), zap.String("transport", "tcp"))
	}()

	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, min(4096, s.opts.maxLine)), s.opts.maxLine)
	w := bufio.NewWriter(conn)
	for sc.Scan() {
		out, ok := sess.handle(ctx, sc.Text())
		if !ok {
			continue
		}
		if _, err := w.WriteString(out + "\n"); err != nil {
			obslog.L().Debug("conn_write_failed", zap.String("remote", remote), zap.Error(err))
			return
		}
		if err := w.Flush(); err != nil {
			obslog.L().Debug("conn_write_failed", zap.String("remote", remote), zap.Error(err))
			return
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.EOF) {
		obslog.L().Warn("conn_read_failed", zap.String("remote", remote), zap.Error(err))
	}
}

// track registers conn, refusing it once shutdown has begun.
func (s *TCPServer) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns == nil {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *TCPServer) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

func (s *TCPServer) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.conns = nil
}
