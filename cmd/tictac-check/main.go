package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/park285/tictac-server/internal/lineclient"
	"github.com/park285/tictac-server/pkg/lineproto"
)

func main() {
	addr := flag.String("addr", getenv("TICTAC_ADDR", "127.0.0.1:5555"), "TCP line server address")
	wsURL := flag.String("ws", os.Getenv("TICTAC_WS_URL"), "WebSocket URL (used instead of -addr when set)")
	httpURL := flag.String("http", os.Getenv("TICTAC_HTTP_URL"), "status API base URL")
	user := flag.String("user", os.Getenv("TICTAC_USER"), "optional account to log in with")
	pass := flag.String("pass", os.Getenv("TICTAC_PASS"), "password for -user")
	timeout := flag.Duration("timeout", 5*time.Second, "overall deadline")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	ok := true
	if err := checkLine(ctx, *addr, *wsURL, *user, *pass); err != nil {
		log.Printf("line check failed: %v", err)
		ok = false
	}

	if *httpURL == "" {
		log.Println("-http not set; skipping status check")
	} else if err := checkStatus(ctx, *httpURL); err != nil {
		log.Printf("status check failed: %v", err)
		ok = false
	}

	if !ok {
		os.Exit(1)
	}
}

func checkLine(ctx context.Context, addr, wsURL, user, pass string) error {
	var (
		c   *lineclient.Client
		err error
	)
	target := addr
	if wsURL != "" {
		target = wsURL
		c, err = lineclient.DialWS(ctx, wsURL)
	} else {
		c, err = lineclient.DialTCP(ctx, addr)
	}
	if err != nil {
		return fmt.Errorf("connect %s: %w", target, err)
	}
	defer c.Close()

	start := time.Now()
	resp, err := c.Do(ctx, "LIST")
	if err != nil {
		return err
	}
	log.Printf("LIST ok via %s in %s: rooms=%q", target, time.Since(start).Round(time.Microsecond), resp.Get("rooms"))

	if user == "" {
		return nil
	}
	rec, err := c.Login(ctx, user, pass)
	var perr *lineproto.Error
	if errors.As(err, &perr) {
		return fmt.Errorf("login %s rejected: %s", user, perr.Code)
	}
	if err != nil {
		return err
	}
	log.Printf("LOGIN ok: %s wins=%d losses=%d draws=%d", user, rec.Wins, rec.Losses, rec.Draws)

	resp, err = c.Do(ctx, "HISTORY")
	if err != nil {
		return err
	}
	fmt.Printf("history: %s\n", resp.Get("history"))
	return nil
}

func checkStatus(ctx context.Context, baseURL string) error {
	status := lineclient.NewStatusClient(baseURL, lineclient.WithRetry(2))
	h, err := status.Health(ctx)
	if err != nil {
		return err
	}
	log.Printf("/healthz %s: rooms=%d sessions=%d %s", h.Status, h.Rooms, h.Sessions, h.Error)
	if h.Status != "ok" {
		return fmt.Errorf("backend %s", h.Status)
	}
	rank, err := status.Rank(ctx, 5)
	if err != nil {
		return err
	}
	for i, r := range rank {
		fmt.Printf("%d. %s %d/%d/%d\n", i+1, r.User, r.Wins, r.Losses, r.Draws)
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
