// Package redisstore implements store.Store on Redis: users are hashes, the
// leaderboard is a sorted set keyed by wins, history and chat are lists of
// JSON documents, and room lifecycle events go to a stream.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/park285/tictac-server/internal/domain"
	"github.com/park285/tictac-server/internal/store"
)

const defaultPrefix = "ttt:"

type Store struct {
	rdb    *redis.Client
	prefix string
	owned  bool
}

var _ store.Store = (*Store)(nil)

type Option func(*Store)

// WithPrefix namespaces every key.
func WithPrefix(p string) Option {
	return func(s *Store) { s.prefix = p }
}

// New wraps an existing client. Close does not close it.
func New(rdb *redis.Client, opts ...Option) *Store {
	s := &Store{rdb: rdb, prefix: defaultPrefix}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open dials redisURL (redis://[:pass@]host:port/db) and pings it.
func Open(ctx context.Context, redisURL string, opts ...Option) (*Store, error) {
	o, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(o)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	s := New(rdb, opts...)
	s.owned = true
	return s, nil
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid db %q", p)
		}
		db = n
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}

func (s *Store) keyUser(name string) string    { return s.prefix + "user:" + name }
func (s *Store) keyRank() string               { return s.prefix + "rank" }
func (s *Store) keyHistory(name string) string { return s.prefix + "history:" + name }
func (s *Store) keyWinner(room string) string  { return s.prefix + "room:" + room + ":winner" }
func (s *Store) keyChat(room string) string    { return s.prefix + "chat:" + room }
func (s *Store) keyEvents() string             { return s.prefix + "events:room" }

type matchDoc struct {
	ID     string `json:"id"`
	Room   string `json:"room"`
	X      string `json:"x"`
	O      string `json:"o"`
	Winner string `json:"winner"`
	Moves  []int  `json:"moves"`
	At     int64  `json:"at"`
}

type chatDoc struct {
	From string `json:"from"`
	Text string `json:"text"`
	At   int64  `json:"at"`
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().UnixMilli()
}

func (s *Store) UserExists(ctx context.Context, name string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.keyUser(name)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) AddUser(ctx context.Context, name, passHash string) error {
	key := s.keyUser(name)
	ok, err := s.rdb.HSetNX(ctx, key, "pass", passHash).Result()
	if err != nil {
		return fmt.Errorf("add user: %w", err)
	}
	if !ok {
		return store.ErrUserExists
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, "wins", 0, "losses", 0, "draws", 0, "created", time.Now().UnixMilli())
		p.ZAddNX(ctx, s.keyRank(), redis.Z{Score: 0, Member: name})
		return nil
	})
	if err != nil {
		return fmt.Errorf("init user: %w", err)
	}
	return nil
}

func (s *Store) PasswordHash(ctx context.Context, name string) (string, error) {
	h, err := s.rdb.HGet(ctx, s.keyUser(name), "pass").Result()
	if errors.Is(err, redis.Nil) {
		return "", store.ErrUserNotFound
	}
	if err != nil {
		return "", err
	}
	return h, nil
}

func (s *Store) Record(ctx context.Context, name string) (domain.Record, error) {
	vals, err := s.rdb.HMGet(ctx, s.keyUser(name), "wins", "losses", "draws").Result()
	if err != nil {
		return domain.Record{}, err
	}
	return recordFrom(vals), nil
}

func recordFrom(vals []any) domain.Record {
	n := func(i int) int {
		if i >= len(vals) {
			return 0
		}
		str, _ := vals[i].(string)
		v, _ := strconv.Atoi(str)
		return v
	}
	return domain.Record{Wins: n(0), Losses: n(1), Draws: n(2)}
}

func (s *Store) UpdateResult(ctx context.Context, name string, o domain.Outcome) error {
	var field string
	switch o {
	case domain.OutcomeWin:
		field = "wins"
	case domain.OutcomeLoss:
		field = "losses"
	case domain.OutcomeDraw:
		field = "draws"
	default:
		return fmt.Errorf("unknown outcome %q", o)
	}
	exists, err := s.UserExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return store.ErrUserNotFound
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HIncrBy(ctx, s.keyUser(name), field, 1)
		if o == domain.OutcomeWin {
			p.ZIncrBy(ctx, s.keyRank(), 1, name)
		}
		return nil
	})
	return err
}

func (s *Store) AppendRoomEvent(ctx context.Context, ev domain.RoomEvent) error {
	return s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.keyEvents(),
		Values: map[string]any{
			"room":   ev.Room,
			"host":   ev.Host,
			"guest":  ev.Guest,
			"status": ev.Status,
			"at":     millis(ev.At),
		},
	}).Err()
}

func (s *Store) AppendMatch(ctx context.Context, m domain.Match) error {
	raw, err := json.Marshal(matchDoc{ID: m.ID, Room: m.Room, X: m.X, O: m.O, Winner: m.Winner, Moves: m.Moves, At: millis(m.At)})
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, who := range []string{m.X, m.O} {
			if who != "" {
				p.RPush(ctx, s.keyHistory(who), raw)
			}
		}
		p.Set(ctx, s.keyWinner(m.Room), m.Winner, 0)
		return nil
	})
	return err
}

func (s *Store) AppendChat(ctx context.Context, msg domain.ChatMessage) error {
	raw, err := json.Marshal(chatDoc{From: msg.From, Text: msg.Text, At: millis(msg.At)})
	if err != nil {
		return err
	}
	return s.rdb.RPush(ctx, s.keyChat(msg.Room), raw).Err()
}

func (s *Store) LastWinnerForRoom(ctx context.Context, room string) (string, bool, error) {
	w, err := s.rdb.Get(ctx, s.keyWinner(room)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return w, true, nil
}

func (s *Store) HistoryCompact(ctx context.Context, user string) (string, error) {
	raws, err := s.rdb.LRange(ctx, s.keyHistory(user), 0, -1).Result()
	if err != nil {
		return "", err
	}
	matches := make([]domain.Match, 0, len(raws))
	for _, raw := range raws {
		var d matchDoc
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return "", fmt.Errorf("decode match: %w", err)
		}
		matches = append(matches, domain.Match{
			ID: d.ID, Room: d.Room, X: d.X, O: d.O, Winner: d.Winner, Moves: d.Moves,
			At: time.UnixMilli(d.At).UTC(),
		})
	}
	return store.FormatHistory(user, matches), nil
}

func (s *Store) ChatCompact(ctx context.Context, room string, limit int) (string, error) {
	if limit <= 0 {
		limit = 20
	}
	raws, err := s.rdb.LRange(ctx, s.keyChat(room), int64(-limit), -1).Result()
	if err != nil {
		return "", err
	}
	msgs := make([]domain.ChatMessage, 0, len(raws))
	for _, raw := range raws {
		var d chatDoc
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return "", fmt.Errorf("decode chat: %w", err)
		}
		msgs = append(msgs, domain.ChatMessage{Room: room, From: d.From, Text: d.Text, At: time.UnixMilli(d.At).UTC()})
	}
	return store.FormatChat(msgs, limit), nil
}

// LeaderboardCompact reads the top of the rank set, widens it to every
// member tied with the cut-off score, then orders ties by name.
func (s *Store) LeaderboardCompact(ctx context.Context, limit int) (string, error) {
	if limit <= 0 {
		limit = 10
	}
	top, err := s.rdb.ZRevRangeWithScores(ctx, s.keyRank(), 0, int64(limit-1)).Result()
	if err != nil {
		return "", err
	}
	if len(top) == 0 {
		return "", nil
	}
	cut := strconv.FormatFloat(top[len(top)-1].Score, 'f', -1, 64)
	names, err := s.rdb.ZRangeByScore(ctx, s.keyRank(), &redis.ZRangeBy{Min: cut, Max: "+inf"}).Result()
	if err != nil {
		return "", err
	}
	cmds := make([]*redis.SliceCmd, len(names))
	_, err = s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, n := range names {
			cmds[i] = p.HMGet(ctx, s.keyUser(n), "wins", "losses", "draws")
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	rows := make([]domain.Standing, len(names))
	for i, n := range names {
		rows[i] = domain.Standing{User: n, Record: recordFrom(cmds[i].Val())}
	}
	store.SortStandings(rows)
	return store.FormatLeaderboard(rows, limit, store.LeaderboardV2), nil
}

func (s *Store) LeaderboardVersion() int { return store.LeaderboardV2 }

// RoomEventCount reports the stream length of the room event log.
func (s *Store) RoomEventCount(ctx context.Context) (int64, error) {
	return s.rdb.XLen(ctx, s.keyEvents()).Result()
}

func (s *Store) Ping(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }

func (s *Store) Close() error {
	if s == nil || s.rdb == nil || !s.owned {
		return nil
	}
	return s.rdb.Close()
}
