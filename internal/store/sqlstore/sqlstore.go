// Package sqlstore implements store.Store on database/sql for SQLite
// (modernc.org/sqlite) and PostgreSQL (lib/pq).
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/park285/tictac-server/internal/domain"
	"github.com/park285/tictac-server/internal/store"
)

// Store persists users and the event log in SQL tables.
type Store struct {
	db *sql.DB
	d  dialect
}

var _ store.Store = (*Store)(nil)

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

// OpenSQLite opens (creating if needed) a SQLite database file. The path
// ":memory:" gives a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	memory := path == ":memory:"
	if !memory {
		path = filepath.Clean(path)
	}
	db, err := sql.Open(sqliteDialect.driver, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one connection: keeps ":memory:" a single database and serializes writers
	db.SetMaxOpenConns(1)

	pragmas := []string{"PRAGMA busy_timeout = 5000", "PRAGMA foreign_keys = ON"}
	if !memory {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL", "PRAGMA synchronous = NORMAL")
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite %s: %w", p, err)
		}
	}
	return open(ctx, db, sqliteDialect)
}

// OpenPostgres connects with lib/pq using a DATABASE_URL style DSN.
func OpenPostgres(ctx context.Context, databaseURL string) (*Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open(postgresDialect.driver, databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	return open(ctx, db, postgresDialect)
}

func open(ctx context.Context, db *sql.DB, d dialect) (*Store, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", d.name, err)
	}
	s := &Store{db: db, d: d}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range s.d.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}
	return nil
}

func (s *Store) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.d.rebind(q), args...)
}

func (s *Store) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.d.rebind(q), args...)
}

func (s *Store) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.d.rebind(q), args...)
}

func (s *Store) UserExists(ctx context.Context, name string) (bool, error) {
	var one int
	err := s.queryRow(ctx, `SELECT 1 FROM users WHERE name = ?`, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup user: %w", err)
	}
	return true, nil
}

func (s *Store) AddUser(ctx context.Context, name, passHash string) error {
	_, err := s.exec(ctx,
		`INSERT INTO users (name, pass_hash, wins, losses, draws, created_at) VALUES (?, ?, 0, 0, 0, ?)`,
		name, passHash, toMillis(time.Now()))
	if err != nil {
		if s.d.unique(err) {
			return store.ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) PasswordHash(ctx context.Context, name string) (string, error) {
	var h string
	err := s.queryRow(ctx, `SELECT pass_hash FROM users WHERE name = ?`, name).Scan(&h)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load password hash: %w", err)
	}
	return h, nil
}

func (s *Store) Record(ctx context.Context, name string) (domain.Record, error) {
	var r domain.Record
	err := s.queryRow(ctx, `SELECT wins, losses, draws FROM users WHERE name = ?`, name).Scan(&r.Wins, &r.Losses, &r.Draws)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Record{}, nil
	}
	if err != nil {
		return domain.Record{}, fmt.Errorf("load record: %w", err)
	}
	return r, nil
}

func (s *Store) UpdateResult(ctx context.Context, name string, o domain.Outcome) error {
	var col string
	switch o {
	case domain.OutcomeWin:
		col = "wins"
	case domain.OutcomeLoss:
		col = "losses"
	case domain.OutcomeDraw:
		col = "draws"
	default:
		return fmt.Errorf("unknown outcome %q", o)
	}
	res, err := s.exec(ctx, `UPDATE users SET `+col+` = `+col+` + 1 WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("update result: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrUserNotFound
	}
	return nil
}

func (s *Store) AppendRoomEvent(ctx context.Context, ev domain.RoomEvent) error {
	_, err := s.exec(ctx,
		`INSERT INTO room_events (room, host, guest, status, at) VALUES (?, ?, ?, ?, ?)`,
		ev.Room, ev.Host, ev.Guest, ev.Status, toMillis(ev.At))
	if err != nil {
		return fmt.Errorf("append room event: %w", err)
	}
	return nil
}

func (s *Store) AppendMatch(ctx context.Context, m domain.Match) error {
	_, err := s.exec(ctx,
		`INSERT INTO matches (match_id, room, player_x, player_o, winner, moves, at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Room, m.X, m.O, m.Winner, store.JoinMoves(m.Moves), toMillis(m.At))
	if err != nil {
		return fmt.Errorf("append match: %w", err)
	}
	return nil
}

func (s *Store) AppendChat(ctx context.Context, msg domain.ChatMessage) error {
	_, err := s.exec(ctx,
		`INSERT INTO chat_messages (room, sender, body, at) VALUES (?, ?, ?, ?)`,
		msg.Room, msg.From, msg.Text, toMillis(msg.At))
	if err != nil {
		return fmt.Errorf("append chat: %w", err)
	}
	return nil
}

func (s *Store) LastWinnerForRoom(ctx context.Context, room string) (string, bool, error) {
	var w string
	err := s.queryRow(ctx, `SELECT winner FROM matches WHERE room = ? ORDER BY seq DESC LIMIT 1`, room).Scan(&w)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("last winner: %w", err)
	}
	return w, true, nil
}

func (s *Store) HistoryCompact(ctx context.Context, user string) (string, error) {
	rows, err := s.query(ctx,
		`SELECT match_id, room, player_x, player_o, winner, moves, at FROM matches
		 WHERE player_x = ? OR player_o = ? ORDER BY seq`, user, user)
	if err != nil {
		return "", fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var matches []domain.Match
	for rows.Next() {
		var (
			m     domain.Match
			moves string
			at    int64
		)
		if err := rows.Scan(&m.ID, &m.Room, &m.X, &m.O, &m.Winner, &moves, &at); err != nil {
			return "", fmt.Errorf("scan history: %w", err)
		}
		m.Moves = store.SplitMoves(moves)
		m.At = fromMillis(at)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate history: %w", err)
	}
	return store.FormatHistory(user, matches), nil
}

func (s *Store) ChatCompact(ctx context.Context, room string, limit int) (string, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.query(ctx,
		`SELECT sender, body, at FROM (
		   SELECT seq, sender, body, at FROM chat_messages WHERE room = ? ORDER BY seq DESC LIMIT ?
		 ) AS recent ORDER BY seq`, room, limit)
	if err != nil {
		return "", fmt.Errorf("query chat: %w", err)
	}
	defer rows.Close()

	var msgs []domain.ChatMessage
	for rows.Next() {
		m := domain.ChatMessage{Room: room}
		var at int64
		if err := rows.Scan(&m.From, &m.Text, &at); err != nil {
			return "", fmt.Errorf("scan chat: %w", err)
		}
		m.At = fromMillis(at)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate chat: %w", err)
	}
	return store.FormatChat(msgs, limit), nil
}

func (s *Store) LeaderboardCompact(ctx context.Context, limit int) (string, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.query(ctx,
		`SELECT name, wins, losses, draws FROM users ORDER BY wins DESC, name ASC LIMIT ?`, limit)
	if err != nil {
		return "", fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var out []domain.Standing
	for rows.Next() {
		var st domain.Standing
		if err := rows.Scan(&st.User, &st.Wins, &st.Losses, &st.Draws); err != nil {
			return "", fmt.Errorf("scan leaderboard: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate leaderboard: %w", err)
	}
	return store.FormatLeaderboard(out, limit, store.LeaderboardV2), nil
}

func (s *Store) LeaderboardVersion() int { return store.LeaderboardV2 }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
