package sqlstore

import (
	"errors"
	"strconv"
	"strings"

	"github.com/lib/pq"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// dialect captures what differs between the SQLite and PostgreSQL schemas.
type dialect struct {
	name       string
	driver     string
	serial     string
	positional bool
	unique     func(error) bool
}

var (
	sqliteDialect = dialect{
		name:   "sqlite",
		driver: "sqlite",
		serial: "INTEGER PRIMARY KEY AUTOINCREMENT",
		unique: isSQLiteUnique,
	}
	postgresDialect = dialect{
		name:       "postgres",
		driver:     "postgres",
		serial:     "BIGSERIAL PRIMARY KEY",
		positional: true,
		unique:     isPostgresUnique,
	}
)

// rebind rewrites '?' placeholders as $1, $2, ... for PostgreSQL.
func (d dialect) rebind(q string) string {
	if !d.positional || !strings.Contains(q, "?") {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

func (d dialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
		   name TEXT PRIMARY KEY,
		   pass_hash TEXT NOT NULL,
		   wins INTEGER NOT NULL DEFAULT 0,
		   losses INTEGER NOT NULL DEFAULT 0,
		   draws INTEGER NOT NULL DEFAULT 0,
		   created_at BIGINT NOT NULL
		 )`,
		`CREATE TABLE IF NOT EXISTS room_events (
		   seq ` + d.serial + `,
		   room TEXT NOT NULL,
		   host TEXT NOT NULL,
		   guest TEXT NOT NULL,
		   status TEXT NOT NULL,
		   at BIGINT NOT NULL
		 )`,
		`CREATE TABLE IF NOT EXISTS matches (
		   seq ` + d.serial + `,
		   match_id TEXT NOT NULL UNIQUE,
		   room TEXT NOT NULL,
		   player_x TEXT NOT NULL,
		   player_o TEXT NOT NULL,
		   winner TEXT NOT NULL,
		   moves TEXT NOT NULL,
		   at BIGINT NOT NULL
		 )`,
		`CREATE INDEX IF NOT EXISTS matches_room_idx ON matches (room, seq)`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
		   seq ` + d.serial + `,
		   room TEXT NOT NULL,
		   sender TEXT NOT NULL,
		   body TEXT NOT NULL,
		   at BIGINT NOT NULL
		 )`,
		`CREATE INDEX IF NOT EXISTS chat_room_idx ON chat_messages (room, seq)`,
	}
}

func isSQLiteUnique(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func isPostgresUnique(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
