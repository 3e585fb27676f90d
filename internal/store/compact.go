package store

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/park285/tictac-server/internal/domain"
)

// TimeLayout is used for timestamps inside compact listings.
const TimeLayout = time.RFC3339

// FormatHistory renders `matchId:opponent:Win|Loss|Draw:ts|` for every match
// user took part in, oldest first.
func FormatHistory(user string, matches []domain.Match) string {
	var b strings.Builder
	for _, m := range matches {
		if m.X != user && m.O != user {
			continue
		}
		b.WriteString(m.ID)
		b.WriteByte(':')
		b.WriteString(m.Opponent(user))
		b.WriteByte(':')
		b.WriteString(m.OutcomeFor(user).Label())
		b.WriteByte(':')
		b.WriteString(m.At.UTC().Format(TimeLayout))
		b.WriteByte('|')
	}
	return b.String()
}

// FormatChat renders `from: text|` lines, keeping only the last limit.
func FormatChat(msgs []domain.ChatMessage, limit int) string {
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(m.From)
		b.WriteString(": ")
		b.WriteString(m.Text)
		b.WriteByte('|')
	}
	return b.String()
}

// SortStandings orders by wins descending, then name.
func SortStandings(rows []domain.Standing) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Wins != rows[j].Wins {
			return rows[i].Wins > rows[j].Wins
		}
		return rows[i].User < rows[j].User
	})
}

// FormatLeaderboard renders the top limit rows of already sorted standings.
func FormatLeaderboard(rows []domain.Standing, limit, version int) string {
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	var b strings.Builder
	for _, r := range rows {
		b.WriteString(r.User)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(r.Wins))
		if version >= LeaderboardV2 {
			b.WriteByte(':')
			b.WriteString(strconv.Itoa(r.Losses))
			b.WriteByte(':')
			b.WriteString(strconv.Itoa(r.Draws))
		}
		b.WriteByte('|')
	}
	return b.String()
}

// UpgradeLeaderboard turns `name:wins|` entries into `name:wins:0:0|`.
func UpgradeLeaderboard(v1 string) string {
	var b strings.Builder
	for _, e := range strings.Split(v1, "|") {
		if e == "" {
			continue
		}
		b.WriteString(e)
		b.WriteString(":0:0|")
	}
	return b.String()
}

// JoinMoves and SplitMoves convert move history for text columns.
func JoinMoves(moves []int) string {
	parts := make([]string, len(moves))
	for i, m := range moves {
		parts[i] = strconv.Itoa(m)
	}
	return strings.Join(parts, ",")
}

func SplitMoves(s string) []int {
	if s == "" {
		return nil
	}
	var out []int
	for _, p := range strings.Split(s, ",") {
		if n, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
			out = append(out, n)
		}
	}
	return out
}
