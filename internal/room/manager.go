package room

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/tictac-server/internal/domain"
	"github.com/park285/tictac-server/internal/obslog"
	"github.com/park285/tictac-server/internal/tictactoe"
)

// Recorder is the slice of the store the room layer writes to.
type Recorder interface {
	AppendRoomEvent(ctx context.Context, ev domain.RoomEvent) error
	AppendMatch(ctx context.Context, m domain.Match) error
	UpdateResult(ctx context.Context, name string, o domain.Outcome) error
	LastWinnerForRoom(ctx context.Context, room string) (string, bool, error)
}

type Manager struct {
	rec   Recorder
	rooms sync.Map // id -> *Room

	qmu   sync.Mutex
	queue []string

	now   func() time.Time
	newID func() string
}

type Option func(*Manager)

// WithClock replaces time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIDGenerator replaces the room id generator.
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) { m.newID = gen }
}

func NewManager(rec Recorder, opts ...Option) *Manager {
	m := &Manager{rec: rec, now: time.Now, newID: roomID}
	for _, o := range opts {
		o(m)
	}
	return m
}

// roomID returns `R-` + 6 upper-case hex characters.
func roomID() string {
	return "R-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
}

// matchID returns `M` + unix millis + a short random suffix.
func matchID(at time.Time) string {
	return "M" + strconv.FormatInt(at.UnixMilli(), 10) + "-" + strings.ToUpper(uuid.NewString()[:4])
}

// publish inserts r under a fresh unique id.
func (m *Manager) publish(r *Room) {
	for {
		r.id = m.newID()
		if _, loaded := m.rooms.LoadOrStore(r.id, r); !loaded {
			return
		}
	}
}

func (m *Manager) get(id string) (*Room, bool) {
	if id == "" {
		return nil, false
	}
	v, ok := m.rooms.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Room), true
}

// lock returns the room locked, or ErrNoRoom if it is missing or was
// removed while waiting for the lock.
func (m *Manager) lock(id string) (*Room, error) {
	r, ok := m.get(id)
	if !ok {
		return nil, ErrNoRoom
	}
	r.mu.Lock()
	if r.status == StatusRemoved {
		r.mu.Unlock()
		return nil, ErrNoRoom
	}
	return r, nil
}

// Create opens a waiting room hosted by user.
func (m *Manager) Create(ctx context.Context, user string) Snapshot {
	r := newRoom("", user)
	r.mu.Lock()
	defer r.mu.Unlock()
	m.publish(r)
	m.event(ctx, r)
	obslog.L().Info("room_create", zap.String("room", r.id), zap.String("host", user))
	return r.snapshot()
}

// Join seats user as guest and starts play.
func (m *Manager) Join(ctx context.Context, id, user string) (Snapshot, error) {
	r, err := m.lock(id)
	if err != nil {
		return Snapshot{}, err
	}
	defer r.mu.Unlock()

	if r.status != StatusWaiting || r.host == "" || r.guest != "" {
		return Snapshot{}, ErrRoomUnavailable
	}
	if r.host == user {
		return Snapshot{}, ErrCannotJoinOwnRoom
	}
	r.guest = user
	r.replay.Clear()
	r.start()
	m.event(ctx, r)
	obslog.L().Info("room_join", zap.String("room", r.id), zap.String("host", r.host), zap.String("guest", user))
	return r.snapshot(), nil
}

// ReadyResult tells whether SetReady started a game.
type ReadyResult struct {
	Started bool
	Room    Snapshot
}

// SetReady sets the caller's ready flag. Play starts once both seats are
// filled and both flags are set, unless a game is already running.
func (m *Manager) SetReady(ctx context.Context, id, user string, ready bool) (ReadyResult, error) {
	r, err := m.lock(id)
	if err != nil {
		return ReadyResult{}, err
	}
	defer r.mu.Unlock()

	switch user {
	case "":
	case r.host:
		r.hostReady = ready
	case r.guest:
		r.guestReady = ready
	}

	full := r.host != "" && r.guest != ""
	switch r.status {
	case StatusWaiting, StatusReady, StatusClosed:
		if full && r.hostReady && r.guestReady {
			r.replay.Clear()
			r.start()
			m.event(ctx, r)
			obslog.L().Info("room_ready_start", zap.String("room", r.id))
			return ReadyResult{Started: true, Room: r.snapshot()}, nil
		}
		if r.status != StatusClosed {
			if full && (r.hostReady || r.guestReady) {
				r.status = StatusReady
			} else {
				r.status = StatusWaiting
			}
		}
	}
	return ReadyResult{Room: r.snapshot()}, nil
}

// Leave vacates user's seat. Leaving a running game forfeits it.
// Callers not seated in the room get the current status back.
func (m *Manager) Leave(ctx context.Context, id, user string) (Status, error) {
	r, err := m.lock(id)
	if err != nil {
		return "", err
	}
	defer r.mu.Unlock()
	if !r.seated(user) {
		return r.status, nil
	}
	return m.leaveLocked(ctx, r, user), nil
}

func (m *Manager) leaveLocked(ctx context.Context, r *Room, user string) Status {
	if r.status == StatusPlaying {
		m.forfeitLocked(ctx, r, user)
	}
	r.vacate(user)
	r.game.Reset()
	if r.empty() {
		r.status = StatusRemoved
		m.rooms.CompareAndDelete(r.id, r)
		m.event(ctx, r)
		obslog.L().Info("room_removed", zap.String("room", r.id))
		return r.status
	}
	r.status = StatusWaiting
	m.event(ctx, r)
	obslog.L().Info("room_leave", zap.String("room", r.id), zap.String("user", user), zap.String("host", r.host))
	return r.status
}

func (m *Manager) forfeitLocked(ctx context.Context, r *Room, loser string) {
	winner := r.host
	if loser == r.host {
		winner = r.guest
	}
	r.close()
	if winner == "" {
		m.event(ctx, r)
		obslog.L().Info("match_abandon", zap.String("room", r.id), zap.String("user", loser))
		return
	}
	m.recordMatch(ctx, r, winner)
	m.event(ctx, r)
	obslog.L().Info("match_forfeit", zap.String("room", r.id), zap.String("winner", winner), zap.String("loser", loser))
}

// MoveResult is the board after a successful move.
type MoveResult struct {
	Outcome tictactoe.Outcome
	Winner  string
	Room    Snapshot
}

// Move places the caller's mark at idx.
func (m *Manager) Move(ctx context.Context, id, user string, idx int) (MoveResult, error) {
	r, err := m.lock(id)
	if errors.Is(err, ErrNoRoom) {
		return MoveResult{}, ErrNotPlaying
	}
	if err != nil {
		return MoveResult{}, err
	}
	defer r.mu.Unlock()

	if r.status != StatusPlaying {
		return MoveResult{}, ErrNotPlaying
	}
	res, err := r.game.Play(idx, r.markOf(user))
	if err != nil {
		return MoveResult{}, err
	}

	out := MoveResult{Outcome: res.Outcome}
	switch res.Outcome {
	case tictactoe.Win:
		out.Winner = r.playerOf(res.Winner)
		r.close()
		m.recordMatch(ctx, r, out.Winner)
		m.event(ctx, r)
		obslog.L().Info("match_end", zap.String("room", r.id), zap.String("winner", out.Winner))
	case tictactoe.Draw:
		r.close()
		m.recordMatch(ctx, r, "")
		m.event(ctx, r)
		obslog.L().Info("match_end", zap.String("room", r.id), zap.Bool("draw", true))
	}
	out.Room = r.snapshot()
	return out, nil
}

// State returns the room as seen by user, consuming any replay notice owed
// to them.
func (m *Manager) State(ctx context.Context, id, user string) (Snapshot, error) {
	r, err := m.lock(id)
	if err != nil {
		return Snapshot{}, err
	}
	snap := r.snapshot()
	if r.seated(user) {
		snap.Notice = r.replay.Poll(user)
	}
	r.mu.Unlock()
	m.attachResult(ctx, &snap)
	return snap, nil
}

// Info is State without replay delivery.
func (m *Manager) Info(ctx context.Context, id string) (Snapshot, error) {
	r, err := m.lock(id)
	if err != nil {
		return Snapshot{}, err
	}
	snap := r.snapshot()
	r.mu.Unlock()
	m.attachResult(ctx, &snap)
	return snap, nil
}

func (m *Manager) attachResult(ctx context.Context, snap *Snapshot) {
	if snap.Status != StatusClosed {
		return
	}
	w, found, err := m.rec.LastWinnerForRoom(ctx, snap.ID)
	if err != nil {
		obslog.L().Warn("last_winner_failed", zap.String("room", snap.ID), zap.Error(err))
		return
	}
	snap.HasResult, snap.Winner = found, w
}

// List returns waiting, ready and playing rooms ordered by id.
func (m *Manager) List() []Snapshot {
	var out []Snapshot
	m.rooms.Range(func(_, v any) bool {
		r := v.(*Room)
		r.mu.Lock()
		if r.status.Listed() {
			out = append(out, r.snapshot())
		}
		r.mu.Unlock()
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of rooms in the directory.
func (m *Manager) Count() int {
	n := 0
	m.rooms.Range(func(_, _ any) bool { n++; return true })
	return n
}

// Disconnect runs the leave path for every room user occupies that is not
// closed, and drops the user from the quick-match queue.
func (m *Manager) Disconnect(ctx context.Context, user string) {
	if user == "" {
		return
	}
	m.dequeue(user)

	var ids []string
	m.rooms.Range(func(k, v any) bool {
		r := v.(*Room)
		r.mu.Lock()
		if r.seated(user) && r.status != StatusClosed && r.status != StatusRemoved {
			ids = append(ids, k.(string))
		}
		r.mu.Unlock()
		return true
	})
	for _, id := range ids {
		r, err := m.lock(id)
		if err != nil {
			continue
		}
		if r.seated(user) && r.status != StatusClosed {
			m.leaveLocked(ctx, r, user)
		}
		r.mu.Unlock()
	}
	if len(ids) > 0 {
		obslog.L().Info("disconnect_leave", zap.String("user", user), zap.Strings("rooms", ids))
	}
}

func (m *Manager) recordMatch(ctx context.Context, r *Room, winner string) {
	at := m.now()
	match := domain.Match{
		ID:     matchID(at),
		Room:   r.id,
		X:      r.host,
		O:      r.guest,
		Winner: winner,
		Moves:  r.game.MovesCopy(),
		At:     at,
	}
	if err := m.rec.AppendMatch(ctx, match); err != nil {
		obslog.L().Error("append_match_failed", zap.String("room", r.id), zap.Error(err))
	}

	results := map[string]domain.Outcome{}
	if winner == "" {
		results[r.host], results[r.guest] = domain.OutcomeDraw, domain.OutcomeDraw
	} else {
		results[winner] = domain.OutcomeWin
		results[match.Opponent(winner)] = domain.OutcomeLoss
	}
	for _, who := range []string{r.host, r.guest} {
		if who == "" {
			continue
		}
		if err := m.rec.UpdateResult(ctx, who, results[who]); err != nil {
			obslog.L().Error("update_result_failed", zap.String("user", who), zap.Error(err))
		}
	}
}

func (m *Manager) event(ctx context.Context, r *Room) {
	ev := domain.RoomEvent{Room: r.id, Host: r.host, Guest: r.guest, Status: string(r.status), At: m.now()}
	if err := m.rec.AppendRoomEvent(ctx, ev); err != nil {
		obslog.L().Error("append_room_event_failed", zap.String("room", r.id), zap.Error(err))
	}
}
