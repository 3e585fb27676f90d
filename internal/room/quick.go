package room

import (
	"context"

	"go.uber.org/zap"

	"github.com/park285/tictac-server/internal/obslog"
)

// QuickResult is either a queued acknowledgement or a started room.
type QuickResult struct {
	Queued bool
	Room   Snapshot
}

// Quick pairs user with the longest-waiting queued player. The popped player
// hosts. A user popped against themself goes back to the tail, so the queue
// may hold duplicates.
func (m *Manager) Quick(ctx context.Context, user string) QuickResult {
	m.qmu.Lock()
	defer m.qmu.Unlock()

	if len(m.queue) == 0 {
		m.queue = append(m.queue, user)
		obslog.L().Info("quick_queued", zap.String("user", user))
		return QuickResult{Queued: true}
	}
	head := m.queue[0]
	m.queue = m.queue[1:]
	if head == user {
		m.queue = append(m.queue, user)
		return QuickResult{Queued: true}
	}

	r := newRoom("", head)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guest = user
	r.start()
	m.publish(r)
	m.event(ctx, r)
	obslog.L().Info("quick_paired", zap.String("room", r.id), zap.String("host", head), zap.String("guest", user))
	return QuickResult{Room: r.snapshot()}
}

// QueueLen reports how many entries wait in the quick-match queue.
func (m *Manager) QueueLen() int {
	m.qmu.Lock()
	defer m.qmu.Unlock()
	return len(m.queue)
}

func (m *Manager) dequeue(user string) {
	m.qmu.Lock()
	defer m.qmu.Unlock()
	kept := m.queue[:0]
	for _, u := range m.queue {
		if u != user {
			kept = append(kept, u)
		}
	}
	m.queue = kept
}
