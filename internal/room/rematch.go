package room

import (
	"context"

	"go.uber.org/zap"

	"github.com/park285/tictac-server/internal/obslog"
)

// OfferReplay records a rematch offer from a seated player of a closed room.
func (m *Manager) OfferReplay(ctx context.Context, id, user string) error {
	r, err := m.lock(id)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	if r.status != StatusClosed || !r.seated(user) {
		return ErrRoomUnavailable
	}
	if err := r.replay.Offer(user); err != nil {
		return err
	}
	obslog.L().Info("replay_offer", zap.String("room", r.id), zap.String("by", user))
	return nil
}

// AcceptReplay restarts a closed room on the opponent's offer. The offerer
// learns about it on their next State call.
func (m *Manager) AcceptReplay(ctx context.Context, id, user string) (Snapshot, error) {
	r, err := m.lock(id)
	if err != nil {
		return Snapshot{}, err
	}
	defer r.mu.Unlock()

	if r.status != StatusClosed || !r.seated(user) || r.host == "" || r.guest == "" {
		return Snapshot{}, ErrNoOffer
	}
	by, err := r.replay.Accept(user)
	if err != nil {
		return Snapshot{}, err
	}
	r.start()
	m.event(ctx, r)
	obslog.L().Info("replay_accept", zap.String("room", r.id), zap.String("by", by), zap.String("accepted_by", user))
	return r.snapshot(), nil
}

// DeclineReplay refuses the opponent's offer; the room stays closed.
func (m *Manager) DeclineReplay(ctx context.Context, id, user string) error {
	r, err := m.lock(id)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	if r.status != StatusClosed || !r.seated(user) {
		return ErrNoOffer
	}
	by, err := r.replay.Decline(user)
	if err != nil {
		return err
	}
	obslog.L().Info("replay_decline", zap.String("room", r.id), zap.String("by", by), zap.String("declined_by", user))
	return nil
}
