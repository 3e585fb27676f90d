// Package replay implements the rematch handshake of a closed room: one
// player offers, the other accepts or declines, and each side learns the
// outcome exactly once by polling.
package replay

import "errors"

type Status string

const (
	StatusNone     Status = ""
	StatusOffered  Status = "OFFERED"
	StatusAccepted Status = "ACCEPTED"
	StatusDeclined Status = "DECLINED"
)

var (
	ErrInvalidArgs = errors.New("invalid arguments")
	// ErrNoOffer covers both "nothing pending" and "answering your own offer".
	ErrNoOffer = errors.New("no pending replay offer")
)

// NoticeKind tells a polling player what to show.
type NoticeKind int

const (
	NoticeNone NoticeKind = iota
	// NoticeOffer goes to the opponent of the offerer.
	NoticeOffer
	// NoticeDeclined and NoticeStart go back to the offerer.
	NoticeDeclined
	NoticeStart
)

type Notice struct {
	Kind NoticeKind
	From string
}

// Mailbox is a single-slot offer. It is not synchronized; the owning room's
// lock guards it.
type Mailbox struct {
	status    Status
	by        string
	delivered bool
}

// Offer replaces whatever is in the slot with a fresh offer from by.
func (m *Mailbox) Offer(by string) error {
	if by == "" {
		return ErrInvalidArgs
	}
	*m = Mailbox{status: StatusOffered, by: by}
	return nil
}

// Accept resolves a pending offer made by someone other than caller and
// returns the offerer.
func (m *Mailbox) Accept(caller string) (string, error) {
	return m.answer(caller, StatusAccepted)
}

// Decline is Accept's negative counterpart.
func (m *Mailbox) Decline(caller string) (string, error) {
	return m.answer(caller, StatusDeclined)
}

func (m *Mailbox) answer(caller string, to Status) (string, error) {
	if caller == "" {
		return "", ErrInvalidArgs
	}
	if m.status != StatusOffered || m.by == caller {
		return "", ErrNoOffer
	}
	m.status = to
	m.delivered = false
	return m.by, nil
}

// Poll returns the notice owed to viewer, consuming it.
func (m *Mailbox) Poll(viewer string) Notice {
	if viewer == "" {
		return Notice{}
	}
	switch m.status {
	case StatusOffered:
		if viewer != m.by && !m.delivered {
			m.delivered = true
			return Notice{Kind: NoticeOffer, From: m.by}
		}
	case StatusDeclined:
		if viewer == m.by {
			m.Clear()
			return Notice{Kind: NoticeDeclined}
		}
	case StatusAccepted:
		if viewer == m.by {
			m.Clear()
			return Notice{Kind: NoticeStart}
		}
	}
	return Notice{}
}

// Clear empties the slot.
func (m *Mailbox) Clear() { *m = Mailbox{} }
