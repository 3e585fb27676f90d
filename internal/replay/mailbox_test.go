package replay

import (
	"errors"
	"testing"
)

func TestOfferDeliveredOnceToOpponent(t *testing.T) {
	var m Mailbox
	if err := m.Offer("alice"); err != nil {
		t.Fatalf("Offer: %v", err)
	}

	if n := m.Poll("alice"); n != (Notice{}) {
		t.Fatalf("offerer got %+v", n)
	}
	if n := m.Poll("bob"); n != (Notice{Kind: NoticeOffer, From: "alice"}) {
		t.Fatalf("first poll: %+v", n)
	}
	if n := m.Poll("bob"); n != (Notice{}) {
		t.Fatalf("second poll should be empty: %+v", n)
	}
	if m.status != StatusOffered {
		t.Fatalf("offer should stay pending, status=%q", m.status)
	}
}

func TestAcceptNotifiesOfferer(t *testing.T) {
	var m Mailbox
	if err := m.Offer("alice"); err != nil {
		t.Fatalf("Offer: %v", err)
	}
	if _, err := m.Accept("alice"); !errors.Is(err, ErrNoOffer) {
		t.Fatalf("self accept: want ErrNoOffer, got %v", err)
	}

	by, err := m.Accept("bob")
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if by != "alice" || m.status != StatusAccepted {
		t.Fatalf("by=%q status=%q", by, m.status)
	}

	if n := m.Poll("bob"); n != (Notice{}) {
		t.Fatalf("accepter got %+v", n)
	}
	if n := m.Poll("alice"); n != (Notice{Kind: NoticeStart}) {
		t.Fatalf("offerer got %+v", n)
	}
	if m.status != StatusNone {
		t.Fatalf("mailbox not cleared: %q", m.status)
	}
	if n := m.Poll("alice"); n != (Notice{}) {
		t.Fatalf("start delivered twice: %+v", n)
	}
}

func TestDeclineNotifiesOfferer(t *testing.T) {
	var m Mailbox
	if err := m.Offer("alice"); err != nil {
		t.Fatalf("Offer: %v", err)
	}
	if _, err := m.Decline("bob"); err != nil {
		t.Fatalf("Decline: %v", err)
	}

	if n := m.Poll("alice"); n != (Notice{Kind: NoticeDeclined}) {
		t.Fatalf("offerer got %+v", n)
	}
	if n := m.Poll("alice"); n != (Notice{}) {
		t.Fatalf("decline delivered twice: %+v", n)
	}
	if _, err := m.Decline("bob"); !errors.Is(err, ErrNoOffer) {
		t.Fatalf("second decline: want ErrNoOffer, got %v", err)
	}
}

func TestReofferResetsDelivery(t *testing.T) {
	var m Mailbox
	if err := m.Offer("alice"); err != nil {
		t.Fatalf("Offer: %v", err)
	}
	m.Poll("bob")
	if err := m.Offer("bob"); err != nil {
		t.Fatalf("re-Offer: %v", err)
	}
	if n := m.Poll("alice"); n != (Notice{Kind: NoticeOffer, From: "bob"}) {
		t.Fatalf("got %+v", n)
	}
}

func TestInvalidArgs(t *testing.T) {
	var m Mailbox
	if err := m.Offer(""); !errors.Is(err, ErrInvalidArgs) {
		t.Fatalf("Offer(\"\"): %v", err)
	}
	if _, err := m.Accept(""); !errors.Is(err, ErrInvalidArgs) {
		t.Fatalf("Accept(\"\"): %v", err)
	}
	if _, err := m.Accept("bob"); !errors.Is(err, ErrNoOffer) {
		t.Fatalf("Accept without offer: %v", err)
	}
}
