package booking

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPending, StatusConfirmed},
		{StatusPending, StatusCancelled},
		{StatusPending, StatusExpired},
		{StatusConfirmed, StatusActive},
		{StatusConfirmed, StatusCancelled},
		{StatusActive, StatusCompleted},
	}
	for _, tr := range allowed {
		if !CanTransition(tr.from, tr.to) {
			t.Fatalf("expected %s -> %s to be allowed", tr.from, tr.to)
		}
	}

	denied := []struct{ from, to Status }{
		{StatusPending, StatusActive},
		{StatusPending, StatusCompleted},
		{StatusConfirmed, StatusPending},
		{StatusConfirmed, StatusCompleted},
		{StatusConfirmed, StatusExpired},
		{StatusActive, StatusCancelled},
		{StatusActive, StatusPending},
		{StatusCompleted, StatusActive},
		{StatusExpired, StatusConfirmed},
	}
	for _, tr := range denied {
		if CanTransition(tr.from, tr.to) {
			t.Fatalf("expected %s -> %s to be denied", tr.from, tr.to)
		}
	}
}

func TestTerminalStatusesAdmitNoTransitions(t *testing.T) {
	all := []Status{StatusPending, StatusConfirmed, StatusActive, StatusCompleted, StatusCancelled, StatusExpired}
	terminal := []Status{StatusCompleted, StatusCancelled, StatusExpired}

	for _, from := range terminal {
		if !from.Terminal() {
			t.Fatalf("expected %s to be terminal", from)
		}
		for _, to := range all {
			if CanTransition(from, to) {
				t.Fatalf("expected terminal %s to deny transition to %s", from, to)
			}
		}
	}

	for _, s := range []Status{StatusPending, StatusConfirmed, StatusActive} {
		if s.Terminal() {
			t.Fatalf("expected %s not to be terminal", s)
		}
	}
}

func TestKnown(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusConfirmed, StatusActive, StatusCompleted, StatusCancelled, StatusExpired} {
		if !s.Known() {
			t.Fatalf("expected %s to be known", s)
		}
	}
	if Status("rejected").Known() {
		t.Fatal("expected unknown status to report false")
	}
	if Status("").Known() {
		t.Fatal("expected empty status to report false")
	}
}

func TestNextByClock(t *testing.T) {
	checkIn := time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC)
	checkOut := time.Date(2025, 6, 4, 11, 0, 0, 0, time.UTC)

	// Before the stay opens nothing is due.
	if _, due := NextByClock(StatusConfirmed, checkIn, checkOut, checkIn.Add(-time.Hour)); due {
		t.Fatal("expected no transition before check-in")
	}

	// At and after check-in a confirmed booking becomes active.
	next, due := NextByClock(StatusConfirmed, checkIn, checkOut, checkIn)
	if !due || next != StatusActive {
		t.Fatalf("expected confirmed -> active at check-in, got %s (due=%v)", next, due)
	}

	// During the stay an active booking stays put.
	if _, due := NextByClock(StatusActive, checkIn, checkOut, checkOut.Add(-time.Hour)); due {
		t.Fatal("expected no transition before check-out")
	}

	// At check-out an active booking completes.
	next, due = NextByClock(StatusActive, checkIn, checkOut, checkOut)
	if !due || next != StatusCompleted {
		t.Fatalf("expected active -> completed at check-out, got %s (due=%v)", next, due)
	}

	// Statuses outside the clock path never move.
	for _, s := range []Status{StatusPending, StatusCompleted, StatusCancelled, StatusExpired} {
		if _, due := NextByClock(s, checkIn, checkOut, checkOut.Add(time.Hour)); due {
			t.Fatalf("expected %s to ignore the clock", s)
		}
	}
}
