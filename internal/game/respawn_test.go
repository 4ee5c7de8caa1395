package game

import (
	"shooter-sync/internal/domain"
	"shooter-sync/internal/replication"
	"slices"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestScheduler() (*RespawnScheduler, *[]domain.SessionID, *diagnostics) {
	rec := &diagnostics{}
	var fired []domain.SessionID
	gate := replication.NewGate(zerolog.Nop(), rec)
	r := NewRespawnScheduler(gate, zerolog.Nop(), func(id domain.SessionID) { fired = append(fired, id) })
	return r, &fired, rec
}

func TestRespawnFiresOnceAtDelay(t *testing.T) {
	r, fired, _ := newTestScheduler()
	t0 := time.Unix(0, 0)

	r.Schedule(replication.Authority, 1, 5*time.Second, t0)
	if n := r.Tick(replication.Authority, t0.Add(4999*time.Millisecond)); n != 0 {
		t.Fatalf("fired early")
	}
	if n := r.Tick(replication.Authority, t0.Add(5*time.Second)); n != 1 {
		t.Fatalf("expected 1 firing, got %d", n)
	}
	if n := r.Tick(replication.Authority, t0.Add(10*time.Second)); n != 0 {
		t.Fatalf("fired twice")
	}
	if !slices.Equal(*fired, []domain.SessionID{1}) {
		t.Fatalf("fired %v", *fired)
	}
}

func TestRespawnScheduleReplaces(t *testing.T) {
	r, fired, _ := newTestScheduler()
	t0 := time.Unix(0, 0)

	r.Schedule(replication.Authority, 1, 5*time.Second, t0)
	r.Schedule(replication.Authority, 1, 5*time.Second, t0.Add(2*time.Second))
	if r.Len() != 1 {
		t.Fatalf("timers stacked: %d", r.Len())
	}

	r.Tick(replication.Authority, t0.Add(5*time.Second))
	if len(*fired) != 0 {
		t.Fatalf("replaced timer fired")
	}
	r.Tick(replication.Authority, t0.Add(7*time.Second))
	r.Tick(replication.Authority, t0.Add(20*time.Second))
	if len(*fired) != 1 {
		t.Fatalf("expected exactly one firing, got %v", *fired)
	}
}

func TestRespawnOrderAndCancel(t *testing.T) {
	r, fired, _ := newTestScheduler()
	t0 := time.Unix(0, 0)

	r.Schedule(replication.Authority, 3, 2*time.Second, t0)
	r.Schedule(replication.Authority, 2, time.Second, t0)
	r.Schedule(replication.Authority, 1, 2*time.Second, t0)
	r.Schedule(replication.Authority, 4, time.Second, t0)
	r.CancelAll(4)

	if _, ok := r.Pending(4); ok {
		t.Fatalf("cancelled timer still pending")
	}
	r.Tick(replication.Authority, t0.Add(3*time.Second))
	if want := []domain.SessionID{2, 1, 3}; !slices.Equal(*fired, want) {
		t.Fatalf("fired %v, want %v", *fired, want)
	}
}

func TestRespawnRemoteSide(t *testing.T) {
	r, fired, rec := newTestScheduler()
	t0 := time.Unix(0, 0)

	if r.Schedule(replication.Remote, 1, 0, t0) {
		t.Fatalf("remote schedule accepted")
	}
	r.Schedule(replication.Authority, 1, 0, t0)
	if n := r.Tick(replication.Remote, t0.Add(time.Hour)); n != 0 || len(*fired) != 0 {
		t.Fatalf("remote tick fired timers")
	}
	if rec.count(replication.ErrAuthorityViolation) != 1 {
		t.Fatalf("diagnostics %+v", rec.got)
	}
	r.Reset()
	if r.Len() != 0 {
		t.Fatalf("reset left timers")
	}
}
