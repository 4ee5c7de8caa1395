package game

import (
	"shooter-sync/internal/domain"
	"shooter-sync/internal/replication"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// RespawnScheduler keeps at most one pending respawn per session. Timers
// fire from Tick, which only the authority drives.
type RespawnScheduler struct {
	timers map[domain.SessionID]time.Time
	fire   func(id domain.SessionID)
	gate   *replication.Gate
	logger zerolog.Logger
}

func NewRespawnScheduler(gate *replication.Gate, logger zerolog.Logger, fire func(id domain.SessionID)) *RespawnScheduler {
	return &RespawnScheduler{
		timers: make(map[domain.SessionID]time.Time),
		fire:   fire,
		gate:   gate,
		logger: logger,
	}
}

// Schedule sets the session's timer to now+delay, replacing any pending one.
func (r *RespawnScheduler) Schedule(side replication.Side, id domain.SessionID, delay time.Duration, now time.Time) bool {
	if !r.gate.RequireAuthority(side, "schedule respawn") {
		return false
	}
	if delay < 0 {
		delay = 0
	}
	at := now.Add(delay)
	if _, replaced := r.timers[id]; replaced {
		r.logger.Debug().Int("session_id", int(id)).Time("fire_at", at).Msg("respawn rescheduled")
	}
	r.timers[id] = at
	return true
}

// CancelAll drops the pending timer of a session.
func (r *RespawnScheduler) CancelAll(id domain.SessionID) {
	delete(r.timers, id)
}

// Reset drops every pending timer.
func (r *RespawnScheduler) Reset() {
	clear(r.timers)
}

func (r *RespawnScheduler) Pending(id domain.SessionID) (time.Time, bool) {
	at, ok := r.timers[id]
	return at, ok
}

func (r *RespawnScheduler) Len() int {
	return len(r.timers)
}

// Tick fires every timer due at now, earliest first, and returns how many
// fired. A timer is removed before its callback runs.
func (r *RespawnScheduler) Tick(side replication.Side, now time.Time) int {
	if side != replication.Authority {
		return 0
	}
	var due []domain.SessionID
	for id, at := range r.timers {
		if !at.After(now) {
			due = append(due, id)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		a, b := r.timers[due[i]], r.timers[due[j]]
		if a.Equal(b) {
			return due[i] < due[j]
		}
		return a.Before(b)
	})
	for _, id := range due {
		delete(r.timers, id)
	}
	for _, id := range due {
		r.fire(id)
	}
	return len(due)
}
