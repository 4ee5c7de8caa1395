package game

import (
	"errors"
	"shooter-sync/internal/domain"
	"shooter-sync/internal/replication"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeEntities struct {
	next      domain.EntityHandle
	live      map[domain.EntityHandle]domain.Transform
	halted    []domain.EntityHandle
	destroyed []domain.EntityHandle
	fail      bool
}

func newFakeEntities() *fakeEntities {
	return &fakeEntities{live: make(map[domain.EntityHandle]domain.Transform)}
}

func (f *fakeEntities) Spawn(class string, t domain.Transform) (domain.EntityHandle, error) {
	if f.fail {
		return 0, errors.New("spawn failed")
	}
	f.next++
	f.live[f.next] = t
	return f.next, nil
}

func (f *fakeEntities) Destroy(h domain.EntityHandle) {
	delete(f.live, h)
	f.destroyed = append(f.destroyed, h)
}

func (f *fakeEntities) Halt(h domain.EntityHandle) {
	f.halted = append(f.halted, h)
}

type ammo struct {
	magazine, current int
}

type gameOver struct {
	team domain.TeamID
	won  bool
}

type recordingSink struct {
	hp        map[domain.SessionID][]float64
	ammo      []ammo
	scores    [][]int
	deaths    []domain.SessionID
	respawns  []domain.SessionID
	gameOvers []gameOver
}

func newRecordingSink() *recordingSink {
	return &recordingSink{hp: make(map[domain.SessionID][]float64)}
}

func (s *recordingSink) DamagePercent(id domain.SessionID, fraction float64) {
	s.hp[id] = append(s.hp[id], fraction)
}

func (s *recordingSink) AmmoCount(_ domain.SessionID, magazineSize, currentAmmo int) {
	s.ammo = append(s.ammo, ammo{magazineSize, currentAmmo})
}

func (s *recordingSink) ScoreTable(scores []int) {
	s.scores = append(s.scores, scores)
}

func (s *recordingSink) Died(id domain.SessionID) {
	s.deaths = append(s.deaths, id)
}

func (s *recordingSink) Respawned(id domain.SessionID) {
	s.respawns = append(s.respawns, id)
}

func (s *recordingSink) GameOver(team domain.TeamID, won bool) {
	s.gameOvers = append(s.gameOvers, gameOver{team, won})
}

func (s *recordingSink) lastHP(id domain.SessionID) float64 {
	v := s.hp[id]
	if len(v) == 0 {
		return -1
	}
	return v[len(v)-1]
}

type diagnostics struct {
	got []replication.Diagnostic
}

func (d *diagnostics) RecordDiagnostic(diag replication.Diagnostic) {
	d.got = append(d.got, diag)
}

func (d *diagnostics) count(err error) int {
	n := 0
	for _, diag := range d.got {
		if errors.Is(diag.Err, err) {
			n++
		}
	}
	return n
}

type events struct {
	got []domain.Event
}

func (e *events) RecordEvent(ev domain.Event) {
	e.got = append(e.got, ev)
}

func (e *events) count(kind domain.EventKind) int {
	n := 0
	for _, ev := range e.got {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type harness struct {
	m        *Match
	entities *fakeEntities
	diags    *diagnostics
	events   *events
	clock    *fakeClock
	local    *recordingSink
}

var pistol = WeaponSpec{Class: "Pistol", MagazineSize: 12, Damage: 25}
var rifle = WeaponSpec{Class: "Rifle", MagazineSize: 30, Damage: 40}

func newHarness(t *testing.T, configure func(*Settings)) *harness {
	t.Helper()
	settings := DefaultSettings()
	settings.SpawnPoints = []domain.SpawnPoint{
		{Name: "a0", Tag: "PlayerStartA", Transform: domain.Transform{Location: domain.Vec3{X: 0}}},
		{Name: "b0", Tag: "PlayerStartB", Transform: domain.Transform{Location: domain.Vec3{X: 100}}},
	}
	if configure != nil {
		configure(&settings)
	}

	h := &harness{
		entities: newFakeEntities(),
		diags:    &diagnostics{},
		events:   &events{},
		clock:    &fakeClock{now: time.Unix(1_700_000_000, 0)},
		local:    newRecordingSink(),
	}
	m, err := NewMatch(settings, Deps{
		Entities:    h.entities,
		Events:      h.events,
		Diagnostics: h.diags,
		Clock:       h.clock.Now,
		Logger:      zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewMatch: %v", err)
	}
	if err := m.AddObserver(replication.Observer{ID: replication.LocalObserver, Team: domain.NoTeam, Local: true, Sink: h.local}); err != nil {
		t.Fatalf("AddObserver: %v", err)
	}
	h.m = m
	return h
}

func (h *harness) join(t *testing.T, team domain.TeamID, sink domain.PresentationSink) *Session {
	t.Helper()
	s, ok := h.m.Join(replication.Authority, JoinRequest{Team: team, Sink: sink})
	if !ok {
		t.Fatalf("join failed")
	}
	h.m.Pump()
	return s
}

type recordingHooks struct {
	calls []string
}

func (r *recordingHooks) WeaponActivated(_ *Session, w *WeaponRef) {
	r.calls = append(r.calls, "activate "+w.Class)
}

func (r *recordingHooks) WeaponDeactivated(_ *Session, w *WeaponRef) {
	r.calls = append(r.calls, "deactivate "+w.Class)
}

// newBareSession builds a session outside a match, alive on entity 1.
func newBareSession(t *testing.T, hooks WeaponHooks, loadout ...WeaponSpec) (*Session, *replication.Hub, *diagnostics) {
	t.Helper()
	rec := &diagnostics{}
	hub := replication.NewHub(zerolog.Nop())
	gate := replication.NewGate(zerolog.Nop(), rec)
	s := newSession(0, "p", 0, 100, 5*time.Second, hub, gate, hooks)
	if !s.reset(replication.Authority, 1, "life-1", loadout) {
		t.Fatalf("reset failed")
	}
	return s, hub, rec
}
