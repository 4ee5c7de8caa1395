package game

import (
	"fmt"
	"shooter-sync/internal/constants"
	"shooter-sync/internal/domain"
	"shooter-sync/internal/replication"
	"shooter-sync/internal/rpc"
	"slices"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type Settings struct {
	TeamCount      int
	WinningScore   int
	MaxHP          float64
	RespawnDelay   time.Duration
	MaxAimDistance float64
	CharacterClass string
	Loadout        []WeaponSpec
	SpawnPoints    []domain.SpawnPoint
	SpawnTags      []string
	Pickups        []Item
}

func DefaultSettings() Settings {
	return Settings{
		TeamCount:      constants.DefaultTeamCount,
		WinningScore:   constants.DefaultWinningScore,
		MaxHP:          constants.DefaultMaxHP,
		RespawnDelay:   constants.DefaultRespawnDelay,
		MaxAimDistance: constants.DefaultMaxAimDistance,
		CharacterClass: constants.DefaultCharacterClass,
	}
}

func (s Settings) validate() error {
	if s.TeamCount < 1 {
		return fmt.Errorf("team count must be at least 1, got %d", s.TeamCount)
	}
	if s.WinningScore < 1 {
		return fmt.Errorf("winning score must be at least 1, got %d", s.WinningScore)
	}
	if !(s.MaxHP > 0) {
		return fmt.Errorf("max hp must be positive, got %v", s.MaxHP)
	}
	return nil
}

type EventRecorder interface {
	RecordEvent(e domain.Event)
}

type Deps struct {
	Entities    domain.EntityFactory
	Aim         domain.AimQuery
	Events      EventRecorder
	Diagnostics replication.DiagnosticRecorder
	Clock       func() time.Time
	Logger      zerolog.Logger
	// OnGameOver receives the final table when a team reaches the winning
	// score. It runs on the goroutine driving the match.
	OnGameOver func(res domain.MatchResult)
}

type JoinRequest struct {
	Name  string
	Team  domain.TeamID
	Local bool
	// Sink receives the joining client's pushes. Local sessions use the
	// authority's local observer instead.
	Sink domain.PresentationSink
}

type FireArgs struct {
	Session   domain.SessionID
	Origin    domain.Vec3
	Direction domain.Vec3
}

type DamageArgs struct {
	Target domain.SessionID
	Amount float64
}

type PickupArgs struct {
	Session  domain.SessionID
	PickupID string
}

type UseItemArgs struct {
	Session domain.SessionID
	Index   int
}

// Match owns every session and the score table of one match. It is not safe
// for concurrent use; one goroutine drives it (see service.MatchService).
type Match struct {
	settings Settings
	gate     *replication.Gate
	hub      *replication.Hub
	router   *rpc.Router
	state    *State
	respawn  *RespawnScheduler
	spawns   SpawnSelector
	pickups  *Pickups

	entities domain.EntityFactory
	aim      domain.AimQuery
	events   EventRecorder
	clock    func() time.Time
	logger   zerolog.Logger

	sessions map[domain.SessionID]*Session
	order    []domain.SessionID
	byEntity map[domain.EntityHandle]domain.SessionID
	credited map[string]struct{}
	nextID   domain.SessionID
	lives    uint64

	fireCall   *rpc.ServerCall[FireArgs]
	damageCall *rpc.ServerCall[DamageArgs]
	switchCall *rpc.ServerCall[domain.SessionID]
	reloadCall *rpc.ServerCall[domain.SessionID]
	pickupCall *rpc.ServerCall[PickupArgs]
	useCall    *rpc.ServerCall[UseItemArgs]
}

func NewMatch(settings Settings, deps Deps) (*Match, error) {
	if err := settings.validate(); err != nil {
		return nil, fmt.Errorf("invalid match settings: %w", err)
	}
	if deps.Entities == nil {
		return nil, fmt.Errorf("entity factory is required")
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if settings.CharacterClass == "" {
		settings.CharacterClass = constants.DefaultCharacterClass
	}

	logger := deps.Logger.With().Str("component", "match").Logger()
	gate := replication.NewGate(logger, deps.Diagnostics)
	hub := replication.NewHub(logger)
	router := rpc.NewRouter(hub, gate, logger)

	m := &Match{
		settings: settings,
		gate:     gate,
		hub:      hub,
		router:   router,
		state:    NewState(settings.TeamCount, settings.WinningScore, hub, gate, router, logger),
		spawns:   NewSpawnSelector(settings.TeamCount, settings.SpawnTags, gate),
		pickups:  NewPickups(),
		entities: deps.Entities,
		aim:      deps.Aim,
		events:   deps.Events,
		clock:    deps.Clock,
		logger:   logger,
		sessions: make(map[domain.SessionID]*Session),
		byEntity: make(map[domain.EntityHandle]domain.SessionID),
		credited: make(map[string]struct{}),
	}
	m.respawn = NewRespawnScheduler(gate, logger, m.respawnSession)
	m.state.OnGameOver = func(winner domain.TeamID, scores []int) {
		m.record(domain.EventGameOver, -1, winner, fmt.Sprintf("scores %v", scores))
		if deps.OnGameOver != nil {
			deps.OnGameOver(domain.MatchResult{WinningTeam: winner, Scores: scores, FinishedAt: m.clock()})
		}
	}

	m.fireCall = rpc.NewServerCall(router, "request weapon fire", m.validateFire, m.fire)
	m.damageCall = rpc.NewServerCall(router, "damage", func(a DamageArgs) bool {
		_, ok := m.sessions[a.Target]
		return ok && a.Amount > 0
	}, func(a DamageArgs) { m.applyDamage(a.Target, a.Amount) })
	m.switchCall = rpc.NewServerCall(router, "switch weapon", m.validateLiving, func(id domain.SessionID) {
		if s, ok := m.sessions[id]; ok {
			s.SwitchWeapon(replication.Authority)
		}
	})
	m.reloadCall = rpc.NewServerCall(router, "reload", m.validateLiving, m.reload)
	m.pickupCall = rpc.NewServerCall(router, "pickup", func(a PickupArgs) bool {
		return m.validateLiving(a.Session) && m.pickups.Has(a.PickupID)
	}, m.pickUp)
	m.useCall = rpc.NewServerCall(router, "use item", func(a UseItemArgs) bool {
		s, ok := m.sessions[a.Session]
		if !ok || !s.alive {
			return false
		}
		_, ok = s.takeItem(a.Index)
		return ok
	}, m.useItemAt)

	m.placePickups()
	return m, nil
}

func (m *Match) Settings() Settings    { return m.settings }
func (m *Match) State() *State         { return m.state }
func (m *Match) Hub() *replication.Hub { return m.hub }
func (m *Match) Pickups() *Pickups     { return m.pickups }

// Respawns exposes the scheduler for inspection.
func (m *Match) Respawns() *RespawnScheduler { return m.respawn }

func (m *Match) Session(id domain.SessionID) (*Session, bool) {
	s, ok := m.sessions[id]
	return s, ok
}

// Sessions returns every session in join order.
func (m *Match) Sessions() []*Session {
	out := make([]*Session, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.sessions[id])
	}
	return out
}

// AddObserver registers an observer and subscribes it to the score table and
// every session's health.
func (m *Match) AddObserver(o replication.Observer) error {
	if err := m.hub.Register(o); err != nil {
		return err
	}
	m.state.Channel().Observe(o.ID, func(v []int) {
		if o.Sink != nil {
			o.Sink.ScoreTable(slices.Clone(v))
		}
	})
	for _, id := range m.order {
		m.observeSession(m.sessions[id], o)
	}
	return nil
}

func (m *Match) RemoveObserver(id replication.ObserverID) {
	m.hub.Unregister(id)
}

func (m *Match) observeSession(s *Session, o replication.Observer) {
	id := s.ID
	s.mirror.Observe(o.ID, func(v Mirror) {
		if o.Sink != nil {
			o.Sink.DamagePercent(id, v.Fraction())
		}
	})
}

// Join creates a session, registers its client as an observer and spawns
// its first entity.
func (m *Match) Join(side replication.Side, req JoinRequest) (*Session, bool) {
	if !m.gate.RequireAuthority(side, "join") {
		return nil, false
	}
	id := m.nextID
	m.nextID++

	team := req.Team
	if int(team) < 0 || int(team) >= m.settings.TeamCount {
		team = domain.TeamID(int(id) % m.settings.TeamCount)
	}
	name := req.Name
	if name == "" {
		if req.Local {
			name = constants.LocalPlayerName
		} else {
			name = fmt.Sprintf(constants.RemotePlayerName, id)
		}
	}

	s := newSession(id, name, team, m.settings.MaxHP, m.settings.RespawnDelay, m.hub, m.gate, m)
	s.Local = req.Local
	m.sessions[id] = s
	m.order = append(m.order, id)

	if req.Local {
		m.hub.SetTeam(replication.LocalObserver, team)
	} else if req.Sink != nil {
		if err := m.AddObserver(replication.Observer{ID: s.Observer(), Team: team, Sink: req.Sink}); err != nil {
			m.logger.Error().Err(err).Int("session_id", int(id)).Msg("failed to register session observer")
		}
	}
	for _, o := range m.hub.Observers() {
		m.observeSession(s, o)
	}

	entity, err := m.materialize(s)
	if err != nil {
		m.logger.Error().Err(err).Int("session_id", int(id)).Msg("failed to spawn entity, retrying after respawn delay")
		m.respawn.Schedule(replication.Authority, id, s.respawnDelay, m.clock())
	} else {
		s.reset(replication.Authority, entity, m.newLifeKey(), m.settings.Loadout)
		m.byEntity[entity] = id
	}

	m.logger.Info().Int("session_id", int(id)).Str("name", name).Int("team_id", int(team)).Bool("local", req.Local).Msg("session joined")
	m.record(domain.EventJoin, id, team, name)
	return s, true
}

// Attach connects a client to an existing session. The client receives the
// current health of every session, the score table and its ammo count.
func (m *Match) Attach(side replication.Side, id domain.SessionID, sink domain.PresentationSink) bool {
	if !m.gate.RequireAuthority(side, "attach") {
		return false
	}
	s, ok := m.sessions[id]
	if !ok || s.Local {
		return false
	}
	m.hub.Unregister(s.Observer())
	if err := m.AddObserver(replication.Observer{ID: s.Observer(), Team: s.Team, Sink: sink}); err != nil {
		m.logger.Error().Err(err).Int("session_id", int(id)).Msg("failed to attach session observer")
		return false
	}
	m.pushAmmo(s)
	return true
}

// Detach stops pushes to a session's client without removing the session.
func (m *Match) Detach(id domain.SessionID) {
	if s, ok := m.sessions[id]; ok && !s.Local {
		m.hub.Unregister(s.Observer())
	}
}

// Attached reports whether sink is the observer currently receiving the
// session's pushes.
func (m *Match) Attached(id domain.SessionID, sink domain.PresentationSink) bool {
	s, ok := m.sessions[id]
	if !ok || s.Local || sink == nil {
		return false
	}
	o, ok := m.hub.Observer(s.Observer())
	return ok && o.Sink == sink
}

// Leave removes a session: its respawn timer is cancelled, its entity is
// destroyed and its client stops observing.
func (m *Match) Leave(side replication.Side, id domain.SessionID) bool {
	if !m.gate.RequireAuthority(side, "leave") {
		return false
	}
	s, ok := m.sessions[id]
	if !ok {
		return false
	}
	m.respawn.CancelAll(id)
	if s.entity != 0 {
		m.entities.Destroy(s.entity)
		delete(m.byEntity, s.entity)
	}
	if !s.Local {
		m.hub.Unregister(s.Observer())
	}
	s.mirror.Close()
	s.disown()
	delete(m.sessions, id)
	m.order = slices.DeleteFunc(m.order, func(v domain.SessionID) bool { return v == id })

	m.logger.Info().Int("session_id", int(id)).Msg("session left")
	m.record(domain.EventLeave, id, s.Team, s.Name)
	return true
}

// Damage is the damage intent. The authority applies it; other sides
// forward it as a server call and change nothing locally.
func (m *Match) Damage(side replication.Side, target domain.SessionID, amount float64) {
	if side == replication.Authority {
		m.applyDamage(target, amount)
		return
	}
	m.damageCall.Call(side, DamageArgs{Target: target, Amount: amount})
}

func (m *Match) applyDamage(target domain.SessionID, amount float64) {
	s, ok := m.sessions[target]
	if !ok {
		m.gate.Reject(replication.Diagnostic{
			Err:    replication.ErrStaleTarget,
			Op:     "damage",
			Detail: fmt.Sprintf("unknown session %d", target),
		})
		return
	}
	entity := s.entity
	out := s.ApplyDamage(replication.Authority, amount)
	if out.Killed {
		m.die(s, entity)
	}
}

func (m *Match) die(s *Session, entity domain.EntityHandle) {
	if entity != 0 {
		m.entities.Halt(entity)
		m.entities.Destroy(entity)
		delete(m.byEntity, entity)
	}
	m.pushAmmo(s)

	id := s.ID
	m.router.Multicast(replication.Authority, "death", func(o replication.Observer) {
		if o.Sink != nil {
			o.Sink.Died(id)
		}
	})

	if _, done := m.credited[s.life]; !done {
		m.credited[s.life] = struct{}{}
		if m.state.AddTeamScore(replication.Authority, s.Team) {
			m.record(domain.EventScore, id, s.Team, fmt.Sprintf("scores %v", m.state.Scores()))
		}
	}
	m.respawn.Schedule(replication.Authority, id, s.respawnDelay, m.clock())

	m.logger.Info().Int("session_id", int(id)).Int("team_id", int(s.Team)).Str("life", s.life).Msg("session died")
	m.record(domain.EventDeath, id, s.Team, s.life)
}

func (m *Match) respawnSession(id domain.SessionID) {
	s, ok := m.sessions[id]
	if !ok || s.alive {
		m.gate.Reject(replication.Diagnostic{
			Err:    replication.ErrStaleTarget,
			Op:     "respawn",
			Detail: fmt.Sprintf("session %d not awaiting respawn", id),
		})
		return
	}
	entity, err := m.materialize(s)
	if err != nil {
		m.logger.Error().Err(err).Int("session_id", int(id)).Msg("failed to respawn entity, retrying")
		m.respawn.Schedule(replication.Authority, id, s.respawnDelay, m.clock())
		return
	}
	if s.weapons == nil && len(m.settings.Loadout) > 0 {
		s.reset(replication.Authority, entity, m.newLifeKey(), m.settings.Loadout)
	} else {
		s.revive(replication.Authority, entity, m.newLifeKey())
	}
	m.byEntity[entity] = id

	m.router.ClientCall(replication.Authority, "respawned", s.Observer(), func(o replication.Observer) {
		if o.Sink != nil {
			o.Sink.Respawned(id)
		}
	})
	m.logger.Info().Int("session_id", int(id)).Msg("session respawned")
	m.record(domain.EventRespawn, id, s.Team, s.life)
}

func (m *Match) materialize(s *Session) (domain.EntityHandle, error) {
	point, ok := m.spawns.Choose(replication.Authority, s.ID, s.Team, m.settings.SpawnPoints)
	if !ok {
		m.logger.Debug().Int("session_id", int(s.ID)).Msg("no spawn points, using origin")
	}
	return m.entities.Spawn(m.settings.CharacterClass, point.Transform)
}

// RequestFire is the fire intent. Remote sides never simulate locally; the
// request travels as a validated server call.
func (m *Match) RequestFire(side replication.Side, args FireArgs) {
	if side == replication.Authority {
		m.fire(args)
		return
	}
	m.fireCall.Call(side, args)
}

func (m *Match) validateLiving(id domain.SessionID) bool {
	s, ok := m.sessions[id]
	return ok && s.alive
}

func (m *Match) validateFire(a FireArgs) bool {
	s, ok := m.sessions[a.Session]
	return ok && s.alive && s.ActiveWeapon() != nil
}

func (m *Match) fire(a FireArgs) {
	s, ok := m.sessions[a.Session]
	if !ok {
		return
	}
	w, fired := s.Fire(replication.Authority)
	if !fired {
		return
	}
	m.pushAmmo(s)

	if m.aim == nil {
		return
	}
	hit, ok := m.aim(a.Origin, a.Direction.Normalize(), m.settings.MaxAimDistance)
	if !ok || hit.Entity == 0 {
		return
	}
	victim, ok := m.byEntity[hit.Entity]
	if !ok || victim == s.ID {
		return
	}
	m.applyDamage(victim, w.Damage)
}

func (m *Match) SwitchWeapon(side replication.Side, id domain.SessionID) {
	m.switchCall.Call(side, id)
}

func (m *Match) Reload(side replication.Side, id domain.SessionID) {
	m.reloadCall.Call(side, id)
}

func (m *Match) reload(id domain.SessionID) {
	s, ok := m.sessions[id]
	if !ok {
		return
	}
	if s.Reload(replication.Authority, 0) {
		m.pushAmmo(s)
	}
}

func (m *Match) PickUp(side replication.Side, args PickupArgs) {
	m.pickupCall.Call(side, args)
}

func (m *Match) pickUp(a PickupArgs) {
	s, ok := m.sessions[a.Session]
	if !ok {
		return
	}
	it, ok := m.pickups.Take(a.PickupID, func(it *Item) bool {
		return it.Kind != ItemWeapon || !s.OwnsClass(it.Weapon.Class)
	})
	if !ok {
		m.logger.Debug().Int("session_id", int(s.ID)).Str("pickup_id", a.PickupID).Msg("pickup refused")
		return
	}
	if it.Kind == ItemWeapon {
		m.useItem(s, it)
	} else {
		s.Store(replication.Authority, it)
	}
	m.record(domain.EventPickup, s.ID, s.Team, it.ID)
}

func (m *Match) UseItem(side replication.Side, args UseItemArgs) {
	m.useCall.Call(side, args)
}

func (m *Match) useItemAt(a UseItemArgs) {
	s, ok := m.sessions[a.Session]
	if !ok {
		return
	}
	it, ok := s.takeItem(a.Index)
	if !ok {
		return
	}
	m.useItem(s, it)
	s.dropEmpty()
}

// useItem maps an item kind to its behaviour. Equipment and resources are
// passive and only held.
func (m *Match) useItem(s *Session, it *Item) bool {
	switch it.Kind {
	case ItemConsumable:
		if !s.Heal(replication.Authority, it.Amount) {
			return false
		}
	case ItemAmmo:
		if !s.Reload(replication.Authority, int(it.Amount)) {
			return false
		}
		m.pushAmmo(s)
	case ItemWeapon:
		if !s.AddWeapon(replication.Authority, NewWeapon(*it.Weapon)) {
			return false
		}
	default:
		return false
	}
	it.consumeOne()
	return true
}

func (m *Match) pushAmmo(s *Session) {
	b := s.Bullets()
	id := s.ID
	m.router.ClientCall(replication.Authority, "ammo", s.Observer(), func(o replication.Observer) {
		if o.Sink != nil {
			o.Sink.AmmoCount(id, b.MagazineSize, b.CurrentAmmo)
		}
	})
}

func (m *Match) WeaponActivated(s *Session, w *WeaponRef) {
	s.syncBullets()
	m.pushAmmo(s)
	m.logger.Debug().Int("session_id", int(s.ID)).Str("weapon", w.Class).Msg("weapon activated")
}

func (m *Match) WeaponDeactivated(s *Session, w *WeaponRef) {
	m.logger.Debug().Int("session_id", int(s.ID)).Str("weapon", w.Class).Msg("weapon deactivated")
}

// Restart resets scores, timers, pickups and every session. Session ids
// and observers are kept.
func (m *Match) Restart(side replication.Side) bool {
	if !m.gate.RequireAuthority(side, "restart") {
		return false
	}
	m.state.Reset(side)
	m.respawn.Reset()
	clear(m.credited)
	m.pickups.Clear()
	m.placePickups()

	for _, id := range m.order {
		s := m.sessions[id]
		if s.entity != 0 {
			m.entities.Destroy(s.entity)
			delete(m.byEntity, s.entity)
			s.entity = 0
		}
		entity, err := m.materialize(s)
		if err != nil {
			m.logger.Error().Err(err).Int("session_id", int(id)).Msg("failed to spawn entity on restart")
			s.disown()
			s.alive, s.currentHP = false, 0
			s.replicate()
			m.respawn.Schedule(side, id, s.respawnDelay, m.clock())
			continue
		}
		s.reset(side, entity, m.newLifeKey(), m.settings.Loadout)
		m.byEntity[entity] = id
	}
	m.logger.Info().Int("sessions", len(m.order)).Msg("match restarted")
	m.record(domain.EventRestart, -1, domain.NoTeam, "")
	return true
}

// Tick fires due respawn timers.
func (m *Match) Tick(now time.Time) int {
	return m.respawn.Tick(replication.Authority, now)
}

// Pump runs queued server calls, then delivers pending notifications.
func (m *Match) Pump() int {
	n := m.router.Pump()
	return n + m.hub.Flush()
}

func (m *Match) placePickups() {
	for i := range m.settings.Pickups {
		it := m.settings.Pickups[i]
		if err := m.pickups.Place(&it); err != nil {
			m.logger.Warn().Err(err).Str("pickup_id", it.ID).Msg("skipping pickup")
		}
	}
}

func (m *Match) newLifeKey() string {
	m.lives++
	key, err := gonanoid.New()
	if err != nil {
		return fmt.Sprintf("life-%d", m.lives)
	}
	return key
}

func (m *Match) record(kind domain.EventKind, id domain.SessionID, team domain.TeamID, detail string) {
	if m.events == nil {
		return
	}
	m.events.RecordEvent(domain.Event{
		Kind:      kind,
		Session:   id,
		Team:      team,
		Detail:    detail,
		CreatedAt: m.clock(),
	})
}
