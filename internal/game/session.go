package game

import (
	"fmt"
	"math"
	"shooter-sync/internal/domain"
	"shooter-sync/internal/replication"
	"time"
)

// Mirror is the part of a session every observer sees.
type Mirror struct {
	HP    float64
	MaxHP float64
	Team  domain.TeamID
}

// Fraction is the HUD health fraction, never negative.
func (m Mirror) Fraction() float64 {
	if m.MaxHP <= 0 {
		return 0
	}
	return math.Max(0, m.HP/m.MaxHP)
}

type BulletCount struct {
	MagazineSize int
	CurrentAmmo  int
}

// WeaponHooks observes weapon activation. Deactivated always fires for the
// outgoing weapon before Activated fires for the incoming one.
type WeaponHooks interface {
	WeaponActivated(s *Session, w *WeaponRef)
	WeaponDeactivated(s *Session, w *WeaponRef)
}

type DamageOutcome struct {
	Applied bool
	Killed  bool
	HP      float64
}

// Session is the authoritative record of one player. Every mutating method
// takes the acting side and is a no-op unless it is the authority.
type Session struct {
	ID    domain.SessionID
	Name  string
	Team  domain.TeamID
	Local bool

	maxHP        float64
	currentHP    float64
	alive        bool
	weapons      []*WeaponRef
	active       int
	inventory    []*Item
	respawnDelay time.Duration
	entity       domain.EntityHandle
	inputEnabled bool
	life         string
	bullets      BulletCount

	gate   *replication.Gate
	hooks  WeaponHooks
	mirror *replication.Channel[Mirror]
}

func newSession(id domain.SessionID, name string, team domain.TeamID, maxHP float64, respawnDelay time.Duration, hub *replication.Hub, gate *replication.Gate, hooks WeaponHooks) *Session {
	s := &Session{
		ID:           id,
		Name:         name,
		Team:         team,
		maxHP:        maxHP,
		respawnDelay: respawnDelay,
		active:       -1,
		gate:         gate,
		hooks:        hooks,
	}
	s.mirror = replication.NewChannel(fmt.Sprintf("session-%d/health", id), hub, gate, s.mirrorValue())
	return s
}

// Observer is the observer controlling this session.
func (s *Session) Observer() replication.ObserverID {
	if s.Local {
		return replication.LocalObserver
	}
	return replication.SessionObserver(s.ID)
}

func (s *Session) HP() float64                 { return s.currentHP }
func (s *Session) MaxHP() float64              { return s.maxHP }
func (s *Session) Alive() bool                 { return s.alive }
func (s *Session) Entity() domain.EntityHandle { return s.entity }
func (s *Session) InputEnabled() bool          { return s.inputEnabled }
func (s *Session) RespawnDelay() time.Duration { return s.respawnDelay }
func (s *Session) Bullets() BulletCount        { return s.bullets }
func (s *Session) Life() string                { return s.life }

// Mirror exposes the replicated health channel.
func (s *Session) Mirror() *replication.Channel[Mirror] { return s.mirror }

// Weapons returns the owned weapons in pickup order.
func (s *Session) Weapons() []*WeaponRef {
	out := make([]*WeaponRef, len(s.weapons))
	copy(out, s.weapons)
	return out
}

// ActiveIndex is -1 when no weapon is owned.
func (s *Session) ActiveIndex() int { return s.active }

func (s *Session) ActiveWeapon() *WeaponRef {
	if s.active < 0 || s.active >= len(s.weapons) {
		return nil
	}
	return s.weapons[s.active]
}

func (s *Session) Inventory() []*Item {
	out := make([]*Item, len(s.inventory))
	copy(out, s.inventory)
	return out
}

func (s *Session) mirrorValue() Mirror {
	return Mirror{HP: s.currentHP, MaxHP: s.maxHP, Team: s.Team}
}

func (s *Session) replicate() {
	s.mirror.Set(replication.Authority, s.mirrorValue())
}

// ApplyDamage lowers HP. Damage to a session without a live entity is a
// stale target and changes nothing.
func (s *Session) ApplyDamage(side replication.Side, amount float64) DamageOutcome {
	if !s.gate.RequireAuthority(side, "damage") {
		return DamageOutcome{HP: s.currentHP}
	}
	if !s.alive || s.entity == 0 {
		s.gate.Reject(replication.Diagnostic{
			Err:    replication.ErrStaleTarget,
			Op:     "damage",
			Detail: fmt.Sprintf("session %d has no live entity", s.ID),
		})
		return DamageOutcome{HP: s.currentHP}
	}
	if !(amount > 0) || math.IsInf(amount, 0) {
		s.gate.Reject(replication.Diagnostic{
			Err:    replication.ErrValidationFailure,
			Op:     "damage",
			Detail: fmt.Sprintf("amount %v", amount),
		})
		return DamageOutcome{HP: s.currentHP}
	}

	s.currentHP -= amount
	killed := false
	if s.currentHP <= 0 {
		s.currentHP = 0
		killed = true
		s.markDead()
	}
	s.replicate()
	return DamageOutcome{Applied: true, Killed: killed, HP: s.currentHP}
}

// Heal raises HP up to the maximum. Dead sessions cannot be healed.
func (s *Session) Heal(side replication.Side, amount float64) bool {
	if !s.gate.RequireAuthority(side, "heal") {
		return false
	}
	if !s.alive || !(amount > 0) {
		return false
	}
	s.currentHP = math.Min(s.maxHP, s.currentHP+amount)
	s.replicate()
	return true
}

func (s *Session) markDead() {
	s.alive = false
	if w := s.ActiveWeapon(); w != nil && s.hooks != nil {
		s.hooks.WeaponDeactivated(s, w)
	}
	s.inputEnabled = false
	s.entity = 0
	s.bullets = BulletCount{}
}

// revive restores a dead session on a fresh entity, keeping its weapons.
func (s *Session) revive(side replication.Side, entity domain.EntityHandle, life string) bool {
	if !s.gate.RequireAuthority(side, "respawn") {
		return false
	}
	s.currentHP = s.maxHP
	s.alive = true
	s.inputEnabled = true
	s.entity = entity
	s.life = life
	s.replicate()
	if w := s.ActiveWeapon(); w != nil && s.hooks != nil {
		s.hooks.WeaponActivated(s, w)
	}
	return true
}

// SwitchWeapon cycles to the next owned weapon, wrapping to the first. It
// needs at least two weapons.
func (s *Session) SwitchWeapon(side replication.Side) bool {
	if !s.gate.RequireAuthority(side, "switch weapon") {
		return false
	}
	if len(s.weapons) < 2 || !s.alive {
		return false
	}
	outgoing := s.weapons[s.active]
	if s.hooks != nil {
		s.hooks.WeaponDeactivated(s, outgoing)
	}
	s.active = (s.active + 1) % len(s.weapons)
	if s.hooks != nil {
		s.hooks.WeaponActivated(s, s.weapons[s.active])
	}
	return true
}

// OwnsClass reports whether a weapon of class is already owned.
func (s *Session) OwnsClass(class string) bool {
	for _, w := range s.weapons {
		if w.Class == class {
			return true
		}
	}
	return false
}

// AddWeapon takes ownership of w and makes it active. Weapons owned by
// another session and duplicate classes are refused.
func (s *Session) AddWeapon(side replication.Side, w *WeaponRef) bool {
	if !s.gate.RequireAuthority(side, "add weapon") {
		return false
	}
	if w == nil || w.owned || s.OwnsClass(w.Class) {
		return false
	}
	w.owner = s.ID
	w.owned = true
	s.weapons = append(s.weapons, w)

	if prev := s.ActiveWeapon(); prev != nil && s.hooks != nil && s.alive {
		s.hooks.WeaponDeactivated(s, prev)
	}
	s.active = len(s.weapons) - 1
	if s.hooks != nil && s.alive {
		s.hooks.WeaponActivated(s, w)
	}
	return true
}

// Fire spends one round of the active weapon.
func (s *Session) Fire(side replication.Side) (*WeaponRef, bool) {
	if !s.gate.RequireAuthority(side, "fire") {
		return nil, false
	}
	w := s.ActiveWeapon()
	if w == nil || !s.alive || !s.inputEnabled {
		return nil, false
	}
	if !w.consume() {
		return w, false
	}
	s.bullets = BulletCount{MagazineSize: w.MagazineSize, CurrentAmmo: w.CurrentAmmo}
	return w, true
}

// Reload refills the active weapon. rounds <= 0 means a full magazine.
func (s *Session) Reload(side replication.Side, rounds int) bool {
	if !s.gate.RequireAuthority(side, "reload") {
		return false
	}
	w := s.ActiveWeapon()
	if w == nil || !s.alive {
		return false
	}
	if rounds <= 0 {
		rounds = w.MagazineSize
	}
	before := w.CurrentAmmo
	w.refill(rounds)
	s.bullets = BulletCount{MagazineSize: w.MagazineSize, CurrentAmmo: w.CurrentAmmo}
	return w.CurrentAmmo != before
}

// Store puts an item into the inventory, stacking onto a matching stack
// first.
func (s *Session) Store(side replication.Side, it *Item) bool {
	if !s.gate.RequireAuthority(side, "store item") {
		return false
	}
	if !it.Valid() {
		return false
	}
	left := it.Count
	if it.Stackable {
		for _, have := range s.inventory {
			if have.Name == it.Name && have.Kind == it.Kind && have.Stackable {
				left = have.Stack(left)
				if left == 0 {
					return true
				}
			}
		}
	}
	it.Count = left
	s.inventory = append(s.inventory, it)
	return true
}

func (s *Session) takeItem(index int) (*Item, bool) {
	if index < 0 || index >= len(s.inventory) {
		return nil, false
	}
	return s.inventory[index], true
}

func (s *Session) dropEmpty() {
	kept := s.inventory[:0]
	for _, it := range s.inventory {
		if it.Count > 0 {
			kept = append(kept, it)
		}
	}
	s.inventory = kept
}

func (s *Session) syncBullets() {
	if w := s.ActiveWeapon(); w != nil && s.alive {
		s.bullets = BulletCount{MagazineSize: w.MagazineSize, CurrentAmmo: w.CurrentAmmo}
		return
	}
	s.bullets = BulletCount{}
}

// disown releases every weapon so another session can own it.
func (s *Session) disown() {
	for _, w := range s.weapons {
		w.owned = false
	}
	s.weapons = nil
	s.active = -1
}

// reset returns the session to a fresh life with the given loadout.
func (s *Session) reset(side replication.Side, entity domain.EntityHandle, life string, loadout []WeaponSpec) bool {
	if !s.gate.RequireAuthority(side, "reset session") {
		return false
	}
	s.disown()
	s.inventory = nil
	for _, spec := range loadout {
		w := NewWeapon(spec)
		w.owner = s.ID
		w.owned = true
		s.weapons = append(s.weapons, w)
	}
	if len(s.weapons) > 0 {
		s.active = 0
	}
	s.alive = false
	return s.revive(side, entity, life)
}
