package domain

import (
	"math"
	"time"
)

// SessionID identifies a player session for the whole match. Ids are handed
// out sequentially starting at 0.
type SessionID int

// TeamID indexes the match score table. NoTeam marks observers that belong to
// no team (spectators, the authority's own view when it does not play).
type TeamID int

const NoTeam TeamID = -1

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Add(o Vec3) Vec3      { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3      { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(f float64) Vec3 { return Vec3{v.X * f, v.Y * f, v.Z * f} }
func (v Vec3) Dot(o Vec3) float64   { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }
func (v Vec3) Len() float64         { return math.Sqrt(v.Dot(v)) }

// Normalize returns the unit vector, or the zero vector when v has no length.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l == 0 || math.IsNaN(l) || math.IsInf(l, 0) {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

type Transform struct {
	Location Vec3    `json:"location"`
	Yaw      float64 `json:"yaw"`
}

type SpawnPoint struct {
	Name      string    `json:"name"`
	Tag       string    `json:"tag"`
	Transform Transform `json:"transform"`
}

// EntityHandle references a controllable entity created through an
// EntityFactory. The zero handle means "no entity".
type EntityHandle uint64

type HitPoint struct {
	Location Vec3
	Entity   EntityHandle
}

// AimQuery resolves a fire target. It returns false when nothing was hit.
type AimQuery func(origin, direction Vec3, maxDistance float64) (HitPoint, bool)

// EntityFactory creates and destroys the controllable entities sessions drive.
type EntityFactory interface {
	Spawn(class string, t Transform) (EntityHandle, error)
	Destroy(h EntityHandle)
	Halt(h EntityHandle)
}

// PresentationSink receives pushes for one observer. The core never reads
// from it.
type PresentationSink interface {
	DamagePercent(id SessionID, fraction float64)
	AmmoCount(id SessionID, magazineSize, currentAmmo int)
	ScoreTable(scores []int)
	Died(id SessionID)
	Respawned(id SessionID)
	GameOver(winningTeam TeamID, won bool)
}

type EventKind string

const (
	EventJoin      EventKind = "join"
	EventLeave     EventKind = "leave"
	EventDeath     EventKind = "death"
	EventRespawn   EventKind = "respawn"
	EventScore     EventKind = "score"
	EventGameOver  EventKind = "game_over"
	EventRestart   EventKind = "restart"
	EventPickup    EventKind = "pickup"
	EventRejection EventKind = "rejection"
)

// Event is one journal record. Team and Session are -1 when they do not apply.
type Event struct {
	ID        string    `json:"id"`
	Kind      EventKind `json:"kind"`
	Session   SessionID `json:"session_id"`
	Team      TeamID    `json:"team_id"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

// MatchResult summarises a finished match.
type MatchResult struct {
	WinningTeam TeamID    `json:"winning_team"`
	Scores      []int     `json:"scores"`
	FinishedAt  time.Time `json:"finished_at"`
}
