package world

import (
	"fmt"
	"math"
	"shooter-sync/internal/domain"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultRadius is the hit sphere radius of a spawned character.
const DefaultRadius = 50.0

type Entity struct {
	Handle    domain.EntityHandle
	Class     string
	Transform domain.Transform
	Radius    float64
	Halted    bool
}

// World is an in-memory entity store. It spawns characters as spheres and
// answers aim queries by ray casting against them.
type World struct {
	mu       sync.RWMutex
	next     domain.EntityHandle
	entities map[domain.EntityHandle]*Entity
	radius   float64
	logger   zerolog.Logger
}

func New(logger zerolog.Logger) *World {
	return &World{
		entities: make(map[domain.EntityHandle]*Entity),
		radius:   DefaultRadius,
		logger:   logger.With().Str("component", "world").Logger(),
	}
}

func (w *World) Spawn(class string, t domain.Transform) (domain.EntityHandle, error) {
	if class == "" {
		return 0, fmt.Errorf("entity class is required")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.next++
	h := w.next
	w.entities[h] = &Entity{Handle: h, Class: class, Transform: t, Radius: w.radius}
	w.logger.Debug().Uint64("entity", uint64(h)).Str("class", class).Msg("entity spawned")
	return h, nil
}

func (w *World) Destroy(h domain.EntityHandle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.entities, h)
}

func (w *World) Halt(h domain.EntityHandle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if e, ok := w.entities[h]; ok {
		e.Halted = true
	}
}

// Move places an entity. Halted entities do not move.
func (w *World) Move(h domain.EntityHandle, t domain.Transform) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entities[h]
	if !ok || e.Halted {
		return false
	}
	e.Transform = t
	return true
}

func (w *World) Entity(h domain.EntityHandle) (Entity, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.entities[h]
	if !ok {
		return Entity{}, false
	}
	return *e, true
}

func (w *World) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entities)
}

// Aim returns the nearest entity whose sphere the ray enters within
// maxDistance. Entities containing the origin are skipped so a shooter does
// not hit itself.
func (w *World) Aim(origin, direction domain.Vec3, maxDistance float64) (domain.HitPoint, bool) {
	dir := direction.Normalize()
	if dir == (domain.Vec3{}) || !(maxDistance > 0) {
		return domain.HitPoint{}, false
	}

	w.mu.RLock()
	handles := make([]domain.EntityHandle, 0, len(w.entities))
	for h := range w.entities {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })

	best := math.Inf(1)
	var hit domain.HitPoint
	for _, h := range handles {
		e := w.entities[h]
		d, ok := intersect(origin, dir, e.Transform.Location, e.Radius)
		if !ok || d > maxDistance || d >= best {
			continue
		}
		best = d
		hit = domain.HitPoint{Location: origin.Add(dir.Scale(d)), Entity: h}
	}
	w.mu.RUnlock()

	return hit, hit.Entity != 0
}

// intersect returns the distance along the unit ray to the sphere surface.
func intersect(origin, dir, center domain.Vec3, radius float64) (float64, bool) {
	oc := origin.Sub(center)
	c := oc.Dot(oc) - radius*radius
	if c <= 0 {
		return 0, false
	}
	b := oc.Dot(dir)
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	t := -b - math.Sqrt(disc)
	if t < 0 {
		return 0, false
	}
	return t, true
}
