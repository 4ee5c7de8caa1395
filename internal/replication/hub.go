package replication

import (
	"fmt"
	"shooter-sync/internal/domain"
	"slices"

	"github.com/rs/zerolog"
)

type ObserverID string

// LocalObserver is the authority's own view of the match.
const LocalObserver ObserverID = "local"

// SessionObserver returns the observer id of the client controlling id.
func SessionObserver(id domain.SessionID) ObserverID {
	return ObserverID(fmt.Sprintf("session-%d", id))
}

type Observer struct {
	ID    ObserverID
	Team  domain.TeamID
	Local bool
	Sink  domain.PresentationSink
}

type observerEntry struct {
	Observer
	pending []func()
}

type forgetter interface {
	forget(id ObserverID)
}

// Hub is the observer registry. Each observer owns one FIFO outbox; Flush
// drains outboxes in registration order so deliveries to the same observer
// keep the order they were issued in.
type Hub struct {
	entries  []*observerEntry
	index    map[ObserverID]*observerEntry
	channels []forgetter
	logger   zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		index:  make(map[ObserverID]*observerEntry),
		logger: logger,
	}
}

func (h *Hub) Register(o Observer) error {
	if o.ID == "" {
		return fmt.Errorf("observer id is required")
	}
	if _, ok := h.index[o.ID]; ok {
		return fmt.Errorf("observer %q already registered", o.ID)
	}
	e := &observerEntry{Observer: o}
	h.entries = append(h.entries, e)
	h.index[o.ID] = e
	h.logger.Debug().Str("observer_id", string(o.ID)).Int("team_id", int(o.Team)).Msg("observer registered")
	return nil
}

// Unregister removes the observer from the hub and from every channel. Its
// pending deliveries are discarded.
func (h *Hub) Unregister(id ObserverID) {
	if _, ok := h.index[id]; !ok {
		return
	}
	delete(h.index, id)
	for i, e := range h.entries {
		if e.ID == id {
			h.entries = append(h.entries[:i], h.entries[i+1:]...)
			break
		}
	}
	for _, c := range h.channels {
		c.forget(id)
	}
	h.logger.Debug().Str("observer_id", string(id)).Msg("observer unregistered")
}

// SetTeam changes the team an observer belongs to. Queued deliveries see the
// new team.
func (h *Hub) SetTeam(id ObserverID, team domain.TeamID) bool {
	e, ok := h.index[id]
	if !ok {
		return false
	}
	e.Team = team
	return true
}

func (h *Hub) Observer(id ObserverID) (Observer, bool) {
	e, ok := h.index[id]
	if !ok {
		return Observer{}, false
	}
	return e.Observer, true
}

// Observers returns every observer in registration order.
func (h *Hub) Observers() []Observer {
	out := make([]Observer, len(h.entries))
	for i, e := range h.entries {
		out[i] = e.Observer
	}
	return out
}

// Enqueue appends a delivery to the observer's outbox. It reports false when
// the observer is unknown.
func (h *Hub) Enqueue(id ObserverID, deliver func(Observer)) bool {
	e, ok := h.index[id]
	if !ok {
		return false
	}
	e.pending = append(e.pending, func() { deliver(e.Observer) })
	return true
}

// Pending reports the number of undelivered items across all observers.
func (h *Hub) Pending() int {
	n := 0
	for _, e := range h.entries {
		n += len(e.pending)
	}
	return n
}

// Flush runs every pending delivery and returns how many ran. Deliveries
// queued while flushing run in the same call.
func (h *Hub) Flush() int {
	n := 0
	for {
		progressed := false
		for _, e := range slices.Clone(h.entries) {
			for len(e.pending) > 0 {
				if h.index[e.ID] != e {
					e.pending = nil
					break
				}
				next := e.pending[0]
				e.pending = e.pending[1:]
				next()
				n++
				progressed = true
			}
		}
		if !progressed {
			return n
		}
	}
}

func (h *Hub) track(c forgetter) {
	h.channels = append(h.channels, c)
}

func (h *Hub) untrack(c forgetter) {
	h.channels = slices.DeleteFunc(h.channels, func(v forgetter) bool { return v == c })
}
