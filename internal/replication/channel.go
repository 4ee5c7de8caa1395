package replication

type channelObserver[T any] struct {
	id       ObserverID
	onChange func(T)
}

// Channel is a replicated value owned by the authority. Set stores a new
// value and queues a change delivery for every observer; observers see the
// value once the hub flushes, in the order the authority issued the writes.
type Channel[T any] struct {
	name      string
	hub       *Hub
	gate      *Gate
	equal     func(a, b T) bool
	value     T
	observers []channelObserver[T]
	seen      map[ObserverID]T
}

// NewChannel creates a channel for comparable values.
func NewChannel[T comparable](name string, hub *Hub, gate *Gate, initial T) *Channel[T] {
	return NewChannelFunc(name, hub, gate, initial, func(a, b T) bool { return a == b })
}

// NewChannelFunc creates a channel whose change detection uses equal.
func NewChannelFunc[T any](name string, hub *Hub, gate *Gate, initial T, equal func(a, b T) bool) *Channel[T] {
	c := &Channel[T]{
		name:  name,
		hub:   hub,
		gate:  gate,
		equal: equal,
		value: initial,
		seen:  make(map[ObserverID]T),
	}
	hub.track(c)
	return c
}

func (c *Channel[T]) Name() string { return c.name }

// Observe registers onChange for observer id. The current value is queued
// for the observer so late joiners start from the authoritative state.
// Registering the same observer twice replaces its callback.
func (c *Channel[T]) Observe(id ObserverID, onChange func(T)) {
	for i := range c.observers {
		if c.observers[i].id == id {
			c.observers[i].onChange = onChange
			return
		}
	}
	c.observers = append(c.observers, channelObserver[T]{id: id, onChange: onChange})
	c.deliver(c.observers[len(c.observers)-1], c.value)
}

func (c *Channel[T]) Unobserve(id ObserverID) {
	c.forget(id)
}

// Close drops every observer and detaches the channel from its hub. Queued
// deliveries are discarded when they run.
func (c *Channel[T]) Close() {
	c.observers = nil
	clear(c.seen)
	c.hub.untrack(c)
}

func (c *Channel[T]) forget(id ObserverID) {
	for i := range c.observers {
		if c.observers[i].id == id {
			c.observers = append(c.observers[:i], c.observers[i+1:]...)
			break
		}
	}
	delete(c.seen, id)
}

// Set replaces the value. Only the authority may write; an unchanged value
// produces no notification. It reports whether observers were notified.
func (c *Channel[T]) Set(side Side, v T) bool {
	if !c.gate.RequireAuthority(side, "replicate "+c.name) {
		return false
	}
	if c.equal(c.value, v) {
		return false
	}
	c.value = v
	for _, o := range c.observers {
		c.deliver(o, v)
	}
	return true
}

// Value returns the authority's latest write.
func (c *Channel[T]) Value() T {
	return c.value
}

// Read returns the last value delivered to observer id. It reports false
// before the first delivery.
func (c *Channel[T]) Read(id ObserverID) (T, bool) {
	v, ok := c.seen[id]
	return v, ok
}

func (c *Channel[T]) deliver(o channelObserver[T], v T) {
	c.hub.Enqueue(o.id, func(Observer) {
		if !c.observing(o.id) {
			return
		}
		c.seen[o.id] = v
		o.onChange(v)
	})
}

func (c *Channel[T]) observing(id ObserverID) bool {
	for _, o := range c.observers {
		if o.id == id {
			return true
		}
	}
	return false
}
