package game

import (
	"fmt"
	"sort"
	"sync"
)

// Pickups holds the items lying in the world. Take is atomic: an item leaves
// the world exactly once, so it can never end up with two owners.
type Pickups struct {
	mu    sync.Mutex
	items map[string]*Item
}

func NewPickups() *Pickups {
	return &Pickups{items: make(map[string]*Item)}
}

func (p *Pickups) Place(it *Item) error {
	if !it.Valid() {
		return fmt.Errorf("invalid pickup item")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.items[it.ID]; ok {
		return fmt.Errorf("pickup %s already placed", it.ID)
	}
	p.items[it.ID] = it
	return nil
}

// Take removes the item when accept agrees. accept runs under the lock.
func (p *Pickups) Take(id string, accept func(*Item) bool) (*Item, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	it, ok := p.items[id]
	if !ok {
		return nil, false
	}
	if accept != nil && !accept(it) {
		return nil, false
	}
	delete(p.items, id)
	return it, true
}

func (p *Pickups) Has(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.items[id]
	return ok
}

// List returns the pickup ids in sorted order.
func (p *Pickups) List() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.items))
	for id := range p.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (p *Pickups) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.items)
}
