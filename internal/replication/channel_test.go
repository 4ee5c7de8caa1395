package replication

import (
	"errors"
	"slices"
	"testing"

	"github.com/rs/zerolog"
)

func newTestChannel(t *testing.T) (*Hub, *diagnostics, *Channel[int]) {
	t.Helper()
	rec := &diagnostics{}
	h := NewHub(zerolog.Nop())
	g := NewGate(zerolog.Nop(), rec)
	for _, id := range []ObserverID{"a", "b"} {
		if err := h.Register(Observer{ID: id}); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}
	return h, rec, NewChannel("hp", h, g, 100)
}

func TestChannelInitialSync(t *testing.T) {
	h, _, c := newTestChannel(t)

	var got []int
	c.Observe("a", func(v int) { got = append(got, v) })
	if _, ok := c.Read("a"); ok {
		t.Fatalf("value visible before flush")
	}
	h.Flush()
	if len(got) != 1 || got[0] != 100 {
		t.Fatalf("expected initial value 100, got %v", got)
	}
	if v, ok := c.Read("a"); !ok || v != 100 {
		t.Fatalf("Read = %d, %v", v, ok)
	}
}

func TestChannelSetDeliversInOrder(t *testing.T) {
	h, _, c := newTestChannel(t)

	var a, b []int
	c.Observe("a", func(v int) { a = append(a, v) })
	c.Observe("b", func(v int) { b = append(b, v) })

	c.Set(Authority, 70)
	c.Set(Authority, 70)
	c.Set(Authority, 0)
	h.Flush()

	want := []int{100, 70, 0}
	if !slices.Equal(a, want) || !slices.Equal(b, want) {
		t.Fatalf("a=%v b=%v, want %v", a, b, want)
	}
	if c.Value() != 0 {
		t.Fatalf("Value = %d", c.Value())
	}
}

func TestChannelRejectsRemoteWrites(t *testing.T) {
	h, rec, c := newTestChannel(t)

	var got []int
	c.Observe("a", func(v int) { got = append(got, v) })
	h.Flush()

	if c.Set(Remote, 5) {
		t.Fatalf("remote write accepted")
	}
	h.Flush()
	if c.Value() != 100 || len(got) != 1 {
		t.Fatalf("remote write changed state: value=%d deliveries=%v", c.Value(), got)
	}
	if len(rec.got) != 1 || !errors.Is(rec.got[0].Err, ErrAuthorityViolation) {
		t.Fatalf("expected authority violation, got %+v", rec.got)
	}
}

func TestChannelUnobserveAndUnregister(t *testing.T) {
	h, _, c := newTestChannel(t)

	var a, b int
	c.Observe("a", func(int) { a++ })
	c.Observe("b", func(int) { b++ })
	h.Flush()

	c.Set(Authority, 1)
	c.Unobserve("a")
	h.Unregister("b")
	h.Flush()

	if a != 1 || b != 1 {
		t.Fatalf("deliveries after removal: a=%d b=%d", a, b)
	}
	if _, ok := c.Read("a"); ok {
		t.Fatalf("unobserved reader still has a value")
	}
}

func TestChannelObserveTwiceReplacesCallback(t *testing.T) {
	h, _, c := newTestChannel(t)

	var first, second int
	c.Observe("a", func(int) { first++ })
	c.Observe("a", func(int) { second++ })
	h.Flush()
	c.Set(Authority, 3)
	h.Flush()

	if first != 0 || second != 2 {
		t.Fatalf("first=%d second=%d", first, second)
	}
}

func TestChannelClose(t *testing.T) {
	h, _, c := newTestChannel(t)

	var got int
	c.Observe("a", func(int) { got++ })
	c.Set(Authority, 1)
	c.Close()
	h.Flush()

	if got != 0 {
		t.Fatalf("closed channel delivered %d values", got)
	}
	for _, ch := range h.channels {
		if ch == forgetter(c) {
			t.Fatalf("closed channel still tracked")
		}
	}
}

func TestChannelFuncEquality(t *testing.T) {
	h := NewHub(zerolog.Nop())
	g := NewGate(zerolog.Nop(), nil)
	_ = h.Register(Observer{ID: "a"})
	c := NewChannelFunc("scores", h, g, []int{0, 0}, slices.Equal[[]int, int])

	var n int
	c.Observe("a", func([]int) { n++ })
	if c.Set(Authority, []int{0, 0}) {
		t.Fatalf("equal slice reported a change")
	}
	if !c.Set(Authority, []int{1, 0}) {
		t.Fatalf("changed slice not reported")
	}
	h.Flush()
	if n != 2 {
		t.Fatalf("expected 2 deliveries, got %d", n)
	}
}
