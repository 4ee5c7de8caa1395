package rpc

import (
	"fmt"
	"shooter-sync/internal/replication"

	"github.com/rs/zerolog"
)

// Router carries the three call shapes between the authority and its
// observers. Server calls from remote origins queue until Pump runs on the
// authority; client and multicast calls queue on the hub outboxes, so calls
// to the same target arrive in send order.
type Router struct {
	hub     *replication.Hub
	gate    *replication.Gate
	pending []func()
	logger  zerolog.Logger
}

func NewRouter(hub *replication.Hub, gate *replication.Gate, logger zerolog.Logger) *Router {
	return &Router{hub: hub, gate: gate, logger: logger}
}

// ServerCall is a client-to-authority call. Validate, when set, runs on the
// authority before Execute; a failed validation drops the call.
type ServerCall[A any] struct {
	Name     string
	Validate func(A) bool
	Execute  func(A)
	router   *Router
}

func NewServerCall[A any](r *Router, name string, validate func(A) bool, execute func(A)) *ServerCall[A] {
	return &ServerCall[A]{Name: name, Validate: validate, Execute: execute, router: r}
}

// Call issues the call from origin. Calls made on the authority run
// immediately; remote calls wait for the next Pump.
func (c *ServerCall[A]) Call(origin replication.Side, args A) {
	if origin == replication.Authority {
		c.run(args)
		return
	}
	c.router.pending = append(c.router.pending, func() { c.run(args) })
}

func (c *ServerCall[A]) run(args A) {
	if c.Validate != nil && !c.Validate(args) {
		c.router.gate.Reject(replication.Diagnostic{
			Err:    replication.ErrValidationFailure,
			Op:     c.Name,
			Detail: fmt.Sprintf("args %+v", args),
		})
		return
	}
	c.Execute(args)
}

// Pump executes queued server calls in arrival order and returns how many
// were processed, including ones that failed validation.
func (r *Router) Pump() int {
	n := 0
	for len(r.pending) > 0 {
		next := r.pending[0]
		r.pending = r.pending[1:]
		next()
		n++
	}
	return n
}

// ClientCall delivers to one observer. It reports false when the origin is
// not the authority or the target is unknown.
func (r *Router) ClientCall(origin replication.Side, name string, target replication.ObserverID, deliver func(replication.Observer)) bool {
	if !r.gate.RequireAuthority(origin, name) {
		return false
	}
	if !r.hub.Enqueue(target, deliver) {
		r.logger.Debug().Str("call", name).Str("observer_id", string(target)).Msg("client call target not registered")
		return false
	}
	return true
}

// Multicast delivers to every registered observer, the authority's local
// observer included. deliver receives the observer so payloads can be
// tailored per observer.
func (r *Router) Multicast(origin replication.Side, name string, deliver func(replication.Observer)) bool {
	if !r.gate.RequireAuthority(origin, name) {
		return false
	}
	for _, o := range r.hub.Observers() {
		r.hub.Enqueue(o.ID, deliver)
	}
	return true
}
