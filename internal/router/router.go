// Package router maps the selected message to a persisted navigation
// fragment and back.
package router

import (
	"strings"

	"github.com/olivier-w/mailbox/internal/registry"
)

// Location stores the navigation fragment. Fragments are stored without
// the leading '#'.
type Location interface {
	Fragment() string
	SetFragment(fragment string) error
}

// Notifier is implemented by locations that report fragment changes
// synchronously on the caller's event loop.
type Notifier interface {
	Subscribe(fn func(fragment string)) (unsubscribe func())
}

// Resolver looks up messages by id.
type Resolver interface {
	Get(id string) (*registry.Message, bool)
}

// Router translates between message ids and fragments.
type Router struct {
	loc      Location
	resolver Resolver
}

// New returns a router writing to loc and resolving through resolver.
func New(loc Location, resolver Resolver) *Router {
	return &Router{loc: loc, resolver: resolver}
}

// Normalize strips surrounding whitespace and a leading '#'.
func Normalize(fragment string) string {
	return strings.TrimPrefix(strings.TrimSpace(fragment), "#")
}

// Encode writes id as the current fragment.
func (r *Router) Encode(id string) error {
	return r.loc.SetFragment(id)
}

// Decode resolves fragment to a known message id. An empty fragment or an
// unknown id resolves to nothing.
func (r *Router) Decode(fragment string) (string, bool) {
	id := Normalize(fragment)
	if id == "" {
		return "", false
	}
	if _, ok := r.resolver.Get(id); !ok {
		return "", false
	}
	return id, true
}

// Current decodes the fragment currently held by the location.
func (r *Router) Current() (string, bool) {
	return r.Decode(r.loc.Fragment())
}

// Resolve decodes fragment for a navigation change. It resolves to nothing
// when the fragment names the already selected message, which is what
// Encode itself produces.
func (r *Router) Resolve(fragment, selected string) (string, bool) {
	if Normalize(fragment) == selected && selected != "" {
		return "", false
	}
	return r.Decode(fragment)
}

// Watch subscribes fn to fragment changes when the location supports
// synchronous notification. The returned func is never nil.
func (r *Router) Watch(fn func(fragment string)) (unsubscribe func()) {
	n, ok := r.loc.(Notifier)
	if !ok {
		return func() {}
	}
	return n.Subscribe(fn)
}
