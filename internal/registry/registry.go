// Package registry keeps the mailbox's messages in a rebuildable,
// id-keyed doubly-linked order.
package registry

import "time"

// Message is a single voicemail. Views refer to messages by ID and look
// them up here; they never hold the record itself.
type Message struct {
	ID       string
	Date     time.Time
	Memo     string
	Locator  string
	Duration time.Duration
	Selected bool
}

type links struct {
	prev string
	next string
}

// Registry indexes messages by id and links them in the current order.
// It is only mutated from the controller's event loop.
type Registry struct {
	messages map[string]*Message
	links    map[string]links
	order    []string
	selected string
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		messages: make(map[string]*Message),
		links:    make(map[string]links),
	}
}

// Build replaces the registry contents with records in the given order.
// Later records with an id already seen are dropped.
func (r *Registry) Build(records []Message) {
	r.messages = make(map[string]*Message, len(records))
	r.order = r.order[:0]
	r.selected = ""
	for _, rec := range records {
		if _, dup := r.messages[rec.ID]; dup {
			continue
		}
		m := rec
		r.messages[m.ID] = &m
		r.order = append(r.order, m.ID)
		if m.Selected {
			if r.selected != "" {
				m.Selected = false
				continue
			}
			r.selected = m.ID
		}
	}
	r.relink()
}

// Rebuild relinks the messages in a new order without touching identity
// or selection. Unknown ids are skipped; known ids missing from order keep
// their previous relative order after the listed ones.
func (r *Registry) Rebuild(order []string) {
	seen := make(map[string]bool, len(r.messages))
	next := make([]string, 0, len(r.messages))
	for _, id := range order {
		if _, ok := r.messages[id]; !ok || seen[id] {
			continue
		}
		seen[id] = true
		next = append(next, id)
	}
	for _, id := range r.order {
		if !seen[id] {
			next = append(next, id)
		}
	}
	r.order = next
	r.relink()
}

func (r *Registry) relink() {
	r.links = make(map[string]links, len(r.order))
	for i, id := range r.order {
		var l links
		if i > 0 {
			l.prev = r.order[i-1]
		}
		if i+1 < len(r.order) {
			l.next = r.order[i+1]
		}
		r.links[id] = l
	}
}

// Get returns the message with the given id.
func (r *Registry) Get(id string) (*Message, bool) {
	m, ok := r.messages[id]
	return m, ok
}

// Prev returns the id before id in the current order.
func (r *Registry) Prev(id string) (string, bool) {
	l, ok := r.links[id]
	if !ok || l.prev == "" {
		return "", false
	}
	return l.prev, true
}

// Next returns the id after id in the current order.
func (r *Registry) Next(id string) (string, bool) {
	l, ok := r.links[id]
	if !ok || l.next == "" {
		return "", false
	}
	return l.next, true
}

// First returns the first id in the current order.
func (r *Registry) First() (string, bool) {
	if len(r.order) == 0 {
		return "", false
	}
	return r.order[0], true
}

// Len returns the number of messages.
func (r *Registry) Len() int {
	return len(r.order)
}

// IDs returns the message ids in the current order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// Select marks id as the only selected message. Unknown ids leave the
// selection unchanged.
func (r *Registry) Select(id string) bool {
	m, ok := r.messages[id]
	if !ok {
		return false
	}
	if prev, ok := r.messages[r.selected]; ok {
		prev.Selected = false
	}
	m.Selected = true
	r.selected = id
	return true
}

// Selected returns the selected message, if any.
func (r *Registry) Selected() (*Message, bool) {
	if r.selected == "" {
		return nil, false
	}
	return r.Get(r.selected)
}
