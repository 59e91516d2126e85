package relay

import (
	"sort"
	"sync"

	"github.com/primesmshub/sms-hub-api/services"
)

// Channel is a live duplex connection that can receive events
type Channel interface {
	Emit(ev Event) error
	// Owner is the authenticated subject, "" for anonymous connections
	Owner() string
}

// Registry maps connection ids to live channels. Entries are never persisted.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Channel
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]Channel)}
}

// Register adds or replaces the channel for id
func (r *Registry) Register(id string, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[id] = ch
}

// Unregister removes id; unknown ids are ignored
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, id)
}

// Lookup returns the channel for id if it is still connected
func (r *Registry) Lookup(id string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.conns[id]
	return ch, ok
}

// IDs returns the live connection ids in sorted order
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Broadcast emits ev to every connection and returns how many accepted it
func (r *Registry) Broadcast(ev Event) int {
	return r.emitWhere(ev, func(Channel) bool { return true })
}

// PublishWalletUpdate emits the new balance to every connection of auth0ID
func (r *Registry) PublishWalletUpdate(auth0ID string, update services.WalletUpdate) {
	if auth0ID == "" {
		return
	}
	r.emitWhere(WalletUpdate(update), func(ch Channel) bool { return ch.Owner() == auth0ID })
}

func (r *Registry) emitWhere(ev Event, match func(Channel) bool) int {
	r.mu.RLock()
	targets := make([]Channel, 0, len(r.conns))
	for _, ch := range r.conns {
		if match(ch) {
			targets = append(targets, ch)
		}
	}
	r.mu.RUnlock()

	delivered := 0
	for _, ch := range targets {
		if err := ch.Emit(ev); err == nil {
			delivered++
		}
	}
	return delivered
}
