package channel

import (
	"fmt"
	"sort"
	"sync"

	"github.com/soyeahso/smsrelay/internal/domain"
	"github.com/soyeahso/smsrelay/internal/logging"
)

// SenderStatus reports whether a sender kind can currently deliver.
type SenderStatus struct {
	Kind      domain.ChannelKind `json:"kind"`
	Available bool               `json:"available"`
}

// Registry maps channel kinds to their senders.
type Registry struct {
	mu      sync.RWMutex
	senders map[domain.ChannelKind]Sender
	log     *logging.Logger
}

// NewRegistry creates a sender registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		senders: make(map[domain.ChannelKind]Sender),
		log:     log.Sub("senders"),
	}
}

// Register adds a sender, replacing any existing sender for the same kind.
func (r *Registry) Register(s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[s.Kind()] = s
	r.log.Info().
		Str("kind", string(s.Kind())).
		Bool("available", s.Available()).
		Msg("sender registered")
}

// Get returns the sender for a kind.
func (r *Registry) Get(kind domain.ChannelKind) (Sender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.senders[kind]
	return s, ok
}

// Resolve returns the sender for a channel, or an error if none is registered
// or the sender cannot deliver right now.
func (r *Registry) Resolve(ch domain.Channel) (Sender, error) {
	s, ok := r.Get(ch.Kind)
	if !ok {
		return nil, Failed(ch, fmt.Errorf("no sender registered for kind %q", ch.Kind))
	}
	if !s.Available() {
		return nil, Failed(ch, fmt.Errorf("%s sender unavailable", ch.Kind))
	}
	return s, nil
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []domain.ChannelKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]domain.ChannelKind, 0, len(r.senders))
	for k := range r.senders {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Status returns availability for every registered kind.
func (r *Registry) Status() []SenderStatus {
	kinds := r.Kinds()
	r.mu.RLock()
	defer r.mu.RUnlock()
	statuses := make([]SenderStatus, 0, len(kinds))
	for _, k := range kinds {
		statuses = append(statuses, SenderStatus{Kind: k, Available: r.senders[k].Available()})
	}
	return statuses
}

// Count returns the number of registered senders.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.senders)
}
