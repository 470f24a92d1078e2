// Package registry provides the receiver registry.
package registry

import (
	"sync"

	"syncribullet/pkg/interfaces"
	"syncribullet/pkg/types"
)

// ReceiverRegistry maps receiver ids to their implementation.
// Iteration follows registration order.
type ReceiverRegistry struct {
	mu        sync.RWMutex
	receivers []interfaces.Receiver
	byID      map[types.ReceiverID]interfaces.Receiver
}

// NewReceiverRegistry creates a new receiver registry.
func NewReceiverRegistry() *ReceiverRegistry {
	return &ReceiverRegistry{
		receivers: make([]interfaces.Receiver, 0),
		byID:      make(map[types.ReceiverID]interfaces.Receiver),
	}
}

// Register adds a receiver to the registry. Registering an id twice
// replaces the earlier receiver in place.
func (r *ReceiverRegistry) Register(receiver interfaces.Receiver) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := receiver.ID()
	if _, exists := r.byID[id]; exists {
		for i, existing := range r.receivers {
			if existing.ID() == id {
				r.receivers[i] = receiver
			}
		}
	} else {
		r.receivers = append(r.receivers, receiver)
	}
	r.byID[id] = receiver
}

// Get returns the receiver registered for id.
func (r *ReceiverRegistry) Get(id types.ReceiverID) (interfaces.Receiver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	receiver, ok := r.byID[id]
	return receiver, ok
}

// All returns all registered receivers.
func (r *ReceiverRegistry) All() []interfaces.Receiver {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]interfaces.Receiver, len(r.receivers))
	copy(result, r.receivers)
	return result
}

// IDs returns the registered receiver ids in registration order.
func (r *ReceiverRegistry) IDs() []types.ReceiverID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]types.ReceiverID, len(r.receivers))
	for i, receiver := range r.receivers {
		ids[i] = receiver.ID()
	}
	return ids
}
