package memory

import (
	"sync"

	"github.com/yndnr/waypoint-go/pkg/cmap"
)

// IDSet is a concurrent-safe set of record IDs.
type IDSet struct {
	mu    sync.RWMutex
	items map[string]struct{}
}

// NewIDSet creates an empty set.
func NewIDSet() *IDSet {
	return &IDSet{items: make(map[string]struct{})}
}

// Add adds an ID.
func (s *IDSet) Add(id string) {
	s.mu.Lock()
	s.items[id] = struct{}{}
	s.mu.Unlock()
}

// Remove removes an ID and reports whether the set is now empty.
func (s *IDSet) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return len(s.items) == 0
}

// Len returns the number of IDs.
func (s *IDSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Items returns a copy of the IDs in no particular order.
func (s *IDSet) Items() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.items))
	for id := range s.items {
		out = append(out, id)
	}
	return out
}

// OwnerIndex maps an owner (character) to the IDs of the records it owns.
type OwnerIndex struct {
	index *cmap.Map[string, *IDSet]
}

// NewOwnerIndex creates an empty index.
func NewOwnerIndex() *OwnerIndex {
	return &OwnerIndex{index: cmap.New[string, *IDSet]()}
}

// Add records that owner owns id.
func (i *OwnerIndex) Add(owner, id string) {
	set, _ := i.index.GetOrSet(owner, NewIDSet())
	set.Add(id)
}

// Remove forgets id. Owners without records are dropped.
func (i *OwnerIndex) Remove(owner, id string) {
	set, ok := i.index.Get(owner)
	if !ok {
		return
	}
	if set.Remove(id) {
		i.index.Delete(owner)
	}
}

// Get returns the IDs owned by owner.
func (i *OwnerIndex) Get(owner string) []string {
	set, ok := i.index.Get(owner)
	if !ok {
		return nil
	}
	return set.Items()
}

// Owners returns every owner with at least one record.
func (i *OwnerIndex) Owners() []string {
	return i.index.Keys()
}

// Clear drops every owner.
func (i *OwnerIndex) Clear() {
	i.index.Clear()
}
