// Package store keeps the latest published snapshot of every account so the
// balances can be queried while shards keep running.
package store

import (
	"sort"
	"sync"

	"github.com/fairyhunter13/payments-engine/internal/model"
)

type accountState struct {
	snap         model.AccountSnapshot
	lastSequence uint64
}

// Store is a concurrency-safe read model. Shards remain the only writers of
// account state; the store only mirrors what they publish.
type Store struct {
	mu sync.RWMutex
	m  map[model.ClientID]accountState
}

func New() *Store {
	return &Store{m: make(map[model.ClientID]accountState)}
}

func (s *Store) Get(id model.ClientID) (model.AccountSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.m[id]
	if !ok {
		return model.AccountSnapshot{}, false
	}
	return st.snap, true
}

// Publish records snap unless a snapshot with the same or a newer sequence
// was already stored. Sequence 0 is treated as unsequenced and always wins.
func (s *Store) Publish(seq uint64, snap model.AccountSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.m[snap.ClientID]
	if ok && seq != 0 && seq <= st.lastSequence {
		return
	}
	s.m[snap.ClientID] = accountState{snap: snap, lastSequence: seq}
}

// All returns every stored snapshot sorted by client id.
func (s *Store) All() []model.AccountSnapshot {
	s.mu.RLock()
	out := make([]model.AccountSnapshot, 0, len(s.m))
	for _, st := range s.m {
		out = append(out, st.snap)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
