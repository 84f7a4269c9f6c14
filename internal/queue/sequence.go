package queue

import "sync/atomic"

// Sequencer stamps arrivals with monotonically increasing numbers, starting at 1.
type Sequencer struct{ n atomic.Uint64 }

// Next returns the next sequence number.
func (s *Sequencer) Next() uint64 { return s.n.Add(1) }

// Last returns the most recently issued sequence number, or 0.
func (s *Sequencer) Last() uint64 { return s.n.Load() }
