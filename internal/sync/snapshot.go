// Package sync implements the client-side snapshot store and the
// rewind signal that drives resimulation (spec §4.D) — the heart of
// lag compensation in this runtime.
package sync

import (
	"sort"

	"github.com/riftline/sabi/internal/protocol"
	"github.com/riftline/sabi/internal/tick"
)

// RetainBuffer is the tick window the store keeps: chosen to comfortably
// exceed FrameBuffer plus the deepest rewind this runtime expects to
// see in practice.
const RetainBuffer = 16

// Store is the ordered map NetworkTick -> UpdateMessage the client
// keeps. Invariant: contains only ticks within RetainBuffer of the
// newest tick seen.
type Store struct {
	messages map[tick.Network]protocol.UpdateMessage
}

// NewStore creates an empty snapshot store.
func NewStore() *Store {
	return &Store{messages: make(map[tick.Network]protocol.UpdateMessage)}
}

// Get returns the stored message for t, if any.
func (s *Store) Get(t tick.Network) (protocol.UpdateMessage, bool) {
	m, ok := s.messages[t]
	return m, ok
}

// Latest returns the newest tick held, if the store is non-empty.
func (s *Store) Latest() (tick.Network, bool) {
	if len(s.messages) == 0 {
		return tick.Network(0), false
	}
	var newest tick.Network
	first := true
	for t := range s.messages {
		if first || t.Value() > newest.Value() {
			newest = t
			first = false
		}
	}
	return newest, true
}

// Push inserts or merges message by tick: a message for a tick already
// held is merged (entity-update-wise, last-writer-wins per component);
// a new tick is inserted outright. Apply can only fail on a tick
// mismatch, which cannot happen here since both messages share Tick by
// construction.
func (s *Store) Push(message protocol.UpdateMessage) {
	if existing, ok := s.messages[message.Tick]; ok {
		_ = existing.Apply(message) // same tick by construction; error path unreachable
		s.messages[message.Tick] = existing
	} else {
		s.messages[message.Tick] = message
	}
	s.retain()
}

func (s *Store) retain() {
	newest, ok := s.Latest()
	if !ok {
		return
	}
	for t := range s.messages {
		if int64(newest.Value())-int64(t.Value()) >= RetainBuffer {
			delete(s.messages, t)
		}
	}
}

// Ticks returns every tick currently held, ascending — for diagnostics
// and tests; the hot paths use Get/Push directly.
func (s *Store) Ticks() []tick.Network {
	out := make([]tick.Network, 0, len(s.messages))
	for t := range s.messages {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value() < out[j].Value() })
	return out
}

// Len reports how many ticks are currently buffered.
func (s *Store) Len() int {
	return len(s.messages)
}

// Rewind is the signal emitted when the receive phase observed a tick
// older than the client's current tick: the simulation must roll back
// to To and replay forward using the stored inputs and snapshots.
type Rewind struct {
	To tick.Network
}

// ReceiveTracker accumulates the minimum tick seen across one receive
// phase, so the caller can emit a single Rewind signal (or none) after
// draining the channel, per spec §4.D/§4.F.
type ReceiveTracker struct {
	min  tick.Network
	seen bool
}

// Observe records a tick seen during this receive phase.
func (r *ReceiveTracker) Observe(t tick.Network) {
	if !r.seen || t.Value() < r.min.Value() {
		r.min = t
		r.seen = true
	}
}

// Rewind returns the rewind signal for this phase, if any message was
// observed.
func (r *ReceiveTracker) Rewind() (Rewind, bool) {
	if !r.seen {
		return Rewind{}, false
	}
	return Rewind{To: r.min}, true
}
