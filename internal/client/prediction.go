package client

import (
	"sort"

	"github.com/riftline/sabi/internal/game"
	"github.com/riftline/sabi/internal/input"
	"github.com/riftline/sabi/internal/protocol"
	"github.com/riftline/sabi/internal/tick"
)

// PredictionBuffer stores recent inputs and the locally-predicted world
// state for each tick, so a rewind can roll back to any retained tick
// and replay forward exactly as the first prediction did.
type PredictionBuffer struct {
	inputs   *input.Queued[protocol.Intent]
	states   map[tick.Network]game.WorldState
	capacity int
}

// NewPredictionBuffer creates a prediction buffer retaining up to
// capacity ticks of history.
func NewPredictionBuffer(capacity int) *PredictionBuffer {
	return &PredictionBuffer{
		inputs:   input.NewQueued[protocol.Intent](),
		states:   make(map[tick.Network]game.WorldState, capacity),
		capacity: capacity,
	}
}

// RecordInput stores the locally-sampled intent for t.
func (b *PredictionBuffer) RecordInput(t tick.Network, intent protocol.Intent) {
	b.inputs.Upsert(t, intent)
}

// RecordState stores the predicted world state for its tick.
func (b *PredictionBuffer) RecordState(state game.WorldState) {
	b.states[tick.New(state.Tick)] = state
	if len(b.states) > b.capacity {
		b.pruneOldest()
	}
}

func (b *PredictionBuffer) pruneOldest() {
	var oldest tick.Network
	first := true
	for t := range b.states {
		if first || t.Value() < oldest.Value() {
			oldest = t
			first = false
		}
	}
	if !first {
		delete(b.states, oldest)
	}
}

// GetState returns the predicted state for t, if retained.
func (b *PredictionBuffer) GetState(t tick.Network) (game.WorldState, bool) {
	s, ok := b.states[t]
	return s, ok
}

// GetInputsSince returns the tick of every stored input strictly after
// from, ascending.
func (b *PredictionBuffer) GetInputsSince(from tick.Network) []tick.Network {
	var result []tick.Network
	for _, t := range b.inputs.Ticks() {
		if t.Value() > from.Value() {
			result = append(result, t)
		}
	}
	return result
}

// Input returns the recorded intent for t, if any.
func (b *PredictionBuffer) Input(t tick.Network) (protocol.Intent, bool) {
	return b.inputs.Get(t)
}

// PruneBefore discards inputs and states older than t.
func (b *PredictionBuffer) PruneBefore(t tick.Network) {
	b.inputs.DiscardBefore(t)
	for stored := range b.states {
		if stored.Value() < t.Value() {
			delete(b.states, stored)
		}
	}
}

// LatestTick returns the newest recorded state's tick, or 0 if empty.
func (b *PredictionBuffer) LatestTick() tick.Network {
	ticks := make([]tick.Network, 0, len(b.states))
	for t := range b.states {
		ticks = append(ticks, t)
	}
	sort.Slice(ticks, func(i, j int) bool { return ticks[i].Value() < ticks[j].Value() })
	if len(ticks) == 0 {
		return tick.New(0)
	}
	return ticks[len(ticks)-1]
}

// InputCount returns the number of stored inputs.
func (b *PredictionBuffer) InputCount() int {
	return b.inputs.Len()
}

// StateCount returns the number of stored states.
func (b *PredictionBuffer) StateCount() int {
	return len(b.states)
}

// Clear removes all stored inputs and states.
func (b *PredictionBuffer) Clear() {
	b.inputs = input.NewQueued[protocol.Intent]()
	b.states = make(map[tick.Network]game.WorldState, b.capacity)
}
