package input

import (
	"sort"

	"github.com/riftline/sabi/internal/protocol"
	"github.com/riftline/sabi/internal/tick"
)

// RetainBuffer is the tick window inputs are kept for: a newly pushed
// input evicts anything whose distance from the newest tick is not
// strictly less than RetainBuffer.
const RetainBuffer = 6

// Queued is a tick-keyed input queue for a single producer (one
// client's own inputs, or one client's inputs as seen by the server).
// Invariants: an upsert never downgrades a later value (tracked
// implicitly — the map simply holds the latest write per tick, and
// inputs are immutable once sampled so "latest write" and "correct
// value" coincide); Retain keeps only ticks within RetainBuffer of the
// newest.
type Queued[I any] struct {
	entries map[tick.Network]I
}

// NewQueued creates an empty queue.
func NewQueued[I any]() *Queued[I] {
	return &Queued[I]{entries: make(map[tick.Network]I)}
}

// Get returns the input stored for t, if any.
func (q *Queued[I]) Get(t tick.Network) (I, bool) {
	v, ok := q.entries[t]
	return v, ok
}

// Upsert inserts or overwrites the input for t. Last-writer-wins is safe
// here because the sliding-window retransmit always carries the same
// value for a given tick once it has been sampled.
func (q *Queued[I]) Upsert(t tick.Network, input I) {
	q.entries[t] = input
}

// UpsertReject refuses to insert an input whose tick is strictly less
// than current, guarding against a client retroactively overwriting a
// tick the server has already consumed (Open Question (b) in spec §9;
// this repo takes the defense-in-depth option the source leaves as a
// choice rather than using the source's server-side plain Upsert).
func (q *Queued[I]) UpsertReject(current, t tick.Network, input I) {
	if t.Value() < current.Value() {
		return
	}
	q.Upsert(t, input)
}

// Push inserts the input for t and immediately retains, matching the
// client-side sampling loop's push-then-trim shape.
func (q *Queued[I]) Push(t tick.Network, input I) {
	q.Upsert(t, input)
	q.Retain()
}

// Retain keeps only ticks within RetainBuffer of the newest tick held.
func (q *Queued[I]) Retain() {
	newest := q.newest()
	for t := range q.entries {
		if int64(newest.Value())-int64(t.Value()) >= RetainBuffer {
			delete(q.entries, t)
		}
	}
}

// CleanOld discards every entry whose tick is older than current —
// used on the server each tick so inputs it can no longer apply do not
// accumulate, mirroring the source's clean_old.
func (q *Queued[I]) CleanOld(current tick.Network) {
	for t := range q.entries {
		if t.Value() < current.Value() {
			delete(q.entries, t)
		}
	}
}

// DiscardBefore drops every entry strictly older than t — the same
// prune as CleanOld, under the name a client uses when rebasing its
// retained history onto a freshly confirmed tick.
func (q *Queued[I]) DiscardBefore(t tick.Network) {
	for stored := range q.entries {
		if stored.Value() < t.Value() {
			delete(q.entries, stored)
		}
	}
}

func (q *Queued[I]) newest() tick.Network {
	var newest tick.Network
	for t := range q.entries {
		if t.Value() > newest.Value() {
			newest = t
		}
	}
	return newest
}

// Clone returns a deep-enough copy suitable for attaching to an
// outgoing ClientInputMessage (the redundant sliding window send).
func (q *Queued[I]) Clone() *Queued[I] {
	out := NewQueued[I]()
	for t, v := range q.entries {
		out.entries[t] = v
	}
	return out
}

// ApplyBuffer merges another queue on top of this one, tick by tick,
// used by the server to fold a freshly received sliding window into a
// client's standing queue.
func (q *Queued[I]) ApplyBuffer(other *Queued[I]) {
	for t, v := range other.entries {
		q.Upsert(t, v)
	}
}

// Ticks returns every tick currently held, ascending, for deterministic
// iteration (tests, wire encoding).
func (q *Queued[I]) Ticks() []tick.Network {
	out := make([]tick.Network, 0, len(q.entries))
	for t := range q.entries {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value() < out[j].Value() })
	return out
}

// Len reports how many ticks are currently buffered.
func (q *Queued[I]) Len() int {
	return len(q.entries)
}

// PerClient is the server-side mapping ClientId -> Queued[I].
type PerClient[I any] struct {
	clients map[protocol.ClientID]*Queued[I]
}

// NewPerClient creates an empty per-client input table.
func NewPerClient[I any]() *PerClient[I] {
	return &PerClient[I]{clients: make(map[protocol.ClientID]*Queued[I])}
}

// Get returns the input a client has queued for t, if any.
func (p *PerClient[I]) Get(client protocol.ClientID, t tick.Network) (I, bool) {
	q, ok := p.clients[client]
	if !ok {
		var zero I
		return zero, false
	}
	return q.Get(t)
}

// Upsert merges a freshly received window into the client's queue,
// creating the queue if this is the first message from that client.
func (p *PerClient[I]) Upsert(client protocol.ClientID, window *Queued[I]) {
	if existing, ok := p.clients[client]; ok {
		existing.ApplyBuffer(window)
		return
	}
	p.clients[client] = window
}

// CleanOld prunes every client's queue of inputs now in the past
// relative to current.
func (p *PerClient[I]) CleanOld(current tick.Network) {
	for _, q := range p.clients {
		q.CleanOld(current)
	}
}

// Forget drops a disconnected client's queue entirely.
func (p *PerClient[I]) Forget(client protocol.ClientID) {
	delete(p.clients, client)
}

// Message is the wire envelope a client sends on the CLIENT_INPUT
// channel: its current tick, an ack of recently received server ticks,
// and its full sliding window of recent inputs. Sending the full window
// is deliberate redundancy against datagram loss.
type Message[I any] struct {
	Tick   tick.Network
	Ack    tick.Ack
	Inputs *Queued[I]
}
