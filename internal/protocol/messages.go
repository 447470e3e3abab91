// Package protocol defines the wire-level data model shared by server
// and clients: input intents, the ordered update maps of spec §3, and
// the handshake exchanged on connect.
package protocol

import (
	"sort"

	"github.com/riftline/sabi/internal/identity"
	"github.com/riftline/sabi/internal/replicate"
	"github.com/riftline/sabi/internal/tick"
)

// Intent represents a player input action as a bitmask.
type Intent uint8

const (
	IntentNone Intent = 0
	IntentLeft Intent = 1 << iota
	IntentRight
	IntentJump
	IntentAttack
	IntentUse
)

// InputFrame contains player input for a single tick.
type InputFrame struct {
	Tick    uint64
	Intents Intent
}

// ClientID is an opaque identifier assigned by the transport layer. It
// is unique per connected peer for the lifetime of the connection.
type ClientID uint64

// ComponentsUpdate is an ordered mapping ReplicateId -> opaque byte
// blob for a single entity. Ordered to make debug formatting and wire
// output deterministic. Backed by a slice kept sorted by ReplicateId
// rather than a map, since Go map iteration order is not stable and the
// wire format requires ascending key order (spec §6).
type ComponentsUpdate struct {
	entries []componentEntry
}

type componentEntry struct {
	id   replicate.ID
	blob []byte
}

// NewComponentsUpdate creates an empty ComponentsUpdate.
func NewComponentsUpdate() ComponentsUpdate {
	return ComponentsUpdate{}
}

// Set inserts or overwrites the blob for id, keeping entries sorted.
func (c *ComponentsUpdate) Set(id replicate.ID, blob []byte) {
	i := sort.Search(len(c.entries), func(i int) bool { return c.entries[i].id >= id })
	if i < len(c.entries) && c.entries[i].id == id {
		c.entries[i].blob = blob
		return
	}
	c.entries = append(c.entries, componentEntry{})
	copy(c.entries[i+1:], c.entries[i:])
	c.entries[i] = componentEntry{id: id, blob: blob}
}

// Get returns the blob registered for id, if any.
func (c ComponentsUpdate) Get(id replicate.ID) ([]byte, bool) {
	i := sort.Search(len(c.entries), func(i int) bool { return c.entries[i].id >= id })
	if i < len(c.entries) && c.entries[i].id == id {
		return c.entries[i].blob, true
	}
	return nil, false
}

// Len returns the number of components carried.
func (c ComponentsUpdate) Len() int {
	return len(c.entries)
}

// Range calls fn for every (id, blob) pair in ascending id order.
func (c ComponentsUpdate) Range(fn func(id replicate.ID, blob []byte)) {
	for _, e := range c.entries {
		fn(e.id, e.blob)
	}
}

// Merge applies other on top of c: key-wise last-writer-wins. Since
// merges only ever combine data captured within the same tick, "last"
// only matters when the same (entity, component) pair was queued twice
// in one tick, which key-wise overwrite resolves deterministically.
func (c *ComponentsUpdate) Merge(other ComponentsUpdate) {
	other.Range(func(id replicate.ID, blob []byte) {
		c.Set(id, blob)
	})
}

// Equal reports whether two ComponentsUpdate carry identical entries.
func (c ComponentsUpdate) Equal(other ComponentsUpdate) bool {
	if len(c.entries) != len(other.entries) {
		return false
	}
	for i, e := range c.entries {
		oe := other.entries[i]
		if e.id != oe.id || len(e.blob) != len(oe.blob) {
			return false
		}
		for j := range e.blob {
			if e.blob[j] != oe.blob[j] {
				return false
			}
		}
	}
	return true
}

// EntityUpdate is an ordered mapping ServerEntity -> ComponentsUpdate.
// Merge is key-wise: existing entries merge their ComponentsUpdate; new
// entries are inserted, mirroring the BTreeMap the source uses for
// deterministic iteration order.
type EntityUpdate struct {
	entries []entityEntry
}

type entityEntry struct {
	server identity.ServerEntity
	update ComponentsUpdate
}

// NewEntityUpdate creates an empty EntityUpdate.
func NewEntityUpdate() EntityUpdate {
	return EntityUpdate{}
}

func (e *EntityUpdate) find(server identity.ServerEntity) int {
	return sort.Search(len(e.entries), func(i int) bool { return e.entries[i].server >= server })
}

// Upsert returns a pointer to the ComponentsUpdate for server, creating
// an empty one if absent, so callers can mutate it in place.
func (e *EntityUpdate) Upsert(server identity.ServerEntity) *ComponentsUpdate {
	i := e.find(server)
	if i < len(e.entries) && e.entries[i].server == server {
		return &e.entries[i].update
	}
	e.entries = append(e.entries, entityEntry{})
	copy(e.entries[i+1:], e.entries[i:])
	e.entries[i] = entityEntry{server: server, update: NewComponentsUpdate()}
	return &e.entries[i].update
}

// Get returns the ComponentsUpdate for server, if present.
func (e EntityUpdate) Get(server identity.ServerEntity) (ComponentsUpdate, bool) {
	i := e.find(server)
	if i < len(e.entries) && e.entries[i].server == server {
		return e.entries[i].update, true
	}
	return ComponentsUpdate{}, false
}

// Len returns the number of entities carried.
func (e EntityUpdate) Len() int {
	return len(e.entries)
}

// Range calls fn for every (ServerEntity, ComponentsUpdate) pair in
// ascending ServerEntity order.
func (e EntityUpdate) Range(fn func(server identity.ServerEntity, update ComponentsUpdate)) {
	for _, entry := range e.entries {
		fn(entry.server, entry.update)
	}
}

// Merge applies other on top of e: existing entities merge their
// ComponentsUpdate, new entities are inserted.
func (e *EntityUpdate) Merge(other EntityUpdate) {
	other.Range(func(server identity.ServerEntity, update ComponentsUpdate) {
		target := e.Upsert(server)
		target.Merge(update)
	})
}

// Clear empties the update in place, for outbox reuse between ticks.
func (e *EntityUpdate) Clear() {
	e.entries = e.entries[:0]
}

// UpdateMessage is the server->client snapshot for a single tick.
type UpdateMessage struct {
	Tick         tick.Network
	EntityUpdate EntityUpdate
}

// Apply merges other into m. Merging across different ticks is a
// contract violation; the only correct response is the fatal error the
// source itself panics on (spec §7's Fatal tier) — callers must not
// call Apply unless Tick already matches, which the snapshot store
// enforces before ever calling it.
func (m *UpdateMessage) Apply(other UpdateMessage) error {
	if other.Tick != m.Tick {
		return &TickMismatchError{Expected: m.Tick, Got: other.Tick}
	}
	m.EntityUpdate.Merge(other.EntityUpdate)
	return nil
}

// TickMismatchError reports an attempt to merge two UpdateMessages
// carrying different ticks — always a fatal protocol violation.
type TickMismatchError struct {
	Expected tick.Network
	Got      tick.Network
}

func (e *TickMismatchError) Error() string {
	return "protocol: attempted to merge update messages on different ticks"
}

// Handshake is exchanged on connection, before any replication traffic.
type Handshake struct {
	Version    int
	PlayerName string
}
