// Package identity implements the client-side server-entity to
// local-entity mapping (spec §4.C): spawn-on-first-sight, lazy liveness
// checks, and cleanup on disconnect.
package identity

import (
	"github.com/mlange-42/ark/ecs"
)

// ServerEntity is the stable opaque identifier for a server-side entity,
// constructed from the server's local entity handle and transmitted
// verbatim. It compares and hashes by value, so it is safe as a map key.
type ServerEntity uint64

// FromEntity derives a ServerEntity from an ark entity handle on the
// server side. The mapping is verbatim (not reused across processes),
// mirroring the source's `ServerEntity::from_entity`.
func FromEntity(e ecs.Entity) ServerEntity {
	return ServerEntity(e.ID())
}

// Map is the client-side ServerEntity -> local ecs.Entity table.
// Invariant: every value is a live local entity, checked lazily during
// reads (Get) and explicitly during Clean.
type Map struct {
	entities map[ServerEntity]ecs.Entity
}

// New creates an empty identity map.
func New() *Map {
	return &Map{entities: make(map[ServerEntity]ecs.Entity)}
}

// SpawnFunc creates a new, empty local entity. Supplied by the caller so
// this package does not need to hold a *ecs.World directly.
type SpawnFunc func() ecs.Entity

// IsAliveFunc reports whether a local entity handle is still live.
type IsAliveFunc func(ecs.Entity) bool

// SpawnOrGet returns the existing local entity mapped to server, or
// spawns a new empty local entity, records the mapping, and returns it.
// An incoming update naming an entity never seen before must not be
// dropped — this is exactly the rule that guarantees that.
func (m *Map) SpawnOrGet(server ServerEntity, spawn SpawnFunc) ecs.Entity {
	if e, ok := m.entities[server]; ok {
		return e
	}
	e := spawn()
	m.entities[server] = e
	return e
}

// Get returns the mapped local entity only if it is still live.
func (m *Map) Get(server ServerEntity, alive IsAliveFunc) (ecs.Entity, bool) {
	e, ok := m.entities[server]
	if !ok {
		return ecs.Entity{}, false
	}
	if !alive(e) {
		return ecs.Entity{}, false
	}
	return e, true
}

// Clean prunes entries whose local entity is no longer live and reports
// whether any were pruned.
func (m *Map) Clean(alive IsAliveFunc) bool {
	var dead []ServerEntity
	for server, e := range m.entities {
		if !alive(e) {
			dead = append(dead, server)
		}
	}
	for _, server := range dead {
		delete(m.entities, server)
	}
	return len(dead) > 0
}

// DespawnFunc despawns a local entity handle.
type DespawnFunc func(ecs.Entity)

// Disconnect despawns every mapped local entity and empties the map.
// Called when the transport reports disconnection; a subsequent
// reconnection starts fresh (no persisted mapping across sessions).
func (m *Map) Disconnect(despawn DespawnFunc) {
	for _, e := range m.entities {
		despawn(e)
	}
	m.entities = make(map[ServerEntity]ecs.Entity)
}

// Len returns the number of currently mapped entities, for diagnostics.
func (m *Map) Len() int {
	return len(m.entities)
}
