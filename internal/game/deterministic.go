package game

import (
	"hash/fnv"

	"github.com/mlange-42/ark/ecs"
)

// EntityState captures one entity's full physics state for
// snapshot/restore-driven resimulation.
type EntityState struct {
	Entity    ecs.Entity
	Position  Position
	Velocity  Velocity
	Grounded  Grounded
	HasPlayer bool
	Player    Player
	HasAttack bool
	Attack    AttackState
}

// WorldState is a complete snapshot of the game world for rollback.
// Unlike network replication (which sends only the components the
// Interest engine selected), this is the server/client's own full
// local state, used purely to rewind and replay the simulation.
type WorldState struct {
	Tick     uint64
	Entities []EntityState
	Checksum uint32
}

// Snapshot captures every physics entity's state, for later Restore.
func (w *World) Snapshot() WorldState {
	state := WorldState{
		Tick:     w.Tick,
		Entities: make([]EntityState, 0),
	}

	query := w.physicsFilter.Query()
	for query.Next() {
		entity := query.Entity()
		pos, vel, grounded := query.Get()

		es := EntityState{
			Entity:   entity,
			Position: *pos,
			Velocity: *vel,
			Grounded: *grounded,
		}
		if w.players.Has(entity) {
			es.HasPlayer = true
			es.Player = *w.players.Get(entity)
		}
		if w.attacks.Has(entity) {
			es.HasAttack = true
			es.Attack = *w.attacks.Get(entity)
		}

		state.Entities = append(state.Entities, es)
	}
	query.Close()

	state.Checksum = state.computeChecksum()
	return state
}

// Restore applies a saved world state, rolling the simulation back to
// that point in time before inputs are replayed forward.
func (w *World) Restore(state WorldState) {
	w.Tick = state.Tick

	for _, es := range state.Entities {
		if !w.ecs.Alive(es.Entity) {
			continue
		}
		*w.positions.Get(es.Entity) = es.Position
		*w.velocities.Get(es.Entity) = es.Velocity
		*w.grounded.Get(es.Entity) = es.Grounded
		if es.HasAttack && w.attacks.Has(es.Entity) {
			*w.attacks.Get(es.Entity) = es.Attack
		}
	}
}

// computeChecksum hashes tick and entity positions for fast comparison
// between two independently computed world states (e.g. client
// prediction vs. server-confirmed state after replay).
func (state *WorldState) computeChecksum() uint32 {
	h := fnv.New32a()

	var tickBytes [8]byte
	for i := 0; i < 8; i++ {
		tickBytes[i] = byte(state.Tick >> (8 * i))
	}
	h.Write(tickBytes[:])

	for _, es := range state.Entities {
		posX := int64(es.Position.X * 1000)
		posY := int64(es.Position.Y * 1000)

		var posBytes [16]byte
		for i := 0; i < 8; i++ {
			posBytes[i] = byte(posX >> (8 * i))
			posBytes[8+i] = byte(posY >> (8 * i))
		}
		h.Write(posBytes[:])
	}

	return h.Sum32()
}

// StatesMatch compares two world states for equivalence within
// tolerance, checksum first for the common case.
func StatesMatch(a, b *WorldState, tolerance float64) bool {
	if a.Checksum == b.Checksum {
		return true
	}
	if len(a.Entities) != len(b.Entities) {
		return false
	}

	for i := range a.Entities {
		ea, eb := &a.Entities[i], &b.Entities[i]

		dx := ea.Position.X - eb.Position.X
		dy := ea.Position.Y - eb.Position.Y
		if dx < 0 {
			dx = -dx
		}
		if dy < 0 {
			dy = -dy
		}
		if dx > tolerance || dy > tolerance {
			return false
		}
		if ea.Grounded.OnGround != eb.Grounded.OnGround {
			return false
		}
	}

	return true
}
