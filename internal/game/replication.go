package game

import (
	"encoding/binary"
	"math"

	"github.com/mlange-42/ark/ecs"

	"github.com/riftline/sabi/internal/replicate"
)

// codecFor builds a replicate.Codec closing over one ark component map.
// encode/decode/equal are the only per-type logic; everything else
// (presence check, idempotent apply, change detection) is shared.
func codecFor[C any](
	m ecs.Map[C],
	encode func(c *C) []byte,
	decode func(data []byte) C,
	equal func(a, b C) bool,
) replicate.Codec {
	return replicate.Codec{
		Encode: func(entity ecs.Entity) ([]byte, bool, error) {
			if !m.Has(entity) {
				return nil, false, nil
			}
			return encode(m.Get(entity)), true, nil
		},
		Apply: func(entity ecs.Entity, data []byte) (bool, error) {
			decoded := decode(data)
			if !m.Has(entity) {
				m.Add(entity, &decoded)
				return true, nil
			}
			current := m.Get(entity)
			if equal(*current, decoded) {
				return false, nil
			}
			*current = decoded
			return true, nil
		},
	}
}

// Register wires every replicatable component this game defines into
// registry, closing each codec over w's typed component maps. Collider
// depends on Velocity: a client must never receive collision bounds
// for an entity it cannot yet predict the motion of.
func Register(registry *replicate.Registry, w *World) {
	posID := registry.Register(Position{}, codecFor(w.positions, encodePosition, decodePosition, Position.equal))
	velID := registry.Register(Velocity{}, codecFor(w.velocities, encodeVelocity, decodeVelocity, Velocity.equal))
	colliderID := registry.Register(Collider{}, codecFor(w.colliders, encodeCollider, decodeCollider, Collider.equal))
	registry.Register(Player{}, codecFor(w.players, encodePlayer, decodePlayer, Player.equal))
	registry.Register(Health{}, codecFor(w.healths, encodeHealth, decodeHealth, Health.equal))
	registry.Register(Grounded{}, codecFor(w.grounded, encodeGrounded, decodeGrounded, Grounded.equal))
	registry.Register(AttackState{}, codecFor(w.attacks, encodeAttackState, decodeAttackState, AttackState.equal))

	registry.Requires(colliderID, velID)
	_ = posID
}

// DictionarySample returns representative encoded component bytes for a
// freshly spawned player and enemy, for training the COMPONENT channel's
// zstd dictionary (spec §6) at startup. Not part of the replicated wire
// traffic itself, just training data.
func DictionarySample() []byte {
	w := NewWorld()
	player := w.SpawnPlayer(1, "sample", 0, 0)
	enemy := w.SpawnEnemy("slime", 4, 0)

	var sample []byte
	sample = append(sample, encodePosition(w.positions.Get(player))...)
	sample = append(sample, encodeVelocity(w.velocities.Get(player))...)
	sample = append(sample, encodeCollider(w.colliders.Get(player))...)
	sample = append(sample, encodePlayer(w.players.Get(player))...)
	sample = append(sample, encodeHealth(w.healths.Get(player))...)
	sample = append(sample, encodeGrounded(w.grounded.Get(player))...)
	sample = append(sample, encodeAttackState(w.attacks.Get(player))...)
	sample = append(sample, encodePosition(w.positions.Get(enemy))...)
	sample = append(sample, encodeHealth(w.healths.Get(enemy))...)
	return sample
}

func encodeFloat64(buf []byte, v float64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	return append(buf, b[:]...)
}

func decodeFloat64(data []byte, pos int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(data[pos : pos+8]))
}

func encodePosition(p *Position) []byte {
	var buf []byte
	buf = encodeFloat64(buf, p.X)
	buf = encodeFloat64(buf, p.Y)
	return buf
}

func decodePosition(data []byte) Position {
	return Position{X: decodeFloat64(data, 0), Y: decodeFloat64(data, 8)}
}

func (p Position) equal(o Position) bool { return p == o }

func encodeVelocity(v *Velocity) []byte {
	var buf []byte
	buf = encodeFloat64(buf, v.X)
	buf = encodeFloat64(buf, v.Y)
	return buf
}

func decodeVelocity(data []byte) Velocity {
	return Velocity{X: decodeFloat64(data, 0), Y: decodeFloat64(data, 8)}
}

func (v Velocity) equal(o Velocity) bool { return v == o }

func encodeCollider(c *Collider) []byte {
	var buf []byte
	buf = encodeFloat64(buf, c.OffsetX)
	buf = encodeFloat64(buf, c.OffsetY)
	buf = encodeFloat64(buf, c.Width)
	buf = encodeFloat64(buf, c.Height)
	return buf
}

func decodeCollider(data []byte) Collider {
	return Collider{
		OffsetX: decodeFloat64(data, 0),
		OffsetY: decodeFloat64(data, 8),
		Width:   decodeFloat64(data, 16),
		Height:  decodeFloat64(data, 24),
	}
}

func (c Collider) equal(o Collider) bool { return c == o }

func encodePlayer(p *Player) []byte {
	buf := make([]byte, 4, 4+len(p.Name))
	binary.LittleEndian.PutUint32(buf, uint32(p.ID))
	return append(buf, []byte(p.Name)...)
}

func decodePlayer(data []byte) Player {
	id := int(int32(binary.LittleEndian.Uint32(data[0:4])))
	return Player{ID: id, Name: string(data[4:])}
}

func (p Player) equal(o Player) bool { return p.ID == o.ID && p.Name == o.Name }

func encodeHealth(h *Health) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(int32(h.Current)))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(int32(h.Max)))
	return buf
}

func decodeHealth(data []byte) Health {
	return Health{
		Current: int(int32(binary.LittleEndian.Uint32(data[0:4]))),
		Max:     int(int32(binary.LittleEndian.Uint32(data[4:8]))),
	}
}

func (h Health) equal(o Health) bool { return h == o }

func encodeGrounded(g *Grounded) []byte {
	if g.OnGround {
		return []byte{1}
	}
	return []byte{0}
}

func decodeGrounded(data []byte) Grounded {
	return Grounded{OnGround: len(data) > 0 && data[0] != 0}
}

func (g Grounded) equal(o Grounded) bool { return g == o }

func encodeAttackState(a *AttackState) []byte {
	buf := make([]byte, 3)
	if a.Attacking {
		buf[0] = 1
	}
	if a.FacingRight {
		buf[1] = 1
	}
	buf[2] = byte(a.TicksLeft)
	return buf
}

func decodeAttackState(data []byte) AttackState {
	return AttackState{
		Attacking:   data[0] != 0,
		FacingRight: data[1] != 0,
		TicksLeft:   int(data[2]),
	}
}

func (a AttackState) equal(o AttackState) bool { return a == o }
