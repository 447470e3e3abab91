package game

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/riftline/sabi/internal/collision"
	"github.com/riftline/sabi/internal/protocol"
)

// GravityAccel is the downward acceleration applied to entities with a
// Gravity component, in world units per tick squared.
const GravityAccel = 0.6

// TerminalVelocity caps downward speed so a long fall never overshoots
// collision resolution in one tick.
const TerminalVelocity = 20.0

// MoveSpeed is the horizontal speed a held Left/Right intent produces.
const MoveSpeed = 4.0

// JumpVelocity is the upward velocity a Jump intent applies while
// grounded.
const JumpVelocity = -10.0

// World holds all game state: the ark ECS world, its component maps and
// filters, the current tick, and the level geometry physics resolves
// against. SpawnPlayer and SpawnEnemy add the full physics set
// (Position, Velocity, Grounded, Collider, Gravity) together; an entity
// from SpawnRemote carries only the components replication has applied
// to it, and Gravity is not replicated, so applyPhysics uses a gravity
// scale of 1 for an entity without one.
type World struct {
	Tick  uint64
	ecs   ecs.World
	level *collision.TileMap

	positions  ecs.Map[Position]
	velocities ecs.Map[Velocity]
	colliders  ecs.Map[Collider]
	sprites    ecs.Map[Sprite]
	players    ecs.Map[Player]
	healths    ecs.Map[Health]
	gravities  ecs.Map[Gravity]
	grounded   ecs.Map[Grounded]
	attacks    ecs.Map[AttackState]

	physicsFilter ecs.Filter3[Position, Velocity, Grounded]
	playerFilter  ecs.Filter2[Position, Player]
	attackFilter  ecs.Filter2[Player, AttackState]

	intents map[int]protocol.Intent
}

// NewWorld creates an empty game world with an unbounded floor (no
// level geometry set). Call SetLevel before Update if collision against
// a tilemap is needed.
func NewWorld() *World {
	w := ecs.NewWorld()

	world := &World{
		ecs:        w,
		positions:  ecs.NewMap[Position](&w),
		velocities: ecs.NewMap[Velocity](&w),
		colliders:  ecs.NewMap[Collider](&w),
		sprites:    ecs.NewMap[Sprite](&w),
		players:    ecs.NewMap[Player](&w),
		healths:    ecs.NewMap[Health](&w),
		gravities:  ecs.NewMap[Gravity](&w),
		grounded:   ecs.NewMap[Grounded](&w),
		attacks:    ecs.NewMap[AttackState](&w),
		intents:    make(map[int]protocol.Intent),
	}
	world.physicsFilter = ecs.NewFilter3[Position, Velocity, Grounded](&w)
	world.playerFilter = ecs.NewFilter2[Position, Player](&w)
	world.attackFilter = ecs.NewFilter2[Player, AttackState](&w)

	return world
}

// ECS exposes the underlying ark world for code outside this package
// that needs its own typed Map[C]. The replicate codecs do not use it:
// Register in this package builds them from Maps.
func (w *World) ECS() *ecs.World {
	return &w.ecs
}

// Maps returns the component maps this world owns, for registration
// against a replicate.Registry.
func (w *World) Maps() (
	positions ecs.Map[Position],
	velocities ecs.Map[Velocity],
	colliders ecs.Map[Collider],
	players ecs.Map[Player],
	healths ecs.Map[Health],
	grounded ecs.Map[Grounded],
	attacks ecs.Map[AttackState],
) {
	return w.positions, w.velocities, w.colliders, w.players, w.healths, w.grounded, w.attacks
}

// SetLevel installs the tilemap physics resolves collision against.
func (w *World) SetLevel(tm *collision.TileMap) {
	w.level = tm
}

// SetPlayerIntent records the latest input for a player, applied on the
// next Update.
func (w *World) SetPlayerIntent(playerID int, intent protocol.Intent) {
	w.intents[playerID] = intent
}

// SpawnPlayer creates a player entity with the standard player
// component set.
func (w *World) SpawnPlayer(id int, name string, x, y float64) ecs.Entity {
	e := w.positions.NewEntity(&Position{X: x, Y: y})
	w.velocities.Add(e, &Velocity{})
	w.colliders.Add(e, &Collider{Width: 1, Height: 2})
	w.sprites.Add(e, &Sprite{ID: "player"})
	w.players.Add(e, &Player{ID: id, Name: name})
	w.healths.Add(e, &Health{Current: 100, Max: 100})
	w.gravities.Add(e, &Gravity{Scale: 1})
	w.grounded.Add(e, &Grounded{})
	w.attacks.Add(e, &AttackState{})
	return e
}

// SpawnEnemy creates a non-player entity of the given type.
func (w *World) SpawnEnemy(enemyType string, x, y float64) ecs.Entity {
	e := w.positions.NewEntity(&Position{X: x, Y: y})
	w.velocities.Add(e, &Velocity{})
	w.colliders.Add(e, &Collider{Width: 1, Height: 1})
	w.sprites.Add(e, &Sprite{ID: enemyType})
	w.healths.Add(e, &Health{Current: 20, Max: 20})
	w.gravities.Add(e, &Gravity{Scale: 1})
	w.grounded.Add(e, &Grounded{})
	return e
}

// Alive reports whether entity is still present in the world, matching
// the identity.IsAliveFunc signature.
func (w *World) Alive(e ecs.Entity) bool {
	return w.ecs.Alive(e)
}

// SpawnRemote creates a bare entity with no components, for the client
// identity map's SpawnFunc: an incoming update names a server entity the
// client has never seen, and the components it carries are added one by
// one as the replicate registry applies each one (matches
// identity.Map.SpawnOrGet's contract of never dropping an unseen entity).
func (w *World) SpawnRemote() ecs.Entity {
	return w.ecs.NewEntity()
}

// Despawn removes entity from the world, for identity.Map.Disconnect.
func (w *World) Despawn(e ecs.Entity) {
	w.ecs.RemoveEntity(e)
}

// Entities returns every entity carrying the physics component set
// (which every SpawnPlayer/SpawnEnemy entity does), for the Interest
// engine to build candidate pairs against.
func (w *World) Entities() []ecs.Entity {
	var out []ecs.Entity
	query := w.physicsFilter.Query()
	for query.Next() {
		out = append(out, query.Entity())
	}
	query.Close()
	return out
}

// Update advances the world by one tick: apply player intents, run
// gravity and velocity integration, resolve collision against the
// level, then advance attack animation timers. Deterministic given the
// same intents and starting state, which is what resimulation on
// rewind relies on.
func (w *World) Update() {
	w.Tick++

	w.applyIntents()
	w.applyPhysics()
	w.applyAttacks()
}

func (w *World) applyIntents() {
	query := w.playerFilter.Query()
	for query.Next() {
		_, player := query.Get()
		entity := query.Entity()
		intent := w.intents[player.ID]

		vel := w.velocities.Get(entity)
		grounded := w.grounded.Get(entity)

		vel.X = 0
		if intent&protocol.IntentLeft != 0 {
			vel.X -= MoveSpeed
		}
		if intent&protocol.IntentRight != 0 {
			vel.X += MoveSpeed
		}
		if intent&protocol.IntentJump != 0 && grounded.OnGround {
			vel.Y = JumpVelocity
			grounded.OnGround = false
		}
	}
	query.Close()
}

func (w *World) applyPhysics() {
	query := w.physicsFilter.Query()
	for query.Next() {
		pos, vel, grounded := query.Get()
		entity := query.Entity()

		scale := 1.0
		if w.gravities.Has(entity) {
			scale = w.gravities.Get(entity).Scale
		}
		vel.Y += GravityAccel * scale
		if vel.Y > TerminalVelocity {
			vel.Y = TerminalVelocity
		}

		pos.X += vel.X
		pos.Y += vel.Y

		w.resolveCollision(entity, pos, vel, grounded)
	}
	query.Close()
}

// resolveCollision pins the entity to the level's floor and walls,
// using the entity's collider. A simple AABB-vs-tile scheme: precise
// platforming physics is out of scope for a replication demo.
func (w *World) resolveCollision(entity ecs.Entity, pos *Position, vel *Velocity, grounded *Grounded) {
	col := w.colliders.Get(entity)

	if w.level == nil {
		grounded.OnGround = pos.Y >= 0
		if grounded.OnGround {
			pos.Y = 0
			vel.Y = 0
		}
		return
	}

	box := collision.NewAABB(pos.X, pos.Y, col.Width, col.Height)
	grounded.OnGround = false

	for ty := 0; ty < w.level.Height; ty++ {
		for tx := 0; tx < w.level.Width; tx++ {
			if w.level.Get(tx, ty)&collision.TileSolid == 0 {
				continue
			}
			tile := collision.NewAABB(float64(tx), float64(ty), 1, 1)
			if !box.Overlaps(tile) {
				continue
			}
			px, py := tile.Penetration(box)
			if py < 0 && vel.Y >= 0 {
				pos.Y += py
				vel.Y = 0
				grounded.OnGround = true
			} else if px != 0 {
				pos.X += px
				vel.X = 0
			}
			box = collision.NewAABB(pos.X, pos.Y, col.Width, col.Height)
		}
	}
}

func (w *World) applyAttacks() {
	query := w.attackFilter.Query()
	for query.Next() {
		player, attack := query.Get()
		entity := query.Entity()
		intent := w.intents[player.ID]

		if attack.TicksLeft > 0 {
			attack.TicksLeft--
			if attack.TicksLeft == 0 {
				attack.Attacking = false
			}
			continue
		}
		if intent&protocol.IntentAttack != 0 {
			attack.Attacking = true
			attack.TicksLeft = AttackDuration
			attack.FacingRight = w.velocities.Get(entity).X >= 0
		}
	}
	query.Close()
}
