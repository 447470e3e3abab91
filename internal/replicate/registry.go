// Package replicate implements the type-erased Replicatable component
// registry: identity, encode, decode-insert and decode-apply per
// registered component type, plus cross-type dependency declarations
// the Interest engine honors. Byte size estimates are not kept here;
// the Interest engine takes them separately as interest.SizeEstimates.
package replicate

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/mlange-42/ark/ecs"
)

// ID identifies a replicatable component type. It is derived once per
// process from the registered Go type's name, so it is stable for the
// lifetime of a process and identical across a server and all clients
// built from the same binary — the Go analogue of the source's
// TypeId-derived identifier, since Go has no stable runtime TypeId.
type ID uint64

// Codec is the four-operation vtable the source's compile-time generic
// Replicate capability becomes once monomorphization isn't available:
// identity, encode, decode-insert, decode-apply. Each registered codec
// closes over a single ark component-map type (the Go analogue of the
// source's generic `Query<&C>` / `Query<&mut C>`), so the registry
// itself never needs to know concrete component types.
type Codec struct {
	// ID is the component's ReplicateId.
	ID ID
	// Name is the registered type's name, used for diagnostics only.
	Name string
	// Encode serializes entity's component to bytes if present.
	// Implementations must be deterministic. ok is false if entity does
	// not carry the component.
	Encode func(entity ecs.Entity) (data []byte, ok bool, err error)
	// Apply decodes data and inserts the component on entity if absent,
	// or updates it in place if present (idempotently — a byte-identical
	// decode is a no-op). changed reports whether the entity's component
	// data actually differed from what was already stored.
	Apply func(entity ecs.Entity, data []byte) (changed bool, err error)
}

// Registry is the process-wide, read-only-after-init catalog of
// registered component codecs and their dependency graph. The zero value
// is not usable; construct with New.
type Registry struct {
	codecs map[ID]Codec
	names  map[string]ID
	// requires[A] = set of B that A depends on (B must be sent no later
	// than A to any client that receives A).
	requires map[ID]map[ID]struct{}
	frozen   bool
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		codecs:   make(map[ID]Codec),
		names:    make(map[string]ID),
		requires: make(map[ID]map[ID]struct{}),
	}
}

// deriveID hashes a type's fully qualified name into a stable 64-bit id.
// FNV-1a keeps this dependency-free and deterministic across platforms.
func deriveID(name string) ID {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	var h uint64 = offset64
	for i := 0; i < len(name); i++ {
		h ^= uint64(name[i])
		h *= prime64
	}
	return ID(h)
}

// Register adds a component codec to the registry, keyed by the Go type
// of sample. Calling Register after Freeze panics: the registry is
// meant to be populated once at startup.
func (r *Registry) Register(sample any, codec Codec) ID {
	if r.frozen {
		panic("replicate: Register called after Freeze")
	}
	name := reflect.TypeOf(sample).String()
	id := deriveID(name)
	codec.ID = id
	codec.Name = name
	r.codecs[id] = codec
	r.names[name] = id
	if _, ok := r.requires[id]; !ok {
		r.requires[id] = make(map[ID]struct{})
	}
	return id
}

// Requires declares that component a depends on component b: the
// Interest engine must never let a client receive a without also
// receiving b no later than the same tick.
func (r *Registry) Requires(a, b ID) {
	if r.frozen {
		panic("replicate: Requires called after Freeze")
	}
	if _, ok := r.requires[a]; !ok {
		r.requires[a] = make(map[ID]struct{})
	}
	r.requires[a][b] = struct{}{}
}

// Freeze marks the registry read-only. The core calls this once at
// startup, before any networking begins, matching spec §6's
// "process-wide state ... frozen thereafter".
func (r *Registry) Freeze() {
	r.frozen = true
}

// Lookup returns the codec for id.
func (r *Registry) Lookup(id ID) (Codec, bool) {
	c, ok := r.codecs[id]
	return c, ok
}

// DependenciesOf returns the sorted set of component ids that id depends
// on directly (one level, not transitive — callers wanting the
// fixpoint closure should iterate until no new ids appear, as the
// Interest engine does).
func (r *Registry) DependenciesOf(id ID) []ID {
	deps := r.requires[id]
	out := make([]ID, 0, len(deps))
	for d := range deps {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IDs returns every registered id in ascending order, for deterministic
// iteration (e.g. diagnostics, dependency validation at startup).
func (r *Registry) IDs() []ID {
	out := make([]ID, 0, len(r.codecs))
	for id := range r.codecs {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// String renders a human-readable name for diagnostics; falls back to
// the numeric id if unknown.
func (r *Registry) String(id ID) string {
	if c, ok := r.codecs[id]; ok {
		return c.Name
	}
	return fmt.Sprintf("replicate.ID(%d)", uint64(id))
}
