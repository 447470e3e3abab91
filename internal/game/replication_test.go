package game

import (
	"testing"

	"github.com/riftline/sabi/internal/replicate"
)

func TestRegisterRoundTripsPosition(t *testing.T) {
	w := NewWorld()
	entity := w.SpawnPlayer(1, "Ada", 3, 4)

	registry := replicate.New()
	Register(registry, w)
	registry.Freeze()

	posID := idFor(t, registry, Position{})
	codec, ok := registry.Lookup(posID)
	if !ok {
		t.Fatal("expected Position codec to be registered")
	}

	data, present, err := codec.Encode(entity)
	if err != nil || !present {
		t.Fatalf("encode failed: present=%v err=%v", present, err)
	}

	other := w.SpawnEnemy("slime", 0, 0)
	changed, err := codec.Apply(other, data)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if !changed {
		t.Fatal("expected first apply to report a change")
	}

	got := w.positions.Get(other)
	if got.X != 3 || got.Y != 4 {
		t.Fatalf("expected position (3,4), got (%v,%v)", got.X, got.Y)
	}

	changed, err = codec.Apply(other, data)
	if err != nil {
		t.Fatalf("second apply failed: %v", err)
	}
	if changed {
		t.Fatal("expected idempotent re-apply of identical bytes to report no change")
	}
}

func TestColliderRequiresVelocity(t *testing.T) {
	w := NewWorld()
	registry := replicate.New()
	Register(registry, w)
	registry.Freeze()

	colliderID := idFor(t, registry, Collider{})
	velID := idFor(t, registry, Velocity{})

	deps := registry.DependenciesOf(colliderID)
	found := false
	for _, d := range deps {
		if d == velID {
			found = true
		}
	}
	if !found {
		t.Fatal("expected Collider to depend on Velocity")
	}
}

func idFor(t *testing.T, registry *replicate.Registry, sample any) replicate.ID {
	t.Helper()
	for _, id := range registry.IDs() {
		if registry.String(id) == typeName(sample) {
			return id
		}
	}
	t.Fatalf("no registered id found for %T", sample)
	return 0
}

func typeName(sample any) string {
	switch sample.(type) {
	case Position:
		return "game.Position"
	case Velocity:
		return "game.Velocity"
	case Collider:
		return "game.Collider"
	default:
		return ""
	}
}
