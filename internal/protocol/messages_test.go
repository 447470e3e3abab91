package protocol

import (
	"testing"

	"github.com/riftline/sabi/internal/identity"
	"github.com/riftline/sabi/internal/replicate"
	"github.com/riftline/sabi/internal/tick"
)

func TestComponentsUpdateSetAndGetKeepsSortedOrder(t *testing.T) {
	var cu ComponentsUpdate
	cu.Set(replicate.ID(5), []byte("five"))
	cu.Set(replicate.ID(2), []byte("two"))
	cu.Set(replicate.ID(8), []byte("eight"))

	var order []replicate.ID
	cu.Range(func(id replicate.ID, _ []byte) { order = append(order, id) })
	if len(order) != 3 || order[0] != 2 || order[1] != 5 || order[2] != 8 {
		t.Fatalf("Range order = %v, want ascending [2 5 8]", order)
	}

	blob, ok := cu.Get(replicate.ID(5))
	if !ok || string(blob) != "five" {
		t.Fatalf("Get(5) = %q, %v, want \"five\", true", blob, ok)
	}
}

func TestComponentsUpdateSetOverwritesExisting(t *testing.T) {
	var cu ComponentsUpdate
	cu.Set(replicate.ID(1), []byte("old"))
	cu.Set(replicate.ID(1), []byte("new"))

	if cu.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", cu.Len())
	}
	blob, _ := cu.Get(replicate.ID(1))
	if string(blob) != "new" {
		t.Fatalf("Get(1) = %q, want \"new\"", blob)
	}
}

func TestComponentsUpdateMergeOverwritesSharedKeys(t *testing.T) {
	var a, b ComponentsUpdate
	a.Set(replicate.ID(1), []byte("a"))
	b.Set(replicate.ID(1), []byte("b"))
	b.Set(replicate.ID(2), []byte("c"))

	a.Merge(b)

	if a.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", a.Len())
	}
	blob, _ := a.Get(replicate.ID(1))
	if string(blob) != "b" {
		t.Fatalf("Get(1) after merge = %q, want \"b\"", blob)
	}
}

func TestComponentsUpdateEqual(t *testing.T) {
	var a, b ComponentsUpdate
	a.Set(replicate.ID(1), []byte("x"))
	b.Set(replicate.ID(1), []byte("x"))
	if !a.Equal(b) {
		t.Fatal("expected identical ComponentsUpdate values to be Equal")
	}

	b.Set(replicate.ID(1), []byte("y"))
	if a.Equal(b) {
		t.Fatal("expected differing blobs to make Equal false")
	}
}

func TestEntityUpdateUpsertAndGet(t *testing.T) {
	eu := NewEntityUpdate()
	cu := eu.Upsert(identity.ServerEntity(7))
	cu.Set(replicate.ID(1), []byte("v"))

	got, ok := eu.Get(identity.ServerEntity(7))
	if !ok || got.Len() != 1 {
		t.Fatalf("Get(7) = %+v, %v, want len 1, true", got, ok)
	}
}

func TestEntityUpdateRangeIsAscendingByServerEntity(t *testing.T) {
	eu := NewEntityUpdate()
	eu.Upsert(identity.ServerEntity(9))
	eu.Upsert(identity.ServerEntity(3))
	eu.Upsert(identity.ServerEntity(6))

	var order []identity.ServerEntity
	eu.Range(func(server identity.ServerEntity, _ ComponentsUpdate) { order = append(order, server) })
	if len(order) != 3 || order[0] != 3 || order[1] != 6 || order[2] != 9 {
		t.Fatalf("Range order = %v, want ascending [3 6 9]", order)
	}
}

func TestEntityUpdateClearEmptiesEntries(t *testing.T) {
	eu := NewEntityUpdate()
	eu.Upsert(identity.ServerEntity(1))
	eu.Clear()
	if eu.Len() != 0 {
		t.Fatalf("Len() after Clear = %d, want 0", eu.Len())
	}
}

func TestUpdateMessageApplyMergesSameTick(t *testing.T) {
	base := UpdateMessage{Tick: tick.New(1), EntityUpdate: NewEntityUpdate()}
	base.EntityUpdate.Upsert(identity.ServerEntity(1)).Set(replicate.ID(1), []byte("a"))

	incoming := UpdateMessage{Tick: tick.New(1), EntityUpdate: NewEntityUpdate()}
	incoming.EntityUpdate.Upsert(identity.ServerEntity(2)).Set(replicate.ID(1), []byte("b"))

	if err := base.Apply(incoming); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if base.EntityUpdate.Len() != 2 {
		t.Fatalf("EntityUpdate.Len() = %d, want 2", base.EntityUpdate.Len())
	}
}

func TestUpdateMessageApplyRejectsTickMismatch(t *testing.T) {
	base := UpdateMessage{Tick: tick.New(1), EntityUpdate: NewEntityUpdate()}
	incoming := UpdateMessage{Tick: tick.New(2), EntityUpdate: NewEntityUpdate()}

	err := base.Apply(incoming)
	if err == nil {
		t.Fatal("expected Apply to reject a tick mismatch")
	}
	if _, ok := err.(*TickMismatchError); !ok {
		t.Fatalf("error = %T, want *TickMismatchError", err)
	}
}
