package sync

import (
	"testing"

	"github.com/riftline/sabi/internal/identity"
	"github.com/riftline/sabi/internal/protocol"
	"github.com/riftline/sabi/internal/replicate"
	"github.com/riftline/sabi/internal/tick"
)

func updateFor(t tick.Network, server identity.ServerEntity, id replicate.ID, blob byte) protocol.UpdateMessage {
	eu := protocol.NewEntityUpdate()
	cu := eu.Upsert(server)
	cu.Set(id, []byte{blob})
	return protocol.UpdateMessage{Tick: t, EntityUpdate: eu}
}

func TestStorePushInsertsNewTick(t *testing.T) {
	s := NewStore()
	s.Push(updateFor(tick.New(1), identity.ServerEntity(1), replicate.ID(1), 0xAA))

	got, ok := s.Get(tick.New(1))
	if !ok {
		t.Fatal("expected tick 1 to be stored")
	}
	cu, ok := got.EntityUpdate.Get(identity.ServerEntity(1))
	if !ok {
		t.Fatal("expected entity 1 to be present")
	}
	blob, ok := cu.Get(replicate.ID(1))
	if !ok || blob[0] != 0xAA {
		t.Fatalf("Get = %v, %v, want [0xAA], true", blob, ok)
	}
}

func TestStorePushMergesSameTick(t *testing.T) {
	s := NewStore()
	s.Push(updateFor(tick.New(5), identity.ServerEntity(1), replicate.ID(1), 1))
	s.Push(updateFor(tick.New(5), identity.ServerEntity(2), replicate.ID(1), 2))

	got, ok := s.Get(tick.New(5))
	if !ok {
		t.Fatal("expected tick 5 to be stored")
	}
	if got.EntityUpdate.Len() != 2 {
		t.Fatalf("EntityUpdate.Len() = %d, want 2 after merging two pushes at the same tick", got.EntityUpdate.Len())
	}
}

func TestStoreLatestTracksNewestTick(t *testing.T) {
	s := NewStore()
	s.Push(updateFor(tick.New(3), identity.ServerEntity(1), replicate.ID(1), 0))
	s.Push(updateFor(tick.New(7), identity.ServerEntity(1), replicate.ID(1), 0))
	s.Push(updateFor(tick.New(5), identity.ServerEntity(1), replicate.ID(1), 0))

	latest, ok := s.Latest()
	if !ok || latest != tick.New(7) {
		t.Fatalf("Latest() = %v, %v, want 7, true", latest, ok)
	}
}

func TestStoreRetainsOnlyRecentTicks(t *testing.T) {
	s := NewStore()
	for i := uint64(0); i < RetainBuffer+5; i++ {
		s.Push(updateFor(tick.New(i), identity.ServerEntity(1), replicate.ID(1), 0))
	}

	if _, ok := s.Get(tick.New(0)); ok {
		t.Fatal("expected the oldest tick to have been evicted once RetainBuffer was exceeded")
	}
	if _, ok := s.Get(tick.New(RetainBuffer + 4)); !ok {
		t.Fatal("expected the newest tick to remain in the store")
	}
}

func TestReceiveTrackerTracksMinimumObservedTick(t *testing.T) {
	var r ReceiveTracker
	r.Observe(tick.New(10))
	r.Observe(tick.New(4))
	r.Observe(tick.New(8))

	rewind, ok := r.Rewind()
	if !ok {
		t.Fatal("expected a rewind signal after observing ticks")
	}
	if rewind.To != tick.New(4) {
		t.Fatalf("Rewind().To = %v, want 4", rewind.To)
	}
}

func TestReceiveTrackerNoSignalWhenNothingObserved(t *testing.T) {
	var r ReceiveTracker
	if _, ok := r.Rewind(); ok {
		t.Fatal("did not expect a rewind signal when nothing was observed")
	}
}
