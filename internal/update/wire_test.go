package update

import (
	"bytes"
	"testing"

	"github.com/riftline/sabi/internal/identity"
	"github.com/riftline/sabi/internal/protocol"
	"github.com/riftline/sabi/internal/replicate"
	"github.com/riftline/sabi/internal/tick"
)

func TestEncodeDecodeMessageRoundTrips(t *testing.T) {
	eu := protocol.NewEntityUpdate()
	cu1 := eu.Upsert(identity.ServerEntity(1))
	cu1.Set(replicate.ID(10), []byte{1, 2, 3})
	cu1.Set(replicate.ID(20), []byte{4, 5})

	cu2 := eu.Upsert(identity.ServerEntity(2))
	cu2.Set(replicate.ID(10), []byte{9})

	msg := protocol.UpdateMessage{Tick: tick.New(77), EntityUpdate: eu}

	encoded := EncodeMessage(msg)
	decoded, err := DecodeMessage(encoded)
	if err != nil {
		t.Fatalf("DecodeMessage returned an error: %v", err)
	}

	if decoded.Tick != msg.Tick {
		t.Fatalf("decoded Tick = %v, want %v", decoded.Tick, msg.Tick)
	}
	if decoded.EntityUpdate.Len() != 2 {
		t.Fatalf("decoded EntityUpdate.Len() = %d, want 2", decoded.EntityUpdate.Len())
	}

	got1, ok := decoded.EntityUpdate.Get(identity.ServerEntity(1))
	if !ok {
		t.Fatal("expected entity 1 to round-trip")
	}
	blob, ok := got1.Get(replicate.ID(10))
	if !ok || !bytes.Equal(blob, []byte{1, 2, 3}) {
		t.Fatalf("entity 1 component 10 = %v, %v, want [1 2 3], true", blob, ok)
	}
}

func TestEncodeMessageEmptyEntityUpdate(t *testing.T) {
	msg := protocol.UpdateMessage{Tick: tick.New(0), EntityUpdate: protocol.NewEntityUpdate()}

	encoded := EncodeMessage(msg)
	decoded, err := DecodeMessage(encoded)
	if err != nil {
		t.Fatalf("DecodeMessage returned an error: %v", err)
	}
	if decoded.EntityUpdate.Len() != 0 {
		t.Fatalf("decoded EntityUpdate.Len() = %d, want 0", decoded.EntityUpdate.Len())
	}
}

func TestDecodeMessageRejectsTruncatedBuffer(t *testing.T) {
	eu := protocol.NewEntityUpdate()
	cu := eu.Upsert(identity.ServerEntity(1))
	cu.Set(replicate.ID(1), []byte{1, 2, 3, 4})
	msg := protocol.UpdateMessage{Tick: tick.New(1), EntityUpdate: eu}

	encoded := EncodeMessage(msg)
	if _, err := DecodeMessage(encoded[:len(encoded)-1]); err == nil {
		t.Fatal("expected DecodeMessage to error on a truncated buffer")
	}
}
