package input

import (
	"testing"

	"github.com/riftline/sabi/internal/protocol"
	"github.com/riftline/sabi/internal/tick"
)

func TestBufferSampleRecordsAtCurrentTick(t *testing.T) {
	b := NewBuffer()
	b.Sample(protocol.IntentJump)

	v, ok := b.Window().Get(tick.New(0))
	if !ok || v != protocol.IntentJump {
		t.Fatalf("Window().Get(0) = %v, %v, want IntentJump, true", v, ok)
	}
}

func TestBufferAdvanceMovesCurrentTick(t *testing.T) {
	b := NewBuffer()
	b.Sample(protocol.IntentLeft)
	b.Advance()
	b.Sample(protocol.IntentRight)

	if b.CurrentTick() != tick.New(1) {
		t.Fatalf("CurrentTick() = %v, want 1", b.CurrentTick())
	}
	left, _ := b.Window().Get(tick.New(0))
	right, _ := b.Window().Get(tick.New(1))
	if left != protocol.IntentLeft || right != protocol.IntentRight {
		t.Fatalf("unexpected window contents: tick0=%v tick1=%v", left, right)
	}
}

func TestBufferSetTickForcesCurrentTick(t *testing.T) {
	b := NewBuffer()
	b.SetTick(tick.New(42))

	if b.CurrentTick() != tick.New(42) {
		t.Fatalf("CurrentTick() = %v, want 42", b.CurrentTick())
	}
}
