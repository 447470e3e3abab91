package sync

import (
	"testing"

	"go.uber.org/zap"

	"github.com/riftline/sabi/internal/tick"
)

type recordingRate struct {
	accelCalls []float64
	decelCalls []float64
}

func (r *recordingRate) Accel(x float64) { r.accelCalls = append(r.accelCalls, x) }
func (r *recordingRate) Decel(x float64) { r.decelCalls = append(r.decelCalls, x) }

func TestCorrectHardJumpsWhenServerIsAhead(t *testing.T) {
	rate := &recordingRate{}
	log := zap.NewNop()

	corrected := Correct(tick.New(10), tick.New(20), rate, log)

	want := tick.New(20 + tick.FrameBuffer)
	if corrected != want {
		t.Fatalf("Correct() = %v, want %v", corrected, want)
	}
	if len(rate.decelCalls) != 1 || rate.decelCalls[0] != 0.01 {
		t.Fatalf("expected a Decel(0.01) call alongside the hard jump, got %v", rate.decelCalls)
	}
}

func TestCorrectAccelsWhenFarAheadOfServer(t *testing.T) {
	rate := &recordingRate{}
	log := zap.NewNop()

	clientTick := tick.New(100 + tick.FrameBuffer + 3)
	corrected := Correct(clientTick, tick.New(100), rate, log)

	if corrected != clientTick {
		t.Fatalf("Correct() = %v, want unchanged %v", corrected, clientTick)
	}
	if len(rate.accelCalls) != 1 {
		t.Fatalf("expected exactly one Accel call, got %d", len(rate.accelCalls))
	}
}

func TestCorrectDecelsWhenCloserThanFrameBuffer(t *testing.T) {
	rate := &recordingRate{}
	log := zap.NewNop()

	clientTick := tick.New(100 + tick.FrameBuffer - 2)
	Correct(clientTick, tick.New(100), rate, log)

	if len(rate.decelCalls) != 1 {
		t.Fatalf("expected exactly one Decel call, got %d", len(rate.decelCalls))
	}
}

func TestCorrectNominalAtExactFrameBuffer(t *testing.T) {
	rate := &recordingRate{}
	log := zap.NewNop()

	clientTick := tick.New(100 + tick.FrameBuffer)
	Correct(clientTick, tick.New(100), rate, log)

	if len(rate.accelCalls) != 1 || rate.accelCalls[0] != 0.0 {
		t.Fatalf("expected a single nominal Accel(0) call, got %v", rate.accelCalls)
	}
	if len(rate.decelCalls) != 0 {
		t.Fatalf("did not expect a Decel call at the nominal diff, got %v", rate.decelCalls)
	}
}
