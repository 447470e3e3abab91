package sync

import (
	"go.uber.org/zap"

	"github.com/riftline/sabi/internal/tick"
)

// SimRate is the external collaborator that scales the client
// simulation's timestep. The core's only contract with it is the
// decision rule in Correct: accel/decel by a small constant factor, or
// reset to nominal.
type SimRate interface {
	Accel(x float64)
	Decel(x float64)
}

// Correct applies the spec §4.D clock-correction rule for one received
// message: diff = clientTick - messageTick.
//
//   - diff < 0 (server ahead of us): hard-jump clientTick to
//     messageTick + FrameBuffer and log a warning.
//   - diff > FrameBuffer: accelerate by a small factor.
//   - diff < FrameBuffer: decelerate by the same factor.
//   - diff == FrameBuffer: nominal rate.
//
// Returns the corrected client tick.
func Correct(clientTick, messageTick tick.Network, rate SimRate, log *zap.Logger) tick.Network {
	diff := clientTick.Diff(messageTick)

	if diff < 0 {
		log.Warn("falling behind server, hard-stepping tick",
			zap.Uint64("client_tick", clientTick.Value()),
			zap.Uint64("message_tick", messageTick.Value()),
		)
		rate.Decel(0.01)
		return tick.New(messageTick.Value() + tick.FrameBuffer)
	}

	switch {
	case diff > tick.FrameBuffer:
		rate.Accel(0.01)
	case diff < tick.FrameBuffer:
		rate.Decel(0.01)
	case diff == tick.FrameBuffer:
		rate.Accel(0.0)
	}

	return clientTick
}
