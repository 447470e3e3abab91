package input

import (
	tickpkg "github.com/riftline/sabi/internal/tick"

	"github.com/riftline/sabi/internal/protocol"
)

// Buffer is the client-side sampling front-end for the input pipeline:
// each simulation tick it records the sampled intent into the
// underlying Queued[Intent] window (spec §4.G), then hands callers the
// window to attach to an outgoing Message.
type Buffer struct {
	current tickpkg.Network
	window  *Queued[protocol.Intent]
}

// NewBuffer creates an input buffer starting at tick zero.
func NewBuffer() *Buffer {
	return &Buffer{window: NewQueued[protocol.Intent]()}
}

// Sample records the sampled intent for the current tick and retains
// the sliding window to RetainBuffer ticks.
func (b *Buffer) Sample(intents protocol.Intent) {
	b.window.Push(b.current, intents)
}

// Advance moves the buffer to the next simulation tick.
func (b *Buffer) Advance() {
	b.current = b.current.Next()
}

// CurrentTick returns the tick the buffer is currently sampling for.
func (b *Buffer) CurrentTick() tickpkg.Network {
	return b.current
}

// SetTick forces the buffer onto a specific tick, used after a hard
// clock jump (spec §4.D) so sampling resumes in sync with the server.
func (b *Buffer) SetTick(t tickpkg.Network) {
	b.current = t
}

// Window returns the live sliding window of recently sampled inputs,
// suitable for cloning into an outgoing Message.
func (b *Buffer) Window() *Queued[protocol.Intent] {
	return b.window
}
