package input

import (
	"encoding/binary"
	"fmt"

	"github.com/riftline/sabi/internal/protocol"
	"github.com/riftline/sabi/internal/tick"
)

// EncodeMessage serializes a Message[protocol.Intent] to the wire
// format of spec §6: tick(u64) | ack{base(u64)|bitmap(u32)} | inputs,
// where inputs is count(u64) | repeated { tick(u64) | intent(u8) }.
// The runtime only ever replicates one input type (protocol.Intent),
// so this codec is concrete rather than generic over I — consistent
// with spec §1's Non-goal of variable component schemas at runtime.
func EncodeMessage(msg Message[protocol.Intent]) []byte {
	var buf []byte
	buf = appendU64(buf, msg.Tick.Value())
	buf = appendU64(buf, msg.Ack.Base().Value())
	buf = appendU32(buf, msg.Ack.Bitmap())

	ticks := msg.Inputs.Ticks()
	buf = appendU64(buf, uint64(len(ticks)))
	for _, t := range ticks {
		v, _ := msg.Inputs.Get(t)
		buf = appendU64(buf, t.Value())
		buf = append(buf, byte(v))
	}
	return buf
}

// DecodeMessage parses the binary wire format produced by EncodeMessage.
func DecodeMessage(data []byte) (Message[protocol.Intent], error) {
	r := &reader{data: data}

	t, err := r.u64()
	if err != nil {
		return Message[protocol.Intent]{}, fmt.Errorf("input: decode tick: %w", err)
	}
	base, err := r.u64()
	if err != nil {
		return Message[protocol.Intent]{}, fmt.Errorf("input: decode ack base: %w", err)
	}
	bitmap, err := r.u32()
	if err != nil {
		return Message[protocol.Intent]{}, fmt.Errorf("input: decode ack bitmap: %w", err)
	}
	count, err := r.u64()
	if err != nil {
		return Message[protocol.Intent]{}, fmt.Errorf("input: decode input count: %w", err)
	}

	ack := tick.NewAckWithBitmap(tick.New(base), bitmap)

	window := NewQueued[protocol.Intent]()
	for i := uint64(0); i < count; i++ {
		inputTick, err := r.u64()
		if err != nil {
			return Message[protocol.Intent]{}, fmt.Errorf("input: decode input tick: %w", err)
		}
		b, err := r.byte()
		if err != nil {
			return Message[protocol.Intent]{}, fmt.Errorf("input: decode intent: %w", err)
		}
		window.Upsert(tick.New(inputTick), protocol.Intent(b))
	}

	return Message[protocol.Intent]{
		Tick:   tick.New(t),
		Ack:    ack,
		Inputs: window,
	}, nil
}

func appendU64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func appendU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

type reader struct {
	data []byte
	pos  int
}

func (r *reader) u64() (uint64, error) {
	if r.pos+8 > len(r.data) {
		return 0, fmt.Errorf("unexpected end of buffer")
	}
	v := binary.LittleEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, fmt.Errorf("unexpected end of buffer")
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *reader) byte() (byte, error) {
	if r.pos+1 > len(r.data) {
		return 0, fmt.Errorf("unexpected end of buffer")
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}
