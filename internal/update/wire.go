// Package update implements the Update Pipeline (spec §4.F): the
// server-side assemble/compress/send path and the client-side
// receive/decompress/apply path, plus the stable binary wire codec
// spec §6 defines for UpdateMessage.
package update

import (
	"encoding/binary"
	"fmt"

	"github.com/riftline/sabi/internal/identity"
	"github.com/riftline/sabi/internal/protocol"
	"github.com/riftline/sabi/internal/replicate"
	"github.com/riftline/sabi/internal/tick"
)

// EncodeMessage serializes an UpdateMessage to the stable binary wire
// format of spec §6: tick(u64) | entity_update, where entity_update is
// count(u64) | repeated { server_entity(u64) | components_update }, and
// components_update is count(u64) | repeated { replicate_id(u64) |
// blob_len(u64) | blob_bytes }. All integers are little-endian.
func EncodeMessage(msg protocol.UpdateMessage) []byte {
	var buf []byte
	buf = appendU64(buf, msg.Tick.Value())
	buf = appendU64(buf, uint64(msg.EntityUpdate.Len()))

	msg.EntityUpdate.Range(func(server identity.ServerEntity, cu protocol.ComponentsUpdate) {
		buf = appendU64(buf, uint64(server))
		buf = appendU64(buf, uint64(cu.Len()))
		cu.Range(func(id replicate.ID, blob []byte) {
			buf = appendU64(buf, uint64(id))
			buf = appendU64(buf, uint64(len(blob)))
			buf = append(buf, blob...)
		})
	})

	return buf
}

// DecodeMessage parses the binary wire format produced by EncodeMessage.
func DecodeMessage(data []byte) (protocol.UpdateMessage, error) {
	r := &reader{data: data}

	t, err := r.u64()
	if err != nil {
		return protocol.UpdateMessage{}, fmt.Errorf("update: decode tick: %w", err)
	}

	entityCount, err := r.u64()
	if err != nil {
		return protocol.UpdateMessage{}, fmt.Errorf("update: decode entity count: %w", err)
	}

	eu := protocol.NewEntityUpdate()
	for i := uint64(0); i < entityCount; i++ {
		server, err := r.u64()
		if err != nil {
			return protocol.UpdateMessage{}, fmt.Errorf("update: decode server entity: %w", err)
		}
		compCount, err := r.u64()
		if err != nil {
			return protocol.UpdateMessage{}, fmt.Errorf("update: decode component count: %w", err)
		}
		cu := eu.Upsert(identity.ServerEntity(server))
		for j := uint64(0); j < compCount; j++ {
			id, err := r.u64()
			if err != nil {
				return protocol.UpdateMessage{}, fmt.Errorf("update: decode replicate id: %w", err)
			}
			blobLen, err := r.u64()
			if err != nil {
				return protocol.UpdateMessage{}, fmt.Errorf("update: decode blob len: %w", err)
			}
			blob, err := r.bytes(int(blobLen))
			if err != nil {
				return protocol.UpdateMessage{}, fmt.Errorf("update: decode blob: %w", err)
			}
			cu.Set(replicate.ID(id), blob)
		}
	}

	return protocol.UpdateMessage{Tick: tick.New(t), EntityUpdate: eu}, nil
}

func appendU64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
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

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, fmt.Errorf("unexpected end of buffer")
	}
	out := make([]byte, n)
	copy(out, r.data[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}
