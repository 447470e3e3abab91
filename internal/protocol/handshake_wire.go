package protocol

import (
	"encoding/binary"
	"fmt"
)

// EncodeHandshake serializes a Handshake: version(u32) | name_len(u32) |
// name bytes. Sent once, on the Handshake channel, before any
// replication traffic begins.
func EncodeHandshake(h Handshake) []byte {
	name := []byte(h.PlayerName)
	buf := make([]byte, 8, 8+len(name))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.Version))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(name)))
	return append(buf, name...)
}

// DecodeHandshake parses the wire format produced by EncodeHandshake.
func DecodeHandshake(data []byte) (Handshake, error) {
	if len(data) < 8 {
		return Handshake{}, fmt.Errorf("protocol: handshake too short")
	}
	version := int(binary.LittleEndian.Uint32(data[0:4]))
	nameLen := binary.LittleEndian.Uint32(data[4:8])
	if uint64(8+nameLen) > uint64(len(data)) {
		return Handshake{}, fmt.Errorf("protocol: handshake name length exceeds buffer")
	}
	name := string(data[8 : 8+nameLen])
	return Handshake{Version: version, PlayerName: name}, nil
}
