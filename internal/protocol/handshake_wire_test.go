package protocol

import "testing"

func TestEncodeDecodeHandshakeRoundTrips(t *testing.T) {
	h := Handshake{Version: 1, PlayerName: "scout"}
	decoded, err := DecodeHandshake(EncodeHandshake(h))
	if err != nil {
		t.Fatalf("DecodeHandshake: %v", err)
	}
	if decoded != h {
		t.Fatalf("decoded = %+v, want %+v", decoded, h)
	}
}

func TestEncodeDecodeHandshakeEmptyName(t *testing.T) {
	h := Handshake{Version: 1, PlayerName: ""}
	decoded, err := DecodeHandshake(EncodeHandshake(h))
	if err != nil {
		t.Fatalf("DecodeHandshake: %v", err)
	}
	if decoded != h {
		t.Fatalf("decoded = %+v, want %+v", decoded, h)
	}
}

func TestDecodeHandshakeRejectsShortBuffer(t *testing.T) {
	if _, err := DecodeHandshake([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected DecodeHandshake to reject a buffer shorter than the fixed header")
	}
}

func TestDecodeHandshakeRejectsNameLengthExceedingBuffer(t *testing.T) {
	buf := EncodeHandshake(Handshake{Version: 1, PlayerName: "abc"})
	truncated := buf[:len(buf)-1]
	if _, err := DecodeHandshake(truncated); err == nil {
		t.Fatal("expected DecodeHandshake to reject a name length exceeding the buffer")
	}
}
