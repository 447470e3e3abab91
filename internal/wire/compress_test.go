package wire

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestPlainCodecRoundTrips(t *testing.T) {
	codec, err := NewPlainCodec(zstd.SpeedFastest)
	if err != nil {
		t.Fatalf("NewPlainCodec: %v", err)
	}

	original := []byte("the quick brown fox jumps over the lazy dog, repeatedly, to give zstd something to compress")
	compressed := codec.Compress(original)
	decompressed, err := codec.Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(decompressed, original) {
		t.Fatalf("round trip mismatch: got %q, want %q", decompressed, original)
	}
}

func TestDictCodecRoundTrips(t *testing.T) {
	dicts := NewDictionaries()
	dicts.Set("update", bytes.Repeat([]byte("sample component bytes "), 64))

	codec, err := NewDictCodec(dicts, "update")
	if err != nil {
		t.Fatalf("NewDictCodec: %v", err)
	}

	original := []byte("sample component bytes for one entity update")
	compressed := codec.Compress(original)
	decompressed, err := codec.Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(decompressed, original) {
		t.Fatalf("round trip mismatch: got %q, want %q", decompressed, original)
	}
}

func TestDictionariesGetUnknownLabelErrors(t *testing.T) {
	dicts := NewDictionaries()
	if _, err := dicts.Get("missing"); err == nil {
		t.Fatal("expected Get to error for an unregistered label")
	}
}

func TestNewDictCodecErrorsOnUnknownLabel(t *testing.T) {
	dicts := NewDictionaries()
	if _, err := NewDictCodec(dicts, "missing"); err == nil {
		t.Fatal("expected NewDictCodec to error when the label has no dictionary")
	}
}

func TestDecompressRejectsOversizedOutput(t *testing.T) {
	codec, err := NewPlainCodec(zstd.SpeedFastest)
	if err != nil {
		t.Fatalf("NewPlainCodec: %v", err)
	}

	huge := bytes.Repeat([]byte{0x42}, MaxDecompressedSize+1)
	compressed := codec.Compress(huge)

	if _, err := codec.Decompress(compressed); err == nil {
		t.Fatal("expected Decompress to reject output larger than MaxDecompressedSize")
	}
}
