package embcache

import (
	"bytes"
	"testing"

	"github.com/kailas-cloud/commentlens/internal/domain/vector"
)

func TestSnapshot_Deterministic(t *testing.T) {
	a := map[string]vector.Vector{"x": {1, 2}, "y": {3}, "z": {}}
	b := map[string]vector.Vector{"z": {}, "y": {3}, "x": {1, 2}}

	if !bytes.Equal(encodeSnapshot(a), encodeSnapshot(b)) {
		t.Error("equal maps encoded differently")
	}
}

func TestSnapshot_Empty(t *testing.T) {
	entries, err := decodeSnapshot(encodeSnapshot(nil))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %d", len(entries))
	}
}

func TestDecodeSnapshot_Rejects(t *testing.T) {
	valid := encodeSnapshot(map[string]vector.Vector{"key": {1, 2, 3}})

	badVersion := append([]byte(nil), valid...)
	badVersion[4] = 9

	hugeCount := []byte("CLEC\x01\x00\xff\xff\xff\xff")

	tests := []struct {
		name string
		data []byte
	}{
		{"short", []byte("CL")},
		{"bad magic", append([]byte("XXXX"), valid[4:]...)},
		{"bad version", badVersion},
		{"truncated", valid[:len(valid)-2]},
		{"trailing", append(append([]byte(nil), valid...), 0)},
		{"count exceeds payload", hugeCount},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := decodeSnapshot(tc.data); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestBytesToVector_InvalidLength(t *testing.T) {
	if _, err := bytesToVector([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for length not multiple of 4")
	}
}
