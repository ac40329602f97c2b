package embcache

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/kailas-cloud/commentlens/internal/domain/vector"
)

// Snapshot layout (little-endian):
//
//	magic "CLEC" | version u16 | count u32 | count × (keyLen u16 | key | dim u32 | dim × f32)
const (
	snapshotMagic   = "CLEC"
	snapshotVersion = 1
	headerSize      = len(snapshotMagic) + 2 + 4

	// minEntrySize is an entry with an empty key and a zero-dim vector.
	minEntrySize = 2 + 4
)

// encodeSnapshot serializes entries in sorted key order so equal maps yield equal bytes.
func encodeSnapshot(entries map[string]vector.Vector) []byte {
	keys := make([]string, 0, len(entries))
	size := headerSize
	for k, v := range entries {
		keys = append(keys, k)
		size += 2 + len(k) + 4 + len(v)*4
	}
	sort.Strings(keys)

	buf := make([]byte, 0, size)
	buf = append(buf, snapshotMagic...)
	buf = binary.LittleEndian.AppendUint16(buf, snapshotVersion)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(keys))) //nolint:gosec // bounded by memory

	for _, k := range keys {
		v := entries[k]
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(k))) //nolint:gosec // hash keys are 64 bytes
		buf = append(buf, k...)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(v))) //nolint:gosec // bounded by memory
		buf = append(buf, vectorToCacheBytes(v)...)
	}
	return buf
}

func decodeSnapshot(data []byte) (map[string]vector.Vector, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("snapshot too short: %d bytes", len(data))
	}
	if string(data[:4]) != snapshotMagic {
		return nil, fmt.Errorf("bad snapshot magic %q", data[:4])
	}
	if ver := binary.LittleEndian.Uint16(data[4:]); ver != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", ver)
	}
	count := int(binary.LittleEndian.Uint32(data[6:]))
	if count > (len(data)-headerSize)/minEntrySize {
		return nil, fmt.Errorf("snapshot claims %d entries in %d bytes", count, len(data))
	}

	entries := make(map[string]vector.Vector, count)
	off := headerSize
	for i := 0; i < count; i++ {
		if off+2 > len(data) {
			return nil, fmt.Errorf("entry %d: truncated key length", i)
		}
		keyLen := int(binary.LittleEndian.Uint16(data[off:]))
		off += 2
		if off+keyLen+4 > len(data) {
			return nil, fmt.Errorf("entry %d: truncated key", i)
		}
		key := string(data[off : off+keyLen])
		off += keyLen
		dim := int(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		if off+dim*4 > len(data) {
			return nil, fmt.Errorf("entry %d: truncated vector (dim %d)", i, dim)
		}
		vec, err := bytesToVector(data[off : off+dim*4])
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		off += dim * 4
		entries[key] = vec
	}
	if off != len(data) {
		return nil, fmt.Errorf("%d trailing bytes after %d entries", len(data)-off, count)
	}
	return entries, nil
}

func vectorToCacheBytes(v vector.Vector) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToVector(data []byte) (vector.Vector, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding cache data: len=%d (not multiple of 4)", len(data))
	}
	vec := make(vector.Vector, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
