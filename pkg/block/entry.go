package block

import "encoding/binary"

// Entry headers carry three unsigned values: the number of key bytes shared
// with the previous entry, the number of new key bytes, and the value length.
// When all three fit in a single byte each they are written as three raw
// bytes; otherwise each is a standard unsigned varint. Both forms are
// byte-identical for values below 128, so the decoder handles them uniformly.

// decodeEntry decodes the entry header starting at offset p, reading no byte
// at or past limit. It returns the three header fields and keyOff, the offset
// of the first key-suffix byte. ok is false if the header is truncated,
// malformed, or claims more key/value bytes than remain before limit.
func decodeEntry(data []byte, p, limit uint32) (shared, nonShared, valueLen, keyOff uint32, ok bool) {
	if p >= limit || limit-p < 3 {
		return 0, 0, 0, 0, false
	}
	shared = uint32(data[p])
	nonShared = uint32(data[p+1])
	valueLen = uint32(data[p+2])
	if shared|nonShared|valueLen < 128 {
		// Fast path: all three values are encoded in one byte each.
		keyOff = p + 3
	} else {
		if shared, keyOff, ok = decodeUvarint32(data, p, limit); !ok {
			return 0, 0, 0, 0, false
		}
		if nonShared, keyOff, ok = decodeUvarint32(data, keyOff, limit); !ok {
			return 0, 0, 0, 0, false
		}
		if valueLen, keyOff, ok = decodeUvarint32(data, keyOff, limit); !ok {
			return 0, 0, 0, 0, false
		}
	}
	if uint64(limit-keyOff) < uint64(nonShared)+uint64(valueLen) {
		return 0, 0, 0, 0, false
	}
	return shared, nonShared, valueLen, keyOff, true
}

// decodeUvarint32 decodes one unsigned varint from data[p:limit] and returns
// the value and the offset just past it.
func decodeUvarint32(data []byte, p, limit uint32) (uint32, uint32, bool) {
	if p >= limit {
		return 0, 0, false
	}
	v, n := binary.Uvarint(data[p:limit])
	if n <= 0 || v > 1<<32-1 {
		return 0, 0, false
	}
	return uint32(v), p + uint32(n), true
}

// appendEntryHeader encodes the header triple in the on-disk form: three raw
// bytes when every field fits in one varint byte, varints otherwise.
func appendEntryHeader(dst []byte, shared, nonShared, valueLen uint32) []byte {
	if shared|nonShared|valueLen < 128 {
		return append(dst, byte(shared), byte(nonShared), byte(valueLen))
	}
	dst = binary.AppendUvarint(dst, uint64(shared))
	dst = binary.AppendUvarint(dst, uint64(nonShared))
	return binary.AppendUvarint(dst, uint64(valueLen))
}
