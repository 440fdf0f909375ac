package block

// keyBuf holds the reconstructed key of the current cursor position. A key
// that shares nothing with its predecessor is borrowed straight out of the
// block (no copy); a prefix-compressed key forces an owned copy that is
// truncated and appended in place.
type keyBuf struct {
	key   []byte // current key; aliases the block when owned is false
	buf   []byte // owned storage, reused across entries
	owned bool
}

// Len returns the length of the current key.
func (k *keyBuf) Len() int {
	return len(k.key)
}

// Key returns the current key bytes. The slice is only valid until the next
// mutation of the buffer.
func (k *keyBuf) Key() []byte {
	return k.key
}

// SetKey points the buffer at a full key stored in the block. Zero copy.
func (k *keyBuf) SetKey(key []byte) {
	k.key = key
	k.owned = false
}

// TrimAppend truncates the key to its first shared bytes and appends suffix.
// A borrowed key is materialized into owned storage first. The caller must
// have verified shared <= Len().
func (k *keyBuf) TrimAppend(shared uint32, suffix []byte) {
	if !k.owned {
		k.buf = append(k.buf[:0], k.key[:shared]...)
	} else {
		k.buf = k.buf[:shared]
	}
	k.buf = append(k.buf, suffix...)
	k.key = k.buf
	k.owned = true
}

// Clear drops the current key without releasing owned storage.
func (k *keyBuf) Clear() {
	k.key = nil
	k.owned = false
}
