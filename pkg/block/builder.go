package block

import (
	"encoding/binary"
	"fmt"
)

// DefaultRestartInterval is how many entries share one restart point unless
// the caller tunes it. Shorter intervals cost space and speed up Prev and
// Seek; longer intervals compress better.
const DefaultRestartInterval = 16

// Builder encodes sorted key/value pairs into the block wire format: each
// entry's key is delta-encoded against its predecessor, with a full key
// stored every restartInterval entries, and the restart offsets plus their
// count trail the entries as little-endian uint32s.
type Builder struct {
	restartInterval int
	buf             []byte
	restarts        []uint32
	counter         int // entries since the last restart point
	entries         int
	lastKey         []byte
	finished        bool
}

// NewBuilder creates a builder. restartInterval values below 1 are treated
// as 1 (every entry a restart point).
func NewBuilder(restartInterval int) *Builder {
	if restartInterval < 1 {
		restartInterval = 1
	}
	return &Builder{
		restartInterval: restartInterval,
		restarts:        []uint32{0},
	}
}

// Reset clears the builder for a fresh block, keeping allocated storage.
func (b *Builder) Reset() {
	b.buf = b.buf[:0]
	b.restarts = append(b.restarts[:0], 0)
	b.counter = 0
	b.entries = 0
	b.lastKey = b.lastKey[:0]
	b.finished = false
}

// Empty reports whether no entry has been added since the last Reset.
func (b *Builder) Empty() bool {
	return b.entries == 0
}

// Entries returns the number of entries added.
func (b *Builder) Entries() int {
	return b.entries
}

// EstimatedSize returns the encoded size of the block if finished now.
func (b *Builder) EstimatedSize() int {
	return len(b.buf) + 4*len(b.restarts) + 4
}

// Add appends a key/value pair. Keys must arrive in strictly increasing
// order under the comparator the block will be read with.
func (b *Builder) Add(key, value []byte) error {
	if b.finished {
		return fmt.Errorf("block: add %q to finished builder", key)
	}
	if b.entries > 0 && BytewiseComparator(key, b.lastKey) <= 0 {
		return fmt.Errorf("block: keys must be added in strictly increasing order, got %q after %q",
			key, b.lastKey)
	}

	var shared uint32
	if b.counter < b.restartInterval {
		shared = sharedPrefixLen(b.lastKey, key)
	} else {
		// Interval exhausted: open a new restart point and store the key
		// in full.
		b.restarts = append(b.restarts, uint32(len(b.buf)))
		b.counter = 0
	}

	b.buf = appendEntryHeader(b.buf, shared, uint32(len(key))-shared, uint32(len(value)))
	b.buf = append(b.buf, key[shared:]...)
	b.buf = append(b.buf, value...)

	b.lastKey = append(b.lastKey[:0], key...)
	b.counter++
	b.entries++
	return nil
}

// Finish appends the restart array and count and returns the complete block.
// The returned slice aliases the builder's buffer and is valid until Reset.
// An empty builder still emits the minimal block: restart point 0 plus the
// count, which a reader treats as a valid block with one empty restart
// interval.
func (b *Builder) Finish() []byte {
	for _, restart := range b.restarts {
		b.buf = binary.LittleEndian.AppendUint32(b.buf, restart)
	}
	b.buf = binary.LittleEndian.AppendUint32(b.buf, uint32(len(b.restarts)))
	b.finished = true
	return b.buf
}

func sharedPrefixLen(a, b []byte) uint32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var i int
	for i < n && a[i] == b[i] {
		i++
	}
	return uint32(i)
}
