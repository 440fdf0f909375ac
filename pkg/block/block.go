// Package block decodes the restart-point-compressed key/value blocks of the
// sorted-string-table format. A block is a sequence of prefix-compressed
// entries followed by an array of restart offsets (entries stored with their
// full key) and a trailing restart count, both little-endian uint32.
//
// Blocks are built by Builder and read through cursors created with
// Block.NewIterator. The bytes handed to a Block are immutable and may be
// shared by any number of cursors; each cursor is single-threaded.
package block

import (
	"bytes"
	"encoding/binary"
	"errors"
)

var (
	// ErrBadBlockContents indicates the buffer is too small or its footer is
	// inconsistent; the block as a whole is unusable.
	ErrBadBlockContents = errors.New("block: bad block contents")
	// ErrBadEntryInBlock indicates corruption detected while decoding an
	// entry or probing a restart point. Terminal for the affected cursor.
	ErrBadEntryInBlock = errors.New("block: bad entry in block")
	// ErrEmptyBlock is returned by MiddleKey on a block that holds no second
	// key to split at. Expected and non-fatal.
	ErrEmptyBlock = errors.New("block: empty block")
)

// Comparator defines the total order over keys. It reports a negative value
// when a sorts before b, zero when equal, positive otherwise.
type Comparator func(a, b []byte) int

// BytewiseComparator orders keys lexicographically by their raw bytes.
var BytewiseComparator Comparator = bytes.Compare

// HashIndex narrows a seek to a contiguous range of restart points whose
// entries share the target's prefix. A miss means the key is provably absent
// from the block.
type HashIndex interface {
	// RestartRange returns the first restart index and the number of
	// consecutive restart blocks covering key's prefix. ok is false when the
	// prefix is not present in the block.
	RestartRange(key []byte) (first, count uint32, ok bool)
	// ApproximateMemoryUsage reports the index's own footprint in bytes.
	ApproximateMemoryUsage() int
}

// PrefixIndex maps a key's prefix to a sorted, possibly gapped list of
// restart indices. An empty result means the prefix is provably absent. Gaps
// mark restart blocks known not to contain the prefix.
type PrefixIndex interface {
	// Blocks returns the restart indices covering key's prefix, in ascending
	// order. The returned slice must not be modified.
	Blocks(key []byte) []uint32
	// ApproximateMemoryUsage reports the index's own footprint in bytes.
	ApproximateMemoryUsage() int
}

// minBlockSize is the encoded size of an empty block: one restart point
// (offset 0 is always present) plus the restart count.
const minBlockSize = 2 * 4

// Block owns one immutable block buffer and its footer metadata, and is the
// factory for cursors over it. A Block constructed from
// an undersized or inconsistent buffer is permanently invalid: every cursor
// it produces reports ErrBadBlockContents.
type Block struct {
	data          []byte
	size          uint32 // 0 is the permanent invalid marker
	restartOffset uint32
	hashIndex     HashIndex
	prefixIndex   PrefixIndex
}

// NewBlock wraps contents, which must stay immutable and outlive every
// cursor. Footer validation happens here; a bad footer marks the block
// invalid rather than returning an error, matching the on-disk format's
// "unreadable block" semantics.
func NewBlock(contents []byte) *Block {
	b := &Block{data: contents, size: uint32(len(contents))}
	if b.size < 4 {
		b.size = 0
		return b
	}
	// Widen before multiplying so a huge restart count cannot wrap the
	// footer size computation around.
	footer := (1 + uint64(b.NumRestarts())) * 4
	if footer > uint64(b.size) {
		// The footer claims more restarts than the buffer holds.
		b.size = 0
		return b
	}
	b.restartOffset = b.size - uint32(footer)
	return b
}

// Valid reports whether the footer checked out at construction.
func (b *Block) Valid() bool {
	return b.size >= minBlockSize
}

// Size returns the buffer length, or 0 for an invalid block.
func (b *Block) Size() int {
	return int(b.size)
}

// NumRestarts reads the restart count from the trailing four bytes.
func (b *Block) NumRestarts() uint32 {
	return binary.LittleEndian.Uint32(b.data[b.size-4:])
}

// restartPoint reads the i-th restart offset. Valid for i < NumRestarts().
func (b *Block) restartPoint(i uint32) uint32 {
	return binary.LittleEndian.Uint32(b.data[b.restartOffset+4*i:])
}

// SetHashIndex attaches a hash seek accelerator. Must happen before cursors
// are created; the index is consulted unless a cursor was opened in
// total-order mode.
func (b *Block) SetHashIndex(index HashIndex) {
	b.hashIndex = index
}

// SetPrefixIndex attaches a sparse prefix seek accelerator.
func (b *Block) SetPrefixIndex(index PrefixIndex) {
	b.prefixIndex = index
}

// NewIterator returns a cursor over the block. A non-nil reuse cursor is
// re-initialized in place (it must have been Reset since its last use). With
// totalOrderSeek set, attached accelerators are bypassed and every Seek runs
// a full-range binary search.
//
// An invalid block yields a cursor already carrying ErrBadBlockContents. A
// block whose footer records zero restarts yields an exhausted but error-free
// cursor.
func (b *Block) NewIterator(cmp Comparator, reuse *Iter, totalOrderSeek bool) *Iter {
	it := reuse
	if it == nil {
		it = &Iter{}
	}
	if !b.Valid() {
		it.Reset()
		it.err = ErrBadBlockContents
		return it
	}
	numRestarts := b.NumRestarts()
	if numRestarts == 0 {
		it.Reset()
		return it
	}
	var hashIndex HashIndex
	var prefixIndex PrefixIndex
	if !totalOrderSeek {
		hashIndex = b.hashIndex
		prefixIndex = b.prefixIndex
	}
	it.Init(cmp, b.data, b.restartOffset, numRestarts, hashIndex, prefixIndex)
	return it
}

// MiddleKey returns the first key of the restart point at NumRestarts()/2,
// splitting the block roughly in half for upstream range division.
//
// Returns ErrBadBlockContents for an invalid block, ErrEmptyBlock when the
// block is the minimal empty encoding and holds no key to return, and
// ErrBadEntryInBlock when the probed entry is undecodable or
// prefix-compressed. The returned slice aliases the block.
func (b *Block) MiddleKey() ([]byte, error) {
	if b.size < minBlockSize {
		return nil, ErrBadBlockContents
	}
	if b.size == minBlockSize {
		return nil, ErrEmptyBlock
	}
	entryOffset := b.restartPoint(b.NumRestarts() / 2)
	shared, nonShared, _, keyOff, ok := decodeEntry(b.data, entryOffset, b.restartOffset)
	if !ok || shared != 0 {
		return nil, ErrBadEntryInBlock
	}
	return b.data[keyOff : keyOff+nonShared], nil
}

// ApproximateMemoryUsage returns the buffer size plus the footprint of any
// attached accelerators. Used for cache accounting; not byte-exact.
func (b *Block) ApproximateMemoryUsage() int {
	usage := len(b.data)
	if b.hashIndex != nil {
		usage += b.hashIndex.ApproximateMemoryUsage()
	}
	if b.prefixIndex != nil {
		usage += b.prefixIndex.ApproximateMemoryUsage()
	}
	return usage
}
