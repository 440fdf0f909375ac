package block

import "encoding/binary"

// Iter is a cursor over one block: forward and backward steps, three seek
// strategies, and terminal corruption reporting. It mutates on every call and
// must not be shared between goroutines; the underlying block bytes may be.
//
// An Iter is either Valid (positioned on an entry), at the end (exhausted or
// never positioned), or corrupt. The latter two both report Valid() == false
// and are told apart by Error().
type Iter struct {
	cmp         Comparator
	data        []byte // nil until Init
	restarts    uint32 // offset of the restart array; entries end here
	numRestarts uint32

	current    uint32 // offset of the current entry; == restarts when invalid
	nextOffset uint32 // offset just past the current entry's value
	restartIdx uint32 // restart point at or before current; search hint only
	key        keyBuf
	value      []byte
	err        error

	hashIndex   HashIndex
	prefixIndex PrefixIndex
}

// Init performs one-time setup of the cursor. It panics if the cursor is
// already initialized (Reset first to recycle one across blocks) or if
// numRestarts is zero; both are caller bugs, not data errors.
func (it *Iter) Init(cmp Comparator, data []byte, restarts, numRestarts uint32, hashIndex HashIndex, prefixIndex PrefixIndex) {
	if it.data != nil {
		panic("block: Init on initialized iterator")
	}
	if numRestarts == 0 {
		panic("block: Init with zero restart points")
	}
	it.cmp = cmp
	it.data = data
	it.restarts = restarts
	it.numRestarts = numRestarts
	it.current = restarts
	it.nextOffset = restarts
	it.restartIdx = numRestarts
	it.hashIndex = hashIndex
	it.prefixIndex = prefixIndex
}

// Reset returns the cursor to its uninitialized state so it can be recycled
// for another block. Owned key storage is kept for reuse.
func (it *Iter) Reset() {
	*it = Iter{key: keyBuf{buf: it.key.buf[:0]}}
}

// Valid reports whether the cursor is positioned on an entry.
func (it *Iter) Valid() bool {
	return it.data != nil && it.current < it.restarts
}

// Error returns nil, or the terminal corruption status of the cursor.
func (it *Iter) Error() error {
	return it.err
}

// Key returns the current key. Valid until the next positioning call; it may
// alias either the block or the cursor's own buffer.
func (it *Iter) Key() []byte {
	return it.key.Key()
}

// Value returns the current value as a view into the block. Never copied.
func (it *Iter) Value() []byte {
	return it.value
}

// RestartIndex returns the index of the restart point at or before the
// current entry. Meaningful only while Valid; index builders walking the
// block use it to tie each key to its restart block.
func (it *Iter) RestartIndex() uint32 {
	return it.restartIdx
}

// SeekToFirst positions the cursor on the block's first entry. No-op on an
// uninitialized cursor.
func (it *Iter) SeekToFirst() {
	if it.data == nil {
		return
	}
	it.seekToRestartPoint(0)
	it.parseNextKey()
}

// SeekToLast positions the cursor on the block's last entry.
func (it *Iter) SeekToLast() {
	if it.data == nil {
		return
	}
	it.seekToRestartPoint(it.numRestarts - 1)
	for it.parseNextKey() && it.nextOffset < it.restarts {
		// Keep skipping to the last decodable entry.
	}
}

// Next advances to the following entry. The cursor must be Valid.
func (it *Iter) Next() {
	it.parseNextKey()
}

// Prev steps back one entry by walking to the latest restart point before the
// current entry and re-scanning forward. O(restart interval), not O(1); the
// interval is bounded by the writer's configuration and callers tune against
// this amortized cost. The cursor must be Valid.
func (it *Iter) Prev() {
	if !it.Valid() {
		return
	}
	original := it.current
	for it.restartPoint(it.restartIdx) >= original {
		if it.restartIdx == 0 {
			// No entry precedes the first one.
			it.current = it.restarts
			it.restartIdx = it.numRestarts
			return
		}
		it.restartIdx--
	}
	it.seekToRestartPoint(it.restartIdx)
	for it.parseNextKey() && it.nextOffset < original {
		// Stop on the entry whose successor starts at original.
	}
}

// Seek positions the cursor on the first entry with key >= target, or leaves
// it invalid if no such entry exists. The starting restart range comes from
// the prefix index when attached, else the hash index, else a binary search
// over all restart points. No-op on an uninitialized cursor.
func (it *Iter) Seek(target []byte) {
	if it.data == nil {
		return
	}
	var index uint32
	var ok bool
	if it.prefixIndex != nil {
		ok = it.prefixSeek(target, &index)
	} else if it.hashIndex != nil {
		ok = it.hashSeek(target, &index)
	} else {
		ok = it.binarySeek(target, 0, it.numRestarts-1, &index)
	}
	if !ok {
		return
	}
	it.seekToRestartPoint(index)
	// Linear scan within the restart interval for the first key >= target.
	for it.parseNextKey() && it.cmp(it.key.Key(), target) < 0 {
	}
}

// restartPoint reads the i-th restart offset from the trailing array.
func (it *Iter) restartPoint(i uint32) uint32 {
	return binary.LittleEndian.Uint32(it.data[it.restarts+4*i:])
}

// seekToRestartPoint leaves the cursor just before the restart entry so the
// next parseNextKey decodes it.
func (it *Iter) seekToRestartPoint(index uint32) {
	it.key.Clear()
	it.restartIdx = index
	it.nextOffset = it.restartPoint(index)
	it.value = nil
}

// corruptionError moves the cursor to its terminal corrupt state: positioned
// at the end sentinels with key and value cleared and a sticky status. The
// block bytes are immutable, so there is no recovery path.
func (it *Iter) corruptionError() {
	it.current = it.restarts
	it.nextOffset = it.restarts
	it.restartIdx = it.numRestarts
	it.err = ErrBadEntryInBlock
	it.key.Clear()
	it.value = nil
}

// parseNextKey is the single primitive every positioning operation builds on.
// It decodes the entry starting just past the current one, reconstructs the
// key (borrowing it from the block when shared == 0), sets the value view,
// and drags the restartIdx hint forward. Returns false at end of block or,
// after degrading the cursor, on corruption.
func (it *Iter) parseNextKey() bool {
	it.current = it.nextOffset
	if it.current >= it.restarts {
		// No more entries. Mark as invalid.
		it.current = it.restarts
		it.restartIdx = it.numRestarts
		return false
	}

	shared, nonShared, valueLen, keyOff, ok := decodeEntry(it.data, it.current, it.restarts)
	if !ok || uint32(it.key.Len()) < shared {
		it.corruptionError()
		return false
	}
	if shared == 0 {
		// Full key stored in the block; use it in place.
		it.key.SetKey(it.data[keyOff : keyOff+nonShared])
	} else {
		it.key.TrimAppend(shared, it.data[keyOff:keyOff+nonShared])
	}
	it.value = it.data[keyOff+nonShared : keyOff+nonShared+valueLen]
	it.nextOffset = keyOff + nonShared + valueLen
	for it.restartIdx+1 < it.numRestarts && it.restartPoint(it.restartIdx+1) < it.current {
		it.restartIdx++
	}
	return true
}

// binarySeek searches restart indices [left, right] for the rightmost restart
// point whose first key is <= target and stores it in *index. Restart entries
// must have shared == 0 by format; anything else corrupts the cursor and
// returns false.
func (it *Iter) binarySeek(target []byte, left, right uint32, index *uint32) bool {
	for left < right {
		mid := (left + right + 1) / 2
		regionOffset := it.restartPoint(mid)
		shared, nonShared, _, keyOff, ok := decodeEntry(it.data, regionOffset, it.restarts)
		if !ok || shared != 0 {
			it.corruptionError()
			return false
		}
		midKey := it.data[keyOff : keyOff+nonShared]
		cmp := it.cmp(midKey, target)
		if cmp < 0 {
			// Restart blocks before mid cannot hold target.
			left = mid
		} else if cmp > 0 {
			// Restart blocks at or after mid start past target.
			right = mid - 1
		} else {
			left = mid
			right = mid
		}
	}
	*index = left
	return true
}

// compareRestartKey compares the first key of the given restart block with
// target. On a corrupt probe it degrades the cursor and reports the probe key
// as greater, which callers must notice via Error.
func (it *Iter) compareRestartKey(restartIndex uint32, target []byte) int {
	regionOffset := it.restartPoint(restartIndex)
	shared, nonShared, _, keyOff, ok := decodeEntry(it.data, regionOffset, it.restarts)
	if !ok || shared != 0 {
		it.corruptionError()
		return 1
	}
	return it.cmp(it.data[keyOff:keyOff+nonShared], target)
}

// binaryIndexSeek searches over positions in ids, a sorted and possibly
// gapped list of restart indices, for the block that could hold target. The
// gaps matter: when the search converges on a position whose predecessor in
// the list is not the immediately preceding restart block, the skipped blocks
// were verified absent by the index builder, and if the restart block just
// before the candidate starts beyond target the key cannot exist at all.
func (it *Iter) binaryIndexSeek(target []byte, ids []uint32, index *uint32) bool {
	left, right := uint32(0), uint32(len(ids)-1)
	for left <= right {
		mid := (left + right) / 2
		cmp := it.compareRestartKey(ids[mid], target)
		if it.err != nil {
			return false
		}
		if cmp < 0 {
			// Blocks up to and including mid start before target.
			left = mid + 1
		} else {
			// Blocks from mid on start at or past target. With one position
			// remaining, that position is the candidate.
			if left == right {
				break
			}
			right = mid
		}
	}

	if left != right {
		// Every listed block starts before target; the tail blocks were
		// pruned by the index. Mark the cursor invalid.
		it.current = it.restarts
		return false
	}

	// Disambiguate "gap before this block" from "target belongs here": if
	// the restart block preceding the candidate is absent from the list and
	// its first key is already past target, target falls in a pruned range.
	if ids[left] > 0 &&
		(left == 0 || ids[left-1] != ids[left]-1) &&
		it.compareRestartKey(ids[left]-1, target) > 0 {
		it.current = it.restarts
		return false
	}
	*index = ids[left]
	return true
}

// hashSeek narrows the binary search to the bucket's restart range. A bucket
// miss proves the key absent; there is no fallback scan.
func (it *Iter) hashSeek(target []byte, index *uint32) bool {
	first, count, ok := it.hashIndex.RestartRange(target)
	if !ok || count == 0 {
		it.current = it.restarts
		return false
	}
	// Restart blocks [first, first+count) share target's prefix; binary
	// search inside that window only.
	return it.binarySeek(target, first, first+count-1, index)
}

// prefixSeek resolves target's prefix to the sparse restart id list and
// searches over its positions.
func (it *Iter) prefixSeek(target []byte, index *uint32) bool {
	ids := it.prefixIndex.Blocks(target)
	if len(ids) == 0 {
		it.current = it.restarts
		return false
	}
	return it.binaryIndexSeek(target, ids, index)
}
