// Package hashindex provides the hash-bucket seek accelerator for block
// cursors. The index maps a key prefix to the contiguous run of restart
// points whose entries carry that prefix, so a point lookup binary-searches a
// handful of restart blocks instead of the whole restart array, and a miss
// proves the key absent without touching the block at all.
package hashindex

import (
	"bytes"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Extractor derives the indexed prefix from a key. It must be deterministic
// and the same extractor must be used to build and to query an index. A nil
// return means the key has no prefix and cannot be indexed.
type Extractor func(key []byte) []byte

// FixedPrefix returns an Extractor taking the first n bytes of a key, or nil
// for keys shorter than n.
func FixedPrefix(n int) Extractor {
	return func(key []byte) []byte {
		if len(key) < n {
			return nil
		}
		return key[:n]
	}
}

// bucket holds one prefix's restart range. The prefix bytes are kept so a
// 64-bit hash collision confirms against the real prefix instead of
// redirecting a seek into the wrong range.
type bucket struct {
	prefix []byte
	first  uint32
	count  uint32
}

// Index is the immutable read side. It satisfies block.HashIndex.
type Index struct {
	extract Extractor
	buckets map[uint64][]bucket
}

// RestartRange returns the restart range covering key's prefix. ok is false
// when the prefix was never added, which proves the key absent from the
// block the index was built over.
func (ix *Index) RestartRange(key []byte) (first, count uint32, ok bool) {
	prefix := ix.extract(key)
	if prefix == nil {
		return 0, 0, false
	}
	for _, b := range ix.buckets[xxhash.Sum64(prefix)] {
		if bytes.Equal(b.prefix, prefix) {
			return b.first, b.count, true
		}
	}
	return 0, 0, false
}

// ApproximateMemoryUsage reports the index footprint for cache accounting.
func (ix *Index) ApproximateMemoryUsage() int {
	const bucketOverhead = 24 // slice header of the stored prefix
	usage := 0
	for _, chain := range ix.buckets {
		for _, b := range chain {
			usage += bucketOverhead + len(b.prefix) + 8
		}
	}
	return usage
}

// Builder consumes every key added to a block, in block order, together with
// the restart index of the block the key landed in, and emits an Index. A
// prefix's bucket spans from the restart block where it first appears through
// the one where it last appears, so prefixes that begin mid-block are still
// fully covered. Keys with equal prefixes must be contiguous; a prefix that
// reappears after a different one means the extractor does not respect the
// block's sort order and Finish reports it.
type Builder struct {
	extract    Extractor
	buckets    map[uint64][]bucket
	lastPrefix []byte
	havePrefix bool
	err        error
}

// NewBuilder creates a builder using extract for both sides of the contract.
func NewBuilder(extract Extractor) *Builder {
	return &Builder{
		extract: extract,
		buckets: map[uint64][]bucket{},
	}
}

// Add records one key and the restart index of the restart block holding it.
// Keys must arrive in block order, so restart indices never decrease.
func (b *Builder) Add(key []byte, restartIndex uint32) {
	if b.err != nil {
		return
	}
	prefix := b.extract(key)
	if prefix == nil {
		// Unindexable key: close any run in progress so lookups for
		// neighboring prefixes stay exact.
		b.havePrefix = false
		return
	}
	if b.havePrefix && bytes.Equal(prefix, b.lastPrefix) {
		// Same prefix; widen its bucket if the run crossed into a new
		// restart block.
		chain := b.buckets[xxhash.Sum64(prefix)]
		last := &chain[len(chain)-1]
		if covered := last.first + last.count; restartIndex >= covered {
			last.count += restartIndex - covered + 1
		}
		return
	}
	if b.seen(prefix) {
		b.err = fmt.Errorf("hashindex: prefix %q is not contiguous in key order", prefix)
		return
	}
	h := xxhash.Sum64(prefix)
	b.buckets[h] = append(b.buckets[h], bucket{
		prefix: append([]byte(nil), prefix...),
		first:  restartIndex,
		count:  1,
	})
	b.lastPrefix = append(b.lastPrefix[:0], prefix...)
	b.havePrefix = true
}

func (b *Builder) seen(prefix []byte) bool {
	for _, e := range b.buckets[xxhash.Sum64(prefix)] {
		if bytes.Equal(e.prefix, prefix) {
			return true
		}
	}
	return false
}

// Finish returns the immutable index, or the first error Add ran into. The
// builder must not be reused afterwards.
func (b *Builder) Finish() (*Index, error) {
	if b.err != nil {
		return nil, b.err
	}
	return &Index{extract: b.extract, buckets: b.buckets}, nil
}
