// Package prefixindex provides the sparse prefix seek accelerator for block
// cursors. Unlike the hash index's contiguous restart range, a prefix here
// maps to a sorted list of restart indices that may have gaps: the builder
// omits restart blocks it verified cannot contain the prefix, and the
// cursor's positional search over the list reconstructs that knowledge when
// it disambiguates a gap from a genuine hit.
package prefixindex

import (
	"bytes"
	"fmt"

	"github.com/spaolacci/murmur3"
)

// Extractor derives the indexed prefix from a key. A nil return means the
// key carries no indexable prefix.
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

type entry struct {
	prefix []byte
	blocks []uint32
}

// Index is the immutable read side. It satisfies block.PrefixIndex.
type Index struct {
	extract Extractor
	buckets map[uint64][]entry
}

// Blocks returns the sorted, possibly gapped restart indices recorded for
// key's prefix, or nil when the prefix is absent. Callers must not modify
// the returned slice.
func (ix *Index) Blocks(key []byte) []uint32 {
	prefix := ix.extract(key)
	if prefix == nil {
		return nil
	}
	for _, e := range ix.buckets[murmur3.Sum64(prefix)] {
		if bytes.Equal(e.prefix, prefix) {
			return e.blocks
		}
	}
	return nil
}

// ApproximateMemoryUsage reports the index footprint for cache accounting.
func (ix *Index) ApproximateMemoryUsage() int {
	const entryOverhead = 48 // two slice headers
	usage := 0
	for _, chain := range ix.buckets {
		for _, e := range chain {
			usage += entryOverhead + len(e.prefix) + 4*len(e.blocks)
		}
	}
	return usage
}

// Builder accumulates (prefix, restart index) pairs in block order and emits
// an Index. Skipping restart indices for a prefix is allowed and is the
// point: a skipped block was verified not to contain the prefix.
type Builder struct {
	extract Extractor
	buckets map[uint64][]entry
	err     error
}

// NewBuilder creates a builder using extract for the index's read side.
func NewBuilder(extract Extractor) *Builder {
	return &Builder{
		extract: extract,
		buckets: map[uint64][]entry{},
	}
}

// Add records that restart block restartIndex contains keys with the given
// prefix. Indices for one prefix must arrive in ascending order; consecutive
// duplicates collapse.
func (b *Builder) Add(prefix []byte, restartIndex uint32) {
	if b.err != nil {
		return
	}
	h := murmur3.Sum64(prefix)
	chain := b.buckets[h]
	for i := range chain {
		e := &chain[i]
		if !bytes.Equal(e.prefix, prefix) {
			continue
		}
		last := e.blocks[len(e.blocks)-1]
		if restartIndex == last {
			return
		}
		if restartIndex < last {
			b.err = fmt.Errorf("prefixindex: restart %d for prefix %q after %d", restartIndex, prefix, last)
			return
		}
		e.blocks = append(e.blocks, restartIndex)
		return
	}
	b.buckets[h] = append(chain, entry{
		prefix: append([]byte(nil), prefix...),
		blocks: []uint32{restartIndex},
	})
}

// Finish returns the immutable index, or the first error Add ran into.
func (b *Builder) Finish() (*Index, error) {
	if b.err != nil {
		return nil, b.err
	}
	return &Index{extract: b.extract, buckets: b.buckets}, nil
}
