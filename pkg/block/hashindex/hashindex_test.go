package hashindex

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/StrataDB/strata/pkg/block"
)

func TestFixedPrefix(t *testing.T) {
	extract := FixedPrefix(3)
	require.Equal(t, []byte("abc"), extract([]byte("abcdef")))
	require.Equal(t, []byte("abc"), extract([]byte("abc")))
	require.Nil(t, extract([]byte("ab")))
}

func TestBuilderContiguousRuns(t *testing.T) {
	builder := NewBuilder(FixedPrefix(3))
	builder.Add([]byte("aaa-1"), 0)
	builder.Add([]byte("aaa-2"), 0)
	builder.Add([]byte("aaa-3"), 1) // run crosses into restart block 1
	builder.Add([]byte("bbb-1"), 1)
	builder.Add([]byte("bbb-2"), 2)
	index, err := builder.Finish()
	require.NoError(t, err)

	first, count, ok := index.RestartRange([]byte("aaa-anything"))
	require.True(t, ok)
	require.Equal(t, uint32(0), first)
	require.Equal(t, uint32(2), count)

	first, count, ok = index.RestartRange([]byte("bbb-x"))
	require.True(t, ok)
	require.Equal(t, uint32(1), first)
	require.Equal(t, uint32(2), count)

	_, _, ok = index.RestartRange([]byte("ccc-x"))
	require.False(t, ok)

	// Keys shorter than the prefix are unindexable.
	_, _, ok = index.RestartRange([]byte("xy"))
	require.False(t, ok)
}

func TestBuilderRejectsInterleavedPrefix(t *testing.T) {
	builder := NewBuilder(FixedPrefix(3))
	builder.Add([]byte("aaa-1"), 0)
	builder.Add([]byte("bbb-1"), 0)
	builder.Add([]byte("aaa-2"), 1)
	_, err := builder.Finish()
	require.Error(t, err)
}

func TestApproximateMemoryUsage(t *testing.T) {
	builder := NewBuilder(FixedPrefix(3))
	builder.Add([]byte("aaa-1"), 0)
	index, err := builder.Finish()
	require.NoError(t, err)
	require.Greater(t, index.ApproximateMemoryUsage(), 0)
}

// buildIndexedBlock encodes the keys and derives the hash index the way a
// table writer would: one Add per key with its restart block.
func buildIndexedBlock(t *testing.T, interval, prefixLen int, keys []string) *block.Block {
	t.Helper()
	builder := block.NewBuilder(interval)
	for _, k := range keys {
		require.NoError(t, builder.Add([]byte(k), []byte("v:"+k)))
	}
	b := block.NewBlock(builder.Finish())

	ixBuilder := NewBuilder(FixedPrefix(prefixLen))
	it := b.NewIterator(block.BytewiseComparator, nil, true)
	for it.SeekToFirst(); it.Valid(); it.Next() {
		ixBuilder.Add(it.Key(), it.RestartIndex())
	}
	require.NoError(t, it.Error())
	index, err := ixBuilder.Finish()
	require.NoError(t, err)
	b.SetHashIndex(index)
	return b
}

func testKeys() []string {
	var keys []string
	for _, prefix := range []string{"acc", "idx", "row", "zzz"} {
		for i := 0; i < 13; i++ {
			keys = append(keys, fmt.Sprintf("%s-%04d", prefix, i))
		}
	}
	return keys
}

func TestHashSeekMatchesTotalOrderSeek(t *testing.T) {
	keys := testKeys()
	b := buildIndexedBlock(t, 4, 3, keys)

	hashed := b.NewIterator(block.BytewiseComparator, nil, false)
	plain := b.NewIterator(block.BytewiseComparator, nil, true)

	// Every target whose prefix exists in the block must land identically
	// with and without the accelerator.
	var targets []string
	for _, k := range keys {
		targets = append(targets, k, k+"0", k[:len(k)-1])
	}
	for _, target := range targets {
		hashed.Seek([]byte(target))
		plain.Seek([]byte(target))
		require.NoError(t, hashed.Error(), "target %q", target)
		require.Equal(t, plain.Valid(), hashed.Valid(), "target %q", target)
		if plain.Valid() {
			require.Equal(t, plain.Key(), hashed.Key(), "target %q", target)
			require.Equal(t, plain.Value(), hashed.Value(), "target %q", target)
		}
	}
}

func TestHashSeekMissingPrefix(t *testing.T) {
	b := buildIndexedBlock(t, 4, 3, testKeys())
	it := b.NewIterator(block.BytewiseComparator, nil, false)

	// A prefix the index never saw proves the key absent; no fallback scan.
	it.Seek([]byte("nop-0001"))
	require.False(t, it.Valid())
	require.NoError(t, it.Error())
}

func TestTotalOrderSeekBypassesIndex(t *testing.T) {
	b := buildIndexedBlock(t, 4, 3, testKeys())
	it := b.NewIterator(block.BytewiseComparator, nil, true)

	// Bypassing the accelerator, a missing prefix still finds the successor.
	it.Seek([]byte("nop-0001"))
	require.True(t, it.Valid())
	require.Equal(t, "row-0000", string(it.Key()))
}
