package block

import (
	"fmt"
	"testing"
)

func TestForwardIteration(t *testing.T) {
	for _, interval := range []int{1, 2, 16, 128} {
		t.Run(fmt.Sprintf("interval=%d", interval), func(t *testing.T) {
			keys, values := numberedKeys(100)
			b := NewBlock(buildTestBlock(t, interval, keys, values))
			it := b.NewIterator(BytewiseComparator, nil, false)

			i := 0
			for it.SeekToFirst(); it.Valid(); it.Next() {
				if i >= len(keys) {
					t.Fatalf("Iterator produced more than %d entries", len(keys))
				}
				if string(it.Key()) != keys[i] {
					t.Errorf("Entry %d key = %q, want %q", i, it.Key(), keys[i])
				}
				if string(it.Value()) != values[i] {
					t.Errorf("Entry %d value = %q, want %q", i, it.Value(), values[i])
				}
				i++
			}
			if err := it.Error(); err != nil {
				t.Fatalf("Iteration failed: %v", err)
			}
			if i != len(keys) {
				t.Errorf("Got %d entries, want %d", i, len(keys))
			}
		})
	}
}

func TestBackwardIteration(t *testing.T) {
	for _, interval := range []int{1, 3, 16} {
		t.Run(fmt.Sprintf("interval=%d", interval), func(t *testing.T) {
			keys, values := numberedKeys(60)
			b := NewBlock(buildTestBlock(t, interval, keys, values))
			it := b.NewIterator(BytewiseComparator, nil, false)

			i := len(keys) - 1
			for it.SeekToLast(); it.Valid(); it.Prev() {
				if i < 0 {
					t.Fatalf("Iterator produced more than %d entries", len(keys))
				}
				if string(it.Key()) != keys[i] {
					t.Errorf("Entry %d key = %q, want %q", i, it.Key(), keys[i])
				}
				if string(it.Value()) != values[i] {
					t.Errorf("Entry %d value = %q, want %q", i, it.Value(), values[i])
				}
				i--
			}
			if err := it.Error(); err != nil {
				t.Fatalf("Backward iteration failed: %v", err)
			}
			if i != -1 {
				t.Errorf("Stopped with %d entries missing", i+1)
			}
		})
	}
}

// The worked example: three keys, a single restart point, exact positions.
func TestExampleBlock(t *testing.T) {
	keys := []string{"apple", "applesauce", "banana"}
	values := []string{"1", "2", "3"}
	b := NewBlock(buildTestBlock(t, 16, keys, values))
	if got := b.NumRestarts(); got != 1 {
		t.Fatalf("NumRestarts = %d, want 1", got)
	}
	it := b.NewIterator(BytewiseComparator, nil, false)

	it.SeekToFirst()
	for i := range keys {
		if !it.Valid() {
			t.Fatalf("Invalid at entry %d", i)
		}
		if string(it.Key()) != keys[i] || string(it.Value()) != values[i] {
			t.Errorf("Entry %d = (%q, %q), want (%q, %q)", i, it.Key(), it.Value(), keys[i], values[i])
		}
		it.Next()
	}
	if it.Valid() {
		t.Error("Iterator valid past the last entry")
	}
	if it.Error() != nil {
		t.Errorf("Scan errored: %v", it.Error())
	}

	it.Seek([]byte("banan"))
	if !it.Valid() || string(it.Key()) != "banana" || string(it.Value()) != "3" {
		t.Errorf(`Seek("banan") = (%q, %q), want ("banana", "3")`, it.Key(), it.Value())
	}

	it.Seek([]byte("cherry"))
	if it.Valid() {
		t.Errorf(`Seek("cherry") landed on %q, want invalid`, it.Key())
	}
	if it.Error() != nil {
		t.Errorf(`Seek("cherry") errored: %v`, it.Error())
	}
}

func TestSeekAllTargets(t *testing.T) {
	for _, interval := range []int{1, 4, 16} {
		t.Run(fmt.Sprintf("interval=%d", interval), func(t *testing.T) {
			keys, values := numberedKeys(40)
			b := NewBlock(buildTestBlock(t, interval, keys, values))
			it := b.NewIterator(BytewiseComparator, nil, false)

			// Exact keys land on themselves.
			for i, key := range keys {
				it.Seek([]byte(key))
				if !it.Valid() || string(it.Key()) != key {
					t.Fatalf("Seek(%q) = %q, want exact match", key, it.Key())
				}
				if string(it.Value()) != values[i] {
					t.Errorf("Seek(%q) value = %q, want %q", key, it.Value(), values[i])
				}
			}

			// Targets between keys land on the successor.
			for i, key := range keys {
				it.Seek([]byte(key + "\x00"))
				if i == len(keys)-1 {
					if it.Valid() {
						t.Errorf("Seek past last key landed on %q", it.Key())
					}
					continue
				}
				if !it.Valid() || string(it.Key()) != keys[i+1] {
					t.Errorf("Seek(%q+0) = %q, want %q", key, it.Key(), keys[i+1])
				}
			}

			// Before the first key lands on the first key.
			it.Seek([]byte(""))
			if !it.Valid() || string(it.Key()) != keys[0] {
				t.Errorf("Seek(empty) = %q, want %q", it.Key(), keys[0])
			}
		})
	}
}

func TestSeekIdempotent(t *testing.T) {
	keys, values := numberedKeys(30)
	b := NewBlock(buildTestBlock(t, 5, keys, values))
	it := b.NewIterator(BytewiseComparator, nil, false)

	for _, target := range []string{"key000", "key013", "key0135", "zzz", ""} {
		it.Seek([]byte(target))
		firstValid := it.Valid()
		firstKey := append([]byte(nil), it.Key()...)

		it.Seek([]byte(target))
		if it.Valid() != firstValid {
			t.Errorf("Seek(%q) validity changed on repeat", target)
		}
		if firstValid && string(it.Key()) != string(firstKey) {
			t.Errorf("Seek(%q) = %q then %q", target, firstKey, it.Key())
		}
	}
}

func TestNextAfterSeek(t *testing.T) {
	keys, values := numberedKeys(20)
	b := NewBlock(buildTestBlock(t, 4, keys, values))
	it := b.NewIterator(BytewiseComparator, nil, false)

	it.Seek([]byte("key007"))
	for i := 7; i < len(keys); i++ {
		if !it.Valid() || string(it.Key()) != keys[i] {
			t.Fatalf("Entry after seek = %q, want %q", it.Key(), keys[i])
		}
		it.Next()
	}
	if it.Valid() {
		t.Error("Iterator valid past the end")
	}
}

func TestPrevAfterSeek(t *testing.T) {
	keys, values := numberedKeys(20)
	b := NewBlock(buildTestBlock(t, 4, keys, values))
	it := b.NewIterator(BytewiseComparator, nil, false)

	it.Seek([]byte("key011"))
	for i := 11; i >= 0; i-- {
		if !it.Valid() || string(it.Key()) != keys[i] {
			t.Fatalf("Entry walking back = %q, want %q", it.Key(), keys[i])
		}
		it.Prev()
	}
	if it.Valid() {
		t.Error("Iterator valid before the first entry")
	}
	if it.Error() != nil {
		t.Errorf("Prev walk errored: %v", it.Error())
	}
}

func TestSeekOnUninitializedIterator(t *testing.T) {
	var it Iter
	it.SeekToFirst()
	it.SeekToLast()
	it.Seek([]byte("anything"))
	if it.Valid() {
		t.Error("Uninitialized iterator became valid")
	}
	if it.Error() != nil {
		t.Errorf("Uninitialized iterator errored: %v", it.Error())
	}
}

// Values must be served as views into the block, not copies.
func TestValueAliasesBlock(t *testing.T) {
	contents := buildTestBlock(t, 16, []string{"k"}, []string{"hello"})
	b := NewBlock(contents)
	it := b.NewIterator(BytewiseComparator, nil, false)
	it.SeekToFirst()
	if !it.Valid() {
		t.Fatal("Iterator invalid")
	}
	// Entry layout: 3 header bytes, 1 key byte, then the value at offset 4.
	contents[4] = 'H'
	if string(it.Value()) != "Hello" {
		t.Errorf("Value = %q; expected a zero-copy view reflecting the mutation", it.Value())
	}
}
