// Package iterator defines the ordered iteration contract shared by the
// storage components. Block cursors satisfy it, and tooling consumes it
// without knowing which concrete decoder sits underneath.
package iterator

// Iterator walks sorted key-value entries. Implementations are positional:
// after any call the iterator is either on an entry (Valid) or off the end,
// and a non-nil Error marks the iterator permanently unusable.
type Iterator interface {
	// SeekToFirst positions the iterator at the first key.
	SeekToFirst()

	// SeekToLast positions the iterator at the last key.
	SeekToLast()

	// Seek positions the iterator at the first key >= target, or past the
	// end when no such key exists.
	Seek(target []byte)

	// Next advances to the following key. Call only when Valid.
	Next()

	// Prev steps back to the preceding key. Call only when Valid.
	Prev()

	// Key returns the current key. Call only when Valid; the slice is
	// invalidated by the next positioning call.
	Key() []byte

	// Value returns the current value under the same rules as Key.
	Value() []byte

	// Valid reports whether the iterator is positioned on an entry.
	Valid() bool

	// Error returns the terminal corruption status, or nil. Exhaustion is
	// not an error: an iterator off the end with a nil Error simply ran out
	// of entries.
	Error() error
}
