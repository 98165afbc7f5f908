package notebook

import (
	"github.com/cespare/xxhash/v2"
)

// KnownSet records answer texts already seen in a tab by content hash.
//
// Hashes are non-cryptographic and collisions are accepted: the set answers
// "seen before?" for tens of exchanges per session, it is not a security
// boundary. Storing hashes keeps memory flat for long sessions.
type KnownSet map[uint64]struct{}

// NewKnownSet returns a set seeded with texts.
func NewKnownSet(texts ...string) KnownSet {
	set := make(KnownSet, len(texts))
	for _, text := range texts {
		set.Add(text)
	}
	return set
}

// Add records text.
func (k KnownSet) Add(text string) {
	k[hashText(text)] = struct{}{}
}

// Contains reports whether text was recorded.
func (k KnownSet) Contains(text string) bool {
	_, ok := k[hashText(text)]
	return ok
}

// Len returns the number of distinct hashes.
func (k KnownSet) Len() int {
	return len(k)
}

// Clone returns an independent copy.
func (k KnownSet) Clone() KnownSet {
	out := make(KnownSet, len(k))
	for h := range k {
		out[h] = struct{}{}
	}
	return out
}

func hashText(text string) uint64 {
	return xxhash.Sum64String(text)
}
