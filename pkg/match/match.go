// Package match provides linear-time substring search over byte sequences.
//
// A [Matcher] is compiled once from a pattern and can then be run against
// any number of sources. The search is a Knuth-Morris-Pratt variant that
// precomputes a forward-shift table of size len(pattern)+1 from the pattern
// alone, so scanning a source never re-examines matched bytes beyond the
// shift-table lookahead.
//
// All occurrences are reported, including overlapping ones: the pattern
// "aa" occurs in "aaaa" at offsets 0, 1 and 2.
//
// Example:
//
//	m, err := match.New([]byte("ab"))
//	if err != nil {
//	    return err
//	}
//	for off := range m.All([]byte("abcab")) {
//	    fmt.Println(off) // 0, 3
//	}
package match

import (
	"errors"
	"iter"
)

// ErrEmptyPattern is returned by [New] for a zero-length pattern.
//
// An empty pattern is degenerate (its shift table has a single entry and
// every offset would "match"), so it is rejected outright instead of being
// given arbitrary semantics.
var ErrEmptyPattern = errors.New("empty pattern")

// Matcher is a compiled search pattern.
//
// A Matcher is immutable after [New] and safe for concurrent use. Searches
// are re-invocable: every call to [Matcher.All] starts a fresh scan.
type Matcher struct {
	pattern []byte
	shifts  []int
}

// New compiles pattern into a [Matcher].
//
// The pattern is copied; the caller may reuse its buffer. Returns
// [ErrEmptyPattern] if pattern is empty.
func New(pattern []byte) (*Matcher, error) {
	if len(pattern) == 0 {
		return nil, ErrEmptyPattern
	}

	p := make([]byte, len(pattern))
	copy(p, pattern)

	return &Matcher{
		pattern: p,
		shifts:  buildShifts(p),
	}, nil
}

// Pattern returns a copy of the compiled pattern.
func (m *Matcher) Pattern() []byte {
	p := make([]byte, len(m.pattern))
	copy(p, m.pattern)

	return p
}

// Len returns the pattern length in bytes.
func (m *Matcher) Len() int {
	return len(m.pattern)
}

// All returns a lazy sequence of the starting offsets of every occurrence
// of the pattern in source, in ascending order.
//
// Overlapping occurrences are all reported. The sequence is finite and
// re-invocable, but a single scan cannot be resumed once its consumer
// stops early. To search a sub-range, slice the source; offsets are
// relative to the slice.
func (m *Matcher) All(source []byte) iter.Seq[int] {
	return func(yield func(int) bool) {
		plen := len(m.pattern)
		start := 0
		mlen := 0

		for _, b := range source {
			// Fold the running match using the shift table until the
			// next byte can extend it (or the window is empty).
			for mlen == plen || (mlen >= 0 && m.pattern[mlen] != b) {
				s := m.shifts[mlen]
				start += s
				mlen -= s
			}

			mlen++

			if mlen == plen {
				if !yield(start) {
					return
				}
			}
		}
	}
}

// First returns the offset of the first occurrence of the pattern in
// source, or -1 if the pattern does not occur.
func (m *Matcher) First(source []byte) int {
	for off := range m.All(source) {
		return off
	}

	return -1
}

// Contains reports whether the pattern occurs in source.
func (m *Matcher) Contains(source []byte) bool {
	return m.First(source) >= 0
}

// buildShifts computes the forward-shift table for p.
//
// shifts[k] is the distance the candidate window advances when a match of
// length k cannot be extended. It is derived by self-comparison of the
// pattern (a forward-shift encoding of the classic KMP failure function)
// and has len(p)+1 entries so a full match (k == len(p)) can also be
// folded, which is what makes overlapping occurrences come out.
func buildShifts(p []byte) []int {
	shifts := make([]int, len(p)+1)
	for i := range shifts {
		shifts[i] = 1
	}

	shift := 1
	for pos := range p {
		for shift <= pos && p[pos] != p[pos-shift] {
			shift += shifts[pos-shift]
		}

		shifts[pos+1] = shift
	}

	return shifts
}
