package fd

import (
	"fmt"
	"iter"

	"github.com/calvinalkan/secio/pkg/match"
)

// linesBlockSize is the pread window used by [File.Lines]. The scan never
// buffers more than one window plus an unfinished span.
const linesBlockSize = 32 * 1024

// LinesOptions configures [File.Lines].
type LinesOptions struct {
	// Start is the first byte of the scanned range.
	// Nil means the current cursor.
	Start *int64

	// Stop is the exclusive end of the scanned range.
	// Nil means end of file, sized when iteration begins.
	Stop *int64

	// KeepDelimiter keeps the delimiter bytes at the end of each span
	// instead of stripping them.
	KeepDelimiter bool
}

// Lines returns a lazy sequence of the spans between successive delimiter
// occurrences in [start, stop), located with the package's substring
// matcher.
//
// The sequence is finite and re-invocable; each invocation is a fresh scan
// that resolves its defaults (cursor, end of file) at that moment. The
// scan streams through a fixed-size positioned-read window, so the cursor
// is never disturbed and the whole range is never held in memory.
//
// Content after the final delimiter is yielded as the last span; a range
// ending exactly on a delimiter produces no trailing empty span. The
// delimiter must be non-empty and the range bounds non-negative, otherwise
// the first yield reports [ErrInvalidArgument].
func (f *File) Lines(delim []byte, opts LinesOptions) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		m, err := match.New(delim)
		if err != nil {
			yield(nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err))

			return
		}

		start, stop, err := f.resolveRange(opts.Start, opts.Stop)
		if err != nil {
			yield(nil, err)

			return
		}

		f.scanLines(yield, m, start, stop, opts.KeepDelimiter)
	}
}

func (f *File) scanLines(yield func([]byte, error) bool, m *match.Matcher, start, stop int64, keep bool) {
	dlen := int64(m.Len())

	var buf []byte

	pos := start

	for {
		// Top up the buffer until it holds a delimiter or the range
		// is exhausted.
		for pos < stop && !m.Contains(buf) {
			want := min(int64(linesBlockSize), stop-pos)

			chunk, err := f.Pread(want, pos)
			if err != nil {
				yield(nil, err)

				return
			}

			if len(chunk) == 0 {
				// End of file before the requested stop.
				pos = stop

				break
			}

			pos += int64(len(chunk))
			buf = append(buf, chunk...)
		}

		off := m.First(buf)
		if off < 0 {
			break
		}

		span := buf[:off]
		if keep {
			span = buf[:int64(off)+dlen]
		}

		if !yield(cloneBytes(span), nil) {
			return
		}

		buf = buf[int64(off)+dlen:]
	}

	// Tail after the last delimiter.
	if len(buf) > 0 {
		yield(cloneBytes(buf), nil)
	}
}

// ChunksOptions configures [File.Chunks].
type ChunksOptions struct {
	// Start is the first byte of the covered range. Nil means 0.
	Start *int64

	// Stop is the exclusive end of the covered range.
	// Nil means end of file, sized when iteration begins.
	Stop *int64
}

// Chunks returns a lazy sequence of non-overlapping positioned reads of
// length size covering [start, stop); the last chunk may be shorter.
//
// Built purely on [File.Pread], so the cursor is never disturbed. The
// sequence is finite and re-invocable. A size below 1 or negative bounds
// report [ErrInvalidArgument] on the first yield.
func (f *File) Chunks(size int64, opts ChunksOptions) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		if size < 1 {
			yield(nil, fmt.Errorf("%w: chunk size %d", ErrInvalidArgument, size))

			return
		}

		zero := int64(0)

		startOpt := opts.Start
		if startOpt == nil {
			startOpt = &zero
		}

		start, stop, err := f.resolveRange(startOpt, opts.Stop)
		if err != nil {
			yield(nil, err)

			return
		}

		for pos := start; pos < stop; pos += size {
			chunk, err := f.Pread(min(size, stop-pos), pos)
			if err != nil {
				yield(nil, err)

				return
			}

			if len(chunk) == 0 {
				return
			}

			if !yield(chunk, nil) {
				return
			}
		}
	}
}

// resolveRange fills the default bounds (cursor, end of file) and
// validates them.
func (f *File) resolveRange(startOpt, stopOpt *int64) (start, stop int64, err error) {
	start = f.pos
	if startOpt != nil {
		start = *startOpt
	}

	if stopOpt != nil {
		stop = *stopOpt
	} else {
		stop, err = f.Size()
		if err != nil {
			return 0, 0, err
		}
	}

	if start < 0 || stop < 0 {
		return 0, 0, fmt.Errorf("%w: range [%d, %d)", ErrInvalidArgument, start, stop)
	}

	return start, stop, nil
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)

	return out
}
