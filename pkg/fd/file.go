package fd

import (
	"fmt"
	"io"
)

// File is a regular file: an [FD] plus a logical cursor.
//
// The cursor is a non-negative byte offset maintained entirely in the
// handle, decoupled from any kernel-held offset — all I/O goes through
// pread/pwrite — so positioned and sequential calls compose predictably
// and concurrent callers using distinct explicit offsets never disturb
// each other's position.
//
// Permission gates ([ErrNotReadable], [ErrNotWriteable]) are evaluated
// from the live descriptor status flags on every call, never from a value
// cached at construction: external code may change the flags between
// calls, and this layer's contract is to observe that.
type File struct {
	*FD

	pos      int64
	attempts int
	oracle   Oracle
}

// NewFile wraps an already-open raw descriptor of a regular file. Most
// callers want [Opener.Open] instead; this exists for descriptors obtained
// elsewhere (inherited, received over a socket, dup'ed).
func NewFile(raw int, opts Options) (*File, error) {
	return newFile(raw, opts.withDefaults())
}

// newFile assumes opts already carries defaults.
func newFile(raw int, opts Options) (*File, error) {
	d, err := New(raw, opts)
	if err != nil {
		return nil, err
	}

	return &File{
		FD:       d,
		attempts: opts.WriteAttempts,
		oracle:   opts.Oracle,
	}, nil
}

// Cursor returns the current logical position.
func (f *File) Cursor() int64 {
	return f.pos
}

// MoveTo relocates the cursor. Negative positions fail with
// [ErrInvalidArgument]. There is no upper bound: a cursor beyond the
// current size makes subsequent reads come back short or empty, and
// subsequent writes may create sparse content per storage semantics.
func (f *File) MoveTo(pos int64) error {
	if f.closed {
		return ErrClosed
	}

	if pos < 0 {
		return fmt.Errorf("%w: negative position %d", ErrInvalidArgument, pos)
	}

	f.pos = pos
	f.hooks.move(f.fd, pos)

	return nil
}

// Read reads up to size bytes at the cursor and advances the cursor by the
// bytes actually read. A read at or past end of file returns an empty
// slice and nil error.
//
// Fails with [ErrInvalidArgument] if size is negative and with
// [ErrNotReadable] if the live flags say the descriptor is write- or
// append-only.
func (f *File) Read(size int64) ([]byte, error) {
	chunk, err := f.preadChecked(size, f.pos, f.hooks.read)
	if err != nil {
		return nil, err
	}

	f.pos += int64(len(chunk))

	return chunk, nil
}

// ReadAll reads from the cursor to end of file (size as of this call) and
// advances the cursor past the bytes read.
func (f *File) ReadAll() ([]byte, error) {
	size, err := f.Size()
	if err != nil {
		return nil, err
	}

	remaining := size - f.pos
	if remaining < 0 {
		remaining = 0
	}

	return f.Read(remaining)
}

// Pread reads up to size bytes at pos. The cursor is unaffected — this is
// the random-access path.
//
// Fails with [ErrInvalidArgument] if size or pos is negative and with
// [ErrNotReadable] per the live flags.
func (f *File) Pread(size, pos int64) ([]byte, error) {
	if pos < 0 {
		return nil, fmt.Errorf("%w: negative position %d", ErrInvalidArgument, pos)
	}

	return f.preadChecked(size, pos, f.hooks.pread)
}

func (f *File) preadChecked(size, pos int64, hook func(fd int, size, pos int64)) ([]byte, error) {
	if f.closed {
		return nil, ErrClosed
	}

	if size < 0 {
		return nil, fmt.Errorf("%w: negative size %d", ErrInvalidArgument, size)
	}

	readable, err := f.readable()
	if err != nil {
		return nil, err
	}

	if !readable {
		return nil, fmt.Errorf("%w: fd %d", ErrNotReadable, f.fd)
	}

	hook(f.fd, size, pos)

	if size == 0 {
		return []byte{}, nil
	}

	buf := make([]byte, size)

	n, err := f.sys.Pread(f.fd, buf, pos)
	if err != nil {
		return nil, fmt.Errorf("pread fd %d at %d: %w", f.fd, pos, err)
	}

	return buf[:n], nil
}

// Write writes data at the cursor and advances the cursor by the bytes
// written. Empty input is a no-op.
//
// The oracle's space predicate gates the write: a denial fails with
// [ErrInsufficientSpace] before anything is written. Note the documented
// gap: the check and the write are not atomic, so concurrent writers can
// race past it.
//
// Each attempt may transfer fewer bytes than requested. A zero-byte result
// consumes one unit of the attempt budget; a partial result makes progress
// and resets the budget. Exhausting the budget on consecutive zero-byte
// results fails with [*IncompleteWriteError]. The cursor only advances on
// full success.
func (f *File) Write(data []byte) (int64, error) {
	n, err := f.pwriteChecked(data, f.pos, f.hooks.write)
	if err != nil {
		return n, err
	}

	f.pos += n

	return n, nil
}

// Pwrite writes data at pos with the same gating and retry semantics as
// [File.Write]. The cursor is unaffected.
func (f *File) Pwrite(data []byte, pos int64) (int64, error) {
	if pos < 0 {
		return 0, fmt.Errorf("%w: negative position %d", ErrInvalidArgument, pos)
	}

	return f.pwriteChecked(data, pos, f.hooks.pwrite)
}

func (f *File) pwriteChecked(data []byte, pos int64, hook func(fd int, n int, pos int64)) (int64, error) {
	if f.closed {
		return 0, ErrClosed
	}

	writeable, err := f.writeable()
	if err != nil {
		return 0, err
	}

	if !writeable {
		return 0, fmt.Errorf("%w: fd %d", ErrNotWriteable, f.fd)
	}

	if len(data) == 0 {
		return 0, nil
	}

	if !f.oracle.SpaceAvailable(f.fd, int64(len(data))) {
		return 0, fmt.Errorf("%w: fd %d, %d bytes", ErrInsufficientSpace, f.fd, len(data))
	}

	hook(f.fd, len(data), pos)

	return f.writeRetry(data, pos)
}

// writeRetry is the bounded retry loop shared by Write and Pwrite.
func (f *File) writeRetry(data []byte, pos int64) (int64, error) {
	total := int64(len(data))
	budget := f.attempts

	var written int64

	for written < total {
		n, err := f.sys.Pwrite(f.fd, data[written:], pos+written)
		if err != nil {
			return written, fmt.Errorf("pwrite fd %d at %d: %w", f.fd, pos+written, err)
		}

		if n == 0 {
			budget--
			if budget == 0 {
				return written, &IncompleteWriteError{
					Fd:       f.fd,
					Pos:      pos,
					Written:  written,
					Attempts: f.attempts,
				}
			}

			continue
		}

		written += int64(n)
		budget = f.attempts
	}

	return written, nil
}

// Truncate resizes the file to length bytes.
//
// Negative lengths fail with [ErrInvalidArgument]; the live-flag write
// gate applies. If the prior size exceeded length the cursor is forcibly
// relocated to length; extension never relocates a cursor that was within
// the old range.
func (f *File) Truncate(length int64) error {
	if f.closed {
		return ErrClosed
	}

	if length < 0 {
		return fmt.Errorf("%w: negative length %d", ErrInvalidArgument, length)
	}

	writeable, err := f.writeable()
	if err != nil {
		return err
	}

	if !writeable {
		return fmt.Errorf("%w: fd %d", ErrNotWriteable, f.fd)
	}

	size, err := f.Size()
	if err != nil {
		return err
	}

	if err := f.sys.Ftruncate(f.fd, length); err != nil {
		return fmt.Errorf("ftruncate fd %d to %d: %w", f.fd, length, err)
	}

	f.hooks.truncate(f.fd, length)

	// On shrink the cursor is forcibly relocated to the new end, even if
	// it was below it. Extension leaves the cursor alone.
	if size > length {
		if err := f.MoveTo(length); err != nil {
			return err
		}
	}

	return nil
}

// Index reads the single byte at offset i with one positioned read.
// Returns [io.EOF] if i is at or past end of file.
func (f *File) Index(i int64) (byte, error) {
	chunk, err := f.Pread(1, i)
	if err != nil {
		return 0, err
	}

	if len(chunk) == 0 {
		return 0, io.EOF
	}

	return chunk[0], nil
}

// Range reads the bytes at offsets start, start+step, ... below stop.
//
// A unit step is served by a single positioned read of the whole range. A
// larger step issues one single-byte positioned read per selected offset —
// intentionally unoptimized; callers with hot strided access patterns
// should read the span once and stride in memory. Offsets past end of file
// select nothing.
//
// Fails with [ErrInvalidArgument] if start or stop is negative, stop is
// less than start, or step is less than 1.
func (f *File) Range(start, stop, step int64) ([]byte, error) {
	if start < 0 || stop < 0 || stop < start {
		return nil, fmt.Errorf("%w: range [%d, %d)", ErrInvalidArgument, start, stop)
	}

	if step < 1 {
		return nil, fmt.Errorf("%w: step %d", ErrInvalidArgument, step)
	}

	if step == 1 {
		return f.Pread(stop-start, start)
	}

	out := make([]byte, 0, (stop-start+step-1)/step)

	for pos := start; pos < stop; pos += step {
		chunk, err := f.Pread(1, pos)
		if err != nil {
			return nil, err
		}

		if len(chunk) == 0 {
			break
		}

		out = append(out, chunk[0])
	}

	return out, nil
}
