package fd

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDescriptor is returned when wrapping a negative raw
	// descriptor.
	ErrInvalidDescriptor = errors.New("invalid file descriptor")

	// ErrClosed is returned by any operation on a handle after Close.
	ErrClosed = errors.New("file descriptor is closed")

	// ErrInvalidArgument is returned for negative sizes, positions and
	// lengths, and for malformed index ranges.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotReadable is returned when the descriptor's live status flags
	// say it is write- or append-only.
	ErrNotReadable = errors.New("descriptor is not readable")

	// ErrNotWriteable is returned when the descriptor's live status flags
	// do not allow writing.
	ErrNotWriteable = errors.New("descriptor is not writeable")

	// ErrInsufficientSpace is returned when the oracle denies the space
	// pre-flight check before a write.
	ErrInsufficientSpace = errors.New("not enough free space on device")

	// ErrInsufficientInodes is returned when the oracle denies the inode
	// headroom check after a creating open; the created entry has been
	// rolled back (see [Opener.Open]).
	ErrInsufficientInodes = errors.New("not enough free inodes on device")

	// ErrInvalidPermissions is returned when the oracle rejects the
	// permission bits of an open request before anything is touched.
	ErrInvalidPermissions = errors.New("invalid permission bits")

	// ErrUnsupportedOpenMode is returned for an open mode outside the
	// [OpenMode] enumeration, before anything is touched.
	ErrUnsupportedOpenMode = errors.New("unsupported open mode")

	// ErrWrongKind is returned by [Wrap] helpers when a descriptor's
	// stat type does not match the requested variant.
	ErrWrongKind = errors.New("descriptor kind mismatch")
)

// IncompleteWriteError reports a write whose retry budget was exhausted by
// consecutive zero-byte results.
//
// Written counts the bytes transferred before the budget ran out; the
// remainder of the input was not written. The caller's cursor is not
// advanced.
type IncompleteWriteError struct {
	// Fd identifies the descriptor the write targeted.
	Fd int
	// Pos is the file offset the failed write started at.
	Pos int64
	// Written is the number of bytes transferred before giving up.
	Written int64
	// Attempts is the retry budget that was exhausted.
	Attempts int
}

func (e *IncompleteWriteError) Error() string {
	return fmt.Sprintf("incomplete write on fd %d at offset %d: %d bytes written, %d attempts exhausted",
		e.Fd, e.Pos, e.Written, e.Attempts)
}
