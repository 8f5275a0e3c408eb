package fd

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Syscalls is the low-level OS surface this package is written against.
//
// Production code uses [Sys]. Tests substitute implementations that fail on
// demand (see [ChaosSyscalls]) to exercise the retry and rollback paths
// without a misbehaving kernel.
//
// Error semantics are OS-native: implementations return errno-style errors
// unchanged and this package propagates them opaquely.
type Syscalls interface {
	// Open opens path with open(2) flags and permission bits.
	Open(path string, flags int, perm uint32) (int, error)

	// Close releases the descriptor.
	Close(fd int) error

	// Pread reads into p at offset off without moving any kernel cursor.
	Pread(fd int, p []byte, off int64) (int, error)

	// Pwrite writes p at offset off without moving any kernel cursor.
	// May transfer fewer bytes than len(p).
	Pwrite(fd int, p []byte, off int64) (int, error)

	// Fstat fills st from the descriptor.
	Fstat(fd int, st *unix.Stat_t) error

	// Fstatfs fills st with filesystem-level statistics for the
	// filesystem the descriptor resides on.
	Fstatfs(fd int, st *unix.Statfs_t) error

	// Getfl returns the descriptor status flags (F_GETFL).
	Getfl(fd int) (int, error)

	// Setfl sets the descriptor status flags (F_SETFL).
	Setfl(fd int, flags int) error

	// Ftruncate resizes the file to length bytes.
	Ftruncate(fd int, length int64) error

	// Unlink removes a directory entry. Used by open rollback.
	Unlink(path string) error

	// Flock applies or removes an advisory lock (flock(2)).
	Flock(fd int, how int) error

	// Dup duplicates the descriptor. Used for directory listing, where
	// the listing consumes (and closes) its own descriptor.
	Dup(fd int) (int, error)
}

// Sys implements [Syscalls] with real syscalls via golang.org/x/sys/unix.
//
// Pread, Pwrite and Flock retry EINTR internally: a signal interrupting the
// syscall is not a failure, the call just needs to be reissued. Retries are
// capped so a pathological signal storm cannot spin forever.
type Sys struct{}

// NewSys returns the real syscall layer.
func NewSys() *Sys {
	return &Sys{}
}

func (*Sys) Open(path string, flags int, perm uint32) (int, error) {
	fd, err := unix.Open(path, flags, perm)
	for errors.Is(err, unix.EINTR) {
		fd, err = unix.Open(path, flags, perm)
	}

	return fd, err
}

func (*Sys) Close(fd int) error {
	// Close is never retried on EINTR: Linux releases the descriptor
	// even when close(2) is interrupted, and a retry could close an
	// unrelated descriptor reusing the same number.
	return unix.Close(fd)
}

func (*Sys) Pread(fd int, p []byte, off int64) (int, error) {
	return ignoringEINTR2(func() (int, error) {
		return unix.Pread(fd, p, off)
	})
}

func (*Sys) Pwrite(fd int, p []byte, off int64) (int, error) {
	return ignoringEINTR2(func() (int, error) {
		return unix.Pwrite(fd, p, off)
	})
}

func (*Sys) Fstat(fd int, st *unix.Stat_t) error {
	return ignoringEINTR(func() error {
		return unix.Fstat(fd, st)
	})
}

func (*Sys) Fstatfs(fd int, st *unix.Statfs_t) error {
	return ignoringEINTR(func() error {
		return unix.Fstatfs(fd, st)
	})
}

func (*Sys) Getfl(fd int) (int, error) {
	return ignoringEINTR2(func() (int, error) {
		return unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
	})
}

func (*Sys) Setfl(fd int, flags int) error {
	_, err := ignoringEINTR2(func() (int, error) {
		return unix.FcntlInt(uintptr(fd), unix.F_SETFL, flags)
	})

	return err
}

func (*Sys) Ftruncate(fd int, length int64) error {
	return ignoringEINTR(func() error {
		return unix.Ftruncate(fd, length)
	})
}

func (*Sys) Unlink(path string) error {
	return unix.Unlink(path)
}

func (*Sys) Flock(fd int, how int) error {
	return ignoringEINTR(func() error {
		return unix.Flock(fd, how)
	})
}

func (*Sys) Dup(fd int) (int, error) {
	return ignoringEINTR2(func() (int, error) {
		return unix.Dup(fd)
	})
}

// Compile-time interface check.
var _ Syscalls = (*Sys)(nil)

// maxEINTRRetries caps EINTR retry loops. The cap should never be hit in
// practice; it exists so a broken signal setup degrades to an error instead
// of a livelock.
const maxEINTRRetries = 10000

func ignoringEINTR(fn func() error) error {
	var err error
	for range maxEINTRRetries {
		err = fn()
		if err == nil || !errors.Is(err, unix.EINTR) {
			return err
		}
	}

	return err
}

func ignoringEINTR2(fn func() (int, error)) (int, error) {
	var (
		n   int
		err error
	)

	for range maxEINTRRetries {
		n, err = fn()
		if err == nil || !errors.Is(err, unix.EINTR) {
			return n, err
		}
	}

	return n, err
}
