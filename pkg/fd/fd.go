// Package fd wraps raw OS file descriptors with lifecycle discipline,
// resource-exhaustion gates, and a retry-bounded positioned I/O path.
//
// The main types are:
//   - [FD]: owns one raw descriptor; lifecycle, metadata, flag access
//   - [Opener]: resolves a symbolic [OpenMode] into an open [File],
//     enforcing permission and inode-headroom policy with rollback
//   - [File]: a regular file with a logical cursor, bounded-retry
//     writes, truncation and delimiter/chunk iteration
//   - [Oracle]: the resource-policy predicates consulted before
//     creating and destructive operations
//   - [Syscalls]: the injectable OS surface ([Sys] is the real one,
//     [ChaosSyscalls] injects faults for tests)
//
// Everything here is synchronous and unlocked: operations block until
// completion or failure, and cross-goroutine or cross-process exclusion is
// the caller's concern ([FD.Flock] provides the primitive). Positioned
// operations take explicit offsets, so callers using distinct offsets never
// interfere through a shared kernel cursor.
//
// Example:
//
//	o := fd.NewOpener(fd.Options{})
//	f, err := o.Open("data.bin", fd.WriteOrCreate, 0o644)
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//
//	if _, err := f.Write([]byte("hello")); err != nil {
//	    return err
//	}
package fd

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Handle is the capability set shared by every descriptor kind: metadata,
// status flags and close. Kind-specific operations live on the concrete
// variant ([File], [Directory], ...), not here.
type Handle interface {
	Fileno() int
	Close() error
	Stat() (unix.Stat_t, error)
	Flags() (int, error)
	SetFlags(flags int) error
}

// Options configures handle construction. The zero value selects the real
// syscall layer, the statfs-backed oracle, no hooks, and a write retry
// budget of 3.
type Options struct {
	// Syscalls is the OS surface to use. Nil means [Sys].
	Syscalls Syscalls

	// Oracle answers the resource-policy predicates. Nil means a
	// zero-value [StatfsOracle] sharing the same syscall layer.
	Oracle Oracle

	// Hooks receives descriptor and I/O notifications. Nil disables.
	Hooks *Hooks

	// WriteAttempts is the retry budget for [File.Write] and
	// [File.Pwrite]. Zero means 3; negative is rejected by [NewOpener].
	WriteAttempts int
}

const defaultWriteAttempts = 3

func (o Options) withDefaults() Options {
	if o.Syscalls == nil {
		o.Syscalls = NewSys()
	}

	if o.Oracle == nil {
		o.Oracle = &StatfsOracle{Sys: o.Syscalls}
	}

	if o.WriteAttempts == 0 {
		o.WriteAttempts = defaultWriteAttempts
	}

	return o
}

// FD owns one raw file descriptor.
//
// Ownership is exclusive: wrapping the same raw descriptor in two handles,
// or keeping the raw value around and closing it elsewhere, breaks the
// lifecycle invariant. After [FD.Close], every operation fails with
// [ErrClosed]; Close itself is idempotent.
//
// Metadata accessors are uncached passthroughs — each call is a live
// fstat(2), so concurrent external changes (chmod, chown, writes from
// other processes) are observed at call time. The same holds for status
// flags: nothing read at construction is ever trusted later.
//
// An FD is not internally synchronized. Callers that share a handle across
// goroutines must provide their own exclusion.
type FD struct {
	fd     int
	closed bool
	sys    Syscalls
	hooks  *Hooks
}

// New wraps raw in an [FD]. Returns [ErrInvalidDescriptor] if raw is
// negative. The handle takes ownership of raw: closing the handle closes
// the descriptor.
func New(raw int, opts Options) (*FD, error) {
	if raw < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDescriptor, raw)
	}

	opts = opts.withDefaults()

	d := &FD{
		fd:    raw,
		sys:   opts.Syscalls,
		hooks: opts.Hooks,
	}

	d.hooks.descriptorNew(raw)

	return d, nil
}

// Fileno returns the raw descriptor value. The value is only meaningful
// while the handle is open.
func (d *FD) Fileno() int {
	return d.fd
}

// Close releases the descriptor exactly once. Subsequent calls return nil
// and have no effect, so it is always safe to `defer Close()` and also
// close early on the success path.
func (d *FD) Close() error {
	if d.closed {
		return nil
	}

	d.closed = true
	err := d.sys.Close(d.fd)
	d.hooks.descriptorClose(d.fd)

	if err != nil {
		return fmt.Errorf("closing fd %d: %w", d.fd, err)
	}

	return nil
}

// Stat returns the descriptor's stat record, fetched at call time.
func (d *FD) Stat() (unix.Stat_t, error) {
	var st unix.Stat_t

	if d.closed {
		return st, ErrClosed
	}

	if err := d.sys.Fstat(d.fd, &st); err != nil {
		return st, fmt.Errorf("fstat fd %d: %w", d.fd, err)
	}

	return st, nil
}

// Mode returns the inode protection mode (type and permission bits).
func (d *FD) Mode() (uint32, error) {
	st, err := d.Stat()

	return uint32(st.Mode), err
}

// Inode returns the inode number.
func (d *FD) Inode() (uint64, error) {
	st, err := d.Stat()

	return uint64(st.Ino), err
}

// Device returns the id of the device the inode resides on.
func (d *FD) Device() (uint64, error) {
	st, err := d.Stat()

	return uint64(st.Dev), err
}

// Nlink returns the number of hard links to the inode.
func (d *FD) Nlink() (uint64, error) {
	st, err := d.Stat()

	return uint64(st.Nlink), err
}

// UID returns the owner's user id.
func (d *FD) UID() (uint32, error) {
	st, err := d.Stat()

	return st.Uid, err
}

// GID returns the owner's group id.
func (d *FD) GID() (uint32, error) {
	st, err := d.Stat()

	return st.Gid, err
}

// Size returns the size in bytes for regular files, or the amount of
// pending data for some special files.
func (d *FD) Size() (int64, error) {
	st, err := d.Stat()

	return st.Size, err
}

// AccessTime returns the last access time.
func (d *FD) AccessTime() (time.Time, error) {
	st, err := d.Stat()

	return time.Unix(st.Atim.Unix()), err
}

// ModTime returns the last modification time.
func (d *FD) ModTime() (time.Time, error) {
	st, err := d.Stat()

	return time.Unix(st.Mtim.Unix()), err
}

// ChangeTime returns the last status-change time (metadata change on
// Unix).
func (d *FD) ChangeTime() (time.Time, error) {
	st, err := d.Stat()

	return time.Unix(st.Ctim.Unix()), err
}

// Flags returns the descriptor status flags (F_GETFL), fetched live.
func (d *FD) Flags() (int, error) {
	if d.closed {
		return 0, ErrClosed
	}

	flags, err := d.sys.Getfl(d.fd)
	if err != nil {
		return 0, fmt.Errorf("F_GETFL fd %d: %w", d.fd, err)
	}

	return flags, nil
}

// SetFlags sets the descriptor status flags (F_SETFL). The kernel ignores
// bits that cannot be changed after open; failures propagate as OS errors.
func (d *FD) SetFlags(flags int) error {
	if d.closed {
		return ErrClosed
	}

	if err := d.sys.Setfl(d.fd, flags); err != nil {
		return fmt.Errorf("F_SETFL fd %d: %w", d.fd, err)
	}

	return nil
}

// Advisory lock operations for [FD.Flock].
const (
	LockShared    = unix.LOCK_SH
	LockExclusive = unix.LOCK_EX
	LockNonBlock  = unix.LOCK_NB
	Unlock        = unix.LOCK_UN
)

// Flock applies or removes an advisory flock(2) lock on the descriptor.
//
// This package never locks on its own; cross-process exclusion is built by
// callers from this primitive. flock is advisory and attaches to the open
// file, not the pathname — all cooperating processes must take it for it
// to have effect.
func (d *FD) Flock(how int) error {
	if d.closed {
		return ErrClosed
	}

	if err := d.sys.Flock(d.fd, how); err != nil {
		return fmt.Errorf("flock fd %d: %w", d.fd, err)
	}

	return nil
}

// readable reports whether the live status flags allow reading.
// Write-only descriptors (which includes append-only ones) are not
// readable.
func (d *FD) readable() (bool, error) {
	flags, err := d.Flags()
	if err != nil {
		return false, err
	}

	return flags&unix.O_ACCMODE != unix.O_WRONLY, nil
}

// writeable reports whether the live status flags allow writing: an access
// mode of write-only or read-write, or the append flag.
func (d *FD) writeable() (bool, error) {
	flags, err := d.Flags()
	if err != nil {
		return false, err
	}

	accmode := flags & unix.O_ACCMODE

	return accmode == unix.O_WRONLY || accmode == unix.O_RDWR || flags&unix.O_APPEND != 0, nil
}

// Compile-time interface check.
var _ Handle = (*FD)(nil)
