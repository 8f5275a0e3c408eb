package fd

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// OpenMode is a symbolic open intent: desired access mode plus existence
// precondition. The eleven modes below are the stable vocabulary for
// requesting a file — callers pick a mode, never assemble ad hoc flag
// combinations.
type OpenMode uint8

const (
	// ReadNew creates the file and opens it read-only; fails if it
	// already exists.
	ReadNew OpenMode = iota

	// ReadExisting opens an existing file read-only; fails if absent.
	ReadExisting

	// WriteNew creates the file and opens it write-only; fails if it
	// already exists.
	WriteNew

	// WriteExisting opens an existing file write-only; fails if absent.
	WriteExisting

	// WriteTruncate opens an existing file write-only and truncates it;
	// fails if absent.
	WriteTruncate

	// AppendNew creates the file and opens it append-only; fails if it
	// already exists.
	AppendNew

	// AppendExisting opens an existing file append-only; fails if
	// absent.
	AppendExisting

	// AppendTruncate opens an existing file append-only and truncates
	// it; fails if absent.
	AppendTruncate

	// ReadOrCreate opens the file read-only, creating it if absent.
	ReadOrCreate

	// WriteOrCreate opens the file write-only, creating it if absent.
	WriteOrCreate

	// AppendOrCreate opens the file append-only, creating it if absent.
	AppendOrCreate

	openModeCount
)

// openSpec maps a mode to its open(2) flags and policy obligations.
type openSpec struct {
	flags int

	// creates marks modes that may create the entry and therefore
	// require the post-open inode headroom check.
	creates bool

	// exclusive marks modes where a successful open proves this call
	// created the entry, so rollback may remove it. The or-create modes
	// may have opened a pre-existing file; rollback must not remove
	// those.
	exclusive bool
}

var openSpecs = [openModeCount]openSpec{
	ReadNew:        {flags: unix.O_RDONLY | unix.O_CREAT | unix.O_EXCL, creates: true, exclusive: true},
	ReadExisting:   {flags: unix.O_RDONLY},
	WriteNew:       {flags: unix.O_WRONLY | unix.O_CREAT | unix.O_EXCL, creates: true, exclusive: true},
	WriteExisting:  {flags: unix.O_WRONLY},
	WriteTruncate:  {flags: unix.O_WRONLY | unix.O_TRUNC},
	AppendNew:      {flags: unix.O_WRONLY | unix.O_APPEND | unix.O_CREAT | unix.O_EXCL, creates: true, exclusive: true},
	AppendExisting: {flags: unix.O_WRONLY | unix.O_APPEND},
	AppendTruncate: {flags: unix.O_WRONLY | unix.O_APPEND | unix.O_TRUNC},
	ReadOrCreate:   {flags: unix.O_RDONLY | unix.O_CREAT, creates: true},
	WriteOrCreate:  {flags: unix.O_WRONLY | unix.O_CREAT, creates: true},
	AppendOrCreate: {flags: unix.O_WRONLY | unix.O_APPEND | unix.O_CREAT, creates: true},
}

var openModeNames = [openModeCount]string{
	ReadNew:        "read-new",
	ReadExisting:   "read-existing",
	WriteNew:       "write-new",
	WriteExisting:  "write-existing",
	WriteTruncate:  "write-truncate",
	AppendNew:      "append-new",
	AppendExisting: "append-existing",
	AppendTruncate: "append-truncate",
	ReadOrCreate:   "read-or-create",
	WriteOrCreate:  "write-or-create",
	AppendOrCreate: "append-or-create",
}

// String returns the mode's symbolic name.
func (m OpenMode) String() string {
	if m >= openModeCount {
		return fmt.Sprintf("OpenMode(%d)", uint8(m))
	}

	return openModeNames[m]
}

// ParseOpenMode resolves a symbolic name (as produced by
// [OpenMode.String]) back into a mode. Returns [ErrUnsupportedOpenMode]
// for unknown names.
func ParseOpenMode(name string) (OpenMode, error) {
	for m, n := range openModeNames {
		if n == name {
			return OpenMode(m), nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnsupportedOpenMode, name)
}

// Opener resolves open intents into handles, enforcing the open-mode
// policy: permission bits are validated before anything is touched, and
// creating modes re-check inode headroom after creation, rolling back on
// denial so a rejected creation never leaves an unaccounted entry behind.
type Opener struct {
	opts Options
}

// NewOpener returns an [Opener]. The zero-value [Options] selects real
// syscalls, the statfs oracle and a write retry budget of 3. Panics if
// opts.WriteAttempts is negative — that is a programming error, not a
// runtime condition.
func NewOpener(opts Options) *Opener {
	if opts.WriteAttempts < 0 {
		panic(fmt.Sprintf("fd: negative write attempts: %d", opts.WriteAttempts))
	}

	return &Opener{opts: opts.withDefaults()}
}

// Open resolves mode and perm into an open [File] on path.
//
//  1. An unknown mode fails with [ErrUnsupportedOpenMode] before any
//     resource is touched.
//  2. Permission bits rejected by the oracle fail with
//     [ErrInvalidPermissions], also before anything is touched.
//  3. The file is opened with the mode's fixed flag set; OS errors pass
//     through unchanged.
//  4. For creating modes the oracle's inode headroom predicate runs after
//     the open. On denial the raw descriptor is closed, the entry is
//     removed if this call provably created it (the exclusive-create
//     modes), and the open fails with [ErrInsufficientInodes]. For the
//     or-create modes the entry may have pre-existed, so rollback closes
//     the descriptor but leaves the entry — the headroom check is
//     best-effort by design and racing creators can overshoot it.
//
// Any failure after the raw descriptor exists and before the handle is
// returned closes that descriptor. Callers never have to clean up a
// half-open file.
func (o *Opener) Open(path string, mode OpenMode, perm uint32) (*File, error) {
	spec, err := o.validate(mode, perm)
	if err != nil {
		return nil, err
	}

	raw, err := o.opts.Syscalls.Open(path, spec.flags, perm)
	if err != nil {
		return nil, fmt.Errorf("opening %q (%s): %w", path, mode, err)
	}

	f, err := o.wrapFile(path, raw, spec)
	if err != nil {
		return nil, err
	}

	o.opts.Hooks.fileOpen(path, mode, perm)

	return f, nil
}

// Touch creates path with perm if it does not exist, never returning a
// handle. An existing file is left untouched. The same perm validation
// and rollback discipline as [Opener.Open] applies.
func (o *Opener) Touch(path string, perm uint32) error {
	if !o.opts.Oracle.ModeValid(perm) {
		return fmt.Errorf("%w: %#o", ErrInvalidPermissions, perm)
	}

	raw, err := o.opts.Syscalls.Open(path, unix.O_RDONLY|unix.O_CREAT, perm)
	if err != nil {
		return fmt.Errorf("touching %q: %w", path, err)
	}

	if err := o.opts.Syscalls.Close(raw); err != nil {
		return fmt.Errorf("closing touched %q: %w", path, err)
	}

	return nil
}

func (o *Opener) validate(mode OpenMode, perm uint32) (openSpec, error) {
	if mode >= openModeCount {
		return openSpec{}, fmt.Errorf("%w: %d", ErrUnsupportedOpenMode, uint8(mode))
	}

	if !o.opts.Oracle.ModeValid(perm) {
		return openSpec{}, fmt.Errorf("%w: %#o", ErrInvalidPermissions, perm)
	}

	return openSpecs[mode], nil
}

// wrapFile turns a raw descriptor into a [File], running the post-open
// headroom check for creating modes. On any failure the raw descriptor is
// closed here; the caller only ever sees a usable handle or an error.
func (o *Opener) wrapFile(path string, raw int, spec openSpec) (*File, error) {
	if spec.creates && !o.opts.Oracle.InodeHeadroom(raw) {
		err := fmt.Errorf("%w: creating %q", ErrInsufficientInodes, path)

		return nil, o.rollback(path, raw, spec, err)
	}

	f, err := newFile(raw, o.opts)
	if err != nil {
		// Close directly: the handle was never constructed, so the
		// raw descriptor is still this function's responsibility.
		_ = o.opts.Syscalls.Close(raw)

		return nil, err
	}

	return f, nil
}

// rollback undoes a creating open that failed its post-check: the raw
// descriptor is closed and, when this call provably created the entry, the
// entry is removed. Cleanup failures are attached to the policy error
// rather than replacing it.
func (o *Opener) rollback(path string, raw int, spec openSpec, cause error) error {
	err := cause

	if closeErr := o.opts.Syscalls.Close(raw); closeErr != nil {
		err = fmt.Errorf("%w (rollback close: %v)", err, closeErr)
	}

	if spec.exclusive {
		if rmErr := o.opts.Syscalls.Unlink(path); rmErr != nil {
			err = fmt.Errorf("%w (rollback unlink: %v)", err, rmErr)
		}
	}

	return err
}
