package fd

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// The specialized descriptor kinds form a small closed set of variants
// sharing the [Handle] capability set. Only [File] and [Directory] carry
// operations beyond it; the device, socket and FIFO kinds exist so callers
// can hold them with lifecycle discipline without pretending they are
// files.

// Directory is a directory descriptor. Beyond the shared capabilities it
// supports single-level listing.
type Directory struct {
	*FD

	path string
}

// Path returns the path the directory was opened with.
func (d *Directory) Path() string {
	return d.path
}

// Names returns the names of the entries in the directory, excluding "."
// and "..". Each call produces a full, fresh listing.
//
// The listing consumes a duplicated descriptor so the handle itself stays
// valid; the duplicate is rewound to the start before reading and closed
// before returning.
func (d *Directory) Names() ([]string, error) {
	if d.closed {
		return nil, ErrClosed
	}

	dup, err := d.sys.Dup(d.fd)
	if err != nil {
		return nil, fmt.Errorf("dup fd %d: %w", d.fd, err)
	}

	f := os.NewFile(uintptr(dup), d.path)
	defer f.Close()

	// dup shares the directory read offset with the original
	// descriptor; rewind so repeated listings start from the top.
	if _, err := f.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("rewinding directory %q: %w", d.path, err)
	}

	names, err := f.Readdirnames(-1)
	if err != nil {
		return nil, fmt.Errorf("listing directory %q: %w", d.path, err)
	}

	return names, nil
}

// Socket is a socket descriptor with the shared capability set only.
type Socket struct {
	*FD
}

// BlockDevice is a block-device descriptor with the shared capability set
// only.
type BlockDevice struct {
	*FD
}

// CharDevice is a character-device descriptor with the shared capability
// set only.
type CharDevice struct {
	*FD
}

// FIFO is a named-pipe descriptor with the shared capability set only.
type FIFO struct {
	*FD
}

// OpenDir opens the directory at path read-only. The same rollback
// discipline as [Opener.Open] applies: a failure after the raw descriptor
// exists closes it before returning.
func (o *Opener) OpenDir(path string) (*Directory, error) {
	raw, err := o.opts.Syscalls.Open(path, unix.O_RDONLY|unix.O_DIRECTORY, 0)
	if err != nil {
		return nil, fmt.Errorf("opening directory %q: %w", path, err)
	}

	d, err := New(raw, o.opts)
	if err != nil {
		_ = o.opts.Syscalls.Close(raw)

		return nil, err
	}

	return &Directory{FD: d, path: path}, nil
}

// Wrap classifies an already-open raw descriptor by its stat type and
// returns the matching variant: [*File], [*Directory] (with an empty
// path), [*Socket], [*BlockDevice], [*CharDevice] or [*FIFO].
//
// Ownership transfers only on success; on error the caller still owns raw.
// Unrecognized types fail with [ErrWrongKind].
func Wrap(raw int, opts Options) (Handle, error) {
	if raw < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDescriptor, raw)
	}

	opts = opts.withDefaults()

	var st unix.Stat_t
	if err := opts.Syscalls.Fstat(raw, &st); err != nil {
		return nil, fmt.Errorf("fstat fd %d: %w", raw, err)
	}

	switch st.Mode & unix.S_IFMT {
	case unix.S_IFREG:
		return newFile(raw, opts)
	case unix.S_IFDIR:
		d, err := New(raw, opts)
		if err != nil {
			return nil, err
		}

		return &Directory{FD: d}, nil
	case unix.S_IFSOCK:
		d, err := New(raw, opts)
		if err != nil {
			return nil, err
		}

		return &Socket{FD: d}, nil
	case unix.S_IFBLK:
		d, err := New(raw, opts)
		if err != nil {
			return nil, err
		}

		return &BlockDevice{FD: d}, nil
	case unix.S_IFCHR:
		d, err := New(raw, opts)
		if err != nil {
			return nil, err
		}

		return &CharDevice{FD: d}, nil
	case unix.S_IFIFO:
		d, err := New(raw, opts)
		if err != nil {
			return nil, err
		}

		return &FIFO{FD: d}, nil
	default:
		return nil, fmt.Errorf("%w: unrecognized type %#o", ErrWrongKind, st.Mode&unix.S_IFMT)
	}
}
