package fd

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"
)

// stubSyscalls delegates to an underlying [Syscalls] and lets individual
// tests override single operations.
type stubSyscalls struct {
	Syscalls

	open   func(path string, flags int, perm uint32) (int, error)
	close  func(fd int) error
	pwrite func(fd int, p []byte, off int64) (int, error)
	pread  func(fd int, p []byte, off int64) (int, error)
	getfl  func(fd int) (int, error)
	unlink func(path string) error
}

func newStub() *stubSyscalls {
	return &stubSyscalls{Syscalls: NewSys()}
}

func (s *stubSyscalls) Open(path string, flags int, perm uint32) (int, error) {
	if s.open != nil {
		return s.open(path, flags, perm)
	}

	return s.Syscalls.Open(path, flags, perm)
}

func (s *stubSyscalls) Close(fd int) error {
	if s.close != nil {
		return s.close(fd)
	}

	return s.Syscalls.Close(fd)
}

func (s *stubSyscalls) Pwrite(fd int, p []byte, off int64) (int, error) {
	if s.pwrite != nil {
		return s.pwrite(fd, p, off)
	}

	return s.Syscalls.Pwrite(fd, p, off)
}

func (s *stubSyscalls) Pread(fd int, p []byte, off int64) (int, error) {
	if s.pread != nil {
		return s.pread(fd, p, off)
	}

	return s.Syscalls.Pread(fd, p, off)
}

func (s *stubSyscalls) Getfl(fd int) (int, error) {
	if s.getfl != nil {
		return s.getfl(fd)
	}

	return s.Syscalls.Getfl(fd)
}

func (s *stubSyscalls) Unlink(path string) error {
	if s.unlink != nil {
		return s.unlink(path)
	}

	return s.Syscalls.Unlink(path)
}

// stubOracle answers the policy predicates with fixed values.
type stubOracle struct {
	modeValid     bool
	inodeHeadroom bool
	space         bool
}

func allowAll() *stubOracle {
	return &stubOracle{modeValid: true, inodeHeadroom: true, space: true}
}

func (o *stubOracle) ModeValid(uint32) bool          { return o.modeValid }
func (o *stubOracle) InodeHeadroom(int) bool         { return o.inodeHeadroom }
func (o *stubOracle) SpaceAvailable(int, int64) bool { return o.space }

// scriptedWrites returns a pwrite override that replays byte counts in
// order, delegating the actual transfer of non-zero counts to the real
// syscall so file contents stay truthful. A count of -1 means "write
// everything requested".
func scriptedWrites(t *testing.T, counts ...int) func(fd int, p []byte, off int64) (int, error) {
	t.Helper()

	real := NewSys()
	i := 0

	return func(fd int, p []byte, off int64) (int, error) {
		if i >= len(counts) {
			t.Fatalf("unexpected pwrite call #%d", i+1)
		}

		n := counts[i]
		i++

		if n == 0 {
			return 0, nil
		}

		if n < 0 || n > len(p) {
			n = len(p)
		}

		return real.Pwrite(fd, p[:n], off)
	}
}

// createFile opens a fresh regular file for writing in a temp dir and
// returns it with its path. Closed via t.Cleanup.
func createFile(t *testing.T, opts Options) (*File, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "data.bin")

	f, err := NewOpener(opts).Open(path, WriteNew, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	t.Cleanup(func() { _ = f.Close() })

	return f, path
}

// seedFile writes content to a fresh file and reopens it read-only.
func seedFile(t *testing.T, opts Options, content []byte) *File {
	t.Helper()

	path := filepath.Join(t.TempDir(), "seed.bin")

	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	f, err := NewOpener(opts).Open(path, ReadExisting, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	t.Cleanup(func() { _ = f.Close() })

	return f
}

// rawTempFd opens a raw descriptor on a new temp file.
func rawTempFd(t *testing.T, flags int) int {
	t.Helper()

	path := filepath.Join(t.TempDir(), "raw.bin")

	raw, err := unix.Open(path, flags|unix.O_CREAT, 0o644)
	if err != nil {
		t.Fatalf("setup open: %v", err)
	}

	return raw
}
