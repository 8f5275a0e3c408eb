package fd

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"golang.org/x/sys/unix"
)

func Test_OpenDir_Lists_Entries(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"b.txt", "a.txt", "c.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}

	d, err := NewOpener(Options{}).OpenDir(dir)
	if err != nil {
		t.Fatalf("opendir: %v", err)
	}
	defer d.Close()

	if got, want := d.Path(), dir; got != want {
		t.Fatalf("path=%q, want=%q", got, want)
	}

	names, err := d.Names()
	if err != nil {
		t.Fatalf("names: %v", err)
	}

	slices.Sort(names)

	want := []string{"a.txt", "b.txt", "c.txt"}
	if !slices.Equal(names, want) {
		t.Fatalf("names=%v, want=%v", names, want)
	}
}

func Test_Directory_Names_Is_Reinvocable_And_Live(t *testing.T) {
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, "first"), nil, 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	d, err := NewOpener(Options{}).OpenDir(dir)
	if err != nil {
		t.Fatalf("opendir: %v", err)
	}
	defer d.Close()

	names, err := d.Names()
	if err != nil {
		t.Fatalf("names: %v", err)
	}

	if len(names) != 1 || names[0] != "first" {
		t.Fatalf("names=%v, want=[first]", names)
	}

	// A second listing sees entries added after the first.
	if err := os.WriteFile(filepath.Join(dir, "second"), nil, 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	names, err = d.Names()
	if err != nil {
		t.Fatalf("re-list: %v", err)
	}

	slices.Sort(names)

	if !slices.Equal(names, []string{"first", "second"}) {
		t.Fatalf("names=%v, want=[first second]", names)
	}
}

func Test_OpenDir_Fails_On_Regular_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	_, err := NewOpener(Options{}).OpenDir(path)
	if !errors.Is(err, unix.ENOTDIR) {
		t.Fatalf("err=%v, want ENOTDIR", err)
	}
}

func Test_Directory_Names_After_Close_Fails_With_ErrClosed(t *testing.T) {
	d, err := NewOpener(Options{}).OpenDir(t.TempDir())
	if err != nil {
		t.Fatalf("opendir: %v", err)
	}

	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := d.Names(); !errors.Is(err, ErrClosed) {
		t.Fatalf("err=%v, want=%v", err, ErrClosed)
	}
}

func Test_Wrap_Classifies_Regular_File(t *testing.T) {
	raw := rawTempFd(t, unix.O_RDWR)

	h, err := Wrap(raw, Options{})
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	defer h.Close()

	f, ok := h.(*File)
	if !ok {
		t.Fatalf("handle type=%T, want *File", h)
	}

	if _, err := f.Write([]byte("via wrap")); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func Test_Wrap_Classifies_Directory(t *testing.T) {
	raw, err := unix.Open(t.TempDir(), unix.O_RDONLY|unix.O_DIRECTORY, 0)
	if err != nil {
		t.Fatalf("setup open: %v", err)
	}

	h, err := Wrap(raw, Options{})
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	defer h.Close()

	if _, ok := h.(*Directory); !ok {
		t.Fatalf("handle type=%T, want *Directory", h)
	}
}

func Test_Wrap_Classifies_FIFO(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipe")

	if err := unix.Mkfifo(path, 0o644); err != nil {
		t.Fatalf("mkfifo: %v", err)
	}

	raw, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		t.Fatalf("setup open: %v", err)
	}

	h, err := Wrap(raw, Options{})
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	defer h.Close()

	if _, ok := h.(*FIFO); !ok {
		t.Fatalf("handle type=%T, want *FIFO", h)
	}
}

func Test_Wrap_Classifies_Socket(t *testing.T) {
	raw, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socket: %v", err)
	}

	h, err := Wrap(raw, Options{})
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	defer h.Close()

	if _, ok := h.(*Socket); !ok {
		t.Fatalf("handle type=%T, want *Socket", h)
	}
}

func Test_Wrap_Classifies_CharDevice(t *testing.T) {
	raw, err := unix.Open("/dev/null", unix.O_RDWR, 0)
	if err != nil {
		t.Skipf("no /dev/null: %v", err)
	}

	h, err := Wrap(raw, Options{})
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	defer h.Close()

	if _, ok := h.(*CharDevice); !ok {
		t.Fatalf("handle type=%T, want *CharDevice", h)
	}
}

func Test_Wrap_Fails_On_Negative_Descriptor(t *testing.T) {
	_, err := Wrap(-1, Options{})
	if !errors.Is(err, ErrInvalidDescriptor) {
		t.Fatalf("err=%v, want=%v", err, ErrInvalidDescriptor)
	}
}
