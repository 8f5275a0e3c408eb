package fd

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"
)

func Test_Chaos_Zero_Config_Injects_Nothing(t *testing.T) {
	chaos := NewChaosSyscalls(nil, ChaosConfig{})

	f, _ := createFile(t, Options{Syscalls: chaos, Oracle: allowAll()})

	if _, err := f.Write([]byte("clean run")); err != nil {
		t.Fatalf("write: %v", err)
	}

	stats := chaos.Stats()
	if stats != (ChaosStats{}) {
		t.Fatalf("stats=%+v, want all zero", stats)
	}
}

func Test_Chaos_Injected_Open_Failures_Are_Marked(t *testing.T) {
	chaos := NewChaosSyscalls(nil, ChaosConfig{OpenFailRate: 1, Seed: 1})

	o := NewOpener(Options{Syscalls: chaos, Oracle: allowAll()})

	_, err := o.Open(filepath.Join(t.TempDir(), "f"), WriteNew, 0o644)
	if err == nil {
		t.Fatal("expected injected open failure")
	}

	if !IsInjected(err) {
		t.Fatalf("err=%v, want injected", err)
	}

	if got, want := chaos.Stats().OpenFails, int64(1); got != want {
		t.Fatalf("open fails=%d, want=%d", got, want)
	}
}

func Test_Chaos_Is_Deterministic_For_A_Seed(t *testing.T) {
	run := func() ChaosStats {
		chaos := NewChaosSyscalls(nil, ChaosConfig{
			WriteFailRate: 0.5,
			ZeroWriteRate: 0.3,
			Seed:          42,
		})

		f, _ := createFile(t, Options{Syscalls: chaos, Oracle: allowAll(), WriteAttempts: 100})

		for i := 0; i < 50; i++ {
			_, _ = f.Write([]byte("payload"))
		}

		return chaos.Stats()
	}

	first := run()
	second := run()

	if first != second {
		t.Fatalf("runs diverged: %+v vs %+v", first, second)
	}

	if first.WriteFails == 0 || first.ZeroWrites == 0 {
		t.Fatalf("stats=%+v, expected both fault kinds at these rates", first)
	}
}

func Test_Chaos_Zero_Writes_Exhaust_The_Retry_Budget(t *testing.T) {
	chaos := NewChaosSyscalls(nil, ChaosConfig{ZeroWriteRate: 1, Seed: 7})

	f, _ := createFile(t, Options{Syscalls: chaos, Oracle: allowAll(), WriteAttempts: 3})

	_, err := f.Write([]byte("never lands"))

	var incomplete *IncompleteWriteError
	if !errors.As(err, &incomplete) {
		t.Fatalf("err=%v, want IncompleteWriteError", err)
	}

	if got, want := chaos.Stats().ZeroWrites, int64(3); got != want {
		t.Fatalf("zero writes=%d, want=%d", got, want)
	}
}

func Test_Chaos_Short_Writes_Complete_Through_Retries(t *testing.T) {
	chaos := NewChaosSyscalls(nil, ChaosConfig{ShortWriteRate: 1, Seed: 11})

	f, path := createFile(t, Options{Syscalls: chaos, Oracle: allowAll()})

	content := []byte("eventually whole")

	n, err := f.Write(content)
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	if got, want := n, int64(len(content)); got != want {
		t.Fatalf("n=%d, want=%d", got, want)
	}

	// Every attempt was cut short except the final single-byte ones.
	if chaos.Stats().ShortWrites == 0 {
		t.Fatal("expected short writes to have been injected")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("readback: %v", err)
	}

	if string(data) != string(content) {
		t.Fatalf("content=%q, want=%q", data, content)
	}
}

func Test_Chaos_Close_Never_Leaks_The_Descriptor(t *testing.T) {
	chaos := NewChaosSyscalls(nil, ChaosConfig{CloseFailRate: 1, Seed: 3})

	raw := rawTempFd(t, unix.O_RDONLY)

	err := chaos.Close(raw)
	if !IsInjected(err) {
		t.Fatalf("err=%v, want injected", err)
	}

	// The real descriptor is gone despite the injected error.
	if closeErr := unix.Close(raw); !errors.Is(closeErr, unix.EBADF) {
		t.Fatalf("re-close err=%v, want EBADF", closeErr)
	}
}

func Test_IsInjected_Is_False_For_Real_And_Nil_Errors(t *testing.T) {
	if IsInjected(nil) {
		t.Fatal("nil must not be injected")
	}

	if IsInjected(unix.EIO) {
		t.Fatal("a bare errno must not be injected")
	}

	if IsInjected(ErrClosed) {
		t.Fatal("a sentinel must not be injected")
	}
}
