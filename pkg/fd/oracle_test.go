package fd

import (
	"math"
	"testing"

	"golang.org/x/sys/unix"
)

func Test_StatfsOracle_ModeValid_Accepts_Permission_Bits_Only(t *testing.T) {
	o := &StatfsOracle{}

	cases := []struct {
		perm uint32
		want bool
	}{
		{0o644, true},
		{0o7777, true},
		{0, true},
		{0o644 | uint32(unix.S_IFREG), false},
		{0o644 | uint32(unix.S_IFDIR), false},
		{1 << 16, false},
	}

	for _, tc := range cases {
		if got := o.ModeValid(tc.perm); got != tc.want {
			t.Fatalf("ModeValid(%#o)=%t, want=%t", tc.perm, got, tc.want)
		}
	}
}

func Test_StatfsOracle_Answers_Against_Live_Filesystem(t *testing.T) {
	raw := rawTempFd(t, unix.O_RDWR)
	defer unix.Close(raw)

	o := &StatfsOracle{}

	if !o.InodeHeadroom(raw) {
		t.Fatal("expected inode headroom on a fresh temp filesystem")
	}

	if !o.SpaceAvailable(raw, 1) {
		t.Fatal("expected space for a single byte")
	}

	// An absurd demand is denied.
	if o.SpaceAvailable(raw, math.MaxInt64) {
		t.Fatal("expected MaxInt64 bytes to be denied")
	}

	if o.SpaceAvailable(raw, -1) {
		t.Fatal("expected negative demand to be denied")
	}
}

func Test_StatfsOracle_Reserves_Tighten_The_Gates(t *testing.T) {
	raw := rawTempFd(t, unix.O_RDWR)
	defer unix.Close(raw)

	strict := &StatfsOracle{
		MinFreeInodes: math.MaxUint64,
		MinFreeBytes:  math.MaxUint64,
	}

	if strict.InodeHeadroom(raw) {
		t.Fatal("expected an unreachable inode reserve to deny headroom")
	}

	if strict.SpaceAvailable(raw, 1) {
		t.Fatal("expected an unreachable byte reserve to deny space")
	}
}

func Test_StatfsOracle_Treats_Statfs_Failure_As_Exhaustion(t *testing.T) {
	o := &StatfsOracle{}

	// A closed descriptor makes fstatfs fail with EBADF.
	raw := rawTempFd(t, unix.O_RDWR)
	if err := unix.Close(raw); err != nil {
		t.Fatalf("close: %v", err)
	}

	if o.InodeHeadroom(raw) {
		t.Fatal("expected headroom denial when statfs fails")
	}

	if o.SpaceAvailable(raw, 1) {
		t.Fatal("expected space denial when statfs fails")
	}
}
