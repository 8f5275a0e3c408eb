package fd

import "golang.org/x/sys/unix"

// Oracle answers the resource-policy questions consulted before creating
// and destructive operations.
//
// A false answer is a hard stop: the caller fails the operation instead of
// attempting it. All three predicates are consulted synchronously.
//
// The checks are pre-flight gates, not guarantees. The gap between a space
// check and the write it guards is a documented time-of-check-to-time-of-use
// window; concurrent writers can race past it.
type Oracle interface {
	// ModeValid reports whether perm is an acceptable set of permission
	// bits for a new file.
	ModeValid(perm uint32) bool

	// InodeHeadroom reports whether the filesystem holding fd has enough
	// free inodes to keep the just-created entry.
	InodeHeadroom(fd int) bool

	// SpaceAvailable reports whether the filesystem holding fd can take
	// n more bytes.
	SpaceAvailable(fd int, n int64) bool
}

// StatfsOracle implements [Oracle] against live fstatfs(2) statistics.
//
// The zero value is usable: no reserves, any perm within the 12 permission
// bits accepted. If the statfs call itself fails the predicate answers
// false — an unreadable filesystem state is treated as exhaustion, not as
// permission to proceed.
type StatfsOracle struct {
	// Sys is the syscall layer to query. Nil means the real one.
	Sys Syscalls

	// MinFreeInodes is the inode count that must remain free after a
	// creating open.
	MinFreeInodes uint64

	// MinFreeBytes is the byte count that must remain free after a
	// write, in addition to the write itself.
	MinFreeBytes uint64
}

// ModeValid accepts any mode that only uses the permission and setuid /
// setgid / sticky bits (the low 12 bits of a Unix mode).
func (o *StatfsOracle) ModeValid(perm uint32) bool {
	return perm&^uint32(0o7777) == 0
}

// InodeHeadroom checks free inode count on fd's filesystem against the
// configured reserve. Filesystems that do not track inodes (statfs reports
// zero total files) always have headroom.
func (o *StatfsOracle) InodeHeadroom(fd int) bool {
	st, ok := o.statfs(fd)
	if !ok {
		return false
	}

	if st.Files == 0 {
		return true
	}

	return st.Ffree > o.MinFreeInodes
}

// SpaceAvailable checks free space on fd's filesystem against n plus the
// configured reserve, using the blocks available to unprivileged users.
func (o *StatfsOracle) SpaceAvailable(fd int, n int64) bool {
	if n < 0 {
		return false
	}

	st, ok := o.statfs(fd)
	if !ok {
		return false
	}

	free := uint64(st.Bavail) * uint64(st.Bsize)

	return free >= uint64(n)+o.MinFreeBytes
}

func (o *StatfsOracle) statfs(fd int) (unix.Statfs_t, bool) {
	sys := o.Sys
	if sys == nil {
		sys = NewSys()
	}

	var st unix.Statfs_t
	if err := sys.Fstatfs(fd, &st); err != nil {
		return st, false
	}

	return st, true
}

// Compile-time interface check.
var _ Oracle = (*StatfsOracle)(nil)
