package fd

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// ChaosConfig controls fault injection probabilities for [ChaosSyscalls].
// Each rate is a float64 from 0.0 (never) to 1.0 (always). The zero value
// injects nothing.
type ChaosConfig struct {
	// OpenFailRate controls how often Open fails before a descriptor
	// exists (EACCES, EMFILE, ENOSPC or EIO).
	OpenFailRate float64

	// ReadFailRate controls how often Pread fails entirely with EIO.
	ReadFailRate float64

	// ShortReadRate controls how often Pread transfers only a prefix of
	// the requested bytes. A short positioned read is valid behavior,
	// not an error; it exercises callers that must tolerate partial
	// results.
	ShortReadRate float64

	// WriteFailRate controls how often Pwrite fails entirely
	// (EIO, ENOSPC, EDQUOT or EROFS).
	WriteFailRate float64

	// ZeroWriteRate controls how often Pwrite reports zero bytes
	// written with no error, the case the write retry budget exists
	// for.
	ZeroWriteRate float64

	// ShortWriteRate controls how often Pwrite transfers only a prefix
	// of the input with no error, which must reset the caller's retry
	// budget.
	ShortWriteRate float64

	// StatFailRate controls how often Fstat and Fstatfs fail with EIO.
	StatFailRate float64

	// CloseFailRate controls how often Close reports EIO. The
	// underlying descriptor is closed regardless, to avoid leaks.
	CloseFailRate float64

	// Seed seeds the deterministic random source so failures reproduce.
	Seed uint64
}

// ChaosStats counts injected faults.
type ChaosStats struct {
	OpenFails   int64
	ReadFails   int64
	ShortReads  int64
	WriteFails  int64
	ZeroWrites  int64
	ShortWrites int64
	StatFails   int64
	CloseFails  int64
}

// ChaosSyscalls wraps a [Syscalls] and injects faults at configured rates.
//
// It exists for tests: the retry loop, the open rollback and the
// permission re-checks all have failure paths that a healthy kernel never
// exercises. Injection is deterministic for a given seed and call
// sequence.
//
// Injected errors carry real errnos so errors.Is against unix errno values
// keeps working; [IsInjected] distinguishes them from real OS failures.
type ChaosSyscalls struct {
	sys Syscalls
	cfg ChaosConfig
	rng *rand.Rand

	openFails   atomic.Int64
	readFails   atomic.Int64
	shortReads  atomic.Int64
	writeFails  atomic.Int64
	zeroWrites  atomic.Int64
	shortWrites atomic.Int64
	statFails   atomic.Int64
	closeFails  atomic.Int64
}

// NewChaosSyscalls wraps underlying (nil means the real layer) with fault
// injection per cfg.
func NewChaosSyscalls(underlying Syscalls, cfg ChaosConfig) *ChaosSyscalls {
	if underlying == nil {
		underlying = NewSys()
	}

	return &ChaosSyscalls{
		sys: underlying,
		cfg: cfg,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
}

// Stats returns a snapshot of the injected fault counts.
func (c *ChaosSyscalls) Stats() ChaosStats {
	return ChaosStats{
		OpenFails:   c.openFails.Load(),
		ReadFails:   c.readFails.Load(),
		ShortReads:  c.shortReads.Load(),
		WriteFails:  c.writeFails.Load(),
		ZeroWrites:  c.zeroWrites.Load(),
		ShortWrites: c.shortWrites.Load(),
		StatFails:   c.statFails.Load(),
		CloseFails:  c.closeFails.Load(),
	}
}

// injectedError marks an error as intentionally injected.
type injectedError struct {
	err error
}

func (e *injectedError) Error() string { return e.err.Error() }
func (e *injectedError) Unwrap() error { return e.err }

// IsInjected reports whether err (or any wrapped error) was injected by
// [ChaosSyscalls]. Returns false for nil.
func IsInjected(err error) bool {
	var injected *injectedError

	return errors.As(err, &injected)
}

func (c *ChaosSyscalls) hit(rate float64) bool {
	return rate > 0 && c.rng.Float64() < rate
}

func (c *ChaosSyscalls) pick(errnos ...unix.Errno) error {
	return &injectedError{err: errnos[c.rng.IntN(len(errnos))]}
}

func (c *ChaosSyscalls) Open(path string, flags int, perm uint32) (int, error) {
	if c.hit(c.cfg.OpenFailRate) {
		c.openFails.Add(1)

		return -1, fmt.Errorf("open %q: %w", path, c.pick(unix.EACCES, unix.EMFILE, unix.ENOSPC, unix.EIO))
	}

	return c.sys.Open(path, flags, perm)
}

func (c *ChaosSyscalls) Close(fd int) error {
	// Close the real descriptor first so an injected error never leaks
	// it.
	err := c.sys.Close(fd)

	if c.hit(c.cfg.CloseFailRate) {
		c.closeFails.Add(1)

		return fmt.Errorf("close fd %d: %w", fd, c.pick(unix.EIO))
	}

	return err
}

func (c *ChaosSyscalls) Pread(fd int, p []byte, off int64) (int, error) {
	if c.hit(c.cfg.ReadFailRate) {
		c.readFails.Add(1)

		return 0, c.pick(unix.EIO)
	}

	if len(p) > 1 && c.hit(c.cfg.ShortReadRate) {
		c.shortReads.Add(1)

		return c.sys.Pread(fd, p[:1+c.rng.IntN(len(p)-1)], off)
	}

	return c.sys.Pread(fd, p, off)
}

func (c *ChaosSyscalls) Pwrite(fd int, p []byte, off int64) (int, error) {
	if c.hit(c.cfg.WriteFailRate) {
		c.writeFails.Add(1)

		return 0, c.pick(unix.EIO, unix.ENOSPC, unix.EDQUOT, unix.EROFS)
	}

	if c.hit(c.cfg.ZeroWriteRate) {
		c.zeroWrites.Add(1)

		return 0, nil
	}

	if len(p) > 1 && c.hit(c.cfg.ShortWriteRate) {
		c.shortWrites.Add(1)

		return c.sys.Pwrite(fd, p[:1+c.rng.IntN(len(p)-1)], off)
	}

	return c.sys.Pwrite(fd, p, off)
}

func (c *ChaosSyscalls) Fstat(fd int, st *unix.Stat_t) error {
	if c.hit(c.cfg.StatFailRate) {
		c.statFails.Add(1)

		return c.pick(unix.EIO)
	}

	return c.sys.Fstat(fd, st)
}

func (c *ChaosSyscalls) Fstatfs(fd int, st *unix.Statfs_t) error {
	if c.hit(c.cfg.StatFailRate) {
		c.statFails.Add(1)

		return c.pick(unix.EIO)
	}

	return c.sys.Fstatfs(fd, st)
}

func (c *ChaosSyscalls) Getfl(fd int) (int, error) {
	return c.sys.Getfl(fd)
}

func (c *ChaosSyscalls) Setfl(fd int, flags int) error {
	return c.sys.Setfl(fd, flags)
}

func (c *ChaosSyscalls) Ftruncate(fd int, length int64) error {
	return c.sys.Ftruncate(fd, length)
}

func (c *ChaosSyscalls) Unlink(path string) error {
	return c.sys.Unlink(path)
}

func (c *ChaosSyscalls) Flock(fd int, how int) error {
	return c.sys.Flock(fd, how)
}

func (c *ChaosSyscalls) Dup(fd int) (int, error) {
	return c.sys.Dup(fd)
}

// Compile-time interface check.
var _ Syscalls = (*ChaosSyscalls)(nil)
