package fd

// Hooks receives notifications about descriptor and file activity.
//
// Every field is optional; nil fields are skipped. The core never logs or
// emits events on its own — instrumentation is injected by the caller
// through this struct, typically via [Options.Hooks].
//
// Hooks run synchronously on the calling goroutine, before the operation's
// result is returned, and must not call back into the handle they observe.
type Hooks struct {
	// DescriptorNew fires when a raw descriptor is wrapped in a handle.
	DescriptorNew func(fd int)

	// DescriptorClose fires when a handle releases its descriptor.
	// It does not fire for redundant Close calls.
	DescriptorClose func(fd int)

	// FileOpen fires after an open intent resolved successfully.
	FileOpen func(path string, mode OpenMode, perm uint32)

	// Read fires for cursor reads, Pread for positioned reads.
	// size is the requested byte count, pos the effective offset.
	Read  func(fd int, size, pos int64)
	Pread func(fd int, size, pos int64)

	// Write fires for cursor writes, Pwrite for positioned writes.
	// n is the input length, pos the effective offset.
	Write  func(fd int, n int, pos int64)
	Pwrite func(fd int, n int, pos int64)

	// Move fires when the logical cursor is relocated.
	Move func(fd int, pos int64)

	// Truncate fires after a successful resize.
	Truncate func(fd int, length int64)
}

func (h *Hooks) descriptorNew(fd int) {
	if h != nil && h.DescriptorNew != nil {
		h.DescriptorNew(fd)
	}
}

func (h *Hooks) descriptorClose(fd int) {
	if h != nil && h.DescriptorClose != nil {
		h.DescriptorClose(fd)
	}
}

func (h *Hooks) fileOpen(path string, mode OpenMode, perm uint32) {
	if h != nil && h.FileOpen != nil {
		h.FileOpen(path, mode, perm)
	}
}

func (h *Hooks) read(fd int, size, pos int64) {
	if h != nil && h.Read != nil {
		h.Read(fd, size, pos)
	}
}

func (h *Hooks) pread(fd int, size, pos int64) {
	if h != nil && h.Pread != nil {
		h.Pread(fd, size, pos)
	}
}

func (h *Hooks) write(fd int, n int, pos int64) {
	if h != nil && h.Write != nil {
		h.Write(fd, n, pos)
	}
}

func (h *Hooks) pwrite(fd int, n int, pos int64) {
	if h != nil && h.Pwrite != nil {
		h.Pwrite(fd, n, pos)
	}
}

func (h *Hooks) move(fd int, pos int64) {
	if h != nil && h.Move != nil {
		h.Move(fd, pos)
	}
}

func (h *Hooks) truncate(fd int, length int64) {
	if h != nil && h.Truncate != nil {
		h.Truncate(fd, length)
	}
}
