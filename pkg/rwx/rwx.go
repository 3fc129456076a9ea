// Package rwx wraps the one platform primitive the JIT buffer needs: an
// anonymous, private, read-write-execute memory mapping, grounded on
// original_source/emu8086/jit/src/utils.rs's alloc_rwx (a raw mmap FFI
// call) but ported to golang.org/x/sys/unix instead of a hand-written
// syscall wrapper, per SPEC_FULL.md's design notes directive that this
// is a platform primitive to be wrapped behind a small capability.
package rwx

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Region is a single RWX allocation. The zero value is not usable;
// construct one with Allocate.
type Region struct {
	data []byte
}

// Allocate maps size bytes of anonymous, private memory with read,
// write, and execute permission, matching alloc_rwx's
// PROT_READ|PROT_WRITE|PROT_EXEC / MAP_PRIVATE|MAP_ANONYMOUS combination.
func Allocate(size int) (*Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("rwx: allocate: size must be positive, got %d", size)
	}
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("rwx: mmap %d bytes: %w", size, err)
	}
	return &Region{data: data}, nil
}

// Bytes exposes the mapped region for reading and writing. The returned
// slice aliases the mapping; it must not be retained past Free.
func (r *Region) Bytes() []byte { return r.data }

// Free unmaps the region. Calling Free again is a no-op that returns
// nil; Bytes must not be used after Free.
func (r *Region) Free() error {
	if r.data == nil {
		return nil
	}
	err := unix.Munmap(r.data)
	r.data = nil
	if err != nil {
		return fmt.Errorf("rwx: munmap: %w", err)
	}
	return nil
}
