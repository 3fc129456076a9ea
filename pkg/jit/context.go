package jit

import (
	"unsafe"

	"github.com/emu8086/core/pkg/inst8086"
)

// Context is the 32-lane calling-convention structure the entry stub
// reads from and writes back to: ten 32-lane vectors, one per main
// register, in the fixed ABI order section 4.5 specifies (AX, BX, CX,
// DX, SI, DI, BP, SP, IP, FLAGS). Each field is exactly 64 bytes (32
// lanes of 2 bytes), one zmm register's width, so the fields pack with
// no inter-field padding; only the struct's own base address needs
// 64-byte alignment, which AllocContext guarantees.
type Context struct {
	AX, BX, CX, DX [32]uint16
	SI, DI, BP, SP [32]uint16
	IP, FLAGS      [32]uint16
}

// contextOffset returns reg's byte offset within Context, the value the
// entry stub burns into its vmovdqa64 displacements. Computed via
// unsafe.Offsetof rather than a generated constant table, the direct Go
// analog of emu/src/lib.rs's impl_offset! macro (which computes the same
// thing via addr_of!/offset_from on an uninitialized struct).
func contextOffset(reg inst8086.Register) uintptr {
	var c Context
	switch reg {
	case inst8086.AX:
		return unsafe.Offsetof(c.AX)
	case inst8086.BX:
		return unsafe.Offsetof(c.BX)
	case inst8086.CX:
		return unsafe.Offsetof(c.CX)
	case inst8086.DX:
		return unsafe.Offsetof(c.DX)
	case inst8086.SI:
		return unsafe.Offsetof(c.SI)
	case inst8086.DI:
		return unsafe.Offsetof(c.DI)
	case inst8086.BP:
		return unsafe.Offsetof(c.BP)
	case inst8086.SP:
		return unsafe.Offsetof(c.SP)
	case inst8086.IP:
		return unsafe.Offsetof(c.IP)
	case inst8086.FLAGS:
		return unsafe.Offsetof(c.FLAGS)
	default:
		panic("jit: contextOffset: not a main register")
	}
}

// AllocContext returns a Context whose address is 64-byte aligned (as
// the entry stub's vmovdqa64 loads/stores require) together with the
// backing allocation that must be kept alive as long as the Context is
// in use. Go's allocator gives no alignment guarantee beyond uint16's
// own 2-byte requirement, so this over-allocates by one alignment
// quantum and hands back a pointer rounded up to the next 64-byte
// boundary within it.
func AllocContext() (*Context, []byte) {
	const align = 64
	raw := make([]byte, unsafe.Sizeof(Context{})+align)
	addr := uintptr(unsafe.Pointer(&raw[0]))
	pad := (align - addr%align) % align
	return (*Context)(unsafe.Pointer(&raw[pad])), raw
}

// Lane returns the single-core register snapshot for lane cpu, matching
// JitEmulatorState::get_cpu_state.
func (c *Context) Lane(cpu int) LaneState {
	return LaneState{
		AX: c.AX[cpu], BX: c.BX[cpu], CX: c.CX[cpu], DX: c.DX[cpu],
		SI: c.SI[cpu], DI: c.DI[cpu], BP: c.BP[cpu], SP: c.SP[cpu],
		IP: c.IP[cpu], FLAGS: c.FLAGS[cpu],
	}
}

// SetLane writes a single lane's register snapshot back into the
// context, matching JitEmulatorState's set_*_in family.
func (c *Context) SetLane(cpu int, s LaneState) {
	c.AX[cpu], c.BX[cpu], c.CX[cpu], c.DX[cpu] = s.AX, s.BX, s.CX, s.DX
	c.SI[cpu], c.DI[cpu], c.BP[cpu], c.SP[cpu] = s.SI, s.DI, s.BP, s.SP
	c.IP[cpu], c.FLAGS[cpu] = s.IP, s.FLAGS
}

// LaneState is one lane's full register file, used to seed a core before
// a JIT step and to read it back afterward.
type LaneState struct {
	AX, BX, CX, DX uint16
	SI, DI, BP, SP uint16
	IP, FLAGS      uint16
}

// Lanes is the fixed number of simulated cores a Context advances in
// lockstep, per section 5's concurrency model.
const Lanes = 32
