// Package emuerr defines the typed error kinds produced by the decoder,
// scalar executor, and JIT translator. Each kind is a distinct Go type so
// callers can match with errors.As instead of string comparison, the way
// the spec's error-kind enumeration names distinct variants rather than
// one generic failure string.
package emuerr

import (
	"fmt"

	"github.com/emu8086/core/pkg/inst8086"
)

// UnknownInstruction is returned by the decoder when the first byte of an
// instruction does not match any recognized opcode.
type UnknownInstruction struct {
	Byte   byte
	Offset int
}

func (e *UnknownInstruction) Error() string {
	return fmt.Sprintf("unknown instruction byte 0x%02x at offset %d", e.Byte, e.Offset)
}

// UnknownRepeatOpcode is returned when a repeat prefix (0xF2/0xF3) is
// followed by a byte that is not one of the string-op opcodes.
type UnknownRepeatOpcode struct {
	Byte   byte
	Offset int
}

func (e *UnknownRepeatOpcode) Error() string {
	return fmt.Sprintf("unknown opcode 0x%02x following repeat prefix at offset %d", e.Byte, e.Offset)
}

// OutOfBoundsMemoryRead is returned when the decoder reads an address
// outside the configured memory image. The scalar executor's reads wrap
// the address into the image instead and do not return this error.
type OutOfBoundsMemoryRead struct {
	Address int
}

func (e *OutOfBoundsMemoryRead) Error() string {
	return fmt.Sprintf("out of bounds memory read at address 0x%x", e.Address)
}

// OutOfBoundsMemoryWrite reports a write to an address outside the
// configured memory image. No package in this module returns it: the
// scalar executor's writes wrap the address into the image.
type OutOfBoundsMemoryWrite struct {
	Address int
}

func (e *OutOfBoundsMemoryWrite) Error() string {
	return fmt.Sprintf("out of bounds memory write at address 0x%x", e.Address)
}

// Unimplemented is returned by the scalar executor or the JIT translator
// when it recognizes an instruction but has no semantic implementation
// for it yet. The decoder must still be able to round-trip such
// instructions textually.
type Unimplemented struct {
	Instr inst8086.Instruction
}

func (e *Unimplemented) Error() string {
	return fmt.Sprintf("unimplemented instruction: %s", e.Instr.String())
}

// JitBufferOverflow is returned by the EVEX emitter when an append would
// exceed the buffer's fixed capacity. Unlike the source this wraps
// instead of panicking, per SPEC_FULL.md's §9 resolution.
type JitBufferOverflow struct {
	Offset   int
	Capacity int
}

func (e *JitBufferOverflow) Error() string {
	return fmt.Sprintf("jit buffer overflow: offset %d exceeds capacity %d", e.Offset, e.Capacity)
}
