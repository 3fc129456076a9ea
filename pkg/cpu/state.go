// Package cpu implements the scalar 8086 reference semantics: register
// file, sub-register addressing, effective-address computation, flag
// synthesis, and instruction execution.
package cpu

import (
	"fmt"

	"github.com/emu8086/core/pkg/emuerr"
	"github.com/emu8086/core/pkg/inst8086"
)

// State holds one logical 8086 CPU: the ten 16-bit main registers and the
// four segment registers. IP and FLAGS are stored as ordinary entries in
// Regs, matching inst8086.Register's enumeration so register identity and
// array index coincide.
type State struct {
	Regs [inst8086.RegisterCount]uint16
	Seg  [4]uint16
}

// NewState returns a zero-initialized CPU state, matching the Lifecycle
// clause: "CPU state is created at emulator start (zero-initialized)."
func NewState() *State {
	return &State{}
}

// IP returns the current instruction pointer.
func (s *State) IP() uint16 { return s.Regs[inst8086.IP] }

// SetIP overwrites the instruction pointer directly, used by
// control-flow instructions.
func (s *State) SetIP(v uint16) { s.Regs[inst8086.IP] = v }

// AdvanceIP advances IP by exactly n bytes with 16-bit wraparound,
// matching the invariant that IP advances monotonically by the number of
// bytes consumed to decode the last instruction.
func (s *State) AdvanceIP(n int) {
	s.Regs[inst8086.IP] = uint16(int(s.Regs[inst8086.IP]) + n)
}

// Flags returns the current FLAGS word.
func (s *State) Flags() uint16 { return s.Regs[inst8086.FLAGS] }

// SetFlags overwrites the FLAGS word.
func (s *State) SetFlags(v uint16) { s.Regs[inst8086.FLAGS] = v }

// ReadRegister returns a 16-bit main register's raw value.
func (s *State) ReadRegister(r inst8086.Register) uint16 {
	return s.Regs[r]
}

// WriteRegister stores a 16-bit value into a main register.
func (s *State) WriteRegister(r inst8086.Register, v uint16) {
	s.Regs[r] = v
}

// ReadSubRegister centralizes sub-register masking per the Design Notes:
// no open-coded shifts appear anywhere else in the executor.
func (s *State) ReadSubRegister(sr inst8086.SubRegister) uint8 {
	word := s.Regs[sr.Main]
	switch sr.Part {
	case inst8086.Low:
		return uint8(word & 0xFF)
	case inst8086.High:
		return uint8((word >> 8) & 0xFF)
	default:
		return uint8(word)
	}
}

// WriteSubRegister stores an 8-bit value into one half of a main
// register, preserving the other half. v must fit in a byte; the caller
// is expected to have already truncated it (mirroring the source's own
// precondition), so this never masks silently for a Full part.
func (s *State) WriteSubRegister(sr inst8086.SubRegister, v uint8) {
	switch sr.Part {
	case inst8086.Low:
		s.Regs[sr.Main] = (s.Regs[sr.Main] &^ 0xFF) | uint16(v)
	case inst8086.High:
		s.Regs[sr.Main] = (s.Regs[sr.Main] &^ 0xFF00) | (uint16(v) << 8)
	default:
		s.Regs[sr.Main] = uint16(v)
	}
}

// ReadSegment returns a segment register's value.
func (s *State) ReadSegment(seg inst8086.SegmentRegister) uint16 {
	return s.Seg[seg]
}

// WriteSegment stores a segment register's value.
func (s *State) WriteSegment(seg inst8086.SegmentRegister, v uint16) {
	s.Seg[seg] = v
}

// Memory is a flat byte array whose size is fixed at construction to a
// power of two not exceeding 65536. Rust's Memory<const SIZE: usize>
// enforces this with a compile-time trait bound; Go has no equivalent, so
// NewMemory performs the same check at construction time instead, and
// every subsequent address computation trusts the SIZE-1 mask.
type Memory struct {
	bytes []byte
	mask  uint32
}

// NewMemory allocates a zero-initialized memory image of the given size.
// size must be a power of two in (0, 65536]; any other value is an error
// rather than a panic, since callers (the CLI, tests) are expected to
// validate configuration up front rather than crash on it.
func NewMemory(size int) (*Memory, error) {
	if size <= 0 || size > 65536 || size&(size-1) != 0 {
		return nil, fmt.Errorf("memory size %d must be a power of two in (0, 65536]", size)
	}
	return &Memory{bytes: make([]byte, size), mask: uint32(size - 1)}, nil
}

// Len returns the configured memory size.
func (m *Memory) Len() int { return len(m.bytes) }

func (m *Memory) addr(a uint32) uint32 { return a & m.mask }

// ReadByte reads a single byte, wrapping the address into the memory
// image's size per the mask invariant.
func (m *Memory) ReadByte(addr uint32) uint8 {
	return m.bytes[m.addr(addr)]
}

// WriteByte writes a single byte, wrapping the address.
func (m *Memory) WriteByte(addr uint32, v uint8) {
	m.bytes[m.addr(addr)] = v
}

// ReadWord reads a little-endian 16-bit word at addr (wrapping each byte
// address independently, matching the 8086's own unaligned access model).
func (m *Memory) ReadWord(addr uint32) uint16 {
	lo := m.ReadByte(addr)
	hi := m.ReadByte(addr + 1)
	return uint16(lo) | uint16(hi)<<8
}

// WriteWord writes a little-endian 16-bit word at addr.
func (m *Memory) WriteWord(addr uint32, v uint16) {
	m.WriteByte(addr, uint8(v))
	m.WriteByte(addr+1, uint8(v>>8))
}

// ReadByteChecked is used by the decoder, which must fail rather than
// silently wrap when it walks off the end of the image.
func (m *Memory) ReadByteChecked(addr int) (uint8, error) {
	if addr < 0 || addr >= len(m.bytes) {
		return 0, &emuerr.OutOfBoundsMemoryRead{Address: addr}
	}
	return m.bytes[addr], nil
}

// LoadImage copies a raw code/data image into memory starting at address
// zero, per §6's "Input binary format": the decoder interprets bytes
// starting at offset 0.
func (m *Memory) LoadImage(image []byte) error {
	if len(image) > len(m.bytes) {
		return fmt.Errorf("image of %d bytes exceeds memory size %d", len(image), len(m.bytes))
	}
	copy(m.bytes, image)
	return nil
}
