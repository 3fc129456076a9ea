package jit

import (
	"github.com/emu8086/core/pkg/emuerr"
	"github.com/emu8086/core/pkg/evex"
	"github.com/emu8086/core/pkg/rwx"
)

// Scratch vector registers, ring-allocated round-robin. An emitted
// sequence consuming more than four live scratches at once is a
// translator bug, not a buffer one — matching lib.rs's JitBuffer.
var scratchRegisters = [4]evex.Zmm{28, 29, 30, 31}

// esiHostReg is the host register encoding (6, esi) the vpbroadcastw esi
// fixture exercises; mov_imm always lands its immediate in esi, matching
// lib.rs's mov_imm.
const esiHostReg evex.Zmm = 6

// Buffer is an append-only, fixed-capacity RWX-backed stream of host
// instructions, grounded on lib.rs's JitBuffer<const N: usize>.
type Buffer struct {
	region *rwx.Region
	offset int

	scratchIndex int
}

// NewBuffer allocates an RWX region of capacity bytes and fills it with
// 0xC3 (ret), matching JitBuffer::new's std::ptr::write_bytes(buffer,
// 0xc3, N) — any untouched tail is a harmless immediate return instead
// of falling into garbage bytes.
func NewBuffer(capacity int) (*Buffer, error) {
	region, err := rwx.Allocate(capacity)
	if err != nil {
		return nil, err
	}
	data := region.Bytes()
	for i := range data {
		data[i] = 0xc3
	}
	return &Buffer{region: region}, nil
}

// Free releases the underlying RWX mapping.
func (b *Buffer) Free() error { return b.region.Free() }

// Offset reports the current write position.
func (b *Buffer) Offset() int { return b.offset }

// Pointer exposes the mapped buffer, for the entry stub to call into.
func (b *Buffer) Pointer() []byte { return b.region.Bytes() }

// NextScratch returns the next scratch vector register, round-robin.
func (b *Buffer) NextScratch() evex.Zmm {
	reg := scratchRegisters[b.scratchIndex]
	b.scratchIndex = (b.scratchIndex + 1) % len(scratchRegisters)
	return reg
}

// WriteBytes appends raw host bytes, returning emuerr.JitBufferOverflow
// instead of panicking (SPEC_FULL.md §7 names JitBufferOverflow as a
// recoverable error kind, unlike the source's assert!).
func (b *Buffer) WriteBytes(bytes []byte) error {
	data := b.region.Bytes()
	if b.offset+len(bytes) > len(data) {
		return &emuerr.JitBufferOverflow{Offset: b.offset, Capacity: len(data)}
	}
	copy(data[b.offset:], bytes)
	b.offset += len(bytes)
	return nil
}

// MovImm assembles `mov esi, imm32; vpbroadcastw dest, esi`, landing the
// immediate in a fixed host register before broadcasting it to all 32
// lanes of dest.
func (b *Buffer) MovImm(dest evex.Zmm, imm int16) error {
	movEsi := make([]byte, 0, 5)
	movEsi = append(movEsi, 0xbe)
	v := uint32(int32(imm))
	movEsi = append(movEsi, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	if err := b.WriteBytes(movEsi); err != nil {
		return err
	}
	bytes := evex.New().Op1(dest).Op2(esiHostReg).WithOpcode(evex.OpBroadcast).Assemble()
	return b.WriteBytes(bytes)
}

// MovImmMasked is MovImm with an opmask binding, realizing the
// predicated-merge pattern section 4.3 describes for flag synthesis.
func (b *Buffer) MovImmMasked(dest evex.Zmm, imm int16, k evex.K) error {
	movEsi := make([]byte, 0, 5)
	movEsi = append(movEsi, 0xbe)
	v := uint32(int32(imm))
	movEsi = append(movEsi, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	if err := b.WriteBytes(movEsi); err != nil {
		return err
	}
	bytes := evex.New().Op1(dest).Op2(esiHostReg).WithOpcode(evex.OpBroadcast).Mask(k).Assemble()
	return b.WriteBytes(bytes)
}

// Mov assembles vmovdqa64 dest, src.
func (b *Buffer) Mov(dest, src evex.Zmm) error {
	bytes := evex.New().Op1(dest).Op2(src).WithOpcode(evex.OpMov).Assemble()
	return b.WriteBytes(bytes)
}

// Sub assembles dest = op1 - op2 (vpsubw).
func (b *Buffer) Sub(dest, op1, op2 evex.Zmm) error {
	bytes := evex.New().Op1(dest).Op2(op1).Op3(op2).WithOpcode(evex.OpSub).Assemble()
	return b.WriteBytes(bytes)
}

// Add assembles dest = op1 + op2 (vpaddw).
func (b *Buffer) Add(dest, op1, op2 evex.Zmm) error {
	bytes := evex.New().Op1(dest).Op2(op1).Op3(op2).WithOpcode(evex.OpAdd).Assemble()
	return b.WriteBytes(bytes)
}

// Xor assembles dest = op1 ^ op2 (vpxorq).
func (b *Buffer) Xor(dest, op1, op2 evex.Zmm) error {
	bytes := evex.New().Op1(dest).Op2(op1).Op3(op2).WithOpcode(evex.OpXor).Assemble()
	return b.WriteBytes(bytes)
}

// Or assembles dest = op1 | op2 (vporw).
func (b *Buffer) Or(dest, op1, op2 evex.Zmm) error {
	bytes := evex.New().Op1(dest).Op2(op1).Op3(op2).WithOpcode(evex.OpOr).Assemble()
	return b.WriteBytes(bytes)
}

// OrMasked is Or with an opmask binding, used to merge a flag bit only
// into lanes where a prior vpcmpw set the mask.
func (b *Buffer) OrMasked(dest, op1, op2 evex.Zmm, k evex.K) error {
	bytes := evex.New().Op1(dest).Op2(op1).Op3(op2).WithOpcode(evex.OpOr).Mask(k).Assemble()
	return b.WriteBytes(bytes)
}

// And assembles dest = op1 & op2 (vpandq), unconditional across all
// lanes — used to clear a flag bit before a masked Or re-sets it.
func (b *Buffer) And(dest, op1, op2 evex.Zmm) error {
	bytes := evex.New().Op1(dest).Op2(op1).Op3(op2).WithOpcode(evex.OpAnd).Assemble()
	return b.WriteBytes(bytes)
}

// Cmp assembles k = left <op> right (vpcmpw).
func (b *Buffer) Cmp(k, left, right evex.Zmm, op CmpOp) error {
	bytes := evex.New().Op1(k).Op2(left).Op3(right).WithOpcode(evex.OpCmp).Imm(uint8(op)).Assemble()
	return b.WriteBytes(bytes)
}

// ClearZmm assembles dest = dest ^ dest (vpxorq self-clear), matching
// lib.rs's clear_zmm.
func (b *Buffer) ClearZmm(dest evex.Zmm) error {
	bytes := evex.New().Op1(dest).Op2(dest).WithOpcode(evex.OpXor).Assemble()
	return b.WriteBytes(bytes)
}

// Ret appends a bare host ret.
func (b *Buffer) Ret() error { return b.WriteBytes([]byte{0xc3}) }

// OperandToRegister resolves an IL operand to a concrete zmm register,
// broadcasting an immediate into a scratch register if needed, matching
// lib.rs's operand_to_register.
func (b *Buffer) OperandToRegister(op Operand) (evex.Zmm, error) {
	if !op.IsImmediate {
		return op.Zmm, nil
	}
	reg := b.NextScratch()
	if err := b.MovImm(reg, op.Immediate); err != nil {
		return 0, err
	}
	return reg, nil
}
