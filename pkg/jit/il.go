// Package jit lowers decoded 8086 instructions to host AVX-512 bytes
// operating on 32 emulated cores in lockstep, grounded on
// original_source/emu8086/jit/src/lib.rs and il.rs.
package jit

import "github.com/emu8086/core/pkg/evex"

// CmpOp names a vpcmpw predicate, matching il.rs's CmpOp enum and its
// imm8[2:0] encoding straight from the SDM pseudocode comment above it.
type CmpOp uint8

const (
	CmpEqual CmpOp = iota
	CmpLessThan
	CmpLessThanEqual
	CmpFalse
	CmpNotEqual
	CmpGreaterThanEqual
	CmpGreaterThan
	CmpTrue
)

// Operand is an IL-level operand: either a permanently-assigned (or
// scratch) zmm register, or an immediate to be broadcast into a scratch
// register before use.
type Operand struct {
	IsImmediate bool
	Zmm         evex.Zmm
	Immediate   int16
}

func ZmmOperand(z evex.Zmm) Operand    { return Operand{Zmm: z} }
func ImmediateOperand(v int16) Operand { return Operand{IsImmediate: true, Immediate: v} }
