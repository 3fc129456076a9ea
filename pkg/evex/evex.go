// Package evex assembles the small subset of AVX-512 instructions the JIT
// translator needs, byte-exact to Section 2.7.1 of the Intel SDM's EVEX
// prefix layout, grounded on
// original_source/emu8086/jit/src/evex.rs's evex() function.
package evex

// Zmm names one of the 32 512-bit vector registers (zmm0-zmm31).
type Zmm uint8

func (z Zmm) needs4Bits() bool { return z&0b1000 != 0 }
func (z Zmm) needs5Bits() bool { return z&0b1_0000 != 0 }

// K names an opmask register, bound to an instruction with Mask (used by
// pkg/jit's masked broadcast and masked or).
type K uint8

// Opcode identifies one of the eight AVX-512 instructions this assembler
// knows how to emit, carrying both its one-byte encoding and its mmm/W
// classification.
type Opcode uint8

const (
	OpSub       Opcode = 0xf9
	OpMov       Opcode = 0x6f
	OpBroadcast Opcode = 0x7b
	OpCmp       Opcode = 0x3f
	OpAdd       Opcode = 0xfd
	// OpXor (vpxorq) and OpOr (vporw) are named in section 4.3's
	// restricted instruction set table with explicit opcode/map/W
	// values, but the retrieved evex.rs's AvxOpcode enum never defines
	// them even though lib.rs calls vpxorq!/vporw! macros that il.rs
	// also never defines — a gap in the retrieved source. The values
	// below are taken directly from the specification's table instead.
	OpXor Opcode = 0xef
	OpOr  Opcode = 0xeb
	// OpAnd (vpandq) backs the flag-merge clear-before-set sequence in
	// pkg/jit's setFlagBit, not a direct 8086 instruction lowering; same
	// 0F-map/W1 shape as OpXor (EVEX.NDS.512.66.0F.W1 DB /r).
	OpAnd Opcode = 0xdb
)

// prefixMmm compacts the two-byte/three-byte opcode map selector into the
// EVEX p0 byte's mm field.
type prefixMmm uint8

const (
	mmmF   prefixMmm = 1
	mmmF38 prefixMmm = 2
	mmmF3A prefixMmm = 3
)

func (o Opcode) mmm() prefixMmm {
	switch o {
	case OpBroadcast:
		return mmmF38
	case OpCmp:
		return mmmF3A
	default: // OpSub, OpMov, OpAdd, OpXor, OpOr, OpAnd
		return mmmF
	}
}

// isWide reports whether the opcode carries EVEX.W=1, matching the
// source's is_wide (true only for Cmp and Mov) extended per spec's table
// to also mark Xor and And wide (vpxorq/vpandq are quadword ops) while Or
// stays narrow (vporw is a word op, like Sub/Add/Broadcast).
func (o Opcode) isWide() bool {
	return o == OpCmp || o == OpMov || o == OpXor || o == OpAnd
}

// PrefixPp values from SDM Table 2-12, VEX.pp Interpretation. This
// assembler only ever emits P66 (the corpus's AVX512 instructions are all
// 66-prefixed), but the full enumeration documents the field's range.
const (
	ppNone uint8 = 0
	pp66   uint8 = 1
	ppF3   uint8 = 2
	ppF2   uint8 = 3
)

// Instruction is a builder for one EVEX-encoded instruction: two or three
// zmm operands, an opcode, and an optional immediate byte.
type Instruction struct {
	op1, op2, op3  Zmm
	hasOp1, hasOp2 bool
	hasOp3         bool
	opcode         Opcode
	hasOpcode      bool
	imm            uint8
	hasImm         bool
	mask           K
	hasMask        bool
}

func New() Instruction { return Instruction{} }

func (i Instruction) Op1(z Zmm) Instruction { i.op1, i.hasOp1 = z, true; return i }
func (i Instruction) Op2(z Zmm) Instruction { i.op2, i.hasOp2 = z, true; return i }
func (i Instruction) Op3(z Zmm) Instruction { i.op3, i.hasOp3 = z, true; return i }
func (i Instruction) WithOpcode(op Opcode) Instruction {
	i.opcode, i.hasOpcode = op, true
	return i
}
func (i Instruction) Imm(v uint8) Instruction { i.imm, i.hasImm = v, true; return i }

// Mask binds an opmask register (EVEX.aaa), realizing the predicated
// merge section 4.3 describes for a masked vpbroadcastw/vporw: only
// lanes where the mask bit is 1 are written.
func (i Instruction) Mask(k K) Instruction { i.mask, i.hasMask = k, true; return i }

// Assemble renders the instruction's EVEX-prefixed bytes. It panics if
// op1, op2, or the opcode were never set, mirroring the source's
// assert!-based preconditions — a missing required field is a
// programming error in the translator, not a recoverable condition.
func (i Instruction) Assemble() []byte {
	if !i.hasOp1 {
		panic("evex: cannot assemble instruction without op1")
	}
	if !i.hasOp2 {
		panic("evex: cannot assemble instruction without op2")
	}
	if !i.hasOpcode {
		panic("evex: cannot assemble instruction without opcode")
	}
	var op3 *Zmm
	if i.hasOp3 {
		op3 = &i.op3
	}
	var imm *uint8
	if i.hasImm {
		imm = &i.imm
	}
	var aaa uint8
	if i.hasMask {
		aaa = uint8(i.mask) & 0x7
	}
	return assemble(i.opcode, i.op1, i.op2, op3, imm, aaa)
}

// assemble is the direct Go translation of evex.rs's evex() function:
// same bit layout, same two/three-operand (dst,dst,src) normalization,
// same 6- or 7-byte result depending on whether an immediate is present.
// aaa is the opmask field (0 when no mask is bound), a generalization
// the source never exercises but section 4.3's predicated-merge usage
// requires.
func assemble(opcode Opcode, op1, op2 Zmm, op3 *Zmm, imm *uint8, aaa uint8) []byte {
	const evexPrefix = 0x62

	hasThreeOps := op3 != nil

	// (dst, src) => (dst, dst, src)
	var resolvedOp2, resolvedOp3 Zmm
	if hasThreeOps {
		resolvedOp2, resolvedOp3 = op2, *op3
	} else {
		resolvedOp2, resolvedOp3 = op1, op2
	}

	// p0: R X B R' 0 0 m m
	r := b2u8(!op1.needs4Bits())
	x := b2u8(!resolvedOp3.needs5Bits())
	b := b2u8(!resolvedOp3.needs4Bits())
	rprime := b2u8(!op1.needs5Bits())
	mmm := uint8(opcode.mmm())
	p0 := (r << 7) | (x << 6) | (b << 5) | (rprime << 4) | mmm

	// p1: W v v v v 1 p p
	w := b2u8(opcode.isWide())
	var vvvv uint8
	if hasThreeOps {
		vvvv = uint8(^resolvedOp2) & 0xf
	} else {
		vvvv = 0xf
	}
	p1 := (w << 7) | (vvvv << 3) | (1 << 2) | pp66

	// p2: z L'L b V' a a a
	var vprime uint8 = 1
	if hasThreeOps {
		vprime = b2u8(!resolvedOp2.needs5Bits())
	}
	const ll = 2 // 512-bit vector length, always
	p2 := (ll << 5) | (vprime << 3) | (aaa & 0x7)

	// ModRM: always register-direct addressing between op1 and resolvedOp3.
	r1 := uint8(op1)
	r2 := uint8(resolvedOp3)
	modrm := (3 << 6) | ((r1 & 0b111) << 3) | (r2 & 0b111)

	if imm != nil {
		return []byte{evexPrefix, p0, p1, p2, uint8(opcode), modrm, *imm}
	}
	return []byte{evexPrefix, p0, p1, p2, uint8(opcode), modrm}
}

// opMovLoad/opMovStore are vmovdqa64's two opcodes: loading a zmm from
// memory and storing a zmm to memory use different second-opcode bytes
// even though both are "mov" at the IL level.
const (
	opMovLoad  = 0x6f
	opMovStore = 0x7f
)

// AssembleContextMove builds a vmovdqa64 between zmm and the memory
// operand [baseReg + disp32]. Section 4.3's fixed instruction set only
// names register-direct forms; the entry stub's prologue/epilogue needs
// a memory operand to reach the context struct, and the design notes
// direct using this assembler "end to end" for that rather than a
// separate textual template. baseReg is a plain GPR index (the entry
// stub always passes 15, for r15); disp32 is the field's byte offset in
// the context struct.
func AssembleContextMove(zmm Zmm, baseReg uint8, disp int32, store bool) []byte {
	const evexPrefix = 0x62

	r := b2u8(!zmm.needs4Bits())
	x := b2u8(true) // no SIB index in this addressing form
	b := b2u8(!(Zmm(baseReg).needs4Bits()))
	rprime := b2u8(!zmm.needs5Bits())
	p0 := (r << 7) | (x << 6) | (b << 5) | (rprime << 4) | uint8(mmmF)

	const w = 1 // vmovdqa64 is W1
	p1 := (uint8(w) << 7) | (0xf << 3) | (1 << 2) | pp66

	const ll = 2
	p2 := uint8((ll << 5) | (1 << 3)) // V' defaults to 1: vvvv unused in a 2-operand mem form

	opcode := uint8(opMovLoad)
	if store {
		opcode = opMovStore
	}

	const modDisp32 = 0b10
	modrm := (modDisp32 << 6) | ((uint8(zmm) & 7) << 3) | (baseReg & 7)

	out := []byte{evexPrefix, p0, p1, p2, opcode, modrm}
	var dispBytes [4]byte
	dispBytes[0] = byte(disp)
	dispBytes[1] = byte(disp >> 8)
	dispBytes[2] = byte(disp >> 16)
	dispBytes[3] = byte(disp >> 24)
	return append(out, dispBytes[:]...)
}

func b2u8(v bool) uint8 {
	if v {
		return 1
	}
	return 0
}
