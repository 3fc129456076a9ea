package jit

import (
	"github.com/emu8086/core/pkg/cpu"
	"github.com/emu8086/core/pkg/emuerr"
	"github.com/emu8086/core/pkg/evex"
	"github.com/emu8086/core/pkg/inst8086"
)

// zeroFlagKmask is the opmask register used throughout flag synthesis,
// hardcoded to k3 like lib.rs's `let kmask = Kmask(3)`.
const zeroFlagKmask evex.K = 3

// flagsZmm is the FLAGS register's permanent vector assignment.
var flagsZmm = evex.Zmm(inst8086.FLAGS.Zmm())

// cmpScratchZmm holds a cmp instruction's subtraction result across the
// several NextScratch calls synthesizeFlags makes while deriving flag
// bits from it. It sits just below the scratchRegisters ring (28-31) so
// that ring wraparound inside setFlagBit can never reassign the same
// physical register to both the live result and one of its own
// temporaries mid-computation.
const cmpScratchZmm evex.Zmm = 27

// operandToIL maps a decoded operand to the IL-level operand shape: a
// permanently-assigned zmm register for a Register operand, or an
// immediate to be broadcast. Any other operand kind (sub-register,
// segment register, memory) is not supported in the vectorized path in
// this minimum set, matching section 4.4's "Memory operand ... fail
// with Unimplemented" contract, generalized to every non-register kind
// since none of them has a permanent vector assignment.
func operandToIL(instr inst8086.Instruction, op inst8086.Operand) (Operand, error) {
	switch op.Kind {
	case inst8086.OperandRegister:
		return ZmmOperand(evex.Zmm(op.Reg.Zmm())), nil
	case inst8086.OperandImmediate:
		return ImmediateOperand(op.Immediate), nil
	default:
		return Operand{}, &emuerr.Unimplemented{Instr: instr}
	}
}

// Lower emits host instructions implementing instr's semantics on all 32
// lanes simultaneously, per section 4.4's contract. It returns
// *emuerr.Unimplemented for any instruction or operand shape outside the
// minimum vectorized set; the caller may fall back to the scalar
// executor for that step.
func Lower(buf *Buffer, instr inst8086.Instruction) error {
	switch instr.Kind {
	case inst8086.Mov:
		return lowerMov(buf, instr)
	case inst8086.Add:
		return lowerArith(buf, instr, buf.Add, false)
	case inst8086.Sub:
		return lowerArith(buf, instr, buf.Sub, true)
	case inst8086.Xor:
		return lowerArith(buf, instr, buf.Xor, false)
	case inst8086.Or:
		return lowerArith(buf, instr, buf.Or, false)
	case inst8086.Cmp:
		return lowerCmp(buf, instr)
	default:
		return &emuerr.Unimplemented{Instr: instr}
	}
}

func lowerMov(buf *Buffer, instr inst8086.Instruction) error {
	if !instr.HasDest || instr.Dest.Kind != inst8086.OperandRegister {
		return &emuerr.Unimplemented{Instr: instr}
	}
	dest := evex.Zmm(instr.Dest.Reg.Zmm())
	src, err := operandToIL(instr, instr.Src)
	if err != nil {
		return err
	}
	if src.IsImmediate {
		return buf.MovImm(dest, src.Immediate)
	}
	return buf.Mov(dest, src.Zmm)
}

// lowerArith lowers add/sub/xor/or: dest = dest <op> src, where op is
// one of Buffer's three-zmm-operand emitters. sub additionally
// synthesizes the Zero and Sign flags from the result, matching lib.rs's
// sub() calling set_zero_flag/set_sign_flag inline.
func lowerArith(buf *Buffer, instr inst8086.Instruction, emit func(dest, op1, op2 evex.Zmm) error, setsFlags bool) error {
	if !instr.HasDest || instr.Dest.Kind != inst8086.OperandRegister {
		return &emuerr.Unimplemented{Instr: instr}
	}
	dest := evex.Zmm(instr.Dest.Reg.Zmm())
	src, err := operandToIL(instr, instr.Src)
	if err != nil {
		return err
	}
	srcReg, err := buf.OperandToRegister(src)
	if err != nil {
		return err
	}
	if err := emit(dest, dest, srcReg); err != nil {
		return err
	}
	if setsFlags {
		return synthesizeFlags(buf, dest)
	}
	return nil
}

// lowerCmp computes left - right into a scratch register without
// writing back to either operand, then synthesizes flags from the
// scratch, matching section 4.4's "leave result in a scratch (for cmp)".
func lowerCmp(buf *Buffer, instr inst8086.Instruction) error {
	if !instr.HasDest || instr.Dest.Kind != inst8086.OperandRegister {
		return &emuerr.Unimplemented{Instr: instr}
	}
	left := evex.Zmm(instr.Dest.Reg.Zmm())
	right, err := operandToIL(instr, instr.Src)
	if err != nil {
		return err
	}
	rightReg, err := buf.OperandToRegister(right)
	if err != nil {
		return err
	}
	if err := buf.Sub(cmpScratchZmm, left, rightReg); err != nil {
		return err
	}
	return synthesizeFlags(buf, cmpScratchZmm)
}

// synthesizeFlags sets the Zero and Sign flag bits in the vectorized
// FLAGS register from result, per-lane, matching lib.rs's
// set_zero_flag/set_sign_flag. Each bit is cleared across every lane
// before the masked Or re-sets it where the predicate holds, so a flag
// can actually turn off across repeated lowering, not just on.
func synthesizeFlags(buf *Buffer, result evex.Zmm) error {
	if err := setFlagBit(buf, result, CmpEqual, uint16(cpu.FlagZero)); err != nil {
		return err
	}
	return setFlagBit(buf, result, CmpLessThan, uint16(cpu.FlagSign))
}

func setFlagBit(buf *Buffer, result evex.Zmm, predicate CmpOp, bit uint16) error {
	clearMask := buf.NextScratch()
	if err := buf.MovImm(clearMask, int16(^bit)); err != nil {
		return err
	}
	if err := buf.And(flagsZmm, flagsZmm, clearMask); err != nil {
		return err
	}

	zero := buf.NextScratch()
	if err := buf.ClearZmm(zero); err != nil {
		return err
	}
	if err := buf.Cmp(evex.Zmm(zeroFlagKmask), result, zero, predicate); err != nil {
		return err
	}
	tmp := buf.NextScratch()
	if err := buf.MovImmMasked(tmp, int16(bit), zeroFlagKmask); err != nil {
		return err
	}
	return buf.OrMasked(flagsZmm, flagsZmm, tmp, zeroFlagKmask)
}
