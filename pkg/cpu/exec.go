package cpu

import (
	"github.com/emu8086/core/pkg/emuerr"
	"github.com/emu8086/core/pkg/inst8086"
)

// Execute applies one decoded instruction to state and memory, advancing
// IP by instr.Length unless the instruction itself redirects control flow.
// It mirrors the teacher's giant-switch-plus-small-ALU-helpers shape
// (pkg/cpu/exec.go's Exec/execAdd/execSub/execCp), generalized from the
// Z80's accumulator-centric model to 8086's richer operand shapes.
func Execute(s *State, mem *Memory, instr inst8086.Instruction) error {
	next := s.IP() + uint16(instr.Length)

	switch instr.Kind {
	case inst8086.Mov:
		v, err := readOperand(s, mem, instr.Src)
		if err != nil {
			return err
		}
		if err := writeOperand(s, mem, instr.Dest, v); err != nil {
			return err
		}

	case inst8086.Push:
		v, err := readOperand(s, mem, instr.Dest)
		if err != nil {
			return err
		}
		if err := push(s, mem, v); err != nil {
			return err
		}

	case inst8086.Pop:
		v, err := pop(s, mem)
		if err != nil {
			return err
		}
		if err := writeOperand(s, mem, instr.Dest, v); err != nil {
			return err
		}

	case inst8086.Xchg:
		a, err := readOperand(s, mem, instr.Dest)
		if err != nil {
			return err
		}
		b, err := readOperand(s, mem, instr.Src)
		if err != nil {
			return err
		}
		if err := writeOperand(s, mem, instr.Dest, b); err != nil {
			return err
		}
		if err := writeOperand(s, mem, instr.Src, a); err != nil {
			return err
		}

	case inst8086.Lea:
		if instr.Src.Kind != inst8086.OperandMemory {
			return &emuerr.Unimplemented{Instr: instr}
		}
		s.WriteRegister(instr.Dest.Reg, uint16(effectiveAddress(s, instr.Src.Mem)))

	case inst8086.Lahf:
		ah := uint8(s.Flags())
		s.WriteSubRegister(inst8086.SubRegister{Main: inst8086.AX, Part: inst8086.High}, ah)

	case inst8086.Sahf:
		ah := s.ReadSubRegister(inst8086.SubRegister{Main: inst8086.AX, Part: inst8086.High})
		const lowMask = FlagCarry | FlagParity | FlagAuxiliary | FlagZero | FlagSign
		s.SetFlags((s.Flags() &^ 0xFF) | uint16(ah)&lowMask)

	case inst8086.Pushf:
		if err := push(s, mem, s.Flags()); err != nil {
			return err
		}

	case inst8086.Popf:
		v, err := pop(s, mem)
		if err != nil {
			return err
		}
		s.SetFlags(v)

	case inst8086.Add, inst8086.Adc, inst8086.Sub, inst8086.Sbb, inst8086.Cmp,
		inst8086.And, inst8086.Or, inst8086.Xor, inst8086.Test:
		a, err := readOperand(s, mem, instr.Dest)
		if err != nil {
			return err
		}
		b, err := readOperand(s, mem, instr.Src)
		if err != nil {
			return err
		}
		result, writeBack := execAlu(s, instr.Kind, a, b)
		if writeBack {
			if err := writeOperand(s, mem, instr.Dest, result); err != nil {
				return err
			}
		}

	case inst8086.Inc, inst8086.Dec:
		v, err := readOperand(s, mem, instr.Dest)
		if err != nil {
			return err
		}
		var one uint16 = 1
		var result uint16
		if instr.Kind == inst8086.Inc {
			result = v + one
		} else {
			result = v - one
		}
		// INC/DEC preserve Carry, per the 8086 contract; only the other
		// five arithmetic flags are resynthesized.
		carry := s.Flags() & FlagCarry
		s.SetFlags((mergeArithmeticFlags(s.Flags(), result, v, one) &^ FlagCarry) | carry)
		if err := writeOperand(s, mem, instr.Dest, result); err != nil {
			return err
		}

	case inst8086.Neg:
		v, err := readOperand(s, mem, instr.Dest)
		if err != nil {
			return err
		}
		result := uint16(0) - v
		s.SetFlags(mergeArithmeticFlags(s.Flags(), result, 0, v))
		if err := writeOperand(s, mem, instr.Dest, result); err != nil {
			return err
		}

	case inst8086.Not:
		v, err := readOperand(s, mem, instr.Dest)
		if err != nil {
			return err
		}
		if err := writeOperand(s, mem, instr.Dest, ^v); err != nil {
			return err
		}

	case inst8086.Shl, inst8086.Shr, inst8086.Sar, inst8086.Rol, inst8086.Ror,
		inst8086.Rcl, inst8086.Rcr:
		v, err := readOperand(s, mem, instr.Dest)
		if err != nil {
			return err
		}
		count, err := readOperand(s, mem, instr.ShiftCount)
		if err != nil {
			return err
		}
		result := execShift(s, instr.Kind, v, uint8(count), instr.Dest.IsWord())
		if err := writeOperand(s, mem, instr.Dest, result); err != nil {
			return err
		}

	case inst8086.Daa, inst8086.Das, inst8086.Aaa, inst8086.Aas:
		al := s.ReadSubRegister(inst8086.SubRegister{Main: inst8086.AX, Part: inst8086.Low})
		al, ah := execBcd(s, instr.Kind, al, s.ReadSubRegister(inst8086.SubRegister{Main: inst8086.AX, Part: inst8086.High}))
		s.WriteSubRegister(inst8086.SubRegister{Main: inst8086.AX, Part: inst8086.Low}, al)
		s.WriteSubRegister(inst8086.SubRegister{Main: inst8086.AX, Part: inst8086.High}, ah)

	case inst8086.Cbw:
		al := int8(s.ReadSubRegister(inst8086.SubRegister{Main: inst8086.AX, Part: inst8086.Low}))
		s.WriteRegister(inst8086.AX, uint16(int16(al)))

	case inst8086.Cwd:
		ax := int16(s.ReadRegister(inst8086.AX))
		if ax < 0 {
			s.WriteRegister(inst8086.DX, 0xFFFF)
		} else {
			s.WriteRegister(inst8086.DX, 0)
		}

	case inst8086.Movsb, inst8086.Movsw, inst8086.Cmpsb, inst8086.Cmpsw,
		inst8086.Scasb, inst8086.Scasw, inst8086.Lodsb, inst8086.Lodsw,
		inst8086.Stosb, inst8086.Stosw:
		if err := execStringOp(s, mem, instr); err != nil {
			return err
		}

	case inst8086.Jmp:
		s.SetIP(next + uint16(instr.JumpOffset) - uint16(instr.Length))
		return nil

	case inst8086.Call:
		if err := push(s, mem, next); err != nil {
			return err
		}
		s.SetIP(next + uint16(instr.JumpOffset) - uint16(instr.Length))
		return nil

	case inst8086.Ret:
		target, err := pop(s, mem)
		if err != nil {
			return err
		}
		s.SetIP(target)
		return nil

	case inst8086.RetImm:
		target, err := pop(s, mem)
		if err != nil {
			return err
		}
		sp := s.ReadRegister(inst8086.SP) + uint16(instr.Src.Immediate)
		s.WriteRegister(inst8086.SP, sp)
		s.SetIP(target)
		return nil

	case inst8086.Loop, inst8086.Loopz, inst8086.Loopnz, inst8086.Jcxz:
		cx := s.ReadRegister(inst8086.CX)
		taken := false
		switch instr.Kind {
		case inst8086.Jcxz:
			taken = cx == 0
		case inst8086.Loop:
			if cx > 0 {
				cx--
			}
			s.WriteRegister(inst8086.CX, cx)
			taken = cx != 0
		case inst8086.Loopz:
			if cx > 0 {
				cx--
			}
			s.WriteRegister(inst8086.CX, cx)
			taken = cx != 0 && s.Flags()&FlagZero != 0
		case inst8086.Loopnz:
			if cx > 0 {
				cx--
			}
			s.WriteRegister(inst8086.CX, cx)
			taken = cx != 0 && s.Flags()&FlagZero == 0
		}
		if taken {
			s.SetIP(next + uint16(instr.JumpOffset) - 2)
		} else {
			s.SetIP(next)
		}
		return nil

	case inst8086.Clc:
		s.SetFlags(s.Flags() &^ FlagCarry)
	case inst8086.Stc:
		s.SetFlags(s.Flags() | FlagCarry)
	case inst8086.Cmc:
		s.SetFlags(s.Flags() ^ FlagCarry)
	case inst8086.Cld, inst8086.Std, inst8086.Cli, inst8086.Sti:
		// Direction/interrupt flags are outside the FLAGS bits this
		// emulator models (no DF/IF bit is defined by SPEC_FULL.md §3);
		// recognized and accepted as no-ops rather than Unimplemented.
	case inst8086.Nop, inst8086.Wait, inst8086.Lock:
		// no state change

	case inst8086.Hlt:
		// no state change beyond IP

	default:
		if inst8086.IsConditionalJump(instr.Kind) {
			if conditionHolds(s, instr.Kind) {
				s.SetIP(next + uint16(instr.JumpOffset) - 2)
			} else {
				s.SetIP(next)
			}
			return nil
		}
		return &emuerr.Unimplemented{Instr: instr}
	}

	s.SetIP(next)
	return nil
}

// conditionHolds evaluates the sixteen condition-code jump predicates
// against the current FLAGS word.
func conditionHolds(s *State, k inst8086.Kind) bool {
	f := s.Flags()
	cf := f&FlagCarry != 0
	zf := f&FlagZero != 0
	sf := f&FlagSign != 0
	of := f&FlagOverflow != 0
	pf := f&FlagParity != 0
	switch k {
	case inst8086.Jo:
		return of
	case inst8086.Jno:
		return !of
	case inst8086.Jb:
		return cf
	case inst8086.Jae:
		return !cf
	case inst8086.Je:
		return zf
	case inst8086.Jne:
		return !zf
	case inst8086.Jbe:
		return cf || zf
	case inst8086.Ja:
		return !cf && !zf
	case inst8086.Js:
		return sf
	case inst8086.Jns:
		return !sf
	case inst8086.Jp:
		return pf
	case inst8086.Jnp:
		return !pf
	case inst8086.Jl:
		return sf != of
	case inst8086.Jge:
		return sf == of
	case inst8086.Jle:
		return zf || sf != of
	case inst8086.Jg:
		return !zf && sf == of
	default:
		return false
	}
}

// execAlu dispatches the nine two-operand arithmetic/logic Kinds,
// synthesizing flags via mergeArithmeticFlags and reporting whether the
// result should be written back (Cmp and Test only update flags).
func execAlu(s *State, k inst8086.Kind, a, b uint16) (result uint16, writeBack bool) {
	switch k {
	case inst8086.Add:
		result = a + b
	case inst8086.Adc:
		result = a + b + (s.Flags() & FlagCarry)
	case inst8086.Sub, inst8086.Cmp:
		result = a - b
	case inst8086.Sbb:
		result = a - b - (s.Flags() & FlagCarry)
	case inst8086.And, inst8086.Test:
		result = a & b
	case inst8086.Or:
		result = a | b
	case inst8086.Xor:
		result = a ^ b
	}
	s.SetFlags(mergeArithmeticFlags(s.Flags(), result, a, b))
	writeBack = k != inst8086.Cmp && k != inst8086.Test
	return result, writeBack
}

// execShift implements the seven shift/rotate Kinds, masking the count
// read from the ShiftCount operand to its low five bits.
func execShift(s *State, k inst8086.Kind, v uint16, count uint8, wide bool) uint16 {
	width := uint8(8)
	if wide {
		width = 16
	}
	count &= 0x1F
	result := v
	var lastOut bool
	for i := uint8(0); i < count; i++ {
		switch k {
		case inst8086.Shl:
			lastOut = result&(1<<(width-1)) != 0
			result <<= 1
		case inst8086.Shr:
			lastOut = result&1 != 0
			result >>= 1
		case inst8086.Sar:
			lastOut = result&1 != 0
			signBit := result & (1 << (width - 1))
			result = (result >> 1) | signBit
		case inst8086.Rol:
			top := result & (1 << (width - 1))
			result = (result << 1) | bsel16(top != 0, 1, 0)
			lastOut = result&1 != 0
		case inst8086.Ror:
			lastOut = result&1 != 0
			result = (result >> 1) | bsel16(lastOut, 1<<(width-1), 0)
		case inst8086.Rcl:
			carryIn := s.Flags() & FlagCarry
			lastOut = result&(1<<(width-1)) != 0
			result = (result << 1) | carryIn
		case inst8086.Rcr:
			carryIn := s.Flags() & FlagCarry
			lastOut = result&1 != 0
			result = (result >> 1) | (carryIn << (width - 1))
		}
		if k == inst8086.Rcl || k == inst8086.Rcr {
			s.SetFlags(bsel16(lastOut, s.Flags()|FlagCarry, s.Flags()&^FlagCarry))
		}
	}
	if count > 0 {
		switch k {
		case inst8086.Shl, inst8086.Shr, inst8086.Sar:
			s.SetFlags(mergeArithmeticFlags(s.Flags(), result, v, 0))
			s.SetFlags(bsel16(lastOut, s.Flags()|FlagCarry, s.Flags()&^FlagCarry))
		case inst8086.Rol, inst8086.Ror:
			s.SetFlags(bsel16(lastOut, s.Flags()|FlagCarry, s.Flags()&^FlagCarry))
		}
	}
	return result
}

// execBcd implements the four BCD adjust instructions on AL (and AH for
// AAA/AAS), using the Carry and Auxiliary bits as both input and output
// per the classic decimal-adjust algorithms.
func execBcd(s *State, k inst8086.Kind, al, ah uint8) (newAL, newAH uint8) {
	af := s.Flags()&FlagAuxiliary != 0
	cf := s.Flags()&FlagCarry != 0
	switch k {
	case inst8086.Daa:
		oldAL := al
		if al&0x0F > 9 || af {
			al += 6
			af = true
		}
		if oldAL > 0x99 || cf {
			al += 0x60
			cf = true
		}
	case inst8086.Das:
		oldAL := al
		if al&0x0F > 9 || af {
			al -= 6
			af = true
		}
		if oldAL > 0x99 || cf {
			al -= 0x60
			cf = true
		}
	case inst8086.Aaa:
		if al&0x0F > 9 || af {
			al += 6
			ah++
			af = true
			cf = true
		} else {
			af = false
			cf = false
		}
		al &= 0x0F
	case inst8086.Aas:
		if al&0x0F > 9 || af {
			al -= 6
			ah--
			af = true
			cf = true
		} else {
			af = false
			cf = false
		}
		al &= 0x0F
	}
	flags := s.Flags() &^ (FlagAuxiliary | FlagCarry)
	if af {
		flags |= FlagAuxiliary
	}
	if cf {
		flags |= FlagCarry
	}
	s.SetFlags(flags)
	return al, ah
}

// execStringOp implements MOVS/CMPS/SCAS/LODS/STOS, including the
// repeat-prefix loop: the decoder yields one Instruction per repeated
// invocation and execStringOp runs the whole repetition here rather than
// re-decoding, since the index registers advance by a fixed step every
// iteration and the prefix byte itself is never redecoded mid-loop.
func execStringOp(s *State, mem *Memory, instr inst8086.Instruction) error {
	word := instr.Kind == inst8086.Movsw || instr.Kind == inst8086.Cmpsw ||
		instr.Kind == inst8086.Scasw || instr.Kind == inst8086.Lodsw ||
		instr.Kind == inst8086.Stosw

	step := uint16(1)
	if word {
		step = 2
	}

	iterate := func() (stop bool, err error) {
		si := s.ReadRegister(inst8086.SI)
		di := s.ReadRegister(inst8086.DI)
		switch instr.Kind {
		case inst8086.Movsb, inst8086.Movsw:
			v, err := readMem(mem, uint32(si), word)
			if err != nil {
				return true, err
			}
			if err := writeMem(mem, uint32(di), v, word); err != nil {
				return true, err
			}
			s.WriteRegister(inst8086.SI, si+step)
			s.WriteRegister(inst8086.DI, di+step)
		case inst8086.Cmpsb, inst8086.Cmpsw:
			a, err := readMem(mem, uint32(si), word)
			if err != nil {
				return true, err
			}
			b, err := readMem(mem, uint32(di), word)
			if err != nil {
				return true, err
			}
			execAlu(s, inst8086.Cmp, a, b)
			s.WriteRegister(inst8086.SI, si+step)
			s.WriteRegister(inst8086.DI, di+step)
		case inst8086.Scasb, inst8086.Scasw:
			var a uint16
			if word {
				a = s.ReadRegister(inst8086.AX)
			} else {
				a = uint16(s.ReadSubRegister(inst8086.SubRegister{Main: inst8086.AX, Part: inst8086.Low}))
			}
			b, err := readMem(mem, uint32(di), word)
			if err != nil {
				return true, err
			}
			execAlu(s, inst8086.Cmp, a, b)
			s.WriteRegister(inst8086.DI, di+step)
		case inst8086.Lodsb, inst8086.Lodsw:
			v, err := readMem(mem, uint32(si), word)
			if err != nil {
				return true, err
			}
			if word {
				s.WriteRegister(inst8086.AX, v)
			} else {
				s.WriteSubRegister(inst8086.SubRegister{Main: inst8086.AX, Part: inst8086.Low}, uint8(v))
			}
			s.WriteRegister(inst8086.SI, si+step)
		case inst8086.Stosb, inst8086.Stosw:
			var v uint16
			if word {
				v = s.ReadRegister(inst8086.AX)
			} else {
				v = uint16(s.ReadSubRegister(inst8086.SubRegister{Main: inst8086.AX, Part: inst8086.Low}))
			}
			if err := writeMem(mem, uint32(di), v, word); err != nil {
				return true, err
			}
			s.WriteRegister(inst8086.DI, di+step)
		}
		return false, nil
	}

	if instr.Repeat == inst8086.RepeatNone {
		_, err := iterate()
		return err
	}

	isCompareLike := instr.Kind == inst8086.Cmpsb || instr.Kind == inst8086.Cmpsw ||
		instr.Kind == inst8086.Scasb || instr.Kind == inst8086.Scasw
	for {
		cx := s.ReadRegister(inst8086.CX)
		if cx == 0 {
			break
		}
		stop, err := iterate()
		cx--
		s.WriteRegister(inst8086.CX, cx)
		if err != nil {
			return err
		}
		if stop {
			break
		}
		if isCompareLike {
			zf := s.Flags()&FlagZero != 0
			if instr.Repeat == inst8086.RepeatWhileZFSet && !zf {
				break
			}
			if instr.Repeat == inst8086.RepeatWhileZFClear && zf {
				break
			}
		}
		if cx == 0 {
			break
		}
	}
	return nil
}

func push(s *State, mem *Memory, v uint16) error {
	sp := s.ReadRegister(inst8086.SP) - 2
	s.WriteRegister(inst8086.SP, sp)
	return writeMem(mem, uint32(sp), v, true)
}

func pop(s *State, mem *Memory) (uint16, error) {
	sp := s.ReadRegister(inst8086.SP)
	v, err := readMem(mem, uint32(sp), true)
	if err != nil {
		return 0, err
	}
	s.WriteRegister(inst8086.SP, sp+2)
	return v, nil
}

// effectiveAddress computes a MemoryOperand's 16-bit address, matching
// the decoder's base1[+base2][+disp] / direct-address contract.
func effectiveAddress(s *State, m inst8086.MemoryOperand) uint32 {
	if m.HasDirect {
		return uint32(m.Direct)
	}
	addr := int32(0)
	if m.HasBase1 {
		addr += int32(s.ReadRegister(m.Base1))
	}
	if m.HasBase2 {
		addr += int32(s.ReadRegister(m.Base2))
	}
	if m.HasDisp {
		addr += int32(m.Disp)
	}
	return uint32(uint16(addr))
}

func readMem(mem *Memory, addr uint32, word bool) (uint16, error) {
	if word {
		return mem.ReadWord(addr), nil
	}
	return uint16(mem.ReadByte(addr)), nil
}

func writeMem(mem *Memory, addr uint32, v uint16, word bool) error {
	if word {
		mem.WriteWord(addr, v)
	} else {
		mem.WriteByte(addr, uint8(v))
	}
	return nil
}

// readOperand resolves any Operand to its 16-bit-carried value: register
// and immediate operands return directly, sub-registers are zero-extended
// in the low byte, and memory operands route through the addressed read.
func readOperand(s *State, mem *Memory, op inst8086.Operand) (uint16, error) {
	switch op.Kind {
	case inst8086.OperandRegister:
		return s.ReadRegister(op.Reg), nil
	case inst8086.OperandSubRegister:
		return uint16(s.ReadSubRegister(op.Sub)), nil
	case inst8086.OperandSegmentRegister:
		return s.ReadSegment(op.Seg), nil
	case inst8086.OperandImmediate:
		return uint16(op.Immediate), nil
	case inst8086.OperandMemory:
		addr := effectiveAddress(s, op.Mem)
		return readMem(mem, addr, op.Mem.Size == inst8086.SizeWord)
	default:
		return 0, nil
	}
}

// writeOperand is readOperand's write-side counterpart.
func writeOperand(s *State, mem *Memory, op inst8086.Operand, v uint16) error {
	switch op.Kind {
	case inst8086.OperandRegister:
		s.WriteRegister(op.Reg, v)
	case inst8086.OperandSubRegister:
		s.WriteSubRegister(op.Sub, uint8(v))
	case inst8086.OperandSegmentRegister:
		s.WriteSegment(op.Seg, v)
	case inst8086.OperandMemory:
		addr := effectiveAddress(s, op.Mem)
		return writeMem(mem, addr, v, op.Mem.Size == inst8086.SizeWord)
	}
	return nil
}
