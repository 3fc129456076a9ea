// Package decoder turns a raw 8086 byte stream into inst8086.Instruction
// values, one instruction per call, grounded on
// original_source/emu8086/cpu8086/src/decoder.rs's byte-range dispatch.
package decoder

import (
	"github.com/emu8086/core/pkg/cpu"
	"github.com/emu8086/core/pkg/emuerr"
	"github.com/emu8086/core/pkg/inst8086"
)

type rmEntry struct {
	Base1    inst8086.Register
	Base2    inst8086.Register
	HasBase2 bool
}

// rmTable is the canonical (mod != 11) r/m-field table; entry 6 (BP alone)
// only applies when mod != 00, where it is instead the direct-address
// special case.
var rmTable = [8]rmEntry{
	{Base1: inst8086.BX, Base2: inst8086.SI, HasBase2: true},
	{Base1: inst8086.BX, Base2: inst8086.DI, HasBase2: true},
	{Base1: inst8086.BP, Base2: inst8086.SI, HasBase2: true},
	{Base1: inst8086.BP, Base2: inst8086.DI, HasBase2: true},
	{Base1: inst8086.SI},
	{Base1: inst8086.DI},
	{Base1: inst8086.BP},
	{Base1: inst8086.BX},
}

// Decode reads one instruction starting at byte offset ip in mem. It
// returns the instruction with Length set to the total number of bytes
// consumed, including any segment-override prefix.
func Decode(mem *cpu.Memory, ip int) (inst8086.Instruction, error) {
	base := ip
	var segment inst8086.SegmentRegister
	hasSegment := false

	for {
		b0, err := mem.ReadByteChecked(base)
		if err != nil {
			return inst8086.Instruction{}, err
		}

		if ss, ok := segmentPrefixBits(b0); ok {
			segment, _ = inst8086.SegmentRegisterFromBits(ss)
			hasSegment = true
			base++
			continue
		}

		instr, size, err := decodeOne(mem, base, b0, segment, hasSegment)
		if err != nil {
			return inst8086.Instruction{}, err
		}
		instr.Length = (base - ip) + size
		return instr, nil
	}
}

// segmentPrefixBits recognizes the four segment-override prefix bytes
// (0b001SS110) and returns their SS field.
func segmentPrefixBits(b byte) (uint8, bool) {
	if b&0b1110_0111 == 0b0010_0110 {
		return (b >> 3) & 0b11, true
	}
	return 0, false
}

func decodeOne(mem *cpu.Memory, base int, b0 byte, segment inst8086.SegmentRegister, hasSegment bool) (inst8086.Instruction, int, error) {
	applySeg := func(m *inst8086.MemoryOperand) {
		if hasSegment {
			m.Segment = segment
			m.HasSegment = true
		}
	}

	switch {
	// MOV/ADD/OR/ADC/SBB/AND/SUB/XOR/CMP register/memory to/from register.
	case inRange(b0, 0x88, 0x8B), inRange(b0, 0x00, 0x03), inRange(b0, 0x08, 0x0B),
		inRange(b0, 0x10, 0x13), inRange(b0, 0x18, 0x1B), inRange(b0, 0x20, 0x23),
		inRange(b0, 0x28, 0x2B), inRange(b0, 0x30, 0x33), inRange(b0, 0x38, 0x3B):
		wide := b0&1 != 0
		d := b0&2 != 0
		reg, rm, size, err := decodeModRM(mem, base, wide, applySeg)
		if err != nil {
			return inst8086.Instruction{}, 0, err
		}
		dest, src := rm, reg
		if d {
			dest, src = reg, rm
		}
		kind := aluGroupKind(b0)
		return inst8086.Instruction{Kind: kind, Dest: dest, HasDest: true, Src: src, HasSrc: true}, size, nil

	// TEST register/memory and register.
	case inRange(b0, 0x84, 0x85):
		wide := b0&1 != 0
		reg, rm, size, err := decodeModRM(mem, base, wide, applySeg)
		if err != nil {
			return inst8086.Instruction{}, 0, err
		}
		return inst8086.Instruction{Kind: inst8086.Test, Dest: rm, HasDest: true, Src: reg, HasSrc: true}, size, nil

	// INC/DEC, NEG/NOT/MUL/IMUL/DIV/IDIV/TEST, register/memory group
	// (opcode extension in the reg field of the ModRM byte).
	case b0 == 0xFE, inRange(b0, 0xF6, 0xF7):
		wide := b0&1 != 0
		b1, err := mem.ReadByteChecked(base + 1)
		if err != nil {
			return inst8086.Instruction{}, 0, err
		}
		_, rm, size, err := decodeModRM(mem, base, wide, applySeg)
		if err != nil {
			return inst8086.Instruction{}, 0, err
		}
		ext := (b1 >> 3) & 0b111
		if b0 == 0xFE {
			switch ext {
			case 0:
				return inst8086.Instruction{Kind: inst8086.Inc, Dest: rm, HasDest: true}, size, nil
			case 1:
				return inst8086.Instruction{Kind: inst8086.Dec, Dest: rm, HasDest: true}, size, nil
			}
			return inst8086.Instruction{}, 0, &emuerr.UnknownInstruction{Byte: b1, Offset: base + 1}
		}
		switch ext {
		case 0:
			lo, err := mem.ReadByteChecked(base + size)
			if err != nil {
				return inst8086.Instruction{}, 0, err
			}
			imm := uint16(lo)
			n := size + 1
			if wide {
				hi, err := mem.ReadByteChecked(base + n)
				if err != nil {
					return inst8086.Instruction{}, 0, err
				}
				imm |= uint16(hi) << 8
				n++
			}
			return inst8086.Instruction{Kind: inst8086.Test, Dest: rm, HasDest: true, Src: inst8086.ImmediateOperand(int16(imm)), HasSrc: true}, n, nil
		case 2:
			return inst8086.Instruction{Kind: inst8086.Not, Dest: rm, HasDest: true}, size, nil
		case 3:
			return inst8086.Instruction{Kind: inst8086.Neg, Dest: rm, HasDest: true}, size, nil
		case 4:
			return inst8086.Instruction{Kind: inst8086.Mul, Dest: rm, HasDest: true}, size, nil
		case 5:
			return inst8086.Instruction{Kind: inst8086.Imul, Dest: rm, HasDest: true}, size, nil
		case 6:
			return inst8086.Instruction{Kind: inst8086.Div, Dest: rm, HasDest: true}, size, nil
		case 7:
			return inst8086.Instruction{Kind: inst8086.Idiv, Dest: rm, HasDest: true}, size, nil
		}
		return inst8086.Instruction{}, 0, &emuerr.UnknownInstruction{Byte: b1, Offset: base + 1}

	// SHL/SHR/SAR/ROL/ROR/RCL/RCR, count of 1 or CL.
	case inRange(b0, 0xD0, 0xD3):
		wide := b0&1 != 0
		v := b0&2 != 0 // the D-bit position here selects the count operand
		b1, err := mem.ReadByteChecked(base + 1)
		if err != nil {
			return inst8086.Instruction{}, 0, err
		}
		_, rm, size, err := decodeModRM(mem, base, wide, applySeg)
		if err != nil {
			return inst8086.Instruction{}, 0, err
		}
		count := inst8086.ImmediateOperand(1)
		if v {
			count = inst8086.SubRegisterOperand(inst8086.CX.AsSubRegister(false))
		}
		ext := (b1 >> 3) & 0b111
		kinds := [8]inst8086.Kind{inst8086.Rol, inst8086.Ror, inst8086.Rcl, inst8086.Rcr,
			inst8086.Shl, inst8086.Shr, inst8086.Shl, inst8086.Sar}
		return inst8086.Instruction{Kind: kinds[ext], Dest: rm, HasDest: true, ShiftCount: count}, size, nil

	// ADD/OR/ADC/SBB/AND/SUB/XOR/CMP immediate to register/memory, and
	// MOV immediate to register/memory.
	case inRange(b0, 0x80, 0x83), inRange(b0, 0xC6, 0xC7):
		wide := b0&1 != 0
		signExtend := b0&2 != 0
		b1, err := mem.ReadByteChecked(base + 1)
		if err != nil {
			return inst8086.Instruction{}, 0, err
		}
		_, rm, size, err := decodeModRM(mem, base, wide, applySeg)
		if err != nil {
			return inst8086.Instruction{}, 0, err
		}
		lo, err := mem.ReadByteChecked(base + size)
		if err != nil {
			return inst8086.Instruction{}, 0, err
		}
		var imm uint16
		n := size + 1
		isMov := b0 == 0xC6 || b0 == 0xC7
		if isMov {
			imm = uint16(lo)
			if wide {
				hi, err := mem.ReadByteChecked(base + n)
				if err != nil {
					return inst8086.Instruction{}, 0, err
				}
				imm |= uint16(hi) << 8
				n++
			}
		} else if wide && !signExtend {
			hi, err := mem.ReadByteChecked(base + n)
			if err != nil {
				return inst8086.Instruction{}, 0, err
			}
			imm = uint16(lo) | uint16(hi)<<8
			n++
		} else {
			imm = uint16(int16(int8(lo)))
		}
		src := inst8086.ImmediateOperand(int16(imm))
		if isMov {
			return inst8086.Instruction{Kind: inst8086.Mov, Dest: rm, HasDest: true, Src: src, HasSrc: true}, n, nil
		}
		ext := (b1 >> 3) & 0b111
		kinds := [8]inst8086.Kind{inst8086.Add, inst8086.Or, inst8086.Adc, inst8086.Sbb,
			inst8086.And, inst8086.Sub, inst8086.Xor, inst8086.Cmp}
		return inst8086.Instruction{Kind: kinds[ext], Dest: rm, HasDest: true, Src: src, HasSrc: true}, n, nil

	// ADD/OR/ADC/SBB/AND/SUB/XOR/CMP/TEST immediate to accumulator.
	case inRange(b0, 0x04, 0x05), inRange(b0, 0x0C, 0x0D), inRange(b0, 0x14, 0x15),
		inRange(b0, 0x2C, 0x2D), inRange(b0, 0x24, 0x25), inRange(b0, 0x1C, 0x1D),
		inRange(b0, 0x34, 0x35), inRange(b0, 0x3C, 0x3D), inRange(b0, 0xA8, 0xA9):
		wide := b0&1 != 0
		lo, err := mem.ReadByteChecked(base + 1)
		if err != nil {
			return inst8086.Instruction{}, 0, err
		}
		imm := uint16(lo)
		n := 2
		accumulator := inst8086.SubRegisterOperand(inst8086.AX.AsSubRegister(false))
		if wide {
			hi, err := mem.ReadByteChecked(base + 2)
			if err != nil {
				return inst8086.Instruction{}, 0, err
			}
			imm |= uint16(hi) << 8
			n = 3
			accumulator = inst8086.RegisterOperand(inst8086.AX)
		}
		src := inst8086.ImmediateOperand(int16(imm))
		kind := accumulatorGroupKind(b0)
		return inst8086.Instruction{Kind: kind, Dest: accumulator, HasDest: true, Src: src, HasSrc: true}, n, nil

	// MOV immediate to register.
	case inRange(b0, 0xB0, 0xBF):
		wide := b0&0x08 != 0
		regField := b0 & 0b111
		reg, sub, isWide := inst8086.RegFromRegW(regField, wide)
		lo, err := mem.ReadByteChecked(base + 1)
		if err != nil {
			return inst8086.Instruction{}, 0, err
		}
		imm := uint16(lo)
		n := 2
		if wide {
			hi, err := mem.ReadByteChecked(base + 2)
			if err != nil {
				return inst8086.Instruction{}, 0, err
			}
			imm |= uint16(hi) << 8
			n = 3
		}
		dest := inst8086.SubRegisterOperand(sub)
		if isWide {
			dest = inst8086.RegisterOperand(reg)
		}
		return inst8086.Instruction{Kind: inst8086.Mov, Dest: dest, HasDest: true, Src: inst8086.ImmediateOperand(int16(imm)), HasSrc: true}, n, nil

	// MOV memory<->accumulator (direct address).
	case inRange(b0, 0xA0, 0xA3):
		wide := b0&1 != 0
		lo, err := mem.ReadByteChecked(base + 1)
		if err != nil {
			return inst8086.Instruction{}, 0, err
		}
		hi, err := mem.ReadByteChecked(base + 2)
		if err != nil {
			return inst8086.Instruction{}, 0, err
		}
		addr := uint16(lo) | uint16(hi)<<8
		size := OperandSize(wide)
		m := inst8086.MemoryOperand{Direct: addr, HasDirect: true, Size: size}
		applySeg(&m)
		memOp := inst8086.MemoryOperandOf(m)
		ax := inst8086.RegisterOperand(inst8086.AX)
		if !wide {
			ax = inst8086.SubRegisterOperand(inst8086.AX.AsSubRegister(false))
		}
		if b0 <= 0xA1 {
			return inst8086.Instruction{Kind: inst8086.Mov, Dest: ax, HasDest: true, Src: memOp, HasSrc: true}, 3, nil
		}
		return inst8086.Instruction{Kind: inst8086.Mov, Dest: memOp, HasDest: true, Src: ax, HasSrc: true}, 3, nil

	// MOV register/memory <-> segment register.
	case b0 == 0x8C, b0 == 0x8E:
		seg, rm, size, err := decodeModSegRegRM(mem, base, applySeg)
		if err != nil {
			return inst8086.Instruction{}, 0, err
		}
		segOp := inst8086.SegmentRegisterOperand(seg)
		if b0 == 0x8E {
			return inst8086.Instruction{Kind: inst8086.Mov, Dest: segOp, HasDest: true, Src: rm, HasSrc: true}, size, nil
		}
		return inst8086.Instruction{Kind: inst8086.Mov, Dest: rm, HasDest: true, Src: segOp, HasSrc: true}, size, nil

	// PUSH register.
	case inRange(b0, 0x50, 0x57):
		reg, _, _ := inst8086.RegFromRegW(b0&0b111, true)
		return inst8086.Instruction{Kind: inst8086.Push, Dest: inst8086.RegisterOperand(reg), HasDest: true}, 1, nil

	// POP register.
	case inRange(b0, 0x58, 0x5F):
		reg, _, _ := inst8086.RegFromRegW(b0&0b111, true)
		return inst8086.Instruction{Kind: inst8086.Pop, Dest: inst8086.RegisterOperand(reg), HasDest: true}, 1, nil

	// PUSH segment register.
	case b0 == 0x06, b0 == 0x0E, b0 == 0x16, b0 == 0x1E:
		seg, _ := inst8086.SegmentRegisterFromBits((b0 >> 3) & 0b11)
		return inst8086.Instruction{Kind: inst8086.Push, Dest: inst8086.SegmentRegisterOperand(seg), HasDest: true}, 1, nil

	// POP segment register.
	case b0 == 0x07, b0 == 0x17, b0 == 0x1F:
		seg, _ := inst8086.SegmentRegisterFromBits((b0 >> 3) & 0b11)
		return inst8086.Instruction{Kind: inst8086.Pop, Dest: inst8086.SegmentRegisterOperand(seg), HasDest: true}, 1, nil

	// POP register/memory.
	case b0 == 0x8F:
		_, rm, size, err := decodeModRM(mem, base, true, applySeg)
		if err != nil {
			return inst8086.Instruction{}, 0, err
		}
		return inst8086.Instruction{Kind: inst8086.Pop, Dest: rm, HasDest: true}, size, nil

	// INC/DEC/CALL/JMP/PUSH register/memory (ModRM opcode extension).
	case b0 == 0xFF:
		b1, err := mem.ReadByteChecked(base + 1)
		if err != nil {
			return inst8086.Instruction{}, 0, err
		}
		_, rm, size, err := decodeModRM(mem, base, true, applySeg)
		if err != nil {
			return inst8086.Instruction{}, 0, err
		}
		switch (b1 >> 3) & 0b111 {
		case 0:
			return inst8086.Instruction{Kind: inst8086.Inc, Dest: rm, HasDest: true}, size, nil
		case 1:
			return inst8086.Instruction{Kind: inst8086.Dec, Dest: rm, HasDest: true}, size, nil
		case 2:
			return inst8086.Instruction{Kind: inst8086.Call, Dest: rm, HasDest: true}, size, nil
		case 4:
			return inst8086.Instruction{Kind: inst8086.Jmp, Dest: rm, HasDest: true}, size, nil
		case 6:
			return inst8086.Instruction{Kind: inst8086.Push, Dest: rm, HasDest: true}, size, nil
		}
		return inst8086.Instruction{}, 0, &emuerr.UnknownInstruction{Byte: b1, Offset: base + 1}

	// XCHG register/memory with register.
	case inRange(b0, 0x86, 0x87):
		wide := b0&1 != 0
		reg, rm, size, err := decodeModRM(mem, base, wide, applySeg)
		if err != nil {
			return inst8086.Instruction{}, 0, err
		}
		return inst8086.Instruction{Kind: inst8086.Xchg, Dest: reg, HasDest: true, Src: rm, HasSrc: true}, size, nil

	// XCHG AX with register.
	case inRange(b0, 0x91, 0x97):
		reg, _, _ := inst8086.RegFromRegW(b0&0b111, true)
		return inst8086.Instruction{Kind: inst8086.Xchg, Dest: inst8086.RegisterOperand(reg), HasDest: true,
			Src: inst8086.RegisterOperand(inst8086.AX), HasSrc: true}, 1, nil

	case b0 == 0x90:
		return inst8086.Instruction{Kind: inst8086.Nop}, 1, nil

	// IN/OUT (recognized for textual round-trip; execution reports
	// Unimplemented since port I/O is outside this emulator's memory model).
	case inRange(b0, 0xE4, 0xE5), inRange(b0, 0xEC, 0xED):
		wide := b0&1 != 0
		accumulator := ioAccumulator(wide)
		if b0 <= 0xE5 {
			port, err := mem.ReadByteChecked(base + 1)
			if err != nil {
				return inst8086.Instruction{}, 0, err
			}
			return inst8086.Instruction{Kind: inst8086.In, Dest: accumulator, HasDest: true,
				Src: inst8086.ImmediateOperand(int16(port)), HasSrc: true}, 2, nil
		}
		return inst8086.Instruction{Kind: inst8086.In, Dest: accumulator, HasDest: true,
			Src: inst8086.RegisterOperand(inst8086.DX), HasSrc: true}, 1, nil
	case inRange(b0, 0xE6, 0xE7), inRange(b0, 0xEE, 0xEF):
		wide := b0&1 != 0
		accumulator := ioAccumulator(wide)
		if b0 <= 0xE7 {
			port, err := mem.ReadByteChecked(base + 1)
			if err != nil {
				return inst8086.Instruction{}, 0, err
			}
			return inst8086.Instruction{Kind: inst8086.Out, Dest: inst8086.ImmediateOperand(int16(port)), HasDest: true,
				Src: accumulator, HasSrc: true}, 2, nil
		}
		return inst8086.Instruction{Kind: inst8086.Out, Dest: inst8086.RegisterOperand(inst8086.DX), HasDest: true,
			Src: accumulator, HasSrc: true}, 1, nil

	case b0 == 0xD7:
		return inst8086.Instruction{Kind: inst8086.Xlat}, 1, nil

	case b0 == 0x8D:
		reg, rm, size, err := decodeModRM(mem, base, true, applySeg)
		if err != nil {
			return inst8086.Instruction{}, 0, err
		}
		clearMemorySize(&rm)
		return inst8086.Instruction{Kind: inst8086.Lea, Dest: reg, HasDest: true, Src: rm, HasSrc: true}, size, nil

	case b0 == 0xC5:
		reg, rm, size, err := decodeModRM(mem, base, true, applySeg)
		if err != nil {
			return inst8086.Instruction{}, 0, err
		}
		clearMemorySize(&rm)
		return inst8086.Instruction{Kind: inst8086.Lds, Dest: reg, HasDest: true, Src: rm, HasSrc: true}, size, nil

	case b0 == 0xC4:
		reg, rm, size, err := decodeModRM(mem, base, true, applySeg)
		if err != nil {
			return inst8086.Instruction{}, 0, err
		}
		clearMemorySize(&rm)
		return inst8086.Instruction{Kind: inst8086.Les, Dest: reg, HasDest: true, Src: rm, HasSrc: true}, size, nil

	case b0 == 0x9F:
		return inst8086.Instruction{Kind: inst8086.Lahf}, 1, nil
	case b0 == 0x9E:
		return inst8086.Instruction{Kind: inst8086.Sahf}, 1, nil
	case b0 == 0x9C:
		return inst8086.Instruction{Kind: inst8086.Pushf}, 1, nil
	case b0 == 0x9D:
		return inst8086.Instruction{Kind: inst8086.Popf}, 1, nil

	case b0 == 0x37:
		return inst8086.Instruction{Kind: inst8086.Aaa}, 1, nil
	case b0 == 0x27:
		return inst8086.Instruction{Kind: inst8086.Daa}, 1, nil
	case b0 == 0x3F:
		return inst8086.Instruction{Kind: inst8086.Aas}, 1, nil
	case b0 == 0x2F:
		return inst8086.Instruction{Kind: inst8086.Das}, 1, nil
	case b0 == 0xD4:
		return inst8086.Instruction{Kind: inst8086.Aam}, 2, nil
	case b0 == 0xD5:
		return inst8086.Instruction{Kind: inst8086.Aad}, 2, nil
	case b0 == 0x98:
		return inst8086.Instruction{Kind: inst8086.Cbw}, 1, nil
	case b0 == 0x99:
		return inst8086.Instruction{Kind: inst8086.Cwd}, 1, nil

	// INC register.
	case inRange(b0, 0x40, 0x47):
		reg, _, _ := inst8086.RegFromRegW(b0&0b111, true)
		return inst8086.Instruction{Kind: inst8086.Inc, Dest: inst8086.RegisterOperand(reg), HasDest: true}, 1, nil
	// DEC register.
	case inRange(b0, 0x48, 0x4F):
		reg, _, _ := inst8086.RegFromRegW(b0&0b111, true)
		return inst8086.Instruction{Kind: inst8086.Dec, Dest: inst8086.RegisterOperand(reg), HasDest: true}, 1, nil

	// String instructions, with or without a following repeat prefix.
	case b0 == 0xF2, b0 == 0xF3:
		repeat := inst8086.RepeatWhileZFClear
		if b0 == 0xF3 {
			repeat = inst8086.RepeatWhileZFSet
		}
		b1, err := mem.ReadByteChecked(base + 1)
		if err != nil {
			return inst8086.Instruction{}, 0, err
		}
		kind, ok := stringOpKind(b1)
		if !ok {
			return inst8086.Instruction{}, 0, &emuerr.UnknownRepeatOpcode{Byte: b1, Offset: base + 1}
		}
		return inst8086.Instruction{Kind: kind, Repeat: repeat}, 2, nil
	case isStringOpByte(b0):
		kind, _ := stringOpKind(b0)
		return inst8086.Instruction{Kind: kind, Repeat: inst8086.RepeatNone}, 1, nil

	case b0 == 0xC2:
		lo, err := mem.ReadByteChecked(base + 1)
		if err != nil {
			return inst8086.Instruction{}, 0, err
		}
		hi, err := mem.ReadByteChecked(base + 2)
		if err != nil {
			return inst8086.Instruction{}, 0, err
		}
		imm := int16(uint16(lo) | uint16(hi)<<8)
		return inst8086.Instruction{Kind: inst8086.RetImm, Src: inst8086.ImmediateOperand(imm), HasSrc: true}, 3, nil
	case b0 == 0xC3:
		return inst8086.Instruction{Kind: inst8086.Ret}, 1, nil

	// CALL near direct / JMP near direct / JMP short direct: not present
	// in the retrieved decoder.rs slice (which only decodes indirect
	// CALL/JMP through the 0xFF ModRM group and short conditional
	// jumps/loops), added here because SPEC_FULL.md names unconditional
	// Call/Jmp as first-class Kinds that a complete decoder must cover.
	case b0 == 0xE8:
		lo, err := mem.ReadByteChecked(base + 1)
		if err != nil {
			return inst8086.Instruction{}, 0, err
		}
		hi, err := mem.ReadByteChecked(base + 2)
		if err != nil {
			return inst8086.Instruction{}, 0, err
		}
		offset := int16(uint16(lo)|uint16(hi)<<8) + 3
		return inst8086.Instruction{Kind: inst8086.Call, JumpOffset: offset, HasJump: true}, 3, nil
	case b0 == 0xE9:
		lo, err := mem.ReadByteChecked(base + 1)
		if err != nil {
			return inst8086.Instruction{}, 0, err
		}
		hi, err := mem.ReadByteChecked(base + 2)
		if err != nil {
			return inst8086.Instruction{}, 0, err
		}
		offset := int16(uint16(lo)|uint16(hi)<<8) + 3
		return inst8086.Instruction{Kind: inst8086.Jmp, JumpOffset: offset, HasJump: true}, 3, nil
	case b0 == 0xEB:
		lo, err := mem.ReadByteChecked(base + 1)
		if err != nil {
			return inst8086.Instruction{}, 0, err
		}
		offset := int16(int8(lo)) + 2
		return inst8086.Instruction{Kind: inst8086.Jmp, JumpOffset: offset, HasJump: true}, 2, nil

	case isConditionalJumpByte(b0), b0 == 0xE2, b0 == 0xE1, b0 == 0xE0, b0 == 0xE3:
		lo, err := mem.ReadByteChecked(base + 1)
		if err != nil {
			return inst8086.Instruction{}, 0, err
		}
		offset := int16(int8(lo)) + 2
		return inst8086.Instruction{Kind: shortJumpKind(b0), JumpOffset: offset, HasJump: true}, 2, nil

	case b0 == 0xCD:
		vector, err := mem.ReadByteChecked(base + 1)
		if err != nil {
			return inst8086.Instruction{}, 0, err
		}
		return inst8086.Instruction{Kind: inst8086.Int, IntVector: vector}, 2, nil
	case b0 == 0xCC:
		return inst8086.Instruction{Kind: inst8086.Int, IntVector: 3}, 1, nil
	case b0 == 0xCE:
		return inst8086.Instruction{Kind: inst8086.Into}, 1, nil
	case b0 == 0xCF:
		return inst8086.Instruction{Kind: inst8086.Iret}, 1, nil

	case b0 == 0xF8:
		return inst8086.Instruction{Kind: inst8086.Clc}, 1, nil
	case b0 == 0xF5:
		return inst8086.Instruction{Kind: inst8086.Cmc}, 1, nil
	case b0 == 0xF9:
		return inst8086.Instruction{Kind: inst8086.Stc}, 1, nil
	case b0 == 0xFC:
		return inst8086.Instruction{Kind: inst8086.Cld}, 1, nil
	case b0 == 0xFD:
		return inst8086.Instruction{Kind: inst8086.Std}, 1, nil
	case b0 == 0xFA:
		return inst8086.Instruction{Kind: inst8086.Cli}, 1, nil
	case b0 == 0xFB:
		return inst8086.Instruction{Kind: inst8086.Sti}, 1, nil
	case b0 == 0xF4:
		return inst8086.Instruction{Kind: inst8086.Hlt}, 1, nil
	case b0 == 0x9B:
		return inst8086.Instruction{Kind: inst8086.Wait}, 1, nil
	case b0 == 0xF0:
		return inst8086.Instruction{Kind: inst8086.Lock}, 1, nil

	default:
		return inst8086.Instruction{}, 0, &emuerr.UnknownInstruction{Byte: b0, Offset: base}
	}
}

func inRange(b byte, lo, hi byte) bool { return b >= lo && b <= hi }

// clearMemorySize drops a memory operand's byte/word qualifier for
// LEA/LDS/LES, which compute an address and never read through it.
func clearMemorySize(op *inst8086.Operand) {
	if op.Kind == inst8086.OperandMemory {
		op.Mem.Size = inst8086.SizeUnspecified
	}
}

// aluGroupKind maps a register/memory-to/from-register opcode byte to its
// Kind, reading the five bits that identify the operation.
func aluGroupKind(b byte) inst8086.Kind {
	switch b & 0b1111_1100 {
	case 0x88:
		return inst8086.Mov
	case 0x00:
		return inst8086.Add
	case 0x08:
		return inst8086.Or
	case 0x10:
		return inst8086.Adc
	case 0x18:
		return inst8086.Sbb
	case 0x20:
		return inst8086.And
	case 0x28:
		return inst8086.Sub
	case 0x30:
		return inst8086.Xor
	case 0x38:
		return inst8086.Cmp
	default:
		return inst8086.Mov
	}
}

func accumulatorGroupKind(b byte) inst8086.Kind {
	switch b &^ 1 {
	case 0x04:
		return inst8086.Add
	case 0x0C:
		return inst8086.Or
	case 0x14:
		return inst8086.Adc
	case 0x1C:
		return inst8086.Sbb
	case 0x24:
		return inst8086.And
	case 0x2C:
		return inst8086.Sub
	case 0x34:
		return inst8086.Xor
	case 0x3C:
		return inst8086.Cmp
	case 0xA8:
		return inst8086.Test
	default:
		return inst8086.Add
	}
}

func ioAccumulator(wide bool) inst8086.Operand {
	if wide {
		return inst8086.RegisterOperand(inst8086.AX)
	}
	return inst8086.SubRegisterOperand(inst8086.AX.AsSubRegister(false))
}

func isStringOpByte(b byte) bool {
	_, ok := stringOpKind(b)
	return ok
}

func stringOpKind(b byte) (inst8086.Kind, bool) {
	switch b {
	case 0xA4:
		return inst8086.Movsb, true
	case 0xA5:
		return inst8086.Movsw, true
	case 0xA6:
		return inst8086.Cmpsb, true
	case 0xA7:
		return inst8086.Cmpsw, true
	case 0xAE:
		return inst8086.Scasb, true
	case 0xAF:
		return inst8086.Scasw, true
	case 0xAC:
		return inst8086.Lodsb, true
	case 0xAD:
		return inst8086.Lodsw, true
	case 0xAA:
		return inst8086.Stosb, true
	case 0xAB:
		return inst8086.Stosw, true
	default:
		return 0, false
	}
}

func isConditionalJumpByte(b byte) bool {
	switch b {
	case 0x70, 0x71, 0x72, 0x73, 0x74, 0x75, 0x76, 0x77,
		0x78, 0x79, 0x7A, 0x7B, 0x7C, 0x7D, 0x7E, 0x7F:
		return true
	default:
		return false
	}
}

func shortJumpKind(b byte) inst8086.Kind {
	switch b {
	case 0x70:
		return inst8086.Jo
	case 0x71:
		return inst8086.Jno
	case 0x72:
		return inst8086.Jb
	case 0x73:
		return inst8086.Jae
	case 0x74:
		return inst8086.Je
	case 0x75:
		return inst8086.Jne
	case 0x76:
		return inst8086.Jbe
	case 0x77:
		return inst8086.Ja
	case 0x78:
		return inst8086.Js
	case 0x79:
		return inst8086.Jns
	case 0x7A:
		return inst8086.Jp
	case 0x7B:
		return inst8086.Jnp
	case 0x7C:
		return inst8086.Jl
	case 0x7D:
		return inst8086.Jge
	case 0x7E:
		return inst8086.Jle
	case 0x7F:
		return inst8086.Jg
	case 0xE2:
		return inst8086.Loop
	case 0xE1:
		return inst8086.Loopz
	case 0xE0:
		return inst8086.Loopnz
	case 0xE3:
		return inst8086.Jcxz
	default:
		return inst8086.Jmp
	}
}

// OperandSize converts a wide flag into the corresponding memory-operand
// size tag.
func OperandSize(wide bool) inst8086.OperandSize {
	if wide {
		return inst8086.SizeWord
	}
	return inst8086.SizeByte
}

// decodeModRM implements the "mod|reg|r/m" byte pattern, grounded on
// decoder.rs's parse_mod_reg_rm_instr: mod==11 yields two
// register/sub-register operands; mod==00 with rm==110 is the
// direct-address special case; otherwise an addressing-mode memory
// operand with 0, 1, or 2 byte displacement.
func decodeModRM(mem *cpu.Memory, base int, wide bool, applySeg func(*inst8086.MemoryOperand)) (reg, rm inst8086.Operand, size int, err error) {
	b1, err := mem.ReadByteChecked(base + 1)
	if err != nil {
		return inst8086.Operand{}, inst8086.Operand{}, 0, err
	}
	rmField := b1 & 0b111
	regField := (b1 >> 3) & 0b111
	modField := (b1 >> 6) & 0b11

	regReg, regSub, regIsWide := inst8086.RegFromRegW(regField, wide)
	if regIsWide {
		reg = inst8086.RegisterOperand(regReg)
	} else {
		reg = inst8086.SubRegisterOperand(regSub)
	}

	if modField == 0b11 {
		rmReg, rmSub, rmIsWide := inst8086.RegFromRegW(rmField, wide)
		if rmIsWide {
			rm = inst8086.RegisterOperand(rmReg)
		} else {
			rm = inst8086.SubRegisterOperand(rmSub)
		}
		return reg, rm, 2, nil
	}

	if modField == 0b00 && rmField == 0b110 {
		lo, err := mem.ReadByteChecked(base + 2)
		if err != nil {
			return inst8086.Operand{}, inst8086.Operand{}, 0, err
		}
		hi, err := mem.ReadByteChecked(base + 3)
		if err != nil {
			return inst8086.Operand{}, inst8086.Operand{}, 0, err
		}
		m := inst8086.MemoryOperand{Direct: uint16(lo) | uint16(hi)<<8, HasDirect: true, Size: OperandSize(wide)}
		applySeg(&m)
		return reg, inst8086.MemoryOperandOf(m), 4, nil
	}

	entry := rmTable[rmField]
	m := inst8086.MemoryOperand{Base1: entry.Base1, HasBase1: true, Size: OperandSize(wide)}
	if entry.HasBase2 {
		m.Base2 = entry.Base2
		m.HasBase2 = true
	}
	size = 2
	switch modField {
	case 0b01:
		lo, err := mem.ReadByteChecked(base + 2)
		if err != nil {
			return inst8086.Operand{}, inst8086.Operand{}, 0, err
		}
		m.Disp = int16(int8(lo))
		m.HasDisp = true
		size = 3
	case 0b10:
		lo, err := mem.ReadByteChecked(base + 2)
		if err != nil {
			return inst8086.Operand{}, inst8086.Operand{}, 0, err
		}
		hi, err := mem.ReadByteChecked(base + 3)
		if err != nil {
			return inst8086.Operand{}, inst8086.Operand{}, 0, err
		}
		m.Disp = int16(uint16(lo) | uint16(hi)<<8)
		m.HasDisp = true
		size = 4
	}
	applySeg(&m)
	return reg, inst8086.MemoryOperandOf(m), size, nil
}

// decodeModSegRegRM implements the "mod|segreg|r/m" pattern used by MOV
// to/from a segment register, grounded on
// decoder.rs's parse_mod_segreg_rm_instr.
func decodeModSegRegRM(mem *cpu.Memory, base int, applySeg func(*inst8086.MemoryOperand)) (inst8086.SegmentRegister, inst8086.Operand, int, error) {
	b1, err := mem.ReadByteChecked(base + 1)
	if err != nil {
		return 0, inst8086.Operand{}, 0, err
	}
	seg, _ := inst8086.SegmentRegisterFromBits((b1 >> 3) & 0b11)
	_, rm, size, err := decodeModRM(mem, base, true, applySeg)
	if err != nil {
		return 0, inst8086.Operand{}, 0, err
	}
	return seg, rm, size, nil
}
