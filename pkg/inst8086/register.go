// Package inst8086 defines the decoded-instruction model shared by the
// scalar executor and the JIT translator: registers, operands, and the
// tagged instruction variant produced by pkg/decoder.
package inst8086

import "fmt"

// Register names one of the ten 16-bit main registers. The numeric value
// also serves as the register's zmm assignment minus one (see Zmm below)
// and as its index into a vectorized context struct.
type Register uint8

const (
	AX Register = iota
	BX
	CX
	DX
	SI
	DI
	BP
	SP
	IP
	FLAGS
	RegisterCount
)

var registerNames = [RegisterCount]string{
	AX: "ax", BX: "bx", CX: "cx", DX: "dx",
	SI: "si", DI: "di", BP: "bp", SP: "sp",
	IP: "ip", FLAGS: "flags",
}

func (r Register) String() string {
	if int(r) < len(registerNames) {
		return registerNames[r]
	}
	return fmt.Sprintf("reg(%d)", uint8(r))
}

// Zmm returns the permanent vector-register assignment for a main
// register: AX maps to zmm1 through FLAGS at zmm10 (zmm0 is not assigned
// to any 8086 register).
func (r Register) Zmm() uint8 {
	return uint8(r) + 1
}

// SubRegisterPart selects which half of a 16-bit register a sub-register
// name addresses.
type SubRegisterPart uint8

const (
	Full SubRegisterPart = iota
	Low
	High
)

// SubRegister is an 8-bit view into one of AX/BX/CX/DX.
type SubRegister struct {
	Main Register
	Part SubRegisterPart
}

func (s SubRegister) String() string {
	if s.Part == Full {
		return s.Main.String()
	}
	name := s.Main.String()
	// ax -> a, bx -> b, cx -> c, dx -> d
	letter := name[0:1]
	if s.Part == Low {
		return letter + "l"
	}
	return letter + "h"
}

// wideRegisterTable and byteSubRegisterTable are the bijective
// (reg,w) -> register/sub-register map
// from the 8086 ModRM reg field, grounded on register.rs's from_reg_w:
// w=1 selects the 16-bit family in canonical order; w=0 selects the
// 8-bit sub-register family in canonical order.
var wideRegisterTable = [8]Register{AX, CX, DX, BX, SP, BP, SI, DI}

var byteSubRegisterTable = [8]SubRegister{
	{AX, Low}, {CX, Low}, {DX, Low}, {BX, Low},
	{AX, High}, {CX, High}, {DX, High}, {BX, High},
}

// RegFromRegW maps a 3-bit reg field plus the w bit to an Operand-ready
// register selection: when w is set, a Register; otherwise a SubRegister.
func RegFromRegW(reg uint8, w bool) (Register, SubRegister, bool) {
	reg &= 0x7
	if w {
		return wideRegisterTable[reg], SubRegister{}, true
	}
	return 0, byteSubRegisterTable[reg], false
}

// AsSubRegister returns the low (high=false) or high (high=true) byte of
// r as a SubRegister, e.g. AX.AsSubRegister(false) is AL (AX, Low).
func (r Register) AsSubRegister(high bool) SubRegister {
	part := Low
	if high {
		part = High
	}
	return SubRegister{Main: r, Part: part}
}

// SegmentRegister names one of the four 8086 segment registers.
type SegmentRegister uint8

const (
	ES SegmentRegister = iota
	CS
	SS
	DS
)

var segmentRegisterNames = [4]string{"es", "cs", "ss", "ds"}

func (s SegmentRegister) String() string {
	if int(s) < len(segmentRegisterNames) {
		return segmentRegisterNames[s]
	}
	return fmt.Sprintf("seg(%d)", uint8(s))
}

// SegmentRegisterFromBits decodes the 2-bit SS field used both by the
// segment-override prefix (0b001SS110) and by PUSH/POP segment-register
// opcodes (0b000SS11x), per spec's resolution of the "POP segment
// register" open question: the canonical form reads SS from the opcode
// byte itself.
func SegmentRegisterFromBits(ss uint8) (SegmentRegister, bool) {
	if ss > 3 {
		return 0, false
	}
	return SegmentRegister(ss), true
}
