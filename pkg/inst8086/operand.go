package inst8086

import "fmt"

// OperandSize distinguishes byte- and word-sized memory accesses. A LEA
// memory operand carries SizeUnspecified since LEA never reads memory.
type OperandSize uint8

const (
	SizeUnspecified OperandSize = iota
	SizeByte
	SizeWord
)

func (s OperandSize) String() string {
	switch s {
	case SizeByte:
		return "byte"
	case SizeWord:
		return "word"
	default:
		return ""
	}
}

// OperandKind is the Operand tagged-union discriminant.
type OperandKind uint8

const (
	OperandRegister OperandKind = iota
	OperandSubRegister
	OperandSegmentRegister
	OperandImmediate
	OperandMemory
)

// MemoryOperand carries everything needed to both print an effective
// address and evaluate it: zero, one, or two base registers, an optional
// displacement, an optional direct address (mutually exclusive with the
// bases, per the spec invariant), an operand size, and an optional
// segment override recorded for textual round-trip only.
type MemoryOperand struct {
	Base1        Register
	HasBase1     bool
	Base2        Register
	HasBase2     bool
	Disp         int16
	HasDisp      bool
	Direct       uint16
	HasDirect    bool
	Size         OperandSize
	Segment      SegmentRegister
	HasSegment   bool
}

func (m MemoryOperand) String() string {
	inner := ""
	if m.HasSegment {
		inner += m.Segment.String() + ":"
	}
	if m.HasDirect {
		inner += fmt.Sprintf("0x%x", m.Direct)
	} else {
		parts := make([]string, 0, 3)
		if m.HasBase1 {
			parts = append(parts, m.Base1.String())
		}
		if m.HasBase2 {
			parts = append(parts, m.Base2.String())
		}
		if m.HasDisp && m.Disp != 0 {
			if m.Disp < 0 {
				parts = append(parts, fmt.Sprintf("-0x%x", -int32(m.Disp)))
			} else {
				parts = append(parts, fmt.Sprintf("0x%x", m.Disp))
			}
		}
		for i, p := range parts {
			if i > 0 && p[0] != '-' {
				inner += " + " + p
			} else if i > 0 {
				inner += " " + p
			} else {
				inner += p
			}
		}
	}
	prefix := ""
	if m.Size != SizeUnspecified {
		prefix = m.Size.String() + " "
	}
	return fmt.Sprintf("%s[%s]", prefix, inner)
}

// Operand is the tagged variant every instruction's operand slots hold.
type Operand struct {
	Kind      OperandKind
	Reg       Register
	Sub       SubRegister
	Seg       SegmentRegister
	Immediate int16
	Mem       MemoryOperand
}

func RegisterOperand(r Register) Operand {
	return Operand{Kind: OperandRegister, Reg: r}
}

func SubRegisterOperand(s SubRegister) Operand {
	return Operand{Kind: OperandSubRegister, Sub: s}
}

func SegmentRegisterOperand(s SegmentRegister) Operand {
	return Operand{Kind: OperandSegmentRegister, Seg: s}
}

func ImmediateOperand(v int16) Operand {
	return Operand{Kind: OperandImmediate, Immediate: v}
}

func MemoryOperandOf(m MemoryOperand) Operand {
	return Operand{Kind: OperandMemory, Mem: m}
}

// IsWord reports whether the operand, if a register/sub-register, refers
// to a 16-bit access. Memory operands report their own Size field.
func (o Operand) IsWord() bool {
	switch o.Kind {
	case OperandRegister, OperandSegmentRegister:
		return true
	case OperandSubRegister:
		return false
	case OperandMemory:
		return o.Mem.Size == SizeWord
	default:
		return true
	}
}

func (o Operand) String() string {
	switch o.Kind {
	case OperandRegister:
		return o.Reg.String()
	case OperandSubRegister:
		return o.Sub.String()
	case OperandSegmentRegister:
		return o.Seg.String()
	case OperandImmediate:
		return fmt.Sprintf("0x%x", uint16(o.Immediate))
	case OperandMemory:
		return o.Mem.String()
	default:
		return "?"
	}
}
