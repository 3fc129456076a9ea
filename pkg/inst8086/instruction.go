package inst8086

import "fmt"

// Kind is the Instruction tagged-union discriminant, covering the ~90
// shapes enumerated by the data model: data movement, arithmetic/logic,
// shifts/rotates, BCD adjusts, sign extension, string ops, control flow,
// flag manipulation, synchronization, and nop.
type Kind uint8

const (
	Mov Kind = iota
	Push
	Pop
	Xchg
	Lea
	Lds
	Les
	Lahf
	Sahf
	Pushf
	Popf
	Xlat
	In
	Out

	Add
	Adc
	Sub
	Sbb
	Cmp
	And
	Or
	Xor
	Test
	Inc
	Dec
	Neg
	Mul
	Imul
	Div
	Idiv
	Not

	Shl
	Shr
	Sar
	Rol
	Ror
	Rcl
	Rcr

	Aaa
	Aas
	Aam
	Aad
	Daa
	Das

	Cbw
	Cwd

	Movsb
	Movsw
	Cmpsb
	Cmpsw
	Scasb
	Scasw
	Lodsb
	Lodsw
	Stosb
	Stosw

	Call
	Jmp
	Ret
	RetImm
	Jo
	Jno
	Jb
	Jae
	Je
	Jne
	Jbe
	Ja
	Js
	Jns
	Jp
	Jnp
	Jl
	Jge
	Jle
	Jg
	Loop
	Loopz
	Loopnz
	Jcxz
	Int
	Into
	Iret

	Clc
	Cmc
	Stc
	Cld
	Std
	Cli
	Sti

	Hlt
	Wait
	Lock

	Nop

	KindCount
)

var mnemonics = [KindCount]string{
	Mov: "mov", Push: "push", Pop: "pop", Xchg: "xchg", Lea: "lea",
	Lds: "lds", Les: "les", Lahf: "lahf", Sahf: "sahf", Pushf: "pushf",
	Popf: "popf", Xlat: "xlat", In: "in", Out: "out",
	Add: "add", Adc: "adc", Sub: "sub", Sbb: "sbb", Cmp: "cmp",
	And: "and", Or: "or", Xor: "xor", Test: "test", Inc: "inc", Dec: "dec",
	Neg: "neg", Mul: "mul", Imul: "imul", Div: "div", Idiv: "idiv", Not: "not",
	Shl: "shl", Shr: "shr", Sar: "sar", Rol: "rol", Ror: "ror", Rcl: "rcl", Rcr: "rcr",
	Aaa: "aaa", Aas: "aas", Aam: "aam", Aad: "aad", Daa: "daa", Das: "das",
	Cbw: "cbw", Cwd: "cwd",
	Movsb: "movsb", Movsw: "movsw", Cmpsb: "cmpsb", Cmpsw: "cmpsw",
	Scasb: "scasb", Scasw: "scasw", Lodsb: "lodsb", Lodsw: "lodsw",
	Stosb: "stosb", Stosw: "stosw",
	Call: "call", Jmp: "jmp", Ret: "ret", RetImm: "ret",
	Jo: "jo", Jno: "jno", Jb: "jb", Jae: "jae", Je: "je", Jne: "jne",
	Jbe: "jbe", Ja: "ja", Js: "js", Jns: "jns", Jp: "jp", Jnp: "jnp",
	Jl: "jl", Jge: "jge", Jle: "jle", Jg: "jg",
	Loop: "loop", Loopz: "loopz", Loopnz: "loopnz", Jcxz: "jcxz",
	Int: "int", Into: "into", Iret: "iret",
	Clc: "clc", Cmc: "cmc", Stc: "stc", Cld: "cld", Std: "std", Cli: "cli", Sti: "sti",
	Hlt: "hlt", Wait: "wait", Lock: "lock",
	Nop: "nop",
}

func (k Kind) String() string {
	if int(k) < len(mnemonics) && mnemonics[k] != "" {
		return mnemonics[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Repeat names the repeat-prefix binding a string instruction carries.
type Repeat uint8

const (
	RepeatNone Repeat = iota
	RepeatWhileZFClear // repne/repnz
	RepeatWhileZFSet   // rep/repe/repz
)

// Instruction is the tagged variant every decoded 8086 instruction is
// represented as: a Kind discriminant plus the union of operand slots and
// extra fields needed by any shape. Unused fields for a given Kind are
// simply left zero, mirroring the teacher's own "one flat struct, Op plus
// payload fields" Instruction shape (pkg/inst.Instruction{Op, Imm}),
// generalized here because 8086 operands are richer than a single
// 16-bit immediate.
type Instruction struct {
	Kind Kind

	Dest    Operand
	HasDest bool
	Src     Operand
	HasSrc  bool

	// Repeat is set only for the string-op Kinds.
	Repeat Repeat

	// JumpOffset holds the decoder's stored relative target: the encoded
	// displacement plus the instruction's encoded length (2 for the
	// short-jump family and short jmp, 3 for near call/jmp), i.e. the
	// target's distance from the instruction's first byte. String prints
	// it as $+JumpOffset; Execute subtracts the instruction length from it
	// to get the IP delta from the next instruction.
	JumpOffset int16
	HasJump    bool

	// IntVector is the 8-bit vector operand of INT n.
	IntVector uint8

	// ShiftCount is the count operand for shift/rotate instructions: an
	// Immediate(1) for the single-bit forms or a SubRegister(CL) for the
	// variable-count forms.
	ShiftCount Operand

	// Length is the total number of bytes (including any prefixes)
	// consumed decoding this instruction; the decoder fills it in.
	Length int
}

// String renders the instruction in the §6 textual contract: lowercase
// mnemonics, hex immediates, byte/word qualifiers before memory operands,
// segment overrides as a bracket-internal prefix, and the repeat-prefix
// spelling (repe/repne) for string ops.
func (i Instruction) String() string {
	switch i.Kind {
	case Movsb, Movsw, Cmpsb, Cmpsw, Scasb, Scasw, Lodsb, Lodsw, Stosb, Stosw:
		prefix := ""
		switch i.Repeat {
		case RepeatWhileZFSet:
			prefix = "repe "
		case RepeatWhileZFClear:
			prefix = "repne "
		}
		return prefix + i.Kind.String()
	case Jo, Jno, Jb, Jae, Je, Jne, Jbe, Ja, Js, Jns, Jp, Jnp, Jl, Jge, Jle, Jg,
		Loop, Loopz, Loopnz, Jcxz:
		delta := i.JumpOffset - 2
		if delta >= 0 {
			return fmt.Sprintf("%s $+%d", i.Kind.String(), delta+2)
		}
		return fmt.Sprintf("%s $%d", i.Kind.String(), delta+2)
	case Call, Jmp:
		if i.HasJump {
			return fmt.Sprintf("%s $%+d", i.Kind.String(), i.JumpOffset)
		}
	case Int:
		return fmt.Sprintf("int 0x%x", i.IntVector)
	case RetImm:
		return fmt.Sprintf("ret 0x%x", uint16(i.Src.Immediate))
	case Clc, Cmc, Stc, Cld, Std, Cli, Sti, Hlt, Wait, Lock, Nop,
		Lahf, Sahf, Pushf, Popf, Xlat, Aaa, Aas, Aam, Aad, Daa, Das,
		Cbw, Cwd, Ret, Into, Iret:
		return i.Kind.String()
	}

	switch {
	case i.HasDest && isShift(i.Kind):
		return fmt.Sprintf("%s %s, %s", i.Kind.String(), i.Dest.String(), i.ShiftCount.String())
	case i.HasDest && i.HasSrc:
		return fmt.Sprintf("%s %s, %s", i.Kind.String(), i.Dest.String(), i.Src.String())
	case i.HasDest:
		return fmt.Sprintf("%s %s", i.Kind.String(), i.Dest.String())
	default:
		return i.Kind.String()
	}
}

func isShift(k Kind) bool {
	switch k {
	case Shl, Shr, Sar, Rol, Ror, Rcl, Rcr:
		return true
	default:
		return false
	}
}

// IsStringOp reports whether a Kind is one of the ten repeatable string
// instructions.
func IsStringOp(k Kind) bool {
	switch k {
	case Movsb, Movsw, Cmpsb, Cmpsw, Scasb, Scasw, Lodsb, Lodsw, Stosb, Stosw:
		return true
	default:
		return false
	}
}

// IsConditionalJump reports whether a Kind is one of the sixteen
// condition-code jumps (not loop/jcxz, which have their own condition).
func IsConditionalJump(k Kind) bool {
	switch k {
	case Jo, Jno, Jb, Jae, Je, Jne, Jbe, Ja, Js, Jns, Jp, Jnp, Jl, Jge, Jle, Jg:
		return true
	default:
		return false
	}
}
