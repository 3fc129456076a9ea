package jit

import (
	"github.com/emu8086/core/pkg/evex"
	"github.com/emu8086/core/pkg/inst8086"
)

// entryRegisterOrder lists the ten main registers in the fixed ABI order
// section 4.5 specifies.
var entryRegisterOrder = [...]inst8086.Register{
	inst8086.AX, inst8086.BX, inst8086.CX, inst8086.DX,
	inst8086.SI, inst8086.DI, inst8086.BP, inst8086.SP,
	inst8086.IP, inst8086.FLAGS,
}

// hostR15 is the fixed host GPR index the calling convention assigns to
// the context pointer. r14 (JIT buffer) and r13 (debug-break flag) are
// used only as literal bytes below, since this stub's shape is fixed.
const hostR15 uint8 = 15

// AssembleEntryStub builds the fixed prologue/epilogue wrapping a call
// into the JIT buffer: load every register's 32-lane vector from the
// context (r15) into its zmm, conditionally break if r13 is nonzero,
// call the buffer (r14), then store every zmm back to the context.
// Matches build.rs's generated assembly template's structure, but is
// assembled at runtime via pkg/evex's memory-operand form instead of a
// textual template burned in at build time, per section 9's design
// note ("the translator already has an EVEX assembler, so use it end
// to end").
func AssembleEntryStub() []byte {
	var out []byte

	for _, reg := range entryRegisterOrder {
		zmm := evex.Zmm(reg.Zmm())
		disp := int32(contextOffset(reg))
		out = append(out, evex.AssembleContextMove(zmm, hostR15, disp, false)...)
	}

	// test r13, r13; jz +1 (skip the int3); int3
	out = append(out, 0x4d, 0x85, 0xed)
	out = append(out, 0x74, 0x01)
	out = append(out, 0xcc)

	// call r14 (0xFF /2, REX.B extends the ModRM.rm field to select r14)
	out = append(out, 0x41, 0xff, 0xd6)

	for _, reg := range entryRegisterOrder {
		zmm := evex.Zmm(reg.Zmm())
		disp := int32(contextOffset(reg))
		out = append(out, evex.AssembleContextMove(zmm, hostR15, disp, true)...)
	}

	out = append(out, 0xc3) // ret
	return out
}
