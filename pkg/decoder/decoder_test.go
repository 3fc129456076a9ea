package decoder

import (
	"testing"

	"github.com/emu8086/core/pkg/cpu"
	"github.com/emu8086/core/pkg/inst8086"
)

func newImage(t *testing.T, bytes []byte) *cpu.Memory {
	t.Helper()
	mem, err := cpu.NewMemory(65536)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	if err := mem.LoadImage(bytes); err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	return mem
}

func TestDecodeMovRegImmediate(t *testing.T) {
	mem := newImage(t, []byte{0xBD, 0x34, 0x12}) // mov bp, 0x1234
	instr, err := Decode(mem, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if instr.Kind != inst8086.Mov || instr.Length != 3 {
		t.Fatalf("got %+v", instr)
	}
	if got, want := instr.String(), "mov bp, 0x1234"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestDecodeSubRegReg(t *testing.T) {
	mem := newImage(t, []byte{0x2B, 0xC3}) // sub ax, bx
	instr, err := Decode(mem, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if instr.Length != 2 {
		t.Fatalf("length = %d, want 2", instr.Length)
	}
	if got, want := instr.String(), "sub ax, bx"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestDecodeCmpRegReg(t *testing.T) {
	mem := newImage(t, []byte{0x3B, 0xD8}) // cmp bx, ax
	instr, err := Decode(mem, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got, want := instr.String(), "cmp bx, ax"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestDecodeXorRegReg(t *testing.T) {
	mem := newImage(t, []byte{0x33, 0xD8}) // xor bx, ax
	instr, err := Decode(mem, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if instr.Kind != inst8086.Xor || instr.Length != 2 {
		t.Fatalf("got %+v", instr)
	}
	if got, want := instr.String(), "xor bx, ax"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestDecodeConditionalJumpOffsetConvention(t *testing.T) {
	mem := newImage(t, []byte{0x74, 0x05}) // je $+7
	instr, err := Decode(mem, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if instr.Kind != inst8086.Je || instr.JumpOffset != 7 || instr.Length != 2 {
		t.Fatalf("got %+v", instr)
	}
	if got, want := instr.String(), "je $+7"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestDecodeRepeatPrefixStringOp(t *testing.T) {
	mem := newImage(t, []byte{0xF3, 0xA4}) // repe movsb
	instr, err := Decode(mem, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if instr.Kind != inst8086.Movsb || instr.Repeat != inst8086.RepeatWhileZFSet || instr.Length != 2 {
		t.Fatalf("got %+v", instr)
	}
	if got, want := instr.String(), "repe movsb"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	mem2 := newImage(t, []byte{0xF2, 0xA6}) // repne cmpsb
	instr2, err := Decode(mem2, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if instr2.Kind != inst8086.Cmpsb || instr2.Repeat != inst8086.RepeatWhileZFClear {
		t.Fatalf("got %+v", instr2)
	}
}

func TestDecodeMemoryOperandAddressingModes(t *testing.T) {
	// mov ax, [bx+si+0x10] (mod=01, reg=ax=000, rm=bx+si=000) with disp8
	mem := newImage(t, []byte{0x8B, 0x40, 0x10})
	instr, err := Decode(mem, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if instr.Length != 3 {
		t.Fatalf("length = %d, want 3", instr.Length)
	}
	if !instr.Src.Mem.HasBase1 || instr.Src.Mem.Base1 != inst8086.BX {
		t.Fatalf("got %+v", instr.Src.Mem)
	}
	if !instr.Src.Mem.HasBase2 || instr.Src.Mem.Base2 != inst8086.SI {
		t.Fatalf("got %+v", instr.Src.Mem)
	}
	if instr.Src.Mem.Disp != 0x10 {
		t.Errorf("disp = %d, want 16", instr.Src.Mem.Disp)
	}
}

func TestDecodeDirectAddress(t *testing.T) {
	// mov ax, [0x1234] (mod=00, rm=110 direct address)
	mem := newImage(t, []byte{0x8B, 0x06, 0x34, 0x12})
	instr, err := Decode(mem, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if instr.Length != 4 {
		t.Fatalf("length = %d, want 4", instr.Length)
	}
	if !instr.Src.Mem.HasDirect || instr.Src.Mem.Direct != 0x1234 {
		t.Fatalf("got %+v", instr.Src.Mem)
	}
}

func TestDecodeUnknownByteErrors(t *testing.T) {
	mem := newImage(t, []byte{0x0F}) // not covered by this decoder
	_, err := Decode(mem, 0)
	if err == nil {
		t.Fatalf("expected UnknownInstruction error")
	}
}

func TestDecodeSegmentOverridePrefix(t *testing.T) {
	// es: mov ax, [bx] -> 0x26 prefix, mod=00 rm=111 (bx alone)
	mem := newImage(t, []byte{0x26, 0x8B, 0x07})
	instr, err := Decode(mem, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if instr.Length != 3 {
		t.Fatalf("length = %d, want 3 (prefix + 2-byte instruction)", instr.Length)
	}
	if !instr.Src.Mem.HasSegment || instr.Src.Mem.Segment != inst8086.ES {
		t.Fatalf("got %+v", instr.Src.Mem)
	}
}
