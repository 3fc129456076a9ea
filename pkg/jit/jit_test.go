package jit

import (
	"testing"
	"unsafe"

	"github.com/emu8086/core/pkg/evex"
	"github.com/emu8086/core/pkg/inst8086"
)

func newTestBuffer(t *testing.T) *Buffer {
	t.Helper()
	buf, err := NewBuffer(4096)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	t.Cleanup(func() { _ = buf.Free() })
	return buf
}

func TestBufferMovEmitsVmovdqa64(t *testing.T) {
	buf := newTestBuffer(t)
	if err := buf.Mov(1, 2); err != nil {
		t.Fatalf("Mov: %v", err)
	}
	want := []byte{0x62, 0xF1, 0xFD, 0x48, 0x6F, 0xCA}
	got := buf.Pointer()[:buf.Offset()]
	if string(got) != string(want) {
		t.Errorf("got % x, want % x", got, want)
	}
}

func TestBufferSubEmitsVpsubw(t *testing.T) {
	buf := newTestBuffer(t)
	if err := buf.Sub(1, 2, 1); err != nil {
		t.Fatalf("Sub: %v", err)
	}
	want := []byte{0x62, 0xF1, 0x6D, 0x48, 0xF9, 0xC9}
	got := buf.Pointer()[:buf.Offset()]
	if string(got) != string(want) {
		t.Errorf("got % x, want % x", got, want)
	}
}

func TestBufferOverflowReturnsTypedError(t *testing.T) {
	buf, err := NewBuffer(4)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	defer buf.Free()
	err = buf.WriteBytes([]byte{1, 2, 3, 4, 5})
	if err == nil {
		t.Fatalf("expected overflow error")
	}
}

func TestNextScratchRoundRobin(t *testing.T) {
	buf := newTestBuffer(t)
	want := []evex.Zmm{28, 29, 30, 31, 28}
	for i, w := range want {
		if got := buf.NextScratch(); got != w {
			t.Errorf("scratch[%d] = %d, want %d", i, got, w)
		}
	}
}

func TestContextOffsetsAreSequentialAndLaneWidth(t *testing.T) {
	order := []inst8086.Register{
		inst8086.AX, inst8086.BX, inst8086.CX, inst8086.DX,
		inst8086.SI, inst8086.DI, inst8086.BP, inst8086.SP,
		inst8086.IP, inst8086.FLAGS,
	}
	for i, reg := range order {
		want := uintptr(i * 64)
		if got := contextOffset(reg); got != want {
			t.Errorf("%s offset = %d, want %d", reg, got, want)
		}
	}
}

func TestAllocContextIsAligned(t *testing.T) {
	ctx, _ := AllocContext()
	addr := uintptr(unsafe.Pointer(ctx))
	if addr%64 != 0 {
		t.Errorf("context address %#x not 64-byte aligned", addr)
	}
}

func TestContextLaneRoundTrip(t *testing.T) {
	ctx, _ := AllocContext()
	s := LaneState{AX: 0x1234, FLAGS: 0x0046, IP: 7}
	ctx.SetLane(3, s)
	got := ctx.Lane(3)
	if got != s {
		t.Errorf("lane 3 = %+v, want %+v", got, s)
	}
	if zero := ctx.Lane(0); zero != (LaneState{}) {
		t.Errorf("lane 0 should be untouched, got %+v", zero)
	}
}

func TestLowerMovRegImmediate(t *testing.T) {
	buf := newTestBuffer(t)
	instr := inst8086.Instruction{
		Kind: inst8086.Mov,
		Dest: inst8086.RegisterOperand(inst8086.BP), HasDest: true,
		Src: inst8086.ImmediateOperand(0x1234), HasSrc: true,
	}
	if err := Lower(buf, instr); err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if buf.Offset() == 0 {
		t.Errorf("expected bytes to be emitted")
	}
}

func TestLowerSubSynthesizesFlags(t *testing.T) {
	buf := newTestBuffer(t)
	instr := inst8086.Instruction{
		Kind: inst8086.Sub,
		Dest: inst8086.RegisterOperand(inst8086.AX), HasDest: true,
		Src: inst8086.RegisterOperand(inst8086.BX), HasSrc: true,
	}
	if err := Lower(buf, instr); err != nil {
		t.Fatalf("Lower: %v", err)
	}
	// vpsubw + two flag-bit sequences (clear/cmp/broadcast/or each), well
	// more than the bare 6-byte vpsubw alone.
	if buf.Offset() <= 6 {
		t.Errorf("expected flag synthesis bytes beyond the bare subtraction, got offset %d", buf.Offset())
	}
}

func TestLowerCmpClearsFlagBitBeforeSetting(t *testing.T) {
	buf := newTestBuffer(t)
	instr := inst8086.Instruction{
		Kind: inst8086.Cmp,
		Dest: inst8086.RegisterOperand(inst8086.AX), HasDest: true,
		Src: inst8086.RegisterOperand(inst8086.BX), HasSrc: true,
	}
	if err := Lower(buf, instr); err != nil {
		t.Fatalf("Lower: %v", err)
	}
	got := buf.Pointer()[:buf.Offset()]
	// setFlagBit now emits an unconditional vpandq (opcode 0xDB) before
	// its masked vporw for each of the two flags cmp synthesizes (Zero,
	// Sign), so a bit set on one cmp can be cleared by a later one
	// instead of only ever accumulating via OrMasked.
	andCount := 0
	for _, b := range got {
		if b == byte(evex.OpAnd) {
			andCount++
		}
	}
	if andCount != 2 {
		t.Errorf("expected 2 vpandq clear steps (one per flag bit), found %d occurrences of opcode %#x in % x", andCount, evex.OpAnd, got)
	}
}

// TestLowerCmpSequenceClearsStaleFlagBit lowers two cmp instructions back
// to back whose results disagree on the Zero flag, guarding against the
// ZF/SF-only-ever-turn-on regression a masked-OR-only merge produces: the
// second lowering must still carry its own clear step rather than
// inheriting the first's set bit forever.
func TestLowerCmpSequenceClearsStaleFlagBit(t *testing.T) {
	buf := newTestBuffer(t)
	equalCmp := inst8086.Instruction{
		Kind: inst8086.Cmp,
		Dest: inst8086.RegisterOperand(inst8086.AX), HasDest: true,
		Src: inst8086.RegisterOperand(inst8086.AX), HasSrc: true,
	}
	if err := Lower(buf, equalCmp); err != nil {
		t.Fatalf("Lower (first cmp): %v", err)
	}
	firstOffset := buf.Offset()

	unequalCmp := inst8086.Instruction{
		Kind: inst8086.Cmp,
		Dest: inst8086.RegisterOperand(inst8086.AX), HasDest: true,
		Src: inst8086.RegisterOperand(inst8086.BX), HasSrc: true,
	}
	if err := Lower(buf, unequalCmp); err != nil {
		t.Fatalf("Lower (second cmp): %v", err)
	}
	if buf.Offset() <= firstOffset {
		t.Fatalf("expected the second cmp to emit its own clear-then-set sequence")
	}
	secondGroup := buf.Pointer()[firstOffset:buf.Offset()]
	andCount := 0
	for _, b := range secondGroup {
		if b == byte(evex.OpAnd) {
			andCount++
		}
	}
	if andCount != 2 {
		t.Errorf("second cmp lowering: expected 2 vpandq clear steps, found %d", andCount)
	}
}

func TestLowerMemoryOperandUnimplemented(t *testing.T) {
	buf := newTestBuffer(t)
	instr := inst8086.Instruction{
		Kind: inst8086.Mov,
		Dest: inst8086.RegisterOperand(inst8086.AX), HasDest: true,
		Src: inst8086.MemoryOperandOf(inst8086.MemoryOperand{HasBase1: true, Base1: inst8086.BX, Size: inst8086.SizeWord}), HasSrc: true,
	}
	if err := Lower(buf, instr); err == nil {
		t.Fatalf("expected Unimplemented for a memory operand")
	}
}

func TestAssembleEntryStubShape(t *testing.T) {
	stub := AssembleEntryStub()
	if len(stub) == 0 {
		t.Fatalf("expected non-empty entry stub")
	}
	if stub[len(stub)-1] != 0xc3 {
		t.Errorf("entry stub must end in ret, got last byte %#x", stub[len(stub)-1])
	}
	// 10 loads + test/jz/int3 + call + 10 stores + ret, each
	// AssembleContextMove call is 10 bytes (4-byte EVEX prefix, opcode,
	// ModRM, disp32).
	wantLen := 10*10 + 3 + 2 + 1 + 3 + 10*10 + 1
	if len(stub) != wantLen {
		t.Errorf("entry stub length = %d, want %d", len(stub), wantLen)
	}
}
