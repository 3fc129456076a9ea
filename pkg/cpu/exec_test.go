package cpu

import (
	"testing"

	"github.com/emu8086/core/pkg/inst8086"
)

func newTestMachine(t *testing.T) (*State, *Memory) {
	t.Helper()
	mem, err := NewMemory(65536)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	return NewState(), mem
}

// TestMovRegImmediate covers mov bp, 0x1234.
func TestMovRegImmediate(t *testing.T) {
	s, mem := newTestMachine(t)
	instr := inst8086.Instruction{
		Kind: inst8086.Mov,
		Dest: inst8086.RegisterOperand(inst8086.BP), HasDest: true,
		Src: inst8086.ImmediateOperand(0x1234), HasSrc: true,
		Length: 4,
	}
	if err := Execute(s, mem, instr); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := s.ReadRegister(inst8086.BP); got != 0x1234 {
		t.Errorf("bp = 0x%04x, want 0x1234", got)
	}
	if s.IP() != 4 {
		t.Errorf("ip = %d, want 4", s.IP())
	}
}

// TestSubRegisters covers sub ax, bx and the degenerate sub ax, ax case.
func TestSubRegisters(t *testing.T) {
	s, mem := newTestMachine(t)
	s.WriteRegister(inst8086.AX, 10)
	s.WriteRegister(inst8086.BX, 3)
	instr := inst8086.Instruction{
		Kind: inst8086.Sub,
		Dest: inst8086.RegisterOperand(inst8086.AX), HasDest: true,
		Src: inst8086.RegisterOperand(inst8086.BX), HasSrc: true,
		Length: 2,
	}
	if err := Execute(s, mem, instr); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := s.ReadRegister(inst8086.AX); got != 7 {
		t.Errorf("ax = %d, want 7", got)
	}
	if s.Flags()&FlagZero != 0 {
		t.Errorf("zero flag set for non-zero result")
	}

	s2, mem2 := newTestMachine(t)
	s2.WriteRegister(inst8086.AX, 10)
	instr2 := inst8086.Instruction{
		Kind: inst8086.Sub,
		Dest: inst8086.RegisterOperand(inst8086.AX), HasDest: true,
		Src: inst8086.RegisterOperand(inst8086.AX), HasSrc: true,
		Length: 2,
	}
	if err := Execute(s2, mem2, instr2); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := s2.ReadRegister(inst8086.AX); got != 0 {
		t.Errorf("ax = %d, want 0", got)
	}
	if s2.Flags()&FlagZero == 0 {
		t.Errorf("zero flag clear for sub ax, ax")
	}
}

// TestCmpDoesNotWriteBack covers cmp bx, ax.
func TestCmpDoesNotWriteBack(t *testing.T) {
	s, mem := newTestMachine(t)
	s.WriteRegister(inst8086.BX, 5)
	s.WriteRegister(inst8086.AX, 5)
	instr := inst8086.Instruction{
		Kind: inst8086.Cmp,
		Dest: inst8086.RegisterOperand(inst8086.BX), HasDest: true,
		Src: inst8086.RegisterOperand(inst8086.AX), HasSrc: true,
		Length: 2,
	}
	if err := Execute(s, mem, instr); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := s.ReadRegister(inst8086.BX); got != 5 {
		t.Errorf("bx = %d, want unchanged 5", got)
	}
	if s.Flags()&FlagZero == 0 {
		t.Errorf("zero flag clear for equal operands")
	}
}

// TestConditionalJumpEitherWay covers je $+9 (a rel8 of 7) with ZF clear
// and ZF set.
func TestConditionalJumpEitherWay(t *testing.T) {
	for _, zf := range []bool{false, true} {
		s, mem := newTestMachine(t)
		if zf {
			s.SetFlags(FlagZero)
		}
		instr := inst8086.Instruction{
			Kind:       inst8086.Je,
			JumpOffset: 9, // stored as rel8+2; the rel8 displacement is 7
			HasJump:    true,
			Length:     2,
		}
		if err := Execute(s, mem, instr); err != nil {
			t.Fatalf("Execute: %v", err)
		}
		wantIP := uint16(2) // fallthrough: ip advances past the 2-byte instruction
		if zf {
			wantIP = 2 + 7
		}
		if s.IP() != wantIP {
			t.Errorf("zf=%v: ip = %d, want %d", zf, s.IP(), wantIP)
		}
	}
}

// TestRepeatMovsb covers repe movsb over a short buffer.
func TestRepeatMovsb(t *testing.T) {
	s, mem := newTestMachine(t)
	mem.WriteByte(0x100, 'a')
	mem.WriteByte(0x101, 'b')
	mem.WriteByte(0x102, 'c')
	s.WriteRegister(inst8086.SI, 0x100)
	s.WriteRegister(inst8086.DI, 0x200)
	s.WriteRegister(inst8086.CX, 3)
	instr := inst8086.Instruction{
		Kind:   inst8086.Movsb,
		Repeat: inst8086.RepeatWhileZFSet,
		Length: 2,
	}
	if err := Execute(s, mem, instr); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if mem.ReadByte(0x200) != 'a' || mem.ReadByte(0x201) != 'b' || mem.ReadByte(0x202) != 'c' {
		t.Errorf("destination bytes not copied correctly")
	}
	if got := s.ReadRegister(inst8086.CX); got != 0 {
		t.Errorf("cx = %d, want 0", got)
	}
	if got := s.ReadRegister(inst8086.SI); got != 0x103 {
		t.Errorf("si = 0x%x, want 0x103", got)
	}
}

// TestRegisterWriteReadRoundTrip is a no-op invariant check: writing a
// register and immediately reading it back must return the same value,
// and sub-register writes must not disturb the other half.
func TestRegisterWriteReadRoundTrip(t *testing.T) {
	s, _ := newTestMachine(t)
	s.WriteRegister(inst8086.AX, 0xBEEF)
	if got := s.ReadRegister(inst8086.AX); got != 0xBEEF {
		t.Errorf("ax = 0x%04x, want 0xbeef", got)
	}
	s.WriteSubRegister(inst8086.SubRegister{Main: inst8086.AX, Part: inst8086.Low}, 0x11)
	if got := s.ReadSubRegister(inst8086.SubRegister{Main: inst8086.AX, Part: inst8086.High}); got != 0xBE {
		t.Errorf("ah = 0x%02x, want 0xbe (unchanged by al write)", got)
	}
	if got := s.ReadSubRegister(inst8086.SubRegister{Main: inst8086.AX, Part: inst8086.Low}); got != 0x11 {
		t.Errorf("al = 0x%02x, want 0x11", got)
	}
}

// TestLoopDecrementsAndBranches covers loop control flow, taken and
// falling through.
func TestLoopDecrementsAndBranches(t *testing.T) {
	s, mem := newTestMachine(t)
	s.WriteRegister(inst8086.CX, 2)
	instr := inst8086.Instruction{Kind: inst8086.Loop, JumpOffset: 2, HasJump: true, Length: 2}
	if err := Execute(s, mem, instr); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := s.ReadRegister(inst8086.CX); got != 1 {
		t.Errorf("cx = %d, want 1", got)
	}
	if s.IP() != 2 {
		t.Errorf("ip = %d, want 2 (branch taken, zero net delta)", s.IP())
	}

	s2, mem2 := newTestMachine(t)
	s2.WriteRegister(inst8086.CX, 1)
	if err := Execute(s2, mem2, instr); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := s2.ReadRegister(inst8086.CX); got != 0 {
		t.Errorf("cx = %d, want 0", got)
	}
	if s2.IP() != 2 {
		t.Errorf("ip = %d, want 2 (fallthrough)", s2.IP())
	}
}
