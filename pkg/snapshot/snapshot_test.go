package snapshot

import (
	"bytes"
	"testing"

	"github.com/emu8086/core/pkg/cpu"
	"github.com/emu8086/core/pkg/inst8086"
)

func TestFromStateRestoreRoundTrip(t *testing.T) {
	state := cpu.NewState()
	state.WriteRegister(inst8086.AX, 0x1234)
	state.WriteRegister(inst8086.IP, 0x10)
	state.WriteSegment(inst8086.CS, 0xF000)

	mem, err := cpu.NewMemory(256)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	mem.WriteByte(5, 0xAB)

	snap := FromState(state, mem)

	restoredState, restoredMem, err := Restore(snap)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got := restoredState.ReadRegister(inst8086.AX); got != 0x1234 {
		t.Errorf("AX = %#x, want 0x1234", got)
	}
	if got := restoredState.ReadSegment(inst8086.CS); got != 0xF000 {
		t.Errorf("CS = %#x, want 0xF000", got)
	}
	if got := restoredMem.ReadByte(5); got != 0xAB {
		t.Errorf("mem[5] = %#x, want 0xAB", got)
	}
	if restoredMem.Len() != 256 {
		t.Errorf("memory length = %d, want 256", restoredMem.Len())
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	snap := Snapshot{Memory: []byte{1, 2, 3}}
	snap.Regs[inst8086.AX] = 0x5555

	var buf bytes.Buffer
	if err := Encode(&buf, snap); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Regs[inst8086.AX] != 0x5555 {
		t.Errorf("AX = %#x, want 0x5555", got.Regs[inst8086.AX])
	}
	if string(got.Memory) != string(snap.Memory) {
		t.Errorf("memory = %v, want %v", got.Memory, snap.Memory)
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	if _, err := Load("/nonexistent/path/snapshot.gob"); err == nil {
		t.Errorf("expected error loading a nonexistent snapshot file")
	}
}
