// Package snapshot saves and restores an emulator's scalar CPU state and
// memory image, directly grounded on pkg/result/checkpoint.go's
// gob.Register/gob.NewEncoder/gob.NewDecoder pattern — repurposed from
// "resume a superoptimizer search" to "save/restore an emulator
// snapshot" per the Lifecycle clause ("CPU state is ... restored from a
// snapshot").
package snapshot

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/emu8086/core/pkg/cpu"
	"github.com/emu8086/core/pkg/inst8086"
)

// Snapshot is the full persisted state of one scalar CPU: its register
// file and its memory image.
type Snapshot struct {
	Regs   [inst8086.RegisterCount]uint16
	Seg    [4]uint16
	Memory []byte
}

// FromState captures state and mem into a Snapshot, copying the memory
// image so later mutation of mem does not alias the snapshot.
func FromState(state *cpu.State, mem *cpu.Memory) Snapshot {
	s := Snapshot{Seg: state.Seg, Memory: make([]byte, mem.Len())}
	for r := inst8086.Register(0); r < inst8086.RegisterCount; r++ {
		s.Regs[r] = state.ReadRegister(r)
	}
	for i := 0; i < mem.Len(); i++ {
		s.Memory[i] = mem.ReadByte(uint32(i))
	}
	return s
}

// Restore applies s onto a freshly-constructed CPU state and memory
// image, returning both ready for execution to resume.
func Restore(s Snapshot) (*cpu.State, *cpu.Memory, error) {
	state := cpu.NewState()
	for r := inst8086.Register(0); r < inst8086.RegisterCount; r++ {
		state.WriteRegister(r, s.Regs[r])
	}
	state.Seg = s.Seg

	mem, err := cpu.NewMemory(len(s.Memory))
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot: restore memory: %w", err)
	}
	for i, b := range s.Memory {
		mem.WriteByte(uint32(i), b)
	}
	return state, mem, nil
}

// Save writes s to path using encoding/gob, matching checkpoint.go's
// SaveCheckpoint shape.
func Save(path string, s Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("snapshot: create %s: %w", path, err)
	}
	defer f.Close()
	return Encode(f, s)
}

// Load reads a Snapshot from path, matching checkpoint.go's
// LoadCheckpoint shape.
func Load(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: open %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}

// Encode writes s to w using encoding/gob, split out from Save so tests
// and in-memory callers need not touch the filesystem.
func Encode(w io.Writer, s Snapshot) error {
	return gob.NewEncoder(w).Encode(s)
}

// Decode reads a Snapshot from r using encoding/gob.
func Decode(r io.Reader) (Snapshot, error) {
	var s Snapshot
	if err := gob.NewDecoder(r).Decode(&s); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}
