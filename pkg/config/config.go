// Package config holds the small set of values the CLI binds to flags
// and passes down into pkg/cpu and pkg/jit, generalized from the flat
// flag-bound local variables cmd/z80opt/main.go declares per subcommand
// (maxTarget, numWorkers, deadFlagsStr, ...) into one struct so every
// constructor here takes a Config instead of positional arguments.
package config

import "fmt"

// Config is the emulator's full runtime configuration.
type Config struct {
	// MemorySize is the scalar CPU's flat memory image size in bytes.
	// Must be a power of two not exceeding 65536, mirroring pkg/cpu's
	// own NewMemory invariant.
	MemorySize int

	// Lanes is the number of JIT lanes the CLI reports. The vectorized
	// context ABI always advances 32 lanes in lockstep (ten zmm
	// registers, 32 16-bit lanes each), so Lanes must be between 1 and
	// 32; run --jit prints the first Lanes of them.
	Lanes int

	// JitBufferBytes is the RWX region size pkg/jit.NewBuffer allocates
	// for the translated instruction stream.
	JitBufferBytes int

	// DebugBreak, when true, tells the CLI to pass a nonzero r13 into
	// the entry stub so a hardware debugger traps before every call
	// into the JIT buffer.
	DebugBreak bool
}

// Default memory size, mirroring the §3 invariant that memory is a
// runtime-configured power of two not exceeding 65536.
const DefaultMemorySize = 65536

// DefaultJitBufferBytes is large enough for a few dozen translated
// instructions without forcing every caller to size it by hand.
const DefaultJitBufferBytes = 64 * 1024

// DefaultLanes is the fixed lane count the vectorized context ABI uses.
const DefaultLanes = 32

// Default returns a Config populated with validated defaults, the
// values NewMemory/AllocContext/NewBuffer accept without further
// adjustment.
func Default() Config {
	return Config{
		MemorySize:     DefaultMemorySize,
		Lanes:          DefaultLanes,
		JitBufferBytes: DefaultJitBufferBytes,
		DebugBreak:     false,
	}
}

// Validate checks the fields a constructor cannot cheaply check itself
// (pkg/cpu.NewMemory already rejects a bad MemorySize, but the CLI
// wants to fail fast with a combined message before touching any
// package).
func (c Config) Validate() error {
	if c.MemorySize <= 0 || c.MemorySize > 65536 || c.MemorySize&(c.MemorySize-1) != 0 {
		return fmt.Errorf("config: memory size %d must be a power of two in (0, 65536]", c.MemorySize)
	}
	if c.Lanes <= 0 || c.Lanes > DefaultLanes {
		return fmt.Errorf("config: lanes must be in [1, %d], got %d", DefaultLanes, c.Lanes)
	}
	if c.JitBufferBytes <= 0 {
		return fmt.Errorf("config: jit buffer bytes must be positive, got %d", c.JitBufferBytes)
	}
	return nil
}
