package config

import "testing"

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default() should validate, got %v", err)
	}
}

func TestValidateRejectsNonPowerOfTwoMemorySize(t *testing.T) {
	cfg := Default()
	cfg.MemorySize = 60000
	if err := cfg.Validate(); err == nil {
		t.Errorf("expected error for non-power-of-two memory size")
	}
}

func TestValidateRejectsOversizeMemory(t *testing.T) {
	cfg := Default()
	cfg.MemorySize = 131072
	if err := cfg.Validate(); err == nil {
		t.Errorf("expected error for memory size exceeding 65536")
	}
}

func TestValidateRejectsNonPositiveLanesAndBuffer(t *testing.T) {
	cfg := Default()
	cfg.Lanes = 0
	if err := cfg.Validate(); err == nil {
		t.Errorf("expected error for zero lanes")
	}
	cfg = Default()
	cfg.JitBufferBytes = -1
	if err := cfg.Validate(); err == nil {
		t.Errorf("expected error for negative jit buffer size")
	}
}
