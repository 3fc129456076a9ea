package rwx

import "testing"

func TestAllocateRejectsNonPositiveSize(t *testing.T) {
	if _, err := Allocate(0); err == nil {
		t.Fatalf("expected error for zero size")
	}
	if _, err := Allocate(-1); err == nil {
		t.Fatalf("expected error for negative size")
	}
}

func TestAllocateFreeRoundTrip(t *testing.T) {
	region, err := Allocate(4096)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	data := region.Bytes()
	if len(data) != 4096 {
		t.Fatalf("Bytes() length = %d, want 4096", len(data))
	}
	data[0] = 0xc3
	if region.Bytes()[0] != 0xc3 {
		t.Errorf("write through Bytes() did not persist")
	}
	if err := region.Free(); err != nil {
		t.Fatalf("Free: %v", err)
	}
	// Free is idempotent on an already-freed region.
	if err := region.Free(); err != nil {
		t.Errorf("second Free: %v", err)
	}
}
