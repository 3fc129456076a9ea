package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := base
	SetOutput(slog.NewJSONHandler(&buf, nil))
	t.Cleanup(func() { base = old })
	return &buf
}

func TestDecodeFailureLogsIPAndError(t *testing.T) {
	buf := captureOutput(t)
	DecodeFailure(0x100, errors.New("bad opcode"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if entry["msg"] != "decode failed" {
		t.Errorf("msg = %v, want %q", entry["msg"], "decode failed")
	}
	if got := entry["ip"]; got != float64(0x100) {
		t.Errorf("ip = %v, want %v", got, 0x100)
	}
}

func TestUnimplementedLogsReason(t *testing.T) {
	buf := captureOutput(t)
	Unimplemented(0x42, "memory operand")
	if !strings.Contains(buf.String(), "memory operand") {
		t.Errorf("expected reason in output, got %s", buf.String())
	}
}

func TestWithAttachesFixedAttributes(t *testing.T) {
	buf := captureOutput(t)
	With("fixture", "vpsubw").Info("running")
	if !strings.Contains(buf.String(), "vpsubw") {
		t.Errorf("expected fixture attribute in output, got %s", buf.String())
	}
}
