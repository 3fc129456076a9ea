// Package logx is a thin log/slog wrapper the CLI (cmd/emu8086) uses to
// report decode failures, unimplemented instructions, and instructions
// the JIT could not lower. Built on the standard library because no repo
// in the retrieved corpus imports a third-party structured-logging
// package (every example uses fmt.Printf/fmt.Fprintf or bare log), so a
// zerolog/zap dependency here would not be grounded in anything the
// corpus shows.
package logx

import (
	"log/slog"
	"os"
)

var base = slog.New(slog.NewTextHandler(os.Stderr, nil))

// SetOutput redirects all logging to handler, used by tests to swap in a
// slog.NewJSONHandler.
func SetOutput(handler slog.Handler) {
	base = slog.New(handler)
}

// DecodeFailure logs a decode error at the given instruction pointer.
func DecodeFailure(ip uint16, err error) {
	base.Error("decode failed", "ip", ip, "error", err)
}

// Unimplemented logs an instruction the scalar or vectorized executor
// does not support, at the level each caller expects: a warning, since
// the caller is expected to recover (scalar fallback from the JIT path,
// or a reported fixture failure) rather than crash.
func Unimplemented(ip uint16, reason string) {
	base.Warn("unimplemented", "ip", ip, "reason", reason)
}

// JitFallback logs that the JIT translator could not lower the
// instruction at ip.
func JitFallback(ip uint16, err error) {
	base.Info("jit could not lower instruction", "ip", ip, "error", err)
}

// BufferState logs the JIT buffer's current write offset and capacity
// at debug level.
func BufferState(offset, capacity int) {
	base.Debug("jit buffer state", "offset", offset, "capacity", capacity)
}

// With returns a logger carrying a fixed attribute set, for call sites
// that want to thread a run ID or fixture name through a sequence of
// log lines without repeating it at every call.
func With(args ...any) *slog.Logger {
	return base.With(args...)
}
