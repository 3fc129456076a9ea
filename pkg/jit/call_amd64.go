package jit

import "unsafe"

// callEntryStub invokes the assembled entry stub at entry, preloading
// r13 (debug-break flag), r14 (JIT buffer entry point), and r15 (context
// pointer) exactly as AssembleEntryStub's calling convention requires,
// implemented in call_amd64.s. Calling raw mapped machine code from Go
// has no analog anywhere in the retrieved corpus (no example repo runs
// a JIT in-process; the nearest relative, the ELF-writer in
// other_examples, only ever writes a standalone executable to disk), so
// this one small trampoline is hand-written Go assembly rather than a
// library call — the same "host machine code, outside normal package
// scope" exception already used for entrystub.go's hand-encoded
// test/jz/int3/call bytes.
func callEntryStub(entry uintptr, debugBreak, bufferEntry, contextPtr uintptr)

// Call runs the entry stub held in stubBuf (an executable Buffer that
// AssembleEntryStub's bytes have already been written into) against
// ctx, with buf's translated instruction stream as the call target.
// debugBreak is passed through verbatim as r13; AssembleEntryStub's own
// `test r13,r13` decides whether to trap.
func Call(stubBuf, buf *Buffer, ctx *Context, debugBreak bool) {
	entry := uintptr(unsafe.Pointer(&stubBuf.Pointer()[0]))
	bufferEntry := uintptr(unsafe.Pointer(&buf.Pointer()[0]))
	contextPtr := uintptr(unsafe.Pointer(ctx))
	var dbg uintptr
	if debugBreak {
		dbg = 1
	}
	callEntryStub(entry, dbg, bufferEntry, contextPtr)
}
