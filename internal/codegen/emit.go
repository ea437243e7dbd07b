package codegen

import (
	"fmt"

	"github.com/launix-de/lispvmc/internal/isa"
)

// CodegenError is the error type Compile returns on any compile-time
// failure (wrong arity, break outside a loop, an uninitialized global,
// ...). It is also what the panic/recover boundary in layout.go
// converts an internal panic into.
type CodegenError struct {
	Msg string
}

func (e *CodegenError) Error() string { return e.Msg }

// fail aborts code generation with a formatted diagnostic. It panics
// rather than threading an error return through every compile* method,
// mirroring the teacher's own anti-panic boundary in scm/prompt.go:
// one recover() at the top converts it back into a normal error.
func fail(format string, args ...any) {
	panic(&CodegenError{Msg: fmt.Sprintf(format, args...)})
}

func (c *Compiler) emit(op isa.Opcode, imm int32) {
	fn := c.cur()
	fn.Instructions = append(fn.Instructions, Instr{Op: op, Imm: imm})
}

func (c *Compiler) emitPushInt(v int64, line int) {
	if v < -32768 || v > 32767 {
		fail("integer literal %d out of range at line %d", v, line)
	}
	c.emit(isa.PUSH, int32(v))
}

// emitBranch emits a GOTO/BFALSE whose target is lbl, recording a
// label fixup to patch the immediate once lbl's offset (and the
// function's base address) are known.
func (c *Compiler) emitBranch(op isa.Opcode, lbl *Label) {
	fn := c.cur()
	idx := len(fn.Instructions)
	c.emit(op, 0)
	fn.Fixups = append(fn.Fixups, Fixup{InstrIndex: idx, Kind: fixupLabel, Label: lbl})
}

// addFixupSymbol records that the most recently emitted PUSH 0 must be
// patched to sym's resolved address: sym's global slot number if it's
// a variable, or its function's base address once assigned if it's a
// function-kind symbol.
func (c *Compiler) addFixupSymbol(sym *Symbol) {
	fn := c.cur()
	idx := len(fn.Instructions) - 1
	fn.Fixups = append(fn.Fixups, Fixup{InstrIndex: idx, Kind: fixupSymbol, Sym: sym})
}

// addFixupFunc records that the most recently emitted PUSH 0 must be
// patched to funcIdx's base address directly (used for anonymous
// function literals, which have no symbol of their own).
func (c *Compiler) addFixupFunc(funcIdx FuncIndex) {
	fn := c.cur()
	idx := len(fn.Instructions) - 1
	fn.Fixups = append(fn.Fixups, Fixup{InstrIndex: idx, Kind: fixupFunc, Func: funcIdx})
}

func (c *Compiler) emitPushFuncAddr(funcIdx FuncIndex, line int) {
	c.emitPushInt(0, line)
	c.addFixupFunc(funcIdx)
}
