package codegen

import (
	"github.com/launix-de/lispvmc/internal/isa"
	"github.com/launix-de/lispvmc/internal/sexpr"
)

// emitCallResolved pushes the callee (a direct function address for a
// statically known function symbol, or a closure-or-function value
// plus the unwrap dance otherwise), then CALL and -- if there were any
// arguments -- CLEANUP to drop them back off the stack.
func (c *Compiler) emitCallResolved(sym *Symbol, nargs int, line int) {
	if sym.Kind == SymFunction {
		c.cur().ReferencedSyms = append(c.cur().ReferencedSyms, sym)
		c.emitPushInt(0, line)
		c.addFixupSymbol(sym)
	} else {
		c.compileIdentifierValue(sym, line)
		c.emitClosureUnwrap(line)
	}
	c.emit(isa.CALL, 0)
	if nargs > 0 {
		c.emit(isa.CLEANUP, int32(nargs))
	}
}

// emitCallValue is emitCallResolved's counterpart when the callee
// isn't a bare symbol at all, e.g. ((first fns) 1 2).
func (c *Compiler) emitCallValue(callee sexpr.Expr, nargs int, line int) {
	c.compileExpression(callee, false)
	c.emitClosureUnwrap(line)
	c.emit(isa.CALL, 0)
	if nargs > 0 {
		c.emit(isa.CLEANUP, int32(nargs))
	}
}

// emitClosureUnwrap replaces the tagged value on top of the stack with
// a bare code address, ready for CALL. A TAG_FUNCTION value passes
// through untouched (GETTAG/EQ/BFALSE finds no match and skips). A
// TAG_CLOSURE value additionally stores its envlist (the pair's rest)
// into the $closure global (slot 1) as a side effect, so the callee's
// prologue can unpack its free variables from it, then replaces the
// stack value with the pair's head (its code address).
//
// There is no stack-reordering primitive beyond DUP in the ISA, so the
// envlist is routed through the $closure global rather than passed on
// the stack: §4.5.4 describes the mechanism but not an exact encoding,
// since the original Python compiler has no closures at all to ground
// this against.
func (c *Compiler) emitClosureUnwrap(line int) {
	skip := c.newLabel()
	c.emit(isa.DUP, 0)
	c.emit(isa.GETTAG, 0)
	c.emitPushInt(int64(isa.TagClosure), line)
	c.emit(isa.EQ, 0)
	c.emitBranch(isa.BFALSE, skip)
	c.emit(isa.DUP, 0)
	c.emit(isa.REST, 0)
	c.emitPushInt(1, line) // $closure's global slot
	c.emit(isa.STORE, 0)
	c.emit(isa.POP, 0)
	c.emit(isa.LOAD, 0)
	c.emitLabel(skip)
}

// compileFunctionCall compiles a general call form (expr ...). Each
// argument is evaluated right-to-left before the callee, matching
// original_source/compile.py's compileFunctionCall.
func (c *Compiler) compileFunctionCall(e sexpr.Expr) {
	callee := e.List[0]
	if callee.IsInt() {
		fail("cannot call an integer at line %d", e.Line)
	}
	args := e.List[1:]
	for i := len(args) - 1; i >= 0; i-- {
		c.compileExpression(args[i], false)
	}
	if callee.IsSymbol() {
		c.emitCallResolved(c.lookup(callee.Text), len(args), e.Line)
		return
	}
	c.emitCallValue(callee, len(args), e.Line)
}

// compileTailCall rebinds a self-recursive call in tail position
// (§4.5.5) instead of emitting a CALL: every argument is evaluated
// first, left to right, and only then assigned back into the
// parameter slots in reverse. Assigning in a single interleaved pass
// would corrupt a swapping call like (f b a), since writing the first
// parameter before the second argument is evaluated would feed the
// second argument a value that's already been overwritten.
func (c *Compiler) compileTailCall(e sexpr.Expr) {
	fn := c.cur()
	args := e.List[1:]
	if len(args) != fn.NumParams {
		fail("wrong number of arguments to %s at line %d", fn.Name, e.Line)
	}
	for _, a := range args {
		c.compileExpression(a, false)
	}
	for i := len(args) - 1; i >= 0; i-- {
		c.emit(isa.SETLOCAL, int32(i+1))
	}
	c.emitBranch(isa.GOTO, fn.EntryLabel)
}
