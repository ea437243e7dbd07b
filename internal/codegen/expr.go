package codegen

import (
	"github.com/launix-de/lispvmc/internal/isa"
	"github.com/launix-de/lispvmc/internal/sexpr"
)

// compileSequence compiles a begin/let/function body: statements are
// evaluated in order, discarding every value but the last (POP between
// statements). tail is propagated only to the final statement -- never
// into the discarded ones, which can't be in tail position regardless.
// An empty body evaluates to 0, matching an empty (begin).
func (c *Compiler) compileSequence(body []sexpr.Expr, tail bool, line int) {
	if len(body) == 0 {
		c.emitPushInt(0, line)
		return
	}
	for i, stmt := range body {
		if i > 0 {
			c.emit(isa.POP, 0)
		}
		c.compileExpression(stmt, tail && i == len(body)-1)
	}
}

// compileExpression is the single dispatch point every sub-expression
// passes through. tail records whether e sits in tail position of its
// enclosing function body, for the self tail-call check in
// compileCombination.
func (c *Compiler) compileExpression(e sexpr.Expr, tail bool) {
	switch e.Kind {
	case sexpr.KindInt:
		c.emitPushInt(e.Int, e.Line)
	case sexpr.KindString:
		c.compileString(e.Text, e.Line)
	case sexpr.KindSymbol:
		c.compileIdentifier(e.Text, e.Line)
	case sexpr.KindList:
		if len(e.List) == 0 {
			c.emitPushInt(0, e.Line)
			return
		}
		c.compileCombination(e, tail)
	}
}

func (c *Compiler) compileCombination(e sexpr.Expr, tail bool) {
	head := e.List[0]
	if head.IsSymbol() {
		switch head.Text {
		case "function":
			c.compileAnonymousFunction(e)
			return
		case "begin":
			c.compileSequence(e.List[1:], tail, e.Line)
			return
		case "while":
			c.compileWhile(e)
			return
		case "break":
			c.compileBreak(e)
			return
		case "if":
			c.compileIf(e, tail)
			return
		case "assign":
			c.compileAssign(e)
			return
		case "quote":
			c.compileQuote(e.List[1])
			return
		case "let":
			c.compileLet(e, tail)
			return
		case "getbp":
			c.emit(isa.GETBP, 0)
			return
		case "list":
			c.compileListForm(e.List[1:], e.Line)
			return
		case "and", "or", "not":
			c.compileBooleanExpression(e)
			return
		}
		fn := c.cur()
		if tail && fn.Name != "" && head.Text == fn.Name {
			c.compileTailCall(e)
			return
		}
		if prim, ok := isa.Lookup(head.Text); ok {
			c.compilePrimitive(prim, e)
			return
		}
	}
	c.compileFunctionCall(e)
}

// compilePrimitive compiles a call to a known opcode-backed primitive
// (§4.5.3). Every ordinary 2-arity primitive evaluates its right
// operand first (right-to-left), matching original_source/compile.py's
// compileBuiltInFunction; "<" and "<=" are synthesized by evaluating
// left-to-right and swapping onto gtr/gte instead.
func (c *Compiler) compilePrimitive(prim isa.Primitive, e sexpr.Expr) {
	args := e.List[1:]
	if len(args) != prim.Arity {
		fail("wrong number of arguments to %s at line %d", prim.Name, e.Line)
	}
	switch {
	case prim.Synthesize:
		c.compileExpression(args[0], false)
		c.compileExpression(args[1], false)
	case prim.Arity == 2:
		c.compileExpression(args[1], false)
		c.compileExpression(args[0], false)
	case prim.Arity == 1:
		c.compileExpression(args[0], false)
	}
	c.emit(prim.Op, 0)
}

func (c *Compiler) compileIdentifier(name string, line int) {
	c.compileIdentifierValue(c.lookup(name), line)
}

func (c *Compiler) compileIdentifierValue(sym *Symbol, line int) {
	switch sym.Kind {
	case SymLocal:
		c.emit(isa.GETLOCAL, int32(sym.Index))
	case SymGlobal:
		c.emitPushInt(0, line)
		c.addFixupSymbol(sym)
		c.emit(isa.LOAD, 0)
	case SymFunction:
		c.cur().ReferencedSyms = append(c.cur().ReferencedSyms, sym)
		c.emitPushInt(0, line)
		c.addFixupSymbol(sym)
	}
}

func (c *Compiler) compileAssign(e sexpr.Expr) {
	name := e.List[1].Text
	sym := c.lookup(name)
	switch sym.Kind {
	case SymLocal:
		c.compileExpression(e.List[2], false)
		c.emit(isa.DUP, 0)
		c.emit(isa.SETLOCAL, int32(sym.Index))
	case SymGlobal:
		// STORE leaves the stored value on top (§6), so the assign
		// expression's own value falls out for free -- no DUP needed.
		c.compileExpression(e.List[2], false)
		c.emitPushInt(0, e.Line)
		c.addFixupSymbol(sym)
		c.emit(isa.STORE, 0)
		sym.Initialized = true
	case SymFunction:
		fail("cannot assign to function %s at line %d", name, e.Line)
	}
}

func (c *Compiler) compileIf(e sexpr.Expr, tail bool) {
	falseLabel := c.newLabel()
	doneLabel := c.newLabel()
	c.compilePredicate(e.List[1], falseLabel)
	c.compileExpression(e.List[2], tail)
	c.emitBranch(isa.GOTO, doneLabel)
	c.emitLabel(falseLabel)
	if len(e.List) > 3 {
		c.compileExpression(e.List[3], tail)
	} else {
		c.emitPushInt(0, e.Line)
	}
	c.emitLabel(doneLabel)
}

// compilePredicate compiles e as a control-flow test, branching to
// falseTarget when e is false (zero). and/or/not short-circuit
// directly into branches instead of materializing a boolean value, the
// way original_source/compile.py's compilePredicate does.
func (c *Compiler) compilePredicate(e sexpr.Expr, falseTarget *Label) {
	if e.IsList() && len(e.List) > 0 && e.List[0].IsSymbol() {
		switch e.List[0].Text {
		case "and":
			if len(e.List) != 3 {
				fail("wrong number of arguments to and at line %d", e.Line)
			}
			c.compilePredicate(e.List[1], falseTarget)
			c.compilePredicate(e.List[2], falseTarget)
			return
		case "or":
			if len(e.List) != 3 {
				fail("wrong number of arguments to or at line %d", e.Line)
			}
			testSecond := c.newLabel()
			trueTarget := c.newLabel()
			c.compilePredicate(e.List[1], testSecond)
			c.emitBranch(isa.GOTO, trueTarget)
			c.emitLabel(testSecond)
			c.compilePredicate(e.List[2], falseTarget)
			c.emitLabel(trueTarget)
			return
		case "not":
			if len(e.List) != 2 {
				fail("wrong number of arguments to not at line %d", e.Line)
			}
			skip := c.newLabel()
			c.compilePredicate(e.List[1], skip)
			c.emitBranch(isa.GOTO, falseTarget)
			c.emitLabel(skip)
			return
		}
	}
	c.compileExpression(e, false)
	c.emitBranch(isa.BFALSE, falseTarget)
}

// compileBooleanExpression compiles and/or/not used as a value (not a
// predicate): the short-circuit control flow is the same, but the two
// arms push 1/0 instead of the taken branch's own value.
func (c *Compiler) compileBooleanExpression(e sexpr.Expr) {
	falseLabel := c.newLabel()
	doneLabel := c.newLabel()
	c.compilePredicate(e, falseLabel)
	c.emitPushInt(1, e.Line)
	c.emitBranch(isa.GOTO, doneLabel)
	c.emitLabel(falseLabel)
	c.emitPushInt(0, e.Line)
	c.emitLabel(doneLabel)
}

func (c *Compiler) compileWhile(e sexpr.Expr) {
	top := c.newLabel()
	bottom := c.newLabel()
	breakLabel := c.newLabel()
	c.BreakStack = append(c.BreakStack, breakLabel)
	c.emitLabel(top)
	c.compilePredicate(e.List[1], bottom)
	// A while body is never in tail position, even inside a
	// self-recursive tail call: looping back to `top` would have to
	// re-enter the loop's own GOTO, not jump to the function's entry.
	c.compileSequence(e.List[2:], false, e.Line)
	c.emit(isa.POP, 0)
	c.emitBranch(isa.GOTO, top)
	c.emitLabel(bottom)
	c.BreakStack = c.BreakStack[:len(c.BreakStack)-1]
	c.emitPushInt(0, e.Line)
	c.emitLabel(breakLabel)
}

func (c *Compiler) compileBreak(e sexpr.Expr) {
	if len(c.BreakStack) == 0 {
		fail("break outside of a loop at line %d", e.Line)
	}
	target := c.BreakStack[len(c.BreakStack)-1]
	if len(e.List) > 1 {
		c.compileExpression(e.List[1], false)
	} else {
		c.emitPushInt(0, e.Line)
	}
	c.emitBranch(isa.GOTO, target)
}

// compileLet binds each (name value) pair in turn, in the order
// written: the symbol is registered before its own initializer is
// compiled, matching original_source/compile.py's createLocalVariable
// placement (so, as upstream, a binding's own initializer resolves
// the new name rather than an outer one of the same name -- an
// admittedly surprising scoping quirk this code deliberately preserves
// rather than "fixing").
func (c *Compiler) compileLet(e sexpr.Expr, tail bool) {
	bindings := e.List[1].List
	c.enterScope()
	for _, b := range bindings {
		name := b.List[0].Text
		sym := &Symbol{Name: name, Kind: SymLocal}
		sym.Index = c.cur().allocateLocal()
		c.bindScope(name, sym)
		c.compileExpression(b.List[1], false)
		c.emit(isa.SETLOCAL, int32(sym.Index))
	}
	c.compileSequence(e.List[2:], tail, e.Line)
	c.exitScope()
}
