package codegen

import (
	"github.com/launix-de/lispvmc/internal/isa"
	"github.com/launix-de/lispvmc/internal/sexpr"
)

// newFunction allocates a fresh Function in the arena and returns its
// index. Main is always created first, at index 0, guaranteeing it the
// first base address once the live set is laid out.
func (c *Compiler) newFunction(name string, enclosing FuncIndex) FuncIndex {
	fn := &Function{
		Name:            name,
		Enclosing:       enclosing,
		Scopes:          []map[string]*Symbol{{}},
		ReferencedFuncs: map[FuncIndex]bool{},
	}
	idx := FuncIndex(len(c.Functions))
	fn.Idx = idx
	c.Functions = append(c.Functions, fn)
	return idx
}

// compileFunctionBody compiles params and body into a new Function and
// returns its index, leaving c.Current restored to the caller's
// function on return.
func (c *Compiler) compileFunctionBody(name string, params sexpr.Expr, body []sexpr.Expr, line int) FuncIndex {
	outer := c.Current
	idx := c.newFunction(name, outer)
	c.Current = idx
	fn := c.cur()

	fn.EntryLabel = c.newLabel()
	c.emitLabel(fn.EntryLabel)

	for i, p := range params.List {
		sym := &Symbol{Name: p.Text, Kind: SymLocal, Index: i + 1}
		fn.Scopes[0][p.Text] = sym
	}
	fn.NumParams = len(params.List)

	label := name
	if label == "" {
		label = "<anonymous>"
	}
	c.traceFunction(label, func() {
		c.compileSequence(body, true, line)
	})
	c.emit(isa.RETURN, 0)

	c.Current = outer
	return idx
}

// compileFunction compiles a top-level named (function name (params)
// body...) form. The symbol was already registered by registerFunctions
// before any compilation began, so forward references anywhere in the
// program already resolved to a SymFunction; this just fills in the
// function index once it exists.
func (c *Compiler) compileFunction(e sexpr.Expr) {
	name := e.List[1].Text
	params := e.List[2]
	body := e.List[3:]
	idx := c.compileFunctionBody(name, params, body, e.Line)
	sym := c.Globals.Get(name)
	sym.Func = idx
	sym.Initialized = true
}

// compileAnonymousFunction compiles a (function (params) body...)
// literal appearing as an expression, leaving a tagged function or
// closure value on the stack. A nested (function name (params) body...)
// form compiles the same way; the name only labels the function in the
// listing and its self tail calls, and is not bound as a symbol. The tag is pushed before the payload is
// built so that building a cons pair in between (for the closure case)
// never has to reorder what's already on the stack below it --
// matching the push-tag-first-then-value order
// original_source/compile.py uses for the tag-only case, generalized
// to cover closures since the original has none.
func (c *Compiler) compileAnonymousFunction(e sexpr.Expr) {
	name := ""
	params := e.List[1]
	body := e.List[2:]
	if params.IsSymbol() && len(e.List) > 2 {
		name = params.Text
		params = e.List[2]
		body = e.List[3:]
	}
	idx := c.compileFunctionBody(name, params, body, e.Line)
	fn := c.Functions[idx]
	c.cur().ReferencedFuncs[idx] = true

	if len(fn.FreeVars) == 0 {
		c.emitPushInt(int64(isa.TagFunction), e.Line)
		c.emitPushFuncAddr(idx, e.Line)
		c.emit(isa.SETTAG, 0)
		return
	}

	c.emitPushInt(int64(isa.TagClosure), e.Line)
	c.emitFreeVarEnvList(fn.FreeVars, e.Line)
	c.emitPushFuncAddr(idx, e.Line)
	c.emitConsCall(e.Line)
	c.emit(isa.SETTAG, 0)
}

// emitFreeVarEnvList builds the linked list of captured values: a
// chain of cons cells over each free variable's closure_source slot in
// the *enclosing* function, right to left, terminated by 0. Index 0 of
// freeVars ends up as the list's car.
func (c *Compiler) emitFreeVarEnvList(freeVars []*FreeVar, line int) {
	if len(freeVars) == 0 {
		c.emitPushInt(0, line)
		return
	}
	c.emitFreeVarEnvListFrom(freeVars, 0, line)
}

func (c *Compiler) emitFreeVarEnvListFrom(freeVars []*FreeVar, idx int, line int) {
	if idx == len(freeVars)-1 {
		c.emitPushInt(0, line)
	} else {
		c.emitFreeVarEnvListFrom(freeVars, idx+1, line)
	}
	c.emit(isa.GETLOCAL, int32(freeVars[idx].ClosureSource.Index))
	c.emitConsCall(line)
}
