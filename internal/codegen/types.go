// Package codegen implements the final compiler stage (§4.5): lexical
// scope resolution, closure conversion, tail-call optimization, and
// code generation down to the 24-bit instruction words from §6.
//
// The bookkeeping shape (Symbol/Label/Function/Compiler, fixups
// resolved once every base address is known) is grounded almost
// line-for-line on original_source/compile.py's Compiler class, since
// scm/jit.go is the teacher's closest analogue (its own fixup/patch
// idiom for forward references) but compiles a different language
// entirely. Closure conversion and tail-call rebinding have no
// original-code precedent: the original raises on any free variable
// reference into an enclosing function, so that part follows spec
// §4.5.4/§4.5.5 prose directly, styled after the original's fixup
// machinery.
package codegen

import (
	"github.com/launix-de/NonLockingReadMap"
	"github.com/launix-de/lispvmc/internal/isa"
)

// SymbolKind distinguishes the three binding kinds a name can resolve
// to (§3's data model).
type SymbolKind uint8

const (
	SymLocal SymbolKind = iota
	SymGlobal
	SymFunction
)

// FuncIndex is a stable arena index into Compiler.Functions. Functions
// and Symbols reference each other by index rather than by Go pointer,
// so the function/symbol graph never forms a pointer cycle for the
// garbage collector to walk.
type FuncIndex int

// NoFunc marks the absence of an enclosing function (the top-level
// main function) or an unresolved forward reference.
const NoFunc FuncIndex = -1

// Symbol is a named binding: a function parameter or let-local, a
// global variable slot, or a top-level function.
type Symbol struct {
	Name        string
	Kind        SymbolKind
	Index       int     // local frame slot (params positive, lets negative) or global slot number
	Func        FuncIndex // valid when Kind == SymFunction
	Initialized bool      // has this global ever been assigned or defined?

	// ClosureSource is set on a shadow local created to thread a free
	// variable into an intermediate enclosing function: it names the
	// binding in that function's enclosing scope the value was copied
	// from. nil for an ordinary parameter, let-local, or global.
	ClosureSource *Symbol
}

// GetKey and ComputeSize satisfy NonLockingReadMap.KeyGetter[string]
// with value receivers, so the bare Symbol type (not *Symbol) can
// instantiate NonLockingReadMap[Symbol, string] directly.
func (s Symbol) GetKey() string   { return s.Name }
func (s Symbol) ComputeSize() uint { return uint(48 + len(s.Name)) }

// Label marks a not-yet-known offset within a function's own
// instruction stream (a branch target). Offset is filled in once the
// labeled instruction is actually emitted.
type Label struct {
	Defined bool
	Offset  int // index into Function.Instructions, before the prologue is prepended
}

// fixupKind distinguishes what a deferred PUSH 0 placeholder resolves
// against once layout is complete.
type fixupKind uint8

const (
	fixupLabel fixupKind = iota
	fixupFunc
	fixupSymbol
)

// Fixup records a single PUSH 0 (or branch) instruction whose
// immediate must be patched once addresses are known: either a label
// within the same function, a function's base address, or a global
// slot / function symbol resolved at link time.
type Fixup struct {
	InstrIndex int // index into Function.Instructions
	Kind       fixupKind
	Label      *Label
	Func       FuncIndex
	Sym        *Symbol
}

// Instr is one not-yet-encoded instruction: an opcode plus its signed
// immediate (meaningful only for the opcodes isa.HasImmediate reports).
type Instr struct {
	Op  isa.Opcode
	Imm int32
}

// FreeVar records one free variable threaded into a function: Local is
// the shadow local symbol in this function's own frame (the function
// that owns the binding has no FreeVar for it), and ClosureSource is the
// binding it was captured from in the immediately enclosing function.
type FreeVar struct {
	Name          string
	Local         *Symbol
	ClosureSource *Symbol
}

// Function is one compiled procedure: its instruction stream (not yet
// including the prologue, which is only computable once NumLocals and
// FreeVars are final), its lexical scope stack during compilation, and
// the bookkeeping needed to lay it out and patch its fixups.
type Function struct {
	Name      string // empty for an anonymous (function (params...) ...) literal
	Idx       FuncIndex
	Enclosing FuncIndex

	NumParams int
	NumLocals int // count of let-allocated locals so far; allocateLocal increments this first, then returns -(NumLocals+1)

	Scopes []map[string]*Symbol // stack of lexical scopes, innermost last; Scopes[0] is the function's own frame
	Instructions []Instr
	Prologue     []Instr // computed once layout begins (layout.go)
	Fixups       []Fixup
	EntryLabel   *Label // offset 0 of Instructions; the target of a self tail-call

	FreeVars        []*FreeVar // in envlist order: FreeVars[0] is the list's car
	ReferencedFuncs map[FuncIndex]bool // functions whose construction/direct call this function's code embeds
	ReferencedSyms  []*Symbol          // function-kind symbols referenced by name (resolved to FuncIndex once known)

	BaseAddress int
}

func (f *Function) allocateLocal() int {
	f.NumLocals++
	return -(f.NumLocals + 1)
}

func (f *Function) findInScopes(name string) *Symbol {
	for i := len(f.Scopes) - 1; i >= 0; i-- {
		if sym, ok := f.Scopes[i][name]; ok {
			return sym
		}
	}
	return nil
}

func (f *Function) displayName() string {
	if f.Name != "" {
		return f.Name
	}
	return "<anonymous>"
}

// Compiler holds the whole-program state threaded through every stage
// of code generation: the function arena, the global symbol table, and
// the break-target stack for nested while loops.
type Compiler struct {
	Functions []*Function
	Current   FuncIndex

	Globals     NonLockingReadMap.NonLockingReadMap[Symbol, string]
	GlobalCount int

	BreakStack []*Label

	heapstartPatchIdx int

	// Trace, when non-nil, records how long compilation spent in each
	// function body (-trace in cmd/lvmc). nil by default so tracing
	// never changes behavior or imposes overhead.
	Trace *BuildTrace
}

func (c *Compiler) cur() *Function {
	return c.Functions[c.Current]
}
