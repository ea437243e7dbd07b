package codegen

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/btree"
	"github.com/google/uuid"
	"github.com/launix-de/NonLockingReadMap"
	"github.com/launix-de/lispvmc/internal/isa"
	"github.com/launix-de/lispvmc/internal/sexpr"
)

// Result is a finished compilation: the hex program image (one 6-digit
// word per line, ready for -o program.hex) and the human-readable
// listing (ready for -o program.lst).
type Result struct {
	Hex     []string
	Listing string
}

// NewCompiler returns a Compiler with the two reserved global slots
// already registered: slot 0 is $heapstart, slot 1 is $closure (§3's
// data model). Both are marked initialized immediately since neither
// is ever "assigned" by user code -- they're VM conventions the
// compiler itself maintains.
func NewCompiler() *Compiler {
	c := &Compiler{
		Globals: NonLockingReadMap.New[Symbol, string](),
		Current: NoFunc,
	}
	heapstart := &Symbol{Name: "$heapstart", Kind: SymGlobal, Index: 0, Initialized: true}
	c.Globals.Set(heapstart)
	c.GlobalCount = 1
	closureSlot := &Symbol{Name: "$closure", Kind: SymGlobal, Index: 1, Initialized: true}
	c.Globals.Set(closureSlot)
	c.GlobalCount = 2
	return c
}

// Compile runs the whole code generation stage over a fully read,
// rewritten, macro-expanded, and optimized program and returns the
// finished image, or a *CodegenError describing the first failure.
func (c *Compiler) Compile(forms []sexpr.Expr) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(*CodegenError); ok {
				err = ce
			} else {
				err = &CodegenError{Msg: fmt.Sprintf("%v", r)}
			}
		}
	}()

	c.registerFunctions(forms)

	mainIdx := c.newFunction("main", NoFunc)
	if mainIdx != 0 {
		panic("internal error: main did not receive function index 0")
	}
	c.Current = mainIdx
	main := c.cur()
	main.EntryLabel = c.newLabel()
	c.emitLabel(main.EntryLabel)
	c.emitHeapstartPrologue()

	for _, f := range forms {
		if f.HeadSymbolIs("function") {
			if !isWellFormedFunction(f) {
				fail("malformed function definition at line %d", f.Line)
			}
			c.compileFunction(f)
			continue
		}
		c.compileExpression(f, false)
		c.emit(isa.POP, 0)
	}

	// After the top-level forms, the entry code calls the program's own
	// (function main ...) if it defines one.
	if userMain := c.Globals.Get("main"); userMain != nil && userMain.Kind == SymFunction {
		c.emitCallResolved(userMain, 0, 0)
		c.emit(isa.POP, 0)
	}

	forever := c.newLabel()
	c.emitLabel(forever)
	c.emitBranch(isa.GOTO, forever)

	for _, sym := range c.Globals.GetAll() {
		if sym.Kind == SymGlobal && !sym.Initialized {
			fail("global variable %s is never initialized", sym.Name)
		}
	}

	live := c.computeLiveFunctions(mainIdx)
	ordered := orderLive(live)

	base := 0
	for _, idx := range ordered {
		fn := c.Functions[idx]
		fn.Prologue = c.buildPrologue(fn)
		fn.BaseAddress = base
		base += len(fn.Prologue) + len(fn.Instructions)
	}
	for _, idx := range ordered {
		c.resolveFixups(c.Functions[idx])
	}

	main.Instructions[c.heapstartPatchIdx].Imm = int32(c.GlobalCount)

	result.Hex = c.emitHex(ordered)
	result.Listing = c.buildListing(ordered)
	return result, nil
}

// registerFunctions pre-declares every top-level named function as a
// SymFunction global before any code is compiled, so a forward
// reference anywhere in the program -- including from within another
// function defined earlier in the file -- resolves to the right kind
// immediately (§4.5.2's forward-reference rule).
func (c *Compiler) registerFunctions(forms []sexpr.Expr) {
	for _, f := range forms {
		if !f.HeadSymbolIs("function") {
			continue
		}
		if !isWellFormedFunction(f) {
			fail("malformed function definition at line %d", f.Line)
		}
		name := f.List[1].Text
		if c.Globals.Get(name) != nil {
			fail("redefinition of function %s at line %d", name, f.Line)
		}
		c.Globals.Set(&Symbol{Name: name, Kind: SymFunction, Func: NoFunc})
	}
}

// isWellFormedFunction reports whether f is a (function name (params...)
// body...) form with at least a name, a parameter list, and one body
// expression -- the same shape original_source/compile.py's compileFunction
// assumes (it reads expr[1], expr[2], expr[3] unconditionally). Both
// registerFunctions and Compile's dispatch loop must apply this same check,
// so a malformed form is always rejected before compileFunction ever runs,
// rather than registered-as-skipped here but compiled (and crashing on a nil
// global lookup) there.
func isWellFormedFunction(f sexpr.Expr) bool {
	return len(f.List) >= 4 && f.List[1].IsSymbol() && f.List[2].IsList()
}

// emitHeapstartPrologue emits the four instructions that write the
// final global count into $heapstart once it's known, exactly as
// original_source/compile.py's Compiler.compile does: the value is a
// placeholder patched at the very end (heapstartPatchIdx), and the
// address is the literal 0 that $heapstart is always allocated at, so
// no fixup is needed for it.
func (c *Compiler) emitHeapstartPrologue() {
	c.emitPushInt(0, 0)
	c.heapstartPatchIdx = len(c.cur().Instructions) - 1
	c.emitPushInt(0, 0)
	c.emit(isa.STORE, 0)
	c.emit(isa.POP, 0)
}

// buildPrologue computes a function's entry sequence: RESERVE for its
// frame, and -- if it captured any free variables -- the $closure
// unpacking loop described in §4.5.4, walking the envlist with
// alternating DUP/LOAD/SETLOCAL/REST and discarding the final nil tail.
func (c *Compiler) buildPrologue(fn *Function) []Instr {
	p := []Instr{{Op: isa.RESERVE, Imm: int32(fn.NumLocals + 1)}}
	if len(fn.FreeVars) == 0 {
		return p
	}
	p = append(p,
		Instr{Op: isa.PUSH, Imm: 1}, // $closure's global slot
		Instr{Op: isa.LOAD},
	)
	for _, fv := range fn.FreeVars {
		p = append(p,
			Instr{Op: isa.DUP},
			Instr{Op: isa.LOAD},
			Instr{Op: isa.SETLOCAL, Imm: int32(fv.Local.Index)},
			Instr{Op: isa.REST},
		)
	}
	p = append(p, Instr{Op: isa.POP})
	return p
}

// computeLiveFunctions performs the reachability pass of §4.5.6:
// starting from main, follow every direct function construction/call
// (ReferencedFuncs) and every referenced function symbol
// (ReferencedSyms, resolved to an index now that all functions have
// been compiled) transitively. A function reachable only through a
// chain of otherwise-dead functions never gets marked and is dropped.
func (c *Compiler) computeLiveFunctions(mainIdx FuncIndex) map[FuncIndex]bool {
	live := map[FuncIndex]bool{mainIdx: true}
	queue := []FuncIndex{mainIdx}
	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]
		fn := c.Functions[idx]
		neighbors := map[FuncIndex]bool{}
		for n := range fn.ReferencedFuncs {
			neighbors[n] = true
		}
		for _, sym := range fn.ReferencedSyms {
			if sym.Func != NoFunc {
				neighbors[sym.Func] = true
			}
		}
		for n := range neighbors {
			if !live[n] {
				live[n] = true
				queue = append(queue, n)
			}
		}
	}
	return live
}

// orderLive returns the live function indices in ascending order,
// which is also their original declaration order (main is always index
// 0 and so always sorts first). An ordered btree gives a deterministic
// traversal independent of Go's randomized map iteration, the same
// role storage/index.go's BTreeG plays for deterministic key order.
func orderLive(live map[FuncIndex]bool) []FuncIndex {
	bt := btree.NewG[int](8, func(a, b int) bool { return a < b })
	for idx := range live {
		bt.ReplaceOrInsert(int(idx))
	}
	ordered := make([]FuncIndex, 0, bt.Len())
	bt.Ascend(func(item int) bool {
		ordered = append(ordered, FuncIndex(item))
		return true
	})
	return ordered
}

// resolveFixups patches every deferred PUSH 0 / branch immediate in fn
// now that every live function's base address is known.
func (c *Compiler) resolveFixups(fn *Function) {
	for _, fx := range fn.Fixups {
		var addr int32
		switch fx.Kind {
		case fixupLabel:
			if !fx.Label.Defined {
				panic("internal error: branch to an undefined label")
			}
			addr = int32(fn.BaseAddress + len(fn.Prologue) + fx.Label.Offset)
		case fixupFunc:
			addr = int32(c.Functions[fx.Func].BaseAddress)
		case fixupSymbol:
			if fx.Sym.Kind == SymFunction {
				addr = int32(c.Functions[fx.Sym.Func].BaseAddress)
			} else {
				addr = int32(fx.Sym.Index)
			}
		}
		fn.Instructions[fx.InstrIndex].Imm = addr
	}
}

func (c *Compiler) emitHex(ordered []FuncIndex) []string {
	var hex []string
	for _, idx := range ordered {
		fn := c.Functions[idx]
		for _, instr := range fn.Prologue {
			hex = append(hex, fmt.Sprintf("%06x", isa.Encode(instr.Op, instr.Imm)))
		}
		for _, instr := range fn.Instructions {
			hex = append(hex, fmt.Sprintf("%06x", isa.Encode(instr.Op, instr.Imm)))
		}
	}
	return hex
}

func (c *Compiler) buildListing(ordered []FuncIndex) string {
	var b strings.Builder
	fmt.Fprintf(&b, "; build %s\n", newBuildID())
	b.WriteString("Globals:\n")
	for _, sym := range c.Globals.GetAll() {
		if sym.Kind == SymFunction {
			fmt.Fprintf(&b, "  %s\tfunction@%d\n", sym.Name, c.Functions[sym.Func].BaseAddress)
		} else {
			fmt.Fprintf(&b, "  %s\tvar@%d\n", sym.Name, sym.Index)
		}
	}
	for _, idx := range ordered {
		fn := c.Functions[idx]
		fmt.Fprintf(&b, "\nfunction %s @%d\n", fn.displayName(), fn.BaseAddress)
		addr := fn.BaseAddress
		for _, instr := range fn.Prologue {
			writeDisasm(&b, addr, instr)
			addr++
		}
		for _, instr := range fn.Instructions {
			writeDisasm(&b, addr, instr)
			addr++
		}
	}
	return b.String()
}

func writeDisasm(b *strings.Builder, addr int, instr Instr) {
	if isa.HasImmediate(instr.Op) {
		fmt.Fprintf(b, "%d\t%s %d\n", addr, isa.Mnemonic(instr.Op), instr.Imm)
	} else {
		fmt.Fprintf(b, "%d\t%s\n", addr, isa.Mnemonic(instr.Op))
	}
}

// newBuildID stamps a listing with a counter-seeded, non-cryptographic
// identifier, the same construction storage/fast_uuid.go uses to avoid
// a crypto/rand startup stall for a value with no security meaning.
var buildCounter uint64 = uint64(time.Now().UnixNano())

func newBuildID() string {
	ctr := atomic.AddUint64(&buildCounter, 1)
	now := uint64(time.Now().UnixNano())
	var b [16]byte
	binary.LittleEndian.PutUint64(b[0:8], ctr)
	binary.LittleEndian.PutUint64(b[8:16], ctr^now^(now<<17))
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return uuid.UUID(b).String()
}
