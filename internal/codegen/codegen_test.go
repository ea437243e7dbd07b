package codegen

import (
	"strings"
	"testing"

	"github.com/launix-de/lispvmc/internal/isa"
	"github.com/launix-de/lispvmc/internal/sexpr"
)

func compileSrc(t *testing.T, src string) Result {
	t.Helper()
	forms := sexpr.Read("test", src)
	c := NewCompiler()
	result, err := c.Compile(forms)
	if err != nil {
		t.Fatalf("Compile(%q) failed: %v", src, err)
	}
	return result
}

func mustErr(t *testing.T, src string) error {
	t.Helper()
	forms := sexpr.Read("test", src)
	c := NewCompiler()
	_, err := c.Compile(forms)
	if err == nil {
		t.Fatalf("Compile(%q) succeeded, want error", src)
	}
	return err
}

// Testable Property 5: dead-code elimination.
func TestDeadFunctionEliminated(t *testing.T) {
	r := compileSrc(t, `
		(function used (x) (+ x 1))
		(function dead (x) (+ x 2))
		(function main () (used 1))
	`)
	if strings.Contains(r.Listing, "function dead") {
		t.Errorf("dead function present in listing:\n%s", r.Listing)
	}
	if !strings.Contains(r.Listing, "function used") {
		t.Errorf("used function missing from listing:\n%s", r.Listing)
	}
}

func TestTransitiveDeadChainEliminated(t *testing.T) {
	r := compileSrc(t, `
		(function c (x) (+ x 1))
		(function b (x) (c x))
		(function a (x) (b x))
		(function main () 1)
	`)
	for _, name := range []string{"function a ", "function b ", "function c "} {
		if strings.Contains(r.Listing, name) {
			t.Errorf("%q reachable only through a dead chain still present:\n%s", name, r.Listing)
		}
	}
}

func TestTransitivelyReferencedFunctionsSurvive(t *testing.T) {
	r := compileSrc(t, `
		(function c (x) (+ x 1))
		(function b (x) (c x))
		(function a (x) (b x))
		(function main () (a 1))
	`)
	for _, name := range []string{"function a ", "function b ", "function c "} {
		if !strings.Contains(r.Listing, name) {
			t.Errorf("transitively reachable function %q missing:\n%s", name, r.Listing)
		}
	}
}

// Testable Property 6: forward reference resolution.
func TestForwardReferenceCompiles(t *testing.T) {
	forward := compileSrc(t, `
		(function main () (g 1))
		(function g (x) (+ x 1))
	`)
	backward := compileSrc(t, `
		(function g (x) (+ x 1))
		(function main () (g 1))
	`)
	if len(forward.Hex) != len(backward.Hex) {
		t.Errorf("forward/backward declarations produced different instruction counts: %d vs %d",
			len(forward.Hex), len(backward.Hex))
	}
}

// mulStub defines *, which the runtime library provides: the VM has no
// multiply opcode, so (* a b) compiles to an ordinary function call.
const mulStub = `(function * (a b) (let ((r 0)) (while (> b 0) (assign r (+ r a)) (assign b (- b 1))) r))`

// consStub defines cons, which closure construction calls.
const consStub = `(function cons (a b) (settag a 1))`

// Testable Property 9: deterministic output.
func TestDeterministicOutput(t *testing.T) {
	src := mulStub + ` (function f (n) (if (= n 0) 1 (* n (f (- n 1))))) (function main () (f 5))`
	a := compileSrc(t, src)
	b := compileSrc(t, src)
	if strings.Join(a.Hex, "\n") != strings.Join(b.Hex, "\n") {
		t.Errorf("identical input produced different hex output")
	}
}

// Testable Property 7: closure capture depth.
func TestClosureCaptureDepthSharesShadowChain(t *testing.T) {
	src := consStub + ` (function a (x) (function b (y) (function c (z) (+ x z))))`
	forms := sexpr.Read("test", src)
	c := NewCompiler()
	if _, err := c.Compile(forms); err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	var fnA, fnB, fnC *Function
	for _, fn := range c.Functions {
		switch fn.Name {
		case "a":
			fnA = fn
		case "b":
			fnB = fn
		case "c":
			fnC = fn
		}
	}
	if fnA == nil || fnB == nil || fnC == nil {
		t.Fatalf("expected functions a, b, c; got %d functions", len(c.Functions))
	}
	if len(fnC.FreeVars) != 1 {
		t.Fatalf("c should capture exactly one free variable, got %d", len(fnC.FreeVars))
	}
	if len(fnB.FreeVars) != 1 {
		t.Fatalf("b should have gained exactly one shadow local for x, got %d", len(fnB.FreeVars))
	}
	// c's capture source must be b's shadow, and b's capture source must
	// be a's actual parameter x -- i.e. the chain terminates at a real
	// local of the outermost enclosing function, not at a global.
	if fnC.FreeVars[0].ClosureSource != fnB.FreeVars[0].Local {
		t.Errorf("c's free variable should chain through b's shadow local")
	}
	if fnB.FreeVars[0].ClosureSource.Name != "x" || fnB.FreeVars[0].ClosureSource.Kind != SymLocal {
		t.Errorf("b's free variable should chain to a's local parameter x")
	}
}

// Testable Property 8: tail-call elimination.
func TestSelfTailCallEmitsNoCall(t *testing.T) {
	r := compileSrc(t, `
		(function loop (n acc)
			(if (= n 0) acc (loop (- n 1) (+ acc n))))
		(function main () (loop 10 0))
	`)
	if !strings.Contains(r.Listing, "function loop") {
		t.Fatalf("loop function missing from listing:\n%s", r.Listing)
	}
	loopSection := sectionFor(r.Listing, "loop")
	if strings.Contains(loopSection, "call") {
		t.Errorf("self tail call emitted a call instruction:\n%s", loopSection)
	}
	if !strings.Contains(loopSection, "setlocal") {
		t.Errorf("self tail call should rebind parameters via setlocal:\n%s", loopSection)
	}
}

func TestNonTailSelfCallEmitsCall(t *testing.T) {
	r := compileSrc(t, mulStub+` (function f (n) (if (= n 0) 1 (* n (f (- n 1))))) (function main () (f 5))`)
	fSection := sectionFor(r.Listing, "f")
	if !strings.Contains(fSection, "call") {
		t.Errorf("non-tail self-recursive call should emit call:\n%s", fSection)
	}
}

func sectionFor(listing, fname string) string {
	marker := "function " + fname + " "
	idx := strings.Index(listing, marker)
	if idx < 0 {
		return ""
	}
	rest := listing[idx:]
	if next := strings.Index(rest[len(marker):], "\nfunction "); next >= 0 {
		return rest[:len(marker)+next]
	}
	return rest
}

func TestUninitializedGlobalFails(t *testing.T) {
	mustErr(t, `(function main () (printdec unseen))`)
}

func TestBreakOutsideLoopFails(t *testing.T) {
	mustErr(t, `(function main () (break 1))`)
}

func TestCallingIntegerFails(t *testing.T) {
	mustErr(t, `(function main () (1 2 3))`)
}

// A bodyless (function name (params)) form is malformed rather than
// silently compiled: registerFunctions and the top-level dispatch loop
// must agree on that, or one registers it while the other tries to
// compile it and dereferences a never-registered global symbol.
func TestBodylessFunctionFails(t *testing.T) {
	mustErr(t, `(function f ()) (function main () (f))`)
}

func TestHeapstartPatchedToGlobalCount(t *testing.T) {
	r := compileSrc(t, `(function main () (assign somevar 1))`)
	// Hex[0] is main's one-instruction RESERVE prologue; the heapstart
	// PUSH is the instruction right after it. Decode it back.
	first := r.Hex[1]
	var word uint32
	_, err := scanHex(first, &word)
	if err != nil {
		t.Fatalf("bad hex line %q: %v", first, err)
	}
	op, imm := isa.Decode(isa.Word(word))
	if op != isa.PUSH {
		t.Fatalf("expected first instruction to be PUSH, got opcode %d", op)
	}
	if imm < 2 {
		t.Errorf("expected heapstart patch >= 2 (heapstart+closure slots), got %d", imm)
	}
}

func scanHex(s string, out *uint32) (int, error) {
	var v uint32
	for _, r := range s {
		v <<= 4
		switch {
		case r >= '0' && r <= '9':
			v |= uint32(r - '0')
		case r >= 'a' && r <= 'f':
			v |= uint32(r-'a') + 10
		default:
			return 0, errInvalidHex
		}
	}
	*out = v
	return len(s), nil
}

var errInvalidHex = &hexError{}

type hexError struct{}

func (*hexError) Error() string { return "invalid hex digit" }
