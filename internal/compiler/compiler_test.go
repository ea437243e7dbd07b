package compiler

import (
	"os"
	"strings"
	"testing"
)

// stub is a minimal runtime.lisp substitute: just enough for the
// primitives these test programs call (§6's runtime contract), since
// there is no virtual machine in this module to execute the real
// program.hex against -- these tests exercise the pipeline, not the
// simulator.
const stub = `
(function cons (a b) (settag a 1))
(function printdec (n) (store 32767 n))
(function * (a b) (let ((r 0)) (while (> b 0) (assign r (+ r a)) (assign b (- b 1))) r))
`

func compileOK(t *testing.T, src string) Result {
	t.Helper()
	result, err := Compile([]Source{
		{Name: "runtime.lisp", Text: stub},
		{Name: "test.lisp", Text: src},
	})
	if err != nil {
		t.Fatalf("Compile(%q) failed: %v", src, err)
	}
	return result
}

func TestPipelineWiresAllFiveStages(t *testing.T) {
	// Exercises rewrite (cadr), macro expansion (defmacro), optimizer
	// (constant fold of (+ 2 3)), and code generation together.
	r := compileOK(t, `
		(defmacro when (c b) ` + "`" + `(if ,c ,b 0)) ` + `
		(function main ()
			(let ((pair (list 1 (+ 2 3))))
				(when (= (first pair) 1) (printdec (cadr pair)))))
	`)
	if len(r.Hex) == 0 {
		t.Fatal("expected nonempty hex output")
	}
	for _, line := range r.Hex {
		if len(line) != 6 {
			t.Errorf("hex line %q is not 6 hex digits", line)
		}
	}
}

func TestFibonacciCompiles(t *testing.T) {
	r := compileOK(t, `
		(function f (n) (if (= n 0) 1 (* n (f (- n 1)))))
		(function main () (printdec (f 5)))
	`)
	if !strings.Contains(r.Listing, "function f") {
		t.Errorf("listing missing function f:\n%s", r.Listing)
	}
}

func TestClosureAdderCompiles(t *testing.T) {
	r := compileOK(t, `
		(function main ()
			(let ((adder (function (n) (function (x) (+ x n)))))
				(printdec ((adder 3) 4))))
	`)
	if len(r.Hex) == 0 {
		t.Fatal("expected nonempty hex output")
	}
}

func TestWhileLoopAccumulator(t *testing.T) {
	r := compileOK(t, `
		(function main ()
			(let ((i 0) (s 0))
				(while (< i 10)
					(assign s (+ s i))
					(assign i (+ i 1)))
				(printdec s)))
	`)
	if len(r.Hex) == 0 {
		t.Fatal("expected nonempty hex output")
	}
}

func TestReaderErrorBecomesCompileError(t *testing.T) {
	_, err := Compile([]Source{
		{Name: "runtime.lisp", Text: stub},
		{Name: "broken.lisp", Text: "(+ 1 2"},
	})
	if err == nil {
		t.Fatal("expected a compile error for an unmatched (")
	}
	if _, ok := err.(*CompileError); !ok {
		t.Fatalf("expected *CompileError, got %T", err)
	}
}

func TestRedefinitionOfFunctionFails(t *testing.T) {
	_, err := Compile([]Source{
		{Name: "runtime.lisp", Text: stub},
		{Name: "dup.lisp", Text: `
			(function f (x) x)
			(function f (x) (+ x 1))
			(function main () (f 1))
		`},
	})
	if err == nil {
		t.Fatal("expected an error redefining function f")
	}
}

func TestMacroArityMismatchWarnsButCompiles(t *testing.T) {
	// §4.3: a mismatched argument count emits a warning but proceeds
	// using zip-style truncation, rather than failing the build.
	_, err := Compile([]Source{
		{Name: "runtime.lisp", Text: stub},
		{Name: "warn.lisp", Text: `
			(defmacro double (x) (+ x x))
			(function main () (printdec (double 3 4)))
		`},
	})
	if err != nil {
		t.Fatalf("macro arity mismatch should warn, not fail: %v", err)
	}
}

// TestGoldenClosureFixture compiles the checked-in testdata/closures.lisp
// fixture (closure capture, tail recursion, and one dead function
// together) and checks the invariants a human reviewing the .lst by eye
// would check: the dead function is gone and the live ones aren't.
func TestGoldenClosureFixture(t *testing.T) {
	src, err := os.ReadFile("testdata/closures.lisp")
	if err != nil {
		t.Fatalf("reading fixture: %v", err)
	}
	r := compileOK(t, string(src))

	if strings.Contains(r.Listing, "function unused ") {
		t.Errorf("dead function `unused` survived elimination:\n%s", r.Listing)
	}
	for _, name := range []string{"make-adder", "sum-to", "main"} {
		if !strings.Contains(r.Listing, "function "+name+" ") {
			t.Errorf("expected function %q in listing:\n%s", name, r.Listing)
		}
	}
}

func TestDeterministicAcrossFullPipeline(t *testing.T) {
	src := `(function f (n) (if (= n 0) 1 (* n (f (- n 1))))) (function main () (printdec (f 6)))`
	a := compileOK(t, src)
	b := compileOK(t, src)
	if strings.Join(a.Hex, "\n") != strings.Join(b.Hex, "\n") {
		t.Error("identical sources across two compiles produced different hex")
	}
}
