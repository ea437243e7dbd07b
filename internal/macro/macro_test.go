package macro

import (
	"testing"

	"github.com/launix-de/lispvmc/internal/sexpr"
)

func TestSimpleMacro(t *testing.T) {
	program := sexpr.Read("test", "(defmacro when (c b) `(if ,c ,b 0)) (when (= 1 1) (printdec 42))")
	ex := NewExpander()
	out := ex.PreProcess(program)
	if len(out) != 1 {
		t.Fatalf("expected 1 expanded form, got %d", len(out))
	}
	got := sexpr.String(out[0])
	want := "(if (= 1 1) (printdec 42) 0)"
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestMacroRecursion(t *testing.T) {
	program := sexpr.Read("test", "(defmacro double (x) (+ x x)) (double 5)")
	ex := NewExpander()
	out := ex.PreProcess(program)
	if sexpr.String(out[0]) != "10" {
		t.Errorf("got %s, want 10", sexpr.String(out[0]))
	}
}

func TestNoDefmacroLeaksThrough(t *testing.T) {
	program := sexpr.Read("test", "(defmacro id (x) x) (id 1) (id 2)")
	ex := NewExpander()
	out := ex.PreProcess(program)
	if len(out) != 2 {
		t.Fatalf("expected defmacro to be consumed, got %d forms", len(out))
	}
}
