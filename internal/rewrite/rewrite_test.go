package rewrite

import (
	"testing"

	"github.com/launix-de/lispvmc/internal/sexpr"
)

func expand(t *testing.T, in, want string) {
	t.Helper()
	forms := sexpr.Read("test", in)
	if len(forms) != 1 {
		t.Fatalf("expected 1 form, got %d", len(forms))
	}
	got := sexpr.String(Rewrite(forms[0]))
	if got != want {
		t.Errorf("Rewrite(%q) = %s, want %s", in, got, want)
	}
}

func TestCadr(t *testing.T) {
	expand(t, "(cadr x)", "(first (rest x))")
}

func TestCddr(t *testing.T) {
	expand(t, "(cddr x)", "(rest (rest x))")
}

func TestCaddr(t *testing.T) {
	expand(t, "(caddr x)", "(first (rest (rest x)))")
}

func TestQuoteUntouched(t *testing.T) {
	expand(t, "(quote (cadr x))", "(quote (cadr x))")
}

func TestNestedRewrite(t *testing.T) {
	expand(t, "(list (cadr x) (cddr y))", "(list (first (rest x)) (rest (rest y)))")
}
