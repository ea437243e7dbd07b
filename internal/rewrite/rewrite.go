// Package rewrite expands the c[ad]+r accessor shorthand (cadr, cddr,
// caddr, ...) into chains of first/rest calls, before macro expansion
// ever sees the program.
package rewrite

import (
	"regexp"

	"github.com/launix-de/lispvmc/internal/sexpr"
)

var cadrPattern = regexp.MustCompile(`^c[ad]+r$`)

// Rewrite recursively expands every c[ad]+r call in e. quote-headed
// forms are left untouched, matching the optimizer's own treatment of
// quote as opaque.
func Rewrite(e sexpr.Expr) sexpr.Expr {
	if !e.IsList() {
		return e
	}
	if e.HeadSymbolIs("quote") {
		return e
	}
	if h, ok := e.Head(); ok && h.IsSymbol() && len(e.List) == 2 && cadrPattern.MatchString(h.Text) {
		arg := Rewrite(e.List[1])
		letters := h.Text[1 : len(h.Text)-1]
		cur := arg
		// innermost (rightmost letter) to outermost (leftmost letter)
		for i := len(letters) - 1; i >= 0; i-- {
			fn := "rest"
			if letters[i] == 'a' {
				fn = "first"
			}
			cur = sexpr.List([]sexpr.Expr{sexpr.Symbol(fn, h.Line), cur}, h.Line)
		}
		return cur
	}
	out := make([]sexpr.Expr, len(e.List))
	for i, x := range e.List {
		out[i] = Rewrite(x)
	}
	return sexpr.List(out, e.Line)
}

// Program rewrites every top-level form.
func Program(forms []sexpr.Expr) []sexpr.Expr {
	out := make([]sexpr.Expr, len(forms))
	for i, f := range forms {
		out[i] = Rewrite(f)
	}
	return out
}
