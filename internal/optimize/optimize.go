// Package optimize implements the constant-folding, short-circuit, and
// strength-reduction optimizer (§4.4). scm/optimizer.go is an explicit
// stub in the teacher ("while the optimiser is being ported"), so this
// package is grounded directly on original_source/compile.py's
// foldConstants instead.
package optimize

import (
	"github.com/launix-de/lispvmc/internal/binop"
	"github.com/launix-de/lispvmc/internal/sexpr"
)

// Fold applies constant folding, and/or short-circuiting,
// constant-conditional pruning, and strength reduction bottom-up across
// e. quote-headed forms are opaque and returned unchanged.
func Fold(e sexpr.Expr) sexpr.Expr {
	if !e.IsList() || len(e.List) == 0 {
		return e
	}
	if e.HeadSymbolIs("quote") {
		return e
	}

	head := e.List[0]
	args := make([]sexpr.Expr, len(e.List)-1)
	for i, sub := range e.List[1:] {
		args[i] = Fold(sub)
	}

	if head.IsSymbol() {
		switch head.Text {
		case "and":
			return foldAnd(e.Line, args)
		case "or":
			return foldOr(e.Line, args)
		case "if":
			if len(args) >= 2 && args[0].Kind == sexpr.KindInt {
				if args[0].Int != 0 {
					return args[1]
				}
				if len(args) > 2 {
					return args[2]
				}
				return sexpr.Int(0, e.Line)
			}
		}

		if fn, ok := binop.Binary(head.Text); ok && len(args) == 2 &&
			args[0].Kind == sexpr.KindInt && args[1].Kind == sexpr.KindInt {
			return sexpr.Int(binop.Truncate16(fn(args[0].Int, args[1].Int)), e.Line)
		}
		if fn, ok := binop.Unary(head.Text); ok && len(args) == 1 && args[0].Kind == sexpr.KindInt {
			return sexpr.Int(binop.Truncate16(fn(args[0].Int)), e.Line)
		}

		if (head.Text == "*" || head.Text == "/") && len(args) == 2 &&
			args[1].Kind == sexpr.KindInt {
			if shift, ok := log2PowerOfTwo(args[1].Int); ok {
				op := "lshift"
				if head.Text == "/" {
					op = "rshift"
				}
				return sexpr.List([]sexpr.Expr{
					sexpr.Symbol(op, e.Line),
					args[0],
					sexpr.Int(int64(shift), e.Line),
				}, e.Line)
			}
		}
	}

	out := make([]sexpr.Expr, 0, len(args)+1)
	out = append(out, head)
	out = append(out, args...)
	return sexpr.List(out, e.Line)
}

// Program folds every top-level form.
func Program(forms []sexpr.Expr) []sexpr.Expr {
	out := make([]sexpr.Expr, len(forms))
	for i, f := range forms {
		out[i] = Fold(f)
	}
	return out
}

func foldAnd(line int, args []sexpr.Expr) sexpr.Expr {
	allConst := true
	for _, a := range args {
		if a.Kind != sexpr.KindInt {
			allConst = false
			continue
		}
		if a.Int == 0 {
			return sexpr.Int(0, line)
		}
	}
	if allConst {
		return sexpr.Int(1, line)
	}
	return rebuild("and", line, args)
}

func foldOr(line int, args []sexpr.Expr) sexpr.Expr {
	allConst := true
	for _, a := range args {
		if a.Kind != sexpr.KindInt {
			allConst = false
			continue
		}
		if a.Int != 0 {
			return sexpr.Int(1, line)
		}
	}
	if allConst {
		return sexpr.Int(0, line)
	}
	return rebuild("or", line, args)
}

func rebuild(head string, line int, args []sexpr.Expr) sexpr.Expr {
	out := make([]sexpr.Expr, 0, len(args)+1)
	out = append(out, sexpr.Symbol(head, line))
	out = append(out, args...)
	return sexpr.List(out, line)
}

// log2PowerOfTwo reports whether n is a power of two strictly greater
// than 1's trivial case handling: n must be positive. (* x 1) is a
// power of two (2^0) but is deliberately NOT rewritten as a shift by
// zero per Testable Property 4 — a shift by 0 is a no-op rewrite that
// adds nothing, so it is excluded here.
func log2PowerOfTwo(n int64) (int, bool) {
	if n <= 1 {
		return 0, false
	}
	if n&(n-1) != 0 {
		return 0, false
	}
	shift := 0
	for v := n; v > 1; v >>= 1 {
		shift++
	}
	return shift, true
}
