// Package macro implements the macro expander: a minimal tree-walking
// interpreter that evaluates macro bodies at expansion time, grounded on
// original_source/compile.py's MacroProcessor and shaped after
// scm/scm.go's small Eval/Env interpreter.
package macro

import (
	"fmt"
	"maps"

	"github.com/launix-de/lispvmc/internal/binop"
	"github.com/launix-de/lispvmc/internal/sexpr"
)

// Macro is a recorded (defmacro name (params...) body) definition.
type Macro struct {
	Params []string
	Body   sexpr.Expr
}

// Expander holds the name -> Macro table accumulated from defmacro
// forms and exposes the expansion entry point.
type Expander struct {
	Macros map[string]Macro
}

func NewExpander() *Expander {
	return &Expander{Macros: make(map[string]Macro)}
}

// PreProcess consumes defmacro forms (recording them, never emitting
// them) and bottom-up expands every remaining top-level form. The
// returned program contains no defmacro forms and no unquote/backquote
// outside what a macro explicitly left in place.
func (ex *Expander) PreProcess(program []sexpr.Expr) []sexpr.Expr {
	out := make([]sexpr.Expr, 0, len(program))
	for _, stmt := range program {
		if stmt.HeadSymbolIs("defmacro") {
			ex.define(stmt)
			continue
		}
		out = append(out, ex.expandRecursive(stmt))
	}
	return out
}

func (ex *Expander) define(stmt sexpr.Expr) {
	if len(stmt.List) != 4 {
		panic(fmt.Sprintf("macro error: malformed defmacro at line %d", stmt.Line))
	}
	name := stmt.List[1]
	paramsForm := stmt.List[2]
	if !name.IsSymbol() || !paramsForm.IsList() {
		panic(fmt.Sprintf("macro error: malformed defmacro at line %d", stmt.Line))
	}
	params := make([]string, len(paramsForm.List))
	for i, p := range paramsForm.List {
		params[i] = p.Text
	}
	ex.Macros[name.Text] = Macro{Params: params, Body: stmt.List[3]}
}

// expandRecursive walks statement bottom-up, replacing every call to a
// known macro name with the result of evaluating its body bound to the
// (recursively pre-expanded) call arguments.
func (ex *Expander) expandRecursive(stmt sexpr.Expr) sexpr.Expr {
	if !stmt.IsList() || len(stmt.List) == 0 {
		return stmt
	}
	head := stmt.List[0]
	if head.IsSymbol() {
		if m, found := ex.Macros[head.Text]; found {
			args := stmt.List[1:]
			if len(m.Params) != len(args) {
				fmt.Printf("warning: macro expansion of %s has the wrong number of arguments\n", head.Text)
				fmt.Printf("expected %d got %d:\n", len(m.Params), len(args))
				for _, a := range args {
					fmt.Println(sexpr.String(a))
				}
			}
			env := make(map[string]sexpr.Expr)
			n := len(m.Params)
			if len(args) < n {
				n = len(args)
			}
			for i := 0; i < n; i++ {
				env[m.Params[i]] = ex.expandRecursive(args[i])
			}
			return ex.eval(m.Body, env)
		}
	}
	out := make([]sexpr.Expr, len(stmt.List))
	for i, term := range stmt.List {
		out[i] = ex.expandRecursive(term)
	}
	return sexpr.List(out, stmt.Line)
}

// eval is the macro-time evaluator (§4.3). It is a plain tree-walker,
// never JIT-compiled or memoized: macro bodies are small and run once
// per expansion site.
func (ex *Expander) eval(expr sexpr.Expr, env map[string]sexpr.Expr) sexpr.Expr {
	switch expr.Kind {
	case sexpr.KindInt:
		return expr
	case sexpr.KindString:
		return expr
	case sexpr.KindSymbol:
		v, ok := env[expr.Text]
		if !ok {
			panic(fmt.Sprintf("macro error: undefined variable %q during expansion", expr.Text))
		}
		return v
	case sexpr.KindList:
		if len(expr.List) == 0 {
			return expr
		}
	}

	head := expr.List[0]
	if !head.IsSymbol() {
		panic(fmt.Sprintf("macro error: bad function call during macro expansion at line %d", expr.Line))
	}
	switch head.Text {
	case "first":
		v := ex.eval(expr.List[1], env)
		if !v.IsList() || len(v.List) == 0 {
			panic("macro error: (first) of an empty list")
		}
		return v.List[0]
	case "rest":
		v := ex.eval(expr.List[1], env)
		if !v.IsList() || len(v.List) == 0 {
			panic("macro error: (rest) of an empty list")
		}
		return sexpr.List(v.List[1:], v.Line)
	case "if":
		cond := ex.eval(expr.List[1], env)
		if truthy(cond) {
			return ex.eval(expr.List[2], env)
		} else if len(expr.List) > 3 {
			return ex.eval(expr.List[3], env)
		}
		return sexpr.Int(0, expr.Line)
	case "assign":
		name := expr.List[1].Text
		v := ex.eval(expr.List[2], env)
		env[name] = v
		return v
	case "list":
		items := make([]sexpr.Expr, len(expr.List)-1)
		for i, sub := range expr.List[1:] {
			items[i] = ex.eval(sub, env)
		}
		return sexpr.List(items, expr.Line)
	case "quote":
		return expr.List[1]
	case "backquote":
		return ex.expandBackquote(expr.List[1], env)
	case "cons":
		a := ex.eval(expr.List[1], env)
		b := ex.eval(expr.List[2], env)
		if b.IsList() {
			return sexpr.List(append([]sexpr.Expr{a}, b.List...), expr.Line)
		}
		return sexpr.List([]sexpr.Expr{a, b}, expr.Line)
	}

	if fn, ok := binop.Binary(head.Text); ok {
		a := ex.eval(expr.List[1], env)
		b := ex.eval(expr.List[2], env)
		return sexpr.Int(fn(mustInt(a), mustInt(b)), expr.Line)
	}
	if fn, ok := binop.Unary(head.Text); ok {
		a := ex.eval(expr.List[1], env)
		return sexpr.Int(fn(mustInt(a)), expr.Line)
	}
	if sub, ok := ex.Macros[head.Text]; ok {
		newEnv := maps.Clone(env)
		for i, p := range sub.Params {
			if i+1 < len(expr.List) {
				newEnv[p] = ex.eval(expr.List[i+1], env)
			}
		}
		return ex.eval(sub.Body, newEnv)
	}

	// Open Question 1 (spec §9): calling a macro-time user function is
	// explicitly unimplemented upstream; fail with a diagnostic rather
	// than guess at semantics that were never exercised.
	panic(fmt.Sprintf("macro error: cannot call user function %q during expansion", head.Text))
}

func (ex *Expander) expandBackquote(expr sexpr.Expr, env map[string]sexpr.Expr) sexpr.Expr {
	if !expr.IsList() {
		return expr
	}
	if expr.HeadSymbolIs("unquote") {
		return ex.eval(expr.List[1], env)
	}
	out := make([]sexpr.Expr, len(expr.List))
	for i, term := range expr.List {
		out[i] = ex.expandBackquote(term, env)
	}
	return sexpr.List(out, expr.Line)
}

func truthy(e sexpr.Expr) bool {
	if e.Kind == sexpr.KindInt {
		return e.Int != 0
	}
	return !e.IsNil()
}

func mustInt(e sexpr.Expr) int64 {
	if e.Kind != sexpr.KindInt {
		panic("macro error: expected an integer operand during expansion")
	}
	return e.Int
}
