// Package sexpr implements the S-expression value type, reader, and
// canonical printer for the compiler's input language.
package sexpr

import "fmt"

// Kind discriminates the four S-expression variants. There is no
// flattening to a string/number heuristic: every Expr carries an
// explicit Kind.
type Kind uint8

const (
	KindInt Kind = iota
	KindSymbol
	KindString
	KindList
)

// Expr is an immutable S-expression node. Once produced by the reader it
// is never mutated in place; later pipeline stages build new trees.
type Expr struct {
	Kind Kind
	Int  int64  // valid when Kind == KindInt
	Text string // symbol name (KindSymbol) or unescaped string body (KindString)
	List []Expr // valid when Kind == KindList
	Line int    // 1-based source line, for diagnostics
}

func Int(n int64, line int) Expr    { return Expr{Kind: KindInt, Int: n, Line: line} }
func Symbol(s string, line int) Expr { return Expr{Kind: KindSymbol, Text: s, Line: line} }

// Str builds a string-literal Expr. Named Str, not String, so it doesn't
// collide with this package's String(Expr) string printer.
func Str(s string, line int) Expr { return Expr{Kind: KindString, Text: s, Line: line} }

func List(items []Expr, line int) Expr {
	return Expr{Kind: KindList, List: items, Line: line}
}

// Nil is the canonical empty list, the language's nil value.
func Nil(line int) Expr { return List(nil, line) }

func (e Expr) IsNil() bool    { return e.Kind == KindList && len(e.List) == 0 }
func (e Expr) IsInt() bool    { return e.Kind == KindInt }
func (e Expr) IsSymbol() bool { return e.Kind == KindSymbol }
func (e Expr) IsString() bool { return e.Kind == KindString }
func (e Expr) IsList() bool   { return e.Kind == KindList }

// SymbolIs reports whether e is a symbol equal to name.
func (e Expr) SymbolIs(name string) bool {
	return e.Kind == KindSymbol && e.Text == name
}

// Head returns the first element of a non-empty list, and whether the
// list had a head to return at all.
func (e Expr) Head() (Expr, bool) {
	if e.Kind != KindList || len(e.List) == 0 {
		return Expr{}, false
	}
	return e.List[0], true
}

// HeadSymbolIs reports whether e is a non-empty list whose head is the
// symbol name.
func (e Expr) HeadSymbolIs(name string) bool {
	h, ok := e.Head()
	return ok && h.SymbolIs(name)
}

// Tail returns all but the first element of a list.
func (e Expr) Tail() []Expr {
	if e.Kind != KindList || len(e.List) == 0 {
		return nil
	}
	return e.List[1:]
}

func (e Expr) GoString() string {
	return fmt.Sprintf("sexpr.Expr{%s}", String(e))
}
