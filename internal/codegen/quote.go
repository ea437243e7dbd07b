package codegen

import (
	"github.com/launix-de/lispvmc/internal/sexpr"
)

// compileQuote compiles a quoted literal (§4.5.3): integers push
// directly, lists become chains of cons cells, and -- matching
// original_source/compile.py's compileQuote, which never special-cases
// a bare quoted symbol -- a symbol quoted on its own compiles the same
// way a string does, as the char codes of its name consed together.
func (c *Compiler) compileQuote(e sexpr.Expr) {
	switch {
	case e.IsInt():
		c.emitPushInt(e.Int, e.Line)
	case e.IsSymbol():
		c.compileString(e.Text, e.Line)
	case e.IsString():
		c.compileString(e.Text, e.Line)
	case e.IsList():
		c.compileQuotedList(e)
	}
}

// compileQuotedList handles '(...) forms, including the dotted-pair
// shorthand '(a . b): a 3-element list whose middle element is the
// literal symbol ".".
func (c *Compiler) compileQuotedList(e sexpr.Expr) {
	if len(e.List) == 0 {
		c.emitPushInt(0, e.Line)
		return
	}
	if len(e.List) == 3 && e.List[1].IsSymbol() && e.List[1].Text == "." {
		c.compileQuote(e.List[2]) // tail, pushed first
		c.compileQuote(e.List[0]) // head, pushed second (on top)
		c.emitConsCall(e.Line)
		return
	}
	c.compileQuotedItems(e.List, 0, e.Line)
}

func (c *Compiler) compileQuotedItems(items []sexpr.Expr, idx int, line int) {
	if idx == len(items)-1 {
		c.emitPushInt(0, line)
	} else {
		c.compileQuotedItems(items, idx+1, line)
	}
	c.compileQuote(items[idx])
	c.emitConsCall(line)
}

// compileString conses together the char codes of s, right to left,
// terminated by 0 -- matching original_source/compile.py's
// compileString exactly.
func (c *Compiler) compileString(s string, line int) {
	runes := []rune(s)
	if len(runes) == 0 {
		c.emitPushInt(0, line)
		return
	}
	c.compileStringChars(runes, 0, line)
}

func (c *Compiler) compileStringChars(rs []rune, idx int, line int) {
	if idx == len(rs)-1 {
		c.emitPushInt(0, line)
	} else {
		c.compileStringChars(rs, idx+1, line)
	}
	c.emitPushInt(int64(rs[idx]), line)
	c.emitConsCall(line)
}

// compileListForm compiles the (list a b c) builtin: like a quoted
// list, but each element is a full expression to evaluate rather than
// a literal.
func (c *Compiler) compileListForm(items []sexpr.Expr, line int) {
	if len(items) == 0 {
		c.emitPushInt(0, line)
		return
	}
	c.compileListItems(items, 0, line)
}

func (c *Compiler) compileListItems(items []sexpr.Expr, idx int, line int) {
	if idx == len(items)-1 {
		c.emitPushInt(0, line)
	} else {
		c.compileListItems(items, idx+1, line)
	}
	c.compileExpression(items[idx], false)
	c.emitConsCall(line)
}

// emitConsCall assumes the pair's tail and then its head have already
// been pushed (in that order, head on top) and emits a call to the
// runtime's cons function to combine them.
func (c *Compiler) emitConsCall(line int) {
	c.emitCallResolved(c.lookup("cons"), 2, line)
}
