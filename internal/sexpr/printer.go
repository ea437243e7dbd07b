package sexpr

import (
	"strconv"
	"strings"
)

// String renders e in the canonical whitespace that Read can parse back
// unchanged (Testable Property 1, reader round-trip). The tag-switch
// shape mirrors scm/printer.go's String(v Scmer) string.
func String(e Expr) string {
	switch e.Kind {
	case KindInt:
		return strconv.FormatInt(e.Int, 10)
	case KindSymbol:
		return e.Text
	case KindString:
		var b strings.Builder
		b.WriteByte('"')
		b.WriteString(strings.NewReplacer(
			"\\", "\\\\",
			"\"", "\\\"",
			"\n", "\\n",
			"\r", "\\r",
			"\t", "\\t",
		).Replace(e.Text))
		b.WriteByte('"')
		return b.String()
	case KindList:
		parts := make([]string, len(e.List))
		for i, x := range e.List {
			parts[i] = String(x)
		}
		return "(" + strings.Join(parts, " ") + ")"
	}
	return "<invalid sexpr>"
}
