// Package binop holds the table of binary and unary operators shared by
// the macro evaluator (§4.3) and the optimizer's constant folder (§4.4).
// Keeping one table avoids the two stages drifting apart, the way the
// original Python's BINOPS/UOPS dicts are shared between foldConstants
// and MacroProcessor.eval.
package binop

// Names lists the binary operator table from spec §4.4, in table order.
var Names = []string{
	"+", "-", "/", "*",
	"bitwise-and", "bitwise-or", "bitwise-xor",
	"lshift", "rshift",
	">", ">=", "<", "<=", "=", "<>",
}

// UnaryNames lists the unary operator table from spec §4.4.
var UnaryNames = []string{"bitwise-not", "-", "not"}

var binary = map[string]func(a, b int64) int64{
	"+":            func(a, b int64) int64 { return a + b },
	"-":            func(a, b int64) int64 { return a - b },
	"/":            func(a, b int64) int64 { return a / b },
	"*":            func(a, b int64) int64 { return a * b },
	"bitwise-and":  func(a, b int64) int64 { return a & b },
	"bitwise-or":   func(a, b int64) int64 { return a | b },
	"bitwise-xor":  func(a, b int64) int64 { return a ^ b },
	"lshift":       func(a, b int64) int64 { return a << uint(b) },
	"rshift":       func(a, b int64) int64 { return a >> uint(b) },
	">":            func(a, b int64) int64 { return boolInt(a > b) },
	">=":           func(a, b int64) int64 { return boolInt(a >= b) },
	"<":            func(a, b int64) int64 { return boolInt(a < b) },
	"<=":           func(a, b int64) int64 { return boolInt(a <= b) },
	"=":            func(a, b int64) int64 { return boolInt(a == b) },
	"<>":           func(a, b int64) int64 { return boolInt(a != b) },
}

var unary = map[string]func(a int64) int64{
	"bitwise-not": func(a int64) int64 { return ^a },
	"-":           func(a int64) int64 { return -a },
	"not":         func(a int64) int64 { return boolInt(a == 0) },
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Binary looks up a binary operator by name.
func Binary(name string) (func(a, b int64) int64, bool) {
	f, ok := binary[name]
	return f, ok
}

// Unary looks up a unary operator by name.
func Unary(name string) (func(a int64) int64, bool) {
	f, ok := unary[name]
	return f, ok
}

// IsBinary reports whether name is a known binary operator.
func IsBinary(name string) bool { _, ok := binary[name]; return ok }

// IsUnary reports whether name is a known unary operator.
func IsUnary(name string) bool { _, ok := unary[name]; return ok }

// Truncate16 clamps a computed value to the VM's signed 16-bit immediate
// range: the low 16 bits are kept and sign-extended, matching §4.4's
// "clamped to a signed 16-bit value... wrapped modulo 2^16 with sign".
func Truncate16(v int64) int64 {
	return int64(int16(uint16(v)))
}
