package isa

// Primitive documents a call-form whose head compiles directly to one
// or two opcodes (§4.5.3's "a list whose head is a known primitive
// compiles to a specific opcode"). Adapted from scm/declare.go's
// Declaration/Declare/Help self-documenting registry, trimmed to what a
// compile-time opcode table needs: no runtime Fn, just documentation and
// the arity the code generator enforces.
type Primitive struct {
	Name       string
	Desc       string
	Arity      int
	Op         Opcode
	Synthesize bool // true for "<" and "<=": compiled by swapping operand order onto Op (GTR/GTE)
}

var primitives []Primitive
var primitiveIndex = map[string]Primitive{}

// Declare registers p into the primitive table. Called from package
// init functions, mirroring scm/declare.go's Declare(env, &Declaration{...}).
func Declare(p Primitive) {
	primitives = append(primitives, p)
	primitiveIndex[p.Name] = p
}

// Lookup finds a declared primitive by name.
func Lookup(name string) (Primitive, bool) {
	p, ok := primitiveIndex[name]
	return p, ok
}

// Describe renders the registered primitive table for -help style output,
// mirroring scm/declare.go's Help(fn).
func Describe() []string {
	out := make([]string, len(primitives))
	for i, p := range primitives {
		out[i] = p.Name + "\t" + Mnemonic(p.Op) + "\t" + p.Desc
	}
	return out
}

func init() {
	Declare(Primitive{Name: "+", Desc: "integer addition", Arity: 2, Op: ADD})
	Declare(Primitive{Name: "-", Desc: "integer subtraction", Arity: 2, Op: SUB})
	Declare(Primitive{Name: ">", Desc: "greater-than comparison", Arity: 2, Op: GTR})
	Declare(Primitive{Name: ">=", Desc: "greater-or-equal comparison", Arity: 2, Op: GTE})
	Declare(Primitive{Name: "<", Desc: "less-than comparison (synthesized via operand swap + gtr)", Arity: 2, Op: GTR, Synthesize: true})
	Declare(Primitive{Name: "<=", Desc: "less-or-equal comparison (synthesized via operand swap + gte)", Arity: 2, Op: GTE, Synthesize: true})
	Declare(Primitive{Name: "=", Desc: "equality comparison", Arity: 2, Op: EQ})
	Declare(Primitive{Name: "<>", Desc: "inequality comparison", Arity: 2, Op: NEQ})
	Declare(Primitive{Name: "load", Desc: "dereference a memory address", Arity: 1, Op: LOAD})
	Declare(Primitive{Name: "store", Desc: "write a value to a memory address", Arity: 2, Op: STORE})
	Declare(Primitive{Name: "first", Desc: "cons cell head (dereference)", Arity: 1, Op: LOAD})
	Declare(Primitive{Name: "rest", Desc: "cons cell tail", Arity: 1, Op: REST})
	Declare(Primitive{Name: "settag", Desc: "write the tag bits of a value", Arity: 2, Op: SETTAG})
	Declare(Primitive{Name: "gettag", Desc: "read the tag bits of a value", Arity: 1, Op: GETTAG})
	Declare(Primitive{Name: "bitwise-and", Desc: "bitwise and", Arity: 2, Op: AND})
	Declare(Primitive{Name: "bitwise-or", Desc: "bitwise or", Arity: 2, Op: OR})
	Declare(Primitive{Name: "bitwise-xor", Desc: "bitwise xor", Arity: 2, Op: XOR})
	Declare(Primitive{Name: "rshift", Desc: "right shift", Arity: 2, Op: RSHIFT})
	Declare(Primitive{Name: "lshift", Desc: "left shift", Arity: 2, Op: LSHIFT})
}
