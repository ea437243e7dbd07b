package isa

import "testing"

// Round-trip every opcode through Encode/Decode, the same style
// scm/scmer_json_roundtrip_test.go uses for its own wire format.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	opcodes := []Opcode{
		NOP, CALL, RETURN, POP, LOAD, STORE, ADD, SUB, REST,
		GTR, GTE, EQ, NEQ, DUP, GETTAG, SETTAG, AND, OR, XOR,
		LSHIFT, RSHIFT, GETBP, RESERVE, PUSH, GOTO, BFALSE,
		GETLOCAL, SETLOCAL, CLEANUP,
	}
	imms := []int32{0, 1, -1, 32767, -32768, 12345, -12345}
	for _, op := range opcodes {
		for _, imm := range imms {
			w := Encode(op, imm)
			gotOp, gotImm := Decode(w)
			if gotOp != op || gotImm != imm {
				t.Errorf("Encode/Decode(%d, %d) round-tripped to (%d, %d)", op, imm, gotOp, gotImm)
			}
		}
	}
}

func TestEncodeRejectsOutOfRangeImmediate(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected Encode to panic on an out-of-range immediate")
		}
	}()
	Encode(PUSH, 40000)
}

func TestPatchPreservesOpcode(t *testing.T) {
	w := Encode(PUSH, 1)
	w = Patch(w, 999)
	op, imm := Decode(w)
	if op != PUSH {
		t.Errorf("Patch changed the opcode: got %d, want PUSH", op)
	}
	if imm != 999 {
		t.Errorf("Patch did not update the immediate: got %d, want 999", imm)
	}
}

func TestWordFitsIn24Bits(t *testing.T) {
	w := Encode(CLEANUP, -1)
	if uint32(w) > wordMask {
		t.Errorf("encoded word %#x exceeds the 24-bit budget", uint32(w))
	}
}

func TestHasImmediateMatchesMnemonicTable(t *testing.T) {
	// Every opcode with a mnemonic should decode to something other than
	// "???", and HasImmediate should only be true for opcodes whose
	// listing actually carries a meaningful operand.
	for op, name := range mnemonic {
		if Mnemonic(op) != name {
			t.Errorf("Mnemonic(%d) = %q, want %q", op, Mnemonic(op), name)
		}
	}
	if !HasImmediate(PUSH) || HasImmediate(ADD) {
		t.Errorf("HasImmediate disagrees with the expected operand-carrying opcode set")
	}
}

func TestDeclareRegistersLookupableAndDescribable(t *testing.T) {
	p, ok := Lookup("+")
	if !ok {
		t.Fatal(`expected "+" to be a declared primitive`)
	}
	if p.Op != ADD || p.Arity != 2 {
		t.Errorf("unexpected declaration for +: %+v", p)
	}

	lines := Describe()
	if len(lines) == 0 {
		t.Fatal("expected Describe to list the declared primitives")
	}
	found := false
	for _, line := range lines {
		if line == "+\tadd\tinteger addition" {
			found = true
		}
	}
	if !found {
		t.Errorf("Describe output missing the + entry:\n%v", lines)
	}

	if _, ok := Lookup("no-such-primitive"); ok {
		t.Error("Lookup should fail for an undeclared name")
	}
}
