package sexpr

import "testing"

func TestReadShorthand(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"'x", "(quote x)"},
		{"`x", "(backquote x)"},
		{",x", "(unquote x)"},
	}
	for _, c := range cases {
		got := Read("test", c.in)
		if len(got) != 1 {
			t.Fatalf("Read(%q) produced %d forms, want 1", c.in, len(got))
		}
		if s := String(got[0]); s != c.want {
			t.Errorf("Read(%q) = %s, want %s", c.in, s, c.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	cases := []string{
		"(+ 1 2)",
		`(define x "hello world")`,
		"(function f (x y) (if (< x y) x y))",
		"()",
		"(a (b c) (d (e f) 3))",
		"-5",
		"(list 1 -2 3)",
	}
	for _, in := range cases {
		forms := Read("test", in)
		if len(forms) != 1 {
			t.Fatalf("Read(%q) produced %d forms, want 1", in, len(forms))
		}
		printed := String(forms[0])
		again := Read("test2", printed)
		if len(again) != 1 {
			t.Fatalf("re-Read(%q) produced %d forms, want 1", printed, len(again))
		}
		if String(again[0]) != printed {
			t.Errorf("round trip mismatch: %q -> %q -> %q", in, printed, String(again[0]))
		}
	}
}

func TestReadComments(t *testing.T) {
	in := "(+ 1 ; a comment\n 2)"
	got := Read("test", in)
	if len(got) != 1 || String(got[0]) != "(+ 1 2)" {
		t.Fatalf("Read(%q) = %v, want (+ 1 2)", in, got)
	}
}

func TestUnmatchedParenPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on unmatched (")
		}
	}()
	Read("test", "(+ 1 2")
}

func TestLoneCloseParenPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on lone )")
		}
	}()
	Read("test", ")")
}

func TestCharLiteral(t *testing.T) {
	got := Read("test", `#\a #\newline #\space`)
	if len(got) != 3 {
		t.Fatalf("got %d forms, want 3", len(got))
	}
	if got[0].Int != int64('a') || got[1].Int != int64('\n') || got[2].Int != int64(' ') {
		t.Errorf("char literals decoded wrong: %v", got)
	}
}
