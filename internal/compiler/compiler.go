// Package compiler wires the five pipeline stages (§2: Reader, Syntax
// Rewriter, Macro Expander, Optimizer, Code Generator) into the Compile
// entry point and its traced variant CompileTraced, which cmd/lvmc
// calls. cmd/lvmrepl runs the rewrite, macro and optimize stages itself.
package compiler

import (
	"fmt"

	"github.com/launix-de/lispvmc/internal/codegen"
	"github.com/launix-de/lispvmc/internal/macro"
	"github.com/launix-de/lispvmc/internal/optimize"
	"github.com/launix-de/lispvmc/internal/rewrite"
	"github.com/launix-de/lispvmc/internal/sexpr"
)

// CompileError is returned for any failure during compilation,
// whether a parse error, a macro-expansion error, or a code generation
// error; its Error text is what cmd/lvmc prints as "Compile error: ...".
type CompileError struct {
	msg string
}

func (e *CompileError) Error() string { return e.msg }

// Source is one input file's name and text, kept together so
// diagnostics can name the file a failing form came from.
type Source struct {
	Name string
	Text string
}

// Result is the finished compilation output, ready to be written to
// program.hex and program.lst.
type Result struct {
	Hex     []string
	Listing string
}

// Compile runs sources through Read -> Rewrite -> macro expansion ->
// Fold -> code generation and returns the finished image. Every stage's
// panic is caught by a single recover boundary, the same anti-panic
// idiom scm/prompt.go wraps around each REPL line, converting an
// internal failure into a *CompileError instead of crashing the
// process.
func Compile(sources []Source) (result Result, err error) {
	return CompileTraced(sources, nil)
}

// CompileTraced is Compile with an optional build trace: when trace is
// non-nil, code generation records a duration event per function body
// into it (cmd/lvmc's -trace flag). Passing nil is identical to Compile.
func CompileTraced(sources []Source, trace *codegen.BuildTrace) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &CompileError{msg: fmt.Sprintf("%v", r)}
		}
	}()

	var forms []sexpr.Expr
	for _, src := range sources {
		forms = append(forms, sexpr.Read(src.Name, src.Text)...)
	}

	forms = rewrite.Program(forms)
	forms = macro.NewExpander().PreProcess(forms)
	forms = optimize.Program(forms)

	cg := codegen.NewCompiler()
	cg.Trace = trace
	cgResult, cgErr := cg.Compile(forms)
	if cgErr != nil {
		return Result{}, &CompileError{msg: cgErr.Error()}
	}
	return Result{Hex: cgResult.Hex, Listing: cgResult.Listing}, nil
}
