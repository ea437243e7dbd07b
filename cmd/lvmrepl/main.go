// Command lvmrepl is an interactive pipeline inspector: it reads one
// S-expression at a time, runs it through the rewriter, macro
// expander, and optimizer, and prints the resulting form. There is no
// virtual machine in this module (§1's "out of scope: the virtual
// machine / simulator that executes the produced hex file"), so unlike
// a language REPL this never evaluates anything -- it lets a user see
// exactly what the code generator would receive.
//
// Grounded on scm/prompt.go's Repl: same readline.Config fields, same
// colored prompt constants, same continuation-on-unmatched-paren
// recover branch, same anti-panic wrapper shape.
package main

import (
	"fmt"
	"io"
	"runtime/debug"

	"github.com/chzyer/readline"

	"github.com/launix-de/lispvmc/internal/macro"
	"github.com/launix-de/lispvmc/internal/optimize"
	"github.com/launix-de/lispvmc/internal/rewrite"
	"github.com/launix-de/lispvmc/internal/sexpr"
)

const (
	newPrompt    = "\033[32m>\033[0m "
	contPrompt   = "\033[32m.\033[0m "
	resultPrompt = "\033[31m=\033[0m "
)

func main() {
	l, err := readline.NewEx(&readline.Config{
		Prompt:            newPrompt,
		HistoryFile:       ".lvmrepl-history.tmp",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		panic(err)
	}
	defer l.Close()
	l.CaptureExitSignal()

	ex := macro.NewExpander()
	oldline := ""
	for {
		line, err := l.Readline()
		line = oldline + line
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			}
			continue
		} else if err == io.EOF {
			break
		} else if err != nil {
			panic(err)
		}
		if line == "" {
			continue
		}

		func() {
			defer func() {
				if r := recover(); r != nil {
					if isUnmatchedParen(r) {
						oldline = line + "\n"
						l.SetPrompt(contPrompt)
						return
					}
					fmt.Println("panic:", r, string(debug.Stack()))
					oldline = ""
					l.SetPrompt(newPrompt)
				}
			}()

			form, ok := sexpr.ReadOne("repl", line)
			if !ok {
				oldline = ""
				l.SetPrompt(newPrompt)
				return
			}
			if form.HeadSymbolIs("defmacro") {
				ex.PreProcess([]sexpr.Expr{form})
				fmt.Println(resultPrompt + "; macro recorded")
				oldline = ""
				l.SetPrompt(newPrompt)
				return
			}
			form = rewrite.Rewrite(form)
			expanded := ex.PreProcess([]sexpr.Expr{form})
			result := optimize.Fold(expanded[0])
			fmt.Println(resultPrompt + sexpr.String(result))
			oldline = ""
			l.SetPrompt(newPrompt)
		}()
	}
}

// isUnmatchedParen reports whether r is the reader's "expecting
// matching )" panic, the one recoverable case that means "keep reading
// more input" rather than "this input is actually broken".
func isUnmatchedParen(r any) bool {
	s, ok := r.(string)
	if !ok {
		return false
	}
	return len(s) >= len("expecting matching )") &&
		s[len(s)-len("expecting matching )"):] == "expecting matching )"
}
