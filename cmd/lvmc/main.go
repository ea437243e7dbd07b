// Command lvmc is the compiler's command-line entry point (§6): it
// reads the implicit runtime.lisp plus the user's source files, runs
// them through internal/compiler, and writes program.hex and
// program.lst into the current working directory.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/fsnotify/fsnotify"

	"github.com/launix-de/lispvmc/internal/codegen"
	"github.com/launix-de/lispvmc/internal/compiler"
	"github.com/launix-de/lispvmc/internal/isa"
)

var (
	watch      = flag.Bool("watch", false, "recompile whenever a source file changes")
	listHelp   = flag.Bool("help-primitives", false, "list the primitive ops the code generator knows and exit")
	outPrefix  = flag.String("o", "program", "output file prefix (writes <prefix>.hex and <prefix>.lst)")
	runtimeArg = flag.String("runtime", "", "path to runtime.lisp (default: next to the lvmc executable)")
	trace      = flag.Bool("trace", false, "write <prefix>.trace.json with per-function compile timings")
	verbose    = flag.Bool("v", false, "print the live function count alongside the build summary")
)

func main() {
	flag.Parse()

	if *listHelp {
		for _, line := range isa.Describe() {
			fmt.Println(line)
		}
		return
	}

	userFiles := flag.Args()
	if len(userFiles) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: lvmc [-watch] [-trace] [-v] [-o prefix] file.lisp [file2.lisp ...]")
		os.Exit(1)
	}

	runtimePath, err := locateRuntime(*runtimeArg)
	if err != nil {
		fmt.Printf("Compile error: %v\n", err)
		os.Exit(1)
	}

	if !build(runtimePath, userFiles, *outPrefix) {
		os.Exit(1)
	}

	if *watch {
		watchAndRebuild(runtimePath, userFiles, *outPrefix)
	}
}

// locateRuntime implements §6's "reads runtime.lisp from the directory
// containing the compiler implementation as an implicit first input":
// next to the running executable, falling back to the current working
// directory for a `go run`-style invocation where os.Executable points
// at a throwaway temp binary.
func locateRuntime(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "runtime.lisp")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	if _, err := os.Stat("runtime.lisp"); err == nil {
		return "runtime.lisp", nil
	}
	return "", fmt.Errorf("runtime.lisp not found next to the executable or in the working directory")
}

// build runs one full compile of runtimePath plus userFiles and writes
// the two output files on success. It reports its own failure as
// "Compile error: ..." per §6/§7 and returns whether it succeeded.
func build(runtimePath string, userFiles []string, prefix string) bool {
	sources := make([]compiler.Source, 0, len(userFiles)+1)
	for _, path := range append([]string{runtimePath}, userFiles...) {
		text, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("Compile error: %v\n", err)
			return false
		}
		sources = append(sources, compiler.Source{Name: path, Text: string(text)})
	}

	var bt *codegen.BuildTrace
	if *trace {
		tf, err := os.Create(prefix + ".trace.json")
		if err != nil {
			fmt.Printf("Compile error: %v\n", err)
			return false
		}
		bt = codegen.NewBuildTrace(tf, time.Now())
		defer bt.Close()
	}

	result, err := compiler.CompileTraced(sources, bt)
	if err != nil {
		fmt.Printf("Compile error: %v\n", err)
		return false
	}

	hexPath := prefix + ".hex"
	lstPath := prefix + ".lst"
	hexText := strings.Join(result.Hex, "\n")
	if len(result.Hex) > 0 {
		hexText += "\n"
	}
	if err := os.WriteFile(hexPath, []byte(hexText), 0644); err != nil {
		fmt.Printf("Compile error: %v\n", err)
		return false
	}
	if err := os.WriteFile(lstPath, []byte(result.Listing), 0644); err != nil {
		fmt.Printf("Compile error: %v\n", err)
		return false
	}

	fmt.Fprintf(os.Stderr, "wrote %s (%s, %d words) and %s\n", hexPath, units.HumanSize(float64(len(hexText))), len(result.Hex), lstPath)
	if *verbose {
		fmt.Fprintf(os.Stderr, "  %d live function(s)\n", strings.Count(result.Listing, "\nfunction "))
	}
	return true
}

// watchAndRebuild recompiles whenever a user source file changes
// (runtime.lisp itself is not watched), in the
// manner of a long-running build daemon rather than the batch
// one-shot §6 otherwise describes; it never returns on its own.
func watchAndRebuild(runtimePath string, userFiles []string, prefix string) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		fmt.Fprintf(os.Stderr, "watch error: %v\n", err)
		os.Exit(1)
	}
	defer w.Close()

	for _, f := range userFiles {
		if err := w.Add(f); err != nil {
			fmt.Fprintf(os.Stderr, "watch error: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Println("watching for changes, press Ctrl+C to stop")
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			fmt.Printf("%s changed, recompiling\n", ev.Name)
			build(runtimePath, userFiles, prefix)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			fmt.Fprintf(os.Stderr, "watch error: %v\n", err)
		}
	}
}
