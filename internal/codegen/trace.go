package codegen

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// BuildTrace writes a Chrome trace-event-format JSON file recording how
// long code generation spent in each function body, the same format and
// writer shape as scm/trace.go's Tracefile -- that one traces query
// execution, this one traces compilation of a single program, but the
// event envelope (ts/dur/name/cat, array-of-objects framed by literal
// "[" / "]") is unchanged.
type BuildTrace struct {
	mu    sync.Mutex
	w     io.WriteCloser
	first bool
	start time.Time
}

// NewBuildTrace wraps w as an open trace file; the caller is responsible
// for eventually calling Close.
func NewBuildTrace(w io.WriteCloser, start time.Time) *BuildTrace {
	w.Write([]byte("["))
	return &BuildTrace{w: w, first: true, start: start}
}

func (t *BuildTrace) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.w.Write([]byte("]"))
	return t.w.Close()
}

type traceEvent struct {
	Name string `json:"name"`
	Cat  string `json:"cat"`
	Ph   string `json:"ph"`
	TS   int64  `json:"ts"`
	Dur  int64  `json:"dur,omitempty"`
}

// Duration records one complete ("X"-phase) event spanning f's runtime.
func (t *BuildTrace) Duration(name, category string, f func()) {
	began := time.Since(t.start).Microseconds()
	f()
	dur := time.Since(t.start).Microseconds() - began
	t.writeEvent(traceEvent{Name: name, Cat: category, Ph: "X", TS: began, Dur: dur})
}

func (t *BuildTrace) writeEvent(ev traceEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.first {
		t.w.Write([]byte(","))
	}
	t.first = false
	enc, err := json.Marshal(ev)
	if err != nil {
		panic(fmt.Sprintf("internal error: trace event did not marshal: %v", err))
	}
	t.w.Write(enc)
}

// traceFunction runs body (compiling one function) under c.Trace's
// Duration span when tracing is enabled, and runs it directly otherwise
// -- compileFunctionBody calls this for every function body so that
// tracing imposes no overhead or behavioral difference when c.Trace is
// nil, matching scm/trace.go's "Trace is nil unless -trace was passed"
// convention.
func (c *Compiler) traceFunction(name string, body func()) {
	if c.Trace == nil {
		body()
		return
	}
	c.Trace.Duration(name, "codegen", body)
}
