package internal

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fatih/color"
)

var (
	ErrInsufficientArgs = errors.New("insufficient amount of passed arguments")
	ErrNotText          = errors.New("stream did not contain valid UTF-8")
	ErrFilesFailed      = errors.New("one or more files could not be scanned")
	ErrTaskCrashed      = errors.New("scan task terminated abnormally")
)

// PatternError is returned when the search expression does not compile.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string { return e.Err.Error() }
func (e *PatternError) Unwrap() error { return e.Err }

// FileError wraps a failure to read or decode one input file.
type FileError struct {
	Filename string
	Err      error
}

func (e *FileError) Error() string { return e.Err.Error() }
func (e *FileError) Unwrap() error { return e.Err }

// TaskError records a scan task that panicked instead of returning an outcome.
type TaskError struct {
	Name  string
	Value any
	Stack []byte
}

func (e *TaskError) Error() string { return fmt.Sprintf("task panic: %v", e.Value) }

// FailureHandler is the single sink for diagnostics.
// It never terminates the process itself; main does that with the code from Exit.
type FailureHandler struct {
	mu       sync.Mutex
	w        io.Writer
	tag      *color.Color
	reported atomic.Int64
}

func NewFailureHandler(w io.Writer, colors bool) *FailureHandler {
	f := &FailureHandler{w: w, tag: color.New(color.FgRed, color.Bold)}
	f.SetColor(colors)
	return f
}

// SetColor switches the failure tag colouring on or off.
func (f *FailureHandler) SetColor(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if on {
		f.tag.EnableColor()
	} else {
		f.tag.DisableColor()
	}
}

// Fail writes one diagnostic line. context is usually the offending filename.
func (f *FailureHandler) Fail(diagnostic error, context string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var b strings.Builder
	b.WriteString(f.tag.Sprint("fsrep failure"))
	b.WriteString(": ")
	if context != "" {
		fmt.Fprintf(&b, "'%s' ", context)
	}
	b.WriteString(diagnostic.Error())
	b.WriteByte('\n')
	_, _ = io.WriteString(f.w, b.String())
}

// Report writes a diagnostic for a per-file or per-task error, taking the
// context from the error itself.
func (f *FailureHandler) Report(err error) {
	f.reported.Add(1)
	var (
		fe *FileError
		te *TaskError
	)
	switch {
	case errors.As(err, &fe):
		f.Fail(fe.Err, fe.Filename)
	case errors.As(err, &te):
		f.Fail(te, te.Name)
	default:
		f.Fail(err, "")
	}
}

// Reported returns how many errors went through Report.
func (f *FailureHandler) Reported() int64 { return f.reported.Load() }

// Exit maps the run result to a process exit status.
// Errors whose diagnostics were already written per file are not repeated.
func (f *FailureHandler) Exit(err error) int {
	if err == nil {
		return 0
	}
	if !errors.Is(err, ErrFilesFailed) && !errors.Is(err, ErrTaskCrashed) {
		var pe *PatternError
		if errors.As(err, &pe) {
			f.Fail(err, pe.Pattern)
		} else {
			f.Fail(err, "")
		}
	}
	return 1
}
