// Package errors implements the accumulated error-list monoid the compiler
// uses to report every schema, grammar, resolution, and type problem found
// in a policy in one pass instead of failing at the first one.
package errors

import (
	"fmt"
	"strings"
)

// Position locates a problem within a rule, effect, tracker, or foreign-call
// source string.
type Position struct {
	Entity string // e.g. "Rules[2].condition", "Trackers[0].initialValue"
	Offset int    // byte offset into the entity's source string
	Line   int
	Column int
}

// AtOffset builds a Position for a condition/effect source string, which is
// always single-line, so Line is always 1 and Column is the 1-based offset.
func AtOffset(entity string, offset int) Position {
	return Position{Entity: entity, Offset: offset, Line: 1, Column: offset + 1}
}

func (p Position) String() string {
	if p.Entity == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.Entity, p.Line, p.Column)
}

// ErrorType is the closed set of fatal categories from spec §7.
type ErrorType int

const (
	Input ErrorType = iota
	Resolution
	Grammar
	Type
)

func (t ErrorType) String() string {
	switch t {
	case Input:
		return "INPUT"
	case Resolution:
		return "RESOLUTION"
	case Grammar:
		return "GRAMMAR"
	case Type:
		return "TYPE"
	default:
		return fmt.Sprintf("ErrorType(%d)", int(t))
	}
}

// CompileError is a single accumulated compile problem: {errorType, message, state}.
type CompileError struct {
	Kind    ErrorType
	Message string
	State   string // the assembler state active when the error was recorded
	Pos     Position
}

func (e *CompileError) Error() string {
	var sb strings.Builder
	if e.State != "" {
		fmt.Fprintf(&sb, "[%s] ", e.State)
	}
	fmt.Fprintf(&sb, "%s: %s: %s", e.Pos, e.Kind, e.Message)
	return sb.String()
}

// New creates a new CompileError.
func New(kind ErrorType, state string, pos Position, format string, args ...any) *CompileError {
	return &CompileError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		State:   state,
		Pos:     pos,
	}
}

// Warning is a non-fatal problem delivered out-of-band (spec §7).
type Warning struct {
	Message string
	Pos     Position
}

func (w *Warning) String() string {
	return fmt.Sprintf("%s: warning: %s", w.Pos, w.Message)
}

// List accumulates errors and warnings across an entire compilation. It is
// itself a monoid: Merge concatenates another List's contents into this one.
// List implements the error interface so it can be returned wherever a plain
// error is expected.
type List struct {
	Errors   []*CompileError
	Warnings []*Warning
}

// Add appends an error to the list.
func (l *List) Add(err *CompileError) {
	l.Errors = append(l.Errors, err)
}

// Addf is a convenience wrapper around New+Add.
func (l *List) Addf(kind ErrorType, state string, pos Position, format string, args ...any) {
	l.Add(New(kind, state, pos, format, args...))
}

// AddWarning appends a warning to the list.
func (l *List) AddWarning(pos Position, format string, args ...any) {
	l.Warnings = append(l.Warnings, &Warning{Message: fmt.Sprintf(format, args...), Pos: pos})
}

// Merge concatenates another list's errors and warnings into this one.
func (l *List) Merge(other *List) {
	if other == nil {
		return
	}
	l.Errors = append(l.Errors, other.Errors...)
	l.Warnings = append(l.Warnings, other.Warnings...)
}

// HasErrors reports whether any fatal error was recorded.
func (l *List) HasErrors() bool {
	return l != nil && len(l.Errors) > 0
}

// Error renders every accumulated error, one per line, satisfying the error
// interface so a *List can be returned directly from Compile.
func (l *List) Error() string {
	if l == nil || !l.HasErrors() {
		return ""
	}
	var sb strings.Builder
	for _, e := range l.Errors {
		sb.WriteString(e.Error())
		sb.WriteString("\n")
	}
	return sb.String()
}

// PrintWarnings renders every accumulated warning, one per line.
func (l *List) PrintWarnings() string {
	if l == nil || len(l.Warnings) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, w := range l.Warnings {
		sb.WriteString(w.String())
		sb.WriteString("\n")
	}
	return sb.String()
}
