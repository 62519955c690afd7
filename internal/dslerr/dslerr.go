// Package dslerr defines the error taxonomy of the scenario runner.
//
// Lower layers (value resolution, lookups, schema compilation) raise narrow
// typed errors; the execution engine is the single place that attaches step
// and expectation coordinates plus context snapshots before re-raising.
// Expectation failures (CheckFailed) are deliberately a distinct kind from
// execution errors (RuntimeError) so callers can tell "expectation unmet"
// apart from "system broke".
package dslerr

import (
	"fmt"
	"strings"
)

// Location pinpoints where in a scenario something went wrong. Zero-valued
// fields are omitted from formatting; Step and Check are zero-based indexes
// and use -1 as the "unset" sentinel.
type Location struct {
	File   string
	Line   int
	Column int
	Step   int
	Check  int
}

// NoLocation is the empty location for errors raised outside any document.
func NoLocation() Location {
	return Location{Step: -1, Check: -1}
}

// At returns a location pointing at a source position.
func At(file string, line, column int) Location {
	return Location{File: file, Line: line, Column: column, Step: -1, Check: -1}
}

// AtStep returns a location pointing at a step (and optionally a check)
// inside a scenario file. Pass check = -1 when no expectation is involved.
func AtStep(file string, step, check int) Location {
	return Location{File: file, Step: step, Check: check}
}

func (l Location) describe(b *strings.Builder) {
	file := l.File
	if file == "" {
		file = "<stream>"
	}
	fmt.Fprintf(b, "%sin %q", indent, file)
	if l.Line > 0 {
		fmt.Fprintf(b, ", line %d", l.Line)
		if l.Column > 0 {
			fmt.Fprintf(b, ", column %d", l.Column)
		}
	}
	b.WriteByte('\n')
	if l.Step >= 0 {
		// Step is the document position in the stream; 0 is the header.
		fmt.Fprintf(b, "%son step %d", indent, l.Step)
		if l.Check >= 0 {
			fmt.Fprintf(b, ", check %d", l.Check)
		}
		b.WriteByte('\n')
	}
}

// SchemaError reports a malformed document: YAML syntax problems, tag
// misuse, or type-validation failures. It is always surfaced to the caller
// and never recovered.
type SchemaError struct {
	Msg     string
	Loc     Location
	Element any
	Err     error
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString(e.Msg)
	b.WriteByte('\n')
	e.Loc.describe(&b)
	writeSnippet(&b, e.Element, nil)
	return strings.TrimRight(b.String(), "\n")
}

func (e *SchemaError) Unwrap() error { return e.Err }

// NewSchema builds a SchemaError without source coordinates.
func NewSchema(format string, args ...any) *SchemaError {
	return &SchemaError{Msg: fmt.Sprintf(format, args...), Loc: NoLocation()}
}

// BuildError reports a failed model composition: name or alias collisions,
// an empty action set, or ambiguous discriminators. It is fatal and raised
// once at model-build time.
type BuildError struct {
	Msg string
	Err error
}

func (e *BuildError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("model build failed: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("model build failed: %s", e.Msg)
}

func (e *BuildError) Unwrap() error { return e.Err }

// ConflictError reports extension shadowing: a registration under a name
// that is already taken. It is fatal only in strict mode; lenient mode
// demotes the event to a warning and lets the newer registration win.
type ConflictError struct {
	Kind   string
	Name   string
	Bundle string
}

func (e *ConflictError) Error() string {
	if e.Bundle != "" {
		return fmt.Sprintf("%s %q from bundle %q is shadowing an existing registration", e.Kind, e.Name, e.Bundle)
	}
	return fmt.Sprintf("%s %q is shadowing an existing registration", e.Kind, e.Name)
}

// RuntimeError reports a failure during step or check execution that was
// not caused by an unmet expectation. The engine wraps the originating
// error with coordinates, the implicated element, and a snapshot of the
// local context.
type RuntimeError struct {
	Msg     string
	Loc     Location
	Element any
	Context map[string]any
	Err     error
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString("runtime error")
	if e.Msg != "" {
		fmt.Fprintf(&b, "\n%s%s", indent, e.Msg)
	}
	b.WriteByte('\n')
	e.Loc.describe(&b)
	writeSnippet(&b, e.Element, e.Context)
	return strings.TrimRight(b.String(), "\n")
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// NewRuntime builds a bare RuntimeError without coordinates. The engine
// upgrades it with location and snapshots when it crosses a step boundary.
func NewRuntime(format string, args ...any) *RuntimeError {
	return &RuntimeError{Msg: fmt.Sprintf(format, args...), Loc: NoLocation()}
}

// CheckFailed reports an expectation that evaluated to false. It aborts the
// plan but is reported with title, location, and snapshots rather than a
// generic error message. It is never re-wrapped as a RuntimeError.
type CheckFailed struct {
	Title   string
	Loc     Location
	Element any
	Context map[string]any
}

func (e *CheckFailed) Error() string {
	var b strings.Builder
	b.WriteString("expectation failed")
	if e.Title != "" {
		fmt.Fprintf(&b, ": %s", e.Title)
	}
	b.WriteByte('\n')
	e.Loc.describe(&b)
	writeSnippet(&b, e.Element, e.Context)
	return strings.TrimRight(b.String(), "\n")
}
