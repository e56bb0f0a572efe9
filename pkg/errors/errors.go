// Package errors defines the typed error taxonomy raised by the
// orchestration core. Every error carries enough structured context to
// render the "<error-kind>: <spec>[/<template>][:<file>:<line>]: <reason>"
// message form without the caller having to know the taxonomy.
package errors

import (
	"fmt"
	"strings"
)

// Kind identifies one of the fixed error categories the core can raise.
type Kind string

const (
	KindConfigurationInvalid  Kind = "ConfigurationInvalid"
	KindSchemaError           Kind = "SchemaError"
	KindBaseTemplateMissing   Kind = "BaseTemplateMissing"
	KindPatternNotFound       Kind = "PatternNotFound"
	KindLibraryManifestMissing Kind = "LibraryManifestMissing"
	KindLibraryIncompatible   Kind = "LibraryIncompatible"
	KindVariableCycle         Kind = "VariableCycle"
	KindIoError               Kind = "IoError"
	KindCancelled             Kind = "Cancelled"
)

// Recoverable reports whether errors of this kind are non-fatal by
// default (the caller may still choose to treat them as fatal).
func (k Kind) Recoverable() bool {
	return k == KindPatternNotFound
}

// Source pinpoints where in a descriptor file an error originated.
type Source struct {
	File string
	Line int
}

func (s Source) String() string {
	if s.File == "" {
		return ""
	}
	if s.Line > 0 {
		return fmt.Sprintf("%s:%d", s.File, s.Line)
	}
	return s.File
}

// CoreError is the single error type raised by every component in the
// core. Fields beyond Kind and Reason are filled in as context becomes
// available while the error propagates.
type CoreError struct {
	Kind        Kind
	Spec        string
	Template    string
	Source      Source
	Reason      string
	Cause       error
	Recoverable bool
}

// New constructs a CoreError of the given kind with a formatted reason.
func New(kind Kind, format string, args ...any) *CoreError {
	return &CoreError{
		Kind:        kind,
		Reason:      fmt.Sprintf(format, args...),
		Recoverable: kind.Recoverable(),
	}
}

// Wrap constructs a CoreError of the given kind wrapping an underlying
// cause.
func Wrap(kind Kind, cause error, format string, args ...any) *CoreError {
	e := New(kind, format, args...)
	e.Cause = cause
	return e
}

// WithSpec returns a copy of e annotated with the spec name.
func (e *CoreError) WithSpec(spec string) *CoreError {
	c := *e
	c.Spec = spec
	return &c
}

// WithTemplate returns a copy of e annotated with the template's logical
// name.
func (e *CoreError) WithTemplate(template string) *CoreError {
	c := *e
	c.Template = template
	return &c
}

// WithSource returns a copy of e annotated with file/line provenance.
func (e *CoreError) WithSource(file string, line int) *CoreError {
	c := *e
	c.Source = Source{File: file, Line: line}
	return &c
}

func (e *CoreError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	if e.Spec != "" {
		b.WriteString(e.Spec)
		if e.Template != "" {
			b.WriteString("/")
			b.WriteString(e.Template)
		}
	} else if e.Template != "" {
		b.WriteString(e.Template)
	}
	if src := e.Source.String(); src != "" {
		if e.Spec != "" || e.Template != "" {
			b.WriteString(":")
		}
		b.WriteString(src)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

func (e *CoreError) Unwrap() error {
	return e.Cause
}

// IsKind reports whether err is a *CoreError of the given kind.
func IsKind(err error, kind Kind) bool {
	ce, ok := err.(*CoreError)
	return ok && ce.Kind == kind
}

// Accumulator collects multiple CoreErrors so a validator can report every
// violation in one pass instead of stopping at the first one.
type Accumulator struct {
	errs []*CoreError
}

// Add appends err to the accumulator if it is non-nil.
func (a *Accumulator) Add(err *CoreError) {
	if err != nil {
		a.errs = append(a.errs, err)
	}
}

// HasErrors reports whether any error was accumulated.
func (a *Accumulator) HasErrors() bool {
	return len(a.errs) > 0
}

// Errors returns the accumulated errors in the order they were added.
func (a *Accumulator) Errors() []*CoreError {
	return a.errs
}

// Err returns a single *CoreError of kind ConfigurationInvalid whose
// reason lists every accumulated message, or nil if none were added.
func (a *Accumulator) Err() error {
	if len(a.errs) == 0 {
		return nil
	}
	msgs := make([]string, len(a.errs))
	for i, e := range a.errs {
		msgs[i] = e.Error()
	}
	return New(KindConfigurationInvalid, "%d validation error(s):\n  - %s",
		len(a.errs), strings.Join(msgs, "\n  - "))
}
