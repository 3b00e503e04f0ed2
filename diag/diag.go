// Package diag implements the error/warning taxonomy every stage from
// lexing through linking reports into: typed error families, plus a
// side-channel Bag for warnings that never alter semantics, grounded on
// rune/src/diagnostics.rs and devcmd's pkgs/parser/errors.go
// ErrorType-enum-plus-struct pattern.
package diag

import (
	"fmt"

	"github.com/aledsdavies/weft/item"
	"github.com/aledsdavies/weft/span"
)

// ParseErrorKind enumerates lex/grammar failure categories.
type ParseErrorKind int

const (
	ParseExpectedToken ParseErrorKind = iota
	ParseUnexpectedToken
	ParseUnterminatedLiteral
	ParseBadEscape
	ParseBadSlice
	ParseInvalidAssignTarget
)

func (k ParseErrorKind) String() string {
	switch k {
	case ParseExpectedToken:
		return "expected token"
	case ParseUnexpectedToken:
		return "unexpected token"
	case ParseUnterminatedLiteral:
		return "unterminated literal"
	case ParseBadEscape:
		return "bad escape"
	case ParseBadSlice:
		return "bad slice"
	case ParseInvalidAssignTarget:
		return "invalid assignment target"
	default:
		return "parse error"
	}
}

// ParseError is {kind, span} plus a human-readable message.
type ParseError struct {
	Kind    ParseErrorKind
	Span    span.Span
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at %s: %s", e.Kind, e.Span, e.Message)
}

// CompileErrorKind enumerates semantic-lowering failures.
type CompileErrorKind int

const (
	CompileUnknownName CompileErrorKind = iota
	CompileInvalidAssignTarget
	CompileUnsupportedForm
	CompileDuplicateKey
	CompileUnregisteredType
	CompileBadPattern
	CompileMixedAwaitYield
)

func (k CompileErrorKind) String() string {
	switch k {
	case CompileUnknownName:
		return "unknown name"
	case CompileInvalidAssignTarget:
		return "invalid assignment target"
	case CompileUnsupportedForm:
		return "unsupported form"
	case CompileDuplicateKey:
		return "duplicate key"
	case CompileUnregisteredType:
		return "unregistered type"
	case CompileBadPattern:
		return "bad pattern"
	case CompileMixedAwaitYield:
		return "mixed await and yield"
	default:
		return "compile error"
	}
}

// CompileError carries a span and, for some kinds, an auxiliary span
// (e.g. the location of a prior definition for CompileDuplicateKey).
type CompileError struct {
	Kind    CompileErrorKind
	Span    span.Span
	Aux     span.Span
	HasAux  bool
	Message string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s at %s: %s", e.Kind, e.Span, e.Message)
}

// LinkerError reports unresolved Call{hash} references collected in bulk
// at link time.
type LinkerError struct {
	MissingHash  item.Hash
	MissingName  string
	Spans        []span.Span
	Suggestion   string // fuzzy-matched "did you mean" name, "" if none
}

func (e *LinkerError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("missing function %q (hash %x), referenced at %d site(s); did you mean %q?",
			e.MissingName, uint64(e.MissingHash), len(e.Spans), e.Suggestion)
	}
	return fmt.Sprintf("missing function %q (hash %x), referenced at %d site(s)",
		e.MissingName, uint64(e.MissingHash), len(e.Spans))
}

// LinkError bundles every LinkerError produced by one link pass.
type LinkError struct {
	Errors []*LinkerError
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("link failed: %d unresolved reference(s)", len(e.Errors))
}

// VmErrorKind enumerates runtime failure categories.
type VmErrorKind int

const (
	VmTypeMismatch VmErrorKind = iota
	VmOverflow
	VmStackOverflow
	VmUnexpectedVariant
	VmBorrowConflict
	VmPanic
	VmUnresolvedAwait
	VmUnexpectedValueType
	VmIndexOutOfBounds
	VmDivideByZero
)

func (k VmErrorKind) String() string {
	switch k {
	case VmTypeMismatch:
		return "type mismatch"
	case VmOverflow:
		return "integer overflow"
	case VmStackOverflow:
		return "stack overflow"
	case VmUnexpectedVariant:
		return "unexpected variant"
	case VmBorrowConflict:
		return "borrow conflict"
	case VmPanic:
		return "panic"
	case VmUnresolvedAwait:
		return "unresolved await"
	case VmUnexpectedValueType:
		return "unexpected value type"
	case VmIndexOutOfBounds:
		return "index out of bounds"
	case VmDivideByZero:
		return "divide by zero"
	default:
		return "vm error"
	}
}

// VmError is the runtime error family. The failing instruction pointer
// is optionally attached (WithIP) so an external diagnostics renderer
// can map the failure back to source; the Unit is not recorded.
type VmError struct {
	Kind    VmErrorKind
	Message string
	IP      int
	HasIP   bool
}

func (e *VmError) Error() string {
	if e.HasIP {
		return fmt.Sprintf("%s at ip=%d: %s", e.Kind, e.IP, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// WithIP returns a copy of e carrying the instruction pointer it failed
// at, for diagnostics.
func (e *VmError) WithIP(ip int) *VmError {
	cp := *e
	cp.IP = ip
	cp.HasIP = true
	return &cp
}

// ContextErrorKind enumerates host Module-installation conflicts.
type ContextErrorKind int

const (
	ContextConflictingFunction ContextErrorKind = iota
	ContextConflictingType
	ContextConflictingInstanceFn
	ContextFrozen
	ContextDuplicateModule
	ContextCapabilityMismatch
)

func (k ContextErrorKind) String() string {
	switch k {
	case ContextConflictingFunction:
		return "conflicting function"
	case ContextConflictingType:
		return "conflicting type"
	case ContextConflictingInstanceFn:
		return "conflicting instance function"
	case ContextFrozen:
		return "context frozen"
	case ContextDuplicateModule:
		return "duplicate module"
	case ContextCapabilityMismatch:
		return "capability mismatch"
	default:
		return "context error"
	}
}

type ContextError struct {
	Kind    ContextErrorKind
	Name    string
	Message string
}

func (e *ContextError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Kind, e.Name, e.Message)
}

// --- warnings ---

// WarningKind enumerates the non-fatal diagnostics the compiler can emit.
type WarningKind int

const (
	WarnNotUsed WarningKind = iota
	WarnLetPatternMightPanic
	WarnTemplateWithoutExpansions
	WarnRemoveTupleCallParams
	WarnUnnecessarySemiColon
)

func (k WarningKind) String() string {
	switch k {
	case WarnNotUsed:
		return "NotUsed"
	case WarnLetPatternMightPanic:
		return "LetPatternMightPanic"
	case WarnTemplateWithoutExpansions:
		return "TemplateWithoutExpansions"
	case WarnRemoveTupleCallParams:
		return "RemoveTupleCallParams"
	case WarnUnnecessarySemiColon:
		return "UnnecessarySemiColon"
	default:
		return "Warning"
	}
}

// Warning carries its primary span plus an optional context span (e.g.
// the whole `let` expression for LetPatternMightPanic, whose primary
// span is the pattern).
type Warning struct {
	Kind    WarningKind
	Span    span.Span
	Context span.Span
	HasCtx  bool
}

func (w Warning) String() string {
	return fmt.Sprintf("%s at %s", w.Kind, w.Span)
}

// Bag accumulates diagnostics across a compile pass without aborting it,
// mirroring rune's Diagnostics side channel.
type Bag struct {
	Warnings []Warning
	Errors   []error
}

func (b *Bag) Warn(w Warning) { b.Warnings = append(b.Warnings, w) }

func (b *Bag) Err(err error) { b.Errors = append(b.Errors, err) }

func (b *Bag) HasErrors() bool { return len(b.Errors) > 0 }
