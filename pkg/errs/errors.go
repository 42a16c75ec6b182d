// Package errs provides the unified error type used across all of schemanyd.
//
// Every component (schema builder, mapping resolver, path resolver, autotrace
// engine, storage executors) wraps its failures into *errs.Error before
// returning them. Callers use the Is* predicates to react to a failure class
// without string matching.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorises a failure. The kinds mirror the error taxonomy of the
// system: build-time schema errors, mapping errors, path errors, run-structural
// errors, and row-level errors.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnsupportedSchema     // no converter registered for the schema format
	KindCompositeKey          // multi-column foreign key encountered at build
	KindUnknownTable          // mapping references a table absent from the graph
	KindUnknownColumn         // mapping references a column absent from its table
	KindAmbiguousTarget       // more than one relation could serve a mapping entry
	KindMissingTables         // required tables absent from the graph
	KindUnreachableTarget     // no relation path between two tables
	KindAmbiguousPath         // several shortest relation paths of equal length
	KindCyclicDependency      // mapped tables form a foreign-key cycle
	KindMissingRequiredColumn // NOT NULL column never populated for a row
	KindInsufficientIdentity  // no uniqueness constraint covered by mapped columns
	KindCancelled             // run aborted by the caller's context
	KindStorage               // storage executor failure
	KindInvalidInput          // malformed caller input, e.g. a bad target string
)

func (k Kind) String() string {
	switch k {
	case KindUnsupportedSchema:
		return "unsupported_schema_kind"
	case KindCompositeKey:
		return "composite_key_unsupported"
	case KindUnknownTable:
		return "unknown_table"
	case KindUnknownColumn:
		return "unknown_column"
	case KindAmbiguousTarget:
		return "ambiguous_target"
	case KindMissingTables:
		return "missing_tables"
	case KindUnreachableTarget:
		return "unreachable_target"
	case KindAmbiguousPath:
		return "ambiguous_path"
	case KindCyclicDependency:
		return "cyclic_or_unsatisfiable_dependency"
	case KindMissingRequiredColumn:
		return "missing_required_column"
	case KindInsufficientIdentity:
		return "insufficient_identity_columns"
	case KindCancelled:
		return "cancelled"
	case KindStorage:
		return "storage"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all schemanyd components.
// Table, Column and Row identify the offending schema element or input row
// when known; Details carries enumerations such as candidate paths or the
// full list of missing tables.
type Error struct {
	Kind    Kind
	Message string
	Table   string
	Column  string
	Row     int // input row index, -1 when not row-scoped
	Details []string
	Cause   error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", e.Kind)
	if e.Table != "" {
		fmt.Fprintf(&b, " table=%s", e.Table)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, " column=%s", e.Column)
	}
	if e.Row >= 0 {
		fmt.Fprintf(&b, " row=%d", e.Row)
	}
	fmt.Fprintf(&b, " %s", e.Message)
	if len(e.Details) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(e.Details, "; "))
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an *Error with the given kind and formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Row: -1}
}

// Wrap creates an *Error with the given kind, message, and underlying cause.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Row: -1, Cause: cause}
}

// WithTable sets the offending table name.
func (e *Error) WithTable(table string) *Error {
	e.Table = table
	return e
}

// WithColumn sets the offending column name.
func (e *Error) WithColumn(column string) *Error {
	e.Column = column
	return e
}

// WithRow sets the offending input row index.
func (e *Error) WithRow(row int) *Error {
	e.Row = row
	return e
}

// WithDetails attaches an enumeration such as candidate paths or missing names.
func (e *Error) WithDetails(details ...string) *Error {
	e.Details = append(e.Details, details...)
	return e
}

// KindOf extracts the Kind from any error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsUnsupportedSchema reports whether err is an unregistered-format failure.
func IsUnsupportedSchema(err error) bool { return KindOf(err) == KindUnsupportedSchema }

// IsCompositeKey reports whether err is a composite foreign-key rejection.
func IsCompositeKey(err error) bool { return KindOf(err) == KindCompositeKey }

// IsUnknownTable reports whether err references a table absent from the graph.
func IsUnknownTable(err error) bool { return KindOf(err) == KindUnknownTable }

// IsUnknownColumn reports whether err references a column absent from its table.
func IsUnknownColumn(err error) bool { return KindOf(err) == KindUnknownColumn }

// IsAmbiguousTarget reports whether err is a mapping ambiguity failure.
func IsAmbiguousTarget(err error) bool { return KindOf(err) == KindAmbiguousTarget }

// IsMissingTables reports whether err lists tables absent from the graph.
func IsMissingTables(err error) bool { return KindOf(err) == KindMissingTables }

// IsUnreachableTarget reports whether err is a no-path failure.
func IsUnreachableTarget(err error) bool { return KindOf(err) == KindUnreachableTarget }

// IsAmbiguousPath reports whether err enumerates tied shortest paths.
func IsAmbiguousPath(err error) bool { return KindOf(err) == KindAmbiguousPath }

// IsCyclicDependency reports whether err is an unsatisfiable-plan failure.
func IsCyclicDependency(err error) bool { return KindOf(err) == KindCyclicDependency }

// IsMissingRequiredColumn reports whether err is a NOT NULL violation.
func IsMissingRequiredColumn(err error) bool { return KindOf(err) == KindMissingRequiredColumn }

// IsInsufficientIdentity reports whether err is a strict-mode identity failure.
func IsInsufficientIdentity(err error) bool { return KindOf(err) == KindInsufficientIdentity }

// IsCancelled reports whether err was caused by context cancellation.
func IsCancelled(err error) bool { return KindOf(err) == KindCancelled }

// IsStorage reports whether err originated in a storage executor.
func IsStorage(err error) bool { return KindOf(err) == KindStorage }

// IsInvalidInput reports whether err was caused by malformed caller input.
func IsInvalidInput(err error) bool { return KindOf(err) == KindInvalidInput }
