package osmgraph

import (
	"errors"
	"fmt"
)

// Kind classifies graph errors. Every kind except MalformedInput (when the
// caller opts into ignoring invalid tags) aborts the run.
type Kind uint8

const (
	KindReferential Kind = iota + 1
	KindModification
	KindConsolidation
	KindSimplification
	KindMalformedInput
	KindConfiguration
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindReferential:
		return "referential integrity"
	case KindModification:
		return "graph modification"
	case KindConsolidation:
		return "graph consolidation"
	case KindSimplification:
		return "graph simplification"
	case KindMalformedInput:
		return "invalid osm data"
	case KindConfiguration:
		return "configuration"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the error type returned by graph operations
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors by kind, so errors.Is(err, ErrReferential)
// holds for any referential error regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is checks
var (
	ErrReferential    = &Error{Kind: KindReferential}
	ErrModification   = &Error{Kind: KindModification}
	ErrConsolidation  = &Error{Kind: KindConsolidation}
	ErrSimplification = &Error{Kind: KindSimplification}
	ErrMalformedInput = &Error{Kind: KindMalformedInput}
	ErrConfiguration  = &Error{Kind: KindConfiguration}
	ErrInternal       = &Error{Kind: KindInternal}
)

// Errorf builds an Error of the given kind
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a new Error of the given kind
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first Error in err's chain, or zero.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return 0
}

func missingNode(id NodeID) *Error {
	return Errorf(KindReferential, "node %d missing from graph", id)
}

func missingPair(src, dst NodeID) *Error {
	return Errorf(KindReferential, "no ways found for pair (%d)->(%d)", src, dst)
}
