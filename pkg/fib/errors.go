package fib

import (
	"errors"
	"fmt"

	"github.com/openfib/fibcore/pkg/fib/attr"
)

// Status enumerates the shared status codes used at both the north-bound
// object API and the south-bound NPU driver surface. The
// "0+i" families (InvalidAttribute0, InvalidAttrValue0, UnknownAttribute0)
// are base codes — the offending attribute's index is carried separately in
// Error.AttrIndex rather than folded into the status arithmetically, since Go
// has no reason to repeat the C "enum + index" overflow trick the original
// surface uses.
type Status int

const (
	StatusOK Status = iota
	StatusInvalidParameter
	StatusInvalidAttribute0
	StatusInvalidAttrValue0
	StatusUnknownAttribute0
	StatusMandatoryAttributeMissing
	StatusInvalidObjectType
	StatusInvalidObjectId
	StatusItemNotFound
	StatusItemAlreadyExists
	StatusObjectInUse
	StatusInsufficientResources
	StatusNoMemory
	StatusTableFull
	StatusFailure
	StatusNotImplemented
	StatusNotSupported
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusInvalidParameter:
		return "invalid-parameter"
	case StatusInvalidAttribute0:
		return "invalid-attribute"
	case StatusInvalidAttrValue0:
		return "invalid-attr-value"
	case StatusUnknownAttribute0:
		return "unknown-attribute"
	case StatusMandatoryAttributeMissing:
		return "mandatory-attribute-missing"
	case StatusInvalidObjectType:
		return "invalid-object-type"
	case StatusInvalidObjectId:
		return "invalid-object-id"
	case StatusItemNotFound:
		return "item-not-found"
	case StatusItemAlreadyExists:
		return "item-already-exists"
	case StatusObjectInUse:
		return "object-in-use"
	case StatusInsufficientResources:
		return "insufficient-resources"
	case StatusNoMemory:
		return "no-memory"
	case StatusTableFull:
		return "table-full"
	case StatusFailure:
		return "failure"
	case StatusNotImplemented:
		return "not-implemented"
	case StatusNotSupported:
		return "not-supported"
	default:
		return "unknown-status"
	}
}

// Sentinel errors so callers can match with errors.Is(err, fib.ErrItemNotFound)
// without inspecting *Error fields, pairing package-level sentinels with a
// richer typed error underneath.
var (
	ErrInvalidParameter           = errors.New(StatusInvalidParameter.String())
	ErrInvalidAttribute           = errors.New(StatusInvalidAttribute0.String())
	ErrInvalidAttrValue           = errors.New(StatusInvalidAttrValue0.String())
	ErrUnknownAttribute           = errors.New(StatusUnknownAttribute0.String())
	ErrMandatoryAttributeMissing  = errors.New(StatusMandatoryAttributeMissing.String())
	ErrInvalidObjectType          = errors.New(StatusInvalidObjectType.String())
	ErrInvalidObjectId            = errors.New(StatusInvalidObjectId.String())
	ErrItemNotFound               = errors.New(StatusItemNotFound.String())
	ErrItemAlreadyExists          = errors.New(StatusItemAlreadyExists.String())
	ErrObjectInUse                = errors.New(StatusObjectInUse.String())
	ErrInsufficientResources      = errors.New(StatusInsufficientResources.String())
	ErrNoMemory                   = errors.New(StatusNoMemory.String())
	ErrTableFull                  = errors.New(StatusTableFull.String())
	ErrFailure                    = errors.New(StatusFailure.String())
	ErrNotImplemented             = errors.New(StatusNotImplemented.String())
	ErrNotSupported               = errors.New(StatusNotSupported.String())
)

var sentinels = map[Status]error{
	StatusInvalidParameter:          ErrInvalidParameter,
	StatusInvalidAttribute0:         ErrInvalidAttribute,
	StatusInvalidAttrValue0:         ErrInvalidAttrValue,
	StatusUnknownAttribute0:         ErrUnknownAttribute,
	StatusMandatoryAttributeMissing: ErrMandatoryAttributeMissing,
	StatusInvalidObjectType:         ErrInvalidObjectType,
	StatusInvalidObjectId:           ErrInvalidObjectId,
	StatusItemNotFound:              ErrItemNotFound,
	StatusItemAlreadyExists:         ErrItemAlreadyExists,
	StatusObjectInUse:               ErrObjectInUse,
	StatusInsufficientResources:     ErrInsufficientResources,
	StatusNoMemory:                  ErrNoMemory,
	StatusTableFull:                 ErrTableFull,
	StatusFailure:                   ErrFailure,
	StatusNotImplemented:            ErrNotImplemented,
	StatusNotSupported:              ErrNotSupported,
}

// Error is the structured error returned by every fib operation: a status
// code, the attribute index it applies to (-1 when not attribute-scoped),
// and a human-readable detail string.
type Error struct {
	Status    Status
	AttrIndex int
	Detail    string
}

func (e *Error) Error() string {
	if e.AttrIndex >= 0 {
		return fmt.Sprintf("%s (attr %d): %s", e.Status, e.AttrIndex, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Status, e.Detail)
}

func (e *Error) Unwrap() error {
	if s, ok := sentinels[e.Status]; ok {
		return s
	}
	return nil
}

func newError(status Status, format string, args ...interface{}) *Error {
	return &Error{Status: status, AttrIndex: -1, Detail: fmt.Sprintf(format, args...)}
}

func newAttrError(status Status, index int, format string, args ...interface{}) *Error {
	return &Error{Status: status, AttrIndex: index, Detail: fmt.Sprintf(format, args...)}
}

// wrapValidation converts an attr.Validate failure into the fib error
// taxonomy. attr.Error's Code space is a validation-only subset of Status;
// every other Status in this package arises only once validation has
// already passed.
func wrapValidation(err error) error {
	if err == nil {
		return nil
	}
	ae, ok := err.(*attr.Error)
	if !ok {
		return newError(StatusInvalidParameter, "%s", err)
	}
	switch ae.Code {
	case attr.CodeDuplicateAttribute, attr.CodeUnknownAttribute:
		return newAttrError(StatusInvalidAttribute0, ae.Index, "%s", ae.Msg)
	case attr.CodeInvalidAttrValue:
		return newAttrError(StatusInvalidAttrValue0, ae.Index, "%s", ae.Msg)
	case attr.CodeMandatoryAttributeMissing, attr.CodeCreateOnlyAttributeMissing:
		return newAttrError(StatusMandatoryAttributeMissing, ae.Index, "%s", ae.Msg)
	case attr.CodeNotSettable, attr.CodeNotGettable:
		return newAttrError(StatusInvalidAttribute0, ae.Index, "%s", ae.Msg)
	default:
		return newError(StatusInvalidParameter, "%s", ae.Msg)
	}
}
