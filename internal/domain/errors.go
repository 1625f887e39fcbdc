package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrClassificationSystemNotFound is returned when the configured system name is unknown to the host.
	ErrClassificationSystemNotFound = errors.New("classification system not found")
	// ErrUnresolvedProperty is returned when a wanted property name has no BuiltIn definition.
	ErrUnresolvedProperty = errors.New("unresolved property")
	// ErrMalformedClassification is returned for taxonomy nodes missing required fields.
	ErrMalformedClassification = errors.New("malformed classification item")
	// ErrDuplicateClassification is returned when a taxonomy GUID is reached twice.
	ErrDuplicateClassification = errors.New("duplicate classification item")
	// ErrUnresolvedClassification is returned when an assignment points to an unknown item
	// and the unresolved policy is strict.
	ErrUnresolvedClassification = errors.New("unresolved classification item")
	// ErrLengthMismatch is returned when parallel collections differ in length.
	ErrLengthMismatch = errors.New("collection length mismatch")
	// ErrDuplicateElement is returned when the host reports the same element twice.
	ErrDuplicateElement = errors.New("duplicate element")
	// ErrShortPropertyRow is returned when a property row has fewer values than requested.
	ErrShortPropertyRow = errors.New("property row too short")
)

// ErrorKind classifies why a run stopped.
type ErrorKind string

const (
	KindConfiguration     ErrorKind = "configuration"
	KindHost              ErrorKind = "host"
	KindDataInconsistency ErrorKind = "data_inconsistency"
	KindTaxonomy          ErrorKind = "taxonomy"
	KindStorage           ErrorKind = "storage"
)

// Stage names one step of a run.
type Stage string

const (
	StageConnect        Stage = "connect"
	StageElements       Stage = "elements"
	StageProperties     Stage = "properties"
	StageClassification Stage = "classification"
	StageTaxonomy       Stage = "taxonomy"
	StageCorrelation    Stage = "correlation"
	StageSnapshot       Stage = "snapshot"
)

// StageError is the failure result of one stage.
type StageError struct {
	Stage Stage
	Kind  ErrorKind
	Err   error
}

// NewStageError wraps err with its stage and kind.
func NewStageError(stage Stage, kind ErrorKind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first StageError in err's chain, or "" when there is none.
func KindOf(err error) ErrorKind {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Kind
	}
	return ""
}

// InconsistencyError reports parallel collections whose sizes disagree.
type InconsistencyError struct {
	Elements       int
	PropertyRows   int
	Classification int
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("%v: elements=%d, property rows=%d, classification rows=%d",
		ErrLengthMismatch, e.Elements, e.PropertyRows, e.Classification)
}

func (e *InconsistencyError) Unwrap() error {
	return ErrLengthMismatch
}
