// Package correlate joins elements, their property values and their classification
// assignments into snapshot records.
package correlate

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/rpattn/classcheck/internal/domain"
	"github.com/rpattn/classcheck/internal/taxonomy"
)

// UnresolvedPolicy decides what happens when an assignment names an item that is not
// part of the flattened taxonomy.
type UnresolvedPolicy string

const (
	// PolicyFallback labels the element Unclassified and continues.
	PolicyFallback UnresolvedPolicy = "fallback"
	// PolicyError aborts correlation.
	PolicyError UnresolvedPolicy = "error"
)

// ParsePolicy converts a configured value into a policy.
func ParsePolicy(value string) (UnresolvedPolicy, error) {
	switch UnresolvedPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", PolicyFallback:
		return PolicyFallback, nil
	case PolicyError:
		return PolicyError, nil
	default:
		return "", fmt.Errorf("unknown unresolved policy %q (want %q or %q)", value, PolicyFallback, PolicyError)
	}
}

// UnresolvedError reports an assignment whose item is missing from the taxonomy.
type UnresolvedError struct {
	ElementGUID uuid.UUID
	ItemGUID    uuid.UUID
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("%v: element %s references item %s", domain.ErrUnresolvedClassification, e.ElementGUID, e.ItemGUID)
}

func (e *UnresolvedError) Unwrap() error {
	return domain.ErrUnresolvedClassification
}

// Input holds the three parallel collections. Position i of each slice must describe
// the same element.
type Input struct {
	Elements     []uuid.UUID
	PropertyRows []domain.PropertyRow
	Assignments  [][]domain.ClassificationAssignment
}

// Result is the outcome of a correlation.
type Result struct {
	Elements     []domain.Element
	Classified   int
	Unclassified int
	// Unresolved counts elements whose assignment pointed outside the taxonomy.
	Unresolved int
	// MultiAssigned counts elements that reported more than one assignment; only the
	// first one is used.
	MultiAssigned int
}

// Correlator builds snapshot records.
type Correlator struct {
	index     *taxonomy.Index
	idIndex   int
	typeIndex int
	policy    UnresolvedPolicy
	logger    *slog.Logger
}

// Option customises a Correlator.
type Option func(*Correlator)

// WithPolicy sets the unresolved-item policy.
func WithPolicy(policy UnresolvedPolicy) Option {
	return func(c *Correlator) {
		if policy != "" {
			c.policy = policy
		}
	}
}

// WithLogger sets the logger used for per-element diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Correlator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a correlator. idIndex and typeIndex are positions inside each property row.
func New(index *taxonomy.Index, idIndex, typeIndex int, opts ...Option) *Correlator {
	c := &Correlator{
		index:     index,
		idIndex:   idIndex,
		typeIndex: typeIndex,
		policy:    PolicyFallback,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Correlate produces exactly one element per input position.
func (c *Correlator) Correlate(in Input) (Result, error) {
	if len(in.PropertyRows) != len(in.Elements) || len(in.Assignments) != len(in.Elements) {
		return Result{}, &domain.InconsistencyError{
			Elements:       len(in.Elements),
			PropertyRows:   len(in.PropertyRows),
			Classification: len(in.Assignments),
		}
	}

	result := Result{Elements: make([]domain.Element, 0, len(in.Elements))}
	seen := make(map[uuid.UUID]int, len(in.Elements))

	for i, guid := range in.Elements {
		if prev, dup := seen[guid]; dup {
			return Result{}, fmt.Errorf("%w: %s at positions %d and %d", domain.ErrDuplicateElement, guid, prev, i)
		}
		seen[guid] = i

		id, err := c.value(in.PropertyRows[i], c.idIndex)
		if err != nil {
			return Result{}, fmt.Errorf("element %s: %w", guid, err)
		}
		elemType, err := c.value(in.PropertyRows[i], c.typeIndex)
		if err != nil {
			return Result{}, fmt.Errorf("element %s: %w", guid, err)
		}

		element := domain.Element{
			GUID:                guid,
			ID:                  id,
			Type:                elemType,
			ClassificationLabel: domain.UnclassifiedLabel,
		}

		assignments := in.Assignments[i]
		if len(assignments) > 1 {
			result.MultiAssigned++
		}
		if len(assignments) > 0 {
			first := assignments[0]
			if first.SystemGUID != uuid.Nil {
				system := first.SystemGUID
				element.ClassificationSystemGUID = &system
			}

			if first.ItemGUID != uuid.Nil {
				item, found := c.index.Lookup(first.ItemGUID)
				switch {
				case found:
					itemGUID := item.GUID
					element.ClassificationLabel = item.ID
					element.ClassificationGUID = &itemGUID
				case c.policy == PolicyError:
					return Result{}, &UnresolvedError{ElementGUID: guid, ItemGUID: first.ItemGUID}
				default:
					result.Unresolved++
					c.logger.Debug("classification item not in taxonomy",
						"element", guid,
						"item", first.ItemGUID,
					)
				}
			}
		}

		if element.IsClassified() {
			result.Classified++
		} else {
			result.Unclassified++
		}
		result.Elements = append(result.Elements, element)
	}

	return result, nil
}

func (c *Correlator) value(row domain.PropertyRow, index int) (string, error) {
	if index < 0 || index >= len(row.Values) {
		return "", fmt.Errorf("%w: need index %d, row has %d values", domain.ErrShortPropertyRow, index, len(row.Values))
	}
	return row.Values[index].Value, nil
}
