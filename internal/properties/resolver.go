// Package properties maps configured property names onto positions in the host's
// property definition list.
package properties

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rpattn/classcheck/internal/domain"
)

// UnresolvedError lists every wanted property name without a BuiltIn definition.
type UnresolvedError struct {
	Names []string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("%v: %s", domain.ErrUnresolvedProperty, strings.Join(e.Names, ", "))
}

func (e *UnresolvedError) Unwrap() error {
	return domain.ErrUnresolvedProperty
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	// Subset holds the BuiltIn definitions named in the wanted list, in host order.
	// Property ids and values are requested for this subset.
	Subset []domain.PropertyDefinition
	// Indices[k] is the position in Subset of the k-th wanted name.
	Indices []int
}

// Index returns the subset position for the k-th wanted name.
func (r Resolution) Index(k int) int {
	return r.Indices[k]
}

// Resolve filters defs down to BuiltIn definitions named in wanted and returns the
// position of each wanted name within that subset. Output order follows wanted.
func Resolve(defs []domain.PropertyDefinition, wanted []string) (Resolution, error) {
	if len(wanted) == 0 {
		return Resolution{}, errors.New("no property names requested")
	}

	wantedSet := make(map[string]struct{}, len(wanted))
	for _, name := range wanted {
		wantedSet[name] = struct{}{}
	}

	subset := make([]domain.PropertyDefinition, 0, len(wanted))
	firstPos := make(map[string]int, len(wanted))
	for _, def := range defs {
		if def.Type != domain.PropertyTypeBuiltIn {
			continue
		}
		if _, ok := wantedSet[def.NonLocalizedName]; !ok {
			continue
		}
		if _, ok := firstPos[def.NonLocalizedName]; !ok {
			firstPos[def.NonLocalizedName] = len(subset)
		}
		subset = append(subset, def)
	}

	indices := make([]int, len(wanted))
	var missing []string
	for k, name := range wanted {
		pos, ok := firstPos[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		indices[k] = pos
	}
	if len(missing) > 0 {
		return Resolution{}, &UnresolvedError{Names: missing}
	}

	return Resolution{Subset: subset, Indices: indices}, nil
}
