// Package taxonomy flattens host classification trees into an ordered item list and
// indexes the result for lookup by GUID.
package taxonomy

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rpattn/classcheck/internal/domain"
)

// NodeError reports a node that could not be flattened. Path lists the codes of the
// node's ancestors followed by the node's own position.
type NodeError struct {
	Path []string
	GUID uuid.UUID
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("%v at %s (guid=%s)", e.Err, strings.Join(e.Path, " > "), e.GUID)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// trail links a node to the codes of its ancestors without copying them per level.
type trail struct {
	code string
	up   *trail
}

// frame is a pending node on the traversal stack.
type frame struct {
	node    *domain.ClassificationNode
	parent  *uuid.UUID
	depth   int
	sibling int
	up      *trail
}

func (f frame) path() []string {
	path := []string{fmt.Sprintf("#%d", f.sibling)}
	for t := f.up; t != nil; t = t.up {
		path = append(path, t.code)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Flatten returns every node of the tree in depth-first pre-order: a node precedes its
// children and siblings keep host order. The traversal uses an explicit stack, so tree
// depth is bounded only by memory.
func Flatten(roots []domain.ClassificationNode) ([]domain.ClassificationItem, error) {
	items := make([]domain.ClassificationItem, 0, len(roots))
	seen := make(map[uuid.UUID]struct{})

	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: &roots[i], sibling: i})
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := top.node

		if err := validateNode(node); err != nil {
			return nil, &NodeError{Path: top.path(), GUID: node.GUID, Err: err}
		}
		if _, dup := seen[node.GUID]; dup {
			return nil, &NodeError{Path: top.path(), GUID: node.GUID, Err: domain.ErrDuplicateClassification}
		}
		seen[node.GUID] = struct{}{}

		items = append(items, domain.ClassificationItem{
			GUID:        node.GUID,
			ID:          node.ID,
			Name:        node.Name,
			Description: node.Description,
			ParentGUID:  top.parent,
			Depth:       top.depth,
			Position:    len(items),
		})

		if len(node.Children) == 0 {
			continue
		}

		guid := node.GUID
		up := &trail{code: node.ID, up: top.up}
		for i := len(node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{
				node:    &node.Children[i],
				parent:  &guid,
				depth:   top.depth + 1,
				sibling: i,
				up:      up,
			})
		}
	}

	return items, nil
}

func validateNode(node *domain.ClassificationNode) error {
	if node.GUID == uuid.Nil {
		return fmt.Errorf("%w: missing guid", domain.ErrMalformedClassification)
	}
	if strings.TrimSpace(node.ID) == "" {
		return fmt.Errorf("%w: missing id", domain.ErrMalformedClassification)
	}
	return nil
}

// CountNodes returns the number of nodes in the tree.
func CountNodes(roots []domain.ClassificationNode) int {
	count := 0
	pending := make([]*domain.ClassificationNode, 0, len(roots))
	for i := range roots {
		pending = append(pending, &roots[i])
	}
	for len(pending) > 0 {
		node := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		count++
		for i := range node.Children {
			pending = append(pending, &node.Children[i])
		}
	}
	return count
}
