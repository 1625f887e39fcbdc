package taxonomy

import (
	"github.com/google/uuid"
	"github.com/rpattn/classcheck/internal/domain"
)

// Index resolves flattened classification items by GUID.
type Index struct {
	items  []domain.ClassificationItem
	byGUID map[uuid.UUID]int
}

// NewIndex builds an index over items. When a GUID repeats, the first item wins, which
// matches a linear scan over the flattened list.
func NewIndex(items []domain.ClassificationItem) *Index {
	idx := &Index{
		items:  items,
		byGUID: make(map[uuid.UUID]int, len(items)),
	}
	for i, item := range items {
		if _, ok := idx.byGUID[item.GUID]; !ok {
			idx.byGUID[item.GUID] = i
		}
	}
	return idx
}

// Lookup returns the item with the given GUID.
func (idx *Index) Lookup(guid uuid.UUID) (domain.ClassificationItem, bool) {
	if idx == nil {
		return domain.ClassificationItem{}, false
	}
	pos, ok := idx.byGUID[guid]
	if !ok {
		return domain.ClassificationItem{}, false
	}
	return idx.items[pos], true
}

// Len returns the number of indexed items.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.items)
}

// Items returns the flattened items in pre-order.
func (idx *Index) Items() []domain.ClassificationItem {
	if idx == nil {
		return nil
	}
	return idx.items
}
