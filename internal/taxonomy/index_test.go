package taxonomy

import (
	"testing"

	"github.com/google/uuid"
	"github.com/rpattn/classcheck/internal/domain"
)

func TestIndexLookup(t *testing.T) {
	items, err := Flatten([]domain.ClassificationNode{node("A", node("A1")), node("B")})
	if err != nil {
		t.Fatalf("flatten returned error: %v", err)
	}

	idx := NewIndex(items)
	if idx.Len() != 3 {
		t.Fatalf("expected 3 indexed items, got %d", idx.Len())
	}

	for _, item := range items {
		found, ok := idx.Lookup(item.GUID)
		if !ok {
			t.Fatalf("expected %s to be found", item.ID)
		}
		if found.ID != item.ID {
			t.Fatalf("expected %s, got %s", item.ID, found.ID)
		}
	}

	if _, ok := idx.Lookup(uuid.New()); ok {
		t.Fatalf("expected unknown guid to miss")
	}
}

func TestIndexFirstItemWins(t *testing.T) {
	guid := uuid.New()
	idx := NewIndex([]domain.ClassificationItem{
		{GUID: guid, ID: "first"},
		{GUID: guid, ID: "second"},
	})

	found, ok := idx.Lookup(guid)
	if !ok || found.ID != "first" {
		t.Fatalf("expected first item, got %+v (found=%v)", found, ok)
	}
}

func TestNilIndex(t *testing.T) {
	var idx *Index
	if _, ok := idx.Lookup(uuid.New()); ok {
		t.Fatalf("expected nil index lookup to miss")
	}
	if idx.Len() != 0 {
		t.Fatalf("expected nil index to be empty")
	}
}
