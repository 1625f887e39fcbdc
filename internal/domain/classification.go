package domain

import "github.com/google/uuid"

// ClassificationSystem describes one classification system known to the host.
type ClassificationSystem struct {
	GUID        uuid.UUID `json:"guid"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Source      string    `json:"source"`
	Version     string    `json:"version"`
	Date        string    `json:"date"`
}

// ClassificationNode is one node of the classification tree as reported by the host.
type ClassificationNode struct {
	GUID        uuid.UUID
	ID          string
	Name        string
	Description string
	Children    []ClassificationNode
}

// ClassificationItem is a taxonomy node after flattening. ParentGUID, Depth and
// Position keep the hierarchy recoverable once tree edges are dropped.
type ClassificationItem struct {
	GUID        uuid.UUID  `json:"guid"`
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	ParentGUID  *uuid.UUID `json:"parent_guid,omitempty"`
	Depth       int        `json:"depth"`
	Position    int        `json:"position"`
}

// ClassificationAssignment is one classification reported for an element.
// ItemGUID is uuid.Nil when the element carries no item in the system.
type ClassificationAssignment struct {
	SystemGUID uuid.UUID
	ItemGUID   uuid.UUID
}
