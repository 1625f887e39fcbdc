package domain

import "github.com/google/uuid"

// UnclassifiedLabel is stored as the classification label of elements that have no
// resolvable classification item.
const UnclassifiedLabel = "Unclassified"

// Element is one correlated model element, ready to be written to the snapshot table.
type Element struct {
	GUID                     uuid.UUID  `json:"guid"`
	ID                       string     `json:"id"`
	Type                     string     `json:"type"`
	ClassificationLabel      string     `json:"classification_label"`
	ClassificationGUID       *uuid.UUID `json:"classification_guid,omitempty"`
	ClassificationSystemGUID *uuid.UUID `json:"classification_system_guid,omitempty"`
}

// IsClassified reports whether the element resolved to a classification item.
func (e Element) IsClassified() bool {
	return e.ClassificationGUID != nil
}

// Snapshot is the full replacement data set written in one run.
type Snapshot struct {
	Elements []Element
	Items    []ClassificationItem
}
