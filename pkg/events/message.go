// Package events publishes notifications about imported content so that
// downstream consumers such as search indexers can pick it up.
package events

import (
	"fmt"
	"time"

	"github.com/hashicorp-forge/hermes-import/pkg/docid"
)

// EventType identifies the kind of event.
type EventType string

const (
	// EventTypePagesCreated is emitted once per successful import.
	EventTypePagesCreated EventType = "pages.created"
)

// PagesCreated announces pages that were durably committed by one import.
type PagesCreated struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	SpaceID     string    `json:"spaceId"`
	WorkspaceID string    `json:"workspaceId"`
	PageIDs     []string  `json:"pageIds"`
}

// NewPagesCreated builds a pages.created event.
func NewPagesCreated(spaceID, workspaceID string, pageIDs []string) *PagesCreated {
	ids := make([]string, len(pageIDs))
	copy(ids, pageIDs)
	return &PagesCreated{
		ID:          docid.NewUUID().String(),
		Type:        EventTypePagesCreated,
		Timestamp:   time.Now().UTC(),
		SpaceID:     spaceID,
		WorkspaceID: workspaceID,
		PageIDs:     ids,
	}
}

// PartitionKey keeps events about one space on one partition so that they
// are consumed in order.
func (e *PagesCreated) PartitionKey() string {
	if e.SpaceID != "" {
		return fmt.Sprintf("space:%s", e.SpaceID)
	}
	return e.ID
}
