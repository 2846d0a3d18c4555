package model

import "time"

// OrphanData is an identifier captured but not yet attached to any entity.
// It transitions to Linked when attached and is otherwise never mutated.
type OrphanData struct {
	ID             string            `json:"id"`
	Project        string            `json:"project"`
	Identifier     Identifier        `json:"identifier"`
	Provenance     Provenance        `json:"provenance"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Linked         bool              `json:"linked"`
	LinkedEntityID string            `json:"linked_entity_id,omitempty"`
	LinkedAt       *time.Time        `json:"linked_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}
