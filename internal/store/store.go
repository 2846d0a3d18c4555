// Package store persists entities, orphan data and the human decisions made
// about them. Two drivers are provided: SQLite for single-analyst use and
// Postgres for shared deployments.
package store

import (
	"context"
	"time"

	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/model"
)

// Filter narrows a candidate listing.
type Filter struct {
	EntityTypes []model.EntityType `json:"entity_types,omitempty"`
	ExcludeIDs  []string           `json:"exclude_ids,omitempty"`
	Limit       int                `json:"limit,omitempty"`
}

// CandidateStore is the read-only view the matching engine and suggestion
// service need.
type CandidateStore interface {
	GetEntity(ctx context.Context, id string) (*model.Entity, error)
	ListEntities(ctx context.Context, project string, filter *Filter) ([]*model.Entity, error)
	GetField(ctx context.Context, entityID, path string) (model.FieldValue, error)
}

// Store defines the persistence interface for entities, orphans and the
// linking workflow.
type Store interface {
	CandidateStore

	// Entities
	CreateEntity(ctx context.Context, e *model.Entity) error
	UpdateEntity(ctx context.Context, e *model.Entity) error
	DeleteEntity(ctx context.Context, id string) error
	IsRetired(ctx context.Context, id string) (bool, error)
	ImportEntities(ctx context.Context, entities []*model.Entity, replace bool) (int64, error)

	// Orphans
	CreateOrphan(ctx context.Context, o *model.OrphanData) error
	GetOrphan(ctx context.Context, id string) (*model.OrphanData, error)
	ListOrphans(ctx context.Context, project string, linked *bool) ([]*model.OrphanData, error)

	// Relationships and links
	CreateRelationship(ctx context.Context, r *model.Relationship) error
	ListRelationships(ctx context.Context, entityID string) ([]model.Relationship, error)
	ListDataLinks(ctx context.Context, itemID string) ([]model.DataLink, error)

	// Suggestion workflow
	SaveDecision(ctx context.Context, d model.Decision) error
	// ListDecisions returns the decisions on every pair id belongs to, on
	// either side, oldest first.
	ListDecisions(ctx context.Context, id string) ([]model.Decision, error)
	ListAudit(ctx context.Context, subjectID string) ([]model.AuditEntry, error)

	// RunInTx runs fn in a single transaction, committing when fn returns nil.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// Tx is the write surface of a linking transaction. Reads through Tx lock the
// returned rows until the transaction ends.
type Tx interface {
	GetEntityForUpdate(ctx context.Context, id string) (*model.Entity, error)
	UpdateEntity(ctx context.Context, e *model.Entity) error
	RetireEntity(ctx context.Context, id, mergedInto string) error
	RepointRelationships(ctx context.Context, fromID, toID string) (int64, error)
	GetOrphanForUpdate(ctx context.Context, id string) (*model.OrphanData, error)
	MarkOrphanLinked(ctx context.Context, orphanID, entityID string, at time.Time) error
	DeleteOrphan(ctx context.Context, id string) error
	CreateDataLink(ctx context.Context, l *model.DataLink) error
	SaveDecision(ctx context.Context, d model.Decision) error
	AppendAudit(ctx context.Context, a *model.AuditEntry) error
}
