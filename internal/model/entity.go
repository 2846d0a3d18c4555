package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// EntityType classifies an entity.
type EntityType string

// Entity types.
const (
	EntityPerson       EntityType = "person"
	EntityOrganization EntityType = "organization"
	EntityDevice       EntityType = "device"
	EntityOther        EntityType = "other"
)

// ParseEntityType parses an entity type name. Empty input maps to EntityOther.
func ParseEntityType(s string) (EntityType, error) {
	switch t := EntityType(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return EntityOther, nil
	case EntityPerson, EntityOrganization, EntityDevice, EntityOther:
		return t, nil
	default:
		return "", eris.Errorf("model: unknown entity type %q", s)
	}
}

// Entity is a person, organization or device with typed fields. Its ID is
// immutable and unique within a project; merged entities retire their ID.
type Entity struct {
	ID         string                  `json:"id"`
	Project    string                  `json:"project"`
	Type       EntityType              `json:"entity_type"`
	Fields     Fields                  `json:"fields"`
	Provenance map[string][]Provenance `json:"provenance,omitempty"`
	Version    int64                   `json:"version"`
	CreatedAt  time.Time               `json:"created_at"`
	UpdatedAt  time.Time               `json:"updated_at"`
}

// Field resolves a dotted field path.
func (e *Entity) Field(path string) (FieldValue, bool) {
	if e == nil || e.Fields == nil {
		return FieldValue{}, false
	}
	return e.Fields.Lookup(path)
}

// AddProvenance records where the value at path came from.
func (e *Entity) AddProvenance(path string, p ...Provenance) {
	if len(p) == 0 {
		return
	}
	if e.Provenance == nil {
		e.Provenance = make(map[string][]Provenance)
	}
	e.Provenance[path] = append(e.Provenance[path], p...)
}

// Relationship is a typed edge between two entities.
type Relationship struct {
	ID        string    `json:"id"`
	FromID    string    `json:"from_id"`
	ToID      string    `json:"to_id"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// Data ref types.
const (
	RefEntity = "entity"
	RefOrphan = "orphan"
)

// DataRef addresses a linkable data item: an entity field value or an orphan.
// Its string form is "entity:<id>#<field_path>" or "orphan:<id>".
type DataRef struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	FieldPath string `json:"field_path,omitempty"`
}

func (r DataRef) String() string {
	if r.FieldPath == "" {
		return r.Type + ":" + r.ID
	}
	return r.Type + ":" + r.ID + "#" + r.FieldPath
}

// ParseDataRef parses the string form of a DataRef.
func ParseDataRef(s string) (DataRef, error) {
	typ, rest, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || rest == "" {
		return DataRef{}, eris.Errorf("model: malformed data ref %q", s)
	}
	id, path, _ := strings.Cut(rest, "#")
	switch typ {
	case RefEntity:
	case RefOrphan:
		if path != "" {
			return DataRef{}, eris.Errorf("model: orphan ref %q cannot carry a field path", s)
		}
	default:
		return DataRef{}, eris.Errorf("model: unknown data ref type %q", typ)
	}
	if id == "" {
		return DataRef{}, eris.Errorf("model: data ref %q has no id", s)
	}
	return DataRef{Type: typ, ID: id, FieldPath: path}, nil
}

// DataLink is a bidirectional association between two data items that does
// not merge ownership.
type DataLink struct {
	ID        string    `json:"id"`
	ItemA     DataRef   `json:"item_a"`
	ItemB     DataRef   `json:"item_b"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// Audit actions.
const (
	AuditLinkItems  = "link_data_items"
	AuditMerge      = "merge_entities"
	AuditLinkOrphan = "link_orphan_to_entity"
	AuditDismiss    = "dismiss_suggestion"
	AuditAccept     = "accept_suggestion"
)

// AuditEntry records a human decision and the reason given for it.
type AuditEntry struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	SubjectID string    `json:"subject_id"`
	ObjectID  string    `json:"object_id"`
	Reason    string    `json:"reason"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
