package match

import "github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/model"

// Subject is what the engine looks for owners of: one identifier (an orphan
// or an ad hoc lookup) or every identifier-bearing value of an entity.
type Subject struct {
	// ID is excluded from the candidate pool so an entity never matches
	// itself.
	ID     string
	Values []SubjectValue
}

// SubjectValue is one identifier of a subject and the field it came from.
type SubjectValue struct {
	Field      string
	Identifier model.Identifier
}

// ForIdentifier builds a subject from a single identifier.
func ForIdentifier(id string, ident model.Identifier) Subject {
	return Subject{ID: id, Values: []SubjectValue{{Identifier: ident}}}
}

// ForEntity builds a subject from every leaf value of the entity's
// identifier-bearing fields. Missing fields are skipped.
func ForEntity(e *model.Entity, p *Policy) Subject {
	s := Subject{ID: e.ID}
	for _, fs := range p.FieldsFor(e.Type) {
		v, ok := e.Field(fs.Path)
		if !ok {
			continue
		}
		for _, leaf := range v.Leaves() {
			s.Values = append(s.Values, SubjectValue{
				Field: fs.Path,
				Identifier: model.Identifier{
					Value:  leaf,
					Kind:   fs.Kind,
					Region: fs.Region,
				},
			})
		}
	}
	return s
}
