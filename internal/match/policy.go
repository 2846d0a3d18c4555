package match

import (
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/errs"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/model"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/similarity"
)

// Policy declares which entity fields carry identifiers, their kinds, and
// which fuzzy algorithm scores each one.
type Policy struct {
	Defaults    map[model.Kind]similarity.Algorithm `yaml:"defaults"`
	Fields      []FieldSpec                         `yaml:"fields"`
	EntityTypes map[model.EntityType][]FieldSpec    `yaml:"entity_types"`
}

// FieldSpec describes one identifier-bearing field. Path may address a
// scalar, a list or a map; every leaf scalar below it is compared.
type FieldSpec struct {
	Path      string               `yaml:"path"`
	Kind      model.Kind           `yaml:"kind"`
	Region    string               `yaml:"region,omitempty"`
	Algorithm similarity.Algorithm `yaml:"algorithm,omitempty"`
}

// DefaultPolicy returns the built-in policy.
func DefaultPolicy() *Policy {
	return &Policy{
		Defaults: map[model.Kind]similarity.Algorithm{
			model.KindName:    similarity.JaroWinkler,
			model.KindAddress: similarity.TokenSet,
			model.KindOther:   similarity.Levenshtein,
		},
		Fields: []FieldSpec{
			{Path: "names", Kind: model.KindName},
			{Path: "emails", Kind: model.KindEmail},
			{Path: "phones", Kind: model.KindPhone, Region: "US"},
			{Path: "addresses", Kind: model.KindAddress},
			{Path: "usernames", Kind: model.KindUsername},
			{Path: "crypto", Kind: model.KindCryptoAddress},
			{Path: "files.sha256", Kind: model.KindHash},
			{Path: "notes", Kind: model.KindOther, Algorithm: similarity.Levenshtein},
		},
		EntityTypes: map[model.EntityType][]FieldSpec{
			model.EntityOrganization: {
				{Path: "legal_name", Kind: model.KindName, Algorithm: similarity.TokenSet},
			},
		},
	}
}

// LoadPolicy reads a policy from a YAML file with a top-level "policy" key.
// Entries left unset fall back to the built-in defaults.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "match: read policy %s", path)
	}
	return ParsePolicy(data)
}

// ParsePolicy parses policy YAML.
func ParsePolicy(data []byte) (*Policy, error) {
	var wrapper struct {
		Policy Policy `yaml:"policy"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "match: parse policy")
	}

	p := &wrapper.Policy
	def := DefaultPolicy()
	if p.Defaults == nil {
		p.Defaults = map[model.Kind]similarity.Algorithm{}
	}
	for kind, alg := range def.Defaults {
		if _, ok := p.Defaults[kind]; !ok {
			p.Defaults[kind] = alg
		}
	}
	if len(p.Fields) == 0 && len(p.EntityTypes) == 0 {
		p.Fields = def.Fields
		p.EntityTypes = def.EntityTypes
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks kinds and algorithm names.
func (p *Policy) Validate() error {
	for kind, alg := range p.Defaults {
		if _, err := model.ParseKind(string(kind)); err != nil {
			return errs.Validation("policy.defaults", "unknown kind %q", kind)
		}
		if !alg.IsFuzzy() {
			return errs.Validation("policy.defaults", "%q is not a fuzzy algorithm", alg)
		}
	}
	check := func(where string, specs []FieldSpec) error {
		for _, f := range specs {
			if f.Path == "" {
				return errs.Validation(where, "field path is required")
			}
			if _, err := model.ParseKind(string(f.Kind)); err != nil {
				return errs.Validation(where, "field %q: unknown kind %q", f.Path, f.Kind)
			}
			if f.Algorithm != "" && !f.Algorithm.IsFuzzy() {
				return errs.Validation(where, "field %q: %q is not a fuzzy algorithm", f.Path, f.Algorithm)
			}
		}
		return nil
	}
	if err := check("policy.fields", p.Fields); err != nil {
		return err
	}
	for _, t := range sortedTypes(p.EntityTypes) {
		if _, err := model.ParseEntityType(string(t)); err != nil {
			return errs.Validation("policy.entity_types", "unknown entity type %q", t)
		}
		if err := check("policy.entity_types."+string(t), p.EntityTypes[t]); err != nil {
			return err
		}
	}
	return nil
}

// FieldsFor returns the identifier-bearing fields of an entity type: the
// shared fields followed by the type-specific ones.
func (p *Policy) FieldsFor(t model.EntityType) []FieldSpec {
	extra := p.EntityTypes[t]
	out := make([]FieldSpec, 0, len(p.Fields)+len(extra))
	out = append(out, p.Fields...)
	return append(out, extra...)
}

// FieldFor returns the FieldSpec for a field path, searching the type-specific
// fields first.
func (p *Policy) FieldFor(t model.EntityType, path string) (FieldSpec, bool) {
	for _, f := range p.EntityTypes[t] {
		if f.Path == path {
			return f, true
		}
	}
	for _, f := range p.Fields {
		if f.Path == path {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// FieldsOfKind returns the paths of an entity type that hold kind.
func (p *Policy) FieldsOfKind(t model.EntityType, kind model.Kind) []FieldSpec {
	var out []FieldSpec
	for _, f := range p.FieldsFor(t) {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

// AlgorithmFor resolves the fuzzy algorithm for a field: the field override,
// then the policy default for its kind, then the built-in default.
func (p *Policy) AlgorithmFor(f FieldSpec) similarity.Algorithm {
	if f.Algorithm != "" {
		return f.Algorithm
	}
	if alg, ok := p.Defaults[f.Kind]; ok {
		return alg
	}
	return similarity.DefaultAlgorithm(f.Kind)
}

func sortedTypes(m map[model.EntityType][]FieldSpec) []model.EntityType {
	out := make([]model.EntityType, 0, len(m))
	for t := range m {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
