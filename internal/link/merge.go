package link

import (
	"slices"

	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/model"
)

// MergeFields folds discard into keep and returns a new Fields. Every leaf of
// either input survives: equal values collapse, conflicting scalars become a
// list, lists take an ordered union and maps merge key by key.
func MergeFields(keep, discard model.Fields) model.Fields {
	out := keep.Clone()
	for _, k := range discard.SortedKeys() {
		b := discard[k]
		if b.IsAbsent() {
			continue
		}
		a, ok := out[k]
		if !ok || a.IsAbsent() {
			out[k] = model.FromAny(b)
			continue
		}
		out[k] = mergeValue(a, b)
	}
	return out
}

func mergeValue(a, b model.FieldValue) model.FieldValue {
	if a.Equal(b) {
		return a
	}
	switch {
	case a.IsMap() && b.IsMap():
		m := make(map[string]model.FieldValue, len(a.Entries())+len(b.Entries()))
		for k, v := range a.Entries() {
			m[k] = v
		}
		for k, v := range b.Entries() {
			if cur, ok := m[k]; ok {
				m[k] = mergeValue(cur, v)
			} else {
				m[k] = v
			}
		}
		return model.Map(m)
	case a.IsList():
		return union(a.Items(), itemsOf(b))
	case b.IsList():
		return union([]model.FieldValue{a}, b.Items())
	default:
		return model.List(a, b)
	}
}

func itemsOf(v model.FieldValue) []model.FieldValue {
	if v.IsList() {
		return v.Items()
	}
	return []model.FieldValue{v}
}

// union keeps the order of first, then appends items of second not already
// present.
func union(first, second []model.FieldValue) model.FieldValue {
	out := slices.Clone(first)
	for _, it := range second {
		if !slices.ContainsFunc(out, it.Equal) {
			out = append(out, it)
		}
	}
	return model.List(out...)
}

// MergeProvenance returns keep's provenance with discard's appended per
// field path, skipping exact duplicates.
func MergeProvenance(keep, discard map[string][]model.Provenance) map[string][]model.Provenance {
	if len(keep) == 0 && len(discard) == 0 {
		return nil
	}
	out := make(map[string][]model.Provenance, len(keep)+len(discard))
	for k, ps := range keep {
		out[k] = slices.Clone(ps)
	}
	for k, ps := range discard {
		for _, p := range ps {
			if !slices.ContainsFunc(out[k], func(q model.Provenance) bool { return sameProvenance(p, q) }) {
				out[k] = append(out[k], p)
			}
		}
	}
	return out
}

func sameProvenance(a, b model.Provenance) bool {
	return a.SourceType == b.SourceType &&
		a.SourceURL == b.SourceURL &&
		a.CapturedBy == b.CapturedBy &&
		a.CapturedAt.Equal(b.CapturedAt)
}
