package suggest

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"

	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/model"
)

// suggestionNamespace scopes suggestion ids generated with uuid v5.
var suggestionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("basset-hound/suggestion"))

// SuggestionID is stable for a pair of entities, in either order, so that a
// suggestion keeps its id across recomputations and from both sides.
func SuggestionID(subjectID, candidateID string) string {
	a, b := pair(subjectID, candidateID)
	return uuid.NewSHA1(suggestionNamespace, []byte(a+"\x00"+b)).String()
}

// Fingerprint hashes the field values a match was computed from. Editing
// either side's matched value changes it, which re-surfaces a dismissed pair.
// Swapping subject and candidate does not.
func Fingerprint(subjectID string, r model.MatchResult) string {
	sides := r.Sides()
	subjectSide := r.SubjectField + "\x00" + r.SubjectValue
	if r.Kind == model.KindHash {
		subjectSide = r.SubjectField + "\x00" + strings.ToLower(strings.TrimSpace(r.SubjectValue))
	}
	// Pair the ids with the sides they belong to before sorting.
	ids := [2]string{subjectID, r.CandidateEntityID}
	if sides[0] != subjectSide {
		ids[0], ids[1] = ids[1], ids[0]
	}
	if sides[0] == sides[1] {
		ids[0], ids[1] = pair(ids[0], ids[1])
	}

	h := sha256.New()
	for _, part := range []string{string(r.Kind), ids[0], sides[0], ids[1], sides[1]} {
		h.Write([]byte(strings.ReplaceAll(part, "\x00", "\x01")))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func pair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}
