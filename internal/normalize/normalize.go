// Package normalize canonicalizes raw identifier values into comparable forms.
// Every function here is pure: malformed input yields Valid=false and an
// empty Normalized string, never an error.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/model"
)

// Identifier normalizes id according to its kind.
func Identifier(id model.Identifier) model.NormalizedIdentifier {
	if id.Kind == model.KindHash && id.Content != nil {
		return HashContent(id.Value, id.Content)
	}
	return Value(id.Kind, id.Value, id.Region)
}

// Value normalizes a raw textual value of the given kind. region is an
// optional phone region hint and is ignored for other kinds.
func Value(kind model.Kind, raw, region string) model.NormalizedIdentifier {
	switch kind {
	case model.KindEmail:
		return Email(raw)
	case model.KindPhone:
		return Phone(raw, region)
	case model.KindAddress:
		return Address(raw)
	case model.KindName:
		return Name(raw)
	case model.KindHash:
		return Hash(raw)
	case model.KindUsername:
		return Username(raw)
	case model.KindCryptoAddress:
		return CryptoAddress(raw)
	default:
		return Other(raw)
	}
}

func invalid(kind model.Kind, raw string) model.NormalizedIdentifier {
	return model.NormalizedIdentifier{Kind: kind, Original: raw}
}

func valid(kind model.Kind, raw, normalized string, components map[string]string) model.NormalizedIdentifier {
	return model.NormalizedIdentifier{
		Kind:       kind,
		Original:   raw,
		Normalized: normalized,
		Components: components,
		Valid:      true,
	}
}

// Email lowercases and trims, then splits on the first "@". A plus tag stays
// in the normalized form and is exposed as the tag component; the base
// component drops it.
func Email(raw string) model.NormalizedIdentifier {
	s := strings.ToLower(strings.TrimSpace(raw))
	local, domain, ok := strings.Cut(s, "@")
	if !ok || local == "" || domain == "" {
		return invalid(model.KindEmail, raw)
	}
	if strings.ContainsAny(domain, "@") || strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return invalid(model.KindEmail, raw)
	}

	components := map[string]string{
		"local":  local,
		"domain": domain,
		"base":   local + "@" + domain,
	}
	if user, tag, tagged := strings.Cut(local, "+"); tagged && user != "" {
		components["tag"] = tag
		components["base"] = user + "@" + domain
	}
	return valid(model.KindEmail, raw, local+"@"+domain, components)
}

const (
	minPhoneDigits = 7
	maxPhoneDigits = 15
	// Digit strings longer than a national number are assumed to carry a
	// country code when no leading "+" says so.
	nationalDigits = 10
)

// Phone keeps digits and a leading "+". With a region hint the number is
// parsed and formatted as E.164; otherwise the digit string is kept as is
// and has_country_code records whether it appears to be international.
func Phone(raw, region string) model.NormalizedIdentifier {
	s := strings.TrimSpace(raw)
	plus := strings.HasPrefix(s, "+")
	var b strings.Builder
	if plus {
		b.WriteByte('+')
	}
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	stripped := b.String()
	digits := strings.TrimPrefix(stripped, "+")
	if len(digits) < minPhoneDigits || len(digits) > maxPhoneDigits {
		return invalid(model.KindPhone, raw)
	}

	if region != "" {
		if num, err := phonenumbers.Parse(stripped, strings.ToUpper(region)); err == nil && phonenumbers.IsPossibleNumber(num) {
			e164 := phonenumbers.Format(num, phonenumbers.E164)
			return valid(model.KindPhone, raw, e164, map[string]string{
				"digits":           strings.TrimPrefix(e164, "+"),
				"country_code":     strconv.Itoa(int(num.GetCountryCode())),
				"region":           phonenumbers.GetRegionCodeForNumber(num),
				"has_country_code": "true",
			})
		}
	}

	hasCC := plus || len(digits) > nationalDigits
	return valid(model.KindPhone, raw, stripped, map[string]string{
		"digits":           digits,
		"has_country_code": strconv.FormatBool(hasCC),
	})
}

// addressAbbreviations maps long street words to their postal abbreviation.
// No abbreviation is itself a key, so applying the table twice is a no-op.
var addressAbbreviations = map[string]string{
	"street":     "st",
	"avenue":     "ave",
	"road":       "rd",
	"boulevard":  "blvd",
	"drive":      "dr",
	"lane":       "ln",
	"court":      "ct",
	"place":      "pl",
	"square":     "sq",
	"terrace":    "ter",
	"highway":    "hwy",
	"parkway":    "pkwy",
	"circle":     "cir",
	"route":      "rte",
	"apartment":  "apt",
	"suite":      "ste",
	"building":   "bldg",
	"floor":      "fl",
	"room":       "rm",
	"north":      "n",
	"south":      "s",
	"east":       "e",
	"west":       "w",
	"northeast":  "ne",
	"northwest":  "nw",
	"southeast":  "se",
	"southwest":  "sw",
	"mount":      "mt",
	"fort":       "ft",
	"saint":      "st",
	"expressway": "expy",
}

// Address folds diacritics, lowercases, replaces punctuation with spaces,
// collapses whitespace and applies the abbreviation table word by word.
func Address(raw string) model.NormalizedIdentifier {
	s := stripPunct(strings.ToLower(foldDiacritics(raw)), nil)
	words := strings.Fields(s)
	if len(words) == 0 {
		return invalid(model.KindAddress, raw)
	}
	for i, w := range words {
		if abbr, ok := addressAbbreviations[w]; ok {
			words[i] = abbr
		}
	}
	return valid(model.KindAddress, raw, strings.Join(words, " "), nil)
}

// Name strips diacritics (NFKD then combining marks removed), lowercases,
// replaces punctuation other than hyphens and apostrophes with spaces, drops
// single-letter middle initials and collapses whitespace.
func Name(raw string) model.NormalizedIdentifier {
	s := stripPunct(strings.ToLower(foldDiacritics(raw)), func(r rune) bool {
		return r == '-' || r == '\''
	})
	tokens := strings.Fields(s)
	if len(tokens) >= 3 {
		kept := make([]string, 0, len(tokens))
		kept = append(kept, tokens[0])
		for _, tok := range tokens[1 : len(tokens)-1] {
			if utf8.RuneCountInString(tok) == 1 {
				continue
			}
			kept = append(kept, tok)
		}
		tokens = append(kept, tokens[len(tokens)-1])
	}
	out := strings.Join(tokens, " ")
	if strings.IndexFunc(out, unicode.IsLetter) < 0 {
		return invalid(model.KindName, raw)
	}
	components := map[string]string{"first": tokens[0]}
	if len(tokens) > 1 {
		components["last"] = tokens[len(tokens)-1]
	}
	return valid(model.KindName, raw, out, components)
}

// Hash accepts an existing SHA-256 hex digest and lowercases it. Digests are
// computed from binary content with HashContent.
func Hash(raw string) model.NormalizedIdentifier {
	s := strings.ToLower(strings.TrimSpace(raw))
	if len(s) != sha256.Size*2 {
		return invalid(model.KindHash, raw)
	}
	if _, err := hex.DecodeString(s); err != nil {
		return invalid(model.KindHash, raw)
	}
	return valid(model.KindHash, raw, s, map[string]string{"algorithm": "sha256"})
}

// HashContent computes the SHA-256 hex digest of content. label is kept as
// the original value for display.
func HashContent(label string, content []byte) model.NormalizedIdentifier {
	sum := sha256.Sum256(content)
	return valid(model.KindHash, label, hex.EncodeToString(sum[:]), map[string]string{
		"algorithm": "sha256",
		"size":      strconv.Itoa(len(content)),
	})
}

// Username trims, lowercases and drops leading "@" handles.
func Username(raw string) model.NormalizedIdentifier {
	s := strings.TrimLeft(strings.ToLower(strings.TrimSpace(raw)), "@")
	if s == "" || strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return invalid(model.KindUsername, raw)
	}
	return valid(model.KindUsername, raw, s, nil)
}

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

const bech32Charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

// CryptoAddress recognizes Ethereum (0x + 40 hex, case-folded), Bitcoin
// bech32 (bc1..., case-folded) and Bitcoin base58 (case-sensitive) addresses.
// Other addresses without whitespace are kept verbatim with chain "unknown".
func CryptoAddress(raw string) model.NormalizedIdentifier {
	s := strings.TrimSpace(raw)
	if s == "" || strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return invalid(model.KindCryptoAddress, raw)
	}
	lower := strings.ToLower(s)

	switch {
	case strings.HasPrefix(lower, "0x") && len(lower) == 42 && isHex(lower[2:]):
		return valid(model.KindCryptoAddress, raw, lower, map[string]string{
			"chain":  "ethereum",
			"format": "hex",
		})
	case strings.HasPrefix(lower, "bc1") && len(lower) >= 14 && len(lower) <= 74 && onlyRunes(lower[3:], bech32Charset):
		if s != lower && s != strings.ToUpper(s) {
			// bech32 forbids mixed case
			return invalid(model.KindCryptoAddress, raw)
		}
		return valid(model.KindCryptoAddress, raw, lower, map[string]string{
			"chain":  "bitcoin",
			"format": "bech32",
		})
	case (s[0] == '1' || s[0] == '3') && len(s) >= 26 && len(s) <= 35 && onlyRunes(s, base58Alphabet):
		return valid(model.KindCryptoAddress, raw, s, map[string]string{
			"chain":  "bitcoin",
			"format": "base58",
		})
	default:
		return valid(model.KindCryptoAddress, raw, s, map[string]string{"chain": "unknown"})
	}
}

// Other trims, lowercases and collapses whitespace.
func Other(raw string) model.NormalizedIdentifier {
	s := strings.Join(strings.Fields(strings.ToLower(raw)), " ")
	if s == "" {
		return invalid(model.KindOther, raw)
	}
	return valid(model.KindOther, raw, s, nil)
}

// foldDiacritics decomposes s (NFKD), removes combining marks and recomposes.
// The transformer chain carries state, so one is built per call.
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// stripPunct replaces punctuation and symbols with spaces, except runes
// accepted by keep.
func stripPunct(s string, keep func(rune) bool) string {
	return strings.Map(func(r rune) rune {
		if keep != nil && keep(r) {
			return r
		}
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return r
	}, s)
}

func isHex(s string) bool {
	return onlyRunes(s, "0123456789abcdef")
}

func onlyRunes(s, alphabet string) bool {
	for _, r := range s {
		if !strings.ContainsRune(alphabet, r) {
			return false
		}
	}
	return true
}
