package importer

import (
	"strings"
	"unicode"
)

// Match confidence tiers. First match wins; the values are part of the
// engine's contract and are asserted by callers (mapping threshold 0.5).
const (
	confExact     = 1.0
	confSubstring = 0.85
	confFuzzyMin  = 0.65
	maxEditDist   = 2
)

// Matcher scores normalized header tokens against canonical fields using
// the immutable synonym registry.
type Matcher struct {
	registry *Registry
}

// NewMatcher returns a matcher over the given registry.
func NewMatcher(r *Registry) *Matcher {
	return &Matcher{registry: r}
}

// NormalizeHeader canonicalizes a raw header cell for matching: lowercased,
// trimmed, punctuation collapsed to spaces, inner whitespace collapsed.
func NormalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace && b.Len() > 0 {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// Match returns the confidence in [0,1] that the normalized header token
// denotes the named canonical field.
//
// Tiers, first match wins:
//  1. token equals the field name literally         -> 1.0
//  2. token equals a normalized synonym exactly     -> 1.0
//  3. token contains a synonym or vice versa        -> 0.85
//  4. edit distance to any synonym <= 2             -> max(0.65, 1 - d*0.15)
//  5. otherwise                                     -> 0.0
func (m *Matcher) Match(token, fieldName string) float64 {
	if token == "" {
		return 0
	}

	field, ok := m.registry.Lookup(fieldName)
	if !ok {
		return 0
	}

	if token == normalizeFieldName(fieldName) {
		return confExact
	}

	for _, syn := range field.Synonyms {
		if token == NormalizeHeader(syn) {
			return confExact
		}
	}

	for _, syn := range field.Synonyms {
		n := NormalizeHeader(syn)
		if n == "" {
			continue
		}
		if strings.Contains(token, n) || strings.Contains(n, token) {
			return confSubstring
		}
	}

	best := 0.0
	for _, syn := range field.Synonyms {
		n := NormalizeHeader(syn)
		if n == "" {
			continue
		}
		if d := editDistance(token, n); d <= maxEditDist {
			conf := 1.0 - float64(d)*0.15
			if conf < confFuzzyMin {
				conf = confFuzzyMin
			}
			if conf > best {
				best = conf
			}
		}
	}
	return best
}

// BestField returns the canonical field (from the candidate list) with the
// highest confidence for the token, if any candidate clears the threshold.
func (m *Matcher) BestField(token string, candidates []string, threshold float64) (string, float64, bool) {
	bestName := ""
	bestConf := 0.0
	for _, name := range candidates {
		if conf := m.Match(token, name); conf > bestConf {
			bestName, bestConf = name, conf
		}
	}
	if bestConf <= threshold {
		return "", 0, false
	}
	return bestName, bestConf, true
}

func normalizeFieldName(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}

// editDistance is the Levenshtein distance over runes, two-row variant.
// No pack repo carries a string-distance dependency, so this stays local.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
