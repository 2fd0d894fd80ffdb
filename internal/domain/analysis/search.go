package analysis

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// Search tuning.
const (
	SearchLimit       = 30
	maxEditDistance   = 2
	minFuzzyWordChars = 3
)

// Search matches q against pedal names and brands. Substring matches come
// first, in standing order, followed by pedals where every query word is
// within a small edit distance of some word of the name or brand.
func Search(standings []Standing, q string, limit int) []Standing {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return []Standing{}
	}
	if limit <= 0 {
		limit = SearchLimit
	}

	var exact, fuzzy []Standing
	terms := strings.Fields(q)
	for _, s := range standings {
		name := strings.ToLower(s.Name)
		brand := strings.ToLower(s.Brand)
		switch {
		case strings.Contains(name, q) || strings.Contains(brand, q):
			exact = append(exact, s)
		case fuzzyMatch(terms, strings.Fields(name+" "+brand)):
			fuzzy = append(fuzzy, s)
		}
	}

	out := append(exact, fuzzy...)
	if len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []Standing{}
	}
	return out
}

func fuzzyMatch(terms, words []string) bool {
	for _, t := range terms {
		if !fuzzyTerm(t, words) {
			return false
		}
	}
	return true
}

func fuzzyTerm(term string, words []string) bool {
	for _, w := range words {
		if strings.Contains(w, term) {
			return true
		}
		if len(term) >= minFuzzyWordChars && levenshtein.ComputeDistance(term, w) <= maxEditDistance {
			return true
		}
	}
	return false
}
