package backend

import (
	"slices"
	"strings"

	"github.com/ibsar/voicedialog/pkg/utterance"
)

// Match is a product with how well its name matched a query, in (0, 1].
// A score of 1 means the whole query appears in the name.
type Match struct {
	Product Product `json:"product"`
	Score   float64 `json:"score"`
}

// fillerWords are command words users wrap around a product name
// ("لوّج على الزيت", "add milk").
var fillerWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"لوج", "بحث", "ابحث", "على", "عن", "زيد", "حط", "اشري", "نحب", "لي", "للسله",
		"find", "search", "look", "for", "add", "buy", "cherche", "ajoute",
	} {
		fillerWords[utterance.Normalize(w)] = struct{}{}
	}
}

// ProductQuery strips command words from an utterance and returns the
// normalized product query.
func ProductQuery(text string) string {
	tokens := utterance.Tokens(text)
	kept := tokens[:0]
	for _, t := range tokens {
		if _, filler := fillerWords[t]; !filler {
			kept = append(kept, t)
		}
	}
	return strings.Join(kept, " ")
}

// MatchScore scores name against query: 1 for a normalized substring match,
// otherwise the fraction of query tokens found inside some name token.
func MatchScore(query, name string) float64 {
	q := utterance.Normalize(query)
	n := utterance.Normalize(name)
	if q == "" || n == "" {
		return 0
	}
	if strings.Contains(n, q) {
		return 1
	}

	qTokens := strings.Fields(q)
	nTokens := strings.Fields(n)
	hits := 0
	for _, qt := range qTokens {
		if slices.ContainsFunc(nTokens, func(nt string) bool { return strings.Contains(nt, qt) }) {
			hits++
		}
	}
	return float64(hits) / float64(len(qTokens))
}

// MatchProducts returns every product whose name scores above zero, best
// first. Ties keep catalog order.
func MatchProducts(query string, products []Product) []Match {
	q := ProductQuery(query)
	if q == "" {
		return nil
	}

	var out []Match
	for _, p := range products {
		if s := MatchScore(q, p.Name); s > 0 {
			out = append(out, Match{Product: p, Score: s})
		}
	}
	slices.SortStableFunc(out, func(a, b Match) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	return out
}
