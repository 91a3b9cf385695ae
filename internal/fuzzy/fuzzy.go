// Package fuzzy ranks ingredient names against a typed query.
package fuzzy

import (
	"cmp"
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

// Match is one scored candidate.
type Match struct {
	Index int
	Score int
}

// Matcher scores text with fzf's v2 algorithm. A Matcher reuses one slab and
// is not safe for concurrent use.
type Matcher struct {
	slab *util.Slab
}

// initScheme builds fzf's character-class and bonus tables once per process.
// Without it every match scores 0.
var initScheme sync.Once

// NewMatcher constructs a matcher with its own scratch slab.
func NewMatcher() *Matcher {
	initScheme.Do(func() { algo.Init("default") })
	return &Matcher{slab: util.MakeSlab(16*1024, 2048)}
}

// Score returns the case-insensitive fuzzy score of pattern in text, 0 for no match.
func (m *Matcher) Score(text, pattern string) int {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if pattern == "" || text == "" {
		return 0
	}
	chars := util.ToChars([]byte(text))
	res, _ := algo.FuzzyMatchV2(false, true, true, &chars, []rune(pattern), false, m.slab)
	if res.Start < 0 {
		return 0
	}
	return res.Score
}

// Rank orders names by descending score against query and keeps at most limit
// entries. Ties keep their input order. A multi-word query also credits each
// matching word, so names sharing any word with the query stay in the result.
// Names that do not match at all are dropped; a non-positive limit keeps every match.
func (m *Matcher) Rank(names []string, query string, limit int) []Match {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}
	tokens := Tokens(query)
	phrases := []string{query}
	if singular := strings.Join(SingularTokens(tokens), " "); singular != "" && singular != strings.Join(tokens, " ") {
		phrases = append(phrases, singular)
	}

	out := make([]Match, 0, len(names))
	for i, name := range names {
		score := 0
		for _, phrase := range phrases {
			score = max(score, m.Score(name, phrase))
		}
		if len(tokens) > 1 {
			score = max(score, m.tokenScore(name, tokens))
		}
		if score <= 0 {
			continue
		}
		out = append(out, Match{Index: i, Score: score})
	}
	slices.SortStableFunc(out, func(a, b Match) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// tokenScore sums the best score of every token, trying its singular form too.
func (m *Matcher) tokenScore(name string, tokens []string) int {
	total := 0
	for _, token := range tokens {
		total += max(m.Score(name, token), m.Score(name, Singular(token)))
	}
	return total
}

// SingularTokens applies Singular to every token.
func SingularTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		out = append(out, Singular(token))
	}
	return out
}

// Tokens splits query into lower-cased words.
func Tokens(query string) []string {
	return strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == '-'
	})
}

// Singular strips one naive plural suffix so "tomatoes" also finds "tomato".
func Singular(word string) string {
	word = strings.ToLower(strings.TrimSpace(word))
	switch {
	case len(word) > 4 && strings.HasSuffix(word, "ies"):
		return strings.TrimSuffix(word, "ies") + "y"
	case len(word) > 3 && strings.HasSuffix(word, "oes"):
		return strings.TrimSuffix(word, "es")
	case len(word) > 3 && strings.HasSuffix(word, "s") && !strings.HasSuffix(word, "ss"):
		return strings.TrimSuffix(word, "s")
	default:
		return word
	}
}
