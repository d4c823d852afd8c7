// Package specs maps queries and products onto per-category specification
// dictionaries.
package specs

import (
	"sort"
	"strings"

	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/storage"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/textmatch"
)

// Score weights for ScoreBySpec.
const (
	specWeight   = 0.6
	ratingWeight = 0.4
)

// SpecScore is a product ranked against a set of requested specs.
type SpecScore struct {
	Product *storage.Product
	Matched []string
	Score   float64
}

// Matcher evaluates queries and products against a Dictionary. It holds no
// mutable state.
type Matcher struct {
	dict Dictionary
}

// NewMatcher creates a matcher over dict.
func NewMatcher(dict Dictionary) *Matcher {
	return &Matcher{dict: dict}
}

// ExtractSpecs returns the sorted spec names mentioned in query. An empty
// category searches every dictionary.
func (m *Matcher) ExtractSpecs(query string, category storage.Category) []string {
	text := prepare(query)
	seen := map[string]bool{}
	for _, cat := range m.categories(category) {
		for _, s := range m.dict[cat] {
			if seen[s.Name] {
				continue
			}
			for _, p := range s.Patterns {
				if text.matches(p) {
					seen[s.Name] = true
					break
				}
			}
		}
	}
	return sortedKeys(seen)
}

// Fragments returns the literal text of every pattern hit in query: the
// keyword itself, or the substring a regex matched. The router looks these
// up in serialized product specs.
func (m *Matcher) Fragments(query string, category storage.Category) []string {
	text := prepare(query)
	seen := map[string]bool{}
	for _, cat := range m.categories(category) {
		for _, s := range m.dict[cat] {
			for _, p := range s.Patterns {
				if p.Regex != nil {
					for _, hit := range p.Regex.FindAllString(text.lower, -1) {
						seen[strings.Join(strings.Fields(hit), "")] = true
					}
					continue
				}
				if text.matches(p) {
					seen[p.Keyword] = true
				}
			}
		}
	}
	return sortedKeys(seen)
}

// ScoreBySpec ranks products by 0.6 x matched-spec count + 0.4 x rating,
// highest first. Ties keep input order.
func (m *Matcher) ScoreBySpec(products []*storage.Product, specNames []string) []SpecScore {
	patterns := m.patternsByName(specNames)

	scores := make([]SpecScore, 0, len(products))
	for _, p := range products {
		text := prepare(ProductText(p))
		matched := []string{}
		for _, name := range specNames {
			for _, pat := range patterns[name] {
				if text.matches(pat) {
					matched = append(matched, name)
					break
				}
			}
		}
		scores = append(scores, SpecScore{
			Product: p,
			Matched: matched,
			Score:   specWeight*float64(len(matched)) + ratingWeight*p.Rating,
		})
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})
	return scores
}

// CategoryConfidence returns, for every category with at least one pattern
// hit, the fraction of that category's patterns found in query.
func (m *Matcher) CategoryConfidence(query string) map[storage.Category]float64 {
	text := prepare(query)
	out := map[storage.Category]float64{}
	for _, cat := range storage.Categories() {
		total := m.dict.PatternCount(cat)
		if total == 0 {
			continue
		}
		hits := 0
		for _, s := range m.dict[cat] {
			for _, p := range s.Patterns {
				if text.matches(p) {
					hits++
				}
			}
		}
		if hits > 0 {
			out[cat] = float64(hits) / float64(total)
		}
	}
	return out
}

// BestCategory returns the highest-confidence category for query. Ties go
// to the earlier category in storage.Categories order.
func (m *Matcher) BestCategory(query string) (storage.Category, float64, bool) {
	conf := m.CategoryConfidence(query)
	var best storage.Category
	bestScore := 0.0
	for _, cat := range storage.Categories() {
		if c, ok := conf[cat]; ok && c > bestScore {
			best, bestScore = cat, c
		}
	}
	return best, bestScore, bestScore > 0
}

// ProductText concatenates the searchable fields of a product.
func ProductText(p *storage.Product) string {
	parts := []string{p.Brand, p.Title, string(p.Category), p.Description, p.Specifications.Text()}
	parts = append(parts, p.Features...)
	return strings.Join(parts, " ")
}

func (m *Matcher) categories(category storage.Category) []storage.Category {
	if category != "" {
		return []storage.Category{category}
	}
	return storage.Categories()
}

func (m *Matcher) patternsByName(names []string) map[string][]Pattern {
	want := map[string]bool{}
	for _, n := range names {
		want[n] = true
	}
	out := map[string][]Pattern{}
	for _, cat := range storage.Categories() {
		for _, s := range m.dict[cat] {
			if want[s.Name] {
				out[s.Name] = append(out[s.Name], s.Patterns...)
			}
		}
	}
	return out
}

// preparedText caches the two forms patterns are matched against.
type preparedText struct {
	lower  string
	padded string
}

func prepare(s string) preparedText {
	return preparedText{
		lower:  strings.ToLower(s),
		padded: " " + textmatch.Normalize(s) + " ",
	}
}

func (t preparedText) matches(p Pattern) bool {
	if p.Regex != nil {
		return p.Regex.MatchString(t.lower)
	}
	kw := textmatch.Normalize(p.Keyword)
	return kw != "" && strings.Contains(t.padded, " "+kw+" ")
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
