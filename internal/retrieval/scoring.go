package retrieval

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/specs"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/storage"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/textmatch"
)

// Semantic score weights.
const (
	ratingWeight      = 2.0
	firstWordBonus    = 10.0
	categoryWordBonus = 3.0
	specFragmentBonus = 4.0
	vectorBonusWeight = 5.0
)

// CueBonus adds a fixed bonus to products showing evidence of a need the
// query expresses. Cues are matched as whole words in the query; evidence is
// matched as a substring of the lowercased product text.
type CueBonus struct {
	Name     string
	Cues     []string
	Evidence []string
	Bonus    float64
}

// DefaultCueBonuses returns the storefront cue bonuses.
func DefaultCueBonuses() []CueBonus {
	return []CueBonus{
		{"gaming", []string{"gaming", "games", "gamer"}, []string{"gaming", "rtx", "geforce", "radeon", "144hz", "165hz", "240hz"}, 6},
		{"battery", []string{"battery", "backup", "long lasting", "all day"}, []string{"mah", "battery life", "hours"}, 5},
		{"lightweight", []string{"lightweight", "light", "portable", "thin", "slim", "travel"}, []string{"lightweight", "thin", "slim", "portable", "ultrabook"}, 4},
		{"display", []string{"display", "screen", "oled", "amoled"}, []string{"oled", "amoled", "retina", "hdr", "120hz", "144hz"}, 4},
		{"processor", []string{"processor", "performance", "fast", "powerful", "cpu", "chip"}, []string{"i7", "i9", "ryzen", "snapdragon", "dimensity", "m2", "m3", "a17", "a18"}, 4},
		{"camera", []string{"camera", "photo", "photos", "photography", "selfie"}, []string{"mp", "camera", "telephoto", "ois"}, 4},
	}
}

// scorer ranks products for one query.
type scorer struct {
	firstWord     string
	categoryWords map[storage.Category][]string
	fragments     []string
	bonuses       []CueBonus
	similarity    map[uuid.UUID]float64
}

func (r *Router) newScorer(query string, category storage.Category, similarity map[uuid.UUID]float64) *scorer {
	q := textmatch.Normalize(query)
	s := &scorer{
		categoryWords: map[storage.Category][]string{},
		fragments:     r.specs.Fragments(q, category),
		similarity:    similarity,
	}
	if words := r.vocab.NameTerms(q); len(words) > 0 {
		s.firstWord = words[0]
	}
	for _, c := range storage.Categories() {
		if words := r.vocab.CategoryWordsIn(q, c); len(words) > 0 {
			s.categoryWords[c] = words
		}
	}
	for _, b := range r.cueBonuses {
		if textmatch.ContainsAny(q, b.Cues) {
			s.bonuses = append(s.bonuses, b)
		}
	}
	return s
}

func (s *scorer) score(p *storage.Product) float64 {
	score := ratingWeight * p.Rating

	if s.firstWord != "" && textmatch.ContainsWord(p.Title, s.firstWord) {
		score += firstWordBonus
	}

	text := strings.ToLower(specs.ProductText(p))
	for _, w := range s.categoryWords[p.Category] {
		if textmatch.ContainsWord(text, w) {
			score += categoryWordBonus
		}
	}

	specText := compact(p.Specifications.Text())
	for _, f := range s.fragments {
		if strings.Contains(specText, compact(f)) {
			score += specFragmentBonus
		}
	}

	for _, b := range s.bonuses {
		for _, e := range b.Evidence {
			if strings.Contains(text, e) {
				score += b.Bonus
				break
			}
		}
	}

	if sim, ok := s.similarity[p.ID]; ok {
		score += vectorBonusWeight * sim
	}
	return score
}

// rank scores products and returns the best limit, highest first. Ties keep
// the store's order.
func (s *scorer) rank(products []*storage.Product, limit int) []Item {
	items := make([]Item, 0, len(products))
	for _, p := range products {
		if p == nil {
			continue
		}
		item := ProductItem(p)
		item.Score = s.score(p)
		items = append(items, item)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func compact(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), " ", "")
}
