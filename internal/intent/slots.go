package intent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/storage"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/textmatch"
)

const amount = `(\d[\d,]*(?:\.\d+)?)`

var (
	priceRange    = regexp.MustCompile(`between\s*(?:rs\.?|₹|inr|\$)?\s*` + amount + `\s*(k|lakhs?|lacs?)?\s*(?:and|to|-)\s*(?:rs\.?|₹|inr|\$)?\s*` + amount + `\s*(k|lakhs?|lacs?)?`)
	priceLakh     = regexp.MustCompile(amount + `\s*(?:lakhs?|lacs?)\b`)
	priceThousand = regexp.MustCompile(amount + `\s*k\b`)
	priceCeiling  = regexp.MustCompile(`(?:under|below|less than|within|up to|upto|max|maximum|cheaper than|budget(?: of| is)?)\s*(?:rs\.?|₹|inr|\$)?\s*` + amount)
	priceCurrency = regexp.MustCompile(`(?:rs\.?|₹|inr|\$)\s*` + amount)

	ratingBefore = regexp.MustCompile(`\b(\d(?:\.\d+)?)\s*\+?\s*(?:stars?|star rating|rating)\b`)
	ratingAfter  = regexp.MustCompile(`(?:rating|rated)\s*(?:of\s*)?(?:above|over|at least|more than|>=?|min(?:imum)?)?\s*(\d(?:\.\d+)?)\b`)

	orderNumber  = regexp.MustCompile(`(?i)\bord-?(\d{3,})\b`)
	orderDigits  = regexp.MustCompile(`(?i)\border\s*(?:#|no\.?|number|id)?\s*#?\s*(\d{3,})\b`)
	orderUUID    = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`)
	measureUnits = map[string]bool{"gb": true, "tb": true, "hz": true, "inch": true, "inches": true, "mp": true, "mah": true, "hours": true, "w": true, "kg": true, "days": true}
)

// minThousands keeps "4k" and "8k" resolution from reading as a price.
const minThousands = 10

// parsePrice extracts a price ceiling. A "between X and Y" range is tried
// first and yields Y; then lakh amounts, k amounts, and plain amounts after a
// ceiling word or currency sign.
func parsePrice(q string) *float64 {
	if m := priceRange.FindStringSubmatch(q); m != nil {
		if v, ok := scaled(m[3], m[4]); ok {
			return &v
		}
	}
	if m := priceLakh.FindStringSubmatch(q); m != nil {
		if v, ok := scaled(m[1], "lakh"); ok {
			return &v
		}
	}
	for _, m := range priceThousand.FindAllStringSubmatch(q, -1) {
		if n, ok := number(m[1]); ok && n >= minThousands {
			v := n * 1000
			return &v
		}
	}
	for _, re := range []*regexp.Regexp{priceCeiling, priceCurrency} {
		for _, loc := range re.FindAllStringSubmatchIndex(q, -1) {
			if followedByUnit(q, loc[1]) {
				continue
			}
			if v, ok := number(q[loc[2]:loc[3]]); ok {
				return &v
			}
		}
	}
	return nil
}

func scaled(raw, unit string) (float64, bool) {
	n, ok := number(raw)
	if !ok {
		return 0, false
	}
	switch {
	case unit == "k":
		n *= 1000
	case strings.HasPrefix(unit, "lakh"), strings.HasPrefix(unit, "lac"):
		n *= 100000
	}
	return n, true
}

func number(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func followedByUnit(q string, end int) bool {
	rest := strings.Fields(q[end:])
	if len(rest) == 0 {
		return false
	}
	return measureUnits[strings.Trim(rest[0], ".,!?")]
}

// parseRating extracts a minimum rating between 0 and 5.
func parseRating(q string) *float64 {
	for _, re := range []*regexp.Regexp{ratingBefore, ratingAfter} {
		if m := re.FindStringSubmatch(q); m != nil {
			if v, ok := number(m[1]); ok && v > 0 && v <= 5 {
				return &v
			}
		}
	}
	return nil
}

// parseOrderRef extracts an order number or order UUID.
func parseOrderRef(q string) string {
	if m := orderUUID.FindString(q); m != "" {
		if id, err := uuid.Parse(m); err == nil {
			return id.String()
		}
	}
	if m := orderNumber.FindStringSubmatch(q); m != nil {
		return "ORD-" + m[1]
	}
	if m := orderDigits.FindStringSubmatch(q); m != nil {
		return "ORD-" + m[1]
	}
	return ""
}

func (v *Vocabulary) matchBrands(q string) []string {
	var out []string
	for _, b := range v.Brands {
		if textmatch.ContainsWord(q, b) {
			out = append(out, b)
		}
	}
	return out
}

func (v *Vocabulary) matchUseCases(q string) []string {
	var out []string
	for _, uc := range v.UseCases {
		if textmatch.ContainsAny(q, uc.Cues) {
			out = append(out, uc.Name)
		}
	}
	return out
}

// MatchCategory resolves a category from priority phrases first, then from
// the keyword lists. Among keyword lists the one with the most hits wins; ties
// go to the earlier list.
func (v *Vocabulary) MatchCategory(q string) *storage.Category {
	for _, p := range v.CategoryPhrases {
		if textmatch.ContainsWord(q, p.Phrase) {
			c := p.Category
			return &c
		}
	}

	var best *storage.Category
	bestHits := 0
	for _, ck := range v.CategoryKeywords {
		hits := 0
		for _, w := range ck.Words {
			if textmatch.ContainsWord(q, w) {
				hits++
			}
		}
		if hits > bestHits {
			c := ck.Category
			best, bestHits = &c, hits
		}
	}
	return best
}

// IsPhoneQuery reports whether q names phones explicitly.
func (v *Vocabulary) IsPhoneQuery(q string) bool {
	return textmatch.ContainsAny(q, v.PhoneCues)
}

// HasBulkCue reports whether q asks for a broad set rather than named items.
func (v *Vocabulary) HasBulkCue(q string) bool {
	return textmatch.ContainsAny(q, v.BulkCues)
}

func (v *Vocabulary) isStopWord(w string) bool {
	for _, s := range v.StopWords {
		if s == w {
			return true
		}
	}
	return false
}

// HasProductTerm reports whether q mentions a device noun, category keyword,
// product line or brand.
func (v *Vocabulary) HasProductTerm(q string) bool {
	if textmatch.ContainsAny(q, v.ProductNouns) || textmatch.ContainsAny(q, v.ProductLines) || textmatch.ContainsAny(q, v.Brands) {
		return true
	}
	for _, ck := range v.CategoryKeywords {
		if textmatch.ContainsAny(q, ck.Words) {
			return true
		}
	}
	return false
}

// IsGenericNoun reports whether w names a kind of device rather than a
// product line.
func (v *Vocabulary) IsGenericNoun(w string) bool {
	for _, pl := range v.ProductLines {
		if pl == w {
			return false
		}
	}
	for _, n := range v.ProductNouns {
		if n == w {
			return true
		}
	}
	for _, ck := range v.CategoryKeywords {
		for _, kw := range ck.Words {
			if kw == w {
				return true
			}
		}
	}
	return false
}

// Keywords returns the words of q that are not stop words, in order.
func (v *Vocabulary) Keywords(q string) []string {
	var out []string
	for _, w := range textmatch.Words(q) {
		if !v.isStopWord(w) {
			out = append(out, w)
		}
	}
	return out
}

// NameTerms returns the keywords of q that could appear in a product title:
// stop words, commerce verbs and generic device nouns are dropped.
func (v *Vocabulary) NameTerms(q string) []string {
	var out []string
	for _, w := range v.Keywords(q) {
		if contains(v.CommerceVerbs, w) || v.IsGenericNoun(w) {
			continue
		}
		out = append(out, w)
	}
	return out
}

// CategoryWordsIn returns the keywords of category that appear in q.
func (v *Vocabulary) CategoryWordsIn(q string, category storage.Category) []string {
	var out []string
	for _, ck := range v.CategoryKeywords {
		if ck.Category != category {
			continue
		}
		for _, w := range ck.Words {
			if textmatch.ContainsWord(q, w) {
				out = append(out, w)
			}
		}
	}
	return out
}

// UseCaseTerms expands use-case names into their cue words.
func (v *Vocabulary) UseCaseTerms(names []string) []string {
	var out []string
	for _, uc := range v.UseCases {
		if contains(names, uc.Name) {
			out = append(out, uc.Cues...)
		}
	}
	return out
}
