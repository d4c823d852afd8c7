package intent

import (
	"sort"
	"strings"

	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/catalog"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/textmatch"
)

// Ranking scores: an exact name beats a name contained in the other text,
// which beats any word-overlap ratio (at most 1).
const (
	scoreEqual     = 3.0
	scoreContained = 2.0
)

type candidate struct {
	entry catalog.Entry
	score float64
	// partial marks a query that is only a fragment of the candidate text.
	partial bool
}

// textForms lists the strings an entry is matched against.
type textForms func(catalog.Entry) []string

func title(e catalog.Entry) []string { return []string{e.Title} }

func brandTitle(e catalog.Entry) []string { return []string{e.Title, e.Brand + " " + e.Title} }

// rank scores every entry against query and returns the matches, best first.
func (d *Detector) rank(query string, entries []catalog.Entry, forms textForms, threshold float64) []candidate {
	nq := textmatch.Normalize(query)
	if nq == "" {
		return nil
	}

	var out []candidate
	for _, e := range entries {
		var best *candidate
		for _, text := range forms(e) {
			if c, ok := d.score(nq, textmatch.Normalize(text), threshold); ok && (best == nil || c.score > best.score) {
				c.entry = e
				best = &c
			}
		}
		if best != nil {
			out = append(out, *best)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].entry.Title < out[j].entry.Title
	})
	return out
}

// best returns the top match, or nil when nothing matches or the query is a
// fragment of several titles.
func (d *Detector) best(query string, entries []catalog.Entry, forms textForms, threshold float64) *candidate {
	matches := d.rank(query, entries, forms, threshold)
	if len(matches) == 0 || ambiguous(matches) {
		return nil
	}
	return &matches[0]
}

func ambiguous(matches []candidate) bool {
	return len(matches) > 1 && matches[0].partial && matches[1].partial
}

func (d *Detector) score(nq, nc string, threshold float64) (candidate, bool) {
	if nc == "" {
		return candidate{}, false
	}
	switch {
	case nq == nc:
		return candidate{score: scoreEqual}, true
	case strings.Contains(nq, nc) && d.meaningful(nc):
		return candidate{score: scoreContained + ratio(nc, nq)}, true
	case strings.Contains(nc, nq) && d.meaningful(nq):
		return candidate{score: scoreContained + ratio(nq, nc), partial: true}, true
	}

	shorter, longer := nq, nc
	if len(nc) < len(nq) {
		shorter, longer = nc, nq
	}
	if !numbersAgree(shorter, longer) {
		return candidate{}, false
	}
	if overlap := textmatch.WordOverlap(nq, nc); overlap >= threshold {
		return candidate{score: overlap}, true
	}
	return candidate{}, false
}

func ratio(short, long string) float64 {
	return float64(len(short)) / float64(len(long))
}

// numbersAgree reports whether every token of short that carries a digit
// also starts some word of long, so "pixel 8" never matches "pixel 7".
func numbersAgree(short, long string) bool {
	longWords := strings.Fields(long)
	for _, tok := range strings.Fields(short) {
		if !strings.ContainsAny(tok, "0123456789") {
			continue
		}
		found := false
		for _, w := range longWords {
			if strings.HasPrefix(w, tok) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
