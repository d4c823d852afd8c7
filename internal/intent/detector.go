package intent

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/catalog"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/observability"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/textmatch"
)

// Confidence per matching tier. Only their order is meaningful.
const (
	confRecommendation         = 0.7
	confRecommendationCategory = 0.8
	confRecommendationPrice    = 0.9

	confComparisonResolved = 0.95
	confComparisonNamed    = 0.85
	confComparisonCue      = 0.75

	confExactTitle      = 0.95
	confExactBrandTitle = 0.9
	confExactSKU        = 0.85
	confExactPosition   = 0.8
	confExactRelaxed    = 0.7

	confResidualProduct = 0.6
	confFallback        = 0.3
)

var nameDelimiters = regexp.MustCompile(`\s*(?:,|;|/|&|\bvs\b\.?|\bversus\b|\band\b|\bor\b|\bagainst\b|\bwith\b|\bto\b|\bthan\b)\s*`)

// nameQualifier starts the trailing purpose or condition of a compared name,
// as in "samsung s24 for gaming".
var nameQualifier = regexp.MustCompile(`\b(?:for|in terms of|when it comes to|regarding|on|under|over|in)\b.*$`)

// TitleLookup supplies the catalog title snapshot.
type TitleLookup interface {
	GetOrRefresh(ctx context.Context, now time.Time) (*catalog.Snapshot, error)
}

// Detector classifies queries. It is safe for concurrent use.
type Detector struct {
	vocab  Vocabulary
	titles TitleLookup
	logger *observability.Logger
	now    func() time.Time
}

// NewDetector creates a detector. titles may be nil, in which case
// product-name resolution is skipped.
func NewDetector(vocab Vocabulary, titles TitleLookup, logger *observability.Logger) *Detector {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Detector{vocab: vocab, titles: titles, logger: logger, now: time.Now}
}

// Detect classifies query. It never fails: anything unrecognized is General.
func (d *Detector) Detect(ctx context.Context, query string) (result Intent) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Str("query", query).Interface("panic", r).Msg("Intent detection panicked")
			result = General{Meta{confFallback, "detection failed"}}
		}
	}()

	result = d.detect(ctx, query)
	d.logger.Debug().
		Str("query", query).
		Str("intent", string(result.Kind())).
		Float64("confidence", result.Confidence()).
		Str("reason", result.Reason()).
		Msg("Intent detected")
	return result
}

func (d *Detector) detect(ctx context.Context, query string) Intent {
	lower := strings.ToLower(query)
	q := textmatch.Normalize(query)
	if q == "" {
		return General{Meta{confFallback, "empty query"}}
	}

	if in, ok := d.recommendation(q, lower); ok {
		return in
	}

	snap := d.snapshot(ctx)
	if in, ok := d.comparison(q, lower, snap); ok {
		return in
	}
	if in, ok := d.exact(q, snap); ok {
		return in
	}
	if in, ok := d.rules(q, lower); ok {
		return in
	}
	if d.vocab.HasProductTerm(q) || textmatch.ContainsAny(q, snap.Brands()) {
		return ProductSemantic{Meta{confResidualProduct, "product term"}, d.vocab.MatchCategory(q)}
	}
	return General{Meta{confFallback, "no rule matched"}}
}

func (d *Detector) snapshot(ctx context.Context) *catalog.Snapshot {
	if d.titles == nil {
		return &catalog.Snapshot{}
	}
	snap, err := d.titles.GetOrRefresh(ctx, d.now())
	if err != nil {
		d.logger.Warn().Err(err).Msg("Title cache unavailable, matching against last snapshot")
	}
	if snap == nil {
		return &catalog.Snapshot{}
	}
	return snap
}

func (d *Detector) recommendation(q, lower string) (Intent, bool) {
	if !textmatch.ContainsAny(q, d.vocab.RecommendationCues) {
		return nil, false
	}

	in := ProductRecommendation{
		Meta:      Meta{confRecommendation, "recommendation cue"},
		Category:  d.vocab.MatchCategory(q),
		MaxPrice:  parsePrice(lower),
		MinRating: parseRating(lower),
		Brands:    d.vocab.matchBrands(q),
		UseCases:  d.vocab.matchUseCases(q),
	}
	if in.Category != nil {
		in.Score, in.Why = confRecommendationCategory, "recommendation cue with category"
		if in.MaxPrice != nil {
			in.Score, in.Why = confRecommendationPrice, "recommendation cue with category and price"
		}
	}
	return in, true
}

func (d *Detector) comparison(q, lower string, snap *catalog.Snapshot) (Intent, bool) {
	// "between 20k and 30k" is a price range, not a comparison.
	lower = priceRange.ReplaceAllString(lower, " ")
	text := textmatch.Normalize(lower)

	strong := textmatch.ContainsAny(text, d.vocab.StrongComparisonCues)
	weak := textmatch.ContainsAny(text, d.vocab.WeakComparisonCues)
	if !strong && !weak {
		return nil, false
	}
	names := d.extractNames(lower)
	if !strong && len(names) < 2 {
		return nil, false
	}

	in := ProductComparison{
		Meta:         Meta{confComparisonCue, "comparison cue without product names"},
		ProductNames: names,
		Category:     d.vocab.MatchCategory(q),
	}
	if len(names) == 0 {
		return in, true
	}
	in.Score, in.Why = confComparisonNamed, fmt.Sprintf("comparison of %d named products", len(names))

	entries := snap.Entries
	if in.Category != nil {
		entries = snap.ByCategory(*in.Category)
	}
	if ids, ok := d.resolveNames(names, entries); ok && len(ids) >= 2 {
		in.ProductIDs = ids
		in.Score, in.Why = confComparisonResolved, fmt.Sprintf("comparison of %d resolved products", len(ids))
	}
	return in, true
}

// extractNames splits a comparison on its delimiters, drops trailing
// qualifiers and keeps the parts that still name something once stop words
// and device nouns are removed.
func (d *Detector) extractNames(lower string) []string {
	seen := map[string]bool{}
	var names []string
	for _, part := range nameDelimiters.Split(lower, -1) {
		part = nameQualifier.ReplaceAllString(part, "")
		var kept []string
		for _, w := range textmatch.Words(part) {
			if d.vocab.isStopWord(w) || d.vocab.IsGenericNoun(w) {
				continue
			}
			kept = append(kept, w)
		}
		name := strings.Join(kept, " ")
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// resolveNames maps every name to a distinct entry. It fails if any name is
// unmatched or ambiguous.
func (d *Detector) resolveNames(names []string, entries []catalog.Entry) ([]uuid.UUID, bool) {
	used := map[uuid.UUID]bool{}
	ids := make([]uuid.UUID, 0, len(names))
	for _, name := range names {
		matches := d.rank(name, entries, brandTitle, textmatch.ThresholdBrandTitle)
		var picked *catalog.Entry
		for i := range matches {
			if !used[matches[i].entry.ID] {
				picked = &matches[i].entry
				break
			}
		}
		if picked == nil || ambiguous(matches) {
			return nil, false
		}
		used[picked.ID] = true
		ids = append(ids, picked.ID)
	}
	return ids, true
}

func (d *Detector) exact(q string, snap *catalog.Snapshot) (Intent, bool) {
	if len(snap.Entries) == 0 {
		return nil, false
	}

	found := func(e catalog.Entry, conf float64, why string) (Intent, bool) {
		return ProductExact{Meta: Meta{conf, why}, ProductID: e.ID, Name: e.Title}, true
	}

	if m := d.best(q, snap.Entries, title, textmatch.ThresholdTitle); m != nil {
		return found(m.entry, confExactTitle, "title match")
	}
	if m := d.best(q, snap.Entries, brandTitle, textmatch.ThresholdBrandTitle); m != nil {
		return found(m.entry, confExactBrandTitle, "brand and title match")
	}
	if in, ok := d.exactBySKU(q, snap.Entries); ok {
		return in, true
	}
	if textmatch.ContainsAny(q, d.vocab.CommerceVerbs) {
		core := d.stripWords(q, d.vocab.CommerceVerbs)
		if m := d.best(core, snap.Entries, brandTitle, textmatch.ThresholdRelaxed); m != nil {
			return found(m.entry, confExactRelaxed, "relaxed match after commerce verb")
		}
	}
	return nil, false
}

// exactBySKU resolves model codes, then a trailing number used as a position
// among several partial matches ("show me oneplus 2").
func (d *Detector) exactBySKU(q string, entries []catalog.Entry) (Intent, bool) {
	for _, sku := range textmatch.SKUs(q) {
		var hits []catalog.Entry
		for _, e := range entries {
			if textmatch.ContainsWord(e.SearchText, sku) {
				hits = append(hits, e)
			}
		}
		if len(hits) == 1 {
			return ProductExact{Meta: Meta{confExactSKU, "model code " + sku}, ProductID: hits[0].ID, Name: hits[0].Title}, true
		}
	}

	n, hasNum := textmatch.TrailingNumber(q)
	base := d.stripWords(textmatch.StripTrailingNumber(q), d.vocab.CommerceVerbs)
	if !d.meaningful(base) {
		return nil, false
	}
	var hits []catalog.Entry
	for _, e := range entries {
		if textmatch.FuzzyMatch(base, e.Brand+" "+e.Title, textmatch.ThresholdBrandTitle) {
			hits = append(hits, e)
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Title < hits[j].Title })

	switch {
	case len(hits) == 1:
		return ProductExact{Meta: Meta{confExactSKU, "single partial match"}, ProductID: hits[0].ID, Name: hits[0].Title}, true
	case len(hits) > 1 && hasNum && n >= 1 && n <= len(hits):
		e := hits[n-1]
		idx := n
		return ProductExact{Meta: Meta{confExactPosition, fmt.Sprintf("partial match %d of %d", n, len(hits))}, ProductID: e.ID, Name: e.Title, SKUIndex: &idx}, true
	}
	return nil, false
}

func (d *Detector) rules(q, lower string) (Intent, bool) {
	hasProductNoun := textmatch.ContainsAny(q, d.vocab.ProductNouns)
	for _, rule := range d.vocab.Rules {
		if rule.Kind == KindProductRecommendation {
			continue
		}
		if rule.Kind == KindOrderSupport && hasProductNoun {
			continue
		}
		if !textmatch.ContainsAny(q, rule.Keywords) {
			continue
		}
		meta := Meta{rule.Confidence, "rule: " + string(rule.Kind)}
		switch rule.Kind {
		case KindOrderTracking:
			return OrderTracking{Meta: meta, OrderRef: parseOrderRef(lower)}, true
		case KindOrderSupport:
			return OrderSupport{Meta: meta, OrderRef: parseOrderRef(lower)}, true
		case KindUserAccount:
			return UserAccount{Meta: meta}, true
		case KindProductSemantic:
			return ProductSemantic{Meta: meta, Category: d.vocab.MatchCategory(q)}, true
		case KindGeneral:
			return General{Meta: meta}, true
		}
	}
	return nil, false
}

// stripWords removes stop words and extra from q.
func (d *Detector) stripWords(q string, extra []string) string {
	var kept []string
	for _, w := range textmatch.Words(q) {
		if d.vocab.isStopWord(w) || contains(extra, w) {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// meaningful reports whether s has a word that could name a product.
func (d *Detector) meaningful(s string) bool {
	for _, w := range textmatch.SignificantWords(s) {
		if !d.vocab.isStopWord(w) && !d.vocab.IsGenericNoun(w) {
			return true
		}
	}
	return false
}

func contains(list []string, w string) bool {
	for _, s := range list {
		if s == w {
			return true
		}
	}
	return false
}
