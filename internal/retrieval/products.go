package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/intent"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/storage"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/textmatch"
)

// Category sources recorded in applied filters.
const (
	categoryFromIntent = "intent"
	categoryFromPhone  = "phone_override"
	categoryFromSpecs  = "spec_confidence"
)

func (r *Router) semantic(ctx context.Context, query string, in intent.ProductSemantic) (RoutedContext, error) {
	rc := newContext(in, RouteSemanticSearch, RetrievalStructured)

	category, source := r.resolveCategory(query, in.Category)
	var products []*storage.Product
	var err error
	if category != "" {
		rc.AppliedFilters["category"] = string(category)
		rc.AppliedFilters["category_source"] = source
		products, err = r.catalog.ListByCategory(ctx, category)
	} else {
		products, err = r.catalog.ListAll(ctx)
	}
	if err != nil {
		return rc, fmt.Errorf("list products: %w", err)
	}

	sims := r.similarProducts(ctx, query, r.config.CandidateLimit)
	if len(sims) > 0 {
		rc.RetrievalType = RetrievalHybrid
	}
	specNames := r.specs.ExtractSpecs(query, category)
	if len(specNames) > 0 {
		rc.AppliedFilters["specs"] = specNames
	}

	rc.Items = r.newScorer(query, category, sims).rank(products, r.config.SemanticLimit)
	r.annotateSpecs(rc.Items, specNames)
	return rc, nil
}

// resolveCategory picks the category for a free-form search: the intent's
// slot, then an explicit phone mention, then the best spec-dictionary match.
func (r *Router) resolveCategory(query string, slot *storage.Category) (storage.Category, string) {
	if slot != nil {
		return *slot, categoryFromIntent
	}
	q := textmatch.Normalize(query)
	if r.vocab.IsPhoneQuery(q) {
		return storage.CategorySmartphones, categoryFromPhone
	}
	if c, _, ok := r.specs.BestCategory(q); ok {
		return c, categoryFromSpecs
	}
	return "", ""
}

func (r *Router) annotateSpecs(items []Item, specNames []string) {
	if len(specNames) == 0 || len(items) == 0 {
		return
	}
	products := make([]*storage.Product, len(items))
	for i := range items {
		products[i] = items[i].Product
	}
	matched := make(map[uuid.UUID][]string, len(items))
	for _, s := range r.specs.ScoreBySpec(products, specNames) {
		matched[s.Product.ID] = s.Matched
	}
	for i := range items {
		if m := matched[items[i].Product.ID]; len(m) > 0 {
			items[i].MatchedSpecs = m
		}
	}
}

func (r *Router) exact(ctx context.Context, query string, in intent.ProductExact) (RoutedContext, error) {
	rc := newContext(in, RouteExactProduct, RetrievalStructured)

	name := in.Name
	if name == "" {
		name = query
	}

	res, err := NewLadder[*storage.Product]().
		Then("product_id", func(ctx context.Context) ([]*storage.Product, error) {
			if in.ProductID == uuid.Nil {
				return nil, nil
			}
			rc.AppliedFilters["product_id"] = in.ProductID.String()
			p, err := r.catalog.GetByID(ctx, in.ProductID)
			if errors.Is(err, storage.ErrNotFound) {
				return nil, nil
			}
			if err != nil {
				return nil, err
			}
			return []*storage.Product{p}, nil
		}).
		Then("title_terms", func(ctx context.Context) ([]*storage.Product, error) {
			terms := r.vocab.NameTerms(name)
			if len(terms) == 0 {
				return nil, nil
			}
			rc.AppliedFilters["title_terms"] = terms
			return r.catalog.MatchTitle(ctx, terms, 1)
		}).
		Run(ctx)
	if err != nil {
		return rc, err
	}

	if res.Tier != "" {
		rc.AppliedFilters["fallback_tier"] = res.Tier
		if res.Tier == "title_terms" {
			rc.RetrievalType = RetrievalText
		}
	}
	if len(res.Items) > 0 {
		rc.Items = productItems(res.Items[:1])
	}
	return rc, nil
}

func (r *Router) comparison(ctx context.Context, query string, in intent.ProductComparison) (RoutedContext, error) {
	rc := newContext(in, RouteComparison, RetrievalStructured)
	if in.Category != nil {
		rc.AppliedFilters["category"] = string(*in.Category)
	}

	switch {
	case len(in.ProductIDs) > 0:
		rc.AppliedFilters["product_ids"] = in.ProductIDs
		found, err := r.catalog.GetByIDs(ctx, in.ProductIDs)
		if err != nil {
			return rc, fmt.Errorf("load compared products: %w", err)
		}
		ordered := orderByIDs(found, in.ProductIDs)
		if len(ordered) < len(in.ProductIDs) {
			rc.Clarification = partialMatchMessage(len(ordered), len(in.ProductIDs))
			return rc, nil
		}
		rc.Items = productItems(ordered)

	case len(in.ProductNames) > 0:
		rc.AppliedFilters["product_names"] = in.ProductNames
		rc.RetrievalType = RetrievalText
		resolved, err := r.resolveNames(ctx, in.ProductNames, in.Category)
		if err != nil {
			return rc, err
		}
		var products []*storage.Product
		for _, p := range resolved {
			if p != nil {
				products = append(products, p)
			}
		}
		if len(products) < len(in.ProductNames) {
			rc.Clarification = partialMatchMessage(len(products), len(in.ProductNames))
			return rc, nil
		}
		rc.Items = productItems(products)

	case r.vocab.HasBulkCue(textmatch.Normalize(query)):
		return r.bulkComparison(ctx, query, in, rc)

	default:
		rc.RetrievalType = RetrievalNone
		rc.Clarification = "Which products would you like me to compare? Please name at least two."
	}
	return rc, nil
}

// resolveNames looks up every name concurrently and assigns each one a
// distinct product. A nil entry marks a name with no remaining candidate.
func (r *Router) resolveNames(ctx context.Context, names []string, category *storage.Category) ([]*storage.Product, error) {
	candidates := make([][]*storage.Product, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			found, err := r.matchName(gctx, name)
			if err != nil {
				return fmt.Errorf("resolve %q: %w", name, err)
			}
			candidates[i] = rankCandidates(name, found, category)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	used := make(map[uuid.UUID]bool, len(names))
	out := make([]*storage.Product, len(names))
	for i := range names {
		for _, p := range candidates[i] {
			if !used[p.ID] {
				used[p.ID] = true
				out[i] = p
				break
			}
		}
	}
	return out, nil
}

// matchName finds titles containing every word of name, retrying without
// brand words since many titles omit the brand.
func (r *Router) matchName(ctx context.Context, name string) ([]*storage.Product, error) {
	words := textmatch.Words(name)
	res, err := NewLadder[*storage.Product]().
		Then("all_terms", func(ctx context.Context) ([]*storage.Product, error) {
			return r.catalog.MatchTitle(ctx, words, r.config.CandidateLimit)
		}).
		Then("without_brand", func(ctx context.Context) ([]*storage.Product, error) {
			var rest []string
			for _, w := range words {
				if !textmatch.ContainsAny(w, r.vocab.Brands) {
					rest = append(rest, w)
				}
			}
			if len(rest) == 0 || len(rest) == len(words) {
				return nil, nil
			}
			return r.catalog.MatchTitle(ctx, rest, r.config.CandidateLimit)
		}).
		Run(ctx)
	return res.Items, err
}

// rankCandidates drops products outside category and orders the rest by
// how closely they match name, shortest title first on ties.
func rankCandidates(name string, products []*storage.Product, category *storage.Category) []*storage.Product {
	n := textmatch.Normalize(name)
	out := make([]*storage.Product, 0, len(products))
	for _, p := range products {
		if p == nil || (category != nil && p.Category != *category) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := closeness(n, out[i]), closeness(n, out[j])
		if ci != cj {
			return ci > cj
		}
		return len(out[i].Title) < len(out[j].Title)
	})
	return out
}

func closeness(name string, p *storage.Product) float64 {
	title := textmatch.Normalize(p.Title)
	brandTitle := textmatch.Normalize(p.Brand + " " + p.Title)
	if name == title || name == brandTitle {
		return 2
	}
	return textmatch.WordOverlap(name, brandTitle)
}

func (r *Router) bulkComparison(ctx context.Context, query string, in intent.ProductComparison, rc RoutedContext) (RoutedContext, error) {
	limit := r.config.ComparisonBulkLimit
	rc.AppliedFilters["bulk"] = true

	var terms []string
	for _, w := range r.vocab.Keywords(query) {
		if !textmatch.ContainsAny(w, r.vocab.BulkCues) && !r.vocab.IsGenericNoun(w) {
			terms = append(terms, w)
		}
	}

	res, err := NewLadder[*storage.Product]().
		Then("text_search", func(ctx context.Context) ([]*storage.Product, error) {
			if len(terms) == 0 {
				return nil, nil
			}
			return r.catalog.SearchText(ctx, terms, in.Category, limit)
		}).
		Then("vector_search", func(ctx context.Context) ([]*storage.Product, error) {
			vec := r.queryVector(ctx, query)
			if vec == nil {
				return nil, nil
			}
			results, err := r.index.TopK(ctx, vec, limit)
			if err != nil || len(results) == 0 {
				return nil, err
			}
			ids := make([]uuid.UUID, len(results))
			for i, res := range results {
				ids[i] = res.EntityID
			}
			found, err := r.catalog.GetByIDs(ctx, ids)
			if err != nil {
				return nil, err
			}
			return inCategory(orderByIDs(found, ids), in.Category), nil
		}).
		Then("top_rated", func(ctx context.Context) ([]*storage.Product, error) {
			if in.Category == nil {
				return nil, nil
			}
			return r.catalog.TopRated(ctx, in.Category, limit)
		}).
		Run(ctx)
	if err != nil {
		return rc, err
	}

	switch res.Tier {
	case "":
		rc.RetrievalType = RetrievalNone
		rc.Clarification = "I couldn't find products to compare. Which ones did you have in mind?"
		return rc, nil
	case "text_search":
		rc.RetrievalType = RetrievalText
	case "vector_search":
		rc.RetrievalType = RetrievalVector
	}
	rc.AppliedFilters["fallback_tier"] = res.Tier
	items := res.Items
	if len(items) > limit {
		items = items[:limit]
	}
	rc.Items = productItems(items)
	return rc, nil
}

func (r *Router) recommendation(ctx context.Context, query string, in intent.ProductRecommendation) (RoutedContext, error) {
	rc := newContext(in, RouteRecommendation, RetrievalStructured)
	limit := r.config.CandidateLimit

	filter := storage.ProductFilter{
		Category:  in.Category,
		Brands:    in.Brands,
		MaxPrice:  in.MaxPrice,
		MinRating: in.MinRating,
		Limit:     limit,
	}
	if in.Category != nil {
		rc.AppliedFilters["category"] = string(*in.Category)
	}
	if len(in.Brands) > 0 {
		rc.AppliedFilters["brands"] = in.Brands
	}
	if in.MaxPrice != nil {
		rc.AppliedFilters["max_price"] = *in.MaxPrice
	}
	if in.MinRating != nil {
		rc.AppliedFilters["min_rating"] = *in.MinRating
	}
	if len(in.UseCases) > 0 {
		rc.AppliedFilters["use_cases"] = in.UseCases
	}

	res, err := NewLadder[*storage.Product]().
		Then("all_filters", func(ctx context.Context) ([]*storage.Product, error) {
			return r.catalog.Filter(ctx, filter)
		}).
		Then("category_only", func(ctx context.Context) ([]*storage.Product, error) {
			if in.Category == nil {
				return nil, nil
			}
			return r.catalog.Filter(ctx, storage.ProductFilter{Category: in.Category, Limit: limit})
		}).
		Then("use_case_search", func(ctx context.Context) ([]*storage.Product, error) {
			terms := r.vocab.UseCaseTerms(in.UseCases)
			if len(terms) == 0 {
				return nil, nil
			}
			return r.catalog.SearchText(ctx, terms, in.Category, limit)
		}).
		Then("category_top_rated", func(ctx context.Context) ([]*storage.Product, error) {
			if in.Category == nil {
				return nil, nil
			}
			return r.catalog.TopRated(ctx, in.Category, limit)
		}).
		Then("global_top_rated", func(ctx context.Context) ([]*storage.Product, error) {
			return r.catalog.TopRated(ctx, nil, limit)
		}).
		Run(ctx)
	if err != nil {
		return rc, err
	}
	if res.Tier != "" {
		rc.AppliedFilters["fallback_tier"] = res.Tier
	}
	if len(res.Failures) > 0 {
		r.logger.Warn().
			Err(errors.Join(res.Failures...)).
			Str("tier", res.Tier).
			Msg("Recommendation tiers failed before a fallback succeeded")
	}

	var category storage.Category
	if in.Category != nil {
		category = *in.Category
	}
	sims := r.similarProducts(ctx, query, limit)
	if len(sims) > 0 {
		rc.RetrievalType = RetrievalHybrid
	}
	rc.Items = r.newScorer(query, category, sims).rank(res.Items, r.config.RecommendationLimit)
	return rc, nil
}

// orderByIDs returns the products in the order of ids, dropping missing and
// duplicate ones.
func orderByIDs(products []*storage.Product, ids []uuid.UUID) []*storage.Product {
	byID := make(map[uuid.UUID]*storage.Product, len(products))
	for _, p := range products {
		if p != nil {
			byID[p.ID] = p
		}
	}
	out := make([]*storage.Product, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, p)
		}
	}
	return out
}

func inCategory(products []*storage.Product, category *storage.Category) []*storage.Product {
	if category == nil {
		return products
	}
	out := products[:0:0]
	for _, p := range products {
		if p.Category == *category {
			out = append(out, p)
		}
	}
	return out
}

func partialMatchMessage(resolved, total int) string {
	return fmt.Sprintf("I could only find %d of the %d products you mentioned. Could you give the exact model names?", resolved, total)
}
