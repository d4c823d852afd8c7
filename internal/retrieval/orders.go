package retrieval

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/intent"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/storage"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/textmatch"
)

const loginRequiredMessage = "Please sign in to see your orders."

var orderRefToken = regexp.MustCompile(`^(?:ord-?\d+|\d{3,}|[0-9a-f]{8}-[0-9a-f-]{27})$`)

func (r *Router) orderTracking(ctx context.Context, query string, in intent.OrderTracking, userID *uuid.UUID) (RoutedContext, error) {
	rc := newContext(in, RouteOrderTracking, RetrievalStructured)

	if in.OrderRef != "" {
		rc.AppliedFilters["order_ref"] = in.OrderRef
		order, err := r.lookupOrder(ctx, in.OrderRef, userID)
		if err != nil {
			return rc, err
		}
		if order != nil {
			rc.Items = []Item{OrderItem(order)}
			return rc, nil
		}
	}

	if userID == nil {
		rc.Route = RouteLoginRequired
		rc.RetrievalType = RetrievalNone
		rc.Clarification = loginRequiredMessage
		if in.OrderRef != "" {
			rc.Clarification = fmt.Sprintf("I couldn't find order %s. %s", in.OrderRef, loginRequiredMessage)
		}
		return rc, nil
	}
	rc.AppliedFilters["user_id"] = userID.String()

	limit := r.config.RecentOrdersLimit
	res, err := NewLadder[*storage.Order]().
		Then("similar_orders", func(ctx context.Context) ([]*storage.Order, error) {
			return r.similarOrders(ctx, query, *userID, limit)
		}).
		Then("recent_orders", func(ctx context.Context) ([]*storage.Order, error) {
			return r.orders.ListByUser(ctx, *userID, limit)
		}).
		Run(ctx)
	if err != nil {
		return rc, err
	}
	if res.Tier == "similar_orders" {
		rc.RetrievalType = RetrievalVector
	}
	if res.Tier != "" {
		rc.AppliedFilters["fallback_tier"] = res.Tier
	}
	rc.Items = orderItems(res.Items)
	return rc, nil
}

// similarOrders searches the caller's order embeddings when the query
// mentions something beyond order vocabulary, as in "where is my laptop".
func (r *Router) similarOrders(ctx context.Context, query string, owner uuid.UUID, limit int) ([]*storage.Order, error) {
	if !r.mentionsProducts(query) {
		return nil, nil
	}
	vec := r.queryVector(ctx, query)
	if vec == nil {
		return nil, nil
	}
	results, err := r.index.TopKForOwner(ctx, owner, vec, limit)
	if err != nil || len(results) == 0 {
		return nil, err
	}

	orders := make([]*storage.Order, len(results))
	g, gctx := errgroup.WithContext(ctx)
	for i, res := range results {
		g.Go(func() error {
			o, err := r.orders.GetByID(gctx, res.EntityID)
			if errors.Is(err, storage.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			if o.UserID == owner {
				orders[i] = o
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := orders[:0]
	for _, o := range orders {
		if o != nil {
			out = append(out, o)
		}
	}
	return out, nil
}

// mentionsProducts reports whether query has a keyword outside the order
// rules' vocabulary.
func (r *Router) mentionsProducts(query string) bool {
	orderWords := map[string]bool{"order": true, "orders": true}
	for _, rule := range r.vocab.Rules {
		if rule.Kind != intent.KindOrderTracking && rule.Kind != intent.KindOrderSupport {
			continue
		}
		for _, kw := range rule.Keywords {
			for _, w := range textmatch.Words(kw) {
				orderWords[w] = true
			}
		}
	}
	for _, w := range r.vocab.NameTerms(query) {
		if !orderWords[w] && !orderRefToken.MatchString(w) {
			return true
		}
	}
	return false
}

func (r *Router) orderSupport(ctx context.Context, in intent.OrderSupport, userID *uuid.UUID) (RoutedContext, error) {
	if userID == nil {
		rc := newContext(in, RouteNoRetrieval, RetrievalNone)
		rc.AppliedFilters["authenticated"] = false
		return rc, nil
	}

	rc := newContext(in, RouteOrderSupport, RetrievalStructured)
	rc.AppliedFilters["user_id"] = userID.String()

	if in.OrderRef != "" {
		rc.AppliedFilters["order_ref"] = in.OrderRef
		order, err := r.lookupOrder(ctx, in.OrderRef, userID)
		if err != nil {
			return rc, err
		}
		if order != nil {
			rc.Items = []Item{OrderItem(order)}
			return rc, nil
		}
	}

	recent, err := r.orders.ListByUser(ctx, *userID, 1)
	if err != nil {
		return rc, fmt.Errorf("list orders: %w", err)
	}
	rc.Items = orderItems(recent)
	if len(rc.Items) > 1 {
		rc.Items = rc.Items[:1]
	}
	return rc, nil
}

func (r *Router) userAccount(ctx context.Context, in intent.UserAccount, userID *uuid.UUID) (RoutedContext, error) {
	if userID == nil {
		rc := newContext(in, RouteNoRetrieval, RetrievalNone)
		rc.AppliedFilters["authenticated"] = false
		return rc, nil
	}

	rc := newContext(in, RouteUserAccount, RetrievalStructured)
	user, err := r.users.GetByID(ctx, *userID)
	if errors.Is(err, storage.ErrNotFound) {
		return rc, nil
	}
	if err != nil {
		return rc, fmt.Errorf("get user: %w", err)
	}
	rc.Items = []Item{UserItem(user)}
	return rc, nil
}

// lookupOrder resolves an order UUID or order number. An order belonging to
// someone other than an authenticated caller counts as not found.
func (r *Router) lookupOrder(ctx context.Context, ref string, userID *uuid.UUID) (*storage.Order, error) {
	var order *storage.Order
	var err error
	if id, perr := uuid.Parse(ref); perr == nil {
		order, err = r.orders.GetByID(ctx, id)
	} else {
		order, err = r.orders.GetByNumber(ctx, ref)
	}
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup order %s: %w", ref, err)
	}
	if userID == nil {
		return redactOrder(order), nil
	}
	if order.UserID != *userID {
		r.logger.Debug().Str("order_ref", ref).Msg("Order belongs to another user")
		return nil, nil
	}
	return order, nil
}

// redactOrder copies o without the owner and shipping address, for callers
// who only know the order number.
func redactOrder(o *storage.Order) *storage.Order {
	out := *o
	out.UserID = uuid.Nil
	out.ShippingAddress = ""
	return &out
}
