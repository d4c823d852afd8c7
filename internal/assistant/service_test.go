package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/cache"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/fusion"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/intent"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/observability"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/retrieval"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/storage"
)

type stubDetector struct {
	result intent.Intent
	calls  int
}

func (d *stubDetector) Detect(ctx context.Context, query string) intent.Intent {
	d.calls++
	return d.result
}

type recordingRouter struct {
	mu      sync.Mutex
	product *storage.Product
	got     []intent.Intent
	users   []*uuid.UUID
	failure string
}

func (r *recordingRouter) Route(ctx context.Context, query string, in intent.Intent, userID *uuid.UUID) retrieval.RoutedContext {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, in)
	r.users = append(r.users, userID)

	rc := retrieval.RoutedContext{Intent: in, AppliedFilters: map[string]interface{}{}, Error: r.failure}
	switch in.(type) {
	case intent.ProductSemantic:
		rc.Route = retrieval.RouteSemanticSearch
		rc.RetrievalType = retrieval.RetrievalStructured
		rc.Items = []retrieval.Item{retrieval.ProductItem(r.product)}
	case intent.ProductRecommendation:
		rc.Route = retrieval.RouteRecommendation
		rc.RetrievalType = retrieval.RetrievalStructured
		rc.Items = []retrieval.Item{retrieval.ProductItem(r.product)}
	case intent.OrderTracking:
		rc.Route = retrieval.RouteLoginRequired
		if userID != nil {
			rc.Route = retrieval.RouteOrderTracking
		}
	default:
		rc.Route = retrieval.RouteNoRetrieval
	}
	return rc
}

func newTestService(t *testing.T, det *stubDetector, router *recordingRouter) (*Service, *cache.MemoryClient) {
	t.Helper()
	mem := cache.NewMemoryClient(100)
	t.Cleanup(func() { _ = mem.Close() })
	rc := NewResponseCache(mem, observability.NopLogger(), DefaultResponseCacheConfig())
	return NewService(det, router, rc, observability.NopLogger()), mem
}

func testProduct() *storage.Product {
	return &storage.Product{ID: uuid.New(), Title: "Pixel 8", Brand: "Google", Category: storage.CategorySmartphones, Price: 59999, Rating: 4.4}
}

func TestService_RejectsEmptyQuery(t *testing.T) {
	det := &stubDetector{result: intent.General{}}
	svc, _ := newTestService(t, det, &recordingRouter{})

	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := svc.Query(context.Background(), Request{Query: q})
		assert.ErrorIs(t, err, ErrEmptyQuery)
	}
	assert.Zero(t, det.calls)
}

func TestService_RunsPipeline(t *testing.T) {
	p := testProduct()
	det := &stubDetector{result: intent.ProductSemantic{Meta: intent.Meta{Score: 0.6, Why: "residual product words"}}}
	router := &recordingRouter{product: p}
	svc, _ := newTestService(t, det, router)

	fc, err := svc.Query(context.Background(), Request{Query: "  phones with a good camera "})
	require.NoError(t, err)

	assert.Equal(t, fusion.TypeProductList, fc.Type)
	assert.Equal(t, retrieval.RouteSemanticSearch, fc.Route)
	require.Len(t, fc.Items, 1)
	assert.Equal(t, p.ID, fc.Items[0].Product.ID)
	assert.Equal(t, intent.KindProductSemantic, fc.Intent.Type)
	assert.Empty(t, fc.UserID)
}

func TestService_IntentHintOverridesDetection(t *testing.T) {
	det := &stubDetector{result: intent.ProductSemantic{Meta: intent.Meta{Score: 0.6}}}
	router := &recordingRouter{product: testProduct()}
	svc, _ := newTestService(t, det, router)

	fc, err := svc.Query(context.Background(), Request{Query: "good phones", IntentHint: "Product_Recommendation"})
	require.NoError(t, err)

	assert.Equal(t, fusion.TypeProductRecommendation, fc.Type)
	require.Len(t, router.got, 1)
	assert.Equal(t, intent.KindProductRecommendation, router.got[0].Kind())
}

func TestService_IgnoresUnknownHint(t *testing.T) {
	det := &stubDetector{result: intent.ProductSemantic{Meta: intent.Meta{Score: 0.6}}}
	router := &recordingRouter{product: testProduct()}
	svc, _ := newTestService(t, det, router)

	fc, err := svc.Query(context.Background(), Request{Query: "good phones", IntentHint: "teleport"})
	require.NoError(t, err)
	assert.Equal(t, fusion.TypeProductList, fc.Type)
}

func TestService_CachesAnonymousProductQueries(t *testing.T) {
	det := &stubDetector{result: intent.ProductSemantic{Meta: intent.Meta{Score: 0.6}}}
	router := &recordingRouter{product: testProduct()}
	svc, mem := newTestService(t, det, router)
	ctx := context.Background()

	first, err := svc.Query(ctx, Request{Query: "Gaming laptops"})
	require.NoError(t, err)
	second, err := svc.Query(ctx, Request{Query: "gaming laptops "})
	require.NoError(t, err)

	assert.Equal(t, 1, det.calls)
	assert.Len(t, router.got, 1)
	assert.Equal(t, 1, mem.Len())
	assert.Equal(t, first.Type, second.Type)
	require.Len(t, second.Items, 1)
	assert.Equal(t, first.Items[0].Product.ID, second.Items[0].Product.ID)

	require.NoError(t, svc.InvalidateCache(ctx))
	assert.Zero(t, mem.Len())
}

func TestService_NeverCachesUserScopedQueries(t *testing.T) {
	det := &stubDetector{result: intent.OrderTracking{Meta: intent.Meta{Score: 0.8}}}
	router := &recordingRouter{}
	svc, mem := newTestService(t, det, router)
	user := uuid.New()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		fc, err := svc.Query(ctx, Request{Query: "where is my order", UserID: &user})
		require.NoError(t, err)
		assert.Equal(t, fusion.TypeOrderStatus, fc.Type)
		assert.Equal(t, user.String(), fc.UserID)
	}
	assert.Equal(t, 2, det.calls)
	assert.Zero(t, mem.Len())

	anon, err := svc.Query(ctx, Request{Query: "where is my order"})
	require.NoError(t, err)
	assert.Equal(t, fusion.TypeAuthRequired, anon.Type)
	assert.Zero(t, mem.Len())
	assert.Nil(t, router.users[2])
}

func TestService_DoesNotCacheFailures(t *testing.T) {
	det := &stubDetector{result: intent.ProductSemantic{}}
	router := &recordingRouter{product: testProduct(), failure: "list products: db down"}
	svc, mem := newTestService(t, det, router)

	fc, err := svc.Query(context.Background(), Request{Query: "laptops"})
	require.NoError(t, err)
	assert.Equal(t, "list products: db down", fc.Error)
	assert.Zero(t, mem.Len())
}

func TestService_WorksWithoutCache(t *testing.T) {
	det := &stubDetector{result: intent.ProductSemantic{}}
	svc := NewService(det, &recordingRouter{product: testProduct()}, nil, observability.NopLogger())

	for i := 0; i < 2; i++ {
		_, err := svc.Query(context.Background(), Request{Query: "laptops"})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, det.calls)
	assert.NoError(t, svc.InvalidateCache(context.Background()))
}

func TestResponseCache_KeyIsStable(t *testing.T) {
	c := NewResponseCache(nil, nil, ResponseCacheConfig{})

	assert.Equal(t, c.Key("Gaming Laptops", ""), c.Key(" gaming laptops", ""))
	assert.NotEqual(t, c.Key("gaming laptops", ""), c.Key("gaming laptops", "product_recommendation"))
	assert.Regexp(t, `^assistant:response:[0-9a-f]{32}$`, c.Key("x", ""))
}

func TestResponseCache_Expires(t *testing.T) {
	mem := cache.NewMemoryClient(10)
	defer mem.Close()
	c := NewResponseCache(mem, observability.NopLogger(), ResponseCacheConfig{TTL: 20 * time.Millisecond, Enabled: true})
	ctx := context.Background()

	fc := fusion.Fuse(retrieval.RoutedContext{
		Intent: intent.ProductSemantic{},
		Route:  retrieval.RouteSemanticSearch,
		Items:  []retrieval.Item{retrieval.ProductItem(testProduct())},
	}, "")
	require.NoError(t, c.Set(ctx, "phones", "", fc))

	_, ok := c.Get(ctx, "phones", "")
	assert.True(t, ok)

	time.Sleep(40 * time.Millisecond)
	_, ok = c.Get(ctx, "phones", "")
	assert.False(t, ok)
}

func TestCacheable(t *testing.T) {
	tests := []struct {
		name string
		fc   fusion.FusedContext
		want bool
	}{
		{"product list", fusion.FusedContext{Type: fusion.TypeProductList}, true},
		{"comparison", fusion.FusedContext{Type: fusion.TypeProductComparison}, true},
		{"order status", fusion.FusedContext{Type: fusion.TypeOrderStatus}, false},
		{"auth required", fusion.FusedContext{Type: fusion.TypeAuthRequired}, false},
		{"general", fusion.FusedContext{Type: fusion.TypeGeneral}, false},
		{"with user", fusion.FusedContext{Type: fusion.TypeProductList, UserID: "u"}, false},
		{"with error", fusion.FusedContext{Type: fusion.TypeProductList, Error: "boom"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Cacheable(tt.fc))
		})
	}
}

func TestService_LogsOperationAndCaller(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json", Output: &buf})
	svc := NewService(&stubDetector{result: intent.OrderTracking{}}, &recordingRouter{}, nil, logger)
	user := uuid.New()

	_, err := svc.Query(context.Background(), Request{Query: "where is my order", UserID: &user})
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "Query processed", entry["message"])
	assert.Equal(t, "query", entry["operation"])
	assert.Equal(t, user.String(), entry["user_id"])
	assert.Equal(t, string(retrieval.RouteOrderTracking), entry["route"])
}
