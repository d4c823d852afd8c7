package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/spherical/libs/commerce-assistant/cmd/assistant-api/handlers"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/cmd/assistant-api/middleware"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/api/rpc"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/assistant"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/fusion"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/indexing"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/ingest"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/observability"
	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/retrieval"
)

type fakeBackend struct {
	lastQuery assistant.Request
	seed      string
	readyErr  error
}

func (f *fakeBackend) Query(ctx context.Context, req assistant.Request) (fusion.FusedContext, error) {
	f.lastQuery = req
	if strings.TrimSpace(req.Query) == "" {
		return fusion.FusedContext{}, assistant.ErrEmptyQuery
	}
	return fusion.FusedContext{Route: retrieval.RouteNoRetrieval, Type: fusion.TypeGeneral, Items: []retrieval.Item{}}, nil
}

func (f *fakeBackend) Ingest(ctx context.Context, req ingest.IngestionRequest) (*ingest.IngestionResult, error) {
	data, err := io.ReadAll(req.Source)
	if err != nil {
		return nil, err
	}
	f.seed = string(data)
	if f.seed == "" {
		return nil, errors.New("empty seed")
	}
	return &ingest.IngestionResult{JobID: uuid.New(), ProductsLoaded: 1}, nil
}

func (f *fakeBackend) Reindex(ctx context.Context, progress indexing.ProgressFunc) (indexing.Stats, error) {
	return indexing.Stats{Products: 3, Orders: 1}, nil
}

func (f *fakeBackend) Ready(ctx context.Context) error { return f.readyErr }

func newTestServer(t *testing.T, backend *fakeBackend) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(observability.NopLogger(), backend, RouterConfig{
		RequestTimeout: 5 * time.Second,
		AllowedOrigins: []string{"*"},
	}))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string, header map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRouter_Health(t *testing.T) {
	backend := &fakeBackend{}
	srv := newTestServer(t, backend)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	backend.readyErr = errors.New("db down")
	resp, err = http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRouter_Query(t *testing.T) {
	backend := &fakeBackend{}
	srv := newTestServer(t, backend)
	user := uuid.New()

	resp := post(t, srv.URL+"/api/v1/assistant/query", `{"query":"track my order","intentHint":"order_tracking"}`,
		map[string]string{middleware.DevUserHeader: user.String()})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body handlers.QueryResponseDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, fusion.TypeGeneral, body.Context.Type)
	assert.Equal(t, "order_tracking", backend.lastQuery.IntentHint)
	require.NotNil(t, backend.lastQuery.UserID)
	assert.Equal(t, user, *backend.lastQuery.UserID)
}

func TestRouter_QueryValidation(t *testing.T) {
	srv := newTestServer(t, &fakeBackend{})

	for _, body := range []string{`{"query":"  "}`, `{}`, `not json`} {
		resp := post(t, srv.URL+"/api/v1/assistant/query", body, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestRouter_CatalogRequiresCaller(t *testing.T) {
	backend := &fakeBackend{}
	srv := newTestServer(t, backend)
	caller := map[string]string{middleware.DevUserHeader: uuid.NewString()}

	resp := post(t, srv.URL+"/api/v1/catalog/reindex", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = post(t, srv.URL+"/api/v1/catalog/reindex", "", caller)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats handlers.ReindexDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, handlers.ReindexDTO{Products: 3, Orders: 1}, stats)

	resp = post(t, srv.URL+"/api/v1/catalog/ingest", "products: []\n", caller)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "products: []\n", backend.seed)

	resp = post(t, srv.URL+"/api/v1/catalog/ingest", "", caller)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestRouter_ConnectQuery(t *testing.T) {
	backend := &fakeBackend{}
	srv := newTestServer(t, backend)
	client := rpc.NewQueryClient(srv.Client(), srv.URL)

	req := connect.NewRequest(&rpc.QueryRequest{Query: "hello"})
	user := uuid.New()
	req.Header().Set(middleware.DevUserHeader, user.String())

	resp, err := client.CallUnary(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, fusion.TypeGeneral, resp.Msg.Context.Type)
	require.NotNil(t, backend.lastQuery.UserID)
	assert.Equal(t, user, *backend.lastQuery.UserID)

	_, err = client.CallUnary(context.Background(), connect.NewRequest(&rpc.QueryRequest{}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}
