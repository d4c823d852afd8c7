package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Query(t *testing.T) {
	var gotHeader http.Header
	var gotBody QueryRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/assistant/query", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		gotHeader = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"context": {
				"intent": {"type": "product_comparison", "confidence": 0.9, "reason": "compare cue"},
				"route": "comparison",
				"type": "product_comparison",
				"items": [{"kind": "product", "product": {"id": "p1", "title": "Apple iPhone 15", "price": 79900,
					"specifications": [{"section": "Camera", "values": {"main camera": "48MP"}}]}}],
				"retrievalType": "structured",
				"metadata": {"appliedFilters": {"category": "Smartphones"}, "itemCount": 1}
			},
			"latencyMs": 3
		}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL + "/", Token: "tok", UserID: "u1"})
	resp, err := c.Query(context.Background(), QueryRequest{Query: "compare iphone 15 vs galaxy s24", IntentHint: "product_comparison"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", gotHeader.Get("Authorization"))
	assert.Equal(t, "u1", gotHeader.Get("X-User-ID"))
	assert.Equal(t, "product_comparison", gotBody.IntentHint)

	assert.Equal(t, "product_comparison", resp.Context.Type)
	assert.Equal(t, "Smartphones", resp.Context.Metadata.AppliedFilters["category"])
	require.Len(t, resp.Context.Items, 1)
	assert.Equal(t, "Apple iPhone 15", resp.Context.Items[0].Product.Title)
	assert.Contains(t, string(resp.Context.Items[0].Product.Specifications), "48MP")
}

func TestClient_EmptyQueryNeverSent(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL}).Query(context.Background(), QueryRequest{Query: "  "})
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.False(t, called)
}

func TestClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid token"}`))
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL}).Query(context.Background(), QueryRequest{Query: "track my order"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "invalid token", apiErr.Message)
}

func TestClient_Health(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ready" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := New(Config{BaseURL: srv.URL}).Health(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "Service Unavailable", apiErr.Message)
}
