// Package client provides the public Go SDK for the commerce assistant API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is where the API listens by default.
const DefaultBaseURL = "http://localhost:8085"

// ErrEmptyQuery is returned before any request is sent for a blank query.
var ErrEmptyQuery = errors.New("query is required")

// Client is the public SDK client for the commerce assistant.
type Client struct {
	baseURL    string
	token      string
	userID     string
	httpClient *http.Client
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	// Token is a signed bearer token. Used when the server has auth enabled.
	Token string
	// UserID identifies the caller to a development server with auth disabled.
	UserID  string
	Timeout time.Duration
	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
}

// New creates a new client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		userID:     cfg.UserID,
		httpClient: httpClient,
	}
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Message    string `json:"error"`
	Detail     string `json:"detail,omitempty"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api error %d: %s: %s", e.StatusCode, e.Message, e.Detail)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// QueryRequest is an assistant query.
type QueryRequest struct {
	Query      string `json:"query"`
	IntentHint string `json:"intentHint,omitempty"`
}

// QueryResponse is the API's answer.
type QueryResponse struct {
	Context   Context `json:"context"`
	LatencyMs int64   `json:"latencyMs"`
}

// Context is the fused retrieval context.
type Context struct {
	Intent        Intent   `json:"intent"`
	Route         string   `json:"route"`
	Type          string   `json:"type"`
	Items         []Item   `json:"items"`
	RetrievalType string   `json:"retrievalType"`
	Metadata      Metadata `json:"metadata"`
	UserID        string   `json:"userId,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// Intent is the detected intent.
type Intent struct {
	Type       string                 `json:"type"`
	Confidence float64                `json:"confidence"`
	Reason     string                 `json:"reason"`
	Slots      map[string]interface{} `json:"slots,omitempty"`
}

// Metadata describes how the items were retrieved.
type Metadata struct {
	AppliedFilters map[string]interface{} `json:"appliedFilters"`
	Clarification  string                 `json:"clarification,omitempty"`
	ItemCount      int                    `json:"itemCount"`
}

// Item is one retrieved record. Exactly one of Product, Order or User is set.
type Item struct {
	Kind         string   `json:"kind"`
	Product      *Product `json:"product,omitempty"`
	Order        *Order   `json:"order,omitempty"`
	User         *User    `json:"user,omitempty"`
	Score        float64  `json:"score,omitempty"`
	MatchedSpecs []string `json:"matchedSpecs,omitempty"`
}

// Product is a catalog product.
type Product struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Category       string          `json:"category"`
	Brand          string          `json:"brand"`
	Price          float64         `json:"price"`
	Rating         float64         `json:"rating"`
	RatingCount    int             `json:"ratingCount"`
	Stock          int             `json:"stock"`
	Description    string          `json:"description,omitempty"`
	Specifications json.RawMessage `json:"specifications,omitempty"`
	Features       []string        `json:"features,omitempty"`
}

// Order is a customer order.
type Order struct {
	ID             string      `json:"id"`
	Number         string      `json:"number"`
	Status         string      `json:"status"`
	Total          float64     `json:"total"`
	TrackingNumber string      `json:"trackingNumber,omitempty"`
	Items          []OrderLine `json:"items"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// OrderLine is one order line.
type OrderLine struct {
	ProductID string  `json:"productId"`
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

// User is the caller's profile.
type User struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// Query runs an assistant query.
func (c *Client) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrEmptyQuery
	}
	var resp QueryResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/assistant/query", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health reports whether the API is reachable and its store is ready.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/ready", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.userID != "" {
		req.Header.Set("X-User-ID", c.userID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
