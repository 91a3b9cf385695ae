// Package httpclient resolves searches and presets against a remote pantry API.
package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hylla/pantry/internal/domain"
)

// maxResponseBytes bounds one decoded response body.
const maxResponseBytes = 1 << 20

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// ErrUnexpectedStatus reports a non-2xx response.
var ErrUnexpectedStatus = errors.New("unexpected response status")

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	Limit      int
	HTTPClient *http.Client
	RequestID  func() string
}

// Client calls the search and preset endpoints.
type Client struct {
	base      *url.URL
	http      *http.Client
	limit     int
	requestID func() string
}

// ingredientsEnvelope is the response body of both endpoints.
type ingredientsEnvelope struct {
	Ingredients []domain.Ingredient `json:"ingredients"`
}

// errorEnvelope is the structured error body returned by the pantry server.
type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// New validates opts and constructs a client.
func New(opts Options) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if raw == "" {
		return nil, errors.New("base url is required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base url scheme %q", base.Scheme)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	requestID := opts.RequestID
	if requestID == nil {
		requestID = uuid.NewString
	}
	return &Client{
		base:      base,
		http:      httpClient,
		limit:     opts.Limit,
		requestID: requestID,
	}, nil
}

// Search calls GET /search-ingredient?q=<query>.
func (c *Client) Search(ctx context.Context, query string) ([]domain.Ingredient, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.Ingredient{}, nil
	}
	params := url.Values{"q": {query}}
	if c.limit > 0 {
		params.Set("limit", strconv.Itoa(c.limit))
	}
	return c.getIngredients(ctx, "/search-ingredient", params)
}

// LoadPresets calls GET /ingredients/presets.
func (c *Client) LoadPresets(ctx context.Context) ([]domain.Ingredient, error) {
	return c.getIngredients(ctx, "/ingredients/presets", nil)
}

// getIngredients performs one GET and decodes an ingredients envelope.
func (c *Client) getIngredients(ctx context.Context, path string, params url.Values) ([]domain.Ingredient, error) {
	target := c.base.JoinPath(path)
	if len(params) > 0 {
		target.RawQuery = params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, c.requestID())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	body := io.LimitReader(resp.Body, maxResponseBytes)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(path, resp.StatusCode, body)
	}

	var env ingredientsEnvelope
	if err := json.NewDecoder(body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", path, err)
	}
	out := make([]domain.Ingredient, 0, len(env.Ingredients))
	for i, item := range env.Ingredients {
		normalized, err := domain.NewIngredient(string(item.ID), item.Name, item.Category)
		if err != nil {
			return nil, fmt.Errorf("decode %s response: ingredients[%d]: %w", path, i, err)
		}
		out = append(out, normalized)
	}
	return out, nil
}

// statusError builds an error from a non-2xx response, preferring the server's message.
func statusError(path string, status int, body io.Reader) error {
	var env errorEnvelope
	if err := json.NewDecoder(body).Decode(&env); err == nil && strings.TrimSpace(env.Error.Message) != "" {
		return fmt.Errorf("%w: GET %s: %d %s: %s", ErrUnexpectedStatus, path, status, env.Error.Code, env.Error.Message)
	}
	return fmt.Errorf("%w: GET %s: %d %s", ErrUnexpectedStatus, path, status, http.StatusText(status))
}
