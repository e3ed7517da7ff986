package client

import (
	"bytes"
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
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "lumina-go-client"
	apiPrefix        = "/api/v1"
	maxErrorBody     = 64 << 10
)

// Client calls the lumina HTTP API. It is safe for concurrent use.
type Client struct {
	baseURL   string
	apiKey    string
	userAgent string
	http      *http.Client
	obs       *observer
}

// New creates a client for the server at baseURL (e.g. "http://localhost:8080").
func New(baseURL string, opts ...Option) (*Client, error) {
	cfg := clientConfig{
		timeout:   defaultTimeout,
		userAgent: defaultUserAgent,
	}
	for _, o := range opts {
		o.apply(&cfg)
	}

	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("lumina: invalid base url %q", baseURL)
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, fmt.Errorf("lumina: init observer: %w", err)
	}

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    cfg.apiKey,
		userAgent: cfg.userAgent,
		http:      hc,
		obs:       obs,
	}, nil
}

// Search runs a text search.
func (c *Client) Search(ctx context.Context, req SearchRequest) (res *SearchResponse, err error) {
	defer func(start time.Time) { c.obs.observe("search", start, err) }(time.Now())

	body := searchBody{Query: req.Query, Filters: req.Filters, Rerank: req.Rerank}
	if req.TopK > 0 {
		topK := req.TopK
		body.TopK = &topK
	}

	var out SearchResponse
	hdr, err := c.do(ctx, http.MethodPost, apiPrefix+"/search", body, &out)
	if err != nil {
		return nil, err
	}
	out.Usage = usageFrom(hdr)
	return &out, nil
}

// UpsertItem stores one item and returns its id.
func (c *Client) UpsertItem(ctx context.Context, item Item) (id string, err error) {
	defer func(start time.Time) { c.obs.observe("upsert_item", start, err) }(time.Now())

	var out StoredItem
	if _, err := c.do(ctx, http.MethodPost, apiPrefix+"/items", item, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// UpsertBatch stores several items in one call. Items fail independently;
// check the per-item results.
func (c *Client) UpsertBatch(ctx context.Context, items []Item) (res *BatchResponse, err error) {
	defer func(start time.Time) { c.obs.observe("upsert_batch", start, err) }(time.Now())

	var out BatchResponse
	body := struct {
		Items []Item `json:"items"`
	}{Items: items}
	if _, err := c.do(ctx, http.MethodPost, apiPrefix+"/items/batch", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetItem reads an item back by id.
func (c *Client) GetItem(ctx context.Context, id string) (item *StoredItem, err error) {
	defer func(start time.Time) { c.obs.observe("get_item", start, err) }(time.Now())

	var out StoredItem
	if _, err := c.do(ctx, http.MethodGet, apiPrefix+"/items/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteItem removes an item.
func (c *Client) DeleteItem(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { c.obs.observe("delete_item", start, err) }(time.Now())

	_, err = c.do(ctx, http.MethodDelete, apiPrefix+"/items/"+url.PathEscape(id), nil, nil)
	return err
}

// PurgeCache drops every cached search response and returns how many were removed.
func (c *Client) PurgeCache(ctx context.Context) (n int, err error) {
	defer func(start time.Time) { c.obs.observe("purge_cache", start, err) }(time.Now())

	var out struct {
		Purged int `json:"purged"`
	}
	if _, err := c.do(ctx, http.MethodDelete, apiPrefix+"/cache", nil, &out); err != nil {
		return 0, err
	}
	return out.Purged, nil
}

// Health returns the readiness report. A degraded server still returns a
// report and a nil error; check Health.Healthy.
func (c *Client) Health(ctx context.Context) (h *Health, err error) {
	defer func(start time.Time) { c.obs.observe("health", start, err) }(time.Now())

	resp, err := c.send(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return nil, decodeError(resp)
	}
	var out Health
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("lumina: decode health: %w", err)
	}
	return &out, nil
}

// do sends a JSON request and decodes a 2xx JSON answer into out (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, in, out any) (http.Header, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("lumina: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return resp.Header, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, fmt.Errorf("lumina: decode response: %w", err)
	}
	return resp.Header, nil
}

func (c *Client) send(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("lumina: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s %s: %w", ErrTimeout, method, path, err)
		}
		return nil, fmt.Errorf("lumina: %s %s: %w", method, path, err)
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body errorBody
	if err := json.Unmarshal(data, &body); err == nil && body.Code != "" {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(data))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func usageFrom(h http.Header) Usage {
	var u Usage
	if v := h.Get("X-Embedding-Tokens"); v != "" {
		u.EmbeddingTokens, _ = strconv.Atoi(v)
	}
	if v := h.Get("X-Rerank-Pairs"); v != "" {
		u.RerankPairs, _ = strconv.Atoi(v)
	}
	return u
}
