package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

const recordsPath = "/api/v1/health-monitoring/data-records"

// Reading is one entry of a history response
type Reading struct {
	ID        int64     `json:"id"`
	Pulse     int       `json:"pulse"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// RecordResult is the body returned for a created reading
type RecordResult struct {
	ID          int64     `json:"id"`
	SmartBandID int64     `json:"smartBandId"`
	Pulse       int       `json:"pulse"`
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Message     string    `json:"message"`
}

// History is the body of a history query
type History struct {
	SmartBandID int64     `json:"smartBandId"`
	Readings    []Reading `json:"readings"`
	Total       int       `json:"total"`
}

// Statistics is the body of a statistics query. Pointers are nil for a
// band without readings.
type Statistics struct {
	SmartBandID int64    `json:"smartBandId"`
	Count       int64    `json:"count"`
	Min         *int     `json:"min"`
	Max         *int     `json:"max"`
	Average     *float64 `json:"average"`
}

// KeepaliveResult is the body of GET /keepalive
type KeepaliveResult struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Database  string    `json:"database"`
	Message   string    `json:"message"`
}

// Alive reports whether the server reached its database
func (k KeepaliveResult) Alive() bool {
	return k.Status == "alive" && k.Database == "connected"
}

// APIError is returned for any non-2xx response
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("smartband api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("smartband api: status %d: %s", e.StatusCode, e.Detail)
}

type errorBody struct {
	Detail string `json:"detail"`
}

// Client talks to the smart band edge REST API
type Client struct {
	http *resty.Client
}

// Option customizes a Client
type Option func(*resty.Client)

// WithTimeout overrides the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *resty.Client) { c.SetTimeout(d) }
}

// WithTLS sets the TLS config used for https base URLs
func WithTLS(cfg *tls.Config) Option {
	return func(c *resty.Client) { c.SetTLSClientConfig(cfg) }
}

// New creates a client for the API at baseURL
func New(baseURL string, opts ...Option) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	for _, opt := range opts {
		opt(c)
	}

	return &Client{http: c}
}

// RecordReading posts one reading and returns the created record
func (c *Client) RecordReading(ctx context.Context, smartBandID int64, pulse int) (*RecordResult, error) {
	var result RecordResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"smartBandId": smartBandID, "pulse": pulse}).
		SetResult(&result).
		SetError(&errorBody{}).
		Post(recordsPath)
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &result, nil
}

// Record posts one reading and returns its ID
func (c *Client) Record(ctx context.Context, smartBandID int64, pulse int) (int64, error) {
	result, err := c.RecordReading(ctx, smartBandID, pulse)
	if err != nil {
		return 0, err
	}
	return result.ID, nil
}

// History returns the latest readings of a band. A limit of 0 uses the server default.
func (c *Client) History(ctx context.Context, smartBandID int64, limit int) (*History, error) {
	req := c.http.R().
		SetContext(ctx).
		SetPathParam("smartBandId", strconv.FormatInt(smartBandID, 10)).
		SetError(&errorBody{})
	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}

	var result History
	resp, err := req.SetResult(&result).Get(recordsPath + "/{smartBandId}/history")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &result, nil
}

// Statistics returns aggregate pulse values of a band
func (c *Client) Statistics(ctx context.Context, smartBandID int64) (*Statistics, error) {
	var result Statistics
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("smartBandId", strconv.FormatInt(smartBandID, 10)).
		SetResult(&result).
		SetError(&errorBody{}).
		Get(recordsPath + "/{smartBandId}/statistics")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &result, nil
}

// Keepalive asks the server to touch its database
func (c *Client) Keepalive(ctx context.Context) (*KeepaliveResult, error) {
	var result KeepaliveResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&errorBody{}).
		Get("/keepalive")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &result, nil
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("smartband api request failed: %w", err)
	}
	if resp.IsError() {
		apiErr := &APIError{StatusCode: resp.StatusCode()}
		if body, ok := resp.Error().(*errorBody); ok && body != nil {
			apiErr.Detail = body.Detail
		}
		return apiErr
	}
	return nil
}
