package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"tams/internal/models"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	httpTimeoutEnvKey  = "TAMS_HTTP_TIMEOUT"
	apiTokenEnvKey     = "TAMS_API_TOKEN"
)

// Client is a simple HTTP client for the TAMS API.
type Client struct {
	baseURL   string
	http      *http.Client
	authToken string
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: httpTimeoutFromEnv()},
		authToken: strings.TrimSpace(os.Getenv(apiTokenEnvKey)),
	}
}

// WithToken overrides the bearer token taken from the environment.
func (c *Client) WithToken(token string) *Client {
	c.authToken = strings.TrimSpace(token)
	return c
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil, nil)
}

func (c *Client) ServiceInfo(ctx context.Context) (ServiceInfo, error) {
	var resp ServiceInfo
	err := c.do(ctx, http.MethodGet, "/service", nil, nil, nil, &resp)
	return resp, err
}

func (c *Client) ListWebhooks(ctx context.Context) (WebhookListResponse, error) {
	var resp WebhookListResponse
	err := c.do(ctx, http.MethodGet, "/service/webhooks", nil, nil, nil, &resp)
	return resp, err
}

func (c *Client) CreateWebhook(ctx context.Context, hook models.Webhook) (models.Webhook, error) {
	var resp models.Webhook
	err := c.do(ctx, http.MethodPost, "/service/webhooks", nil, nil, hook, &resp)
	return resp, err
}

func (c *Client) DeleteWebhook(ctx context.Context, hookURL string) error {
	query := url.Values{"url": []string{hookURL}}
	return c.do(ctx, http.MethodDelete, "/service/webhooks", query, nil, nil, nil)
}

func (c *Client) ListFlows(ctx context.Context, query url.Values) (FlowListResponse, error) {
	var resp FlowListResponse
	err := c.do(ctx, http.MethodGet, "/flows", query, nil, nil, &resp)
	return resp, err
}

func (c *Client) GetFlow(ctx context.Context, id string) (models.Flow, error) {
	var resp models.Flow
	err := c.do(ctx, http.MethodGet, "/flows/"+url.PathEscape(id), nil, nil, nil, &resp)
	return resp, err
}

func (c *Client) ListSegments(ctx context.Context, flowID string, query url.Values) (SegmentListResponse, error) {
	var resp SegmentListResponse
	err := c.do(ctx, http.MethodGet, "/flows/"+url.PathEscape(flowID)+"/segments", query, nil, nil, &resp)
	return resp, err
}

func (c *Client) AdminStats(ctx context.Context) (StatsResponse, error) {
	var resp StatsResponse
	err := c.do(ctx, http.MethodGet, "/admin/stats", nil, nil, nil, &resp)
	return resp, err
}

func (c *Client) AdminCleanupStaging(ctx context.Context, confirm bool) (CleanupStagingResponse, error) {
	var resp CleanupStagingResponse
	err := c.do(ctx, http.MethodPost, "/admin/cleanup-staging", nil, confirmHeader(confirm), nil, &resp)
	return resp, err
}

func (c *Client) AdminGCObjects(ctx context.Context, dryRun, confirm bool) (GCObjectsResponse, error) {
	var resp GCObjectsResponse
	query := url.Values{}
	if dryRun {
		query.Set("dry_run", "true")
	}
	err := c.do(ctx, http.MethodPost, "/admin/gc-objects", query, confirmHeader(confirm), nil, &resp)
	return resp, err
}

func confirmHeader(confirm bool) http.Header {
	if !confirm {
		return nil
	}
	return http.Header{"X-Confirm": []string{"true"}}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, header http.Header, body any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	c.setAuthHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) setAuthHeader(req *http.Request) {
	if c.authToken == "" || req == nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.authToken)
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
