package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mmcdole/arsview/internal/domain"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxElapsed = 20 * time.Second
	userAgent         = "arsview/1.0"
)

// Client implements domain.Aggregator over the relay's JSON API
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxElapsed time.Duration
	logger     *slog.Logger
}

// NewClient creates a new aggregator client. maxElapsed bounds how long a
// request is retried on transient failures; zero selects a default.
func NewClient(baseURL string, timeout, maxElapsed time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if maxElapsed <= 0 {
		maxElapsed = defaultMaxElapsed
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxElapsed: maxElapsed,
		logger:     logger,
	}
}

// Submit sends a new query
func (c *Client) Submit(ctx context.Context, text string) (domain.Query, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Query{}, domain.ErrInvalidQuery
	}

	payload, err := json.Marshal(submitRequest{Query: text})
	if err != nil {
		return domain.Query{}, fmt.Errorf("failed to encode query: %w", err)
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/api/submit", nil, payload)
	if err != nil {
		return domain.Query{}, err
	}

	var resp submitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Query{}, fmt.Errorf("failed to parse submit response: %w", err)
	}
	if resp.PK == "" {
		return domain.Query{}, fmt.Errorf("submit response carried no query id")
	}

	return domain.Query{
		ID:          resp.PK,
		Text:        text,
		SubmittedAt: time.Now(),
		Status:      domain.ParseRunStatus(resp.Status),
	}, nil
}

// Status returns the overall and per-agent status of a query
func (c *Client) Status(ctx context.Context, queryID string) (domain.QueryStatus, error) {
	query := url.Values{}
	query.Set("trace", "y")

	body, err := c.doRequest(ctx, http.MethodGet, "/api/messages/"+url.PathEscape(queryID), query, nil)
	if err != nil {
		return domain.QueryStatus{}, err
	}

	var trace TraceResponse
	if err := json.Unmarshal(body, &trace); err != nil {
		c.logger.Error("JSON parse error", "error", err, "bodyLen", len(body))
		return domain.QueryStatus{}, fmt.Errorf("failed to parse trace: %w", err)
	}
	if trace.Message == "" {
		trace.Message = queryID
	}
	return MapStatus(trace), nil
}

// AgentResults returns the results in one agent's message
func (c *Client) AgentResults(ctx context.Context, messageID string) ([]domain.Result, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/messages/"+url.PathEscape(messageID), nil, nil)
	if err != nil {
		return nil, err
	}

	var msg MessageResponse
	if err := json.Unmarshal(body, &msg); err != nil {
		c.logger.Error("JSON parse error", "error", err, "bodyLen", len(body))
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return MapResults(msg, ""), nil
}

// doRequest performs a request, retrying transient failures with
// exponential backoff until maxElapsed or ctx ends.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, payload []byte) ([]byte, error) {
	reqURL := c.baseURL + path
	if query != nil {
		reqURL = fmt.Sprintf("%s?%s", reqURL, query.Encode())
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 250 * time.Millisecond
	expBackoff.MaxElapsedTime = c.maxElapsed

	var body []byte
	operation := func() error {
		var err error
		body, err = c.doOnce(ctx, method, reqURL, payload)
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrAggregatorOffline) && ctx.Err() == nil {
			return err
		}
		return backoff.Permanent(err)
	}

	if err := backoff.Retry(operation, backoff.WithContext(expBackoff, ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) doOnce(ctx context.Context, method, reqURL string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("aggregator request", "method", method, "url", reqURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Error("aggregator request failed", "error", err)
		return nil, domain.ErrAggregatorOffline
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.ErrQueryNotFound
	case resp.StatusCode == http.StatusBadRequest:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidQuery, strings.TrimSpace(string(body)))
	case resp.StatusCode >= 500:
		c.logger.Error("aggregator server error", "status", resp.StatusCode, "body", string(body))
		return nil, domain.ErrAggregatorOffline
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
		c.logger.Error("aggregator request error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return body, nil
}
