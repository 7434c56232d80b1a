package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"tle_zone_judge/internal/domain/model"
	"tle_zone_judge/internal/platform/config"
	"tle_zone_judge/internal/platform/metrics"

	"github.com/go-resty/resty/v2"
)

const (
	opSubmitBatch = "submit_batch"
	opGetBatch    = "get_batch"
)

// StatusError is returned when the engine answers with a non-2xx status.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("engine %s: status %d: %s", e.Op, e.Code, e.Body)
}

// Temporary reports whether the same request may succeed later.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

// Client talks to a Judge0-compatible execution engine over its batch API.
type Client struct {
	client *resty.Client
}

type batchSubmitRequest struct {
	Submissions []model.ExecutionJob `json:"submissions"`
}

type batchGetResponse struct {
	Submissions []model.ExecutionResult `json:"submissions"`
}

func New(cfg config.EngineConfig) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.RequestTimeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryMaxWait).
		AddRetryCondition(retryable)

	if cfg.APIKey != "" {
		c.SetHeader("X-RapidAPI-Key", cfg.APIKey)
		c.SetHeader("X-RapidAPI-Host", cfg.APIHost)
	}
	if cfg.AuthToken != "" {
		c.SetHeader("X-Auth-Token", cfg.AuthToken)
	}
	return &Client{client: c}
}

// retryable covers transport failures, rate limiting and gateway-side 5xx.
// Plain 4xx answers are final. Only GETs are retried: a batch POST may have
// been accepted before the failure, and sending it again orphans its jobs.
func retryable(resp *resty.Response, err error) bool {
	if resp != nil && resp.Request != nil && resp.Request.Method != http.MethodGet {
		return false
	}
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	if resp == nil {
		return false
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// SubmitBatch posts every job in one request. The returned tokens are in job order.
func (c *Client) SubmitBatch(ctx context.Context, jobs []model.ExecutionJob) ([]model.ExecutionToken, error) {
	var tokens []model.ExecutionToken
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("base64_encoded", "false").
		SetBody(batchSubmitRequest{Submissions: jobs}).
		SetResult(&tokens).
		Post("/submissions/batch")
	if err != nil {
		metrics.EngineRequestsTotal.WithLabelValues(opSubmitBatch, "transport_error").Inc()
		return nil, fmt.Errorf("engine %s: %w", opSubmitBatch, err)
	}
	if resp.IsError() {
		metrics.EngineRequestsTotal.WithLabelValues(opSubmitBatch, "http_error").Inc()
		return nil, &StatusError{Op: opSubmitBatch, Code: resp.StatusCode(), Body: resp.String()}
	}
	metrics.EngineRequestsTotal.WithLabelValues(opSubmitBatch, "ok").Inc()
	return tokens, nil
}

// GetBatch fetches the current state of every token in one request.
func (c *Client) GetBatch(ctx context.Context, tokens []string) ([]model.ExecutionResult, error) {
	var out batchGetResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"tokens":         strings.Join(tokens, ","),
			"base64_encoded": "false",
			"fields":         "*",
		}).
		SetResult(&out).
		Get("/submissions/batch")
	if err != nil {
		metrics.EngineRequestsTotal.WithLabelValues(opGetBatch, "transport_error").Inc()
		return nil, fmt.Errorf("engine %s: %w", opGetBatch, err)
	}
	if resp.IsError() {
		metrics.EngineRequestsTotal.WithLabelValues(opGetBatch, "http_error").Inc()
		return nil, &StatusError{Op: opGetBatch, Code: resp.StatusCode(), Body: resp.String()}
	}
	metrics.EngineRequestsTotal.WithLabelValues(opGetBatch, "ok").Inc()
	return out.Submissions, nil
}
