package signals

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

	"github.com/yungbote/topicpulse-backend/internal/domain/classify"
	"github.com/yungbote/topicpulse-backend/internal/domain/content"
	"github.com/yungbote/topicpulse-backend/internal/observability"
	"github.com/yungbote/topicpulse-backend/internal/platform/envutil"
	"github.com/yungbote/topicpulse-backend/internal/platform/httpx"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
	"github.com/yungbote/topicpulse-backend/internal/sentiment"
)

const providerName = "signals"

// Client talks to the upstream signals service, which exposes per-item engagement counters
// and the sentiment scoring model. It implements sentiment.ScoringProvider.
//
// Requests are attempted once. Retries belong to the job that issued the call, so a
// retryable failure surfaces as a transient_external error.
type Client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client
	metrics    *observability.Metrics
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		BaseURL: envutil.String("SIGNALS_BASE_URL", ""),
		APIKey:  envutil.String("SIGNALS_API_KEY", ""),
		Timeout: envutil.Seconds("SIGNALS_TIMEOUT_SECONDS", 20),
	}
}

func NewClient(log *logger.Logger, cfg Config, metrics *observability.Metrics) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("missing SIGNALS_BASE_URL")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid SIGNALS_BASE_URL: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		log:        log.With("client", "SignalsClient"),
		baseURL:    base,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		metrics:    metrics,
	}, nil
}

type engagementResponse struct {
	Metrics map[string]int64 `json:"metrics"`
}

// Engagement returns the latest engagement counters for one item keyed by column name.
func (c *Client) Engagement(ctx context.Context, ref content.Ref) (map[string]int64, error) {
	const op = "SignalsClient.Engagement"
	path := "/v1/engagement/" + url.PathEscape(string(ref.Kind)) + "/" + strconv.FormatUint(ref.ID, 10)
	var out engagementResponse
	if err := c.do(ctx, op, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if out.Metrics == nil {
		out.Metrics = map[string]int64{}
	}
	return out.Metrics, nil
}

type scoreRequest struct {
	Kind   string            `json:"kind"`
	ID     uint64            `json:"id"`
	Fields map[string]string `json:"fields"`
}

// Score asks the scoring model for a sentiment signal over the item's text fields.
func (c *Client) Score(ctx context.Context, item content.Item) (sentiment.Signal, error) {
	const op = "SignalsClient.Score"
	if item == nil {
		return sentiment.Signal{}, classify.NewError(classify.CodeValidation, op, "item required", nil)
	}
	ref := item.Ref()
	req := scoreRequest{Kind: string(ref.Kind), ID: ref.ID, Fields: item.TextFields().Map()}
	var sig sentiment.Signal
	if err := c.do(ctx, op, http.MethodPost, "/v1/sentiment", req, &sig); err != nil {
		return sentiment.Signal{}, err
	}
	return sig, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body any, out any) error {
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return classify.Wrap(classify.CodeInternal, op, err)
		}
		buf = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return classify.Wrap(classify.CodeInternal, op, err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.IncProviderRequest(providerName, 0)
		return c.classify(op, path, err)
	}
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()
	c.metrics.IncProviderRequest(providerName, resp.StatusCode)
	if readErr != nil {
		return c.classify(op, path, readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.classify(op, path, &httpx.StatusError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Body:       string(raw),
			RetryAfter: httpx.RetryAfter(resp, time.Minute),
		})
	}
	c.log.Debug("signals request ok", "path", path, "status", resp.StatusCode, "elapsed_ms", time.Since(start).Milliseconds())
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return classify.NewError(classify.CodeInternal, op, "decode response", err)
	}
	return nil
}

func (c *Client) classify(op, path string, err error) error {
	if httpx.IsRetryableError(err) {
		c.log.Warn("signals request failed; retryable", "path", path, "error", err)
		return classify.Wrap(classify.CodeTransientExternal, op, err)
	}
	var sc httpx.HTTPStatusCoder
	if errors.As(err, &sc) {
		switch code := sc.HTTPStatusCode(); {
		case code == http.StatusNotFound:
			return classify.Wrap(classify.CodeNotFound, op, err)
		case code >= 400 && code < 500:
			return classify.Wrap(classify.CodeValidation, op, err)
		}
	}
	return classify.Wrap(classify.CodeInternal, op, err)
}
