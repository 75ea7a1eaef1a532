package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"visuallab/internal/infra"
)

const (
	defaultBaseURL    = "https://generativelanguage.googleapis.com/v1beta"
	defaultTextModel  = "gemini-2.5-flash"
	defaultImageModel = "imagen-3.0-generate-002"
	defaultMaxRetries = 5
	defaultBaseDelay  = time.Second
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	TextModel  string
	ImageModel string
	HTTPClient *http.Client
	Logger     *infra.Logger

	// MaxRetries bounds how many times a rate-limited call is repeated.
	// Zero selects the default of 5; a negative value disables retries.
	MaxRetries int
	// BaseDelay is the first backoff step; retry n waits BaseDelay * 2^n.
	BaseDelay time.Duration
	// RequestsPerMinute paces outbound calls across the whole client.
	// Zero disables pacing.
	RequestsPerMinute int
	// Sleep waits between retries. Tests inject a recorder here.
	Sleep Sleeper
}

// Client talks to the Gemini REST API for both vision-capable text generation
// and image synthesis. Both call paths share one retry policy.
type Client struct {
	apiKey     string
	baseURL    string
	textModel  string
	imageModel string
	httpClient *http.Client
	logger     *infra.Logger
	limiter    *rate.Limiter
	retry      retryPolicy
}

// NewClient constructs a Gemini client. Callers may provide a nil HTTP
// client; one with a 60 second timeout is created.
func NewClient(opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	var limiter *rate.Limiter
	if opts.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}

	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		textModel:  firstNonEmpty(opts.TextModel, defaultTextModel),
		imageModel: firstNonEmpty(opts.ImageModel, defaultImageModel),
		httpClient: client,
		logger:     logger,
		limiter:    limiter,
		retry:      newRetryPolicy(opts.MaxRetries, opts.BaseDelay, opts.Sleep),
	}, nil
}

// TextModel returns the configured text model identifier.
func (c *Client) TextModel() string {
	return c.textModel
}

// ImageModel returns the configured image model identifier.
func (c *Client) ImageModel() string {
	return c.imageModel
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
		Status  string `json:"status,omitempty"`
	} `json:"error"`
}

// invokeGemini posts payload to path and decodes a 2xx body into out. Rate
// limited attempts are repeated according to the retry policy; every other
// failure is returned at once.
func (c *Client) invokeGemini(ctx context.Context, op, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	endpoint := c.baseURL + path

	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("%s: wait for rate limiter: %w", op, err)
			}
		}

		err := c.doOnce(ctx, endpoint, body, out)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", op, ctxErr)
		}

		var svcErr *ServiceError
		if !errors.As(err, &svcErr) {
			svcErr = &ServiceError{Kind: KindServiceError, Message: err.Error(), Err: err}
		}
		svcErr.Attempts = attempt + 1

		if svcErr.Kind != KindRateLimited {
			return svcErr
		}
		if attempt >= c.retry.maxRetries {
			c.logger.Warn().
				Str("op", op).
				Int("attempts", svcErr.Attempts).
				Msg("genai: rate limit persisted past retry ceiling")
			return svcErr
		}

		delay := c.retry.delay(attempt)
		c.logger.Warn().
			Str("op", op).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("genai: rate limited, backing off")
		if err := c.retry.sleep(ctx, delay); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
}

func (c *Client) doOnce(ctx context.Context, endpoint string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		kind := KindServiceError
		if hasRateLimitSignature(err) {
			kind = KindRateLimited
		}
		return &ServiceError{Kind: kind, Message: err.Error(), Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ServiceError{Kind: KindServiceError, StatusCode: resp.StatusCode, Message: "decode gemini response", Err: err}
	}
	return nil
}

func statusError(resp *http.Response) *ServiceError {
	kind := KindServiceError
	if resp.StatusCode == http.StatusTooManyRequests {
		kind = KindRateLimited
	}
	message := fmt.Sprintf("gemini status %d", resp.StatusCode)
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var apiErr geminiErrorResponse
	if err := json.Unmarshal(data, &apiErr); err == nil && strings.TrimSpace(apiErr.Error.Message) != "" {
		message = strings.TrimSpace(apiErr.Error.Message)
	}
	return &ServiceError{Kind: kind, StatusCode: resp.StatusCode, Message: message}
}

func (c *Client) modelPath(model, method string) string {
	return fmt.Sprintf("/models/%s:%s", url.PathEscape(model), method)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
