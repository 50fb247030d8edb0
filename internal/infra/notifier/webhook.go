package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"session-keeper/internal/domain/entity"
)

// WebhookConfig contains configuration for webhook alert delivery.
type WebhookConfig struct {
	// URL is the webhook endpoint (includes any authentication token).
	URL string

	// Timeout is the HTTP request timeout per delivery attempt.
	Timeout time.Duration
}

// WebhookNotifier delivers alerts to an HTTPS webhook as a JSON payload.
// The payload shape (a single "content" field) is accepted by Discord,
// Mattermost, and most generic webhook receivers.
type WebhookNotifier struct {
	config      WebhookConfig
	httpClient  *http.Client
	rateLimiter *RateLimiter
	retryDelay  time.Duration
}

// NewWebhookNotifier creates a webhook notifier. The URL must be an
// absolute https endpoint on a public address. The rate limiter allows a
// short burst of alerts and then one every ten seconds, enough for
// incident visibility without drowning the channel during a flap.
func NewWebhookNotifier(config WebhookConfig) (*WebhookNotifier, error) {
	if err := entity.ValidateEndpointURL(config.URL); err != nil {
		return nil, fmt.Errorf("webhook URL: %w", err)
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	return &WebhookNotifier{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimiter: NewRateLimiter(0.1, 3), // 1 alert / 10s, burst of 3
		retryDelay:  5 * time.Second,
	}, nil
}

type webhookPayload struct {
	Content string `json:"content"`
}

type webhookErrorResponse struct {
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after"` // in seconds
}

const maxMessageLength = 2000

// Notify implements the Notifier interface: rate limit, then deliver with
// retry.
func (w *WebhookNotifier) Notify(ctx context.Context, message string) error {
	requestID := uuid.New().String()
	ctx = context.WithValue(ctx, requestIDKey, requestID)

	slog.Info("sending alert",
		slog.String("request_id", requestID),
		slog.String("message", message))

	if err := w.rateLimiter.Allow(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	return w.sendWithRetry(ctx, truncateMessage(message, maxMessageLength, truncationSuffix))
}

// sendWithRetry delivers the alert with bounded retry: two attempts,
// honoring Retry-After on 429, backing off on 5xx, failing fast on other
// 4xx.
func (w *WebhookNotifier) sendWithRetry(ctx context.Context, message string) error {
	const maxAttempts = 2

	requestID, _ := ctx.Value(requestIDKey).(string)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := w.send(ctx, message)
		if err == nil {
			slog.Info("alert delivered",
				slog.String("request_id", requestID),
				slog.Int("attempt", attempt))
			return nil
		}
		lastErr = err

		if rateLimitErr, ok := is429Error(err); ok {
			slog.Warn("webhook rate limit hit, backing off",
				slog.String("request_id", requestID),
				slog.Duration("retry_after", rateLimitErr.RetryAfter),
				slog.Int("attempt", attempt))
			select {
			case <-time.After(rateLimitErr.RetryAfter):
				continue
			case <-ctx.Done():
				return fmt.Errorf("context canceled during rate limit backoff: %w", ctx.Err())
			}
		}

		if !isRetryableError(err) {
			slog.Error("alert failed with non-retryable error",
				slog.String("request_id", requestID),
				slog.Any("error", err),
				slog.Int("attempt", attempt))
			return err
		}

		if attempt < maxAttempts {
			delay := w.retryDelay * time.Duration(attempt)
			slog.Warn("alert delivery failed, retrying",
				slog.String("request_id", requestID),
				slog.Any("error", err),
				slog.Duration("delay", delay),
				slog.Int("attempt", attempt))
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return fmt.Errorf("context canceled during retry backoff: %w", ctx.Err())
			}
		}
	}

	return fmt.Errorf("alert delivery failed after %d attempts: %w", maxAttempts, lastErr)
}

func (w *WebhookNotifier) send(ctx context.Context, message string) error {
	jsonData, err := json.Marshal(webhookPayload{Content: message})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.URL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{
			Message:    "webhook rate limit exceeded",
			RetryAfter: extractRetryAfter(resp, body),
		}
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return &ClientError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("webhook client error: %s", string(body)),
		}
	}
	if resp.StatusCode >= 500 {
		return &ServerError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("webhook server error: %s", string(body)),
		}
	}
	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
}

// extractRetryAfter reads the retry delay from the JSON body, falling back
// to the Retry-After header, falling back to five seconds.
func extractRetryAfter(resp *http.Response, body []byte) time.Duration {
	var webhookErr webhookErrorResponse
	if err := json.Unmarshal(body, &webhookErr); err == nil && webhookErr.RetryAfter > 0 {
		return time.Duration(webhookErr.RetryAfter * float64(time.Second))
	}

	if retryAfterHeader := resp.Header.Get("Retry-After"); retryAfterHeader != "" {
		if seconds, err := strconv.Atoi(retryAfterHeader); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}

	return 5 * time.Second
}
