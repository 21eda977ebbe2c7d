// Package appserver is the HTTP client for the remote application server.
// Everything except Finalize is best effort: failures degrade to a log entry
// and a ServerSyncError the caller may ignore. Finalize errors propagate,
// because a finalize that did not happen must keep submission blocked.
package appserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	snapembed "github.com/jetd7/snapembed"
	"github.com/jetd7/snapembed/backoff"
	"github.com/jetd7/snapembed/log"
	"github.com/sony/gobreaker"
)

// OrderContext identifies the host-platform order an application attaches to.
type OrderContext struct {
	OrderID       string `json:"orderId"`
	InvoiceNumber string `json:"invoiceNumber"`
	Total         string `json:"total"`
	Currency      string `json:"currency"`
}

// StatusResponse is the remote application's progress report.
type StatusResponse struct {
	ProgressStatus string          `json:"progressStatus"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// FinalizeResponse is the outcome of converting a signed application into a
// completed order.
type FinalizeResponse struct {
	Success          bool   `json:"success"`
	OrderReceivedURL string `json:"orderReceivedUrl"`
}

// Config configures the client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
	Logger     log.Logger
}

// Client talks to the application server. Best-effort endpoints go through a
// circuit breaker so a dead server cannot stall checkout with timeouts.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     log.Logger
	retry      backoff.Policy
}

// New creates a client.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}

		httpClient = &http.Client{Timeout: timeout}
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "application-server",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		breaker:    breaker,
		logger:     log.OrNop(cfg.Logger),
		retry:      backoff.Policy{Base: 500 * time.Millisecond, Cap: 5 * time.Second, MaxAttempts: 3},
	}
}

// SaveApplication persists the application id and token in the remote
// session. Best effort.
func (c *Client) SaveApplication(ctx context.Context, id, token string) error {
	body := map[string]string{"id": id, "token": token}

	return c.bestEffort(ctx, "save-application", body, nil)
}

// Attach links the application to a host order. Best effort.
func (c *Client) Attach(ctx context.Context, applicationID string, order OrderContext) error {
	body := map[string]any{"applicationId": applicationID, "order": order}

	return c.bestEffort(ctx, "attach", body, nil)
}

// Journey reports a lifecycle stage. Idempotent per stage: the idempotency
// key is derived from the stage and application id, so re-reporting the same
// stage is a server-side no-op.
func (c *Client) Journey(ctx context.Context, stage, applicationID string) error {
	key := uuid.NewSHA1(uuid.NameSpaceURL, []byte(stage+"/"+applicationID)).String()
	body := map[string]string{"stage": stage, "applicationId": applicationID, "idempotencyKey": key}

	return c.bestEffort(ctx, "journey", body, nil)
}

// Status fetches the remote application's progress. Best effort with bounded
// retry, since the route-fallback watcher polls it.
func (c *Client) Status(ctx context.Context, applicationID, token string) (StatusResponse, error) {
	body := map[string]string{"applicationId": applicationID, "token": token}

	var out StatusResponse

	var lastErr error

	for attempt := 0; !c.retry.Exhausted(attempt); attempt++ {
		if attempt > 0 {
			if err := backoff.Sleep(ctx, c.retry.Delay(attempt-1)); err != nil {
				return StatusResponse{}, err
			}
		}

		lastErr = c.bestEffort(ctx, "status", body, &out)
		if lastErr == nil {
			return out, nil
		}
	}

	return StatusResponse{}, lastErr
}

// Finalize converts a signed application into a completed order. Never
// breaker-short-circuited; its error always propagates.
func (c *Client) Finalize(ctx context.Context, applicationID, token, invoiceNumber string) (FinalizeResponse, error) {
	body := map[string]string{
		"applicationId": applicationID,
		"token":         token,
		"invoiceNumber": invoiceNumber,
	}

	var out FinalizeResponse
	if err := c.post(ctx, "finalize", body, &out); err != nil {
		return FinalizeResponse{}, err
	}

	return out, nil
}

// bestEffort runs the call through the circuit breaker and downgrades any
// failure to a logged ServerSyncError.
func (c *Client) bestEffort(ctx context.Context, endpoint string, body, out any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.post(ctx, endpoint, body, out)
	})
	if err != nil {
		c.logger.Log(ctx, log.LevelWarn, "application server call failed",
			log.String("endpoint", endpoint), log.Err(err))

		return snapembed.NewServerSyncError(endpoint, err)
	}

	return nil
}

func (c *Client) post(ctx context.Context, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d", endpoint, resp.StatusCode)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)

		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}

	return nil
}
