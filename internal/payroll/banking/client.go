package banking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Verdict is the answer of the verification service for one account.
type Verdict struct {
	Verified bool   `json:"verified"`
	Reason   string `json:"reason,omitempty"`
}

type verifyRequest struct {
	IBAN          string `json:"iban"`
	AccountHolder string `json:"account_holder"`
}

// Config configures the verification client.
type Config struct {
	URL            string
	MaxRetries     uint64
	InitialBackoff time.Duration
	Timeout        time.Duration
}

// Client calls the bank's account verification endpoint. Transport errors
// and 5xx responses are retried with exponential backoff; 4xx responses are not.
type Client struct {
	httpClient *http.Client
	cfg        Config
	logger     *zap.Logger
}

func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		httpClient: httpClient,
		cfg:        cfg,
		logger:     logger.Named("bank_client"),
	}
}

// VerifyAccount asks the bank whether iban belongs to holder.
func (c *Client) VerifyAccount(ctx context.Context, iban, holder string) (Verdict, error) {
	body, err := json.Marshal(verifyRequest{IBAN: iban, AccountHolder: holder})
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to encode verification request: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.InitialBackoff
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, c.cfg.MaxRetries), ctx)

	var verdict Verdict
	attempt := 0
	operation := func() error {
		attempt++
		v, err := c.post(ctx, body)
		if err != nil {
			return err
		}
		verdict = v
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("Bank verification attempt failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
		)
	}

	if err := backoff.RetryNotify(operation, retry, notify); err != nil {
		return Verdict{}, fmt.Errorf("bank verification failed after %d attempts: %w", attempt, err)
	}
	return verdict, nil
}

func (c *Client) post(ctx context.Context, body []byte) (Verdict, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return Verdict{}, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Verdict{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Verdict{}, err
	}
	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return Verdict{}, fmt.Errorf("bank service returned %d", resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		return Verdict{}, backoff.Permanent(fmt.Errorf("bank service rejected request with %d: %s", resp.StatusCode, payload))
	}

	var v Verdict
	if err := json.Unmarshal(payload, &v); err != nil {
		return Verdict{}, backoff.Permanent(fmt.Errorf("failed to decode bank response: %w", err))
	}
	return v, nil
}
