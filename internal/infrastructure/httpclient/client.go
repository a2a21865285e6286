// Package httpclient talks to the consensus server from the client agent.
package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"SlopConsensus/internal/domain"
	"SlopConsensus/internal/ports"
)

const maxResponseBytes = 64 << 20

// Config tunes the client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// MaxRetries bounds retries of transient failures; the first attempt is not counted.
	MaxRetries   uint64
	RetryInitial time.Duration
	// BreakerFailures consecutive blob fetch failures open the breaker for BreakerCooldown.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// Client implements the client-side ports over HTTP.
type Client struct {
	base    string
	http    *http.Client
	cfg     Config
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *slog.Logger
}

var (
	_ ports.BatchSubmitter   = (*Client)(nil)
	_ ports.BlobFetcher      = (*Client)(nil)
	_ ports.ConsensusQuerier = (*Client)(nil)
)

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.code, e.body)
}

// New builds a client for cfg.BaseURL.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryInitial <= 0 {
		cfg.RetryInitial = 500 * time.Millisecond
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		http:   &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		logger: logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "blob-fetch",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrBlobNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// SubmitBatch posts queued entries and returns the server's per-entry results.
func (c *Client) SubmitBatch(ctx context.Context, entries []domain.BatchEntry) ([]domain.EntryResult, error) {
	body, err := json.Marshal(map[string]any{"entries": entries})
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}
	data, err := c.do(ctx, http.MethodPost, "/v1/reports/batch", body)
	if err != nil {
		return nil, err
	}
	var out struct {
		Results []domain.EntryResult `json:"results"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode batch results: %w", err)
	}
	if len(out.Results) != len(entries) {
		return nil, fmt.Errorf("batch results: got %d for %d entries", len(out.Results), len(entries))
	}
	return out.Results, nil
}

// FetchBlob downloads a published artifact through the circuit breaker.
func (c *Client) FetchBlob(ctx context.Context, name string) ([]byte, error) {
	data, err := c.breaker.Execute(func() ([]byte, error) {
		data, err := c.do(ctx, http.MethodGet, "/v1/blobs/"+url.PathEscape(name), nil)
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			return nil, domain.ErrBlobNotFound
		}
		return data, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("fetch %s: %w", name, err)
	}
	return data, err
}

// GetAggregate asks the server for an item's consensus; unknown items yield domain.ErrNotFound.
func (c *Client) GetAggregate(ctx context.Context, itemID string) (domain.ItemAggregate, error) {
	var agg domain.ItemAggregate
	err := c.getJSON(ctx, "/v1/items/"+url.PathEscape(itemID), &agg)
	return agg, err
}

// GetTrustProfile fetches a reporter's trust view.
func (c *Client) GetTrustProfile(ctx context.Context, reporterID string) (domain.TrustProfile, error) {
	var profile domain.TrustProfile
	err := c.getJSON(ctx, "/v1/reporters/"+url.PathEscape(reporterID)+"/trust", &profile)
	return profile, err
}

// Register announces a reporter ahead of its first report.
func (c *Client) Register(ctx context.Context, reporterID string) (domain.TrustProfile, error) {
	body, err := json.Marshal(map[string]string{"reporterId": reporterID})
	if err != nil {
		return domain.TrustProfile{}, err
	}
	data, err := c.do(ctx, http.MethodPost, "/v1/reporters", body)
	if err != nil {
		return domain.TrustProfile{}, err
	}
	var profile domain.TrustProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return domain.TrustProfile{}, fmt.Errorf("decode profile: %w", err)
	}
	return profile, nil
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	data, err := c.do(ctx, http.MethodGet, path, nil)
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusNotFound {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// do performs one request, retrying network errors, 429 and 5xx with exponential backoff.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.RetryInitial
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.cfg.MaxRetries), ctx)

	var out []byte
	op := func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if resp.StatusCode >= 300 {
			se := &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(data))}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return se
			}
			return backoff.Permanent(se)
		}
		out = data
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Debug("retrying request", "method", method, "path", path, "wait", wait, "err", err)
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, err
	}
	return out, nil
}
