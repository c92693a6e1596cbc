// Package supabase implements the backing-store ports over the
// Supabase PostgREST API. Plain queries go through table endpoints;
// everything transactional (pending statements, settlement) is a
// Postgres function invoked through /rest/v1/rpc so it runs in a
// single database transaction.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/dmoreira/financas-familia-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

// Client wraps HTTP calls to Supabase PostgREST.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	cfg            resilience.Config
	logger         *zap.Logger
}

// NewClient creates a Supabase client.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		cfg:            cfg,
		logger:         logger,
	}
}

// do executes one authenticated PostgREST request. A nil body is a
// plain query; otherwise body is marshalled as JSON. The prefer
// header controls PostgREST write behavior (return=representation,
// resolution=merge-duplicates, ...).
func (c *Client) do(ctx context.Context, method, path string, body any, prefer string) ([]byte, int, error) {
	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, 0, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceRoleKey))
	req.Header.Set("Content-Type", "application/json")
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)),
		)
		return respBody, resp.StatusCode, fmt.Errorf("supabase %s %s returned %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)
	return respBody, resp.StatusCode, nil
}

// query runs a GET with retry + circuit breaker and decodes the JSON
// array PostgREST returns into out.
func (c *Client) query(ctx context.Context, path string, out any) error {
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, _, err := c.do(ctx, http.MethodGet, path, nil, "")
			if err != nil {
				return err
			}
			if len(body) == 0 {
				body = []byte("[]")
			}
			return json.Unmarshal(body, out)
		})
	})
	return err
}

// rpc invokes a Postgres function through PostgREST. Writes are not
// retried: the function body is one transaction and a retry after an
// ambiguous failure could execute it twice.
func (c *Client) rpc(ctx context.Context, fn string, args map[string]any, out any) error {
	_, err := c.cb.Execute(func() (any, error) {
		body, _, err := c.do(ctx, http.MethodPost, "rpc/"+fn, args, "")
		if err != nil {
			return nil, err
		}
		if out != nil && len(body) > 0 {
			return nil, json.Unmarshal(body, out)
		}
		return nil, nil
	})
	return err
}

// insert posts one row. Returns the HTTP status so callers can detect
// unique-constraint conflicts; a 409 is an expected outcome for the
// idempotency log and must not count against the circuit breaker.
func (c *Client) insert(ctx context.Context, table string, row map[string]any, prefer string) (int, error) {
	var status int
	_, err := c.cb.Execute(func() (any, error) {
		_, st, innerErr := c.do(ctx, http.MethodPost, table, row, prefer)
		status = st
		if st == http.StatusConflict {
			return nil, nil
		}
		return nil, innerErr
	})
	return status, err
}

// patch updates rows matching the path filter.
func (c *Client) patch(ctx context.Context, path string, data map[string]any) error {
	_, err := c.cb.Execute(func() (any, error) {
		_, _, innerErr := c.do(ctx, http.MethodPatch, path, data, "return=minimal")
		return nil, innerErr
	})
	return err
}
