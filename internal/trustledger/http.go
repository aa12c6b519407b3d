package trustledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// HTTPClient talks to the trust service over its JSON API:
// POST /records appends one record, GET /records returns the full ledger.
// Append is additionally guarded by a consecutive-failure circuit breaker so
// match cycles stop paying the timeout cost once the service is known down.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	breaker *breaker
}

// NewHTTPClient builds a client with the given per-call timeout. The timeout
// also bounds calls whose context carries no deadline of its own.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		breaker: newBreaker(),
	}
}

type appendResponse struct {
	OK    bool   `json:"ok"`
	TxRef string `json:"txRef"`
	Error string `json:"error,omitempty"`
}

func (c *HTTPClient) Append(ctx context.Context, record Record) (string, error) {
	if c.breaker.IsOpen() {
		return "", NewError(CategoryNetwork, "circuit open, service marked unavailable", nil)
	}

	body, err := json.Marshal(record)
	if err != nil {
		return "", NewError(CategoryRejected, "encode record", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/records", bytes.NewReader(body))
	if err != nil {
		return "", NewError(CategoryNetwork, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", NewError(CategoryConfirmationTimeout, "append not confirmed in time", err)
		}
		return "", NewError(CategoryNetwork, "append failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		c.breaker.RecordFailure()
		return "", NewError(CategoryNetwork, fmt.Sprintf("service error (%d)", resp.StatusCode), nil)
	case resp.StatusCode >= 400:
		// A rejection is a definitive answer, not a service failure.
		c.breaker.RecordSuccess()
		return "", NewError(CategoryRejected, fmt.Sprintf("record rejected (%d)", resp.StatusCode), nil)
	}

	var parsed appendResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.breaker.RecordFailure()
		return "", NewError(CategoryNetwork, "decode append response", err)
	}
	if !parsed.OK {
		c.breaker.RecordSuccess()
		return "", NewError(CategoryRejected, parsed.Error, nil)
	}
	c.breaker.RecordSuccess()
	return parsed.TxRef, nil
}

type listResponse struct {
	OK      bool     `json:"ok"`
	Records []Record `json:"records"`
	Error   string   `json:"error,omitempty"`
}

func (c *HTTPClient) ListAll(ctx context.Context) ([]Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/records", nil)
	if err != nil {
		return nil, NewError(CategoryNetwork, "build request", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, NewError(CategoryConfirmationTimeout, "list not answered in time", err)
		}
		return nil, NewError(CategoryNetwork, "list failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, NewError(CategoryNetwork, fmt.Sprintf("service error (%d)", resp.StatusCode), nil)
	}
	var parsed listResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, NewError(CategoryNetwork, "decode list response", err)
	}
	if !parsed.OK {
		return nil, NewError(CategoryRejected, parsed.Error, nil)
	}
	return parsed.Records, nil
}
