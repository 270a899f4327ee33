// Package fullnode abstracts the single external dependency of the
// key-server pipeline: a trusted full node that can dry-run a
// transaction and report whether it aborts. The Client interface
// follows the teacher's registry.Client split between a stub used in
// tests and an HTTP-backed production implementation.
package fullnode

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/airloots/seal/pkg/sealerrors"
)

// Result is the outcome of simulating a transaction.
type Result struct {
	Aborted   bool
	AbortCode string
}

// Client evaluates policy by dry-running a transaction against the
// external platform, per spec §6's single-verb RPC.
type Client interface {
	DryRunTransaction(ctx context.Context, ptb []byte, sender [32]byte) (*Result, error)
	Ping(ctx context.Context) error
}

// HTTPClient is the production client, calling a configured full-node
// RPC endpoint with a per-request deadline (stage 5's default 5s).
type HTTPClient struct {
	BaseURL string
	HTTP    *http.Client
}

// NewHTTPClient builds a client with the given base URL and deadline.
func NewHTTPClient(baseURL string, deadline time.Duration) *HTTPClient {
	return &HTTPClient{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: deadline},
	}
}

type dryRunRequest struct {
	PTB    []byte `json:"ptb"`
	Sender string `json:"sender"`
}

type dryRunResponse struct {
	Aborted   bool   `json:"aborted"`
	AbortCode string `json:"abort_code,omitempty"`
}

// DryRunTransaction posts the transaction to the full node's dry-run
// endpoint. A request-level timeout yields UpstreamTimeout; a
// connection failure yields UpstreamUnavailable, both retryable per
// spec §7.
func (c *HTTPClient) DryRunTransaction(ctx context.Context, ptbBytes []byte, sender [32]byte) (*Result, error) {
	body, err := json.Marshal(dryRunRequest{PTB: ptbBytes, Sender: fmt.Sprintf("%x", sender)})
	if err != nil {
		return nil, sealerrors.Wrap(sealerrors.Internal, "encoding dry-run request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/dry_run_transaction", bytes.NewReader(body))
	if err != nil {
		return nil, sealerrors.Wrap(sealerrors.Internal, "building dry-run request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		var netErr net.Error
		if ctx.Err() != nil || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, sealerrors.Wrap(sealerrors.UpstreamTimeout, "full-node dry-run timed out", err)
		}
		return nil, sealerrors.Wrap(sealerrors.UpstreamUnavailable, "full-node dry-run unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, sealerrors.New(sealerrors.UpstreamUnavailable, fmt.Sprintf("full-node dry-run returned status %d", resp.StatusCode))
	}

	var out dryRunResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, sealerrors.Wrap(sealerrors.UpstreamUnavailable, "decoding dry-run response", err)
	}
	return &Result{Aborted: out.Aborted, AbortCode: out.AbortCode}, nil
}

// Ping reports whether the full-node RPC is reachable, for the
// key server's /health endpoint.
func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return sealerrors.Wrap(sealerrors.Internal, "building health request", err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return sealerrors.Wrap(sealerrors.UpstreamUnavailable, "full-node health check unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return sealerrors.New(sealerrors.UpstreamUnavailable, fmt.Sprintf("full-node health check returned status %d", resp.StatusCode))
	}
	return nil
}

// StubClient is an in-memory client for tests, keyed by sender so a
// test can script per-account allow/deny outcomes.
type StubClient struct {
	Allow map[[32]byte]bool
}

// Ping always succeeds for the stub.
func (c *StubClient) Ping(_ context.Context) error {
	return nil
}

// NewStubClient returns a stub that allows every sender by default.
func NewStubClient() *StubClient {
	return &StubClient{Allow: make(map[[32]byte]bool)}
}

// DryRunTransaction returns the scripted outcome for sender, defaulting
// to allow when the sender has no explicit entry.
func (c *StubClient) DryRunTransaction(_ context.Context, _ []byte, sender [32]byte) (*Result, error) {
	allow, ok := c.Allow[sender]
	if !ok {
		allow = true
	}
	if !allow {
		return &Result{Aborted: true, AbortCode: "policy_denied"}, nil
	}
	return &Result{Aborted: false}, nil
}
