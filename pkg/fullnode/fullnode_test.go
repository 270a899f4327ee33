package fullnode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubClientDefaultsToAllow(t *testing.T) {
	c := NewStubClient()
	res, err := c.DryRunTransaction(context.Background(), []byte("ptb"), [32]byte{1})
	require.NoError(t, err)
	assert.False(t, res.Aborted)
}

func TestStubClientScriptedDeny(t *testing.T) {
	c := NewStubClient()
	c.Allow[[32]byte{2}] = false
	res, err := c.DryRunTransaction(context.Background(), []byte("ptb"), [32]byte{2})
	require.NoError(t, err)
	assert.True(t, res.Aborted)
}

func TestHTTPClientDryRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(dryRunResponse{Aborted: true, AbortCode: "E_DENIED"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 2*time.Second)
	res, err := c.DryRunTransaction(context.Background(), []byte("ptb"), [32]byte{1})
	require.NoError(t, err)
	assert.True(t, res.Aborted)
	assert.Equal(t, "E_DENIED", res.AbortCode)
}

func TestHTTPClientUpstreamUnavailable(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:1", 200*time.Millisecond)
	_, err := c.DryRunTransaction(context.Background(), []byte("ptb"), [32]byte{1})
	assert.Error(t, err)
}

func TestStubClientPingAlwaysSucceeds(t *testing.T) {
	c := NewStubClient()
	assert.NoError(t, c.Ping(context.Background()))
}

func TestHTTPClientPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 2*time.Second)
	assert.NoError(t, c.Ping(context.Background()))
}

func TestHTTPClientPingUnreachable(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:1", 200*time.Millisecond)
	assert.Error(t, c.Ping(context.Background()))
}
