// Package server implements the key server's HTTP surface: the
// fetch_keys pipeline of spec §4.5, the service-discovery endpoint,
// and liveness, wired onto a net/http.ServeMux the way the teacher's
// node package wires its own protocol endpoints.
package server

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/airloots/seal/pkg/bls"
	"github.com/airloots/seal/pkg/cache"
	"github.com/airloots/seal/pkg/fullnode"
	"github.com/airloots/seal/pkg/masterkey"
	"github.com/airloots/seal/pkg/ratelimit"
	"github.com/airloots/seal/pkg/session"
)

// defaultHealthCheckInterval is used when Deps.HealthCheckInterval is
// left zero.
const defaultHealthCheckInterval = 15 * time.Second

// Deps bundles everything a Server needs to run the pipeline; grouping
// these as one struct keeps NewServer's signature stable as the
// pipeline grows additional stages.
type Deps struct {
	MasterTable         *masterkey.Table
	FullNode            fullnode.Client
	PolicyCache         *cache.PolicyCache
	UskCache            *cache.UskCache
	WalletVerifier      session.WalletVerifier
	AddressLimiter      *ratelimit.AddressLimiter
	Semaphore           *ratelimit.Semaphore
	Logger              *zap.Logger
	SupportedVersions   []string
	KeyServerObjectID   [32]byte
	PublicKey           *bls.G2Point
	GitRevision         string
	FullNodeDeadline    time.Duration
	HealthCheckInterval time.Duration   // how often runHealthProbe re-probes the full node; defaults to defaultHealthCheckInterval
	Now                 func() time.Time // overridable for tests; defaults to time.Now
}

// Server handles the key server's public HTTP endpoints.
type Server struct {
	deps            Deps
	httpServer      *http.Server
	startedAt       time.Time
	fullNodeHealthy atomic.Bool
	stopHealth      chan struct{}
}

// NewServer builds a Server listening on addr (e.g. ":8080").
func NewServer(deps Deps, addr string) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.HealthCheckInterval == 0 {
		deps.HealthCheckInterval = defaultHealthCheckInterval
	}
	s := &Server{deps: deps, startedAt: time.Now(), stopHealth: make(chan struct{})}
	s.fullNodeHealthy.Store(true)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/fetch_keys", s.handleFetchKeys)
	mux.HandleFunc("/v1/service", s.handleService)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Start runs the HTTP server and the background full-node reachability
// probe in their own goroutines.
func (s *Server) Start() {
	go func() {
		s.deps.Logger.Info("starting key server", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.deps.Logger.Error("http server stopped", zap.Error(err))
		}
	}()
	go s.runHealthProbe()
}

// runHealthProbe periodically pings the full node and caches the
// result for handleHealth, so /health never blocks on a live RPC call.
func (s *Server) runHealthProbe() {
	ticker := time.NewTicker(s.deps.HealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.deps.FullNodeDeadline)
			err := s.deps.FullNode.Ping(ctx)
			cancel()
			s.fullNodeHealthy.Store(err == nil)
			if err != nil {
				s.deps.Logger.Warn("full-node health probe failed", zap.Error(err))
			}
		case <-s.stopHealth:
			return
		}
	}
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	close(s.stopHealth)
	s.deps.AddressLimiter.Stop()
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the mux directly, for use in tests with httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) supportsVersion(v string) bool {
	if v == "" {
		return len(s.deps.SupportedVersions) == 0
	}
	for _, sv := range s.deps.SupportedVersions {
		if sv == v {
			return true
		}
	}
	return false
}
