// Command seal-server runs the key-server HTTP daemon: it loads
// configuration, resolves the master-key table for the configured
// server mode, and serves the fetch_keys/service/health endpoints
// until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/airloots/seal/internal/logger"
	"github.com/airloots/seal/internal/metrics"
	"github.com/airloots/seal/pkg/bls"
	"github.com/airloots/seal/pkg/cache"
	"github.com/airloots/seal/pkg/config"
	"github.com/airloots/seal/pkg/fullnode"
	"github.com/airloots/seal/pkg/ratelimit"
	"github.com/airloots/seal/pkg/server"
	"github.com/airloots/seal/pkg/session"
)

const (
	defaultAddressRPS   = 5.0
	defaultAddressBurst = 20
)

func main() {
	app := &cli.App{
		Name:  "seal-server",
		Usage: "Seal key-server daemon",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to the YAML/JSON configuration document",
				EnvVars: []string{"CONFIG_PATH"},
				Value:   "config.yaml",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "enable debug-level logging regardless of config",
			},
			&cli.StringFlag{
				Name:  "git-revision",
				Usage: "revision string reported by GET /v1/service",
			},
			&cli.StringFlag{
				Name:  "kms-region",
				Usage: "AWS region for unwrapping the Permissioned master seed",
				Value: "us-east-1",
			},
			&cli.UintFlag{
				Name:  "concurrency",
				Usage: "max concurrent stage-5 full-node RPCs; defaults to the number of CPU cores",
				Value: uint(runtime.NumCPU()),
			},
		},
		Action: runServer,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "seal-server: %v\n", err)
		os.Exit(1)
	}
}

func runServer(c *cli.Context) error {
	cfg, err := config.LoadFromFile(c.String("config"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logCfg := &logger.Config{Debug: c.Bool("verbose"), Format: cfg.LogFormat, Level: cfg.LogLevel}
	if logCfg.Debug {
		logCfg.Level = "debug"
	}
	l, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	table, err := buildMasterTable(c.Context, cfg, l, c.String("kms-region"))
	if err != nil {
		return fmt.Errorf("building master key table: %w", err)
	}

	policyCache, err := cache.NewPolicyCache(cfg.PolicyEvalTTL())
	if err != nil {
		return fmt.Errorf("building policy cache: %w", err)
	}
	uskCache, err := cache.NewUskCache(cfg.UskTTL())
	if err != nil {
		return fmt.Errorf("building usk cache: %w", err)
	}

	var keyServerObjectID [32]byte
	var publicKey *bls.G2Point
	if cfg.ServerMode == config.ModeOpen {
		id, err := decodeObjectID(cfg.KeyServerObjectID)
		if err != nil {
			return fmt.Errorf("key_server_object_id: %w", err)
		}
		keyServerObjectID = id

		sk, err := table.Resolve(keyServerObjectID)
		if err != nil {
			return fmt.Errorf("resolving open-mode master key: %w", err)
		}
		publicKey = bls.ScalarMulG2(bls.G2Generator, sk)
	}

	deps := server.Deps{
		MasterTable:         table,
		FullNode:            fullnode.NewHTTPClient(cfg.FullNodeRPCURL, cfg.FullNodeDeadline()),
		PolicyCache:         policyCache,
		UskCache:            uskCache,
		WalletVerifier:      session.Ed25519Verifier{},
		AddressLimiter:      ratelimit.NewAddressLimiter(defaultAddressRPS, defaultAddressBurst),
		Semaphore:           ratelimit.NewSemaphore(int(c.Uint("concurrency"))),
		Logger:              l,
		SupportedVersions:   cfg.SupportedVersions,
		KeyServerObjectID:   keyServerObjectID,
		PublicKey:           publicKey,
		GitRevision:         c.String("git-revision"),
		FullNodeDeadline:    cfg.FullNodeDeadline(),
		HealthCheckInterval: cfg.HealthCacheTTL(),
	}

	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	srv := server.NewServer(deps, addr)

	go func() {
		metricsAddr := fmt.Sprintf(":%d", cfg.MetricsPort)
		l.Sugar().Infow("starting metrics server", "addr", metricsAddr)
		if err := metrics.StartServer(metricsAddr); err != nil {
			l.Sugar().Errorw("metrics server stopped", "error", err)
		}
	}()

	srv.Start()
	l.Sugar().Infow("seal-server running", "addr", addr, "server_mode", cfg.ServerMode)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(ctx)
}
