package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/magicorntech/epictetus/internal/cluster"
	"github.com/magicorntech/epictetus/internal/config"
	"github.com/magicorntech/epictetus/internal/health"
	"github.com/magicorntech/epictetus/internal/logger"
	"github.com/magicorntech/epictetus/internal/metrics"
	"github.com/magicorntech/epictetus/internal/provider/cloudflare"
	"github.com/magicorntech/epictetus/internal/reconcile"
	"github.com/magicorntech/epictetus/internal/status"
	"github.com/magicorntech/epictetus/internal/zone"
)

func main() {
	cfg, err := config.Load(configPath())
	if err != nil {
		// A missing credential at startup is fatal; the logger isn't
		// configured yet, so this is the one place we write to stderr
		// directly.
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Configure(cfg.Log.Level, cfg.Log.Format)
	slog.Info("starting epictetus")

	m := metrics.New(true)

	statusStore, err := status.New(cfg.StatePath, m)
	if err != nil {
		slog.Error("failed to open status store", "error", err)
		os.Exit(1)
	}
	defer statusStore.Close()

	dnsProvider, err := cloudflare.New(cfg.DNS, cfg.MaxRetries, cfg.RetryDelay, m)
	if err != nil {
		slog.Error("failed to initialize DNS provider", "error", err)
		os.Exit(1)
	}
	resolver := zone.NewResolver(dnsProvider)

	k8sClient, err := cluster.NewClient(cfg.K8sConfigPath)
	if err != nil {
		slog.Error("failed to build kubernetes client", "error", err)
		os.Exit(1)
	}
	observer := cluster.New(k8sClient)

	engine := reconcile.NewEngine(observer, resolver, dnsProvider, statusStore, m, cfg)
	publisher := health.NewPublisher(engine, observer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var healthServer *http.Server
	if cfg.EnableHealthServer {
		mux := http.NewServeMux()
		mux.Handle("/", publisher.Handler())
		mux.Handle("/metrics", m.Handler())
		healthServer = &http.Server{
			Addr:    ":" + strconv.Itoa(cfg.HealthPort),
			Handler: mux,
		}
		go func() {
			slog.Info("starting health/status server", "address", healthServer.Addr)
			if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("health server failed", "error", err)
			}
		}()
	}

	go func() {
		if err := observer.Run(ctx); err != nil {
			slog.Error("cluster observer stopped", "error", err)
		}
	}()

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		if err := engine.Run(ctx); err != nil {
			slog.Error("reconciliation engine stopped", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutdown signal received")
	cancel()

	if healthServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("health server shutdown error", "error", err)
		}
	}

	<-engineDone
	slog.Info("shutdown complete")
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config.yaml"
}
