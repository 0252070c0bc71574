package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"txcrawler/internal/application"
	"txcrawler/internal/config"
	"txcrawler/internal/infrastructure/callback"
	"txcrawler/internal/infrastructure/ethrpc"
	"txcrawler/internal/infrastructure/kafka"
	"txcrawler/internal/infrastructure/logging"
	"txcrawler/internal/infrastructure/storage"
	"txcrawler/internal/infrastructure/telemetry"
	"txcrawler/internal/interfaces/httpapi"

	"golang.org/x/sync/errgroup"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		slog.Error("crawler stopped", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	logCloser, err := logging.Init(logging.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	if err != nil {
		return err
	}
	defer logCloser.Close()

	if !cfg.Crawler.Enable {
		slog.Info("crawler disabled, nothing to do")
		return nil
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	serviceName := cfg.Otel.ServiceName
	if serviceName == "" {
		serviceName = "txcrawler"
	}
	shutdownTracing, err := telemetry.InitTracer(ctx, serviceName, cfg.Otel.Endpoint, version)
	if err != nil {
		slog.Warn("tracing disabled", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(shutdownCtx); err != nil {
				slog.Warn("tracing shutdown error", "err", err)
			}
		}()
	}

	rpcClient, err := ethrpc.NewClient(ethrpc.Config{URL: cfg.RPC.URL, Timeout: cfg.RPC.Timeout})
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	metrics := httpapi.NewMetrics()
	deps := application.CrawlerDeps{
		Chain:    rpcClient,
		Store:    store,
		Observer: metrics,
	}
	if cfg.Crawler.Callback != "" {
		client, err := callback.NewClient(callback.Config{URL: cfg.Crawler.Callback, Timeout: cfg.RPC.Timeout})
		if err != nil {
			return err
		}
		deps.Callback = client
		slog.Info("callback enabled", "url", client.URL())
	}
	if cfg.Stream.Enable {
		producer, err := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Stream.Brokers, Topic: cfg.Stream.Topic})
		if err != nil {
			return err
		}
		defer producer.Close()
		deps.Stream = producer
		slog.Info("stream enabled", "brokers", cfg.Stream.Brokers, "topic", cfg.Stream.Topic)
	}

	crawler, err := application.NewCrawler(deps, application.CrawlerConfigFrom(cfg))
	if err != nil {
		return err
	}
	metrics.WatchQueues(crawler.State)

	httpServer, err := httpapi.NewServer(cfg, store, rpcClient, crawler, metrics, httpapi.BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	})
	if err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	if cfg.HTTP.Addr != "" {
		group.Go(func() error {
			slog.Info("http server listening", "addr", cfg.HTTP.Addr)
			return httpServer.ListenAndServe(groupCtx, cfg.HTTP.Addr)
		})
	}
	group.Go(func() error { return crawler.Run(groupCtx) })

	err = group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("crawler shut down")
	return nil
}

func openStore(ctx context.Context, cfg config.Config) (*storage.CachedAdapter, error) {
	storeCfg, err := cfg.Store()
	if err != nil {
		return nil, err
	}
	base, err := storage.Open(cfg.Crawler.DB, storeCfg)
	if err != nil {
		return nil, err
	}
	if err := base.Connect(ctx); err != nil {
		return nil, err
	}
	store, err := storage.NewCachedAdapter(ctx, base, storage.CacheConfig{Addr: cfg.Redis.Addr, TTL: cfg.Redis.TTL})
	if err != nil {
		slog.Warn("redis cache disabled", "err", err)
		return storage.NewCachedAdapter(ctx, base, storage.CacheConfig{})
	}
	return store, nil
}
