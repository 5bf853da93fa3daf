package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentworkforce/chatrelay/internal/chatsync"
	"github.com/agentworkforce/chatrelay/internal/config"
)

func main() {
	cfg, err := config.LoadRelay()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	registry := prometheus.NewRegistry()
	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
			log.Printf("metrics listening on %s", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.Printf("metrics server failed: %v", err)
			}
		}()
	}

	logger := log.Default()
	source := chatsync.NewHTTPSource(cfg.SourceURL, nil)
	sink := chatsync.NewHTTPSink(cfg.SinkURL, nil)
	resolver := chatsync.NewResolver(source, sink, chatsync.NewMemoryChatCache(), logger)
	dispatcher := chatsync.NewDispatcher(source, sink, resolver, logger, chatsync.NewMetrics(registry))
	poller := chatsync.NewPoller(source, dispatcher, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Contiguous windows: each tick picks up exactly where the last one
	// stopped. A failed tick is logged and abandoned; its window is not
	// replayed.
	startAt := time.Now().Add(-cfg.Interval)
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		endAt := time.Now()
		if err := poller.Run(ctx, startAt, endAt); err != nil {
			logger.Printf("tick failed: %v", err)
		}
		startAt = endAt

		if cfg.Once {
			return
		}
		select {
		case <-ctx.Done():
			logger.Printf("shutting down")
			return
		case <-ticker.C:
		}
	}
}
