// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/absmach/guildbot/bot"
	"github.com/absmach/guildbot/config"
	"github.com/absmach/guildbot/gateway"
	"github.com/absmach/guildbot/github"
	"github.com/absmach/guildbot/poller"
	"github.com/absmach/guildbot/recall"
	"github.com/absmach/guildbot/server/health"
	"github.com/absmach/guildbot/server/otel"
	"github.com/google/uuid"
)

func main() {
	configFile := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	slog.Info("Starting guild bot", "version", "0.1.0")
	slog.Info("Configuration loaded",
		"org", cfg.GitHub.Org,
		"poll_interval", cfg.GitHub.PollInterval,
		"delivery_window", cfg.GitHub.DeliveryWindow,
		"gateway_url", cfg.Gateway.URL,
		"health_enabled", cfg.Server.HealthEnabled,
		"metrics_enabled", cfg.Server.MetricsEnabled,
		"log_level", cfg.Log.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	var metrics *otel.Metrics
	if cfg.Server.MetricsEnabled {
		shutdown, err := otel.InitProvider(cfg.Server, uuid.NewString())
		if err != nil {
			slog.Error("Failed to initialize telemetry", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				slog.Error("Telemetry shutdown error", "error", err)
			}
		}()

		metrics, err = otel.NewMetrics()
		if err != nil {
			slog.Error("Failed to create metrics", "error", err)
			os.Exit(1)
		}
		slog.Info("Telemetry enabled", "endpoint", cfg.Server.MetricsAddr)
	}

	// Event source and cache
	source := github.NewClient(cfg.GitHub, logger)
	cache := recall.New(cfg.Bot.UserID, cfg.Recall.Capacity, metrics)

	// Gateway connection and relay-backed adapters
	gw := gateway.New(gateway.Config{
		URL:          cfg.Gateway.URL,
		Compression:  cfg.Gateway.Compression,
		ReconnectMin: cfg.Gateway.ReconnectMin,
		ReconnectMax: cfg.Gateway.ReconnectMax,
	}, logger, metrics)
	relay := bot.NewRelay(gw)

	// Command layer
	b := bot.New(bot.Config{
		Prefix:           cfg.Bot.Prefix,
		SelfID:           cfg.Bot.UserID,
		Org:              cfg.GitHub.Org,
		WelcomeChannelID: cfg.Channels.WelcomeID,
		UpdatesChannelID: cfg.Channels.UpdatesID,
	}, relay, cache, relay, relay, logger)
	b.Register(gw)

	// Poller, gated on the first gateway connection
	p := poller.New(poller.Config{
		Org:      cfg.GitHub.Org,
		Interval: cfg.GitHub.PollInterval,
		Window:   cfg.GitHub.DeliveryWindow,
	}, source, b, logger, metrics)
	gw.OnReady(p.SetReady)

	var wg sync.WaitGroup
	runErr := make(chan error, 3)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := gw.Run(ctx); err != nil && ctx.Err() == nil {
			runErr <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := p.Run(ctx); err != nil && ctx.Err() == nil {
			runErr <- err
		}
	}()

	if cfg.Server.HealthEnabled {
		healthServer := health.New(health.Config{
			Address:         cfg.Server.HealthAddr,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
		}, p, cache, b.BanLog(), gw.Connected, logger)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := healthServer.Listen(ctx); err != nil && ctx.Err() == nil {
				runErr <- err
			}
		}()
	}

	slog.Info("Guild bot started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
		cancel()
	case err := <-runErr:
		slog.Error("Runtime error", "error", err)
		cancel()
	}

	wg.Wait()
	slog.Info("Guild bot stopped")
}
