package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/lysyi3m/chat-comb/app/api"
	"github.com/lysyi3m/chat-comb/app/cfg"
	"github.com/lysyi3m/chat-comb/app/database"
	"github.com/lysyi3m/chat-comb/app/feed"
	"github.com/lysyi3m/chat-comb/app/metrics"
	"github.com/lysyi3m/chat-comb/app/pipeline"
	"github.com/lysyi3m/chat-comb/app/publish"
	"github.com/lysyi3m/chat-comb/app/tasks"
	"github.com/lysyi3m/chat-comb/app/transport"
)

func main() {
	appConfig, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if appConfig == nil {
		// Help was shown
		return
	}

	setupLogger(appConfig.Debug)

	if appConfig.TargetID <= 0 {
		slog.Error("Target id must be positive", "target", appConfig.TargetID)
		os.Exit(1)
	}

	slog.Info("Starting Chat Comb server", "version", appConfig.Version, "target", appConfig.TargetID)

	source, err := feed.LoadSource(appConfig.SourceFile)
	if err != nil {
		slog.Error("Failed to load source", "path", appConfig.SourceFile, "error", err)
		os.Exit(1)
	}

	db, err := database.NewConnection(appConfig.DBPath)
	if err != nil {
		slog.Error("Failed to connect to database", "path", appConfig.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appConfig.DBPath, "schema_version", version, "dirty", dirty)

	messageRepo := database.NewMessageRepository(db)

	publisher := setupPublishers(appConfig)
	if publisher != nil {
		defer func() {
			if err := publisher.Close(); err != nil {
				slog.Warn("Failed to close publishers", "error", err)
			}
		}()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	parser, err := feed.NewPayloadParser(source.Format)
	if err != nil {
		slog.Error("Failed to create payload parser", "format", source.Format, "error", err)
		os.Exit(1)
	}

	var limiter *rate.Limiter
	if appConfig.FetchRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(appConfig.FetchRate), max(appConfig.FetchBurst, 1))
	}
	fetcher := transport.NewHTTPFetcher(source, &http.Client{}, limiter, appConfig.UserAgent)

	p := pipeline.NewPipeline(fetcher, parser, collector, pipeline.Config{
		FetchInterval:   appConfig.FetchInterval,
		ParseInterval:   appConfig.ParseInterval,
		PendingCapacity: appConfig.PendingCapacity,
		ResultCapacity:  appConfig.ResultCapacity,
		StopTimeout:     appConfig.StopTimeout,
	})
	p.Start(appConfig.TargetID)

	scheduler := tasks.NewScheduler(p, source, feed.NewFilterer(), messageRepo, publisher, collector)
	scheduler.Start()
	slog.Info("Background scheduler started", "workers", appConfig.WorkerCount, "poll_interval", appConfig.PollInterval, "drain_interval", appConfig.DrainInterval)

	handler := api.NewHandler(appConfig.TargetID, source, p, messageRepo, scheduler)
	server := api.NewServer(handler, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), appConfig.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appConfig.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appConfig.Port)
		slog.Info("Endpoint available", "name", "feed", "url", fmt.Sprintf("http://localhost:%s/feed", appConfig.Port))
		slog.Info("Endpoint available", "name", "messages", "url", fmt.Sprintf("http://localhost:%s/messages", appConfig.Port))
		slog.Info("Endpoint available", "name", "stats", "url", fmt.Sprintf("http://localhost:%s/stats", appConfig.Port))
		slog.Info("Endpoint available", "name", "metrics", "url", fmt.Sprintf("http://localhost:%s/metrics", appConfig.Port))

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP server shutdown error", "error", err)
	}

	scheduler.Stop()

	// flush whatever is still in the sink before the pipeline discards it
	if err := scheduler.NewDrainTask().Execute(shutdownCtx); err != nil {
		slog.Warn("Final drain failed", "error", err)
	}

	if err := p.Stop(); err != nil {
		slog.Warn("Pipeline did not stop cleanly", "timeout", appConfig.StopTimeout, "error", err)
	}

	slog.Info("Chat Comb server shutdown complete")
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func setupPublishers(appConfig *cfg.Cfg) publish.Publisher {
	var publishers publish.Multi

	if appConfig.RedisAddr != "" {
		redisPublisher, err := publish.NewRedisPublisher(appConfig.RedisAddr, appConfig.RedisKey, appConfig.RedisMaxLen)
		if err != nil {
			slog.Warn("Redis publishing disabled", "addr", appConfig.RedisAddr, "error", err)
		} else {
			slog.Info("Publishing to Redis", "addr", appConfig.RedisAddr, "key", redisPublisher.ListKey(appConfig.TargetID))
			publishers = append(publishers, redisPublisher)
		}
	}

	if len(appConfig.KafkaBrokers) > 0 {
		kafkaPublisher, err := publish.NewKafkaPublisher(appConfig.KafkaBrokers, appConfig.KafkaTopic)
		if err != nil {
			slog.Warn("Kafka publishing disabled", "brokers", appConfig.KafkaBrokers, "error", err)
		} else {
			slog.Info("Publishing to Kafka", "brokers", appConfig.KafkaBrokers, "topic", appConfig.KafkaTopic)
			publishers = append(publishers, kafkaPublisher)
		}
	}

	if len(publishers) == 0 {
		return nil
	}
	return publishers
}
