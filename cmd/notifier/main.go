package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/walkwins/internal/config"
	"example.com/walkwins/internal/domain"
	"example.com/walkwins/internal/notify"
	"example.com/walkwins/internal/remote/postgres"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	repo := postgres.NewRepository(pool)
	gateway := notify.NewExpoGateway(cfg.PushGatewayURL)

	var textgen notify.TextGenerator
	if cfg.TextGenURL != "" {
		textgen = notify.NewHTTPTextGenerator(cfg.TextGenURL)
	}

	retry := notify.NewPushRetryQueue(pool, gateway, cfg.PushMaxRetries, cfg.PushBaseDelay)
	job := notify.NewJob(repo, repo, textgen, gateway, retry, domain.SystemClock{}, nil)

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler()}
	go func() {
		log.Printf("notifier metrics listening on %s", cfg.MetricsAddress)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	jobTicker := time.NewTicker(cfg.NotifyInterval)
	defer jobTicker.Stop()
	retryTicker := time.NewTicker(cfg.PushRetryPoll)
	defer retryTicker.Stop()

	runJob := func() {
		sent, err := job.RunOnce(ctx)
		if err != nil {
			log.Printf("[notify] pass failed: %v", err)
			return
		}
		log.Printf("[notify] pass complete, %d pushes sent", sent)
	}
	runJob()

	for {
		select {
		case <-stop:
			cancel()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				log.Printf("metrics server shutdown error: %v", err)
			}
			return
		case <-jobTicker.C:
			runJob()
		case <-retryTicker.C:
			if _, err := retry.RunOnce(ctx, cfg.OutboxBatchSize); err != nil {
				log.Printf("[notify] retry pass: %v", err)
			}
		}
	}
}
