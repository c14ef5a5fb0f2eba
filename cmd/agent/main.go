package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/walkwins/internal/config"
	"example.com/walkwins/internal/domain"
	"example.com/walkwins/internal/reconcile"
	"example.com/walkwins/internal/remote/postgres"
	"example.com/walkwins/internal/sensor"
	"example.com/walkwins/internal/stepstore"
)

func main() {
	logout := flag.Bool("logout", false, "tear down without a final sync (session is being invalidated)")
	flag.Parse()

	cfg := config.Load()
	if cfg.UserID == "" {
		log.Fatal("WALKWINS_USER_ID must be set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kv, err := stepstore.OpenSQLite(ctx, cfg.LocalStorePath)
	if err != nil {
		log.Fatalf("failed to open local store: %v", err)
	}
	defer kv.Close()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	clock := domain.SystemClock{}
	local := stepstore.New(kv, clock)
	repo := postgres.NewRepository(pool)

	adapter := sensor.NewAdapter(
		sensor.NewFileSource(cfg.SensorPath, cfg.SensorPollInterval),
		local, clock, nil,
	)
	engine := reconcile.New(cfg.UserID, local, repo, adapter, clock, nil)

	// Cold-start rollover: commit yesterday's remainder before new readings
	// start mutating today's counter.
	if err := engine.FinalizePreviousDay(ctx); err != nil {
		log.Printf("[sync] day finalization failed: %v", err)
	}

	stopWatch, err := adapter.Start(ctx)
	if err != nil {
		if errors.Is(err, sensor.ErrUnavailable) || errors.Is(err, sensor.ErrPermissionDenied) {
			log.Fatalf("step sensor not usable: %v", err)
		}
		log.Fatalf("failed to start sensor: %v", err)
	}
	defer stopWatch()

	runner := reconcile.NewRunner(engine, cfg.SyncInterval, nil)
	go runner.Run(ctx)

	log.Printf("walkwins agent running (user=%s, store=%s)", cfg.UserID, cfg.LocalStorePath)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	cancel()

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer flushCancel()
	runner.Flush(flushCtx, *logout)
}
