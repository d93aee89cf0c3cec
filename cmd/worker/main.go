package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"seatline/internal/config"
	"seatline/internal/consumers"
	"seatline/internal/database"
	"seatline/internal/jobs"
	"seatline/internal/logger"
	"seatline/internal/notify"
	"seatline/internal/repository"
	"seatline/internal/repository/postgres"
	"seatline/internal/service"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.WithFields("component", "worker")

	if cfg.Checkout.StoreBackend != config.StorePostgres {
		logger.Fatal("Worker needs a shared store, set STORE_BACKEND=postgres", "store", cfg.Checkout.StoreBackend)
	}

	// Override NATS client ID for the worker
	cfg.NATS.ClientID = "seatline-worker"

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	broker, err := notify.Open(cfg)
	if err != nil {
		logger.Fatal("Failed to open notify backend", "backend", cfg.Checkout.NotifyBackend, "error", err)
	}
	defer broker.Close()

	store := postgres.New(db)
	committer, err := service.NewCommitter(cfg.Checkout.CommitStrategy, store)
	if err != nil {
		logger.Fatal("Failed to select commit strategy", "error", err)
	}

	notifier := notify.NewAsync(broker.Notifier, cfg.Checkout.NotifyTimeout)
	defer notifier.Wait()

	repos := repository.NewRepositories(store, postgres.NewCatalog(db))
	services := service.NewServices(repos, committer, notifier, cfg.Checkout.HoldTTL)

	reaper := jobs.NewReaper(services.Bookings, jobs.ReaperConfig{
		TTL:       cfg.Reaper.TTL,
		Interval:  cfg.Reaper.Interval,
		BatchSize: cfg.Reaper.BatchSize,
	})

	// booking events are consumed only when they travel over NATS
	var consumerService *consumers.ConsumerService
	if broker.NATS != nil {
		var delivery consumers.Delivery = consumers.LogDelivery{}
		consumerService = consumers.NewConsumerService(broker.NATS, consumers.NewHandlers(delivery))
	} else {
		log.Info("Notification consumers disabled", "backend", cfg.Checkout.NotifyBackend)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		reaper.Start(gctx)
		<-gctx.Done()
		reaper.Stop()
		return nil
	})

	if consumerService != nil {
		g.Go(func() error {
			if err := consumerService.Start(); err != nil {
				return err
			}
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return consumerService.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				db.ReportPool()
			case <-gctx.Done():
				return nil
			}
		}
	})

	log.Info("Worker started", "reaper_ttl", cfg.Reaper.TTL.String(), "strategy", committer.Name(),
		"notify", cfg.Checkout.NotifyBackend)

	if err := g.Wait(); err != nil {
		log.Error("Worker stopped with error", "error", err)
	}
	log.Info("Worker stopped")
}
