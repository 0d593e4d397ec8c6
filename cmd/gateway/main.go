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

	"github.com/DanielPopoola/vpos-gateway/internal/adapters/boltstore"
	"github.com/DanielPopoola/vpos-gateway/internal/adapters/events"
	"github.com/DanielPopoola/vpos-gateway/internal/adapters/handler"
	"github.com/DanielPopoola/vpos-gateway/internal/adapters/postgres"
	"github.com/DanielPopoola/vpos-gateway/internal/adapters/vpos"
	"github.com/DanielPopoola/vpos-gateway/internal/config"
	"github.com/DanielPopoola/vpos-gateway/internal/core/domain"
	"github.com/DanielPopoola/vpos-gateway/internal/core/ports"
	"github.com/DanielPopoola/vpos-gateway/internal/core/service"
	"github.com/DanielPopoola/vpos-gateway/internal/worker"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

// storage is the selected persistence backend.
type storage struct {
	repo   ports.TransactionRepository
	health handler.HealthChecker
	close  func()
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting vpos gateway",
		"port", cfg.Server.Port,
		"mode", cfg.Vpos.Mode,
		"storage", cfg.Storage.Driver,
		"log_level", cfg.Logger.Level,
	)

	fees, err := cfg.Fee.Descriptor()
	if err != nil {
		logger.Error("invalid fee configuration", "error", err)
		os.Exit(1)
	}

	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	store, err := openStorage(mainCtx, cfg, logger)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer store.close()

	bus := events.NewBus(logger)
	bus.Subscribe(events.LogHandler(logger))
	if cfg.Events.NatsURL != "" {
		nc, err := events.ConnectNats(cfg.Events.NatsURL, "vpos-gateway", logger)
		if err != nil {
			logger.Error("failed to connect to NATS", "error", err)
			store.close()
			os.Exit(1)
		}
		defer nc.Drain()
		bus.Subscribe(events.NewNatsPublisher(nc, cfg.Events.Subject).Handler())
		logger.Info("publishing completion events to NATS", "subject", cfg.Events.Subject)
	}

	vposClient := vpos.NewClient(cfg.Vpos, logger)
	transactionService := service.NewTransactionService(
		store.repo,
		vposClient,
		bus,
		domain.Mode(cfg.Vpos.Mode),
		logger,
	)

	router := handler.NewRouter(
		handler.NewTransactionHandler(transactionService, fees, logger),
		handler.NewConfirmationHandler(transactionService, logger),
		store.health,
		cfg.Server.RequestTimeout,
		logger,
	)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if cfg.Worker.Enabled {
		reconciler := worker.NewReconciler(
			store.repo,
			transactionService,
			cfg.Worker.Interval,
			cfg.Worker.MinAge,
			cfg.Worker.BatchSize,
			logger,
		)
		g.Go(func() error {
			reconciler.Start(groupCtx)
			return nil
		})
	}

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("received termination signal", "signal", sig.String())
			mainCancel()
		case <-groupCtx.Done():
		}
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("gateway stopped with error", "error", err)
		store.close()
		os.Exit(1)
	}

	logger.Info("server exited")
}

func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverBolt:
		s, err := boltstore.Open(cfg.Storage.BoltPath)
		if err != nil {
			return nil, err
		}
		logger.Info("using embedded bolt store", "path", cfg.Storage.BoltPath)
		return &storage{
			repo:   s,
			health: s,
			close: func() {
				if err := s.Close(); err != nil {
					logger.Error("failed to close bolt store", "error", err)
				}
			},
		}, nil
	default:
		db, err := postgres.Connect(ctx, &cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		return &storage{
			repo:   postgres.NewTransactionRepository(db),
			health: db,
			close:  db.Close,
		}, nil
	}
}
