package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"seatline/internal/api"
	"seatline/internal/config"
	"seatline/internal/logger"
	"seatline/internal/validation"
)

func main() {
	// Проверяем, нужно ли запустить валидацию
	if len(os.Args) > 1 && os.Args[1] == "validate" {
		runValidation(os.Args[2:])
		return
	}

	// Загружаем конфигурацию
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	// Создаем и настраиваем сервер
	server, err := api.NewServer(cfg)
	if err != nil {
		logger.Fatal("Failed to create server", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout,
	}

	var pprofSrv *http.Server
	if cfg.PprofEnabled {
		pprofSrv = &http.Server{Addr: "localhost:" + cfg.PprofPort, Handler: http.DefaultServeMux}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if pprofSrv != nil {
		g.Go(func() error {
			slog.Info("Starting pprof server", "addr", pprofSrv.Addr)
			if err := pprofSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	if reaper := server.Reaper(); reaper != nil {
		reaper.Start(gctx)
	}

	// Ждем сигнал или ошибку для graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if pprofSrv != nil {
			_ = pprofSrv.Shutdown(shutdownCtx)
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	// Закрываем соединения
	server.Cleanup()
	slog.Info("Server stopped")
}

func runValidation(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	baseURL := fs.String("url", "http://localhost:8081", "Base URL of a running API")
	tripID := fs.Int64("trip", 1, "Trip used for the smoke checkout")
	_ = fs.Parse(args)

	if err := validation.RunValidation(*baseURL, *tripID); err != nil {
		logger.Fatal("Validation failed", "error", err)
	}
	slog.Info("Validation passed")
}
