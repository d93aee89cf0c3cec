package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"seatline/internal/cache"
	"seatline/internal/config"
	"seatline/internal/database"
	"seatline/internal/handlers"
	"seatline/internal/jobs"
	"seatline/internal/middleware"
	"seatline/internal/notify"
	"seatline/internal/repository"
	"seatline/internal/repository/memory"
	"seatline/internal/repository/postgres"
	"seatline/internal/seed"
	"seatline/internal/service"
)

// Server представляет HTTP сервер API
type Server struct {
	router   *gin.Engine
	config   *config.Config
	db       *database.DB
	broker   *notify.Backend
	valkey   *cache.ValkeyClient
	notifier *notify.Async
	services *service.Services
	reaper   *jobs.Reaper
}

// NewServer создает новый экземпляр сервера и подключает все хранилища
func NewServer(cfg *config.Config) (*Server, error) {
	// Устанавливаем режим Gin
	gin.SetMode(cfg.GinMode)

	s := &Server{config: cfg}

	repos, err := s.openStore()
	if err != nil {
		s.Cleanup()
		return nil, err
	}

	committer, err := service.NewCommitter(cfg.Checkout.CommitStrategy, repos.Store)
	if err != nil {
		s.Cleanup()
		return nil, err
	}

	s.broker, err = notify.Open(cfg)
	if err != nil {
		s.Cleanup()
		return nil, err
	}
	s.notifier = notify.NewAsync(s.broker.Notifier, cfg.Checkout.NotifyTimeout)

	s.services = service.NewServices(repos, committer, s.notifier, cfg.Checkout.HoldTTL)

	if cfg.Auth.SessionsEnabled {
		s.valkey, err = cache.NewValkeyClient(cfg.Valkey)
		if err != nil {
			// sessions are optional, checkout works anonymously without them
			slog.Warn("Valkey is unavailable, session tokens are ignored", "error", err)
		}
	}

	if cfg.Reaper.InProcess {
		s.reaper = jobs.NewReaper(s.services.Bookings, jobs.ReaperConfig{
			TTL:       cfg.Reaper.TTL,
			Interval:  cfg.Reaper.Interval,
			BatchSize: cfg.Reaper.BatchSize,
		})
	}

	s.router = gin.New()
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.CORS())

	s.setupRoutes()

	slog.Info("Server configured",
		"store", cfg.Checkout.StoreBackend,
		"strategy", committer.Name(),
		"notify", cfg.Checkout.NotifyBackend,
		"reaper_in_process", s.reaper != nil)

	return s, nil
}

func (s *Server) openStore() (*repository.Repositories, error) {
	cfg := s.config
	switch cfg.Checkout.StoreBackend {
	case config.StorePostgres:
		db, err := database.Connect(cfg.Database)
		if err != nil {
			return nil, err
		}
		s.db = db

		if err := db.RunMigrations(); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return repository.NewRepositories(postgres.New(db), postgres.NewCatalog(db)), nil

	case config.StoreMemory:
		if !cfg.Reaper.InProcess {
			slog.Warn("Memory store is process local, running the reaper in process")
			cfg.Reaper.InProcess = true
		}
		var opts []memory.Option
		if cfg.Checkout.CommitStrategy == service.StrategyCAS {
			opts = append(opts, memory.WithoutTransactions())
		}
		catalog := memory.NewCatalog(seed.DemoTrips(time.Now(), 7)...)
		return repository.NewRepositories(memory.New(opts...), catalog), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Checkout.StoreBackend)
}

// setupRoutes настраивает все API роуты
func (s *Server) setupRoutes() {
	h := handlers.NewHandlers(s.services)

	var sessions middleware.SessionLookup
	if s.valkey != nil {
		sessions = s.valkey
	}

	api := s.router.Group("/api")
	{
		api.POST("/checkout", middleware.OptionalIdentity(s.config.Auth.JWTSecret, sessions), h.Checkout)

		trips := api.Group("/trips")
		{
			trips.GET("/:id/seats", h.SeatMap)
		}

		bookings := api.Group("/bookings")
		{
			bookings.GET("/:id", h.GetBooking)
			bookings.PATCH("/:id/cancel", h.CancelBooking)
		}

		payments := api.Group("/payments")
		{
			payments.POST("/notifications", h.OnPaymentUpdates)
		}
	}

	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// healthCheck обрабатывает health check запросы
func (s *Server) healthCheck(c *gin.Context) {
	response := gin.H{
		"status":   "ok",
		"service":  "seatline-api",
		"version":  "1.0.0",
		"store":    s.config.Checkout.StoreBackend,
		"strategy": s.services.Checkout.Strategy(),
	}

	if s.db != nil {
		s.db.ReportPool()
		check := s.db.HealthCheck(c.Request.Context())
		response["database"] = check
		if check.Status != "healthy" {
			response["status"] = "degraded"
			c.JSON(http.StatusServiceUnavailable, response)
			return
		}
	}

	if s.valkey != nil {
		if err := s.valkey.Ping(c.Request.Context()); err != nil {
			// sessions are optional, an outage only degrades identity lookup
			response["valkey"] = "unavailable"
		} else {
			response["valkey"] = "ok"
		}
	}

	c.JSON(http.StatusOK, response)
}

// Router возвращает роутер, в том числе для тестов
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Reaper возвращает фоновую задачу, если она запускается в этом процессе
func (s *Server) Reaper() *jobs.Reaper {
	return s.reaper
}

// Services возвращает сервисы для тестов и утилит
func (s *Server) Services() *service.Services {
	return s.services
}

// Cleanup дожидается отправки уведомлений и закрывает соединения
func (s *Server) Cleanup() {
	if s.reaper != nil {
		s.reaper.Stop()
	}

	if s.notifier != nil {
		done := make(chan struct{})
		go func() {
			s.notifier.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			slog.Warn("Timed out waiting for notifications")
		}
	}

	if s.broker != nil {
		s.broker.Close()
	}

	if s.valkey != nil {
		if err := s.valkey.Close(); err != nil {
			slog.Error("Error closing Valkey connection", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
		}
	}
}
