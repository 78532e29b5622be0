package appServer

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ds124wfegd/busbooker/config"
	"github.com/ds124wfegd/busbooker/internal/database/memory"
	repository "github.com/ds124wfegd/busbooker/internal/database/postgres"
	"github.com/ds124wfegd/busbooker/internal/service"
	"github.com/ds124wfegd/busbooker/internal/transport"
	"github.com/ds124wfegd/busbooker/internal/worker"

	"github.com/ds124wfegd/busbooker/pkg/postgres"
	"github.com/ds124wfegd/busbooker/pkg/queue"
	"github.com/ds124wfegd/busbooker/pkg/redis"
	"github.com/ds124wfegd/busbooker/pkg/telegram"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       cfg.Server.Idle_timeout,
		ReadHeaderTimeout: 3 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
		ErrorLog:          log.New(logrus.StandardLogger().WriterLevel(logrus.ErrorLevel), "", 0),
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func NewServer(cfg *config.Config) {

	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(logrus.InfoLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	catalog, err := cfg.Catalog.BuildCatalog()
	if err != nil {
		logrus.Fatalf("Invalid slot catalog: %v", err)
	}

	loc, err := cfg.App.Location()
	if err != nil {
		logrus.Fatalf("Invalid time zone %q: %v", cfg.App.Timezone, err)
	}

	// Initialize storage
	bookingRepo, db, err := newBookingRepository(ctx, &cfg.Database)
	if err != nil {
		logrus.Fatalf("Failed to initialize storage: %v", err)
	}
	if db != nil {
		defer db.Close()
	}

	// Initialize task queue, optional
	var (
		redisQueue    *queue.RedisQueue
		taskPublisher service.TaskPublisher
	)
	if cfg.Redis.Host != "" {
		redisClient, err := redis.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			logrus.Errorf("Failed to initialize Redis queue: %v. Continuing without queue...", err)
		} else {
			redisQueue = queue.NewRedisQueue(redisClient, queue.DefaultRedisQueueConfig(cfg.Redis.QueuePrefix))
			taskPublisher = queue.NewServiceAdapter(redisQueue)
		}
	} else {
		logrus.Warn("Redis host not configured, booking notifications disabled")
	}

	// Initialize services
	calendar := service.NewCalendar(loc, nil)
	engine := service.NewCapacityEngine(cfg.Booking.Capacity, catalog)
	bookingService := service.NewBookingService(bookingRepo, engine, calendar, taskPublisher)
	reportService := service.NewReportService(bookingRepo, calendar, catalog)

	var background sync.WaitGroup

	if redisQueue != nil {
		var bot queue.TelegramBot
		if cfg.Telegram.BotToken != "" {
			bot = telegram.NewBot(cfg.Telegram.BotToken)
			logrus.Info("Telegram bot initialized")
		} else {
			logrus.Warn("Telegram bot token not provided, notifications are only logged")
		}

		taskHandler := queue.NewTaskHandler(bookingService, bot, cfg.Telegram.ChatID)
		if err := redisQueue.Subscribe(ctx, taskHandler.HandleTask); err != nil {
			logrus.Errorf("Queue subscriber error: %v", err)
		}
	}

	if cfg.Worker.Enabled {
		cleanupWorker := worker.NewBookingCleanupWorker(bookingService, cfg.Worker.CleanupSchedule)
		background.Add(1)
		go func() {
			defer background.Done()
			if err := cleanupWorker.Start(ctx); err != nil {
				logrus.Errorf("Cleanup worker error: %v", err)
			}
		}()
	}

	// Initialize handlers
	bookingHandler := transport.NewBookingHandler(bookingService, reportService)
	homeHandler := transport.NewHomeHandler(reportService)

	if cfg.Server.Mode == "release" || cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := new(Server)
	go func() {
		if err := srv.Run(cfg, transport.InitRoutes(cfg, bookingHandler, homeHandler)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("error occured while running http server: %s", err.Error())
		}
	}()

	logrus.WithFields(logrus.Fields{
		"port":     cfg.Server.Port,
		"driver":   cfg.Database.Driver,
		"capacity": engine.Capacity(),
	}).Info("App Started")

	<-ctx.Done()

	logrus.Info("App Shutting Down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}

	background.Wait()

	if redisQueue != nil {
		if err := redisQueue.Close(); err != nil {
			logrus.Errorf("error occured on queue closing: %s", err.Error())
		}
	}
}

// newBookingRepository picks the store named by database.driver. The returned
// *sql.DB is nil for the memory store.
func newBookingRepository(ctx context.Context, cfg *config.DatabaseConfig) (repository.BookingRepository, *sql.DB, error) {
	switch cfg.Driver {
	case "memory":
		logrus.Warn("Using in-memory booking store, data is lost on restart")
		return memory.NewBookingRepository(), nil, nil
	case "", "postgres":
		db, err := postgres.NewPostgresDB(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.RunMigrations(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return repository.NewBookingRepository(db), db, nil
	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
