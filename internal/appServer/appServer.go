package appServer

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ds124wfegd/courseportal/config"
	"github.com/ds124wfegd/courseportal/internal/auth"
	"github.com/ds124wfegd/courseportal/internal/service"
	"github.com/ds124wfegd/courseportal/internal/transport"
	"github.com/ds124wfegd/courseportal/internal/worker"
	"github.com/ds124wfegd/courseportal/pkg/mailer"
	"github.com/ds124wfegd/courseportal/pkg/queue"
	"github.com/ds124wfegd/courseportal/pkg/redis"
	"github.com/ds124wfegd/courseportal/pkg/scheduler"
	"github.com/ds124wfegd/courseportal/pkg/telegram"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	directNotifyTimeout = 30 * time.Second
	shutdownTimeout     = 15 * time.Second
)

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 3 * time.Second,
		ErrorLog:          log.New(logrus.StandardLogger().WriterLevel(logrus.ErrorLevel), "", 0),
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func setupLogging(cfg *config.LogConfig) {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logrus.WithField("level", cfg.Level).Warn("Unknown log level, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

// notifications holds whichever promotion delivery path is active.
type notifications struct {
	notifier service.Notifier
	dlq      queue.DLQHandler
	health   transport.HealthCheck
	start    func(ctx context.Context)
	stop     func()
}

func setupNotifications(ctx context.Context, cfg *config.Config) *notifications {
	var m queue.Mailer
	if cfg.Email.Enabled {
		smtpMailer, err := mailer.NewSMTPMailer(&cfg.Email)
		if err != nil {
			logrus.WithError(err).Error("Failed to initialize SMTP mailer, promotion emails disabled")
		} else {
			m = smtpMailer
			logrus.WithField("host", cfg.Email.Host).Info("SMTP mailer initialized")
		}
	} else {
		logrus.Warn("Email disabled, promotion emails will only be logged")
	}

	// Initialize Telegram bot
	var bot queue.TelegramBot
	if cfg.Telegram.Enabled && cfg.Telegram.BotToken != "" {
		bot = telegram.NewBot(cfg.Telegram.BotToken)
		logrus.Info("Telegram bot initialized")
	} else {
		logrus.Warn("Telegram bot token not provided, staff alerts disabled")
	}

	taskHandler := queue.NewTaskHandler(m, bot, cfg.Telegram.ChatID)

	if cfg.Redis.Enabled {
		client, err := redis.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			logrus.WithError(err).Error("Failed to initialize Redis queue. Continuing without queue...")
		} else {
			queueCfg := queue.DefaultRedisQueueConfig()
			queueCfg.Workers = cfg.Worker.QueueWorkers
			redisQueue := queue.NewRedisQueue(client, queueCfg, nil)

			return &notifications{
				notifier: service.NewQueueNotifier(redisQueue),
				dlq:      redisQueue.DLQ(),
				health:   redisQueue.HealthCheck,
				start: func(ctx context.Context) {
					if err := redisQueue.Subscribe(ctx, taskHandler.HandleTask); err != nil {
						logrus.WithError(err).Error("Queue subscriber error")
					}
				},
				stop: func() {
					_ = redisQueue.Close()
					_ = client.Close()
				},
			}
		}
	}

	direct := service.NewDirectNotifier(taskHandler, directNotifyTimeout)
	return &notifications{
		notifier: direct,
		start:    func(context.Context) {},
		stop:     direct.Wait,
	}
}

func NewServer(cfg *config.Config) {
	setupLogging(&cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage
	store, err := openStorage(ctx, &cfg.Database)
	if err != nil {
		logrus.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.close()

	notif := setupNotifications(ctx, cfg)

	// Initialize services
	enrollmentService := service.NewEnrollmentService(
		store.enrollment, store.users, store.courses, store.waitlist,
		notif.notifier, cfg.Enrollment.MaxRetries,
	)
	services := &service.Services{
		Enrollment: enrollmentService,
		Catalog:    service.NewCatalogService(store.courses),
		User: service.NewUserService(store.users, store.courses, store.waitlist, service.RegistrationPolicy{
			BlockedDomains: cfg.Users.BlockedEmailDomains,
			AdminEmails:    cfg.Users.AdminEmails,
		}),
		Content: service.NewContentService(store.content),
		School:  service.NewSchoolService(store.schools),
	}

	var workers sync.WaitGroup
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	notif.start(workerCtx)

	// Initialize and start scheduler
	sweepScheduler := scheduler.NewScheduler(enrollmentService, cfg.Worker.SweepInterval)
	workers.Add(1)
	go func() {
		defer workers.Done()
		sweepScheduler.Start(workerCtx)
	}()
	logrus.WithField("interval", cfg.Worker.SweepInterval).Info("Waitlist sweep scheduler started")

	// Initialize cleanup worker
	cleanupWorker := worker.NewWaitlistCleanupWorker(store.waitlist, cfg.Worker.CleanupInterval)
	workers.Add(1)
	go func() {
		defer workers.Done()
		cleanupWorker.Start(workerCtx)
	}()

	// Setup HTTP server
	if cfg.Server.Mode == "release" || cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	healthChecks := map[string]transport.HealthCheck{"database": store.ping}
	if notif.health != nil {
		healthChecks["redis"] = notif.health
	}
	routerCfg := transport.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		Session: transport.SessionConfig{
			CookieName: cfg.JWT.CookieName,
			Secure:     cfg.IsProduction(),
		},
		Tokens:       auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Expiration),
		HealthChecks: healthChecks,
	}
	handlers := transport.NewHandlers(services, routerCfg, transport.NewAdminHandler(enrollmentService, services.User, notif.dlq))

	srv := new(Server)
	go func() {
		err := srv.Run(cfg, transport.InitRoutes(routerCfg, services, handlers))
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("error occured while running http server: %s", err.Error())
		}
	}()

	logrus.WithFields(logrus.Fields{
		"address": cfg.GetServerAddress(),
		"driver":  cfg.Database.Driver,
		"version": cfg.Server.AppVersion,
	}).Info("App Started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logrus.Info("App Shutting Down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}

	stopWorkers()
	workers.Wait()
	notif.stop()
}
