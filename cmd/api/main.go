package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/bookline/internal/api/router"
	"github.com/wolfman30/bookline/internal/booking"
	appconfig "github.com/wolfman30/bookline/internal/config"
	"github.com/wolfman30/bookline/internal/conversation"
	"github.com/wolfman30/bookline/internal/http/handlers"
	"github.com/wolfman30/bookline/internal/inbox"
	"github.com/wolfman30/bookline/internal/messaging"
	"github.com/wolfman30/bookline/internal/notify"
	observemetrics "github.com/wolfman30/bookline/internal/observability/metrics"
	"github.com/wolfman30/bookline/internal/ratelimit"
	"github.com/wolfman30/bookline/internal/scheduling"
	"github.com/wolfman30/bookline/internal/settings"
	"github.com/wolfman30/bookline/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting bookline API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.PingContext(startupCtx); err != nil {
		logger.Error("database unreachable", "error", err)
		cancelStartup()
		os.Exit(1)
	}
	if err := rdb.Ping(startupCtx).Err(); err != nil {
		logger.Error("redis unreachable", "error", err)
		cancelStartup()
		os.Exit(1)
	}
	cancelStartup()

	llm, err := buildLLMClient(cfg)
	if err != nil {
		logger.Error("failed to initialize LLM client", "error", err, "provider", cfg.LLMProvider)
		os.Exit(1)
	}
	logger.Info("LLM client ready", "provider", cfg.LLMProvider)

	settingsStore := settings.NewStore(rdb)
	bookingRepo := booking.NewRepository(db)
	convStore := conversation.NewStore(db)
	validator := scheduling.NewValidator(bookingRepo)
	extractor := conversation.NewIntentExtractor(llm, logger)

	var smsSender messaging.Sender
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" && cfg.TwilioPhoneNumber != "" {
		smsSender = messaging.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber, logger)
	} else {
		logger.Warn("twilio credentials missing, outbound SMS disabled")
	}

	var emailSender notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		emailSender = sg
	} else if cfg.EnableDevEndpoints {
		emailSender = notify.NewStubEmailSender(logger)
	}
	notifier := notify.NewService(smsSender, emailSender, cfg.OwnerPhone, cfg.OwnerEmail, cfg.BusinessName, settingsStore, logger)

	inboxStore := inbox.NewStore(db)
	hub := inbox.NewHub()
	recorder := inbox.NewRecorder(inboxStore, hub, logger)

	webhookMetrics := observemetrics.NewWebhookMetrics(nil)

	engine := conversation.NewEngine(conversation.EngineConfig{
		BusinessName:  cfg.BusinessName,
		BusinessPhone: cfg.BusinessPhone,
		OwnerPhone:    cfg.OwnerPhone,
		PublicBaseURL: cfg.PublicBaseURL,
	}, convStore, bookingRepo, validator, extractor, settingsStore, settingsStore, notifier, recorder, webhookMetrics, logger)

	limiter := ratelimit.NewLimiter(rdb, ratelimit.Config{
		PerMinute:      cfg.SMSPerMinute,
		BlockThreshold: cfg.SMSBlockThreshold,
		BlockDuration:  cfg.SMSBlockDuration,
		DailyCap:       cfg.SMSDailyCap,
	}, logger)

	sweeper := conversation.NewSweeper(convStore, cfg.SweepInterval, logger)
	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	defer cancelSweep()
	go sweeper.Run(sweepCtx)

	routerCfg := &router.Config{
		Logger: logger,
		Webhook: handlers.NewSMSWebhookHandler(handlers.SMSWebhookConfig{
			Engine:            engine,
			Settings:          settingsStore,
			Limiter:           limiter,
			Metrics:           webhookMetrics,
			AuthToken:         cfg.TwilioAuthToken,
			PublicBaseURL:     cfg.PublicBaseURL,
			ValidateSignature: cfg.TwilioWebhookCheck,
			Logger:            logger,
		}),
		Calendar: handlers.NewCalendarHandler(bookingRepo, cfg.BusinessName, logger),
		Admin: handlers.NewAdminHandler(handlers.AdminConfig{
			Bookings:      bookingRepo,
			Settings:      settingsStore,
			Blocklist:     limiter,
			BusinessName:  cfg.BusinessName,
			BusinessPhone: cfg.BusinessPhone,
			OwnerPhone:    cfg.OwnerPhone,
			SMSConfigured: smsSender != nil,
			Logger:        logger,
		}),
		Inbox: handlers.NewInboxHandler(handlers.InboxConfig{
			Store:    inboxStore,
			Hub:      hub,
			Engine:   engine,
			Sender:   smsSender,
			Recorder: recorder,
			Logger:   logger,
		}),
		MetricsHandler:    promhttp.Handler(),
		AdminAuthSecret:   cfg.AdminJWTSecret,
		RequestsPerSecond: 20,
		Burst:             40,
	}
	if cfg.EnableDevEndpoints {
		logger.Warn("dev endpoints enabled")
		routerCfg.Dev = handlers.NewDevHandler(engine, settingsStore, logger)
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // SSE streams flush within the keepalive window
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancelSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func buildLLMClient(cfg *appconfig.Config) (conversation.LLMClient, error) {
	switch cfg.LLMProvider {
	case "groq":
		return conversation.NewGroqLLMClient(cfg.GroqAPIKey, cfg.GroqModel)
	case "gemini":
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	default:
		return conversation.NewOllamaLLMClient(cfg.OllamaURL, cfg.OllamaModel), nil
	}
}
