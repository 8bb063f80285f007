package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"school_notification_bot/internal/app"
	"school_notification_bot/internal/domain/feed"
	"school_notification_bot/internal/infra/config"
	idb "school_notification_bot/internal/infra/database"
	"school_notification_bot/internal/infra/firestore"
	"school_notification_bot/internal/infra/health"
	"school_notification_bot/internal/infra/logger"
	"school_notification_bot/internal/infra/runloop"
	"school_notification_bot/internal/infra/scheduler"
	"school_notification_bot/internal/infra/telegram"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func main() {
	fmt.Println("School Notification Bot starting...")

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")

	mainLogger.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"admin_id":    cfg.AdminTelegramID,
		"driver":      cfg.DatabaseDriver,
		"timezone":    cfg.Location.String(),
		"windows":     fmt.Sprint(cfg.LookaheadWindows),
	}).Info("Configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Database Connection
	db, err := idb.NewConnection(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, logger.Component("database"))
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()
	if err := idb.Migrate(ctx, db, cfg.DatabaseDriver); err != nil {
		mainLogger.WithError(err).Fatal("Could not migrate database")
	}
	mainLogger.Info("Database connection established successfully.")

	// Initialize Repositories
	subscriberRepo := idb.NewSubscriberRepository(db)
	lessonRepo := idb.NewLessonRepository(db)
	ledgerRepo := idb.NewLedgerRepository(db)

	// Initialize Telegram Bot
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := logger.Component("telebot").WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithFields(logrus.Fields{"sender_id": c.Sender().ID, "chat_id": c.Chat().ID})
			}
			entry.Error("Telegram handler error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not create Telegram bot")
	}
	sender := telegram.NewSender(bot, logger.Component("sender"))

	// Dispatch loop: every scan and every feed delivery runs here.
	loop := runloop.New(256, logger.Component("runloop"))
	loopCtx, stopLoop := context.WithCancel(ctx)
	go loop.Run(loopCtx)

	delivery := app.NewFanOut(subscriberRepo, sender, cfg.AdminTelegramID, logger.Component("fanout"))
	scanner := app.NewScanner(subscriberRepo, lessonRepo, ledgerRepo, delivery, cfg.LookaheadWindows, cfg.Location, logger.Component("scanner"))

	scanScheduler := scheduler.NewScanScheduler(scanner, loop, cfg.ScanSpec, cfg.Location, logger.Component("scheduler"))
	if err := scanScheduler.Start(); err != nil {
		mainLogger.WithError(err).Fatal("Could not start scan scheduler")
	}

	// Change feeds. A failed client leaves both listeners disabled.
	var (
		source feed.Source
		store  feed.DocumentStore
	)
	fsClient, err := firestore.NewClient(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsPath, logger.Component("firestore"))
	if err != nil {
		mainLogger.WithError(err).Error("Firestore unavailable, change feeds disabled")
	} else {
		defer fsClient.Close()
		source, store = fsClient, fsClient
	}

	reportToAdmin := func(ctx context.Context, rule app.Rule, report app.Report) {
		if !cfg.ReportFanOutToAdmin || rule.Name() != "articles" {
			return
		}
		if err := delivery.ReportTo(ctx, cfg.AdminTelegramID, "📊 Article delivered", report); err != nil {
			mainLogger.WithError(err).Warn("Failed to report article delivery")
		}
	}
	newListener := func(rule app.Rule) *app.Listener {
		return app.NewListener(rule, source, loop, delivery, reportToAdmin, logger.Feed(rule.Name(), rule.Collection()))
	}
	submissions := newListener(app.NewSubmissionRule(cfg.SubmissionsCollection))
	articles := newListener(app.NewArticleRule(cfg.ArticlesCollection, cfg.SiteBaseURL))
	listeners := []*app.Listener{submissions, articles}
	for _, l := range listeners {
		// Errors are logged by the listener; the rest of the process keeps running.
		_ = l.Start(ctx)
	}

	// Services and handlers
	adminService := app.NewAdminService(subscriberRepo, lessonRepo, cfg.AdminTelegramID)
	subscriptionService := app.NewSubscriptionService(subscriberRepo)
	announcements := app.NewAnnouncementService(adminService, delivery, loop, logger.Component("announcements"))
	reviewService := app.NewReviewService(store, cfg.SubmissionsCollection, adminService, submissions.Tracked(), logger.Component("review"))

	handlerLogger := logger.Component("telegram")
	telegram.RegisterBotCommands(ctx, bot, adminService, subscriptionService, handlerLogger)
	telegram.RegisterAdminHandlers(ctx, bot, adminService, announcements, handlerLogger)
	telegram.RegisterReviewHandlers(ctx, bot, reviewService, handlerLogger)
	mainLogger.Info("Command handlers registered.")

	var healthServer *health.Server
	if cfg.HTTPAddr != "" {
		healthServer = health.NewServer(cfg.HTTPAddr, scanner, scanScheduler, []health.ListenerStatus{submissions, articles}, logger.Component("health"))
		healthServer.Start()
	}

	// Start bot in a goroutine so it doesn't block graceful shutdown handling
	go bot.Start()

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		mainLogger.WithError(err).Warn("Failed to notify systemd")
	} else if ok {
		mainLogger.Debug("Notified systemd of readiness")
	}
	mainLogger.Info("Application setup complete. Bot, scanner and listeners are running.")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	mainLogger.WithField("signal", sig.String()).Info("Shutting down application...")
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	for _, l := range listeners {
		l.Stop()
	}
	scanScheduler.Stop()
	bot.Stop()
	if healthServer != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			mainLogger.WithError(err).Warn("Health endpoint shutdown failed")
		}
		cancelShutdown()
	}
	stopLoop()
	<-loop.Done()
	mainLogger.Info("Application shut down gracefully.")
}
