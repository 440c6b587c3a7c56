package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"github.com/seseseee/discourse-insight/internal/activation"
	"github.com/seseseee/discourse-insight/internal/classifier"
	"github.com/seseseee/discourse-insight/internal/config"
	"github.com/seseseee/discourse-insight/internal/feedback"
	"github.com/seseseee/discourse-insight/internal/handler"
	"github.com/seseseee/discourse-insight/internal/lexicon"
	"github.com/seseseee/discourse-insight/internal/llm"
	"github.com/seseseee/discourse-insight/internal/repository"
	"github.com/seseseee/discourse-insight/internal/server"
	"github.com/seseseee/discourse-insight/internal/service"
	"github.com/seseseee/discourse-insight/internal/telegram_bot"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err) // Should not happen in development
	}
	defer func() {
		_ = logger.Sync()
	}()

	log := logrus.New()

	// Load configuration
	cfgPath := "configs/config.yml"
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		cfgPath = env
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Database connection
	db, err := repository.NewPostgresDB(cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	repository.MigrateDB(db, logger)

	// Initialize repositories
	messageRepo := repository.NewMessageRepository(db, logger)
	recordRepo := repository.NewLabelRecordRepository(db, logger)
	triggerRepo := repository.NewTriggerRepository(db, logger)
	feedbackRepo := repository.NewFeedbackRepository(db, logger)
	lexiconRepo := repository.NewLexiconRepository(db, logger)
	surveyRepo := repository.NewSurveyRepository(db, logger)
	authRepo := repository.NewAuthRepository(db, log)
	txRunner := repository.NewTxRunner(db)

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Lexicon: restore the last persisted build, then rebuild on schedule.
	snapshot := lexicon.NewSnapshot()
	if terms, err := lexiconRepo.LoadLexicon(ctx); err != nil {
		logger.Warn("Failed to load persisted lexicon, starting empty", zap.Error(err))
	} else if len(terms) > 0 {
		snapshot.Swap(&lexicon.Lexicon{Terms: terms, BuiltAt: time.Now()})
	}

	builder := lexicon.NewBuilder(lexiconRepo, lexiconRepo, snapshot, lexicon.BuilderConfig{
		Window:    time.Duration(cfg.Lexicon.WindowDays) * 24 * time.Hour,
		MinCount:  cfg.Lexicon.MinCount,
		MinPurity: cfg.Lexicon.MinPurity,
		Interval:  time.Duration(cfg.Lexicon.RebuildIntervalMinutes) * time.Minute,
	}, logger)
	go builder.Run(ctx)

	// External model providers (optional).
	var modelClient classifier.ModelClient
	if cfg.LLM.Enabled {
		client, err := llm.NewMultiProviderClient(llm.MultiProviderConfig{
			Providers:   cfg.LLM.Providers,
			MaxFailures: cfg.LLM.MaxFailures,
		}, logger)
		if err != nil {
			logger.Warn("Failed to initialize LLM providers, continuing without model pass", zap.Error(err))
		} else {
			defer client.Close()
			modelClient = client
		}
	}

	// Classification cascade
	scorer := classifier.NewScorer(classifier.DefaultScorerConfig(), snapshot)
	matcher := classifier.NewTriggerMatcher(triggerRepo, logger)
	cascade := classifier.NewCascade(scorer, matcher, modelClient, feedbackRepo, classifier.CascadeConfig{
		ModelThreshold: cfg.Classifier.ModelThreshold,
		ModelTimeout:   time.Duration(cfg.Classifier.ModelTimeoutSeconds) * time.Second,
		MaxModelCalls:  cfg.Classifier.MaxModelCalls,
	}, logger)

	// Feedback ledger
	ledgerCfg := feedback.DefaultConfig()
	if cfg.Feedback.MaxLabelsPerGrant > 0 {
		ledgerCfg.MaxLabelsPerGrant = cfg.Feedback.MaxLabelsPerGrant
	}
	if cfg.Feedback.WeightDelta > 0 {
		ledgerCfg.WeightDelta = cfg.Feedback.WeightDelta
	}
	if cfg.Feedback.MaxWeight > 0 {
		ledgerCfg.MaxWeight = cfg.Feedback.MaxWeight
	}
	ledgerCfg.TrustedUsers = cfg.Feedback.TrustedUsers
	ledger := feedback.NewLedger(ledgerCfg, txRunner, feedbackRepo, triggerRepo, messageRepo, logger)

	// Activation metric
	activationSvc := activation.NewService(messageRepo, activation.Config{
		SaturationPerMinute: cfg.Activation.SaturationPerMinute,
		BucketSize:          time.Duration(cfg.Activation.BucketMinutes) * time.Minute,
	}, logger)

	// Auth
	authService := service.NewAuthService(authRepo, service.AuthConfig{
		JWTSecret:   []byte(cfg.Auth.JWTSecret),
		TokenTTL:    time.Duration(cfg.Auth.TokenTTLHrs) * time.Hour,
		AllowSignup: cfg.Auth.AllowSignup,
	}, logger)

	// Telegram bot for moderator feedback
	bot, err := telegram_bot.NewBot(cfg, ledger, activationSvc, logger)
	if err != nil {
		logger.Warn("Failed to initialize Telegram bot, continuing without it", zap.Error(err))
		bot = nil
	}
	if bot != nil {
		go func() {
			if err := bot.Start(ctx); err != nil {
				logger.Error("Telegram bot failed", zap.Error(err))
			}
		}()
	}

	// Initialize and run the server
	deps := server.Deps{
		Auth:        handler.NewAuthHandler(authService, log),
		Ingest:      handler.NewIngestHandler(messageRepo, recordRepo, cascade, logger),
		Classify:    handler.NewClassifyHandler(cascade, recordRepo, logger),
		Feedback:    handler.NewFeedbackHandler(ledger, logger),
		Activation:  handler.NewActivationHandler(activationSvc, logger),
		Survey:      handler.NewSurveyHandler(surveyRepo, logger),
		Lexicon:     handler.NewLexiconHandler(snapshot, builder, logger),
		Analytics:   handler.NewAnalyticsHandler(messageRepo, recordRepo, triggerRepo, logger),
		AuthService: authService,
	}

	srv := server.NewServer(deps, log, logger)
	srv.Run(":" + cfg.Server.Port)

	<-ctx.Done()
	logger.Info("Application stopped.")
}
