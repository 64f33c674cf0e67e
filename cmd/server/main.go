/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Warp Points Engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Read environment configuration
  2. Initialize zap logger
  3. Initialize SQLite store (counters, pending, windows, audit, rules)
  4. Build the strategy pipeline from event rules
  5. Start the janitor and HTTP server with graceful shutdown

CONFIGURATION (environment, PE_ prefix):
  PE_PORT          HTTP server port          (default: 8080)
  PE_DB_PATH       SQLite database path      (default: points.db)
                   Use ":memory:" for an in-memory database
  PE_LOG_LEVEL     zap level: debug|info|warn|error (default: info)
  PE_PENDING_TTL   Cross-verify confirmation window (default: 24h)
  PE_CORS_ORIGINS  Comma-separated allowed origins

COMMAND-LINE FLAGS (override the environment):
  -port    HTTP server port
  -db      SQLite database path

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the janitor, close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  PE_DB_PATH=./data/points.db ./server

  # Run with in-memory database
  PE_DB_PATH=":memory:" ./server

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/warp/points-engine/anticheat"
	"github.com/warp/points-engine/api"
	"github.com/warp/points-engine/factory"
	"github.com/warp/points-engine/promotion"
	"github.com/warp/points-engine/store/sqlite"
)

// Config is the server environment configuration.
type Config struct {
	Port        int           `default:"8080"`
	DBPath      string        `envconfig:"DB_PATH" default:"points.db"`
	LogLevel    string        `envconfig:"LOG_LEVEL" default:"info"`
	PendingTTL  time.Duration `envconfig:"PENDING_TTL" default:"24h"`
	CORSOrigins []string      `envconfig:"CORS_ORIGINS"`
}

func main() {
	var cfg Config
	if err := envconfig.Process("pe", &cfg); err != nil {
		log.Fatalf("Failed to read configuration: %v", err)
	}

	// Flags override the environment, matching local-dev habits.
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()
	cfg.Port = *port
	cfg.DBPath = *dbPath

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	// Event rules: defaults plus any persisted overrides
	rules := anticheat.DefaultRules()
	ruleFactory := factory.NewRuleFactory()
	persisted, err := store.ListEventRules(context.Background())
	if err != nil {
		logger.Warn("failed to load persisted event rules", zap.Error(err))
	} else {
		loaded, invalid := ruleFactory.LoadAll(persisted)
		for _, rule := range loaded {
			rules.Upsert(rule)
		}
		for _, eventType := range invalid {
			logger.Warn("skipping invalid persisted rule", zap.String("event_type", eventType))
		}
	}

	// Strategy pipeline
	advisor := promotion.NewOrchestrator(promotion.DefaultTrack(), promotion.NewMapSource())
	pipeline := anticheat.NewPipeline(rules, store, logger,
		&anticheat.DailyCapStrategy{Rules: rules, Counters: store},
		&anticheat.QualityWeightStrategy{Rules: rules},
		&anticheat.TimeDecayStrategy{Counters: store},
		&anticheat.CrossVerifyStrategy{Rules: rules, Pending: store, Audit: store},
		&anticheat.GrowthTrackStrategy{Advisor: advisor},
		&anticheat.AnomalyDetectStrategy{Windows: store, Audit: store, Log: logger},
	)

	// Janitor
	janitor := api.NewJanitor(store, store, cfg.PendingTTL, logger)
	if err := janitor.Start(); err != nil {
		logger.Fatal("failed to start janitor", zap.Error(err))
	}
	defer janitor.Stop()

	// HTTP handler and router
	handler := api.NewHandler(pipeline, logger)
	handler.Audit = store
	handler.RuleSaver = store
	handler.Janitor = janitor
	router := api.NewRouter(handler, cfg.CORSOrigins...)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Port),
			zap.String("db", cfg.DBPath))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
