package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	httpapi "github.com/ledgerpilot/ledgerpilot/internal/api/http"
	"github.com/ledgerpilot/ledgerpilot/internal/application/agents"
	appAuth "github.com/ledgerpilot/ledgerpilot/internal/application/auth"
	appNotify "github.com/ledgerpilot/ledgerpilot/internal/application/notify"
	"github.com/ledgerpilot/ledgerpilot/internal/application/orchestrator"
	"github.com/ledgerpilot/ledgerpilot/internal/config"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/agent"
	"github.com/ledgerpilot/ledgerpilot/internal/domain/metrics"
	"github.com/ledgerpilot/ledgerpilot/internal/infrastructure/analyzer"
	"github.com/ledgerpilot/ledgerpilot/internal/infrastructure/memory"
	"github.com/ledgerpilot/ledgerpilot/internal/infrastructure/postgres"
	"github.com/ledgerpilot/ledgerpilot/internal/infrastructure/sse"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx := context.Background()

	var store orchestrator.Store
	var userStore *memory.Store
	var authSvc *appAuth.Service

	switch cfg.StoreDriver {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db error: %v", err)
		}
		defer pool.Close()
		if err := postgres.RunMigrations(ctx, pool, "migrations"); err != nil {
			log.Fatalf("migration error: %v", err)
		}
		store = orchestrator.Store{
			Documents: postgres.NewDocumentRepository(pool),
			Ledger:    postgres.NewLedgerRepository(pool),
			Staff:     postgres.NewStaffRepository(pool),
			Clients:   postgres.NewClientRepository(pool),
			Tasks:     postgres.NewTaskRepository(pool),
		}
		authSvc = appAuth.NewService(postgres.NewUserRepository(pool), postgres.NewSessionRepository(pool), cfg.SessionTTL, logger)
	default:
		userStore = memory.NewStore()
		if err := memory.Seed(userStore); err != nil {
			log.Fatalf("seed error: %v", err)
		}
		store = orchestrator.Store{
			Documents: userStore.Documents(),
			Ledger:    userStore.Ledger(),
			Staff:     userStore.Staff(),
			Clients:   userStore.Clients(),
			Tasks:     userStore.Tasks(),
		}
		authSvc = appAuth.NewService(userStore.Users(), userStore.Sessions(), cfg.SessionTTL, logger)
	}

	// infrastructure
	sseHub := sse.NewHub()
	go sseHub.Start(ctx)
	promRegistry := prometheus.NewRegistry()
	telemetry := orchestrator.NewTelemetry(promRegistry)

	// services
	notifySvc := appNotify.NewService(sseHub, logger)
	aggregator := metrics.NewAggregator(metrics.DefaultSavings())
	catalog := agent.DefaultCatalog()

	orch := orchestrator.New(catalog, aggregator, store, notifySvc, telemetry, orchestrator.Config{
		MaxAttempts:    cfg.MaxAttempts,
		RetryDelay:     cfg.RetryDelay,
		RetentionLimit: cfg.RetentionLimit,
	}, logger)

	orch.RegisterHandler(agent.TypeTax, agents.NewTaxHandler(logger))
	orch.RegisterHandler(agent.TypeReconciliation, agents.NewReconciliationHandler(logger))
	orch.RegisterHandler(agent.TypeTaskAssignment, agents.NewAssignmentHandler(logger))
	orch.RegisterHandler(agent.TypeNotification, agents.NewDeadlineHandler(logger))
	if cfg.AnalyzerURL != "" {
		orch.RegisterHandler(agent.TypeDocument, agents.NewPostingHandler(analyzer.NewClient(cfg.AnalyzerURL, logger), logger))
	} else {
		logger.Warn().Msg("ANALYZER_URL not set; document posting agent disabled")
		_ = catalog.SetEnabled(agent.TypeDocument, false)
	}

	// API server
	apiServer := httpapi.NewServer(orch, authSvc, notifySvc, sseHub, promRegistry, cfg.SessionCookieName)

	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.ServerAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = orch.WaitIdle(ctxShutdown)
	_ = httpServer.Shutdown(ctxShutdown)
	sseHub.Stop()
}
