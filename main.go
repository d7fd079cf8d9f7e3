package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/deepscout/orchestrator/internal/activities"
	"github.com/deepscout/orchestrator/internal/config"
	"github.com/deepscout/orchestrator/internal/llm"
	"github.com/deepscout/orchestrator/internal/reportstore"
	"github.com/deepscout/orchestrator/internal/research"
	"github.com/deepscout/orchestrator/internal/tools"
	"github.com/deepscout/orchestrator/internal/workflows"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Metrics endpoint comes up first so scrapes succeed while the
	// worker is still connecting.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.MetricsPort),
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		logger.Info("Metrics server listening", zap.Int("port", cfg.MetricsPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	// Report store is optional; the pipeline runs without persistence.
	var store *reportstore.Store
	if cfg.Postgres.Host != "" {
		store, err = reportstore.New(reportstore.Config{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			Database: cfg.Postgres.Database,
			SSLMode:  cfg.Postgres.SSLMode,
		}, logger)
		if err != nil {
			logger.Warn("Report store unavailable, continuing without persistence", zap.Error(err))
			store = nil
		} else {
			defer store.Close()
		}
	}

	gen := llm.NewHTTPGenerator(cfg.Services.LLMURL, cfg.Services.Timeout, logger)

	var invoker tools.Invoker = tools.NewHTTPInvoker(tools.Config{
		RetrievalURL: cfg.Services.RetrievalURL,
		WebSearchURL: cfg.Services.WebSearchURL,
		TraceURL:     cfg.Services.TraceURL,
		Timeout:      cfg.Services.Timeout,
	}, logger)
	invoker = tools.NewRateLimitedInvoker(invoker, cfg.Services.RetrievalRPS, cfg.Services.WebSearchRPS)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		invoker = tools.NewCachedInvoker(invoker, rdb, cfg.Redis.CacheTTL, logger)
	}

	cred := research.LoadCredibilityConfig(cfg.Services.CredibilityRules)

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		logger.Fatal("Failed to connect to Temporal", zap.Error(err))
	}
	defer temporalClient.Close()

	w := worker.New(temporalClient, cfg.Temporal.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize: cfg.Research.MaxConcurrentResearchUnits * 2,
	})

	w.RegisterWorkflow(workflows.ResearchWorkflow)

	acts := activities.NewActivities(gen, invoker, store, cred)
	registerActivities(w, acts)

	logger.Info("Research worker starting",
		zap.String("task_queue", cfg.Temporal.TaskQueue),
		zap.Int("max_concurrent_units", cfg.Research.MaxConcurrentResearchUnits),
	)

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	interruptCh := make(chan interface{})
	go func() {
		s := <-stopCh
		logger.Info("Shutting down", zap.String("signal", s.String()))
		close(interruptCh)
	}()

	if err := w.Run(interruptCh); err != nil {
		logger.Fatal("Worker stopped with error", zap.Error(err))
	}
}

// registerActivities binds each stage under the name the workflow
// dispatches on.
func registerActivities(w worker.Worker, acts *activities.Activities) {
	w.RegisterActivityWithOptions(acts.ClarifyQuery,
		activity.RegisterOptions{Name: activities.ClarifyQueryActivity})
	w.RegisterActivityWithOptions(acts.PlanResearch,
		activity.RegisterOptions{Name: activities.PlanResearchActivity})
	w.RegisterActivityWithOptions(acts.DecomposeRequest,
		activity.RegisterOptions{Name: activities.DecomposeRequestActivity})
	w.RegisterActivityWithOptions(acts.ExecuteResearchTask,
		activity.RegisterOptions{Name: activities.ExecuteResearchTaskActivity})
	w.RegisterActivityWithOptions(acts.AssessResearch,
		activity.RegisterOptions{Name: activities.AssessResearchActivity})
	w.RegisterActivityWithOptions(acts.SynthesizeReport,
		activity.RegisterOptions{Name: activities.SynthesizeReportActivity})
	w.RegisterActivityWithOptions(acts.PersistFinalReport,
		activity.RegisterOptions{Name: activities.PersistFinalReportActivity})
}
