package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"go-firstresponder/config"
	"go-firstresponder/cronjobs"
	"go-firstresponder/db"
	"go-firstresponder/executor"
	"go-firstresponder/feeds"
	"go-firstresponder/llm"
	"go-firstresponder/memory"
	"go-firstresponder/metrics"
	"go-firstresponder/orchestrator"
	"go-firstresponder/planner"
	"go-firstresponder/responder"
	"go-firstresponder/routes"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to a config file (yaml, json or toml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if !cfg.HasLLMKey() {
		log.Fatalf("No API key configured for llm provider %q", cfg.LLM.Provider)
	}

	logger := cfg.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.New(reg)

	store, err := openReportStore(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to open report store: %v", err)
	}
	defer store.Close()

	mem, err := memory.Open(memory.Options{
		Dir:         cfg.Memory.Dir,
		TTL:         cfg.Memory.TTL,
		HistorySize: cfg.Memory.HistorySize,
	}, store, collector, logger.With(slog.String("component", "memory")))
	if err != nil {
		log.Fatalf("Failed to open memory store: %v", err)
	}
	defer mem.Close()

	feedService, err := newFeedService(cfg.Feeds, collector, logger.With(slog.String("component", "feeds")))
	if err != nil {
		log.Fatalf("Failed to set up disaster feeds: %v", err)
	}

	gen, err := newGenerator(ctx, cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to create text generator: %v", err)
	}

	var detector responder.LanguageDetector
	if cfg.Language.Credentials != "" {
		d, err := responder.NewCloudLanguageDetector(ctx, cfg.Language.Credentials)
		if err != nil {
			log.Fatalf("Failed to create Natural Language client: %v", err)
		}
		defer d.Close()
		detector = d
	}

	orch, err := orchestrator.New(orchestrator.Deps{
		Store:      store,
		Classifier: responder.NewClassifier(gen, logger.With(slog.String("component", "classifier"))),
		Planner:    planner.New(gen, collector, logger.With(slog.String("component", "planner"))),
		Executor: executor.New(
			executor.WithRecorder(collector),
			executor.WithLogger(logger.With(slog.String("component", "executor"))),
		),
		Memory:   mem,
		Feeds:    feedService,
		Language: detector,
		Recorder: collector,
		Logger:   logger.With(slog.String("component", "orchestrator")),
	}, orchestrator.Config{
		Budget:            cfg.Pipeline.Budget,
		FallbackTimeout:   cfg.Pipeline.FallbackTimeout,
		AwarenessRadiusKM: cfg.Pipeline.AwarenessRadiusKM,
	})
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	scheduler, err := cronjobs.InitCronJobs(cfg.Feeds.SweepSchedule, feedService, mem, logger.With(slog.String("component", "cron")))
	if err != nil {
		log.Fatalf("Failed to start cron jobs: %v", err)
	}
	defer scheduler.Stop()

	gin.SetMode(cfg.Server.GinMode)
	router := routes.SetupRouter(routes.Deps{
		Processor: orch,
		Status:    orch,
		Feedback:  mem,
		History:   mem,
		FeedCache: feedService,
		Store:     store,
		Gatherer:  reg,
		ClientURL: cfg.Server.ClientURL,
		Logger:    logger.With(slog.String("component", "http")),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.String("error", err.Error()))
	}
}

func openReportStore(ctx context.Context, cfg config.DatabaseConfig) (db.ReportStore, error) {
	if cfg.Type == "firestore" {
		client, err := db.InitFirestore(ctx, cfg.FirebaseCredentials)
		if err != nil {
			return nil, err
		}
		return db.NewFirestoreStore(client), nil
	}

	gdb, err := db.Connect(db.SQLConfig{
		Type:        cfg.Type,
		SQLitePath:  cfg.SQLitePath,
		PostgresDSN: cfg.PostgresDSN,
		LogLevel:    db.ParseLogLevel(cfg.LogLevel),
	})
	if err != nil {
		return nil, err
	}
	return db.NewSQLStore(gdb)
}

func newFeedService(cfg config.FeedsConfig, collector *metrics.Collector, logger *slog.Logger) (*feeds.Service, error) {
	client := &http.Client{Timeout: cfg.HTTPTimeout}
	burst := max(1, int(cfg.RequestsPerSecond))

	seismic := feeds.NewUSGSSource(client, rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst), collector, logger)
	hazards := feeds.NewGDACSSource(client, rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst), collector, logger)

	var geocoder feeds.Geocoder
	if cfg.MapsAPIKey != "" {
		g, err := feeds.NewMapsGeocoder(cfg.MapsAPIKey)
		if err != nil {
			return nil, err
		}
		geocoder = g
	}

	cache := feeds.NewCache(feeds.WithRecorder(collector))
	return feeds.NewService(cache, seismic, hazards, geocoder, feeds.ServiceConfig{
		SeismicTTL:     cfg.SeismicTTL,
		HazardTTL:      cfg.HazardTTL,
		PlaceTTL:       cfg.PlaceTTL,
		QuakeRadiusKM:  cfg.QuakeRadiusKM,
		HazardRadiusKM: cfg.HazardRadiusKM,
	}, logger), nil
}

func newGenerator(ctx context.Context, cfg config.LLMConfig) (llm.Generator, error) {
	opts := llm.Options{
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout,
	}
	if cfg.Provider == "gemini" {
		return llm.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, opts)
	}
	return llm.NewOpenAIGenerator(cfg.OpenAIAPIKey, opts)
}
