package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"uhnw-graph/backend/internal/graph"
	"uhnw-graph/backend/internal/ingest"
	"uhnw-graph/backend/internal/metrics"
	"uhnw-graph/backend/pkg/config"
	"uhnw-graph/backend/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	// Initialize logger
	if err := logger.Init(cfg.Env); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting ingestion API server...")

	ctx := context.Background()

	var store graph.Store
	if cfg.DryRun {
		log.Info("Dry run: no writes will reach Neo4j")
		store = graph.NewDryRunWriter(log)
	} else {
		driver, err := graph.Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
		if err != nil {
			log.Fatal("Failed to connect to Neo4j", zap.Error(err))
		}
		repo := graph.NewRepository(driver, cfg.Neo4jDatabase).WithURI(cfg.Neo4jURI)
		defer repo.Close()
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatal("Failed to ensure graph schema", zap.Error(err))
		}
		store = repo
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv := &server{
		store:    store,
		files:    ingest.Files{StatePath: cfg.StateFile, DataPath: cfg.DataFile},
		opts:     ingest.OptionsFromConfig(cfg, log.Named("ingest"), metrics.New(reg)),
		registry: reg,
		log:      log,
	}

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())
	srv.routes(router)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("port", cfg.Port))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}
