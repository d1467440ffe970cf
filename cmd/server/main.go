package main

import (
	"context"
	"flag"
	"log" // Standard log for messages before zap is active
	"os"
	"os/signal"
	"syscall"

	"buildinghub_backend/internal/app"
	"buildinghub_backend/internal/config"
	"buildinghub_backend/internal/oplog"
	"buildinghub_backend/internal/platform/database"
	platformElasticsearch "buildinghub_backend/internal/platform/elasticsearch"
	"buildinghub_backend/internal/platform/logger"

	"go.uber.org/zap"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			runMigrate()
			return
		case "reindex-oplog":
			runReindexOplog(os.Args[2:])
			return
		}
	}
	startServer()
}

func loadCLI() (*config.Config, *zap.Logger) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	return cfg, appLogger
}

// runMigrate applies the schema regardless of DB_AUTO_MIGRATE.
func runMigrate() {
	cfg, appLogger := loadCLI()
	defer appLogger.Sync() //nolint:errcheck
	cfg.DBAutoMigrate = true

	db, err := database.NewGORM(cfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer database.CloseGORMDB(db)

	if err := app.Migrate(cfg, db, appLogger); err != nil {
		appLogger.Fatal("Migration failed", zap.Error(err))
	}
}

// runReindexOplog copies the operation_logs table into Elasticsearch.
func runReindexOplog(args []string) {
	fs := flag.NewFlagSet("reindex-oplog", flag.ExitOnError)
	batchSize := fs.Int("batch-size", 500, "Number of entries per bulk request")
	esRefresh := fs.String("es-refresh", "false", "Elasticsearch refresh policy (true, false, wait_for)")
	_ = fs.Parse(args)

	cfg, appLogger := loadCLI()
	defer appLogger.Sync() //nolint:errcheck

	db, err := database.NewGORM(cfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer database.CloseGORMDB(db)

	esClient, err := platformElasticsearch.NewClient(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize Elasticsearch client", zap.Error(err))
	}
	if esClient == nil {
		appLogger.Fatal("ELASTICSEARCH_URL must be set to reindex operation logs")
	}

	ctx := context.Background()
	if err := platformElasticsearch.CreateOperationLogsIndexIfNotExists(ctx, esClient, appLogger); err != nil {
		appLogger.Fatal("Failed to create operation logs index", zap.Error(err))
	}
	res, err := oplog.Reindex(ctx, db, esClient, appLogger, *batchSize, *esRefresh)
	appLogger.Info("Operation log reindex finished",
		zap.Int("indexed", res.Indexed),
		zap.Int("failed", res.Failed),
		zap.Int("batches", res.Batches))
	if err != nil {
		appLogger.Fatal("Operation log reindex incomplete", zap.Error(err))
	}
}

func startServer() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	server, cleanup, err := initializeServer(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize server: %v", err)
	}
	defer cleanup()

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("FATAL: Server failed to start or crashed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("INFO: Received signal '%s'. Shutting down server...", sig)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ServerTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: Server forced to shutdown due to error: %v", err)
	} else {
		log.Println("INFO: Server shutdown complete.")
	}
}
