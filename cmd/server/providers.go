package main

import (
	"context"
	"log"
	"time"

	"buildinghub_backend/internal/app"
	"buildinghub_backend/internal/config"
	"buildinghub_backend/internal/fanout"
	"buildinghub_backend/internal/oplog"
	"buildinghub_backend/internal/platform/database"
	"buildinghub_backend/internal/platform/elasticsearch"
	"buildinghub_backend/internal/platform/logger"
	platformRedis "buildinghub_backend/internal/platform/redis"
	"buildinghub_backend/internal/poll"
	"buildinghub_backend/internal/property"
	"buildinghub_backend/internal/reorder"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func provideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	l, err := logger.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return l, func() {
		if err := l.Sync(); err != nil {
			log.Printf("ERROR: Failed to sync logger during cleanup: %v", err)
		}
	}, nil
}

// provideDatabase connects and migrates before any repository is built.
func provideDatabase(cfg *config.Config, logger *zap.Logger) (*gorm.DB, func(), error) {
	db, err := database.NewGORM(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := app.Migrate(cfg, db, logger); err != nil {
		database.CloseGORMDB(db)
		return nil, nil, err
	}
	return db, func() { database.CloseGORMDB(db) }, nil
}

func provideRedis(cfg *config.Config, logger *zap.Logger) (*goredis.Client, func(), error) {
	client, err := platformRedis.NewClient(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { platformRedis.Close(client, logger) }, nil
}

// provideElasticsearch returns nil without ELASTICSEARCH_URL. An index that
// cannot be created is logged; the sink reports each failed write.
func provideElasticsearch(cfg *config.Config, logger *zap.Logger) (*elasticsearch.ESClientWrapper, error) {
	client, err := elasticsearch.NewClient(cfg, logger)
	if err != nil || client == nil {
		return client, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := elasticsearch.CreateOperationLogsIndexIfNotExists(ctx, client, logger); err != nil {
		logger.Error("Failed to create operation logs index", zap.Error(err))
	}
	return client, nil
}

func provideRecorder(cfg *config.Config, db *gorm.DB, es *elasticsearch.ESClientWrapper, logger *zap.Logger) (*oplog.SinkRecorder, error) {
	sink, err := oplog.NewSink(cfg, db, es, logger)
	if err != nil {
		return nil, err
	}
	return oplog.NewRecorder(sink, logger).WithTimeout(cfg.OplogWriteTimeout), nil
}

// providePollService gives polls and poll options their own coordinators
// over the shared locker.
func providePollService(
	repo poll.Repository,
	authorizer *property.Authorizer,
	publisher fanout.Publisher,
	db *gorm.DB,
	locker reorder.Locker,
	recorder oplog.Recorder,
	logger *zap.Logger,
) *poll.ServiceImplementation {
	options := reorder.NewCoordinator(db, reorder.PollOptions, locker, recorder, logger)
	polls := reorder.NewCoordinator(db, reorder.Polls, locker, recorder, logger)
	return poll.NewService(repo, authorizer, publisher, options, polls, recorder, logger)
}
