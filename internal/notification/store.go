package notification

import (
	"context"
	"fmt"
	"time"

	"buildinghub_backend/internal/config"
	"buildinghub_backend/internal/oplog"

	"go.uber.org/zap"
)

// DefaultBatchSize bounds the rows sent in one INSERT.
const DefaultBatchSize = 500

// EmitResult reports how many records reached the store.
type EmitResult struct {
	InsertedCount int
}

// Store persists notification records in bounded batches.
type Store struct {
	repo      Repository
	recorder  oplog.Recorder
	logger    *zap.Logger
	batchSize int
}

func NewStore(repo Repository, recorder oplog.Recorder, cfg *config.Config, logger *zap.Logger) *Store {
	batchSize := cfg.NotificationBatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Store{
		repo:      repo,
		recorder:  recorder,
		logger:    logger.Named("NotificationStore"),
		batchSize: batchSize,
	}
}

// Emit inserts records batch by batch, in order. The first failing batch
// stops emission: earlier batches stay committed, later ones are never
// attempted, and InsertedCount tells how many rows made it. Emitting the
// same records twice inserts them twice.
func (s *Store) Emit(ctx context.Context, records []Record) (EmitResult, error) {
	if len(records) == 0 {
		return EmitResult{}, nil
	}
	start := time.Now()

	rows := make([]Notification, 0, len(records))
	for i, rec := range records {
		if err := Validate(rec); err != nil {
			s.recorder.Record(ctx, oplog.NewEntry("notifications.emit", oplog.TypeDB, start,
				map[string]interface{}{"records": len(records), "invalid_index": i}, err))
			return EmitResult{}, err
		}
		row, err := toRow(rec)
		if err != nil {
			s.recorder.Record(ctx, oplog.NewEntry("notifications.emit", oplog.TypeDB, start,
				map[string]interface{}{"records": len(records), "invalid_index": i}, err))
			return EmitResult{}, fmt.Errorf("encoding metadata of record %d: %w", i, err)
		}
		rows = append(rows, row)
	}

	batches := (len(rows) + s.batchSize - 1) / s.batchSize
	inserted := 0
	for b := 0; b < batches; b++ {
		lo := b * s.batchSize
		hi := lo + s.batchSize
		if hi > len(rows) {
			hi = len(rows)
		}
		batchStart := time.Now()
		if err := s.repo.CreateBatch(ctx, rows[lo:hi]); err != nil {
			s.recorder.Record(ctx, oplog.NewEntry("notifications.emit.batch", oplog.TypeDB, batchStart,
				map[string]interface{}{
					"batch":          b + 1,
					"batches":        batches,
					"batch_size":     hi - lo,
					"inserted_count": inserted,
				}, err))
			s.logger.Error("Notification batch insert failed",
				zap.Int("batch", b+1),
				zap.Int("batches", batches),
				zap.Int("inserted_count", inserted),
				zap.Error(err))
			return EmitResult{InsertedCount: inserted}, fmt.Errorf("notification batch %d of %d failed after %d inserted: %w", b+1, batches, inserted, err)
		}
		inserted += hi - lo
	}

	s.recorder.Record(ctx, oplog.NewEntry("notifications.emit", oplog.TypeDB, start,
		map[string]interface{}{"records": len(records), "batches": batches}, nil))
	s.logger.Debug("Notifications emitted", zap.Int("inserted_count", inserted), zap.Int("batches", batches))
	return EmitResult{InsertedCount: inserted}, nil
}
