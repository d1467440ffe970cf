package oplog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultWriteTimeout bounds a single sink write unless WithTimeout says otherwise.
const DefaultWriteTimeout = 2 * time.Second

// Recorder records operation log entries. Record never fails, never
// panics and returns within the write timeout; a lost entry is only
// reported to the application log.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

// SinkRecorder is the Recorder backed by a Sink.
type SinkRecorder struct {
	sink    Sink
	logger  *zap.Logger
	timeout time.Duration
}

func NewRecorder(sink Sink, logger *zap.Logger) *SinkRecorder {
	return &SinkRecorder{sink: sink, logger: logger.Named("oplog"), timeout: DefaultWriteTimeout}
}

// WithTimeout sets the write timeout. Non-positive values keep the current one.
func (r *SinkRecorder) WithTimeout(d time.Duration) *SinkRecorder {
	if d > 0 {
		r.timeout = d
	}
	return r
}

func (r *SinkRecorder) Record(ctx context.Context, entry Entry) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	// The entry outlives a cancelled request but not the write timeout.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	done := make(chan error, 1)
	stored := entry
	go func() {
		defer func() {
			if p := recover(); p != nil {
				r.logger.Warn("Operation log sink panicked",
					zap.String("action", stored.Action),
					zap.String("panic", fmt.Sprint(p)))
				done <- nil
			}
		}()
		done <- r.sink.Append(writeCtx, &stored)
	}()

	var err error
	select {
	case err = <-done:
	case <-writeCtx.Done():
		err = fmt.Errorf("operation log write abandoned after %s: %w", r.timeout, writeCtx.Err())
	}
	if err != nil {
		r.logger.Warn("Failed to record operation log",
			zap.String("action", entry.Action),
			zap.String("status", string(entry.Status)),
			zap.Error(err))
	}
}

// Nop discards every entry.
type Nop struct{}

func (Nop) Record(context.Context, Entry) {}
