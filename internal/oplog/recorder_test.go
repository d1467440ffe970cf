package oplog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type failingSink struct{ err error }

func (s failingSink) Append(context.Context, *Entry) error { return s.err }

type panickingSink struct{}

func (panickingSink) Append(context.Context, *Entry) error { panic("disk on fire") }

// blockingSink holds every write until its context ends.
type blockingSink struct{}

func (blockingSink) Append(ctx context.Context, _ *Entry) error {
	<-ctx.Done()
	return ctx.Err()
}

type countingSink struct{ n int }

func (s *countingSink) Append(context.Context, *Entry) error {
	s.n++
	return nil
}

func setupOplogDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&Entry{}))
	return db
}

func TestRecorder_SinkErrorIsSwallowed(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := NewRecorder(failingSink{err: errors.New("db down")}, zap.New(core))

	assert.NotPanics(t, func() {
		r.Record(context.Background(), NewEntry("emit", TypeDB, time.Now(), nil, nil))
	})
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Failed to record operation log", logs.All()[0].Message)
}

func TestRecorder_SinkPanicIsSwallowed(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := NewRecorder(panickingSink{}, zap.New(core))

	assert.NotPanics(t, func() {
		r.Record(context.Background(), NewEntry("emit", TypeDB, time.Now(), nil, nil))
	})
	assert.Equal(t, 1, logs.FilterMessage("Operation log sink panicked").Len())
}

func TestRecorder_HungSinkIsAbandonedAfterTimeout(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := NewRecorder(blockingSink{}, zap.New(core)).WithTimeout(50 * time.Millisecond)

	returned := make(chan struct{})
	go func() {
		r.Record(context.Background(), NewEntry("notifications.emit", TypeDB, time.Now(), nil, nil))
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("Record did not return after the write timeout")
	}
	require.Equal(t, 1, logs.FilterMessage("Failed to record operation log").Len())
	err, _ := logs.All()[0].ContextMap()["error"].(string)
	assert.Contains(t, err, "deadline exceeded")
}

func TestRecorder_WithTimeoutIgnoresNonPositive(t *testing.T) {
	r := NewRecorder(&countingSink{}, zap.NewNop()).WithTimeout(0)
	assert.Equal(t, DefaultWriteTimeout, r.timeout)
}

func TestRecorder_CancelledContextStillWrites(t *testing.T) {
	db := setupOplogDB(t)
	r := NewRecorder(NewGORMSink(db), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Record(ctx, NewEntry("reorder", TypeDB, time.Now(), map[string]int{"n": 3}, nil))

	var count int64
	require.NoError(t, db.Model(&Entry{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGORMSink_PersistsEntry(t *testing.T) {
	db := setupOplogDB(t)
	r := NewRecorder(NewGORMSink(db), zap.NewNop())
	userID := uuid.New()

	entry := NewEntry("notifications.emit", TypeDB, time.Now().Add(-25*time.Millisecond),
		map[string]interface{}{"records": 2}, errors.New("batch 1 failed")).WithUser(userID)
	r.Record(context.Background(), entry)

	var stored Entry
	require.NoError(t, db.First(&stored).Error)
	assert.NotEqual(t, uuid.Nil, stored.ID)
	assert.Equal(t, StatusFail, stored.Status)
	assert.Equal(t, "batch 1 failed", stored.Error)
	assert.Equal(t, TypeDB, stored.Type)
	require.NotNil(t, stored.UserID)
	assert.Equal(t, userID, *stored.UserID)
	assert.GreaterOrEqual(t, stored.DurationMS, int64(25))

	var payload map[string]int
	require.NoError(t, json.Unmarshal(stored.Payload, &payload))
	assert.Equal(t, 2, payload["records"])
}

func TestMultiSink_ContinuesAfterFailure(t *testing.T) {
	counter := &countingSink{}
	sink := MultiSink{failingSink{err: errors.New("es down")}, counter}

	err := sink.Append(context.Background(), &Entry{Action: "x"})
	assert.Error(t, err)
	assert.Equal(t, 1, counter.n)
}

func TestNewEntry_Status(t *testing.T) {
	ok := NewEntry("a", TypeAction, time.Now(), nil, nil)
	assert.Equal(t, StatusSuccess, ok.Status)
	assert.Empty(t, ok.Error)
	assert.Nil(t, ok.Payload)
	assert.Nil(t, ok.UserID)

	assert.Nil(t, ok.WithUser(uuid.Nil).UserID)
}
