package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeKeyFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "firebase.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("FIREBASE_SERVICE_ACCOUNT_KEY_PATH", writeKeyFile(t))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.NotificationBatchSize)
	assert.Equal(t, []string{"sms", "whatsapp"}, cfg.NotifyChannels)
	assert.Equal(t, []string{"db"}, cfg.OplogSinks)
	assert.Equal(t, 24*time.Hour, cfg.ReminderLeadTime)
	assert.Equal(t, 30*time.Second, cfg.ReorderLockTTL)
	assert.Equal(t, 2*time.Second, cfg.OplogWriteTimeout)
	assert.Contains(t, cfg.DBSource, "dbname=buildinghub_db")
	assert.True(t, cfg.HasChannel("sms"))
	assert.False(t, cfg.HasChannel("email"))
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("FIREBASE_SERVICE_ACCOUNT_KEY_PATH", writeKeyFile(t))
	t.Setenv("NOTIFICATION_BATCH_SIZE", "100")
	t.Setenv("NOTIFY_CHANNELS", " SMS , email ")
	t.Setenv("REMINDER_LEAD_TIME_MINUTES", "90")
	t.Setenv("OPLOG_WRITE_TIMEOUT_MS", "250")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.NotificationBatchSize)
	assert.Equal(t, []string{"sms", "email"}, cfg.NotifyChannels)
	assert.Equal(t, 90*time.Minute, cfg.ReminderLeadTime)
	assert.Equal(t, 250*time.Millisecond, cfg.OplogWriteTimeout)
}

func TestLoad_MissingFirebaseKey(t *testing.T) {
	t.Setenv("FIREBASE_SERVICE_ACCOUNT_KEY_PATH", filepath.Join(t.TempDir(), "missing.json"))

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_ElasticsearchSinkRequiresURL(t *testing.T) {
	t.Setenv("FIREBASE_SERVICE_ACCOUNT_KEY_PATH", writeKeyFile(t))
	t.Setenv("OPLOG_SINKS", "db,elasticsearch")
	t.Setenv("ELASTICSEARCH_URL", "")

	_, err := Load()
	assert.Error(t, err)
}
