package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamai-org/iamai-chat/internal/logger"
	"github.com/iamai-org/iamai-chat/internal/types"
)

func TestRunExample(t *testing.T) {
	res, err := RunExample(context.Background(), logger.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "General Chat", res.Chat.Name)
	assert.Equal(t, "GPT-3", res.Chat.Model)
	assert.Equal(t, "#FF0000", res.Settings.HeaderColor)
	assert.Equal(t, 90, res.Settings.TextSpeed)
	require.Len(t, res.History, 1)
	assert.Equal(t, types.SenderUser, res.History[0].Sender)
	assert.Equal(t, "Hello, how are you?", res.History[0].Content)
}

func TestNewDatabaseService_Config(t *testing.T) {
	_, err := NewDatabaseService(Config{Driver: "oracle"}, logger.NewNop())
	assert.Error(t, err)

	_, err = NewDatabaseService(Config{Driver: DriverPostgres}, logger.NewNop())
	assert.Error(t, err)

	t.Setenv("DB_DRIVER", DriverPostgres)
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("POSTGRES_PASSWORD", "s3cret")
	cfg := ConfigFromEnv(logger.NewNop())
	assert.Equal(t, DriverPostgres, cfg.Driver)
	assert.Contains(t, cfg.DSN, "@db.internal:5432/iamai")
	assert.Contains(t, cfg.DSN, ":s3cret@")
}

func TestAutoMigrateCreatesTables(t *testing.T) {
	svc, err := NewDatabaseService(Config{Driver: DriverSQLite, Path: ":memory:"}, logger.NewNop())
	require.NoError(t, err)
	defer svc.Close()
	require.NoError(t, svc.AutoMigrateAll())

	for _, table := range []string{"profile_settings", "chats", "messages"} {
		assert.True(t, svc.DB().Migrator().HasTable(table), table)
	}
}
