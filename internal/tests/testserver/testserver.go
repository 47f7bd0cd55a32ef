// Package testserver runs the full backend stack on an in-memory database for
// tests that need real HTTP and WebSocket endpoints.
package testserver

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/iamai-org/iamai-chat/internal/db"
	"github.com/iamai-org/iamai-chat/internal/handlers"
	"github.com/iamai-org/iamai-chat/internal/logger"
	"github.com/iamai-org/iamai-chat/internal/repos"
	"github.com/iamai-org/iamai-chat/internal/server"
	"github.com/iamai-org/iamai-chat/internal/services"
	"github.com/iamai-org/iamai-chat/internal/socket"
	"github.com/iamai-org/iamai-chat/internal/tests/mocks"
)

// MaxUploadBytes is the attachment limit of a test server.
const MaxUploadBytes = 1 << 20

type Options struct {
	Models []string
	Engine socket.Engine
	GUIDir string
	WS     handlers.WsConfig
}

type Server struct {
	*httptest.Server
	DB           *db.DatabaseService
	Hub          *socket.Hub
	ModelManager services.ModelManager
	FilesDir     string
}

func New(t *testing.T, opts Options) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewNop()

	dbs, err := db.NewDatabaseService(db.Config{Driver: db.DriverSQLite, Path: ":memory:"}, log)
	require.NoError(t, err)
	require.NoError(t, dbs.AutoMigrateAll())
	t.Cleanup(func() { _ = dbs.Close() })

	if opts.Models == nil {
		opts.Models = []string{"llama3", "mistral"}
	}
	if opts.Engine == nil {
		opts.Engine = &mocks.EngineMock{}
	}

	filesDir := t.TempDir()
	bucket, err := services.NewLocalBucketService(log, filesDir, "/files")
	require.NoError(t, err)
	avatars, err := services.NewAvatarService(log, bucket, "", "")
	require.NoError(t, err)

	hub := socket.NewHub(log)
	chatRepo := repos.NewChatRepo(dbs.DB(), log)
	mm := services.NewModelManager(log, "", opts.Models, hub)
	chatSvc := services.NewChatService(dbs.DB(), log, chatRepo, repos.NewMessageRepo(dbs.DB(), log), mm, avatars)
	attachSvc := services.NewAttachmentService(log, chatRepo, bucket, MaxUploadBytes)
	settingsSvc := services.NewSettingsService(log, repos.NewSettingsRepo(dbs.DB(), log), hub)

	router := server.NewRouter(server.RouterConfig{
		Log:             log,
		ChatHandler:     handlers.NewChatHandler(chatSvc, attachSvc, MaxUploadBytes),
		ModelHandler:    handlers.NewModelHandler(mm),
		SettingsHandler: handlers.NewSettingsHandler(settingsSvc),
		WsHandler:       handlers.WsHandler(hub, opts.Engine, opts.WS, log),
		StaticHandler:   handlers.NewStaticHandler(log, opts.GUIDir),
		FilesDir:        filesDir,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &Server{Server: srv, DB: dbs, Hub: hub, ModelManager: mm, FilesDir: filesDir}
}
