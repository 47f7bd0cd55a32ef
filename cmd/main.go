package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iamai-org/iamai-chat/internal/db"
	"github.com/iamai-org/iamai-chat/internal/handlers"
	"github.com/iamai-org/iamai-chat/internal/logger"
	"github.com/iamai-org/iamai-chat/internal/repos"
	"github.com/iamai-org/iamai-chat/internal/server"
	"github.com/iamai-org/iamai-chat/internal/services"
	"github.com/iamai-org/iamai-chat/internal/socket"
	"github.com/iamai-org/iamai-chat/internal/utils"
)

const filesPrefix = "/files"

func main() {
	envFile := flag.String("env", ".env", "optional .env file")
	runExample := flag.Bool("example", false, "run the store example against an in-memory database and exit")
	flag.Parse()

	if err := utils.LoadDotEnv(*envFile); err != nil {
		fmt.Printf("failed to load %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	// Logger Setup
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *runExample {
		res, err := db.RunExample(context.Background(), log)
		if err != nil {
			log.Error("Example failed", "error", err)
			os.Exit(1)
		}
		log.Info("Example finished", "chat", res.Chat.Name, "chatID", res.Chat.ID, "messages", len(res.History))
		return
	}

	// Environment Variables
	log.Info("Attempting to load environment variables for Main now...")
	port := utils.GetEnv("PORT", "8080", log)
	redisAddress := utils.GetEnv("REDIS_ADDRESS", "", log)
	redisPassword := utils.GetEnv("REDIS_PASSWORD", "", log)
	modelsDir := utils.GetEnv("MODELS_DIR", "models", log)
	staticModels := utils.GetEnvAsList("MODELS", nil, log)
	llmBaseURL := utils.GetEnv("LLM_BASE_URL", "http://localhost:11434/v1", log)
	llmAPIKey := utils.GetEnv("LLM_API_KEY", "", log)
	whisperURL := utils.GetEnv("WHISPER_URL", "", log)
	whisperLanguage := utils.GetEnv("WHISPER_LANGUAGE", "en", log)
	whisperTimeout := utils.GetEnvAsDuration("WHISPER_TIMEOUT", 30*time.Second, log)
	tempDir := utils.GetEnv("TEMP_DIR", "", log)
	gcsBucket := utils.GetEnv("GCS_BUCKET", "", log)
	gcsCredentials := utils.GetEnv("GCS_CREDENTIALS_FILE", "", log)
	attachmentsDir := utils.GetEnv("ATTACHMENTS_DIR", "data/files", log)
	maxAttachmentBytes := utils.GetEnvAsInt("MAX_ATTACHMENT_BYTES", 20<<20, log)
	avatarColors := utils.GetEnv("AVATAR_COLORS_FILE", "", log)
	avatarFont := utils.GetEnv("AVATAR_FONT_FILE", "", log)
	wsRate := utils.GetEnvAsFloat("WS_RATE_PER_SEC", 5, log)
	wsBurst := utils.GetEnvAsInt("WS_RATE_BURST", 10, log)
	guiDir := utils.GetEnv("GUI_BUILD_DIR", "gui/build", log)
	corsOrigins := utils.GetEnvAsList("CORS_ORIGINS", []string{"*"}, log)
	log.Debug("Environment variables loaded for Main :)",
		"port", port,
		"redisAddress", redisAddress,
		"modelsDir", modelsDir,
		"llmBaseURL", llmBaseURL,
		"whisperURL", whisperURL,
		"gcsBucket", gcsBucket,
		"guiDir", guiDir,
	)

	// Database Setup
	log.Info("Setting Up Database from Main now...")
	databaseService, err := db.NewDatabaseService(db.ConfigFromEnv(log), log)
	if err != nil {
		log.Error("DB init failed", "error", err)
		os.Exit(1)
	}
	defer databaseService.Close()
	if err = databaseService.AutoMigrateAll(); err != nil {
		log.Error("Auto migration failed", "error", err)
		os.Exit(1)
	}
	theDB := databaseService.DB()
	log.Info("Database Setup From Main Successful :)")

	// Repositories Setup
	chatRepo := repos.NewChatRepo(theDB, log)
	messageRepo := repos.NewMessageRepo(theDB, log)
	settingsRepo := repos.NewSettingsRepo(theDB, log)

	// Websocket Setup
	log.Info("Setting Up Websocket Hub From Main Now :)")
	wsHub := socket.NewHub(log)

	// Redis PubSub
	var redisPubSub *socket.RedisPubSub
	if redisAddress != "" {
		redisPubSub, err = socket.NewRedisPubSub(log, redisAddress, redisPassword, "iamai_hub_broadcast")
		if err != nil {
			log.Warn("Failed to init redis pubsub", "error", err)
		} else if err := redisPubSub.StartSubscriber(wsHub); err != nil {
			log.Warn("Failed to subscribe to Redis pub/sub", "error", err)
			redisPubSub.Stop()
			redisPubSub = nil
		} else {
			wsHub.SetRedisPubSub(redisPubSub)
			log.Info("Redis pubsub is active!")
		}
	}

	// Services Setup
	log.Info("Setting up Services from Main now...")
	var bucketService services.BucketService
	if gcsBucket != "" {
		bucketService, err = services.NewGCSBucketService(context.Background(), log, gcsBucket, gcsCredentials)
		if err != nil {
			log.Warn("Could not init GCS bucket, falling back to local files", "error", err)
		}
	}
	localFiles := ""
	if bucketService == nil {
		bucketService, err = services.NewLocalBucketService(log, attachmentsDir, filesPrefix)
		if err != nil {
			log.Error("Could not init local bucket", "error", err)
			os.Exit(1)
		}
		localFiles = attachmentsDir
	}
	avatarService, err := services.NewAvatarService(log, bucketService, avatarColors, avatarFont)
	if err != nil {
		log.Error("Fatal error: Cannot init AvatarService", "error", err)
		os.Exit(1)
	}
	modelManager := services.NewModelManager(log, modelsDir, staticModels, wsHub)
	generator := services.NewLLMGenerator(log, llmBaseURL, llmAPIKey)
	transcriber, err := services.NewWhisperService(log, whisperURL, whisperLanguage, tempDir, whisperTimeout)
	if err != nil {
		log.Warn("Speech-to-text disabled", "error", err)
	}
	conversationService := services.NewConversationService(log, modelManager, generator, transcriber)
	chatService := services.NewChatService(theDB, log, chatRepo, messageRepo, modelManager, avatarService)
	attachmentService := services.NewAttachmentService(log, chatRepo, bucketService, int64(maxAttachmentBytes))
	settingsService := services.NewSettingsService(log, settingsRepo, wsHub)
	log.Info("Services Set Up From Main Successful :)")

	// Handler Setup
	staticHandler := handlers.NewStaticHandler(log, guiDir)
	if !staticHandler.Available() {
		log.Warn("GUI build not found, only the API is served", "dir", guiDir)
	}
	router := server.NewRouter(server.RouterConfig{
		Log:             log,
		AllowOrigins:    corsOrigins,
		ChatHandler:     handlers.NewChatHandler(chatService, attachmentService, int64(maxAttachmentBytes)),
		ModelHandler:    handlers.NewModelHandler(modelManager),
		SettingsHandler: handlers.NewSettingsHandler(settingsService),
		WsHandler:       handlers.WsHandler(wsHub, conversationService, handlers.WsConfig{RatePerSec: wsRate, Burst: wsBurst}, log),
		StaticHandler:   staticHandler,
		FilesDir:        localFiles,
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		log.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", "error", err)
			stop()
		}
	}()
	<-ctx.Done()

	// On Shutdown
	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Graceful shutdown failed", "error", err)
	}
	if redisPubSub != nil {
		redisPubSub.Stop()
	}
}
