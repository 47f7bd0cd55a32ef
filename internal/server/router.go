package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/iamai-org/iamai-chat/internal/handlers"
	"github.com/iamai-org/iamai-chat/internal/logger"
	"github.com/iamai-org/iamai-chat/internal/middleware"
)

type RouterConfig struct {
	Log             *logger.Logger
	AllowOrigins    []string
	ChatHandler     *handlers.ChatHandler
	ModelHandler    *handlers.ModelHandler
	SettingsHandler *handlers.SettingsHandler
	WsHandler       gin.HandlerFunc
	StaticHandler   *handlers.StaticHandler
	// FilesDir, when set, is served under /files (local attachment storage).
	FilesDir string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.AttachRequestContext())
	if cfg.Log != nil {
		router.Use(middleware.RequestLogger(cfg.Log))
	}

	//-----------------------------------------
	// Cors Setup
	//-----------------------------------------
	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", "Accept", "X-Requested-With", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        time.Hour,
	}
	if len(cfg.AllowOrigins) == 0 || (len(cfg.AllowOrigins) == 1 && cfg.AllowOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowOrigins
	}
	router.Use(cors.New(corsCfg))

	//-----------------------------------------
	// Health Routes
	//-----------------------------------------
	router.GET("/healthz", handlers.Healthz)

	//-----------------------------------------
	// App Routes (bare and under /api, older clients use either)
	//-----------------------------------------
	registerAppRoutes(router.Group("/"), cfg)
	registerAppRoutes(router.Group("/api"), cfg)

	if cfg.FilesDir != "" {
		router.Static("/files", cfg.FilesDir)
	}

	//-----------------------------------------
	// GUI
	//-----------------------------------------
	if cfg.StaticHandler != nil {
		router.NoRoute(cfg.StaticHandler.Serve)
	}

	return router
}

func registerAppRoutes(g *gin.RouterGroup, cfg RouterConfig) {
	if cfg.WsHandler != nil {
		g.GET("/ws", cfg.WsHandler)
	}

	//Chats
	if cfg.ChatHandler != nil {
		g.GET("/chats", cfg.ChatHandler.ListChats)
		g.POST("/chat", cfg.ChatHandler.CreateChat)
		g.GET("/chat/messages", cfg.ChatHandler.ListMessages)
		g.POST("/chat/message", cfg.ChatHandler.AppendMessage)
		g.POST("/chat/attachment", cfg.ChatHandler.UploadAttachment)
	}

	//Models
	if cfg.ModelHandler != nil {
		g.GET("/models", cfg.ModelHandler.ListModels)
		g.POST("/models/switch", cfg.ModelHandler.SwitchModel)
	}

	//Settings
	if cfg.SettingsHandler != nil {
		g.GET("/settings/load", cfg.SettingsHandler.Load)
		g.POST("/settings/save", cfg.SettingsHandler.Save)
	}
}
