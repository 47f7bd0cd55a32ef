package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iamai-org/iamai-chat/internal/services"
	"github.com/iamai-org/iamai-chat/internal/types"
)

type SettingsHandler struct {
	settingsService services.SettingsService
}

func NewSettingsHandler(settingsService services.SettingsService) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService}
}

func (sh *SettingsHandler) Load(c *gin.Context) {
	settings, err := sh.settingsService.Load(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func (sh *SettingsHandler) Save(c *gin.Context) {
	var req types.Settings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	saved, err := sh.settingsService.Save(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": saved})
}
