package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iamai-org/iamai-chat/internal/services"
)

type ModelHandler struct {
	modelManager services.ModelManager
}

func NewModelHandler(modelManager services.ModelManager) *ModelHandler {
	return &ModelHandler{modelManager: modelManager}
}

func (mh *ModelHandler) ListModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"models":  mh.modelManager.ListModels(),
		"current": mh.modelManager.CurrentModel(),
	})
}

func (mh *ModelHandler) SwitchModel(c *gin.Context) {
	var req struct {
		Model string `json:"model"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if err := mh.modelManager.SwitchModel(c.Request.Context(), req.Model); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Model switched successfully", "current": req.Model})
}
