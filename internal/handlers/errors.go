package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iamai-org/iamai-chat/internal/errordata"
	"github.com/iamai-org/iamai-chat/internal/repos"
	"github.com/iamai-org/iamai-chat/internal/services"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrModelNotFound):
		return http.StatusBadRequest
	case errors.Is(err, repos.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrNoModelLoaded), errors.Is(err, services.ErrTranscriptionUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if ed := errordata.GetErrorData(c.Request.Context()); ed != nil {
		ed.Set(status, err.Error())
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
