package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iamai-org/iamai-chat/internal/errordata"
	"github.com/iamai-org/iamai-chat/internal/logger"
	"github.com/iamai-org/iamai-chat/internal/requestdata"
)

func TestRequestContextAndLogging(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)

	var seen uuid.UUID
	r := gin.New()
	r.Use(AttachRequestContext(), RequestLogger(logger.FromZap(zap.New(core))))
	r.GET("/ok", func(c *gin.Context) {
		seen = requestdata.GetRequestData(c.Request.Context()).RequestID
		c.Status(http.StatusNoContent)
	})
	r.GET("/fail", func(c *gin.Context) {
		errordata.GetErrorData(c.Request.Context()).Set(http.StatusNotFound, "chat 3: record not found")
		c.Status(http.StatusNotFound)
	})

	given := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(RequestIDHeader, given.String())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, given, seen)
	assert.Equal(t, given.String(), w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))
	_, err := uuid.Parse(w.Header().Get(RequestIDHeader))
	require.NoError(t, err)

	warns := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warns, 1)
	assert.Equal(t, "chat 3: record not found", warns[0].ContextMap()["error"])
	assert.Len(t, logs.FilterLevelExact(zapcore.DebugLevel).All(), 1)
}
