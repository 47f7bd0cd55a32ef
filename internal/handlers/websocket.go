package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/iamai-org/iamai-chat/internal/logger"
	"github.com/iamai-org/iamai-chat/internal/services"
	"github.com/iamai-org/iamai-chat/internal/socket"
	"github.com/iamai-org/iamai-chat/internal/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WsConfig bounds inbound traffic per connection. RatePerSec <= 0 disables the limit.
type WsConfig struct {
	RatePerSec float64
	Burst      int
}

func WsHandler(hub *socket.Hub, engine socket.Engine, cfg WsConfig, log *logger.Logger) gin.HandlerFunc {
	wsLog := log.With("handler", "WsHandler")
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			wsLog.Warn("Failed to upgrade to websocket", "error", err)
			return
		}

		var limiter *rate.Limiter
		if cfg.RatePerSec > 0 {
			burst := cfg.Burst
			if burst <= 0 {
				burst = 1
			}
			limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
		}

		ctx, cancel := context.WithCancel(context.Background())
		client := socket.NewClient(conn, hub, engine, limiter, cancel, wsLog)
		hub.Subscribe(client, []string{services.ChannelModels, services.ChannelSettings})
		client.Send(types.Frame{Type: types.FrameConnection, Content: "Server Connected"})
		wsLog.Info("WebSocket opened", "client", client.ID)

		go func() {
			client.Run(ctx)
			wsLog.Info("WebSocket closed", "client", client.ID)
		}()
	}
}
