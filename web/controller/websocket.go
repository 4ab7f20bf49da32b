package controller

import (
	"github.com/hivedesk/portal/logger"
	"github.com/hivedesk/portal/web/middleware"
	"github.com/hivedesk/portal/web/websocket"

	"github.com/gin-gonic/gin"
)

// WebSocketController upgrades signed-in browsers to the push channel.
type WebSocketController struct {
	hub *websocket.Hub
}

func NewWebSocketController(g *gin.RouterGroup, hub *websocket.Hub) *WebSocketController {
	w := &WebSocketController{hub: hub}
	w.initRouter(g)
	return w
}

func (w *WebSocketController) initRouter(g *gin.RouterGroup) {
	g.GET("/ws", middleware.RequireLogin(), w.handleWebSocket)
}

func (w *WebSocketController) handleWebSocket(c *gin.Context) {
	if err := websocket.Serve(w.hub, c.Writer, c.Request, middleware.CurrentSession(c)); err != nil {
		logger.Debug("WebSocket upgrade failed:", err)
	}
}
