package adminapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/voidrelay/tunnelbroker/internal/database"
)

type HealthHandler struct {
	server engine
}

func NewHealthHandler(server engine) *HealthHandler {
	return &HealthHandler{server: server}
}

// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	dbOK := true
	if err := database.Pool.Ping(c.Request.Context()); err != nil {
		dbOK = false
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !dbOK {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	onlineUsers := 0
	for id := range h.server.Users() {
		if online, _ := h.server.Status(id); online {
			onlineUsers++
		}
	}

	c.JSON(httpStatus, gin.H{
		"status":       status,
		"database":     dbOK,
		"online_users": onlineUsers,
	})
}

// GET /ping
func (h *HealthHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}
