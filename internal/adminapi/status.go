package adminapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/voidrelay/tunnelbroker/internal/models"
)

// engine is the narrow read-only view StatusHandler needs from
// internal/tunnelserver.Server: it can report state, never change it.
type engine interface {
	Users() map[uuid.UUID]*models.TunnelUser
	Status(id uuid.UUID) (online bool, activeListeners int)
	PendingCount(id uuid.UUID) int
}

// StatusHandler reports the rendezvous engine's live state without
// ever touching it. Grounded on the teacher's handlers/tunnels.go
// shape, replacing every CRUD endpoint with a read-only equivalent.
type StatusHandler struct {
	server engine
}

func NewStatusHandler(server engine) *StatusHandler {
	return &StatusHandler{server: server}
}

// GET /api/status/users
func (h *StatusHandler) Users(c *gin.Context) {
	users := h.server.Users()
	resp := models.TunnelUserStatusList{Users: make([]models.TunnelUserStatus, 0, len(users))}

	for id, u := range users {
		online, active := h.server.Status(id)
		resp.Users = append(resp.Users, models.TunnelUserStatus{
			ID:             id,
			Alias:          u.Alias,
			Online:         online,
			ActiveListener: active,
			ConfiguredPort: len(u.Ports),
		})
	}
	resp.Count = len(resp.Users)

	c.JSON(http.StatusOK, resp)
}

// GET /api/status/sessions
func (h *StatusHandler) Sessions(c *gin.Context) {
	users := h.server.Users()
	resp := models.SessionStatusList{Users: make([]models.SessionStatus, 0, len(users))}

	for id, u := range users {
		pending := h.server.PendingCount(id)
		resp.Users = append(resp.Users, models.SessionStatus{
			UserID:          id,
			Alias:           u.Alias,
			PendingSessions: pending,
		})
		resp.Total += pending
	}

	c.JSON(http.StatusOK, resp)
}
