package middleware

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/voidrelay/tunnelbroker/internal/utils"
)

const (
	AuthOperatorIDKey    = "operator_id"
	AuthOperatorEmailKey = "operator_email"
)

// AuthMiddleware gates the routes it is attached to (the read-only
// /api/status routes and /api/auth/me; /metrics is not behind it)
// behind a valid status:read access token. Every admission is logged
// by operator email, since this plane exists to watch the rendezvous
// engine and an audit trail of who watched it is part of that job.
func AuthMiddleware(jwtManager *utils.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		tokenString := parts[1]
		claims, err := jwtManager.ValidateAccessToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		log.Printf("[adminapi] %s %s: %s", c.Request.Method, c.FullPath(), claims.Email)

		c.Set(AuthOperatorIDKey, claims.OperatorID)
		c.Set(AuthOperatorEmailKey, claims.Email)
		c.Next()
	}
}

// GetOperatorID reads the authenticated operator's id from context.
func GetOperatorID(c *gin.Context) (uuid.UUID, bool) {
	id, exists := c.Get(AuthOperatorIDKey)
	if !exists {
		return uuid.Nil, false
	}
	return id.(uuid.UUID), true
}

// GetOperatorEmail reads the authenticated operator's email from context.
func GetOperatorEmail(c *gin.Context) (string, bool) {
	email, exists := c.Get(AuthOperatorEmailKey)
	if !exists {
		return "", false
	}
	return email.(string), true
}
