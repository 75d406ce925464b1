package adminapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/voidrelay/tunnelbroker/internal/config"
	"github.com/voidrelay/tunnelbroker/internal/database"
	"github.com/voidrelay/tunnelbroker/internal/middleware"
	"github.com/voidrelay/tunnelbroker/internal/models"
	"github.com/voidrelay/tunnelbroker/internal/utils"
)

// AuthHandler covers operator registration, login, and session
// refresh for the status plane — entirely separate from tunnel-user
// identity, which never touches a password or a JWT.
type AuthHandler struct {
	cfg        *config.ServerConfig
	jwtManager *utils.JWTManager
}

func NewAuthHandler(cfg *config.ServerConfig, jwtManager *utils.JWTManager) *AuthHandler {
	return &AuthHandler{
		cfg:        cfg,
		jwtManager: jwtManager,
	}
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process password"})
		return
	}

	ctx := context.Background()
	var operatorID uuid.UUID
	err = database.Pool.QueryRow(ctx,
		`INSERT INTO operator_accounts (email, password_hash) VALUES ($1, $2) RETURNING id`,
		req.Email, string(hashedPassword),
	).Scan(&operatorID)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "unique") {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create operator account"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":     "Account created successfully",
		"operator_id": operatorID,
	})
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	ctx := context.Background()
	var operator models.OperatorAccount
	err := database.Pool.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at, updated_at
		 FROM operator_accounts WHERE email = $1`,
		req.Email,
	).Scan(&operator.ID, &operator.Email, &operator.PasswordHash, &operator.CreatedAt, &operator.UpdatedAt)

	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(operator.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	accessToken, err := h.jwtManager.GenerateAccessToken(operator.ID, operator.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	refreshToken, refreshHash, expiresAt, err := h.jwtManager.GenerateRefreshToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate refresh token"})
		return
	}

	_, err = database.Pool.Exec(ctx,
		`INSERT INTO refresh_tokens (operator_id, token_hash, expires_at) VALUES ($1, $2, $3)`,
		operator.ID, refreshHash, expiresAt,
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save session"})
		return
	}

	c.JSON(http.StatusOK, models.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    h.jwtManager.GetAccessTTLSeconds(),
		Operator:     operator.ToResponse(),
	})
}

// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req models.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	tokenHash := h.jwtManager.HashToken(req.RefreshToken)
	ctx := context.Background()

	var operatorID uuid.UUID
	var expiresAt time.Time
	var tokenID uuid.UUID
	err := database.Pool.QueryRow(ctx,
		`SELECT id, operator_id, expires_at FROM refresh_tokens WHERE token_hash = $1`,
		tokenHash,
	).Scan(&tokenID, &operatorID, &expiresAt)

	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
		return
	}

	if time.Now().After(expiresAt) {
		database.Pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE id = $1`, tokenID)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Refresh token expired"})
		return
	}

	var operator models.OperatorAccount
	err = database.Pool.QueryRow(ctx,
		`SELECT id, email, created_at FROM operator_accounts WHERE id = $1`,
		operatorID,
	).Scan(&operator.ID, &operator.Email, &operator.CreatedAt)

	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Operator not found"})
		return
	}

	accessToken, err := h.jwtManager.GenerateAccessToken(operator.ID, operator.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	newRefreshToken, newRefreshHash, newExpiresAt, err := h.jwtManager.GenerateRefreshToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate refresh token"})
		return
	}

	database.Pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE id = $1`, tokenID)
	database.Pool.Exec(ctx,
		`INSERT INTO refresh_tokens (operator_id, token_hash, expires_at) VALUES ($1, $2, $3)`,
		operatorID, newRefreshHash, newExpiresAt,
	)

	c.JSON(http.StatusOK, models.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		ExpiresIn:    h.jwtManager.GetAccessTTLSeconds(),
		Operator:     operator.ToResponse(),
	})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	operatorID, _ := middleware.GetOperatorID(c)
	ctx := context.Background()

	var operator models.OperatorAccount
	err := database.Pool.QueryRow(ctx,
		`SELECT id, email, created_at, updated_at FROM operator_accounts WHERE id = $1`,
		operatorID,
	).Scan(&operator.ID, &operator.Email, &operator.CreatedAt, &operator.UpdatedAt)

	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Operator not found"})
		return
	}

	c.JSON(http.StatusOK, operator.ToResponse())
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	var req models.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	tokenHash := h.jwtManager.HashToken(req.RefreshToken)
	database.Pool.Exec(context.Background(), `DELETE FROM refresh_tokens WHERE token_hash = $1`, tokenHash)

	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}
