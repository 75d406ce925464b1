package models

import (
	"time"

	"github.com/google/uuid"
)

// OperatorAccount is a human who can log into the admin status API.
// It has no relationship to TunnelUser: an operator watches the
// engine, a tunnel user is a row the engine was booted with.
type OperatorAccount struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type OperatorResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func (o *OperatorAccount) ToResponse() OperatorResponse {
	return OperatorResponse{
		ID:        o.ID,
		Email:     o.Email,
		CreatedAt: o.CreatedAt,
	}
}

// Request DTOs for the admin auth handlers.

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	ExpiresIn    int              `json:"expires_in"`
	Operator     OperatorResponse `json:"operator"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}
