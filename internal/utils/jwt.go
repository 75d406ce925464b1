package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// StatusReadScope is the only scope an access token ever carries: the
// admin plane is read-only (SPEC_FULL.md §4.10), so there is nothing
// for a broader scope to gate.
const StatusReadScope = "status:read"

type JWTManager struct {
	secretKey  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// Claims identifies an operator account (admin plane), never a tunnel
// user — tunnel users never hold a JWT. Scope is always
// StatusReadScope; ValidateAccessToken rejects anything else so a
// token minted for a different purpose can't be replayed here.
type Claims struct {
	OperatorID uuid.UUID `json:"operator_id"`
	Email      string    `json:"email"`
	Scope      string    `json:"scope"`
	jwt.RegisteredClaims
}

func NewJWTManager(secret string, accessTTLMinutes, refreshTTLDays int) *JWTManager {
	return &JWTManager{
		secretKey:  []byte(secret),
		accessTTL:  time.Duration(accessTTLMinutes) * time.Minute,
		refreshTTL: time.Duration(refreshTTLDays) * 24 * time.Hour,
	}
}

func (m *JWTManager) GenerateAccessToken(operatorID uuid.UUID, email string) (string, error) {
	claims := Claims{
		OperatorID: operatorID,
		Email:      email,
		Scope:      StatusReadScope,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "tunnelbroker-admin",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

func (m *JWTManager) GenerateRefreshToken() (string, string, time.Time, error) {
	// Generate random token
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", time.Time{}, err
	}
	
	token := hex.EncodeToString(bytes)
	hash := m.HashToken(token)
	expiresAt := time.Now().Add(m.refreshTTL)
	
	return token, hash, expiresAt, nil
}

func (m *JWTManager) HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func (m *JWTManager) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secretKey, nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	if claims.Scope != StatusReadScope {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return claims, nil
}

func (m *JWTManager) GetAccessTTLSeconds() int {
	return int(m.accessTTL.Seconds())
}
