package auth

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/antibyte/retrobasic/pkg/configuration"
	"github.com/antibyte/retrobasic/pkg/logger"
)

const defaultJWTSecret = "fallback_secret_change_in_production"

var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrExpiredToken = errors.New("session token expired")
)

// getJWTSecret reads the signing secret: environment first, then the
// configuration file.
func getJWTSecret() []byte {
	if envSecret := os.Getenv("JWT_SECRET_KEY"); envSecret != "" {
		return []byte(envSecret)
	}
	secret := configuration.GetString("Auth", "jwt_secret", defaultJWTSecret)
	if secret == defaultJWTSecret {
		logger.Warn(logger.AreaAuth, "using fallback JWT secret - set JWT_SECRET_KEY for production")
	}
	return []byte(secret)
}

func tokenExpiration() time.Duration {
	hours := configuration.GetInt("Auth", "session_max_age_hours", 24)
	return time.Duration(hours) * time.Hour
}

// SessionClaims are the claims carried by a guest session token. Sessions
// are anonymous; the ID keys the virtual filesystem namespace.
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// GenerateSessionToken signs a token for a new guest session.
func GenerateSessionToken(sessionID string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenExpiration())),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "retrobasic",
			Subject:   "guest",
			ID:        sessionID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(getJWTSecret())
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	logger.Info(logger.AreaAuth, "session token issued for %s", sessionID)
	return signed, nil
}

// ValidateSessionToken parses and verifies a token, returning its session ID.
func ValidateSessionToken(tokenString string) (string, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return getJWTSecret(), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}
	if !token.Valid || claims.SessionID == "" {
		return "", ErrInvalidToken
	}
	return claims.SessionID, nil
}
