package utils

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"pos_settlement/pkg/config"
	"pos_settlement/pkg/models"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims represents the custom JWT claims
type TokenClaims struct {
	ID       int         `json:"id"`
	Email    string      `json:"email"`
	Role     models.Role `json:"role"`
	OutletID *int        `json:"outletId,omitempty"`
	jwt.RegisteredClaims
}

// ParseExpiry understands Go durations plus a day suffix ("7d").
func ParseExpiry(s string) time.Duration {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil && n > 0 {
			return time.Duration(n) * 24 * time.Hour
		}
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return 7 * 24 * time.Hour
}

// GenerateToken signs a session token for a staff user
func GenerateToken(user models.User) (string, error) {
	now := time.Now()
	claims := TokenClaims{
		ID:       user.ID,
		Email:    user.Email,
		Role:     user.Role,
		OutletID: user.OutletID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ParseExpiry(config.AppConfig.JWTExpiresIn))),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   strconv.Itoa(user.ID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.AppConfig.JWTSecret))
}

// VerifyToken verifies and parses a JWT token
func VerifyToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(config.AppConfig.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*TokenClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// IsExpired reports whether err came from an expired token
func IsExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}
