package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"beatstore-media-service/config"
	"beatstore-media-service/internal/errdefs"

	"github.com/golang-jwt/jwt/v5"
)

// Claims JWT клеймы, которые выдает сервис аккаунтов
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenValidator проверяет HS256 токены
type TokenValidator struct {
	secret    []byte
	issuer    string
	adminRole string
}

func NewTokenValidator(cfg *config.Config) (*TokenValidator, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	return &TokenValidator{
		secret:    []byte(cfg.Auth.JWTSecret),
		issuer:    cfg.Auth.Issuer,
		adminRole: cfg.Auth.AdminRole,
	}, nil
}

// GenerateToken выпускает токен. Используется командой token и в тестах.
func (v *TokenValidator) GenerateToken(userID, email, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken разбирает токен и возвращает личность пользователя
func (v *TokenValidator) ValidateToken(tokenString string) (*Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.ErrUnauthorized, err.Error())
	}
	if !token.Valid {
		return nil, errdefs.Wrap(errdefs.ErrUnauthorized, "invalid token")
	}
	if strings.TrimSpace(claims.Email) == "" {
		return nil, errdefs.Wrap(errdefs.ErrUnauthorized, "token has no email")
	}

	return &Identity{
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   claims.Role,
		admin:  strings.EqualFold(claims.Role, v.adminRole),
	}, nil
}
