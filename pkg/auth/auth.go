package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is carried in the session and its token. Console sign-in always
// yields Admin; the other roles exist in the fleet's account model.
type Role string

const (
	RoleAdmin  Role = "Admin"
	RoleVendor Role = "Vendor"
	RoleDriver Role = "Driver"
	RoleClient Role = "Client"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleVendor, RoleDriver, RoleClient:
		return true
	}
	return false
}

var ErrInvalidToken = errors.New("invalid token")

type contextKey string

const claimsKey = contextKey("claims")

type AppClaims struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
	jwt.RegisteredClaims
}

// JWTManager handles generating and verifying session tokens.
type JWTManager struct {
	secretKey     []byte
	tokenDuration time.Duration
}

func NewJWTManager(secretKey string, tokenDuration time.Duration) *JWTManager {
	return &JWTManager{[]byte(secretKey), tokenDuration}
}

func (m *JWTManager) GenerateToken(email string, role Role) (string, error) {
	now := time.Now()
	claims := AppClaims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "fleet-dashboard",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// ParseToken checks the token's validity and returns the claims.
func (m *JWTManager) ParseToken(tokenString string) (*AppClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if claims, ok := token.Claims.(*AppClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// AuthMiddleware verifies the bearer token and stores its claims on the request context.
func (m *JWTManager) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			writeError(w, http.StatusUnauthorized, "invalid authorization header")
			return
		}

		claims, err := m.ParseToken(parts[1])
		if err != nil {
			writeError(w, http.StatusUnauthorized, fmt.Sprintf("invalid token: %v", err))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *AppClaims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// GetClaims retrieves the AppClaims placed by AuthMiddleware.
func GetClaims(ctx context.Context) (*AppClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(*AppClaims)
	return claims, ok
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
