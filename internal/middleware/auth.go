package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bankportal/backend/internal/services"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const userIDKey contextKey = "userID"

var errRevoked = errors.New("token revoked")

// UserIDFromContext returns the authenticated subject set by Authenticator.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}

// WithUserID stores userID the way Authenticator does.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// Authenticator verifies HS256 bearer tokens. When a Redis client is set,
// tokens listed under "revoked:<jti>" are refused.
type Authenticator struct {
	secret []byte
	redis  *redis.Client
}

func NewAuthenticator(secret string, redis *redis.Client) *Authenticator {
	return &Authenticator{secret: []byte(secret), redis: redis}
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			services.SendErrorResponse(w, "Authorization header required", http.StatusUnauthorized, nil)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			services.SendErrorResponse(w, "Invalid authorization header format", http.StatusUnauthorized, nil)
			return
		}

		userID, err := a.validateToken(r.Context(), parts[1])
		if err != nil {
			services.SendErrorResponse(w, "Invalid token", http.StatusUnauthorized, nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

func (a *Authenticator) validateToken(ctx context.Context, tokenString string) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("jwt secret not configured")
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}

	userID, ok := claims["user_id"]
	if !ok || userID == nil {
		return "", errors.New("token has no user_id")
	}

	if jti, _ := claims["jti"].(string); jti != "" && a.redis != nil {
		n, err := a.redis.Exists(ctx, "revoked:"+jti).Result()
		if err != nil {
			return "", err
		}
		if n > 0 {
			return "", errRevoked
		}
	}

	switch v := userID.(type) {
	case string:
		return v, nil
	case float64:
		return fmt.Sprintf("%.0f", v), nil
	}
	return fmt.Sprintf("%v", userID), nil
}
