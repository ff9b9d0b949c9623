package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pageza/foodgram/backend/internal/apperror"
	"github.com/pageza/foodgram/backend/internal/logging"
	"github.com/pageza/foodgram/backend/internal/types"
)

const (
	userIDKey   = "user_id"
	usernameKey = "username"
	claimsKey   = "claims"

	msgNoCredentials = "Authentication credentials were not provided."
)

// TokenValidator is an interface for validating JWT tokens
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*types.TokenClaims, error)
}

// AuthMiddleware rejects requests without a valid token.
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return authenticate(validator, true)
}

// OptionalAuth identifies the caller when a token is present and lets
// anonymous requests through. A malformed or revoked token is still rejected.
func OptionalAuth(validator TokenValidator) gin.HandlerFunc {
	return authenticate(validator, false)
}

func authenticate(validator TokenValidator, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			if required {
				abortJSON(c, http.StatusUnauthorized, "unauthorized", msgNoCredentials)
				return
			}
			c.Next()
			return
		}

		scheme, token, ok := strings.Cut(strings.TrimSpace(authHeader), " ")
		token = strings.TrimSpace(token)
		if !ok || token == "" || !(strings.EqualFold(scheme, "Token") || strings.EqualFold(scheme, "Bearer")) {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "Invalid authorization header.")
			return
		}

		claims, err := validator.ValidateToken(c.Request.Context(), token)
		if err != nil {
			var appErr *apperror.AppError
			if errors.As(err, &appErr) && errors.Is(err, apperror.ErrUnauthorized) {
				abortJSON(c, http.StatusUnauthorized, "unauthorized", appErr.Message)
				return
			}
			logging.Ctx(c.Request.Context()).Error().Err(err).Msg("token validation failed")
			abortJSON(c, http.StatusInternalServerError, "internal_error", "Internal server error.")
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Set(usernameKey, claims.Username)
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// CurrentUserID returns the authenticated user id, or 0 for anonymous callers.
func CurrentUserID(c *gin.Context) uint {
	id, _ := c.Get(userIDKey)
	uid, _ := id.(uint)
	return uid
}

// CurrentClaims returns the validated token claims, if any.
func CurrentClaims(c *gin.Context) *types.TokenClaims {
	v, _ := c.Get(claimsKey)
	claims, _ := v.(*types.TokenClaims)
	return claims
}

func abortJSON(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": code, "message": message})
}
