package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/richxcame/fraud-screening/pkg/common"
	"github.com/richxcame/fraud-screening/pkg/jwtkeys"
)

const (
	// UserIDKey is the gin context key holding the verified caller ID.
	UserIDKey = "user_id"
	// UserEmailKey is the gin context key holding the caller's email.
	UserEmailKey = "user_email"
	// UserRoleKey is the gin context key holding the caller's role.
	UserRoleKey = "user_role"
)

// Claims is the JWT payload carried by API callers.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Role   string    `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddlewareWithProvider validates bearer tokens against the provider's
// signing keys and stores the verified identity on the request context.
// Tokens carry the signing key ID in their kid header; tokens without one
// fall back to the provider's legacy key.
func AuthMiddlewareWithProvider(provider jwtkeys.KeyProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if strings.TrimSpace(header) == "" {
			common.ErrorResponse(c, http.StatusUnauthorized, "authorization header is required")
			c.Abort()
			return
		}

		parts := strings.Split(header, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			common.ErrorResponse(c, http.StatusUnauthorized, "authorization header must be of the form: Bearer <token>")
			c.Abort()
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}

			kid, _ := token.Header["kid"].(string)
			key, err := provider.ResolveKey(kid)
			if err == nil {
				return key, nil
			}
			if errors.Is(err, jwtkeys.ErrKeyNotFound) {
				if legacy := provider.LegacyKey(); len(legacy) > 0 {
					return legacy, nil
				}
			}
			return nil, err
		})
		if err != nil || !token.Valid {
			common.ErrorResponse(c, http.StatusUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UserEmailKey, claims.Email)
		c.Set(UserRoleKey, claims.Role)

		c.Next()
	}
}

// GetUserID extracts the verified caller ID set by the auth middleware.
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	value, exists := c.Get(UserIDKey)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := value.(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}
