package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/aikokik/bookabl-api/pkg/response"
)

const (
	// AuthorizationHeader is the header carrying the bearer token
	AuthorizationHeader = "Authorization"
	// OwnerIDHeader is the development fallback for identifying the caller
	OwnerIDHeader = "X-Owner-ID"
	// ContextKeyOwnerID is the gin context key for the resolved owner
	ContextKeyOwnerID = "owner_id"
)

// Claims is the JWT payload this service accepts
type Claims struct {
	OwnerID string `json:"owner_id"`
	jwt.RegisteredClaims
}

// AuthConfig holds configuration for the auth middleware
type AuthConfig struct {
	Secret string
	Issuer string
	// AllowHeaderFallback accepts X-Owner-ID without a token. Development only.
	AllowHeaderFallback bool
}

// AuthMiddleware resolves the caller's owner ID from a bearer token and
// stores it in the gin context. Requests without a resolvable owner are
// rejected with 401.
func AuthMiddleware(cfg *AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(AuthorizationHeader)
		if header == "" {
			if cfg.AllowHeaderFallback {
				if ownerID := c.GetHeader(OwnerIDHeader); ownerID != "" {
					c.Set(ContextKeyOwnerID, ownerID)
					c.Next()
					return
				}
			}
			response.Unauthorized(c, "missing authorization")
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(header, "Bearer ")
		if tokenString == header {
			response.Unauthorized(c, "invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := parseToken(tokenString, cfg)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		ownerID := claims.OwnerID
		if ownerID == "" {
			ownerID = claims.Subject
		}
		if ownerID == "" {
			response.Unauthorized(c, "token carries no owner identity")
			c.Abort()
			return
		}

		c.Set(ContextKeyOwnerID, ownerID)
		c.Next()
	}
}

func parseToken(tokenString string, cfg *AuthConfig) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(cfg.Secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// GetOwnerID extracts the resolved owner ID from the gin context
func GetOwnerID(c *gin.Context) (string, bool) {
	v, exists := c.Get(ContextKeyOwnerID)
	if !exists {
		return "", false
	}
	ownerID, ok := v.(string)
	return ownerID, ok
}
