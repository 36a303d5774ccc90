package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/edupay/institute-ledger-api/internal/authz"
	"github.com/edupay/institute-ledger-api/internal/models"
	"github.com/edupay/institute-ledger-api/internal/service"
	appErrors "github.com/edupay/institute-ledger-api/pkg/errors"
	"github.com/edupay/institute-ledger-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

// CapabilityHeader carries an institute capability token. It is an
// alternative credential to the bearer token for machine integrations.
const CapabilityHeader = "X-Institute-Token"

// JWT protects routes by requiring a valid access token.
func JWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

// OptionalJWT attaches claims when present but does not block. Routes behind
// it can still authorize via the capability header alone.
func OptionalJWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.Next()
			return
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			c.Next()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

// Actor assembles the authorization actor from the request: the principal
// from JWT claims (when present) and the capability token from its header.
func Actor(c *gin.Context) authz.Actor {
	actor := authz.Actor{Capability: c.GetHeader(CapabilityHeader)}
	if claimsValue, exists := c.Get(ContextUserKey); exists {
		if claims, ok := claimsValue.(*models.JWTClaims); ok {
			actor.Principal = claims.PrincipalID
		}
	}
	return actor
}
