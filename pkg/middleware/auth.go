package middleware

import (
	"context"
	"strings"

	"github.com/KeremAR/Microservice/pkg/apperr"

	"github.com/gin-gonic/gin"
)

const PrincipalIDKey = "principal_id"

// TokenVerifier resolves a bearer token to the principal it was issued for.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (string, error)
}

// BearerAuth rejects requests without a valid "Authorization: Bearer" token
// and stores the verified principal id on the Gin context.
func BearerAuth(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abort(c, apperr.ErrUnauthorized.WithMessage("Missing bearer token"))
			return
		}

		principalID, err := v.VerifyToken(c.Request.Context(), token)
		if err != nil || principalID == "" {
			abort(c, apperr.ErrUnauthorized.WithMessage("Invalid or expired token"))
			return
		}

		c.Set(PrincipalIDKey, principalID)
		c.Next()
	}
}

// GetPrincipalID returns the principal id set by BearerAuth.
func GetPrincipalID(c *gin.Context) string {
	return c.GetString(PrincipalIDKey)
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func abort(c *gin.Context, err *apperr.Error) {
	c.AbortWithStatusJSON(err.Status, apperr.ToBody(err))
}
