package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"project-hub/internal/models"
)

const (
	ContextUserID   = "userID"
	ContextUserName = "userName"
)

// TokenValidator resolves a bearer token to a principal.
type TokenValidator interface {
	Validate(token string) (models.Principal, error)
}

// AuthMiddleware validates the bearer token (header or "token" cookie) and
// stores the principal on the context.
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		principal, err := validator.Validate(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ContextUserID, principal.ID)
		c.Set(ContextUserName, principal.Name)
		c.Next()
	}
}

// PrincipalFrom returns the principal stored by AuthMiddleware.
func PrincipalFrom(c *gin.Context) (models.Principal, bool) {
	id := c.GetString(ContextUserID)
	if id == "" {
		return models.Principal{}, false
	}
	return models.Principal{ID: id, Name: c.GetString(ContextUserName)}, true
}

func bearerToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", false
		}
		return strings.TrimSpace(parts[1]), true
	}
	if cookie, err := c.Cookie("token"); err == nil && cookie != "" {
		return cookie, true
	}
	return "", false
}
