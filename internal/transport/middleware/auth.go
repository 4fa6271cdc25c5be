package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ds124wfegd/courseportal/internal/auth"
	"github.com/ds124wfegd/courseportal/internal/entity"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const userKey = "current_user"

// UserLoader resolves the subject of a session token.
type UserLoader interface {
	GetUserByID(ctx context.Context, id string) (*entity.User, error)
}

// Authenticate reads a session token from the Authorization header or the
// session cookie and stores the user in the context. Requests without a
// token continue anonymously; a bad token is rejected with 401.
func Authenticate(tokens *auth.TokenManager, users UserLoader, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c)
		if tokenStr == "" && cookieName != "" {
			tokenStr, _ = c.Cookie(cookieName)
		}
		if tokenStr == "" {
			c.Next()
			return
		}

		claims, err := tokens.Parse(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid token"})
			return
		}

		user, err := users.GetUserByID(c.Request.Context(), claims.Subject)
		if errors.Is(err, entity.ErrUserNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid token"})
			return
		}
		if err != nil {
			logrus.WithError(err).WithField("user_id", claims.Subject).Error("Failed to load session user")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal server error"})
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

// RequireUser rejects anonymous requests.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": entity.ErrUnauthorized.Error()})
			return
		}
		c.Next()
	}
}

// RequireStaff lets only admins and developers through.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": entity.ErrUnauthorized.Error()})
			return
		}
		if !user.Role.IsStaff() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": entity.ErrForbidden.Error()})
			return
		}
		c.Next()
	}
}

func CurrentUser(c *gin.Context) (*entity.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*entity.User)
	return user, ok && user != nil
}

func bearerToken(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if len(authz) < len("bearer ") || !strings.EqualFold(authz[:len("bearer ")], "bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[len("bearer "):])
}
