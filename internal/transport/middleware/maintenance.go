package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/ds124wfegd/courseportal/internal/entity"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type MaintenanceReader interface {
	GetMaintenance(ctx context.Context) (*entity.MaintenanceState, error)
}

// Maintenance answers 503 while the maintenance switch is on. Staff users
// and the exempt path prefixes always pass. Must run after Authenticate.
func Maintenance(content MaintenanceReader, exempt ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, prefix := range exempt {
			if path == prefix || strings.HasPrefix(path, prefix+"/") {
				c.Next()
				return
			}
		}
		if user, ok := CurrentUser(c); ok && user.Role.IsStaff() {
			c.Next()
			return
		}

		state, err := content.GetMaintenance(c.Request.Context())
		if err != nil {
			// Fail open.
			logrus.WithError(err).Warn("Failed to read maintenance state")
			c.Next()
			return
		}
		if state.Active {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"success": false,
				"error":   entity.ErrMaintenance.Error(),
			})
			return
		}
		c.Next()
	}
}
