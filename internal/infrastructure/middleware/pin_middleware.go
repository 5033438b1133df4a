package middleware

import (
	"net/http"

	"playcast/pkg/errors"
	"playcast/pkg/settings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const pinHeader = "X-Playcast-PIN"

// PINGuardMiddleware rejects requests whose PIN header does not match
// the host PIN. An empty PIN disables the guard, mirroring how the
// signaling upgrade treats it.
func PINGuardMiddleware(store *settings.Store, logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		pin := store.PIN()
		if pin == "" {
			c.Next()
			return
		}

		got := c.GetHeader(pinHeader)
		if got == "" {
			got = c.Query("pin")
		}
		if got != pin {
			logger.Warnw("rejected request with wrong pin",
				"path", c.Request.URL.Path,
				"remote", c.ClientIP(),
				"request_id", c.GetString(requestIDKey),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   string(errors.ErrCodeUnauthorized),
				"message": "invalid pin",
			})
			return
		}
		c.Next()
	}
}
