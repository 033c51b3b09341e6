package middleware

import (
	"net/http"

	"eventshare-engine/pkg/errutil"

	"github.com/gin-gonic/gin"
)

// Error renders domain errors collected by handlers as JSON with the
// mapped HTTP status.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		err := c.Errors.Last()
		if err == nil {
			return
		}

		if v, ok := err.Err.(errutil.BaseError); ok {
			c.JSON(v.Code.HTTPStatus(), v.JSON())
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": errutil.StatusInternal, "message": err.Error()},
		})
	}
}
