package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"hospital-followup-server/internal/utils"
)

// Recovery turns panics into a 500 response.
func Recovery(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				var stack [4096]byte
				n := runtime.Stack(stack[:], false)

				logger.Error().
					Str("request_id", GetRequestID(c)).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(stack[:n])).
					Msg("panic recovered")

				utils.Error(c, http.StatusInternalServerError, utils.KindInternal, "Internal server error")
			}
		}()
		c.Next()
	}
}
