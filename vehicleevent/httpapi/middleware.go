package httpapi

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/rkamradt/vehicleevent/vehicleevent/shared/shell"
)

// RequestContext reads x-request-id, x-client-id and x-origin, fills in the defaults and
// puts the result on the request context. The request id is echoed in the response.
func RequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		rc := shell.BuildRequestContext(
			c.GetHeader(shell.HeaderRequestID),
			c.GetHeader(shell.HeaderClientID),
			c.GetHeader(shell.HeaderOrigin),
		)

		c.Request = c.Request.WithContext(shell.WithRequestContext(c.Request.Context(), rc))
		c.Header(shell.HeaderRequestID, rc.RequestID)
		c.Next()
	}
}

// CORS allows the given origins, or every origin when none are given.
func CORS(origins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", shell.HeaderRequestID, shell.HeaderClientID, shell.HeaderOrigin},
		ExposeHeaders: []string{shell.HeaderRequestID},
	}

	if len(origins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}

	return cors.New(config)
}
