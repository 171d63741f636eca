package httpapi

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
)

const (
	defaultHeartbeatInterval = 15 * time.Second

	eventUpdate    = "update"
	eventHeartbeat = "heartbeat"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// stream writes every record as a server-sent event until the client goes away or updates is closed.
func stream[R any](c *gin.Context, updates <-chan R, heartbeat time.Duration) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	// headers go out before the first update
	c.Status(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(_ io.Writer) bool {
		select {
		case record, ok := <-updates:
			if !ok {
				return false
			}

			data, err := json.Marshal(record)
			if err != nil {
				return false
			}

			c.SSEvent(eventUpdate, string(data))

			return true

		case <-ticker.C:
			c.SSEvent(eventHeartbeat, "")
			return true

		case <-c.Request.Context().Done():
			return false
		}
	})
}
