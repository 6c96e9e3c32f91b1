package channel

import (
	"fmt"
	"net/http"
	"time"

	"github.com/abduss/shopdrop/internal/auth"
	"github.com/abduss/shopdrop/internal/config"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the dashboard event stream under a group guarded by auth.Middleware.
func RegisterRoutes(group *gin.RouterGroup, registry *Registry, cfg config.EventsConfig) {
	handler := &httpHandler{registry: registry, cfg: cfg}
	group.GET("/events", handler.stream)
}

type httpHandler struct {
	registry *Registry
	cfg      config.EventsConfig
}

func (h *httpHandler) stream(c *gin.Context) {
	tenantID, ok := auth.TenantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sub := NewStreamSubscriber(h.cfg.BufferSize)
	h.registry.Join(tenantID, sub)
	defer h.registry.OnDisconnect(sub)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	c.SSEvent("connected", gin.H{"subscriberId": sub.ID(), "tenantId": tenantID})
	c.Writer.Flush()

	var heartbeat <-chan time.Time
	if h.cfg.Heartbeat > 0 {
		ticker := time.NewTicker(h.cfg.Heartbeat)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			return
		case <-sub.Done():
			// evicted after a failed delivery
			return
		case event := <-sub.Events():
			c.SSEvent(event.Type, event)
			c.Writer.Flush()
		case <-heartbeat:
			if _, err := fmt.Fprint(c.Writer, ": heartbeat\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}
