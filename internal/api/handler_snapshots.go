package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/aydetodd/todocerca-tracking/internal/fanout"
)

// GetProviders returns the current snapshot of all active providers.
func (h *Handler) GetProviders(c *gin.Context) {
	snaps, err := h.store.ActiveSnapshots(c.Request.Context(), "")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to load snapshot"})
		return
	}
	c.JSON(http.StatusOK, snaps)
}

// GetGroupMembers returns the current snapshot of one group's members.
func (h *Handler) GetGroupMembers(c *gin.Context) {
	snaps, err := h.store.ActiveSnapshots(c.Request.Context(), c.Param("group_id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to load snapshot"})
		return
	}
	c.JSON(http.StatusOK, snaps)
}

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

// LiveStream upgrades to a websocket and streams snapshot updates for the
// requested scope (all providers, or ?group_id=G) until the client leaves.
func (h *Handler) LiveStream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return
	}
	defer conn.Close()

	sub := h.hub.Subscribe(fanout.Scope{GroupID: c.Query("group_id")})
	defer sub.Close()

	// Reader goroutine: the client sends nothing meaningful, but reads are
	// needed to notice the close handshake.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case snaps := <-sub.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(gin.H{"type": "snapshot", "subjects": snaps}); err != nil {
				log.Printf("live stream write failed: %v", err)
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
