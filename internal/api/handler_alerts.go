package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetAlerts lists a group's alerts, newest first. ?unresolved=true narrows
// to open ones.
func (h *Handler) GetAlerts(c *gin.Context) {
	groupID := c.Query("group_id")
	if groupID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group_id is required"})
		return
	}
	unresolvedOnly := c.Query("unresolved") == "true"

	alerts, err := h.store.AlertsByGroup(c.Request.Context(), groupID, unresolvedOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "alert query failed"})
		return
	}
	c.JSON(http.StatusOK, alerts)
}

// ReadAlert flags an alert as read.
func (h *Handler) ReadAlert(c *gin.Context) {
	if err := h.store.MarkAlertRead(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "alert update failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// ResolveAlert flags an alert as resolved. Alerts are never deleted.
func (h *Handler) ResolveAlert(c *gin.Context) {
	if err := h.store.ResolveAlert(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "alert update failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
