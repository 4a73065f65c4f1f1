package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aydetodd/todocerca-tracking/internal/presence"
)

// GetPresence returns a subject's current availability state.
func (h *Handler) GetPresence(c *gin.Context) {
	subjectID := c.Param("subject_id")
	state := h.presence.Get(c.Request.Context(), subjectID)
	c.JSON(http.StatusOK, gin.H{"subject_id": subjectID, "state": state})
}

type putPresenceRequest struct {
	SubjectID string `json:"subject_id" binding:"required"`
	State     string `json:"state" binding:"required"`
}

// PutPresence changes the caller's own availability state. A change
// attempted on someone else's behalf is rejected outright.
func (h *Handler) PutPresence(c *gin.Context) {
	var req putPresenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	st := presence.State(req.State)
	if !st.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "state must be available, busy or offline"})
		return
	}

	actor := c.GetHeader(subjectHeader)
	err := h.presence.Set(c.Request.Context(), actor, req.SubjectID, st)
	if err != nil {
		if errors.Is(err, presence.ErrUnauthorized) {
			c.JSON(http.StatusForbidden, gin.H{"error": "only the subject may change its presence"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "presence update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"subject_id": req.SubjectID, "state": st})
}
