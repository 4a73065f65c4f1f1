package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aydetodd/todocerca-tracking/internal/model"
	"github.com/aydetodd/todocerca-tracking/internal/position"
	"github.com/aydetodd/todocerca-tracking/internal/sink"
)

type postPositionRequest struct {
	SubjectID  string    `json:"subject_id" binding:"required"`
	GroupID    string    `json:"group_id"`
	Latitude   float64   `json:"latitude" binding:"min=-90,max=90"`
	Longitude  float64   `json:"longitude" binding:"min=-180,max=180"`
	Accuracy   float64   `json:"accuracy"`
	Speed      float64   `json:"speed"`
	Course     float64   `json:"course"`
	RecordedAt time.Time `json:"recorded_at"`
}

// PostPosition ingests one fix reported by a device. The write funnels
// through the sink (throttled, upserted); geofence evaluation follows from
// the change event the sink publishes.
func (h *Handler) PostPosition(c *gin.Context) {
	var req postPositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fix := position.Fix{
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		Accuracy:   req.Accuracy,
		Speed:      req.Speed,
		Course:     req.Course,
		RecordedAt: req.RecordedAt,
	}
	if err := h.sink.Write(c.Request.Context(), req.SubjectID, req.GroupID, fix); err != nil {
		if errors.Is(err, sink.ErrInvalidCoordinates) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "location write failed"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "stored"})
}

type historyPointRequest struct {
	TrackerID  string    `json:"tracker_id" binding:"required"`
	RecordedAt time.Time `json:"recorded_at" binding:"required"`
	Latitude   float64   `json:"latitude" binding:"min=-90,max=90"`
	Longitude  float64   `json:"longitude" binding:"min=-180,max=180"`
	Speed      float64   `json:"speed"`
	Course     float64   `json:"course"`
}

// PostHistory ingests a batch of GPS hardware trail points. The trail is
// append-only; re-sent points are ignored.
func (h *Handler) PostHistory(c *gin.Context) {
	var reqs []historyPointRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(reqs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty batch"})
		return
	}

	points := make([]model.HistoryPoint, 0, len(reqs))
	for _, r := range reqs {
		points = append(points, model.HistoryPoint{
			TrackerID:  r.TrackerID,
			RecordedAt: r.RecordedAt.UTC(),
			Latitude:   r.Latitude,
			Longitude:  r.Longitude,
			Speed:      r.Speed,
			Course:     r.Course,
		})
	}
	if err := h.store.AppendHistory(c.Request.Context(), points); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history append failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"stored": len(points)})
}

// GetHistory returns the trail of one tracker inside a time range.
func (h *Handler) GetHistory(c *gin.Context) {
	trackerID := c.Param("tracker_id")

	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'from' timestamp, use RFC3339"})
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'to' timestamp, use RFC3339"})
		return
	}

	points, err := h.store.HistoryRange(c.Request.Context(), trackerID, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history query failed"})
		return
	}
	c.JSON(http.StatusOK, points)
}
