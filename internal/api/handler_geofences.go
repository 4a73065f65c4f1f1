package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aydetodd/todocerca-tracking/internal/geo"
	"github.com/aydetodd/todocerca-tracking/internal/geofence"
	"github.com/aydetodd/todocerca-tracking/internal/model"
)

type geofenceRequest struct {
	GroupID      string      `json:"group_id" binding:"required"`
	Name         string      `json:"name"`
	Kind         string      `json:"kind" binding:"required,oneof=circle polygon"`
	CenterLat    float64     `json:"center_lat"`
	CenterLng    float64     `json:"center_lng"`
	RadiusM      float64     `json:"radius_m"`
	Vertices     []geo.LatLng `json:"vertices"`
	AlertOnEnter bool        `json:"alert_on_enter"`
	AlertOnExit  bool        `json:"alert_on_exit"`
	IsActive     *bool       `json:"is_active"`
}

func (r *geofenceRequest) toModel(id string) (model.Geofence, error) {
	g := model.Geofence{
		ID:           id,
		GroupID:      r.GroupID,
		Name:         r.Name,
		Kind:         r.Kind,
		AlertOnEnter: r.AlertOnEnter,
		AlertOnExit:  r.AlertOnExit,
		IsActive:     true,
	}
	if r.IsActive != nil {
		g.IsActive = *r.IsActive
	}

	switch r.Kind {
	case model.GeofenceCircle:
		center := geo.LatLng{Lat: r.CenterLat, Lng: r.CenterLng}
		if !center.Valid() || r.RadiusM <= 0 {
			return g, errors.New("circle requires a valid center and a positive radius")
		}
		g.CenterLat, g.CenterLng, g.RadiusM = r.CenterLat, r.CenterLng, r.RadiusM
	case model.GeofencePolygon:
		if len(r.Vertices) < 3 {
			return g, errors.New("polygon requires at least three vertices")
		}
		for _, v := range r.Vertices {
			if !v.Valid() {
				return g, errors.New("polygon vertex out of range")
			}
		}
		raw, err := geofence.EncodeVertices(r.Vertices)
		if err != nil {
			return g, err
		}
		g.Vertices = raw
	}
	return g, nil
}

// requireGroupOwner checks that the caller owns the fence's group.
func (h *Handler) requireGroupOwner(c *gin.Context, groupID string) bool {
	group, err := h.store.GetGroup(c.Request.Context(), groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "group lookup failed"})
		}
		return false
	}
	if c.GetHeader(subjectHeader) != group.OwnerID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the group owner may manage geofences"})
		return false
	}
	return true
}

// PostGeofence creates a geofence for a group the caller owns.
func (h *Handler) PostGeofence(c *gin.Context) {
	var req geofenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.requireGroupOwner(c, req.GroupID) {
		return
	}

	g, err := req.toModel(uuid.NewString())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.store.SaveGeofence(c.Request.Context(), g); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "geofence save failed"})
		return
	}
	c.JSON(http.StatusCreated, g)
}

// PutGeofence replaces an existing geofence definition.
func (h *Handler) PutGeofence(c *gin.Context) {
	var req geofenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.requireGroupOwner(c, req.GroupID) {
		return
	}

	g, err := req.toModel(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.store.SaveGeofence(c.Request.Context(), g); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "geofence save failed"})
		return
	}
	c.JSON(http.StatusOK, g)
}

// DeleteGeofence removes a geofence and its assignments.
func (h *Handler) DeleteGeofence(c *gin.Context) {
	id := c.Param("id")

	var g model.Geofence
	if err := h.store.DB().First(&g, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "geofence not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "geofence lookup failed"})
		return
	}
	if !h.requireGroupOwner(c, g.GroupID) {
		return
	}

	if err := h.store.DeleteGeofence(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "geofence delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

type assignmentsRequest struct {
	SubjectIDs []string `json:"subject_ids"`
}

// PutGeofenceAssignments replaces the set of devices a fence applies to.
func (h *Handler) PutGeofenceAssignments(c *gin.Context) {
	id := c.Param("id")

	var g model.Geofence
	if err := h.store.DB().First(&g, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "geofence not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "geofence lookup failed"})
		return
	}
	if !h.requireGroupOwner(c, g.GroupID) {
		return
	}

	var req assignmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.store.ReplaceGeofenceAssignments(c.Request.Context(), id, req.SubjectIDs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "assignment update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"geofence_id": id, "assigned": len(req.SubjectIDs)})
}

// GetGroupGeofences lists a group's geofences.
func (h *Handler) GetGroupGeofences(c *gin.Context) {
	fences, err := h.store.GeofencesByGroup(c.Request.Context(), c.Param("group_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "geofence query failed"})
		return
	}
	c.JSON(http.StatusOK, fences)
}
