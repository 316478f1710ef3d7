package handlers_visits

import (
	"context"
	"net/http"
	"portfolio/internal/models/pfresolver"
	"portfolio/internal/models/pftracker"
	"time"

	"github.com/gin-gonic/gin"
)

const trackTimeout = 10 * time.Second

type Tracker interface {
	Track(ctx context.Context, caller pfresolver.Caller) pftracker.Result
}

type VisitsHandler struct {
	tracker Tracker
}

func NewVisitsHandler(tracker Tracker) *VisitsHandler {
	return &VisitsHandler{tracker: tracker}
}

type beaconRequest struct {
	IP string `json:"ip"`
}

// Beacon reçoit l'IP publique obtenue par le navigateur et applique la politique
// d'enregistrement de façon synchrone
func (h *VisitsHandler) Beacon(c *gin.Context) {
	var req beaconRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "requête invalide"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), trackTimeout)
	defer cancel()

	res := h.tracker.Track(ctx, pfresolver.Caller{
		ReportedIP: req.IP,
		RemoteIP:   c.ClientIP(),
	})

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, res)
}
