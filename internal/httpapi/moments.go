package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"callme/internal/moments"
	"callme/pkg/logger"

	"github.com/gin-gonic/gin"
)

type reactRequest struct {
	MomentID string `json:"momentId" binding:"required"`
	Emoji    string `json:"emoji" binding:"required"`
}

func (h Handlers) CreateMoment(c *gin.Context) {
	phone, ok := callerPhone(c)
	if !ok {
		return
	}
	var req moments.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	m, err := h.Moments.Create(c.Request.Context(), phone, req)
	if err != nil {
		failErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "moment": m})
}

// ListMoments pages with ?limit= and ?before=<RFC3339>.
func (h Handlers) ListMoments(c *gin.Context) {
	phone, ok := callerPhone(c)
	if !ok {
		return
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fail(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	var before time.Time
	if v := c.Query("before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			fail(c, http.StatusBadRequest, "before must be RFC3339")
			return
		}
		before = t
	}
	list, err := h.Moments.List(c.Request.Context(), phone, limit, before)
	if err != nil {
		failErr(c, err)
		return
	}
	if list == nil {
		list = []moments.Moment{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "moments": list})
}

func (h Handlers) React(c *gin.Context) {
	phone, ok := callerPhone(c)
	if !ok {
		return
	}
	var req reactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "momentId and emoji required")
		return
	}
	res, err := h.Moments.ToggleReaction(c.Request.Context(), req.MomentID, phone, req.Emoji)
	if err != nil {
		failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"reactions":      res.Reactions,
		"totalReactions": res.TotalReactions,
	})
}

// PushBroadcast sends the moment invite. RBAC: scheduler or admin.
func (h Handlers) PushBroadcast(c *gin.Context) {
	res, err := h.Invites.Broadcast(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	logger.FromGin(c).Info("moment invites sent", "sent", res.Sent)
	if res.Sent == 0 {
		c.JSON(http.StatusOK, gin.H{"success": true, "sent": 0, "message": "no users selected"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "sent": res.Sent})
}
