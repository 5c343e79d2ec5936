package httpapi

import (
	"net/http"
	"strings"

	"callme/internal/users"

	"github.com/gin-gonic/gin"
)

type setStatusRequest struct {
	IsAvailable *bool `json:"isAvailable" binding:"required"`
}

type confirmRequest struct {
	Mood string `json:"mood"`
}

func (h Handlers) SetStatus(c *gin.Context) {
	phone, ok := callerPhone(c)
	if !ok {
		return
	}
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsAvailable == nil {
		fail(c, http.StatusBadRequest, "isAvailable required")
		return
	}
	u, err := h.Status.Set(c.Request.Context(), phone, *req.IsAvailable)
	if err != nil {
		failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": u})
}

// GetStatus answers for ?phone= when given, otherwise for the caller.
func (h Handlers) GetStatus(c *gin.Context) {
	phone, ok := callerPhone(c)
	if !ok {
		return
	}
	if q := strings.TrimSpace(c.Query("phone")); q != "" {
		p, err := users.NormalizePhone(q)
		if err != nil {
			failErr(c, err)
			return
		}
		phone = p
	}
	a, err := h.Status.Get(c.Request.Context(), phone)
	if err != nil {
		failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"isAvailable": a.IsAvailable,
		"mood":        a.Mood,
		"lastOnline":  a.LastOnline,
	})
}

func (h Handlers) ConfirmMoment(c *gin.Context) {
	phone, ok := callerPhone(c)
	if !ok {
		return
	}
	var req confirmRequest
	// The body is optional; mood may be omitted.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "invalid json")
			return
		}
	}
	u, expiresAt, err := h.Status.ConfirmMoment(c.Request.Context(), phone, strings.TrimSpace(req.Mood))
	if err != nil {
		failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": u, "expiresAt": expiresAt})
}
