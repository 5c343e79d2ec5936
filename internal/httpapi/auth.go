package httpapi

import (
	"net/http"
	"time"

	"callme/internal/auth"
	"callme/internal/users"
	"callme/internal/verify"
	"callme/pkg/logger"

	"github.com/gin-gonic/gin"
)

// nowFn is swapped in tests that need stable token timestamps.
var nowFn = time.Now

type phoneRequest struct {
	Phone string `json:"phone" binding:"required"`
}

type checkRequest struct {
	Phone string `json:"phone" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Register gets or creates the user for phone and issues tokens. Outside local
// setups the number must be proven through /verify/check instead.
func (h Handlers) Register(c *gin.Context) {
	if !h.AllowUnverifiedRegister {
		fail(c, http.StatusForbidden, "phone verification required")
		return
	}
	var req phoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "phone required")
		return
	}
	h.login(c, req.Phone)
}

// Refresh trades a refresh token for a new pair. The role is resolved again so
// role changes apply without a new login.
func (h Handlers) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "refreshToken required")
		return
	}
	claims, err := h.Auth.Verify(req.RefreshToken, auth.TokenTypeRefresh, nowFn())
	if err != nil {
		fail(c, http.StatusUnauthorized, "invalid token")
		return
	}
	pair, ok := h.issueTokens(c, claims.Phone)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "tokens": pair})
}

func (h Handlers) VerifyStart(c *gin.Context) {
	if h.Verifier == nil {
		failErr(c, verify.ErrNotConfigured)
		return
	}
	var req phoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "phone required")
		return
	}
	phone, err := users.NormalizePhone(req.Phone)
	if err != nil {
		failErr(c, err)
		return
	}
	if err := h.Verifier.Start(c.Request.Context(), phone); err != nil {
		failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// VerifyCheck registers the user and issues tokens once the code is approved.
func (h Handlers) VerifyCheck(c *gin.Context) {
	if h.Verifier == nil {
		failErr(c, verify.ErrNotConfigured)
		return
	}
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "phone and code required")
		return
	}
	phone, err := users.NormalizePhone(req.Phone)
	if err != nil {
		failErr(c, err)
		return
	}
	approved, err := h.Verifier.Check(c.Request.Context(), phone, req.Code)
	if err != nil {
		failErr(c, err)
		return
	}
	if !approved {
		fail(c, http.StatusUnauthorized, "code not correct")
		return
	}
	h.login(c, phone)
}

func (h Handlers) login(c *gin.Context, rawPhone string) {
	u, created, err := h.Users.Register(c.Request.Context(), rawPhone)
	if err != nil {
		failErr(c, err)
		return
	}
	if created {
		logger.FromGin(c).Info("user registered", "phone", u.Phone)
	}
	pair, ok := h.issueTokens(c, u.Phone)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": u, "tokens": pair})
}
