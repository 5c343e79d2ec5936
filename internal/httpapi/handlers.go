package httpapi

import (
	"context"
	"errors"
	"net/http"

	"callme/internal/auth"
	"callme/internal/invites"
	"callme/internal/moments"
	"callme/internal/rbac"
	"callme/internal/status"
	"callme/internal/users"
	"callme/internal/verify"
	"callme/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth    *auth.Manager
	Roles   *rbac.Resolver
	Users   *users.Service
	Status  *status.Service
	Moments *moments.Service
	Invites *invites.Service

	// Verifier is nil when SMS verification is not configured.
	Verifier verify.Verifier

	// AllowUnverifiedRegister lets /auth/register hand out tokens without an
	// SMS check. Only for local and dev setups without Twilio.
	AllowUnverifiedRegister bool

	// Health reports backing store readiness for /healthz.
	Health func(ctx context.Context) error
}

func (h Handlers) Healthz(c *gin.Context) {
	if h.Health != nil {
		if err := h.Health(c.Request.Context()); err != nil {
			logger.FromGin(c).Warn("health check failed", "err", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// callerPhone reads the identity injected by auth.RequireAccessToken.
func callerPhone(c *gin.Context) (string, bool) {
	phone, err := auth.Phone(c.Request.Context())
	if err != nil || phone == "" {
		fail(c, http.StatusUnauthorized, "phone required")
		return "", false
	}
	return phone, true
}

func fail(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"success": false, "error": msg})
}

// failErr maps service errors to status codes. Unknown errors are logged and
// reported without detail.
func failErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, users.ErrInvalidArgument),
		errors.Is(err, moments.ErrInvalidArgument),
		errors.Is(err, moments.ErrInvalidEmoji),
		errors.Is(err, verify.ErrInvalidArgument):
		fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, users.ErrNotFound):
		fail(c, http.StatusNotFound, "user not found")
	case errors.Is(err, moments.ErrNotFound):
		fail(c, http.StatusNotFound, "call moment not found")
	case errors.Is(err, invites.ErrQuietHours):
		fail(c, http.StatusForbidden, "quiet hours active")
	case errors.Is(err, invites.ErrBusy):
		fail(c, http.StatusConflict, "broadcast already running")
	case errors.Is(err, verify.ErrNotConfigured):
		fail(c, http.StatusServiceUnavailable, "verification not configured")
	case errors.Is(err, verify.ErrProvider):
		logger.FromGin(c).Warn("verification provider failed", "err", err)
		fail(c, http.StatusBadGateway, "verification provider unavailable")
	default:
		logger.FromGin(c).Error("request failed", "err", err)
		fail(c, http.StatusInternalServerError, "internal error")
	}
}

func (h Handlers) issueTokens(c *gin.Context, phone string) (auth.TokenPair, bool) {
	role := rbac.RoleUser
	if h.Roles != nil {
		role = h.Roles.RoleFor(phone)
	}
	pair, err := h.Auth.IssuePair(nowFn(), phone, role)
	if err != nil {
		logger.FromGin(c).Error("token issuance failed", "err", err)
		fail(c, http.StatusInternalServerError, "token issuance failed")
		return auth.TokenPair{}, false
	}
	return pair, true
}
