package main

import (
	"callme/internal/gateway"
	"callme/internal/httpapi"
	"callme/internal/rbac"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc, hub *gateway.Hub) {
	// public
	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/refresh", h.Refresh)
	}

	// SMS verification answers 503 when Twilio is not configured.
	verifyGroup := r.Group("/verify")
	{
		verifyGroup.POST("/start", h.VerifyStart)
		verifyGroup.POST("/check", h.VerifyCheck)
	}

	// protected
	p := r.Group("/")
	p.Use(authMW)
	{
		p.GET("/me", h.Me)
		p.POST("/me/update", h.UpdateMe)
		p.POST("/me/push-token", h.SetPushToken)
		p.POST("/contacts/match", h.MatchContacts)

		p.POST("/status/set", h.SetStatus)
		p.GET("/status/get", h.GetStatus)

		p.GET("/ws", hub.Handler())
	}

	moment := p.Group("/moment")
	{
		moment.POST("", h.CreateMoment)
		moment.GET("", h.ListMoments)
		moment.POST("/confirm", h.ConfirmMoment)
		moment.POST("/react", h.React)

		// Broadcasts are triggered by a scheduler account, not by end users.
		moment.POST("/push-broadcast", rbac.RequireAnyRole(rbac.RoleScheduler), h.PushBroadcast)
	}
}
