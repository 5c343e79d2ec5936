package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"callme/internal/auth"
	"callme/internal/config"
	"callme/internal/gateway"
	"callme/internal/httpapi"
	"callme/internal/moments"
	"callme/internal/presence"
	"callme/internal/rbac"
	"callme/internal/signaling"
	"callme/internal/status"
	"callme/internal/users"
	"callme/pkg/logger"

	"github.com/gin-gonic/gin"
)

func newRouter(t *testing.T) (*gin.Engine, *auth.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	am, err := auth.NewManager(config.AuthConfig{JWTSecret: "s", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	us := users.NewService(users.NewMemoryRepo())
	reg := presence.NewRegistry()
	core := signaling.NewCore(reg, us, signaling.DefaultChannels(reg, nil, nil, time.Second))
	hub := gateway.NewHub(core, gateway.Config{}, logger.Discard())
	st := status.NewService(us, hub, time.Minute, logger.Discard())
	t.Cleanup(st.Stop)

	h := httpapi.Handlers{
		Auth:    am,
		Roles:   rbac.NewResolver(nil, nil),
		Users:   us,
		Status:  st,
		Moments: moments.NewService(moments.NewMemoryRepo()),
	}
	r := gin.New()
	registerRoutes(r, h, auth.RequireAccessToken(am), hub)
	return r, am
}

func serve(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRoutes_PublicAndProtected(t *testing.T) {
	r, am := newRouter(t)

	if w := serve(r, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
		t.Fatalf("healthz: %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/metrics", ""); w.Code != http.StatusOK {
		t.Fatalf("metrics: %d", w.Code)
	}
	if w := serve(r, http.MethodPost, "/verify/start", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("verify without provider: %d", w.Code)
	}
	for _, path := range []string{"/me", "/status/get", "/moment", "/ws"} {
		if w := serve(r, http.MethodGet, path, ""); w.Code != http.StatusUnauthorized {
			t.Fatalf("%s without token: %d", path, w.Code)
		}
	}

	pair, err := am.IssuePair(time.Now(), "+491", rbac.RoleUser)
	if err != nil {
		t.Fatal(err)
	}
	if w := serve(r, http.MethodGet, "/moment", pair.AccessToken); w.Code != http.StatusOK {
		t.Fatalf("moment list: %d", w.Code)
	}
	if w := serve(r, http.MethodPost, "/moment/push-broadcast", pair.AccessToken); w.Code != http.StatusForbidden {
		t.Fatalf("broadcast as user: %d", w.Code)
	}
}
