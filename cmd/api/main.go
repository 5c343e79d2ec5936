package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callme/internal/audit"
	"callme/internal/auth"
	"callme/internal/config"
	"callme/internal/gateway"
	"callme/internal/httpapi"
	"callme/internal/invites"
	"callme/internal/moments"
	"callme/internal/presence"
	"callme/internal/push"
	"callme/internal/rbac"
	"callme/internal/signaling"
	"callme/internal/status"
	"callme/internal/users"
	"callme/internal/verify"
	"callme/pkg/logger"
	"callme/pkg/utils"

	"github.com/gin-gonic/gin"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, cfg.PostgresDSN(), utils.PostgresPoolConfig{MaxOpenConns: cfg.DB.MaxConns})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	schema := append(append(append([]string{}, users.Schema...), moments.Schema...), audit.Schema...)
	if err := utils.Migrate(rootCtx, db, schema); err != nil {
		log.Error("postgres migrate failed", "err", err)
		os.Exit(1)
	}

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Providers. VoIP stays a nil interface when unconfigured so the channel
	// reports NotApplicable.
	expo := push.NewExpoClient(push.ExpoConfig{
		URL:         cfg.Push.ExpoURL,
		AccessToken: cfg.Push.ExpoAccessToken,
	}, nil)
	var voip push.Provider
	if cfg.Push.VoipEnabled() {
		vc, err := push.NewVoipClient(push.APNsConfig{
			KeyPath:    cfg.Push.APNSKeyPath,
			KeyID:      cfg.Push.APNSKeyID,
			TeamID:     cfg.Push.APNSTeamID,
			Topic:      cfg.Push.APNSTopic,
			Production: cfg.Push.APNSProduction,
		})
		if err != nil {
			log.Error("apns init failed", "err", err)
			os.Exit(1)
		}
		voip = vc
	}
	var verifier verify.Verifier
	if cfg.Twilio.Enabled() {
		tv, err := verify.NewTwilioVerifier(cfg.Twilio)
		if err != nil {
			log.Error("twilio init failed", "err", err)
			os.Exit(1)
		}
		verifier = tv
	}

	userSvc := users.NewService(users.NewPostgresRepo(db))
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))

	registry := presence.NewRegistry()
	core := signaling.NewCore(
		registry,
		userSvc,
		signaling.DefaultChannels(registry, voip, expo, cfg.Push.TTL),
		signaling.WithAuditor(auditSvc),
		signaling.WithLogger(log.With("component", "signaling")),
	)
	hub := gateway.NewHub(core, gateway.Config{
		RateLimit: cfg.Socket.RateLimit,
		RateBurst: cfg.Socket.RateBurst,
	}, log.With("component", "gateway"))

	statusSvc := status.NewService(userSvc, hub, cfg.Moments.Window, log.With("component", "status"))
	inviteSvc := invites.NewService(userSvc, expo, utils.NewRedisLocker(rdb, "callme:lock:"), invites.Config{
		QuietHoursStart: cfg.Moments.QuietHoursStart,
		QuietHoursEnd:   cfg.Moments.QuietHoursEnd,
		BatchSize:       cfg.Moments.InviteBatchSize,
		Location:        cfg.Location(),
		Window:          cfg.Moments.Window,
	}, log.With("component", "invites"))

	h := httpapi.Handlers{
		Auth:                    authManager,
		Roles:                   rbac.NewResolver(cfg.Auth.AdminPhones, cfg.Auth.SchedulerPhones),
		Users:                   userSvc,
		Status:                  statusSvc,
		Moments:                 moments.NewService(moments.NewPostgresRepo(db)),
		Invites:                 inviteSvc,
		Verifier:                verifier,
		AllowUnverifiedRegister: verifier == nil && !cfg.IsProduction(),
		Health: func(ctx context.Context) error {
			if err := utils.HealthCheck(ctx, db, 2*time.Second); err != nil {
				return err
			}
			return rdb.Ping(ctx).Err()
		},
	}
	if h.AllowUnverifiedRegister {
		log.Warn("phone verification disabled; /auth/register issues tokens without a code")
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, h, auth.RequireAccessToken(authManager), hub)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// No WriteTimeout: it would cut long-lived websocket connections.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "voip", voip != nil, "verify", verifier != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	statusSvc.Stop()
	// Hijacked websocket connections are not tracked by srv.Shutdown.
	hub.Shutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
