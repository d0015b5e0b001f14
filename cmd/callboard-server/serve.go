package main

import (
	"context"
	crypto_rand "crypto/rand"
	"encoding/hex"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/callboard/callboard/internal/domain/callslot"
	"github.com/callboard/callboard/internal/domain/layout"
	"github.com/callboard/callboard/internal/domain/monitor"
	"github.com/callboard/callboard/internal/domain/roster"
	"github.com/callboard/callboard/internal/platform/auth"
	"github.com/callboard/callboard/internal/platform/db"
	"github.com/callboard/callboard/internal/platform/middleware"
	"github.com/callboard/callboard/internal/platform/mqtt"
	"github.com/callboard/callboard/internal/platform/validate"
	"github.com/callboard/callboard/internal/platform/websocket"
)

const tokenIssuer = "callboard"

func runServer() error {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	env, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()
	cfg, logger := env.cfg, env.logger

	changes, err := env.openFeed(ctx, true)
	if err != nil {
		return err
	}

	hub := websocket.NewHub(logger)
	slotSvc := env.slotService(changes)
	slotSvc.AddNotifier(callslot.NewHubNotifier(hub))

	if cfg.MQTTBroker != "" {
		pub, err := mqtt.Connect(mqtt.Config{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
			QoS:      1,
		}, logger)
		if err != nil {
			// Hardware displays are optional; the board works without them.
			logger.Warn().Err(err).Str("broker", cfg.MQTTBroker).Msg("mqtt unavailable, slot events will not be relayed")
		} else {
			defer pub.Close()
			slotSvc.AddNotifier(callslot.NewMQTTNotifier(pub))
			logger.Info().Str("broker", cfg.MQTTBroker).Msg("relaying slot events over mqtt")
		}
	}

	liveQuery := callslot.NewLiveQuery(callslot.NewRepo(env.pool), changes, logger)
	rosterSvc := env.rosterService(slotSvc)
	layoutSvc := layout.NewService(layout.NewRepo(env.pool), hub, logger)

	signingKey := []byte(cfg.AuthSigningKey)
	if len(signingKey) == 0 {
		// Development only; Validate rejects a missing key elsewhere.
		buf := make([]byte, 32)
		if _, err := crypto_rand.Read(buf); err != nil {
			return err
		}
		signingKey = []byte(hex.EncodeToString(buf))
		logger.Warn().Msg("AUTH_SIGNING_KEY not set, using a random key; tokens will not survive a restart")
	}
	jwtCfg := auth.JWTConfig{
		SigningKey: signingKey,
		Issuer:     tokenIssuer,
		Skipper:    auth.AuthSkipper,
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validate.New()

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit("1M", "10M"))
	e.Use(middleware.RequestTimeout(30 * time.Second))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}

	e.Use(middleware.Audit(logger))

	apiV1 := e.Group("/api/v1")
	rateLimitCfg := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
		rateLimitCfg.BurstSize = cfg.RateLimitBurst
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(
		map[string]db.Pinger{"database": env.pool, "feed": changes},
		func() *db.PoolStats { return db.GetPoolStats(env.pool) },
	))

	auth.NewHandler(auth.NewIssuer(signingKey, tokenIssuer, cfg.TokenTTL), cfg.StaffPassphrase, cfg.AdminPassphrase).
		RegisterRoutes(apiV1)
	callslot.NewHandler(slotSvc).RegisterRoutes(apiV1)
	roster.NewHandler(rosterSvc).RegisterRoutes(apiV1)
	layout.NewHandler(layoutSvc).RegisterRoutes(apiV1)
	monitor.NewHandler(slotSvc, liveQuery, cfg.MonitorShifts, logger).RegisterRoutes(apiV1)

	websocket.NewWebSocketHandler(hub, cfg.CORSOrigins).
		RegisterRoutes(e.Group(""), auth.RequireRole(auth.RoleViewer, auth.RoleStaff))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("feed", cfg.FeedDriver).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
