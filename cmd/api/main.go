package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auditdesk.org/internal/admin"
	"auditdesk.org/internal/auth"
	"auditdesk.org/internal/config"
	"auditdesk.org/internal/httpapi"
	"auditdesk.org/internal/obs"
	"auditdesk.org/internal/store"
	"auditdesk.org/internal/store/memory"
	"auditdesk.org/internal/store/pg"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	log := obs.Logger()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	obs.SetLevel(cfg.LogLevel)
	obs.Init()
	obs.InitBuildInfo(version, commit)

	var st store.Store
	if cfg.InMemory() {
		log.Warn("DATABASE_URL not set, using the in-memory store")
		st = memory.New()
	} else {
		db, err := pg.Open(cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("open database")
		}
		st = db
	}
	defer st.Close()

	tokens, err := auth.NewTokenService(
		auth.WithAccessSecret(cfg.AccessTokenSecret),
		auth.WithRefreshSecret(cfg.RefreshTokenSecret),
		auth.WithIssuer(cfg.TokenIssuer),
		auth.WithAccessTTL(cfg.AccessTokenTTL),
		auth.WithRefreshTTL(cfg.RefreshTokenTTL),
	)
	if err != nil {
		log.WithError(err).Fatal("token service")
	}
	svc, err := admin.NewService(st, tokens, admin.WithHasher(auth.NewHasher(cfg.BcryptCost)))
	if err != nil {
		log.WithError(err).Fatal("admin service")
	}

	api := httpapi.New(svc,
		httpapi.WithVersion(version),
		httpapi.WithCookieSecure(cfg.CookieSecure),
		httpapi.WithCORSOrigins(cfg.CORSOriginList()),
		httpapi.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	grpcSrv := httpapi.NewGRPCServer(httpapi.ReadyProbe(svc.Ping), 10*time.Second)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.WithError(err).Fatal("grpc listen")
	}
	go grpcSrv.Run(ctx)
	go func() {
		if err := grpcSrv.Serve(lis); err != nil {
			log.WithError(err).Error("grpc serve")
		}
	}()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("listen")
		}
	}()
	log.WithField("http_addr", srv.Addr).WithField("grpc_addr", cfg.GRPCAddr).
		WithField("version", version).Info("auditdesk-api started")

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	grpcSrv.Stop()
	log.Info("stopped")
}
