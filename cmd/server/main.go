package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jacksonlee411/Roots-And-Branches/internal/config"
	"github.com/jacksonlee411/Roots-And-Branches/internal/server"
	"github.com/jacksonlee411/Roots-And-Branches/modules/organization/infrastructure/persistence"
	"github.com/jacksonlee411/Roots-And-Branches/modules/organization/infrastructure/propagation"
	"github.com/jacksonlee411/Roots-And-Branches/modules/organization/services"
	"github.com/jacksonlee411/Roots-And-Branches/pkg/authz"
)

func main() {
	if err := run(); err != nil {
		os.Stderr.WriteString("server: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	configPath := os.Getenv("ORG_CONFIG_PATH")
	if configPath == "" {
		configPath = "."
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg.DevelopmentLogger)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	versionStore := persistence.NewVersionPGStore(pool)
	auditStore := persistence.NewAuditPGStore(pool)

	publisher, err := propagation.NewRedisPublisher(cfg.RedisAddr, cfg.RedisChannelPrefix)
	if err != nil {
		return err
	}
	defer func() { _ = publisher.Close() }()

	propagator := propagation.NewPropagator(publisher, log, cfg.EventQueueSize)
	audit := services.NewAuditRecorder(auditStore, log, cfg.StoreTimeout, cfg.AuditQueueSize)

	policy, err := services.LoadMutationPolicy(cfg.PolicyRulesPath)
	if err != nil {
		return err
	}

	mode, err := authz.ParseMode(cfg.AuthzMode, cfg.AuthzAllowDisabled)
	if err != nil {
		return err
	}
	var authorizer *authz.Authorizer
	if cfg.AuthzModelPath != "" {
		authorizer, err = authz.NewAuthorizer(cfg.AuthzModelPath, cfg.AuthzPolicyPath, mode)
		if err != nil {
			return err
		}
	} else {
		log.Warn("authorization model not configured, requests are not gated")
	}

	svc := services.NewOrganizationCommandService(versionStore, audit, propagator, policy, log, cfg.StoreTimeout)

	opts := server.Options{
		CommandService: svc,
		AuditRecorder:  audit,
		Logger:         log,
	}
	if authorizer != nil {
		opts.Authorizer = authorizer
	}
	handler := server.NewHandler(opts)
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := propagator.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		err := audit.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
